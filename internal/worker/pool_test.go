package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	payloads []string
	err      error
}

func (p *recordingProcessor) Process(_ context.Context, raw json.RawMessage) error {
	p.payloads = append(p.payloads, string(raw))
	return p.err
}

func encodeJob(t *testing.T, jobType string, payload any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(Job{Type: jobType, Payload: data})
	require.NoError(t, err)
	return string(b)
}

// processJob runs without Redis here; DLQ writes degrade to a log line.
func TestProcessJob_RoutesByType(t *testing.T) {
	p := &recordingProcessor{}
	processors := map[string]Processor{JobOrderPush: p}

	processJob(context.Background(), nil, QueuePush, encodeJob(t, JobOrderPush, PushJobPayload{OrderID: "abc"}), processors)
	require.Len(t, p.payloads, 1)
	assert.JSONEq(t, `{"order_id":"abc"}`, p.payloads[0])

	processJob(context.Background(), nil, QueuePush, encodeJob(t, "print_label", map[string]string{}), processors)
	processJob(context.Background(), nil, QueuePush, "{not json", processors)
	assert.Len(t, p.payloads, 1)
}

func TestProcessJob_ExhaustedAndPlainErrors(t *testing.T) {
	p := &recordingProcessor{err: &ExhaustedError{Attempts: 3, Err: errors.New("503")}}
	processors := map[string]Processor{JobOrderPush: p}
	raw := encodeJob(t, JobOrderPush, PushJobPayload{OrderID: "abc"})

	assert.NotPanics(t, func() { processJob(context.Background(), nil, QueuePush, raw, processors) })

	p.err = errors.New("db down")
	assert.NotPanics(t, func() { processJob(context.Background(), nil, QueuePush, raw, processors) })
	assert.Len(t, p.payloads, 2)
}

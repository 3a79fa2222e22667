package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueuePush = "jobs:order_push"

	JobOrderPush = "order_push"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Processor handles one decoded job payload.
type Processor interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueuePush schedules an upload of the order's local state to the cloud.
func (d *Dispatcher) EnqueuePush(ctx context.Context, orderID uuid.UUID) error {
	return d.enqueue(ctx, QueuePush, JobOrderPush, PushJobPayload{OrderID: orderID.String()})
}

// QueueLength reports pending jobs on queue.
func (d *Dispatcher) QueueLength(ctx context.Context, queue string) (int64, error) {
	return d.rdb.LLen(ctx, queue).Result()
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the push queue.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, processors map[string]Processor) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, processors)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, processors map[string]Processor) {
	queues := []string{QueuePush}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, result[0], result[1], processors)
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, queue, raw string, processors map[string]Processor) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	p, ok := processors[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no processor for job type")
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, "unknown job type", 0)
		return
	}
	if err := p.Process(ctx, job.Payload); err != nil {
		var ex *ExhaustedError
		if errors.As(err, &ex) {
			SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, ex.Err.Error(), ex.Attempts)
			return
		}
		log.Error().Err(err).Str("type", job.Type).Msg("job failed")
	}
}

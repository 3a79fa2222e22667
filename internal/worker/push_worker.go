package worker

// push_worker.go
// Uploads an order's current local state to the cloud store.
// The job only carries the id: the order is reloaded at processing time so a
// push always reflects the latest local commit, even if it was queued earlier.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"giftpos/internal/model"
	"giftpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PushJobPayload is the job envelope sent to QueuePush.
type PushJobPayload struct {
	OrderID string `json:"order_id"`
}

// CloudWriter is the subset of the cloud client the push worker needs.
type CloudWriter interface {
	Configured() bool
	Upsert(ctx context.Context, o *model.Order) error
}

// OrderReader loads the local copy of an order.
type OrderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
}

// ExhaustedError marks a job that failed every attempt and belongs in the DLQ.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// PushWorker processes jobs from QueuePush.
type PushWorker struct {
	orders      OrderReader
	cloud       CloudWriter
	maxAttempts int
}

// NewPushWorker wires the push worker. maxAttempts <= 0 means 3.
func NewPushWorker(orders OrderReader, cloud CloudWriter, maxAttempts int) *PushWorker {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &PushWorker{orders: orders, cloud: cloud, maxAttempts: maxAttempts}
}

// Process handles a single push job:
//  1. Parse PushJobPayload
//  2. Skip when no cloud store is configured
//  3. Reload the order from the local store
//  4. Upsert it to the cloud with exponential backoff
//
// Malformed payloads and orders that no longer exist are logged and dropped.
func (w *PushWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload PushJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("push_worker: invalid payload")
		return nil
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		log.Error().Str("order_id", payload.OrderID).Msg("push_worker: invalid order_id")
		return nil
	}

	if !w.cloud.Configured() {
		log.Debug().Str("order_id", payload.OrderID).Msg("push_worker: cloud not configured, skipping")
		return nil
	}

	order, err := w.orders.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("order_id", payload.OrderID).Msg("push_worker: order not found, dropping job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("push_worker: load order: %w", err)
	}

	err = withRetry(ctx, w.maxAttempts, func(attempt int) error {
		if err := w.cloud.Upsert(ctx, order); err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("order_id", payload.OrderID).
				Msg("push_worker: cloud upsert failed")
			return err
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ExhaustedError{Attempts: w.maxAttempts, Err: err}
	}

	log.Debug().Str("order_id", payload.OrderID).Str("folio", order.Folio).Msg("push_worker: order pushed")
	return nil
}

// retryBaseDelay is the first backoff step.
var retryBaseDelay = time.Second

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := retryBaseDelay * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

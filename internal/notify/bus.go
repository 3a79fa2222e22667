// Package notify carries operator-facing notifications (toasts) from the
// backend to whoever is showing them. Publishing never blocks.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is one toast.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	OrderID string    `json:"orderId,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier is the publishing side used by the workflow and sync code.
type Notifier interface {
	Notify(level Level, message string, orderID string)
}

// subscriberBuffer bounds each subscriber's queue; a full queue drops the
// newest notification for that subscriber only.
const subscriberBuffer = 32

// Bus fans notifications out to subscribers. The zero value is not usable;
// use NewBus.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]chan Notification
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan Notification)}
}

// Subscribe registers a new listener. The returned cancel func must be called
// when the listener goes away; it closes the channel.
func (b *Bus) Subscribe() (<-chan Notification, func()) {
	id := uuid.NewString()
	ch := make(chan Notification, subscriberBuffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active listeners.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers n to every subscriber without blocking.
func (b *Bus) Publish(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- n:
		default:
			log.Warn().Str("subscriber", id).Str("message", n.Message).Msg("notify: subscriber queue full, dropping")
		}
	}
}

// Notify implements Notifier.
func (b *Bus) Notify(level Level, message string, orderID string) {
	b.Publish(Notification{Level: level, Message: message, OrderID: orderID})
}

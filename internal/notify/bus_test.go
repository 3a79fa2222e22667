package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()
	assert.Equal(t, 2, bus.Subscribers())

	bus.Notify(LevelSuccess, "Sincronizado", "X")

	n1 := <-ch1
	n2 := <-ch2
	assert.Equal(t, "Sincronizado", n1.Message)
	assert.Equal(t, LevelSuccess, n1.Level)
	assert.Equal(t, "X", n2.OrderID)
	assert.NotEmpty(t, n1.ID)
	assert.False(t, n1.At.IsZero())

	cancel1()
	cancel1() // idempotent
	assert.Equal(t, 1, bus.Subscribers())
	_, open := <-ch1
	assert.False(t, open)
}

func TestBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Notify(LevelInfo, "tick", "")
	}
	require.Len(t, ch, subscriberBuffer)
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() { bus.Notify(LevelError, "sin oyentes", "") })
}

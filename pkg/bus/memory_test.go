package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/alertkit/pkg/bus"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	b := bus.NewMemoryBus()
	t.Cleanup(func() { _ = b.Close() })

	events, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	err = b.Publish(context.Background(), bus.Event{
		Type:           bus.EventNotificationQueued,
		NotificationID: "n-1",
		RecipientID:    "u-1",
	})
	require.NoError(t, err)

	select {
	case got := <-events:
		assert.Equal(t, bus.EventNotificationQueued, got.Type)
		assert.Equal(t, "n-1", got.NotificationID)
		assert.False(t, got.Timestamp.IsZero(), "timestamp is stamped on publish")
	case <-time.After(time.Second):
		t.Fatal("expected event on subscription channel")
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	t.Parallel()

	b := bus.NewMemoryBus()
	t.Cleanup(func() { _ = b.Close() })

	first, err := b.Subscribe(context.Background())
	require.NoError(t, err)
	second, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), bus.Event{Type: bus.EventNotificationProcessed}))

	for _, ch := range []<-chan bus.Event{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, bus.EventNotificationProcessed, got.Type)
		case <-time.After(time.Second):
			t.Fatal("every subscriber receives every event")
		}
	}
}

func TestMemoryBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	b := bus.NewMemoryBus(bus.WithBufferSize(1))
	t.Cleanup(func() { _ = b.Close() })

	_, err := b.Subscribe(context.Background()) // never drained
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10 {
			_ = b.Publish(context.Background(), bus.Event{Type: bus.EventNotificationQueued})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestMemoryBus_ContextCancelEndsSubscription(t *testing.T) {
	t.Parallel()

	b := bus.NewMemoryBus()
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	events, err := b.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryBus_Close(t *testing.T) {
	t.Parallel()

	b := bus.NewMemoryBus()
	events, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, open := <-events
	assert.False(t, open)

	assert.ErrorIs(t, b.Publish(context.Background(), bus.Event{}), bus.ErrBusClosed)
	_, err = b.Subscribe(context.Background())
	assert.ErrorIs(t, err, bus.ErrBusClosed)
}

func TestMemoryBus_CloseDoesNotWaitOnLiveContexts(t *testing.T) {
	t.Parallel()

	b := bus.NewMemoryBus()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := b.Subscribe(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Close()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on subscriber contexts")
	}
}

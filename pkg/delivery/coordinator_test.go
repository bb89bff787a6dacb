package delivery_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/alertkit/pkg/bus"
	"github.com/dmitrymomot/alertkit/pkg/delivery"
	"github.com/dmitrymomot/alertkit/pkg/notification"
	"github.com/dmitrymomot/alertkit/pkg/storage"
	"github.com/dmitrymomot/alertkit/pkg/throttle"
)

// staticRouter returns a fixed channel list for every notification.
type staticRouter struct {
	channels []notification.Channel
}

func (r staticRouter) Route(context.Context, *notification.Notification) ([]notification.Channel, error) {
	return r.channels, nil
}

func (r staticRouter) InvalidateFor(*notification.Notification) {}

// fakeAdapter records sends and fails on demand.
type fakeAdapter struct {
	channel notification.Channel
	err     error

	mu    sync.Mutex
	sends []string
}

func (a *fakeAdapter) Channel() notification.Channel { return a.channel }

func (a *fakeAdapter) Send(_ context.Context, n *notification.Notification) error {
	a.mu.Lock()
	a.sends = append(a.sends, n.ID)
	a.mu.Unlock()
	return a.err
}

func (a *fakeAdapter) sendCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sends)
}

func newLimiter(t *testing.T, limit int) *throttle.SlidingWindow {
	t.Helper()
	limiter, err := throttle.NewSlidingWindow(throttle.NewMemoryStore(), limit, time.Minute)
	require.NoError(t, err)
	return limiter
}

func newCoordinator(t *testing.T, router delivery.Router, limiter throttle.Limiter, adapters []delivery.Adapter, opts ...delivery.CoordinatorOption) (*delivery.Coordinator, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	events := bus.NewMemoryBus()
	t.Cleanup(func() { _ = events.Close() })
	coordinator, err := delivery.NewCoordinator(store, limiter, router, events, adapters, opts...)
	require.NoError(t, err)
	return coordinator, store
}

func makeNotification(t *testing.T, recipientID string, priority notification.Priority) *notification.Notification {
	t.Helper()
	n, err := notification.New(recipientID, "CPU alarm", "CPU above 95% for 10 minutes", notification.CategorySystem, priority, nil)
	require.NoError(t, err)
	return n
}

func TestEnqueueThrottlesEleventh(t *testing.T) {
	t.Parallel()

	router := staticRouter{channels: []notification.Channel{notification.ChannelEmail}}
	coordinator, store := newCoordinator(t, router, newLimiter(t, 10), nil)

	var eleventh *notification.Notification
	for i := range 11 {
		n := makeNotification(t, "user-1", notification.PriorityMedium)
		err := coordinator.Enqueue(context.Background(), n)
		if i < 10 {
			require.NoError(t, err, "notification %d should be accepted", i+1)
		} else {
			require.Error(t, err)
			assert.ErrorIs(t, err, notification.ErrThrottled)
			eleventh = n
		}
	}

	require.NotNil(t, eleventh)
	assert.Equal(t, notification.StatusThrottledDropped, eleventh.Status)

	stored, err := store.Get(context.Background(), eleventh.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusThrottledDropped, stored.Status)
	assert.Equal(t, 10, coordinator.QueueDepth())
}

func TestEnqueueRejectsInvalid(t *testing.T) {
	t.Parallel()

	coordinator, _ := newCoordinator(t, staticRouter{}, newLimiter(t, 10), nil)

	n := makeNotification(t, "user-2", notification.PriorityLow)
	n.Category = notification.Category("rumor")
	err := coordinator.Enqueue(context.Background(), n)
	require.Error(t, err)
	assert.True(t, notification.IsValidationError(err))
	assert.Zero(t, coordinator.QueueDepth())
}

func TestQueueOverflowDisplacesLowestPriority(t *testing.T) {
	t.Parallel()

	router := staticRouter{channels: []notification.Channel{notification.ChannelEmail}}
	coordinator, store := newCoordinator(t, router, newLimiter(t, 100),
		nil, delivery.WithQueueCapacity(2))

	low := makeNotification(t, "r1", notification.PriorityLow)
	medium := makeNotification(t, "r2", notification.PriorityMedium)
	require.NoError(t, coordinator.Enqueue(context.Background(), low))
	require.NoError(t, coordinator.Enqueue(context.Background(), medium))

	// Critical displaces the queued low-priority entry.
	critical := makeNotification(t, "r3", notification.PriorityCritical)
	require.NoError(t, coordinator.Enqueue(context.Background(), critical))
	assert.Equal(t, 2, coordinator.QueueDepth())

	displaced, err := store.Get(context.Background(), low.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusExpired, displaced.Status)

	// A low-priority incoming cannot displace equal or higher priority work.
	anotherLow := makeNotification(t, "r4", notification.PriorityLow)
	err = coordinator.Enqueue(context.Background(), anotherLow)
	require.Error(t, err)
	assert.ErrorIs(t, err, delivery.ErrQueueFull)
}

func TestDispatchAggregateStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		emailErr error
		smsErr   error
		want     notification.Status
	}{
		{"all succeed", nil, nil, notification.StatusDelivered},
		{"some succeed", nil, errors.New("gateway 500"), notification.StatusPartiallyDelivered},
		{"none succeed", errors.New("smtp down"), errors.New("gateway 500"), notification.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			emailAdapter := &fakeAdapter{channel: notification.ChannelEmail, err: tt.emailErr}
			smsAdapter := &fakeAdapter{channel: notification.ChannelSMS, err: tt.smsErr}
			channels := []notification.Channel{notification.ChannelEmail, notification.ChannelSMS}
			coordinator, store := newCoordinator(t, staticRouter{channels: channels}, newLimiter(t, 100),
				[]delivery.Adapter{emailAdapter, smsAdapter})

			n := makeNotification(t, "user-3", notification.PriorityHigh)
			require.NoError(t, store.Create(context.Background(), *n))

			out := coordinator.DispatchNow(context.Background(), n, channels)
			assert.Equal(t, tt.want, out.Status)
			assert.Len(t, n.Attempts, 2)

			stored, err := store.Get(context.Background(), n.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Status)
		})
	}
}

func TestDispatchRecordsUnconfiguredChannelAsUnavailable(t *testing.T) {
	t.Parallel()

	channels := []notification.Channel{notification.ChannelChat}
	coordinator, store := newCoordinator(t, staticRouter{channels: channels}, newLimiter(t, 100), nil)

	n := makeNotification(t, "user-4", notification.PriorityMedium)
	require.NoError(t, store.Create(context.Background(), *n))

	out := coordinator.DispatchNow(context.Background(), n, channels)
	assert.Equal(t, notification.StatusFailed, out.Status)
	require.Len(t, n.Attempts, 1)
	assert.False(t, n.Attempts[0].Success)
	assert.Contains(t, n.Attempts[0].Error, "no adapter")
}

func TestDispatchSkipsExpired(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{channel: notification.ChannelEmail}
	channels := []notification.Channel{notification.ChannelEmail}
	coordinator, store := newCoordinator(t, staticRouter{channels: channels}, newLimiter(t, 100),
		[]delivery.Adapter{adapter})

	n := makeNotification(t, "user-5", notification.PriorityMedium)
	past := time.Now().Add(-time.Minute)
	n.ExpiresAt = &past
	require.NoError(t, store.Create(context.Background(), *n))

	out := coordinator.DispatchNow(context.Background(), n, channels)
	assert.Equal(t, notification.StatusExpired, out.Status)
	assert.Zero(t, adapter.sendCount(), "expired notifications are never dispatched")
	assert.Empty(t, n.Attempts)
}

func TestDispatchNeverResendsSucceededChannels(t *testing.T) {
	t.Parallel()

	emailAdapter := &fakeAdapter{channel: notification.ChannelEmail}
	smsAdapter := &fakeAdapter{channel: notification.ChannelSMS}
	channels := []notification.Channel{notification.ChannelEmail, notification.ChannelSMS}
	coordinator, store := newCoordinator(t, staticRouter{channels: channels}, newLimiter(t, 100),
		[]delivery.Adapter{emailAdapter, smsAdapter})

	n := makeNotification(t, "user-6", notification.PriorityCritical)
	require.NoError(t, store.Create(context.Background(), *n))
	n.RecordAttempt(notification.Attempt{Channel: notification.ChannelEmail, Success: true})
	n.Status = notification.StatusEscalated

	out := coordinator.DispatchNow(context.Background(), n, channels)
	assert.Equal(t, notification.StatusDelivered, out.Status)
	assert.Zero(t, emailAdapter.sendCount(), "succeeded channel must not re-send")
	assert.Equal(t, 1, smsAdapter.sendCount())
}

func TestDispatchStopsAfterRetryBudget(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{channel: notification.ChannelEmail, err: errors.New("smtp down")}
	channels := []notification.Channel{notification.ChannelEmail}
	coordinator, _ := newCoordinator(t, staticRouter{channels: channels}, newLimiter(t, 100),
		[]delivery.Adapter{adapter})

	// High priority allows 3 retries after the initial attempt.
	n := makeNotification(t, "user-10", notification.PriorityHigh)

	for range 4 {
		n.RecordAttempt(notification.Attempt{Channel: notification.ChannelEmail, Success: false, Error: "smtp down"})
	}

	out := coordinator.DispatchNow(context.Background(), n, channels)
	assert.Equal(t, notification.StatusFailed, out.Status)
	assert.Zero(t, adapter.sendCount(), "exhausted channel must not be re-attempted")
	assert.Len(t, n.Attempts, 4, "no new attempt is recorded")
}

func TestDispatchWithinRetryBudgetReattempts(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{channel: notification.ChannelEmail, err: errors.New("smtp down")}
	channels := []notification.Channel{notification.ChannelEmail}
	coordinator, _ := newCoordinator(t, staticRouter{channels: channels}, newLimiter(t, 100),
		[]delivery.Adapter{adapter})

	n := makeNotification(t, "user-11", notification.PriorityHigh)
	n.RecordAttempt(notification.Attempt{Channel: notification.ChannelEmail, Success: false, Error: "smtp down"})

	coordinator.DispatchNow(context.Background(), n, channels)
	assert.Equal(t, 1, adapter.sendCount())
}

func TestDispatchAllChannelsAlreadySucceeded(t *testing.T) {
	t.Parallel()

	emailAdapter := &fakeAdapter{channel: notification.ChannelEmail}
	channels := []notification.Channel{notification.ChannelEmail}
	coordinator, store := newCoordinator(t, staticRouter{channels: channels}, newLimiter(t, 100),
		[]delivery.Adapter{emailAdapter})

	n := makeNotification(t, "user-12", notification.PriorityCritical)
	require.NoError(t, store.Create(context.Background(), *n))
	n.RecordAttempt(notification.Attempt{Channel: notification.ChannelEmail, Success: true})
	n.Status = notification.StatusEscalated

	out := coordinator.DispatchNow(context.Background(), n, channels)
	assert.Equal(t, notification.StatusDelivered, out.Status,
		"nothing left to send on a fully delivered notification")
	assert.Zero(t, emailAdapter.sendCount())
}

func TestDispatchPriorSuccessKeepsPartial(t *testing.T) {
	t.Parallel()

	emailAdapter := &fakeAdapter{channel: notification.ChannelEmail}
	smsAdapter := &fakeAdapter{channel: notification.ChannelSMS, err: errors.New("gateway 500")}
	channels := []notification.Channel{notification.ChannelEmail, notification.ChannelSMS}
	coordinator, store := newCoordinator(t, staticRouter{channels: channels}, newLimiter(t, 100),
		[]delivery.Adapter{emailAdapter, smsAdapter})

	n := makeNotification(t, "user-13", notification.PriorityCritical)
	require.NoError(t, store.Create(context.Background(), *n))
	n.RecordAttempt(notification.Attempt{Channel: notification.ChannelEmail, Success: true})
	n.Status = notification.StatusEscalated

	out := coordinator.DispatchNow(context.Background(), n, channels)
	assert.Equal(t, notification.StatusPartiallyDelivered, out.Status,
		"a fresh failure cannot erase earlier successful deliveries")
}

func TestSchedulerDrainsQueue(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{channel: notification.ChannelEmail}
	channels := []notification.Channel{notification.ChannelEmail}
	coordinator, _ := newCoordinator(t, staticRouter{channels: channels}, newLimiter(t, 100),
		[]delivery.Adapter{adapter}, delivery.WithTick(10*time.Millisecond))

	require.NoError(t, coordinator.Start(context.Background()))
	t.Cleanup(func() { _ = coordinator.Stop() })

	n := makeNotification(t, "user-7", notification.PriorityHigh)
	require.NoError(t, coordinator.Enqueue(context.Background(), n))

	select {
	case out := <-coordinator.Outcomes():
		assert.Equal(t, notification.StatusDelivered, out.Status)
		assert.Equal(t, n.ID, out.Notification.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch outcome")
	}
	assert.Zero(t, coordinator.QueueDepth())
}

func TestFormatSMS(t *testing.T) {
	t.Parallel()

	t.Run("short message untouched", func(t *testing.T) {
		t.Parallel()
		n := makeNotification(t, "user-8", notification.PriorityCritical)
		got := delivery.FormatSMS(n)
		assert.Equal(t, "[CRITICAL] CPU alarm: CPU above 95% for 10 minutes", got)
	})

	t.Run("long message truncated with ellipsis", func(t *testing.T) {
		t.Parallel()
		n := makeNotification(t, "user-8", notification.PriorityHigh)
		n.Message = strings.Repeat("x", 400)
		got := delivery.FormatSMS(n)
		assert.Equal(t, 160, len([]rune(got)))
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.True(t, strings.HasPrefix(got, "[HIGH] "))
	})
}

func TestStaticDirectory(t *testing.T) {
	t.Parallel()

	dir := delivery.StaticDirectory{
		Emails: map[string]string{"user-9": "user9@example.com"},
	}

	addr, err := dir.EmailAddress(context.Background(), "user-9")
	require.NoError(t, err)
	assert.Equal(t, "user9@example.com", addr)

	_, err = dir.PhoneNumber(context.Background(), "user-9")
	assert.ErrorIs(t, err, delivery.ErrAddressNotFound)
}

func TestCoordinatorRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := delivery.NewCoordinator(nil, newLimiter(t, 10), staticRouter{}, bus.NewMemoryBus(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrConfiguration)
}

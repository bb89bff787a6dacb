package escalation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/alertkit/pkg/bus"
	"github.com/dmitrymomot/alertkit/pkg/delivery"
	"github.com/dmitrymomot/alertkit/pkg/escalation"
	"github.com/dmitrymomot/alertkit/pkg/notification"
	"github.com/dmitrymomot/alertkit/pkg/routing"
	"github.com/dmitrymomot/alertkit/pkg/storage"
)

// fakeEvaluator matches everything with the given action list, bounded at
// maxLevel.
type fakeEvaluator struct {
	maxLevel     int
	requireMulti bool
	actions      []routing.EscalationAction

	mu          sync.Mutex
	invalidated []string
}

func (e *fakeEvaluator) EvaluateEscalation(_ context.Context, n *notification.Notification) routing.Evaluation {
	eval := routing.Evaluation{
		Level:          n.EscalationLevel,
		Actions:        e.actions,
		MatchedRuleIDs: []string{"always"},
	}
	if n.EscalationLevel < e.maxLevel {
		eval.ShouldEscalate = true
		eval.Level = n.EscalationLevel + 1
	}
	return eval
}

func (e *fakeEvaluator) InvalidateFor(n *notification.Notification) {
	e.mu.Lock()
	e.invalidated = append(e.invalidated, n.ID)
	e.mu.Unlock()
}

func (e *fakeEvaluator) MaxEscalationLevel() int       { return e.maxLevel }
func (e *fakeEvaluator) RequireMultipleChannels() bool { return e.requireMulti }

// fakeDispatcher records re-enqueued notifications.
type fakeDispatcher struct {
	mu       sync.Mutex
	enqueued []*notification.Notification
	forced   [][]notification.Channel
}

func (d *fakeDispatcher) Enqueue(_ context.Context, n *notification.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enqueued = append(d.enqueued, n)
	d.forced = append(d.forced, nil)
	return nil
}

func (d *fakeDispatcher) EnqueueEscalated(_ context.Context, n *notification.Notification, forced ...notification.Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enqueued = append(d.enqueued, n)
	d.forced = append(d.forced, forced)
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.enqueued)
}

func newController(t *testing.T, evaluator escalation.Evaluator, dispatcher escalation.Dispatcher, store storage.Store, outcomes <-chan delivery.Outcome, opts ...escalation.ControllerOption) *escalation.Controller {
	t.Helper()
	events := bus.NewMemoryBus()
	t.Cleanup(func() { _ = events.Close() })
	c, err := escalation.NewController(evaluator, dispatcher, store, events, outcomes, opts...)
	require.NoError(t, err)
	return c
}

func failedNotification(t *testing.T, priority notification.Priority) *notification.Notification {
	t.Helper()
	n, err := notification.New("user-1", "Intrusion detected", "Multiple failed logins", notification.CategorySecurity, priority, nil)
	require.NoError(t, err)
	require.NoError(t, n.SetStatus(notification.StatusSent))
	for _, ch := range []notification.Channel{notification.ChannelRealtime, notification.ChannelEmail, notification.ChannelSMS} {
		n.RecordAttempt(notification.Attempt{Channel: ch, Success: false, Error: "transport down"})
	}
	require.NoError(t, n.SetStatus(notification.StatusFailed))
	return n
}

func TestEscalateRaisesLevelAndForcesEmail(t *testing.T) {
	t.Parallel()

	evaluator := &fakeEvaluator{maxLevel: 3, actions: []routing.EscalationAction{
		{Type: routing.EscalationIncreaseLevel},
		{Type: routing.EscalationNotifyTeam},
	}}
	dispatcher := &fakeDispatcher{}
	store := storage.NewMemoryStore()
	controller := newController(t, evaluator, dispatcher, store, nil)

	n := failedNotification(t, notification.PriorityCritical)
	require.NoError(t, store.Create(context.Background(), *n))

	require.NoError(t, controller.Escalate(context.Background(), n))

	assert.Equal(t, 1, n.EscalationLevel)
	assert.Equal(t, notification.StatusEscalated, n.Status)
	assert.Equal(t, true, n.Payload["escalated"])

	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, []notification.Channel{notification.ChannelEmail}, dispatcher.forced[0])
	assert.Contains(t, evaluator.invalidated, n.ID, "routing cache must be invalidated on escalation")

	stored, err := store.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EscalationLevel)
}

func TestEscalationBounded(t *testing.T) {
	t.Parallel()

	evaluator := &fakeEvaluator{maxLevel: 3, actions: []routing.EscalationAction{
		{Type: routing.EscalationIncreaseLevel},
	}}
	dispatcher := &fakeDispatcher{}
	store := storage.NewMemoryStore()
	controller := newController(t, evaluator, dispatcher, store, nil)

	n := failedNotification(t, notification.PriorityCritical)
	require.NoError(t, store.Create(context.Background(), *n))

	for want := 1; want <= 3; want++ {
		require.NoError(t, controller.Escalate(context.Background(), n))
		assert.Equal(t, want, n.EscalationLevel)
		// Re-entering delivery can fail the notification again.
		require.NoError(t, n.SetStatus(notification.StatusSent))
		require.NoError(t, n.SetStatus(notification.StatusFailed))
	}

	// The fourth attempt is a no-op at the cap.
	err := controller.Escalate(context.Background(), n)
	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrEscalationLimitReached)
	assert.Equal(t, 3, n.EscalationLevel)
	assert.Equal(t, 3, dispatcher.count())
}

func TestOutcomeConsumerEscalatesFailures(t *testing.T) {
	t.Parallel()

	evaluator := &fakeEvaluator{maxLevel: 3, actions: []routing.EscalationAction{
		{Type: routing.EscalationIncreaseLevel},
	}}
	dispatcher := &fakeDispatcher{}
	store := storage.NewMemoryStore()
	outcomes := make(chan delivery.Outcome, 1)
	controller := newController(t, evaluator, dispatcher, store, outcomes,
		escalation.WithSweepInterval(time.Hour))

	require.NoError(t, controller.Start(context.Background()))
	t.Cleanup(func() { _ = controller.Stop() })

	n := failedNotification(t, notification.PriorityCritical)
	require.NoError(t, store.Create(context.Background(), *n))
	outcomes <- delivery.Outcome{Notification: *n, Status: notification.StatusFailed}

	require.Eventually(t, func() bool { return dispatcher.count() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestPartialDeliveryEscalatesOnlyCriticalWithMultiChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		priority     notification.Priority
		requireMulti bool
		wantEscalate bool
	}{
		{"critical with multi-channel requirement", notification.PriorityCritical, true, true},
		{"critical without requirement", notification.PriorityCritical, false, false},
		{"high with requirement", notification.PriorityHigh, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			evaluator := &fakeEvaluator{maxLevel: 3, requireMulti: tt.requireMulti,
				actions: []routing.EscalationAction{{Type: routing.EscalationIncreaseLevel}}}
			dispatcher := &fakeDispatcher{}
			store := storage.NewMemoryStore()
			outcomes := make(chan delivery.Outcome, 1)
			controller := newController(t, evaluator, dispatcher, store, outcomes,
				escalation.WithSweepInterval(time.Hour))

			require.NoError(t, controller.Start(context.Background()))
			t.Cleanup(func() { _ = controller.Stop() })

			n, err := notification.New("user-2", "Disk alert", "Disk nearly full", notification.CategorySystem, tt.priority, nil)
			require.NoError(t, err)
			require.NoError(t, store.Create(context.Background(), *n))
			require.NoError(t, n.SetStatus(notification.StatusSent))
			n.RecordAttempt(notification.Attempt{Channel: notification.ChannelEmail, Success: true})
			n.RecordAttempt(notification.Attempt{Channel: notification.ChannelSMS, Success: false, Error: "gateway 500"})
			require.NoError(t, n.SetStatus(notification.StatusPartiallyDelivered))

			outcomes <- delivery.Outcome{Notification: *n, Status: notification.StatusPartiallyDelivered}

			if tt.wantEscalate {
				require.Eventually(t, func() bool { return dispatcher.count() == 1 },
					2*time.Second, 10*time.Millisecond)
			} else {
				assert.Never(t, func() bool { return dispatcher.count() > 0 },
					200*time.Millisecond, 20*time.Millisecond)
			}
		})
	}
}

func TestSweepEscalatesUnacknowledged(t *testing.T) {
	t.Parallel()

	evaluator := &fakeEvaluator{maxLevel: 3, actions: []routing.EscalationAction{
		{Type: routing.EscalationIncreaseLevel},
	}}
	dispatcher := &fakeDispatcher{}
	store := storage.NewMemoryStore()
	controller := newController(t, evaluator, dispatcher, store, nil)

	stale, err := notification.New("user-3", "Pager test", "Please acknowledge", notification.CategoryAdministrative, notification.PriorityHigh, nil)
	require.NoError(t, err)
	require.NoError(t, stale.SetStatus(notification.StatusSent))
	require.NoError(t, store.Create(context.Background(), *stale))

	acked, err := notification.New("user-4", "Pager test", "Please acknowledge", notification.CategoryAdministrative, notification.PriorityHigh, nil)
	require.NoError(t, err)
	require.NoError(t, acked.SetStatus(notification.StatusSent))
	require.NoError(t, store.Create(context.Background(), *acked))
	require.NoError(t, store.Acknowledge(context.Background(), acked.ID))

	controller.Sweep(context.Background())

	require.Equal(t, 1, dispatcher.count())
	assert.Equal(t, stale.ID, dispatcher.enqueued[0].ID)
}

func TestWidenRecipients(t *testing.T) {
	t.Parallel()

	evaluator := &fakeEvaluator{maxLevel: 3, actions: []routing.EscalationAction{
		{Type: routing.EscalationIncreaseLevel},
		{Type: routing.EscalationIncludeRecipients, Recipients: []string{"oncall-lead", "user-1"}},
	}}
	dispatcher := &fakeDispatcher{}
	store := storage.NewMemoryStore()
	controller := newController(t, evaluator, dispatcher, store, nil)

	n := failedNotification(t, notification.PriorityCritical)
	require.NoError(t, store.Create(context.Background(), *n))
	require.NoError(t, controller.Escalate(context.Background(), n))

	// One widened copy (the original recipient is skipped) plus the
	// escalated re-entry of the original.
	require.Equal(t, 2, dispatcher.count())
	widened := dispatcher.enqueued[0]
	assert.Equal(t, "oncall-lead", widened.RecipientID)
	assert.Equal(t, true, widened.Payload["escalated"])
	assert.Equal(t, n.ID, widened.Payload["origin_notification_id"])
}

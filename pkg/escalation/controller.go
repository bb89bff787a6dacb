package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/bus"
	"github.com/dmitrymomot/alertkit/pkg/delivery"
	"github.com/dmitrymomot/alertkit/pkg/notification"
	"github.com/dmitrymomot/alertkit/pkg/routing"
	"github.com/dmitrymomot/alertkit/pkg/storage"
)

const defaultSweepInterval = 5 * time.Minute

// Evaluator decides whether and how a notification escalates. The routing
// engine implements it.
type Evaluator interface {
	EvaluateEscalation(ctx context.Context, n *notification.Notification) routing.Evaluation
	InvalidateFor(n *notification.Notification)
	MaxEscalationLevel() int
	RequireMultipleChannels() bool
}

// Dispatcher re-enters escalated notifications into the delivery pipeline.
// The delivery coordinator implements it.
type Dispatcher interface {
	Enqueue(ctx context.Context, n *notification.Notification) error
	EnqueueEscalated(ctx context.Context, n *notification.Notification, forced ...notification.Channel) error
}

// Controller consumes delivery outcomes and periodically sweeps
// unacknowledged notifications, raising escalation levels and widening
// delivery when the escalation rules say so.
type Controller struct {
	evaluator  Evaluator
	dispatcher Dispatcher
	store      storage.Store
	events     bus.Bus
	outcomes   <-chan delivery.Outcome
	log        *slog.Logger
	sweepEvery time.Duration
	now        func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ControllerOption configures a Controller.
type ControllerOption func(*controllerOptions)

type controllerOptions struct {
	sweepEvery time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// WithSweepInterval overrides how often unacknowledged notifications are
// re-evaluated (default 5m).
func WithSweepInterval(d time.Duration) ControllerOption {
	return func(o *controllerOptions) {
		if d > 0 {
			o.sweepEvery = d
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(log *slog.Logger) ControllerOption {
	return func(o *controllerOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithClock injects the time source used by the sweep cutoff.
func WithClock(now func() time.Time) ControllerOption {
	return func(o *controllerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewController creates an escalation controller wired to the delivery
// coordinator's outcome stream.
func NewController(evaluator Evaluator, dispatcher Dispatcher, store storage.Store, events bus.Bus, outcomes <-chan delivery.Outcome, opts ...ControllerOption) (*Controller, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("%w: evaluator is required", notification.ErrConfiguration)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher is required", notification.ErrConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", notification.ErrConfiguration)
	}
	if events == nil {
		return nil, fmt.Errorf("%w: event bus is required", notification.ErrConfiguration)
	}

	o := controllerOptions{
		sweepEvery: defaultSweepInterval,
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Controller{
		evaluator:  evaluator,
		dispatcher: dispatcher,
		store:      store,
		events:     events,
		outcomes:   outcomes,
		log:        o.log,
		sweepEvery: o.sweepEvery,
		now:        o.now,
	}, nil
}

// Start launches the outcome consumer and the periodic sweep as
// independent loops; neither blocks the other.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("escalation controller already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(2)
	go c.consumeOutcomes(runCtx)
	go c.sweepLoop(runCtx)

	c.log.InfoContext(ctx, "escalation controller started",
		slog.Duration("sweep_interval", c.sweepEvery))
	return nil
}

// Stop cancels both loops and waits for them to exit.
func (c *Controller) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return delivery.ErrNotRunning
	}
	cancel()
	c.wg.Wait()
	return nil
}

// Run starts the controller and returns a function suitable for errgroup.
func (c *Controller) Run(ctx context.Context) func() error {
	return func() error {
		if err := c.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return c.Stop()
	}
}

func (c *Controller) consumeOutcomes(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-c.outcomes:
			if !ok {
				return
			}
			if !c.escalationEligible(out) {
				continue
			}
			n := out.Notification
			if err := c.Escalate(ctx, &n); err != nil && !errors.Is(err, notification.ErrEscalationLimitReached) {
				c.log.ErrorContext(ctx, "escalation failed",
					slog.String("notification_id", n.ID), slog.Any("error", err))
			}
		}
	}
}

// escalationEligible applies the outcome filter: fully failed deliveries
// always qualify; partial deliveries qualify only for critical
// notifications when multiple channels are required.
func (c *Controller) escalationEligible(out delivery.Outcome) bool {
	switch out.Status {
	case notification.StatusFailed:
		return true
	case notification.StatusPartiallyDelivered:
		return out.Notification.Priority == notification.PriorityCritical &&
			c.evaluator.RequireMultipleChannels()
	}
	return false
}

func (c *Controller) sweepLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep re-evaluates Sent and PartiallyDelivered notifications that have
// not been acknowledged, catching escalation rules keyed on elapsed time
// rather than immediate failure.
func (c *Controller) Sweep(ctx context.Context) {
	stale, err := c.store.ListUnacknowledged(ctx,
		[]notification.Status{notification.StatusSent, notification.StatusPartiallyDelivered},
		c.now())
	if err != nil {
		c.log.ErrorContext(ctx, "sweep query failed", slog.Any("error", err))
		return
	}

	for _, n := range stale {
		n := n
		if err := c.Escalate(ctx, &n); err != nil && !errors.Is(err, notification.ErrEscalationLimitReached) {
			c.log.ErrorContext(ctx, "sweep escalation failed",
				slog.String("notification_id", n.ID), slog.Any("error", err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Escalate evaluates the escalation rules for one notification and, on a
// match, raises its level, executes the rule actions in order and
// re-enters delivery with a forced email attempt tagged escalated=true.
// A notification already at the maximum level returns
// notification.ErrEscalationLimitReached and its status stands.
func (c *Controller) Escalate(ctx context.Context, n *notification.Notification) error {
	eval := c.evaluator.EvaluateEscalation(ctx, n)
	if !eval.ShouldEscalate {
		if len(eval.MatchedRuleIDs) > 0 {
			return fmt.Errorf("notification %s at level %d: %w",
				n.ID, n.EscalationLevel, notification.ErrEscalationLimitReached)
		}
		return nil
	}

	if _, raised := n.RaiseEscalationLevel(c.evaluator.MaxEscalationLevel()); !raised {
		return fmt.Errorf("notification %s at level %d: %w",
			n.ID, n.EscalationLevel, notification.ErrEscalationLimitReached)
	}
	if err := n.SetStatus(notification.StatusEscalated); err != nil {
		return fmt.Errorf("escalate notification %s: %w", n.ID, err)
	}
	if n.Payload == nil {
		n.Payload = make(map[string]any)
	}
	n.Payload["escalated"] = true
	n.Payload["escalation_level"] = n.EscalationLevel

	// The cached route predates the escalation; the re-route must see the
	// escalated payload and level.
	c.evaluator.InvalidateFor(n)

	if err := c.store.Update(ctx, *n); err != nil {
		c.log.ErrorContext(ctx, "failed to persist escalation",
			slog.String("notification_id", n.ID), slog.Any("error", err))
	}
	c.publish(ctx, bus.Event{
		Type:            bus.EventNotificationEscalated,
		NotificationID:  n.ID,
		RecipientID:     n.RecipientID,
		Status:          n.Status,
		EscalationLevel: n.EscalationLevel,
		Data:            map[string]any{"matched_rules": eval.MatchedRuleIDs},
	})

	for _, action := range eval.Actions {
		c.execute(ctx, n, action)
	}

	if err := c.dispatcher.EnqueueEscalated(ctx, n, notification.ChannelEmail); err != nil {
		return fmt.Errorf("re-enqueue escalated notification %s: %w", n.ID, err)
	}

	c.log.InfoContext(ctx, "notification escalated",
		slog.String("notification_id", n.ID),
		slog.Int("level", n.EscalationLevel),
		slog.Any("matched_rules", eval.MatchedRuleIDs))
	return nil
}

// execute performs one escalation action. Actions are idempotent: the
// level bump happened before this loop, and event actions are
// fire-and-forget notifications to external collaborators.
func (c *Controller) execute(ctx context.Context, n *notification.Notification, action routing.EscalationAction) {
	switch action.Type {
	case routing.EscalationIncreaseLevel:
		// Already applied before the action loop; kept in rule documents
		// for readability.
	case routing.EscalationNotifyTeam:
		c.publish(ctx, bus.Event{
			Type:            bus.EventEscalationTeamNotified,
			NotificationID:  n.ID,
			RecipientID:     n.RecipientID,
			EscalationLevel: n.EscalationLevel,
			Data:            map[string]any{"target": "escalation-team"},
		})
	case routing.EscalationIncludeManager:
		c.publish(ctx, bus.Event{
			Type:            bus.EventEscalationTeamNotified,
			NotificationID:  n.ID,
			RecipientID:     n.RecipientID,
			EscalationLevel: n.EscalationLevel,
			Data:            map[string]any{"target": "manager"},
		})
	case routing.EscalationNotifyAdmin:
		c.publish(ctx, bus.Event{
			Type:            bus.EventEscalationTeamNotified,
			NotificationID:  n.ID,
			RecipientID:     n.RecipientID,
			EscalationLevel: n.EscalationLevel,
			Data:            map[string]any{"target": "admin"},
		})
	case routing.EscalationInvestigateDelivery:
		failures := make([]map[string]any, 0, len(n.Attempts))
		for _, a := range n.Attempts {
			if a.Success {
				continue
			}
			failures = append(failures, map[string]any{
				"channel": string(a.Channel),
				"error":   a.Error,
				"at":      a.Timestamp,
			})
		}
		c.publish(ctx, bus.Event{
			Type:           bus.EventDeliveryFailureInvestigation,
			NotificationID: n.ID,
			RecipientID:    n.RecipientID,
			Status:         n.Status,
			Data:           map[string]any{"failed_attempts": failures},
		})
	case routing.EscalationIncludeRecipients:
		c.widenRecipients(ctx, n, action.Recipients)
	}
}

// widenRecipients fans the escalated notification out to additional
// recipients as fresh notifications, each going through the full
// validate/throttle/route path.
func (c *Controller) widenRecipients(ctx context.Context, n *notification.Notification, recipients []string) {
	for _, recipientID := range recipients {
		if recipientID == "" || recipientID == n.RecipientID {
			continue
		}
		payload := make(map[string]any, len(n.Payload)+2)
		for k, v := range n.Payload {
			payload[k] = v
		}
		payload["escalated"] = true
		payload["origin_notification_id"] = n.ID

		copyN, err := notification.New(recipientID, n.Title, n.Message, n.Category, n.Priority, payload)
		if err != nil {
			c.log.ErrorContext(ctx, "cannot widen to recipient",
				slog.String("recipient_id", recipientID), slog.Any("error", err))
			continue
		}
		if err := c.dispatcher.Enqueue(ctx, copyN); err != nil {
			c.log.WarnContext(ctx, "widened notification not queued",
				slog.String("recipient_id", recipientID),
				slog.String("notification_id", copyN.ID),
				slog.Any("error", err))
		}
	}
}

func (c *Controller) publish(ctx context.Context, event bus.Event) {
	if err := c.events.Publish(ctx, event); err != nil {
		c.log.WarnContext(ctx, "event publish failed",
			slog.String("event", string(event.Type)), slog.Any("error", err))
	}
}

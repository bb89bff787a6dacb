package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/async"
	"github.com/dmitrymomot/alertkit/pkg/bus"
	"github.com/dmitrymomot/alertkit/pkg/metrics"
	"github.com/dmitrymomot/alertkit/pkg/notification"
	"github.com/dmitrymomot/alertkit/pkg/storage"
	"github.com/dmitrymomot/alertkit/pkg/strategy"
	"github.com/dmitrymomot/alertkit/pkg/throttle"
)

const (
	defaultQueueCapacity = 1000
	defaultTick          = time.Second
	defaultOutcomeBuffer = 256
)

// Router supplies the ordered channel list for a notification. The routing
// engine implements it.
type Router interface {
	Route(ctx context.Context, n *notification.Notification) ([]notification.Channel, error)
	InvalidateFor(n *notification.Notification)
}

// Outcome is the result of one dispatch pass, consumed by the escalation
// controller.
type Outcome struct {
	Notification notification.Notification
	Channels     []notification.Channel
	Status       notification.Status
}

// Coordinator owns the bounded delivery queue. Producers enqueue through
// it; a single scheduler drains the queue on a fixed tick, fans each
// notification out concurrently to one adapter per routed channel, joins
// the results and aggregates the delivery status.
type Coordinator struct {
	store    storage.Store
	limiter  throttle.Limiter
	router   Router
	events   bus.Bus
	adapters map[notification.Channel]Adapter
	timeouts map[notification.Channel]time.Duration
	queue    *boundedQueue
	outcomes chan Outcome
	log      *slog.Logger
	tick     time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*coordinatorOptions)

type coordinatorOptions struct {
	queueCapacity int
	tick          time.Duration
	outcomeBuffer int
	timeouts      map[notification.Channel]time.Duration
	log           *slog.Logger
	now           func() time.Time
}

// WithQueueCapacity overrides the bounded queue capacity (default 1000).
func WithQueueCapacity(n int) CoordinatorOption {
	return func(o *coordinatorOptions) {
		if n > 0 {
			o.queueCapacity = n
		}
	}
}

// WithTick overrides the scheduler tick interval (default 1s).
func WithTick(d time.Duration) CoordinatorOption {
	return func(o *coordinatorOptions) {
		if d > 0 {
			o.tick = d
		}
	}
}

// WithChannelTimeout overrides the send timeout for one channel.
func WithChannelTimeout(ch notification.Channel, d time.Duration) CoordinatorOption {
	return func(o *coordinatorOptions) {
		if d > 0 {
			o.timeouts[ch] = d
		}
	}
}

// WithCoordinatorLogger sets the coordinator logger.
func WithCoordinatorLogger(log *slog.Logger) CoordinatorOption {
	return func(o *coordinatorOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithCoordinatorClock injects the time source used for expiry checks.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(o *coordinatorOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewCoordinator creates a delivery coordinator. store, limiter, router and
// events are required; adapters register the available channels.
func NewCoordinator(store storage.Store, limiter throttle.Limiter, router Router, events bus.Bus, adapters []Adapter, opts ...CoordinatorOption) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", notification.ErrConfiguration)
	}
	if limiter == nil {
		return nil, fmt.Errorf("%w: throttle limiter is required", notification.ErrConfiguration)
	}
	if router == nil {
		return nil, fmt.Errorf("%w: router is required", notification.ErrConfiguration)
	}
	if events == nil {
		return nil, fmt.Errorf("%w: event bus is required", notification.ErrConfiguration)
	}

	o := coordinatorOptions{
		queueCapacity: defaultQueueCapacity,
		tick:          defaultTick,
		outcomeBuffer: defaultOutcomeBuffer,
		timeouts:      make(map[notification.Channel]time.Duration, len(DefaultTimeouts)),
		log:           slog.Default(),
		now:           time.Now,
	}
	for ch, d := range DefaultTimeouts {
		o.timeouts[ch] = d
	}
	for _, opt := range opts {
		opt(&o)
	}

	byChannel := make(map[notification.Channel]Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			continue
		}
		if _, dup := byChannel[a.Channel()]; dup {
			return nil, fmt.Errorf("%w: duplicate adapter for channel %q", notification.ErrConfiguration, a.Channel())
		}
		byChannel[a.Channel()] = a
	}

	return &Coordinator{
		store:    store,
		limiter:  limiter,
		router:   router,
		events:   events,
		adapters: byChannel,
		timeouts: o.timeouts,
		queue:    newBoundedQueue(o.queueCapacity),
		outcomes: make(chan Outcome, o.outcomeBuffer),
		log:      o.log,
		tick:     o.tick,
		now:      o.now,
	}, nil
}

// Outcomes exposes dispatch results for the escalation controller. The
// channel is buffered; when nobody drains it, outcomes are dropped rather
// than blocking the scheduler.
func (c *Coordinator) Outcomes() <-chan Outcome {
	return c.outcomes
}

// QueueDepth returns the number of notifications waiting for dispatch.
func (c *Coordinator) QueueDepth() int {
	return c.queue.len()
}

// Enqueue validates, persists, throttles and routes a notification, then
// places it on the delivery queue. A throttled notification is marked
// ThrottledDropped and reported with notification.ErrThrottled; it is
// never queued. A full queue displaces its oldest lowest-priority entry
// when the incoming notification outranks it, otherwise ErrQueueFull.
func (c *Coordinator) Enqueue(ctx context.Context, n *notification.Notification) error {
	return c.enqueue(ctx, n, nil)
}

// EnqueueEscalated re-enters an escalated notification through the same
// throttle check and bounded queue as fresh work, forcing the given
// channels into the routed list. Channels that already succeeded are
// filtered out again at dispatch time.
func (c *Coordinator) EnqueueEscalated(ctx context.Context, n *notification.Notification, forced ...notification.Channel) error {
	return c.enqueue(ctx, n, forced)
}

func (c *Coordinator) enqueue(ctx context.Context, n *notification.Notification, forced []notification.Channel) error {
	if err := n.Validate(); err != nil {
		return err
	}

	if err := c.store.Create(ctx, *n); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("persist notification: %w", err)
	}

	res, err := c.limiter.Allow(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("throttle check: %w", err)
	}
	if !res.Allowed {
		if err := n.SetStatus(notification.StatusThrottledDropped); err != nil {
			return err
		}
		if err := c.store.Update(ctx, *n); err != nil {
			c.log.ErrorContext(ctx, "failed to persist throttled drop",
				slog.String("notification_id", n.ID), slog.Any("error", err))
		}
		metrics.RecordDrop("throttled")
		return fmt.Errorf("recipient %s over rate limit (resets %s): %w",
			n.RecipientID, res.ResetAt.Format(time.RFC3339), notification.ErrThrottled)
	}

	channels, err := c.router.Route(ctx, n)
	if err != nil {
		return fmt.Errorf("route notification: %w", err)
	}
	for _, ch := range forced {
		present := false
		for _, routed := range channels {
			if routed == ch {
				present = true
				break
			}
		}
		if !present {
			channels = append(channels, ch)
		}
	}
	c.publish(ctx, bus.Event{
		Type:           bus.EventNotificationRouted,
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		Channels:       channels,
	})

	evicted, ok := c.queue.push(item{n: n, channels: channels})
	if !ok {
		metrics.RecordDrop("queue_full")
		return fmt.Errorf("%w: capacity reached, incoming priority %s does not outrank queued work",
			ErrQueueFull, n.Priority)
	}
	if evicted != nil {
		metrics.RecordDrop("queue_full")
		if err := evicted.n.SetStatus(notification.StatusExpired); err == nil {
			if uerr := c.store.Update(ctx, *evicted.n); uerr != nil {
				c.log.ErrorContext(ctx, "failed to persist displaced notification",
					slog.String("notification_id", evicted.n.ID), slog.Any("error", uerr))
			}
		}
		c.log.WarnContext(ctx, "queue full, displaced lowest-priority notification",
			slog.String("displaced_id", evicted.n.ID),
			slog.String("incoming_id", n.ID))
	}

	metrics.NotificationsEnqueued.WithLabelValues(string(n.Priority)).Inc()
	metrics.QueueDepth.Set(float64(c.queue.len()))
	c.publish(ctx, bus.Event{
		Type:           bus.EventNotificationQueued,
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		Status:         n.Status,
	})
	return nil
}

// Start launches the scheduler loop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("coordinator already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(runCtx)

	c.log.InfoContext(ctx, "delivery coordinator started",
		slog.Duration("tick", c.tick),
		slog.Int("channels", len(c.adapters)))
	return nil
}

// Stop cancels the scheduler and waits for the in-flight dispatch to
// settle.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	c.wg.Wait()
	return nil
}

// Run starts the coordinator and returns a function suitable for errgroup.
func (c *Coordinator) Run(ctx context.Context) func() error {
	return func() error {
		if err := c.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return c.Stop()
	}
}

// run is the single scheduler loop. One logical worker drains the queue to
// preserve per-recipient ordering; per-notification channel dispatch is
// fully parallel inside dispatch.
func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				it, ok := c.queue.pop()
				if !ok {
					break
				}
				metrics.QueueDepth.Set(float64(c.queue.len()))
				c.dispatch(ctx, it)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// DispatchNow processes a single notification immediately, bypassing the
// queue. The escalation controller uses it for forced escalation
// deliveries; tests use it to drive dispatch deterministically.
func (c *Coordinator) DispatchNow(ctx context.Context, n *notification.Notification, channels []notification.Channel) Outcome {
	return c.dispatch(ctx, item{n: n, channels: channels})
}

func (c *Coordinator) dispatch(ctx context.Context, it item) Outcome {
	n := it.n

	if n.ExpiresAt != nil && c.now().After(*n.ExpiresAt) {
		if err := n.SetStatus(notification.StatusExpired); err == nil {
			if uerr := c.store.Update(ctx, *n); uerr != nil {
				c.log.ErrorContext(ctx, "failed to persist expiry",
					slog.String("notification_id", n.ID), slog.Any("error", uerr))
			}
		}
		metrics.RecordDrop("expired")
		c.log.InfoContext(ctx, "notification expired before dispatch",
			slog.String("notification_id", n.ID))
		return c.emit(ctx, n, it.channels)
	}

	if err := n.SetStatus(notification.StatusSent); err != nil {
		c.log.ErrorContext(ctx, "cannot move notification to sent",
			slog.String("notification_id", n.ID),
			slog.String("status", string(n.Status)),
			slog.Any("error", err))
		return Outcome{Notification: *n, Channels: it.channels, Status: n.Status}
	}
	if err := c.store.Update(ctx, *n); err != nil {
		c.log.ErrorContext(ctx, "failed to persist sent status",
			slog.String("notification_id", n.ID), slog.Any("error", err))
	}

	// Channels that already succeeded in an earlier pass (escalation
	// re-entry) are never re-sent, and a channel that has burned through
	// its priority's retry budget is not attempted again.
	maxRetries := -1
	if policy, known := strategy.PolicyFor(n.Priority); known {
		maxRetries = policy.MaxRetries
	}
	succeeded := n.SucceededChannels()
	hadSuccess := len(succeeded) > 0
	pending := make([]notification.Channel, 0, len(it.channels))
	for _, ch := range it.channels {
		if succeeded[ch] {
			continue
		}
		if maxRetries >= 0 && n.FailedAttemptsFor(ch) > maxRetries {
			c.log.WarnContext(ctx, "retry budget exhausted for channel",
				slog.String("notification_id", n.ID),
				slog.String("channel", string(ch)),
				slog.Int("max_retries", maxRetries))
			continue
		}
		pending = append(pending, ch)
	}

	results := c.fanOut(ctx, n, pending)

	total, ok := 0, 0
	for i, ch := range pending {
		attempt := notification.Attempt{
			Channel:    ch,
			Success:    results[i].Err == nil,
			RetryCount: n.FailedAttemptsFor(ch),
		}
		if results[i].Err != nil {
			attempt.Error = results[i].Err.Error()
			c.log.WarnContext(ctx, "channel delivery failed",
				slog.String("notification_id", n.ID),
				slog.String("channel", string(ch)),
				slog.Any("error", results[i].Err))
		}
		n.RecordAttempt(attempt)
		metrics.RecordDeliveryAttempt(string(ch), attempt.Success, results[i].Value)
		total++
		if attempt.Success {
			ok++
		}
	}

	status := aggregateStatus(total, ok, hadSuccess)
	if err := n.SetStatus(status); err != nil {
		c.log.ErrorContext(ctx, "invalid status transition after dispatch",
			slog.String("notification_id", n.ID), slog.Any("error", err))
	}
	if err := c.store.Update(ctx, *n); err != nil {
		c.log.ErrorContext(ctx, "failed to persist dispatch result",
			slog.String("notification_id", n.ID), slog.Any("error", err))
	}

	c.log.InfoContext(ctx, "notification processed",
		slog.String("notification_id", n.ID),
		slog.String("status", string(n.Status)),
		slog.Int("channels", total),
		slog.Int("succeeded", ok))
	return c.emit(ctx, n, it.channels)
}

// fanOut sends to every pending channel in parallel with a per-channel
// timeout and waits for all of them to settle, never failing fast. Each
// settled value carries the wall time of the send for instrumentation.
func (c *Coordinator) fanOut(ctx context.Context, n *notification.Notification, channels []notification.Channel) []async.Settled[time.Duration] {
	futures := make([]*async.Future[time.Duration], len(channels))
	for i, ch := range channels {
		adapter, configured := c.adapters[ch]
		timeout, hasTimeout := c.timeouts[ch]
		if !hasTimeout {
			timeout = 2 * time.Minute
		}
		channel := ch
		futures[i] = async.Go(ctx, func(ctx context.Context) (time.Duration, error) {
			started := time.Now()
			if !configured {
				return 0, fmt.Errorf("no adapter for channel %q: %w", channel, notification.ErrChannelUnavailable)
			}
			sendCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			err := adapter.Send(sendCtx, n)
			elapsed := time.Since(started)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
					return elapsed, fmt.Errorf("channel %q timed out after %s: %w", channel, timeout, notification.ErrDeliveryTimeout)
				}
				return elapsed, err
			}
			return elapsed, nil
		})
	}
	return async.SettleAll(futures...)
}

// emit publishes the processed event and hands the outcome to the
// escalation controller without ever blocking the scheduler.
func (c *Coordinator) emit(ctx context.Context, n *notification.Notification, channels []notification.Channel) Outcome {
	out := Outcome{Notification: *n, Channels: channels, Status: n.Status}
	c.publish(ctx, bus.Event{
		Type:            bus.EventNotificationProcessed,
		NotificationID:  n.ID,
		RecipientID:     n.RecipientID,
		Status:          n.Status,
		Channels:        channels,
		EscalationLevel: n.EscalationLevel,
	})
	select {
	case c.outcomes <- out:
	default:
		c.log.WarnContext(ctx, "outcome channel full, dropping outcome",
			slog.String("notification_id", n.ID))
	}
	return out
}

func (c *Coordinator) publish(ctx context.Context, event bus.Event) {
	if err := c.events.Publish(ctx, event); err != nil {
		c.log.WarnContext(ctx, "event publish failed",
			slog.String("event", string(event.Type)), slog.Any("error", err))
	}
}

// aggregateStatus folds per-channel results into the notification status:
// all succeeded means Delivered, some means PartiallyDelivered, none means
// Failed. A pass with nothing left to send (every routed channel already
// succeeded earlier) is Delivered, not Failed.
func aggregateStatus(total, succeeded int, priorSuccess bool) notification.Status {
	switch {
	case total == 0 && priorSuccess:
		return notification.StatusDelivered
	case total == 0:
		return notification.StatusFailed
	case succeeded == total:
		return notification.StatusDelivered
	case succeeded > 0 || priorSuccess:
		return notification.StatusPartiallyDelivered
	default:
		return notification.StatusFailed
	}
}

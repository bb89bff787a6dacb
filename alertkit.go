package alertkit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/bus"
	"github.com/dmitrymomot/alertkit/pkg/delivery"
	"github.com/dmitrymomot/alertkit/pkg/escalation"
	"github.com/dmitrymomot/alertkit/pkg/notification"
	"github.com/dmitrymomot/alertkit/pkg/push"
	redisconn "github.com/dmitrymomot/alertkit/pkg/redis"
	"github.com/dmitrymomot/alertkit/pkg/routing"
	"github.com/dmitrymomot/alertkit/pkg/storage"
	"github.com/dmitrymomot/alertkit/pkg/strategy"
	"github.com/dmitrymomot/alertkit/pkg/throttle"
)

const (
	defaultThrottleLimit  = 10
	defaultThrottleWindow = time.Minute
)

// Engine wires the full delivery pipeline: priority resolution, rule
// routing, the bounded delivery queue with its scheduler, and the
// escalation controller. Construct it with New, start it with Start (or
// Run under an errgroup), and feed it notifications with Notify or
// Enqueue.
type Engine struct {
	hub         *push.Hub
	resolver    *strategy.Resolver
	router      *routing.Engine
	coordinator *delivery.Coordinator
	controller  *escalation.Controller
	store       storage.Store
	events      bus.Bus
	limiter     throttle.Limiter
	log         *slog.Logger
}

// Option configures the engine.
type Option func(*engineOptions)

type engineOptions struct {
	store       storage.Store
	events      bus.Bus
	limiter     throttle.Limiter
	prefs       notification.PreferenceStore
	hub         *push.Hub
	adapters    []delivery.Adapter
	log         *slog.Logger
	routerOpts  []routing.EngineOption
	coordOpts   []delivery.CoordinatorOption
	controlOpts []escalation.ControllerOption
}

// WithStore replaces the default in-memory notification store, typically
// with the Postgres store.
func WithStore(s storage.Store) Option {
	return func(o *engineOptions) {
		if s != nil {
			o.store = s
		}
	}
}

// WithBus replaces the default in-process event bus, typically with the
// Redis bus for cross-process fan-out.
func WithBus(b bus.Bus) Option {
	return func(o *engineOptions) {
		if b != nil {
			o.events = b
		}
	}
}

// WithLimiter replaces the default in-memory sliding-window throttle,
// typically with one backed by the Redis throttle store.
func WithLimiter(l throttle.Limiter) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.limiter = l
		}
	}
}

// WithPreferenceStore supplies the recipient preference source. Without
// one, every recipient gets permissive defaults.
func WithPreferenceStore(p notification.PreferenceStore) Option {
	return func(o *engineOptions) {
		if p != nil {
			o.prefs = p
		}
	}
}

// WithHub replaces the realtime push hub.
func WithHub(h *push.Hub) Option {
	return func(o *engineOptions) {
		if h != nil {
			o.hub = h
		}
	}
}

// WithAdapters registers the channel adapters. Channels without an
// adapter fail delivery as ChannelUnavailable; for development,
// delivery.NewLogAdapter covers any channel.
func WithAdapters(adapters ...delivery.Adapter) Option {
	return func(o *engineOptions) {
		o.adapters = append(o.adapters, adapters...)
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(log *slog.Logger) Option {
	return func(o *engineOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithRouterOptions forwards options to the routing engine.
func WithRouterOptions(opts ...routing.EngineOption) Option {
	return func(o *engineOptions) {
		o.routerOpts = append(o.routerOpts, opts...)
	}
}

// WithCoordinatorOptions forwards options to the delivery coordinator.
func WithCoordinatorOptions(opts ...delivery.CoordinatorOption) Option {
	return func(o *engineOptions) {
		o.coordOpts = append(o.coordOpts, opts...)
	}
}

// WithControllerOptions forwards options to the escalation controller.
func WithControllerOptions(opts ...escalation.ControllerOption) Option {
	return func(o *engineOptions) {
		o.controlOpts = append(o.controlOpts, opts...)
	}
}

// defaultPrefs serves permissive defaults for every recipient.
type defaultPrefs struct{}

func (defaultPrefs) Get(_ context.Context, recipientID string) (notification.Preferences, error) {
	return notification.DefaultPreferences(recipientID), nil
}

// New assembles the engine. With no options it runs fully in-process:
// in-memory store, in-memory bus, in-memory throttle and a realtime hub,
// which is the development and test configuration.
func New(opts ...Option) (*Engine, error) {
	o := engineOptions{
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.store == nil {
		o.store = storage.NewMemoryStore()
	}
	if o.events == nil {
		o.events = bus.NewMemoryBus()
	}
	if o.hub == nil {
		o.hub = push.NewHub()
	}
	if o.prefs == nil {
		o.prefs = defaultPrefs{}
	}
	if o.limiter == nil {
		limiter, err := throttle.NewSlidingWindow(throttle.NewMemoryStore(), defaultThrottleLimit, defaultThrottleWindow)
		if err != nil {
			return nil, fmt.Errorf("build default throttle: %w", err)
		}
		o.limiter = limiter
	}
	if len(o.adapters) == 0 {
		o.adapters = []delivery.Adapter{delivery.NewRealtimeAdapter(o.hub)}
		for _, ch := range notification.AllChannels() {
			if ch == notification.ChannelRealtime {
				continue
			}
			o.adapters = append(o.adapters, delivery.NewLogAdapter(ch, o.log))
		}
	}

	resolver := strategy.NewResolver(strategy.WithPresenceChecker(o.hub))

	routerOpts := append([]routing.EngineOption{routing.WithLogger(o.log)}, o.routerOpts...)
	router, err := routing.NewEngine(resolver, o.prefs, routerOpts...)
	if err != nil {
		return nil, fmt.Errorf("build routing engine: %w", err)
	}

	coordOpts := append([]delivery.CoordinatorOption{delivery.WithCoordinatorLogger(o.log)}, o.coordOpts...)
	coordinator, err := delivery.NewCoordinator(o.store, o.limiter, router, o.events, o.adapters, coordOpts...)
	if err != nil {
		return nil, fmt.Errorf("build delivery coordinator: %w", err)
	}

	controlOpts := append([]escalation.ControllerOption{escalation.WithLogger(o.log)}, o.controlOpts...)
	controller, err := escalation.NewController(router, coordinator, o.store, o.events, coordinator.Outcomes(), controlOpts...)
	if err != nil {
		return nil, fmt.Errorf("build escalation controller: %w", err)
	}

	return &Engine{
		hub:         o.hub,
		resolver:    resolver,
		router:      router,
		coordinator: coordinator,
		controller:  controller,
		store:       o.store,
		events:      o.events,
		limiter:     o.limiter,
		log:         o.log,
	}, nil
}

// NewWithRedis assembles an engine whose throttle counters and event bus
// are shared across processes through Redis: connection per cfg, the
// sliding-window throttle on the Redis store, and the Redis pub/sub bus.
// Remaining options are applied on top, so WithLimiter or WithBus can
// still override either piece.
func NewWithRedis(ctx context.Context, cfg redisconn.Config, opts ...Option) (*Engine, error) {
	client, err := redisconn.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	throttleStore, err := throttle.NewRedisStore(client)
	if err != nil {
		return nil, fmt.Errorf("build redis throttle store: %w", err)
	}
	limiter, err := throttle.NewSlidingWindow(throttleStore, defaultThrottleLimit, defaultThrottleWindow)
	if err != nil {
		return nil, fmt.Errorf("build throttle: %w", err)
	}
	events, err := bus.NewRedisBus(client)
	if err != nil {
		return nil, fmt.Errorf("build redis bus: %w", err)
	}

	return New(append([]Option{WithLimiter(limiter), WithBus(events)}, opts...)...)
}

// Start launches the dispatch scheduler and the escalation loops.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.coordinator.Start(ctx); err != nil {
		return err
	}
	if err := e.controller.Start(ctx); err != nil {
		_ = e.coordinator.Stop()
		return err
	}
	return nil
}

// Stop shuts the scheduler and escalation loops down, waiting for
// in-flight dispatches to settle.
func (e *Engine) Stop() error {
	cerr := e.controller.Stop()
	if err := e.coordinator.Stop(); err != nil {
		return err
	}
	return cerr
}

// Run starts the engine and returns a function suitable for errgroup.
func (e *Engine) Run(ctx context.Context) func() error {
	return func() error {
		if err := e.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return e.Stop()
	}
}

// Notify creates a notification and enqueues it for delivery. expiresAt
// may be nil. It returns the created notification so callers can track
// its ID; validation and throttling errors are returned synchronously.
func (e *Engine) Notify(ctx context.Context, recipientID, title, message string, category notification.Category, priority notification.Priority, payload map[string]any, expiresAt *time.Time) (*notification.Notification, error) {
	n, err := notification.New(recipientID, title, message, category, priority, payload)
	if err != nil {
		return nil, err
	}
	n.ExpiresAt = expiresAt
	if err := e.coordinator.Enqueue(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

// Enqueue submits an already constructed notification.
func (e *Engine) Enqueue(ctx context.Context, n *notification.Notification) error {
	return e.coordinator.Enqueue(ctx, n)
}

// Acknowledge marks a notification acknowledged, which removes it from
// future escalation sweeps.
func (e *Engine) Acknowledge(ctx context.Context, id string) error {
	return e.store.Acknowledge(ctx, id)
}

// Notification fetches the current persisted state of a notification.
func (e *Engine) Notification(ctx context.Context, id string) (*notification.Notification, error) {
	return e.store.Get(ctx, id)
}

// Router exposes the routing engine for rule administration and
// configuration import/export.
func (e *Engine) Router() *routing.Engine {
	return e.router
}

// Hub exposes the realtime push hub so transports can subscribe
// recipients.
func (e *Engine) Hub() *push.Hub {
	return e.hub
}

// Events exposes the engine's event bus.
func (e *Engine) Events() bus.Bus {
	return e.events
}

package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/cache"
	"github.com/dmitrymomot/alertkit/pkg/metrics"
	"github.com/dmitrymomot/alertkit/pkg/notification"
	"github.com/dmitrymomot/alertkit/pkg/strategy"
)

const (
	defaultCacheTTL           = 300 * time.Second
	defaultCacheCapacity      = 4096
	defaultMaxEscalationLevel = 3
)

// StrategyResolver supplies the baseline channel candidates and overrides
// for a notification. *strategy.Resolver implements it.
type StrategyResolver interface {
	DetermineStrategy(ctx context.Context, recipientID string, n *notification.Notification) (strategy.Strategy, error)
}

// cacheKey identifies a routing decision. Two notifications with the same
// key within the TTL share the cached channel list.
type cacheKey struct {
	Type         notification.Category
	Severity     notification.Priority
	RecipientID  string
	Role         string
	HasLocation  bool
	HasTimestamp bool
}

func keyFor(n *notification.Notification) cacheKey {
	key := cacheKey{
		Type:        n.Category,
		Severity:    n.Priority,
		RecipientID: n.RecipientID,
	}
	if n.Payload != nil {
		if role, ok := n.Payload["role"].(string); ok {
			key.Role = role
		}
		_, key.HasLocation = n.Payload["location"]
		_, key.HasTimestamp = n.Payload["timestamp"]
	}
	return key
}

// Engine evaluates routing rules and user preferences to produce the final
// ordered channel list for a notification, and separately evaluates
// escalation rules against delivery outcomes. Rule sets are guarded by a
// single mutex; evaluation takes a snapshot so imports never block routing
// mid-decision.
type Engine struct {
	resolver StrategyResolver
	prefs    notification.PreferenceStore
	cache    *cache.TTLCache[cacheKey, []notification.Channel]
	log      *slog.Logger
	now      func() time.Time

	mu              sync.RWMutex
	rules           []Rule
	escalationRules []EscalationRule
	channelWeights  map[notification.Channel]int
	maxLevel        int
	requireMulti    bool
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	cacheTTL      time.Duration
	cacheCapacity int
	maxLevel      int
	requireMulti  bool
	log           *slog.Logger
	now           func() time.Time
	weights       map[notification.Channel]int
}

// WithCacheTTL overrides the routing cache TTL (default 300s).
func WithCacheTTL(ttl time.Duration) EngineOption {
	return func(o *engineOptions) {
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

// WithCacheCapacity overrides the routing cache capacity.
func WithCacheCapacity(n int) EngineOption {
	return func(o *engineOptions) {
		if n > 0 {
			o.cacheCapacity = n
		}
	}
}

// WithMaxEscalationLevel bounds how far a notification can escalate
// (default 3).
func WithMaxEscalationLevel(n int) EngineOption {
	return func(o *engineOptions) {
		if n >= 0 {
			o.maxLevel = n
		}
	}
}

// WithRequireMultipleChannels makes a partially delivered critical
// notification escalation-eligible, not just fully failed ones.
func WithRequireMultipleChannels(v bool) EngineOption {
	return func(o *engineOptions) { o.requireMulti = v }
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithClock injects the time source used by rule evaluation, quiet hours
// and the cache.
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithChannelWeights overrides the default channel ordering weights.
func WithChannelWeights(weights map[notification.Channel]int) EngineOption {
	return func(o *engineOptions) {
		if len(weights) > 0 {
			o.weights = weights
		}
	}
}

// NewEngine creates a routing engine. resolver and prefs are required.
func NewEngine(resolver StrategyResolver, prefs notification.PreferenceStore, opts ...EngineOption) (*Engine, error) {
	if resolver == nil {
		return nil, fmt.Errorf("%w: strategy resolver is required", ErrEngineConfig)
	}
	if prefs == nil {
		return nil, fmt.Errorf("%w: preference store is required", ErrEngineConfig)
	}

	o := engineOptions{
		cacheTTL:      defaultCacheTTL,
		cacheCapacity: defaultCacheCapacity,
		maxLevel:      defaultMaxEscalationLevel,
		log:           slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	weights := make(map[notification.Channel]int, len(notification.DefaultChannelWeights))
	for ch, w := range notification.DefaultChannelWeights {
		weights[ch] = w
	}
	for ch, w := range o.weights {
		weights[ch] = w
	}

	return &Engine{
		resolver:       resolver,
		prefs:          prefs,
		cache:          cache.NewTTLCache[cacheKey, []notification.Channel](o.cacheCapacity, o.cacheTTL, cache.WithClock(o.now)),
		log:            o.log,
		now:            o.now,
		channelWeights: weights,
		maxLevel:       o.maxLevel,
		requireMulti:   o.requireMulti,
	}, nil
}

// MaxEscalationLevel returns the configured escalation bound.
func (e *Engine) MaxEscalationLevel() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.maxLevel
}

// RequireMultipleChannels reports whether partially delivered critical
// notifications are escalation-eligible.
func (e *Engine) RequireMultipleChannels() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.requireMulti
}

// AddRule validates and installs a routing rule.
func (e *Engine) AddRule(r Rule) error {
	if err := validateRule(r); err != nil {
		return fmt.Errorf("%w: %w", notification.ErrConfiguration, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.ID == r.ID {
			return fmt.Errorf("%w: routing rule %q already exists", notification.ErrConfiguration, r.ID)
		}
	}
	// Copy-on-write: Route and EvaluateEscalation snapshot the slice header
	// under RLock and iterate after releasing it, so the installed slice is
	// never mutated in place.
	rules := append(make([]Rule, 0, len(e.rules)+1), e.rules...)
	rules = append(rules, r)
	sortRules(rules)
	e.rules = rules
	e.cache.Clear()
	return nil
}

// RemoveRule deletes a routing rule by ID. Removing an unknown rule is a
// no-op returning false.
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.rules {
		if r.ID == id {
			rules := append(make([]Rule, 0, len(e.rules)-1), e.rules[:i]...)
			e.rules = append(rules, e.rules[i+1:]...)
			e.cache.Clear()
			return true
		}
	}
	return false
}

// AddEscalationRule validates and installs an escalation rule.
func (e *Engine) AddEscalationRule(r EscalationRule) error {
	if err := validateEscalationRule(r); err != nil {
		return fmt.Errorf("%w: %w", notification.ErrConfiguration, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.escalationRules {
		if existing.ID == r.ID {
			return fmt.Errorf("%w: escalation rule %q already exists", notification.ErrConfiguration, r.ID)
		}
	}
	rules := append(make([]EscalationRule, 0, len(e.escalationRules)+1), e.escalationRules...)
	rules = append(rules, r)
	sortEscalationRules(rules)
	e.escalationRules = rules
	return nil
}

// RemoveEscalationRule deletes an escalation rule by ID.
func (e *Engine) RemoveEscalationRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.escalationRules {
		if r.ID == id {
			rules := append(make([]EscalationRule, 0, len(e.escalationRules)-1), e.escalationRules[:i]...)
			e.escalationRules = append(rules, e.escalationRules[i+1:]...)
			return true
		}
	}
	return false
}

// Route produces the final ordered channel list for a notification:
// cached decision if fresh, otherwise resolver candidates unioned with
// matching rule actions, filtered through the recipient's preferences and
// quiet hours, sorted by channel weight, then cached.
func (e *Engine) Route(ctx context.Context, n *notification.Notification) ([]notification.Channel, error) {
	key := keyFor(n)
	if cached, ok := e.cache.Get(key); ok {
		metrics.RecordCacheLookup(true)
		return append([]notification.Channel(nil), cached...), nil
	}
	metrics.RecordCacheLookup(false)
	metrics.RoutesComputed.Inc()

	plan, err := e.resolver.DetermineStrategy(ctx, n.RecipientID, n)
	if err != nil {
		return nil, err
	}

	candidates := make(map[notification.Channel]bool, len(plan.Channels))
	for _, ch := range plan.Channels {
		candidates[ch] = true
	}

	now := e.now()
	doc := n.Document()
	doc["time_since_creation_seconds"] = now.Sub(n.CreatedAt).Seconds()

	e.mu.RLock()
	rules := e.rules
	weights := e.channelWeights
	e.mu.RUnlock()

	deferToPrefs := false
	for _, rule := range rules {
		if !rule.Enabled || !rule.Matches(doc, now) {
			continue
		}
		if rule.Action.Kind == ActionUsePreferences {
			deferToPrefs = true
			continue
		}
		for _, ch := range rule.Action.Resolve(doc) {
			candidates[ch] = true
		}
	}

	prefs, err := e.prefs.Get(ctx, n.RecipientID)
	if err != nil {
		e.log.WarnContext(ctx, "preference lookup failed, using defaults",
			slog.String("recipient_id", n.RecipientID), slog.Any("error", err))
		prefs = notification.DefaultPreferences(n.RecipientID)
	}

	forceAll := plan.HasOverride(strategy.OverrideForceAllChannels)
	if deferToPrefs && !forceAll {
		for _, ch := range notification.AllChannels() {
			if prefs.ChannelEnabled(n.Category, ch) {
				candidates[ch] = true
			}
		}
	}

	selected := make([]notification.Channel, 0, len(candidates))
	for ch, keep := range candidates {
		if !keep {
			continue
		}
		if !forceAll && !prefs.ChannelEnabled(n.Category, ch) {
			continue
		}
		selected = append(selected, ch)
	}
	for _, ch := range prefs.ForceEnabled {
		if !candidates[ch] && ch.Valid() {
			selected = append(selected, ch)
		}
	}

	if prefs.QuietHours.Enabled && prefs.QuietHours.Contains(now) &&
		!plan.HasOverride(strategy.OverrideBypassQuietHours) {
		filtered := selected[:0]
		for _, ch := range selected {
			if ch != notification.ChannelRealtime {
				filtered = append(filtered, ch)
			}
		}
		selected = filtered
	}

	selected = notification.SortChannelsByWeight(selected, weights)
	e.cache.Set(key, append([]notification.Channel(nil), selected...))

	e.log.DebugContext(ctx, "route computed",
		slog.String("notification_id", n.ID),
		slog.String("recipient_id", n.RecipientID),
		slog.Any("channels", selected))
	return selected, nil
}

// InvalidateFor drops the cached routing decision for a notification so
// the next route after an escalation recomputes with any new overrides.
func (e *Engine) InvalidateFor(n *notification.Notification) {
	e.cache.Delete(keyFor(n))
}

// EvaluateEscalation matches enabled escalation rules against a
// notification's current document. On a match the target level is
// level+1 capped at the maximum; a notification already at the cap
// reports ShouldEscalate=false so the caller can surface
// ErrEscalationLimitReached.
func (e *Engine) EvaluateEscalation(ctx context.Context, n *notification.Notification) Evaluation {
	e.mu.RLock()
	rules := e.escalationRules
	maxLevel := e.maxLevel
	e.mu.RUnlock()

	now := e.now()
	doc := n.Document()
	doc["time_since_creation_seconds"] = now.Sub(n.CreatedAt).Seconds()
	if policy, ok := strategy.PolicyFor(n.Priority); ok {
		// Rules compare elapsed time against the priority's escalation
		// delay, e.g. time_since_creation_seconds > escalation_delay_seconds.
		doc["escalation_delay_seconds"] = policy.EscalationDelay.Seconds()
		doc["max_retries"] = policy.MaxRetries
	}

	eval := Evaluation{Level: n.EscalationLevel}
	seen := make(map[EscalationActionType]bool)
	for _, rule := range rules {
		if !rule.Enabled || !rule.Matches(doc, now) {
			continue
		}
		eval.MatchedRuleIDs = append(eval.MatchedRuleIDs, rule.ID)
		for _, action := range rule.Actions {
			if action.Type != EscalationIncludeRecipients && seen[action.Type] {
				continue
			}
			seen[action.Type] = true
			eval.Actions = append(eval.Actions, action)
		}
	}

	if len(eval.MatchedRuleIDs) == 0 {
		metrics.RecordEscalation("no_match")
		return eval
	}
	if n.EscalationLevel >= maxLevel {
		metrics.RecordEscalation("limit_reached")
		return eval
	}

	eval.ShouldEscalate = true
	eval.Level = n.EscalationLevel + 1
	if eval.Level > maxLevel {
		eval.Level = maxLevel
	}
	metrics.RecordEscalation("escalated")
	return eval
}

func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
}

func sortEscalationRules(rules []EscalationRule) {
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
}

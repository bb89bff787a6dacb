package routing

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// DocumentOptions are the engine tunables carried inside a configuration
// document.
type DocumentOptions struct {
	CacheTTLSeconds         int  `json:"cache_ttl_seconds,omitempty" yaml:"cache_ttl_seconds,omitempty"`
	MaxEscalationLevel      int  `json:"max_escalation_level" yaml:"max_escalation_level"`
	RequireMultipleChannels bool `json:"require_multiple_channels,omitempty" yaml:"require_multiple_channels,omitempty"`
}

// ConfigDocument is the whole-engine configuration as imported and
// exported by administrators. Export followed by Import yields rule sets
// deep-equal to the originals.
type ConfigDocument struct {
	RoutingRules      []Rule                       `json:"routing_rules" yaml:"routing_rules"`
	EscalationRules   []EscalationRule             `json:"escalation_rules" yaml:"escalation_rules"`
	ChannelPriorities map[notification.Channel]int `json:"channel_priorities,omitempty" yaml:"channel_priorities,omitempty"`
	Options           DocumentOptions              `json:"options" yaml:"options"`
}

// Export snapshots the engine's current configuration.
func (e *Engine) Export() ConfigDocument {
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc := ConfigDocument{
		RoutingRules:      append([]Rule(nil), e.rules...),
		EscalationRules:   append([]EscalationRule(nil), e.escalationRules...),
		ChannelPriorities: make(map[notification.Channel]int, len(e.channelWeights)),
		Options: DocumentOptions{
			CacheTTLSeconds:         int(e.cache.TTL() / time.Second),
			MaxEscalationLevel:      e.maxLevel,
			RequireMultipleChannels: e.requireMulti,
		},
	}
	for ch, w := range e.channelWeights {
		doc.ChannelPriorities[ch] = w
	}
	return doc
}

// Import validates the document in full and then replaces the engine's
// configuration atomically. Any malformed rule aborts the import and the
// previous configuration stays active; the error wraps
// notification.ErrConfiguration.
func (e *Engine) Import(doc ConfigDocument) error {
	seen := make(map[string]bool, len(doc.RoutingRules))
	for _, r := range doc.RoutingRules {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("%w: %w", notification.ErrConfiguration, err)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate routing rule id %q", notification.ErrConfiguration, r.ID)
		}
		seen[r.ID] = true
	}
	seenEsc := make(map[string]bool, len(doc.EscalationRules))
	for _, r := range doc.EscalationRules {
		if err := validateEscalationRule(r); err != nil {
			return fmt.Errorf("%w: %w", notification.ErrConfiguration, err)
		}
		if seenEsc[r.ID] {
			return fmt.Errorf("%w: duplicate escalation rule id %q", notification.ErrConfiguration, r.ID)
		}
		seenEsc[r.ID] = true
	}
	for ch := range doc.ChannelPriorities {
		if !ch.Valid() {
			return fmt.Errorf("%w: channel_priorities names unknown channel %q", notification.ErrConfiguration, ch)
		}
	}
	if doc.Options.MaxEscalationLevel < 0 {
		return fmt.Errorf("%w: max_escalation_level must not be negative", notification.ErrConfiguration)
	}

	rules := append([]Rule(nil), doc.RoutingRules...)
	sortRules(rules)
	escRules := append([]EscalationRule(nil), doc.EscalationRules...)
	sortEscalationRules(escRules)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.escalationRules = escRules
	if len(doc.ChannelPriorities) > 0 {
		weights := make(map[notification.Channel]int, len(doc.ChannelPriorities))
		for ch, w := range doc.ChannelPriorities {
			weights[ch] = w
		}
		e.channelWeights = weights
	}
	e.maxLevel = doc.Options.MaxEscalationLevel
	e.requireMulti = doc.Options.RequireMultipleChannels
	e.cache.Clear()
	return nil
}

// ExportJSON renders the configuration document as indented JSON.
func (e *Engine) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(e.Export(), "", "  ")
}

// ImportJSON decodes and imports a JSON configuration document.
func (e *Engine) ImportJSON(data []byte) error {
	var doc ConfigDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return e.Import(doc)
}

// ExportYAML renders the configuration document as YAML.
func (e *Engine) ExportYAML() ([]byte, error) {
	return yaml.Marshal(e.Export())
}

// ImportYAML decodes and imports a YAML configuration document.
func (e *Engine) ImportYAML(data []byte) error {
	var doc ConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return e.Import(doc)
}

package routing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// ActionKind discriminates the three routing rule action variants.
type ActionKind string

const (
	// ActionFixedChannels resolves to an explicit channel set.
	ActionFixedChannels ActionKind = "fixed_channels"

	// ActionConditionalChannels selects a channel set from a map keyed by
	// the value of a document field (typically severity).
	ActionConditionalChannels ActionKind = "conditional_channels"

	// ActionUsePreferences defers the decision entirely to the recipient's
	// preferences; the rule contributes no channels of its own.
	ActionUsePreferences ActionKind = "use_preferences"
)

// Action is a tagged variant: exactly one of the payload fields is set,
// according to Kind. Construct actions with FixedChannelSet,
// ConditionalChannelMap or DeferToPreferences.
type Action struct {
	Kind ActionKind `json:"kind" yaml:"kind"`

	// Channels is the payload for ActionFixedChannels.
	Channels []notification.Channel `json:"channels,omitempty" yaml:"channels,omitempty"`

	// KeyField and ChannelMap are the payload for ActionConditionalChannels.
	KeyField   string                            `json:"key_field,omitempty" yaml:"key_field,omitempty"`
	ChannelMap map[string][]notification.Channel `json:"channel_map,omitempty" yaml:"channel_map,omitempty"`
}

// FixedChannelSet builds an action that always yields the given channels.
func FixedChannelSet(channels ...notification.Channel) Action {
	return Action{Kind: ActionFixedChannels, Channels: channels}
}

// ConditionalChannelMap builds an action that yields the channel list keyed
// by the notification's value of keyField. No entry for the value means the
// rule contributes nothing.
func ConditionalChannelMap(keyField string, channelMap map[string][]notification.Channel) Action {
	return Action{Kind: ActionConditionalChannels, KeyField: keyField, ChannelMap: channelMap}
}

// DeferToPreferences builds the sentinel action that leaves channel
// selection to the recipient's preferences.
func DeferToPreferences() Action {
	return Action{Kind: ActionUsePreferences}
}

// Resolve returns the channels this action contributes for a document.
func (a Action) Resolve(doc map[string]any) []notification.Channel {
	switch a.Kind {
	case ActionFixedChannels:
		return a.Channels
	case ActionConditionalChannels:
		value, ok := notification.LookupField(doc, a.KeyField)
		if !ok {
			return nil
		}
		return a.ChannelMap[stringify(value)]
	}
	return nil
}

func (a Action) validate() error {
	switch a.Kind {
	case ActionFixedChannels:
		if len(a.Channels) == 0 {
			return fmt.Errorf("fixed_channels action requires at least one channel")
		}
		for _, ch := range a.Channels {
			if !ch.Valid() {
				return fmt.Errorf("unknown channel %q", ch)
			}
		}
	case ActionConditionalChannels:
		if a.KeyField == "" {
			return fmt.Errorf("conditional_channels action requires key_field")
		}
		if len(a.ChannelMap) == 0 {
			return fmt.Errorf("conditional_channels action requires a non-empty channel_map")
		}
		for key, channels := range a.ChannelMap {
			for _, ch := range channels {
				if !ch.Valid() {
					return fmt.Errorf("channel_map[%q]: unknown channel %q", key, ch)
				}
			}
		}
	case ActionUsePreferences:
		// no payload
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

// UnmarshalJSON enforces the tagged-variant shape at decode time so an
// imported document cannot smuggle a payload that disagrees with Kind.
func (a *Action) UnmarshalJSON(data []byte) error {
	type raw Action
	var decoded raw
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*a = Action(decoded)
	return a.validate()
}

// Rule is one routing rule: when every condition matches the notification
// document, the action's channels are unioned into the candidate set.
// Rules are evaluated in ascending Priority order.
type Rule struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled    bool        `json:"enabled" yaml:"enabled"`
	Priority   int         `json:"priority" yaml:"priority"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
	Action     Action      `json:"action" yaml:"action"`
}

// Matches reports whether every condition holds against the document.
// A rule with no conditions matches everything.
func (r Rule) Matches(doc map[string]any, now time.Time) bool {
	for _, cond := range r.Conditions {
		if !cond.Evaluate(doc, now) {
			return false
		}
	}
	return true
}

func validateRule(r Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	for i, cond := range r.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("rule %q: condition %d has no field", r.ID, i)
		}
		if !cond.Operator.Valid() {
			return fmt.Errorf("rule %q: condition %d has unknown operator %q", r.ID, i, cond.Operator)
		}
		if cond.Operator != OpExists && cond.Value == nil {
			return fmt.Errorf("rule %q: condition %d (%s) requires a value", r.ID, i, cond.Operator)
		}
	}
	if err := r.Action.validate(); err != nil {
		return fmt.Errorf("rule %q: %w", r.ID, err)
	}
	return nil
}

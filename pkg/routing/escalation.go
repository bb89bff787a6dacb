package routing

import (
	"fmt"
	"time"
)

// EscalationActionType is one step an escalation rule can trigger. Actions
// execute in the order the rule lists them.
type EscalationActionType string

const (
	EscalationIncreaseLevel        EscalationActionType = "increase_level"
	EscalationNotifyTeam           EscalationActionType = "notify_escalation_team"
	EscalationIncludeManager       EscalationActionType = "include_manager"
	EscalationIncludeRecipients    EscalationActionType = "include_additional_recipients"
	EscalationInvestigateDelivery  EscalationActionType = "investigate_delivery_failure"
	EscalationNotifyAdmin          EscalationActionType = "notify_admin"
)

func (t EscalationActionType) Valid() bool {
	switch t {
	case EscalationIncreaseLevel, EscalationNotifyTeam, EscalationIncludeManager,
		EscalationIncludeRecipients, EscalationInvestigateDelivery, EscalationNotifyAdmin:
		return true
	}
	return false
}

// EscalationAction is one ordered step of an escalation rule. Recipients is
// only meaningful for include_additional_recipients.
type EscalationAction struct {
	Type       EscalationActionType `json:"type" yaml:"type"`
	Recipients []string             `json:"recipients,omitempty" yaml:"recipients,omitempty"`
}

// EscalationRule decides whether a notification whose delivery failed or
// went unacknowledged should escalate, and what steps to take.
type EscalationRule struct {
	ID         string             `json:"id" yaml:"id"`
	Name       string             `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled    bool               `json:"enabled" yaml:"enabled"`
	Priority   int                `json:"priority" yaml:"priority"`
	Conditions []Condition        `json:"conditions" yaml:"conditions"`
	Actions    []EscalationAction `json:"actions" yaml:"actions"`
}

// Matches reports whether every condition holds against the document.
func (r EscalationRule) Matches(doc map[string]any, now time.Time) bool {
	for _, cond := range r.Conditions {
		if !cond.Evaluate(doc, now) {
			return false
		}
	}
	return true
}

// validateEscalationRule collects every missing or malformed field in one
// pass and reports them together, so an import error names everything wrong
// with the rule rather than the first problem only.
func validateEscalationRule(r EscalationRule) error {
	var problems []string

	if r.ID == "" {
		problems = append(problems, "id is required")
	}
	if len(r.Actions) == 0 {
		problems = append(problems, "at least one action is required")
	}
	for i, action := range r.Actions {
		if !action.Type.Valid() {
			problems = append(problems, fmt.Sprintf("action %d has unknown type %q", i, action.Type))
		}
		if action.Type == EscalationIncludeRecipients && len(action.Recipients) == 0 {
			problems = append(problems, fmt.Sprintf("action %d (include_additional_recipients) lists no recipients", i))
		}
	}
	for i, cond := range r.Conditions {
		if cond.Field == "" {
			problems = append(problems, fmt.Sprintf("condition %d has no field", i))
		}
		if !cond.Operator.Valid() {
			problems = append(problems, fmt.Sprintf("condition %d has unknown operator %q", i, cond.Operator))
		}
		if cond.Operator != OpExists && cond.Operator.Valid() && cond.Value == nil {
			problems = append(problems, fmt.Sprintf("condition %d (%s) requires a value", i, cond.Operator))
		}
	}

	if len(problems) > 0 {
		id := r.ID
		if id == "" {
			id = "<no id>"
		}
		return fmt.Errorf("escalation rule %s: %s", id, joinProblems(problems))
	}
	return nil
}

func joinProblems(problems []string) string {
	out := problems[0]
	for _, p := range problems[1:] {
		out += "; " + p
	}
	return out
}

// Evaluation is the outcome of evaluating the escalation rules for one
// notification.
type Evaluation struct {
	ShouldEscalate bool

	// Level is the level the notification should move to, already capped
	// at the configured maximum.
	Level int

	// Actions is the ordered union of the matched rules' actions, first
	// match first, with duplicate action types removed.
	Actions []EscalationAction

	// MatchedRuleIDs records which rules fired, for logging.
	MatchedRuleIDs []string
}

package routing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/alertkit/pkg/routing"
)

func TestConditionOperators(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"severity": "critical",
		"score":    float64(7),
		"tags":     []any{"auth", "login"},
		"message":  "failed login from 10.0.0.4",
		"payload": map[string]any{
			"location": map[string]any{"region": "eu-west-1"},
			"observed": "now",
		},
	}
	now := time.Date(2026, time.March, 3, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		cond routing.Condition
		want bool
	}{
		{"exists hit", routing.Condition{Field: "severity", Operator: routing.OpExists}, true},
		{"exists miss", routing.Condition{Field: "owner", Operator: routing.OpExists}, false},
		{"equals", routing.Condition{Field: "severity", Operator: routing.OpEquals, Value: "critical"}, true},
		{"equals numeric coercion", routing.Condition{Field: "score", Operator: routing.OpEquals, Value: 7}, true},
		{"not_equals", routing.Condition{Field: "severity", Operator: routing.OpNotEquals, Value: "low"}, true},
		{"not_equals missing field is false", routing.Condition{Field: "owner", Operator: routing.OpNotEquals, Value: "x"}, false},
		{"greater_than", routing.Condition{Field: "score", Operator: routing.OpGreaterThan, Value: 5}, true},
		{"greater_than false", routing.Condition{Field: "score", Operator: routing.OpGreaterThan, Value: 7}, false},
		{"greater_than_equal", routing.Condition{Field: "score", Operator: routing.OpGreaterThanEqual, Value: 7}, true},
		{"less_than", routing.Condition{Field: "score", Operator: routing.OpLessThan, Value: 10}, true},
		{"less_than_equal", routing.Condition{Field: "score", Operator: routing.OpLessThanEqual, Value: 7}, true},
		{"less_than_equal false", routing.Condition{Field: "score", Operator: routing.OpLessThanEqual, Value: 6}, false},
		{"includes slice member", routing.Condition{Field: "tags", Operator: routing.OpIncludes, Value: "auth"}, true},
		{"includes substring", routing.Condition{Field: "message", Operator: routing.OpIncludes, Value: "10.0.0.4"}, true},
		{"includes scalar in list", routing.Condition{Field: "severity", Operator: routing.OpIncludes, Value: []any{"high", "critical"}}, true},
		{"not_includes", routing.Condition{Field: "tags", Operator: routing.OpNotIncludes, Value: "billing"}, true},
		{"regex", routing.Condition{Field: "message", Operator: routing.OpRegex, Value: `\d+\.\d+\.\d+\.\d+`}, true},
		{"regex no match", routing.Condition{Field: "message", Operator: routing.OpRegex, Value: `^success`}, false},
		{"regex invalid pattern is false", routing.Condition{Field: "message", Operator: routing.OpRegex, Value: `(`}, false},
		{"dot path", routing.Condition{Field: "payload.location.region", Operator: routing.OpEquals, Value: "eu-west-1"}, true},
		{"dot path missing segment", routing.Condition{Field: "payload.location.zone", Operator: routing.OpExists}, false},
		{"in_time_range same day", routing.Condition{Field: "payload.observed", Operator: routing.OpInTimeRange, Value: "22:00-23:59"}, true},
		{"in_time_range overnight", routing.Condition{Field: "payload.observed", Operator: routing.OpInTimeRange, Value: "22:00-07:00"}, true},
		{"in_time_range outside", routing.Condition{Field: "payload.observed", Operator: routing.OpInTimeRange, Value: "08:00-17:00"}, false},
		{"in_time_range malformed window", routing.Condition{Field: "payload.observed", Operator: routing.OpInTimeRange, Value: "late"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cond.Evaluate(doc, now))
		})
	}
}

func TestOperatorValid(t *testing.T) {
	t.Parallel()

	for _, op := range []routing.Operator{
		routing.OpExists, routing.OpEquals, routing.OpNotEquals,
		routing.OpGreaterThan, routing.OpGreaterThanEqual,
		routing.OpLessThan, routing.OpLessThanEqual,
		routing.OpIncludes, routing.OpNotIncludes,
		routing.OpRegex, routing.OpInTimeRange,
	} {
		assert.True(t, op.Valid(), string(op))
	}
	assert.False(t, routing.Operator("between").Valid())
}

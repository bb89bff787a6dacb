package routing

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// Operator is a condition comparison operator.
type Operator string

const (
	OpExists           Operator = "exists"
	OpEquals           Operator = "equals"
	OpNotEquals        Operator = "not_equals"
	OpGreaterThan      Operator = "greater_than"
	OpGreaterThanEqual Operator = "greater_than_equal"
	OpLessThan         Operator = "less_than"
	OpLessThanEqual    Operator = "less_than_equal"
	OpIncludes         Operator = "includes"
	OpNotIncludes      Operator = "not_includes"
	OpRegex            Operator = "regex"
	OpInTimeRange      Operator = "in_time_range"
)

// Valid reports whether the operator is one of the supported set.
func (o Operator) Valid() bool {
	switch o {
	case OpExists, OpEquals, OpNotEquals,
		OpGreaterThan, OpGreaterThanEqual, OpLessThan, OpLessThanEqual,
		OpIncludes, OpNotIncludes, OpRegex, OpInTimeRange:
		return true
	}
	return false
}

// Condition is a single field test inside a routing or escalation rule.
// Field supports dot-path access into the notification document, e.g.
// "payload.location.region". A field missing from the document always
// evaluates to false, for every operator including not_equals.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// regexCache holds compiled patterns keyed by source. Rule sets are small
// and static between imports, so the cache is never pruned.
var regexCache sync.Map

func compiledRegex(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// Evaluate tests the condition against a notification document. now is the
// evaluation instant used by the in_time_range operator.
func (c Condition) Evaluate(doc map[string]any, now time.Time) bool {
	value, found := notification.LookupField(doc, c.Field)
	if !found {
		return false
	}

	switch c.Operator {
	case OpExists:
		return true
	case OpEquals:
		return looseEqual(value, c.Value)
	case OpNotEquals:
		return !looseEqual(value, c.Value)
	case OpGreaterThan:
		return compareNumbers(value, c.Value, func(a, b float64) bool { return a > b })
	case OpGreaterThanEqual:
		return compareNumbers(value, c.Value, func(a, b float64) bool { return a >= b })
	case OpLessThan:
		return compareNumbers(value, c.Value, func(a, b float64) bool { return a < b })
	case OpLessThanEqual:
		return compareNumbers(value, c.Value, func(a, b float64) bool { return a <= b })
	case OpIncludes:
		return includes(value, c.Value)
	case OpNotIncludes:
		return !includes(value, c.Value)
	case OpRegex:
		pattern, ok := c.Value.(string)
		if !ok {
			return false
		}
		re, err := compiledRegex(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(stringify(value))
	case OpInTimeRange:
		return inTimeRange(value, c.Value, now)
	}
	return false
}

// looseEqual compares with numeric coercion so a JSON-decoded float64 10
// equals an int 10, and otherwise falls back to string form comparison.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return stringify(a) == stringify(b)
}

func compareNumbers(a, b any, cmp func(a, b float64) bool) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	return cmp(af, bf)
}

// includes matches a membership test in either direction: a slice field
// containing the condition value, a string field containing a substring,
// or a scalar field being a member of a slice-typed condition value.
func includes(fieldValue, condValue any) bool {
	switch fv := fieldValue.(type) {
	case []any:
		for _, item := range fv {
			if looseEqual(item, condValue) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range fv {
			if looseEqual(item, condValue) {
				return true
			}
		}
		return false
	case string:
		if list, ok := condValue.([]any); ok {
			for _, item := range list {
				if looseEqual(fv, item) {
					return true
				}
			}
			return false
		}
		return strings.Contains(fv, stringify(condValue))
	}
	if list, ok := condValue.([]any); ok {
		for _, item := range list {
			if looseEqual(fieldValue, item) {
				return true
			}
		}
	}
	return false
}

// inTimeRange checks whether the field instant falls inside an "HH:MM-HH:MM"
// window in the evaluator's local day. Overnight windows (start > end) are
// supported. The field may be a time.Time or an RFC 3339 string; the string
// "now" (or an absent time field mapped to now by the caller) uses the
// evaluation instant.
func inTimeRange(fieldValue, condValue any, now time.Time) bool {
	window, ok := condValue.(string)
	if !ok {
		return false
	}
	parts := strings.SplitN(window, "-", 2)
	if len(parts) != 2 {
		return false
	}
	start, err := parseMinutes(parts[0])
	if err != nil {
		return false
	}
	end, err := parseMinutes(parts[1])
	if err != nil {
		return false
	}

	var at time.Time
	switch fv := fieldValue.(type) {
	case time.Time:
		at = fv
	case string:
		if fv == "now" {
			at = now
		} else if parsed, perr := time.Parse(time.RFC3339, fv); perr == nil {
			at = parsed
		} else {
			return false
		}
	default:
		return false
	}

	minutes := at.Hour()*60 + at.Minute()
	if start <= end {
		return minutes >= start && minutes < end
	}
	return minutes >= start || minutes < end
}

func parseMinutes(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	return h*60 + m, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

package notification

import (
	"context"
	"time"
)

// Frequency is the recipient's notification volume class.
type Frequency string

const (
	FrequencyHigh Frequency = "high"
	FrequencyLow  Frequency = "low"
)

// QuietHours is a per-recipient window during which low-urgency realtime
// delivery is suppressed. Start and End are minutes from midnight, which
// makes overnight windows (start > end) straightforward to evaluate.
type QuietHours struct {
	Enabled bool           `json:"enabled"`
	Start   int            `json:"start"`
	End     int            `json:"end"`
	Days    []time.Weekday `json:"days,omitempty"`
}

// Contains reports whether t falls inside the quiet window, handling both
// same-day (22:00-23:00) and overnight (22:00-07:00) ranges. An empty Days
// list means every day.
func (q QuietHours) Contains(t time.Time) bool {
	if !q.Enabled {
		return false
	}
	if len(q.Days) > 0 {
		found := false
		for _, d := range q.Days {
			if t.Weekday() == d {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	minute := t.Hour()*60 + t.Minute()
	if q.Start <= q.End {
		return minute >= q.Start && minute < q.End
	}
	// Overnight window wraps midnight.
	return minute >= q.Start || minute < q.End
}

// Preferences holds a recipient's delivery preferences. Channel filtering
// is per category; ForceEnabled and Disabled are explicit overrides that win
// over the category matrix.
type Preferences struct {
	RecipientID      string                        `json:"recipient_id"`
	CategoryChannels map[Category]map[Channel]bool `json:"category_channels,omitempty"`
	QuietHours       QuietHours                    `json:"quiet_hours"`
	Frequency        Frequency                     `json:"frequency,omitempty"`
	ForceEnabled     []Channel                     `json:"force_enabled,omitempty"`
	Disabled         []Channel                     `json:"disabled,omitempty"`
}

// ChannelEnabled reports whether the recipient accepts the channel for the
// category. Explicit overrides win; otherwise the category matrix decides;
// an unset matrix entry defaults to enabled.
func (p Preferences) ChannelEnabled(category Category, ch Channel) bool {
	for _, c := range p.Disabled {
		if c == ch {
			return false
		}
	}
	for _, c := range p.ForceEnabled {
		if c == ch {
			return true
		}
	}
	if channels, ok := p.CategoryChannels[category]; ok {
		if enabled, ok := channels[ch]; ok {
			return enabled
		}
	}
	return true
}

// PreferenceStore resolves recipient preferences. Implementations live
// outside this engine; DefaultPreferences is used when the store has no
// record for the recipient.
type PreferenceStore interface {
	Get(ctx context.Context, recipientID string) (Preferences, error)
}

// DefaultPreferences returns the permissive defaults applied when a
// recipient has no stored preferences.
func DefaultPreferences(recipientID string) Preferences {
	return Preferences{
		RecipientID: recipientID,
		Frequency:   FrequencyHigh,
	}
}

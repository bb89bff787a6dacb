package throttle

import (
	"context"
	"time"
)

// Result describes the outcome of a throttle check.
type Result struct {
	// Allowed indicates whether the notification may be queued.
	Allowed bool

	// Limit is the maximum number of notifications per window.
	Limit int

	// Remaining is how many more notifications fit in the current window.
	Remaining int

	// ResetAt is when the oldest recorded delivery falls out of the window.
	ResetAt time.Time
}

// Limiter caps notifications per recipient per time window.
type Limiter interface {
	// Allow checks and, when allowed, records one notification for the
	// recipient. A denied check records nothing.
	Allow(ctx context.Context, recipientID string) (*Result, error)

	// Status reports the current window state without recording anything.
	Status(ctx context.Context, recipientID string) (*Result, error)

	// Reset clears the window for the recipient.
	Reset(ctx context.Context, recipientID string) error
}

// Store is the sliding-window backing storage. Implementations must make
// RecordIfAllowed atomic: the check and the record happen under one writer.
type Store interface {
	// RecordIfAllowed atomically counts live timestamps for the key,
	// records a new one if the count is below limit, and returns whether it
	// recorded plus the resulting count.
	RecordIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (allowed bool, count int, err error)

	// CountInWindow returns the number of live timestamps for the key.
	CountInWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)

	// Delete clears all timestamps for the key.
	Delete(ctx context.Context, key string) error
}

// SlidingWindow is a per-recipient sliding window limiter. Defaults match
// the delivery engine contract: 10 notifications per 60 seconds.
type SlidingWindow struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// SlidingWindowOption configures a SlidingWindow.
type SlidingWindowOption func(*SlidingWindow)

// WithClock injects the time source, used by tests to control the window.
func WithClock(now func() time.Time) SlidingWindowOption {
	return func(sw *SlidingWindow) {
		if now != nil {
			sw.now = now
		}
	}
}

// NewSlidingWindow creates a sliding window limiter.
func NewSlidingWindow(store Store, limit int, window time.Duration, opts ...SlidingWindowOption) (*SlidingWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}

	sw := &SlidingWindow{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw, nil
}

// Allow checks and records one notification for the recipient.
func (sw *SlidingWindow) Allow(ctx context.Context, recipientID string) (*Result, error) {
	if recipientID == "" {
		return nil, ErrKeyRequired
	}

	now := sw.now()
	allowed, count, err := sw.store.RecordIfAllowed(ctx, recipientID, now, sw.window, sw.limit)
	if err != nil {
		return nil, err
	}

	return &Result{
		Allowed:   allowed,
		Limit:     sw.limit,
		Remaining: max(0, sw.limit-count),
		ResetAt:   now.Add(sw.window),
	}, nil
}

// Status reports the current window state without consuming a slot.
func (sw *SlidingWindow) Status(ctx context.Context, recipientID string) (*Result, error) {
	if recipientID == "" {
		return nil, ErrKeyRequired
	}

	now := sw.now()
	count, err := sw.store.CountInWindow(ctx, recipientID, now, sw.window)
	if err != nil {
		return nil, err
	}

	return &Result{
		Allowed:   count < sw.limit,
		Limit:     sw.limit,
		Remaining: max(0, sw.limit-count),
		ResetAt:   now.Add(sw.window),
	}, nil
}

// Reset clears the window for the recipient.
func (sw *SlidingWindow) Reset(ctx context.Context, recipientID string) error {
	if recipientID == "" {
		return ErrKeyRequired
	}
	return sw.store.Delete(ctx, recipientID)
}

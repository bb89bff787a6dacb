package throttle

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process sliding-window store. A single mutex makes
// the check-and-record atomic, which the throttle contract requires.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often fully-expired recipient windows are
// reaped in the background.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// NewMemoryStore creates an in-memory store with background cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		windows:         make(map[string][]time.Time),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) RecordIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := prune(s.windows[key], now.Add(-window))
	if len(live) >= limit {
		s.windows[key] = live
		return false, len(live), nil
	}

	live = append(live, now)
	s.windows[key] = live
	return true, len(live), nil
}

func (s *MemoryStore) CountInWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := prune(s.windows[key], now.Add(-window))
	s.windows[key] = live
	return len(live), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}

// Close stops the background cleanup goroutine.
func (s *MemoryStore) Close() {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup drops recipient windows whose newest timestamp is older than the
// cleanup interval. Per-call pruning keeps counts correct; this only bounds
// memory for recipients that went quiet.
func (s *MemoryStore) cleanup() {
	cutoff := time.Now().Add(-s.cleanupInterval)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timestamps := range s.windows {
		if len(timestamps) == 0 || timestamps[len(timestamps)-1].Before(cutoff) {
			delete(s.windows, key)
		}
	}
}

// prune returns the timestamps at or after cutoff. Timestamps are appended
// in order, so a single scan for the first live index suffices.
func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	first := len(timestamps)
	for i, ts := range timestamps {
		if !ts.Before(cutoff) {
			first = i
			break
		}
	}
	if first == 0 {
		return timestamps
	}
	live := make([]time.Time, len(timestamps)-first)
	copy(live, timestamps[first:])
	return live
}

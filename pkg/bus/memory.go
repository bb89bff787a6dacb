package bus

import (
	"context"
	"sync"
	"time"
)

// MemoryBus is an in-process Bus. Events are fanned out non-blocking;
// subscribers that fall behind lose events rather than stalling publishers.
type MemoryBus struct {
	subscribers map[chan Event]struct{}
	bufferSize  int
	closed      bool
	done        chan struct{}
	mu          sync.RWMutex
	cleanupWg   sync.WaitGroup
}

// MemoryBusOption configures a MemoryBus.
type MemoryBusOption func(*MemoryBus)

// WithBufferSize sets the per-subscriber buffer. Minimum 1.
func WithBufferSize(size int) MemoryBusOption {
	return func(b *MemoryBus) {
		b.bufferSize = max(size, 1)
	}
}

// NewMemoryBus creates an in-process event bus.
func NewMemoryBus(opts ...MemoryBusOption) *MemoryBus {
	b := &MemoryBus{
		subscribers: make(map[chan Event]struct{}),
		bufferSize:  64,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full: drop for that subscriber.
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	ch := make(chan Event, b.bufferSize)
	b.subscribers[ch] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			// Close must not wait for subscriber contexts that never cancel.
			select {
			case <-ctx.Done():
				b.unsubscribe(ch)
			case <-b.done:
			}
		}()
	}

	return ch, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	for ch := range b.subscribers {
		close(ch)
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *MemoryBus) unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

package push

import (
	"context"
	"sync"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// Subscriber receives realtime notifications for one recipient connection.
type Subscriber interface {
	// Receive returns the channel realtime notifications arrive on.
	Receive() <-chan notification.Notification

	// Close closes the subscriber. Idempotent.
	Close() error
}

type subscriber struct {
	ch     chan notification.Notification
	closed bool
	mu     sync.RWMutex
}

func newSubscriber(bufferSize int) *subscriber {
	return &subscriber{ch: make(chan notification.Notification, bufferSize)}
}

func (s *subscriber) Receive() <-chan notification.Notification {
	return s.ch
}

func (s *subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

func (s *subscriber) send(n notification.Notification) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- n:
		return true
	default:
		// Slow consumer: drop rather than block the dispatch path.
		return false
	}
}

// Hub fans realtime notifications out to per-recipient subscribers and
// tracks who is currently connected. It doubles as the presence check used
// by the priority resolver: a recipient with at least one live subscriber is
// reachable on the realtime channel.
type Hub struct {
	recipients map[string]map[*subscriber]struct{}
	bufferSize int
	closed     bool
	done       chan struct{}
	mu         sync.RWMutex
	cleanupWg  sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-subscriber channel buffer. Minimum 1 so sends
// stay non-blocking.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) {
		h.bufferSize = max(size, 1)
	}
}

// NewHub creates a realtime push hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		recipients: make(map[string]map[*subscriber]struct{}),
		bufferSize: 16,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a connection for the recipient. The subscription is
// cleaned up when ctx is cancelled or the subscriber is closed.
func (h *Hub) Subscribe(ctx context.Context, recipientID string) Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := newSubscriber(h.bufferSize)
	if h.closed {
		_ = sub.Close()
		return sub
	}

	subs, ok := h.recipients[recipientID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.recipients[recipientID] = subs
	}
	subs[sub] = struct{}{}

	if ctx.Done() != nil {
		h.cleanupWg.Add(1)
		go func() {
			defer h.cleanupWg.Done()
			// Hub shutdown must not wait for subscriber contexts that may
			// never cancel; Close already closes every subscriber.
			select {
			case <-ctx.Done():
				h.unsubscribe(recipientID, sub)
			case <-h.done:
			}
		}()
	}

	return sub
}

// Publish sends a notification to every live subscriber of its recipient.
// It returns ErrRecipientUnreachable when no subscriber accepted it, which
// the realtime channel adapter records as a failed delivery attempt.
func (h *Hub) Publish(ctx context.Context, n notification.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}

	delivered := false
	for sub := range h.recipients[n.RecipientID] {
		if sub.send(n) {
			delivered = true
		} else {
			// Drop dead subscribers off the dispatch path.
			go h.unsubscribe(n.RecipientID, sub)
		}
	}

	if !delivered {
		return ErrRecipientUnreachable
	}
	return nil
}

// Reachable reports whether the recipient has at least one live connection.
func (h *Hub) Reachable(ctx context.Context, recipientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return !h.closed && len(h.recipients[recipientID]) > 0
}

// Close shuts down the hub and closes all subscribers.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.done)

	for _, subs := range h.recipients {
		for sub := range subs {
			_ = sub.Close()
		}
	}
	clear(h.recipients)
	h.mu.Unlock()

	h.cleanupWg.Wait()
	return nil
}

func (h *Hub) unsubscribe(recipientID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.recipients[recipientID]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.recipients, recipientID)
			}
			_ = sub.Close()
		}
	}
}

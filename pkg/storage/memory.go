package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// MemoryStore is an in-memory Store implementation for development and
// tests. Values are copied on the way in and out so callers never share
// state with the store.
type MemoryStore struct {
	notifications map[string]notification.Notification
	mu            sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notifications: make(map[string]notification.Notification),
	}
}

func (s *MemoryStore) Create(ctx context.Context, n notification.Notification) error {
	if n.ID == "" {
		return &notification.ValidationError{Field: "id", Reason: "is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notifications[n.ID]; exists {
		return ErrAlreadyExists
	}
	s.notifications[n.ID] = copyNotification(n)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, notification.ErrNotFound
	}
	out := copyNotification(n)
	return &out, nil
}

func (s *MemoryStore) Update(ctx context.Context, n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[n.ID]; !ok {
		return notification.ErrNotFound
	}
	s.notifications[n.ID] = copyNotification(n)
	return nil
}

func (s *MemoryStore) ListUnacknowledged(ctx context.Context, statuses []notification.Status, createdBefore time.Time) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[notification.Status]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var out []notification.Notification
	for _, n := range s.notifications {
		if n.Acknowledged || !wanted[n.Status] || !n.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, copyNotification(n))
	}
	return out, nil
}

func (s *MemoryStore) Acknowledge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.Acknowledged = true
	s.notifications[id] = n
	return nil
}

func copyNotification(n notification.Notification) notification.Notification {
	out := n
	if n.Attempts != nil {
		out.Attempts = make([]notification.Attempt, len(n.Attempts))
		copy(out.Attempts, n.Attempts)
	}
	if n.Payload != nil {
		out.Payload = make(map[string]any, len(n.Payload))
		for k, v := range n.Payload {
			out.Payload[k] = v
		}
	}
	return out
}

package delivery

import (
	"sync"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// item is one queued notification with its routed channels, computed at
// enqueue time so the scheduler never blocks on routing.
type item struct {
	n        *notification.Notification
	channels []notification.Channel
}

// boundedQueue is a FIFO with priority-aware overflow: when full, the
// oldest entry of the lowest priority present is displaced, but only if
// the incoming notification outranks it.
type boundedQueue struct {
	mu       sync.Mutex
	items    []item
	capacity int
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{capacity: capacity}
}

// push appends an item. When the queue is full it evicts the oldest entry
// among those with the lowest priority weight, provided the incoming item
// strictly outranks it; otherwise the incoming item is rejected. The
// evicted item, if any, is returned so the caller can record its fate.
func (q *boundedQueue) push(it item) (evicted *item, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < q.capacity {
		q.items = append(q.items, it)
		return nil, true
	}

	lowest := -1
	for i, queued := range q.items {
		if lowest == -1 || queued.n.Priority.Weight() < q.items[lowest].n.Priority.Weight() {
			lowest = i
		}
	}
	if lowest == -1 || q.items[lowest].n.Priority.Weight() >= it.n.Priority.Weight() {
		return nil, false
	}

	victim := q.items[lowest]
	q.items = append(q.items[:lowest], q.items[lowest+1:]...)
	q.items = append(q.items, it)
	return &victim, true
}

// pop removes and returns the head of the queue.
func (q *boundedQueue) pop() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

func (q *boundedQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

package notify

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue used by tests and the local simulator.
type MemoryQueue struct {
	mu   sync.Mutex
	msgs []Message
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg Message) error {
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

// Drain returns all queued messages and empties the queue.
func (q *MemoryQueue) Drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.msgs
	q.msgs = nil
	return out
}

// Len reports the number of queued messages.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

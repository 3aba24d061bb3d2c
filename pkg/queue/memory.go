package queue

import (
	"context"
	"strconv"
	"sync"
)

// MemoryQueue is an in-process Queue for tests and local development.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []Message
	inflight map[string]Message
	seq      int
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{inflight: make(map[string]Message)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	q.pending = append(q.pending, Message{
		Payload: payload,
		Receipt: "msg-" + strconv.Itoa(q.seq),
	})

	return nil
}

func (q *MemoryQueue) Receive(_ context.Context, max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if max > MaxReceiveBatch {
		max = MaxReceiveBatch
	}

	if max > len(q.pending) {
		max = len(q.pending)
	}

	received := q.pending[:max]
	q.pending = q.pending[max:]

	for _, msg := range received {
		q.inflight[msg.Receipt] = msg
	}

	return received, nil
}

func (q *MemoryQueue) Delete(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inflight, msg.Receipt)

	return nil
}

func (q *MemoryQueue) Close() error {
	return nil
}

// Pending reports how many messages remain undelivered. Test helper.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

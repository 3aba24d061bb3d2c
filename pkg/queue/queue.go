// Package queue provides the durable work queue feeding the admission
// scheduler. Delivery is unordered and at-least-once up to the Delete call;
// deleting a received message is the atomic claim.
package queue

import "context"

// MaxReceiveBatch is the receive ceiling of the queue dependency; a single
// Receive never returns more messages than this.
const MaxReceiveBatch = 10

// Message is one received queue entry. The receipt is implementation-private
// and consumed by Delete.
type Message struct {
	Payload []byte
	Receipt string
}

// Queue is the work-queue contract.
type Queue interface {
	// Enqueue appends a message.
	Enqueue(ctx context.Context, payload []byte) error

	// Receive returns up to min(max, MaxReceiveBatch) messages. Received
	// messages stay claimable until deleted; a crashed consumer's messages
	// are redelivered by the broker's own semantics.
	Receive(ctx context.Context, max int) ([]Message, error)

	// Delete removes a received message permanently.
	Delete(ctx context.Context, msg Message) error

	Close() error
}

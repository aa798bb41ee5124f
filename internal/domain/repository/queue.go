package repository

import (
	"context"
)

// Delivery is a single client request received from the message broker.
type Delivery interface {
	// Body returns the raw request message.
	Body() []byte

	// CorrelationID returns the broker-level correlation identity, if any.
	CorrelationID() string

	// ReplyTo returns the reply destination, or "" when the requester expects no reply.
	ReplyTo() string

	// Reply publishes body to the requester and acknowledges the delivery.
	// Without a reply destination it only acknowledges.
	// Calling Reply or Reject more than once is an error.
	Reply(ctx context.Context, body []byte) error

	// Reject discards the delivery without a reply and without requeueing it.
	Reject() error
}

// RequestQueue defines the interface for consuming client requests from a message queue.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type RequestQueue interface {
	// ConsumeRequests starts consuming requests from the queue.
	// The handler is called for each received delivery and owns its acknowledgement.
	// Blocks until ctx is cancelled or the broker closes the channel.
	ConsumeRequests(ctx context.Context, handler func(d Delivery)) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}

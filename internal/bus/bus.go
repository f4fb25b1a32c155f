// Package bus declares the Event Bus Adapter boundary of spec.md §4.2: a
// transport-agnostic Publish/Subscribe surface that the Outbox Publisher,
// Consumer Runtime, and Retry Pipeline all depend on, with the concrete
// RabbitMQ implementation living in bus/rabbitmq. Grounded on
// event-service/internal/infrastructure/messaging (publisher/subscriber
// split behind small interfaces) rather than handing raw *amqp.Channel to
// callers.
package bus

import "context"

// Message is what a Handler receives. Bus implementations set Topic from
// the routing key, PartitionKey from the "x-partition-key" header, and copy
// the transport's message headers into Headers as strings, so the Consumer
// Runtime can build an eventId without knowing the transport.
type Message struct {
	Topic        string
	PartitionKey string
	Body         []byte
	Headers      map[string]string

	// Ack/Nack let the Consumer Runtime control transport-level
	// acknowledgement explicitly, instead of the Subscribe loop doing it
	// implicitly. Consumer Runtime always acks per spec.md §4.3 step 5
	// ("ack regardless of handler outcome") and instead republishes
	// failures to a retry topic.
	Ack  func() error
	Nack func(requeue bool) error
}

// Handler processes one Message. Returning an error does not requeue the
// message on the original topic; the Consumer Runtime decides what to do
// with a failed handler (spec.md §4.3 step 4: publish to retry channel).
type Handler func(ctx context.Context, msg Message) error

// Publisher is the write side of the bus.
type Publisher interface {
	// Publish sends payload to topic, using key for partition/ordering
	// semantics (spec.md §5: "events for the same aggregate are not
	// processed out of order"). Implementations must use publisher
	// confirms and treat an unroutable message as an error, not a
	// silent drop (spec.md §4.2).
	Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error
	Close() error
}

// Subscriber is the read side of the bus.
type Subscriber interface {
	// Subscribe registers handler for topic under group with bounded
	// concurrency. Subscription is explicit and performed at startup,
	// never inferred from payload shape (spec.md §9 "Consumer interface
	// is effectively untyped").
	Subscribe(ctx context.Context, topic, group string, concurrency int, handler Handler) error
	Close() error
}

// Bus composes both sides; most composition roots only need one object.
type Bus interface {
	Publisher
	Subscriber
}

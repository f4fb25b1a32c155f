package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/jobcore/internal/bus"
	"github.com/baechuer/jobcore/internal/logger"
)

// Consumer implements bus.Subscriber with a reconnect-with-backoff
// supervisor loop, grounded on email-service's
// internal/infrastructure/messaging/rabbitmq/consumer.go. Unlike that
// teacher file, routing/decoding is left entirely to bus.Handler: this
// consumer only owns transport concerns (connect, declare, consume,
// ack/nack), matching spec.md §9's direction to keep payload-shape
// decisions out of the transport layer.
type Consumer struct {
	url      string
	exchange string

	mu      sync.Mutex
	closed  bool
	conns   []*amqp.Connection
}

func NewConsumer(url, exchange string) *Consumer {
	return &Consumer{url: url, exchange: exchange}
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, conn := range c.conns {
		_ = conn.Close()
	}
	c.conns = nil
	return nil
}

func (c *Consumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Subscribe binds a durable queue named "<topic>.<group>" to topic and
// handles each delivery in its own goroutine, with at most concurrency
// handlers running at once. Subscribe itself never acks or nacks and
// ignores the handler's returned error: acknowledgement is left to the
// handler through Message.Ack/Nack, and the Consumer Runtime always acks
// once a terminal decision (handled ok, or routed to the retry topic) has
// been made, so a handler error never triggers an AMQP-level requeue onto
// the same queue.
func (c *Consumer) Subscribe(ctx context.Context, topic, group string, concurrency int, handler bus.Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	queue := topic + "." + group
	log := logger.Component("rabbitmq_consumer").With().Str("topic", topic).Str("group", group).Logger()

	go func() {
		backoff := time.Second
		const maxBackoff = 30 * time.Second

		for {
			if c.isClosed() {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn, ch, deliveries, err := c.connectAndConsume(queue, topic)
			if err != nil {
				log.Error().Err(err).Dur("backoff", backoff).Msg("connect failed; retrying")
				if !sleepOrDone(ctx, backoff) {
					return
				}
				backoff = minDur(backoff*2, maxBackoff)
				continue
			}
			backoff = time.Second

			c.mu.Lock()
			c.conns = append(c.conns, conn)
			c.mu.Unlock()

			if err := ch.Qos(concurrency, 0, false); err != nil {
				log.Error().Err(err).Msg("qos failed")
			}

			c.consumeLoop(ctx, ch, deliveries, concurrency, handler, log)

			_ = conn.Close()
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !sleepOrDone(ctx, backoff) {
				return
			}
		}
	}()

	return nil
}

func (c *Consumer) connectAndConsume(queue, topic string) (*amqp.Connection, *amqp.Channel, <-chan amqp.Delivery, error) {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, nil, fmt.Errorf("channel: %w", err)
	}
	if err := declareTopology(ch, c.exchange); err != nil {
		_ = conn.Close()
		return nil, nil, nil, fmt.Errorf("topology: %w", err)
	}
	if err := declareWorkQueue(ch, c.exchange, queue, []string{topic}); err != nil {
		_ = conn.Close()
		return nil, nil, nil, fmt.Errorf("work queue: %w", err)
	}
	dlv, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, nil, nil, fmt.Errorf("consume: %w", err)
	}
	return conn, ch, dlv, nil
}

func (c *Consumer) consumeLoop(ctx context.Context, ch *amqp.Channel, deliveries <-chan amqp.Delivery, concurrency int, handler bus.Handler, log zerolog.Logger) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case d, ok := <-deliveries:
			if !ok {
				wg.Wait()
				return
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				c.handleDelivery(ctx, d, handler)
			}(d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler bus.Handler) {
	headers := map[string]string{}
	for k, v := range d.Headers {
		headers[k] = fmt.Sprintf("%v", v)
	}
	msg := bus.Message{
		Topic:        d.RoutingKey,
		PartitionKey: headers["x-partition-key"],
		Body:         d.Body,
		Headers:      headers,
		Ack:          func() error { return d.Ack(false) },
		Nack:         func(requeue bool) error { return d.Nack(false, requeue) },
	}
	_ = handler(ctx, msg)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// Package rabbitmq is the concrete bus.Bus implementation backed by
// amqp091-go. Grounded on event-service's
// internal/infrastructure/messaging/rabbitmq/publisher.go (confirms +
// mandatory returns) and email-service's
// internal/infrastructure/messaging/rabbitmq/consumer.go (per-tier retry
// queues via dead-letter exchanges, acting as a delay-queue substitute
// since RabbitMQ has no native delayed delivery without a plugin).
package rabbitmq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Retry tiers of spec.md §4.4: short, medium, long backoff buckets
// implemented as TTL'd queues whose dead-letter exchange routes back to
// the main exchange once the TTL expires.
const (
	Tier10s = "10s"
	Tier1m  = "1m"
	Tier10m = "10m"

	dlxPrefix = "jobcore.retry."
)

func retryExchange(tier string) string { return dlxPrefix + tier }

func retryQueue(exchange, tier string) string { return exchange + ".retry." + tier }

func dlqQueue(exchange string) string { return exchange + ".dlq" }

func dlxFinal(exchange string) string { return exchange + ".dlx.final" }

// NextTier implements the attempt->tier mapping of spec.md §4.4's
// escalating backoff (first retry fast, later retries slower).
func NextTier(attempt int) string {
	switch {
	case attempt <= 1:
		return Tier10s
	case attempt == 2:
		return Tier1m
	default:
		return Tier10m
	}
}

func tierTTL(tier string) time.Duration {
	switch tier {
	case Tier10s:
		return 10 * time.Second
	case Tier1m:
		return time.Minute
	default:
		return 10 * time.Minute
	}
}

// declareTopology declares the main topic exchange, the final DLQ, and the
// three retry-tier exchanges/queues, wiring each retry queue's dead-letter
// back to the main exchange so a TTL expiry re-delivers the message for
// another attempt.
func declareTopology(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	dlxF := dlxFinal(exchange)
	if err := ch.ExchangeDeclare(dlxF, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	dlq := dlqQueue(exchange)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(dlq, "#", dlxF, false, nil); err != nil {
		return err
	}

	for _, tier := range []string{Tier10s, Tier1m, Tier10m} {
		ex := retryExchange(tier)
		if err := ch.ExchangeDeclare(ex, "topic", true, false, false, false, nil); err != nil {
			return err
		}
		q := retryQueue(exchange, tier)
		args := amqp.Table{
			"x-message-ttl":          int64(tierTTL(tier) / time.Millisecond),
			"x-dead-letter-exchange": exchange,
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, args); err != nil {
			return err
		}
		if err := ch.QueueBind(q, "#", ex, false, nil); err != nil {
			return err
		}
	}
	return nil
}

func declareWorkQueue(ch *amqp.Channel, exchange, queue string, bindKeys []string) error {
	args := amqp.Table{
		"x-dead-letter-exchange": dlxFinal(exchange),
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return err
	}
	for _, key := range bindKeys {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}

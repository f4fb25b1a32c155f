package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishConfirmWait = 150 * time.Millisecond

// Publisher implements bus.Publisher with confirms + mandatory returns,
// grounded on event-service's rabbitmq/publisher.go. A NO_ROUTE return is
// treated as a publish failure rather than silently swallowed, since an
// outbox event that nobody routed is exactly the kind of bug the Outbox
// Publisher exists to catch.
type Publisher struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq: missing url")
	}
	p := &Publisher{url: url, exchange: exchange}
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	if err := declareTopology(ch, p.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare topology: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

// Publish implements bus.Publisher.Publish: the routing key is the topic,
// the caller's headers are copied onto the AMQP message, and a non-empty
// key is added as the "x-partition-key" header.
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if topic == "" {
		return errors.New("rabbitmq: missing topic")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.conn == nil || p.conn.IsClosed() {
		_ = p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return fmt.Errorf("rabbitmq reconnect: %w", err)
		}
	}

	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}
	if key != "" {
		table["x-partition-key"] = key
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
	}

	if err := p.ch.PublishWithContext(ctx, p.exchange, topic, true, false, pub); err != nil {
		return err
	}

	timer := time.NewTimer(publishConfirmWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ret := <-p.returnCh:
			return fmt.Errorf("rabbitmq NO_ROUTE: %d %s", ret.ReplyCode, ret.ReplyText)
		case conf := <-p.confirmCh:
			if !conf.Ack {
				return errors.New("rabbitmq publish not acked")
			}
			return nil
		case <-timer.C:
			return nil
		}
	}
}

func (p *Publisher) closeLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

// PublishRetry republishes payload to the exchange of the caller-chosen
// retry tier, stamping attempt and reason as message headers.
func (p *Publisher) PublishRetry(ctx context.Context, tier, topic string, payload []byte, attempt int, reason string) error {
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil {
		return errors.New("rabbitmq: not connected")
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers: amqp.Table{
			"x-attempt":        attempt,
			"x-retry-reason":   reason,
			"x-original-topic": topic,
		},
	}
	return ch.PublishWithContext(ctx, retryExchange(tier), topic, false, false, pub)
}

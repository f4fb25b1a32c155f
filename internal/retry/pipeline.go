package retry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/baechuer/jobcore/internal/bus"
	"github.com/baechuer/jobcore/internal/events"
	"github.com/baechuer/jobcore/internal/logger"
	"github.com/baechuer/jobcore/internal/metrics"
)

// ChannelHandler re-invokes the original channel's processing logic for a
// retried message. Implementations live alongside each channel consumer
// (e.g. notification dispatch) and are looked up by channel name.
type ChannelHandler func(ctx context.Context, channel string, body []byte) error

// Pipeline subscribes to the retry topic with single (or otherwise low)
// concurrency, per spec.md §4.4: "retry consumption itself runs at low
// concurrency to cap the amplification a retry storm can cause".
type Pipeline struct {
	subscriber bus.Subscriber
	publisher  bus.Publisher
	handlers   map[string]ChannelHandler
	cfg        BackoffConfig
	retryTopic string
	group      string
}

func NewPipeline(subscriber bus.Subscriber, publisher bus.Publisher, cfg BackoffConfig, retryTopic, group string) *Pipeline {
	return &Pipeline{
		subscriber: subscriber,
		publisher:  publisher,
		handlers:   make(map[string]ChannelHandler),
		cfg:        cfg,
		retryTopic: retryTopic,
		group:      group,
	}
}

// RegisterChannel attaches the re-invocation logic for one channel name.
func (p *Pipeline) RegisterChannel(channel string, handler ChannelHandler) {
	p.handlers[channel] = handler
}

// Run starts the single-concurrency retry consumer loop.
func (p *Pipeline) Run(ctx context.Context) error {
	const concurrency = 1
	return p.subscriber.Subscribe(ctx, p.retryTopic, p.group, concurrency, func(ctx context.Context, msg bus.Message) error {
		p.handleOne(ctx, msg)
		return nil
	})
}

// handleOne decodes the tagged-union RetryEnvelope of spec.md §6 from the
// message body (spec.md §9: decode at the bus boundary, not ad hoc
// headers), sleeps for the delay the envelope was stamped with at
// publish time, then re-invokes the original channel's handler.
func (p *Pipeline) handleOne(ctx context.Context, msg bus.Message) {
	log := logger.Component("retry_pipeline")

	var env events.RetryEnvelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		log.Warn().Err(err).Msg("malformed retry envelope; dropping")
		_ = msg.Ack()
		return
	}
	channel := env.RetryChannel
	attempt := env.RetryAttempt
	if attempt < 1 {
		attempt = 1
	}

	handler, ok := p.handlers[channel]
	if !ok {
		log.Warn().Str("channel", channel).Msg("no retry handler registered; dropping")
		_ = msg.Ack()
		return
	}

	delay := time.Duration(env.RetryDelayMs) * time.Millisecond
	if !sleepOrDone(ctx, delay) {
		_ = msg.Ack()
		return
	}

	err := handler(ctx, channel, env.Original)
	if err == nil {
		metrics.RetriesSuccess.WithLabelValues(channel).Inc()
		_ = msg.Ack()
		return
	}

	if attempt >= p.cfg.MaxAttempts {
		metrics.RetriesFailure.WithLabelValues(channel).Inc()
		metrics.DeadLetter.WithLabelValues(channel).Inc()
		log.Error().Err(err).Str("channel", channel).Int("attempt", attempt).Msg("retry attempts exhausted; dead-lettered")
		_ = msg.Ack()
		return
	}

	metrics.RetriesFailure.WithLabelValues(channel).Inc()
	nextAttempt := attempt + 1
	nextDelay := Delay(p.cfg, nextAttempt)
	next := events.RetryEnvelope{
		Original:         env.Original,
		EventType:        env.EventType,
		RetryAttempt:     nextAttempt,
		RetryChannel:     channel,
		RetryDelayMs:     nextDelay.Milliseconds(),
		RetryReason:      err.Error(),
		RetryScheduledAt: events.NowMillis(time.Now().Add(nextDelay)),
		RecipientUserID:  env.RecipientUserID,
	}
	payload, marshalErr := json.Marshal(next)
	if marshalErr != nil {
		log.Error().Err(marshalErr).Msg("failed to encode next retry envelope; acking to avoid poison loop")
		_ = msg.Ack()
		return
	}
	if pubErr := p.publisher.Publish(ctx, p.retryTopic, next.PartitionKey(), payload, nil); pubErr != nil {
		log.Error().Err(pubErr).Msg("failed to republish retry; acking to avoid poison loop")
	}
	_ = msg.Ack()
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

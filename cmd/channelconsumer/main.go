// Command channelconsumer runs the Consumer Runtime of spec.md §4.3: one
// process subscribing every (topic, group) binding named in spec.md §4.2,
// each behind its own idempotency-gated worker pool.
package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/jobcore/internal/bus"
	"github.com/baechuer/jobcore/internal/bus/rabbitmq"
	"github.com/baechuer/jobcore/internal/config"
	"github.com/baechuer/jobcore/internal/consumer"
	"github.com/baechuer/jobcore/internal/events"
	"github.com/baechuer/jobcore/internal/idempotency"
	"github.com/baechuer/jobcore/internal/logger"
	"github.com/baechuer/jobcore/internal/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("config load failed")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Component("channelconsumer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid redis url")
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	idemStore := idempotency.NewRedisStore(rdb)

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq publisher connect failed")
	}
	defer pub.Close()

	sub := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange)
	defer sub.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	processed := idempotency.NewProcessedMessages(pool)

	backoffCfg := retry.BackoffConfig{
		Initial:     cfg.RetryInitialInterval,
		Multiplier:  cfg.RetryMultiplier,
		Max:         cfg.RetryMaxInterval,
		MaxAttempts: cfg.RetryMaxAttempts,
	}
	runtime := consumer.NewRuntime(sub, pub, idemStore, events.TopicNotificationRetry, backoffCfg)

	// notification dispatch binding: consumes application lifecycle
	// events and hands them to the downstream notification fan-out. The
	// handler body stands in for the actual email/sms/push dispatch,
	// which is out of scope per spec.md §1 ("What sits past the bus
	// boundary is a black box"); what isn't out of scope is that the
	// dispatch record itself is a DB write, so it goes through the
	// transactional processed_messages fence instead of the Redis dedup
	// gate the Consumer Runtime already applied upstream — belt and
	// braces against redelivery during the fan-out's own transaction.
	notifyHandler := func(ctx context.Context, channel, eventType string, msg bus.Message) error {
		var ev events.ApplicationEvent
		if err := json.Unmarshal(msg.Body, &ev); err != nil {
			// malformed payload: nothing to retry meaningfully, log and
			// treat as handled so it doesn't loop through the retry tiers
			// forever.
			log.Warn().Err(err).Str("topic", msg.Topic).Msg("dropping malformed application event")
			return nil
		}

		id := consumer.EventID(channel, eventType, msg)
		dispatched, err := processed.ProcessOnce(ctx, id, "notification_dispatch", func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `
				INSERT INTO notification_log (message_id, channel, event_type, application_id, user_id, dispatched_at)
				VALUES ($1, $2, $3, $4, $5, now())
			`, id, channel, eventType, ev.ApplicationID, ev.UserID)
			return err
		})
		if err != nil {
			return err
		}
		if !dispatched {
			log.Info().Str("event_id", id).Msg("notification already dispatched; skipping")
			return nil
		}

		log.Info().
			Str("channel", channel).
			Str("event_type", eventType).
			Int64("application_id", ev.ApplicationID).
			Int64("user_id", ev.UserID).
			Msg("dispatching notification")
		return nil
	}

	eventTypeOf := func(msg bus.Message) string {
		var probe struct {
			EventType string `json:"eventType"`
		}
		_ = json.Unmarshal(msg.Body, &probe)
		return probe.EventType
	}

	bindings := []consumer.Binding{
		{Topic: events.TopicApplicationCreated, Group: "notification", Channel: "notification", Concurrency: 8, IdemTTL: cfg.IdempotencyTTL},
		{Topic: events.TopicJobLifecycle, Group: "notification", Channel: "notification", Concurrency: 4, IdemTTL: cfg.IdempotencyTTL},
	}

	for _, b := range bindings {
		b := b
		go func() {
			log.Info().Str("topic", b.Topic).Str("group", b.Group).Msg("subscribing")
			if err := runtime.Register(ctx, b, eventTypeOf, notifyHandler); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("topic", b.Topic).Msg("binding stopped unexpectedly")
			}
		}()
	}

	log.Info().Msg("channel consumer starting")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}

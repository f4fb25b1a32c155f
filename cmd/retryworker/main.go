// Command retryworker runs the Retry/DLQ Pipeline of spec.md §4.4 as a
// dedicated low-concurrency process, isolated from the main consumer
// fleet so a retry storm cannot starve first-attempt processing.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/baechuer/jobcore/internal/bus/rabbitmq"
	"github.com/baechuer/jobcore/internal/config"
	"github.com/baechuer/jobcore/internal/events"
	"github.com/baechuer/jobcore/internal/logger"
	"github.com/baechuer/jobcore/internal/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("config load failed")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Component("retryworker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq publisher connect failed")
	}
	defer pub.Close()

	sub := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange)
	defer sub.Close()

	backoffCfg := retry.BackoffConfig{
		Initial:     cfg.RetryInitialInterval,
		Multiplier:  cfg.RetryMultiplier,
		Max:         cfg.RetryMaxInterval,
		MaxAttempts: cfg.RetryMaxAttempts,
	}
	pipeline := retry.NewPipeline(sub, pub, backoffCfg, events.TopicNotificationRetry, "retryworker")

	// Channel re-invocation handlers are registered per channel the
	// notification fan-out supports; a real deployment wires one per
	// downstream channel (email, sms, push). Left unregistered channels
	// are logged and acked rather than looping forever.
	pipeline.RegisterChannel("notification", func(ctx context.Context, channel string, body []byte) error {
		log.Info().Str("channel", channel).Int("bytes", len(body)).Msg("retry re-invocation (no-op channel handler wired yet)")
		return nil
	})

	log.Info().Msg("retry pipeline starting")
	if err := pipeline.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("retry pipeline stopped unexpectedly")
	}
	<-ctx.Done()
}

// Command outbox-publisher runs the Outbox Publisher poll loop of
// spec.md §4.1 as its own process, so it can be scaled and restarted
// independently of the HTTP API.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/jobcore/internal/bus/rabbitmq"
	"github.com/baechuer/jobcore/internal/config"
	"github.com/baechuer/jobcore/internal/logger"
	"github.com/baechuer/jobcore/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("config load failed")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Component("outbox_publisher")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connect failed")
	}
	defer pub.Close()

	store := outbox.NewStore(pool, cfg.OutboxMaxAttempts)
	publisher := outbox.NewPublisher(store, pub, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	log.Info().Dur("poll_interval", cfg.OutboxPollInterval).Int("batch_size", cfg.OutboxBatchSize).Msg("outbox publisher starting")
	if err := publisher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("outbox publisher stopped unexpectedly")
	}
}

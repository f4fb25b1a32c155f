// Command api is the HTTP composition root: config -> logger -> pool ->
// router -> graceful shutdown on signal, grounded on email-service's
// internal/bootstrap/wire.go (App.Start/App.Stop split) adapted to an HTTP
// front end instead of a consumer+web pair.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/jobcore/internal/cache"
	"github.com/baechuer/jobcore/internal/config"
	"github.com/baechuer/jobcore/internal/idempotency"
	"github.com/baechuer/jobcore/internal/logger"
	"github.com/baechuer/jobcore/internal/outbox"
	"github.com/baechuer/jobcore/internal/resilience/circuitbreaker"
	"github.com/baechuer/jobcore/internal/resilience/ratelimit"
	"github.com/baechuer/jobcore/internal/scheduler"
	pgstore "github.com/baechuer/jobcore/internal/storage/postgres"
	httpapi "github.com/baechuer/jobcore/internal/transport/http"
	"github.com/baechuer/jobcore/internal/transport/http/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("config load failed")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Component("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	var rdb *redis.Client
	var limiter *ratelimit.Limiter
	var memoize idempotency.MemoizeStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid redis url")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		limiter = ratelimit.NewLimiter(rdb)
		memoize = idempotency.NewRedisStore(rdb)
	}

	appStore := pgstore.NewApplicationStore(pool)
	jobStore := pgstore.NewJobStore(pool)
	outboxStore := outbox.NewStore(pool, cfg.OutboxMaxAttempts)
	appHandler := handlers.NewApplicationsHandler(pool, appStore, outboxStore).WithMemoize(memoize)
	jobHandler := handlers.NewJobsHandler(pool, jobStore, outboxStore)

	dbBreaker := circuitbreaker.New("db", circuitbreaker.Config{
		Window:    cfg.DBBreakerWindow,
		Threshold: cfg.DBBreakerThreshold,
		OpenWait:  cfg.DBBreakerOpenWait,
	})
	if rdb != nil {
		aside := cache.NewAside(cache.NewClient(rdb), cfg.SearchCacheTTL, cfg.SearchCacheJitter, cfg.DetailCacheTTL, cfg.DetailCacheJitter)
		jobHandler = jobHandler.WithCache(aside)

		shadow := cache.NewShadow(cache.NewClient(rdb), cfg.StaleShadowTTL)
		appHandler = appHandler.WithResilience(dbBreaker, shadow)
		jobHandler = jobHandler.WithResilience(dbBreaker, shadow)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Applications: appHandler,
		Jobs:         jobHandler,
		Limiter:      limiter,
	})

	expirySweep := scheduler.NewJobExpirySweep(jobStore, jobHandler, cfg.JobExpirySweepInterval, 200, time.Now, logger.Component("job_expiry"))
	go expirySweep.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	_ = os.Stdout.Sync()
}

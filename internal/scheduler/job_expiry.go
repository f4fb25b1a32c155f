// Package scheduler owns the process-wide cooperative background sweeps of
// spec.md §5 ("Scheduled sweepers: ... job expiration, refresh-token
// cleanup ... re-expressed as cooperative tasks owned by a process-wide
// scheduler with bounded concurrency and graceful shutdown hooks").
//
// Grounded on join-service/internal/infrastructure/postgres/cleanup.go's
// StartIdempotencyKeyCleanup: a ticker goroutine that runs once immediately
// then on a fixed interval, selects its candidate rows, and shuts down
// cleanly when its context is cancelled.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/jobcore/internal/domain"
	"github.com/baechuer/jobcore/internal/events"
	"github.com/baechuer/jobcore/internal/metrics"
)

// JobStore is the narrow seam the expiry sweep needs: list ACTIVE jobs
// whose deadline has passed, and commit the EXPIRED transition alongside
// its outbox event.
type JobStore interface {
	ListActiveExpirable(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error)
}

// OutboxEmitter is implemented by a component that can commit a job's
// status-change transition and its JOB_STATUS_CHANGED outbox event inside
// one transaction; in this core that's handlers.JobsHandler (CommitExpiry),
// kept here as an interface to avoid a pgx/v5 import.
type OutboxEmitter interface {
	CommitExpiry(ctx context.Context, job *domain.Job, now time.Time, evt events.JobEvent) error
}

// JobExpirySweep runs the ACTIVE->EXPIRED scheduled sweep of spec.md §3 on
// a fixed interval. One instance per process, per spec.md §5's "one
// outbox poller per process" sibling rule for scheduled sweeps.
type JobExpirySweep struct {
	store    JobStore
	emitter  OutboxEmitter
	interval time.Duration
	batch    int
	clock    func() time.Time
	log      zerolog.Logger
}

func NewJobExpirySweep(store JobStore, emitter OutboxEmitter, interval time.Duration, batch int, clock func() time.Time, log zerolog.Logger) *JobExpirySweep {
	if interval <= 0 {
		interval = time.Hour
	}
	if batch <= 0 {
		batch = 200
	}
	if clock == nil {
		clock = time.Now
	}
	return &JobExpirySweep{store: store, emitter: emitter, interval: interval, batch: batch, clock: clock, log: log}
}

// Run blocks, sweeping once immediately then on every tick, until ctx is
// cancelled (graceful shutdown: stop ticking, let the in-flight pass
// finish, return).
func (s *JobExpirySweep) Run(ctx context.Context) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("job expiry sweep stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *JobExpirySweep) sweepOnce(ctx context.Context) {
	now := s.clock()

	jobs, err := s.store.ListActiveExpirable(ctx, now, s.batch)
	if err != nil {
		metrics.JobExpirySweepErrors.Inc()
		s.log.Warn().Err(err).Msg("job expiry sweep: list failed")
		return
	}

	var expired int
	for _, job := range jobs {
		if err := job.ExpireOverdue(now); err != nil {
			// Deadline moved or status changed between the list query and
			// here; skip rather than fail the whole pass.
			continue
		}

		evt := events.JobEvent{
			EventType: events.JobStatusChanged,
			JobID:     job.ID,
			Status:    string(job.Status),
			Timestamp: events.NowMillis(now),
		}
		if err := s.emitter.CommitExpiry(ctx, job, now, evt); err != nil {
			metrics.JobExpirySweepErrors.Inc()
			s.log.Warn().Err(err).Int64("job_id", job.ID).Msg("job expiry sweep: commit failed")
			continue
		}
		expired++
	}

	if expired > 0 {
		metrics.JobsExpired.Add(float64(expired))
		s.log.Info().Int("expired", expired).Msg("job expiry sweep complete")
	}
}

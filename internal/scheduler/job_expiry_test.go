package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/jobcore/internal/domain"
	"github.com/baechuer/jobcore/internal/events"
)

type fakeJobStore struct {
	jobs []*domain.Job
	err  error
}

func (f *fakeJobStore) ListActiveExpirable(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs, nil
}

type fakeEmitter struct {
	committed []int64
	failFor   int64
}

func (f *fakeEmitter) CommitExpiry(ctx context.Context, job *domain.Job, now time.Time, evt events.JobEvent) error {
	if job.ID == f.failFor {
		return errors.New("commit failed")
	}
	f.committed = append(f.committed, job.ID)
	return nil
}

func TestJobExpirySweep_ExpiresOverdueActiveJobs(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	overdue := &domain.Job{ID: 1, Status: domain.JobActive, ApplicationDeadline: now.Add(-time.Hour)}
	store := &fakeJobStore{jobs: []*domain.Job{overdue}}
	emitter := &fakeEmitter{}

	sweep := NewJobExpirySweep(store, emitter, time.Hour, 10, func() time.Time { return now }, zerolog.Nop())
	sweep.sweepOnce(context.Background())

	require.Equal(t, []int64{1}, emitter.committed)
	require.Equal(t, domain.JobExpired, overdue.Status, "ExpireOverdue must mutate the in-memory job before commit")
}

func TestJobExpirySweep_SkipsJobNotYetPastDeadline(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	notYet := &domain.Job{ID: 2, Status: domain.JobActive, ApplicationDeadline: now.Add(time.Hour)}
	store := &fakeJobStore{jobs: []*domain.Job{notYet}}
	emitter := &fakeEmitter{}

	sweep := NewJobExpirySweep(store, emitter, time.Hour, 10, func() time.Time { return now }, zerolog.Nop())
	sweep.sweepOnce(context.Background())

	require.Empty(t, emitter.committed, "a job whose deadline hasn't passed must not be expired")
	require.Equal(t, domain.JobActive, notYet.Status)
}

func TestJobExpirySweep_OneCommitFailureDoesNotBlockOthers(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	a := &domain.Job{ID: 1, Status: domain.JobActive, ApplicationDeadline: now.Add(-time.Hour)}
	b := &domain.Job{ID: 2, Status: domain.JobActive, ApplicationDeadline: now.Add(-time.Hour)}
	store := &fakeJobStore{jobs: []*domain.Job{a, b}}
	emitter := &fakeEmitter{failFor: 1}

	sweep := NewJobExpirySweep(store, emitter, time.Hour, 10, func() time.Time { return now }, zerolog.Nop())
	sweep.sweepOnce(context.Background())

	require.Equal(t, []int64{2}, emitter.committed)
}

func TestJobExpirySweep_ListErrorIsNonFatal(t *testing.T) {
	store := &fakeJobStore{err: errors.New("db down")}
	emitter := &fakeEmitter{}

	sweep := NewJobExpirySweep(store, emitter, time.Hour, 10, time.Now, zerolog.Nop())
	require.NotPanics(t, func() { sweep.sweepOnce(context.Background()) })
	require.Empty(t, emitter.committed)
}

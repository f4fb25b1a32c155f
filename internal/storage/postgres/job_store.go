package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/jobcore/internal/domain"
)

// JobStore persists the Job aggregate over the following schema (DB
// migrations are out of scope per spec.md §1; this is documentation, not
// a migration):
//
//	CREATE TABLE jobs (
//	  id                   BIGSERIAL PRIMARY KEY,
//	  status               TEXT NOT NULL,
//	  application_deadline TIMESTAMPTZ NOT NULL,
//	  view_count           BIGINT NOT NULL DEFAULT 0,
//	  application_count    BIGINT NOT NULL DEFAULT 0,
//	  created_at           TIMESTAMPTZ NOT NULL,
//	  updated_at           TIMESTAMPTZ NOT NULL
//	);
//
// Grounded on the same Create/GetByID/Update split as ApplicationStore
// (event-service/internal/infrastructure/db/postgres/repo.go), plus
// ListActiveExpirable for the scheduled expiration sweep of spec.md §5.
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

const insertJobSQL = `
INSERT INTO jobs (status, application_deadline, created_at, updated_at)
VALUES ($1, $2, $3, $3)
RETURNING id
`

func (s *JobStore) Insert(ctx context.Context, tx pgx.Tx, job *domain.Job) error {
	return tx.QueryRow(ctx, insertJobSQL, string(job.Status), job.ApplicationDeadline, job.CreatedAt).Scan(&job.ID)
}

const updateJobStatusSQL = `
UPDATE jobs SET status = $2, updated_at = $3 WHERE id = $1
`

func (s *JobStore) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status domain.JobStatus, now time.Time) error {
	_, err := tx.Exec(ctx, updateJobStatusSQL, id, string(status), now)
	return err
}

const getJobSQL = `
SELECT id, status, application_deadline, view_count, application_count, created_at, updated_at
FROM jobs WHERE id = $1
`

func (s *JobStore) Get(ctx context.Context, id int64) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, getJobSQL, id)

	var job domain.Job
	var status string
	if err := row.Scan(&job.ID, &status, &job.ApplicationDeadline, &job.ViewCount, &job.ApplicationCount, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound("job not found")
		}
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

const listExpirableJobsSQL = `
SELECT id, status, application_deadline, view_count, application_count, created_at, updated_at
FROM jobs
WHERE status = $1 AND application_deadline < $2
ORDER BY id ASC
LIMIT $3
`

// ListActiveExpirable returns ACTIVE jobs whose applicationDeadline has
// already passed `now`, the candidate set for the ExpireOverdue scheduled
// sweep (spec.md §3 "Job (state machine)": "ACTIVE -> EXPIRED (only by
// scheduled sweep when applicationDeadline < today)").
func (s *JobStore) ListActiveExpirable(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	rows, err := s.pool.Query(ctx, listExpirableJobsSQL, string(domain.JobActive), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var job domain.Job
		var status string
		if err := rows.Scan(&job.ID, &status, &job.ApplicationDeadline, &job.ViewCount, &job.ApplicationCount, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		job.Status = domain.JobStatus(status)
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

const incrementViewCountSQL = `UPDATE jobs SET view_count = view_count + 1 WHERE id = $1`

func (s *JobStore) IncrementViewCount(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, incrementViewCountSQL, id)
	return err
}

const incrementApplicationCountSQL = `UPDATE jobs SET application_count = application_count + 1 WHERE id = $1`

func (s *JobStore) IncrementApplicationCount(ctx context.Context, tx pgx.Tx, id int64) error {
	_, err := tx.Exec(ctx, incrementApplicationCountSQL, id)
	return err
}

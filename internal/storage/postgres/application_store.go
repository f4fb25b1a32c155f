// Package postgres holds the pgx/v5-backed persistence adapters for
// domain aggregates, grounded on event-service's
// internal/infrastructure/db/postgres/repo.go (Create/GetByID/Update split,
// status stored as text and re-validated on read).
//
// Expected schema (DB migrations are out of scope per spec.md §1):
//
//	CREATE TABLE applications (
//	  id            BIGSERIAL PRIMARY KEY,
//	  user_id       BIGINT NOT NULL,
//	  job_id        BIGINT NOT NULL,
//	  status        TEXT NOT NULL,
//	  cover_letter  TEXT NOT NULL DEFAULT '',
//	  resume_url    TEXT NOT NULL DEFAULT '',
//	  notes         TEXT NOT NULL DEFAULT '',
//	  created_at    TIMESTAMPTZ NOT NULL,
//	  updated_at    TIMESTAMPTZ NOT NULL,
//	  CONSTRAINT applications_user_id_job_id_key UNIQUE (user_id, job_id)
//	);
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/jobcore/internal/domain"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint
// violation (spec.md §3 "(userId, jobId) unique").
const uniqueViolation = "23505"

type ApplicationStore struct {
	pool *pgxpool.Pool
}

func NewApplicationStore(pool *pgxpool.Pool) *ApplicationStore {
	return &ApplicationStore{pool: pool}
}

const insertApplicationSQL = `
INSERT INTO applications (user_id, job_id, status, cover_letter, resume_url, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, '', $6, $6)
RETURNING id
`

// Insert maps the (user_id, job_id) unique-constraint violation to
// domain.ErrConflict("DUPLICATE_APPLICATION") (spec.md §3, §7, §8 scenario
// 2) rather than letting the raw pgconn error surface as an internal
// error.
func (s *ApplicationStore) Insert(ctx context.Context, tx pgx.Tx, app *domain.Application) error {
	err := tx.QueryRow(ctx, insertApplicationSQL,
		app.UserID, app.JobID, string(app.Status), app.CoverLetter, app.ResumeURL, app.CreatedAt,
	).Scan(&app.ID)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrConflict("DUPLICATE_APPLICATION")
	}
	return err
}

const updateApplicationStatusSQL = `
UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1
`

func (s *ApplicationStore) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status domain.ApplicationStatus, now time.Time) error {
	_, err := tx.Exec(ctx, updateApplicationStatusSQL, id, string(status), now)
	return err
}

const getApplicationSQL = `
SELECT id, user_id, job_id, status, cover_letter, resume_url, notes, created_at, updated_at
FROM applications WHERE id = $1
`

func (s *ApplicationStore) Get(ctx context.Context, id int64) (*domain.Application, error) {
	row := s.pool.QueryRow(ctx, getApplicationSQL, id)

	var app domain.Application
	var status string
	if err := row.Scan(&app.ID, &app.UserID, &app.JobID, &status, &app.CoverLetter, &app.ResumeURL, &app.Notes, &app.CreatedAt, &app.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound("application not found")
		}
		return nil, err
	}
	app.Status = domain.ApplicationStatus(status)
	return &app, nil
}

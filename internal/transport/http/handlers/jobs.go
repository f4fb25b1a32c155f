// Package handlers: JobsHandler mirrors ApplicationsHandler's atomic
// domain-write + outbox-write shape for the Job aggregate (spec.md §3
// "Job (state machine)", §6 JobEvent). It also implements
// scheduler.OutboxEmitter so the job-expiration sweep commits its
// ACTIVE->EXPIRED transition through the same transactional path as an
// ordinary caller-driven status change.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/jobcore/internal/cache"
	"github.com/baechuer/jobcore/internal/domain"
	"github.com/baechuer/jobcore/internal/events"
	"github.com/baechuer/jobcore/internal/outbox"
	"github.com/baechuer/jobcore/internal/resilience/circuitbreaker"
	httpresp "github.com/baechuer/jobcore/internal/transport/http/response"
)

// JobStore is the persistence seam JobsHandler needs.
type JobStore interface {
	Insert(ctx context.Context, tx pgx.Tx, job *domain.Job) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status domain.JobStatus, now time.Time) error
	Get(ctx context.Context, id int64) (*domain.Job, error)
}

type JobsHandler struct {
	pool    *pgxpool.Pool
	store   JobStore
	outbox  *outbox.Store
	aside   *cache.Aside
	shadow  *cache.Shadow
	breaker *circuitbreaker.Breaker
}

func NewJobsHandler(pool *pgxpool.Pool, store JobStore, ob *outbox.Store) *JobsHandler {
	return &JobsHandler{pool: pool, store: store, outbox: ob}
}

// WithCache attaches the Cache Layer's cache-aside detail/search strategy
// (spec.md §4.5.1/§4.5.2): reads go through Aside.Detail, and every write
// below invalidates both the single detail key and the search:* prefix,
// since a job write can change what a search listing would return.
func (h *JobsHandler) WithCache(a *cache.Aside) *JobsHandler {
	h.aside = a
	return h
}

// WithResilience attaches the degraded-read path of spec.md §4.5.3/§4.6:
// Get gates the primary-store load behind breaker and, when it's OPEN,
// serves the stale shadow copy with the view narrowed by JobActionPolicy
// instead of failing the request outright.
func (h *JobsHandler) WithResilience(breaker *circuitbreaker.Breaker, shadow *cache.Shadow) *JobsHandler {
	h.breaker = breaker
	h.shadow = shadow
	return h
}

func (h *JobsHandler) invalidateCaches(ctx context.Context, jobID int64) {
	if h.aside == nil {
		return
	}
	idStr := strconv.FormatInt(jobID, 10)
	_ = h.aside.InvalidateDetail(ctx, idStr)
	_ = h.aside.InvalidateSearch(ctx)
}

type createJobRequest struct {
	ApplicationDeadline time.Time `json:"applicationDeadline"`
}

// Create opens a job in DRAFT and emits JOB_CREATED in the same
// transaction as the insert.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := render.Decode(r, &req); err != nil {
		httpresp.Err(w, r, domain.ErrValidation("malformed request body"))
		return
	}

	now := time.Now()
	job := &domain.Job{
		Status:              domain.JobDraft,
		ApplicationDeadline: req.ApplicationDeadline,
		CreatedAt:           now.UTC(),
		UpdatedAt:           now.UTC(),
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		httpresp.Err(w, r, domain.ErrInternal("could not start transaction"))
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	if err := h.store.Insert(r.Context(), tx, job); err != nil {
		httpresp.Err(w, r, domain.ErrInternal("could not save job"))
		return
	}

	evt := events.JobEvent{
		EventType: events.JobCreated,
		JobID:     job.ID,
		Status:    string(job.Status),
		Timestamp: events.NowMillis(now),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		httpresp.Err(w, r, domain.ErrInternal("could not encode event"))
		return
	}
	if _, err := h.outbox.InsertTx(r.Context(), tx, "job", job.ID, string(evt.EventType), payload, evt, now); err != nil {
		httpresp.Err(w, r, domain.ErrInternal("could not enqueue event"))
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		httpresp.Err(w, r, domain.ErrInternal("could not commit transaction"))
		return
	}

	h.invalidateCaches(r.Context(), job.ID)
	httpresp.JSON(w, r, http.StatusCreated, job)
}

type updateJobStatusRequest struct {
	Status domain.JobStatus `json:"status"`
}

// UpdateStatus drives every caller-initiated job transition
// (DRAFT->ACTIVE, ACTIVE<->PAUSED, ->CLOSED). ACTIVE->EXPIRED is rejected
// here by domain.Job.TransitionTo; only the scheduled sweep's CommitExpiry
// path may take that edge.
func (h *JobsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpresp.Err(w, r, domain.ErrValidation("invalid job id"))
		return
	}

	var req updateJobStatusRequest
	if err := render.Decode(r, &req); err != nil {
		httpresp.Err(w, r, domain.ErrValidation("malformed request body"))
		return
	}

	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		httpresp.Err(w, r, domain.ErrNotFound("job not found"))
		return
	}

	now := time.Now()
	if err := job.TransitionTo(req.Status, now); err != nil {
		httpresp.Err(w, r, err)
		return
	}

	evt := events.JobEvent{
		EventType: events.JobStatusChanged,
		JobID:     job.ID,
		Status:    string(job.Status),
		Timestamp: events.NowMillis(now),
	}
	if err := h.commitStatusChange(r.Context(), job, now, evt); err != nil {
		httpresp.Err(w, r, domain.ErrInternal(err.Error()))
		return
	}

	httpresp.JSON(w, r, http.StatusOK, job)
}

// jobDetailResponse wraps the job with the action policy of spec.md §9
// ("report what a caller may attempt, never force a transition") so a
// client never has to re-derive what's allowed from status alone, and a
// stale flag that surfaces whenever the reply came from the degraded
// shadow path rather than a fresh read.
type jobDetailResponse struct {
	*domain.Job
	ActionPolicy domain.ActionPolicy `json:"actionPolicy"`
	Stale        bool                `json:"stale"`
}

// Get implements the cache-aside detail read of spec.md §4.5.2: a hit
// returns the cached copy directly, a miss loads from the primary store
// and populates the jittered-TTL detail key for the next reader. When a
// db/cache breaker is attached (WithResilience) and it is OPEN, Get skips
// the primary read entirely and serves the stale shadow copy instead,
// narrowing the response through JobActionPolicy rather than failing the
// request (spec.md §4.5.3, §4.6).
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpresp.Err(w, r, domain.ErrValidation("invalid job id"))
		return
	}
	idStr := strconv.FormatInt(id, 10)

	if h.breaker != nil && h.shadow != nil && !h.breaker.Available() {
		var job domain.Job
		found, shadowErr := h.shadow.Read(r.Context(), "detail:"+idStr, &job)
		if shadowErr != nil || !found {
			httpresp.Err(w, r, domain.ErrServiceUnavailable("job store degraded and no cached copy available"))
			return
		}
		policy := domain.JobActionPolicy(job.Status, job.ApplicationDeadline, time.Now(), true)
		httpresp.JSON(w, r, http.StatusOK, jobDetailResponse{Job: &job, ActionPolicy: policy, Stale: true})
		return
	}

	load := func(ctx context.Context) (*domain.Job, error) { return h.store.Get(ctx, id) }
	if h.breaker != nil {
		orig := load
		load = func(ctx context.Context) (*domain.Job, error) {
			var job *domain.Job
			var notFound error
			err := h.breaker.Call(ctx, func(ctx context.Context) error {
				var callErr error
				job, callErr = orig(ctx)
				// A 404 is a normal outcome of a valid primary-store
				// call, not an infrastructure failure; don't let it
				// count against the breaker's failure ratio.
				if isNotFound(callErr) {
					notFound = callErr
					return nil
				}
				return callErr
			})
			if err != nil {
				return nil, err
			}
			if notFound != nil {
				return nil, notFound
			}
			return job, nil
		}
	}

	if h.aside == nil {
		job, err := load(r.Context())
		if err != nil {
			httpresp.Err(w, r, domain.ErrNotFound("job not found"))
			return
		}
		h.writeShadow(r.Context(), idStr, job)
		policy := domain.JobActionPolicy(job.Status, job.ApplicationDeadline, time.Now(), false)
		httpresp.JSON(w, r, http.StatusOK, jobDetailResponse{Job: job, ActionPolicy: policy})
		return
	}

	var job domain.Job
	loadErr := h.aside.Detail(r.Context(), idStr, &job, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if loadErr != nil {
		httpresp.Err(w, r, domain.ErrNotFound("job not found"))
		return
	}

	h.writeShadow(r.Context(), idStr, &job)
	policy := domain.JobActionPolicy(job.Status, job.ApplicationDeadline, time.Now(), false)
	httpresp.JSON(w, r, http.StatusOK, jobDetailResponse{Job: &job, ActionPolicy: policy})
}

func (h *JobsHandler) writeShadow(ctx context.Context, idStr string, job *domain.Job) {
	if h.shadow == nil {
		return
	}
	h.shadow.Write(ctx, "detail:"+idStr, job)
}

// isNotFound reports whether err is a domain.AppError carrying
// domain.CodeNotFound, shared by both handlers' breaker-gated reads so a
// missing aggregate never trips a circuit breaker meant to watch for
// infrastructure failures.
func isNotFound(err error) bool {
	var ae *domain.AppError
	return errors.As(err, &ae) && ae.Code == domain.CodeNotFound
}

// CommitExpiry implements scheduler.OutboxEmitter: it persists the
// ACTIVE->EXPIRED transition the sweep already validated via
// domain.Job.ExpireOverdue and emits JOB_STATUS_CHANGED in the same
// transaction, giving the scheduled sweep the identical atomicity
// guarantee an HTTP-driven status change gets.
func (h *JobsHandler) CommitExpiry(ctx context.Context, job *domain.Job, now time.Time, evt events.JobEvent) error {
	return h.commitStatusChange(ctx, job, now, evt)
}

func (h *JobsHandler) commitStatusChange(ctx context.Context, job *domain.Job, now time.Time, evt events.JobEvent) error {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.store.UpdateStatus(ctx, tx, job.ID, job.Status, now); err != nil {
		return err
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := h.outbox.InsertTx(ctx, tx, "job", job.ID, string(evt.EventType), payload, evt, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	h.invalidateCaches(ctx, job.ID)
	return nil
}

// Package handlers implements the command/query HTTP surface over the
// Application aggregate, demonstrating the atomic domain-write +
// outbox-write command path of spec.md §4.1. Grounded on event-service's
// internal/transport/http/handlers (chi URL params + render.Decode body
// binding) and the Outbox Store built in internal/outbox.
package handlers

import (
	"context"
	"encoding/json"
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
	"github.com/baechuer/jobcore/internal/idempotency"
	"github.com/baechuer/jobcore/internal/outbox"
	"github.com/baechuer/jobcore/internal/resilience/circuitbreaker"
	"github.com/baechuer/jobcore/internal/transport/http/middleware"
	httpresp "github.com/baechuer/jobcore/internal/transport/http/response"
)

// ApplicationStore is the persistence seam the handler needs: a
// transactional write of the Application aggregate plus whatever read
// paths the handler exposes. Kept narrow and handler-owned rather than a
// generic repository so it's obvious exactly what this HTTP surface
// touches.
type ApplicationStore interface {
	Insert(ctx context.Context, tx pgx.Tx, app *domain.Application) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status domain.ApplicationStatus, now time.Time) error
	Get(ctx context.Context, id int64) (*domain.Application, error)
}

type ApplicationsHandler struct {
	pool    *pgxpool.Pool
	store   ApplicationStore
	outbox  *outbox.Store
	memoize idempotency.MemoizeStore
	shadow  *cache.Shadow
	breaker *circuitbreaker.Breaker
}

func NewApplicationsHandler(pool *pgxpool.Pool, store ApplicationStore, ob *outbox.Store) *ApplicationsHandler {
	return &ApplicationsHandler{pool: pool, store: store, outbox: ob}
}

// WithMemoize attaches the Idempotency Store's memoize mode (spec.md
// §4.7) for replaying the exact prior response to a client that retried
// the same Create request under the same Idempotency-Key header.
func (h *ApplicationsHandler) WithMemoize(m idempotency.MemoizeStore) *ApplicationsHandler {
	h.memoize = m
	return h
}

// WithResilience attaches the degraded-read path of spec.md §4.5.3/§4.6:
// Get gates the primary-store load behind breaker and, when it's OPEN,
// serves the stale shadow copy with the view narrowed by
// ApplicationActionPolicy instead of failing the request outright.
func (h *ApplicationsHandler) WithResilience(breaker *circuitbreaker.Breaker, shadow *cache.Shadow) *ApplicationsHandler {
	h.breaker = breaker
	h.shadow = shadow
	return h
}

const memoizeTTL = 24 * time.Hour

type createApplicationRequest struct {
	JobID       int64  `json:"jobId"`
	UserID      int64  `json:"userId"`
	CoverLetter string `json:"coverLetter"`
	ResumeURL   string `json:"resumeUrl"`
}

// Create performs the atomic domain-write + outbox-write command of
// spec.md §3/§4.1: both the application row and its APPLICATION_CREATED
// outbox event commit in the same transaction, or neither does.
func (h *ApplicationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := render.Decode(r, &req); err != nil {
		httpresp.Err(w, r, domain.ErrValidation("malformed request body"))
		return
	}

	idemKey := middleware.IdempotencyKeyFrom(r)
	if idemKey != "" && h.memoize != nil {
		if cached, ok, err := h.memoize.Load(r.Context(), idemKey); err == nil && ok {
			httpresp.Raw(w, r, http.StatusCreated, cached)
			return
		}
	}

	now := time.Now()
	app, err := domain.NewApplication(req.UserID, req.JobID, req.CoverLetter, req.ResumeURL, now)
	if err != nil {
		httpresp.Err(w, r, err)
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		httpresp.Err(w, r, domain.ErrInternal("could not start transaction"))
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	if err := h.store.Insert(r.Context(), tx, app); err != nil {
		httpresp.Err(w, r, err)
		return
	}

	evt := events.ApplicationEvent{
		EventType:     events.ApplicationCreated,
		ApplicationID: app.ID,
		JobID:         app.JobID,
		UserID:        app.UserID,
		Status:        string(app.Status),
		Timestamp:     events.NowMillis(now),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		httpresp.Err(w, r, domain.ErrInternal("could not encode event"))
		return
	}
	if _, err := h.outbox.InsertTx(r.Context(), tx, "application", app.ID, string(events.ApplicationCreated), payload, evt, now); err != nil {
		httpresp.Err(w, r, domain.ErrInternal("could not enqueue event"))
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		httpresp.Err(w, r, domain.ErrInternal("could not commit transaction"))
		return
	}

	if idemKey != "" && h.memoize != nil {
		if body, err := json.Marshal(app); err == nil {
			_ = h.memoize.Store(r.Context(), idemKey, body, memoizeTTL)
		}
	}

	httpresp.JSON(w, r, http.StatusCreated, app)
}

type updateStatusRequest struct {
	Status domain.ApplicationStatus `json:"status"`
}

// UpdateStatus transitions an application's status, enforcing
// CanTransitionApplication before writing, and emits
// APPLICATION_STATUS_CHANGED through the same transaction.
func (h *ApplicationsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpresp.Err(w, r, domain.ErrValidation("invalid application id"))
		return
	}

	var req updateStatusRequest
	if err := render.Decode(r, &req); err != nil {
		httpresp.Err(w, r, domain.ErrValidation("malformed request body"))
		return
	}

	app, err := h.store.Get(r.Context(), id)
	if err != nil {
		httpresp.Err(w, r, domain.ErrNotFound("application not found"))
		return
	}

	now := time.Now()
	if err := app.TransitionTo(req.Status, now); err != nil {
		httpresp.Err(w, r, err)
		return
	}

	if err := h.commitStatusChange(r.Context(), app, now); err != nil {
		httpresp.Err(w, r, domain.ErrInternal(err.Error()))
		return
	}

	httpresp.JSON(w, r, http.StatusOK, app)
}

// Withdraw is the applicant-initiated terminal transition, kept as its own
// endpoint (rather than a generic status PUT) since withdrawal is the one
// transition an applicant, as opposed to a reviewer, is allowed to drive.
func (h *ApplicationsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpresp.Err(w, r, domain.ErrValidation("invalid application id"))
		return
	}

	app, err := h.store.Get(r.Context(), id)
	if err != nil {
		httpresp.Err(w, r, domain.ErrNotFound("application not found"))
		return
	}

	now := time.Now()
	if err := app.TransitionTo(domain.StatusWithdrawn, now); err != nil {
		httpresp.Err(w, r, err)
		return
	}

	if err := h.commitStatusChange(r.Context(), app, now); err != nil {
		httpresp.Err(w, r, domain.ErrInternal(err.Error()))
		return
	}

	httpresp.JSON(w, r, http.StatusOK, app)
}

func (h *ApplicationsHandler) commitStatusChange(ctx context.Context, app *domain.Application, now time.Time) error {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.store.UpdateStatus(ctx, tx, app.ID, app.Status, now); err != nil {
		return err
	}

	evt := events.ApplicationEvent{
		EventType:     events.ApplicationStatusChanged,
		ApplicationID: app.ID,
		JobID:         app.JobID,
		UserID:        app.UserID,
		Status:        string(app.Status),
		Timestamp:     events.NowMillis(now),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := h.outbox.InsertTx(ctx, tx, "application", app.ID, string(evt.EventType), payload, evt, now); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// applicationDetailResponse wraps the application with the action policy
// of spec.md §9 ("report what a caller may attempt, never force a
// transition") and a stale flag set when the reply came from the
// degraded shadow path instead of a fresh primary-store read.
type applicationDetailResponse struct {
	*domain.Application
	ActionPolicy domain.ActionPolicy `json:"actionPolicy"`
	Stale        bool                `json:"stale"`
}

// Get reads one application. When a circuit breaker is attached
// (WithResilience) and it's OPEN, Get serves the stale shadow copy with
// stale=true and that copy's ApplicationActionPolicy rather than failing
// the request; with no shadow copy it answers SERVICE_UNAVAILABLE.
func (h *ApplicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpresp.Err(w, r, domain.ErrValidation("invalid application id"))
		return
	}
	idStr := strconv.FormatInt(id, 10)

	if h.breaker != nil && h.shadow != nil && !h.breaker.Available() {
		var app domain.Application
		found, shadowErr := h.shadow.Read(r.Context(), "detail:"+idStr, &app)
		if shadowErr != nil || !found {
			httpresp.Err(w, r, domain.ErrServiceUnavailable("application store degraded and no cached copy available"))
			return
		}
		policy := domain.ApplicationActionPolicy(app.Status, true)
		httpresp.JSON(w, r, http.StatusOK, applicationDetailResponse{Application: &app, ActionPolicy: policy, Stale: true})
		return
	}

	var app *domain.Application
	if h.breaker != nil {
		var notFound error
		callErr := h.breaker.Call(r.Context(), func(ctx context.Context) error {
			var getErr error
			app, getErr = h.store.Get(ctx, id)
			if isNotFound(getErr) {
				notFound = getErr
				return nil
			}
			return getErr
		})
		if callErr != nil {
			httpresp.Err(w, r, domain.ErrNotFound("application not found"))
			return
		}
		if notFound != nil {
			httpresp.Err(w, r, domain.ErrNotFound("application not found"))
			return
		}
	} else {
		var getErr error
		app, getErr = h.store.Get(r.Context(), id)
		if getErr != nil {
			httpresp.Err(w, r, domain.ErrNotFound("application not found"))
			return
		}
	}
	if h.shadow != nil {
		h.shadow.Write(r.Context(), "detail:"+idStr, app)
	}

	policy := domain.ApplicationActionPolicy(app.Status, false)
	httpresp.JSON(w, r, http.StatusOK, applicationDetailResponse{Application: app, ActionPolicy: policy})
}

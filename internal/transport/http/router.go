// Package httpapi composes the thin HTTP surface of this core: chi
// routing, the cross-cutting middleware pipeline, and the command/query
// handlers that front the Outbox Store, Cache Layer, and Resilience
// Fabric. Grounded on event-service's
// internal/transport/http/router/router.go (chi + middleware composition,
// /healthz and /metrics wiring).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/jobcore/internal/resilience/ratelimit"
	"github.com/baechuer/jobcore/internal/transport/http/handlers"
	httpmw "github.com/baechuer/jobcore/internal/transport/http/middleware"
)

// Deps bundles everything the router needs to wire handlers, kept as a
// plain struct (rather than a constructor with a dozen positional
// parameters) since this is purely a composition-root concern.
type Deps struct {
	Applications *handlers.ApplicationsHandler
	Jobs         *handlers.JobsHandler
	Limiter      *ratelimit.Limiter
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)
	r.Use(httpmw.Principal)
	r.Use(httpmw.TestMode)
	r.Use(httpmw.IdempotencyKey)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(httpmw.RateLimited(d.Limiter, byUser, 100, time.Minute))
			}
			r.Post("/applications", d.Applications.Create)
			r.Put("/applications/{id}/status", d.Applications.UpdateStatus)
			r.Post("/applications/{id}/withdraw", d.Applications.Withdraw)
			r.Get("/applications/{id}", d.Applications.Get)

			if d.Jobs != nil {
				r.Post("/jobs", d.Jobs.Create)
				r.Put("/jobs/{id}/status", d.Jobs.UpdateStatus)
				r.Get("/jobs/{id}", d.Jobs.Get)
			}
		})
	})

	return r
}

func byUser(r *http.Request) string {
	if uid := httpmw.UserID(r); uid != "" {
		return "user:" + uid
	}
	return "ip:" + r.RemoteAddr
}

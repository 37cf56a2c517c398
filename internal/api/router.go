// Package api wires the HTTP host: routes, middleware and handlers.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/blobshare/internal/api/handlers"
	"github.com/dvloznov/blobshare/internal/api/middleware"
	"github.com/dvloznov/blobshare/internal/history"
	"github.com/dvloznov/blobshare/internal/jobs"
	"github.com/dvloznov/blobshare/internal/share"
)

// Config holds the router dependencies.
type Config struct {
	Log       zerolog.Logger
	Services  []*share.Service
	Publisher jobs.Publisher
	Store     jobs.JobStore
	Recorder  history.Recorder

	// Observer and Gatherer are optional; /metrics is served when Gatherer is set.
	Observer middleware.RequestObserver
	Gatherer prometheus.Gatherer

	DefaultService string
	TempDir        string
	MaxUpload      int64
	APIToken       string
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = history.Nop{}
	}

	servicesHandler := handlers.NewServicesHandler(cfg.Services)
	sharesHandler := handlers.NewSharesHandler(cfg.Services, cfg.Publisher, cfg.DefaultService, cfg.TempDir, cfg.MaxUpload, cfg.Log)
	jobsHandler := handlers.NewJobsHandler(cfg.Store, cfg.Log)
	historyHandler := handlers.NewHistoryHandler(recorder, cfg.Log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Log))
	r.Use(middleware.Logger(cfg.Log))
	if cfg.Observer != nil {
		r.Use(middleware.Metrics(cfg.Observer))
	}
	r.Use(middleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.APIToken))

		r.Get("/services", servicesHandler.ListServices)
		r.Post("/shares", sharesHandler.CreateShare)
		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{id}", jobsHandler.GetJob)
		r.Get("/history", historyHandler.ListHistory)
	})

	return r
}

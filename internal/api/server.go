package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/holtet/backstack/internal/api/handler"
	mw "github.com/holtet/backstack/internal/api/middleware"
	"github.com/holtet/backstack/internal/config"
	"github.com/holtet/backstack/internal/core"
	"github.com/holtet/backstack/internal/storage"
)

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	pool           *pgxpool.Pool
	temporalClient temporalclient.Client
	cfg            *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, temporalClient temporalclient.Client, cfg *config.Config) *Server {
	services := core.NewServices(pool, temporalClient, storage.NewRegistry())

	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		pool:           pool,
		temporalClient: temporalClient,
		cfg:            cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Backups
		backup := handler.NewBackup(s.services.Backup, s.services.StorageBackend, s.services.Integrity)
		r.Get("/backups", backup.List)
		r.Post("/backups", backup.Create)
		r.Get("/backups/{id}", backup.Get)
		r.Delete("/backups/{id}", backup.Delete)
		r.Post("/backups/{id}/restore", backup.Restore)
		r.Post("/backups/{id}/cancel", backup.Cancel)
		r.Get("/backups/{id}/plan", backup.Plan)
		r.Put("/backups/{id}/protection", backup.SetProtection)

		// Chains
		chainH := handler.NewChain(s.services.Backup, s.services.Integrity)
		r.Get("/chains/{id}", chainH.Members)
		r.Get("/chains/{id}/integrity", chainH.Integrity)

		// Schedules
		schedule := handler.NewSchedule(s.services.Schedule, s.services.StorageBackend)
		r.Get("/schedules", schedule.List)
		r.Post("/schedules", schedule.Create)
		r.Get("/schedules/{id}", schedule.Get)
		r.Put("/schedules/{id}", schedule.Update)
		r.Delete("/schedules/{id}", schedule.Delete)
		r.Post("/schedules/{id}/run", schedule.Run)

		// Storage backends
		backend := handler.NewStorageBackend(s.services.StorageBackend)
		r.Get("/storage-backends", backend.List)
		r.Post("/storage-backends", backend.Create)
		r.Get("/storage-backends/{id}", backend.Get)
		r.Put("/storage-backends/{id}", backend.Update)
		r.Delete("/storage-backends/{id}", backend.Delete)
		r.Get("/storage-backends/usage", backend.UsageAll)
		r.Get("/storage-backends/{id}/usage", backend.Usage)

		// Retention dry runs
		retention := handler.NewRetention(s.services.Retention)
		r.Post("/sources/{type}/{id}/retention/evaluate", retention.Evaluate)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

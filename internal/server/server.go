// internal/server/server.go

// Package server exposes the ranking service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recruiter-backend/internal/common/database"
	"recruiter-backend/internal/common/logger"
	"recruiter-backend/internal/ranking"
)

type Server struct {
	httpServer *http.Server
	service    *ranking.Service
	postgres   *database.PostgresClient
	redis      *database.RedisClient
	logger     logger.Logger
}

func New(addr string, service *ranking.Service, pg *database.PostgresClient, rdb *database.RedisClient, log logger.Logger) *Server {
	s := &Server{
		service:  service,
		postgres: pg,
		redis:    rdb,
		logger:   log.WithFields(map[string]interface{}{"component": "http-server"}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/recruiter/jobs/{id}/rankings", s.handleStartRanking)
	mux.HandleFunc("GET /api/recruiter/jobs/rankings/{id}/status", s.handleRankingStatus)
	mux.HandleFunc("GET /api/recruiter/jobs/rankings/{id}/result", s.handleRankingResult)
	mux.HandleFunc("POST /api/recruiter/jobs/{id}/ranked", s.handleRankedJob)
	mux.HandleFunc("GET /api/recruiter/users/{id}/jobs", s.handleJobsByUser)
	mux.HandleFunc("GET /api/recruiter/jobs/{id}/cvs", s.handleJobCVs)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady verifies both datastores answer before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"postgres": "ok", "redis": "ok"}
	ready := true
	if err := s.postgres.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		ready = false
	}
	if err := s.redis.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		ready = false
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, checks)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"harvester/internal/batch"
	"harvester/internal/config"
	"harvester/internal/monitoring"
	"harvester/internal/storage"
)

// Server exposes the harvester's operational surface while a batch runs:
// metrics, health and batch progress. It serves no harvest data itself.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	runner     *batch.Runner
	pgStore    *storage.PostgresStore // nil when running on the file store
	redisStore *storage.RedisStore    // nil when Redis is not configured
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, r *batch.Runner, pg *storage.PostgresStore, rs *storage.RedisStore, m *monitoring.Metrics, l *zap.Logger) *Server {
	s := &Server{
		config:     cfg,
		runner:     r,
		pgStore:    pg,
		redisStore: rs,
		metrics:    m,
		logger:     l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.runner.Progress())
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if s.pgStore != nil {
		if err := s.pgStore.Ping(ctx); err != nil {
			healthStatus["postgres"] = "unhealthy"
			s.logger.Error("health check failed for postgres", zap.Error(err))
		} else {
			healthStatus["postgres"] = "healthy"
		}
	} else {
		healthStatus["store"] = "file"
	}

	if s.redisStore != nil {
		if err := s.redisStore.Ping(ctx); err != nil {
			healthStatus["redis"] = "unhealthy"
			s.logger.Error("health check failed for redis", zap.Error(err))
		} else {
			healthStatus["redis"] = "healthy"
		}
	}

	for _, v := range healthStatus {
		if v == "unhealthy" {
			s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
			return
		}
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

package api

import (
	"bgactions/config"
	"bgactions/logger"
	"net/http"
	"time"
)

var startTime = time.Now()

// HealthResponse provides detailed health information
type HealthResponse struct {
	Status         string   `json:"status"`
	Timestamp      string   `json:"timestamp"`
	Uptime         string   `json:"uptime"`
	Platform       string   `json:"platform"`
	LaunchStrategy string   `json:"launch_strategy"`
	DefinedTasks   []string `json:"defined_tasks"`
	RunningTasks   []string `json:"running_tasks"`
	Executors      []string `json:"executors"`
	Version        string   `json:"version,omitempty"`
}

// NewHealthHandler returns a health check handler
func NewHealthHandler(cfg *config.Config, svc TaskService, executors ExecutorCatalog, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, lg, http.MethodGet)
			return
		}

		response := HealthResponse{
			Status:         "healthy",
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
			Uptime:         time.Since(startTime).String(),
			Platform:       cfg.Platform,
			LaunchStrategy: cfg.LaunchStrategy,
			DefinedTasks:   svc.DefinedTaskIDs(),
			RunningTasks:   svc.RunningTaskIDs(),
			Executors:      executors.Names(),
			Version:        cfg.Version,
		}

		respondJSON(w, http.StatusOK, response, lg)
	}
}

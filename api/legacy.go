package api

import (
	"bgactions/errors"
	"bgactions/logger"
	"bgactions/tasks"
	"bgactions/tasks/legacy"
	"context"
	"net/http"
	"strings"
)

// LegacyService is the deprecated single-task API.
type LegacyService interface {
	Start(ctx context.Context, executor tasks.Executor, opts legacy.Options) error
	Stop(ctx context.Context) error
	IsRunning() bool
	UpdateNotification(ctx context.Context, patch tasks.NotificationPatch) error
}

// LegacyStartRequest is the body of POST /legacy/start: the legacy options
// object plus the executor name.
type LegacyStartRequest struct {
	legacy.Options
	Executor string `json:"executor"`
}

// LegacyStatusResponse is returned by GET /legacy/status
type LegacyStatusResponse struct {
	Running bool `json:"running"`
}

func deprecationHeader(w http.ResponseWriter) {
	w.Header().Set("Deprecation", "true")
}

// NewLegacyStartHandler handles POST /legacy/start
func NewLegacyStartHandler(svc LegacyService, executors ExecutorCatalog, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deprecationHeader(w)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, lg, http.MethodPost)
			return
		}

		var req LegacyStartRequest
		if err := decodeBody(w, r, &req); err != nil {
			respondWithError(w, err, lg)
			return
		}
		if strings.TrimSpace(req.Executor) == "" {
			respondWithError(w, errors.NewInvalidArgumentError("executor is required", map[string]any{
				"available": executors.Names(),
			}), lg)
			return
		}

		executor, err := executors.Bind(req.Executor, req.ID)
		if err != nil {
			respondWithError(w, err, lg)
			return
		}
		if err := svc.Start(r.Context(), executor, req.Options); err != nil {
			respondWithError(w, err, lg)
			return
		}

		respondJSON(w, http.StatusAccepted, LegacyStatusResponse{Running: svc.IsRunning()}, lg)
	}
}

// NewLegacyStopHandler handles POST /legacy/stop
func NewLegacyStopHandler(svc LegacyService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deprecationHeader(w)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, lg, http.MethodPost)
			return
		}

		if err := svc.Stop(r.Context()); err != nil {
			respondWithError(w, err, lg)
			return
		}
		respondJSON(w, http.StatusOK, LegacyStatusResponse{Running: svc.IsRunning()}, lg)
	}
}

// NewLegacyStatusHandler handles GET /legacy/status
func NewLegacyStatusHandler(svc LegacyService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deprecationHeader(w)
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, lg, http.MethodGet)
			return
		}
		respondJSON(w, http.StatusOK, LegacyStatusResponse{Running: svc.IsRunning()}, lg)
	}
}

// NewLegacyNotificationHandler handles POST /legacy/notification
func NewLegacyNotificationHandler(svc LegacyService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deprecationHeader(w)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, lg, http.MethodPost)
			return
		}

		var patch tasks.NotificationPatch
		if err := decodeBody(w, r, &patch); err != nil {
			respondWithError(w, err, lg)
			return
		}
		if err := svc.UpdateNotification(r.Context(), patch); err != nil {
			respondWithError(w, err, lg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

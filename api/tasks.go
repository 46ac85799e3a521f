package api

import (
	"bgactions/errors"
	"bgactions/logger"
	"bgactions/tasks"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// TaskService is the part of the task registry exposed over HTTP.
type TaskService interface {
	DefineTask(ctx context.Context, id string, executor tasks.Executor, opts tasks.Options) error
	StartTask(ctx context.Context, id string, params any) error
	StopTask(ctx context.Context, id string) error
	StopAllTasks(ctx context.Context) error
	UpdateNotification(ctx context.Context, id string, patch tasks.NotificationPatch) error
	IsRunning(id string) bool
	DefinedTaskIDs() []string
	RunningTaskIDs() []string
	Describe(id string) (tasks.Definition, bool, error)
}

// ExecutorCatalog resolves executor names sent by clients.
type ExecutorCatalog interface {
	Bind(name, taskID string) (tasks.Executor, error)
	Names() []string
}

// TaskResponse describes a single task
type TaskResponse struct {
	ID      string         `json:"id"`
	Running bool           `json:"running"`
	Options *tasks.Options `json:"options,omitempty"`
}

// TaskListResponse lists every defined task
type TaskListResponse struct {
	Tasks   []TaskResponse `json:"tasks"`
	Running []string       `json:"running"`
}

// DefineRequest is the body of PUT /tasks/{id}
type DefineRequest struct {
	Executor string        `json:"executor"`
	Options  tasks.Options `json:"options"`
}

// StartRequest is the optional body of POST /tasks/{id}/start
type StartRequest struct {
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// StopAllResponse reports the tasks that were running when stop-all was
// requested
type StopAllResponse struct {
	Stopped []string `json:"stopped"`
}

func taskID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", errors.NewInvalidArgumentError("task ID is required")
	}
	return id, nil
}

func describe(svc TaskService, id string) (TaskResponse, error) {
	def, running, err := svc.Describe(id)
	if err != nil {
		return TaskResponse{}, err
	}
	opts := def.Options
	return TaskResponse{ID: id, Running: running, Options: &opts}, nil
}

// NewTaskListHandler handles GET /tasks
func NewTaskListHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, lg, http.MethodGet)
			return
		}

		ids := svc.DefinedTaskIDs()
		resp := TaskListResponse{
			Tasks:   make([]TaskResponse, 0, len(ids)),
			Running: svc.RunningTaskIDs(),
		}
		for _, id := range ids {
			resp.Tasks = append(resp.Tasks, TaskResponse{ID: id, Running: svc.IsRunning(id)})
		}
		if resp.Running == nil {
			resp.Running = []string{}
		}

		respondJSON(w, http.StatusOK, resp, lg)
	}
}

// NewTaskHandler handles GET and PUT on /tasks/{id}. PUT defines the task
// with a named executor.
func NewTaskHandler(svc TaskService, executors ExecutorCatalog, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskID(r)
		if err != nil {
			respondWithError(w, err, lg)
			return
		}

		switch r.Method {
		case http.MethodGet:
			resp, err := describe(svc, id)
			if err != nil {
				respondWithError(w, err, lg)
				return
			}
			respondJSON(w, http.StatusOK, resp, lg)

		case http.MethodPut:
			var req DefineRequest
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

			executor, err := executors.Bind(req.Executor, id)
			if err != nil {
				respondWithError(w, err, lg)
				return
			}
			if err := svc.DefineTask(r.Context(), id, executor, req.Options); err != nil {
				respondWithError(w, err, lg)
				return
			}

			lg.Task(id, "task defined over HTTP", map[string]any{"executor": req.Executor})
			resp, err := describe(svc, id)
			if err != nil {
				respondWithError(w, err, lg)
				return
			}
			respondJSON(w, http.StatusOK, resp, lg)

		default:
			methodNotAllowed(w, r, lg, "GET, PUT")
		}
	}
}

// NewStartHandler handles POST /tasks/{id}/start
func NewStartHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, lg, http.MethodPost)
			return
		}
		id, err := taskID(r)
		if err != nil {
			respondWithError(w, err, lg)
			return
		}

		var req StartRequest
		if err := decodeBody(w, r, &req); err != nil {
			respondWithError(w, err, lg)
			return
		}

		var params any
		if len(req.Parameters) > 0 && string(req.Parameters) != "null" {
			params = req.Parameters
		}
		if err := svc.StartTask(r.Context(), id, params); err != nil {
			respondWithError(w, err, lg)
			return
		}

		respondJSON(w, http.StatusAccepted, TaskResponse{ID: id, Running: svc.IsRunning(id)}, lg)
	}
}

// NewStopHandler handles POST /tasks/{id}/stop
func NewStopHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, lg, http.MethodPost)
			return
		}
		id, err := taskID(r)
		if err != nil {
			respondWithError(w, err, lg)
			return
		}

		if err := svc.StopTask(r.Context(), id); err != nil {
			respondWithError(w, err, lg)
			return
		}

		respondJSON(w, http.StatusOK, TaskResponse{ID: id, Running: svc.IsRunning(id)}, lg)
	}
}

// NewNotificationHandler handles POST /tasks/{id}/notification. The body is
// a partial options object.
func NewNotificationHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, lg, http.MethodPost)
			return
		}
		id, err := taskID(r)
		if err != nil {
			respondWithError(w, err, lg)
			return
		}

		var patch tasks.NotificationPatch
		if err := decodeBody(w, r, &patch); err != nil {
			respondWithError(w, err, lg)
			return
		}

		if err := svc.UpdateNotification(r.Context(), id, patch); err != nil {
			respondWithError(w, err, lg)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// NewStopAllHandler handles POST /stop-all
func NewStopAllHandler(svc TaskService, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, lg, http.MethodPost)
			return
		}

		stopped := svc.RunningTaskIDs()
		if err := svc.StopAllTasks(r.Context()); err != nil {
			respondWithError(w, err, lg)
			return
		}
		if stopped == nil {
			stopped = []string{}
		}

		respondJSON(w, http.StatusOK, StopAllResponse{Stopped: stopped}, lg)
	}
}

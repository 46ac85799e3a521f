package api

import (
	"bgactions/errors"
	"bgactions/logger"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const maxBodySize = 1024 * 1024 // 1 MB

// ErrorResponse defines the JSON structure for error responses
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    string         `json:"type,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// respondWithError sends a structured error response. Errors that are not
// TaskErrors are reported as internal errors.
func respondWithError(w http.ResponseWriter, err error, lg *logger.Logger) {
	taskErr, ok := errors.IsTaskError(err)
	if !ok {
		taskErr = errors.NewInternalError(err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(taskErr.Code)

	lg.Error("HTTP error response", map[string]any{
		"error_type":    string(taskErr.Type),
		"error_message": taskErr.Message,
		"status_code":   taskErr.Code,
		"error_details": taskErr.Details,
	})

	resp := ErrorResponse{
		Error:   taskErr.Message,
		Type:    string(taskErr.Type),
		Details: taskErr.Details,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		// Headers are already written; nothing left to recover
		lg.Error("failed to encode error response", map[string]any{
			"error": err.Error(),
		})
	}
}

// respondJSON writes v with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any, lg *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lg.Error("failed to encode response", map[string]any{
			"error": err.Error(),
		})
	}
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	// Limit request body size - this will cause Decode to fail if exceeded
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err == io.EOF {
			return nil
		}
		if strings.Contains(err.Error(), "http: request body too large") {
			return errors.NewInvalidArgumentError("request body too large", map[string]any{
				"max_size_bytes": maxBodySize,
			})
		}
		return errors.NewInvalidArgumentError("invalid JSON payload", map[string]any{
			"error": err.Error(),
		})
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, lg *logger.Logger, allowed string) {
	w.Header().Set("Allow", allowed)
	respondWithError(w, &errors.TaskError{
		Type:    errors.InvalidArgument,
		Message: "method not allowed",
		Code:    http.StatusMethodNotAllowed,
		Details: map[string]any{"method": r.Method, "allowed": allowed},
	}, lg)
}

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// TaskErrorType categorizes the failures the registry can report
type TaskErrorType string

const (
	InvalidArgument TaskErrorType = "invalid_argument"
	NotFound        TaskErrorType = "not_found"
	InvalidState    TaskErrorType = "invalid_state"
	ExecutorFailure TaskErrorType = "executor_failure"
	PlatformFailure TaskErrorType = "platform"
	Internal        TaskErrorType = "internal"
)

// TaskError provides structured error information with HTTP status suggestions
type TaskError struct {
	Type    TaskErrorType  `json:"type"`
	Message string         `json:"message"`
	Code    int            `json:"code"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *TaskError) Unwrap() error {
	return e.cause
}

func firstDetails(details []map[string]any) map[string]any {
	if len(details) > 0 {
		return details[0]
	}
	return nil
}

// Constructor functions for common error types
func NewInvalidArgumentError(message string, details ...map[string]any) *TaskError {
	return &TaskError{
		Type:    InvalidArgument,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: firstDetails(details),
	}
}

func NewNotFoundError(message string, details ...map[string]any) *TaskError {
	return &TaskError{
		Type:    NotFound,
		Message: message,
		Code:    http.StatusNotFound,
		Details: firstDetails(details),
	}
}

func NewInvalidStateError(message string, details ...map[string]any) *TaskError {
	return &TaskError{
		Type:    InvalidState,
		Message: message,
		Code:    http.StatusConflict,
		Details: firstDetails(details),
	}
}

// NewExecutorFailure wraps an error (or recovered panic) raised by a task body.
// These never reach the caller of StartTask; they exist so the failure can be
// logged with a stable shape.
func NewExecutorFailure(taskID string, cause error) *TaskError {
	return &TaskError{
		Type:    ExecutorFailure,
		Message: fmt.Sprintf("task %q failed", taskID),
		Code:    http.StatusUnprocessableEntity,
		Details: map[string]any{
			"task_id": taskID,
			"error":   cause.Error(),
		},
		cause: cause,
	}
}

// NewPlatformError reports a failed call to the platform collaborator.
func NewPlatformError(op, taskID string, cause error) *TaskError {
	return &TaskError{
		Type:    PlatformFailure,
		Message: fmt.Sprintf("platform %s failed for task %q", op, taskID),
		Code:    http.StatusBadGateway,
		Details: map[string]any{
			"operation": op,
			"task_id":   taskID,
			"error":     cause.Error(),
		},
		cause: cause,
	}
}

func NewInternalError(message string) *TaskError {
	return &TaskError{
		Type:    Internal,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
}

// IsTaskError checks if an error is (or wraps) a TaskError and returns it
func IsTaskError(err error) (*TaskError, bool) {
	var taskErr *TaskError
	if stderrors.As(err, &taskErr) {
		return taskErr, true
	}
	return nil, false
}

// IsType reports whether err is a TaskError of the given type.
func IsType(err error, t TaskErrorType) bool {
	taskErr, ok := IsTaskError(err)
	return ok && taskErr.Type == t
}

package execution

import (
	"bgactions/errors"
	"bgactions/logger"
	"context"
	stderrors "errors"
)

// ResultHandler observes how an executor settled. It never influences the
// running state; the registry owns that.
type ResultHandler interface {
	HandleSuccess(e *Execution)
	HandleFailure(e *Execution)
}

// NopResultHandler ignores every outcome.
type NopResultHandler struct{}

func (NopResultHandler) HandleSuccess(*Execution) {}
func (NopResultHandler) HandleFailure(*Execution) {}

// LoggingResultHandler records outcomes through the structured logger.
// Executor errors are reported as ExecutorFailure and go no further.
type LoggingResultHandler struct {
	logger *logger.Logger
}

// NewLoggingResultHandler creates a result handler writing to lg.
func NewLoggingResultHandler(lg *logger.Logger) *LoggingResultHandler {
	return &LoggingResultHandler{logger: lg}
}

func (h *LoggingResultHandler) HandleSuccess(e *Execution) {
	h.logger.Task(e.TaskID, "task executor completed", map[string]any{
		"run_id":      e.RunID,
		"duration_ns": e.Duration().Nanoseconds(),
		"released":    e.Released(),
	})
}

func (h *LoggingResultHandler) HandleFailure(e *Execution) {
	// Returning the context error after a stop or Close is a clean exit
	if stderrors.Is(e.Err(), context.Canceled) && e.Context().Err() != nil {
		h.logger.TaskDebug(e.TaskID, "task executor cancelled", map[string]any{
			"run_id":      e.RunID,
			"duration_ns": e.Duration().Nanoseconds(),
			"released":    e.Released(),
		})
		return
	}

	failure := errors.NewExecutorFailure(e.TaskID, e.Err())

	fields := map[string]any{
		"run_id":      e.RunID,
		"error_type":  string(failure.Type),
		"duration_ns": e.Duration().Nanoseconds(),
		"released":    e.Released(),
	}

	var panicErr *PanicError
	if stderrors.As(e.Err(), &panicErr) {
		fields["panic"] = true
		fields["stack"] = string(panicErr.Stack)
	}

	h.logger.TaskFailure(e.TaskID, failure.Message, e.Err(), fields)
}

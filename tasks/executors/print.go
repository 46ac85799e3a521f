package executors

import (
	"bgactions/errors"
	"bgactions/logger"
	"context"
)

var _ Executor = (*PrintExecutor)(nil)

// PrintExecutor logs the provided message and returns.
type PrintExecutor struct {
	logger *logger.Logger
}

type PrintParams struct {
	Message string `json:"message"`
}

func NewPrintExecutor(lg *logger.Logger) *PrintExecutor {
	return &PrintExecutor{logger: lg}
}

func (e *PrintExecutor) Run(ctx context.Context, taskID string, params any) error {
	var p PrintParams
	if err := decodeParams(params, &p); err != nil {
		return errors.NewInvalidArgumentError("invalid print parameters", map[string]any{
			"task_id": taskID,
			"error":   err.Error(),
		})
	}
	e.logger.Task(taskID, "executing print task", map[string]any{
		"message": p.Message,
	})
	return nil
}

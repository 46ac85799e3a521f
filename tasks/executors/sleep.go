package executors

import (
	"bgactions/errors"
	"bgactions/logger"
	"context"
	"time"
)

// Sleeper abstracts waiting so tests can run without real delays. Sleep
// returns early with ctx.Err() if ctx is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (s *realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Executor = (*SleepExecutor)(nil)

// SleepExecutor waits for the requested number of seconds, or until the task
// is stopped.
type SleepExecutor struct {
	sleeper Sleeper
	logger  *logger.Logger
}

// NewSleepExecutor returns a SleepExecutor backed by a real timer.
func NewSleepExecutor(lg *logger.Logger) *SleepExecutor {
	return &SleepExecutor{sleeper: &realSleeper{}, logger: lg}
}

type sleepParams struct {
	// Pointer type is used to distinguish missing vs zero values.
	Seconds *int `json:"seconds"`
}

func (e *SleepExecutor) Run(ctx context.Context, taskID string, params any) error {
	var p sleepParams
	if err := decodeParams(params, &p); err != nil {
		return errors.NewInvalidArgumentError("invalid sleep parameters", map[string]any{
			"task_id": taskID,
			"error":   err.Error(),
		})
	}
	if p.Seconds == nil {
		return errors.NewInvalidArgumentError("missing or invalid 'seconds' field", map[string]any{
			"task_id": taskID,
		})
	}
	if *p.Seconds <= 0 {
		return errors.NewInvalidArgumentError("invalid sleep duration: must be > 0", map[string]any{
			"task_id": taskID,
			"seconds": *p.Seconds,
		})
	}

	e.logger.Task(taskID, "executing sleep task", map[string]any{
		"seconds": *p.Seconds,
	})
	if err := e.sleeper.Sleep(ctx, time.Duration(*p.Seconds)*time.Second); err != nil {
		e.logger.Task(taskID, "sleep interrupted", map[string]any{"error": err.Error()})
		return err
	}
	return nil
}

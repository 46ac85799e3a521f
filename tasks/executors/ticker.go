package executors

import (
	"bgactions/errors"
	"bgactions/logger"
	"bgactions/tasks"
	"context"
	"fmt"
	"time"
)

const defaultTickInterval = time.Second

// Notifier updates the notification of a running task. The task registry
// satisfies it.
type Notifier interface {
	UpdateNotification(ctx context.Context, id string, patch tasks.NotificationPatch) error
}

var _ Executor = (*TickerExecutor)(nil)

// TickerExecutor ticks at a fixed interval, reporting progress through the
// task's notification. With a zero count it ticks until stopped.
type TickerExecutor struct {
	logger   *logger.Logger
	notifier Notifier
}

type tickerParams struct {
	IntervalMS int `json:"interval_ms"`
	Count      int `json:"count"`
}

func NewTickerExecutor(lg *logger.Logger, notifier Notifier) *TickerExecutor {
	return &TickerExecutor{logger: lg, notifier: notifier}
}

func (e *TickerExecutor) Run(ctx context.Context, taskID string, params any) error {
	var p tickerParams
	if err := decodeParams(params, &p); err != nil {
		return errors.NewInvalidArgumentError("invalid ticker parameters", map[string]any{
			"task_id": taskID,
			"error":   err.Error(),
		})
	}
	if p.IntervalMS < 0 || p.Count < 0 {
		return errors.NewInvalidArgumentError("ticker interval and count must not be negative", map[string]any{
			"task_id":     taskID,
			"interval_ms": p.IntervalMS,
			"count":       p.Count,
		})
	}

	interval := defaultTickInterval
	if p.IntervalMS > 0 {
		interval = time.Duration(p.IntervalMS) * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for tick := 1; p.Count == 0 || tick <= p.Count; tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		e.logger.TaskDebug(taskID, "tick", map[string]any{"tick": tick, "count": p.Count})
		e.report(ctx, taskID, tick, p.Count)
	}
	return nil
}

func (e *TickerExecutor) report(ctx context.Context, taskID string, tick, count int) {
	if e.notifier == nil {
		return
	}

	desc := fmt.Sprintf("tick %d", tick)
	progress := &tasks.ProgressBar{Indeterminate: true}
	if count > 0 {
		desc = fmt.Sprintf("tick %d of %d", tick, count)
		progress = &tasks.ProgressBar{Max: count, Value: tick}
	}
	patch := tasks.NotificationPatch{Description: &desc, ProgressBar: progress}

	// A task stopped mid-tick cannot be updated any more; that is not a failure
	if err := e.notifier.UpdateNotification(ctx, taskID, patch); err != nil && !errors.IsType(err, errors.InvalidState) {
		e.logger.Warn("failed to report tick", map[string]any{
			"task_id": taskID,
			"tick":    tick,
			"error":   err.Error(),
		})
	}
}

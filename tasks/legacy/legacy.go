// Package legacy keeps the single-task API working on top of the task
// registry. Every method logs a deprecation warning the first time it is
// used.
//
// The facade assumes at most one task is running. When several are, Stop
// stops all of them and UpdateNotification targets the first running task in
// start order.
package legacy

import (
	"bgactions/errors"
	"bgactions/logger"
	"bgactions/tasks"
	"context"
	"sync"
)

// TaskRegistry is the part of the registry the facade builds on.
type TaskRegistry interface {
	DefineTask(ctx context.Context, id string, executor tasks.Executor, opts tasks.Options) error
	StartTask(ctx context.Context, id string, params any) error
	StopAllTasks(ctx context.Context) error
	UpdateNotification(ctx context.Context, id string, patch tasks.NotificationPatch) error
	RunningTaskIDs() []string
}

// Options is the legacy start argument: presentation options plus the task
// id and its parameters in one value.
type Options struct {
	tasks.Options
	ID         string `json:"taskName"`
	Parameters any    `json:"parameters,omitempty"`
}

// Facade exposes the deprecated single-task calls.
type Facade struct {
	registry TaskRegistry
	logger   *logger.Logger

	warnStart   sync.Once
	warnStop    sync.Once
	warnRunning sync.Once
	warnUpdate  sync.Once
}

func New(r TaskRegistry, lg *logger.Logger) *Facade {
	if lg == nil {
		lg = logger.Discard()
	}
	return &Facade{registry: r, logger: lg}
}

// Start defines opts.ID with executor and starts it with opts.Parameters.
//
// Deprecated: use DefineTask and StartTask.
func (f *Facade) Start(ctx context.Context, executor tasks.Executor, opts Options) error {
	f.warnStart.Do(func() { f.logger.Deprecated("Start", "DefineTask and StartTask") })

	if opts.ID == "" {
		return errors.NewInvalidArgumentError("task id is required in options")
	}
	if err := f.registry.DefineTask(ctx, opts.ID, executor, opts.Options); err != nil {
		return err
	}
	return f.registry.StartTask(ctx, opts.ID, opts.Parameters)
}

// Stop stops every running task.
//
// Deprecated: use StopTask or StopAllTasks.
func (f *Facade) Stop(ctx context.Context) error {
	f.warnStop.Do(func() { f.logger.Deprecated("Stop", "StopTask or StopAllTasks") })
	return f.registry.StopAllTasks(ctx)
}

// IsRunning reports whether any task is running.
//
// Deprecated: use IsRunning with a task id.
func (f *Facade) IsRunning() bool {
	f.warnRunning.Do(func() { f.logger.Deprecated("IsRunning without a task id", "IsRunning(id)") })
	return len(f.registry.RunningTaskIDs()) > 0
}

// UpdateNotification updates the first running task.
//
// Deprecated: use UpdateNotification with a task id.
func (f *Facade) UpdateNotification(ctx context.Context, patch tasks.NotificationPatch) error {
	f.warnUpdate.Do(func() {
		f.logger.Deprecated("UpdateNotification without a task id", "UpdateNotification(id, patch)")
	})

	running := f.registry.RunningTaskIDs()
	if len(running) == 0 {
		return errors.NewInvalidStateError("no running tasks")
	}
	return f.registry.UpdateNotification(ctx, running[0], patch)
}

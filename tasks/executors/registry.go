package executors

import (
	"bgactions/errors"
	"bgactions/logger"
	"bgactions/tasks"
	"context"
	"sort"
	"sync"
)

// Executor implements the body of a named kind of task. taskID is the task
// it runs for; params are whatever StartTask received.
type Executor interface {
	Run(ctx context.Context, taskID string, params any) error
}

// Registry maps executor names to implementations so tasks can be declared
// by name, from a catalog file or over HTTP.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry constructs an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// Defaults returns a registry with the built-in print, sleep and ticker
// executors. notifier may be nil, in which case ticker does not report
// progress.
func Defaults(lg *logger.Logger, notifier Notifier) *Registry {
	r := NewRegistry()
	r.Register("print", NewPrintExecutor(lg))
	r.Register("sleep", NewSleepExecutor(lg))
	r.Register("ticker", NewTickerExecutor(lg, notifier))
	return r
}

// Register binds an executor to name, replacing any previous one.
func (r *Registry) Register(name string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executors[name] = e
}

// Get returns the executor registered under name.
func (r *Registry) Get(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executors[name]
	return e, ok
}

// Bind returns the task executor running name on behalf of taskID.
func (r *Registry) Bind(name, taskID string) (tasks.Executor, error) {
	e, ok := r.Get(name)
	if !ok {
		return nil, errors.NewNotFoundError("no executor registered for: "+name, map[string]any{
			"task_id":  taskID,
			"executor": name,
		})
	}
	return func(ctx context.Context, params any) error {
		return e.Run(ctx, taskID, params)
	}, nil
}

// Names returns the registered executor names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

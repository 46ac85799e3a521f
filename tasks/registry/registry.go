package registry

import (
	"bgactions/errors"
	"bgactions/logger"
	"bgactions/tasks"
	"bgactions/tasks/events"
	"bgactions/tasks/execution"
	"bgactions/tasks/platform"
	"bgactions/tasks/runners"
	"bgactions/tasks/store"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultStopTimeout = 10 * time.Second

// Option configures a Registry.
type Option func(*Registry)

// WithStore replaces the default in-memory store.
func WithStore(s store.TaskStore) Option {
	return func(r *Registry) { r.store = s }
}

// WithResultHandler replaces the logging result handler.
func WithResultHandler(h execution.ResultHandler) Option {
	return func(r *Registry) { r.results = h }
}

// WithBaseContext sets the parent of every executor context. Cancelling it
// cancels all executors without stopping their tasks.
func WithBaseContext(ctx context.Context) Option {
	return func(r *Registry) { r.parent = ctx }
}

// WithStopTimeout bounds the platform Stop issued when an executor settles.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}

// Registry owns task definitions and running state and coordinates start and
// stop transitions with the platform.
//
// Operations on the same task id are serialized. Operations on different ids
// run independently.
type Registry struct {
	platform    platform.Platform
	strategy    runners.Strategy
	live        bool
	store       store.TaskStore
	results     execution.ResultHandler
	logger      *logger.Logger
	stopTimeout time.Duration

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	expirations *events.Channel[events.ExpirationEvent]
	unsubscribe func()
	closeOnce   sync.Once

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a registry bound to p and subscribes to its expiration signal.
// Call Close to drop that subscription.
func New(p platform.Platform, strategy runners.Strategy, lg *logger.Logger, opts ...Option) *Registry {
	if lg == nil {
		lg = logger.Discard()
	}

	r := &Registry{
		platform:    p,
		strategy:    strategy,
		logger:      lg,
		live:        liveNotifications(p, strategy),
		stopTimeout: defaultStopTimeout,
		parent:      context.Background(),
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = store.NewMemoryTaskStore()
	}
	if r.results == nil {
		r.results = execution.NewLoggingResultHandler(lg)
	}
	r.ctx, r.cancel = context.WithCancel(r.parent)

	r.expirations = events.NewChannel[events.ExpirationEvent](events.KindExpiration, func(kind events.Kind, p any) {
		lg.Error("event listener panicked", map[string]any{
			"event": string(kind),
			"panic": fmt.Sprint(p),
		})
	})
	r.unsubscribe = p.SubscribeExpiration(r.handleExpiration)

	lg.Info("task registry created", map[string]any{
		"strategy":           strategy.Name(),
		"live_notifications": r.live,
	})
	return r
}

// liveNotifications prefers the platform's own answer over the strategy's.
func liveNotifications(p platform.Platform, strategy runners.Strategy) bool {
	if ln, ok := p.(platform.LiveNotifier); ok {
		return ln.LiveNotifications()
	}
	return strategy.LiveNotifications()
}

// lockDefined locks id only if it is defined. Definitions are never removed,
// so lock entries exist only for defined ids.
func (r *Registry) lockDefined(id string) (func(), bool) {
	if _, err := r.store.Get(id); err != nil {
		return nil, false
	}
	return r.lock(id), true
}

// lock serializes operations on a single task id.
func (r *Registry) lock(id string) func() {
	r.locksMu.Lock()
	mu, ok := r.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[id] = mu
	}
	r.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// DefineTask stores or overwrites the definition for id. It never starts the
// task and never touches its running flag. Redefining a task with a live run
// fails with InvalidState.
func (r *Registry) DefineTask(ctx context.Context, id string, executor tasks.Executor, opts tasks.Options) error {
	if id == "" {
		return errors.NewInvalidArgumentError("task id cannot be empty")
	}
	if executor == nil {
		return errors.NewInvalidArgumentError("executor cannot be nil", map[string]any{"task_id": id})
	}

	unlock := r.lock(id)
	defer unlock()

	err := r.store.Put(tasks.Definition{ID: id, Executor: executor, Options: opts.Clone()})
	if stderrors.Is(err, store.ErrActive) {
		return errors.NewInvalidStateError(
			fmt.Sprintf("task %q cannot be redefined while running", id),
			map[string]any{"task_id": id},
		)
	}
	if err != nil {
		return errors.NewInternalError(err.Error())
	}

	r.logger.TaskDebug(id, "task defined", map[string]any{"title": opts.Title})
	return nil
}

// StartTask starts a defined task with params. The running flag is set before
// the executor is invoked, so IsRunning is true as soon as StartTask returns
// and stays true until the executor settles or the task is stopped.
func (r *Registry) StartTask(ctx context.Context, id string, params any) error {
	unlock, ok := r.lockDefined(id)
	if !ok {
		return notDefined(id)
	}
	defer unlock()

	entry, err := r.store.Get(id)
	if err != nil {
		return notDefined(id)
	}

	exec := execution.New(r.ctx, id, entry.Definition.Executor, params, r.results, r.executorSettled)
	if err := r.store.Attach(id, exec); err != nil {
		if stderrors.Is(err, store.ErrActive) {
			return errors.NewInvalidStateError(
				fmt.Sprintf("task %q is already running", id),
				map[string]any{"task_id": id},
			)
		}
		return notDefined(id)
	}

	cfg := tasks.StartConfig{
		ID:         id,
		RunID:      exec.RunID,
		Options:    entry.Definition.Options,
		Parameters: params,
	}
	if err := r.strategy.Launch(ctx, r.platform, cfg, exec.Run); err != nil {
		exec.Abort()
		r.logger.TaskFailure(id, "platform start failed", err, map[string]any{"run_id": exec.RunID})
		return platformError("start", id, err)
	}

	r.store.MarkRunning(id, exec)
	exec.Confirm()

	r.logger.Task(id, "task started", map[string]any{
		"run_id":   exec.RunID,
		"strategy": r.strategy.Name(),
	})
	return nil
}

// StopTask releases the task's pending run, asks the platform to stop it and
// clears the running flag. The executor is not awaited; its context is
// cancelled. Stopping an idle task still reaches the platform.
func (r *Registry) StopTask(ctx context.Context, id string) error {
	return r.stop(ctx, id, nil)
}

// stop does the work of StopTask. When run is set the stop only happens if
// run is still the task's current, unreleased run.
func (r *Registry) stop(ctx context.Context, id string, run *execution.Execution) error {
	unlock, ok := r.lockDefined(id)
	if !ok {
		return notDefined(id)
	}
	defer unlock()

	entry, err := r.store.Get(id)
	if err != nil {
		return notDefined(id)
	}

	if run != nil && (entry.Current != store.Run(run) || run.Released()) {
		r.logger.TaskDebug(id, "stale run settled, ignoring", map[string]any{"run_id": run.RunID})
		return nil
	}

	if entry.Current != nil {
		entry.Current.Release()
	}

	if err := r.platform.Stop(ctx, id); err != nil {
		r.logger.TaskFailure(id, "platform stop failed", err)
		return platformError("stop", id, err)
	}

	r.store.SetRunning(id, false)

	fields := map[string]any{"was_running": entry.Running}
	if run != nil {
		fields["run_id"] = run.RunID
		fields["reason"] = "executor_settled"
	}
	r.logger.Task(id, "task stopped", fields)
	return nil
}

// executorSettled is called by an execution whose executor finished before
// anything released it.
func (r *Registry) executorSettled(e *execution.Execution, _ error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), r.stopTimeout)
	defer cancel()

	if err := r.stop(ctx, e.TaskID, e); err != nil && !errors.IsType(err, errors.NotFound) {
		r.logger.TaskFailure(e.TaskID, "failed to stop task after executor settled", err, map[string]any{
			"run_id": e.RunID,
		})
	}
}

// StopAllTasks stops every running task concurrently and returns once all
// stops have settled. The first error is returned.
func (r *Registry) StopAllTasks(ctx context.Context) error {
	ids := r.store.RunningIDs()
	if len(ids) == 0 {
		return nil
	}

	r.logger.Info("stopping all tasks", map[string]any{"task_ids": ids})

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			return r.StopTask(ctx, id)
		})
	}
	return g.Wait()
}

// UpdateNotification merges patch over the task's stored options and sends
// the result to the platform. The stored options are left as defined. It does
// nothing unless the platform, or failing that the launch strategy, supports
// live notifications.
func (r *Registry) UpdateNotification(ctx context.Context, id string, patch tasks.NotificationPatch) error {
	if !r.live {
		r.logger.TaskDebug(id, "notification update ignored", map[string]any{"strategy": r.strategy.Name()})
		return nil
	}

	unlock, ok := r.lockDefined(id)
	if !ok {
		return notRunning(id)
	}
	defer unlock()

	entry, err := r.store.Get(id)
	if err != nil || !entry.Running {
		return notRunning(id)
	}

	cfg := tasks.NotificationConfig{
		ID:      id,
		Options: entry.Definition.Options.Merge(patch),
	}
	if err := r.platform.UpdateNotification(ctx, cfg); err != nil {
		r.logger.TaskFailure(id, "platform notification update failed", err)
		return platformError("update_notification", id, err)
	}

	r.logger.TaskDebug(id, "notification updated", map[string]any{"title": cfg.Options.Title})
	return nil
}

// IsRunning reports whether id was started and has not been stopped or
// settled since.
func (r *Registry) IsRunning(id string) bool {
	return r.store.IsRunning(id)
}

// DefinedTaskIDs lists defined tasks in definition order.
func (r *Registry) DefinedTaskIDs() []string {
	return r.store.DefinedIDs()
}

// RunningTaskIDs lists running tasks in the order they first started.
func (r *Registry) RunningTaskIDs() []string {
	return r.store.RunningIDs()
}

// Describe returns the stored definition and running state of id.
func (r *Registry) Describe(id string) (tasks.Definition, bool, error) {
	entry, err := r.store.Get(id)
	if err != nil {
		return tasks.Definition{}, false, notDefined(id)
	}
	return entry.Definition, entry.Running, nil
}

// OnExpiration registers fn for expiration events.
func (r *Registry) OnExpiration(fn func(events.ExpirationEvent)) events.Subscription {
	return r.expirations.Subscribe(fn)
}

// Off removes a listener registered with OnExpiration.
func (r *Registry) Off(sub events.Subscription) bool {
	return r.expirations.Unsubscribe(sub)
}

func (r *Registry) handleExpiration(sig platform.ExpirationSignal) {
	n := r.expirations.Publish(events.ExpirationEvent{TaskID: sig.TaskID})
	r.logger.Warn("task expiration signalled", map[string]any{
		"task_id":   sig.TaskID,
		"listeners": n,
	})
}

// Close drops the expiration subscription and cancels every executor
// context. An executor that returns on cancellation settles as usual, so its
// task is stopped through the platform and its running flag cleared. Tasks
// whose executors ignore the context stay running; call StopAllTasks first
// to stop everything.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.unsubscribe()
		r.cancel()
	})
}

func notRunning(id string) error {
	return errors.NewInvalidStateError(
		fmt.Sprintf("task %q must be running before updating the notification", id),
		map[string]any{"task_id": id},
	)
}

func notDefined(id string) error {
	return errors.NewNotFoundError(
		fmt.Sprintf("task %q not found, define it first with DefineTask", id),
		map[string]any{"task_id": id},
	)
}

// platformError preserves structured errors and wraps others.
func platformError(op, id string, err error) error {
	if _, ok := errors.IsTaskError(err); ok {
		return err
	}
	return errors.NewPlatformError(op, id, err)
}

// Package agent is the platform side of the Redis bridge. It takes start,
// stop and notification commands off the command list, tracks which tasks
// hold a foreground slot and reports an expiration when a task outlives the
// time limit.
package agent

import (
	"bgactions/logger"
	"bgactions/tasks"
	"bgactions/tasks/platform"
	"context"
	"sort"
	"sync"
	"time"
)

const (
	errorBackoff   = time.Second
	publishTimeout = 5 * time.Second
)

// CommandSource delivers commands in the order the registry sent them and
// carries expirations back. *platform.Redis satisfies it.
type CommandSource interface {
	NextCommand(ctx context.Context) (*platform.Command, error)
	PublishExpiration(ctx context.Context, taskID string) error
}

var _ CommandSource = (*platform.Redis)(nil)

type activeTask struct {
	runID        string
	startedAt    time.Time
	notification tasks.Options
	timer        *time.Timer
}

// Agent applies commands one at a time. Commands for one task must not be
// reordered, so there is a single consumer loop.
type Agent struct {
	source    CommandSource
	logger    *logger.Logger
	timeLimit time.Duration

	mu     sync.Mutex
	active map[string]*activeTask

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an agent. A zero timeLimit never expires tasks.
func New(source CommandSource, timeLimit time.Duration, lg *logger.Logger) *Agent {
	if lg == nil {
		lg = logger.Discard()
	}
	return &Agent{
		source:    source,
		logger:    lg,
		timeLimit: timeLimit,
		active:    make(map[string]*activeTask),
		stopCh:    make(chan struct{}),
	}
}

// Start runs the command loop until ctx is done or Stop is called.
func (a *Agent) Start(ctx context.Context) {
	a.logger.Info("agent starting", map[string]any{
		"time_limit": a.timeLimit.String(),
	})
	defer a.logger.Info("agent stopped")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			a.processNextCommand(ctx)
		}
	}
}

// Stop signals the loop to exit and drops every expiry timer.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)

		a.mu.Lock()
		defer a.mu.Unlock()
		for _, t := range a.active {
			if t.timer != nil {
				t.timer.Stop()
			}
		}
	})
}

func (a *Agent) processNextCommand(ctx context.Context) {
	cmd, err := a.source.NextCommand(ctx)
	if err != nil {
		// Check if context was cancelled (normal shutdown)
		if ctx.Err() != nil {
			return
		}

		a.logger.Error("failed to read command", map[string]any{
			"error": err.Error(),
		})
		select {
		case <-ctx.Done():
		case <-time.After(errorBackoff):
		}
		return
	}

	a.Apply(cmd)
}

// Apply carries out a single command.
func (a *Agent) Apply(cmd *platform.Command) {
	switch cmd.Op {
	case platform.OpStart:
		a.start(cmd)
	case platform.OpStop:
		a.stop(cmd.TaskID)
	case platform.OpUpdate:
		a.update(cmd)
	default:
		a.logger.Warn("unknown command", map[string]any{
			"command_id": cmd.ID,
			"op":         string(cmd.Op),
			"task_id":    cmd.TaskID,
		})
	}
}

func (a *Agent) start(cmd *platform.Command) {
	t := &activeTask{startedAt: time.Now()}
	if cmd.Start != nil {
		t.runID = cmd.Start.RunID
		t.notification = cmd.Start.Options.Clone()
	}

	a.mu.Lock()
	if prev, ok := a.active[cmd.TaskID]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	if a.timeLimit > 0 {
		id, runID := cmd.TaskID, t.runID
		t.timer = time.AfterFunc(a.timeLimit, func() { a.expire(id, runID) })
	}
	a.active[cmd.TaskID] = t
	a.mu.Unlock()

	a.logger.Task(cmd.TaskID, "foreground slot acquired", map[string]any{
		"run_id": t.runID,
		"title":  t.notification.Title,
	})
}

func (a *Agent) stop(id string) {
	a.mu.Lock()
	t, ok := a.active[id]
	if ok {
		if t.timer != nil {
			t.timer.Stop()
		}
		delete(a.active, id)
	}
	a.mu.Unlock()

	fields := map[string]any{"was_active": ok}
	if ok {
		fields["held_for"] = time.Since(t.startedAt).String()
	}
	a.logger.Task(id, "foreground slot released", fields)
}

func (a *Agent) update(cmd *platform.Command) {
	if cmd.Notification == nil {
		a.logger.Warn("notification command without payload", map[string]any{"task_id": cmd.TaskID})
		return
	}

	a.mu.Lock()
	t, ok := a.active[cmd.TaskID]
	if ok {
		t.notification = cmd.Notification.Options.Clone()
	}
	a.mu.Unlock()

	if !ok {
		a.logger.Warn("notification update for inactive task", map[string]any{"task_id": cmd.TaskID})
		return
	}
	a.logger.TaskDebug(cmd.TaskID, "notification updated", map[string]any{
		"title":       cmd.Notification.Options.Title,
		"description": cmd.Notification.Options.Description,
	})
}

// expire releases the slot and publishes the expiration if runID still
// holds it.
func (a *Agent) expire(id, runID string) {
	a.mu.Lock()
	t, ok := a.active[id]
	if !ok || t.runID != runID {
		a.mu.Unlock()
		return
	}
	delete(a.active, id)
	a.mu.Unlock()

	a.logger.Warn("task exceeded time limit", map[string]any{
		"task_id":    id,
		"run_id":     runID,
		"time_limit": a.timeLimit.String(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := a.source.PublishExpiration(ctx, id); err != nil {
		a.logger.TaskFailure(id, "failed to publish expiration", err)
	}
}

// Active lists the task ids currently holding a slot, sorted.
func (a *Agent) Active() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(a.active))
	for id := range a.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Notification returns the notification currently shown for id.
func (a *Agent) Notification(id string) (tasks.Options, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.active[id]
	if !ok {
		return tasks.Options{}, false
	}
	return t.notification.Clone(), true
}

package platform

import (
	"bgactions/tasks"
	"context"
)

// Job is the wrapped execution closure for one task start.
type Job func()

// ExpirationSignal is raised by the platform when it revokes background time.
// TaskID is empty if the platform cannot tell which task was affected.
type ExpirationSignal struct {
	TaskID string `json:"taskId,omitempty"`
}

// Platform is the OS-facing collaborator that actually keeps work alive and
// renders notifications. The registry never does either itself.
type Platform interface {
	// Start asks the platform to begin background execution for cfg.ID.
	Start(ctx context.Context, cfg tasks.StartConfig) error

	// Stop ends background execution for id. Stopping an idle task is not an error.
	Stop(ctx context.Context, id string) error

	// UpdateNotification replaces the visible notification of a running task.
	UpdateNotification(ctx context.Context, cfg tasks.NotificationConfig) error

	// SubscribeExpiration registers fn for expiration signals and returns a
	// function that removes it.
	SubscribeExpiration(fn func(ExpirationSignal)) (cancel func())
}

// HeadlessRegistrar is implemented by platforms that run registered jobs
// themselves once Start is called, instead of leaving that to the caller.
// Start must not block on the job: it waits until the start is confirmed.
type HeadlessRegistrar interface {
	RegisterHeadless(id string, job Job)
}

// LiveNotifier is implemented by platforms that state for themselves whether
// a running task's notification can be changed. Without it the launch
// strategy decides.
type LiveNotifier interface {
	LiveNotifications() bool
}

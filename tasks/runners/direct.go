package runners

import (
	"bgactions/tasks"
	"bgactions/tasks/platform"
	"context"
)

var _ Strategy = (*Direct)(nil)

// Direct asks the platform to start and then runs the job itself in a new
// goroutine. The platform only keeps the process alive, so Direct reports no
// live notifications unless the platform says otherwise.
type Direct struct{}

func NewDirect() *Direct {
	return &Direct{}
}

func (d *Direct) Name() string {
	return DirectName
}

func (d *Direct) LiveNotifications() bool {
	return false
}

func (d *Direct) Launch(ctx context.Context, p platform.Platform, cfg tasks.StartConfig, job platform.Job) error {
	if err := p.Start(ctx, cfg); err != nil {
		return err
	}

	go job()
	return nil
}

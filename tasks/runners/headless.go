package runners

import (
	"bgactions/errors"
	"bgactions/tasks"
	"bgactions/tasks/platform"
	"context"
	"fmt"
)

var _ Strategy = (*Headless)(nil)

// Headless registers the job with the platform's background-execution
// mechanism and then asks it to start. The platform invokes the job.
type Headless struct{}

func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) Name() string {
	return HeadlessName
}

func (h *Headless) LiveNotifications() bool {
	return true
}

func (h *Headless) Launch(ctx context.Context, p platform.Platform, cfg tasks.StartConfig, job platform.Job) error {
	registrar, ok := p.(platform.HeadlessRegistrar)
	if !ok {
		return errors.NewInternalError(fmt.Sprintf("platform %T cannot run headless jobs", p))
	}

	registrar.RegisterHeadless(cfg.ID, job)
	return p.Start(ctx, cfg)
}

package runners

import (
	"bgactions/errors"
	"bgactions/tasks"
	"bgactions/tasks/platform"
	"context"
	"fmt"
	"strings"
)

const (
	HeadlessName = "headless"
	DirectName   = "direct"
)

// Strategy decides how a start request reaches the platform and who invokes
// the wrapped job afterwards. One strategy is picked per registry.
type Strategy interface {
	Name() string

	// Launch asks p to start cfg.ID and arranges for job to run exactly once
	// if the platform accepted the start. job must not be invoked when Launch
	// returns an error.
	Launch(ctx context.Context, p platform.Platform, cfg tasks.StartConfig, job platform.Job) error

	// LiveNotifications reports whether notifications of running tasks can
	// be updated on this platform.
	LiveNotifications() bool
}

// ForName returns the strategy called name, checking that p can serve it.
func ForName(name string, p platform.Platform) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case HeadlessName:
		if _, ok := p.(platform.HeadlessRegistrar); !ok {
			return nil, errors.NewInvalidArgumentError(
				fmt.Sprintf("platform %T cannot run headless jobs", p),
				map[string]any{"strategy": HeadlessName},
			)
		}
		return NewHeadless(), nil
	case DirectName:
		return NewDirect(), nil
	default:
		return nil, errors.NewInvalidArgumentError("unknown launch strategy: "+name, map[string]any{
			"strategy": name,
			"allowed":  []string{HeadlessName, DirectName},
		})
	}
}

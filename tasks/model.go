package tasks

import (
	"context"
	"maps"
)

// Executor is the body of a background task. It is invoked once per start
// with the parameters passed to StartTask. ctx is cancelled when the task is
// stopped; executors that want to finish early must watch it.
type Executor func(ctx context.Context, params any) error

// Icon identifies the notification icon resource on the platform side.
type Icon struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Package string `json:"package,omitempty"`
}

// ProgressBar describes a determinate or indeterminate progress indicator.
type ProgressBar struct {
	Max           int  `json:"max"`
	Value         int  `json:"value"`
	Indeterminate bool `json:"indeterminate,omitempty"`
}

// Options is the presentation metadata handed to the platform when a task
// starts. Treat it as a value: Merge and Clone never modify the receiver.
type Options struct {
	Title       string         `json:"taskTitle"`
	Description string         `json:"taskDesc"`
	Icon        Icon           `json:"taskIcon"`
	Color       string         `json:"color,omitempty"`
	LinkingURI  string         `json:"linkingURI,omitempty"`
	ProgressBar *ProgressBar   `json:"progressBar,omitempty"`
	Extras      map[string]any `json:"extras,omitempty"`
}

// NotificationPatch carries a partial Options update. Nil fields are left
// untouched; Extras keys are merged one by one.
type NotificationPatch struct {
	Title       *string        `json:"taskTitle,omitempty"`
	Description *string        `json:"taskDesc,omitempty"`
	Icon        *Icon          `json:"taskIcon,omitempty"`
	Color       *string        `json:"color,omitempty"`
	LinkingURI  *string        `json:"linkingURI,omitempty"`
	ProgressBar *ProgressBar   `json:"progressBar,omitempty"`
	Extras      map[string]any `json:"extras,omitempty"`
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	out := o
	if o.ProgressBar != nil {
		pb := *o.ProgressBar
		out.ProgressBar = &pb
	}
	if o.Extras != nil {
		out.Extras = maps.Clone(o.Extras)
	}
	return out
}

// Merge returns a new Options with every non-nil patch field applied on top
// of o.
func (o Options) Merge(p NotificationPatch) Options {
	out := o.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Icon != nil {
		out.Icon = *p.Icon
	}
	if p.Color != nil {
		out.Color = *p.Color
	}
	if p.LinkingURI != nil {
		out.LinkingURI = *p.LinkingURI
	}
	if p.ProgressBar != nil {
		pb := *p.ProgressBar
		out.ProgressBar = &pb
	}
	if len(p.Extras) > 0 {
		if out.Extras == nil {
			out.Extras = make(map[string]any, len(p.Extras))
		}
		maps.Copy(out.Extras, p.Extras)
	}
	return out
}

// StartConfig is what the platform receives when a task starts.
type StartConfig struct {
	ID         string  `json:"taskName"`
	RunID      string  `json:"runId"`
	Options    Options `json:"options"`
	Parameters any     `json:"parameters,omitempty"`
}

// NotificationConfig is a merged notification update tagged with its task.
type NotificationConfig struct {
	ID      string  `json:"taskName"`
	Options Options `json:"options"`
}

// Definition is a task as declared through DefineTask.
type Definition struct {
	ID       string
	Executor Executor
	Options  Options
}

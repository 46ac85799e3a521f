package store

import (
	"bgactions/tasks"
	"errors"
)

var (
	// ErrNotFound is returned when an operation references an undefined task.
	ErrNotFound = errors.New("task not defined")
	// ErrActive is returned when a task still has a live run attached.
	ErrActive = errors.New("task has an active run")
)

// Run is the part of an execution the store needs to reason about.
type Run interface {
	Release()
	Released() bool
}

// Entry is a snapshot of what the store knows about one task.
type Entry struct {
	Definition tasks.Definition
	Current    Run
	Running    bool
}

// TaskStore defines the contract for task definition and running-state storage.
// Every method is atomic on its own.
type TaskStore interface {
	// Put stores or overwrites a definition. Fails with ErrActive while the
	// task has an unreleased run.
	Put(def tasks.Definition) error
	Get(id string) (Entry, error)
	// Attach makes run the current run of id. Fails with ErrNotFound or ErrActive.
	Attach(id string, run Run) error
	// MarkRunning sets the running flag only if run is still current and not released.
	MarkRunning(id string, run Run) bool
	SetRunning(id string, running bool)
	IsCurrent(id string, run Run) bool
	IsRunning(id string) bool
	DefinedIDs() []string
	RunningIDs() []string
}

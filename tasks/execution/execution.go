package execution

import (
	"bgactions/tasks"
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SettleFunc is called once when the executor finishes on its own, before
// anything released the run.
type SettleFunc func(e *Execution, err error)

// PanicError wraps a value recovered from a panicking executor.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("executor panic: %v", p.Value)
}

// Execution is the one-shot wrapped closure built for every StartTask call.
//
// The closure (Run) waits on a gate until the registry confirms the platform
// accepted the start, then invokes the executor and blocks until either the
// executor settles or the run is released by a stop. Release does not wait
// for the executor; the executor keeps going with a cancelled context.
type Execution struct {
	TaskID string
	RunID  string
	Params any

	executor      tasks.Executor
	resultHandler ResultHandler
	onSettle      SettleFunc

	ctx    context.Context
	cancel context.CancelFunc

	gate     chan struct{}
	gateOnce sync.Once
	aborted  atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once

	runOnce  sync.Once
	finished chan struct{}
	settled  chan struct{}

	mu        sync.Mutex
	startTime time.Time
	endTime   time.Time
	err       error
}

// New prepares an execution of executor for taskID. parent bounds the
// executor's context; it must outlive the call that started the task.
func New(parent context.Context, taskID string, executor tasks.Executor, params any, handler ResultHandler, onSettle SettleFunc) *Execution {
	if parent == nil {
		parent = context.Background()
	}
	if handler == nil {
		handler = NopResultHandler{}
	}
	ctx, cancel := context.WithCancel(parent)
	return &Execution{
		TaskID:        taskID,
		RunID:         uuid.New().String(),
		Params:        params,
		executor:      executor,
		resultHandler: handler,
		onSettle:      onSettle,
		ctx:           ctx,
		cancel:        cancel,
		gate:          make(chan struct{}),
		stop:          make(chan struct{}),
		finished:      make(chan struct{}),
		settled:       make(chan struct{}),
	}
}

// Run is the closure handed to the platform. Only the first call does anything.
func (e *Execution) Run() {
	e.runOnce.Do(e.run)
}

func (e *Execution) run() {
	defer close(e.finished)

	<-e.gate
	if e.aborted.Load() || e.Released() {
		e.cancel()
		close(e.settled)
		return
	}

	e.mu.Lock()
	e.startTime = time.Now()
	e.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		result <- e.invoke()
	}()

	select {
	case err := <-result:
		e.settle(err, true)
	case <-e.stop:
		// Released by a stop: stop waiting, let the executor wind down alone.
		go func() {
			e.settle(<-result, false)
		}()
	}
}

func (e *Execution) invoke() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return e.executor(e.ctx, e.Params)
}

func (e *Execution) settle(err error, notify bool) {
	e.mu.Lock()
	e.endTime = time.Now()
	e.err = err
	e.mu.Unlock()
	close(e.settled)

	if err != nil {
		e.resultHandler.HandleFailure(e)
	} else {
		e.resultHandler.HandleSuccess(e)
	}

	if notify && !e.Released() && e.onSettle != nil {
		e.onSettle(e, err)
	}
}

// Confirm opens the gate so a pending or future Run can invoke the executor.
func (e *Execution) Confirm() {
	e.gateOnce.Do(func() { close(e.gate) })
}

// Abort marks the execution as never started: Run returns without invoking
// the executor.
func (e *Execution) Abort() {
	e.aborted.Store(true)
	e.Release()
	e.Confirm()
}

// Release fires the stop signal and cancels the executor's context. Safe to
// call any number of times.
func (e *Execution) Release() {
	e.stopOnce.Do(func() {
		close(e.stop)
		e.cancel()
	})
}

// Released reports whether Release has been called.
func (e *Execution) Released() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

// Aborted reports whether the execution was aborted before it could start.
func (e *Execution) Aborted() bool {
	return e.aborted.Load()
}

// Context returns the context passed to the executor.
func (e *Execution) Context() context.Context {
	return e.ctx
}

// Finished is closed when Run returns.
func (e *Execution) Finished() <-chan struct{} {
	return e.finished
}

// Settled is closed once the executor has returned, or when Run decided not
// to invoke it.
func (e *Execution) Settled() <-chan struct{} {
	return e.settled
}

// Err returns the executor's error once it has settled.
func (e *Execution) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Duration returns how long the executor ran, or has been running so far.
func (e *Execution) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.startTime.IsZero() {
		return 0
	}
	if e.endTime.IsZero() {
		return time.Since(e.startTime)
	}
	return e.endTime.Sub(e.startTime)
}

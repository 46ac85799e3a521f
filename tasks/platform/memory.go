package platform

import (
	"bgactions/logger"
	"bgactions/tasks"
	"bgactions/tasks/events"
	"context"
	"sync"
)

var (
	_ Platform          = (*Memory)(nil)
	_ HeadlessRegistrar = (*Memory)(nil)
)

// Memory is an in-process platform. It keeps no OS resources: it records what
// it was asked to do, runs registered headless jobs when a task starts, and
// lets callers raise expirations by hand. The demo host and tests use it.
type Memory struct {
	logger      *logger.Logger
	expirations *events.Channel[ExpirationSignal]

	mu       sync.Mutex
	headless map[string]Job
	active   map[string]bool
	starts   []tasks.StartConfig
	stops    []string
	updates  []tasks.NotificationConfig

	startErr  error
	stopErr   error
	updateErr error
}

// NewMemory creates an empty in-process platform.
func NewMemory(lg *logger.Logger) *Memory {
	if lg == nil {
		lg = logger.Discard()
	}
	return &Memory{
		logger: lg,
		expirations: events.NewChannel[ExpirationSignal](events.KindExpiration, func(_ events.Kind, p any) {
			lg.Error("expiration subscriber panicked", map[string]any{"panic": p})
		}),
		headless: make(map[string]Job),
		active:   make(map[string]bool),
	}
}

func (m *Memory) RegisterHeadless(id string, job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headless[id] = job
}

func (m *Memory) Start(ctx context.Context, cfg tasks.StartConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.startErr != nil {
		err := m.startErr
		m.mu.Unlock()
		return err
	}
	m.starts = append(m.starts, cfg)
	m.active[cfg.ID] = true
	job := m.headless[cfg.ID]
	delete(m.headless, cfg.ID)
	m.mu.Unlock()

	m.logger.TaskDebug(cfg.ID, "platform start", map[string]any{
		"run_id":   cfg.RunID,
		"headless": job != nil,
	})

	if job != nil {
		go job()
	}
	return nil
}

func (m *Memory) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopErr != nil {
		return m.stopErr
	}
	m.stops = append(m.stops, id)
	delete(m.active, id)
	m.logger.TaskDebug(id, "platform stop")
	return nil
}

func (m *Memory) UpdateNotification(ctx context.Context, cfg tasks.NotificationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, cfg)
	m.logger.TaskDebug(cfg.ID, "platform notification update", map[string]any{
		"title": cfg.Options.Title,
	})
	return nil
}

func (m *Memory) SubscribeExpiration(fn func(ExpirationSignal)) func() {
	sub := m.expirations.Subscribe(fn)
	return func() {
		m.expirations.Unsubscribe(sub)
	}
}

// Expire raises an expiration signal for taskID (which may be empty) and
// returns how many subscribers saw it.
func (m *Memory) Expire(taskID string) int {
	return m.expirations.Publish(ExpirationSignal{TaskID: taskID})
}

// Subscribers returns the number of expiration subscribers.
func (m *Memory) Subscribers() int {
	return m.expirations.Len()
}

// FailStart makes subsequent Start calls return err. Pass nil to clear.
func (m *Memory) FailStart(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// FailStop makes subsequent Stop calls return err. Pass nil to clear.
func (m *Memory) FailStop(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopErr = err
}

// FailUpdate makes subsequent UpdateNotification calls return err.
func (m *Memory) FailUpdate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = err
}

// Starts returns a copy of every accepted start, in call order.
func (m *Memory) Starts() []tasks.StartConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tasks.StartConfig(nil), m.starts...)
}

// Stops returns a copy of every stopped id, in call order.
func (m *Memory) Stops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.stops...)
}

// StopCount returns how many times Stop was called for id.
func (m *Memory) StopCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.stops {
		if s == id {
			n++
		}
	}
	return n
}

// Updates returns a copy of every notification update, in call order.
func (m *Memory) Updates() []tasks.NotificationConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tasks.NotificationConfig(nil), m.updates...)
}

// Active reports whether id was started and not stopped since.
func (m *Memory) Active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[id]
}

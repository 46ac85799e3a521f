package registry

import (
	"bgactions/errors"
	"bgactions/logger"
	"bgactions/tasks"
	"bgactions/tasks/events"
	"bgactions/tasks/platform"
	"bgactions/tasks/runners"
	"bytes"
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func newTestRegistry(t *testing.T, strategy runners.Strategy) (*Registry, *platform.Memory) {
	t.Helper()
	p := platform.NewMemory(nil)
	r := New(p, strategy, logger.Discard())
	t.Cleanup(r.Close)
	return r, p
}

func blockUntilStopped(ctx context.Context, _ any) error {
	<-ctx.Done()
	return ctx.Err()
}

var defaultOptions = tasks.Options{
	Title:       "Syncing",
	Description: "Uploading photos",
	Icon:        tasks.Icon{Name: "ic_launcher", Type: "mipmap"},
	Color:       "#ff00ff",
}

func strategies() map[string]runners.Strategy {
	return map[string]runners.Strategy{
		runners.HeadlessName: runners.NewHeadless(),
		runners.DirectName:   runners.NewDirect(),
	}
}

func TestDefineTask_Validation(t *testing.T) {
	r, _ := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	err := r.DefineTask(ctx, "", blockUntilStopped, defaultOptions)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.InvalidArgument))

	err = r.DefineTask(ctx, "sync", nil, defaultOptions)
	assert.True(t, errors.IsType(err, errors.InvalidArgument))

	assert.Empty(t, r.DefinedTaskIDs())
}

func TestDefineTask_DoesNotStartOrTouchRunningState(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())

	require.NoError(t, r.DefineTask(context.Background(), "sync", blockUntilStopped, defaultOptions))

	assert.Equal(t, []string{"sync"}, r.DefinedTaskIDs())
	assert.False(t, r.IsRunning("sync"))
	assert.Empty(t, r.RunningTaskIDs())
	assert.Empty(t, p.Starts())
}

func TestStartTask_UndefinedIsNotFound(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())

	for _, id := range []string{"missing", ""} {
		err := r.StartTask(context.Background(), id, nil)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.NotFound), "id %q", id)
	}
	assert.Empty(t, p.Starts())
}

func TestStartTask_RunningBeforeExecutorBody(t *testing.T) {
	for name, strategy := range strategies() {
		t.Run(name, func(t *testing.T) {
			r, p := newTestRegistry(t, strategy)
			ctx := context.Background()

			observed := make(chan bool, 1)
			require.NoError(t, r.DefineTask(ctx, "sync", func(ctx context.Context, _ any) error {
				observed <- r.IsRunning("sync")
				<-ctx.Done()
				return nil
			}, defaultOptions))

			require.NoError(t, r.StartTask(ctx, "sync", nil))
			assert.True(t, r.IsRunning("sync"))

			select {
			case running := <-observed:
				assert.True(t, running, "executor saw the task as not running")
			case <-time.After(waitFor):
				t.Fatal("executor was not invoked")
			}

			starts := p.Starts()
			require.Len(t, starts, 1)
			assert.Equal(t, "sync", starts[0].ID)
			assert.NotEmpty(t, starts[0].RunID)
			assert.Empty(t, cmp.Diff(defaultOptions, starts[0].Options))
		})
	}
}

func TestStartTask_ExecutorCompletionClearsRunning(t *testing.T) {
	for name, strategy := range strategies() {
		t.Run(name, func(t *testing.T) {
			r, p := newTestRegistry(t, strategy)
			ctx := context.Background()

			proceed := make(chan struct{})
			var got any
			require.NoError(t, r.DefineTask(ctx, "A", func(_ context.Context, params any) error {
				got = params
				<-proceed
				return nil
			}, defaultOptions))

			require.NoError(t, r.StartTask(ctx, "A", map[string]int{"n": 1}))
			assert.True(t, r.IsRunning("A"))

			close(proceed)

			require.Eventually(t, func() bool { return !r.IsRunning("A") }, waitFor, 5*time.Millisecond)
			require.Eventually(t, func() bool { return p.StopCount("A") == 1 }, waitFor, 5*time.Millisecond)
			assert.Equal(t, map[string]int{"n": 1}, got)
			assert.Empty(t, r.RunningTaskIDs())
		})
	}
}

func TestStartTask_ExecutorFailureIsSwallowed(t *testing.T) {
	tests := []struct {
		name     string
		executor tasks.Executor
	}{
		{
			name:     "error",
			executor: func(context.Context, any) error { return stderrors.New("disk full") },
		},
		{
			name:     "panic",
			executor: func(context.Context, any) error { panic("nil map") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			var mu sync.Mutex
			lg := logger.New("DEBUG", &lockedWriter{mu: &mu, w: &buf})

			p := platform.NewMemory(nil)
			r := New(p, runners.NewHeadless(), lg)
			t.Cleanup(r.Close)
			ctx := context.Background()

			require.NoError(t, r.DefineTask(ctx, "A", tt.executor, defaultOptions))
			require.NoError(t, r.StartTask(ctx, "A", nil))

			require.Eventually(t, func() bool { return p.StopCount("A") == 1 }, waitFor, 5*time.Millisecond)
			assert.False(t, r.IsRunning("A"))

			mu.Lock()
			defer mu.Unlock()
			assert.Contains(t, buf.String(), `"error_type":"executor_failure"`)
		})
	}
}

func TestStartTask_AlreadyRunningIsInvalidState(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))

	err := r.StartTask(ctx, "A", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.InvalidState))
	assert.Len(t, p.Starts(), 1)
}

func TestStartTask_PlatformFailure(t *testing.T) {
	for name, strategy := range strategies() {
		t.Run(name, func(t *testing.T) {
			r, p := newTestRegistry(t, strategy)
			ctx := context.Background()

			var calls atomic.Int32
			require.NoError(t, r.DefineTask(ctx, "A", func(ctx context.Context, _ any) error {
				calls.Add(1)
				<-ctx.Done()
				return nil
			}, defaultOptions))

			boom := stderrors.New("foreground service not allowed")
			p.FailStart(boom)

			err := r.StartTask(ctx, "A", nil)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.PlatformFailure))
			assert.ErrorIs(t, err, boom)
			assert.False(t, r.IsRunning("A"))

			p.FailStart(nil)
			require.NoError(t, r.StartTask(ctx, "A", nil))
			require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, 5*time.Millisecond)
			assert.True(t, r.IsRunning("A"))
		})
	}
}

func TestStopTask(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, r.DefineTask(ctx, "A", func(ctx context.Context, _ any) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))

	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("executor was not invoked")
	}

	require.NoError(t, r.StopTask(ctx, "A"))
	assert.False(t, r.IsRunning("A"))
	assert.Equal(t, 1, p.StopCount("A"))

	select {
	case <-cancelled:
	case <-time.After(waitFor):
		t.Fatal("executor context was not cancelled")
	}

	// The released executor settling must not issue another stop
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, p.StopCount("A"))
}

func TestStopTask_DoesNotWaitForExecutor(t *testing.T) {
	r, _ := newTestRegistry(t, runners.NewDirect())
	ctx := context.Background()

	stubborn := make(chan struct{})
	defer close(stubborn)

	started := make(chan struct{})
	require.NoError(t, r.DefineTask(ctx, "A", func(context.Context, any) error {
		close(started)
		<-stubborn
		return nil
	}, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))

	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("executor was not invoked")
	}

	done := make(chan error, 1)
	go func() { done <- r.StopTask(ctx, "A") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("StopTask waited for the executor")
	}
	assert.False(t, r.IsRunning("A"))
}

func TestStopTask_IdempotentInEffect(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, defaultOptions))

	// Never started: the platform still hears about it
	require.NoError(t, r.StopTask(ctx, "A"))
	require.NoError(t, r.StartTask(ctx, "A", nil))
	require.NoError(t, r.StopTask(ctx, "A"))
	require.NoError(t, r.StopTask(ctx, "A"))

	assert.Equal(t, 3, p.StopCount("A"))
	assert.False(t, r.IsRunning("A"))
}

func TestStopTask_UndefinedIsNotFound(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())

	err := r.StopTask(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.NotFound))
	assert.Empty(t, p.Stops())
}

func TestStopTask_PlatformFailureKeepsRunning(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))

	p.FailStop(stderrors.New("service not bound"))
	err := r.StopTask(ctx, "A")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.PlatformFailure))
	assert.True(t, r.IsRunning("A"))

	p.FailStop(nil)
	require.NoError(t, r.StopTask(ctx, "A"))
	assert.False(t, r.IsRunning("A"))
}

func TestStopTask_OnlyAffectsItsTask(t *testing.T) {
	r, _ := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	var mu sync.Mutex
	got := map[string]any{}
	record := func(id string) tasks.Executor {
		return func(ctx context.Context, params any) error {
			mu.Lock()
			got[id] = params
			mu.Unlock()
			<-ctx.Done()
			return nil
		}
	}

	require.NoError(t, r.DefineTask(ctx, "A", record("A"), defaultOptions))
	require.NoError(t, r.DefineTask(ctx, "B", record("B"), defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", map[string]int{"n": 1}))
	require.NoError(t, r.StartTask(ctx, "B", map[string]int{"n": 2}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, waitFor, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, map[string]int{"n": 1}, got["A"])
	assert.Equal(t, map[string]int{"n": 2}, got["B"])
	mu.Unlock()

	require.NoError(t, r.StopTask(ctx, "A"))
	assert.False(t, r.IsRunning("A"))
	assert.True(t, r.IsRunning("B"))
	assert.Equal(t, []string{"B"}, r.RunningTaskIDs())
}

func TestStopAllTasks(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C", "idle"} {
		require.NoError(t, r.DefineTask(ctx, id, blockUntilStopped, defaultOptions))
	}
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, r.StartTask(ctx, id, nil))
	}

	require.NoError(t, r.StopAllTasks(ctx))

	assert.Empty(t, r.RunningTaskIDs())
	assert.ElementsMatch(t, []string{"A", "B", "C"}, p.Stops())
	assert.Equal(t, 0, p.StopCount("idle"))
}

func TestStopAllTasks_NothingRunning(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())

	require.NoError(t, r.StopAllTasks(context.Background()))
	assert.Empty(t, p.Stops())
}

func TestStopAllTasks_ReportsFailure(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))

	p.FailStop(stderrors.New("service not bound"))
	err := r.StopAllTasks(ctx)
	assert.True(t, errors.IsType(err, errors.PlatformFailure))
}

func TestUpdateNotification(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, defaultOptions))

	title := "Half way"
	patch := tasks.NotificationPatch{
		Title:       &title,
		ProgressBar: &tasks.ProgressBar{Max: 100, Value: 50},
	}

	err := r.UpdateNotification(ctx, "A", patch)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.InvalidState))

	require.NoError(t, r.StartTask(ctx, "A", nil))
	require.NoError(t, r.UpdateNotification(ctx, "A", patch))

	want := defaultOptions
	want.Title = "Half way"
	want.ProgressBar = &tasks.ProgressBar{Max: 100, Value: 50}

	updates := p.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "A", updates[0].ID)
	if diff := cmp.Diff(want, updates[0].Options); diff != "" {
		t.Errorf("merged options mismatch (-want +got):\n%s", diff)
	}

	// Stored options keep their defined values
	def, running, err := r.Describe("A")
	require.NoError(t, err)
	assert.True(t, running)
	assert.Empty(t, cmp.Diff(defaultOptions, def.Options))
}

func TestUpdateNotification_UndefinedIsInvalidState(t *testing.T) {
	r, _ := newTestRegistry(t, runners.NewHeadless())

	err := r.UpdateNotification(context.Background(), "missing", tasks.NotificationPatch{})
	assert.True(t, errors.IsType(err, errors.InvalidState))
}

func TestUpdateNotification_NoopWithoutLiveNotifications(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewDirect())
	ctx := context.Background()

	title := "ignored"
	require.NoError(t, r.UpdateNotification(ctx, "never-defined", tasks.NotificationPatch{Title: &title}))
	assert.Empty(t, p.Updates())
}

// liveMemory is a memory platform that answers the live-notification
// question itself, the way the redis bridge does
type liveMemory struct {
	*platform.Memory
	live bool
}

func (m liveMemory) LiveNotifications() bool {
	return m.live
}

func TestUpdateNotification_PlatformDecidesLiveNotifications(t *testing.T) {
	tests := []struct {
		name        string
		strategy    runners.Strategy
		live        bool
		wantUpdates int
	}{
		{name: "live platform with direct strategy", strategy: runners.NewDirect(), live: true, wantUpdates: 1},
		{name: "static platform with headless strategy", strategy: runners.NewHeadless(), live: false, wantUpdates: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := liveMemory{Memory: platform.NewMemory(nil), live: tt.live}
			r := New(p, tt.strategy, nil)
			defer r.Close()
			ctx := context.Background()

			require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, defaultOptions))
			require.NoError(t, r.StartTask(ctx, "A", nil))

			desc := "50%"
			require.NoError(t, r.UpdateNotification(ctx, "A", tasks.NotificationPatch{Description: &desc}))

			updates := p.Updates()
			require.Len(t, updates, tt.wantUpdates)
			if tt.wantUpdates > 0 {
				assert.Equal(t, "A", updates[0].ID)
				assert.Equal(t, "50%", updates[0].Options.Description)
				assert.Equal(t, defaultOptions.Title, updates[0].Options.Title)
			}
		})
	}
}

func TestUnknownIDsDoNotAllocateLocks(t *testing.T) {
	r, _ := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	for _, id := range []string{"ghost-1", "ghost-2", "ghost-3"} {
		assert.True(t, errors.IsType(r.StartTask(ctx, id, nil), errors.NotFound))
		assert.True(t, errors.IsType(r.StopTask(ctx, id), errors.NotFound))
		assert.True(t, errors.IsType(r.UpdateNotification(ctx, id, tasks.NotificationPatch{}), errors.InvalidState))
	}

	r.locksMu.Lock()
	assert.Empty(t, r.locks)
	r.locksMu.Unlock()

	require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))
	require.NoError(t, r.StopTask(ctx, "A"))

	r.locksMu.Lock()
	assert.Len(t, r.locks, 1)
	r.locksMu.Unlock()
}

func TestUpdateNotification_PlatformFailure(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))

	p.FailUpdate(stderrors.New("channel deleted"))
	err := r.UpdateNotification(ctx, "A", tasks.NotificationPatch{})
	assert.True(t, errors.IsType(err, errors.PlatformFailure))
	assert.True(t, r.IsRunning("A"))
}

func TestRedefine(t *testing.T) {
	r, _ := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, defaultOptions))
	require.NoError(t, r.DefineTask(ctx, "B", blockUntilStopped, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))

	err := r.DefineTask(ctx, "A", blockUntilStopped, tasks.Options{Title: "new"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.InvalidState))
	assert.True(t, r.IsRunning("A"))

	require.NoError(t, r.StopTask(ctx, "A"))
	require.NoError(t, r.DefineTask(ctx, "A", blockUntilStopped, tasks.Options{Title: "new"}))

	def, _, err := r.Describe("A")
	require.NoError(t, err)
	assert.Equal(t, "new", def.Options.Title)
	assert.Equal(t, []string{"A", "B"}, r.DefinedTaskIDs())
}

func TestStaleRunDoesNotStopNewerRun(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewDirect())
	ctx := context.Background()

	// The first run ignores cancellation and only returns when told to
	release := make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, r.DefineTask(ctx, "A", func(ctx context.Context, _ any) error {
		if runs.Add(1) == 1 {
			<-release
			return nil
		}
		<-ctx.Done()
		return nil
	}, defaultOptions))

	require.NoError(t, r.StartTask(ctx, "A", nil))
	require.Eventually(t, func() bool { return runs.Load() == 1 }, waitFor, 5*time.Millisecond)
	require.NoError(t, r.StopTask(ctx, "A"))

	require.NoError(t, r.StartTask(ctx, "A", nil))
	require.Eventually(t, func() bool { return runs.Load() == 2 }, waitFor, 5*time.Millisecond)

	close(release)
	time.Sleep(20 * time.Millisecond)

	assert.True(t, r.IsRunning("A"))
	assert.Equal(t, 1, p.StopCount("A"))
}

func TestListingsKeepInsertionOrder(t *testing.T) {
	r, _ := newTestRegistry(t, runners.NewHeadless())
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.DefineTask(ctx, id, blockUntilStopped, defaultOptions))
	}
	for _, id := range []string{"mid", "zeta"} {
		require.NoError(t, r.StartTask(ctx, id, nil))
	}

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.DefinedTaskIDs())
	assert.Equal(t, []string{"mid", "zeta"}, r.RunningTaskIDs())
}

func TestExpirationBridging(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())
	assert.Equal(t, 1, p.Subscribers())

	var first, second []events.ExpirationEvent
	sub1 := r.OnExpiration(func(ev events.ExpirationEvent) { first = append(first, ev) })
	r.OnExpiration(func(ev events.ExpirationEvent) { second = append(second, ev) })

	p.Expire("X")
	p.Expire("")

	want := []events.ExpirationEvent{{TaskID: "X"}, {TaskID: ""}}
	assert.Equal(t, want, first)
	assert.Equal(t, want, second)

	assert.True(t, r.Off(sub1))
	assert.False(t, r.Off(sub1))

	p.Expire("Y")
	assert.Len(t, first, 2)
	assert.Len(t, second, 3)
}

func TestExpirationListenerPanicIsIsolated(t *testing.T) {
	r, p := newTestRegistry(t, runners.NewHeadless())

	var got []string
	r.OnExpiration(func(events.ExpirationEvent) { panic("listener bug") })
	r.OnExpiration(func(ev events.ExpirationEvent) { got = append(got, ev.TaskID) })

	require.NotPanics(t, func() { p.Expire("X") })
	assert.Equal(t, []string{"X"}, got)
}

func TestClose(t *testing.T) {
	p := platform.NewMemory(nil)
	r := New(p, runners.NewHeadless(), nil)
	ctx := context.Background()

	cancelled := make(chan struct{})
	require.NoError(t, r.DefineTask(ctx, "A", func(ctx context.Context, _ any) error {
		<-ctx.Done()
		close(cancelled)
		return nil
	}, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))

	r.Close()
	r.Close()

	assert.Equal(t, 0, p.Subscribers())
	select {
	case <-cancelled:
	case <-time.After(waitFor):
		t.Fatal("executor context was not cancelled on Close")
	}

	// The cooperative executor settles, which stops its task
	require.Eventually(t, func() bool {
		return !r.IsRunning("A") && p.StopCount("A") == 1
	}, waitFor, 5*time.Millisecond)
	assert.False(t, p.Active("A"))
}

func TestClose_IgnoringExecutorKeepsRunning(t *testing.T) {
	p := platform.NewMemory(nil)
	r := New(p, runners.NewHeadless(), nil)
	ctx := context.Background()

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, r.DefineTask(ctx, "A", func(context.Context, any) error {
		<-release
		return nil
	}, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "A", nil))

	r.Close()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, r.IsRunning("A"))
	assert.Equal(t, 0, p.StopCount("A"))
}

// MockPlatform for asserting exact collaborator calls
type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) Start(ctx context.Context, cfg tasks.StartConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *MockPlatform) Stop(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPlatform) UpdateNotification(ctx context.Context, cfg tasks.NotificationConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *MockPlatform) SubscribeExpiration(fn func(platform.ExpirationSignal)) func() {
	m.Called(fn)
	return func() {}
}

func TestStartTask_PassesParametersToPlatform(t *testing.T) {
	p := &MockPlatform{}
	p.On("SubscribeExpiration", mock.Anything).Return().Once()
	p.On("Start", mock.Anything, mock.MatchedBy(func(cfg tasks.StartConfig) bool {
		return cfg.ID == "upload" && cfg.RunID != "" && cmp.Equal(cfg.Parameters, map[string]any{"album": "2024"})
	})).Return(nil).Once()
	p.On("Stop", mock.Anything, "upload").Return(nil).Once()

	r := New(p, runners.NewDirect(), nil)
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, r.DefineTask(ctx, "upload", blockUntilStopped, defaultOptions))
	require.NoError(t, r.StartTask(ctx, "upload", map[string]any{"album": "2024"}))
	require.NoError(t, r.StopTask(ctx, "upload"))

	p.AssertExpectations(t)
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}

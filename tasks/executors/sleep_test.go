package executors

import (
	"bgactions/errors"
	"bgactions/logger"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert"
)

// FakeSleeper is a test double for Sleeper.
// It records the sleep duration without actually pausing execution.
type FakeSleeper struct {
	CalledWith time.Duration
	Err        error
}

func (f *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.CalledWith = d
	return f.Err
}

func TestSleepExecutor_Run(t *testing.T) {
	tests := []struct {
		name              string
		params            any
		wantErrContains   string
		wantSleepDuration time.Duration
	}{
		{
			name:              "basic sleep - 1 second",
			params:            json.RawMessage(`{"seconds":1}`),
			wantSleepDuration: 1 * time.Second,
		},
		{
			name:              "multiple seconds",
			params:            json.RawMessage(`{"seconds":2}`),
			wantSleepDuration: 2 * time.Second,
		},
		{
			name:              "decoded map from catalog",
			params:            map[string]any{"seconds": 3},
			wantSleepDuration: 3 * time.Second,
		},
		{
			name:            "zero seconds - should error",
			params:          json.RawMessage(`{"seconds":0}`),
			wantErrContains: "invalid sleep duration: must be > 0",
		},
		{
			name:            "negative seconds - should error",
			params:          json.RawMessage(`{"seconds":-1}`),
			wantErrContains: "invalid sleep duration: must be > 0",
		},
		{
			name:            "missing seconds field",
			params:          json.RawMessage(`{"other_field":"value"}`),
			wantErrContains: "missing or invalid 'seconds' field",
		},
		{
			name:            "nil params",
			params:          nil,
			wantErrContains: "missing or invalid 'seconds' field",
		},
		{
			name:            "null seconds",
			params:          json.RawMessage(`{"seconds":null}`),
			wantErrContains: "missing or invalid 'seconds' field",
		},
		{
			name:            "invalid JSON",
			params:          json.RawMessage(`{"seconds":"not a number"`),
			wantErrContains: "invalid sleep parameters",
		},
		{
			name:            "string seconds",
			params:          json.RawMessage(`{"seconds":"5"}`),
			wantErrContains: "invalid sleep parameters",
		},
		{
			name:            "float seconds",
			params:          json.RawMessage(`{"seconds":1.5}`),
			wantErrContains: "invalid sleep parameters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeSleeper := &FakeSleeper{}
			executor := &SleepExecutor{
				sleeper: fakeSleeper,
				logger:  logger.Discard(),
			}

			err := executor.Run(context.Background(), "test-id", tt.params)

			if tt.wantErrContains != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, tt.wantErrContains)
				assert.Assert(t, errors.IsType(err, errors.InvalidArgument))
				// Verify sleep was NOT called on error
				assert.Equal(t, time.Duration(0), fakeSleeper.CalledWith)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSleepDuration, fakeSleeper.CalledWith)
		})
	}
}

func TestSleepExecutor_Interrupted(t *testing.T) {
	executor := &SleepExecutor{
		sleeper: &FakeSleeper{Err: context.Canceled},
		logger:  logger.Discard(),
	}

	err := executor.Run(context.Background(), "test-id", map[string]any{"seconds": 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRealSleeper(t *testing.T) {
	s := &realSleeper{}

	assert.NilError(t, s.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := s.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Assert(t, time.Since(start) < time.Second)
}

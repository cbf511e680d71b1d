package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestPolicy(t *testing.T, waits *[]time.Duration) *Policy {
	t.Helper()
	p := NewPolicy(100*time.Millisecond, 2, 10*time.Second, zaptest.NewLogger(t).Sugar())
	p.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}

	return p
}

func failingOp(failures int, calls *int) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		if *calls <= failures {
			return errors.New("connection refused")
		}
		return nil
	}
}

func TestPolicy_Run_BackoffGrowth(t *testing.T) {
	t.Parallel()
	var waits []time.Duration
	p := newTestPolicy(t, &waits)

	calls := 0
	err := p.Run(context.Background(), "test", failingOp(9, &calls))
	require.NoError(t, err)

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
		6400 * time.Millisecond,
		10 * time.Second,
		10 * time.Second,
	}
	assert.Equal(t, expected, waits)
	assert.Equal(t, 10, calls)
}

func TestPolicy_Run_FirstAttemptSucceeds(t *testing.T) {
	t.Parallel()
	var waits []time.Duration
	p := newTestPolicy(t, &waits)

	calls := 0
	require.NoError(t, p.Run(context.Background(), "test", failingOp(0, &calls)))
	assert.Empty(t, waits)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Run_ScheduleRestartsPerCall(t *testing.T) {
	t.Parallel()
	var waits []time.Duration
	p := newTestPolicy(t, &waits)

	calls := 0
	require.NoError(t, p.Run(context.Background(), "first", failingOp(2, &calls)))
	calls = 0
	require.NoError(t, p.Run(context.Background(), "second", failingOp(1, &calls)))

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		100 * time.Millisecond,
	}, waits)
}

func TestPolicy_Run_ContextCanceled(t *testing.T) {
	t.Parallel()
	p := NewPolicy(time.Hour, 2, 2*time.Hour, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, "test", func(context.Context) error {
			calls++
			return errors.New("unavailable")
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPolicy_Run_NotifiesObserver(t *testing.T) {
	t.Parallel()
	var waits []time.Duration
	p := newTestPolicy(t, &waits)

	var observed []string
	p.OnRetry = func(operation string) { observed = append(observed, operation) }

	calls := 0
	require.NoError(t, p.Run(context.Background(), "bulk", failingOp(3, &calls)))
	assert.Equal(t, []string{"bulk", "bulk", "bulk"}, observed)
}

func TestNewPolicy_Defaults(t *testing.T) {
	t.Parallel()
	p := NewPolicy(0, 0, 0, zaptest.NewLogger(t).Sugar())

	assert.Equal(t, DefaultStart, p.Start)
	assert.Equal(t, DefaultFactor, p.Factor)
	assert.Equal(t, DefaultBorder, p.Border)
}

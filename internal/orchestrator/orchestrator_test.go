package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"movies-etl/internal/retry"
	"movies-etl/internal/state"
	myErr "movies-etl/internal/types/errors"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeMigrator struct {
	err   error
	calls int
}

func (f *fakeMigrator) Migrate(context.Context) error {
	f.calls++
	return f.err
}

type fakeSyncer struct {
	mu        sync.Mutex
	steps     []string
	watermark time.Time
	cycles    int
	stopAfter int
	cancel    context.CancelFunc
	cycleErr  error
	phaseSeen []Phase
	orch      *Orchestrator
}

func (f *fakeSyncer) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
	if f.orch != nil {
		f.phaseSeen = append(f.phaseSeen, f.orch.Phase())
	}
}

func (f *fakeSyncer) IndexAll(context.Context) error {
	f.record("index_all")
	return nil
}

func (f *fakeSyncer) SetWatermarks(_ context.Context, at time.Time) error {
	f.record("set_watermarks")
	f.watermark = at
	return nil
}

func (f *fakeSyncer) RunCycle(context.Context) error {
	f.record("cycle")
	f.cycles++
	if f.cycles >= f.stopAfter {
		f.cancel()
	}
	return f.cycleErr
}

func newTestOrchestrator(t *testing.T, migrator Migrator, syncer Syncer, store state.Store) *Orchestrator {
	logger := zaptest.NewLogger(t).Sugar()
	policy := retry.NewPolicy(time.Millisecond, 2, 2*time.Millisecond, logger)

	return New(migrator, syncer, store, policy, logger, time.Millisecond)
}

func TestOrchestrator_FirstRun(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := state.NewMockStore(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrator := &fakeMigrator{}
	syncer := &fakeSyncer{stopAfter: 2, cancel: cancel}
	o := newTestOrchestrator(t, migrator, syncer, store)
	syncer.orch = o
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return started }

	gomock.InOrder(
		store.EXPECT().Get(gomock.Any(), state.KeyInitCompleted, "").Return("", nil),
		store.EXPECT().Set(gomock.Any(), state.KeyInitCompleted, state.InitCompletedValue).Return(nil),
	)

	err := o.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, migrator.calls)
	assert.Equal(t, []string{"index_all", "set_watermarks", "cycle", "cycle"}, syncer.steps)
	assert.Equal(t, []Phase{InitialIndexing, InitialIndexing, SyncRunning, SyncRunning}, syncer.phaseSeen)
	assert.True(t, started.Equal(syncer.watermark))
	assert.Equal(t, SyncIdle, o.Phase())
}

func TestOrchestrator_SkipsBootstrapWhenCompleted(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := state.NewMockStore(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrator := &fakeMigrator{}
	syncer := &fakeSyncer{stopAfter: 1, cancel: cancel}
	o := newTestOrchestrator(t, migrator, syncer, store)

	gomock.InOrder(
		store.EXPECT().Get(gomock.Any(), state.KeyInitCompleted, "").Return("", errors.New("redis down")),
		store.EXPECT().Get(gomock.Any(), state.KeyInitCompleted, "").Return(state.InitCompletedValue, nil),
	)

	err := o.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, migrator.calls)
	assert.Equal(t, []string{"cycle"}, syncer.steps)
}

func TestOrchestrator_BootstrapFailureIsFatal(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := state.NewMockStore(ctrl)

	migrator := &fakeMigrator{err: errors.Join(myErr.ErrBootstrap, myErr.ErrCountMismatch)}
	syncer := &fakeSyncer{}
	o := newTestOrchestrator(t, migrator, syncer, store)

	store.EXPECT().Get(gomock.Any(), state.KeyInitCompleted, "").Return("", nil)

	err := o.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, myErr.ErrBootstrap)
	assert.Equal(t, 1, migrator.calls)
	assert.Empty(t, syncer.steps)
	assert.Equal(t, Bootstrapping, o.Phase())
}

func TestOrchestrator_CycleErrorDoesNotStopLoop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := state.NewMockStore(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncer := &fakeSyncer{stopAfter: 3, cancel: cancel, cycleErr: errors.New("unexpected")}
	o := newTestOrchestrator(t, &fakeMigrator{}, syncer, store)

	store.EXPECT().Get(gomock.Any(), state.KeyInitCompleted, "").Return(state.InitCompletedValue, nil)

	err := o.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, syncer.cycles)
}

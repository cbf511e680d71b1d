package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"movies-etl/internal/retry"
	"movies-etl/internal/state"

	"go.uber.org/zap"
)

// Phase - состояние ETL процесса
type Phase string

const (
	Bootstrapping   Phase = "BOOTSTRAPPING"
	InitialIndexing Phase = "INITIAL_INDEXING"
	SyncIdle        Phase = "SYNC_IDLE"
	SyncRunning     Phase = "SYNC_RUNNING"
)

// DefaultInterval - пауза между проходами синхронизации
const DefaultInterval = 10 * time.Second

// Migrator - первичный перенос данных в схему назначения
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Syncer - индексация и инкрементальная синхронизация
type Syncer interface {
	IndexAll(ctx context.Context) error
	SetWatermarks(ctx context.Context, at time.Time) error
	RunCycle(ctx context.Context) error
}

type Orchestrator struct {
	Migrator Migrator
	Syncer   Syncer
	State    state.Store
	Retry    *retry.Policy
	Logger   *zap.SugaredLogger
	Interval time.Duration

	now   func() time.Time
	phase atomic.Value
}

func New(
	migrator Migrator,
	syncer Syncer,
	store state.Store,
	policy *retry.Policy,
	logger *zap.SugaredLogger,
	interval time.Duration,
) *Orchestrator {
	if interval <= 0 {
		interval = DefaultInterval
	}

	o := &Orchestrator{
		Migrator: migrator,
		Syncer:   syncer,
		State:    store,
		Retry:    policy,
		Logger:   logger,
		Interval: interval,
		now:      time.Now,
	}
	o.phase.Store(Bootstrapping)

	return o
}

// Phase - текущее состояние, безопасно для чтения из других горутин
func (o *Orchestrator) Phase() Phase {
	return o.phase.Load().(Phase)
}

func (o *Orchestrator) setPhase(p Phase) {
	if o.Phase() != p {
		o.Logger.Infow("ETL phase changed", "phase", p)
	}
	o.phase.Store(p)
}

// Run - первичная загрузка и индексация, если они еще не выполнялись, затем бесконечный цикл синхронизации.
// Ошибка первичной загрузки возвращается сразу и без повторов.
// В остальных случаях Run завершается только при отмене ctx и возвращает ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) error {
	var marker string
	err := o.Retry.Run(ctx, "state_get", func(ctx context.Context) error {
		var err error
		marker, err = o.State.Get(ctx, state.KeyInitCompleted, "")
		return err
	})
	if err != nil {
		return err
	}

	if marker != state.InitCompletedValue {
		if err := o.bootstrap(ctx); err != nil {
			return err
		}
	} else {
		o.Logger.Infow("Bootstrap already completed, skipping to sync")
	}

	return o.sync(ctx)
}

func (o *Orchestrator) bootstrap(ctx context.Context) error {
	o.setPhase(Bootstrapping)
	if err := o.Migrator.Migrate(ctx); err != nil {
		o.Logger.Errorw("Bootstrap migration failed", zap.Error(err))
		return err
	}

	o.setPhase(InitialIndexing)
	start := o.now().UTC()
	if err := o.Syncer.IndexAll(ctx); err != nil {
		return err
	}
	if err := o.Syncer.SetWatermarks(ctx, start); err != nil {
		return err
	}

	err := o.Retry.Run(ctx, "state_set", func(ctx context.Context) error {
		return o.State.Set(ctx, state.KeyInitCompleted, state.InitCompletedValue)
	})
	if err != nil {
		return err
	}

	o.Logger.Infow("Bootstrap completed")

	return nil
}

func (o *Orchestrator) sync(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	o.setPhase(SyncIdle)
	for {
		select {
		case <-ctx.Done():
			o.Logger.Infow("ETL stopped")
			return ctx.Err()
		case <-timer.C:
		}

		o.setPhase(SyncRunning)
		err := o.Syncer.RunCycle(ctx)
		o.setPhase(SyncIdle)

		if ctx.Err() != nil {
			o.Logger.Infow("ETL stopped")
			return ctx.Err()
		}
		if err != nil {
			o.Logger.Errorw("Sync cycle failed", zap.Error(err))
		}

		timer.Reset(o.Interval)
	}
}

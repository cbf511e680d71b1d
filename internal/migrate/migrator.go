package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"movies-etl/internal/source"
	myErr "movies-etl/internal/types/errors"

	"go.uber.org/zap"
)

// SourceReader - источник строк для переноса
type SourceReader interface {
	SourceSampler
	Batches(ctx context.Context, table string) iter.Seq2[[]source.Row, error]
}

// Migrator - первичная загрузка: схема и все таблицы в одной транзакции
type Migrator struct {
	DB          *sql.DB
	Source      SourceReader
	Transformer *Transformer
	Loader      *BulkLoader
	Checker     *ConsistencyChecker
	Logger      *zap.SugaredLogger
}

func NewMigrator(
	db *sql.DB,
	src SourceReader,
	transformer *Transformer,
	loader *BulkLoader,
	checker *ConsistencyChecker,
	logger *zap.SugaredLogger,
) *Migrator {
	return &Migrator{
		DB:          db,
		Source:      src,
		Transformer: transformer,
		Loader:      loader,
		Checker:     checker,
		Logger:      logger,
	}
}

// Migrate - создает схему и переносит таблицы в порядке зависимостей, сверяя каждую после загрузки.
// Любая ошибка откатывает транзакцию целиком и возвращается обернутой в ErrBootstrap.
func (m *Migrator) Migrate(ctx context.Context) (err error) {
	m.Logger.Infow("Starting bootstrap migration")

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		m.Logger.Errorw("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("%w: %w", myErr.ErrBootstrap, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			m.Logger.Errorw("Failed to rollback bootstrap transaction", zap.Error(rbErr))
		}
		err = fmt.Errorf("%w: %w", myErr.ErrBootstrap, err)
	}()

	if _, err = tx.ExecContext(ctx, schemaDDL); err != nil {
		m.Logger.Errorw("Failed to apply schema", zap.Error(err))
		return err
	}

	for _, cfg := range Tables() {
		if err = m.migrateTable(ctx, tx, cfg); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		m.Logger.Errorw("Failed to commit bootstrap transaction", zap.Error(err))
		return err
	}

	m.Logger.Infow("Bootstrap migration completed")

	return nil
}

func (m *Migrator) migrateTable(ctx context.Context, tx *sql.Tx, cfg TableConfig) error {
	m.Logger.Infow("Migrating table", "table", cfg.Name)

	var read, inserted int64
	for batch, err := range m.Source.Batches(ctx, cfg.SourceTable) {
		if err != nil {
			return err
		}
		read += int64(len(batch))

		records := m.Transformer.Transform(cfg, batch)
		n, err := m.Loader.Load(ctx, tx, cfg, records)
		if err != nil {
			return err
		}
		inserted += n
	}

	m.Logger.Infow("Table loaded", "table", cfg.Name, "read", read, "inserted", inserted)

	return m.Checker.Check(ctx, tx, cfg)
}

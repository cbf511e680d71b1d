package migrate

import (
	"context"
	"database/sql"
	"strings"

	"movies-etl/internal/middleware"
	"movies-etl/internal/types/movies"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Execer - общее у *sql.DB и *sql.Tx
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type BulkLoader struct {
	Logger  *zap.SugaredLogger
	Metrics *middleware.Metrics
	Schema  string
}

func NewBulkLoader(logger *zap.SugaredLogger, metrics *middleware.Metrics, schema string) *BulkLoader {
	return &BulkLoader{
		Logger:  logger,
		Metrics: metrics,
		Schema:  schema,
	}
}

// BuildInsert - строит INSERT пачки записей, который пропускает строки с уже существующим ключом конфликта.
// Все идентификаторы экранируются, значения передаются параметрами.
func (l *BulkLoader) BuildInsert(cfg TableConfig, records []movies.Record) (string, []any) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(pq.QuoteIdentifier(l.Schema) + "." + pq.QuoteIdentifier(cfg.Name))
	ib.Cols(quoteAll(cfg.Columns)...)
	for _, r := range records {
		ib.Values(r.Values()...)
	}
	ib.SQL("ON CONFLICT (" + strings.Join(quoteAll(cfg.ConflictTarget), ", ") + ") DO NOTHING")

	return ib.Build()
}

// Load - вставляет пачку в таблицу назначения. Пустая пачка ничего не делает.
// Возвращает число реально вставленных строк.
func (l *BulkLoader) Load(ctx context.Context, exec Execer, cfg TableConfig, records []movies.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query, args := l.BuildInsert(cfg, records)
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		l.Logger.Errorw("Failed to insert batch", "table", cfg.Name, "size", len(records), zap.Error(err))
		return 0, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	l.Metrics.RowsMigrated.WithLabelValues(cfg.Name).Add(float64(inserted))
	l.Logger.Debugw("Batch loaded", "table", cfg.Name, "size", len(records), "inserted", inserted)

	return inserted, nil
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pq.QuoteIdentifier(n)
	}

	return quoted
}

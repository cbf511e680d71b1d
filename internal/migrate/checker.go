package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"movies-etl/internal/source"
	myErr "movies-etl/internal/types/errors"
	"movies-etl/internal/types/movies"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const maxSampleSize = 10

// Querier - чтение из таблиц назначения внутри транзакции переноса
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SourceSampler - то, что сверке нужно от источника
type SourceSampler interface {
	Count(ctx context.Context, table string) (int64, error)
	Sample(ctx context.Context, table string, orderBy string, limit int) ([]source.Row, error)
}

// ConsistencyChecker - сверка таблицы после загрузки: число строк и выборка содержимого
type ConsistencyChecker struct {
	Source      SourceSampler
	Transformer *Transformer
	Logger      *zap.SugaredLogger
	Schema      string
	SampleSize  int
}

func NewConsistencyChecker(src SourceSampler, transformer *Transformer, logger *zap.SugaredLogger, schema string, batchSize int) *ConsistencyChecker {
	return &ConsistencyChecker{
		Source:      src,
		Transformer: transformer,
		Logger:      logger,
		Schema:      schema,
		SampleSize:  SampleSize(batchSize),
	}
}

// SampleSize - размер выборки для сверки содержимого: min(B/2, 10), но не меньше одной строки
func SampleSize(batchSize int) int {
	return max(1, min(batchSize/2, maxSampleSize))
}

// Check - сверяет таблицу cfg между источником и назначением
func (c *ConsistencyChecker) Check(ctx context.Context, q Querier, cfg TableConfig) error {
	if err := c.checkCount(ctx, q, cfg); err != nil {
		return err
	}

	return c.checkContent(ctx, q, cfg)
}

func (c *ConsistencyChecker) checkCount(ctx context.Context, q Querier, cfg TableConfig) error {
	srcCount, err := c.Source.Count(ctx, cfg.SourceTable)
	if err != nil {
		return err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From(c.table(cfg))
	query, args := sb.Build()

	var dstCount int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&dstCount); err != nil {
		c.Logger.Errorw("Failed to count destination rows", "table", cfg.Name, zap.Error(err))
		return err
	}

	if srcCount != dstCount {
		c.Logger.Errorw("Row count mismatch", "table", cfg.Name, "source", srcCount, "destination", dstCount)
		return fmt.Errorf("%w: table %s: source %d, destination %d", myErr.ErrCountMismatch, cfg.Name, srcCount, dstCount)
	}

	c.Logger.Infow("Row count verified", "table", cfg.Name, "count", dstCount)

	return nil
}

func (c *ConsistencyChecker) checkContent(ctx context.Context, q Querier, cfg TableConfig) error {
	sample, err := c.Source.Sample(ctx, cfg.SourceTable, cfg.PKColumn, c.SampleSize)
	if err != nil {
		return err
	}

	expected := make(map[uuid.UUID]movies.Record, len(sample))
	ids := make([]string, 0, len(sample))
	for _, row := range sample {
		record, _, err := c.Transformer.TransformRow(cfg, row)
		if err != nil {
			// строка была отброшена при загрузке, сравнивать не с чем
			continue
		}
		expected[record.Key()] = record
		ids = append(ids, record.Key().String())
	}
	if len(ids) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(quoteAll(cfg.Columns)...).
		From(c.table(cfg)).
		Where(pq.QuoteIdentifier(cfg.PKColumn) + " = ANY(" + sb.Var(pq.Array(ids)) + ")")
	query, args := sb.Build()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		c.Logger.Errorw("Failed to read destination sample", "table", cfg.Name, zap.Error(err))
		return err
	}
	defer rows.Close()

	dstRows, err := source.ScanRows(rows)
	if err != nil {
		return err
	}

	for _, row := range dstRows {
		got, _, err := c.Transformer.TransformRow(cfg, row)
		if err != nil {
			return fmt.Errorf("%w: table %s: destination row %v: %w", myErr.ErrContentMismatch, cfg.Name, row[cfg.PKColumn], err)
		}

		want, ok := expected[got.Key()]
		if !ok {
			continue
		}
		delete(expected, got.Key())

		if !movies.Equal(want, got) {
			c.Logger.Errorw("Row content mismatch", "table", cfg.Name, "id", got.Key(), "source", want, "destination", got)
			return fmt.Errorf("%w: table %s: row %s", myErr.ErrContentMismatch, cfg.Name, got.Key())
		}
	}

	for id := range expected {
		return fmt.Errorf("%w: table %s: row %s missing in destination", myErr.ErrContentMismatch, cfg.Name, id)
	}

	c.Logger.Infow("Sample content verified", "table", cfg.Name, "rows", len(ids))

	return nil
}

func (c *ConsistencyChecker) table(cfg TableConfig) string {
	return pq.QuoteIdentifier(c.Schema) + "." + pq.QuoteIdentifier(cfg.Name)
}

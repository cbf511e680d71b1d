package migrate

import (
	"movies-etl/internal/middleware"
	"movies-etl/internal/source"
	myErr "movies-etl/internal/types/errors"
	"movies-etl/internal/types/movies"

	"go.uber.org/zap"
)

type Transformer struct {
	Logger  *zap.SugaredLogger
	Metrics *middleware.Metrics
}

func NewTransformer(logger *zap.SugaredLogger, metrics *middleware.Metrics) *Transformer {
	return &Transformer{
		Logger:  logger,
		Metrics: metrics,
	}
}

// TransformRow - переводит одну строку источника в запись таблицы назначения.
// Возвращает запись, предупреждения по обнуленным полям и ошибку, если строку нужно отбросить.
func (t *Transformer) TransformRow(cfg TableConfig, row source.Row) (movies.Record, []*myErr.FieldError, error) {
	mapped := make(source.Row, len(row))
	for col, value := range row {
		if target, ok := cfg.Renames[col]; ok {
			col = target
		}
		mapped[col] = value
	}
	for _, col := range cfg.Drop {
		delete(mapped, col)
	}

	d := newRowDecoder(mapped)
	record := cfg.build(d)
	if d.err != nil {
		return nil, d.warnings, d.err
	}

	return record, d.warnings, nil
}

// Transform - переводит пачку строк. Невалидные строки логируются и отбрасываются,
// пачка при этом не прерывается.
func (t *Transformer) Transform(cfg TableConfig, rows []source.Row) []movies.Record {
	records := make([]movies.Record, 0, len(rows))
	for i, row := range rows {
		record, warnings, err := t.TransformRow(cfg, row)
		for _, w := range warnings {
			t.Logger.Warnw("Field value could not be parsed, setting to NULL",
				"table", cfg.Name,
				"row", i,
				"id", row["id"],
				"field", w.Field,
				"value", w.Value,
				zap.Error(w.Err),
			)
		}
		if err != nil {
			t.Logger.Errorw("Failed to transform row, skipping",
				"table", cfg.Name,
				"row", i,
				"source_row", row,
				zap.Error(err),
			)
			continue
		}

		records = append(records, record)
	}

	if dropped := len(rows) - len(records); dropped > 0 {
		t.Logger.Warnw("Rows dropped during transform", "table", cfg.Name, "dropped", dropped)
		t.Metrics.RowsDropped.WithLabelValues(cfg.Name).Add(float64(dropped))
	}

	return records
}

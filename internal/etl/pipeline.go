package etl

import (
	"context"
	"time"

	"movies-etl/internal/middleware"
	"movies-etl/internal/retry"
	"movies-etl/internal/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// watermarks - ключ состояния для каждой отслеживаемой таблицы
var watermarks = []struct {
	table string
	key   string
}{
	{table: "person", key: state.KeyLastModifiedPerson},
	{table: "genre", key: state.KeyLastModifiedGenre},
	{table: "film_work", key: state.KeyLastModifiedFilmWork},
}

// WatermarkKeys - все ключи водяных знаков
func WatermarkKeys() []string {
	keys := make([]string, len(watermarks))
	for i, w := range watermarks {
		keys[i] = w.key
	}

	return keys
}

type Pipeline struct {
	extractor   *PostgresExtractor
	transformer *Transformer
	loader      *ElasticLoader
	state       state.Store
	retry       *retry.Policy
	metrics     *middleware.Metrics
	logger      *zap.SugaredLogger
	batchSize   int
	now         func() time.Time
}

func NewPipeline(
	extractor *PostgresExtractor,
	transformer *Transformer,
	loader *ElasticLoader,
	store state.Store,
	policy *retry.Policy,
	metrics *middleware.Metrics,
	logger *zap.SugaredLogger,
	batchSize int,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Pipeline{
		extractor:   extractor,
		transformer: transformer,
		loader:      loader,
		state:       store,
		retry:       policy,
		metrics:     metrics,
		logger:      logger,
		batchSize:   batchSize,
		now:         time.Now,
	}
}

// RunCycle - один проход синхронизации: поиск изменений, вычисление зависимых
// кинопроизведений, обогащение, запись в индекс и сдвиг водяных знаков.
// Водяные знаки сдвигаются на момент начала прохода и только после успешной записи.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	start := p.now().UTC()
	p.logger.Infow("Running ETL pipeline iteration", "started_at", start)

	changed := make(map[string][]uuid.UUID, len(watermarks))
	for _, w := range watermarks {
		since, err := p.watermark(ctx, w.key)
		if err != nil {
			return err
		}

		var ids []uuid.UUID
		err = p.retry.Run(ctx, "detect_"+w.table, func(ctx context.Context) error {
			var err error
			ids, err = p.extractor.UpdatedIDs(ctx, w.table, since)
			return err
		})
		if err != nil {
			return err
		}
		changed[w.table] = ids
	}

	var related []uuid.UUID
	err := p.retry.Run(ctx, "fan_out", func(ctx context.Context) error {
		var err error
		related, err = p.extractor.FilmWorkIDs(ctx, changed["person"], changed["genre"])
		return err
	})
	if err != nil {
		return err
	}

	batches := Batches(Union(changed["film_work"], related), p.batchSize)
	if len(batches) == 0 {
		p.logger.Infow("No changed film works to process")
	}

	indexed := 0
	for _, batch := range batches {
		n, err := p.IndexFilmWorks(ctx, batch)
		if err != nil {
			return err
		}
		indexed += n
	}

	if err := p.SetWatermarks(ctx, start); err != nil {
		return err
	}

	p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	p.metrics.LastSuccessTime.SetToCurrentTime()
	p.logger.Infof("ETL pipeline completed, successfully loaded %d docs", indexed)

	return nil
}

// IndexAll - переиндексирует все кинопроизведения пачками по batchSize
func (p *Pipeline) IndexAll(ctx context.Context) error {
	after := uuid.Nil
	total := 0
	for {
		var page []uuid.UUID
		err := p.retry.Run(ctx, "list_film_works", func(ctx context.Context) error {
			var err error
			page, err = p.extractor.FilmWorkPage(ctx, after, p.batchSize)
			return err
		})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}

		n, err := p.IndexFilmWorks(ctx, page)
		if err != nil {
			return err
		}
		total += n
		after = page[len(page)-1]

		if len(page) < p.batchSize {
			break
		}
	}

	p.logger.Infow("Initial indexing completed", "count", total)

	return nil
}

// IndexFilmWorks - обогащает пачку кинопроизведений и записывает документы в индекс
func (p *Pipeline) IndexFilmWorks(ctx context.Context, ids []uuid.UUID) (int, error) {
	var rows []FilmWorkRow
	err := p.retry.Run(ctx, "enrich", func(ctx context.Context) error {
		var err error
		rows, err = p.extractor.Enrich(ctx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}

	docs := p.transformer.Transform(ids, rows)
	if err := p.loader.Load(ctx, docs); err != nil {
		return 0, err
	}

	return len(docs), nil
}

// SetWatermarks - сохраняет at во все водяные знаки
func (p *Pipeline) SetWatermarks(ctx context.Context, at time.Time) error {
	value := at.UTC().Format(time.RFC3339Nano)
	for _, w := range watermarks {
		err := p.retry.Run(ctx, "state_set", func(ctx context.Context) error {
			return p.state.Set(ctx, w.key, value)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) watermark(ctx context.Context, key string) (time.Time, error) {
	var raw string
	err := p.retry.Run(ctx, "state_get", func(ctx context.Context) error {
		var err error
		raw, err = p.state.Get(ctx, key, "")
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return time.Time{}, nil
	}

	since, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		p.logger.Warnw("Invalid watermark, starting from the beginning", "key", key, "value", raw, zap.Error(err))
		return time.Time{}, nil
	}

	return since, nil
}

// Union - объединение наборов идентификаторов без повторов в порядке первого появления
func Union(sets ...[]uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var result []uuid.UUID
	for _, set := range sets {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}

	return result
}

// Batches - делит ids на пачки не больше size
func Batches(ids []uuid.UUID, size int) [][]uuid.UUID {
	var result [][]uuid.UUID
	for start := 0; start < len(ids); start += size {
		result = append(result, ids[start:min(start+size, len(ids))])
	}

	return result
}

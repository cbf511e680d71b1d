package etl

import (
	"context"
	"errors"

	"movies-etl/internal/kafka"
	"movies-etl/internal/middleware"
	"movies-etl/internal/retry"
	"movies-etl/internal/types/elastic"
	myErr "movies-etl/internal/types/errors"

	"go.uber.org/zap"
)

// Indexer - запись документов в поисковый индекс
type Indexer interface {
	EnsureIndex(ctx context.Context) error
	BulkIndex(ctx context.Context, docs []elastic.SearchDocument) (int, error)
}

type ElasticLoader struct {
	Indexer  Indexer
	Producer kafka.EventProducer
	Retry    *retry.Policy
	Metrics  *middleware.Metrics
	Logger   *zap.SugaredLogger
}

func NewElasticLoader(
	indexer Indexer,
	producer kafka.EventProducer,
	policy *retry.Policy,
	metrics *middleware.Metrics,
	logger *zap.SugaredLogger,
) *ElasticLoader {
	return &ElasticLoader{
		Indexer:  indexer,
		Producer: producer,
		Retry:    policy,
		Metrics:  metrics,
		Logger:   logger,
	}
}

// Load - загружает подготовленные документы в индекс, повторяя запись целиком до успеха.
// После успешной записи отправляет уведомление, ошибка уведомления только логируется.
func (l *ElasticLoader) Load(ctx context.Context, docs []elastic.SearchDocument) error {
	if len(docs) == 0 {
		l.Logger.Infow("No documents to load")
		return nil
	}

	l.Logger.Infow("Loading documents to Elasticsearch", "count", len(docs))
	err := l.Retry.Run(ctx, "elastic_bulk_index", func(ctx context.Context) error {
		if err := l.Indexer.EnsureIndex(ctx); err != nil {
			return err
		}

		_, err := l.Indexer.BulkIndex(ctx, docs)
		var bulkErr *myErr.BulkError
		if errors.As(err, &bulkErr) {
			l.Metrics.DocsFailed.Add(float64(bulkErr.Failed))
		}

		return err
	})
	if err != nil {
		l.Logger.Errorw("Failed to bulk index documents", zap.Error(err))
		return err
	}

	l.Metrics.DocsIndexed.Add(float64(len(docs)))
	l.Logger.Infow("Successfully indexed documents", "count", len(docs))

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	if err := l.Producer.NotifyIndexed(ctx, ids); err != nil {
		l.Logger.Warnw("Failed to publish indexed notification", "count", len(ids), zap.Error(err))
	}

	return nil
}

package etl

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"movies-etl/internal/kafka"
	"movies-etl/internal/middleware"
	"movies-etl/internal/retry"
	"movies-etl/internal/state"
	"movies-etl/internal/types/elastic"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingIndexer struct {
	fail  bool
	docs  []elastic.SearchDocument
	calls int
}

func (r *recordingIndexer) EnsureIndex(context.Context) error { return nil }

func (r *recordingIndexer) BulkIndex(_ context.Context, docs []elastic.SearchDocument) (int, error) {
	r.calls++
	if r.fail {
		return 0, errors.New("index unavailable")
	}
	r.docs = append(r.docs, docs...)
	return len(docs), nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	sql      sqlmock.Sqlmock
	store    *state.MockStore
	indexer  *recordingIndexer
	policy   *retry.Policy
}

func newPipelineFixture(t *testing.T, batchSize int) *pipelineFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t).Sugar()
	metrics := middleware.NewMetrics()
	policy := retry.NewPolicy(time.Millisecond, 2, 2*time.Millisecond, logger)
	store := state.NewMockStore(gomock.NewController(t))
	indexer := &recordingIndexer{}

	p := NewPipeline(
		NewPostgresExtractor(db, logger),
		NewTransformer(logger),
		NewElasticLoader(indexer, kafka.NopProducer{}, policy, metrics, logger),
		store,
		policy,
		metrics,
		logger,
		batchSize,
	)

	return &pipelineFixture{pipeline: p, sql: mock, store: store, indexer: indexer, policy: policy}
}

func idRows(ids ...uuid.UUID) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id"})
	for _, id := range ids {
		rows.AddRow(id.String())
	}
	return rows
}

func filmRow(rows *sqlmock.Rows, film uuid.UUID, title string) *sqlmock.Rows {
	return rows.AddRow(film.String(), title, nil, nil, "movie", nil, nil, nil, nil, nil)
}

func TestPipeline_RunCycle(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t, 10)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.pipeline.now = func() time.Time { return start }

	genreWatermark := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	personID := uuid.New()
	changedFilm := uuid.New()
	relatedFilm := uuid.New()

	gomock.InOrder(
		f.store.EXPECT().Get(gomock.Any(), state.KeyLastModifiedPerson, "").Return("", nil),
		f.store.EXPECT().Get(gomock.Any(), state.KeyLastModifiedGenre, "").Return(genreWatermark.Format(time.RFC3339Nano), nil),
		f.store.EXPECT().Get(gomock.Any(), state.KeyLastModifiedFilmWork, "").Return("", nil),
	)

	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."person" WHERE modified >`)).
		WithArgs(time.Time{}).
		WillReturnRows(idRows(personID))
	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."genre" WHERE modified >`)).
		WithArgs(genreWatermark).
		WillReturnRows(idRows())
	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."film_work" WHERE modified >`)).
		WillReturnRows(idRows(changedFilm))
	f.sql.ExpectQuery("UNION").
		WillReturnRows(idRows(relatedFilm, changedFilm))
	f.sql.ExpectQuery(regexp.QuoteMeta("LEFT JOIN content.person_film_work")).
		WillReturnRows(filmRow(filmRow(sqlmock.NewRows(enrichColumnNames), relatedFilm, "Related"), changedFilm, "Changed"))

	want := start.Format(time.RFC3339Nano)
	f.store.EXPECT().Set(gomock.Any(), state.KeyLastModifiedPerson, want).Return(nil)
	f.store.EXPECT().Set(gomock.Any(), state.KeyLastModifiedGenre, want).Return(nil)
	f.store.EXPECT().Set(gomock.Any(), state.KeyLastModifiedFilmWork, want).Return(nil)

	err := f.pipeline.RunCycle(context.Background())

	require.NoError(t, err)
	require.Len(t, f.indexer.docs, 2)
	assert.Equal(t, changedFilm.String(), f.indexer.docs[0].ID)
	assert.Equal(t, "Changed", f.indexer.docs[0].Title)
	assert.Equal(t, relatedFilm.String(), f.indexer.docs[1].ID)
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

var enrichColumnNames = []string{"id", "title", "description", "rating", "type", "role", "p_id", "full_name", "g_id", "name"}

func TestPipeline_RunCycleNoChanges(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t, 10)

	f.store.EXPECT().Get(gomock.Any(), gomock.Any(), "").Return("", nil).Times(3)
	for _, table := range []string{"person", "genre", "film_work"} {
		f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."` + table + `"`)).WillReturnRows(idRows())
	}
	f.store.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(3)

	require.NoError(t, f.pipeline.RunCycle(context.Background()))
	assert.Equal(t, 0, f.indexer.calls)
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

func TestPipeline_RunCycleRecoversStateError(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t, 10)

	gomock.InOrder(
		f.store.EXPECT().Get(gomock.Any(), state.KeyLastModifiedPerson, "").Return("", errors.New("redis down")),
		f.store.EXPECT().Get(gomock.Any(), state.KeyLastModifiedPerson, "").Return("garbage", nil),
	)
	f.store.EXPECT().Get(gomock.Any(), state.KeyLastModifiedGenre, "").Return("", nil)
	f.store.EXPECT().Get(gomock.Any(), state.KeyLastModifiedFilmWork, "").Return("", nil)

	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."person"`)).WithArgs(time.Time{}).WillReturnRows(idRows())
	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."genre"`)).WillReturnError(errors.New("connection reset"))
	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."genre"`)).WillReturnRows(idRows())
	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."film_work"`)).WillReturnRows(idRows())
	f.store.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(3)

	require.NoError(t, f.pipeline.RunCycle(context.Background()))
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

func TestPipeline_RunCycleCanceledKeepsWatermarks(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t, 10)
	f.indexer.fail = true
	film := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	f.policy.OnRetry = func(operation string) {
		if operation == "elastic_bulk_index" {
			cancel()
		}
	}

	f.store.EXPECT().Get(gomock.Any(), gomock.Any(), "").Return("", nil).Times(3)
	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."person"`)).WillReturnRows(idRows())
	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."genre"`)).WillReturnRows(idRows())
	f.sql.ExpectQuery(regexp.QuoteMeta(`FROM "content"."film_work"`)).WillReturnRows(idRows(film))
	f.sql.ExpectQuery(regexp.QuoteMeta("LEFT JOIN content.person_film_work")).
		WillReturnRows(filmRow(sqlmock.NewRows(enrichColumnNames), film, "Film"))
	// Set не ожидается: водяные знаки не двигаются без успешной записи в индекс

	err := f.pipeline.RunCycle(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.indexer.calls)
}

func TestPipeline_IndexAll(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t, 2)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	f.sql.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM "content"."film_work" ORDER BY id LIMIT`)).
		WillReturnRows(idRows(a, b))
	f.sql.ExpectQuery(regexp.QuoteMeta("LEFT JOIN content.person_film_work")).
		WillReturnRows(filmRow(filmRow(sqlmock.NewRows(enrichColumnNames), a, "A"), b, "B"))
	f.sql.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM "content"."film_work" WHERE id > $1`)).
		WithArgs(b.String(), sqlmock.AnyArg()).
		WillReturnRows(idRows(c))
	f.sql.ExpectQuery(regexp.QuoteMeta("LEFT JOIN content.person_film_work")).
		WillReturnRows(filmRow(sqlmock.NewRows(enrichColumnNames), c, "C"))

	require.NoError(t, f.pipeline.IndexAll(context.Background()))

	require.Len(t, f.indexer.docs, 3)
	assert.Equal(t, c.String(), f.indexer.docs[2].ID)
	assert.Equal(t, 2, f.indexer.calls)
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

func TestWatermarkKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		[]string{state.KeyLastModifiedPerson, state.KeyLastModifiedGenre, state.KeyLastModifiedFilmWork},
		WatermarkKeys(),
	)
}

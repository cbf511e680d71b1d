package etl

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	myErr "movies-etl/internal/types/errors"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const contentSchema = "content"

// Таблицы, в которых отслеживается поле modified
var trackedTables = map[string]struct{}{
	"person":    {},
	"genre":     {},
	"film_work": {},
}

const enrichQuery = `
	SELECT
		fw.id,
		fw.title,
		fw.description,
		fw.rating,
		fw.type,
		pfw.role,
		p.id,
		p.full_name,
		g.id,
		g.name
	FROM content.film_work fw
	LEFT JOIN content.person_film_work pfw ON pfw.film_work_id = fw.id
	LEFT JOIN content.person p ON p.id = pfw.person_id
	LEFT JOIN content.genre_film_work gfw ON gfw.film_work_id = fw.id
	LEFT JOIN content.genre g ON g.id = gfw.genre_id
	WHERE fw.id = ANY($1)
	ORDER BY fw.id
`

const fanOutQuery = `
	SELECT DISTINCT pfw.film_work_id
	FROM content.person_film_work pfw
	WHERE pfw.person_id = ANY($1)
	UNION
	SELECT DISTINCT gfw.film_work_id
	FROM content.genre_film_work gfw
	WHERE gfw.genre_id = ANY($2)
`

// FilmWorkRow - одна строка соединения кинопроизведения с персонами и жанрами
type FilmWorkRow struct {
	FilmWorkID  uuid.UUID
	Title       string
	Description sql.NullString
	Rating      sql.NullFloat64
	Type        string
	Role        sql.NullString
	PersonID    uuid.NullUUID
	PersonName  sql.NullString
	GenreID     uuid.NullUUID
	GenreName   sql.NullString
}

type PostgresExtractor struct {
	DB     *sql.DB
	Logger *zap.SugaredLogger
}

func NewPostgresExtractor(db *sql.DB, logger *zap.SugaredLogger) *PostgresExtractor {
	return &PostgresExtractor{
		DB:     db,
		Logger: logger,
	}
}

// UpdatedIDs - идентификаторы строк table, у которых modified строго больше since,
// в порядке возрастания modified
func (e *PostgresExtractor) UpdatedIDs(ctx context.Context, table string, since time.Time) ([]uuid.UUID, error) {
	if _, ok := trackedTables[table]; !ok {
		return nil, fmt.Errorf("%w: %q", myErr.ErrUnknownTable, table)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id").
		From(pq.QuoteIdentifier(contentSchema) + "." + pq.QuoteIdentifier(table)).
		Where(sb.GreaterThan("modified", since)).
		OrderBy("modified")
	query, args := sb.Build()

	ids, err := e.queryIDs(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	e.Logger.Infow("Detected changed rows", "table", table, "since", since, "count", len(ids))

	return ids, nil
}

// FilmWorkIDs - кинопроизведения, связанные с изменившимися персонами или жанрами.
// Без входных идентификаторов запрос не выполняется.
func (e *PostgresExtractor) FilmWorkIDs(ctx context.Context, personIDs, genreIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(personIDs) == 0 && len(genreIDs) == 0 {
		return nil, nil
	}

	ids, err := e.queryIDs(ctx, fanOutQuery, pq.Array(idStrings(personIDs)), pq.Array(idStrings(genreIDs)))
	if err != nil {
		return nil, err
	}

	e.Logger.Infow("Resolved dependent film works", "persons", len(personIDs), "genres", len(genreIDs), "film_works", len(ids))

	return ids, nil
}

// FilmWorkPage - страница идентификаторов всех кинопроизведений после after по возрастанию id
func (e *PostgresExtractor) FilmWorkPage(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id").From(pq.QuoteIdentifier(contentSchema) + "." + pq.QuoteIdentifier("film_work"))
	if after != uuid.Nil {
		sb.Where(sb.GreaterThan("id", after.String()))
	}
	sb.OrderBy("id").Limit(limit)
	query, args := sb.Build()

	return e.queryIDs(ctx, query, args...)
}

// Enrich - все строки соединения для пачки кинопроизведений
func (e *PostgresExtractor) Enrich(ctx context.Context, filmWorkIDs []uuid.UUID) ([]FilmWorkRow, error) {
	if len(filmWorkIDs) == 0 {
		return nil, nil
	}

	rows, err := e.DB.QueryContext(ctx, enrichQuery, pq.Array(idStrings(filmWorkIDs)))
	if err != nil {
		e.Logger.Errorw("Failed to executing query", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []FilmWorkRow
	for rows.Next() {
		var r FilmWorkRow
		err := rows.Scan(
			&r.FilmWorkID, &r.Title, &r.Description, &r.Rating, &r.Type,
			&r.Role, &r.PersonID, &r.PersonName, &r.GenreID, &r.GenreName,
		)
		if err != nil {
			e.Logger.Errorw("Failed to scan rows", zap.Error(err))
			return nil, err
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		e.Logger.Errorw("Error during rows iteration", zap.Error(err))
		return nil, err
	}

	return result, nil
}

func (e *PostgresExtractor) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := e.DB.QueryContext(ctx, query, args...)
	if err != nil {
		e.Logger.Errorw("Failed to executing query", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			e.Logger.Errorw("Failed to scan rows", zap.Error(err))
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		e.Logger.Errorw("Error during rows iteration", zap.Error(err))
		return nil, err
	}

	return ids, nil
}

func idStrings(ids []uuid.UUID) []string {
	result := make([]string, len(ids))
	for i, id := range ids {
		result[i] = id.String()
	}

	return result
}

package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"regexp"

	myErr "movies-etl/internal/types/errors"

	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultBatchSize - размер пачки строк по умолчанию
const DefaultBatchSize = 100

// ErrConsumed - повторный обход одноразовой последовательности
var ErrConsumed = errors.New("batch sequence already consumed")

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Row - строка исходной таблицы: имя колонки -> значение драйвера
type Row map[string]any

// SQLiteReader - чтение таблиц старого встроенного хранилища пачками фиксированного размера
type SQLiteReader struct {
	DB        *sql.DB
	Logger    *zap.SugaredLogger
	BatchSize int
	tables    map[string]struct{}
}

// NewSQLiteReader - tables задает разрешенные к чтению таблицы
func NewSQLiteReader(db *sql.DB, logger *zap.SugaredLogger, batchSize int, tables []string) *SQLiteReader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	allowed := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		allowed[t] = struct{}{}
	}

	return &SQLiteReader{
		DB:        db,
		Logger:    logger,
		BatchSize: batchSize,
		tables:    allowed,
	}
}

// Open - открывает файл SQLite только на чтение
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	return db, nil
}

// Batches - ленивая одноразовая последовательность пачек строк таблицы.
// Курсор только продвигается вперед, ошибка чтения завершает последовательность.
func (r *SQLiteReader) Batches(ctx context.Context, table string) iter.Seq2[[]Row, error] {
	consumed := false

	return func(yield func([]Row, error) bool) {
		if consumed {
			yield(nil, ErrConsumed)
			return
		}
		consumed = true

		quoted, err := r.quoteTable(table)
		if err != nil {
			yield(nil, err)
			return
		}

		sb := sqlbuilder.SQLite.NewSelectBuilder()
		sb.Select("*").From(quoted)
		query, args := sb.Build()

		r.Logger.Infow("Extracting data from SQLite table", "table", table)

		rows, err := r.DB.QueryContext(ctx, query, args...)
		if err != nil {
			r.Logger.Errorw("Failed to executing query", "table", table, zap.Error(err))
			yield(nil, err)
			return
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			yield(nil, err)
			return
		}

		batch := make([]Row, 0, r.BatchSize)
		for rows.Next() {
			row, err := scanRow(rows, columns)
			if err != nil {
				r.Logger.Errorw("Failed to scan rows", "table", table, zap.Error(err))
				yield(nil, err)
				return
			}

			batch = append(batch, row)
			if len(batch) == r.BatchSize {
				if !yield(batch, nil) {
					return
				}
				batch = make([]Row, 0, r.BatchSize)
			}
		}

		if err := rows.Err(); err != nil {
			r.Logger.Errorw("Error during rows iteration", "table", table, zap.Error(err))
			yield(nil, err)
			return
		}

		if len(batch) > 0 {
			yield(batch, nil)
		}
	}
}

// Count - количество строк в таблице
func (r *SQLiteReader) Count(ctx context.Context, table string) (int64, error) {
	quoted, err := r.quoteTable(table)
	if err != nil {
		return 0, err
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("COUNT(*)").From(quoted)
	query, args := sb.Build()

	var count int64
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.Logger.Errorw("Failed to count rows", "table", table, zap.Error(err))
		return 0, err
	}

	return count, nil
}

// Sample - первые limit строк таблицы, упорядоченные по orderBy
func (r *SQLiteReader) Sample(ctx context.Context, table string, orderBy string, limit int) ([]Row, error) {
	quoted, err := r.quoteTable(table)
	if err != nil {
		return nil, err
	}
	if !identRe.MatchString(orderBy) {
		return nil, fmt.Errorf("invalid order column %q", orderBy)
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("*").From(quoted).OrderBy(sqlbuilder.SQLite.Quote(orderBy)).Limit(limit)
	query, args := sb.Build()

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return ScanRows(rows)
}

func (r *SQLiteReader) quoteTable(table string) (string, error) {
	if _, ok := r.tables[table]; !ok || !identRe.MatchString(table) {
		return "", fmt.Errorf("%w: %q", myErr.ErrUnknownTable, table)
	}

	return sqlbuilder.SQLite.Quote(table), nil
}

// ScanRows - читает все строки курсора в Row
func ScanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

func scanRow(rows *sql.Rows, columns []string) (Row, error) {
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(Row, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}

	return row, nil
}

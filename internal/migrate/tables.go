package migrate

import (
	"fmt"

	myErr "movies-etl/internal/types/errors"
	"movies-etl/internal/types/movies"
)

// DestinationSchema - схема PostgreSQL с таблицами контента
const DestinationSchema = "content"

// TableConfig - статическое описание переноса одной таблицы
type TableConfig struct {
	// Name - таблица назначения
	Name string
	// SourceTable - таблица в SQLite
	SourceTable string
	// Columns - колонки назначения в порядке Record.Values
	Columns []string
	// PKColumn - колонка для упорядочивания выборки при сверке
	PKColumn string
	// ConflictTarget - ключ, при совпадении которого вставка пропускается
	ConflictTarget []string
	// Renames - переименования колонок источника
	Renames map[string]string
	// Drop - служебные колонки источника, которые не переносятся
	Drop []string

	build func(d *rowDecoder) movies.Record
}

var timestampRenames = map[string]string{
	"created_at": "created",
	"updated_at": "modified",
}

var createdRename = map[string]string{
	"created_at": "created",
}

var tableConfigs = map[string]TableConfig{
	"genre": {
		Name:           "genre",
		SourceTable:    "genre",
		Columns:        []string{"id", "name", "description", "created", "modified"},
		PKColumn:       "id",
		ConflictTarget: []string{"id"},
		Renames:        timestampRenames,
		build: func(d *rowDecoder) movies.Record {
			return movies.Genre{
				ID:          d.uuid("id"),
				Name:        d.requiredText("name"),
				Description: d.nullText("description"),
				Created:     d.timestamp("created"),
				Modified:    d.timestamp("modified"),
			}
		},
	},
	"person": {
		Name:           "person",
		SourceTable:    "person",
		Columns:        []string{"id", "full_name", "created", "modified"},
		PKColumn:       "id",
		ConflictTarget: []string{"id"},
		Renames:        timestampRenames,
		build: func(d *rowDecoder) movies.Record {
			return movies.Person{
				ID:       d.uuid("id"),
				FullName: d.text("full_name"),
				Created:  d.timestamp("created"),
				Modified: d.timestamp("modified"),
			}
		},
	},
	"film_work": {
		Name:           "film_work",
		SourceTable:    "film_work",
		Columns:        []string{"id", "title", "description", "creation_date", "rating", "type", "created", "modified"},
		PKColumn:       "id",
		ConflictTarget: []string{"id"},
		Renames:        timestampRenames,
		Drop:           []string{"file_path"},
		build: func(d *rowDecoder) movies.Record {
			return movies.FilmWork{
				ID:           d.uuid("id"),
				Title:        d.text("title"),
				Description:  d.nullText("description"),
				CreationDate: d.date("creation_date"),
				Rating:       d.rating("rating", movies.MinRating, movies.MaxRating),
				Type:         d.filmWorkType("type"),
				Created:      d.timestamp("created"),
				Modified:     d.timestamp("modified"),
			}
		},
	},
	"genre_film_work": {
		Name:           "genre_film_work",
		SourceTable:    "genre_film_work",
		Columns:        []string{"id", "film_work_id", "genre_id", "created"},
		PKColumn:       "id",
		ConflictTarget: []string{"film_work_id", "genre_id"},
		Renames:        createdRename,
		build: func(d *rowDecoder) movies.Record {
			return movies.GenreFilmWork{
				ID:         d.uuid("id"),
				FilmWorkID: d.uuid("film_work_id"),
				GenreID:    d.uuid("genre_id"),
				Created:    d.timestamp("created"),
			}
		},
	},
	"person_film_work": {
		Name:           "person_film_work",
		SourceTable:    "person_film_work",
		Columns:        []string{"id", "film_work_id", "person_id", "role", "created"},
		PKColumn:       "id",
		ConflictTarget: []string{"film_work_id", "person_id", "role"},
		Renames:        createdRename,
		build: func(d *rowDecoder) movies.Record {
			return movies.PersonFilmWork{
				ID:         d.uuid("id"),
				FilmWorkID: d.uuid("film_work_id"),
				PersonID:   d.uuid("person_id"),
				Role:       d.role("role"),
				Created:    d.timestamp("created"),
			}
		},
	},
}

// MigrationOrder - порядок переноса, при котором внешние ключи всегда ссылаются на уже загруженные строки
var MigrationOrder = []string{"genre", "person", "film_work", "genre_film_work", "person_film_work"}

// Table - конфигурация таблицы по имени
func Table(name string) (TableConfig, error) {
	cfg, ok := tableConfigs[name]
	if !ok {
		return TableConfig{}, fmt.Errorf("%w: %q", myErr.ErrUnknownTable, name)
	}

	return cfg, nil
}

// Tables - конфигурации всех таблиц в порядке переноса
func Tables() []TableConfig {
	result := make([]TableConfig, 0, len(MigrationOrder))
	for _, name := range MigrationOrder {
		result = append(result, tableConfigs[name])
	}

	return result
}

// SourceTables - имена исходных таблиц
func SourceTables() []string {
	result := make([]string, 0, len(MigrationOrder))
	for _, cfg := range Tables() {
		result = append(result, cfg.SourceTable)
	}

	return result
}

func (d *rowDecoder) filmWorkType(field string) movies.FilmWorkType {
	raw := d.row[field]
	s, _ := asString(raw)
	switch movies.FilmWorkType(s) {
	case "":
		return movies.Movie
	case movies.Movie, movies.TVShow:
		return movies.FilmWorkType(s)
	default:
		d.fail(field, raw, errUnsupported)
		return ""
	}
}

func (d *rowDecoder) role(field string) movies.Role {
	raw := d.row[field]
	s, _ := asString(raw)
	for _, r := range movies.Roles {
		if movies.Role(s) == r {
			return r
		}
	}

	d.fail(field, raw, errUnsupported)
	return ""
}

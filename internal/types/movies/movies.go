package movies

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// FilmWorkType - тип кинопроизведения
type FilmWorkType string

const (
	Movie  FilmWorkType = "movie"
	TVShow FilmWorkType = "tv_show"
)

// Role - роль персоны в кинопроизведении
type Role string

const (
	Actor    Role = "actor"
	Director Role = "director"
	Writer   Role = "writer"
)

// Roles - все допустимые роли в порядке, в котором они попадают в документ
var Roles = []Role{Actor, Director, Writer}

// Допустимые границы рейтинга
const (
	MinRating = 0.0
	MaxRating = 100.0
)

// Record - строка таблицы назначения, готовая к загрузке
type Record interface {
	// Key - первичный ключ записи
	Key() uuid.UUID
	// Values - значения колонок в порядке Columns соответствующей таблицы, NULL передается как nil
	Values() []any
}

type Genre struct {
	ID          uuid.UUID
	Name        string
	Description sql.NullString
	Created     sql.NullTime
	Modified    sql.NullTime
}

func (g Genre) Key() uuid.UUID { return g.ID }

func (g Genre) Values() []any {
	return []any{g.ID, g.Name, nullString(g.Description), nullTime(g.Created), nullTime(g.Modified)}
}

type Person struct {
	ID       uuid.UUID
	FullName string
	Created  sql.NullTime
	Modified sql.NullTime
}

func (p Person) Key() uuid.UUID { return p.ID }

func (p Person) Values() []any {
	return []any{p.ID, p.FullName, nullTime(p.Created), nullTime(p.Modified)}
}

type FilmWork struct {
	ID           uuid.UUID
	Title        string
	Description  sql.NullString
	CreationDate sql.NullTime
	Rating       sql.NullFloat64
	Type         FilmWorkType
	Created      sql.NullTime
	Modified     sql.NullTime
}

func (f FilmWork) Key() uuid.UUID { return f.ID }

func (f FilmWork) Values() []any {
	return []any{
		f.ID,
		f.Title,
		nullString(f.Description),
		nullTime(f.CreationDate),
		nullFloat(f.Rating),
		string(f.Type),
		nullTime(f.Created),
		nullTime(f.Modified),
	}
}

type GenreFilmWork struct {
	ID         uuid.UUID
	FilmWorkID uuid.UUID
	GenreID    uuid.UUID
	Created    sql.NullTime
}

func (g GenreFilmWork) Key() uuid.UUID { return g.ID }

func (g GenreFilmWork) Values() []any {
	return []any{g.ID, g.FilmWorkID, g.GenreID, nullTime(g.Created)}
}

type PersonFilmWork struct {
	ID         uuid.UUID
	FilmWorkID uuid.UUID
	PersonID   uuid.UUID
	Role       Role
	Created    sql.NullTime
}

func (p PersonFilmWork) Key() uuid.UUID { return p.ID }

func (p PersonFilmWork) Values() []any {
	return []any{p.ID, p.FilmWorkID, p.PersonID, string(p.Role), nullTime(p.Created)}
}

// Equal - сравнивает две записи поколоночно.
// Временные метки сравниваются как моменты времени, без учета часового пояса.
func Equal(a, b Record) bool {
	av, bv := a.Values(), b.Values()
	if len(av) != len(bv) {
		return false
	}

	for i := range av {
		at, aIsTime := av[i].(time.Time)
		bt, bIsTime := bv[i].(time.Time)
		if aIsTime || bIsTime {
			if !(aIsTime && bIsTime && at.Equal(bt)) {
				return false
			}
			continue
		}
		if av[i] != bv[i] {
			return false
		}
	}

	return true
}

func nullString(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func nullTime(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return t.Time
}

func nullFloat(f sql.NullFloat64) any {
	if !f.Valid {
		return nil
	}
	return f.Float64
}

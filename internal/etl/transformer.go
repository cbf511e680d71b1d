package etl

import (
	"movies-etl/internal/types/elastic"
	"movies-etl/internal/types/movies"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// descriptionPlaceholder - так в старых данных помечено отсутствующее описание
const descriptionPlaceholder = "N/A"

type Transformer struct {
	Logger *zap.SugaredLogger
}

func NewTransformer(logger *zap.SugaredLogger) *Transformer {
	return &Transformer{
		Logger: logger,
	}
}

type documentBuilder struct {
	doc     elastic.SearchDocument
	genres  map[string]struct{}
	persons map[movies.Role]map[uuid.UUID]struct{}
}

// Transform - собирает по строкам соединения один SearchDocument на кинопроизведение.
// Документы идут в порядке ids. Для идентификаторов без строк документ не строится.
func (t *Transformer) Transform(ids []uuid.UUID, rows []FilmWorkRow) []elastic.SearchDocument {
	builders := make(map[uuid.UUID]*documentBuilder, len(ids))
	for _, row := range rows {
		b, ok := builders[row.FilmWorkID]
		if !ok {
			b = newDocumentBuilder(row)
			builders[row.FilmWorkID] = b
		}
		b.add(row)
	}

	docs := make([]elastic.SearchDocument, 0, len(ids))
	for _, id := range ids {
		b, ok := builders[id]
		if !ok {
			t.Logger.Warnw("Film work not found, skipping", "film_work_id", id)
			continue
		}
		docs = append(docs, b.doc)
		delete(builders, id)
	}

	t.Logger.Infof("Transformed %d docs succesfully", len(docs))

	return docs
}

func newDocumentBuilder(row FilmWorkRow) *documentBuilder {
	doc := elastic.SearchDocument{
		ID:             row.FilmWorkID.String(),
		Title:          row.Title,
		Type:           row.Type,
		Genres:         []string{},
		Actors:         []elastic.PersonRef{},
		ActorsNames:    []string{},
		Directors:      []elastic.PersonRef{},
		DirectorsNames: []string{},
		Writers:        []elastic.PersonRef{},
		WritersNames:   []string{},
	}
	if row.Rating.Valid {
		doc.Rating = row.Rating.Float64
	}
	if row.Description.Valid && row.Description.String != descriptionPlaceholder {
		description := row.Description.String
		doc.Description = &description
	}

	persons := make(map[movies.Role]map[uuid.UUID]struct{}, len(movies.Roles))
	for _, role := range movies.Roles {
		persons[role] = make(map[uuid.UUID]struct{})
	}

	return &documentBuilder{
		doc:     doc,
		genres:  make(map[string]struct{}),
		persons: persons,
	}
}

func (b *documentBuilder) add(row FilmWorkRow) {
	if row.GenreID.Valid && row.GenreName.Valid {
		if _, seen := b.genres[row.GenreName.String]; !seen {
			b.genres[row.GenreName.String] = struct{}{}
			b.doc.Genres = append(b.doc.Genres, row.GenreName.String)
		}
	}

	if !row.PersonID.Valid || !row.PersonName.Valid || !row.Role.Valid {
		return
	}

	role := movies.Role(row.Role.String)
	seen, ok := b.persons[role]
	if !ok {
		return
	}
	if _, dup := seen[row.PersonID.UUID]; dup {
		return
	}
	seen[row.PersonID.UUID] = struct{}{}

	ref := elastic.PersonRef{ID: row.PersonID.UUID.String(), Name: row.PersonName.String}
	switch role {
	case movies.Actor:
		b.doc.Actors = append(b.doc.Actors, ref)
		b.doc.ActorsNames = append(b.doc.ActorsNames, ref.Name)
	case movies.Director:
		b.doc.Directors = append(b.doc.Directors, ref)
		b.doc.DirectorsNames = append(b.doc.DirectorsNames, ref.Name)
	case movies.Writer:
		b.doc.Writers = append(b.doc.Writers, ref)
		b.doc.WritersNames = append(b.doc.WritersNames, ref.Name)
	}
}

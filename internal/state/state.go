package state

import "context"

// Ключи контрольных точек
const (
	KeyLastModifiedPerson   = "last_modified_person"
	KeyLastModifiedGenre    = "last_modified_genre"
	KeyLastModifiedFilmWork = "last_modified_film_work"
	KeyInitCompleted        = "init_completed"
)

// InitCompletedValue - значение маркера завершенной первичной загрузки
const InitCompletedValue = "completed"

// Store - хранилище состояния ETL (водяные знаки и маркер первичной загрузки).
// Рассчитано на единственного писателя.
//
//go:generate mockgen -source=internal/state/state.go -destination=internal/state/mocks.go -package=state
type Store interface {
	// Get - возвращает значение по ключу или def, если ключа нет
	Get(ctx context.Context, key string, def string) (string, error)
	// Set - сохраняет значение по ключу в постоянное хранилище
	Set(ctx context.Context, key string, value string) error
}

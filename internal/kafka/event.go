package kafka

import "time"

type EventType string

const (
	FilmWorksIndexed EventType = "film_works_indexed"
)

// Event - сообщение о том, что документы кинопроизведений обновлены в индексе
type Event struct {
	Type        EventType `json:"type"`
	FilmWorkIDs []string  `json:"film_work_ids"`
	Timestamp   time.Time `json:"timestamp"`
}

package elastic

// PersonRef - участник кинопроизведения внутри документа
type PersonRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchDocument - денормализованный документ кинопроизведения для хранения в ES
type SearchDocument struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    *string     `json:"description"`
	Rating         float64     `json:"rating"`
	Type           string      `json:"type"`
	Genres         []string    `json:"genres"`
	Actors         []PersonRef `json:"actors"`
	ActorsNames    []string    `json:"actors_names"`
	Directors      []PersonRef `json:"directors"`
	DirectorsNames []string    `json:"directors_names"`
	Writers        []PersonRef `json:"writers"`
	WritersNames   []string    `json:"writers_names"`
}

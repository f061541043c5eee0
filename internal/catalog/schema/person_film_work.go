package schema

// PersonFilmWorkTable represents the 'content.person_film_work' junction table.
type PersonFilmWorkTable struct {
	Table      string
	ID         string
	FilmWorkID string
	PersonID   string
	Role       string
	Created    string
}

// PersonFilmWork is the schema definition for content.person_film_work.
var PersonFilmWork = PersonFilmWorkTable{
	Table:      "content.person_film_work",
	ID:         "id",
	FilmWorkID: "film_work_id",
	PersonID:   "person_id",
	Role:       "role",
	Created:    "created",
}

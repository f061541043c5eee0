package schema

// GenreFilmWorkTable represents the 'content.genre_film_work' junction table.
type GenreFilmWorkTable struct {
	Table      string
	ID         string
	FilmWorkID string
	GenreID    string
	Created    string
}

// GenreFilmWork is the schema definition for content.genre_film_work.
var GenreFilmWork = GenreFilmWorkTable{
	Table:      "content.genre_film_work",
	ID:         "id",
	FilmWorkID: "film_work_id",
	GenreID:    "genre_id",
	Created:    "created",
}

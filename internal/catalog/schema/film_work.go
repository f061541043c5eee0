package schema

// FilmWorkTable represents the 'content.film_work' table.
type FilmWorkTable struct {
	Table       string
	ID          string
	Title       string
	Description string
	Rating      string
	Type        string
	Created     string
	Modified    string
}

// FilmWork is the schema definition for content.film_work.
var FilmWork = FilmWorkTable{
	Table:       "content.film_work",
	ID:          "id",
	Title:       "title",
	Description: "description",
	Rating:      "rating",
	Type:        "type",
	Created:     "created",
	Modified:    "modified",
}

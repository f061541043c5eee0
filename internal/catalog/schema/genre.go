package schema

// GenreTable represents the 'content.genre' table.
type GenreTable struct {
	Table       string
	ID          string
	Name        string
	Description string
	Created     string
	Modified    string
}

// Genre is the schema definition for content.genre.
var Genre = GenreTable{
	Table:       "content.genre",
	ID:          "id",
	Name:        "name",
	Description: "description",
	Created:     "created",
	Modified:    "modified",
}

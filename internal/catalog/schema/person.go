package schema

// PersonTable represents the 'content.person' table.
type PersonTable struct {
	Table     string
	ID        string
	FullName  string
	BirthDate string
	Created   string
	Modified  string
}

// Person is the schema definition for content.person.
var Person = PersonTable{
	Table:     "content.person",
	ID:        "id",
	FullName:  "full_name",
	BirthDate: "birth_date",
	Created:   "created",
	Modified:  "modified",
}

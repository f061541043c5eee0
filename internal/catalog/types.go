/*
Package catalog reads the normalized relational movie catalog — the
five-table, read-only contract (`film_work`, `person`, `genre`,
`person_film_work`, `genre_film_work`) the producers page through.

Architecture:

  - Reader: a pgx.Pool-backed query layer addressed through
    internal/catalog/schema, never an inlined SQL literal.
  - Producers: constructors that take the sink (the "push" half of the
    producer→transformer→loader pipeline) and return a func(ctx) error,
    each owning its own cursor and fan-out logic per the five producer
    variants.
*/
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Role is a person's participation in a movie.
type Role string

// The only roles a person_film_work row may carry.
const (
	RoleActor    Role = "actor"
	RoleWriter   Role = "writer"
	RoleDirector Role = "director"
)

// Movie is the raw row shape produced by joining film_work against its
// person and genre relations, with parallel arrays from array_agg. A
// triple (name, personID, role) that is entirely nil represents "no
// persons attached"; partial nils are a data integrity error left for the
// transformer to reject.
type Movie struct {
	ID          uuid.UUID
	Title       string
	Description *string
	Rating      *float64
	Created     time.Time
	Modified    time.Time

	// GenreIDs/PersonIDs are scanned as text (cast in SQL) rather than a
	// native uuid[] array, then parsed in the transformer. This sidesteps
	// pgx's lack of a built-in array codec for arbitrary sql.Scanner
	// types and keeps the uniformly-null-triple encoding exact.
	GenreNames []*string
	GenreIDs   []*string

	PersonNames []*string
	PersonIDs   []*string
	PersonRoles []*string
}

// MovieRef is the minimal (id, modified) projection used to drive
// fan-out cursors without paying for the full joined row.
type MovieRef struct {
	ID       uuid.UUID
	Modified time.Time
}

// Person is a row from content.person.
type Person struct {
	ID       uuid.UUID
	FullName string
	Modified time.Time
}

// Genre is a row from content.genre.
type Genre struct {
	ID          uuid.UUID
	Name        string
	Description *string
	Modified    time.Time
}

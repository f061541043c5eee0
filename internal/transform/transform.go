/*
Package transform maps raw catalog rows into the denormalized document
shapes the search indexes expect.

Transformers are pure: no I/O, no pgx or HTTP imports, so every rule here
is covered by ordinary unit tests. The only side effect is a
returned error when a row violates a relational invariant the loader must
never see (a mixed-null person triple, an unrecognized role).
*/
package transform

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dkrasnov/filmwork-etl/internal/catalog"
	"github.com/dkrasnov/filmwork-etl/internal/platform/apperr"
	"github.com/dkrasnov/filmwork-etl/pkg/slice"
)

// # Document Shapes

// PersonRef is a deduplicated nested person entry in a [MovieDocument].
type PersonRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// GenreRef is a deduplicated nested genre entry in a [MovieDocument].
type GenreRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// MovieDocument is the `movies` index document shape.
type MovieDocument struct {
	ID             uuid.UUID   `json:"id"`
	Title          string      `json:"title"`
	Description    *string     `json:"description"`
	IMDBRating     *float64    `json:"imdb_rating"`
	Genre          []GenreRef  `json:"genre"`
	Actors         []PersonRef `json:"actors"`
	Writers        []PersonRef `json:"writers"`
	Directors      []PersonRef `json:"directors"`
	ActorsNames    []string    `json:"actors_names"`
	WritersNames   []string    `json:"writers_names"`
	DirectorsNames []string    `json:"directors_names"`
}

// DocumentID returns the ES bulk-upsert _id for this document.
func (m MovieDocument) DocumentID() string { return m.ID.String() }

// GenreDocument is the `genres` index document shape.
type GenreDocument struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
}

// DocumentID returns the ES bulk-upsert _id for this document.
func (g GenreDocument) DocumentID() string { return g.ID.String() }

// PersonDocument is the `persons` index document shape.
type PersonDocument struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
}

// DocumentID returns the ES bulk-upsert _id for this document.
func (p PersonDocument) DocumentID() string { return p.ID.String() }

// # Movie Transformation

// Movie buckets a raw joined movie row into its index document. Persons
// are grouped by role into actors/writers/directors, each deduplicated by
// person id; genres are deduplicated by genre id. A triple of
// (name, id, role) that is entirely nil means "no person attached" via
// the left join and is skipped; any other combination of nils is a data
// integrity error, as is a role outside {actor, writer, director}.
func Movie(row catalog.Movie) (MovieDocument, error) {
	actors, err := bucketPersons(row, catalog.RoleActor)
	if err != nil {
		return MovieDocument{}, err
	}
	writers, err := bucketPersons(row, catalog.RoleWriter)
	if err != nil {
		return MovieDocument{}, err
	}
	directors, err := bucketPersons(row, catalog.RoleDirector)
	if err != nil {
		return MovieDocument{}, err
	}

	genres, err := dedupGenres(row)
	if err != nil {
		return MovieDocument{}, err
	}

	nameOf := func(p PersonRef) string { return p.Name }

	return MovieDocument{
		ID:             row.ID,
		Title:          row.Title,
		Description:    row.Description,
		IMDBRating:     row.Rating,
		Genre:          genres,
		Actors:         actors,
		Writers:        writers,
		Directors:      directors,
		ActorsNames:    slice.Map(actors, nameOf),
		WritersNames:   slice.Map(writers, nameOf),
		DirectorsNames: slice.Map(directors, nameOf),
	}, nil
}

// bucketPersons walks the movie's parallel person arrays once per call,
// collecting only entries matching wantRole, deduplicated by person id in
// first-seen order.
func bucketPersons(row catalog.Movie, wantRole catalog.Role) ([]PersonRef, error) {
	seen := make(map[uuid.UUID]struct{})
	var refs []PersonRef

	n := len(row.PersonNames)
	for i := 0; i < n; i++ {
		name := row.PersonNames[i]
		rawID := row.PersonIDs[i]
		role := row.PersonRoles[i]

		if name == nil && rawID == nil && role == nil {
			// No persons attached via the left join for this slot.
			continue
		}
		if name == nil || rawID == nil || role == nil {
			return nil, apperr.DataIntegrity(
				fmt.Sprintf("movie %s: mixed-null person triple at index %d", row.ID, i))
		}

		id, err := uuid.Parse(*rawID)
		if err != nil {
			return nil, apperr.DataIntegrity(
				fmt.Sprintf("movie %s: invalid person id %q", row.ID, *rawID))
		}

		switch catalog.Role(*role) {
		case catalog.RoleActor, catalog.RoleWriter, catalog.RoleDirector:
			// valid; fall through to the role match below
		default:
			return nil, apperr.DataIntegrity(
				fmt.Sprintf("movie %s: unhandled role %q", row.ID, *role))
		}

		if catalog.Role(*role) != wantRole {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, PersonRef{ID: id, Name: *name})
	}

	return refs, nil
}

// dedupGenres walks the movie's parallel genre arrays, deduplicated by
// genre id in first-seen order.
func dedupGenres(row catalog.Movie) ([]GenreRef, error) {
	seen := make(map[uuid.UUID]struct{})
	var refs []GenreRef

	n := len(row.GenreNames)
	for i := 0; i < n; i++ {
		name := row.GenreNames[i]
		rawID := row.GenreIDs[i]

		if name == nil && rawID == nil {
			// No genres attached via the left join for this slot.
			continue
		}
		if name == nil || rawID == nil {
			return nil, apperr.DataIntegrity(
				fmt.Sprintf("movie %s: mixed-null genre pair at index %d", row.ID, i))
		}

		id, err := uuid.Parse(*rawID)
		if err != nil {
			return nil, apperr.DataIntegrity(
				fmt.Sprintf("movie %s: invalid genre id %q", row.ID, *rawID))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, GenreRef{ID: id, Name: *name})
	}

	return refs, nil
}

// # Genre and Person Transformation

// Genre is a field-copy projection from the raw catalog row.
func Genre(row catalog.Genre) GenreDocument {
	return GenreDocument{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
	}
}

// Person is a field-copy projection from the raw catalog row.
func Person(row catalog.Person) PersonDocument {
	return PersonDocument{
		ID:       row.ID,
		FullName: row.FullName,
	}
}

package transform_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnov/filmwork-etl/internal/catalog"
	"github.com/dkrasnov/filmwork-etl/internal/platform/apperr"
	"github.com/dkrasnov/filmwork-etl/internal/transform"
)

func strPtr(s string) *string { return &s }

func TestMovie_BucketsPersonsByRole(t *testing.T) {
	actorID := uuid.New()
	writerID := uuid.New()

	row := catalog.Movie{
		ID:    uuid.New(),
		Title: "The Star",
		PersonNames: []*string{
			strPtr("Alice Actor"), strPtr("Wendy Writer"),
		},
		PersonIDs: []*string{
			strPtr(actorID.String()), strPtr(writerID.String()),
		},
		PersonRoles: []*string{
			strPtr("actor"), strPtr("writer"),
		},
	}

	doc, err := transform.Movie(row)
	require.NoError(t, err)

	require.Len(t, doc.Actors, 1)
	assert.Equal(t, actorID, doc.Actors[0].ID)
	assert.Equal(t, []string{"Alice Actor"}, doc.ActorsNames)

	require.Len(t, doc.Writers, 1)
	assert.Equal(t, writerID, doc.Writers[0].ID)
	assert.Empty(t, doc.Directors)
}

func TestMovie_DedupsPersonsByID(t *testing.T) {
	id := uuid.New()

	row := catalog.Movie{
		ID: uuid.New(),
		PersonNames: []*string{
			strPtr("Alice Actor"), strPtr("Alice Actor"),
		},
		PersonIDs: []*string{
			strPtr(id.String()), strPtr(id.String()),
		},
		PersonRoles: []*string{
			strPtr("actor"), strPtr("actor"),
		},
	}

	doc, err := transform.Movie(row)
	require.NoError(t, err)

	assert.Len(t, doc.Actors, 1)
	assert.Len(t, doc.ActorsNames, 1)
}

func TestMovie_SkipsAllNilPersonTriple(t *testing.T) {
	row := catalog.Movie{
		ID:          uuid.New(),
		PersonNames: []*string{nil},
		PersonIDs:   []*string{nil},
		PersonRoles: []*string{nil},
	}

	doc, err := transform.Movie(row)
	require.NoError(t, err)
	assert.Empty(t, doc.Actors)
	assert.Empty(t, doc.Writers)
	assert.Empty(t, doc.Directors)
}

func TestMovie_RejectsMixedNilPersonTriple(t *testing.T) {
	row := catalog.Movie{
		ID:          uuid.New(),
		PersonNames: []*string{strPtr("Alice Actor")},
		PersonIDs:   []*string{nil},
		PersonRoles: []*string{strPtr("actor")},
	}

	_, err := transform.Movie(row)
	require.Error(t, err)
	assert.Equal(t, "DATA_INTEGRITY", apperr.As(err).Code)
}

func TestMovie_RejectsUnknownRole(t *testing.T) {
	id := uuid.New()
	row := catalog.Movie{
		ID:          uuid.New(),
		PersonNames: []*string{strPtr("Mystery Person")},
		PersonIDs:   []*string{strPtr(id.String())},
		PersonRoles: []*string{strPtr("producer")},
	}

	_, err := transform.Movie(row)
	require.Error(t, err)
	assert.Equal(t, "DATA_INTEGRITY", apperr.As(err).Code)
}

func TestMovie_RejectsInvalidPersonID(t *testing.T) {
	row := catalog.Movie{
		ID:          uuid.New(),
		PersonNames: []*string{strPtr("Alice Actor")},
		PersonIDs:   []*string{strPtr("not-a-uuid")},
		PersonRoles: []*string{strPtr("actor")},
	}

	_, err := transform.Movie(row)
	require.Error(t, err)
}

func TestMovie_DedupsGenres(t *testing.T) {
	genreID := uuid.New()

	row := catalog.Movie{
		ID: uuid.New(),
		GenreNames: []*string{
			strPtr("Action"), strPtr("Action"),
		},
		GenreIDs: []*string{
			strPtr(genreID.String()), strPtr(genreID.String()),
		},
	}

	doc, err := transform.Movie(row)
	require.NoError(t, err)

	require.Len(t, doc.Genre, 1)
	assert.Equal(t, genreID, doc.Genre[0].ID)
	assert.Equal(t, "Action", doc.Genre[0].Name)
}

func TestMovie_RejectsMixedNilGenrePair(t *testing.T) {
	row := catalog.Movie{
		ID:         uuid.New(),
		GenreNames: []*string{strPtr("Action")},
		GenreIDs:   []*string{nil},
	}

	_, err := transform.Movie(row)
	require.Error(t, err)
	assert.Equal(t, "DATA_INTEGRITY", apperr.As(err).Code)
}

func TestGenre_IsAFieldCopy(t *testing.T) {
	row := catalog.Genre{ID: uuid.New(), Name: "Noir", Description: strPtr("dark")}
	doc := transform.Genre(row)

	assert.Equal(t, row.ID, doc.ID)
	assert.Equal(t, row.Name, doc.Name)
	assert.Equal(t, row.Description, doc.Description)
}

func TestPerson_IsAFieldCopy(t *testing.T) {
	row := catalog.Person{ID: uuid.New(), FullName: "Jane Doe"}
	doc := transform.Person(row)

	assert.Equal(t, row.ID, doc.ID)
	assert.Equal(t, row.FullName, doc.FullName)
}

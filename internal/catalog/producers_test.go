package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnov/filmwork-etl/internal/catalog"
	"github.com/dkrasnov/filmwork-etl/internal/state"
)

// fakeCheckpoint is an in-memory [catalog.Checkpoint] for producer tests —
// no file I/O, so tests never touch disk.
type fakeCheckpoint struct {
	cursors map[string]time.Time
	buckets map[string]map[uuid.UUID]struct{}
}

func newFakeCheckpoint() *fakeCheckpoint {
	return &fakeCheckpoint{
		cursors: make(map[string]time.Time),
		buckets: map[string]map[uuid.UUID]struct{}{
			state.BucketMovies:  {},
			state.BucketGenres:  {},
			state.BucketPersons: {},
		},
	}
}

func (f *fakeCheckpoint) GetCursor(name string) time.Time {
	if ts, ok := f.cursors[name]; ok {
		return ts
	}
	return state.DefaultDate
}

func (f *fakeCheckpoint) SetCursor(name string, ts time.Time) error {
	f.cursors[name] = ts
	return nil
}

func (f *fakeCheckpoint) MarkSynced(bucket string, ids []uuid.UUID) error {
	for _, id := range ids {
		f.buckets[bucket][id] = struct{}{}
	}
	return nil
}

func (f *fakeCheckpoint) IsSynced(bucket string, id uuid.UUID) bool {
	_, found := f.buckets[bucket][id]
	return found
}

// fakeCatalog implements catalog.Catalog entirely in memory, with no pgx
// or Postgres dependency, so producer control flow is testable in
// isolation (ordering, dedup, cursor advance). Each page-shaped field is
// served exactly once — every producer loop in this package re-fetches
// until it sees an empty page, so a fake that kept returning the same
// non-empty page would spin forever.
type fakeCatalog struct {
	movies           []catalog.Movie
	moviesUpdated    []catalog.MovieRef
	updatedPersons   []catalog.Person
	updatedGenres    []catalog.Genre
	moviesByPersons  []catalog.MovieRef
	moviesByGenres   []catalog.MovieRef
	moviesByIDsCalls [][]uuid.UUID

	// moviesByPersonsAfter records the inner cursor each MoviesByPersons
	// call was made with.
	moviesByPersonsAfter []time.Time

	servedMoviesUpdated   bool
	servedUpdatedPersons  bool
	servedUpdatedGenres   bool
	servedMoviesByPersons bool
	servedMoviesByGenres  bool
}

func (f *fakeCatalog) MoviesByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Movie, error) {
	f.moviesByIDsCalls = append(f.moviesByIDsCalls, ids)
	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []catalog.Movie
	for _, movie := range f.movies {
		if _, ok := wanted[movie.ID]; ok {
			out = append(out, movie)
		}
	}
	return out, nil
}

func (f *fakeCatalog) UpdatedPersons(ctx context.Context, after time.Time) ([]catalog.Person, error) {
	if f.servedUpdatedPersons {
		return nil, nil
	}
	f.servedUpdatedPersons = true
	return f.updatedPersons, nil
}

func (f *fakeCatalog) MoviesByPersons(ctx context.Context, persons []catalog.Person, after time.Time) ([]catalog.MovieRef, error) {
	f.moviesByPersonsAfter = append(f.moviesByPersonsAfter, after)
	if f.servedMoviesByPersons {
		return nil, nil
	}
	f.servedMoviesByPersons = true
	return f.moviesByPersons, nil
}

func (f *fakeCatalog) MoviesUpdatedAfter(ctx context.Context, after time.Time) ([]catalog.MovieRef, error) {
	if f.servedMoviesUpdated {
		return nil, nil
	}
	f.servedMoviesUpdated = true
	return f.moviesUpdated, nil
}

func (f *fakeCatalog) UpdatedGenres(ctx context.Context, after time.Time) ([]catalog.Genre, error) {
	if f.servedUpdatedGenres {
		return nil, nil
	}
	f.servedUpdatedGenres = true
	return f.updatedGenres, nil
}

func (f *fakeCatalog) MoviesByGenres(ctx context.Context, genres []catalog.Genre, after time.Time) ([]catalog.MovieRef, error) {
	if f.servedMoviesByGenres {
		return nil, nil
	}
	f.servedMoviesByGenres = true
	return f.moviesByGenres, nil
}

// fakeCatalogPaged serves MoviesUpdatedAfter one entry of pages per call,
// then an empty page, so a single producer loop exercises the
// cursor-advance-and-refetch path.
type fakeCatalogPaged struct {
	fakeCatalog
	pages   [][]catalog.MovieRef
	nextIdx int
}

func (f *fakeCatalogPaged) MoviesUpdatedAfter(ctx context.Context, after time.Time) ([]catalog.MovieRef, error) {
	if f.nextIdx >= len(f.pages) {
		return nil, nil
	}
	page := f.pages[f.nextIdx]
	f.nextIdx++
	return page, nil
}

func TestMoviesByMovieChange_SkipsAlreadySyncedMovies(t *testing.T) {
	movieA := uuid.New()
	movieB := uuid.New()

	checkpoint := newFakeCheckpoint()
	require.NoError(t, checkpoint.MarkSynced(state.BucketMovies, []uuid.UUID{movieA}))

	reader := &fakeCatalog{
		moviesUpdated: []catalog.MovieRef{
			{ID: movieA, Modified: time.Now().UTC()},
			{ID: movieB, Modified: time.Now().UTC()},
		},
		movies: []catalog.Movie{{ID: movieB}},
	}

	var sunk []uuid.UUID
	sink := func(ctx context.Context, movie catalog.Movie) error {
		sunk = append(sunk, movie.ID)
		return nil
	}

	producer := catalog.MoviesByMovieChange(reader, checkpoint, time.Second, sink)
	require.NoError(t, producer(context.Background()))

	assert.Equal(t, []uuid.UUID{movieB}, sunk)
	assert.True(t, checkpoint.IsSynced(state.BucketMovies, movieB))
}

func TestMoviesByMovieChange_AdvancesCursorAndStopsOnEmptyPage(t *testing.T) {
	checkpoint := newFakeCheckpoint()

	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := &fakeCatalogPaged{
		pages: [][]catalog.MovieRef{
			{{ID: uuid.New(), Modified: last}},
		},
	}
	reader.movies = []catalog.Movie{{ID: reader.pages[0][0].ID}}

	sink := func(ctx context.Context, movie catalog.Movie) error { return nil }

	producer := catalog.MoviesByMovieChange(reader, checkpoint, time.Second, sink)
	require.NoError(t, producer(context.Background()))

	assert.True(t, last.Equal(checkpoint.GetCursor(state.CursorLastMovieSyncedAt)))
}

func TestMoviesByPersonChange_FansOutAndResetsInnerCursor(t *testing.T) {
	checkpoint := newFakeCheckpoint()

	person := catalog.Person{ID: uuid.New(), FullName: "Jane Doe", Modified: time.Now().UTC()}
	movie := catalog.Movie{ID: uuid.New()}

	reader := &fakeCatalog{
		updatedPersons:  []catalog.Person{person},
		moviesByPersons: []catalog.MovieRef{{ID: movie.ID, Modified: time.Now().UTC()}},
		movies:          []catalog.Movie{movie},
	}

	var sunk []uuid.UUID
	sink := func(ctx context.Context, m catalog.Movie) error {
		sunk = append(sunk, m.ID)
		return nil
	}

	producer := catalog.MoviesByPersonChange(reader, checkpoint, time.Second, sink)
	require.NoError(t, producer(context.Background()))

	assert.Equal(t, []uuid.UUID{movie.ID}, sunk)
	assert.True(t, checkpoint.IsSynced(state.BucketMovies, movie.ID))
	assert.True(t, person.Modified.Equal(checkpoint.GetCursor(state.CursorLastPersonForMoviesSyncedAt)))
	require.NotEmpty(t, reader.moviesByPersonsAfter)
	assert.True(t, state.DefaultDate.Equal(reader.moviesByPersonsAfter[0]), "the inner cursor starts from DefaultDate for the outer batch")
}

func TestGenresByGenreChange_DedupsAcrossCalls(t *testing.T) {
	checkpoint := newFakeCheckpoint()
	genre := catalog.Genre{ID: uuid.New(), Name: "Noir", Modified: time.Now().UTC()}

	reader := &fakeCatalog{updatedGenres: []catalog.Genre{genre}}

	var count int
	sink := func(ctx context.Context, g catalog.Genre) error {
		count++
		return nil
	}

	producer := catalog.GenresByGenreChange(reader, checkpoint, time.Second, sink)

	require.NoError(t, producer(context.Background()))
	assert.Equal(t, 1, count)
	assert.True(t, checkpoint.IsSynced(state.BucketGenres, genre.ID))

	// Serve the same genre again: the second call must skip it as synced.
	reader.servedUpdatedGenres = false
	require.NoError(t, producer(context.Background()))
	assert.Equal(t, 1, count, "a genre already synced this tick is not emitted again")
}

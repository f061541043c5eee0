package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dkrasnov/filmwork-etl/internal/retry"
	"github.com/dkrasnov/filmwork-etl/internal/state"
)

// # Sinks

// MovieSink is the "push" half of the movie dataflow: the transformer
// bound to the movies index.
type MovieSink func(ctx context.Context, movie Movie) error

// GenreSink is the "push" half of the genre dataflow.
type GenreSink func(ctx context.Context, genre Genre) error

// PersonSink is the "push" half of the person dataflow.
type PersonSink func(ctx context.Context, person Person) error

// # Checkpoint

// Checkpoint is the subset of [state.Store]'s behavior a producer needs:
// cursor read/write and per-tick dedup membership. Defined here so
// producers can be unit tested against a fake without pulling in the real
// file-backed store.
type Checkpoint interface {
	GetCursor(name string) time.Time
	SetCursor(name string, ts time.Time) error
	MarkSynced(bucket string, ids []uuid.UUID) error
	IsSynced(bucket string, id uuid.UUID) bool
}

// Producer is the shape every one of the five catalog producers exposes.
type Producer func(ctx context.Context) error

// Catalog is the subset of *Reader's behavior producers depend on,
// defined here (rather than accepting *Reader directly) so producers are
// unit-testable against an in-memory fake with no pgx dependency.
type Catalog interface {
	MoviesByIDs(ctx context.Context, ids []uuid.UUID) ([]Movie, error)
	UpdatedPersons(ctx context.Context, after time.Time) ([]Person, error)
	MoviesByPersons(ctx context.Context, persons []Person, after time.Time) ([]MovieRef, error)
	MoviesUpdatedAfter(ctx context.Context, after time.Time) ([]MovieRef, error)
	UpdatedGenres(ctx context.Context, after time.Time) ([]Genre, error)
	MoviesByGenres(ctx context.Context, genres []Genre, after time.Time) ([]MovieRef, error)
}

// # Movie Producers

// MoviesByMovieChange emits movies whose own `modified` timestamp
// advanced, fetching the full joined row for each id not already synced
// this tick.
func MoviesByMovieChange(reader Catalog, checkpoint Checkpoint, pgTimeout time.Duration, sink MovieSink) Producer {
	return func(ctx context.Context) error {
		cursor := checkpoint.GetCursor(state.CursorLastMovieSyncedAt)

		for {
			var refs []MovieRef
			if err := retry.Do(ctx, pgTimeout, func() error {
				var fetchErr error
				refs, fetchErr = reader.MoviesUpdatedAfter(ctx, cursor)
				return fetchErr
			}); err != nil {
				return err
			}
			if len(refs) == 0 {
				return nil
			}

			if err := emitUnsyncedMovies(ctx, reader, checkpoint, refs, sink); err != nil {
				return err
			}

			cursor = refs[len(refs)-1].Modified
			if err := checkpoint.SetCursor(state.CursorLastMovieSyncedAt, cursor); err != nil {
				return err
			}
		}
	}
}

// MoviesByPersonChange fans a person edit out onto every movie that
// person participates in. The outer cursor tracks persons; the inner
// cursor resets to [state.DefaultDate] for each outer batch so every
// linked movie is revisited regardless of the movie's own cursor.
func MoviesByPersonChange(reader Catalog, checkpoint Checkpoint, pgTimeout time.Duration, sink MovieSink) Producer {
	return func(ctx context.Context) error {
		outerCursor := checkpoint.GetCursor(state.CursorLastPersonForMoviesSyncedAt)

		for {
			var persons []Person
			if err := retry.Do(ctx, pgTimeout, func() error {
				var fetchErr error
				persons, fetchErr = reader.UpdatedPersons(ctx, outerCursor)
				return fetchErr
			}); err != nil {
				return err
			}
			if len(persons) == 0 {
				return nil
			}

			innerCursor := state.DefaultDate
			for {
				var refs []MovieRef
				if err := retry.Do(ctx, pgTimeout, func() error {
					var fetchErr error
					refs, fetchErr = reader.MoviesByPersons(ctx, persons, innerCursor)
					return fetchErr
				}); err != nil {
					return err
				}
				if len(refs) == 0 {
					break
				}

				if err := emitUnsyncedMovies(ctx, reader, checkpoint, refs, sink); err != nil {
					return err
				}

				innerCursor = refs[len(refs)-1].Modified
			}

			outerCursor = persons[len(persons)-1].Modified
			if err := checkpoint.SetCursor(state.CursorLastPersonForMoviesSyncedAt, outerCursor); err != nil {
				return err
			}
		}
	}
}

// MoviesByGenreChange is symmetric to MoviesByPersonChange over genres.
func MoviesByGenreChange(reader Catalog, checkpoint Checkpoint, pgTimeout time.Duration, sink MovieSink) Producer {
	return func(ctx context.Context) error {
		outerCursor := checkpoint.GetCursor(state.CursorLastGenreSyncedAt)

		for {
			var genres []Genre
			if err := retry.Do(ctx, pgTimeout, func() error {
				var fetchErr error
				genres, fetchErr = reader.UpdatedGenres(ctx, outerCursor)
				return fetchErr
			}); err != nil {
				return err
			}
			if len(genres) == 0 {
				return nil
			}

			innerCursor := state.DefaultDate
			for {
				var refs []MovieRef
				if err := retry.Do(ctx, pgTimeout, func() error {
					var fetchErr error
					refs, fetchErr = reader.MoviesByGenres(ctx, genres, innerCursor)
					return fetchErr
				}); err != nil {
					return err
				}
				if len(refs) == 0 {
					break
				}

				if err := emitUnsyncedMovies(ctx, reader, checkpoint, refs, sink); err != nil {
					return err
				}

				innerCursor = refs[len(refs)-1].Modified
			}

			outerCursor = genres[len(genres)-1].Modified
			if err := checkpoint.SetCursor(state.CursorLastGenreSyncedAt, outerCursor); err != nil {
				return err
			}
		}
	}
}

// # Genre and Person Producers

// GenresByGenreChange emits genre rows whose own `modified` advanced, with
// no fan-out onto movies (that is MoviesByGenreChange's job).
func GenresByGenreChange(reader Catalog, checkpoint Checkpoint, pgTimeout time.Duration, sink GenreSink) Producer {
	return func(ctx context.Context) error {
		cursor := checkpoint.GetCursor(state.CursorLastGenreForGenresSyncedAt)

		for {
			var genres []Genre
			if err := retry.Do(ctx, pgTimeout, func() error {
				var fetchErr error
				genres, fetchErr = reader.UpdatedGenres(ctx, cursor)
				return fetchErr
			}); err != nil {
				return err
			}
			if len(genres) == 0 {
				return nil
			}

			for _, genre := range genres {
				if checkpoint.IsSynced(state.BucketGenres, genre.ID) {
					continue
				}
				if err := sink(ctx, genre); err != nil {
					return err
				}
				if err := checkpoint.MarkSynced(state.BucketGenres, []uuid.UUID{genre.ID}); err != nil {
					return err
				}
			}

			cursor = genres[len(genres)-1].Modified
			if err := checkpoint.SetCursor(state.CursorLastGenreForGenresSyncedAt, cursor); err != nil {
				return err
			}
		}
	}
}

// PersonsByPersonChange emits person rows whose own `modified` advanced.
// Fan-out onto movies is handled separately by MoviesByPersonChange.
func PersonsByPersonChange(reader Catalog, checkpoint Checkpoint, pgTimeout time.Duration, sink PersonSink) Producer {
	return func(ctx context.Context) error {
		cursor := checkpoint.GetCursor(state.CursorLastPersonSyncedAt)

		for {
			var persons []Person
			if err := retry.Do(ctx, pgTimeout, func() error {
				var fetchErr error
				persons, fetchErr = reader.UpdatedPersons(ctx, cursor)
				return fetchErr
			}); err != nil {
				return err
			}
			if len(persons) == 0 {
				return nil
			}

			for _, person := range persons {
				if checkpoint.IsSynced(state.BucketPersons, person.ID) {
					continue
				}
				if err := sink(ctx, person); err != nil {
					return err
				}
				if err := checkpoint.MarkSynced(state.BucketPersons, []uuid.UUID{person.ID}); err != nil {
					return err
				}
			}

			cursor = persons[len(persons)-1].Modified
			if err := checkpoint.SetCursor(state.CursorLastPersonSyncedAt, cursor); err != nil {
				return err
			}
		}
	}
}

// # Shared Helpers

// emitUnsyncedMovies filters refs down to ids not yet synced this tick,
// hydrates the full joined rows for those ids, forwards each to sink, and
// marks it synced immediately after — so a mid-page failure leaves
// already-forwarded movies correctly marked.
func emitUnsyncedMovies(ctx context.Context, reader Catalog, checkpoint Checkpoint, refs []MovieRef, sink MovieSink) error {
	var pending []uuid.UUID
	for _, ref := range refs {
		if !checkpoint.IsSynced(state.BucketMovies, ref.ID) {
			pending = append(pending, ref.ID)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	movies, err := reader.MoviesByIDs(ctx, pending)
	if err != nil {
		return err
	}

	for _, movie := range movies {
		if err := sink(ctx, movie); err != nil {
			return err
		}
		if err := checkpoint.MarkSynced(state.BucketMovies, []uuid.UUID{movie.ID}); err != nil {
			return err
		}
	}

	return nil
}

/*
Package pipeline wires the catalog producers, transformers, and index
loaders into the three per-index dataflows and drives them tick by tick.
*/
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/dkrasnov/filmwork-etl/internal/catalog"
	"github.com/dkrasnov/filmwork-etl/internal/index"
	"github.com/dkrasnov/filmwork-etl/internal/state"
	"github.com/dkrasnov/filmwork-etl/internal/transform"
)

// # Dependencies

// Checkpoint is everything the scheduler needs from the state store: the
// cursor/dedup behavior producers depend on (catalog.Checkpoint), plus
// the tick lifecycle hooks. Defined here so ticks are testable against an
// in-memory fake rather than the real file-backed store.
type Checkpoint interface {
	catalog.Checkpoint
	BeginTick(startedAt time.Time) error
	CompleteTick(endedAt time.Time, tickErr error) error
	RecordProducerRows(producer string, rows int) error
}

// Loader is the push/flush surface the scheduler drives per index. Both
// *index.Loader and a test fake satisfy it.
type Loader interface {
	Push(ctx context.Context, doc index.Document) error
	Close(ctx context.Context) error
}

// # Scheduler

// Scheduler runs the movies/genres/persons dataflows in order, once per
// tick, sleeping between ticks for the configured interval.
type Scheduler struct {
	reader catalog.Catalog
	store  Checkpoint
	log    *slog.Logger

	moviesLoader  Loader
	genresLoader  Loader
	personsLoader Loader

	pgTimeout     time.Duration
	checkInterval time.Duration

	onTickComplete func()
}

// New constructs a Scheduler. onTickComplete, if non-nil, is called after
// every successful tick — the heartbeat publisher hooks in here.
func New(
	reader catalog.Catalog,
	store Checkpoint,
	moviesLoader, genresLoader, personsLoader Loader,
	pgTimeout, checkInterval time.Duration,
	log *slog.Logger,
	onTickComplete func(),
) *Scheduler {
	return &Scheduler{
		reader:         reader,
		store:          store,
		log:            log,
		moviesLoader:   moviesLoader,
		genresLoader:   genresLoader,
		personsLoader:  personsLoader,
		pgTimeout:      pgTimeout,
		checkInterval:  checkInterval,
		onTickComplete: onTickComplete,
	}
}

// Run executes ticks until ctx is cancelled. A cancellation is honored
// between ticks, never mid-batch: the current tick always finishes
// applying its in-flight work before Run returns, so SIGINT/SIGTERM never
// abandons a bulk submission partway through.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := s.tick(context.WithoutCancel(ctx)); err != nil {
			return err
		}

		if s.onTickComplete != nil {
			s.onTickComplete()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.checkInterval):
		}
	}
}

// tick runs the three dataflows in order (movies, genres, persons),
// flushing each loader before moving to the next so a movie document
// always reflects the genre/person names as of this tick. Within the
// movies dataflow, the three producers run genre-change, movie-change,
// person-change — the fixed order named by the ordering guarantee.
func (s *Scheduler) tick(ctx context.Context) error {
	startedAt := time.Now().UTC()
	if err := s.store.BeginTick(startedAt); err != nil {
		return err
	}
	s.log.Info("tick_started", slog.Time("started_at", startedAt))

	var tickErr error
	defer func() {
		endedAt := time.Now().UTC()
		if err := s.store.CompleteTick(endedAt, tickErr); err != nil && tickErr == nil {
			tickErr = err
		}
		if tickErr != nil {
			s.log.Error("tick_failed", slog.Any("error", tickErr))
			return
		}
		s.log.Info("tick_completed", slog.Duration("elapsed", endedAt.Sub(startedAt)))
	}()

	baseMovieSink := func(ctx context.Context, movie catalog.Movie) error {
		doc, err := transform.Movie(movie)
		if err != nil {
			return err
		}
		return s.moviesLoader.Push(ctx, doc)
	}
	baseGenreSink := func(ctx context.Context, genre catalog.Genre) error {
		return s.genresLoader.Push(ctx, transform.Genre(genre))
	}
	basePersonSink := func(ctx context.Context, person catalog.Person) error {
		return s.personsLoader.Push(ctx, transform.Person(person))
	}

	genreRows, genreSink := countingMovieSink(baseMovieSink)
	if tickErr = catalog.MoviesByGenreChange(s.reader, s.store, s.pgTimeout, genreSink)(ctx); tickErr != nil {
		return tickErr
	}
	if tickErr = s.store.RecordProducerRows(state.ProducerMoviesByGenreChange, *genreRows); tickErr != nil {
		return tickErr
	}

	movieRows, movieChangeSink := countingMovieSink(baseMovieSink)
	if tickErr = catalog.MoviesByMovieChange(s.reader, s.store, s.pgTimeout, movieChangeSink)(ctx); tickErr != nil {
		return tickErr
	}
	if tickErr = s.store.RecordProducerRows(state.ProducerMoviesByMovieChange, *movieRows); tickErr != nil {
		return tickErr
	}

	personRows, personChangeSink := countingMovieSink(baseMovieSink)
	if tickErr = catalog.MoviesByPersonChange(s.reader, s.store, s.pgTimeout, personChangeSink)(ctx); tickErr != nil {
		return tickErr
	}
	if tickErr = s.store.RecordProducerRows(state.ProducerMoviesByPersonChange, *personRows); tickErr != nil {
		return tickErr
	}

	if tickErr = s.moviesLoader.Close(ctx); tickErr != nil {
		return tickErr
	}

	genresSyncedRows, wrappedGenreSink := countingGenreSink(baseGenreSink)
	if tickErr = catalog.GenresByGenreChange(s.reader, s.store, s.pgTimeout, wrappedGenreSink)(ctx); tickErr != nil {
		return tickErr
	}
	if tickErr = s.store.RecordProducerRows(state.ProducerGenresByGenreChange, *genresSyncedRows); tickErr != nil {
		return tickErr
	}
	if tickErr = s.genresLoader.Close(ctx); tickErr != nil {
		return tickErr
	}

	personsSyncedRows, wrappedPersonSink := countingPersonSink(basePersonSink)
	if tickErr = catalog.PersonsByPersonChange(s.reader, s.store, s.pgTimeout, wrappedPersonSink)(ctx); tickErr != nil {
		return tickErr
	}
	if tickErr = s.store.RecordProducerRows(state.ProducerPersonsByPersonChange, *personsSyncedRows); tickErr != nil {
		return tickErr
	}
	if tickErr = s.personsLoader.Close(ctx); tickErr != nil {
		return tickErr
	}

	return nil
}

// countingMovieSink wraps sink with a row counter, so the scheduler can
// report how many rows each producer emitted this tick without the
// producers themselves needing to know about that telemetry.
func countingMovieSink(sink catalog.MovieSink) (*int, catalog.MovieSink) {
	rows := 0
	return &rows, func(ctx context.Context, movie catalog.Movie) error {
		rows++
		return sink(ctx, movie)
	}
}

func countingGenreSink(sink catalog.GenreSink) (*int, catalog.GenreSink) {
	rows := 0
	return &rows, func(ctx context.Context, genre catalog.Genre) error {
		rows++
		return sink(ctx, genre)
	}
}

func countingPersonSink(sink catalog.PersonSink) (*int, catalog.PersonSink) {
	rows := 0
	return &rows, func(ctx context.Context, person catalog.Person) error {
		rows++
		return sink(ctx, person)
	}
}

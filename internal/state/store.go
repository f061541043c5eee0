/*
Package state implements the ETL's persisted checkpoint: the cursor
high-water marks and per-tick deduplication sets that let an interrupted
tick resume without losing or duplicating work.

Architecture:

  - Store: An in-memory mirror guarded by a mutex, backed by a single JSON
    document written atomically (write-to-temp, then rename) after every
    mutation — a crash mid-write never corrupts the file on disk.
  - Buckets: three independent per-tick membership sets (movies, genres,
    persons) rather than the tangled pair the original process carried;
    see DESIGN.md for why these are kept fully separate.
  - Cursors: five named "modified" timestamps, defaulting to the epoch
    sentinel ([DefaultDate]) when absent.
*/
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkrasnov/filmwork-etl/internal/platform/apperr"
)

// # Sentinel Values

// DefaultDate is "earlier than any row" — the initial value of every
// cursor and the inner-loop reset for fan-out producers.
var DefaultDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// # Cursor Names

const (
	CursorLastMovieSyncedAt           = "last_movie_synced_at"
	CursorLastPersonSyncedAt          = "last_person_synced_at"
	CursorLastPersonForMoviesSyncedAt = "last_person_for_movies_synced_at"
	CursorLastGenreSyncedAt           = "last_genre_synced_at"
	CursorLastGenreForGenresSyncedAt  = "last_genre_for_genres_synced_at"
)

// # Dedup Bucket Names

const (
	BucketMovies  = "movies_synced"
	BucketGenres  = "genres_synced"
	BucketPersons = "persons_synced"
)

// # Producer Names
//
// Identify the five producers for the per-tick row-count telemetry
// exposed on the status surface. Not persisted — these are reset every
// tick and have no bearing on resume correctness.
const (
	ProducerMoviesByGenreChange   = "movies_by_genre_change"
	ProducerMoviesByPersonChange  = "movies_by_person_change"
	ProducerMoviesByMovieChange   = "movies_by_movie_change"
	ProducerGenresByGenreChange   = "genres_by_genre_change"
	ProducerPersonsByPersonChange = "persons_by_person_change"
)

// # Document Shape

// document is the on-disk JSON shape described by the state file contract.
type document struct {
	LastFullStateSyncStartedAt   string   `json:"last_full_state_sync_started_at"`
	LastMovieSyncedAt            string   `json:"last_movie_synced_at"`
	LastPersonSyncedAt           string   `json:"last_person_synced_at"`
	LastPersonForMoviesSyncedAt  string   `json:"last_person_for_movies_synced_at"`
	LastGenreSyncedAt            string   `json:"last_genre_synced_at"`
	LastGenreForGenresSyncedAt   string   `json:"last_genre_for_genres_synced_at"`
	MoviesSynced                 []string `json:"movies_synced"`
	GenresSynced                 []string `json:"genres_synced"`
	PersonsSynced                []string `json:"persons_synced"`
}

// # Store

// Store is the process-local, crash-safe checkpoint of the pipeline.
type Store struct {
	mu       sync.RWMutex
	path     string
	cursors  map[string]time.Time
	buckets  map[string]map[uuid.UUID]struct{}
	fullSync time.Time

	// Tick telemetry for the status surface. Deliberately not part of
	// the persisted document: losing it on restart is fine, it is never
	// read back to decide resume behavior.
	lastTickEndedAt time.Time
	lastTickError   string
	producerRows    map[string]int
}

// Open loads (or initializes) the state store rooted at the given folder.
// A missing or corrupt file is treated as empty state, per the ETL's error
// handling policy for startup-time storage failures. A corrupt file is
// discarded silently: nothing is logged and the caller is not told.
func Open(folder string) (*Store, error) {
	store := &Store{
		path:    filepath.Join(folder, "state.json"),
		cursors: make(map[string]time.Time),
		buckets: map[string]map[uuid.UUID]struct{}{
			BucketMovies:  make(map[uuid.UUID]struct{}),
			BucketGenres:  make(map[uuid.UUID]struct{}),
			BucketPersons: make(map[uuid.UUID]struct{}),
		},
		fullSync:     DefaultDate,
		producerRows: make(map[string]int),
	}

	raw, err := os.ReadFile(store.path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("state: failed to read %s: %w", store.path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		// Fall back to empty state; no warning is emitted.
		return store, nil
	}

	store.fullSync = parseOrDefault(doc.LastFullStateSyncStartedAt)
	store.cursors[CursorLastMovieSyncedAt] = parseOrDefault(doc.LastMovieSyncedAt)
	store.cursors[CursorLastPersonSyncedAt] = parseOrDefault(doc.LastPersonSyncedAt)
	store.cursors[CursorLastPersonForMoviesSyncedAt] = parseOrDefault(doc.LastPersonForMoviesSyncedAt)
	store.cursors[CursorLastGenreSyncedAt] = parseOrDefault(doc.LastGenreSyncedAt)
	store.cursors[CursorLastGenreForGenresSyncedAt] = parseOrDefault(doc.LastGenreForGenresSyncedAt)

	fillBucket(store.buckets[BucketMovies], doc.MoviesSynced)
	fillBucket(store.buckets[BucketGenres], doc.GenresSynced)
	fillBucket(store.buckets[BucketPersons], doc.PersonsSynced)

	return store, nil
}

func parseOrDefault(value string) time.Time {
	if value == "" {
		return DefaultDate
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return DefaultDate
	}
	return parsed.UTC()
}

func fillBucket(bucket map[uuid.UUID]struct{}, ids []string) {
	for _, raw := range ids {
		if id, err := uuid.Parse(raw); err == nil {
			bucket[id] = struct{}{}
		}
	}
}

// # Cursor Operations

// GetCursor returns the named cursor's value, defaulting to [DefaultDate].
func (s *Store) GetCursor(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ts, ok := s.cursors[name]; ok {
		return ts
	}
	return DefaultDate
}

// SetCursor persists the named cursor's new value, visible to subsequent
// reads before this call returns. Monotonicity is the caller's
// responsibility — the store does not enforce it.
func (s *Store) SetCursor(name string, ts time.Time) error {
	s.mu.Lock()
	s.cursors[name] = ts
	s.mu.Unlock()

	return s.persist()
}

// # Dedup Bucket Operations

// MarkSynced appends ids to the named per-tick bucket.
func (s *Store) MarkSynced(bucket string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	set, ok := s.buckets[bucket]
	if !ok {
		s.mu.Unlock()
		return apperr.Configuration(fmt.Sprintf("state: unknown bucket %q", bucket))
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.mu.Unlock()

	return s.persist()
}

// IsSynced reports whether id is already present in the named bucket.
// This is a true membership predicate (see the ETL's design notes on the
// original's buggy persons-synced check).
func (s *Store) IsSynced(bucket string, id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.buckets[bucket]
	if !ok {
		return false
	}
	_, found := set[id]
	return found
}

// # Tick Lifecycle

// BeginTick records the wall-clock start of a tick, for crash detection,
// and resets the per-producer row counters ahead of the new tick.
func (s *Store) BeginTick(startedAt time.Time) error {
	s.mu.Lock()
	s.fullSync = startedAt
	s.producerRows = make(map[string]int)
	s.mu.Unlock()

	return s.persist()
}

// LastFullSyncStartedAt returns the last recorded tick start time.
func (s *Store) LastFullSyncStartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fullSync
}

// RecordProducerRows sets the number of rows the named producer emitted
// this tick, for the status surface. Not part of the persisted checkpoint.
func (s *Store) RecordProducerRows(producer string, rows int) error {
	s.mu.Lock()
	s.producerRows[producer] = rows
	s.mu.Unlock()
	return nil
}

// CompleteTick records the tick's outcome (end time and, if it failed,
// the error) for the status surface. tickErr nil means the tick finished
// cleanly, and only then are the three per-tick dedup sets cleared,
// allowing the next tick's producers to re-encounter rows they skipped
// this tick as already-synced. A failed tick leaves the buckets intact
// so a retry doesn't re-emit rows already pushed to the loaders.
func (s *Store) CompleteTick(endedAt time.Time, tickErr error) error {
	s.mu.Lock()
	s.lastTickEndedAt = endedAt
	if tickErr != nil {
		s.lastTickError = tickErr.Error()
	} else {
		s.lastTickError = ""
	}
	if tickErr == nil {
		for name := range s.buckets {
			s.buckets[name] = make(map[uuid.UUID]struct{})
		}
	}
	s.mu.Unlock()

	if tickErr != nil {
		return nil
	}
	return s.persist()
}

// # Snapshot (for the status server)

// Snapshot is a read-only view of the store's current cursors and the
// last tick's outcome, safe to serialize and expose over HTTP.
type Snapshot struct {
	LastFullStateSyncStartedAt  time.Time `json:"last_full_state_sync_started_at"`
	LastMovieSyncedAt           time.Time `json:"last_movie_synced_at"`
	LastPersonSyncedAt          time.Time `json:"last_person_synced_at"`
	LastPersonForMoviesSyncedAt time.Time `json:"last_person_for_movies_synced_at"`
	LastGenreSyncedAt           time.Time `json:"last_genre_synced_at"`
	LastGenreForGenresSyncedAt  time.Time `json:"last_genre_for_genres_synced_at"`
	LastTickEndedAt             time.Time      `json:"last_tick_ended_at"`
	LastTickError               string         `json:"last_tick_error,omitempty"`
	ProducerRowCounts           map[string]int `json:"producer_row_counts"`
}

// Snapshot returns a copy of the current cursor values and tick telemetry.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make(map[string]int, len(s.producerRows))
	for name, count := range s.producerRows {
		rows[name] = count
	}

	return Snapshot{
		LastFullStateSyncStartedAt:  s.fullSync,
		LastMovieSyncedAt:           s.cursors[CursorLastMovieSyncedAt],
		LastPersonSyncedAt:          s.cursors[CursorLastPersonSyncedAt],
		LastPersonForMoviesSyncedAt: s.cursors[CursorLastPersonForMoviesSyncedAt],
		LastGenreSyncedAt:           s.cursors[CursorLastGenreSyncedAt],
		LastGenreForGenresSyncedAt:  s.cursors[CursorLastGenreForGenresSyncedAt],
		LastTickEndedAt:             s.lastTickEndedAt,
		LastTickError:               s.lastTickError,
		ProducerRowCounts:           rows,
	}
}

// # Persistence

// persist writes the current state to disk atomically: write to a temp
// file in the same directory, then rename over the target path. Rename is
// atomic on POSIX filesystems, so a crash mid-write never leaves state.json
// truncated or half-written.
func (s *Store) persist() error {
	s.mu.RLock()
	doc := document{
		LastFullStateSyncStartedAt:  s.fullSync.Format(time.RFC3339Nano),
		LastMovieSyncedAt:           s.cursors[CursorLastMovieSyncedAt].Format(time.RFC3339Nano),
		LastPersonSyncedAt:          s.cursors[CursorLastPersonSyncedAt].Format(time.RFC3339Nano),
		LastPersonForMoviesSyncedAt: s.cursors[CursorLastPersonForMoviesSyncedAt].Format(time.RFC3339Nano),
		LastGenreSyncedAt:           s.cursors[CursorLastGenreSyncedAt].Format(time.RFC3339Nano),
		LastGenreForGenresSyncedAt:  s.cursors[CursorLastGenreForGenresSyncedAt].Format(time.RFC3339Nano),
		MoviesSynced:                idStrings(s.buckets[BucketMovies]),
		GenresSynced:                idStrings(s.buckets[BucketGenres]),
		PersonsSynced:               idStrings(s.buckets[BucketPersons]),
	}
	s.mu.RUnlock()

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("state: failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("state: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: failed to rename temp file into place: %w", err)
	}

	return nil
}

func idStrings(set map[uuid.UUID]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id.String())
	}
	return ids
}

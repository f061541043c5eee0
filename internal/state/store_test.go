package state_test

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnov/filmwork-etl/internal/state"
)

func TestOpen_MissingFileIsEmptyState(t *testing.T) {
	store, err := state.Open(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, state.DefaultDate, store.GetCursor(state.CursorLastMovieSyncedAt))
	assert.Equal(t, state.DefaultDate, store.LastFullSyncStartedAt())
}

func TestSetCursor_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := state.Open(dir)
	require.NoError(t, err)

	advanced := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetCursor(state.CursorLastMovieSyncedAt, advanced))

	reopened, err := state.Open(dir)
	require.NoError(t, err)
	assert.True(t, advanced.Equal(reopened.GetCursor(state.CursorLastMovieSyncedAt)))
}

func TestMarkSynced_IsSynced_TrueMembership(t *testing.T) {
	store, err := state.Open(t.TempDir())
	require.NoError(t, err)

	id := uuid.New()
	other := uuid.New()

	assert.False(t, store.IsSynced(state.BucketMovies, id))

	require.NoError(t, store.MarkSynced(state.BucketMovies, []uuid.UUID{id}))
	assert.True(t, store.IsSynced(state.BucketMovies, id))
	assert.False(t, store.IsSynced(state.BucketMovies, other))

	// Buckets are independent: marking a movie synced never marks a genre
	// or person with the same id synced.
	assert.False(t, store.IsSynced(state.BucketGenres, id))
	assert.False(t, store.IsSynced(state.BucketPersons, id))
}

func TestMarkSynced_UnknownBucketIsConfigurationError(t *testing.T) {
	store, err := state.Open(t.TempDir())
	require.NoError(t, err)

	err = store.MarkSynced("not_a_real_bucket", []uuid.UUID{uuid.New()})
	require.Error(t, err)
}

func TestBucketsSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := state.Open(dir)
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, store.MarkSynced(state.BucketGenres, []uuid.UUID{id}))

	reopened, err := state.Open(dir)
	require.NoError(t, err)
	assert.True(t, reopened.IsSynced(state.BucketGenres, id))
}

func TestCompleteTick_ClearsAllBuckets(t *testing.T) {
	store, err := state.Open(t.TempDir())
	require.NoError(t, err)

	movieID, genreID, personID := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, store.MarkSynced(state.BucketMovies, []uuid.UUID{movieID}))
	require.NoError(t, store.MarkSynced(state.BucketGenres, []uuid.UUID{genreID}))
	require.NoError(t, store.MarkSynced(state.BucketPersons, []uuid.UUID{personID}))

	require.NoError(t, store.CompleteTick(time.Now().UTC(), nil))

	assert.False(t, store.IsSynced(state.BucketMovies, movieID))
	assert.False(t, store.IsSynced(state.BucketGenres, genreID))
	assert.False(t, store.IsSynced(state.BucketPersons, personID))
}

func TestCompleteTick_FailureLeavesBucketsIntactAndRecordsError(t *testing.T) {
	store, err := state.Open(t.TempDir())
	require.NoError(t, err)

	movieID := uuid.New()
	require.NoError(t, store.MarkSynced(state.BucketMovies, []uuid.UUID{movieID}))

	failure := assert.AnError
	require.NoError(t, store.CompleteTick(time.Now().UTC(), failure))

	assert.True(t, store.IsSynced(state.BucketMovies, movieID), "a failed tick must not clear dedup buckets")
	assert.Equal(t, failure.Error(), store.Snapshot().LastTickError)
}

func TestRecordProducerRows_ReflectedInSnapshotAndResetOnBeginTick(t *testing.T) {
	store, err := state.Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.BeginTick(time.Now().UTC()))
	require.NoError(t, store.RecordProducerRows(state.ProducerMoviesByMovieChange, 3))

	assert.Equal(t, 3, store.Snapshot().ProducerRowCounts[state.ProducerMoviesByMovieChange])

	require.NoError(t, store.BeginTick(time.Now().UTC()))
	assert.Empty(t, store.Snapshot().ProducerRowCounts)
}

func TestBeginTick_RecordsStartTimeAndSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := state.Open(dir)
	require.NoError(t, err)

	startedAt := time.Date(2026, 7, 29, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.BeginTick(startedAt))
	assert.True(t, startedAt.Equal(store.LastFullSyncStartedAt()))

	reopened, err := state.Open(dir)
	require.NoError(t, err)
	assert.True(t, startedAt.Equal(reopened.LastFullSyncStartedAt()))
}

func TestSnapshot_ReflectsCurrentCursors(t *testing.T) {
	store, err := state.Open(t.TempDir())
	require.NoError(t, err)

	advanced := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetCursor(state.CursorLastGenreSyncedAt, advanced))

	snapshot := store.Snapshot()
	assert.True(t, advanced.Equal(snapshot.LastGenreSyncedAt))
}

func TestOpen_CorruptFileFallsBackToEmptyState(t *testing.T) {
	dir := t.TempDir()

	// Prime a valid state file, then clobber it with garbage.
	store, err := state.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.SetCursor(state.CursorLastMovieSyncedAt, time.Now().UTC()))

	statePath := dir + "/state.json"
	require.NoError(t, os.WriteFile(statePath, []byte("{not valid json"), 0o644))

	reopened, err := state.Open(dir)
	require.NoError(t, err)
	assert.Equal(t, state.DefaultDate, reopened.GetCursor(state.CursorLastMovieSyncedAt))
}

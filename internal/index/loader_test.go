package index_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnov/filmwork-etl/internal/index"
)

func TestLoader_FlushesAtBatchSize(t *testing.T) {
	var mu sync.Mutex
	var submittedBatches [][]index.Document

	submit := func(ctx context.Context, indexName string, docs []index.Document) error {
		mu.Lock()
		defer mu.Unlock()
		cp := make([]index.Document, len(docs))
		copy(cp, docs)
		submittedBatches = append(submittedBatches, cp)
		return nil
	}

	loader := index.NewLoader(submit, "movies", 2)

	require.NoError(t, loader.Push(context.Background(), fakeDocument{ID: "1"}))
	require.NoError(t, loader.Push(context.Background(), fakeDocument{ID: "2"}))
	require.NoError(t, loader.Push(context.Background(), fakeDocument{ID: "3"}))
	require.NoError(t, loader.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, submittedBatches, 2)
	assert.Len(t, submittedBatches[0], 2)
	assert.Len(t, submittedBatches[1], 1)
}

func TestLoader_CloseWithNoPendingDocsIsANoop(t *testing.T) {
	var calls int
	submit := func(ctx context.Context, indexName string, docs []index.Document) error {
		calls++
		return nil
	}

	loader := index.NewLoader(submit, "movies", 10)
	require.NoError(t, loader.Close(context.Background()))
	assert.Equal(t, 0, calls)
}

func TestLoader_CloseSurfacesSubmissionError(t *testing.T) {
	submit := func(ctx context.Context, indexName string, docs []index.Document) error {
		return assert.AnError
	}

	loader := index.NewLoader(submit, "movies", 1)
	require.NoError(t, loader.Push(context.Background(), fakeDocument{ID: "1"}))
	require.Error(t, loader.Close(context.Background()))
}

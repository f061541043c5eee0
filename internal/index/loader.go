package index

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// # Bulk Loader

// Loader accumulates documents into batches and submits them to the index
// service, optionally overlapping one in-flight submission with the
// accumulation of the next batch behind a bounded (depth-1) buffer — the
// errgroup-coordinated double buffer called for in the concurrency model.
type Loader struct {
	submit    func(ctx context.Context, indexName string, docs []Document) error
	indexName string
	batchSize int

	batch    []Document
	inFlight *errgroup.Group
}

// NewLoader constructs a Loader bound to indexName, flushing every
// batchSize documents (LOAD_TO_ES_BY).
func NewLoader(submit func(ctx context.Context, indexName string, docs []Document) error, indexName string, batchSize int) *Loader {
	return &Loader{
		submit:    submit,
		indexName: indexName,
		batchSize: batchSize,
	}
}

// Push appends doc to the current batch, flushing when it reaches
// batchSize. Non-blocking at the dataflow scale: the caller only waits if
// a previous batch's submission hasn't finished by the time this batch
// also fills up.
func (l *Loader) Push(ctx context.Context, doc Document) error {
	l.batch = append(l.batch, doc)
	if len(l.batch) >= l.batchSize {
		return l.flush(ctx)
	}
	return nil
}

// Close flushes any remaining partial batch and waits for every
// outstanding submission to complete.
func (l *Loader) Close(ctx context.Context) error {
	if err := l.flush(ctx); err != nil {
		return err
	}
	if l.inFlight != nil {
		return l.inFlight.Wait()
	}
	return nil
}

// flush hands the current batch off to a background submission goroutine,
// first waiting for any prior submission to finish — bounding the buffer
// to exactly one batch in flight plus the one being accumulated.
func (l *Loader) flush(ctx context.Context) error {
	if len(l.batch) == 0 {
		return nil
	}

	toSend := l.batch
	l.batch = nil

	if l.inFlight != nil {
		if err := l.inFlight.Wait(); err != nil {
			return err
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return l.submit(groupCtx, l.indexName, toSend)
	})
	l.inFlight = group

	return nil
}

package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dkrasnov/filmwork-etl/internal/retry"
)

// # Bulk Client

// BulkClient submits newline-delimited bulk upsert requests to the index
// service. The wire shape is pinned exactly by the index contract: an
// alternating metadata/document line stream, trailing newline,
// `application/x-ndjson`. This is built directly on net/http +
// encoding/json rather than an Elasticsearch client library — see
// DESIGN.md for why.
type BulkClient struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// NewBulkClient constructs a client bound to baseURL (ELASTIC_URL),
// retrying transient failures up to timeout (ES_CONNECT_TIMEOUT).
func NewBulkClient(baseURL string, timeout time.Duration) *BulkClient {
	return NewBulkClientWithHTTPClient(baseURL, &http.Client{Timeout: timeout}, timeout)
}

// NewBulkClientWithHTTPClient constructs a client around an
// already-configured [http.Client], letting tests substitute a fake
// transport instead of dialing a real index service.
func NewBulkClientWithHTTPClient(baseURL string, httpClient *http.Client, timeout time.Duration) *BulkClient {
	return &BulkClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
	}
}

type bulkHeader struct {
	Index bulkHeaderTarget `json:"index"`
}

type bulkHeaderTarget struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
}

// Bulk submits docs to indexName as a single bulk upsert, retrying
// transient network/5xx failures with exponential backoff up to the
// client's configured timeout. A per-item error reported in the bulk
// response is treated as fatal for the tick — it is never retried.
func (c *BulkClient) Bulk(ctx context.Context, indexName string, docs []Document) error {
	return retry.Do(ctx, c.timeout, func() error {
		return c.bulkOnce(ctx, indexName, docs)
	})
}

func (c *BulkClient) bulkOnce(ctx context.Context, indexName string, docs []Document) error {
	var body bytes.Buffer
	for _, doc := range docs {
		header, err := json.Marshal(bulkHeader{Index: bulkHeaderTarget{Index: indexName, ID: doc.DocumentID()}})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("index: failed to marshal bulk header: %w", err))
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("index: failed to marshal document %s: %w", doc.DocumentID(), err))
		}

		body.Write(header)
		body.WriteByte('\n')
		body.Write(docBytes)
		body.WriteByte('\n')
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_bulk", bytes.NewReader(body.Bytes()))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("index: failed to build bulk request: %w", err))
	}
	request.Header.Set("Content-Type", "application/x-ndjson")

	response, err := c.httpClient.Do(request)
	if err != nil {
		// Connection refused/timeout — transient, let the retry policy run.
		return err
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("index: failed to read bulk response: %w", err)
	}

	if response.StatusCode >= 500 {
		return fmt.Errorf("index: bulk request failed with status %d: %s", response.StatusCode, raw)
	}
	if response.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("index: bulk request rejected with status %d: %s", response.StatusCode, raw))
	}

	var parsed bulkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return backoff.Permanent(fmt.Errorf("index: failed to parse bulk response: %w", err))
	}
	if parsed.Errors {
		return backoff.Permanent(fmt.Errorf("index: bulk response reported per-item errors: %s", raw))
	}

	return nil
}

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

	"github.com/dkrasnov/filmwork-etl/internal/platform/apperr"
	"github.com/dkrasnov/filmwork-etl/internal/retry"
)

// # Index Provisioner

// Provisioner creates the indexes the loader writes to, idempotently: a
// second run against an already-provisioned cluster is expected and not an
// error.
type Provisioner struct {
	httpClient *http.Client
	baseURL    string
}

// NewProvisioner constructs a Provisioner bound to baseURL (ELASTIC_URL).
func NewProvisioner(baseURL string, connectTimeout time.Duration) *Provisioner {
	return NewProvisionerWithHTTPClient(baseURL, &http.Client{Timeout: connectTimeout})
}

// NewProvisionerWithHTTPClient constructs a Provisioner around an
// already-configured [http.Client], letting tests substitute a fake
// transport instead of dialing a real index service.
func NewProvisionerWithHTTPClient(baseURL string, httpClient *http.Client) *Provisioner {
	return &Provisioner{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Ensure creates indexName with the given mapping body if it doesn't
// already exist, retrying at a constant interval until startupTimeout
// elapses — the index service's own startup can lag behind the ETL's.
func (p *Provisioner) Ensure(ctx context.Context, startupTimeout time.Duration, indexName string, mapping json.RawMessage) error {
	return retry.Constant(ctx, 2*time.Second, startupTimeout, func() error {
		return p.ensureOnce(ctx, indexName, mapping)
	})
}

func (p *Provisioner) ensureOnce(ctx context.Context, indexName string, mapping json.RawMessage) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, p.baseURL+"/"+indexName, bytes.NewReader(mapping))
	if err != nil {
		return apperr.Configuration(fmt.Sprintf("index: failed to build create-index request for %s: %v", indexName, err))
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := p.httpClient.Do(request)
	if err != nil {
		// Cluster not up yet — keep retrying at the constant interval.
		return err
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("index: failed to read create-index response for %s: %w", indexName, err)
	}

	switch response.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusBadRequest:
		if strings.Contains(string(raw), "resource_already_exists_exception") {
			return nil
		}
		// A rejected mapping is a configuration error, not a transient
		// one — retrying an invalid mapping body will never succeed.
		return backoff.Permanent(fmt.Errorf("index: create-index %s rejected: %s", indexName, raw))
	default:
		return fmt.Errorf("index: create-index %s failed with status %d: %s", indexName, response.StatusCode, raw)
	}
}

// # Index Mappings
//
// Synthesized from the document shapes in package transform: one mapping
// per index, keyword fields for ids and nested person/genre entries so
// each can be queried by id or name independently of the flattened
// *_names arrays used for full-text search.

// MoviesMapping is the `movies` index mapping.
var MoviesMapping = json.RawMessage(`{
	"mappings": {
		"properties": {
			"id":              {"type": "keyword"},
			"imdb_rating":     {"type": "float"},
			"title":           {"type": "text", "analyzer": "standard", "fields": {"raw": {"type": "keyword"}}},
			"description":     {"type": "text", "analyzer": "standard", "fields": {"raw": {"type": "keyword"}}},
			"genre": {
				"type": "nested",
				"properties": {
					"id":   {"type": "keyword"},
					"name": {"type": "text"}
				}
			},
			"actors": {
				"type": "nested",
				"properties": {
					"id":   {"type": "keyword"},
					"name": {"type": "text"}
				}
			},
			"writers": {
				"type": "nested",
				"properties": {
					"id":   {"type": "keyword"},
					"name": {"type": "text"}
				}
			},
			"directors": {
				"type": "nested",
				"properties": {
					"id":   {"type": "keyword"},
					"name": {"type": "text"}
				}
			},
			"actors_names":    {"type": "text"},
			"writers_names":   {"type": "text"},
			"directors_names": {"type": "text"}
		}
	}
}`)

// GenresMapping is the `genres` index mapping.
var GenresMapping = json.RawMessage(`{
	"mappings": {
		"properties": {
			"id":          {"type": "keyword"},
			"name":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"description": {"type": "text"}
		}
	}
}`)

// PersonsMapping is the `persons` index mapping.
var PersonsMapping = json.RawMessage(`{
	"mappings": {
		"properties": {
			"id":        {"type": "keyword"},
			"full_name": {"type": "text", "fields": {"raw": {"type": "keyword"}}}
		}
	}
}`)

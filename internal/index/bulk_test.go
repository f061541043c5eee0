package index_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnov/filmwork-etl/internal/index"
)

type fakeDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (d fakeDocument) DocumentID() string { return d.ID }

// roundTripFunc lets a test supply the transport as a plain function,
// avoiding a real listening socket.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func newTestClient(t *testing.T, fn roundTripFunc) *index.BulkClient {
	t.Helper()
	return index.NewBulkClientWithHTTPClient("http://es.local:9200", &http.Client{Transport: fn}, 2*time.Second)
}

func TestBulk_SendsAlternatingHeaderDocumentLines(t *testing.T) {
	var capturedBody string
	var capturedPath string

	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedPath = req.URL.Path
		raw, _ := io.ReadAll(req.Body)
		capturedBody = string(raw)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(`{"errors":false}`)),
			Header:     make(http.Header),
		}, nil
	})

	docs := []index.Document{
		fakeDocument{ID: "1", Name: "Alpha"},
		fakeDocument{ID: "2", Name: "Beta"},
	}

	err := client.Bulk(context.Background(), "movies", docs)
	require.NoError(t, err)

	assert.Equal(t, "/_bulk", capturedPath)

	lines := strings.Split(strings.TrimRight(capturedBody, "\n"), "\n")
	require.Len(t, lines, 4)

	var header map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	assert.Equal(t, "movies", header["index"]["_index"])
	assert.Equal(t, "1", header["index"]["_id"])

	var doc fakeDocument
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "Alpha", doc.Name)
}

func TestBulk_PerItemErrorsAreFatal(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(`{"errors":true}`)),
			Header:     make(http.Header),
		}, nil
	})

	err := client.Bulk(context.Background(), "movies", []index.Document{fakeDocument{ID: "1"}})
	require.Error(t, err)
}

func TestBulk_ClientErrorIsFatalNotRetried(t *testing.T) {
	var calls int
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{
			StatusCode: http.StatusBadRequest,
			Body:       io.NopCloser(bytes.NewBufferString(`{"error":"mapper_parsing_exception"}`)),
			Header:     make(http.Header),
		}, nil
	})

	err := client.Bulk(context.Background(), "movies", []index.Document{fakeDocument{ID: "1"}})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

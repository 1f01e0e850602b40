// Package pinecone provides a client for the Pinecone vector index API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Vector is one embedding with its id and self-contained metadata. Metadata
// must always carry the originating document id and the raw chunk content so
// query results need no second lookup.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is one ranked result from a query.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Client defines the vector index operations used by the RAG pipeline.
type Client interface {
	// Upsert writes vectors, overwriting any with the same id.
	Upsert(ctx context.Context, vectors []Vector) error
	// Query returns the topK nearest vectors, optionally restricted by a
	// metadata filter.
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]Match, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithNamespace sets the index namespace.
func WithNamespace(ns string) Option {
	return func(c *httpClient) {
		c.namespace = ns
	}
}

type httpClient struct {
	apiKey    string
	indexHost string
	namespace string
	http      *http.Client
}

// NewClient creates a Pinecone client for a specific index host.
func NewClient(apiKey, indexHost string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		indexHost: indexHost,
		namespace: "events-rag",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type upsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	Namespace       string         `json:"namespace,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

func (c *httpClient) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	body, statusCode, err := c.post(ctx, "/vectors/upsert", upsertRequest{
		Vectors:   vectors,
		Namespace: c.namespace,
	})
	if err != nil {
		return eris.Wrap(err, "pinecone: upsert request failed")
	}
	if statusCode != http.StatusOK {
		return eris.Errorf("pinecone: upsert unexpected status %d: %s", statusCode, string(body))
	}
	return nil
}

func (c *httpClient) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}

	body, statusCode, err := c.post(ctx, "/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		Filter:          filter,
		Namespace:       c.namespace,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pinecone: query request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("pinecone: query unexpected status %d: %s", statusCode, string(body))
	}

	var result queryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "pinecone: unmarshal query response")
	}
	return result.Matches, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, eris.Wrap(err, "pinecone: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.indexHost+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, eris.Wrap(err, "pinecone: create request")
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "pinecone: read response body")
	}
	return body, resp.StatusCode, nil
}

// Package store persists scraped event records behind a driver-agnostic
// interface.
package store

import (
	"context"
	"strings"

	"github.com/sells-group/eventscope/internal/model"
)

// Store defines the persistence interface for event records. The pipeline
// treats it as a black box that returns a generated id synchronously with
// the record.
type Store interface {
	// CreateEvent persists an event and returns it with id and created_at
	// assigned.
	CreateEvent(ctx context.Context, event model.Event) (*model.Event, error)

	// GetEvent returns an event by id, or model.ErrNotFound.
	GetEvent(ctx context.Context, id string) (*model.Event, error)

	// ListEvents returns events matching the filter, newest first.
	ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error)

	// MarkEventIndexed records that the event's chunks have been upserted
	// into the vector index. Events left un-indexed after an ingest
	// failure can be retried without re-scraping.
	MarkEventIndexed(ctx context.Context, id string) error

	// SearchEvents returns events whose name or description contains any
	// of the query terms. This backs the keyword branch of hybrid
	// retrieval.
	SearchEvents(ctx context.Context, query string, limit int) ([]model.Event, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// searchTerms normalizes a free-text query into lowercase LIKE terms,
// dropping words too short to be selective.
func searchTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `.,!?"'()[]`)
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

package rag

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/internal/store"
)

// StoreSearcher backs the keyword branch of hybrid retrieval with the
// event store's text search.
type StoreSearcher struct {
	store store.Store
}

// NewStoreSearcher creates a keyword searcher over the event store.
func NewStoreSearcher(st store.Store) *StoreSearcher {
	return &StoreSearcher{store: st}
}

// Search matches events by name and description and scores each by the
// fraction of query terms its text contains.
func (s *StoreSearcher) Search(ctx context.Context, query string, limit int) ([]model.RetrievalResult, error) {
	events, err := s.store.SearchEvents(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "rag: keyword search")
	}

	terms := strings.Fields(strings.ToLower(query))
	results := make([]model.RetrievalResult, 0, len(events))
	for _, event := range events {
		content := extractEventText(&event)
		score := termCoverage(terms, content)
		results = append(results, model.RetrievalResult{
			Content:      content,
			KeywordScore: score,
			Score:        score,
			Metadata: map[string]any{
				"document_id": event.ID,
				"content":     content,
				"kind":        string(model.KindEvent),
				"platform":    event.Platform,
			},
		})
	}
	return results, nil
}

// termCoverage is the fraction of query terms present in the text.
func termCoverage(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	found := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

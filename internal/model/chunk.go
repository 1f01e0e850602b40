package model

// DocumentKind selects the chunking strategy during ingest.
type DocumentKind string

const (
	KindEvent     DocumentKind = "event"
	KindKnowledge DocumentKind = "knowledge"
)

// Document is the unit handed to the RAG pipeline for indexing. Events are
// flattened to Content by field concatenation; knowledge documents carry
// their raw content.
type Document struct {
	ID      string       `json:"id"`
	Kind    DocumentKind `json:"kind"`
	Content string       `json:"content"`
}

// Chunk is one retrieval-sized piece of a document. Chunks are never
// mutated after creation; their ids ("{documentID}-{index}") are
// deterministic so re-indexing overwrites in place.
type Chunk struct {
	DocumentID  string         `json:"document_id"`
	Index       int            `json:"index"`
	Content     string         `json:"content"`
	SectionType string         `json:"section_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RetrievalResult is one ranked candidate from the query path. Computed per
// query, never persisted. KeywordScore is 0 when hybrid search is disabled
// or the keyword branch found nothing.
type RetrievalResult struct {
	Content       string         `json:"content"`
	VectorScore   float64        `json:"vector_score"`
	KeywordScore  float64        `json:"keyword_score"`
	Score         float64        `json:"score"`
	RerankerScore *float64       `json:"reranker_score,omitempty"`
	Metadata      map[string]any `json:"metadata"`
}

// Answer is a grounded response with the metadata of every context item
// that was shown to the model, regardless of whether it cited them.
type Answer struct {
	Answer  string           `json:"answer"`
	Sources []map[string]any `json:"sources"`
}

package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/pkg/pinecone"
)

// Embedder turns texts into fixed-dimension vectors. Implemented by
// pkg/openai.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores and queries embeddings. Implemented by pkg/pinecone.
type VectorIndex interface {
	Upsert(ctx context.Context, vectors []pinecone.Vector) error
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]pinecone.Match, error)
}

// KeywordSearcher is the optional keyword branch of hybrid retrieval.
type KeywordSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.RetrievalResult, error)
}

// Reranker scores query/document relevance 0-1. Implemented by pkg/llm.
type Reranker interface {
	Score(ctx context.Context, query, document string) (float64, error)
}

// Generator synthesizes an answer from a prompt. Implemented by pkg/llm.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

const rerankConcurrency = 4

// Options tunes the pipeline.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	HybridSearch bool
}

// Pipeline is the ingest and query engine. Keyword, reranker and generator
// collaborators are optional; a nil keyword searcher degrades retrieval to
// vector-only and a nil reranker preserves merge order.
type Pipeline struct {
	chunker   *Chunker
	embedder  Embedder
	index     VectorIndex
	keyword   KeywordSearcher
	reranker  Reranker
	generator Generator
	topK      int
	hybrid    bool
}

// NewPipeline wires the pipeline.
func NewPipeline(embedder Embedder, index VectorIndex, keyword KeywordSearcher, reranker Reranker, generator Generator, opts Options) *Pipeline {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	return &Pipeline{
		chunker:   NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		embedder:  embedder,
		index:     index,
		keyword:   keyword,
		reranker:  reranker,
		generator: generator,
		topK:      topK,
		hybrid:    opts.HybridSearch,
	}
}

// IngestResult reports what ProcessDocument indexed.
type IngestResult struct {
	ChunkCount int    `json:"chunks"`
	Status     string `json:"status"`
}

// IngestEvent flattens an event to text and indexes it. Satisfies the
// queue worker's Ingester.
func (p *Pipeline) IngestEvent(ctx context.Context, event *model.Event) error {
	doc := model.Document{
		ID:      event.ID,
		Kind:    model.KindEvent,
		Content: extractEventText(event),
	}
	_, err := p.ProcessDocument(ctx, doc)
	return err
}

// ProcessDocument chunks, embeds and upserts one document. Vector ids are
// deterministic ("{documentID}-{index}") so re-processing overwrites the
// prior vectors in place.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc model.Document) (*IngestResult, error) {
	if doc.ID == "" {
		return nil, eris.Wrap(model.ErrValidation, "rag: document id is required")
	}

	chunks := p.chunker.ChunkDocument(doc)
	if len(chunks) == 0 {
		zap.L().Debug("rag: document produced no chunks", zap.String("document_id", doc.ID))
		return &IngestResult{ChunkCount: 0, Status: "indexed"}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, eris.Wrapf(err, "rag: embed document %s", doc.ID)
	}
	if len(embeddings) != len(chunks) {
		return nil, eris.Errorf("rag: embed returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	vectors := make([]pinecone.Vector, len(chunks))
	for i, chunk := range chunks {
		metadata := map[string]any{
			"content":     chunk.Content,
			"document_id": doc.ID,
			"index":       chunk.Index,
			"kind":        string(doc.Kind),
		}
		if chunk.SectionType != "" {
			metadata["section_type"] = chunk.SectionType
		}
		for k, v := range chunk.Metadata {
			metadata[k] = v
		}
		vectors[i] = pinecone.Vector{
			ID:       ChunkID(doc.ID, chunk.Index),
			Values:   embeddings[i],
			Metadata: metadata,
		}
	}

	if err := p.index.Upsert(ctx, vectors); err != nil {
		return nil, eris.Wrapf(err, "rag: upsert document %s", doc.ID)
	}

	zap.L().Info("rag: document indexed",
		zap.String("document_id", doc.ID),
		zap.String("kind", string(doc.Kind)),
		zap.Int("chunks", len(chunks)),
	)
	return &IngestResult{ChunkCount: len(chunks), Status: "indexed"}, nil
}

// extractEventText flattens an event's retrieval-relevant fields.
func extractEventText(event *model.Event) string {
	parts := []string{
		event.Name,
		event.Description,
		event.Location.Address,
		event.Host.Name,
		strings.Join(event.Tags, ", "),
	}
	var nonEmpty []string
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

// Retrieve runs vector and keyword search concurrently, merges by parent
// document, optionally reranks, and returns the top K candidates.
func (p *Pipeline) Retrieve(ctx context.Context, query string, filter map[string]any) ([]model.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, eris.Wrap(model.ErrValidation, "rag: query is required")
	}

	queryVecs, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, eris.Wrap(err, "rag: embed query")
	}
	if len(queryVecs) != 1 {
		return nil, eris.Errorf("rag: embed query returned %d vectors", len(queryVecs))
	}

	var vectorResults, keywordResults []model.RetrievalResult

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		matches, err := p.index.Query(gCtx, queryVecs[0], p.topK*2, filter)
		if err != nil {
			return eris.Wrap(err, "rag: vector search")
		}
		vectorResults = make([]model.RetrievalResult, len(matches))
		for i, m := range matches {
			content, _ := m.Metadata["content"].(string)
			vectorResults[i] = model.RetrievalResult{
				Content:     content,
				VectorScore: m.Score,
				Score:       m.Score,
				Metadata:    m.Metadata,
			}
		}
		return nil
	})
	if p.hybrid && p.keyword != nil {
		g.Go(func() error {
			results, err := p.keyword.Search(gCtx, query, p.topK*2)
			if err != nil {
				// The keyword branch is best-effort; vector results alone
				// still answer the query.
				zap.L().Warn("rag: keyword search failed", zap.Error(err))
				return nil
			}
			keywordResults = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeResults(vectorResults, keywordResults)

	if p.reranker != nil {
		p.rerank(ctx, query, merged)
		sort.SliceStable(merged, func(i, j int) bool {
			return rankScore(merged[i]) > rankScore(merged[j])
		})
	}

	if len(merged) > p.topK {
		merged = merged[:p.topK]
	}
	return merged, nil
}

// rerank scores every candidate independently with bounded concurrency. A
// candidate whose score call fails keeps its merge score and an unset
// RerankerScore; one flaky call must not fail the whole query.
func (p *Pipeline) rerank(ctx context.Context, query string, results []model.RetrievalResult) {
	var g errgroup.Group
	g.SetLimit(rerankConcurrency)
	for i := range results {
		g.Go(func() error {
			score, err := p.reranker.Score(ctx, query, results[i].Content)
			if err != nil {
				zap.L().Warn("rag: rerank failed, keeping merge score", zap.Error(err))
				return nil
			}
			results[i].RerankerScore = &score
			return nil
		})
	}
	_ = g.Wait()
}

// rankScore orders candidates after reranking. Unscored candidates fall
// back to their merge score.
func rankScore(r model.RetrievalResult) float64 {
	if r.RerankerScore != nil {
		return *r.RerankerScore
	}
	return r.Score
}

const answerSystemPrompt = `You are an AI assistant with access to a knowledge base about events. Use the provided context to answer questions accurately. If the context doesn't contain relevant information, say so. Always cite which events or documents you're referencing.`

// Generate answers the query from the given context and returns the
// metadata of every context item as sources.
func (p *Pipeline) Generate(ctx context.Context, query string, results []model.RetrievalResult) (*model.Answer, error) {
	if p.generator == nil {
		return nil, eris.New("rag: no generator configured")
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, r.Content)
	}
	fmt.Fprintf(&b, "Question: %s", query)

	answer, err := p.generator.Generate(ctx, answerSystemPrompt, b.String())
	if err != nil {
		return nil, eris.Wrap(err, "rag: generate answer")
	}

	sources := make([]map[string]any, len(results))
	for i, r := range results {
		sources[i] = r.Metadata
	}
	return &model.Answer{Answer: answer, Sources: sources}, nil
}

// Ask retrieves context for the query and generates a grounded answer.
func (p *Pipeline) Ask(ctx context.Context, query string, filter map[string]any) (*model.Answer, error) {
	results, err := p.Retrieve(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, query, results)
}

package llm

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const rerankSystemPrompt = "You are a relevance scorer. Score how relevant the document is to the query on a scale from 0 to 1. Reply with only the number."

// Reranker scores query/document relevance with a cheap model.
type Reranker struct {
	client Client
	model  string
}

// NewReranker creates a reranker using the given model.
func NewReranker(client Client, model string) *Reranker {
	return &Reranker{client: client, model: model}
}

// Score returns a 0-1 relevance judgment for the document against the
// query. Out-of-range model output is clamped.
func (r *Reranker) Score(ctx context.Context, query, document string) (float64, error) {
	temp := 0.0
	resp, err := r.client.CreateMessage(ctx, MessageRequest{
		Model:       r.model,
		MaxTokens:   8,
		System:      rerankSystemPrompt,
		Temperature: &temp,
		Messages: []Message{
			{Role: "user", Content: "Query: " + query + "\nDocument: " + document + "\nScore:"},
		},
	})
	if err != nil {
		return 0, eris.Wrap(err, "llm: rerank")
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(resp.Text), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "llm: parse rerank score %q", resp.Text)
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	resp.Usage.LogUsage(r.model, "rerank")
	return score, nil
}

// Generator produces grounded answers from retrieved context.
type Generator struct {
	client Client
	model  string
}

// NewGenerator creates an answer generator using the given model.
func NewGenerator(client Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

// Generate answers the prompt under the given system instructions.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	temp := 0.3
	resp, err := g.client.CreateMessage(ctx, MessageRequest{
		Model:       g.model,
		MaxTokens:   1024,
		System:      system,
		Temperature: &temp,
		Messages:    []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", eris.Wrap(err, "llm: generate")
	}

	resp.Usage.LogUsage(g.model, "generate")
	return resp.Text, nil
}

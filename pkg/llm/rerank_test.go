package llm

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns canned responses and records requests.
type fakeClient struct {
	responses []string
	err       error
	requests  []MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req MessageRequest) (*MessageResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	text := ""
	if len(f.responses) > 0 {
		text = f.responses[0]
		f.responses = f.responses[1:]
	}
	return &MessageResponse{Text: text, StopReason: "end_turn"}, nil
}

func TestReranker_Score(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{responses: []string{"0.85"}}
	r := NewReranker(fake, "claude-haiku-4-5-20251001")

	score, err := r.Score(context.Background(), "AI conferences", "Tech Meetup about AI")

	require.NoError(t, err)
	assert.InDelta(t, 0.85, score, 0.001)
	require.Len(t, fake.requests, 1)
	assert.Contains(t, fake.requests[0].Messages[0].Content, "Query: AI conferences")
	require.NotNil(t, fake.requests[0].Temperature)
	assert.Zero(t, *fake.requests[0].Temperature)
}

func TestReranker_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{responses: []string{"1.7"}}
	r := NewReranker(fake, "m")

	score, err := r.Score(context.Background(), "q", "d")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestReranker_NonNumericOutput(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{responses: []string{"very relevant"}}
	r := NewReranker(fake, "m")

	_, err := r.Score(context.Background(), "q", "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse rerank score")
}

func TestReranker_ClientError(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{err: eris.New("api down")}
	r := NewReranker(fake, "m")

	_, err := r.Score(context.Background(), "q", "d")
	require.Error(t, err)
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	fake := &fakeClient{responses: []string{"The meetup starts at 6pm. [1]"}}
	g := NewGenerator(fake, "claude-sonnet-4-5-20250929")

	answer, err := g.Generate(context.Background(), "answer only from context", "Context:\n[1] ...\n\nQuestion: when?")

	require.NoError(t, err)
	assert.Contains(t, answer, "6pm")
	require.Len(t, fake.requests, 1)
	assert.Equal(t, "answer only from context", fake.requests[0].System)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/internal/queue"
)

const testSecret = "test-secret"

func testToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

type fakeAsker struct {
	answer *model.Answer
	err    error
	query  string
}

func (f *fakeAsker) Ask(_ context.Context, query string, _ map[string]any) (*model.Answer, error) {
	f.query = query
	return f.answer, f.err
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthIsOpen(t *testing.T) {
	t.Parallel()

	router := newRouter(queue.NewMemory(3), nil, testSecret)

	rec := doRequest(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_RejectsMissingToken(t *testing.T) {
	t.Parallel()

	router := newRouter(queue.NewMemory(3), nil, testSecret)

	rec := doRequest(t, router, http.MethodPost, "/api/scrape", "", map[string]string{
		"url": "https://www.eventbrite.com/e/123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")
}

func TestRouter_RejectsTokenSignedWithWrongSecret(t *testing.T) {
	t.Parallel()

	router := newRouter(queue.NewMemory(3), nil, testSecret)
	token := testToken(t, "other-secret")

	rec := doRequest(t, router, http.MethodPost, "/api/scrape", token, map[string]string{
		"url": "https://www.eventbrite.com/e/123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestHandleScrape_EnqueuesJob(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemory(3)
	router := newRouter(broker, nil, testSecret)
	token := testToken(t, testSecret)

	rec := doRequest(t, router, http.MethodPost, "/api/scrape", token, map[string]string{
		"url": "https://www.eventbrite.com/e/123",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])

	job, err := broker.GetJob(context.Background(), resp["job_id"])
	require.NoError(t, err)
	assert.Equal(t, model.JobWaiting, job.State)
	assert.Equal(t, "https://www.eventbrite.com/e/123", job.Payload.URL)
	assert.Equal(t, "tester", job.Payload.RequesterID)
}

func TestHandleScrape_ValidationError(t *testing.T) {
	t.Parallel()

	router := newRouter(queue.NewMemory(3), nil, testSecret)
	token := testToken(t, testSecret)

	rec := doRequest(t, router, http.MethodPost, "/api/scrape", token, map[string]string{
		"url": "ftp://example.com/event",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported url scheme")
}

func TestHandleJobStatus(t *testing.T) {
	t.Parallel()

	broker := queue.NewMemory(3)
	router := newRouter(broker, nil, testSecret)
	token := testToken(t, testSecret)

	job, err := broker.Enqueue(context.Background(), model.JobPayload{
		URL: "https://www.meetup.com/go-nyc/events/1",
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodGet, "/api/scrape/"+job.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status model.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, model.JobWaiting, status.Status)
	assert.Nil(t, status.Result)
}

func TestHandleJobStatus_NotFound(t *testing.T) {
	t.Parallel()

	router := newRouter(queue.NewMemory(3), nil, testSecret)
	token := testToken(t, testSecret)

	rec := doRequest(t, router, http.MethodGet, "/api/scrape/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "job not found")
}

func TestHandleAsk(t *testing.T) {
	t.Parallel()

	pipeline := &fakeAsker{answer: &model.Answer{
		Answer:  "The summit starts September 15.",
		Sources: []map[string]any{{"document_id": "evt-1"}},
	}}
	router := newRouter(queue.NewMemory(3), pipeline, testSecret)
	token := testToken(t, testSecret)

	rec := doRequest(t, router, http.MethodPost, "/api/ask", token, map[string]any{
		"question": "When does the summit start?",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "When does the summit start?", pipeline.query)

	var answer model.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, "The summit starts September 15.", answer.Answer)
	require.Len(t, answer.Sources, 1)
}

func TestHandleAsk_EmptyQuestion(t *testing.T) {
	t.Parallel()

	router := newRouter(queue.NewMemory(3), &fakeAsker{}, testSecret)
	token := testToken(t, testSecret)

	rec := doRequest(t, router, http.MethodPost, "/api/ask", token, map[string]any{
		"question": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "question is required")
}

func TestHandleAsk_PipelineNotConfigured(t *testing.T) {
	t.Parallel()

	router := newRouter(queue.NewMemory(3), nil, testSecret)
	token := testToken(t, testSecret)

	rec := doRequest(t, router, http.MethodPost, "/api/ask", token, map[string]any{
		"question": "anything",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "retrieval is not configured")
}

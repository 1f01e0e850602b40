package queue

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/internal/scrape"
	"github.com/sells-group/eventscope/internal/store"
)

type fakeScraper struct {
	platform string
	event    *model.Event
	err      error
	calls    int
	mu       sync.Mutex
}

func (f *fakeScraper) Platform() string { return f.platform }

func (f *fakeScraper) CanHandle(url string) bool { return true }

func (f *fakeScraper) Scrape(context.Context, string) (*model.Event, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	event := *f.event
	return &event, nil
}

type fakeStore struct {
	mu      sync.Mutex
	events  map[string]*model.Event
	indexed map[string]bool
	nextID  int
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[string]*model.Event{}, indexed: map[string]bool{}}
}

func (f *fakeStore) CreateEvent(_ context.Context, event model.Event) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	event.ID = "evt-" + strconv.Itoa(f.nextID)
	f.events[event.ID] = &event
	return &event, nil
}

func (f *fakeStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) ListEvents(context.Context, model.EventFilter) ([]model.Event, error) {
	return nil, nil
}

func (f *fakeStore) MarkEventIndexed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return model.ErrNotFound
	}
	f.indexed[id] = true
	return nil
}

func (f *fakeStore) SearchEvents(context.Context, string, int) ([]model.Event, error) {
	return nil, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }

func (f *fakeStore) Close() error { return nil }

type fakeIngester struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeIngester) IngestEvent(context.Context, *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func sampleEvent() *model.Event {
	return &model.Event{
		Name:      "Go Meetup",
		StartDate: time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC),
		Platform:  "eventbrite",
		SourceURL: "https://www.eventbrite.com/e/123",
	}
}

// runPool starts the pool and enqueues one job, then waits until the job
// reaches a terminal state.
func runPool(t *testing.T, broker Broker, pool *WorkerPool) *model.Job {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.Run(ctx)
	}()

	job, err := broker.Enqueue(ctx, model.JobPayload{URL: "https://www.eventbrite.com/e/123"})
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("job did not reach a terminal state")
		case <-time.After(10 * time.Millisecond):
		}
		current, err := broker.GetJob(ctx, job.ID)
		require.NoError(t, err)
		if current.State.Terminal() {
			cancel()
			<-done
			return current
		}
	}
}

func TestWorkerPool_SuccessfulJob(t *testing.T) {
	t.Parallel()

	broker := NewMemory(3)
	st := newFakeStore()
	ingester := &fakeIngester{}
	registry := scrape.NewRegistry(&fakeScraper{platform: "eventbrite", event: sampleEvent()})
	pool := NewWorkerPool(broker, registry, st, ingester, WorkerOptions{Concurrency: 2})

	job := runPool(t, broker, pool)

	assert.Equal(t, model.JobCompleted, job.State)
	require.NotNil(t, job.Result)
	assert.Equal(t, "success", job.Result.Status)
	assert.NotEmpty(t, job.Result.EventID)
	assert.Equal(t, 1, ingester.calls)
	assert.True(t, st.indexed[job.Result.EventID])
}

func TestWorkerPool_NoScraperFailsPermanently(t *testing.T) {
	t.Parallel()

	broker := NewMemory(3)
	registry := scrape.NewRegistry() // nothing registered
	pool := NewWorkerPool(broker, registry, newFakeStore(), nil, WorkerOptions{Concurrency: 1})

	job := runPool(t, broker, pool)

	assert.Equal(t, model.JobFailed, job.State)
	assert.Equal(t, 1, job.Attempts)
	assert.Contains(t, job.Error, "no scraper")
}

func TestWorkerPool_ExtractionFailureNotRetried(t *testing.T) {
	t.Parallel()

	broker := NewMemory(3)
	scraper := &fakeScraper{
		platform: "eventbrite",
		err:      eris.Wrap(model.ErrExtraction, "event name"),
	}
	registry := scrape.NewRegistry(scraper)
	pool := NewWorkerPool(broker, registry, newFakeStore(), nil, WorkerOptions{Concurrency: 1})

	job := runPool(t, broker, pool)

	assert.Equal(t, model.JobFailed, job.State)
	assert.Equal(t, 1, job.Attempts)
}

func TestWorkerPool_TransientFailureRetriesJob(t *testing.T) {
	t.Parallel()

	broker := NewMemory(2)
	scraper := &fakeScraper{platform: "eventbrite", err: eris.New("connection reset by peer")}
	registry := scrape.NewRegistry(scraper)
	pool := NewWorkerPool(broker, registry, newFakeStore(), nil, WorkerOptions{
		Concurrency:      1,
		ScrapeRetries:    1,
		ScrapeRetryDelay: time.Millisecond,
	})

	job := runPool(t, broker, pool)

	assert.Equal(t, model.JobFailed, job.State)
	assert.Equal(t, 2, job.Attempts)
}

// flakyBroker fails a fixed number of Dequeue calls before delegating.
type flakyBroker struct {
	Broker
	mu       sync.Mutex
	failures int
}

func (f *flakyBroker) Dequeue(ctx context.Context) (*model.Job, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, eris.New("read tcp: connection reset by peer")
	}
	f.mu.Unlock()
	return f.Broker.Dequeue(ctx)
}

func TestWorkerPool_SurvivesDequeueFailure(t *testing.T) {
	t.Parallel()

	broker := &flakyBroker{Broker: NewMemory(3), failures: 2}
	st := newFakeStore()
	registry := scrape.NewRegistry(&fakeScraper{platform: "eventbrite", event: sampleEvent()})
	pool := NewWorkerPool(broker, registry, st, nil, WorkerOptions{Concurrency: 1})

	job := runPool(t, broker, pool)

	assert.Equal(t, model.JobCompleted, job.State)
	require.NotNil(t, job.Result)
	assert.Equal(t, "success", job.Result.Status)
}

func TestWorkerPool_IndexErrorDoesNotFailJob(t *testing.T) {
	t.Parallel()

	broker := NewMemory(3)
	st := newFakeStore()
	ingester := &fakeIngester{err: eris.New("pinecone unavailable")}
	registry := scrape.NewRegistry(&fakeScraper{platform: "eventbrite", event: sampleEvent()})
	pool := NewWorkerPool(broker, registry, st, ingester, WorkerOptions{Concurrency: 1})

	job := runPool(t, broker, pool)

	assert.Equal(t, model.JobCompleted, job.State)
	require.NotNil(t, job.Result)
	assert.False(t, st.indexed[job.Result.EventID])
}

func TestWorkerPool_IndexErrorFailsJobWhenConfigured(t *testing.T) {
	t.Parallel()

	broker := NewMemory(1)
	ingester := &fakeIngester{err: eris.New("pinecone unavailable")}
	registry := scrape.NewRegistry(&fakeScraper{platform: "eventbrite", event: sampleEvent()})
	pool := NewWorkerPool(broker, registry, newFakeStore(), ingester, WorkerOptions{
		Concurrency:      1,
		FailOnIndexError: true,
	})

	job := runPool(t, broker, pool)

	assert.Equal(t, model.JobFailed, job.State)
	assert.Contains(t, job.Error, "index")
}

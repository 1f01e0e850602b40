package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eventscope/internal/model"
)

func TestMemoryBroker_EnqueueValidation(t *testing.T) {
	t.Parallel()

	b := NewMemory(3)
	ctx := context.Background()

	tests := []struct {
		name string
		url  string
	}{
		{"empty url", ""},
		{"bad scheme", "ftp://example.com/event"},
		{"no host", "https://"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Enqueue(ctx, model.JobPayload{URL: tt.url})
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestMemoryBroker_Lifecycle(t *testing.T) {
	t.Parallel()

	b := NewMemory(3)
	ctx := context.Background()

	job, err := b.Enqueue(ctx, model.JobPayload{URL: "https://www.eventbrite.com/e/123"})
	require.NoError(t, err)
	assert.Equal(t, model.JobWaiting, job.State)
	assert.Zero(t, job.Attempts)

	active, err := b.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, active.ID)
	assert.Equal(t, model.JobActive, active.State)
	assert.Equal(t, 1, active.Attempts)

	err = b.Complete(ctx, job.ID, model.JobResult{EventID: "evt-1", Status: "success"})
	require.NoError(t, err)

	done, err := b.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, done.State)
	require.NotNil(t, done.Result)
	assert.Equal(t, "evt-1", done.Result.EventID)
}

func TestMemoryBroker_FailRequeuesUntilExhausted(t *testing.T) {
	t.Parallel()

	b := NewMemory(2)
	ctx := context.Background()

	job, err := b.Enqueue(ctx, model.JobPayload{URL: "https://www.meetup.com/x/events/1"})
	require.NoError(t, err)

	_, err = b.Dequeue(ctx)
	require.NoError(t, err)

	requeued, err := b.Fail(ctx, job.ID, "timeout", false)
	require.NoError(t, err)
	assert.True(t, requeued)

	again, err := b.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Attempts)

	requeued, err = b.Fail(ctx, job.ID, "timeout again", false)
	require.NoError(t, err)
	assert.False(t, requeued)

	failed, err := b.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, failed.State)
	assert.Equal(t, "timeout again", failed.Error)
}

func TestMemoryBroker_FailFinal(t *testing.T) {
	t.Parallel()

	b := NewMemory(5)
	ctx := context.Background()

	job, err := b.Enqueue(ctx, model.JobPayload{URL: "https://lu.ma/x"})
	require.NoError(t, err)
	_, err = b.Dequeue(ctx)
	require.NoError(t, err)

	requeued, err := b.Fail(ctx, job.ID, "no scraper registered", true)
	require.NoError(t, err)
	assert.False(t, requeued)

	failed, err := b.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, failed.State)
}

func TestMemoryBroker_GetJob_NotFound(t *testing.T) {
	t.Parallel()

	b := NewMemory(3)
	_, err := b.GetJob(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestMemoryBroker_DequeueHonorsContext(t *testing.T) {
	t.Parallel()

	b := NewMemory(3)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Dequeue(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/model"
)

const defaultMemoryCapacity = 256

// MemoryBroker is a channel-backed broker for single-process deployments
// and tests.
type MemoryBroker struct {
	mu          sync.Mutex
	jobs        map[string]*model.Job
	ready       chan string
	maxAttempts int
}

// NewMemory creates a MemoryBroker. Jobs that would exceed the queue
// capacity are rejected at enqueue time.
func NewMemory(maxAttempts int) *MemoryBroker {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &MemoryBroker{
		jobs:        make(map[string]*model.Job),
		ready:       make(chan string, defaultMemoryCapacity),
		maxAttempts: maxAttempts,
	}
}

func (b *MemoryBroker) Enqueue(_ context.Context, payload model.JobPayload) (*model.Job, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &model.Job{
		ID:          uuid.New().String(),
		Payload:     payload,
		State:       model.JobWaiting,
		MaxAttempts: b.maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	b.mu.Lock()
	b.jobs[job.ID] = job
	b.mu.Unlock()

	select {
	case b.ready <- job.ID:
	default:
		b.mu.Lock()
		delete(b.jobs, job.ID)
		b.mu.Unlock()
		return nil, eris.New("queue: at capacity")
	}

	snapshot := *job
	return &snapshot, nil
}

func (b *MemoryBroker) Dequeue(ctx context.Context) (*model.Job, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "queue: dequeue")
		case id, ok := <-b.ready:
			if !ok {
				return nil, eris.New("queue: closed")
			}
			b.mu.Lock()
			job, exists := b.jobs[id]
			if !exists {
				b.mu.Unlock()
				continue
			}
			job.State = model.JobActive
			job.Attempts++
			job.UpdatedAt = time.Now().UTC()
			snapshot := *job
			b.mu.Unlock()
			return &snapshot, nil
		}
	}
}

func (b *MemoryBroker) Complete(_ context.Context, jobID string, result model.JobResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, exists := b.jobs[jobID]
	if !exists {
		return eris.Wrapf(model.ErrNotFound, "job %s", jobID)
	}
	job.State = model.JobCompleted
	job.Result = &result
	job.Error = ""
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (b *MemoryBroker) Fail(_ context.Context, jobID string, errMsg string, final bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, exists := b.jobs[jobID]
	if !exists {
		return false, eris.Wrapf(model.ErrNotFound, "job %s", jobID)
	}

	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()

	if final || job.Attempts >= job.MaxAttempts {
		job.State = model.JobFailed
		return false, nil
	}

	job.State = model.JobWaiting
	select {
	case b.ready <- job.ID:
		return true, nil
	default:
		job.State = model.JobFailed
		return false, eris.New("queue: at capacity, job not requeued")
	}
}

func (b *MemoryBroker) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, exists := b.jobs[jobID]
	if !exists {
		return nil, eris.Wrapf(model.ErrNotFound, "job %s", jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

func (b *MemoryBroker) ListJobs(_ context.Context) ([]model.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	jobs := make([]model.Job, 0, len(b.jobs))
	for _, job := range b.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (b *MemoryBroker) Close() error {
	return nil
}

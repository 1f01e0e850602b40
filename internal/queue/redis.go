package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/model"
)

const (
	redisQueueKey  = "eventscope:queue"
	redisJobPrefix = "eventscope:job:"
	redisJobTTL    = 24 * time.Hour
	blpopTimeout   = 2 * time.Second
)

// RedisBroker stores jobs in Redis so multiple processes can share one
// queue. Job ids live on a list, job bodies as JSON values with a TTL.
type RedisBroker struct {
	client      *redis.Client
	maxAttempts int
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, maxAttempts int) (*RedisBroker, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrapf(err, "queue: redis ping %s", addr)
	}
	return &RedisBroker{client: client, maxAttempts: maxAttempts}, nil
}

func (b *RedisBroker) Enqueue(ctx context.Context, payload model.JobPayload) (*model.Job, error) {
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

	if err := b.saveJob(ctx, job); err != nil {
		return nil, err
	}
	if err := b.client.RPush(ctx, redisQueueKey, job.ID).Err(); err != nil {
		return nil, eris.Wrap(err, "queue: redis rpush")
	}
	return job, nil
}

func (b *RedisBroker) Dequeue(ctx context.Context) (*model.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "queue: dequeue")
		}

		res, err := b.client.BLPop(ctx, blpopTimeout, redisQueueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "queue: dequeue")
			}
			return nil, eris.Wrap(err, "queue: redis blpop")
		}

		// BLPop returns [key, value].
		jobID := res[1]
		job, err := b.loadJob(ctx, jobID)
		if err != nil {
			if model.IsNotFound(err) {
				// Job body expired while queued. Skip it.
				continue
			}
			return nil, err
		}

		job.State = model.JobActive
		job.Attempts++
		job.UpdatedAt = time.Now().UTC()
		if err := b.saveJob(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}
}

func (b *RedisBroker) Complete(ctx context.Context, jobID string, result model.JobResult) error {
	job, err := b.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.State = model.JobCompleted
	job.Result = &result
	job.Error = ""
	job.UpdatedAt = time.Now().UTC()
	return b.saveJob(ctx, job)
}

func (b *RedisBroker) Fail(ctx context.Context, jobID string, errMsg string, final bool) (bool, error) {
	job, err := b.loadJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()

	if final || job.Attempts >= job.MaxAttempts {
		job.State = model.JobFailed
		return false, b.saveJob(ctx, job)
	}

	job.State = model.JobWaiting
	if err := b.saveJob(ctx, job); err != nil {
		return false, err
	}
	if err := b.client.RPush(ctx, redisQueueKey, job.ID).Err(); err != nil {
		return false, eris.Wrap(err, "queue: redis requeue")
	}
	return true, nil
}

func (b *RedisBroker) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return b.loadJob(ctx, jobID)
}

func (b *RedisBroker) ListJobs(ctx context.Context) ([]model.Job, error) {
	var jobs []model.Job
	iter := b.client.Scan(ctx, 0, redisJobPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		jobID := strings.TrimPrefix(iter.Val(), redisJobPrefix)
		job, err := b.loadJob(ctx, jobID)
		if err != nil {
			if model.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "queue: redis scan jobs")
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func (b *RedisBroker) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return eris.Wrapf(err, "queue: marshal job %s", job.ID)
	}
	if err := b.client.Set(ctx, redisJobPrefix+job.ID, data, redisJobTTL).Err(); err != nil {
		return eris.Wrapf(err, "queue: redis set job %s", job.ID)
	}
	return nil
}

func (b *RedisBroker) loadJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := b.client.Get(ctx, redisJobPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, eris.Wrapf(model.ErrNotFound, "job %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "queue: redis get job %s", jobID)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, eris.Wrapf(err, "queue: unmarshal job %s", jobID)
	}
	return &job, nil
}

// Package queue provides the asynchronous scrape job queue. Jobs are
// accepted over HTTP, processed by a worker pool, and polled by id.
package queue

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/model"
)

// Broker stores jobs and hands them to workers. Implementations must be
// safe for concurrent use.
type Broker interface {
	// Enqueue validates the payload, creates a job in the waiting state
	// and makes it available to workers.
	Enqueue(ctx context.Context, payload model.JobPayload) (*model.Job, error)

	// Dequeue blocks until a job is available or the context is done.
	// The returned job is in the active state with Attempts incremented.
	Dequeue(ctx context.Context) (*model.Job, error)

	// Complete transitions a job to the completed state with its result.
	Complete(ctx context.Context, jobID string, result model.JobResult) error

	// Fail records a failed attempt. The job is requeued for another
	// attempt unless final is set or it has exhausted MaxAttempts, in
	// which case it transitions to the failed state with the error
	// message retained. Returns true when the job was requeued.
	Fail(ctx context.Context, jobID string, errMsg string, final bool) (bool, error)

	// GetJob returns the job by id, or model.ErrNotFound.
	GetJob(ctx context.Context, jobID string) (*model.Job, error)

	// ListJobs returns all known jobs, newest first.
	ListJobs(ctx context.Context) ([]model.Job, error)

	Close() error
}

// validatePayload rejects payloads the scrapers cannot act on before a job
// is ever created.
func validatePayload(payload model.JobPayload) error {
	if payload.URL == "" {
		return eris.Wrap(model.ErrValidation, "url is required")
	}
	u, err := url.Parse(payload.URL)
	if err != nil {
		return eris.Wrapf(model.ErrValidation, "invalid url %q", payload.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return eris.Wrapf(model.ErrValidation, "unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return eris.Wrapf(model.ErrValidation, "url %q has no host", payload.URL)
	}
	return nil
}

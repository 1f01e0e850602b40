package model

import "time"

// JobState represents the lifecycle state of a scrape job.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal returns true once a job can no longer change state.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobPayload is what a caller submits to the queue.
type JobPayload struct {
	URL         string `json:"url"`
	RequesterID string `json:"requester_id"`
}

// JobResult is recorded on successful completion.
type JobResult struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"` // "success"
}

// Job tracks one scrape request through the queue. The broker owns storage;
// only the worker executing the job mutates it, and it is terminal once
// completed or failed.
type Job struct {
	ID          string     `json:"id"`
	Payload     JobPayload `json:"payload"`
	State       JobState   `json:"state"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// JobStatus is the polling view returned to callers.
type JobStatus struct {
	Status JobState   `json:"status"`
	Result *JobResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// StatusView projects a job into its polling representation.
func (j *Job) StatusView() JobStatus {
	return JobStatus{
		Status: j.State,
		Result: j.Result,
		Error:  j.Error,
	}
}

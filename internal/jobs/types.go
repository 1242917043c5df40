// Package jobs decouples receiving a chat update from processing it.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-bot/internal/bot"
)

// JobStatus is the lifecycle state of an UpdateJob.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	// Failed jobs are not retried: replaying an update could post a
	// movement twice.
	JobStatusFailed JobStatus = "failed"
)

// ParseJobStatus validates a status name. The empty string is accepted and
// means any status.
func ParseJobStatus(s string) (JobStatus, error) {
	switch st := JobStatus(s); st {
	case "", JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// UpdateJob carries one chat update through the queue.
type UpdateJob struct {
	JobID       string     `json:"job_id"`
	Update      bot.Update `json:"update"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Done reports whether the job reached a final state.
func (j *UpdateJob) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Publisher enqueues updates.
type Publisher interface {
	// PublishUpdate assigns an id to job and enqueues it, blocking while the
	// queue is full.
	PublishUpdate(ctx context.Context, job *UpdateJob) error
	Close() error
}

// Consumer runs a handler over queued updates, one at a time.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop lets queued jobs finish and waits for them, bounded by ctx.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed.
type JobHandler func(ctx context.Context, job *UpdateJob) error

// JobStore keeps the state of recent jobs for inspection.
type JobStore interface {
	SaveJob(ctx context.Context, job *UpdateJob) error
	GetJob(ctx context.Context, jobID string) (*UpdateJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*UpdateJob, error)
}

// JobFilter narrows ListJobs. Zero values mean no restriction.
type JobFilter struct {
	Status JobStatus
	Limit  int
}

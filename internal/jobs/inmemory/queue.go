package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/google/uuid"
)

var (
	// ErrQueueClosed is returned once Stop or Close has been called.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull is returned when every slot is taken. Publishing never
	// blocks so the webhook can answer at once and let Telegram redeliver.
	ErrQueueFull = errors.New("queue is full")
)

// Queue is an in-memory implementation of job publisher and consumer.
// A single worker handles jobs in arrival order, so updates of the
// conversation are never processed concurrently. Failed jobs are recorded
// and dropped.
type Queue struct {
	jobChan chan *jobs.UpdateJob
	wg      sync.WaitGroup
	mu      sync.RWMutex
	store   jobs.JobStore
	started bool
	closed  bool
	now     func() time.Time
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishUpdate
// blocks. store may be nil.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return &Queue{
		jobChan: make(chan *jobs.UpdateJob, bufferSize),
		store:   store,
		now:     time.Now,
	}
}

// PublishUpdate implements the Publisher interface. It fails with
// ErrQueueFull instead of waiting for a free slot.
func (q *Queue) PublishUpdate(ctx context.Context, job *jobs.UpdateJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	job.Status = jobs.JobStatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	default:
		job.Status = jobs.JobStatusFailed
		job.Error = ErrQueueFull.Error()
		q.save(ctx, job)
		return ErrQueueFull
	}
}

// Start implements the Consumer interface. It starts the single worker; ctx
// is handed to every handler call.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.started {
		return fmt.Errorf("queue already started")
	}
	q.started = true

	q.wg.Add(1)
	go q.worker(ctx, handler)

	return nil
}

// worker processes jobs until the queue is closed and drained.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for job := range q.jobChan {
		q.processJob(ctx, job, handler)
	}
}

// processJob executes a single job. There are no retries: a redelivered
// update would show the user a second prompt.
func (q *Queue) processJob(ctx context.Context, job *jobs.UpdateJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Int("update_id", job.Update.ID).
		Logger()

	job.Status = jobs.JobStatusRunning
	startedAt := q.now()
	job.StartedAt = &startedAt
	q.save(ctx, job)

	err := runHandler(ctx, job, handler)

	completedAt := q.now()
	job.CompletedAt = &completedAt
	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Msg("Job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Debug().Dur("duration", completedAt.Sub(startedAt)).Msg("Job completed")
	}
	q.save(ctx, job)
}

func runHandler(ctx context.Context, job *jobs.UpdateJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.UpdateJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		lg := logger.FromContext(ctx)
		lg.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface. Queued jobs are still processed;
// Stop returns when the worker is done or ctx expires.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobChan)
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	return len(q.jobChan)
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)

package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finance-bot/internal/jobs"
)

// DefaultRetention is how many jobs a Store keeps when none is given.
const DefaultRetention = 200

// ErrJobNotFound is returned for unknown or evicted jobs.
var ErrJobNotFound = errors.New("job not found")

// Store keeps the most recently created jobs in memory. Jobs still waiting
// or running are never evicted. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*jobs.UpdateJob
	order     []string // creation order, oldest first
	retention int
}

// NewStore creates a store holding about retention jobs.
func NewStore(retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		jobs:      make(map[string]*jobs.UpdateJob),
		retention: retention,
	}
}

// SaveJob stores a copy of job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.UpdateJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; !exists {
		s.order = append(s.order, job.JobID)
	}
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	s.evictLocked()
	return nil
}

// evictLocked drops the oldest finished jobs beyond retention.
func (s *Store) evictLocked() {
	excess := len(s.order) - s.retention
	if excess <= 0 {
		return
	}

	kept := s.order[:0]
	for _, id := range s.order {
		if excess > 0 && s.jobs[id].Done() {
			delete(s.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// GetJob returns a copy of the job.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.UpdateJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob: %w: %s", ErrJobNotFound, jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns copies of the matching jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.UpdateJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.UpdateJob
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)

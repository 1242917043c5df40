package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-bot/internal/bot"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func updateJob(id int) *jobs.UpdateJob {
	return &jobs.UpdateJob{Update: bot.Update{ID: id, Message: &bot.Message{ChatID: 4242, Text: "hola"}}}
}

func TestQueue_ProcessesInOrderOneAtATime(t *testing.T) {
	q := NewQueue(10, nil)

	var (
		mu      sync.Mutex
		seen    []int
		running int
		overlap bool
	)
	handler := func(ctx context.Context, job *jobs.UpdateJob) error {
		mu.Lock()
		running++
		if running > 1 {
			overlap = true
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		seen = append(seen, job.Update.ID)
		running--
		mu.Unlock()
		return nil
	}

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.PublishUpdate(ctx, updateJob(i)))
	}
	require.NoError(t, q.Start(ctx, handler))
	require.NoError(t, q.Stop(ctx))

	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
	assert.False(t, overlap)
}

func TestQueue_RecordsJobState(t *testing.T) {
	store := NewStore(10)
	q := NewQueue(10, store)
	ctx := context.Background()

	ok, failing, panicking := updateJob(1), updateJob(2), updateJob(3)
	for _, j := range []*jobs.UpdateJob{ok, failing, panicking} {
		require.NoError(t, q.PublishUpdate(ctx, j))
		assert.NotEmpty(t, j.JobID)
	}

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.UpdateJob) error {
		switch job.Update.ID {
		case 2:
			return errors.New("boom")
		case 3:
			panic("kaboom")
		}
		return nil
	}))
	require.NoError(t, q.Stop(ctx))

	got, err := store.GetJob(ctx, ok.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, got.Status)
	assert.True(t, got.Done())
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)

	got, err = store.GetJob(ctx, failing.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	got, err = store.GetJob(ctx, panicking.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "kaboom")
	assert.True(t, got.Done())

	failed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.PublishUpdate(context.Background(), updateJob(1)), ErrQueueClosed)
	assert.Error(t, q.Start(context.Background(), func(context.Context, *jobs.UpdateJob) error { return nil }))
	assert.NoError(t, q.Stop(context.Background()))
}

func TestQueue_StartTwice(t *testing.T) {
	q := NewQueue(1, nil)
	noop := func(context.Context, *jobs.UpdateJob) error { return nil }

	require.NoError(t, q.Start(context.Background(), noop))
	assert.Error(t, q.Start(context.Background(), noop))
	require.NoError(t, q.Stop(context.Background()))
}

func TestQueue_PublishFailsFastWhenFull(t *testing.T) {
	store := NewStore(10)
	q := NewQueue(1, store)
	ctx := context.Background()

	require.NoError(t, q.PublishUpdate(ctx, updateJob(1)))
	assert.Equal(t, 1, q.Len())

	rejected := updateJob(2)
	done := make(chan error, 1)
	go func() { done <- q.PublishUpdate(ctx, rejected) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("PublishUpdate blocked on a full queue")
	}

	got, err := store.GetJob(ctx, rejected.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, 1, q.Len())
}

func TestStore_RetentionAndOrder(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()
	base := time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveJob(ctx, &jobs.UpdateJob{
			JobID:     id,
			Status:    jobs.JobStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	_, err := s.GetJob(ctx, "a")
	assert.ErrorIs(t, err, ErrJobNotFound)

	all, err := s.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].JobID)
	assert.Equal(t, "b", all[1].JobID)

	limited, err := s.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.Error(t, s.SaveJob(ctx, &jobs.UpdateJob{}))
}

func TestStore_KeepsUnfinishedJobs(t *testing.T) {
	s := NewStore(1)
	ctx := context.Background()

	require.NoError(t, s.SaveJob(ctx, &jobs.UpdateJob{JobID: "queued", Status: jobs.JobStatusPending}))
	require.NoError(t, s.SaveJob(ctx, &jobs.UpdateJob{JobID: "done", Status: jobs.JobStatusCompleted}))
	require.NoError(t, s.SaveJob(ctx, &jobs.UpdateJob{JobID: "next", Status: jobs.JobStatusPending}))

	_, err := s.GetJob(ctx, "queued")
	assert.NoError(t, err)
	_, err = s.GetJob(ctx, "next")
	assert.NoError(t, err)
	_, err = s.GetJob(ctx, "done")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"story-processor/internal/domain/entity"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := DefaultConfig()
	cfg.KeyPrefix = "test:"
	cfg.LeaseTimeout = 50 * time.Millisecond
	cfg.MaxAttempts = 3
	cfg.BaseRetryDelay = 0
	cfg.MaxRetryDelay = time.Second

	return New(client, cfg), mr
}

func sampleCandidates() []entity.CandidateArticle {
	return []entity.CandidateArticle{
		{ProjectID: 1, Source: entity.SourceRSSAlerts, URL: "https://example.org/a"},
	}
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, 1, entity.SourceRSSAlerts, sampleCandidates()))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, int64(1), job.ProjectID)
	require.Equal(t, entity.SourceRSSAlerts, job.Source)
	require.Equal(t, 0, job.Attempt)

	pending, err := q.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), pending)

	require.NoError(t, q.Ack(ctx, job))

	// no further job available
	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestQueue_EnqueueEmptyBatchIsNoop(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, 1, entity.SourceRSSAlerts, nil))

	pending, err := q.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), pending)
}

func TestQueue_DequeueEmpty(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestQueue_RetryRequeuesAfterDelay(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, 1, entity.SourceRSSAlerts, sampleCandidates()))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Retry(ctx, job))

	// immediately after Retry, the job sits in the delayed set, not pending
	pending, err := q.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), pending)

	mr.FastForward(time.Second)
	promoted, err := q.PromoteReadyDelayed(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, promoted)

	retried, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, retried.Attempt)
}

func TestQueue_RetryExhaustedGoesToDeadLetter(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, 1, entity.SourceRSSAlerts, sampleCandidates()))

	for i := 0; i < 3; i++ {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, q.Retry(ctx, job))
		mr.FastForward(time.Second)
		if i < 2 {
			_, err := q.PromoteReadyDelayed(ctx)
			require.NoError(t, err)
		}
	}

	dead, err := q.DeadLetterCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), dead)

	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestQueue_ReapExpiredLeases(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, 1, entity.SourceRSSAlerts, sampleCandidates()))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	// simulate the worker crashing: lease deadline passes without Ack/Retry
	mr.FastForward(time.Minute)

	reaped, err := q.ReapExpiredLeases(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, reaped)

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), job.ProjectID)
}

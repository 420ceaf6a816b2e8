package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"story-processor/internal/domain/entity"
)

// Job is the unit of work a worker consumes: one batch of candidates
// discovered for one project by one source adapter (: jobs of
// shape {project, article_batch}).
type Job struct {
	ID         string                   `json:"id"`
	ProjectID  int64                    `json:"project_id"`
	Source     entity.Source            `json:"source"`
	Candidates []entity.CandidateArticle `json:"candidates"`
	EnqueuedAt time.Time                `json:"enqueued_at"`
	Attempt    int                      `json:"attempt"`
}

// ErrEmpty is returned by Dequeue when no job is currently available.
var ErrEmpty = errors.New("queue: no job available")

// Queue is the Redis-backed Task Queue. Enqueue implements
// ingest.Enqueuer; Dequeue/Ack/Retry form the worker-side consumer
// contract.
type Queue struct {
	client *redis.Client
	cfg    Config
}

// New builds a Queue over an already-connected redis.Client.
func New(client *redis.Client, cfg Config) *Queue {
	return &Queue{client: client, cfg: cfg}
}

// NewFromURL parses cfg.RedisURL and connects, verifying the connection
// with a PING before returning.
func NewFromURL(ctx context.Context, cfg Config) (*Queue, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return New(client, cfg), nil
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) key(name string) string {
	return q.cfg.KeyPrefix + name
}

const (
	keyPending    = "queue:pending"
	keyProcessing = "queue:processing"
	keyDead       = "queue:dead"
	keyLeases     = "queue:leases"
	keyDelayed    = "queue:delayed"
)

// Enqueue implements ingest.Enqueuer: it pushes one job per call onto the
// pending list. Empty batches are a no-op.
func (q *Queue) Enqueue(ctx context.Context, projectID int64, source entity.Source, candidates []entity.CandidateArticle) error {
	if len(candidates) == 0 {
		return nil
	}

	job := Job{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		Source:     source,
		Candidates: candidates,
		EnqueuedAt: time.Now(),
		Attempt:    0,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	return q.client.LPush(ctx, q.key(keyPending), data).Err()
}

// Dequeue atomically moves one job from the pending list to the
// processing list (LMOVE LEFT RIGHT) and records a lease deadline, so a
// crashed worker's job can be reclaimed by ReapExpiredLeases. Returns
// ErrEmpty if the pending list is currently empty.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	data, err := q.client.LMove(ctx, q.key(keyPending), q.key(keyProcessing), "LEFT", "RIGHT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}

	deadline := time.Now().Add(q.cfg.LeaseTimeout)
	if err := q.client.ZAdd(ctx, q.key(keyLeases), redis.Z{Score: float64(deadline.Unix()), Member: data}).Err(); err != nil {
		return nil, fmt.Errorf("record lease: %w", err)
	}

	return &job, nil
}

// Ack removes a successfully processed job from the processing list and
// its lease, completing the at-least-once delivery cycle.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.ZRem(ctx, q.key(keyLeases), data).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return q.client.LRem(ctx, q.key(keyProcessing), 1, data).Err()
}

// Retry requeues job after a transient failure, incrementing its attempt
// counter. If the attempt count has reached cfg.MaxAttempts, the job is
// moved to the dead-letter list instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	original, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.ZRem(ctx, q.key(keyLeases), original).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	if err := q.client.LRem(ctx, q.key(keyProcessing), 1, original).Err(); err != nil {
		return fmt.Errorf("remove from processing: %w", err)
	}

	next := *job
	next.Attempt++

	if next.Attempt >= q.cfg.MaxAttempts {
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal dead job: %w", err)
		}
		return q.client.LPush(ctx, q.key(keyDead), data).Err()
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal retry job: %w", err)
	}
	readyAt := time.Now().Add(backoffDelay(q.cfg, next.Attempt))
	return q.client.ZAdd(ctx, q.key(keyDelayed), redis.Z{Score: float64(readyAt.Unix()), Member: data}).Err()
}

// Drop removes job from the processing list and its lease without
// requeueing it (non-retryable failure: ModelError, or a 4xx response
// other than 408/429 from the central server).
func (q *Queue) Drop(ctx context.Context, job *Job) error {
	return q.Ack(ctx, job)
}

// backoffDelay computes the exponential backoff for the given attempt
// number (1-indexed), capped at cfg.MaxRetryDelay.
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > cfg.MaxRetryDelay {
			return cfg.MaxRetryDelay
		}
	}
	return delay
}

// PromoteReadyDelayed moves delayed (backed-off) jobs whose ready time
// has passed back onto the pending list, so Dequeue can pick them up.
// Intended to be called periodically by the same reaper loop that calls
// ReapExpiredLeases.
func (q *Queue) PromoteReadyDelayed(ctx context.Context) (int, error) {
	return q.promoteReady(ctx, q.key(keyDelayed))
}

// ReapExpiredLeases scans the lease set for jobs whose deadline has
// passed — meaning the worker that dequeued them died before acking or
// retrying — and moves them back onto the pending list for redelivery.
// This is the crash-recovery half of the at-least-once guarantee.
func (q *Queue) ReapExpiredLeases(ctx context.Context) (int, error) {
	expired, err := q.client.ZRangeByScore(ctx, q.key(keyLeases), &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", time.Now().Unix()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan expired leases: %w", err)
	}

	reaped := 0
	for _, data := range expired {
		if err := q.client.ZRem(ctx, q.key(keyLeases), data).Err(); err != nil {
			return reaped, fmt.Errorf("release expired lease: %w", err)
		}
		if err := q.client.LRem(ctx, q.key(keyProcessing), 1, data).Err(); err != nil {
			return reaped, fmt.Errorf("remove from processing: %w", err)
		}
		if err := q.client.LPush(ctx, q.key(keyPending), data).Err(); err != nil {
			return reaped, fmt.Errorf("requeue reaped job: %w", err)
		}
		reaped++
	}
	return reaped, nil
}

// promoteReady moves every member of the given sorted set whose score
// (a unix timestamp) is at or before now onto the pending list.
func (q *Queue) promoteReady(ctx context.Context, setKey string) (int, error) {
	ready, err := q.client.ZRangeByScore(ctx, setKey, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", time.Now().Unix()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan ready jobs: %w", err)
	}

	promoted := 0
	for _, data := range ready {
		if err := q.client.ZRem(ctx, setKey, data).Err(); err != nil {
			return promoted, fmt.Errorf("remove promoted job: %w", err)
		}
		if err := q.client.LPush(ctx, q.key(keyPending), data).Err(); err != nil {
			return promoted, fmt.Errorf("requeue promoted job: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// DeadLetterCount reports how many jobs have exhausted their retries.
func (q *Queue) DeadLetterCount(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key(keyDead)).Result()
}

// PendingCount reports how many jobs are waiting to be dequeued.
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key(keyPending)).Result()
}

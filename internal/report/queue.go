// Package report pushes inspected candidates back to the private cache so
// future lookups skip the public service and the length probe. Submission is
// fire-and-forget: it never blocks or fails the resolution path.
package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"attbot/internal/candidate"
)

// Batch is one resolution's worth of candidates awaiting submission.
type Batch struct {
	Records []candidate.Record `json:"records"`
}

// Queue is the abstraction over submission backends. The in-memory backend
// serves a single process; the Redis backend keeps pending batches across
// restarts.
type Queue interface {
	Publish(ctx context.Context, b Batch) error
	Consume(ctx context.Context) (<-chan Batch, error)
}

// InMemory is a bounded channel-backed queue.
type InMemory struct {
	ch chan Batch
}

// NewInMemory creates an in-memory queue holding up to size batches.
func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 64
	}
	return &InMemory{ch: make(chan Batch, size)}
}

// Publish enqueues a batch, failing when the queue is full rather than
// blocking the caller.
func (q *InMemory) Publish(ctx context.Context, b Batch) error {
	select {
	case q.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns the receive side of the queue.
func (q *InMemory) Consume(ctx context.Context) (<-chan Batch, error) {
	out := make(chan Batch)
	go func() {
		defer close(out)
		for {
			select {
			case b := <-q.ch:
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue keeps batches in a Redis list using LPUSH/BRPOP semantics.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a Redis-backed queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "attbot:report"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a batch as JSON.
func (q *RedisQueue) Publish(ctx context.Context, b Batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, body).Err()
}

// Consume streams batches using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Batch, error) {
	out := make(chan Batch)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var b Batch
			if err := json.Unmarshal([]byte(res[1]), &b); err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

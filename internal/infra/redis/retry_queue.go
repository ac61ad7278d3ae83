package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const retryQueueKey = "wallet_retry_queue"

// RetryQueue schedules failed wallet provisions for background retry. It is
// a sorted set scored by next-attempt time; an entry survives process
// restarts so a failed provision is never forgotten.
type RetryQueue struct {
	rdb *redis.Client
}

// NewRetryQueue creates a retry queue on the shared client.
func NewRetryQueue(client *Client) *RetryQueue {
	return &RetryQueue{rdb: client.rdb}
}

// Enqueue schedules a user for immediate retry. Re-enqueueing an already
// scheduled user keeps the earlier attempt time.
func (q *RetryQueue) Enqueue(ctx context.Context, userID uuid.UUID) error {
	err := q.rdb.ZAddNX(ctx, retryQueueKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: userID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Requeue reschedules a user after the given delay, replacing any existing
// schedule.
func (q *RetryQueue) Requeue(ctx context.Context, userID uuid.UUID, delay time.Duration) error {
	err := q.rdb.ZAdd(ctx, retryQueueKey, redis.Z{
		Score:  float64(time.Now().Add(delay).Unix()),
		Member: userID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Due returns up to limit users whose attempt time has passed.
func (q *RetryQueue) Due(ctx context.Context, limit int64) ([]uuid.UUID, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	members, err := q.rdb.ZRangeByScore(ctx, retryQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore failed: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			// Garbage entry, drop it so it cannot wedge the queue.
			q.rdb.ZRem(ctx, retryQueueKey, m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Remove drops a user from the queue after a successful retry.
func (q *RetryQueue) Remove(ctx context.Context, userID uuid.UUID) error {
	if err := q.rdb.ZRem(ctx, retryQueueKey, userID.String()).Err(); err != nil {
		return fmt.Errorf("zrem failed: %w", err)
	}
	return nil
}

// Count returns the number of scheduled retries.
func (q *RetryQueue) Count(ctx context.Context) (int, error) {
	n, err := q.rdb.ZCard(ctx, retryQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(n), nil
}

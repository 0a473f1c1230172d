package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/codeforge/judge-harness/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const lockKeyPrefix = "harness:lock:"

type redisIdempotency struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store using SET NX.
func NewRedisIdempotencyStore(client *goredis.Client, ttl time.Duration) repository.IdempotencyStore {
	return &redisIdempotency{client: client, ttl: ttl}
}

// AcquireLock uses Redis SETNX to atomically acquire a processing lock.
func (r *redisIdempotency) AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error) {
	key := lockKeyPrefix + jobID.String()
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock refreshes the TTL so redeliveries within the window stay deduplicated.
func (r *redisIdempotency) ReleaseLock(ctx context.Context, jobID uuid.UUID) error {
	key := lockKeyPrefix + jobID.String()
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}

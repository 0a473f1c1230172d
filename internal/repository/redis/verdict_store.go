package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/repository"
)

var _ repository.VerdictStore = (*redisVerdictStore)(nil)

const verdictKeyPrefix = "harness:verdict:"

type redisVerdictStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisVerdictStore creates a verdict store whose entries expire after ttl.
func NewRedisVerdictStore(client *goredis.Client, ttl time.Duration) repository.VerdictStore {
	return &redisVerdictStore{client: client, ttl: ttl}
}

func (s *redisVerdictStore) Save(ctx context.Context, verdict *domain.Verdict) error {
	verdict.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("redis: encode verdict: %w", err)
	}
	if err := s.client.Set(ctx, verdictKeyPrefix+verdict.JobID.String(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save verdict: %w", err)
	}
	return nil
}

func (s *redisVerdictStore) Get(ctx context.Context, jobID uuid.UUID) (*domain.Verdict, error) {
	data, err := s.client.Get(ctx, verdictKeyPrefix+jobID.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get verdict: %w", err)
	}

	var verdict domain.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return nil, fmt.Errorf("redis: decode verdict: %w", err)
	}
	return &verdict, nil
}

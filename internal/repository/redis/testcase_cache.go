package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/repository"
)

var _ repository.TestCaseStore = (*cachedTestCaseStore)(nil)

const (
	problemKeyPrefix  = "harness:problem:"
	testCaseKeyPrefix = "harness:testcase:"
	problemCasesKey   = "harness:problem-cases:"
)

// cachedTestCaseStore is a read-through cache in front of another store.
// Cache errors are logged and fall through to the backing store.
type cachedTestCaseStore struct {
	client *goredis.Client
	next   repository.TestCaseStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedTestCaseStore wraps next with a Redis read-through cache.
func NewCachedTestCaseStore(client *goredis.Client, next repository.TestCaseStore, ttl time.Duration, logger *zap.Logger) repository.TestCaseStore {
	return &cachedTestCaseStore{client: client, next: next, ttl: ttl, logger: logger}
}

func (s *cachedTestCaseStore) GetProblem(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	return readThrough(ctx, s, problemKeyPrefix+id.String(), func() (*domain.Problem, error) {
		return s.next.GetProblem(ctx, id)
	})
}

func (s *cachedTestCaseStore) GetTestCase(ctx context.Context, id uuid.UUID) (*domain.TestCase, error) {
	return readThrough(ctx, s, testCaseKeyPrefix+id.String(), func() (*domain.TestCase, error) {
		return s.next.GetTestCase(ctx, id)
	})
}

func (s *cachedTestCaseStore) ListTestCases(ctx context.Context, problemID uuid.UUID) ([]*domain.TestCase, error) {
	cases, err := readThrough(ctx, s, problemCasesKey+problemID.String(), func() (*[]*domain.TestCase, error) {
		list, err := s.next.ListTestCases(ctx, problemID)
		if err != nil {
			return nil, err
		}
		return &list, nil
	})
	if err != nil {
		return nil, err
	}
	return *cases, nil
}

func readThrough[T any](ctx context.Context, s *cachedTestCaseStore, key string, load func() (*T, error)) (*T, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal(data, &v); jsonErr == nil {
			return &v, nil
		}
		s.logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, goredis.Nil):
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(v); jsonErr == nil {
		if setErr := s.client.Set(ctx, key, encoded, s.ttl).Err(); setErr != nil {
			s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return v, nil
}

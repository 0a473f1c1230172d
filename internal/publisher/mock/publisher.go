package mock

import (
	"context"
	"sync"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/publisher"
)

// Ensure MockPublisher implements publisher.Publisher.
var _ publisher.Publisher = (*MockPublisher)(nil)

// MockPublisher is a mock message publisher for testing.
type MockPublisher struct {
	mu        sync.Mutex
	Published []*domain.GradingJob
	PublishFn func(ctx context.Context, job *domain.GradingJob) error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, job *domain.GradingJob) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, job)
	}
	m.mu.Lock()
	m.Published = append(m.Published, job)
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/codeforge/judge-harness/internal/domain"
)

// TestCaseStore looks up problems and their test cases.
// Implementations must be safe for concurrent use.
type TestCaseStore interface {
	// GetProblem returns domain.ErrProblemNotFound for an unknown id.
	GetProblem(ctx context.Context, id uuid.UUID) (*domain.Problem, error)

	// GetTestCase returns domain.ErrTestCaseNotFound for an unknown id.
	GetTestCase(ctx context.Context, id uuid.UUID) (*domain.TestCase, error)

	// ListTestCases returns every test case of a problem in authoring order.
	ListTestCases(ctx context.Context, problemID uuid.UUID) ([]*domain.TestCase, error)
}

// VerdictStore holds grading verdicts while clients poll for them.
type VerdictStore interface {
	Save(ctx context.Context, verdict *domain.Verdict) error

	// Get returns domain.ErrJobNotFound for an unknown or expired job.
	Get(ctx context.Context, jobID uuid.UUID) (*domain.Verdict, error)
}

// IdempotencyStore defines the interface for distributed deduplication locks.
type IdempotencyStore interface {
	// AcquireLock attempts to acquire an exclusive processing lock for a job.
	// Returns true if the lock was acquired (first time), false if already locked (duplicate).
	AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error)

	// ReleaseLock releases the processing lock with a TTL for eventual cleanup.
	ReleaseLock(ctx context.Context, jobID uuid.UUID) error
}

// Judge runs one program remotely. Failures are reported inside the outcome.
type Judge interface {
	Submit(ctx context.Context, lang domain.Language, source string, limits domain.ExecutionLimits, expected string) domain.JudgeOutcome
}

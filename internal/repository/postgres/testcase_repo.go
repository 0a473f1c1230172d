package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/repository"
)

// Ensure pgTestCaseRepo implements repository.TestCaseStore.
var _ repository.TestCaseStore = (*pgTestCaseRepo)(nil)

type pgTestCaseRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresTestCaseStore creates a PostgreSQL-backed test case store.
func NewPostgresTestCaseStore(pool *pgxpool.Pool) repository.TestCaseStore {
	return &pgTestCaseRepo{pool: pool}
}

func (r *pgTestCaseRepo) GetProblem(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	query := `
		SELECT problem_id, title, time_limit_ms, memory_limit_mb
		FROM problems
		WHERE problem_id = $1`

	p := &domain.Problem{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Title, &p.TimeLimitMs, &p.MemoryLimitMB)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProblemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get problem: %w", err)
	}
	return p, nil
}

func (r *pgTestCaseRepo) GetTestCase(ctx context.Context, id uuid.UUID) (*domain.TestCase, error) {
	query := `
		SELECT test_case_id, problem_id, input, expected_output, is_hidden, COALESCE(explanation, '')
		FROM test_cases
		WHERE test_case_id = $1`

	tc := &domain.TestCase{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput, &tc.IsHidden, &tc.Explanation,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTestCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get test case: %w", err)
	}
	return tc, nil
}

func (r *pgTestCaseRepo) ListTestCases(ctx context.Context, problemID uuid.UUID) ([]*domain.TestCase, error) {
	query := `
		SELECT test_case_id, problem_id, input, expected_output, is_hidden, COALESCE(explanation, '')
		FROM test_cases
		WHERE problem_id = $1
		ORDER BY position, test_case_id`

	rows, err := r.pool.Query(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list test cases: %w", err)
	}

	cases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.TestCase, error) {
		tc := &domain.TestCase{}
		err := row.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput, &tc.IsHidden, &tc.Explanation)
		return tc, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan test cases: %w", err)
	}
	return cases, nil
}

package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/repository"
)

// ---- TestCaseStore mock ----

var _ repository.TestCaseStore = (*TestCaseStore)(nil)

// TestCaseStore is an in-memory test double for repository.TestCaseStore.
type TestCaseStore struct {
	mu sync.Mutex

	problems map[uuid.UUID]*domain.Problem
	cases    map[uuid.UUID]*domain.TestCase
	order    []uuid.UUID

	GetTestCaseFn func(ctx context.Context, id uuid.UUID) (*domain.TestCase, error)

	// Recorded calls for assertions.
	GetTestCaseCalls []uuid.UUID
}

// NewTestCaseStore creates an empty store.
func NewTestCaseStore() *TestCaseStore {
	return &TestCaseStore{
		problems: make(map[uuid.UUID]*domain.Problem),
		cases:    make(map[uuid.UUID]*domain.TestCase),
	}
}

// AddProblem registers a problem.
func (m *TestCaseStore) AddProblem(p *domain.Problem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.problems[p.ID] = p
}

// AddTestCase registers a test case, keeping insertion order for ListTestCases.
func (m *TestCaseStore) AddTestCase(tc *domain.TestCase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[tc.ID]; !ok {
		m.order = append(m.order, tc.ID)
	}
	m.cases[tc.ID] = tc
}

func (m *TestCaseStore) GetProblem(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, domain.ErrProblemNotFound
	}
	return p, nil
}

func (m *TestCaseStore) GetTestCase(ctx context.Context, id uuid.UUID) (*domain.TestCase, error) {
	m.mu.Lock()
	m.GetTestCaseCalls = append(m.GetTestCaseCalls, id)
	tc, ok := m.cases[id]
	m.mu.Unlock()
	if m.GetTestCaseFn != nil {
		return m.GetTestCaseFn(ctx, id)
	}
	if !ok {
		return nil, domain.ErrTestCaseNotFound
	}
	return tc, nil
}

func (m *TestCaseStore) ListTestCases(ctx context.Context, problemID uuid.UUID) ([]*domain.TestCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TestCase
	for _, id := range m.order {
		if tc := m.cases[id]; tc.ProblemID == problemID {
			out = append(out, tc)
		}
	}
	return out, nil
}

// ---- VerdictStore mock ----

var _ repository.VerdictStore = (*VerdictStore)(nil)

// VerdictStore is an in-memory test double for repository.VerdictStore.
type VerdictStore struct {
	mu       sync.Mutex
	verdicts map[uuid.UUID]domain.Verdict

	SaveFn func(ctx context.Context, v *domain.Verdict) error

	// Saved records every status written, in order.
	Saved []domain.Verdict
}

// NewVerdictStore creates an empty store.
func NewVerdictStore() *VerdictStore {
	return &VerdictStore{verdicts: make(map[uuid.UUID]domain.Verdict)}
}

func (m *VerdictStore) Save(ctx context.Context, v *domain.Verdict) error {
	if m.SaveFn != nil {
		if err := m.SaveFn(ctx, v); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts[v.JobID] = *v
	m.Saved = append(m.Saved, *v)
	return nil
}

func (m *VerdictStore) Get(ctx context.Context, jobID uuid.UUID) (*domain.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.verdicts[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &v, nil
}

// Statuses returns the sequence of statuses saved for a job.
func (m *VerdictStore) Statuses(jobID uuid.UUID) []domain.VerdictStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VerdictStatus
	for _, v := range m.Saved {
		if v.JobID == jobID {
			out = append(out, v.Status)
		}
	}
	return out
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
type IdempotencyStore struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, jobID uuid.UUID) (bool, error)
	ReleaseLockFn func(ctx context.Context, jobID uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, jobID)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, jobID)
	}
	return true, nil // default: lock acquired
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, jobID)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, jobID)
	}
	return nil
}

// ---- Judge mock ----

var _ repository.Judge = (*Judge)(nil)

// JudgeCall is one recorded submission.
type JudgeCall struct {
	Language domain.Language
	Source   string
	Limits   domain.ExecutionLimits
	Expected string
}

// Judge is a test double for repository.Judge.
type Judge struct {
	mu sync.Mutex

	SubmitFn func(ctx context.Context, call JudgeCall) domain.JudgeOutcome

	Calls []JudgeCall
}

func (m *Judge) Submit(ctx context.Context, lang domain.Language, source string, limits domain.ExecutionLimits, expected string) domain.JudgeOutcome {
	call := JudgeCall{Language: lang, Source: source, Limits: limits, Expected: expected}
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	m.mu.Unlock()
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, call)
	}
	return domain.JudgeOutcome{
		Stdout:         expected,
		Status:         domain.JudgeStatus{ID: domain.StatusAccepted, Description: "Accepted"},
		ExpectedOutput: expected,
		Passed:         true,
		Time:           0.01,
		MemoryKB:       3000,
	}
}

// CallCount returns the number of submissions seen.
func (m *Judge) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

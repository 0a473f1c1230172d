package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/metrics"
	"github.com/codeforge/judge-harness/internal/normalize"
	"github.com/codeforge/judge-harness/internal/pool"
	"github.com/codeforge/judge-harness/internal/repository"
	"github.com/codeforge/judge-harness/internal/synth"
)

const maxSourceCodeSize = 1 << 20 // 1 MB

// OutcomeFunc receives each outcome as soon as it settles, with its position
// in the request. Calls may come from several goroutines at once.
type OutcomeFunc func(index int, outcome domain.JudgeOutcome)

// RunBatchUsecase evaluates user code against a list of test cases.
type RunBatchUsecase struct {
	store    repository.TestCaseStore
	synth    *synth.Synthesizer
	judge    repository.Judge
	pool     *pool.WorkerPool
	defaults domain.ExecutionLimits
	logger   *zap.Logger
}

// NewRunBatchUsecase creates a new RunBatchUsecase.
func NewRunBatchUsecase(
	store repository.TestCaseStore,
	synthesizer *synth.Synthesizer,
	judge repository.Judge,
	workers *pool.WorkerPool,
	defaults domain.ExecutionLimits,
	logger *zap.Logger,
) *RunBatchUsecase {
	return &RunBatchUsecase{
		store:    store,
		synth:    synthesizer,
		judge:    judge,
		pool:     workers,
		defaults: defaults,
		logger:   logger,
	}
}

// submission is a validated request, fixed for every test case of a batch.
type submission struct {
	lang   domain.Language
	code   string
	fn     string
	limits domain.ExecutionLimits
}

// Execute runs the batch and returns one outcome per test case id, in order.
func (uc *RunBatchUsecase) Execute(ctx context.Context, req *domain.RunRequest) (*domain.BatchResult, error) {
	return uc.Stream(ctx, req, nil)
}

// Stream is Execute with a callback invoked as individual outcomes settle.
func (uc *RunBatchUsecase) Stream(ctx context.Context, req *domain.RunRequest, onOutcome OutcomeFunc) (*domain.BatchResult, error) {
	sub, err := uc.prepare(ctx, req.Language, req.Code, req.FunctionName, req.ProblemID)
	if err != nil {
		return nil, err
	}
	if len(req.TestCaseIDs) == 0 {
		return nil, domain.ErrNoTestCases
	}

	ids := req.TestCaseIDs
	load := func(ctx context.Context, i int) (*domain.TestCase, error) {
		return uc.store.GetTestCase(ctx, ids[i])
	}
	return uc.run(ctx, sub, ids, load, onOutcome), nil
}

// prepare performs the caller-level checks that may reject a whole batch.
func (uc *RunBatchUsecase) prepare(ctx context.Context, language, code, fn string, problemID uuid.UUID) (submission, error) {
	lang, err := domain.ParseLanguage(language)
	if err != nil {
		return submission{}, err
	}
	if len(code) > maxSourceCodeSize {
		return submission{}, domain.ErrPayloadTooLarge
	}
	if err := uc.synth.Validate(lang, code, fn); err != nil {
		return submission{}, err
	}

	limits := uc.defaults
	if problemID != uuid.Nil {
		problem, err := uc.store.GetProblem(ctx, problemID)
		if err != nil {
			return submission{}, err
		}
		limits = domain.LimitsForProblem(problem, uc.defaults)
	}
	return submission{lang: lang, code: code, fn: fn, limits: limits}, nil
}

// run fans the test cases out over the shared pool. Every slot is settled
// exactly once, by its job or by the pool aborting it.
func (uc *RunBatchUsecase) run(
	ctx context.Context,
	sub submission,
	ids []uuid.UUID,
	load func(ctx context.Context, i int) (*domain.TestCase, error),
	onOutcome OutcomeFunc,
) *domain.BatchResult {
	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	outcomes := make([]domain.JudgeOutcome, len(ids))
	settled := make([]sync.Once, len(ids))
	var wg sync.WaitGroup

	settle := func(i int, o domain.JudgeOutcome) {
		settled[i].Do(func() {
			defer wg.Done()
			o.TestCaseID = ids[i]
			outcomes[i] = o
			uc.record(sub.lang, o)
			if onOutcome != nil {
				uc.notify(onOutcome, i, o)
			}
		})
	}

	wg.Add(len(ids))
	for i := range ids {
		i := i
		job := &pool.Job{
			Ctx: ctx,
			Run: func(ctx context.Context) {
				settle(i, uc.evaluate(ctx, sub, ids[i], func(ctx context.Context) (*domain.TestCase, error) {
					return load(ctx, i)
				}))
			},
			Abort: func(err error) {
				settle(i, domain.FailureOutcome(ids[i], err))
			},
		}
		if err := uc.pool.Submit(ctx, job); err != nil {
			job.Abort(err)
		}
	}
	wg.Wait()

	result := &domain.BatchResult{Outcomes: outcomes}
	uc.logger.Info("Batch evaluated",
		zap.String("language", string(sub.lang)),
		zap.Int("test_cases", len(ids)),
		zap.Int("passed", result.Passed()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result
}

// notify hands one outcome to the caller's callback. A panicking callback is
// logged and does not affect the batch.
func (uc *RunBatchUsecase) notify(onOutcome OutcomeFunc, i int, o domain.JudgeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("Outcome callback panicked",
				zap.Int("index", i),
				zap.String("test_case_id", o.TestCaseID.String()),
				zap.Any("panic", r),
			)
		}
	}()
	onOutcome(i, o)
}

// evaluate runs one test case through load, normalize, synthesize and submit.
// Every failure becomes the outcome for that test case.
func (uc *RunBatchUsecase) evaluate(
	ctx context.Context,
	sub submission,
	id uuid.UUID,
	load func(ctx context.Context) (*domain.TestCase, error),
) domain.JudgeOutcome {
	tc, err := load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrTestCaseNotFound) {
			err = fmt.Errorf("load test case: %w", err)
		}
		uc.logger.Warn("Test case unavailable", zap.String("test_case_id", id.String()), zap.Error(err))
		return domain.FailureOutcome(id, err)
	}

	args, err := normalize.Normalize(tc.Input)
	if err != nil {
		uc.logger.Warn("Malformed test input",
			zap.String("test_case_id", id.String()),
			zap.Error(err),
		)
		return withExpected(domain.FailureOutcome(id, err), tc)
	}
	metrics.NormalizationsTotal.WithLabelValues(string(args.Strategy)).Inc()

	program, err := uc.synth.Synthesize(sub.lang, sub.code, sub.fn, args)
	if err != nil {
		uc.logger.Warn("Code generation failed",
			zap.String("test_case_id", id.String()),
			zap.Error(err),
		)
		return withExpected(domain.FailureOutcome(id, fmt.Errorf("Code generation error: %w", err)), tc)
	}

	outcome := uc.judge.Submit(ctx, sub.lang, program.Source, sub.limits, tc.ExpectedOutput)
	outcome.ExpectedOutput = tc.ExpectedOutput
	return outcome
}

func withExpected(o domain.JudgeOutcome, tc *domain.TestCase) domain.JudgeOutcome {
	o.ExpectedOutput = tc.ExpectedOutput
	return o
}

func (uc *RunBatchUsecase) record(lang domain.Language, o domain.JudgeOutcome) {
	metrics.OutcomesTotal.WithLabelValues(string(lang), o.Status.Description).Inc()
	if o.Failure != domain.FailureNone {
		metrics.FailuresTotal.WithLabelValues(string(o.Failure)).Inc()
	}
}

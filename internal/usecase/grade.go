package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
)

// GradeUsecase runs a submission against every test case of its problem and
// folds the outcomes into a verdict.
type GradeUsecase struct {
	batch  *RunBatchUsecase
	logger *zap.Logger
}

// NewGradeUsecase creates a new GradeUsecase.
func NewGradeUsecase(batch *RunBatchUsecase, logger *zap.Logger) *GradeUsecase {
	return &GradeUsecase{batch: batch, logger: logger}
}

// Execute grades req. The returned verdict has no job id or status; callers
// that track jobs fill those in.
func (uc *GradeUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.Verdict, error) {
	if req.ProblemID == uuid.Nil {
		return nil, domain.ErrProblemNotFound
	}
	sub, err := uc.batch.prepare(ctx, req.Language, req.Code, req.FunctionName, req.ProblemID)
	if err != nil {
		return nil, err
	}

	cases, err := uc.batch.store.ListTestCases(ctx, req.ProblemID)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, domain.ErrNoTestCases
	}

	ids := make([]uuid.UUID, len(cases))
	hidden := make(map[uuid.UUID]bool, len(cases))
	for i, tc := range cases {
		ids[i] = tc.ID
		hidden[tc.ID] = tc.IsHidden
	}
	load := func(ctx context.Context, i int) (*domain.TestCase, error) {
		return cases[i], nil
	}
	result := uc.batch.run(ctx, sub, ids, load, nil)

	verdict := &domain.Verdict{
		ProblemID:       req.ProblemID,
		TestCasesPassed: result.Passed(),
		TotalTestCases:  len(cases),
		MaxTime:         result.MaxTime(),
		MaxMemoryKB:     result.MaxMemoryKB(),
	}
	verdict.Accepted = verdict.TestCasesPassed == verdict.TotalTestCases

	if first := result.FirstFailure(); first != nil {
		failure := *first
		if hidden[failure.TestCaseID] {
			failure.ExpectedOutput = ""
		}
		verdict.FirstFailure = &failure
		verdict.Message = failureMessage(&failure)
	} else {
		verdict.Message = "Accepted"
	}

	uc.logger.Info("Submission graded",
		zap.String("problem_id", req.ProblemID.String()),
		zap.String("language", string(sub.lang)),
		zap.Int("passed", verdict.TestCasesPassed),
		zap.Int("total", verdict.TotalTestCases),
	)
	return verdict, nil
}

func failureMessage(o *domain.JudgeOutcome) string {
	if o.Message != "" {
		return o.Message
	}
	return o.Status.Description
}

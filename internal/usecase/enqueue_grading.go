package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/publisher"
	"github.com/codeforge/judge-harness/internal/repository"
)

// EnqueueGradingUsecase accepts a submission for asynchronous grading.
type EnqueueGradingUsecase struct {
	verdicts  repository.VerdictStore
	publisher publisher.Publisher
	logger    *zap.Logger
}

// NewEnqueueGradingUsecase creates a new EnqueueGradingUsecase.
func NewEnqueueGradingUsecase(verdicts repository.VerdictStore, pub publisher.Publisher, logger *zap.Logger) *EnqueueGradingUsecase {
	return &EnqueueGradingUsecase{
		verdicts:  verdicts,
		publisher: pub,
		logger:    logger,
	}
}

// Execute validates the submission, records it as queued, publishes it, and
// returns the job ID.
func (uc *EnqueueGradingUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	lang, err := domain.ParseLanguage(req.Language)
	if err != nil {
		return nil, err
	}
	if !lang.Synthesizable() {
		return nil, &domain.UnsupportedLanguageError{Language: req.Language}
	}
	if len(req.Code) > maxSourceCodeSize {
		return nil, domain.ErrPayloadTooLarge
	}
	if req.ProblemID == uuid.Nil {
		return nil, domain.ErrProblemNotFound
	}

	// Generate UUIDv7 (time-ordered)
	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	verdict := &domain.Verdict{
		JobID:     jobID,
		ProblemID: req.ProblemID,
		Status:    domain.VerdictQueued,
	}
	if err := uc.verdicts.Save(ctx, verdict); err != nil {
		uc.logger.Error("Failed to record queued verdict", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("save verdict: %w", err)
	}

	job := &domain.GradingJob{JobID: jobID, Request: *req}
	if err := uc.publisher.Publish(ctx, job); err != nil {
		uc.logger.Error("Failed to publish grading job", zap.Error(err), zap.String("job_id", jobID.String()))
		verdict.Status = domain.VerdictFailed
		verdict.Message = domain.ErrPublishFailed.Error()
		_ = uc.verdicts.Save(ctx, verdict)
		return nil, domain.ErrPublishFailed
	}

	uc.logger.Info("Grading job queued",
		zap.String("job_id", jobID.String()),
		zap.String("problem_id", req.ProblemID.String()),
		zap.String("language", string(lang)),
	)

	return &domain.SubmitResponse{
		JobID:  jobID,
		Status: domain.VerdictQueued,
	}, nil
}

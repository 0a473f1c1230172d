package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/repository"
)

// GetVerdictUsecase handles fetching grading status and results.
type GetVerdictUsecase struct {
	verdicts repository.VerdictStore
	logger   *zap.Logger
}

// NewGetVerdictUsecase creates a new GetVerdictUsecase.
func NewGetVerdictUsecase(verdicts repository.VerdictStore, logger *zap.Logger) *GetVerdictUsecase {
	return &GetVerdictUsecase{
		verdicts: verdicts,
		logger:   logger,
	}
}

// Execute retrieves a verdict by job ID.
func (uc *GetVerdictUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.Verdict, error) {
	verdict, err := uc.verdicts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			uc.logger.Debug("Verdict not found", zap.String("job_id", id.String()))
		}
		return nil, err
	}
	return verdict, nil
}

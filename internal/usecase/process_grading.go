package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/metrics"
	"github.com/codeforge/judge-harness/internal/repository"
)

// ProcessGradingUsecase grades one queued job on the worker.
type ProcessGradingUsecase struct {
	grade      *GradeUsecase
	verdicts   repository.VerdictStore
	idempotent repository.IdempotencyStore
	logger     *zap.Logger
}

// NewProcessGradingUsecase creates a new ProcessGradingUsecase.
func NewProcessGradingUsecase(
	grade *GradeUsecase,
	verdicts repository.VerdictStore,
	idempotent repository.IdempotencyStore,
	logger *zap.Logger,
) *ProcessGradingUsecase {
	return &ProcessGradingUsecase{
		grade:      grade,
		verdicts:   verdicts,
		idempotent: idempotent,
		logger:     logger,
	}
}

// Execute processes a single job: idempotency check → RUNNING → grade → store verdict.
// Returns (isDuplicate, error). A submission that cannot be graded is a
// FAILED verdict, not an error; errors mean the job should be retried.
func (uc *ProcessGradingUsecase) Execute(ctx context.Context, job *domain.GradingJob) (bool, error) {
	log := uc.logger.With(zap.String("job_id", job.JobID.String()))

	acquired, err := uc.idempotent.AcquireLock(ctx, job.JobID)
	if err != nil {
		log.Error("Failed to acquire idempotency lock", zap.Error(err))
		return false, err
	}
	if !acquired {
		log.Info("Duplicate message detected, skipping")
		return true, nil
	}

	running := &domain.Verdict{
		JobID:     job.JobID,
		ProblemID: job.Request.ProblemID,
		Status:    domain.VerdictRunning,
	}
	if err := uc.verdicts.Save(ctx, running); err != nil {
		log.Error("Failed to update verdict status", zap.Error(err))
		_ = uc.idempotent.ReleaseLock(ctx, job.JobID)
		return false, err
	}

	verdict, err := uc.grade.Execute(ctx, &job.Request)
	switch {
	case ctx.Err() != nil:
		// Outcomes of a cancelled batch are meaningless. The lock outlives
		// this attempt, so record the interruption for pollers.
		err = ctx.Err()
		ctx = context.WithoutCancel(ctx)
		verdict = &domain.Verdict{
			ProblemID: job.Request.ProblemID,
			Status:    domain.VerdictFailed,
			Message:   "grading interrupted: " + err.Error(),
		}
	case err == nil:
		verdict.Status = domain.VerdictCompleted
	default:
		log.Warn("Submission could not be graded", zap.Error(err))
		verdict = &domain.Verdict{
			ProblemID: job.Request.ProblemID,
			Status:    domain.VerdictFailed,
			Message:   err.Error(),
		}
	}
	verdict.JobID = job.JobID

	if err := uc.verdicts.Save(ctx, verdict); err != nil {
		log.Error("Failed to store verdict", zap.Error(err))
		return false, err
	}
	metrics.GradingJobsTotal.WithLabelValues(string(verdict.Status)).Inc()

	// Refresh the lock TTL so redeliveries stay deduplicated
	_ = uc.idempotent.ReleaseLock(ctx, job.JobID)

	log.Info("Grading job processed",
		zap.String("status", string(verdict.Status)),
		zap.Bool("accepted", verdict.Accepted),
		zap.Int("passed", verdict.TestCasesPassed),
		zap.Int("total", verdict.TotalTestCases),
	)
	return false, nil
}

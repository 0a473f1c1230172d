package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerdictStatus represents the lifecycle state of a grading job.
type VerdictStatus string

const (
	VerdictQueued    VerdictStatus = "QUEUED"
	VerdictRunning   VerdictStatus = "RUNNING"
	VerdictCompleted VerdictStatus = "COMPLETED"
	VerdictFailed    VerdictStatus = "FAILED"
)

// IsTerminal returns true if the status represents a final state.
func (s VerdictStatus) IsTerminal() bool {
	return s == VerdictCompleted || s == VerdictFailed
}

// Problem carries the per-problem execution budget.
type Problem struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	TimeLimitMs   int       `json:"time_limit_ms"`
	MemoryLimitMB int       `json:"memory_limit_mb"`
}

// TestCase is a stored test fixture. Input is raw and possibly malformed.
type TestCase struct {
	ID             uuid.UUID `json:"id"`
	ProblemID      uuid.UUID `json:"problem_id"`
	Input          string    `json:"input"`
	ExpectedOutput string    `json:"expected_output"`
	IsHidden       bool      `json:"is_hidden"`
	Explanation    string    `json:"explanation,omitempty"`
}

// RunRequest asks for user code to be evaluated against specific test cases.
type RunRequest struct {
	ProblemID    uuid.UUID   `json:"problem_id"`
	Language     string      `json:"language" binding:"required"`
	Code         string      `json:"code" binding:"required"`
	FunctionName string      `json:"function_name" binding:"required"`
	TestCaseIDs  []uuid.UUID `json:"test_case_ids" binding:"required"`
}

// SubmitRequest asks for user code to be graded against every test case of a problem.
type SubmitRequest struct {
	UserID       string    `json:"user_id,omitempty"`
	ProblemID    uuid.UUID `json:"problem_id" binding:"required"`
	Language     string    `json:"language" binding:"required"`
	Code         string    `json:"code" binding:"required"`
	FunctionName string    `json:"function_name" binding:"required"`
}

// SubmitResponse is returned after a grading job is accepted.
type SubmitResponse struct {
	JobID  uuid.UUID     `json:"job_id"`
	Status VerdictStatus `json:"status"`
}

// Verdict is the graded result of one submission.
type Verdict struct {
	JobID           uuid.UUID     `json:"job_id"`
	ProblemID       uuid.UUID     `json:"problem_id"`
	Status          VerdictStatus `json:"status"`
	Accepted        bool          `json:"accepted"`
	TestCasesPassed int           `json:"test_cases_passed"`
	TotalTestCases  int           `json:"total_test_cases"`
	MaxTime         float64       `json:"max_time"`
	MaxMemoryKB     int           `json:"max_memory"`
	Message         string        `json:"message,omitempty"`
	FirstFailure    *JudgeOutcome `json:"first_failure,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// GradingJob is the message published to the grading queue.
type GradingJob struct {
	JobID   uuid.UUID     `json:"job_id"`
	Request SubmitRequest `json:"request"`
}

// GradingMessage wraps a GradingJob with the broker's acknowledgement callbacks.
type GradingMessage struct {
	Job  *GradingJob
	Ack  func() error
	Nack func(requeue bool) error
}

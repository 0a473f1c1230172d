package domain

import (
	"errors"
	"math"

	"github.com/google/uuid"
)

// Judge0 status identifiers.
const (
	StatusInQueue             = 1
	StatusProcessing          = 2
	StatusAccepted            = 3
	StatusWrongAnswer         = 4
	StatusTimeLimitExceeded   = 5
	StatusCompilationError    = 6
	StatusRuntimeErrorSIGSEGV = 7
	StatusRuntimeErrorSIGXFSZ = 8
	StatusRuntimeErrorSIGFPE  = 9
	StatusRuntimeErrorSIGABRT = 10
	StatusRuntimeErrorNZEC    = 11
	StatusRuntimeErrorOther   = 12
	StatusInternalError       = 13
	StatusExecFormatError     = 14
)

// JudgeStatus mirrors the remote judge's status object.
type JudgeStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// InternalErrorStatus is used for every locally synthesized failure.
var InternalErrorStatus = JudgeStatus{ID: StatusInternalError, Description: "Internal Error"}

// IsRuntimeError reports whether the status is one of the judge's runtime error classes.
func (s JudgeStatus) IsRuntimeError() bool {
	return s.ID >= StatusRuntimeErrorSIGSEGV && s.ID <= StatusRuntimeErrorOther
}

// FailureClass tags where an unsuccessful outcome originated.
type FailureClass string

const (
	FailureNone           FailureClass = ""
	FailureMalformedInput FailureClass = "malformed_input"
	FailureSynthesis      FailureClass = "synthesis"
	FailureTransport      FailureClass = "transport"
	FailureJudgeProtocol  FailureClass = "judge_protocol"
	FailureParse          FailureClass = "parse"
	FailureCall           FailureClass = "call"
	FailureRuntime        FailureClass = "runtime"
	FailureCompile        FailureClass = "compile"
	FailureInternal       FailureClass = "internal"
)

// Describe returns a human-readable label for the failure class.
func (f FailureClass) Describe() string {
	switch f {
	case FailureMalformedInput:
		return "Malformed test input"
	case FailureSynthesis:
		return "Code generation error"
	case FailureTransport:
		return "Judge unreachable"
	case FailureJudgeProtocol:
		return "Judge protocol error"
	case FailureParse:
		return "Input parse failure"
	case FailureCall:
		return "Call signature mismatch"
	case FailureRuntime:
		return "Runtime exception"
	case FailureCompile:
		return "Compilation error"
	case FailureInternal:
		return "Internal error"
	}
	return ""
}

// ExecutionLimits are the sandbox budgets for one submission.
type ExecutionLimits struct {
	CPUTimeLimit  float64 `json:"cpu_time_limit"`  // seconds
	WallTimeLimit float64 `json:"wall_time_limit"` // seconds
	MemoryLimitKB int     `json:"memory_limit"`
	MaxFileSizeKB int     `json:"max_file_size"`
}

// LimitsForProblem derives submission limits from a problem's settings,
// applying the floors the judge accepts and keeping wall time above CPU time.
func LimitsForProblem(p *Problem, defaults ExecutionLimits) ExecutionLimits {
	limits := defaults
	if p == nil {
		return limits
	}
	if p.TimeLimitMs > 0 {
		limits.CPUTimeLimit = math.Max(0.1, float64(p.TimeLimitMs)/1000)
	}
	if p.MemoryLimitMB > 0 {
		limits.MemoryLimitKB = max(128, p.MemoryLimitMB) * 1024
	}
	limits.WallTimeLimit = math.Max(defaults.WallTimeLimit, 2*limits.CPUTimeLimit)
	return limits
}

// JudgeOutcome is the uniform per-test-case result, used both for real judge
// responses and for every local failure.
type JudgeOutcome struct {
	TestCaseID     uuid.UUID    `json:"test_case_id"`
	Stdout         string       `json:"stdout"`
	Stderr         string       `json:"stderr"`
	CompileOutput  string       `json:"compile_output"`
	Time           float64      `json:"time"`
	MemoryKB       int          `json:"memory"`
	Status         JudgeStatus  `json:"status"`
	Message        string       `json:"message"`
	ExpectedOutput string       `json:"expected_output,omitempty"`
	Passed         bool         `json:"passed"`
	Failure        FailureClass `json:"failure,omitempty"`
}

// FailureOutcome converts any error into an Internal Error outcome.
func FailureOutcome(testCaseID uuid.UUID, err error) JudgeOutcome {
	msg := err.Error()
	return JudgeOutcome{
		TestCaseID: testCaseID,
		Stderr:     msg,
		Status:     InternalErrorStatus,
		Message:    msg,
		Failure:    ClassifyError(err),
	}
}

// ClassifyError maps the error taxonomy onto failure classes.
func ClassifyError(err error) FailureClass {
	var (
		malformed *MalformedInputError
		argCount  *ArgumentCountError
		transport *TransportError
		protocol  *JudgeProtocolError
		language  *UnsupportedLanguageError
	)
	switch {
	case errors.As(err, &malformed):
		return FailureMalformedInput
	case errors.As(err, &argCount), errors.As(err, &language),
		errors.Is(err, ErrEmptySourceCode), errors.Is(err, ErrInvalidFunctionName):
		return FailureSynthesis
	case errors.As(err, &transport):
		return FailureTransport
	case errors.As(err, &protocol):
		return FailureJudgeProtocol
	}
	return FailureInternal
}

// BatchResult holds one outcome per requested test case, in request order.
type BatchResult struct {
	Outcomes []JudgeOutcome `json:"outcomes"`
}

// Passed counts outcomes that matched their expected output.
func (b *BatchResult) Passed() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Passed {
			n++
		}
	}
	return n
}

// MaxTime returns the slowest execution time in seconds.
func (b *BatchResult) MaxTime() float64 {
	var t float64
	for _, o := range b.Outcomes {
		t = math.Max(t, o.Time)
	}
	return t
}

// MaxMemoryKB returns the peak memory across outcomes.
func (b *BatchResult) MaxMemoryKB() int {
	m := 0
	for _, o := range b.Outcomes {
		m = max(m, o.MemoryKB)
	}
	return m
}

// FirstFailure returns the first outcome in request order that did not pass.
func (b *BatchResult) FirstFailure() *JudgeOutcome {
	for i := range b.Outcomes {
		if !b.Outcomes[i].Passed {
			return &b.Outcomes[i]
		}
	}
	return nil
}

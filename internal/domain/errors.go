package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrJobNotFound is returned when a grading job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnsupportedLanguage is returned when a language is outside the enumeration
	// or has no harness backend.
	ErrUnsupportedLanguage = errors.New("invalid or unsupported language")

	// ErrPayloadTooLarge is returned when the source code exceeds the size limit.
	ErrPayloadTooLarge = errors.New("source code payload exceeds maximum size (1MB)")

	// ErrEmptySourceCode is returned when source code is empty.
	ErrEmptySourceCode = errors.New("source code cannot be empty")

	// ErrInvalidFunctionName is returned when the entry function is missing or not an identifier.
	ErrInvalidFunctionName = errors.New("function name must be a non-empty identifier")

	// ErrNoTestCases is returned when a run or submission has nothing to evaluate.
	ErrNoTestCases = errors.New("no test cases to evaluate")

	// ErrProblemNotFound is returned when the referenced problem does not exist.
	ErrProblemNotFound = errors.New("problem not found")

	// ErrTestCaseNotFound is returned by stores for an unknown test case id.
	ErrTestCaseNotFound = errors.New("test case not found")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job to message queue")

	// ErrPoolClosed is returned when work is submitted to a stopped worker pool.
	ErrPoolClosed = errors.New("worker pool is closed")
)

// MalformedInputError reports a raw test input that no repair strategy could parse.
type MalformedInputError struct {
	Input string
	Err   error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed test input %q: %v", clip(e.Input, 120), e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// ArgumentCountError reports a call whose arity exceeds what drivers support.
type ArgumentCountError struct {
	Count int
	Max   int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("too many arguments: %d (maximum %d)", e.Count, e.Max)
}

// UnsupportedLanguageError names a language that cannot be synthesized or judged.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language: %s", e.Language)
}

func (e *UnsupportedLanguageError) Unwrap() error { return ErrUnsupportedLanguage }

// TransportError wraps a network-level failure talking to the remote judge.
type TransportError struct {
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("Request timeout: %v", e.Err)
	}
	return fmt.Sprintf("Network error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// JudgeProtocolError reports a non-2xx or undecodable judge response.
type JudgeProtocolError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *JudgeProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Malformed judge response: %v", e.Err)
	}
	return fmt.Sprintf("Judge API error [%d]: %s", e.StatusCode, clip(e.Body, 512))
}

func (e *JudgeProtocolError) Unwrap() error { return e.Err }

// clip shortens s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

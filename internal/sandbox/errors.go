package sandbox

import (
	"errors"
	"fmt"
)

// Sentinel errors for typed error checking.
var (
	ErrEmptyCode           = errors.New("code cannot be empty")
	ErrNotImplemented      = errors.New("please implement your solution")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrSubmissionFailed    = errors.New("submission failed")
	ErrRetrievalFailed     = errors.New("result retrieval failed")
	ErrTimeout             = errors.New("code execution timeout - please try again")
	ErrBackendUnavailable  = errors.New("execution backend unavailable")
	ErrSuspiciousCode      = errors.New("submission rejected by code screening")
)

// SyntaxError is a static structural defect found before execution.
// Message carries the user-facing text, e.g. "SyntaxError: Mismatched braces".
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string {
	return e.Message
}

// ExecutionError wraps errors with execution context.
type ExecutionError struct {
	RunID string
	Op    string // The operation that failed
	Err   error
}

func (e *ExecutionError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("run %s: %s: %s", e.RunID, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is an exhausted poll budget.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsProviderError returns true if the remote sandbox rejected a call.
func IsProviderError(err error) bool {
	return errors.Is(err, ErrSubmissionFailed) || errors.Is(err, ErrRetrievalFailed)
}

// IsInputError returns true if the error was raised by a pre-execution check.
func IsInputError(err error) bool {
	var se *SyntaxError
	return errors.Is(err, ErrEmptyCode) ||
		errors.Is(err, ErrNotImplemented) ||
		errors.Is(err, ErrUnsupportedLanguage) ||
		errors.Is(err, ErrSuspiciousCode) ||
		errors.As(err, &se)
}

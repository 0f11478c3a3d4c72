package run

import (
	"context"
	"errors"

	"practice-judge/internal/runtime"
	"practice-judge/internal/sandbox"
)

// LoginRequired is what the editor shows an anonymous caller.
const LoginRequired = "You must be logged in to run code"

var (
	ErrUnauthorized  = errors.New("not logged in")
	ErrRunInProgress = errors.New("a run is already in progress for this editor")
	ErrTooManyCases  = errors.New("too many test cases")
)

// ErrorKind groups run failures by what the user can do about them.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindAuthorization ErrorKind = "authorization"
	KindInput         ErrorKind = "input"
	KindProvider      ErrorKind = "provider"
	KindTimeout       ErrorKind = "timeout"
	KindHarness       ErrorKind = "harness"
	KindBusy          ErrorKind = "busy"
	KindCancelled     ErrorKind = "cancelled"
	KindInternal      ErrorKind = "internal"
)

// Classify maps an error from any pipeline stage onto an ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.Is(err, ErrRunInProgress):
		return KindBusy
	case errors.Is(err, ErrTooManyCases), sandbox.IsInputError(err):
		return KindInput
	case sandbox.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case sandbox.IsProviderError(err), errors.Is(err, sandbox.ErrBackendUnavailable):
		return KindProvider
	case errors.Is(err, runtime.ErrCallableNotFound):
		return KindHarness
	}

	var ee *sandbox.ExecutionError
	if errors.As(err, &ee) && ee.Op == "harness" {
		return KindHarness
	}
	return KindInternal
}

// Retryable reports whether running the same code again may succeed.
func (k ErrorKind) Retryable() bool {
	return k == KindTimeout || k == KindProvider || k == KindBusy
}

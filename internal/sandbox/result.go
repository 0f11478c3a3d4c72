package sandbox

import "context"

// Judge0 status ids. 1 and 2 are pending, everything else is final.
const (
	StatusInQueue             = 1
	StatusProcessing          = 2
	StatusAccepted            = 3
	StatusWrongAnswer         = 4
	StatusTimeLimitExceeded   = 5
	StatusCompilationError    = 6
	StatusRuntimeErrorSIGSEGV = 7
	StatusRuntimeErrorNZEC    = 11
	StatusInternalError       = 13
	StatusExecFormatError     = 14
)

// Status is the provider's verdict for one execution.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Pending reports whether the provider is still working on the submission.
func (s Status) Pending() bool {
	return s.ID == StatusInQueue || s.ID == StatusProcessing
}

// Accepted reports whether the program ran to completion without a failure verdict.
func (s Status) Accepted() bool {
	return s.ID == StatusAccepted
}

// ExecutionResult is the result of one program execution, shaped like the
// provider's retrieval response. Nullable provider fields are pointers.
type ExecutionResult struct {
	Token         string  `json:"token,omitempty"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Status        Status  `json:"status"`
	Time          *string `json:"time"`   // seconds, e.g. "0.042"
	Memory        *int    `json:"memory"` // KB
}

// StdoutText returns stdout or "" when the provider sent null.
func (r *ExecutionResult) StdoutText() string {
	if r == nil || r.Stdout == nil {
		return ""
	}
	return *r.Stdout
}

// StderrText returns stderr or "" when the provider sent null.
func (r *ExecutionResult) StderrText() string {
	if r == nil || r.Stderr == nil {
		return ""
	}
	return *r.Stderr
}

// CompileOutputText returns the compiler output or "".
func (r *ExecutionResult) CompileOutputText() string {
	if r == nil || r.CompileOutput == nil {
		return ""
	}
	return *r.CompileOutput
}

// ExecutionRequest is one program run. For the sandboxed backend Code is
// function-style user code and Input is a test-case input string; the
// harness turns both into a whole program. Raw requests skip the harness:
// Code is submitted as is and Input becomes stdin.
type ExecutionRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Input    string `json:"input,omitempty"`
	Raw      bool   `json:"raw,omitempty"`
}

// Backend executes one test case worth of user code. Implementations are
// selected at construction time and hold no per-run state.
type Backend interface {
	// Name identifies the backend in logs and reports ("simulated", "judge0").
	Name() string

	// Precheck runs the static checks that must pass before any execution.
	Precheck(code, language string) error

	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TestCase is one example input and the output a correct solution prints.
type TestCase struct {
	Input          string `json:"input" yaml:"input"`
	ExpectedOutput string `json:"expected_output" yaml:"expected_output"`
}

// Submission is the code under test plus the cases to run it against.
type Submission struct {
	Code      string     `json:"code"`
	Language  string     `json:"language"`
	TestCases []TestCase `json:"test_cases"`
}

// CaseStatus classifies one test case outcome.
type CaseStatus string

const (
	CasePassed CaseStatus = "passed"
	CaseFailed CaseStatus = "failed" // ran, output mismatched
	CaseError  CaseStatus = "error"  // did not produce a comparable output
)

// CaseResult is the verdict for one test case. Index is 1-based.
type CaseResult struct {
	Index    int        `json:"index"`
	Input    string     `json:"input"`
	Status   CaseStatus `json:"status"`
	Passed   bool       `json:"passed"`
	Actual   string     `json:"actual"`
	Expected string     `json:"expected"`
	Runtime  string     `json:"runtime,omitempty"` // "72ms"
	Memory   string     `json:"memory,omitempty"`  // "41.8MB"
	Error    string     `json:"error,omitempty"`

	// Provider verdict, when execution reached the provider.
	StatusID          int    `json:"status_id,omitempty"`
	StatusDescription string `json:"status_description,omitempty"`

	runtimeMs  float64
	memoryMB   float64
	hasRuntime bool
	hasMemory  bool
}

// Outcome is the verdict for a whole submission. It is never mutated
// after Validate returns.
type Outcome struct {
	Backend      string        `json:"backend"`
	Language     string        `json:"language"`
	Cases        []CaseResult  `json:"cases"`
	Passed       int           `json:"passed"`
	Total        int           `json:"total"`
	AllPassed    bool          `json:"all_passed"`
	FirstFailure int           `json:"first_failure,omitempty"` // 1-based, 0 when none
	AvgRuntimeMs float64       `json:"avg_runtime_ms,omitempty"`
	AvgMemoryMB  float64       `json:"avg_memory_mb,omitempty"`
	Duration     time.Duration `json:"-"`
	Report       string        `json:"report"`
}

// Failure returns the first case that did not pass, or nil.
func (o *Outcome) Failure() *CaseResult {
	if o.FirstFailure == 0 {
		return nil
	}
	return &o.Cases[o.FirstFailure-1]
}

// AvgRuntime renders the average runtime, or "" when no case reported one.
func (o *Outcome) AvgRuntime() string {
	if o.AvgRuntimeMs == 0 {
		return ""
	}
	return formatRuntime(o.AvgRuntimeMs)
}

// AvgMemory renders the average memory, or "" when no case reported one.
func (o *Outcome) AvgMemory() string {
	if o.AvgMemoryMB == 0 {
		return ""
	}
	return formatMemory(o.AvgMemoryMB)
}

// aggregate fills the derived fields from Cases.
func (o *Outcome) aggregate() {
	o.Total = len(o.Cases)
	o.Passed = 0
	o.FirstFailure = 0

	var runtimeSum, memorySum float64
	var runtimeN, memoryN int
	for i, c := range o.Cases {
		if c.Passed {
			o.Passed++
		} else if o.FirstFailure == 0 {
			o.FirstFailure = i + 1
		}
		if c.hasRuntime {
			runtimeSum += c.runtimeMs
			runtimeN++
		}
		if c.hasMemory {
			memorySum += c.memoryMB
			memoryN++
		}
	}

	o.AllPassed = o.Total > 0 && o.Passed == o.Total
	o.AvgRuntimeMs, o.AvgMemoryMB = 0, 0
	if runtimeN > 0 {
		o.AvgRuntimeMs = runtimeSum / float64(runtimeN)
	}
	if memoryN > 0 {
		o.AvgMemoryMB = memorySum / float64(memoryN)
	}
}

// ExtractOutput returns the last non-empty line of stdout, trimmed.
// Drivers print exactly one result line, but user code may print before it.
func ExtractOutput(stdout string) string {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// ParseRuntime converts a reported runtime to milliseconds. It accepts
// "72ms", "1.5s", and bare provider seconds such as "0.072".
func ParseRuntime(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	scale := 1000.0
	switch {
	case strings.HasSuffix(s, "ms"):
		s, scale = strings.TrimSuffix(s, "ms"), 1
	case strings.HasSuffix(s, "s"):
		s = strings.TrimSuffix(s, "s")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v * scale, true
}

func formatRuntime(ms float64) string {
	return fmt.Sprintf("%dms", int(ms+0.5))
}

func formatMemory(mb float64) string {
	return fmt.Sprintf("%.1fMB", mb)
}

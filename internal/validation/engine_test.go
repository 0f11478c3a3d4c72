package validation

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"practice-judge/internal/runtime"
	"practice-judge/internal/sandbox"
)

const twoSumJS = `function twoSum(nums, target) {
    const seen = new Map();
    for (let i = 0; i < nums.length; i++) {
        if (seen.has(target - nums[i])) return [seen.get(target - nums[i]), i];
        seen.set(nums[i], i);
    }
    return [];
}`

// scriptedBackend returns canned results keyed by test-case input.
type scriptedBackend struct {
	precheckErr error
	results     map[string]*sandbox.ExecutionResult
	errs        map[string]error
	calls       []string
	last        sandbox.ExecutionRequest
}

func (s *scriptedBackend) Name() string { return "scripted" }

func (s *scriptedBackend) Precheck(code, language string) error { return s.precheckErr }

func (s *scriptedBackend) Execute(ctx context.Context, req sandbox.ExecutionRequest) (*sandbox.ExecutionResult, error) {
	s.calls = append(s.calls, req.Input)
	s.last = req
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.errs[req.Input]; ok {
		return nil, err
	}
	if r, ok := s.results[req.Input]; ok {
		return r, nil
	}
	return accepted("[0,1]\n", "0.072", 42803), nil
}

func accepted(stdout, time string, memoryKB int) *sandbox.ExecutionResult {
	return &sandbox.ExecutionResult{
		Stdout: &stdout,
		Status: sandbox.Status{ID: sandbox.StatusAccepted, Description: "Accepted"},
		Time:   &time,
		Memory: &memoryKB,
	}
}

func newSimEngine() *Engine {
	sim := sandbox.NewSimulator(runtime.NewRegistry(), rand.New(rand.NewSource(7)))
	return NewEngine(sim, nil)
}

func TestValidate_SimulatorRoundTrip(t *testing.T) {
	out, err := newSimEngine().Validate(context.Background(), Submission{
		Code:     twoSumJS,
		Language: "javascript",
		TestCases: []TestCase{
			{Input: "nums = [2,7,11,15], target = 9", ExpectedOutput: "[0,1]"},
		},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !out.AllPassed || out.Passed != 1 || out.Total != 1 {
		t.Errorf("outcome = %+v", out)
	}
	if out.Backend != "simulated" {
		t.Errorf("backend = %q", out.Backend)
	}
}

func TestValidate_CorrectTwoSum(t *testing.T) {
	out, err := newSimEngine().Validate(context.Background(), Submission{
		Code:      twoSumJS,
		Language:  "javascript",
		TestCases: []TestCase{{Input: "nums = [3,2,4], target = 6", ExpectedOutput: "[1,2]"}},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	c := out.Cases[0]
	if !c.Passed || c.Actual != "[1,2]" || c.Status != CasePassed {
		t.Errorf("case = %+v, want passed with actual [1,2]", c)
	}
	if !out.AllPassed {
		t.Error("AllPassed = false")
	}
	if out.FirstFailure != 0 || out.Failure() != nil {
		t.Errorf("FirstFailure = %d, want 0", out.FirstFailure)
	}
}

func TestValidate_BuggyImplementationReportsFirstFailure(t *testing.T) {
	backend := &scriptedBackend{results: map[string]*sandbox.ExecutionResult{
		"nums=[3,3], target=6": accepted("[]\n", "0.050", 40000),
	}}
	out, err := NewEngine(backend, nil).Validate(context.Background(), Submission{
		Code:     "function twoSum(nums, target) { return []; }",
		Language: "javascript",
		TestCases: []TestCase{
			{Input: "nums = [2,7,11,15], target = 9", ExpectedOutput: "[0,1]"},
			{Input: "nums=[3,3], target=6", ExpectedOutput: "[0,1]"},
			{Input: "nums = [1,2], target = 3", ExpectedOutput: "[0,1]"},
		},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	c := out.Cases[1]
	if c.Passed || c.Actual != "[]" || c.Expected != "[0,1]" || c.Status != CaseFailed {
		t.Errorf("case 2 = %+v, want failed mismatch", c)
	}
	if out.AllPassed {
		t.Error("AllPassed = true")
	}
	if out.FirstFailure != 2 {
		t.Errorf("FirstFailure = %d, want 2", out.FirstFailure)
	}
	if out.Passed != 2 {
		t.Errorf("Passed = %d, want 2", out.Passed)
	}
	if !strings.Contains(out.Report, `Test Case 2 Failed: Expected "[0,1]" but got "[]"`) {
		t.Errorf("report missing failure line:\n%s", out.Report)
	}
}

func TestValidate_CasesInOrderAndCountPreserved(t *testing.T) {
	backend := &scriptedBackend{}
	inputs := []string{"a", "b", "c", "d"}
	var cases []TestCase
	for _, in := range inputs {
		cases = append(cases, TestCase{Input: in, ExpectedOutput: "[0,1]"})
	}

	var streamed []int
	out, err := NewEngine(backend, nil).ValidateStream(context.Background(),
		Submission{Code: "x", Language: "python", TestCases: cases},
		func(c CaseResult) { streamed = append(streamed, c.Index) })
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Cases) != len(cases) {
		t.Fatalf("len(Cases) = %d, want %d", len(out.Cases), len(cases))
	}
	for i, c := range out.Cases {
		if c.Index != i+1 || c.Input != inputs[i] {
			t.Errorf("case %d = %+v", i, c)
		}
	}
	if strings.Join(backend.calls, "") != "abcd" {
		t.Errorf("execution order = %v", backend.calls)
	}
	if len(streamed) != 4 || streamed[3] != 4 {
		t.Errorf("streamed = %v", streamed)
	}
}

func TestValidate_NonAcceptedStatusIsError(t *testing.T) {
	stderr := "Exception in thread main"
	backend := &scriptedBackend{results: map[string]*sandbox.ExecutionResult{
		"in": {
			Stdout: nil,
			Stderr: &stderr,
			Status: sandbox.Status{ID: sandbox.StatusRuntimeErrorNZEC, Description: "Runtime Error (NZEC)"},
		},
	}}
	out, err := NewEngine(backend, nil).Validate(context.Background(), Submission{
		Code: "x", Language: "java",
		TestCases: []TestCase{{Input: "in", ExpectedOutput: ""}},
	})
	if err != nil {
		t.Fatal(err)
	}
	c := out.Cases[0]
	// Empty stdout equals empty expected, but a failed status must never compare.
	if c.Passed || c.Status != CaseError {
		t.Errorf("case = %+v, want error outcome", c)
	}
	if c.Error != "Runtime Error (NZEC): Exception in thread main" {
		t.Errorf("Error = %q", c.Error)
	}
	if c.StatusID != sandbox.StatusRuntimeErrorNZEC {
		t.Errorf("StatusID = %d", c.StatusID)
	}
}

func TestValidate_HarnessRuntimeErrorLine(t *testing.T) {
	backend := &scriptedBackend{results: map[string]*sandbox.ExecutionResult{
		"in": accepted("Runtime Error: nums is not iterable\n", "0.01", 1000),
	}}
	out, err := NewEngine(backend, nil).Validate(context.Background(), Submission{
		Code: "x", Language: "javascript",
		TestCases: []TestCase{{Input: "in", ExpectedOutput: "[0,1]"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c := out.Cases[0]; c.Status != CaseError || c.Error != "Runtime Error: nums is not iterable" {
		t.Errorf("case = %+v", c)
	}
}

func TestValidate_ExecutionErrorsAttributedToCase(t *testing.T) {
	backend := &scriptedBackend{errs: map[string]error{
		"slow":   sandbox.ErrTimeout,
		"broken": &sandbox.ExecutionError{Op: "harness", Err: runtime.ErrCallableNotFound},
	}}
	out, err := NewEngine(backend, nil).Validate(context.Background(), Submission{
		Code: "x", Language: "python",
		TestCases: []TestCase{
			{Input: "slow", ExpectedOutput: "[0,1]"},
			{Input: "broken", ExpectedOutput: "[0,1]"},
			{Input: "ok", ExpectedOutput: "[0,1]"},
		},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(backend.calls) != 3 {
		t.Errorf("calls = %v, want every case attempted", backend.calls)
	}
	if out.Cases[0].Status != CaseError || !strings.Contains(out.Cases[0].Error, "timeout") {
		t.Errorf("case 1 = %+v", out.Cases[0])
	}
	if !strings.Contains(out.Cases[1].Error, "could not determine function/method name") {
		t.Errorf("case 2 = %+v", out.Cases[1])
	}
	if !out.Cases[2].Passed {
		t.Errorf("case 3 = %+v", out.Cases[2])
	}
	if out.FirstFailure != 1 {
		t.Errorf("FirstFailure = %d, want 1", out.FirstFailure)
	}
}

func TestValidate_ContextCancelledAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(&scriptedBackend{}, nil).Validate(ctx, Submission{
		Code: "x", Language: "python",
		TestCases: []TestCase{{Input: "a", ExpectedOutput: "[0,1]"}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestValidate_PrecheckFailureExecutesNothing(t *testing.T) {
	backend := &scriptedBackend{precheckErr: sandbox.ErrEmptyCode}
	out, err := NewEngine(backend, nil).Validate(context.Background(), Submission{
		Code: "", Language: "python",
		TestCases: []TestCase{{Input: "a", ExpectedOutput: "b"}},
	})
	if !errors.Is(err, sandbox.ErrEmptyCode) || out != nil {
		t.Fatalf("Validate() = %v, %v; want ErrEmptyCode", out, err)
	}
	if len(backend.calls) != 0 {
		t.Errorf("executed %d cases after failed precheck", len(backend.calls))
	}
}

func TestValidate_SimulatorRejectsEmptyCode(t *testing.T) {
	_, err := newSimEngine().Validate(context.Background(), Submission{Code: "  \n\t", Language: "python"})
	if !errors.Is(err, sandbox.ErrEmptyCode) {
		t.Errorf("err = %v, want ErrEmptyCode", err)
	}
}

func TestValidate_EmptyCaseSetIsNotAllPassed(t *testing.T) {
	out, err := NewEngine(&scriptedBackend{}, nil).Validate(context.Background(), Submission{Code: "x", Language: "python"})
	if err != nil {
		t.Fatal(err)
	}
	if out.AllPassed || out.Total != 0 {
		t.Errorf("outcome = %+v, want AllPassed=false for no cases", out)
	}
}

func TestValidate_TrimsBeforeComparing(t *testing.T) {
	backend := &scriptedBackend{results: map[string]*sandbox.ExecutionResult{
		"in": accepted("debug print\n  [0,1]  \n\n", "0.01", 1000),
	}}
	out, err := NewEngine(backend, nil).Validate(context.Background(), Submission{
		Code: "x", Language: "python",
		TestCases: []TestCase{
			{Input: "in", ExpectedOutput: " [0,1]\n"},
			{Input: "in", ExpectedOutput: "[0, 1]"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Cases[0].Passed {
		t.Errorf("case 1 = %+v, want passed after trim", out.Cases[0])
	}
	// No normalization beyond trimming.
	if out.Cases[1].Passed {
		t.Errorf("case 2 = %+v, want spacing difference to fail", out.Cases[1])
	}
}

func TestValidate_Averages(t *testing.T) {
	backend := &scriptedBackend{results: map[string]*sandbox.ExecutionResult{
		"a": accepted("[0,1]", "0.060", 40960),
		"b": accepted("[0,1]", "0.080", 43008),
		"c": {Stdout: strPtr("[0,1]"), Status: sandbox.Status{ID: sandbox.StatusAccepted}},
	}}
	out, err := NewEngine(backend, nil).Validate(context.Background(), Submission{
		Code: "x", Language: "python",
		TestCases: []TestCase{
			{Input: "a", ExpectedOutput: "[0,1]"},
			{Input: "b", ExpectedOutput: "[0,1]"},
			{Input: "c", ExpectedOutput: "[0,1]"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(out.AvgRuntimeMs-70) > 1e-9 {
		t.Errorf("AvgRuntimeMs = %v, want 70 (unreported case excluded)", out.AvgRuntimeMs)
	}
	if math.Abs(out.AvgMemoryMB-41) > 1e-9 {
		t.Errorf("AvgMemoryMB = %v, want 41", out.AvgMemoryMB)
	}
	if out.AvgRuntime() != "70ms" || out.AvgMemory() != "41.0MB" {
		t.Errorf("rendered averages = %q, %q", out.AvgRuntime(), out.AvgMemory())
	}
	if !strings.Contains(out.Report, "All tests passed!") || !strings.Contains(out.Report, "Average Runtime: 70ms") {
		t.Errorf("report:\n%s", out.Report)
	}
	if !strings.Contains(out.Report, "Test Case 1: ✓ PASSED (Runtime: 60ms, Memory: 40.0MB)") {
		t.Errorf("report:\n%s", out.Report)
	}
}

func TestRunOnce(t *testing.T) {
	backend := &scriptedBackend{}
	result, err := NewEngine(backend, nil).RunOnce(context.Background(), "x", "python", "5")
	if err != nil || !result.Status.Accepted() {
		t.Fatalf("RunOnce() = %+v, %v", result, err)
	}
	if !backend.last.Raw || backend.last.Input != "5" {
		t.Errorf("request = %+v, want raw with stdin 5", backend.last)
	}

	backend.precheckErr = sandbox.ErrNotImplemented
	if _, err := NewEngine(backend, nil).RunOnce(context.Background(), "x", "python", ""); !errors.Is(err, sandbox.ErrNotImplemented) {
		t.Errorf("err = %v, want ErrNotImplemented", err)
	}
}

func strPtr(s string) *string { return &s }

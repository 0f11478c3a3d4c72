package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"practice-judge/internal/monitor"
	"practice-judge/internal/sandbox"
)

// runtimeErrorPrefix marks the line a harness driver prints when the
// user's callable raised.
const runtimeErrorPrefix = "Runtime Error:"

// Engine runs a submission's test cases on one backend and decides the
// verdict. It holds no per-run state and is safe for concurrent use.
type Engine struct {
	backend sandbox.Backend
	metrics *monitor.Metrics
	tracer  *monitor.Tracer
}

// NewEngine creates an engine on the given backend. metrics may be nil.
func NewEngine(backend sandbox.Backend, metrics *monitor.Metrics) *Engine {
	return &Engine{
		backend: backend,
		metrics: metrics,
		tracer:  monitor.NewTracer(),
	}
}

// Backend returns the execution backend the engine was built with.
func (e *Engine) Backend() sandbox.Backend {
	return e.backend
}

// Validate runs every test case in order. Precheck failures are returned
// as errors before anything executes; failures of individual cases are
// recorded in the outcome instead.
func (e *Engine) Validate(ctx context.Context, sub Submission) (*Outcome, error) {
	return e.ValidateStream(ctx, sub, nil)
}

// ValidateStream is Validate with a callback invoked after each case.
func (e *Engine) ValidateStream(ctx context.Context, sub Submission, onCase func(CaseResult)) (*Outcome, error) {
	if err := e.backend.Precheck(sub.Code, sub.Language); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.StartSpan(ctx, "validate",
		monitor.AttrLanguage.String(sub.Language),
		monitor.AttrBackend.String(e.backend.Name()),
	)
	defer span.End()

	logger := log.With().
		Str("language", sub.Language).
		Str("backend", e.backend.Name()).
		Int("cases", len(sub.TestCases)).
		Logger()

	start := time.Now()
	out := &Outcome{
		Backend:  e.backend.Name(),
		Language: sub.Language,
		Cases:    make([]CaseResult, 0, len(sub.TestCases)),
	}

	for i, tc := range sub.TestCases {
		cr, err := e.runCase(ctx, sub, i, tc)
		if err != nil {
			span.RecordError(err)
			logger.Info().Int("case", i+1).Err(err).Msg("validation aborted")
			return nil, err
		}
		e.metrics.RecordCase(sub.Language, string(cr.Status))
		logger.Debug().
			Int("case", cr.Index).
			Str("status", string(cr.Status)).
			Str("actual", cr.Actual).
			Msg("test case finished")

		out.Cases = append(out.Cases, cr)
		if onCase != nil {
			onCase(cr)
		}
	}

	out.aggregate()
	out.Duration = time.Since(start)
	out.Report = RenderReport(out)

	span.SetAttributes(monitor.AttrPassed.Bool(out.AllPassed))
	logger.Info().
		Int("passed", out.Passed).
		Int("total", out.Total).
		Dur("elapsed", out.Duration).
		Msg("validation finished")

	return out, nil
}

// runCase executes one case. Only context cancellation is returned as an
// error; everything else becomes an error outcome for this case.
func (e *Engine) runCase(ctx context.Context, sub Submission, i int, tc TestCase) (CaseResult, error) {
	cr := CaseResult{
		Index:    i + 1,
		Input:    tc.Input,
		Expected: strings.TrimSpace(tc.ExpectedOutput),
		Status:   CaseError,
	}

	ctx, span := e.tracer.StartSpan(ctx, "case", monitor.AttrCaseIndex.Int(cr.Index))
	defer span.End()

	result, err := e.backend.Execute(ctx, sandbox.ExecutionRequest{
		Code:     sub.Code,
		Language: sub.Language,
		Input:    tc.Input,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return cr, fmt.Errorf("test case %d: %w", cr.Index, ctxErr)
		}
		span.RecordError(err)
		cr.Error = err.Error()
		return cr, nil
	}

	cr.StatusID = result.Status.ID
	cr.StatusDescription = result.Status.Description
	setUsage(&cr, result)

	if !result.Status.Accepted() {
		cr.Error = describeFailure(result)
		cr.Actual = ExtractOutput(result.StdoutText())
		return cr, nil
	}

	cr.Actual = ExtractOutput(result.StdoutText())
	if strings.HasPrefix(cr.Actual, runtimeErrorPrefix) {
		cr.Error = cr.Actual
		return cr, nil
	}

	cr.Passed = cr.Actual == cr.Expected
	if cr.Passed {
		cr.Status = CasePassed
	} else {
		cr.Status = CaseFailed
	}
	return cr, nil
}

func setUsage(cr *CaseResult, result *sandbox.ExecutionResult) {
	if result.Time != nil {
		if ms, ok := ParseRuntime(*result.Time); ok {
			cr.runtimeMs, cr.hasRuntime = ms, true
			cr.Runtime = formatRuntime(ms)
		}
	}
	if result.Memory != nil && *result.Memory > 0 {
		cr.memoryMB, cr.hasMemory = float64(*result.Memory)/1024, true
		cr.Memory = formatMemory(cr.memoryMB)
	}
}

// describeFailure picks the most specific diagnostic a failed result carries.
func describeFailure(result *sandbox.ExecutionResult) string {
	desc := result.Status.Description
	if desc == "" {
		desc = fmt.Sprintf("status %d", result.Status.ID)
	}
	for _, detail := range []string{result.CompileOutputText(), result.StderrText()} {
		if detail = strings.TrimSpace(detail); detail != "" {
			return desc + ": " + detail
		}
	}
	return desc
}

// RunOnce prechecks and executes code a single time, unwrapped, with stdin
// as its input. It serves submissions that come without test cases.
func (e *Engine) RunOnce(ctx context.Context, code, language, stdin string) (*sandbox.ExecutionResult, error) {
	if err := e.backend.Precheck(code, language); err != nil {
		return nil, err
	}
	return e.backend.Execute(ctx, sandbox.ExecutionRequest{Code: code, Language: language, Input: stdin, Raw: true})
}

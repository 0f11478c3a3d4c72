// Package run is the entry point for a user pressing "Run": it checks the
// session, guards the editor against overlapping runs, drives the
// validation engine and renders every outcome, including failures, into a
// terminal transcript and a results panel.
package run

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"practice-judge/internal/monitor"
	"practice-judge/internal/runtime"
	"practice-judge/internal/sandbox"
	"practice-judge/internal/session"
	"practice-judge/internal/storage"
	"practice-judge/internal/validation"
)

// Request is one press of the run button.
type Request struct {
	Session   session.Session
	Code      string
	Language  string
	TestCases []validation.TestCase
	ProblemID string
	// Stdin is handed to the program when there are no test cases.
	Stdin     string
	RequestIP string
	// OnCase, when set, is called as each test case finishes.
	OnCase func(validation.CaseResult)
}

type Status string

const (
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
	StatusExecuted Status = "executed" // ran without test cases
	StatusError    Status = "error"
)

// Result is everything the editor shows after a run.
type Result struct {
	RunID     string                   `json:"run_id"`
	Status    Status                   `json:"status"`
	Kind      ErrorKind                `json:"error_kind,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Retryable bool                     `json:"retryable,omitempty"`
	Backend   string                   `json:"backend"`
	Language  string                   `json:"language"`
	Outcome   *validation.Outcome      `json:"outcome,omitempty"`
	Execution *sandbox.ExecutionResult `json:"execution,omitempty"`
	Terminal  string                   `json:"terminal"`
	Results   string                   `json:"results"`
	Duration  time.Duration            `json:"-"`
}

// AuditSink receives a record of every run that got past the gate.
type AuditSink interface {
	Log(run *storage.Run)
}

type Options struct {
	Runtimes     *runtime.Registry
	Metrics      *monitor.Metrics
	Audit        AuditSink
	MaxTestCases int
	// AllowLanguage filters languages before anything runs. Nil allows all.
	AllowLanguage func(language string) bool
}

type Orchestrator struct {
	engine        *validation.Engine
	runtimes      *runtime.Registry
	metrics       *monitor.Metrics
	audit         AuditSink
	maxTestCases  int
	allowLanguage func(string) bool
}

func New(engine *validation.Engine, opts Options) *Orchestrator {
	if opts.Runtimes == nil {
		opts.Runtimes = runtime.NewRegistry()
	}
	return &Orchestrator{
		engine:        engine,
		runtimes:      opts.Runtimes,
		metrics:       opts.Metrics,
		audit:         opts.Audit,
		maxTestCases:  opts.MaxTestCases,
		allowLanguage: opts.AllowLanguage,
	}
}

// Backend returns the name of the execution backend in use.
func (o *Orchestrator) Backend() string {
	return o.engine.Backend().Name()
}

// Run executes req on ed. It never returns an error: failures are
// classified and rendered into the result.
func (o *Orchestrator) Run(ctx context.Context, ed *Editor, req Request) *Result {
	start := time.Now()
	res := &Result{
		RunID:    uuid.NewString(),
		Backend:  o.Backend(),
		Language: req.Language,
	}
	command := o.command(req.Language)

	if !session.Authorized(req.Session) {
		o.fail(res, command, ErrUnauthorized)
		o.metrics.RecordRun(req.Language, res.Backend, string(KindAuthorization), 0)
		return res
	}
	if !ed.acquire() {
		o.fail(res, command, ErrRunInProgress)
		o.metrics.RecordRun(req.Language, res.Backend, string(KindBusy), 0)
		return res
	}
	defer ed.release()

	done := o.metrics.TrackRun()
	defer done()

	logger := log.With().
		Str("run_id", res.RunID).
		Str("user_id", req.Session.UserID).
		Str("language", req.Language).
		Str("backend", res.Backend).
		Logger()
	ctx = logger.WithContext(ctx)
	monitor.SpanFromContext(ctx).SetAttributes(
		monitor.AttrRunID.String(res.RunID),
		monitor.AttrProblemID.String(req.ProblemID),
	)

	if err := o.execute(ctx, req, res, command); err != nil {
		o.fail(res, command, err)
		logger.Info().Err(err).Str("kind", string(res.Kind)).Msg("run failed")
	} else {
		logger.Info().Str("status", string(res.Status)).Msg("run finished")
	}

	res.Duration = time.Since(start)
	outcome := string(res.Status)
	if res.Kind != KindNone {
		outcome = string(res.Kind)
	}
	o.metrics.RecordRun(req.Language, res.Backend, outcome, res.Duration.Seconds())
	o.record(req, res, start)
	return res
}

func (o *Orchestrator) execute(ctx context.Context, req Request, res *Result, command string) error {
	if strings.TrimSpace(req.Language) == "" {
		return fmt.Errorf("%w: no language selected", sandbox.ErrUnsupportedLanguage)
	}
	if o.allowLanguage != nil && !o.allowLanguage(req.Language) {
		return fmt.Errorf("%w: %s is not enabled", sandbox.ErrUnsupportedLanguage, req.Language)
	}
	if o.maxTestCases > 0 && len(req.TestCases) > o.maxTestCases {
		return fmt.Errorf("%w: %d exceeds the limit of %d", ErrTooManyCases, len(req.TestCases), o.maxTestCases)
	}

	if len(req.TestCases) == 0 {
		result, err := o.engine.RunOnce(ctx, req.Code, req.Language, req.Stdin)
		if err != nil {
			return err
		}
		res.Execution = result
		res.Status = StatusExecuted
		if !result.Status.Accepted() {
			res.Status = StatusFailed
		}
		res.Terminal, res.Results = renderExecution(command, result)
		return nil
	}

	outcome, err := o.engine.ValidateStream(ctx, validation.Submission{
		Code:      req.Code,
		Language:  req.Language,
		TestCases: req.TestCases,
	}, req.OnCase)
	if err != nil {
		return err
	}
	res.Outcome = outcome
	res.Status = StatusFailed
	if outcome.AllPassed {
		res.Status = StatusPassed
	}
	res.Terminal, res.Results = renderOutcome(command, outcome)
	return nil
}

func (o *Orchestrator) fail(res *Result, command string, err error) {
	res.Status = StatusError
	res.Kind = Classify(err)
	res.Error = err.Error()
	res.Retryable = res.Kind.Retryable()
	res.Terminal, res.Results = renderFailure(command, res.Kind, err)
}

func (o *Orchestrator) record(req Request, res *Result, start time.Time) {
	if o.audit == nil {
		return
	}
	completed := time.Now()
	rec := &storage.Run{
		ID:          res.RunID,
		UserID:      req.Session.UserID,
		ProblemID:   req.ProblemID,
		Language:    req.Language,
		Backend:     res.Backend,
		CodeHash:    sandbox.CodeHash(req.Code),
		Status:      string(res.Status),
		ErrorKind:   string(res.Kind),
		Error:       res.Error,
		DurationMS:  res.Duration.Milliseconds(),
		RequestIP:   req.RequestIP,
		CreatedAt:   start,
		CompletedAt: &completed,
	}
	if out := res.Outcome; out != nil {
		rec.Passed, rec.Total, rec.FirstFailure = out.Passed, out.Total, out.FirstFailure
		rec.AvgRuntimeMs, rec.AvgMemoryMB = out.AvgRuntimeMs, out.AvgMemoryMB
	}
	o.audit.Log(rec)
}

// command is the shell line shown at the top of the transcript.
func (o *Orchestrator) command(language string) string {
	if language == "" {
		return "run solution"
	}
	rt := o.runtimes.Lookup(language)
	return rt.Command("solution" + rt.FileExtension())
}

package sandbox

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"practice-judge/internal/monitor"
	"practice-judge/internal/runtime"
)

// Sandboxed runs code on Judge0. Function-style solutions are wrapped into
// whole programs by the language harness before submission.
type Sandboxed struct {
	client   *Judge0Client
	runtimes *runtime.Registry
	detector *monitor.Detector
	metrics  *monitor.Metrics
	block    bool
}

var _ Backend = (*Sandboxed)(nil)

// SandboxedOptions configures optional code screening.
type SandboxedOptions struct {
	Detector        *monitor.Detector
	Metrics         *monitor.Metrics
	BlockSuspicious bool // refuse code with critical detections
}

// NewSandboxed creates the Judge0-backed backend.
func NewSandboxed(client *Judge0Client, runtimes *runtime.Registry, opts SandboxedOptions) *Sandboxed {
	if runtimes == nil {
		runtimes = runtime.NewRegistry()
	}
	return &Sandboxed{
		client:   client,
		runtimes: runtimes,
		detector: opts.Detector,
		metrics:  opts.Metrics,
		block:    opts.BlockSuspicious,
	}
}

func (s *Sandboxed) Name() string { return "judge0" }

// Precheck only rejects what the provider would reject anyway; structural
// defects are left for the real compiler to report.
func (s *Sandboxed) Precheck(code, language string) error {
	if strings.TrimSpace(code) == "" {
		return ErrEmptyCode
	}
	if _, err := LanguageID(language); err != nil {
		return err
	}
	if s.detector == nil {
		return nil
	}

	detections := s.detector.AnalyzeCode(code)
	for _, det := range detections {
		s.metrics.RecordSecurityEvent(det.Pattern)
	}
	if s.block && monitor.Blocking(detections) {
		log.Warn().
			Str("language", language).
			Int("detections", len(detections)).
			Msg("submission refused by code screening")
		return ErrSuspiciousCode
	}
	return nil
}

func (s *Sandboxed) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	program := runtime.Program{Source: req.Code, Stdin: req.Input}
	if !req.Raw {
		var err error
		program, err = s.runtimes.Lookup(req.Language).Wrap(req.Code, req.Input)
		if err != nil {
			return nil, &ExecutionError{Op: "harness", Err: err}
		}
	}

	result, err := s.client.Execute(ctx, program.Source, req.Language, program.Stdin)
	if err != nil {
		return nil, err
	}

	if s.detector != nil {
		for _, det := range s.detector.AnalyzeOutput(result.StdoutText()) {
			s.metrics.RecordSecurityEvent(det.Pattern)
			log.Warn().Str("pattern", det.Pattern).Str("token", result.Token).Msg("suspicious provider output")
		}
	}
	return result, nil
}

package sandbox

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"practice-judge/internal/config"
	"practice-judge/internal/monitor"
	"practice-judge/internal/runtime"
)

// Deps are the shared collaborators a backend may use. All are optional.
type Deps struct {
	Runtimes *runtime.Registry
	Cache    ResultCache
	Metrics  *monitor.Metrics
	Detector *monitor.Detector
}

// NewBackend picks the execution backend: Judge0 when credentials (or a
// self-hosted endpoint) are configured, the simulator otherwise.
func NewBackend(cfg *config.Config, deps Deps) (Backend, error) {
	if deps.Runtimes == nil {
		deps.Runtimes = runtime.NewRegistry()
	}

	preference := cfg.Backend
	if preference == "" {
		preference = "auto"
	}

	switch preference {
	case "simulated":
		return NewSimulator(deps.Runtimes, nil), nil
	case "judge0":
		if !judge0Configured(cfg) {
			return nil, fmt.Errorf("%w: judge0 at %s needs JUDGE0_API_KEY or the auth proxy", ErrBackendUnavailable, cfg.Judge0.Host)
		}
		return newJudge0Backend(cfg, deps)
	case "auto":
		if judge0Configured(cfg) {
			log.Info().Str("base_url", cfg.Judge0.BaseURL).Msg("using judge0 backend")
			return newJudge0Backend(cfg, deps)
		}
		log.Warn().Msg("JUDGE0_API_KEY not set, using simulated backend")
		return NewSimulator(deps.Runtimes, nil), nil
	default:
		return nil, fmt.Errorf("unknown backend %q: must be auto, simulated, or judge0", preference)
	}
}

// judge0Configured reports whether the Judge0 endpoint can be reached with
// the current settings. RapidAPI needs a key; a self-hosted instance
// (empty judge0.host) does not.
func judge0Configured(cfg *config.Config) bool {
	return cfg.Judge0.APIKey != "" || cfg.Judge0.Host == "" || cfg.AuthProxy.Port > 0
}

func newJudge0Backend(cfg *config.Config, deps Deps) (Backend, error) {
	limits := ResourceLimits{
		CPUTimeSec:   cfg.Judge0.Limits.CPUTimeSec,
		WallTimeSec:  cfg.Judge0.Limits.WallTimeSec,
		MemoryKB:     cfg.Judge0.Limits.MemoryKB,
		MaxProcesses: cfg.Judge0.Limits.MaxProcesses,
	}
	if limits == (ResourceLimits{}) {
		limits = DefaultLimits()
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("judge0.limits: %w", err)
	}

	opts := Judge0Options{
		BaseURL:        cfg.Judge0.BaseURL,
		Host:           cfg.Judge0.Host,
		APIKey:         cfg.Judge0.APIKey,
		PollInterval:   cfg.Judge0.PollInterval,
		MaxAttempts:    cfg.Judge0.MaxAttempts,
		RequestTimeout: cfg.Judge0.RequestTimeout,
		Limits:         limits,
		Cache:          deps.Cache,
		Metrics:        deps.Metrics,
	}
	// Through the local credential proxy the client only ever holds the
	// per-startup secret; the proxy swaps in the real key.
	if cfg.AuthProxy.Port > 0 && cfg.AuthProxy.Secret != "" {
		opts.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.AuthProxy.Port)
		opts.APIKey = cfg.AuthProxy.Secret
		opts.Host = ""
	}

	return NewSandboxed(NewJudge0Client(opts), deps.Runtimes, SandboxedOptions{
		Detector:        deps.Detector,
		Metrics:         deps.Metrics,
		BlockSuspicious: cfg.Security.BlockSuspicious,
	}), nil
}

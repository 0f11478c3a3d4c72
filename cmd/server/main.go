package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"practice-judge/internal/api"
	"practice-judge/internal/config"
	"practice-judge/internal/monitor"
	"practice-judge/internal/problems"
	authproxy "practice-judge/internal/proxy"
	"practice-judge/internal/run"
	"practice-judge/internal/runtime"
	"practice-judge/internal/sandbox"
	"practice-judge/internal/session"
	"practice-judge/internal/storage"
	"practice-judge/internal/validation"
)

func main() {
	// Structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if err := config.LoadEnv(); err != nil {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg *config.Config
	var err error

	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
		}
	} else {
		log.Info().Msg("no config file found, using defaults")
		cfg = config.DefaultConfig()
		cfg.ApplyEnv()
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("invalid config")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := monitor.NewMetrics()
	runtimes := runtime.NewRegistry()

	// Result cache (optional)
	var cache *sandbox.RedisCache
	if cfg.Redis.Addr != "" {
		cache, err = sandbox.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, result cache disabled")
		} else {
			defer cache.Close()
		}
	}

	// The proxy holds the RapidAPI key; the Judge0 client only sees the
	// per-startup secret.
	var proxy *authproxy.AuthProxy
	if cfg.AuthProxy.Port > 0 {
		if cfg.Judge0.APIKey == "" {
			log.Warn().Msg("auth_proxy enabled but JUDGE0_API_KEY is not set; proxy will forward without a key")
		}

		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			log.Fatal().Err(err).Msg("failed to generate proxy secret")
		}
		cfg.AuthProxy.Secret = hex.EncodeToString(secretBytes)

		proxy, err = authproxy.New(cfg.AuthProxy.Port, cfg.Judge0.BaseURL, cfg.Judge0.Host, cfg.Judge0.APIKey, cfg.AuthProxy.Secret)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid auth proxy configuration")
		}
		if err := proxy.Start(); err != nil {
			log.Fatal().Err(err).Int("port", cfg.AuthProxy.Port).Msg("failed to start auth proxy")
		}
	}

	deps := sandbox.Deps{
		Runtimes: runtimes,
		Metrics:  metrics,
		Detector: monitor.NewDetector(),
	}
	if cache != nil {
		deps.Cache = cache
	}
	backend, err := sandbox.NewBackend(cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create execution backend")
	}

	// Run log (optional, runs without it for development)
	var db *storage.DB
	if cfg.Database.DSN != "" {
		db, err = storage.New(ctx, cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, run log disabled")
		} else {
			defer db.Close()
		}
	}

	var auditWriter *storage.AuditWriter
	if db != nil {
		auditWriter = storage.NewAuditWriter(db, 10000)
		auditWriter.Start()
		defer auditWriter.Flush(10 * time.Second)
	}

	catalog, err := problems.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load problem catalog")
	}

	sessions, err := session.NewManager(cfg.Security.SessionSecret, cfg.Security.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session manager")
	}

	engine := validation.NewEngine(backend, metrics)
	opts := run.Options{
		Runtimes:      runtimes,
		Metrics:       metrics,
		MaxTestCases:  cfg.Security.MaxTestCases,
		AllowLanguage: cfg.LanguageAllowed,
	}
	if auditWriter != nil {
		opts.Audit = auditWriter
	}
	orchestrator := run.New(engine, opts)

	server := api.NewServer(cfg, api.HandlerDeps{
		Orchestrator: orchestrator,
		Engine:       engine,
		Catalog:      catalog,
		Sessions:     sessions,
		Runtimes:     runtimes,
		Metrics:      metrics,
	}, db)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		if proxy != nil {
			if err := proxy.Close(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("auth proxy shutdown error")
			}
		}

		cancel()
	}()

	log.Info().
		Str("addr", cfg.Address()).
		Str("backend", backend.Name()).
		Bool("db_enabled", db != nil).
		Bool("cache_enabled", cache != nil).
		Int("problems", len(catalog.List())).
		Msg("server starting")

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"practice-judge/internal/config"
	"practice-judge/internal/storage"
)

// Server is the main HTTP server for the judge API.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
	cfg        *config.Config
	db         *storage.DB
	startTime  time.Time
}

// NewServer creates and configures the HTTP server with all routes and
// middleware. db may be nil when the run log is disabled.
func NewServer(cfg *config.Config, deps HandlerDeps, db *storage.DB) *Server {
	if db != nil && deps.Store == nil {
		deps.Store = db
	}
	if deps.MaxTimeout == 0 {
		deps.MaxTimeout = cfg.Server.WriteTimeout
	}
	handlers := NewHandlers(deps)

	s := &Server{
		handlers:  handlers,
		cfg:       cfg,
		db:        db,
		startTime: time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	h := s.handlers

	// Judge API: sessions are resolved for every route, and the run
	// orchestrator applies its own gate.
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /auth/login", h.HandleLogin)
	apiMux.HandleFunc("POST /auth/register", h.HandleRegister)
	apiMux.HandleFunc("POST /run", h.HandleRun)
	apiMux.HandleFunc("POST /run/stream", h.HandleRunStream)
	apiMux.HandleFunc("POST /execute", h.HandleExecute)
	apiMux.HandleFunc("GET /problems", h.HandleListProblems)
	apiMux.HandleFunc("GET /problems/{id}", h.HandleGetProblem)
	apiMux.HandleFunc("GET /tags", h.HandleTags)
	apiMux.HandleFunc("GET /languages", h.HandleLanguages)
	apiMux.HandleFunc("GET /daily", RequireSession(h.HandleDaily))
	apiMux.HandleFunc("GET /runs", RequireSession(h.HandleListRuns))
	apiMux.HandleFunc("GET /runs/{id}", RequireSession(h.HandleGetRun))

	withSession := SessionMiddleware(h.sessions)(apiMux)

	// Top-level mux: health/metrics bypass sessions
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.cfg.Metrics.Enabled && h.metrics != nil {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", withSession)

	// Apply middleware chain (outermost first)
	var handler http.Handler = mux
	handler = MetricsMiddleware(h.metrics)(handler)
	handler = RateLimitMiddleware(s.cfg.Security.RateLimitRPS, s.cfg.Security.RateLimitBurst)(handler)
	handler = MaxBodyMiddleware(s.cfg.Server.MaxRequestBody)(handler)
	handler = SecurityHeadersMiddleware(handler)
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(handler)
	return handler
}

// Start begins listening for requests. Uses TLS if configured.
func (s *Server) Start() error {
	if s.cfg.TLS.Enabled {
		log.Info().
			Str("addr", s.httpServer.Addr).
			Str("cert", s.cfg.TLS.CertFile).
			Msg("starting HTTPS server with TLS")

		s.httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		return s.httpServer.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}

	log.Info().
		Str("addr", s.httpServer.Addr).
		Str("backend", s.handlers.engine.Backend().Name()).
		Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db == nil || s.db.Healthy(r.Context())

	resp := HealthResponse{
		Status:   "ok",
		Backend:  s.handlers.engine.Backend().Name(),
		Database: dbOK,
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
	}

	status := http.StatusOK
	if !dbOK {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

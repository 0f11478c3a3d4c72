package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"practice-judge/internal/monitor"
	"practice-judge/internal/problems"
	"practice-judge/internal/run"
	"practice-judge/internal/runtime"
	"practice-judge/internal/sandbox"
	"practice-judge/internal/session"
	"practice-judge/internal/storage"
	"practice-judge/internal/validation"
)

// RunStore reads the run audit log.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	ListRuns(ctx context.Context, filter storage.RunFilter) ([]storage.Run, error)
}

type Handlers struct {
	orchestrator *run.Orchestrator
	engine       *validation.Engine
	editors      *run.Editors
	catalog      *problems.Catalog
	sessions     *session.Manager
	runtimes     *runtime.Registry
	store        RunStore
	metrics      *monitor.Metrics
	maxTimeout   time.Duration
	now          func() time.Time
}

type HandlerDeps struct {
	Orchestrator *run.Orchestrator
	Engine       *validation.Engine
	Catalog      *problems.Catalog
	Sessions     *session.Manager
	Runtimes     *runtime.Registry
	Store        RunStore // nil when the audit log is disabled
	Metrics      *monitor.Metrics
	MaxTimeout   time.Duration
}

func NewHandlers(deps HandlerDeps) *Handlers {
	if deps.Runtimes == nil {
		deps.Runtimes = runtime.NewRegistry()
	}
	return &Handlers{
		orchestrator: deps.Orchestrator,
		engine:       deps.Engine,
		editors:      run.NewEditors(),
		catalog:      deps.Catalog,
		sessions:     deps.Sessions,
		runtimes:     deps.Runtimes,
		store:        deps.Store,
		metrics:      deps.Metrics,
		maxTimeout:   deps.MaxTimeout,
		now:          time.Now,
	}
}

// decodeRun reads a RunRequest and fills its test cases from the catalog
// when the caller named a problem instead of sending cases.
func (h *Handlers) decodeRun(w http.ResponseWriter, r *http.Request) (*RunRequest, bool) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return nil, false
	}
	if len(req.TestCases) == 0 && req.ProblemID != "" {
		p, err := h.catalog.Get(req.ProblemID)
		if err != nil {
			writeError(w, err.Error(), "NOT_FOUND", http.StatusNotFound, r)
			return nil, false
		}
		req.TestCases = p.TestCases()
	}
	if h.metrics != nil {
		h.metrics.CodeSizeBytes.Observe(float64(len(req.Code)))
	}
	return &req, true
}

func (h *Handlers) runRequest(r *http.Request, req *RunRequest) run.Request {
	return run.Request{
		Session:   session.FromContext(r.Context()),
		Code:      req.Code,
		Language:  req.Language,
		TestCases: req.TestCases,
		ProblemID: req.ProblemID,
		Stdin:     req.Stdin,
		RequestIP: r.RemoteAddr,
	}
}

// runContext bounds a run by the caller's timeout, capped by the server's.
func (h *Handlers) runContext(ctx context.Context, req *RunRequest) (context.Context, context.CancelFunc) {
	timeout := req.Timeout.Duration
	if h.maxTimeout > 0 && (timeout <= 0 || timeout > h.maxTimeout) {
		timeout = h.maxTimeout
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// editor resolves the caller's editor and returns the matching release.
// Anonymous callers get a throwaway editor; the run gate rejects them and
// nothing is kept.
func (h *Handlers) editor(r *http.Request, editorID string) (*run.Editor, func()) {
	s := session.FromContext(r.Context())
	if !session.Authorized(s) {
		return run.NewEditor(editorID), func() {}
	}
	ed := h.editors.Get(s.UserID, editorID)
	return ed, func() { h.editors.Put(ed) }
}

func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRun(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.runContext(r.Context(), req)
	defer cancel()

	ed, done := h.editor(r, req.EditorID)
	defer done()
	res := h.orchestrator.Run(ctx, ed, h.runRequest(r, req))
	writeJSON(w, statusForKind(res.Kind), res)
}

func (h *Handlers) HandleRunStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRun(w, r)
	if !ok {
		return
	}

	caseWriter := NewSSEWriter(w, "case")
	doneWriter := NewSSEWriter(w, "done")
	if caseWriter == nil || doneWriter == nil {
		writeError(w, "streaming not supported", "STREAMING_UNSUPPORTED", http.StatusInternalServerError, r)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := h.runContext(r.Context(), req)
	defer cancel()

	runReq := h.runRequest(r, req)
	runReq.OnCase = func(c validation.CaseResult) {
		if err := caseWriter.WriteJSON(c); err != nil {
			log.Debug().Err(err).Msg("dropping case event")
		}
	}

	ed, done := h.editor(r, req.EditorID)
	defer done()
	res := h.orchestrator.Run(ctx, ed, runReq)
	if err := doneWriter.WriteJSON(res); err != nil {
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("encoding run result")
		sendSSEError(w, "encoding run result failed")
	}
}

// HandleExecute runs code once and returns the provider result untouched.
func (h *Handlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}
	if !session.Authorized(session.FromContext(r.Context())) {
		writeError(w, run.LoginRequired, "AUTH_REQUIRED", http.StatusUnauthorized, r)
		return
	}

	result, err := h.engine.RunOnce(r.Context(), req.Code, req.Language, req.Stdin)
	if err != nil {
		kind := run.Classify(err)
		if kind == run.KindInternal {
			log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("execution failed")
		}
		writeError(w, err.Error(), codeForKind(kind), statusForKind(kind), r)
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{
		Backend:   h.engine.Backend().Name(),
		Result:    result,
		Formatted: sandbox.FormatResult(result),
	})
}

func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.handleAuth(w, r, func(req LoginRequest) (session.Session, error) {
		return h.sessions.Login(req.Username, req.Password)
	})
}

func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.handleAuth(w, r, func(req LoginRequest) (session.Session, error) {
		return h.sessions.Register(req.Username, req.Email, req.Password)
	})
}

func (h *Handlers) handleAuth(w http.ResponseWriter, r *http.Request, authenticate func(LoginRequest) (session.Session, error)) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	s, err := authenticate(req)
	if err != nil {
		writeError(w, err.Error(), "INVALID_CREDENTIALS", http.StatusBadRequest, r)
		return
	}
	token, err := h.sessions.Issue(s)
	if err != nil {
		log.Error().Err(err).Msg("issuing session token")
		writeError(w, "could not issue session", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	log.Info().Str("user_id", s.UserID).Str("username", s.Username).Msg("session issued")
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: s})
}

// HandleListProblems lists the catalog, optionally narrowed by ?tag=.
func (h *Handlers) HandleListProblems(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	list := h.catalog.List()
	out := make([]ProblemSummary, 0, len(list))
	for _, p := range list {
		if tag == "" || slices.ContainsFunc(p.Tags, func(t string) bool { return strings.EqualFold(t, tag) }) {
			out = append(out, summarize(p))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) HandleTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Tags())
}

func (h *Handlers) HandleGetProblem(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err.Error(), "NOT_FOUND", http.StatusNotFound, r)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) HandleDaily(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	daily, err := h.catalog.Daily(s.JoinedAt, h.now())
	if err != nil {
		writeError(w, err.Error(), "NOT_FOUND", http.StatusNotFound, r)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

func (h *Handlers) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	names := sandbox.Languages()
	out := make([]LanguageInfo, 0, len(names))
	for _, name := range names {
		id, _ := sandbox.LanguageID(name)
		_, err := h.runtimes.Get(name)
		out = append(out, LanguageInfo{Name: name, ID: id, Harness: err == nil})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, "run log not configured", "DB_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	rec, err := h.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("querying run")
		}
		writeError(w, "run not found", "NOT_FOUND", http.StatusNotFound, r)
		return
	}
	// Runs are private to their user.
	if rec.UserID != session.FromContext(r.Context()).UserID {
		writeError(w, "run not found", "NOT_FOUND", http.StatusNotFound, r)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, "run log not configured", "DB_UNAVAILABLE", http.StatusServiceUnavailable, r)
		return
	}

	q := r.URL.Query()
	filter := storage.RunFilter{
		UserID:   session.FromContext(r.Context()).UserID,
		Language: q.Get("language"),
		Status:   q.Get("status"),
		Limit:    100,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", "INVALID_REQUEST", http.StatusBadRequest, r)
			return
		}
		filter.Limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("listing runs")
		writeError(w, "query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}

	writeJSON(w, http.StatusOK, runs)
}

// statusForKind maps a run failure onto an HTTP status. Runs that
// executed, whatever their verdict, are 200.
func statusForKind(kind run.ErrorKind) int {
	switch kind {
	case run.KindNone:
		return http.StatusOK
	case run.KindAuthorization:
		return http.StatusUnauthorized
	case run.KindBusy:
		return http.StatusConflict
	case run.KindInput:
		return http.StatusBadRequest
	case run.KindHarness:
		return http.StatusUnprocessableEntity
	case run.KindTimeout:
		return http.StatusGatewayTimeout
	case run.KindProvider:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func codeForKind(kind run.ErrorKind) string {
	switch kind {
	case run.KindAuthorization:
		return "AUTH_REQUIRED"
	case run.KindBusy:
		return "RUN_IN_PROGRESS"
	case run.KindInput:
		return "VALIDATION_ERROR"
	case run.KindHarness:
		return "HARNESS_ERROR"
	case run.KindTimeout:
		return "TIMEOUT"
	case run.KindProvider:
		return "PROVIDER_ERROR"
	case run.KindCancelled:
		return "CANCELLED"
	}
	return "INTERNAL"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, msg, code string, status int, r *http.Request) {
	resp := ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	}
	writeJSON(w, status, resp)
}

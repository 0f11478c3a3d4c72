package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"practice-judge/internal/config"
	"practice-judge/internal/monitor"
	"practice-judge/internal/problems"
	"practice-judge/internal/run"
	"practice-judge/internal/runtime"
	"practice-judge/internal/sandbox"
	"practice-judge/internal/session"
	"practice-judge/internal/storage"
	"practice-judge/internal/validation"
)

const twoSumJS = `function twoSum(nums, target) {
    const seen = new Map();
    for (let i = 0; i < nums.length; i++) {
        if (seen.has(target - nums[i])) return [seen.get(target - nums[i]), i];
        seen.set(nums[i], i);
    }
    return [];
}`

// fakeStore implements RunStore in memory.
type fakeStore struct {
	runs       map[string]*storage.Run
	lastFilter storage.RunFilter
}

func (f *fakeStore) GetRun(_ context.Context, id string) (*storage.Run, error) {
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) ListRuns(_ context.Context, filter storage.RunFilter) ([]storage.Run, error) {
	f.lastFilter = filter
	var out []storage.Run
	for _, r := range f.runs {
		if r.UserID == filter.UserID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type testEnv struct {
	handler  http.Handler
	handlers *Handlers
	sessions *session.Manager
	store    *fakeStore
}

func newTestEnv(t *testing.T, backend sandbox.Backend) *testEnv {
	t.Helper()
	if backend == nil {
		backend = sandbox.NewSimulator(runtime.NewRegistry(), rand.New(rand.NewSource(7)))
	}
	catalog, err := problems.Load()
	if err != nil {
		t.Fatal(err)
	}
	sessions, err := session.NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	metrics := monitor.NewMetrics()
	engine := validation.NewEngine(backend, metrics)
	store := &fakeStore{runs: map[string]*storage.Run{}}

	cfg := config.DefaultConfig()
	cfg.Security.RateLimitRPS = 1000
	cfg.Security.RateLimitBurst = 1000

	srv := NewServer(cfg, HandlerDeps{
		Orchestrator: run.New(engine, run.Options{Metrics: metrics, MaxTestCases: 10}),
		Engine:       engine,
		Catalog:      catalog,
		Sessions:     sessions,
		Store:        store,
		Metrics:      metrics,
	}, nil)

	return &testEnv{handler: srv.routes(), handlers: srv.handlers, sessions: sessions, store: store}
}

func (e *testEnv) token(t *testing.T, username string) string {
	t.Helper()
	s, err := e.sessions.Login(username, "pw")
	if err != nil {
		t.Fatal(err)
	}
	tok, err := e.sessions.Issue(s)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHandleRun_ProblemExamples(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/run", env.token(t, "ada"), RunRequest{
		Code:      twoSumJS,
		Language:  "javascript",
		ProblemID: "two-sum",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body)
	}
	res := decode[run.Result](t, rec)
	if res.Status != run.StatusPassed || res.Outcome == nil || res.Outcome.Total != 3 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(res.Results, "All tests passed!") {
		t.Errorf("results = %q", res.Results)
	}
}

func TestHandleRun_StatusMapping(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t, "ada")

	tests := []struct {
		name       string
		token      string
		req        RunRequest
		wantStatus int
		wantKind   run.ErrorKind
	}{
		{"anonymous", "", RunRequest{Code: twoSumJS, Language: "javascript", ProblemID: "two-sum"}, http.StatusUnauthorized, run.KindAuthorization},
		{"empty code", token, RunRequest{Code: "", Language: "javascript", ProblemID: "two-sum"}, http.StatusBadRequest, run.KindInput},
		{"unsupported", token, RunRequest{Code: twoSumJS, Language: "cobol", ProblemID: "two-sum"}, http.StatusBadRequest, run.KindInput},
		{"wrong answer still 200", token, RunRequest{Code: twoSumJS, Language: "javascript", TestCases: []validation.TestCase{{Input: "nums = [1,2], target = 3", ExpectedOutput: "[1,0]"}}}, http.StatusOK, run.KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/run", tt.token, tt.req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if res := decode[run.Result](t, rec); res.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", res.Kind, tt.wantKind)
			}
		})
	}
}

func TestHandleRun_EditorsNotRetained(t *testing.T) {
	env := newTestEnv(t, nil)

	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/run", "", RunRequest{
			Code: twoSumJS, Language: "javascript", ProblemID: "two-sum",
			EditorID: fmt.Sprintf("tab-%d", i),
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("got status %d, want 401", rec.Code)
		}
	}
	if n := env.handlers.editors.Len(); n != 0 {
		t.Errorf("anonymous runs left %d editors behind", n)
	}

	rec := env.do(t, http.MethodPost, "/run", env.token(t, "ada"), RunRequest{
		Code: twoSumJS, Language: "javascript", ProblemID: "two-sum", EditorID: "tab-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body)
	}
	if n := env.handlers.editors.Len(); n != 0 {
		t.Errorf("finished run left %d editors behind", n)
	}
}

func TestHandleRun_UnknownProblem(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/run", env.token(t, "ada"), RunRequest{
		Code: twoSumJS, Language: "javascript", ProblemID: "nope",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}

func TestHandleRun_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "INVALID_REQUEST" || resp.RequestID == "" {
		t.Errorf("error response = %+v", resp)
	}
}

func TestSessionMiddleware_RejectsBadToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/run", "forged.token.value", RunRequest{Code: twoSumJS, Language: "javascript"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/problems", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("basic auth: got status %d, want 401", rec.Code)
	}
}

func TestHandleRunStream(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/run/stream", env.token(t, "ada"), RunRequest{
		Code:      twoSumJS,
		Language:  "javascript",
		ProblemID: "two-sum",
	})

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var events []string
	var lastData string
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		line := sc.Text()
		if ev, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, ev)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			lastData = data
		}
	}

	want := []string{"case", "case", "case", "done"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", events, want)
	}
	var res run.Result
	if err := json.Unmarshal([]byte(lastData), &res); err != nil {
		t.Fatalf("done payload: %v", err)
	}
	if res.Status != run.StatusPassed {
		t.Errorf("status = %s", res.Status)
	}
}

func TestHandleExecute(t *testing.T) {
	out := "42\n"
	backend := &stubBackend{result: &sandbox.ExecutionResult{
		Stdout: &out,
		Status: sandbox.Status{ID: sandbox.StatusAccepted, Description: "Accepted"},
	}}
	env := newTestEnv(t, backend)

	rec := env.do(t, http.MethodPost, "/execute", env.token(t, "ada"), ExecuteRequest{Code: "print(42)", Language: "python"})
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[ExecuteResponse](t, rec)
	if resp.Result.StdoutText() != "42\n" || !strings.Contains(resp.Formatted, "Output:") {
		t.Errorf("response = %+v", resp)
	}

	if rec := env.do(t, http.MethodPost, "/execute", "", ExecuteRequest{Code: "print(1)", Language: "python"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous execute: got status %d, want 401", rec.Code)
	}
}

func TestHandleExecute_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"timeout", &sandbox.ExecutionError{Op: "poll", Err: sandbox.ErrTimeout}, http.StatusGatewayTimeout, "TIMEOUT"},
		{"provider", sandbox.ErrSubmissionFailed, http.StatusBadGateway, "PROVIDER_ERROR"},
		{"harness", &sandbox.ExecutionError{Op: "harness", Err: runtime.ErrCallableNotFound}, http.StatusUnprocessableEntity, "HARNESS_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubBackend{err: tt.err})
			rec := env.do(t, http.MethodPost, "/execute", env.token(t, "ada"), ExecuteRequest{Code: "x", Language: "python"})
			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", rec.Code, tt.wantStatus)
			}
			if resp := decode[ErrorResponse](t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "johndoe", Password: "pw"})
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	resp := decode[LoginResponse](t, rec)
	s, err := env.sessions.Parse(resp.Token)
	if err != nil || s.Username != "johndoe" {
		t.Errorf("token session = %+v, err %v", s, err)
	}

	if rec := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "johndoe"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing password: got status %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/auth/register", "", LoginRequest{Username: "new", Email: "n@example.com", Password: "pw"}); rec.Code != http.StatusOK {
		t.Errorf("register: got status %d", rec.Code)
	}
}

func TestHandleProblems(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/problems", "", nil)
	list := decode[[]ProblemSummary](t, rec)
	if len(list) != 3 || list[0].ID != "two-sum" {
		t.Errorf("problems = %+v", list)
	}

	rec = env.do(t, http.MethodGet, "/problems/valid-parentheses", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"starter_code"`) || strings.Contains(body, "Stack<Character>") {
		t.Error("problem detail should include starter code and omit solutions")
	}

	if rec := env.do(t, http.MethodGet, "/problems/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}

func TestHandleProblems_TagFilter(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		tag  string
		want []string
	}{
		{"stack", []string{"valid-parentheses"}},
		{"Linked%20List", []string{"reverse-linked-list"}},
		{"Graph", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			list := decode[[]ProblemSummary](t, env.do(t, http.MethodGet, "/problems?tag="+tt.tag, "", nil))
			var ids []string
			for _, p := range list {
				ids = append(ids, p.ID)
			}
			if len(ids) != len(tt.want) || (len(ids) > 0 && ids[0] != tt.want[0]) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}

	tags := decode[[]string](t, env.do(t, http.MethodGet, "/tags", "", nil))
	if len(tags) != 6 || tags[0] != "Array" {
		t.Errorf("tags = %v", tags)
	}
}

func TestHandleDaily(t *testing.T) {
	env := newTestEnv(t, nil)

	if rec := env.do(t, http.MethodGet, "/daily", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous daily: got status %d, want 401", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/daily", env.token(t, "ada"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	d := decode[problems.Daily](t, rec)
	if d.Day < 1 || d.Day > 7 || d.Problem == nil {
		t.Errorf("daily = %+v", d)
	}
}

func TestHandleLanguages(t *testing.T) {
	env := newTestEnv(t, nil)
	langs := decode[[]LanguageInfo](t, env.do(t, http.MethodGet, "/languages", "", nil))

	byName := map[string]LanguageInfo{}
	for _, l := range langs {
		byName[l.Name] = l
	}
	if l := byName["javascript"]; l.ID != 63 || !l.Harness {
		t.Errorf("javascript = %+v", l)
	}
	if l := byName["go"]; l.ID != 60 || l.Harness {
		t.Errorf("go = %+v", l)
	}
}

func TestHandleRuns(t *testing.T) {
	env := newTestEnv(t, nil)
	ada := env.token(t, "ada")
	adaID := session.UserID("ada")
	env.store.runs["r1"] = &storage.Run{ID: "r1", UserID: adaID, Status: "passed"}
	env.store.runs["r2"] = &storage.Run{ID: "r2", UserID: session.UserID("bob"), Status: "failed"}

	rec := env.do(t, http.MethodGet, "/runs?language=python&limit=5", ada, nil)
	runs := decode[[]storage.Run](t, rec)
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Errorf("runs = %+v", runs)
	}
	if f := env.store.lastFilter; f.UserID != adaID || f.Language != "python" || f.Limit != 5 {
		t.Errorf("filter = %+v", f)
	}

	if rec := env.do(t, http.MethodGet, "/runs/r1", ada, nil); rec.Code != http.StatusOK {
		t.Errorf("own run: got status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/runs/r2", ada, nil); rec.Code != http.StatusNotFound {
		t.Errorf("other user's run: got status %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/runs?limit=x", ada, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got status %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/runs", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: got status %d, want 401", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	if resp := decode[HealthResponse](t, rec); resp.Backend != "simulated" || !resp.Database {
		t.Errorf("health = %+v", resp)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/run", env.token(t, "ada"), RunRequest{Code: twoSumJS, Language: "javascript", ProblemID: "two-sum"})

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "judge_runs_total") {
		t.Error("metrics output missing judge_runs_total")
	}
}

// stubBackend returns a fixed result or error and passes every precheck.
type stubBackend struct {
	result *sandbox.ExecutionResult
	err    error
}

func (s *stubBackend) Name() string                     { return "stub" }
func (s *stubBackend) Precheck(code, lang string) error { return nil }
func (s *stubBackend) Execute(context.Context, sandbox.ExecutionRequest) (*sandbox.ExecutionResult, error) {
	return s.result, s.err
}

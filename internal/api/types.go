package api

import (
	"time"

	"practice-judge/internal/problems"
	"practice-judge/internal/sandbox"
	"practice-judge/internal/session"
	"practice-judge/internal/validation"
)

// RunRequest is one press of the editor's run button. When TestCases is
// empty and ProblemID is set, the problem's examples are used.
type RunRequest struct {
	Code      string                `json:"code"`
	Language  string                `json:"language"`
	ProblemID string                `json:"problem_id,omitempty"`
	TestCases []validation.TestCase `json:"test_cases,omitempty"`
	EditorID  string                `json:"editor_id,omitempty"`
	Stdin     string                `json:"stdin,omitempty"`
	Timeout   Duration              `json:"timeout,omitempty"`
}

// ExecuteRequest runs code once without validation.
type ExecuteRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin,omitempty"`
}

// ExecuteResponse carries the raw provider result and its rendering.
type ExecuteResponse struct {
	Backend   string                   `json:"backend"`
	Result    *sandbox.ExecutionResult `json:"result"`
	Formatted string                   `json:"formatted"`
}

// Duration wraps time.Duration for JSON marshaling as a string like "10s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string          `json:"token"`
	User  session.Session `json:"user"`
}

// ProblemSummary is a catalog entry without its body.
type ProblemSummary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
}

func summarize(p *problems.Problem) ProblemSummary {
	return ProblemSummary{ID: p.ID, Title: p.Title, Difficulty: p.Difficulty, Tags: p.Tags}
}

// LanguageInfo describes one supported language.
type LanguageInfo struct {
	Name    string `json:"name"`
	ID      int    `json:"judge0_id"`
	Harness bool   `json:"harness"` // false: whole program, input on stdin
}

// ErrorResponse is returned for API errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Database bool   `json:"database"`
	Uptime   string `json:"uptime"`
}

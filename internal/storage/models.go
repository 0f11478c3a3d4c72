package storage

import "time"

// Run is one audited run of the pipeline.
type Run struct {
	ID           string     `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	ProblemID    string     `json:"problem_id,omitempty" db:"problem_id"`
	Language     string     `json:"language" db:"language"`
	Backend      string     `json:"backend" db:"backend"`
	CodeHash     string     `json:"code_hash" db:"code_hash"`
	Status       string     `json:"status" db:"status"` // passed, failed, error
	ErrorKind    string     `json:"error_kind,omitempty" db:"error_kind"`
	Error        string     `json:"error,omitempty" db:"error"`
	Passed       int        `json:"passed" db:"passed"`
	Total        int        `json:"total" db:"total"`
	FirstFailure int        `json:"first_failure,omitempty" db:"first_failure"`
	AvgRuntimeMs float64    `json:"avg_runtime_ms,omitempty" db:"avg_runtime_ms"`
	AvgMemoryMB  float64    `json:"avg_memory_mb,omitempty" db:"avg_memory_mb"`
	DurationMS   int64      `json:"duration_ms" db:"duration_ms"`
	RequestIP    string     `json:"request_ip,omitempty" db:"request_ip"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// RunFilter provides criteria for querying runs.
type RunFilter struct {
	UserID   string
	Language string
	Status   string
	Limit    int
	Offset   int
}

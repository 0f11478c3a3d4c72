package sandbox

import (
	"errors"
	"fmt"
)

// ErrInvalidLimits is returned for resource limits outside the provider's
// accepted range.
var ErrInvalidLimits = errors.New("invalid resource limits")

// ResourceLimits are the per-submission caps sent to Judge0. Zero fields
// are omitted so the provider's own defaults apply.
type ResourceLimits struct {
	CPUTimeSec   float64 `json:"cpu_time_limit,omitempty"`
	WallTimeSec  float64 `json:"wall_time_limit,omitempty"`
	MemoryKB     int     `json:"memory_limit,omitempty"`
	MaxProcesses int     `json:"max_processes_and_or_threads,omitempty"`
}

func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		CPUTimeSec:   2,
		WallTimeSec:  5,
		MemoryKB:     128000, // 125MB
		MaxProcesses: 60,
	}
}

// Validate checks the limits against the ceilings a stock Judge0 accepts.
func (rl ResourceLimits) Validate() error {
	if rl.CPUTimeSec < 0 || rl.CPUTimeSec > 15 {
		return fmt.Errorf("%w: cpu_time_sec must be 0-15, got %g", ErrInvalidLimits, rl.CPUTimeSec)
	}
	if rl.WallTimeSec < 0 || rl.WallTimeSec > 20 {
		return fmt.Errorf("%w: wall_time_sec must be 0-20, got %g", ErrInvalidLimits, rl.WallTimeSec)
	}
	if rl.WallTimeSec > 0 && rl.WallTimeSec < rl.CPUTimeSec {
		return fmt.Errorf("%w: wall_time_sec (%g) must be >= cpu_time_sec (%g)", ErrInvalidLimits, rl.WallTimeSec, rl.CPUTimeSec)
	}
	if rl.MemoryKB != 0 && (rl.MemoryKB < 2048 || rl.MemoryKB > 512000) {
		return fmt.Errorf("%w: memory_kb must be 2048-512000, got %d", ErrInvalidLimits, rl.MemoryKB)
	}
	if rl.MaxProcesses < 0 || rl.MaxProcesses > 120 {
		return fmt.Errorf("%w: max_processes must be 0-120, got %d", ErrInvalidLimits, rl.MaxProcesses)
	}
	return nil
}

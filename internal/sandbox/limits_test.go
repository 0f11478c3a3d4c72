package sandbox

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	if l.CPUTimeSec != 2 {
		t.Errorf("CPUTimeSec = %g, want 2", l.CPUTimeSec)
	}
	if l.WallTimeSec != 5 {
		t.Errorf("WallTimeSec = %g, want 5", l.WallTimeSec)
	}
	if l.MemoryKB != 128000 {
		t.Errorf("MemoryKB = %d, want 128000", l.MemoryKB)
	}
	if l.MaxProcesses != 60 {
		t.Errorf("MaxProcesses = %d, want 60", l.MaxProcesses)
	}
	if err := l.Validate(); err != nil {
		t.Errorf("DefaultLimits().Validate() = %v, want nil", err)
	}
}

func TestValidate_Ceilings(t *testing.T) {
	max := ResourceLimits{CPUTimeSec: 15, WallTimeSec: 20, MemoryKB: 512000, MaxProcesses: 120}
	if err := max.Validate(); err != nil {
		t.Errorf("max ceilings Validate() = %v, want nil", err)
	}
	if err := (ResourceLimits{}).Validate(); err != nil {
		t.Errorf("zero limits (provider defaults) Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		limits ResourceLimits
	}{
		{"cpu over", ResourceLimits{CPUTimeSec: 15.5}},
		{"wall over", ResourceLimits{WallTimeSec: 21}},
		{"wall below cpu", ResourceLimits{CPUTimeSec: 5, WallTimeSec: 2}},
		{"memory over", ResourceLimits{MemoryKB: 512001}},
		{"memory under", ResourceLimits{MemoryKB: 100}},
		{"processes over", ResourceLimits{MaxProcesses: 121}},
		{"negative cpu", ResourceLimits{CPUTimeSec: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.limits.Validate()
			if !errors.Is(err, ErrInvalidLimits) {
				t.Errorf("Validate() = %v, want ErrInvalidLimits", err)
			}
		})
	}
}

func TestLimitsOmittedWhenZero(t *testing.T) {
	body, err := json.Marshal(createSubmissionRequest{SourceCode: "x", LanguageID: 71})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(body), "limit") {
		t.Errorf("zero limits serialized: %s", body)
	}

	body, _ = json.Marshal(createSubmissionRequest{SourceCode: "x", LanguageID: 71, ResourceLimits: DefaultLimits()})
	for _, field := range []string{`"cpu_time_limit":2`, `"memory_limit":128000`, `"max_processes_and_or_threads":60`} {
		if !strings.Contains(string(body), field) {
			t.Errorf("body %s missing %s", body, field)
		}
	}
}

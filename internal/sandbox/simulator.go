package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"practice-judge/internal/runtime"
)

// placeholderOutput is what the simulator prints for any problem it cannot
// actually evaluate.
const placeholderOutput = "[0,1]"

// Simulator is the offline backend. It runs the static checks the real
// harness cannot, and fabricates output for everything but two-sum.
type Simulator struct {
	runtimes *runtime.Registry

	mu  sync.Mutex
	rng *rand.Rand
}

var _ Backend = (*Simulator)(nil)

// NewSimulator creates a simulator. A nil rng is seeded from the clock;
// tests pass a fixed source to pin the fabricated timings.
func NewSimulator(runtimes *runtime.Registry, rng *rand.Rand) *Simulator {
	if runtimes == nil {
		runtimes = runtime.NewRegistry()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 -- display-only timings
	}
	return &Simulator{runtimes: runtimes, rng: rng}
}

func (s *Simulator) Name() string { return "simulated" }

// Precheck rejects empty code, unsupported languages, starter code with no
// body, and structurally broken code, in that order.
func (s *Simulator) Precheck(code, language string) error {
	if strings.TrimSpace(code) == "" {
		return ErrEmptyCode
	}
	if _, err := LanguageID(language); err != nil {
		return err
	}
	rt := s.runtimes.Lookup(language)
	if !rt.HasImplementation(code) {
		return ErrNotImplemented
	}
	if err := rt.CheckSyntax(code); err != nil {
		return &SyntaxError{Message: err.Error()}
	}
	return nil
}

// Execute always reports Accepted. For two-sum inputs it returns the first
// index pair by ascending index, "[]" when none exists.
func (s *Simulator) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output := placeholderOutput
	if strings.Contains(req.Code, "twoSum") {
		if nums, target, ok := runtime.ParseArrayTarget(req.Input); ok {
			output = solveTwoSum(nums, target)
		}
	}

	elapsedMs, memoryKB := s.fabricateUsage()
	return &ExecutionResult{
		Stdout: strPtr(output + "\n"),
		Status: Status{ID: StatusAccepted, Description: "Accepted"},
		Time:   strPtr(fmt.Sprintf("%.3f", float64(elapsedMs)/1000)),
		Memory: intPtr(memoryKB),
	}, nil
}

// fabricateUsage returns a runtime of 60-89 ms and a memory figure of
// 41-43 MB expressed in KB. The numbers are for display only.
func (s *Simulator) fabricateUsage() (elapsedMs, memoryKB int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsedMs = 60 + s.rng.Intn(30)
	memoryMB := 41 + s.rng.Float64()*2
	return elapsedMs, int(memoryMB * 1024)
}

func solveTwoSum(nums []int, target int) string {
	for i := 0; i < len(nums); i++ {
		for j := i + 1; j < len(nums); j++ {
			if nums[i]+nums[j] == target {
				return fmt.Sprintf("[%d,%d]", i, j)
			}
		}
	}
	return "[]"
}

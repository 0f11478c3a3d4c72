package monitor

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Detector screens user code before it is forwarded to the third-party
// sandbox, and provider output before it is shown back to the user.
type Detector struct {
	patterns []DetectionPattern
}

// DetectionPattern defines a suspicious pattern to match.
type DetectionPattern struct {
	Name        string
	Description string
	Regex       *regexp.Regexp
	Severity    Severity
}

// Severity levels for detected threats.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Detection represents a detected suspicious pattern.
type Detection struct {
	Pattern  string `json:"pattern"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
	Line     int    `json:"line,omitempty"`
}

// NewDetector creates a detector with default patterns.
func NewDetector() *Detector {
	return &Detector{
		patterns: defaultPatterns(),
	}
}

// AnalyzeCode checks submitted code for suspicious patterns.
func (d *Detector) AnalyzeCode(code string) []Detection {
	var detections []Detection

	lines := strings.Split(code, "\n")
	for i, line := range lines {
		for _, p := range d.patterns {
			if p.Regex.MatchString(line) {
				detections = append(detections, Detection{
					Pattern:  p.Name,
					Severity: p.Severity.String(),
					Detail:   p.Description,
					Line:     i + 1,
				})

				log.Warn().
					Str("pattern", p.Name).
					Str("severity", p.Severity.String()).
					Int("line", i+1).
					Msg("suspicious pattern in submitted code")
			}
		}
	}

	return detections
}

// AnalyzeOutput checks provider output for leaked host details.
func (d *Detector) AnalyzeOutput(output string) []Detection {
	var detections []Detection

	outputPatterns := []struct {
		name   string
		substr string
		sev    Severity
	}{
		{"kernel_leak", "Linux version", SeverityHigh},
		{"root_access", "root:x:0:0", SeverityCritical},
		{"credential_leak", "X-RapidAPI-Key", SeverityCritical},
		{"private_key_leak", "PRIVATE KEY-----", SeverityCritical},
	}

	for _, p := range outputPatterns {
		if strings.Contains(output, p.substr) {
			detections = append(detections, Detection{
				Pattern:  p.name,
				Severity: p.sev.String(),
				Detail:   "suspicious content in output: " + p.name,
			})
		}
	}

	return detections
}

// Blocking reports whether any detection is severe enough to refuse the
// submission outright.
func Blocking(detections []Detection) bool {
	for _, det := range detections {
		if det.Severity == SeverityCritical.String() {
			return true
		}
	}
	return false
}

func defaultPatterns() []DetectionPattern {
	return []DetectionPattern{
		{
			Name:        "fork_bomb",
			Description: "Recursive process spawning",
			Regex:       regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\};:|while\s*\(?\s*(true|1)\s*\)?\s*:?\s*\{?\s*(os\.)?fork\(\)`),
			Severity:    SeverityCritical,
		},
		{
			Name:        "process_spawn",
			Description: "Spawning shell commands from a solution",
			Regex:       regexp.MustCompile(`(?i)(subprocess\.|os\.system\(|os\.popen\(|child_process|Runtime\.getRuntime\(\)\.exec|ProcessBuilder|\bpopen\(|\bsystem\(")`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "network_access",
			Description: "Opening network connections from a solution",
			Regex:       regexp.MustCompile(`(?i)(import\s+(socket|requests|urllib)|require\(['"](net|http|https|dgram)['"]\)|java\.net\.|new\s+Socket\(|\bfetch\(\s*['"]https?:)`),
			Severity:    SeverityMedium,
		},
		{
			Name:        "sensitive_file_read",
			Description: "Reading host credential or process files",
			Regex:       regexp.MustCompile(`/etc/(passwd|shadow)|/proc/self/(root|exe|environ|maps)`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "metadata_service",
			Description: "Attempting to reach cloud metadata service",
			Regex:       regexp.MustCompile(`169\.254\.169\.254|metadata\.google|metadata\.aws`),
			Severity:    SeverityCritical,
		},
		{
			Name:        "reverse_shell",
			Description: "Potential reverse shell command",
			Regex:       regexp.MustCompile(`(?i)(nc|ncat|netcat|socat)\s+.*-[elp]|/dev/tcp/|bash\s+-i\s+>&`),
			Severity:    SeverityCritical,
		},
		{
			Name:        "crypto_miner",
			Description: "Potential cryptocurrency mining",
			Regex:       regexp.MustCompile(`(?i)(stratum\+tcp|xmrig|minerd|cryptonight|hashrate)`),
			Severity:    SeverityCritical,
		},
	}
}

package sandbox

import (
	"fmt"
	"strings"
)

const noOutput = "No output produced."

// FormatResult renders an execution result as a human-readable report.
func FormatResult(result *ExecutionResult) string {
	if result == nil {
		return noOutput + "\n"
	}

	var b strings.Builder

	if result.Status.Accepted() {
		b.WriteString("✅ Success!\n\n")
		if out := result.StdoutText(); out != "" {
			fmt.Fprintf(&b, "Output:\n%s\n\n", out)
		} else {
			b.WriteString(noOutput + "\n\n")
		}
	} else {
		desc := result.Status.Description
		if desc == "" {
			desc = fmt.Sprintf("Status %d", result.Status.ID)
		}
		fmt.Fprintf(&b, "❌ %s\n\n", desc)

		stderr, compile := result.StderrText(), result.CompileOutputText()
		if stderr != "" {
			fmt.Fprintf(&b, "Runtime Error:\n%s\n\n", stderr)
		}
		if compile != "" {
			fmt.Fprintf(&b, "Compilation Output:\n%s\n\n", compile)
		}
		if stderr == "" && compile == "" {
			b.WriteString(noOutput + "\n\n")
		}
	}

	if result.Time != nil && *result.Time != "" {
		fmt.Fprintf(&b, "⏱️ Execution Time: %ss\n", *result.Time)
	}
	if result.Memory != nil && *result.Memory > 0 {
		fmt.Fprintf(&b, "💾 Memory Used: %d KB\n", *result.Memory)
	}

	return b.String()
}

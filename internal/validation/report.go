package validation

import (
	"fmt"
	"strings"
)

// RenderReport renders the per-case and aggregate verdict as plain text.
func RenderReport(o *Outcome) string {
	var b strings.Builder

	b.WriteString("Running test cases...\n")
	for _, c := range o.Cases {
		switch c.Status {
		case CasePassed:
			fmt.Fprintf(&b, "Test Case %d: ✓ PASSED%s\n", c.Index, usage(c))
		case CaseFailed:
			fmt.Fprintf(&b, "Test Case %d: ✗ FAILED Expected %q but got %q\n", c.Index, c.Expected, c.Actual)
		default:
			fmt.Fprintf(&b, "Test Case %d: ⚠ ERROR %s\n", c.Index, c.Error)
		}
	}
	b.WriteString("\n")

	switch {
	case o.Total == 0:
		b.WriteString("No test cases to run.\n")
	case o.AllPassed:
		b.WriteString("All tests passed! 🎉\n")
	default:
		fmt.Fprintf(&b, "%d/%d test cases passed.\n", o.Passed, o.Total)
		if f := o.Failure(); f != nil {
			if f.Status == CaseFailed {
				fmt.Fprintf(&b, "Test Case %d Failed: Expected %q but got %q\n", f.Index, f.Expected, f.Actual)
			} else {
				fmt.Fprintf(&b, "Test Case %d Failed: %s\n", f.Index, f.Error)
			}
		}
	}

	if avg := o.AvgRuntime(); avg != "" {
		fmt.Fprintf(&b, "Average Runtime: %s\n", avg)
	}
	if avg := o.AvgMemory(); avg != "" {
		fmt.Fprintf(&b, "Average Memory: %s\n", avg)
	}

	return b.String()
}

func usage(c CaseResult) string {
	switch {
	case c.Runtime != "" && c.Memory != "":
		return fmt.Sprintf(" (Runtime: %s, Memory: %s)", c.Runtime, c.Memory)
	case c.Runtime != "":
		return fmt.Sprintf(" (Runtime: %s)", c.Runtime)
	case c.Memory != "":
		return fmt.Sprintf(" (Memory: %s)", c.Memory)
	}
	return ""
}

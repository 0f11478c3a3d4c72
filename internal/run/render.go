package run

import (
	"fmt"
	"strings"

	"practice-judge/internal/sandbox"
	"practice-judge/internal/validation"
)

const (
	fixHint   = "Please fix the error and try again."
	retryHint = "The execution service did not finish in time. Please try again."
	busyHint  = "Please wait for the current run to finish."
)

func hintFor(kind ErrorKind) string {
	switch kind {
	case KindTimeout, KindProvider:
		return retryHint
	case KindBusy:
		return busyHint
	}
	return fixHint
}

func renderFailure(command string, kind ErrorKind, err error) (terminal, results string) {
	if kind == KindAuthorization {
		return LoginRequired + "\n", LoginRequired + "\n"
	}
	hint := hintFor(kind)
	terminal = fmt.Sprintf("$ %s\n%s\n\n❌ Execution failed\n\n%s\n", command, err, hint)
	results = fmt.Sprintf("❌ Failed\n\nError: %s\n\n%s\n", err, hint)
	return terminal, results
}

func renderOutcome(command string, o *validation.Outcome) (terminal, results string) {
	var t strings.Builder
	fmt.Fprintf(&t, "$ %s\n", command)
	compiled := true
	for _, c := range o.Cases {
		fmt.Fprintf(&t, "Test Case %d Input: %s\n", c.Index, c.Input)
		switch {
		case c.Status == validation.CaseError && c.Actual == "":
			fmt.Fprintf(&t, "Error: %s\n\n", c.Error)
		default:
			fmt.Fprintf(&t, "Output: %s\n\n", c.Actual)
		}
		if c.StatusID == sandbox.StatusCompilationError {
			compiled = false
		}
	}

	var r strings.Builder
	fmt.Fprintf(&r, "$ %s\n", command)
	if compiled {
		r.WriteString("Compiling...\n✓ Compilation successful\n\n")
	} else {
		r.WriteString("Compiling...\n✗ Compilation failed\n\n")
	}
	r.WriteString(o.Report)
	if !o.AllPassed {
		fmt.Fprintf(&r, "\n❌ Failed\n\n%s\n", fixHint)
	}
	return t.String(), r.String()
}

func renderExecution(command string, result *sandbox.ExecutionResult) (terminal, results string) {
	terminal = fmt.Sprintf("$ %s\n%s", command, sandbox.FormatResult(result))
	if result.Status.Accepted() {
		return terminal, "✅ Code executed successfully!\n\nNo test cases provided to validate against.\n"
	}
	return terminal, "❌ Failed\n\n" + sandbox.FormatResult(result)
}

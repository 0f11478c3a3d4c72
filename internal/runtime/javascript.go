package runtime

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsFunctionDecl = regexp.MustCompile(`function\s+(\w+)`)
	jsVarDecl      = regexp.MustCompile(`(?:var|let|const)\s+(\w+)\s*=`)
	jsBodyStart    = regexp.MustCompile(`function[^{]*\{|=>\s*\{`)
	jsBareReturn   = regexp.MustCompile(`^return;?$`)
)

// JavaScriptRuntime adapts Node.js solutions.
type JavaScriptRuntime struct{}

func (j *JavaScriptRuntime) Name() string { return "javascript" }

func (j *JavaScriptRuntime) FileExtension() string { return ".js" }

func (j *JavaScriptRuntime) Command(file string) string { return "node " + file }

func (j *JavaScriptRuntime) HasImplementation(code string) bool {
	clean := stripSlashComments(code)
	loc := jsBodyStart.FindStringIndex(clean)
	if loc == nil {
		return strings.TrimSpace(clean) != ""
	}
	body, ok := braceBody(clean, loc[1]-1)
	if !ok {
		// Unclosed body: leave it to CheckSyntax.
		return true
	}
	body = strings.TrimSpace(body)
	return body != "" && !jsBareReturn.MatchString(body)
}

func (j *JavaScriptRuntime) CheckSyntax(code string) error {
	if strings.Contains(code, "function") && !strings.Contains(code, "{") {
		return errors.New("SyntaxError: Missing opening brace '{'")
	}
	if !balanced(code, "{", "}") {
		return errors.New("SyntaxError: Mismatched braces")
	}
	if !balanced(code, "(", ")") {
		return errors.New("SyntaxError: Mismatched parentheses")
	}
	return nil
}

// RenderArgs renders an array/target input as "[..], N". Other inputs are
// returned verbatim.
func (j *JavaScriptRuntime) RenderArgs(input string) string {
	if list, target, ok := MatchArrayTarget(input); ok {
		return fmt.Sprintf("[%s], %s", list, target)
	}
	return input
}

func (j *JavaScriptRuntime) callable(code string) (string, error) {
	if m := jsFunctionDecl.FindStringSubmatch(code); m != nil {
		return m[1], nil
	}
	if m := jsVarDecl.FindStringSubmatch(code); m != nil {
		return m[1], nil
	}
	return "", ErrCallableNotFound
}

func (j *JavaScriptRuntime) Wrap(code, input string) (Program, error) {
	name, err := j.callable(code)
	if err != nil {
		return Program{}, err
	}

	src := fmt.Sprintf(`%s

// Test execution
try {
  const result = %s(%s);
  console.log(JSON.stringify(result));
} catch (error) {
  console.log("Runtime Error: " + (error && error.message ? error.message : error));
}
`, code, name, j.RenderArgs(input))

	return Program{Source: src}, nil
}

package runtime

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	pyClassSolution = regexp.MustCompile(`(?m)^\s*class\s+Solution\b`)
	pyMethodDecl    = regexp.MustCompile(`def\s+(\w+)\s*\(\s*self\b`)
	pyFunctionDecl  = regexp.MustCompile(`(?m)^def\s+(\w+)\s*\(`)
	pyLambdaDecl    = regexp.MustCompile(`(?m)^(\w+)\s*=\s*lambda\b`)
)

// PythonRuntime adapts Python 3 solutions, either LeetCode-style
// "class Solution" methods or top-level functions.
type PythonRuntime struct{}

func (p *PythonRuntime) Name() string { return "python" }

func (p *PythonRuntime) FileExtension() string { return ".py" }

func (p *PythonRuntime) Command(file string) string { return "python3 " + file }

func (p *PythonRuntime) HasImplementation(code string) bool {
	for _, line := range strings.Split(stripHashComments(code), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "pass" {
			continue
		}
		if strings.HasPrefix(line, "def ") || strings.HasPrefix(line, "class ") || strings.HasSuffix(line, ":") {
			continue
		}
		return true
	}
	return false
}

func (p *PythonRuntime) CheckSyntax(code string) error {
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	for i, line := range lines {
		if strings.HasSuffix(strings.TrimSpace(line), ":") && i == len(lines)-1 {
			return fmt.Errorf("SyntaxError: Expected an indented block after line %d", i+1)
		}
		if strings.Contains(line, "def ") && !strings.Contains(line, ":") {
			return fmt.Errorf("SyntaxError: Invalid function definition at line %d", i+1)
		}
	}
	return nil
}

// RenderArgs renders an array/target input as "[..], N".
func (p *PythonRuntime) RenderArgs(input string) string {
	if list, target, ok := MatchArrayTarget(input); ok {
		return fmt.Sprintf("[%s], %s", list, target)
	}
	return input
}

// callable returns the expression to call, e.g. "Solution().twoSum".
func (p *PythonRuntime) callable(code string) (string, error) {
	if loc := pyClassSolution.FindStringIndex(code); loc != nil {
		if name, ok := firstPublic(pyMethodDecl.FindAllStringSubmatch(code[loc[1]:], -1)); ok {
			return "Solution()." + name, nil
		}
	}
	if name, ok := firstPublic(pyFunctionDecl.FindAllStringSubmatch(code, -1)); ok {
		return name, nil
	}
	if m := pyLambdaDecl.FindStringSubmatch(code); m != nil {
		return m[1], nil
	}
	return "", ErrCallableNotFound
}

func (p *PythonRuntime) Wrap(code, input string) (Program, error) {
	call, err := p.callable(code)
	if err != nil {
		return Program{}, err
	}

	// typing is imported up front since starter code annotates with List[int].
	src := fmt.Sprintf(`from typing import *

%s

# Test execution
import json as _json
try:
    result = %s(%s)
    print(_json.dumps(result, separators=(",", ":"), default=str))
except Exception as error:
    print(f"Runtime Error: {error}")
`, code, call, p.RenderArgs(input))

	return Program{Source: src}, nil
}

// firstPublic returns the first captured name that is not private or a
// dunder such as __init__.
func firstPublic(matches [][]string) (string, bool) {
	for _, m := range matches {
		if !strings.HasPrefix(m[1], "_") {
			return m[1], true
		}
	}
	return "", false
}

package runtime

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	cppClassSolution = regexp.MustCompile(`class\s+Solution\s*\{`)
	cppMethodDecl    = regexp.MustCompile(`public:\s*(?:static\s+)?(?:const\s+)?[\w:<>,\s]*?[\w>]\s*[\*&]?\s+(\w+)\s*\(`)
	cppReturnOnly    = regexp.MustCompile(`^\s*return\b[^;]*;?\s*$`)
)

// CppRuntime adapts "class Solution" solutions. Array arguments are bound
// to a named local first since methods usually take vector<int>&.
type CppRuntime struct{}

func (c *CppRuntime) Name() string { return "cpp" }

func (c *CppRuntime) FileExtension() string { return ".cpp" }

func (c *CppRuntime) Command(file string) string {
	return "g++ -O2 " + file + " && ./a.out"
}

func (c *CppRuntime) HasImplementation(code string) bool {
	clean := stripSlashComments(code)
	loc := cppMethodDecl.FindStringIndex(clean)
	if loc == nil {
		return strings.TrimSpace(clean) != ""
	}
	body, ok := braceBody(clean, loc[1])
	if !ok {
		return true
	}
	body = strings.TrimSpace(body)
	return body != "" && !cppReturnOnly.MatchString(body)
}

func (c *CppRuntime) CheckSyntax(code string) error {
	if !strings.Contains(code, "class Solution") {
		return errors.New("CompileError: Class 'Solution' not found")
	}
	if !balanced(code, "{", "}") {
		return errors.New("CompileError: Mismatched braces")
	}
	return nil
}

// RenderArgs returns the statements that bind arguments and the argument
// list that refers to them.
func (c *CppRuntime) RenderArgs(input string) (setup, args string) {
	if list, target, ok := MatchArrayTarget(input); ok {
		return fmt.Sprintf("std::vector<int> nums{%s};\n        ", list), "nums, " + target
	}
	return "", input
}

func (c *CppRuntime) callable(code string) (string, error) {
	loc := cppClassSolution.FindStringIndex(code)
	if loc == nil {
		return "", ErrCallableNotFound
	}
	m := cppMethodDecl.FindStringSubmatch(code[loc[1]:])
	if m == nil {
		return "", ErrCallableNotFound
	}
	return m[1], nil
}

func (c *CppRuntime) Wrap(code, input string) (Program, error) {
	name, err := c.callable(code)
	if err != nil {
		return Program{}, err
	}
	setup, args := c.RenderArgs(input)

	src := fmt.Sprintf(`#include <bits/stdc++.h>
using namespace std;

%s

static string serialize_result(const vector<int>& v) {
    string out = "[";
    for (size_t i = 0; i < v.size(); i++) {
        if (i > 0) out += ",";
        out += to_string(v[i]);
    }
    return out + "]";
}
static string serialize_result(bool b) { return b ? "true" : "false"; }
static string serialize_result(const string& s) { return s; }
template <typename T>
static string serialize_result(const T& v) {
    ostringstream os;
    os << v;
    return os.str();
}

int main() {
    try {
        %sSolution solution;
        auto result = solution.%s(%s);
        cout << serialize_result(result) << endl;
    } catch (const exception& error) {
        cout << "Runtime Error: " << error.what() << endl;
    }
    return 0;
}
`, code, setup, name, args)

	return Program{Source: src}, nil
}

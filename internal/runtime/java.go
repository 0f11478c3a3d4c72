package runtime

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	javaClassSolution = regexp.MustCompile(`(?:public\s+)?class\s+Solution\s*\{`)
	javaMethodDecl    = regexp.MustCompile(`public\s+(?:static\s+)?(?:final\s+)?[\w<>\[\],.?]+(?:\s*\[\])*\s+(\w+)\s*\(`)
)

// Bodies that only satisfy the compiler are treated as unimplemented.
var javaPlaceholderBodies = map[string]bool{
	"":                    true,
	"return null;":        true,
	"return new int[0];":  true,
	"return new int[]{};": true,
	"return false;":       true,
	"return 0;":           true,
}

// JavaRuntime adapts "class Solution" solutions. The driver lives in a
// separate public Main class since the provider runs "java Main".
type JavaRuntime struct{}

func (j *JavaRuntime) Name() string { return "java" }

func (j *JavaRuntime) FileExtension() string { return ".java" }

func (j *JavaRuntime) Command(file string) string {
	return "javac " + file + " && java Main"
}

func (j *JavaRuntime) HasImplementation(code string) bool {
	clean := stripSlashComments(code)
	loc := javaMethodDecl.FindStringIndex(clean)
	if loc == nil {
		return strings.TrimSpace(clean) != ""
	}
	body, ok := braceBody(clean, loc[1])
	if !ok {
		return true
	}
	return !javaPlaceholderBodies[strings.TrimSpace(body)]
}

func (j *JavaRuntime) CheckSyntax(code string) error {
	if !strings.Contains(code, "class Solution") {
		return errors.New("CompileError: Class 'Solution' not found")
	}
	if !balanced(code, "{", "}") {
		return errors.New("CompileError: Mismatched braces")
	}
	if !strings.Contains(code, "public") {
		return errors.New("CompileError: Method must be public")
	}
	return nil
}

// RenderArgs renders an array/target input as "new int[]{..}, N".
func (j *JavaRuntime) RenderArgs(input string) string {
	if list, target, ok := MatchArrayTarget(input); ok {
		return fmt.Sprintf("new int[]{%s}, %s", list, target)
	}
	return input
}

func (j *JavaRuntime) callable(code string) (string, error) {
	loc := javaClassSolution.FindStringIndex(code)
	if loc == nil {
		return "", ErrCallableNotFound
	}
	m := javaMethodDecl.FindStringSubmatch(code[loc[1]:])
	if m == nil {
		return "", ErrCallableNotFound
	}
	return m[1], nil
}

func (j *JavaRuntime) Wrap(code, input string) (Program, error) {
	name, err := j.callable(code)
	if err != nil {
		return Program{}, err
	}

	// Only Main may be public in Main.java.
	code = strings.Replace(code, "public class Solution", "class Solution", 1)

	src := fmt.Sprintf(`import java.util.*;

%s

public class Main {
    public static void main(String[] args) {
        try {
            Solution solution = new Solution();
            Object result = solution.%s(%s);
            System.out.println(serialize(result));
        } catch (Exception error) {
            System.out.println("Runtime Error: " + error.getMessage());
        }
    }

    private static String serialize(Object value) {
        if (value instanceof int[]) {
            int[] arr = (int[]) value;
            StringBuilder sb = new StringBuilder("[");
            for (int i = 0; i < arr.length; i++) {
                if (i > 0) sb.append(",");
                sb.append(arr[i]);
            }
            return sb.append("]").toString();
        }
        if (value instanceof Collection) {
            StringBuilder sb = new StringBuilder("[");
            int i = 0;
            for (Object item : (Collection<?>) value) {
                if (i++ > 0) sb.append(",");
                sb.append(serialize(item));
            }
            return sb.append("]").toString();
        }
        return String.valueOf(value);
    }
}
`, code, name, j.RenderArgs(input))

	return Program{Source: src}, nil
}

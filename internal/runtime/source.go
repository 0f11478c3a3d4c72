package runtime

import (
	"regexp"
	"strconv"
	"strings"
)

// arrayTargetInput matches inputs shaped like "nums = [2,7,11,15], target = 9".
var arrayTargetInput = regexp.MustCompile(`nums\s*=\s*\[(.*?)\].*?target\s*=\s*(-?\d+)`)

var (
	lineSlashComment  = regexp.MustCompile(`(?m)//.*$`)
	blockSlashComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineHashComment   = regexp.MustCompile(`(?m)#.*$`)
)

// MatchArrayTarget extracts the raw list body and the target from an
// array/target input. The list body is returned without brackets, with
// whitespace around elements removed.
func MatchArrayTarget(input string) (list, target string, ok bool) {
	m := arrayTargetInput.FindStringSubmatch(input)
	if m == nil {
		return "", "", false
	}
	parts := splitList(m[1])
	return strings.Join(parts, ","), m[2], true
}

// ParseArrayTarget is MatchArrayTarget with integer conversion. Inputs
// whose list holds anything but integers do not match.
func ParseArrayTarget(input string) (nums []int, target int, ok bool) {
	list, t, ok := MatchArrayTarget(input)
	if !ok {
		return nil, 0, false
	}
	target, err := strconv.Atoi(t)
	if err != nil {
		return nil, 0, false
	}
	nums = []int{}
	for _, p := range splitList(list) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, 0, false
		}
		nums = append(nums, n)
	}
	return nums, target, true
}

func splitList(body string) []string {
	var parts []string
	for _, p := range strings.Split(body, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func stripSlashComments(code string) string {
	code = blockSlashComment.ReplaceAllString(code, "")
	return lineSlashComment.ReplaceAllString(code, "")
}

func stripHashComments(code string) string {
	return lineHashComment.ReplaceAllString(code, "")
}

// braceBody returns the text between the first '{' at or after from and
// its matching '}'. ok is false when there is no opening brace or it is
// never closed.
func braceBody(code string, from int) (body string, ok bool) {
	if from < 0 || from > len(code) {
		return "", false
	}
	open := strings.IndexByte(code[from:], '{')
	if open < 0 {
		return "", false
	}
	start := from + open + 1
	depth := 1
	for i := start; i < len(code); i++ {
		switch code[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return code[start:i], true
			}
		}
	}
	return "", false
}

func balanced(code string, open, close string) bool {
	return strings.Count(code, open) == strings.Count(code, close)
}

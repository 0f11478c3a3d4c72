package runtime

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCallableNotFound is returned when the harness cannot find the user's
// entry point in the submitted source.
var ErrCallableNotFound = errors.New("could not determine function/method name")

// Program is a complete, directly executable program plus its stdin.
type Program struct {
	Source string
	Stdin  string
}

// Runtime adapts function-style solutions in one language into whole
// programs, and carries the static checks used by the offline simulator.
type Runtime interface {
	// Name returns the language identifier (e.g., "javascript", "python").
	Name() string

	// FileExtension returns the source file extension (e.g., ".py").
	FileExtension() string

	// Command returns the shell line shown in run transcripts for the
	// given source file name.
	Command(file string) string

	// HasImplementation reports whether the code contains a non-trivial
	// body. Comments are ignored.
	HasImplementation(code string) bool

	// CheckSyntax performs best-effort structural checks. The returned
	// error text is user-facing, e.g. "SyntaxError: Mismatched braces".
	CheckSyntax(code string) error

	// Wrap appends a driver that calls the user's callable with arguments
	// rendered from a test-case input and prints a single-line result.
	Wrap(code, input string) (Program, error)
}

// Registry maps language names to their Runtime implementations.
type Registry struct {
	runtimes map[string]Runtime
}

// NewRegistry creates a registry with every language that has a harness.
func NewRegistry() *Registry {
	r := &Registry{
		runtimes: make(map[string]Runtime),
	}
	r.Register(&JavaScriptRuntime{})
	r.Register(&PythonRuntime{})
	r.Register(&JavaRuntime{})
	r.Register(&CppRuntime{})
	return r
}

// Register adds a runtime to the registry.
func (r *Registry) Register(rt Runtime) {
	r.runtimes[rt.Name()] = rt
}

// Get returns the runtime registered for the given language.
func (r *Registry) Get(language string) (Runtime, error) {
	rt, ok := r.runtimes[language]
	if !ok {
		return nil, fmt.Errorf("no harness for language %q (available: %v)", language, r.Languages())
	}
	return rt, nil
}

// Lookup returns the registered runtime, or a passthrough runtime that
// submits code unchanged and feeds the test input on stdin.
func (r *Registry) Lookup(language string) Runtime {
	if rt, ok := r.runtimes[language]; ok {
		return rt
	}
	return &PassthroughRuntime{Language: language}
}

// Languages returns all registered language names.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.runtimes))
	for name := range r.runtimes {
		langs = append(langs, name)
	}
	sort.Strings(langs)
	return langs
}

package runtime

// PassthroughRuntime serves languages without a harness. The code must be a
// whole program; the test input is handed to it on stdin.
type PassthroughRuntime struct {
	Language string
}

func (p *PassthroughRuntime) Name() string { return p.Language }

func (p *PassthroughRuntime) FileExtension() string { return "." + p.Language }

func (p *PassthroughRuntime) Command(file string) string { return "run " + file }

func (p *PassthroughRuntime) HasImplementation(code string) bool { return true }

func (p *PassthroughRuntime) CheckSyntax(code string) error { return nil }

func (p *PassthroughRuntime) Wrap(code, input string) (Program, error) {
	return Program{Source: code, Stdin: input}, nil
}

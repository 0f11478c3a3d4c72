// Package problems holds the practice problem catalog and the daily puzzle
// schedule. The catalog is compiled into the binary.
package problems

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"practice-judge/internal/validation"
)

//go:embed catalog.yaml
var catalogYAML []byte

var ErrNotFound = errors.New("problem not found")

type Example struct {
	Input       string `yaml:"input" json:"input"`
	Output      string `yaml:"output" json:"output"`
	Explanation string `yaml:"explanation,omitempty" json:"explanation,omitempty"`
}

type Problem struct {
	ID          string            `yaml:"id" json:"id"`
	Title       string            `yaml:"title" json:"title"`
	Difficulty  string            `yaml:"difficulty" json:"difficulty"`
	Tags        []string          `yaml:"tags" json:"tags"`
	Description string            `yaml:"description" json:"description"`
	Examples    []Example         `yaml:"examples" json:"examples"`
	Constraints []string          `yaml:"constraints" json:"constraints"`
	StarterCode map[string]string `yaml:"starter_code" json:"starter_code"`
	Solution    map[string]string `yaml:"solution" json:"-"`
}

// TestCases converts the examples into validation cases.
func (p *Problem) TestCases() []validation.TestCase {
	cases := make([]validation.TestCase, 0, len(p.Examples))
	for _, ex := range p.Examples {
		cases = append(cases, validation.TestCase{Input: ex.Input, ExpectedOutput: ex.Output})
	}
	return cases
}

// Starter returns the starter code for language, or "" if none exists.
func (p *Problem) Starter(language string) string {
	return p.StarterCode[language]
}

// Catalog is an immutable set of problems keyed by id.
type Catalog struct {
	byID  map[string]*Problem
	order []string
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse builds a catalog from a YAML list of problems.
func Parse(data []byte) (*Catalog, error) {
	var list []*Problem
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing problem catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]*Problem, len(list))}
	for i, p := range list {
		if p.ID == "" {
			return nil, fmt.Errorf("problem %d: missing id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("problem %q: duplicate id", p.ID)
		}
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

func (c *Catalog) Get(id string) (*Problem, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// List returns problems in catalog order.
func (c *Catalog) List() []*Problem {
	out := make([]*Problem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Tags returns the distinct tags across the catalog, sorted.
func (c *Catalog) Tags() []string {
	seen := make(map[string]bool)
	var tags []string
	for _, p := range c.byID {
		for _, t := range p.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// internal/scenario/suite.go
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
	"gopkg.in/yaml.v3"
)

// Step is one line of a scenario. DocString carries the multi-line text some
// steps take as an argument.
type Step struct {
	Text      string `yaml:"step"`
	DocString string `yaml:"text,omitempty"`
}

// UnmarshalYAML accepts either a bare string or a {step, text} mapping.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Text = node.Value
		return nil
	}
	type plain Step
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Step(p)
	return nil
}

// Scenario is a named sequence of steps.
type Scenario struct {
	Name  string   `yaml:"name"`
	Tags  []string `yaml:"tags,omitempty"`
	Steps []Step   `yaml:"steps"`
}

// HasTag reports whether tag is set on the scenario.
func (s Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Suite is the content of a scenario file.
type Suite struct {
	// Expected adds entries to the built-in table. Use a "|-" block so YAML
	// does not append a newline to the document.
	Expected  map[string]string `yaml:"expected,omitempty"`
	Scenarios []Scenario        `yaml:"scenarios"`
}

// LoadFile reads and validates a YAML scenario file.
func LoadFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	suite, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suite, nil
}

// Parse decodes and validates a YAML scenario document.
func Parse(data []byte) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("invalid scenario YAML: %w", err)
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return &suite, nil
}

// Validate checks names, steps and the well-formedness of expected documents.
func (s *Suite) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(s.Scenarios))
	for i, sc := range s.Scenarios {
		name := strings.TrimSpace(sc.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("scenario #%d has no name", i+1))
		case seen[name]:
			errs = append(errs, fmt.Errorf("scenario %q is defined twice", name))
		}
		seen[name] = true
		if len(sc.Steps) == 0 {
			errs = append(errs, fmt.Errorf("scenario %q has no steps", sc.Name))
		}
		for j, st := range sc.Steps {
			if strings.TrimSpace(st.Text) == "" {
				errs = append(errs, fmt.Errorf("scenario %q step #%d is empty", sc.Name, j+1))
			}
		}
	}
	for name, doc := range s.Expected {
		if err := CheckWellFormed(doc); err != nil {
			errs = append(errs, fmt.Errorf("expected document for %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Table returns base extended with the suite's expected documents.
func (s *Suite) Table(base *Table) (*Table, error) {
	if base == nil {
		base = Builtin()
	}
	return base.With(s.Expected)
}

// Find returns the scenario called name.
func (s *Suite) Find(name string) (Scenario, error) {
	for _, sc := range s.Scenarios {
		if sc.Name == name {
			return sc, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

// CheckWellFormed reports whether doc parses as an XML document with a root
// element.
func CheckWellFormed(doc string) error {
	d := etree.NewDocument()
	if err := d.ReadFromString(doc); err != nil {
		return fmt.Errorf("not well-formed XML: %w", err)
	}
	if d.Root() == nil {
		return errors.New("not well-formed XML: no root element")
	}
	return nil
}

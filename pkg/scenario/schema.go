// Package scenario loads, validates, and executes declarative UI test
// scenarios. A scenario is a YAML document with an ordered step list; each
// step performs one action and optionally asserts on the resulting state.
package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/oracle"
	"github.com/ormasoftchile/axtest/pkg/selector"
	"github.com/ormasoftchile/axtest/pkg/target"
)

// APIVersion is the document version this build understands.
const APIVersion = "scenario/v1"

// Scenario is a declarative step sequence against one target application.
type Scenario struct {
	APIVersion string      `yaml:"apiVersion"       json:"apiVersion"`
	Meta       Meta        `yaml:"meta"             json:"meta"`
	Target     target.Spec `yaml:"target"           json:"target"`
	Steps      []Step      `yaml:"steps"            json:"steps"`
}

// Meta carries scenario identity and description.
type Meta struct {
	Name        string `yaml:"name"                  json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Step is one action with optional expectations. Expect clauses are
// evaluated after the action succeeds; MustExist selectors are checked as
// part of the oracle pass.
type Step struct {
	ID        string              `yaml:"id"                   json:"id"`
	Name      string              `yaml:"name,omitempty"       json:"name,omitempty"`
	Action    action.Action       `yaml:"action"               json:"action"`
	Expect    []oracle.Assertion  `yaml:"expect,omitempty"     json:"expect,omitempty"`
	MustExist []selector.Selector `yaml:"must_exist,omitempty" json:"must_exist,omitempty"`
}

// LoadFile parses a scenario YAML file with strict unknown-field rejection.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a scenario document from r.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document for the
// Scenario format, exported by the CLI for editor tooling.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Scenario{})
	s.ID = "https://github.com/ormasoftchile/axtest/schemas/scenario-v1.json"
	s.Title = "axtest Scenario v1"
	s.Description = "Schema for declarative axtest UI scenarios"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scenario schema: %w", err)
	}
	return data, nil
}

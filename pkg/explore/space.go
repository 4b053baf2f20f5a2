// Package explore generates bounded random action sequences against a live
// target. All randomness derives from one seeded generator so a seed plus an
// identical starting UI state reproduces the exact same sequence.
package explore

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/axtest/pkg/action"
)

// Template is one candidate action with selection weight and gating.
type Template struct {
	Name string `yaml:"name" json:"name"`

	Action action.Action `yaml:"action" json:"action"`

	// Weight is the relative selection weight among valid candidates.
	// Zero means 1.
	Weight int `yaml:"weight,omitempty" json:"weight,omitempty"`

	// Precondition is an expression over the live element tree; the template
	// is only a candidate while it holds. Empty means always valid.
	Precondition string `yaml:"precondition,omitempty" json:"precondition,omitempty"`

	// Destructive marks actions that can lose user state. Never selected
	// unless the policy allows them, and even then only after confirmation.
	Destructive bool `yaml:"destructive,omitempty" json:"destructive,omitempty"`
}

// EffectiveWeight returns the weight with the zero default applied.
func (t Template) EffectiveWeight() int {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

// destructiveNameRe flags element names that suggest irreversible effect,
// used to catch templates whose author forgot the destructive flag.
var destructiveNameRe = regexp.MustCompile(`(?i)\b(delete|remove|drop|exit|quit|close|shutdown)\b`)

// LooksDestructive reports whether the template targets an element whose
// identifier reads as destructive.
func (t Template) LooksDestructive() bool {
	if t.Destructive {
		return true
	}
	sel := t.Action.Args.Selector
	if sel == nil {
		return false
	}
	return destructiveNameRe.MatchString(sel.AutomationID) || destructiveNameRe.MatchString(sel.Name)
}

// Policy is the active safety policy for a run.
type Policy struct {
	// AllowDestructive permits destructive templates into the candidate set.
	AllowDestructive bool `yaml:"allow_destructive" json:"allow_destructive"`

	// DestructivePatterns extend the built-in name heuristic, typically
	// loaded from the active profile. Matched against template names and
	// target element identifiers.
	DestructivePatterns []*regexp.Regexp `yaml:"-" json:"-"`

	// Confirm is the second, explicit gate for a selected destructive
	// action. Nil denies everything: allowing destructive actions without
	// wiring a confirmer must not silently execute them.
	Confirm func(a action.Action) bool `yaml:"-" json:"-"`
}

// Destructive reports whether the template is gated under this policy,
// either by its own flag and name heuristic or by a configured pattern.
func (p Policy) Destructive(t Template) bool {
	if t.LooksDestructive() {
		return true
	}
	sel := t.Action.Args.Selector
	for _, re := range p.DestructivePatterns {
		if re.MatchString(t.Name) {
			return true
		}
		if sel != nil && (re.MatchString(sel.AutomationID) || re.MatchString(sel.Name)) {
			return true
		}
	}
	return false
}

// Space is the complete exploration input, loadable from YAML.
type Space struct {
	Name       string          `yaml:"name"                 json:"name"`
	Templates  []Template      `yaml:"templates"            json:"templates"`
	Invariants []InvariantDecl `yaml:"invariants,omitempty" json:"invariants,omitempty"`
}

// InvariantDecl mirrors oracle.Invariant for YAML loading.
type InvariantDecl struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

// LoadSpaceFile parses an action-space YAML file with strict unknown-field
// rejection.
func LoadSpaceFile(path string) (*Space, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open action space: %w", err)
	}
	defer f.Close()
	return LoadSpace(f)
}

// LoadSpace parses an action-space document from r.
func LoadSpace(r io.Reader) (*Space, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sp Space
	if err := dec.Decode(&sp); err != nil {
		return nil, fmt.Errorf("parse action space: %w", err)
	}
	if err := sp.Validate(); err != nil {
		return nil, err
	}
	return &sp, nil
}

// Validate checks the space for structural problems.
func (sp *Space) Validate() error {
	if len(sp.Templates) == 0 {
		return fmt.Errorf("action space %q has no templates", sp.Name)
	}
	seen := make(map[string]bool)
	for i, t := range sp.Templates {
		if t.Name == "" {
			return fmt.Errorf("templates[%d]: name required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("templates[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
		if err := action.Validate(t.Action); err != nil {
			return fmt.Errorf("template %q: %w", t.Name, err)
		}
		if t.Weight < 0 {
			return fmt.Errorf("template %q: negative weight", t.Name)
		}
	}
	for i, inv := range sp.Invariants {
		if strings.TrimSpace(inv.Expr) == "" {
			return fmt.Errorf("invariants[%d]: expr required", i)
		}
	}
	return nil
}

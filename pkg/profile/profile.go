// Package profile manages named target profiles: how to find or launch an
// application together with its timeouts and safety policy. Profiles live
// in a single profiles.yaml file and are referenced by name from the CLI.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/axtest/pkg/target"
)

const (
	DefaultStartupTimeout = 15 * time.Second
	DefaultActionTimeout  = 10 * time.Second
)

// Safety is the per-profile destructive-action policy.
type Safety struct {
	AllowDestructive bool `yaml:"allow_destructive,omitempty" json:"allow_destructive,omitempty"`

	// DestructivePatterns extend the built-in name heuristics. Each entry
	// is a regular expression matched case-insensitively against template
	// names and target element identifiers during exploration.
	DestructivePatterns []string `yaml:"destructive_patterns,omitempty" json:"destructive_patterns,omitempty"`
}

// CompiledPatterns compiles the destructive patterns for matching. Patterns
// are forced case-insensitive to line up with the built-in name heuristic.
func (s Safety) CompiledPatterns() ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(s.DestructivePatterns))
	for _, p := range s.DestructivePatterns {
		re, err := regexp.Compile("(?i:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("destructive pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

// Timeouts holds per-profile limits as duration strings ("15s", "500ms").
// Empty fields fall back to the package defaults.
type Timeouts struct {
	Startup string `yaml:"startup,omitempty" json:"startup,omitempty"`
	Action  string `yaml:"action,omitempty"  json:"action,omitempty"`
}

// Startup returns the parsed startup timeout.
func (t Timeouts) StartupTimeout() time.Duration {
	return parseOr(t.Startup, DefaultStartupTimeout)
}

// ActionTimeout returns the parsed per-action timeout.
func (t Timeouts) ActionTimeout() time.Duration {
	return parseOr(t.Action, DefaultActionTimeout)
}

func parseOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Profile names one application under test.
type Profile struct {
	Name     string      `yaml:"name"               json:"name"`
	Target   target.Spec `yaml:"target"             json:"target"`
	Space    string      `yaml:"space,omitempty"    json:"space,omitempty"` // action-space file for exploration
	Timeouts Timeouts    `yaml:"timeouts,omitempty" json:"timeouts,omitempty"`
	Safety   Safety      `yaml:"safety,omitempty"   json:"safety,omitempty"`
}

// Validate applies the domain rules a profile must satisfy before use.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if p.Target.IsZero() {
		return fmt.Errorf("profile %q: target needs one of pid, process, exe, title_re", p.Name)
	}
	if p.Target.TitleRe != "" {
		if _, err := regexp.Compile(p.Target.TitleRe); err != nil {
			return fmt.Errorf("profile %q: invalid title_re: %w", p.Name, err)
		}
	}
	for _, pat := range p.Safety.DestructivePatterns {
		if _, err := regexp.Compile(pat); err != nil {
			return fmt.Errorf("profile %q: invalid destructive pattern %q: %w", p.Name, pat, err)
		}
	}
	for _, s := range []string{p.Timeouts.Startup, p.Timeouts.Action} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("profile %q: invalid timeout %q: %w", p.Name, s, err)
		}
	}
	return nil
}

type document struct {
	Profiles []*Profile `yaml:"profiles"`
}

// Store reads and writes the profiles.yaml document.
type Store struct {
	Path string
}

// Load parses the full document. A missing file is an empty store.
func (s *Store) Load() ([]*Profile, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	for _, p := range doc.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Profiles, nil
}

// Get returns the named profile or an error naming what exists.
func (s *Store) Get(name string) (*Profile, error) {
	profiles, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("profile %q not found in %s", name, s.Path)
}

// Add appends a new profile. Duplicate names are rejected.
func (s *Store) Add(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	profiles, err := s.Load()
	if err != nil {
		return err
	}
	for _, existing := range profiles {
		if existing.Name == p.Name {
			return fmt.Errorf("profile %q already exists", p.Name)
		}
	}
	return s.save(append(profiles, p))
}

// Remove deletes the named profile, reporting whether it existed.
func (s *Store) Remove(name string) (bool, error) {
	profiles, err := s.Load()
	if err != nil {
		return false, err
	}
	kept := profiles[:0]
	for _, p := range profiles {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(profiles) {
		return false, nil
	}
	return true, s.save(kept)
}

// Update replaces an existing profile in place.
func (s *Store) Update(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	profiles, err := s.Load()
	if err != nil {
		return err
	}
	for i, existing := range profiles {
		if existing.Name == p.Name {
			profiles[i] = p
			return s.save(profiles)
		}
	}
	return fmt.Errorf("profile %q not found", p.Name)
}

func (s *Store) save(profiles []*Profile) error {
	data, err := yaml.Marshal(document{Profiles: profiles})
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}

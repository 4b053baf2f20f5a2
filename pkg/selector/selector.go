// Package selector implements UI element identification and the ordered
// resolution chain used by the executor: automation id first, then
// name+control type, then bounding-rect center as a last resort. Resolution
// returns a typed outcome so callers can distinguish "no match" from
// "too many matches" deterministically.
package selector

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/axtest/pkg/driver"
)

// Selector identifies a UI element by accessibility properties.
// Fields form a disjunction in priority order; Index disambiguates when a
// key legitimately matches several elements (e.g. repeated list rows).
type Selector struct {
	AutomationID string       `json:"automation_id,omitempty" yaml:"automation_id,omitempty"`
	Name         string       `json:"name,omitempty"          yaml:"name,omitempty"`
	ControlType  string       `json:"control_type,omitempty"  yaml:"control_type,omitempty"`
	Index        *int         `json:"index,omitempty"         yaml:"index,omitempty"`
	Rect         *driver.Rect `json:"bounding_rect,omitempty" yaml:"bounding_rect,omitempty"`
}

// IsZero reports whether no identifying field is set.
func (s Selector) IsZero() bool {
	return s.AutomationID == "" && s.Name == "" && s.ControlType == "" && s.Rect == nil
}

// Describe renders the selector for error messages and repro steps.
func (s Selector) Describe() string {
	var parts []string
	if s.AutomationID != "" {
		parts = append(parts, fmt.Sprintf("aid=%s", s.AutomationID))
	}
	if s.Name != "" {
		parts = append(parts, fmt.Sprintf("name=%q", s.Name))
	}
	if s.ControlType != "" {
		parts = append(parts, fmt.Sprintf("type=%s", s.ControlType))
	}
	if s.Index != nil {
		parts = append(parts, fmt.Sprintf("idx=%d", *s.Index))
	}
	if s.Rect != nil {
		parts = append(parts, fmt.Sprintf("rect=(%d,%d)", s.Rect.CenterX(), s.Rect.CenterY()))
	}
	if len(parts) == 0 {
		return "(empty selector)"
	}
	return strings.Join(parts, ", ")
}

// Outcome classifies a resolution attempt.
type Outcome int

const (
	// Unique means exactly one element matched.
	Unique Outcome = iota
	// NotFound means nothing matched any stage of the chain.
	NotFound
	// Ambiguous means a stage matched more than one element and no Index
	// was given to pick between them.
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Unique:
		return "unique"
	case NotFound:
		return "not_found"
	case Ambiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Resolve walks the chain against a live element snapshot. The first stage
// with at least one match decides the result; later stages are never
// consulted once an earlier key is set and matched, so a stale automation id
// does not silently fall through to a name match.
func Resolve(s Selector, els []driver.Element) (driver.Element, Outcome) {
	if s.AutomationID != "" {
		return pick(s, matchBy(els, func(e driver.Element) bool {
			return e.AutomationID == s.AutomationID
		}))
	}
	if s.Name != "" || s.ControlType != "" {
		return pick(s, matchBy(els, func(e driver.Element) bool {
			if s.Name != "" && e.Name != s.Name {
				return false
			}
			if s.ControlType != "" && e.ControlType != s.ControlType {
				return false
			}
			return true
		}))
	}
	if s.Rect != nil {
		cx, cy := s.Rect.CenterX(), s.Rect.CenterY()
		return pick(s, matchBy(els, func(e driver.Element) bool {
			return containsPoint(e.Rect, cx, cy)
		}))
	}
	return driver.Element{}, NotFound
}

func pick(s Selector, matches []driver.Element) (driver.Element, Outcome) {
	switch {
	case len(matches) == 0:
		return driver.Element{}, NotFound
	case len(matches) == 1:
		return matches[0], Unique
	case s.Index != nil:
		if *s.Index < 0 || *s.Index >= len(matches) {
			return driver.Element{}, NotFound
		}
		return matches[*s.Index], Unique
	default:
		return driver.Element{}, Ambiguous
	}
}

func matchBy(els []driver.Element, fn func(driver.Element) bool) []driver.Element {
	var out []driver.Element
	for _, e := range els {
		if fn(e) {
			out = append(out, e)
		}
	}
	return out
}

func containsPoint(r driver.Rect, x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

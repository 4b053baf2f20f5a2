package oracle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/selector"
)

// Assertion is one declared expectation over an element. Exactly one
// predicate field is set; Evaluate rejects assertions with none set.
type Assertion struct {
	Selector selector.Selector `yaml:"selector"                       json:"selector"`

	Exists            *bool  `yaml:"exists,omitempty"              json:"exists,omitempty"`
	TextEquals        string `yaml:"text_equals,omitempty"         json:"text_equals,omitempty"`
	TextContains      string `yaml:"text_contains,omitempty"       json:"text_contains,omitempty"`
	Enabled           *bool  `yaml:"enabled,omitempty"             json:"enabled,omitempty"`
	Selected          *bool  `yaml:"selected,omitempty"            json:"selected,omitempty"`
	ValueEquals       string `yaml:"value_equals,omitempty"        json:"value_equals,omitempty"`
	Matches           string `yaml:"matches,omitempty"             json:"matches,omitempty"`
	CountGreaterEqual *int   `yaml:"count_greater_equal,omitempty" json:"count_greater_equal,omitempty"`
}

// AssertionResult carries the outcome of one assertion, with the observed
// value preserved for the ticket.
type AssertionResult struct {
	Type     string `json:"type"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message"`
}

// Finding converts a failed assertion result to an AssertionMismatch
// finding against the given element snapshot.
func (r *AssertionResult) Finding(els []driver.Element) *Finding {
	if r.Passed {
		return nil
	}
	return &Finding{
		Kind:     AssertionMismatch,
		Message:  r.Message,
		Expected: r.Expected,
		Actual:   r.Actual,
		Snapshot: &Snapshot{Elements: els},
	}
}

// Evaluate runs a single assertion against the element tree. Except for
// exists=false and count predicates, an unresolvable selector fails the
// assertion rather than erroring: an element the caller expected to inspect
// being absent is exactly the condition assertions exist to catch.
func Evaluate(a Assertion, els []driver.Element) *AssertionResult {
	if a.CountGreaterEqual != nil {
		return evalCount(a, els)
	}

	el, outcome := selector.Resolve(a.Selector, els)

	if a.Exists != nil {
		found := outcome == selector.Unique || outcome == selector.Ambiguous
		passed := found == *a.Exists
		msg := fmt.Sprintf("element %s exists=%v", a.Selector.Describe(), found)
		return &AssertionResult{
			Type:     "exists",
			Passed:   passed,
			Expected: fmt.Sprintf("%v", *a.Exists),
			Actual:   fmt.Sprintf("%v", found),
			Message:  msg,
		}
	}

	if outcome != selector.Unique {
		return &AssertionResult{
			Type:    assertType(a),
			Passed:  false,
			Message: fmt.Sprintf("element %s not resolvable (%s)", a.Selector.Describe(), outcome),
		}
	}

	text := elementText(el)
	switch {
	case a.TextEquals != "":
		return textResult("text_equals", a.TextEquals, text, text == a.TextEquals)
	case a.TextContains != "":
		return textResult("text_contains", a.TextContains, text, strings.Contains(text, a.TextContains))
	case a.ValueEquals != "":
		return textResult("value_equals", a.ValueEquals, el.Value, el.Value == a.ValueEquals)
	case a.Matches != "":
		re, err := regexp.Compile(a.Matches)
		if err != nil {
			return &AssertionResult{
				Type:    "matches",
				Passed:  false,
				Message: fmt.Sprintf("invalid pattern %q: %v", a.Matches, err),
			}
		}
		return textResult("matches", a.Matches, text, re.MatchString(text))
	case a.Enabled != nil:
		return boolResult("enabled", *a.Enabled, el.Enabled)
	case a.Selected != nil:
		return boolResult("selected", *a.Selected, el.Selected)
	}

	return &AssertionResult{
		Type:    "unknown",
		Passed:  false,
		Message: "no assertion predicate set",
	}
}

// EvaluateAll runs assertions in order and returns the first failure, or
// nil when all pass.
func EvaluateAll(asserts []Assertion, els []driver.Element) *Finding {
	for _, a := range asserts {
		if r := Evaluate(a, els); !r.Passed {
			return r.Finding(els)
		}
	}
	return nil
}

func evalCount(a Assertion, els []driver.Element) *AssertionResult {
	n := 0
	for _, el := range els {
		if selectorMatches(a.Selector, el) {
			n++
		}
	}
	want := *a.CountGreaterEqual
	return &AssertionResult{
		Type:     "count_greater_equal",
		Passed:   n >= want,
		Expected: fmt.Sprintf(">= %d", want),
		Actual:   fmt.Sprintf("%d", n),
		Message:  fmt.Sprintf("%d element(s) match %s, want >= %d", n, a.Selector.Describe(), want),
	}
}

func selectorMatches(s selector.Selector, el driver.Element) bool {
	if s.AutomationID != "" {
		return el.AutomationID == s.AutomationID
	}
	if s.Name != "" && el.Name != s.Name {
		return false
	}
	if s.ControlType != "" && el.ControlType != s.ControlType {
		return false
	}
	return s.Name != "" || s.ControlType != ""
}

// elementText resolves the display text: value when present, name otherwise.
// Matches what read_text reports so assertions and observed state agree.
func elementText(el driver.Element) string {
	if el.Value != "" {
		return el.Value
	}
	return el.Name
}

func textResult(typ, expected, actual string, passed bool) *AssertionResult {
	msg := fmt.Sprintf("%s: got %q, want %q", typ, actual, expected)
	if passed {
		msg = fmt.Sprintf("%s: %q", typ, actual)
	}
	return &AssertionResult{
		Type:     typ,
		Passed:   passed,
		Expected: expected,
		Actual:   actual,
		Message:  msg,
	}
}

func boolResult(typ string, expected, actual bool) *AssertionResult {
	return &AssertionResult{
		Type:     typ,
		Passed:   expected == actual,
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", actual),
		Message:  fmt.Sprintf("%s: got %v, want %v", typ, actual, expected),
	}
}

func assertType(a Assertion) string {
	switch {
	case a.TextEquals != "":
		return "text_equals"
	case a.TextContains != "":
		return "text_contains"
	case a.ValueEquals != "":
		return "value_equals"
	case a.Matches != "":
		return "matches"
	case a.Enabled != nil:
		return "enabled"
	case a.Selected != nil:
		return "selected"
	}
	return "unknown"
}

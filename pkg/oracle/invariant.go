package oracle

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/selector"
)

// Invariant is a user-declared property over observable UI state, evaluated
// after every exploration action. The expression must yield a bool; it runs
// against helpers bound to the current element tree:
//
//	exists("OkButton")       element with that automation id or name is present
//	enabled("OkButton")      present and enabled
//	selected("OptionCheck")  present and selected
//	text("StatusLabel")      display text, "" when absent
//	value("NameBox")         value property, "" when absent
//	count("Button")          number of elements of that control type
//	windows                  number of top-level windows
type Invariant struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

// EvalInvariants evaluates invariants in declared order against the element
// tree and returns a finding for the first violation or evaluation error.
// A broken expression is a violation too: an invariant that cannot be
// evaluated is not protecting anything.
func EvalInvariants(invs []Invariant, els []driver.Element, windows []driver.Window) *Finding {
	if len(invs) == 0 {
		return nil
	}
	env := invariantEnv(els, windows)
	for _, inv := range invs {
		ok, err := evalBool(inv.Expr, env)
		if err != nil {
			return &Finding{
				Kind:     InvariantViolation,
				Message:  fmt.Sprintf("invariant %q: %v", inv.Name, err),
				Expected: inv.Expr,
				Snapshot: &Snapshot{Elements: els, Windows: windows},
			}
		}
		if !ok {
			return &Finding{
				Kind:     InvariantViolation,
				Message:  fmt.Sprintf("invariant %q violated", inv.Name),
				Expected: inv.Expr,
				Snapshot: &Snapshot{Elements: els, Windows: windows},
			}
		}
	}
	return nil
}

// ExprEnv builds the expression environment bound to the given UI state.
// Exploration preconditions evaluate against the same helpers as invariants.
func ExprEnv(els []driver.Element, windows []driver.Window) map[string]any {
	return invariantEnv(els, windows)
}

// EvalPredicate evaluates a boolean expression against an ExprEnv.
func EvalPredicate(exprStr string, env map[string]any) (bool, error) {
	return evalBool(exprStr, env)
}

func evalBool(exprStr string, env map[string]any) (bool, error) {
	program, err := expr.Compile(exprStr, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile %q: %w", exprStr, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", exprStr, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("%q did not return bool (got %T)", exprStr, output)
	}
	return result, nil
}

func invariantEnv(els []driver.Element, windows []driver.Window) map[string]any {
	find := func(key string) (driver.Element, bool) {
		el, outcome := selector.Resolve(selector.Selector{AutomationID: key}, els)
		if outcome == selector.Unique {
			return el, true
		}
		el, outcome = selector.Resolve(selector.Selector{Name: key}, els)
		return el, outcome == selector.Unique
	}
	return map[string]any{
		"windows": len(windows),
		"exists": func(key string) bool {
			_, ok := find(key)
			return ok
		},
		"enabled": func(key string) bool {
			el, ok := find(key)
			return ok && el.Enabled
		},
		"selected": func(key string) bool {
			el, ok := find(key)
			return ok && el.Selected
		},
		"text": func(key string) string {
			el, ok := find(key)
			if !ok {
				return ""
			}
			return elementText(el)
		},
		"value": func(key string) string {
			el, ok := find(key)
			if !ok {
				return ""
			}
			return el.Value
		},
		"count": func(controlType string) int {
			n := 0
			for _, el := range els {
				if el.ControlType == controlType {
					n++
				}
			}
			return n
		},
	}
}

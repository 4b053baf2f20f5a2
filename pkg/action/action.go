// Package action defines the structured action envelope that flows through
// the whole system: scenario steps, random exploration, the decision-source
// boundary, the action log, replay, and minimization all traffic in the same
// immutable Action value. The tool set is closed; anything outside it is
// rejected at the boundary before it can reach the driver.
package action

import (
	"fmt"
	"time"

	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/selector"
)

// Tool names the primitive an Action performs. The set is closed; Validate
// rejects unknown tools.
type Tool string

const (
	FocusWindow  Tool = "focus_window"
	Click        Tool = "click"
	TypeText     Tool = "type_text"
	Toggle       Tool = "toggle"
	SelectItem   Tool = "select_item"
	ReadText     Tool = "read_text"
	GetState     Tool = "get_state"
	WaitFor      Tool = "wait_for"
	Screenshot   Tool = "screenshot"
	ListElements Tool = "list_elements"
	ListWindows  Tool = "list_windows"
)

// Tools lists every known tool in a stable order.
var Tools = []Tool{
	FocusWindow, Click, TypeText, Toggle, SelectItem,
	ReadText, GetState, WaitFor, Screenshot, ListElements, ListWindows,
}

// Mutating reports whether the tool changes application state. The UI guard
// gates exactly these; read-only tools always bypass it.
func (t Tool) Mutating() bool {
	switch t {
	case FocusWindow, Click, TypeText, Toggle, SelectItem:
		return true
	default:
		return false
	}
}

// Known reports whether the tool is in the closed set.
func (t Tool) Known() bool {
	for _, k := range Tools {
		if t == k {
			return true
		}
	}
	return false
}

// Args carries the per-tool arguments. Unused fields stay zero; Validate
// enforces which fields each tool requires.
type Args struct {
	Selector  *selector.Selector `json:"selector,omitempty"   yaml:"selector,omitempty"`
	Text      string             `json:"text,omitempty"       yaml:"text,omitempty"`      // type_text
	Clear     *bool              `json:"clear,omitempty"      yaml:"clear,omitempty"`     // type_text, default true
	State     *bool              `json:"state,omitempty"      yaml:"state,omitempty"`     // toggle
	Item      string             `json:"item,omitempty"       yaml:"item,omitempty"`      // select_item
	Condition string             `json:"condition,omitempty"  yaml:"condition,omitempty"` // wait_for: exists, enabled, text_equals
	Value     string             `json:"value,omitempty"      yaml:"value,omitempty"`     // wait_for comparison value
	TimeoutMS int                `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Depth     int                `json:"depth,omitempty"      yaml:"depth,omitempty"` // list_elements
}

// Action is one structured, schema-validated unit of intent. Immutable once
// created; it is the unit of logging, replay and minimization, so it must be
// fully self-describing (selector + args, no references to captured state).
type Action struct {
	Tool Tool `json:"tool" yaml:"tool"`
	Args Args `json:"args" yaml:"args,omitempty"`
}

// Describe renders the action as a single repro-step line.
func (a Action) Describe() string {
	s := string(a.Tool)
	if a.Args.Selector != nil {
		s += " " + a.Args.Selector.Describe()
	}
	switch a.Tool {
	case TypeText:
		s += fmt.Sprintf(" text=%q", a.Args.Text)
	case SelectItem:
		s += fmt.Sprintf(" item=%q", a.Args.Item)
	case WaitFor:
		s += fmt.Sprintf(" until %s", a.Args.Condition)
	}
	return s
}

// Timeout returns the per-call timeout, falling back to def.
func (a Action) Timeout(def time.Duration) time.Duration {
	if a.Args.TimeoutMS > 0 {
		return time.Duration(a.Args.TimeoutMS) * time.Millisecond
	}
	return def
}

// Status classifies an execution outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ErrorKind is the closed execution error taxonomy. Oracle findings have
// their own kinds; these cover the path between validation and the driver.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindAmbiguous       ErrorKind = "ambiguous"
	KindTimeout         ErrorKind = "timeout"
	KindElementNotFound ErrorKind = "element_not_found"
	KindNotInteractive  ErrorKind = "not_interactive"
	KindInterrupted     ErrorKind = "interrupted"
	KindDriverFailure   ErrorKind = "driver_failure"
	KindInternal        ErrorKind = "internal"
)

// ExitCode maps an error kind to the CLI process exit code, so scripted
// callers can branch on the failure class without parsing output.
func (k ErrorKind) ExitCode() int {
	switch k {
	case KindNone:
		return 0
	case KindElementNotFound:
		return 2
	case KindNotInteractive:
		return 3
	case KindAmbiguous:
		return 5
	case KindTimeout:
		return 6
	case KindInterrupted:
		return 7
	case KindInternal:
		return 8
	default:
		return 1
	}
}

// Observed is the driver-visible state captured alongside a result.
type Observed struct {
	Text    string          `json:"text,omitempty"`
	Element *driver.Element `json:"element,omitempty"`
}

// Result is produced exactly once per executed Action and appended to the
// session's action log together with it. Never mutated after append.
type Result struct {
	Status    Status    `json:"status"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	Observed  *Observed `json:"observed,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms"`
}

// Failure builds a failure result for the given kind.
func Failure(kind ErrorKind, format string, args ...any) *Result {
	return &Result{
		Status:    StatusFailure,
		ErrorKind: kind,
		Error:     fmt.Sprintf(format, args...),
	}
}

// Success builds a success result.
func Success() *Result {
	return &Result{Status: StatusSuccess}
}

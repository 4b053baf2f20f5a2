// Package driver defines the contract between the test core and the external
// accessibility driver that enumerates UI elements and performs input against
// a running desktop application. The core never talks to the OS accessibility
// APIs directly; it only depends on the Driver interface, which every
// implementation (RPC subprocess, fake) satisfies with typed results instead
// of unstructured faults.
package driver

import (
	"context"
	"fmt"
	"time"
)

// Op is a single primitive the driver can perform.
type Op string

const (
	OpFocusWindow Op = "focus_window"
	OpClick       Op = "click"
	OpTypeText    Op = "type_text"
	OpToggle      Op = "toggle"
	OpSelectItem  Op = "select_item"
	OpReadText    Op = "read_text"
	OpGetState    Op = "get_state"
)

// Rect is an element bounding rectangle in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CenterX returns the horizontal center of the rectangle.
func (r Rect) CenterX() int { return r.X + r.Width/2 }

// CenterY returns the vertical center of the rectangle.
func (r Rect) CenterY() int { return r.Y + r.Height/2 }

// Element is one node of the accessibility tree as reported by the driver.
type Element struct {
	AutomationID string `json:"automation_id,omitempty"`
	Name         string `json:"name,omitempty"`
	ControlType  string `json:"control_type,omitempty"`
	Enabled      bool   `json:"enabled"`
	Visible      bool   `json:"visible"`
	Selected     bool   `json:"selected,omitempty"`
	Value        string `json:"value,omitempty"`
	Rect         Rect   `json:"rect"`
}

// Describe returns a short human-readable identification of the element.
func (e Element) Describe() string {
	switch {
	case e.AutomationID != "":
		return fmt.Sprintf("aid=%s", e.AutomationID)
	case e.Name != "":
		return fmt.Sprintf("name=%q type=%s", e.Name, e.ControlType)
	default:
		return fmt.Sprintf("type=%s rect=(%d,%d %dx%d)", e.ControlType, e.Rect.X, e.Rect.Y, e.Rect.Width, e.Rect.Height)
	}
}

// Window is a top-level window as reported by the driver.
type Window struct {
	Handle uintptr `json:"handle"`
	PID    int32   `json:"pid"`
	Title  string  `json:"title"`
}

// Scope limits element enumeration and capture to one target window tree.
type Scope struct {
	PID    int32   `json:"pid"`
	Handle uintptr `json:"handle,omitempty"`
	Depth  int     `json:"depth,omitempty"` // 0 = driver default
}

// Request asks the driver to perform one primitive against a resolved element.
// FocusWindow ignores Target.
type Request struct {
	Op     Op      `json:"op"`
	Scope  Scope   `json:"scope"`
	Target Element `json:"target"`
	Text   string  `json:"text,omitempty"`  // type_text
	Clear  bool    `json:"clear,omitempty"` // type_text: clear before typing
	Item   string  `json:"item,omitempty"`  // select_item
	State  *bool   `json:"state,omitempty"` // toggle: desired state (nil = flip)
}

// Result is the typed outcome of a Perform call. Failed operations set Err;
// read operations populate Text/State.
type Result struct {
	Text  string   `json:"text,omitempty"`
	State *Element `json:"state,omitempty"`
}

// ImageRef points at a captured screenshot on disk.
type ImageRef struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

// Driver is the external accessibility collaborator. Every call must honor
// ctx cancellation and return a typed error instead of panicking; the
// executor converts ctx deadline errors into its own timeout kind.
type Driver interface {
	// ListElements enumerates the accessibility tree of the scoped window.
	ListElements(ctx context.Context, scope Scope) ([]Element, error)

	// ListWindows enumerates visible top-level windows across the desktop.
	ListWindows(ctx context.Context) ([]Window, error)

	// Perform executes one input or read primitive against a resolved element.
	Perform(ctx context.Context, req Request) (*Result, error)

	// Capture takes a screenshot of the scoped window and saves it to path.
	Capture(ctx context.Context, scope Scope, path string) (*ImageRef, error)

	// CursorPos reports the current pointer position in screen coordinates.
	CursorPos(ctx context.Context) (x, y int, err error)
}

// Sampler adapts a Driver into a contextless cursor position source for
// callers that poll at fixed points, such as the interference guard.
type Sampler struct {
	D Driver

	// Timeout bounds each sample. Zero means one second.
	Timeout time.Duration
}

// CursorPos samples the pointer position through the driver.
func (s Sampler) CursorPos() (int, int, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.D.CursorPos(ctx)
}

package driver

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// FakeDriver is an in-memory Driver backed by a scriptable element tree.
// It serves two purposes: dry-run execution without a real accessibility
// backend, and deterministic tests for every package that consumes Driver.
// All methods are safe for use from a single session goroutine; the mutex
// only protects against concurrent inspection from tests.
type FakeDriver struct {
	mu sync.Mutex

	// Elements holds the scriptable tree per target PID.
	Elements map[int32][]Element

	// Windows is the desktop-wide top-level window list.
	Windows []Window

	// ListDelay delays every ListElements call, simulating a frozen UI.
	ListDelay time.Duration

	// PerformErr, when set, fails every Perform call with this error.
	PerformErr error

	// OnPerform, when set, replaces the default mutation behavior. It runs
	// with the driver lock held and may mutate the tree directly.
	OnPerform func(d *FakeDriver, req Request) (*Result, error)

	// CursorX and CursorY are the reported pointer position. OnCursor, when
	// set, overrides them per call.
	CursorX, CursorY int
	OnCursor         func() (x, y int, err error)

	// Performed records every Perform request in order.
	Performed []Request
}

// NewFakeDriver returns an empty fake driver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{Elements: make(map[int32][]Element)}
}

// SetElements replaces the tree for a PID.
func (d *FakeDriver) SetElements(pid int32, els []Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Elements[pid] = els
}

// SetText updates the Value of the element with the given automation id.
func (d *FakeDriver) SetText(pid int32, automationID, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	els := d.Elements[pid]
	for i := range els {
		if els[i].AutomationID == automationID {
			els[i].Value = text
			return
		}
	}
}

// ListElements returns a copy of the scripted tree for the scope's PID.
func (d *FakeDriver) ListElements(ctx context.Context, scope Scope) ([]Element, error) {
	if d.ListDelay > 0 {
		select {
		case <-time.After(d.ListDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	els := d.Elements[scope.PID]
	out := make([]Element, len(els))
	copy(out, els)
	return out, nil
}

// ListWindows returns the scripted top-level window list.
func (d *FakeDriver) ListWindows(ctx context.Context) ([]Window, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Window, len(d.Windows))
	copy(out, d.Windows)
	return out, nil
}

// Perform records the request and applies the default mutation semantics:
// type_text and select_item set the element value, toggle flips (or sets)
// the selected state, read_text returns the value falling back to the name,
// get_state returns the current element. OnPerform overrides all of this.
func (d *FakeDriver) Perform(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Performed = append(d.Performed, req)

	if d.PerformErr != nil {
		return nil, d.PerformErr
	}
	if d.OnPerform != nil {
		return d.OnPerform(d, req)
	}

	switch req.Op {
	case OpFocusWindow, OpClick:
		return &Result{}, nil
	case OpTypeText:
		d.mutate(req.Scope.PID, req.Target, func(e *Element) {
			if req.Clear {
				e.Value = req.Text
			} else {
				e.Value += req.Text
			}
		})
		return &Result{}, nil
	case OpSelectItem:
		d.mutate(req.Scope.PID, req.Target, func(e *Element) { e.Value = req.Item })
		return &Result{}, nil
	case OpToggle:
		d.mutate(req.Scope.PID, req.Target, func(e *Element) {
			if req.State != nil {
				e.Selected = *req.State
			} else {
				e.Selected = !e.Selected
			}
		})
		return &Result{}, nil
	case OpReadText:
		el, ok := d.find(req.Scope.PID, req.Target)
		if !ok {
			return nil, fmt.Errorf("fake: element %s vanished", req.Target.Describe())
		}
		text := el.Value
		if text == "" {
			text = el.Name
		}
		return &Result{Text: text}, nil
	case OpGetState:
		el, ok := d.find(req.Scope.PID, req.Target)
		if !ok {
			return nil, fmt.Errorf("fake: element %s vanished", req.Target.Describe())
		}
		cp := el
		return &Result{State: &cp}, nil
	default:
		return nil, fmt.Errorf("fake: unknown op %q", req.Op)
	}
}

// Capture writes a placeholder file so evidence paths stay valid in tests
// and dry runs.
func (d *FakeDriver) Capture(ctx context.Context, scope Scope, path string) (*ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte("fake-capture\n"), 0644); err != nil {
		return nil, fmt.Errorf("write capture: %w", err)
	}
	return &ImageRef{Path: path, Format: "png"}, nil
}

// CursorPos returns the scripted pointer position.
func (d *FakeDriver) CursorPos(ctx context.Context) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OnCursor != nil {
		return d.OnCursor()
	}
	return d.CursorX, d.CursorY, nil
}

func (d *FakeDriver) find(pid int32, target Element) (Element, bool) {
	for _, e := range d.Elements[pid] {
		if sameElement(e, target) {
			return e, true
		}
	}
	return Element{}, false
}

func (d *FakeDriver) mutate(pid int32, target Element, fn func(*Element)) {
	els := d.Elements[pid]
	for i := range els {
		if sameElement(els[i], target) {
			fn(&els[i])
			return
		}
	}
}

func sameElement(a, b Element) bool {
	if a.AutomationID != "" || b.AutomationID != "" {
		return a.AutomationID == b.AutomationID
	}
	return a.Name == b.Name && a.ControlType == b.ControlType && a.Rect == b.Rect
}

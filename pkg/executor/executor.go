// Package executor dispatches single validated actions against the UI
// driver. It is the only path to the driver: every caller (scenario steps,
// random exploration, replay, the MCP surface) goes through Execute, so
// validation, guard gating, timeouts, error normalization and logging happen
// exactly once and identically for all of them.
package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/guard"
	"github.com/ormasoftchile/axtest/pkg/selector"
	"github.com/ormasoftchile/axtest/pkg/session"
	"github.com/ormasoftchile/axtest/pkg/target"
)

const (
	// DefaultTimeout bounds a single driver call.
	DefaultTimeout = 10 * time.Second

	// DefaultPollInterval paces wait_for condition checks.
	DefaultPollInterval = 250 * time.Millisecond
)

// Executor runs one action at a time against one resolved target.
type Executor struct {
	Driver driver.Driver
	Target *target.Resolved

	// Guard gates mutating tools. Nil disables gating (replay of read-only
	// logs, unit tests).
	Guard *guard.Guard

	// Log receives one record per executed action. Nil disables logging.
	Log       *session.LogWriter
	SessionID string

	// Screenshots names the directory for screenshot captures.
	Screenshots string

	Timeout      time.Duration
	PollInterval time.Duration
}

// Execute validates, gates, dispatches and logs a single action. It always
// returns a result; driver and infrastructure problems are folded into the
// result's error kind rather than surfaced as Go errors, so the caller can
// treat the result as the complete record of what happened. The returned
// error is reserved for logging failures, which poison the session.
func (x *Executor) Execute(ctx context.Context, a action.Action) (*action.Result, error) {
	start := time.Now()
	res := x.run(ctx, a)
	res.ElapsedMS = time.Since(start).Milliseconds()

	if x.Log != nil {
		rec := &session.Record{SessionID: x.SessionID, Action: a, Result: res}
		if err := x.Log.Append(rec); err != nil {
			return res, fmt.Errorf("append action log: %w", err)
		}
	}
	return res, nil
}

func (x *Executor) run(ctx context.Context, a action.Action) *action.Result {
	if err := action.Validate(a); err != nil {
		return action.Failure(action.KindValidation, "%v", err)
	}

	if a.Tool.Mutating() && x.Guard != nil {
		if err := x.Guard.CheckMutating(string(a.Tool)); err != nil {
			var ie *guard.InterferenceError
			if errors.As(err, &ie) {
				return action.Failure(action.KindInterrupted, "%s", ie.Detail)
			}
			return action.Failure(action.KindInternal, "guard check: %v", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.Timeout(x.timeout()))
	defer cancel()

	switch a.Tool {
	case action.ListWindows:
		return x.runListWindows(callCtx)
	case action.ListElements:
		return x.runListElements(callCtx, a)
	case action.Screenshot:
		return x.runScreenshot(callCtx, a)
	case action.WaitFor:
		return x.runWaitFor(callCtx, a)
	case action.FocusWindow:
		return x.perform(callCtx, driver.Request{Op: driver.OpFocusWindow, Scope: x.scope(0)}, nil)
	}

	// Remaining tools address one element through a selector.
	el, res := x.resolve(callCtx, *a.Args.Selector)
	if res != nil {
		return res
	}
	if a.Tool.Mutating() && (!el.Enabled || !el.Visible) {
		return action.Failure(action.KindNotInteractive,
			"element %s is not interactive (enabled=%v visible=%v)", a.Args.Selector.Describe(), el.Enabled, el.Visible)
	}

	req := driver.Request{Scope: x.scope(0), Target: el}
	var observe func(*driver.Result) *action.Observed
	switch a.Tool {
	case action.Click:
		req.Op = driver.OpClick
	case action.TypeText:
		req.Op = driver.OpTypeText
		req.Text = a.Args.Text
		req.Clear = a.Args.Clear == nil || *a.Args.Clear
	case action.Toggle:
		req.Op = driver.OpToggle
		req.State = a.Args.State
	case action.SelectItem:
		req.Op = driver.OpSelectItem
		req.Item = a.Args.Item
	case action.ReadText:
		req.Op = driver.OpReadText
		observe = func(r *driver.Result) *action.Observed {
			return &action.Observed{Text: r.Text}
		}
	case action.GetState:
		req.Op = driver.OpGetState
		observe = func(r *driver.Result) *action.Observed {
			return &action.Observed{Element: r.State}
		}
	default:
		return action.Failure(action.KindInternal, "no dispatch for tool %q", a.Tool)
	}
	return x.perform(callCtx, req, observe)
}

// resolve enumerates the target's element tree and resolves the selector to
// exactly one element.
func (x *Executor) resolve(ctx context.Context, sel selector.Selector) (driver.Element, *action.Result) {
	els, err := x.Driver.ListElements(ctx, x.scope(0))
	if err != nil {
		return driver.Element{}, x.driverFailure(ctx, "list elements", err)
	}
	el, outcome := selector.Resolve(sel, els)
	switch outcome {
	case selector.Unique:
		return el, nil
	case selector.Ambiguous:
		return driver.Element{}, action.Failure(action.KindAmbiguous,
			"selector %s matches more than one element", sel.Describe())
	default:
		return driver.Element{}, action.Failure(action.KindElementNotFound,
			"no element matches %s", sel.Describe())
	}
}

func (x *Executor) perform(ctx context.Context, req driver.Request, observe func(*driver.Result) *action.Observed) *action.Result {
	dres, err := x.Driver.Perform(ctx, req)
	if err != nil {
		return x.driverFailure(ctx, string(req.Op), err)
	}
	res := action.Success()
	if observe != nil && dres != nil {
		res.Observed = observe(dres)
	}
	return res
}

func (x *Executor) runListWindows(ctx context.Context) *action.Result {
	wins, err := x.Driver.ListWindows(ctx)
	if err != nil {
		return x.driverFailure(ctx, "list windows", err)
	}
	titles := make([]string, len(wins))
	for i, w := range wins {
		titles[i] = w.Title
	}
	res := action.Success()
	res.Observed = &action.Observed{Text: strings.Join(titles, "\n")}
	return res
}

func (x *Executor) runListElements(ctx context.Context, a action.Action) *action.Result {
	els, err := x.Driver.ListElements(ctx, x.scope(a.Args.Depth))
	if err != nil {
		return x.driverFailure(ctx, "list elements", err)
	}
	lines := make([]string, len(els))
	for i, el := range els {
		lines[i] = el.Describe()
	}
	res := action.Success()
	res.Observed = &action.Observed{Text: strings.Join(lines, "\n")}
	return res
}

func (x *Executor) runScreenshot(ctx context.Context, a action.Action) *action.Result {
	if x.Screenshots == "" {
		return action.Failure(action.KindInternal, "no screenshot directory configured")
	}
	name := fmt.Sprintf("capture-%d.png", time.Now().UnixMilli())
	ref, err := x.Driver.Capture(ctx, x.scope(0), filepath.Join(x.Screenshots, name))
	if err != nil {
		return x.driverFailure(ctx, "capture", err)
	}
	res := action.Success()
	res.Observed = &action.Observed{Text: ref.Path}
	return res
}

// runWaitFor polls the condition until it holds or the call deadline runs
// out. The condition not holding at the deadline is a timeout, not an
// element-not-found: the caller asked to wait precisely because the element
// may not be there yet.
func (x *Executor) runWaitFor(ctx context.Context, a action.Action) *action.Result {
	sel := *a.Args.Selector
	ticker := time.NewTicker(x.pollInterval())
	defer ticker.Stop()

	for {
		els, err := x.Driver.ListElements(ctx, x.scope(0))
		if err == nil {
			el, outcome := selector.Resolve(sel, els)
			if outcome == selector.Unique && waitConditionHolds(a, el) {
				return action.Success()
			}
		} else if ctx.Err() == nil {
			return x.driverFailure(ctx, "list elements", err)
		}

		select {
		case <-ctx.Done():
			return action.Failure(action.KindTimeout,
				"condition %s on %s did not hold within %s", a.Args.Condition, sel.Describe(), a.Timeout(x.timeout()))
		case <-ticker.C:
		}
	}
}

func waitConditionHolds(a action.Action, el driver.Element) bool {
	switch a.Args.Condition {
	case "exists":
		return true
	case "enabled":
		return el.Enabled
	case "text_equals":
		text := el.Value
		if text == "" {
			text = el.Name
		}
		return text == a.Args.Value
	default:
		return false
	}
}

func (x *Executor) driverFailure(ctx context.Context, op string, err error) *action.Result {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return action.Failure(action.KindTimeout, "%s timed out: %v", op, err)
	}
	if errors.Is(err, context.Canceled) {
		return action.Failure(action.KindInterrupted, "%s canceled", op)
	}
	return action.Failure(action.KindDriverFailure, "%s: %v", op, err)
}

func (x *Executor) scope(depth int) driver.Scope {
	s := driver.Scope{Depth: depth}
	if x.Target != nil {
		s.PID = x.Target.PID
		s.Handle = x.Target.WindowHandle
	}
	return s
}

func (x *Executor) timeout() time.Duration {
	if x.Timeout > 0 {
		return x.Timeout
	}
	return DefaultTimeout
}

func (x *Executor) pollInterval() time.Duration {
	if x.PollInterval > 0 {
		return x.PollInterval
	}
	return DefaultPollInterval
}

// Package guard detects a human taking over the controlled desktop and
// pauses automation until an operator explicitly resumes it. The pause flag
// is persisted so every process driving the same machine honors it.
package guard

import (
	"fmt"
	"time"
)

const (
	// DefaultWindow is the interval between the two cursor samples taken
	// around a mutating action.
	DefaultWindow = 50 * time.Millisecond

	// DefaultThresholdPx is the cursor displacement, in pixels, above which
	// movement is attributed to a human rather than jitter.
	DefaultThresholdPx = 8.0
)

// PointerSampler reports the current cursor position in screen coordinates.
type PointerSampler interface {
	CursorPos() (x, y int, err error)
}

// InterferenceError is returned when a mutating action is blocked, either
// because movement was just detected or because a previous detection left
// the guard paused.
type InterferenceError struct {
	Reason string // "pointer_moved" or "paused"
	Detail string
}

func (e *InterferenceError) Error() string {
	return fmt.Sprintf("human interference: %s (%s)", e.Reason, e.Detail)
}

// Guard gates mutating actions on cursor stillness. Read-only actions are
// never gated; an operator inspecting a paused session must not trip it
// further.
type Guard struct {
	Sampler     PointerSampler
	StatePath   string
	Window      time.Duration
	ThresholdPx float64

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// New returns a guard with default window and threshold, persisting state at
// statePath.
func New(sampler PointerSampler, statePath string) *Guard {
	return &Guard{
		Sampler:     sampler,
		StatePath:   statePath,
		Window:      DefaultWindow,
		ThresholdPx: DefaultThresholdPx,
		sleep:       time.Sleep,
	}
}

// CheckMutating samples the cursor twice across the window and blocks the
// action if displacement exceeds the threshold. While the persisted state is
// paused it fails fast without sampling at all. Without a sampler only the
// persisted pause flag gates; motion detection needs a cursor backend.
func (g *Guard) CheckMutating(command string) error {
	st, err := LoadState(g.StatePath)
	if err != nil {
		return err
	}
	if st.Paused {
		return &InterferenceError{
			Reason: "paused",
			Detail: fmt.Sprintf("guard paused since %s: %s", st.PausedAt.Format(time.RFC3339), st.Reason),
		}
	}
	if g.Sampler == nil {
		return nil
	}

	x1, y1, err := g.Sampler.CursorPos()
	if err != nil {
		return fmt.Errorf("sample cursor: %w", err)
	}
	g.sleepFor(g.window())
	x2, y2, err := g.Sampler.CursorPos()
	if err != nil {
		return fmt.Errorf("sample cursor: %w", err)
	}

	dx := float64(x2 - x1)
	dy := float64(y2 - y1)
	dist2 := dx*dx + dy*dy
	thr := g.threshold()
	if dist2 <= thr*thr {
		return nil
	}

	detail := fmt.Sprintf("cursor moved %.0f,%.0f -> %.0f,%.0f during %s window",
		float64(x1), float64(y1), float64(x2), float64(y2), g.window())
	pause := &State{
		Paused:   true,
		Reason:   "pointer_moved",
		Command:  command,
		Detail:   detail,
		PausedAt: time.Now().UTC(),
	}
	if err := SaveState(g.StatePath, pause); err != nil {
		return err
	}
	return &InterferenceError{Reason: "pointer_moved", Detail: detail}
}

// Paused reports the persisted pause flag without sampling.
func (g *Guard) Paused() (bool, *State, error) {
	st, err := LoadState(g.StatePath)
	if err != nil {
		return false, nil, err
	}
	return st.Paused, st, nil
}

// Resume clears the pause flag. It is idempotent: resuming an unpaused
// guard succeeds and reports false.
func (g *Guard) Resume() (wasPaused bool, err error) {
	st, err := LoadState(g.StatePath)
	if err != nil {
		return false, err
	}
	if !st.Paused {
		return false, nil
	}
	if err := SaveState(g.StatePath, &State{}); err != nil {
		return true, err
	}
	return true, nil
}

func (g *Guard) window() time.Duration {
	if g.Window > 0 {
		return g.Window
	}
	return DefaultWindow
}

func (g *Guard) threshold() float64 {
	if g.ThresholdPx > 0 {
		return g.ThresholdPx
	}
	return DefaultThresholdPx
}

func (g *Guard) sleepFor(d time.Duration) {
	if g.sleep != nil {
		g.sleep(d)
		return
	}
	time.Sleep(d)
}

// Package viewport tracks the visible time range and the window of
// resource rows that get laid out.
package viewport

import (
	"fmt"
	"time"

	"tlsched/internal/model"
)

// Window is the mutable viewport. A WindowSize of zero disables row
// virtualization and keeps every resource in view.
type Window struct {
	visible    model.Interval
	first      int
	windowSize int
	count      int
	listeners  []func(model.Viewport)
}

// New returns a window over r showing windowSize rows at a time.
func New(r model.Interval, windowSize int) (*Window, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	if windowSize < 0 {
		windowSize = 0
	}
	return &Window{visible: r, windowSize: windowSize}, nil
}

func validateRange(r model.Interval) error {
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s after end %s", model.ErrInvalidRange,
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// OnChange registers fn to run after each committed mutation.
func (w *Window) OnChange(fn func(model.Viewport)) {
	w.listeners = append(w.listeners, fn)
}

// VisibleRange returns the current time range.
func (w *Window) VisibleRange() model.Interval { return w.visible }

// SetVisibleRange replaces the time range. A reversed range is rejected
// and the previous range kept.
func (w *Window) SetVisibleRange(r model.Interval) error {
	if err := validateRange(r); err != nil {
		return err
	}
	w.visible = r
	w.notify()
	return nil
}

// SetResourceCount updates the number of rows and re-clamps the window.
func (w *Window) SetResourceCount(n int) {
	if n < 0 {
		n = 0
	}
	w.count = n
	w.first = w.clamp(w.first)
}

// SetWindowSize changes how many rows are laid out at once.
func (w *Window) SetWindowSize(size int) {
	if size < 0 {
		size = 0
	}
	w.windowSize = size
	w.first = w.clamp(w.first)
	w.notify()
}

// ScrollResources moves the window by delta rows, clamped to
// [0, count-windowSize].
func (w *Window) ScrollResources(delta int) {
	next := w.clamp(w.first + delta)
	if next == w.first {
		return
	}
	w.first = next
	w.notify()
}

// Rows returns the half-open [start, end) range of row indices in view.
func (w *Window) Rows() (int, int) {
	if w.windowSize == 0 {
		return 0, w.count
	}
	return w.first, min(w.first+w.windowSize, w.count)
}

// Viewport returns a snapshot of the current state.
func (w *Window) Viewport() model.Viewport {
	start, end := w.Rows()
	return model.Viewport{VisibleRange: w.visible, ResourceWindow: [2]int{start, end}}
}

func (w *Window) clamp(first int) int {
	if w.windowSize == 0 {
		return 0
	}
	maxFirst := w.count - w.windowSize
	if maxFirst < 0 {
		maxFirst = 0
	}
	return max(0, min(first, maxFirst))
}

func (w *Window) notify() {
	vp := w.Viewport()
	for _, fn := range w.listeners {
		fn(vp)
	}
}

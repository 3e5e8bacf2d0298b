package model

import "fmt"

// Resource is one scheduler row. ID is its identity; Label is display-only.
type Resource struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Event is a time-bounded item on a resource row. Payload is carried
// through layout untouched.
type Event[P any] struct {
	ID         string   `json:"id"`
	ResourceID string   `json:"resource_id"`
	Interval   Interval `json:"interval"`
	Payload    P        `json:"payload"`
}

// HeaderSpec describes one header level. Format is a time layout used by
// the layout formatter; an empty value selects a per-unit default.
type HeaderSpec struct {
	Unit   TimeUnit `json:"unit" yaml:"unit"`
	Format string   `json:"format,omitempty" yaml:"format,omitempty"`
}

// ValidateHeaders checks that specs use known units and run from coarse to
// fine without repeating a unit.
func ValidateHeaders(specs []HeaderSpec) error {
	for i, h := range specs {
		if !h.Unit.Valid() {
			return fmt.Errorf("%w: level %d has unknown unit %d", ErrInvalidHeader, i, int(h.Unit))
		}
		if i > 0 && h.Unit >= specs[i-1].Unit {
			return fmt.Errorf("%w: level %d (%s) is not finer than level %d (%s)",
				ErrInvalidHeader, i, h.Unit, i-1, specs[i-1].Unit)
		}
	}
	return nil
}

// HeaderCell is one labeled bucket at one header level.
type HeaderCell struct {
	Level      int      `json:"level"`
	Interval   Interval `json:"interval"`
	Label      string   `json:"label"`
	PixelStart float64  `json:"pixel_start"`
	PixelWidth float64  `json:"pixel_width"`
	// Partial marks a bucket shorter than a full step, either truncated
	// at a cycle boundary or clipped by the visible range.
	Partial bool `json:"partial,omitempty"`
}

// PositionedEvent is the layout result for one event.
type PositionedEvent[P any] struct {
	Event      Event[P] `json:"event"`
	Lane       int      `json:"lane"`
	PixelStart float64  `json:"pixel_start"`
	PixelWidth float64  `json:"pixel_width"`
}

// Viewport is the rendered slice: a time range plus a half-open
// [Start, End) window of resource indices.
type Viewport struct {
	VisibleRange   Interval `json:"visible_range"`
	ResourceWindow [2]int   `json:"resource_window"`
}

package scheduler

import (
	"time"

	"tlsched/internal/model"
)

// Edge selects which end of an interval a resize moves.
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

// MoveInterval translates a horizontal drag of dx pixels into a proposed
// interval with the same duration. Events are never modified; the host
// decides whether to apply the result.
func (s *Scheduler[P]) MoveInterval(iv model.Interval, dx float64, snap bool) (model.Interval, error) {
	if err := iv.Validate(); err != nil {
		return iv, err
	}
	ax, err := s.currentAxis()
	if err != nil {
		return iv, err
	}
	start := ax.ToTime(ax.ToPixel(iv.Start) + dx)
	if snap {
		start = ax.Snap(start)
	}
	return model.Interval{Start: start, End: start.Add(iv.Duration())}, nil
}

// ResizeInterval moves one edge by dx pixels. The moved edge never crosses
// the fixed one; the result collapses to a point instead.
func (s *Scheduler[P]) ResizeInterval(iv model.Interval, edge Edge, dx float64, snap bool) (model.Interval, error) {
	if err := iv.Validate(); err != nil {
		return iv, err
	}
	ax, err := s.currentAxis()
	if err != nil {
		return iv, err
	}
	moved := func(t time.Time) time.Time {
		out := ax.ToTime(ax.ToPixel(t) + dx)
		if snap {
			out = ax.Snap(out)
		}
		return out
	}
	switch edge {
	case EdgeStart:
		start := moved(iv.Start)
		if start.After(iv.End) {
			start = iv.End
		}
		return model.Interval{Start: start, End: iv.End}, nil
	default:
		end := moved(iv.End)
		if end.Before(iv.Start) {
			end = iv.Start
		}
		return model.Interval{Start: iv.Start, End: end}, nil
	}
}

// Package layout assigns events on one resource row to non-overlapping
// lanes and positions them on the time axis.
package layout

import (
	"container/heap"
	"sort"
	"strings"
	"time"

	"tlsched/internal/model"
)

// DefaultMinWidth keeps point-in-time markers clickable.
const DefaultMinWidth = 4.0

// Mapper converts instants to axis pixels.
type Mapper interface {
	ToPixel(t time.Time) float64
}

// Row is the layout of one resource row.
type Row[P any] struct {
	Positioned []model.PositionedEvent[P]
	// Lanes is the number of lanes the visible events need.
	Lanes int
}

// Engine lays out rows against a fixed visible range.
type Engine struct {
	Visible  model.Interval
	MinWidth float64
}

// Sort orders events by start, then end, then ID. The order is total, so
// layout never depends on input order.
func Sort[P any](events []model.Event[P]) {
	sort.SliceStable(events, func(i, j int) bool {
		return less(events[i], events[j])
	})
}

func less[P any](a, b model.Event[P]) bool {
	if !a.Interval.Start.Equal(b.Interval.Start) {
		return a.Interval.Start.Before(b.Interval.Start)
	}
	if !a.Interval.End.Equal(b.Interval.End) {
		return a.Interval.End.Before(b.Interval.End)
	}
	return strings.Compare(a.ID, b.ID) < 0
}

// LayoutRow positions the visible events of one row. events is not
// modified.
//
// Lanes are computed over every overlap cluster that reaches into the
// visible range, including events that have already scrolled out of view,
// so lane numbers match a layout of the whole row and do not shift while
// scrolling.
func LayoutRow[P any](e Engine, events []model.Event[P], m Mapper) Row[P] {
	var row Row[P]
	// A zero-width range has no axis to position against.
	if len(events) == 0 || e.Visible.Empty() {
		return row
	}
	minWidth := e.MinWidth
	if minWidth <= 0 {
		minWidth = DefaultMinWidth
	}

	sorted := make([]model.Event[P], len(events))
	copy(sorted, events)
	Sort(sorted)

	for _, cl := range clusters(sorted) {
		visible := false
		for _, ev := range cl {
			if ev.Interval.Visible(e.Visible) {
				visible = true
				break
			}
		}
		if !visible {
			continue
		}
		lanes := assignLanes(cl)
		for i, ev := range cl {
			if !ev.Interval.Visible(e.Visible) {
				continue
			}
			start := m.ToPixel(ev.Interval.Start)
			width := m.ToPixel(ev.Interval.End) - start
			if width < minWidth {
				width = minWidth
			}
			row.Positioned = append(row.Positioned, model.PositionedEvent[P]{
				Event:      ev,
				Lane:       lanes[i],
				PixelStart: start,
				PixelWidth: width,
			})
			if lanes[i]+1 > row.Lanes {
				row.Lanes = lanes[i] + 1
			}
		}
	}
	return row
}

// clusters splits sorted events into maximal runs where each event starts
// before the latest end seen so far. Lanes never carry across clusters.
func clusters[P any](sorted []model.Event[P]) [][]model.Event[P] {
	var out [][]model.Event[P]
	from := 0
	var maxEnd time.Time
	for i, ev := range sorted {
		if i > from && !ev.Interval.Start.Before(maxEnd) {
			out = append(out, sorted[from:i])
			from = i
		}
		if i == from || ev.Interval.End.After(maxEnd) {
			maxEnd = ev.Interval.End
		}
	}
	return append(out, sorted[from:])
}

// assignLanes gives each sorted event the lowest lane whose previous event
// ended at or before its start, opening a new lane when none is free.
func assignLanes[P any](sorted []model.Event[P]) []int {
	lanes := make([]int, len(sorted))
	busy := &busyHeap{}
	free := &laneHeap{}
	next := 0
	for i, ev := range sorted {
		for busy.Len() > 0 && !(*busy)[0].end.After(ev.Interval.Start) {
			heap.Push(free, heap.Pop(busy).(busyLane).lane)
		}
		lane := next
		if free.Len() > 0 {
			lane = heap.Pop(free).(int)
		} else {
			next++
		}
		lanes[i] = lane
		heap.Push(busy, busyLane{end: ev.Interval.End, lane: lane})
	}
	return lanes
}

type busyLane struct {
	end  time.Time
	lane int
}

type busyHeap []busyLane

func (h busyHeap) Len() int { return len(h) }
func (h busyHeap) Less(i, j int) bool {
	if !h[i].end.Equal(h[j].end) {
		return h[i].end.Before(h[j].end)
	}
	return h[i].lane < h[j].lane
}
func (h busyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *busyHeap) Push(x any)   { *h = append(*h, x.(busyLane)) }
func (h *busyHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type laneHeap []int

func (h laneHeap) Len() int           { return len(h) }
func (h laneHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h laneHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *laneHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *laneHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

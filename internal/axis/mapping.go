package axis

import (
	"math"
	"sort"
	"time"
)

// ToPixel maps t onto the axis. The mapping is piecewise linear over grid
// cells and extrapolates with the edge cell's density outside the range.
func (a *Axis) ToPixel(t time.Time) float64 {
	n := len(a.bounds)
	if n < 2 {
		return 0
	}
	var k int
	switch {
	case t.Before(a.bounds[0]):
		k = 0
	case !t.Before(a.bounds[n-1]):
		k = n - 2
	default:
		// Last boundary <= t.
		k = sort.Search(n, func(i int) bool { return a.bounds[i].After(t) }) - 1
	}
	if t.Equal(a.bounds[k]) {
		return a.pix[k]
	}
	if t.Equal(a.bounds[k+1]) {
		return a.pix[k+1]
	}
	span := float64(a.bounds[k+1].Sub(a.bounds[k]))
	frac := float64(t.Sub(a.bounds[k])) / span
	px := a.pix[k] + frac*(a.pix[k+1]-a.pix[k])
	if frac > 0 && frac < 1 {
		px = math.Min(math.Max(px, a.pix[k]), a.pix[k+1])
	}
	return px
}

// ToTime is the inverse of ToPixel. It is exact on cell boundaries and
// interpolates linearly inside a cell.
func (a *Axis) ToTime(px float64) time.Time {
	n := len(a.pix)
	if n < 2 {
		return a.Range.Start
	}
	var k int
	switch {
	case px < a.pix[0]:
		k = 0
	case px >= a.pix[n-1]:
		k = n - 2
	default:
		k = sort.Search(n, func(i int) bool { return a.pix[i] > px }) - 1
	}
	if px == a.pix[k] {
		return a.bounds[k]
	}
	if px == a.pix[k+1] {
		return a.bounds[k+1]
	}
	span := float64(a.bounds[k+1].Sub(a.bounds[k]))
	frac := (px - a.pix[k]) / (a.pix[k+1] - a.pix[k])
	return a.bounds[k].Add(time.Duration(math.Round(frac * span)))
}

// Snap returns the grid boundary nearest to t. Outside the range it snaps
// to whole units of the scale.
func (a *Axis) Snap(t time.Time) time.Time {
	n := len(a.bounds)
	if n == 0 || t.Before(a.bounds[0]) || t.After(a.bounds[n-1]) {
		lo := a.cal.Floor(t, a.Scale.Unit)
		hi := a.cal.Add(lo, a.Scale.Unit, 1)
		return nearest(t, lo, hi)
	}
	i := sort.Search(n, func(i int) bool { return !a.bounds[i].Before(t) })
	if i == 0 {
		return a.bounds[0]
	}
	return nearest(t, a.bounds[i-1], a.bounds[i])
}

func nearest(t, lo, hi time.Time) time.Time {
	if t.Sub(lo) <= hi.Sub(t) {
		return lo
	}
	return hi
}

// Boundaries returns a copy of the grid boundary instants.
func (a *Axis) Boundaries() []time.Time {
	return append([]time.Time(nil), a.bounds...)
}

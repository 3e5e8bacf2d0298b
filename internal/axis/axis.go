package axis

import (
	"fmt"
	"time"

	"tlsched/internal/model"
)

const (
	DefaultSlotWidth = 40.0
	DefaultMaxCells  = 10000
)

// Options controls axis geometry.
type Options struct {
	Calendar Calendar

	// PixelWidth is the total width of the visible range. If zero, every
	// full grid bucket is SlotWidth pixels wide and the total follows.
	PixelWidth float64
	SlotWidth  float64

	// MaxCells caps the number of grid buckets. Zero means DefaultMaxCells.
	MaxCells int

	// Format renders header labels. Nil uses LayoutFormatter over the
	// header specs.
	Format Formatter
}

// Axis is an immutable time axis for one (range, scale, headers) input.
type Axis struct {
	Range model.Interval
	Scale model.ZoomScale

	// Levels holds one slice per HeaderSpec, coarse to fine. Every level
	// tiles Range.
	Levels [][]model.HeaderCell

	// Grid is the finest tiling, step x unit buckets. Its cells carry
	// Level == len(Levels).
	Grid []model.HeaderCell

	Width float64

	cal    Calendar
	bounds []time.Time
	pix    []float64
}

type bucket struct {
	iv      model.Interval // clipped to the visible range
	aligned time.Time      // unclipped bucket start
	weight  float64
	partial bool
}

// Compute builds the header levels and coordinate mapping for r at scale z.
func Compute(specs []model.HeaderSpec, r model.Interval, z model.ZoomScale, opts Options) (*Axis, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRange, err)
	}
	if err := z.Validate(); err != nil {
		return nil, err
	}
	if err := model.ValidateHeaders(specs); err != nil {
		return nil, err
	}
	if opts.MaxCells <= 0 {
		opts.MaxCells = DefaultMaxCells
	}
	if opts.PixelWidth <= 0 && opts.SlotWidth <= 0 {
		opts.SlotWidth = DefaultSlotWidth
	}
	format := opts.Format
	if format == nil {
		format = LayoutFormatter(specs)
	}

	cal := opts.Calendar
	buckets, err := cal.buckets(r, z, opts.MaxCells)
	if err != nil {
		return nil, err
	}

	ax := &Axis{
		Range: r,
		Scale: z,
		cal:   cal,
	}
	if len(buckets) == 0 {
		ax.Levels = make([][]model.HeaderCell, len(specs))
		return ax, nil
	}

	var totalWeight float64
	for _, b := range buckets {
		totalWeight += b.weight
	}
	perWeight := opts.SlotWidth
	if opts.PixelWidth > 0 {
		perWeight = opts.PixelWidth / totalWeight
	}

	ax.bounds = make([]time.Time, 0, len(buckets)+1)
	ax.pix = make([]float64, 0, len(buckets)+1)
	ax.bounds = append(ax.bounds, buckets[0].iv.Start)
	ax.pix = append(ax.pix, 0)
	var acc float64
	for _, b := range buckets {
		acc += b.weight
		ax.bounds = append(ax.bounds, b.iv.End)
		ax.pix = append(ax.pix, acc*perWeight)
	}
	if opts.PixelWidth > 0 {
		// Pin the last boundary so rounding never leaves a sliver.
		ax.pix[len(ax.pix)-1] = opts.PixelWidth
	}
	ax.Width = ax.pix[len(ax.pix)-1]

	ax.Grid = make([]model.HeaderCell, len(buckets))
	for i, b := range buckets {
		ax.Grid[i] = model.HeaderCell{
			Level:      len(specs),
			Interval:   b.iv,
			Label:      format(z.Unit, b.aligned),
			PixelStart: ax.pix[i],
			PixelWidth: ax.pix[i+1] - ax.pix[i],
			Partial:    b.partial,
		}
	}

	ax.Levels = ax.group(specs, buckets, format)
	return ax, nil
}

// group merges consecutive grid buckets into header cells. A level starts
// a new cell whenever its own bucket key changes or any coarser level
// does, which keeps finer cells nested inside coarser ones.
func (a *Axis) group(specs []model.HeaderSpec, buckets []bucket, format Formatter) [][]model.HeaderCell {
	levels := make([][]model.HeaderCell, len(specs))
	keys := make([]time.Time, len(specs))
	first := make([]int, len(specs))

	flush := func(level, from, to int) {
		iv := model.Interval{Start: a.bounds[from], End: a.bounds[to]}
		key := keys[level]
		levels[level] = append(levels[level], model.HeaderCell{
			Level:      level,
			Interval:   iv,
			Label:      format(specs[level].Unit, key),
			PixelStart: a.pix[from],
			PixelWidth: a.pix[to] - a.pix[from],
			Partial:    iv.Start.After(key) || iv.End.Before(a.cal.Add(key, specs[level].Unit, 1)),
		})
	}

	for i, b := range buckets {
		split := i == 0
		for l, spec := range specs {
			k := a.cal.Floor(b.aligned, spec.Unit)
			if !split && !k.Equal(keys[l]) {
				split = true
			}
			if split {
				if i > 0 {
					flush(l, first[l], i)
				}
				keys[l] = k
				first[l] = i
			}
		}
	}
	for l := range specs {
		flush(l, first[l], len(buckets))
	}
	return levels
}

// buckets partitions r into grid cells. Steps restart at each boundary of
// the unit's cycle (hour for minutes, day for hours, month for days, year
// for months), so the last bucket of a cycle may be short. Weeks count
// from the week containing r.Start; years align to multiples of step.
func (c Calendar) buckets(r model.Interval, z model.ZoomScale, maxCells int) ([]bucket, error) {
	if r.Empty() {
		return nil, nil
	}
	var out []bucket
	emit := func(start, next, end time.Time) error {
		if !end.After(r.Start) || !start.Before(r.End) {
			return nil
		}
		if len(out) >= maxCells {
			return fmt.Errorf("%w: more than %d buckets of %s", model.ErrTooManyCells, maxCells, z)
		}
		clipped := model.Interval{Start: maxTime(start, r.Start), End: minTime(end, r.End)}
		full := next.Sub(start)
		out = append(out, bucket{
			iv:      clipped,
			aligned: start,
			weight:  float64(clipped.Duration()) / float64(full),
			partial: clipped.Duration() < full,
		})
		return nil
	}

	cycle := cycleOf(z.Unit)
	if cycle == 0 {
		cur := c.Floor(r.Start, z.Unit)
		if z.Unit == model.UnitYear {
			y := cur.Year()
			y -= ((y % z.Step) + z.Step) % z.Step
			cur = time.Date(y, time.January, 1, 0, 0, 0, 0, c.loc())
		}
		for cur.Before(r.End) {
			next := c.Add(cur, z.Unit, z.Step)
			if err := emit(cur, next, next); err != nil {
				return nil, err
			}
			cur = next
		}
		return out, nil
	}

	for cs := c.Floor(r.Start, cycle); cs.Before(r.End); cs = c.Add(cs, cycle, 1) {
		ce := c.Add(cs, cycle, 1)
		cur := cs
		for k := 1; cur.Before(ce) && cur.Before(r.End); k++ {
			// Offsets are taken from the cycle start so hour buckets stay
			// on wall-clock multiples of step across DST changes.
			next := c.wallAdd(cs, z.Unit, k*z.Step)
			if !next.After(cur) {
				continue
			}
			end := minTime(next, ce)
			if err := emit(cur, next, end); err != nil {
				return nil, err
			}
			cur = end
		}
	}
	return out, nil
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

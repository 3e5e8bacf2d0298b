// Package scheduler composes the time axis, zoom, viewport and row layout
// into a single render model.
//
// A Scheduler is not safe for concurrent use; hosts serialize calls.
package scheduler

import (
	"fmt"
	"time"

	"tlsched/internal/axis"
	"tlsched/internal/layout"
	appLog "tlsched/internal/log"
	"tlsched/internal/model"
	"tlsched/internal/viewport"
	"tlsched/internal/zoom"
)

// Options configures a Scheduler.
type Options struct {
	Headers      []model.HeaderSpec
	Presets      []model.ZoomScale
	Scale        model.ZoomScale
	VisibleRange model.Interval

	Calendar      axis.Calendar
	PixelWidth    float64
	SlotWidth     float64
	MinEventWidth float64
	MaxCells      int

	// WindowSize is the number of resource rows laid out at once; zero
	// lays out every row.
	WindowSize int

	Format axis.Formatter
}

// Row is one laid-out resource row.
type Row[P any] struct {
	Resource   model.Resource             `json:"resource"`
	Index      int                        `json:"index"`
	Positioned []model.PositionedEvent[P] `json:"positioned"`
	Lanes      int                        `json:"lanes"`
}

// RenderModel is an immutable snapshot produced by Recompute. Callers
// must not modify it.
type RenderModel[P any] struct {
	HeaderLevels [][]model.HeaderCell `json:"header_levels"`
	Grid         []model.HeaderCell   `json:"grid"`
	Rows         []Row[P]             `json:"rows"`
	Viewport     model.Viewport       `json:"viewport"`
	Scale        model.ZoomScale      `json:"scale"`
	Width        float64              `json:"width"`
	Presets      []model.ZoomScale    `json:"presets"`
	// Axis maps pixels back to time for pointer interaction.
	Axis *axis.Axis `json:"-"`
}

type rowCache[P any] struct {
	axisGen   uint64
	eventsGen uint64
	row       layout.Row[P]
}

// Scheduler holds the current zoom and viewport plus the latest resources
// and events supplied by the host.
type Scheduler[P any] struct {
	opts    Options
	headers []model.HeaderSpec

	zoom *zoom.Controller
	view *viewport.Window

	resources  []model.Resource
	byResource map[string][]model.Event[P]

	axisGen   uint64
	eventsGen uint64
	lastRange model.Interval

	axis     *axis.Axis
	axisSeen uint64
	rows     map[string]rowCache[P]
}

// New validates opts and returns an empty scheduler.
func New[P any](opts Options) (*Scheduler[P], error) {
	if err := model.ValidateHeaders(opts.Headers); err != nil {
		return nil, err
	}
	z, err := zoom.New(opts.Presets, opts.Scale)
	if err != nil {
		return nil, err
	}
	view, err := viewport.New(opts.VisibleRange, opts.WindowSize)
	if err != nil {
		return nil, err
	}
	s := &Scheduler[P]{
		opts:       opts,
		headers:    append([]model.HeaderSpec(nil), opts.Headers...),
		zoom:       z,
		view:       view,
		byResource: map[string][]model.Event[P]{},
		rows:       map[string]rowCache[P]{},
		axisGen:    1,
		lastRange:  opts.VisibleRange,
	}
	z.OnChange(func(prev, next model.ZoomScale) {
		s.axisGen++
		appLog.Debug("zoom changed", "from", prev.String(), "to", next.String())
	})
	view.OnChange(func(vp model.Viewport) {
		r := vp.VisibleRange
		if !r.Start.Equal(s.lastRange.Start) || !r.End.Equal(s.lastRange.End) {
			s.lastRange = vp.VisibleRange
			s.axisGen++
		}
	})
	ax, err := s.buildAxis(s.headers, opts.VisibleRange, opts.Scale)
	if err != nil {
		return nil, err
	}
	s.adopt(ax)
	return s, nil
}

// SetResources replaces the ordered resource list. IDs must be unique.
func (s *Scheduler[P]) SetResources(resources []model.Resource) error {
	seen := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: resource %q", model.ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	s.resources = append([]model.Resource(nil), resources...)
	s.view.SetResourceCount(len(s.resources))
	return nil
}

// SetEvents replaces the whole event set. Every interval is validated and
// event IDs must be unique per resource; on error nothing changes.
func (s *Scheduler[P]) SetEvents(events []model.Event[P]) error {
	byResource := make(map[string][]model.Event[P])
	seen := make(map[[2]string]struct{}, len(events))
	for _, ev := range events {
		if err := ev.Interval.Validate(); err != nil {
			return fmt.Errorf("event %q on %q: %w", ev.ID, ev.ResourceID, err)
		}
		key := [2]string{ev.ResourceID, ev.ID}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: event %q on resource %q", model.ErrDuplicateID, ev.ID, ev.ResourceID)
		}
		seen[key] = struct{}{}
		byResource[ev.ResourceID] = append(byResource[ev.ResourceID], ev)
	}
	s.byResource = byResource
	s.eventsGen++
	return nil
}

// SetHeaders replaces the header levels.
func (s *Scheduler[P]) SetHeaders(specs []model.HeaderSpec) error {
	ax, err := s.buildAxis(specs, s.view.VisibleRange(), s.zoom.Scale())
	if err != nil {
		return err
	}
	s.headers = append([]model.HeaderSpec(nil), specs...)
	s.axisGen++
	s.adopt(ax)
	return nil
}

// Scale returns the current zoom scale.
func (s *Scheduler[P]) Scale() model.ZoomScale { return s.zoom.Scale() }

// SetScale validates and applies z. A scale the current range cannot be
// bucketed at, including one over the cell cap, is rejected unchanged.
func (s *Scheduler[P]) SetScale(z model.ZoomScale) (model.ZoomScale, error) {
	if err := s.SetView(s.view.VisibleRange(), z); err != nil {
		return s.zoom.Scale(), err
	}
	return s.zoom.Scale(), nil
}

// ZoomIn steps to the next finer preset. It is a no-op at the finest
// preset or when the finer grid would exceed the cell cap.
func (s *Scheduler[P]) ZoomIn() model.ZoomScale {
	if next, ok := s.zoom.Finer(); ok {
		s.tryScale(next)
	}
	return s.zoom.Scale()
}

// ZoomOut steps to the next coarser preset, clamped like ZoomIn.
func (s *Scheduler[P]) ZoomOut() model.ZoomScale {
	if next, ok := s.zoom.Coarser(); ok {
		s.tryScale(next)
	}
	return s.zoom.Scale()
}

func (s *Scheduler[P]) tryScale(z model.ZoomScale) {
	if err := s.SetView(s.view.VisibleRange(), z); err != nil {
		appLog.Info("zoom step rejected", "to", z.String(), "reason", err.Error())
	}
}

// Viewport returns the current viewport.
func (s *Scheduler[P]) Viewport() model.Viewport { return s.view.Viewport() }

// SetVisibleRange replaces the time range. A reversed range, or one with
// more grid cells than the cap, is rejected and the previous range kept.
func (s *Scheduler[P]) SetVisibleRange(r model.Interval) error {
	return s.SetView(r, s.zoom.Scale())
}

// SetView applies a range and scale together. Both are checked before
// either is applied, so on error the view is unchanged.
func (s *Scheduler[P]) SetView(r model.Interval, z model.ZoomScale) error {
	ax, err := s.buildAxis(s.headers, r, z)
	if err != nil {
		return err
	}
	if _, err := s.zoom.SetScale(z); err != nil {
		return err
	}
	if err := s.view.SetVisibleRange(r); err != nil {
		return err
	}
	s.adopt(ax)
	return nil
}

// PanBy shifts the visible range by d. A shift that lands on a range over
// the cell cap is ignored.
func (s *Scheduler[P]) PanBy(d time.Duration) {
	if err := s.SetVisibleRange(s.view.VisibleRange().Shift(d)); err != nil {
		appLog.Info("pan rejected", "by", d.String(), "reason", err.Error())
	}
}

func (s *Scheduler[P]) ScrollResources(delta int) { s.view.ScrollResources(delta) }

// SetWindowSize sets how many rows Recompute lays out. Zero lays out all.
func (s *Scheduler[P]) SetWindowSize(size int) { s.view.SetWindowSize(size) }

// Recompute derives a fresh render model from the current inputs. Rows that
// stay in the window with unchanged axis and events reuse their previous
// layout slices.
func (s *Scheduler[P]) Recompute() (*RenderModel[P], error) {
	ax, err := s.currentAxis()
	if err != nil {
		return nil, err
	}

	vp := s.view.Viewport()
	start, end := vp.ResourceWindow[0], vp.ResourceWindow[1]
	engine := layout.Engine{Visible: vp.VisibleRange, MinWidth: s.opts.MinEventWidth}

	rows := make([]Row[P], 0, end-start)
	nextCache := make(map[string]rowCache[P], end-start)
	reused := 0
	for i := start; i < end; i++ {
		res := s.resources[i]
		c, ok := s.rows[res.ID]
		if !ok || c.axisGen != s.axisSeen || c.eventsGen != s.eventsGen {
			c = rowCache[P]{
				axisGen:   s.axisSeen,
				eventsGen: s.eventsGen,
				row:       layout.LayoutRow(engine, s.byResource[res.ID], ax),
			}
		} else {
			reused++
		}
		nextCache[res.ID] = c
		rows = append(rows, Row[P]{
			Resource:   res,
			Index:      i,
			Positioned: c.row.Positioned,
			Lanes:      c.row.Lanes,
		})
	}
	s.rows = nextCache

	appLog.Debug("scheduler recompute",
		"scale", ax.Scale.String(),
		"rows", len(rows),
		"reused_rows", reused,
		"grid_cells", len(ax.Grid),
	)

	return &RenderModel[P]{
		HeaderLevels: ax.Levels,
		Grid:         ax.Grid,
		Rows:         rows,
		Viewport:     vp,
		Scale:        ax.Scale,
		Width:        ax.Width,
		Presets:      s.zoom.Presets(),
		Axis:         ax,
	}, nil
}

func (s *Scheduler[P]) currentAxis() (*axis.Axis, error) {
	if s.axis != nil && s.axisSeen == s.axisGen {
		return s.axis, nil
	}
	ax, err := s.buildAxis(s.headers, s.view.VisibleRange(), s.zoom.Scale())
	if err != nil {
		return nil, err
	}
	s.adopt(ax)
	return ax, nil
}

func (s *Scheduler[P]) buildAxis(specs []model.HeaderSpec, r model.Interval, z model.ZoomScale) (*axis.Axis, error) {
	ax, err := axis.Compute(specs, r, z, axis.Options{
		Calendar:   s.opts.Calendar,
		PixelWidth: s.opts.PixelWidth,
		SlotWidth:  s.opts.SlotWidth,
		MaxCells:   s.opts.MaxCells,
		Format:     s.opts.Format,
	})
	if err != nil {
		appLog.Info("axis rejected", "scale", z.String(), "reason", err.Error())
		return nil, err
	}
	return ax, nil
}

// adopt caches ax as the axis for the current generation. Call it after
// the mutation that ax was built for.
func (s *Scheduler[P]) adopt(ax *axis.Axis) {
	s.axis = ax
	s.axisSeen = s.axisGen
}

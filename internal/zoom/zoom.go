// Package zoom holds the current zoom scale and steps through presets.
package zoom

import (
	"fmt"

	"tlsched/internal/model"
)

// Listener observes a committed scale change.
type Listener func(prev, next model.ZoomScale)

// Controller owns the current scale. Presets run from coarsest to finest.
type Controller struct {
	presets   []model.ZoomScale
	current   model.ZoomScale
	listeners []Listener
}

// New validates presets and the initial scale.
func New(presets []model.ZoomScale, initial model.ZoomScale) (*Controller, error) {
	for i, p := range presets {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %d: %w", i, err)
		}
		if i > 0 && p.Nominal() >= presets[i-1].Nominal() {
			return nil, fmt.Errorf("%w: preset %d (%s) is not finer than preset %d (%s)",
				model.ErrInvalidZoom, i, p, i-1, presets[i-1])
		}
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		presets: append([]model.ZoomScale(nil), presets...),
		current: initial,
	}, nil
}

// OnChange registers l to run after every scale change.
func (c *Controller) OnChange(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Scale returns the current scale.
func (c *Controller) Scale() model.ZoomScale { return c.current }

// Presets returns a copy of the preset list.
func (c *Controller) Presets() []model.ZoomScale {
	return append([]model.ZoomScale(nil), c.presets...)
}

// SetScale replaces the current scale. On error the scale is unchanged.
func (c *Controller) SetScale(z model.ZoomScale) (model.ZoomScale, error) {
	if err := z.Validate(); err != nil {
		return c.current, err
	}
	c.commit(z)
	return c.current, nil
}

// Finer returns the next preset finer than the current scale, if any.
func (c *Controller) Finer() (model.ZoomScale, bool) {
	cur := c.current.Nominal()
	for _, p := range c.presets {
		if p.Nominal() < cur {
			return p, true
		}
	}
	return c.current, false
}

// Coarser returns the next preset coarser than the current scale, if any.
func (c *Controller) Coarser() (model.ZoomScale, bool) {
	cur := c.current.Nominal()
	for i := len(c.presets) - 1; i >= 0; i-- {
		if c.presets[i].Nominal() > cur {
			return c.presets[i], true
		}
	}
	return c.current, false
}

// ZoomIn moves to the next finer preset. It is a no-op at the finest one.
func (c *Controller) ZoomIn() model.ZoomScale {
	if p, ok := c.Finer(); ok {
		c.commit(p)
	}
	return c.current
}

// ZoomOut moves to the next coarser preset. It is a no-op at the coarsest one.
func (c *Controller) ZoomOut() model.ZoomScale {
	if p, ok := c.Coarser(); ok {
		c.commit(p)
	}
	return c.current
}

func (c *Controller) commit(z model.ZoomScale) {
	if z == c.current {
		return
	}
	prev := c.current
	c.current = z
	for _, l := range c.listeners {
		l(prev, z)
	}
}

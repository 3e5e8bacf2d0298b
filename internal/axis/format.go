package axis

import (
	"time"

	"tlsched/internal/model"
)

// Formatter renders a header label for the bucket of unit starting at t.
type Formatter func(unit model.TimeUnit, t time.Time) string

var defaultLayouts = map[model.TimeUnit]string{
	model.UnitMinute: "15:04",
	model.UnitHour:   "15:04",
	model.UnitDay:    "Mon 2",
	model.UnitWeek:   "Jan 2",
	model.UnitMonth:  "January 2006",
	model.UnitYear:   "2006",
}

// LayoutFormatter formats with each spec's Format layout, falling back to
// a per-unit default for units without one.
func LayoutFormatter(specs []model.HeaderSpec) Formatter {
	layouts := make(map[model.TimeUnit]string, len(defaultLayouts))
	for u, l := range defaultLayouts {
		layouts[u] = l
	}
	for _, s := range specs {
		if s.Format != "" {
			layouts[s.Unit] = s.Format
		}
	}
	return func(unit model.TimeUnit, t time.Time) string {
		return t.Format(layouts[unit])
	}
}

package model

import (
	"fmt"
	"strings"
	"time"
)

// TimeUnit is an ordered calendar granularity. Larger values are coarser.
type TimeUnit int

const (
	UnitMinute TimeUnit = iota + 1
	UnitHour
	UnitDay
	UnitWeek
	UnitMonth
	UnitYear
)

var unitNames = map[TimeUnit]string{
	UnitMinute: "minute",
	UnitHour:   "hour",
	UnitDay:    "day",
	UnitWeek:   "week",
	UnitMonth:  "month",
	UnitYear:   "year",
}

// Valid reports whether u is one of the recognized units.
func (u TimeUnit) Valid() bool {
	_, ok := unitNames[u]
	return ok
}

func (u TimeUnit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// Nominal returns the approximate length of one unit. It is only used to
// order scales; calendar arithmetic never relies on it.
func (u TimeUnit) Nominal() time.Duration {
	switch u {
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	case UnitDay:
		return 24 * time.Hour
	case UnitWeek:
		return 7 * 24 * time.Hour
	case UnitMonth:
		return 30 * 24 * time.Hour
	case UnitYear:
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}

// ParseUnit accepts singular or plural unit names, case-insensitively.
func ParseUnit(s string) (TimeUnit, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "s")
	for u, n := range unitNames {
		if n == name {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown time unit %q", s)
}

func (u TimeUnit) MarshalText() ([]byte, error) {
	if !u.Valid() {
		return nil, fmt.Errorf("unknown time unit %d", int(u))
	}
	return []byte(u.String()), nil
}

func (u *TimeUnit) UnmarshalText(b []byte) error {
	v, err := ParseUnit(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// ZoomScale is the (unit, step) pair that sets the grid granularity.
type ZoomScale struct {
	Unit TimeUnit `json:"unit" yaml:"unit"`
	Step int      `json:"step" yaml:"step"`
}

// Validate checks that the unit is recognized and step >= 1.
func (z ZoomScale) Validate() error {
	if !z.Unit.Valid() {
		return fmt.Errorf("%w: unknown unit %d", ErrInvalidZoom, int(z.Unit))
	}
	if z.Step < 1 {
		return fmt.Errorf("%w: step %d < 1", ErrInvalidZoom, z.Step)
	}
	return nil
}

// Nominal is the approximate bucket length, used to order scales.
func (z ZoomScale) Nominal() time.Duration {
	return z.Unit.Nominal() * time.Duration(z.Step)
}

func (z ZoomScale) String() string {
	return fmt.Sprintf("%d %s", z.Step, z.Unit)
}

// Interval is a span of time. Start must not be after End; Start == End is
// a valid point-in-time marker.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate returns ErrInvalidInterval when Start is after End.
func (iv Interval) Validate() error {
	if iv.Start.After(iv.End) {
		return fmt.Errorf("%w: start %s after end %s", ErrInvalidInterval,
			iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
	return nil
}

func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Empty reports a zero-length interval.
func (iv Interval) Empty() bool { return iv.Start.Equal(iv.End) }

// Overlaps treats both intervals as half-open [Start, End).
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Visible reports whether iv should be drawn inside the range r. Point
// markers are visible when r.Start <= Start < r.End.
func (iv Interval) Visible(r Interval) bool {
	if iv.Empty() {
		return !iv.Start.Before(r.Start) && iv.Start.Before(r.End)
	}
	return iv.Overlaps(r)
}

// Shift moves both ends by d.
func (iv Interval) Shift(d time.Duration) Interval {
	return Interval{Start: iv.Start.Add(d), End: iv.End.Add(d)}
}

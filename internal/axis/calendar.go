package axis

import (
	"time"

	"tlsched/internal/model"
)

// Calendar performs civil-calendar arithmetic in a fixed location.
// The zero value uses time.Local and weeks starting on Sunday.
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

// NewCalendar returns a calendar for loc. A nil loc means time.Local.
func NewCalendar(loc *time.Location, weekStart time.Weekday) Calendar {
	return Calendar{Location: loc, WeekStart: weekStart}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Floor returns the start of the unit bucket containing t.
func (c Calendar) Floor(t time.Time, u model.TimeUnit) time.Time {
	lt := t.In(c.loc())
	switch u {
	case model.UnitMinute:
		return floorOffset(lt, 60)
	case model.UnitHour:
		return floorOffset(lt, 3600)
	case model.UnitDay:
		y, m, d := lt.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, c.loc())
	case model.UnitWeek:
		y, m, d := lt.Date()
		back := (int(lt.Weekday()) - int(c.WeekStart) + 7) % 7
		return time.Date(y, m, d-back, 0, 0, 0, 0, c.loc())
	case model.UnitMonth:
		y, m, _ := lt.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, c.loc())
	case model.UnitYear:
		return time.Date(lt.Year(), time.January, 1, 0, 0, 0, 0, c.loc())
	default:
		return lt
	}
}

// floorOffset truncates to a multiple of sec seconds of local wall time,
// using the zone offset in effect at t.
func floorOffset(t time.Time, sec int64) time.Time {
	_, off := t.Zone()
	local := t.Unix() + int64(off)
	rem := local % sec
	if rem < 0 {
		rem += sec
	}
	return time.Unix(t.Unix()-rem, 0).In(t.Location())
}

// Add moves t by n units. Minutes and hours are elapsed time; days and
// coarser units follow the wall clock, so a DST day is 23 or 25 hours.
func (c Calendar) Add(t time.Time, u model.TimeUnit, n int) time.Time {
	lt := t.In(c.loc())
	switch u {
	case model.UnitMinute:
		return lt.Add(time.Duration(n) * time.Minute)
	case model.UnitHour:
		return lt.Add(time.Duration(n) * time.Hour)
	}
	y, m, d := lt.Date()
	hh, mm, ss := lt.Clock()
	ns := lt.Nanosecond()
	switch u {
	case model.UnitDay:
		d += n
	case model.UnitWeek:
		d += 7 * n
	case model.UnitMonth:
		m += time.Month(n)
	case model.UnitYear:
		y += n
	}
	return time.Date(y, m, d, hh, mm, ss, ns, c.loc())
}

// wallAdd is Add with hours counted on the wall clock. Nonexistent local
// times are normalized by time.Date, so two offsets may land on the same
// instant inside a DST gap.
func (c Calendar) wallAdd(t time.Time, u model.TimeUnit, n int) time.Time {
	if u != model.UnitHour {
		return c.Add(t, u, n)
	}
	lt := t.In(c.loc())
	y, m, d := lt.Date()
	return time.Date(y, m, d, lt.Hour()+n, lt.Minute(), lt.Second(), lt.Nanosecond(), c.loc())
}

// cycleOf is the unit at whose boundaries step buckets restart.
func cycleOf(u model.TimeUnit) model.TimeUnit {
	switch u {
	case model.UnitMinute:
		return model.UnitHour
	case model.UnitHour:
		return model.UnitDay
	case model.UnitDay:
		return model.UnitMonth
	case model.UnitMonth:
		return model.UnitYear
	default:
		return 0
	}
}

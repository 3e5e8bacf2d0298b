package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "tlsched/internal/log"
	"tlsched/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// Details is the event payload carried through layout to renderers.
type Details struct {
	UID         string `json:"uid"`
	Summary     string `json:"summary"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	AllDay      bool   `json:"all_day"`
	SourceID    string `json:"source_id"`
}

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Range selects occurrences overlapping it. Occurrences are returned
	// in Range.Start's location.
	Range model.Interval

	// MaxOccurrencesPerEvent caps a single RRULE; zero means 5000.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds scheduler events plus UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.Event[Details]
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed VEVENTs into scheduler events inside
// cfg.Range. RRULE, EXDATE and RECURRENCE-ID overrides are applied. Event IDs
// are UID@instance, where instance is the original start in UTC.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if err := cfg.Range.Validate(); err != nil {
		return result, fmt.Errorf("ics: expand: %w", err)
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Overrides only apply within the feed that declared them.
	base := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	var keys []string
	for _, ev := range events {
		k := ev.Source.ID + "\x00" + ev.UID
		if ev.IsOverride() {
			overrides[k] = append(overrides[k], ev)
			continue
		}
		if _, seen := base[k]; !seen {
			keys = append(keys, k)
		}
		base[k] = append(base[k], ev)
	}
	sort.Strings(keys)

	seen := make(map[string]struct{})
	for _, k := range keys {
		uid := base[k][0].UID
		truncated := false
		for _, ev := range base[k] {
			out, hitCap := expandEvent(ev, overrides[k], cfg)
			truncated = truncated || hitCap
			for _, e := range out {
				key := e.ResourceID + "\x00" + e.ID
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				result.Events = append(result.Events, e)
			}
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("ics expand truncated", errors.New("max occurrences reached"),
				"uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event[Details], bool) {
	if ev.RawRRule == "" {
		return emit(nil, ev, ev.Start, overrides, cfg), false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound so occurrences starting before the range but
	// still running into it are kept.
	loc := ev.Start.Location()
	after := cfg.Range.Start.Add(-ev.End.Sub(ev.Start)).In(loc)
	before := cfg.Range.End.In(loc)
	starts := set.Between(after, before, true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	var out []model.Event[Details]
	for _, s := range starts {
		out = emit(out, ev, s, overrides, cfg)
	}
	return out, hitCap
}

// emit appends the instance of ev starting at start, replaced by its
// override when one exists, if it is visible in cfg.Range.
func emit(out []model.Event[Details], ev ParsedEvent, start time.Time, overrides []ParsedEvent, cfg ExpandConfig) []model.Event[Details] {
	instance := start.UTC().Format(time.RFC3339)
	iv := occurrenceInterval(ev, start)
	if o, ok := findOverride(overrides, start); ok {
		ev = o
		iv = model.Interval{Start: o.Start, End: o.End}
	}
	if !iv.Visible(cfg.Range) {
		return out
	}
	loc := cfg.Range.Start.Location()
	return append(out, model.Event[Details]{
		ID:         ev.UID + "@" + instance,
		ResourceID: ev.Source.ResourceID,
		Interval:   model.Interval{Start: iv.Start.In(loc), End: iv.End.In(loc)},
		Payload: Details{
			UID:         ev.UID,
			Summary:     ev.Summary,
			Location:    ev.Location,
			Description: ev.Description,
			AllDay:      ev.AllDay,
			SourceID:    ev.Source.ID,
		},
	})
}

func occurrenceInterval(ev ParsedEvent, start time.Time) model.Interval {
	if ev.AllDay {
		// Keep the day count so DST transitions do not shorten the event.
		days := int(ev.End.Sub(ev.Start).Round(24*time.Hour) / (24 * time.Hour))
		if days < 1 {
			days = 1
		}
		d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		return model.Interval{Start: d, End: d.AddDate(0, 0, days)}
	}
	return model.Interval{Start: start, End: start.Add(ev.End.Sub(ev.Start))}
}

func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

// Load parses every fetched body and expands it into cfg.Range. A body that
// fails to parse is reported and skipped.
func Load(results []FetchResult, loc *time.Location, cfg ExpandConfig) ([]model.Event[Details], []error) {
	var parsed []ParsedEvent
	var errs []error
	for _, res := range results {
		evs, err := ParseICS(res.Source, res.Body, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("ics: parse %q: %w", res.Source.ID, err))
			continue
		}
		parsed = append(parsed, evs...)
	}
	out, err := ExpandOccurrences(parsed, cfg)
	if err != nil {
		errs = append(errs, err)
	}
	return out.Events, errs
}

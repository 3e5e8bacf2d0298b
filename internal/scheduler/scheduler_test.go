package scheduler

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"tlsched/internal/axis"
	"tlsched/internal/model"
)

var day0 = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day0.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type note struct{ Title string }

func newTestScheduler(t *testing.T, windowSize int) *Scheduler[note] {
	t.Helper()
	s, err := New[note](Options{
		Headers: []model.HeaderSpec{{Unit: model.UnitDay}, {Unit: model.UnitHour}},
		Presets: []model.ZoomScale{
			{Unit: model.UnitDay, Step: 1},
			{Unit: model.UnitHour, Step: 1},
			{Unit: model.UnitMinute, Step: 30},
		},
		Scale:         model.ZoomScale{Unit: model.UnitHour, Step: 1},
		VisibleRange:  model.Interval{Start: day0, End: day0.Add(24 * time.Hour)},
		Calendar:      axis.NewCalendar(time.UTC, time.Monday),
		SlotWidth:     60,
		MinEventWidth: 5,
		WindowSize:    windowSize,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func event(res, id string, start, end time.Time) model.Event[note] {
	return model.Event[note]{ID: id, ResourceID: res, Interval: model.Interval{Start: start, End: end}, Payload: note{Title: id}}
}

func resources(n int) []model.Resource {
	out := make([]model.Resource, n)
	for i := range out {
		out[i] = model.Resource{ID: fmt.Sprintf("r%d", i), Label: fmt.Sprintf("Room %d", i)}
	}
	return out
}

func TestRecomputeRenderModel(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, 0)
	if err := s.SetResources(resources(2)); err != nil {
		t.Fatalf("SetResources error: %v", err)
	}
	err := s.SetEvents([]model.Event[note]{
		event("r0", "A", at(10, 0), at(11, 0)),
		event("r0", "B", at(10, 30), at(11, 30)),
		event("r0", "C", at(11, 0), at(12, 0)),
		event("r1", "M", at(14, 0), at(14, 0)),
		event("ghost", "X", at(1, 0), at(2, 0)),
	})
	if err != nil {
		t.Fatalf("SetEvents error: %v", err)
	}

	rm, err := s.Recompute()
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	if len(rm.HeaderLevels) != 2 || len(rm.HeaderLevels[0]) != 1 || len(rm.HeaderLevels[1]) != 24 {
		t.Fatalf("header levels have shape %d/%d", len(rm.HeaderLevels[0]), len(rm.HeaderLevels[1]))
	}
	if rm.Width != 24*60 {
		t.Fatalf("Width = %v, want 1440", rm.Width)
	}
	if len(rm.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rm.Rows))
	}
	r0 := rm.Rows[0]
	if r0.Resource.ID != "r0" || r0.Lanes != 2 || len(r0.Positioned) != 3 {
		t.Fatalf("row r0 = %+v", r0)
	}
	lanes := map[string]int{}
	for _, p := range r0.Positioned {
		lanes[p.Event.ID] = p.Lane
	}
	if lanes["A"] != 0 || lanes["B"] != 1 || lanes["C"] != 0 {
		t.Fatalf("lanes = %v", lanes)
	}
	marker := rm.Rows[1].Positioned[0]
	if marker.PixelWidth != 5 || marker.PixelStart != 14*60 {
		t.Fatalf("marker = %+v, want start 840 width 5", marker)
	}
	if marker.Event.Payload.Title != "M" {
		t.Fatalf("payload = %+v", marker.Event.Payload)
	}
	if len(rm.Presets) != 3 || rm.Presets[2] != (model.ZoomScale{Unit: model.UnitMinute, Step: 30}) {
		t.Fatalf("presets = %v", rm.Presets)
	}
}

func TestSetEventsRejectsInvalidWithoutMutation(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, 0)
	if err := s.SetResources(resources(1)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetEvents([]model.Event[note]{event("r0", "ok", at(1, 0), at(2, 0))}); err != nil {
		t.Fatal(err)
	}

	err := s.SetEvents([]model.Event[note]{
		event("r0", "fine", at(3, 0), at(4, 0)),
		event("r0", "bad", at(5, 0), at(4, 0)),
	})
	if !errors.Is(err, model.ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
	err = s.SetEvents([]model.Event[note]{
		event("r0", "dup", at(3, 0), at(4, 0)),
		event("r0", "dup", at(5, 0), at(6, 0)),
	})
	if !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}

	rm, err := s.Recompute()
	if err != nil {
		t.Fatal(err)
	}
	if got := rm.Rows[0].Positioned; len(got) != 1 || got[0].Event.ID != "ok" {
		t.Fatalf("events changed after rejected SetEvents: %+v", got)
	}

	if err := s.SetResources([]model.Resource{{ID: "a"}, {ID: "a"}}); !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("duplicate resources err = %v", err)
	}
}

func TestSetVisibleRangeReversedKeepsRange(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, 0)
	before := s.Viewport().VisibleRange
	err := s.SetVisibleRange(model.Interval{Start: at(12, 0), End: at(6, 0)})
	if !errors.Is(err, model.ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
	if after := s.Viewport().VisibleRange; !after.Start.Equal(before.Start) || !after.End.Equal(before.End) {
		t.Fatalf("range changed to %+v", after)
	}
}

func TestEmptyInputsProduceEmptyModel(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, 3)
	rm, err := s.Recompute()
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	if len(rm.Rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rm.Rows))
	}

	if err := s.SetVisibleRange(model.Interval{Start: at(10, 0), End: at(10, 0)}); err != nil {
		t.Fatalf("zero-width range error: %v", err)
	}
	if err := s.SetResources(resources(2)); err != nil {
		t.Fatal(err)
	}
	// Spans the zero-width range, so only the empty-range rule hides it.
	if err := s.SetEvents([]model.Event[note]{event("r0", "span", at(9, 0), at(11, 0))}); err != nil {
		t.Fatal(err)
	}
	rm, err = s.Recompute()
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	if len(rm.Grid) != 0 || len(rm.Rows) != 2 || len(rm.Rows[0].Positioned) != 0 {
		t.Fatalf("zero-width model = %+v", rm)
	}
}

func TestZoomChangesAxis(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, 0)
	rm, err := s.Recompute()
	if err != nil {
		t.Fatal(err)
	}
	if len(rm.Grid) != 24 {
		t.Fatalf("hour grid = %d cells", len(rm.Grid))
	}
	if got := s.ZoomIn(); got != (model.ZoomScale{Unit: model.UnitMinute, Step: 30}) {
		t.Fatalf("ZoomIn = %v", got)
	}
	rm2, err := s.Recompute()
	if err != nil {
		t.Fatal(err)
	}
	if len(rm2.Grid) != 48 || rm2.Width != 48*60 {
		t.Fatalf("30-minute grid = %d cells, width %v", len(rm2.Grid), rm2.Width)
	}
	if len(rm.Grid) != 24 {
		t.Fatal("previous render model was modified")
	}
	s.ZoomIn()
	if s.Scale() != (model.ZoomScale{Unit: model.UnitMinute, Step: 30}) {
		t.Fatal("ZoomIn past the finest preset changed the scale")
	}
	if _, err := s.SetScale(model.ZoomScale{Unit: model.UnitHour, Step: 0}); !errors.Is(err, model.ErrInvalidZoom) {
		t.Fatalf("SetScale err = %v", err)
	}
}

func TestScrollVirtualizesAndReusesRows(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, 2)
	if err := s.SetResources(resources(5)); err != nil {
		t.Fatal(err)
	}
	var events []model.Event[note]
	for i := 0; i < 5; i++ {
		events = append(events, event(fmt.Sprintf("r%d", i), "e", at(i, 0), at(i+1, 0)))
	}
	if err := s.SetEvents(events); err != nil {
		t.Fatal(err)
	}

	first, err := s.Recompute()
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Rows) != 2 || first.Rows[0].Resource.ID != "r0" {
		t.Fatalf("first window = %+v", first.Rows)
	}

	s.ScrollResources(1)
	second, err := s.Recompute()
	if err != nil {
		t.Fatal(err)
	}
	if second.Rows[0].Resource.ID != "r1" || second.Rows[0].Index != 1 {
		t.Fatalf("scrolled window starts at %+v", second.Rows[0].Resource)
	}
	if &second.Rows[0].Positioned[0] != &first.Rows[1].Positioned[0] {
		t.Fatal("row that stayed in view was laid out again")
	}

	s.ScrollResources(10)
	if vp := s.Viewport(); vp.ResourceWindow != [2]int{3, 5} {
		t.Fatalf("clamped window = %v, want [3 5]", vp.ResourceWindow)
	}

	s.PanBy(time.Hour)
	third, err := s.Recompute()
	if err != nil {
		t.Fatal(err)
	}
	if third.Rows[0].Positioned[0].PixelStart != 2*60 {
		t.Fatalf("pan did not relayout: %+v", third.Rows[0].Positioned[0])
	}
}

func TestMoveAndResizeInterval(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, 0)
	iv := model.Interval{Start: at(10, 0), End: at(11, 0)}

	moved, err := s.MoveInterval(iv, 90, false)
	if err != nil {
		t.Fatal(err)
	}
	if !moved.Start.Equal(at(11, 30)) || !moved.End.Equal(at(12, 30)) {
		t.Fatalf("moved = %+v", moved)
	}
	moved, err = s.MoveInterval(iv, 80, true)
	if err != nil {
		t.Fatal(err)
	}
	if !moved.Start.Equal(at(11, 0)) {
		t.Fatalf("snapped move = %+v", moved)
	}

	resized, err := s.ResizeInterval(iv, EdgeEnd, -120, false)
	if err != nil {
		t.Fatal(err)
	}
	if !resized.Start.Equal(iv.Start) || !resized.End.Equal(iv.Start) {
		t.Fatalf("end dragged past start = %+v, want collapse to start", resized)
	}
	resized, err = s.ResizeInterval(iv, EdgeStart, -30, false)
	if err != nil {
		t.Fatal(err)
	}
	if !resized.Start.Equal(at(9, 30)) || !resized.End.Equal(iv.End) {
		t.Fatalf("resized = %+v", resized)
	}

	if _, err := s.MoveInterval(model.Interval{Start: at(2, 0), End: at(1, 0)}, 10, false); !errors.Is(err, model.ErrInvalidInterval) {
		t.Fatalf("reversed interval err = %v", err)
	}
}

func TestViewChangesOverCellCapAreRejected(t *testing.T) {
	t.Parallel()
	s, err := New[note](Options{
		Headers: []model.HeaderSpec{{Unit: model.UnitDay}, {Unit: model.UnitHour}},
		Presets: []model.ZoomScale{
			{Unit: model.UnitHour, Step: 1},
			{Unit: model.UnitMinute, Step: 30},
		},
		Scale:        model.ZoomScale{Unit: model.UnitHour, Step: 1},
		VisibleRange: model.Interval{Start: day0, End: day0.Add(24 * time.Hour)},
		Calendar:     axis.NewCalendar(time.UTC, time.Monday),
		SlotWidth:    60,
		MaxCells:     30,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	hour := model.ZoomScale{Unit: model.UnitHour, Step: 1}
	day := model.Interval{Start: day0, End: day0.Add(24 * time.Hour)}

	if got, err := s.SetScale(model.ZoomScale{Unit: model.UnitMinute, Step: 1}); !errors.Is(err, model.ErrTooManyCells) || got != hour {
		t.Fatalf("SetScale over cap = %v, %v", got, err)
	}
	if got := s.ZoomIn(); got != hour {
		t.Fatalf("ZoomIn over cap = %v, want clamped at %v", got, hour)
	}
	if err := s.SetVisibleRange(model.Interval{Start: day0, End: day0.Add(48 * time.Hour)}); !errors.Is(err, model.ErrTooManyCells) {
		t.Fatalf("SetVisibleRange over cap err = %v", err)
	}
	if vr := s.Viewport().VisibleRange; !vr.Start.Equal(day.Start) || !vr.End.Equal(day.End) {
		t.Fatalf("range changed to %+v", vr)
	}

	rm, err := s.Recompute()
	if err != nil {
		t.Fatalf("Recompute after rejected changes: %v", err)
	}
	if len(rm.Grid) != 24 || rm.Scale != hour {
		t.Fatalf("model = %d cells at %v", len(rm.Grid), rm.Scale)
	}

	if err := s.SetView(model.Interval{Start: day0, End: day0.Add(12 * time.Hour)}, model.ZoomScale{Unit: model.UnitMinute, Step: 30}); err != nil {
		t.Fatalf("SetView within cap: %v", err)
	}
	if rm, err = s.Recompute(); err != nil || len(rm.Grid) != 24 {
		t.Fatalf("SetView model = %v cells, %v", len(rm.Grid), err)
	}

	if _, err := New[note](Options{
		Presets:      []model.ZoomScale{{Unit: model.UnitMinute, Step: 1}},
		Scale:        model.ZoomScale{Unit: model.UnitMinute, Step: 1},
		VisibleRange: day,
		Calendar:     axis.NewCalendar(time.UTC, time.Monday),
		MaxCells:     30,
	}); !errors.Is(err, model.ErrTooManyCells) {
		t.Fatalf("New over cap err = %v", err)
	}
}

func TestSetWindowSizeResizesRowWindow(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t, 0)
	if err := s.SetResources(resources(4)); err != nil {
		t.Fatal(err)
	}
	s.SetWindowSize(2)
	s.ScrollResources(1)
	rm, err := s.Recompute()
	if err != nil {
		t.Fatal(err)
	}
	if len(rm.Rows) != 2 || rm.Rows[0].Resource.ID != "r1" {
		t.Fatalf("rows = %+v", rm.Rows)
	}
	s.SetWindowSize(0)
	if vp := s.Viewport(); vp.ResourceWindow != [2]int{0, 4} {
		t.Fatalf("window after size 0 = %v", vp.ResourceWindow)
	}
}

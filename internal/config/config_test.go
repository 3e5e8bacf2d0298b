package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tlsched/internal/model"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen != DefaultConfig().Listen {
		t.Fatalf("Listen = %q", cfg.Listen)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if len(again.ZoomPresets) != len(cfg.ZoomPresets) || again.RefreshCron != cfg.RefreshCron {
		t.Fatalf("reloaded config differs: %+v", again)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
timezone: America/New_York
week_start: SUNDAY
window_size: -3
resources:
  - id: room-1
ics:
  - name: team
    url: https://example.com/team.ics
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.WeekStart != "sunday" || cfg.WeekStartDay() != time.Sunday {
		t.Fatalf("WeekStart = %q", cfg.WeekStart)
	}
	if cfg.WindowSize != 0 || cfg.SlotWidth != DefaultConfig().SlotWidth {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.ICS[0].ID != "team" || cfg.ICS[0].ResourceID != "team" {
		t.Fatalf("ics = %+v", cfg.ICS[0])
	}
	if res := cfg.ResourceList(); res[0].Label != "room-1" {
		t.Fatalf("resource label = %q", res[0].Label)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{"timezone", "timezone: Mars/Olympus\n"},
		{"refresh", "refresh: every now and then\n"},
		{"header unit", "headers:\n  - unit: fortnight\n"},
		{"header order", "headers:\n  - unit: hour\n  - unit: day\n"},
		{"zoom step", "zoom_presets:\n  - unit: hour\n    step: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("Load accepted invalid config")
			}
		})
	}
}

func TestSchedulerOptions(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Timezone = "Asia/Seoul"
	cfg.BackfillDays = 1
	cfg.RangeDays = 2
	cfg.Normalize()

	now := time.Date(2025, 3, 10, 1, 30, 0, 0, time.UTC) // 10:30 in Seoul
	opts, err := cfg.SchedulerOptions(now)
	if err != nil {
		t.Fatalf("SchedulerOptions error: %v", err)
	}
	loc := cfg.Location()
	wantStart := time.Date(2025, 3, 9, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2025, 3, 12, 0, 0, 0, 0, loc)
	if !opts.VisibleRange.Start.Equal(wantStart) || !opts.VisibleRange.End.Equal(wantEnd) {
		t.Fatalf("range = %+v", opts.VisibleRange)
	}
	if opts.Scale != (model.ZoomScale{Unit: model.UnitHour, Step: 1}) {
		t.Fatalf("initial scale = %v", opts.Scale)
	}
	if len(opts.Headers) != 3 || opts.Headers[0].Unit != model.UnitMonth || opts.Headers[2].Format != "15:04" {
		t.Fatalf("headers = %+v", opts.Headers)
	}
	if opts.Calendar.WeekStart != time.Monday || opts.Calendar.Location.String() != "Asia/Seoul" {
		t.Fatalf("calendar = %+v", opts.Calendar)
	}

	cfg.Headers = []HeaderConfig{{Unit: "day"}, {Unit: "month"}}
	if _, err := cfg.SchedulerOptions(now); !errors.Is(err, model.ErrInvalidHeader) {
		t.Fatalf("unordered headers err = %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	cfg.ICS = []ICSConfig{{ID: "team", URL: "https://example.com/team.ics", ResourceID: "room-1"}}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.BasicAuth == nil || got.BasicAuth.Password != "secret" || got.ICS[0].ResourceID != "room-1" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".tlsched-config-*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

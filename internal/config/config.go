package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"tlsched/internal/axis"
	"tlsched/internal/model"
	"tlsched/internal/scheduler"
)

// HeaderConfig is one header level, coarse levels first.
type HeaderConfig struct {
	// Unit is minute, hour, day, week, month or year.
	Unit string `yaml:"unit" json:"unit"`
	// Format is a Go time layout such as "Mon 2" or "15:04".
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// ZoomConfig is one zoom preset.
type ZoomConfig struct {
	Unit string `yaml:"unit" json:"unit"`
	Step int    `yaml:"step" json:"step"`
}

// ResourceConfig declares one scheduler row.
type ResourceConfig struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// ICSConfig describes a single ICS subscription feeding one resource row.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// ResourceID is the row receiving this feed's events. If empty, ID is used.
	ResourceID string `yaml:"resource_id" json:"resource_id"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for calendar bucketing.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a standard 5-field cron spec for feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// PixelWidth fixes the width of the visible range. When zero, each
	// full grid bucket is SlotWidth pixels.
	PixelWidth    float64 `yaml:"pixel_width" json:"pixel_width"`
	SlotWidth     float64 `yaml:"slot_width" json:"slot_width"`
	MinEventWidth float64 `yaml:"min_event_width" json:"min_event_width"`
	MaxCells      int     `yaml:"max_cells" json:"max_cells"`

	// WindowSize is the number of rows laid out at once (0 = all).
	WindowSize int `yaml:"window_size" json:"window_size"`

	Headers     []HeaderConfig `yaml:"headers" json:"headers"`
	ZoomPresets []ZoomConfig   `yaml:"zoom_presets" json:"zoom_presets"`
	// InitialZoom indexes ZoomPresets.
	InitialZoom int `yaml:"initial_zoom" json:"initial_zoom"`

	// RangeDays and BackfillDays set the initial visible range around today.
	RangeDays    int `yaml:"range_days" json:"range_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	Resources []ResourceConfig `yaml:"resources" json:"resources"`
	ICS       []ICSConfig      `yaml:"ics" json:"ics"`

	// CacheDir stores ICS bodies and HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// RefreshParser parses the refresh spec: five fields or a descriptor such
// as "@hourly".
var RefreshParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func defaultHeaders() []HeaderConfig {
	return []HeaderConfig{
		{Unit: "month", Format: "January 2006"},
		{Unit: "day", Format: "Mon 2"},
		{Unit: "hour", Format: "15:04"},
	}
}

func defaultZoomPresets() []ZoomConfig {
	return []ZoomConfig{
		{Unit: "day", Step: 1},
		{Unit: "hour", Step: 6},
		{Unit: "hour", Step: 1},
		{Unit: "minute", Step: 30},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      "UTC",
		WeekStart:     "monday",
		RefreshCron:   "*/15 * * * *",
		LogLevel:      "info",
		SlotWidth:     axis.DefaultSlotWidth,
		MinEventWidth: 4,
		MaxCells:      axis.DefaultMaxCells,
		Headers:       defaultHeaders(),
		ZoomPresets:   defaultZoomPresets(),
		InitialZoom:   2,
		RangeDays:     3,
		BackfillDays:  0,
		Resources:     []ResourceConfig{},
		ICS:           []ICSConfig{},
		CacheDir:      "./var/ics-cache",
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = d.WeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.PixelWidth < 0 {
		c.PixelWidth = 0
	}
	if c.SlotWidth <= 0 {
		c.SlotWidth = d.SlotWidth
	}
	if c.MinEventWidth <= 0 {
		c.MinEventWidth = d.MinEventWidth
	}
	if c.MaxCells <= 0 {
		c.MaxCells = d.MaxCells
	}
	if c.WindowSize < 0 {
		c.WindowSize = 0
	}
	if len(c.Headers) == 0 {
		c.Headers = d.Headers
	}
	if len(c.ZoomPresets) == 0 {
		c.ZoomPresets = d.ZoomPresets
	}
	if c.InitialZoom < 0 || c.InitialZoom >= len(c.ZoomPresets) {
		c.InitialZoom = 0
	}
	if c.RangeDays <= 0 {
		c.RangeDays = d.RangeDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.Resources == nil {
		c.Resources = []ResourceConfig{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			if c.ICS[i].Name != "" {
				c.ICS[i].ID = c.ICS[i].Name
			} else {
				c.ICS[i].ID = c.ICS[i].URL
			}
		}
		if c.ICS[i].ResourceID == "" {
			c.ICS[i].ResourceID = c.ICS[i].ID
		}
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
}

// Validate checks fields that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := RefreshParser.Parse(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := c.headerSpecs(); err != nil {
		return err
	}
	if _, err := c.zoomScales(); err != nil {
		return err
	}
	return nil
}

func (c *Config) headerSpecs() ([]model.HeaderSpec, error) {
	specs := make([]model.HeaderSpec, 0, len(c.Headers))
	for i, h := range c.Headers {
		u, err := model.ParseUnit(h.Unit)
		if err != nil {
			return nil, fmt.Errorf("config: headers[%d]: %w", i, err)
		}
		specs = append(specs, model.HeaderSpec{Unit: u, Format: h.Format})
	}
	if err := model.ValidateHeaders(specs); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return specs, nil
}

func (c *Config) zoomScales() ([]model.ZoomScale, error) {
	scales := make([]model.ZoomScale, 0, len(c.ZoomPresets))
	for i, z := range c.ZoomPresets {
		u, err := model.ParseUnit(z.Unit)
		if err != nil {
			return nil, fmt.Errorf("config: zoom_presets[%d]: %w", i, err)
		}
		s := model.ZoomScale{Unit: u, Step: z.Step}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("config: zoom_presets[%d]: %w", i, err)
		}
		scales = append(scales, s)
	}
	return scales, nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WeekStartDay returns the configured first weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// ResourceList returns the configured rows as model resources.
func (c *Config) ResourceList() []model.Resource {
	out := make([]model.Resource, 0, len(c.Resources))
	for _, r := range c.Resources {
		label := r.Label
		if label == "" {
			label = r.ID
		}
		out = append(out, model.Resource{ID: r.ID, Label: label})
	}
	return out
}

// InitialRange is the visible range starting BackfillDays before the day
// containing now and spanning RangeDays past it.
func (c *Config) InitialRange(now time.Time) model.Interval {
	loc := c.Location()
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	return model.Interval{
		Start: today.AddDate(0, 0, -c.BackfillDays),
		End:   today.AddDate(0, 0, c.RangeDays),
	}
}

// SchedulerOptions converts the config into scheduler options for a view
// anchored at now.
func (c *Config) SchedulerOptions(now time.Time) (scheduler.Options, error) {
	specs, err := c.headerSpecs()
	if err != nil {
		return scheduler.Options{}, err
	}
	presets, err := c.zoomScales()
	if err != nil {
		return scheduler.Options{}, err
	}
	if len(presets) == 0 {
		return scheduler.Options{}, errors.New("config: zoom_presets is empty")
	}
	initial := presets[0]
	if c.InitialZoom >= 0 && c.InitialZoom < len(presets) {
		initial = presets[c.InitialZoom]
	}
	return scheduler.Options{
		Headers:       specs,
		Presets:       presets,
		Scale:         initial,
		VisibleRange:  c.InitialRange(now),
		Calendar:      axis.NewCalendar(c.Location(), c.WeekStartDay()),
		PixelWidth:    c.PixelWidth,
		SlotWidth:     c.SlotWidth,
		MinEventWidth: c.MinEventWidth,
		MaxCells:      c.MaxCells,
		WindowSize:    c.WindowSize,
		Format:        axis.LayoutFormatter(specs),
	}, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tlsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

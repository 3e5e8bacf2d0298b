package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"tlsched/internal/capture"
	"tlsched/internal/config"
	"tlsched/internal/ics"
	appLog "tlsched/internal/log"
	"tlsched/internal/model"
	"tlsched/internal/scheduler"
	"tlsched/internal/web"
)

type flagConfig struct {
	configPath  string
	listen      string
	once        bool
	capturePath string
	debug       bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("tlsched failed", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./tlsched.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh feeds once, print the render model as JSON and exit")
	flag.StringVar(&cfg.capturePath, "capture", "", "Write a PNG of /timeline to this path after each refresh")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()
	return cfg
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	level, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		appLog.Error("bad log_level, using INFO", err)
	}
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"resources", len(conf.Resources),
		"ics_count", len(conf.ICS),
		"once", flags.once,
		"capture", flags.capturePath,
	)

	opts, err := conf.SchedulerOptions(time.Now())
	if err != nil {
		return err
	}
	sched, err := scheduler.New[ics.Details](opts)
	if err != nil {
		return err
	}
	if err := sched.SetResources(resourcesFor(conf)); err != nil {
		return err
	}

	previewPath := flags.capturePath
	if previewPath == "" {
		previewPath = filepath.Join(conf.CacheDir, "preview.png")
	}
	srv := web.NewServer(conf, sched, previewPath)
	app := &app{
		conf:    conf,
		srv:     srv,
		fetcher: ics.NewFetcher(conf.CacheDir, nil),
		sources: sourcesFor(conf),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		return app.runOnce(ctx, flags.capturePath)
	}
	return app.serve(ctx, flags.capturePath)
}

type app struct {
	conf    *config.Config
	srv     *web.Server
	fetcher *ics.Fetcher
	sources []ics.Source
}

// refresh fetches every feed and replaces the scheduler's events with the
// occurrences around the current visible range.
func (a *app) refresh(ctx context.Context) {
	results, errs := a.fetcher.FetchAll(ctx, a.sources)

	var window model.Interval
	_ = a.srv.Update(func(s *web.Scheduler) error {
		vr := s.Viewport().VisibleRange
		pad := time.Duration(a.conf.RangeDays) * 24 * time.Hour
		window = model.Interval{Start: vr.Start.Add(-pad), End: vr.End.Add(pad)}
		return nil
	})

	events, loadErrs := ics.Load(results, a.conf.Location(), ics.ExpandConfig{Range: window})
	errs = append(errs, loadErrs...)

	if err := a.srv.Update(func(s *web.Scheduler) error { return s.SetEvents(events) }); err != nil {
		appLog.Error("refresh rejected events", err)
		return
	}
	appLog.Info("refresh completed",
		"sources", len(a.sources),
		"events", len(events),
		"errors", len(errs),
	)
	if len(errs) > 0 {
		appLog.Error("refresh had errors", errors.Join(errs...))
	}
}

func (a *app) runOnce(ctx context.Context, capturePath string) error {
	a.refresh(ctx)

	if capturePath != "" {
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := web.ListenAndServe(sctx, a.conf.Listen, a.srv.Handler()); err != nil {
				appLog.Error("http server stopped", err)
			}
		}()
		// Give the listener a moment before Chromium connects.
		time.Sleep(200 * time.Millisecond)
		if err := a.capture(ctx, capturePath); err != nil {
			return err
		}
	}

	rm, err := a.srv.Render()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rm)
}

func (a *app) serve(ctx context.Context, capturePath string) error {
	job := func() {
		a.refresh(ctx)
		if capturePath != "" {
			if err := a.capture(ctx, capturePath); err != nil {
				appLog.Error("capture failed", err, "path", capturePath)
			}
		}
	}

	c := cron.New(cron.WithParser(config.RefreshParser), cron.WithLocation(a.conf.Location()))
	if _, err := c.AddFunc(a.conf.RefreshCron, job); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", a.conf.RefreshCron, err)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
		appLog.Info("tlsched exiting")
	}()

	go a.refresh(ctx)

	if err := web.ListenAndServe(ctx, a.conf.Listen, a.srv.Handler()); err != nil {
		return err
	}
	return nil
}

func (a *app) capture(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	err := capture.CaptureTimelinePNG(ctx, capture.Options{
		URL:        "http://" + a.conf.Listen + "/timeline",
		OutputPath: path,
	})
	if err != nil {
		return err
	}
	appLog.Info("timeline captured", "path", path)
	return nil
}

// resourcesFor returns the configured rows followed by a row for every
// feed whose resource is not declared.
func resourcesFor(conf *config.Config) []model.Resource {
	out := conf.ResourceList()
	seen := make(map[string]bool, len(out))
	for _, r := range out {
		seen[r.ID] = true
	}
	for _, src := range conf.ICS {
		if seen[src.ResourceID] {
			continue
		}
		seen[src.ResourceID] = true
		label := src.Name
		if label == "" {
			label = src.ResourceID
		}
		out = append(out, model.Resource{ID: src.ResourceID, Label: label})
	}
	return out
}

func sourcesFor(conf *config.Config) []ics.Source {
	out := make([]ics.Source, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		if c.URL == "" {
			continue
		}
		out = append(out, ics.Source{ID: c.ID, Name: c.Name, URL: c.URL, ResourceID: c.ResourceID})
	}
	return out
}

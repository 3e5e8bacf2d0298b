package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"tlsched/internal/config"
	"tlsched/internal/ics"
	appLog "tlsched/internal/log"
	"tlsched/internal/model"
	"tlsched/internal/scheduler"
)

// Scheduler is the scheduler instance served over HTTP.
type Scheduler = scheduler.Scheduler[ics.Details]

// RenderModel is the render model served over HTTP.
type RenderModel = scheduler.RenderModel[ics.Details]

// Server exposes one shared scheduler over HTTP. The scheduler itself is
// not concurrency-safe, so every access goes through mu.
type Server struct {
	cfg         *config.Config
	previewPath string
	mux         *http.ServeMux

	mu    sync.Mutex
	sched *Scheduler
}

// NewServer wires routes around sched. previewPath is the PNG served at
// /preview.png.
func NewServer(cfg *config.Config, sched *Scheduler, previewPath string) *Server {
	s := &Server{
		cfg:         cfg,
		previewPath: previewPath,
		mux:         http.NewServeMux(),
		sched:       sched,
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Update runs fn with exclusive access to the scheduler.
func (s *Server) Update(fn func(*Scheduler) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.sched)
}

// Render recomputes the current render model.
func (s *Server) Render() (*RenderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Recompute()
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tlsched", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves h on addr until ctx is canceled, then shuts down
// with a five second grace period.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/render", s.handleRender)
	s.mux.HandleFunc("GET /timeline", s.handleTimeline)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleRender applies the query to the shared view and returns the
// render model.
//
// GET /api/render?start=RFC3339&end=RFC3339&unit=hour&step=1&zoom=in&scroll=2&rows=10
//   - start/end: new visible range (both required together)
//   - unit/step: explicit zoom scale (step defaults to 1)
//   - zoom:      in or out, one preset step
//   - rows:      resource window size, 0 shows every row
//   - scroll:    resource window delta
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	rm, err := s.renderQuery(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.previewPath == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.previewPath)
}

// renderQuery applies the request's view changes and recomputes. A view the
// scheduler rejects leaves the shared view as it was.
func (s *Server) renderQuery(r *http.Request) (*RenderModel, error) {
	vq, err := parseViewQuery(r.URL.Query())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := vq.apply(s.sched); err != nil {
		return nil, err
	}
	return s.sched.Recompute()
}

type badRequest struct{ error }

// viewQuery is a parsed /api/render query. Nil fields are left unchanged.
type viewQuery struct {
	visible *model.Interval
	scale   *model.ZoomScale
	zoomDir string
	rows    *int
	scroll  int
}

func parseViewQuery(q url.Values) (viewQuery, error) {
	var vq viewQuery
	start, end := q.Get("start"), q.Get("end")
	if start != "" || end != "" {
		if start == "" || end == "" {
			return vq, badRequest{errors.New("start and end must be given together")}
		}
		st, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return vq, badRequest{fmt.Errorf("start: %w", err)}
		}
		en, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return vq, badRequest{fmt.Errorf("end: %w", err)}
		}
		vq.visible = &model.Interval{Start: st, End: en}
	}
	if unit := q.Get("unit"); unit != "" {
		u, err := model.ParseUnit(unit)
		if err != nil {
			return vq, badRequest{err}
		}
		vq.scale = &model.ZoomScale{Unit: u, Step: parseIntDefault(q.Get("step"), 1)}
	}
	switch vq.zoomDir = q.Get("zoom"); vq.zoomDir {
	case "", "in", "out":
	default:
		return vq, badRequest{fmt.Errorf("zoom must be in or out, got %q", vq.zoomDir)}
	}
	if v := q.Get("rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return vq, badRequest{fmt.Errorf("rows must be a non-negative integer, got %q", v)}
		}
		vq.rows = &n
	}
	if v := q.Get("scroll"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return vq, badRequest{fmt.Errorf("scroll: %w", err)}
		}
		vq.scroll = n
	}
	return vq, nil
}

// apply sets range and scale together so a rejected pair changes neither.
func (vq viewQuery) apply(sched *Scheduler) error {
	if vq.visible != nil || vq.scale != nil {
		r := sched.Viewport().VisibleRange
		if vq.visible != nil {
			r = *vq.visible
		}
		z := sched.Scale()
		if vq.scale != nil {
			z = *vq.scale
		}
		if err := sched.SetView(r, z); err != nil {
			return err
		}
	}
	switch vq.zoomDir {
	case "in":
		sched.ZoomIn()
	case "out":
		sched.ZoomOut()
	}
	if vq.rows != nil {
		sched.SetWindowSize(*vq.rows)
	}
	if vq.scroll != 0 {
		sched.ScrollResources(vq.scroll)
	}
	return nil
}

// statusFor maps validation failures to 400 and everything else to 500.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrInvalidZoom),
		errors.Is(err, model.ErrInvalidInterval),
		errors.Is(err, model.ErrInvalidHeader):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrTooManyCells):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

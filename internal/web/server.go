// Package web serves the dashboard page and its refresh action.
package web

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rewired-gh/hunterboard/internal/dashboard"
	"github.com/rewired-gh/hunterboard/internal/logger"
	"github.com/rewired-gh/hunterboard/internal/models"
)

// Dashboard builds pages and drops cached data on demand.
type Dashboard interface {
	Build(ctx context.Context) dashboard.Page
	Refresh()
}

// LoadHistory reads journaled sheet loads, newest first.
type LoadHistory interface {
	RecentLoadEvents(k int) ([]models.LoadEvent, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLoadHistory reports the most recent sheet load on /health.
func WithLoadHistory(h LoadHistory) Option {
	return func(s *Server) {
		s.history = h
	}
}

// Config holds page text and formatting.
type Config struct {
	Title    string
	Intro    string // markdown
	Currency string
}

// Server renders the dashboard over HTTP.
type Server struct {
	dash    Dashboard
	history LoadHistory
	cfg     Config
	intro   template.HTML
	router  chi.Router
}

// NewServer creates a server. The intro markdown is rendered once here.
func NewServer(dash Dashboard, cfg Config, opts ...Option) (*Server, error) {
	if cfg.Currency == "" {
		cfg.Currency = "KRW"
	}
	intro, err := renderIntro(cfg.Intro)
	if err != nil {
		return nil, err
	}
	s := &Server{dash: dash, cfg: cfg, intro: intro}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Post("/refresh", s.handleRefresh)
	s.router = r

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := s.dash.Build(r.Context())
	if page.Err != nil {
		logger.Warn("Dashboard rendered without data (%s): %v", page.Kind, page.Err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, s.view(page)); err != nil {
		logger.Error("Failed to render page: %v", err)
	}
}

type healthResponse struct {
	Status   string            `json:"status"`
	LastLoad *models.LoadEvent `json:"last_load,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.history != nil {
		events, err := s.history.RecentLoadEvents(1)
		if err != nil {
			logger.Error("Failed to read load history: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error"})
			return
		}
		if len(events) > 0 {
			resp.LastLoad = &events[0]
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.dash.Refresh()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s -> %d in %v", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write JSON response: %v", err)
	}
}

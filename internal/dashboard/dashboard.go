// Package dashboard assembles one page render: load the detection sheet, clean
// it, attach a sparkline per record and count the summary.
package dashboard

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/rewired-gh/hunterboard/internal/cache"
	"github.com/rewired-gh/hunterboard/internal/logger"
	"github.com/rewired-gh/hunterboard/internal/models"
	"github.com/rewired-gh/hunterboard/internal/outcome"
	"github.com/rewired-gh/hunterboard/internal/sparkline"
	"github.com/rewired-gh/hunterboard/internal/transform"
	"github.com/rewired-gh/hunterboard/internal/trend"
)

// Cache kinds.
const (
	KindSheet = "sheet"
	KindChart = "chart"
)

// TableLoader reads the detection sheet.
type TableLoader interface {
	Load(ctx context.Context) outcome.Result[models.Table]
}

// ChartSource returns recent daily closes for a ticker code.
type ChartSource interface {
	Closes(ctx context.Context, code string) outcome.Result[models.Series]
}

// Config holds dashboard behavior configuration.
type Config struct {
	Transform transform.Options
	Sparkline sparkline.Options
	SheetTTL  time.Duration
	ChartTTL  time.Duration
}

// DefaultConfig returns the stock cache lifetimes and sheet layout.
func DefaultConfig() Config {
	return Config{
		Transform: transform.DefaultOptions(),
		Sparkline: sparkline.DefaultOptions(),
		SheetTTL:  time.Minute,
		ChartTTL:  time.Hour,
	}
}

// Card is one detection with its chart.
type Card struct {
	Record      models.DetectionRecord
	Profit      bool
	Series      models.Series
	Trend       trend.Trend
	HasTrend    bool
	ChartSVG    string
	ChartStatus string // "ok", or the chart outcome kind when there is no chart
}

// HasChart reports whether the card carries a rendered sparkline.
func (c Card) HasChart() bool {
	return c.ChartSVG != ""
}

// Page is everything the web layer needs to draw the dashboard.
type Page struct {
	Status    outcome.Status
	Kind      string
	Err       error
	Summary   models.Summary
	Cards     []Card
	Table     models.Table
	FetchedAt time.Time
}

// Service builds pages and owns the caches.
type Service struct {
	loader  TableLoader
	charts  ChartSource
	cache   *cache.Store
	config  Config
	tracker *tracker
}

// New creates a dashboard service. Options attach persistence and notifications.
func New(loader TableLoader, charts ChartSource, config Config, opts ...Option) (*Service, error) {
	store, err := cache.New(map[string]time.Duration{
		KindSheet: config.SheetTTL,
		KindChart: config.ChartTTL,
	})
	if err != nil {
		return nil, err
	}
	s := &Service{
		loader:  loader,
		charts:  charts,
		cache:   store,
		config:  config,
		tracker: &tracker{now: time.Now, columns: config.Transform},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the caches.
func (s *Service) Close() {
	s.cache.Close()
}

// Build renders one page. Rows are charted one after another.
func (s *Service) Build(ctx context.Context) Page {
	res := s.load(ctx)
	page := Page{
		Status:    res.Status,
		Kind:      res.Kind(),
		Err:       res.Err,
		FetchedAt: res.FetchedAt,
	}
	if !res.Ok() {
		return page
	}

	table := transform.Clean(res.Value, s.config.Transform)
	records := transform.Records(table, s.config.Transform.Columns)
	page.Table = table
	page.Summary = transform.Summarize(records)
	page.Cards = make([]Card, 0, len(records))
	for _, r := range records {
		page.Cards = append(page.Cards, s.card(ctx, r))
	}
	return page
}

// Refresh drops every cached sheet and chart result.
func (s *Service) Refresh() {
	s.cache.Clear()
	logger.Info("Dashboard caches cleared by refresh")
}

func (s *Service) load(ctx context.Context) outcome.Result[models.Table] {
	key := cache.Key{Kind: KindSheet}
	return cache.Memo(s.cache, key, func() outcome.Result[models.Table] {
		res := s.loader.Load(ctx)
		s.tracker.observe(res)
		return res
	}, func(r outcome.Result[models.Table]) bool { return r.Cacheable() })
}

func (s *Service) card(ctx context.Context, r models.DetectionRecord) Card {
	c := Card{Record: r, Profit: r.Profit()}
	if r.Code == "" || s.charts == nil {
		c.ChartStatus = "unavailable"
		return c
	}

	key := cache.Key{Kind: KindChart, Params: r.Code}
	res := cache.Memo(s.cache, key, func() outcome.Result[models.Series] {
		return s.charts.Closes(ctx, r.Code)
	}, func(r outcome.Result[models.Series]) bool { return r.Cacheable() })
	if !res.Ok() {
		c.ChartStatus = res.Kind()
		return c
	}
	c.Series = res.Value
	c.Trend, c.HasTrend = trend.Of(res.Value)

	var buf bytes.Buffer
	if err := sparkline.Render(&buf, res.Value.Floats(), sparkline.ColorFor(r.ReturnRate), s.config.Sparkline); err != nil {
		logger.Debug("No sparkline for %s: %v", r.Code, err)
		c.ChartStatus = "unavailable"
		return c
	}
	c.ChartSVG = buf.String()
	c.ChartStatus = "ok"
	return c
}

// tracker follows fresh (uncached) loads for the journal and notifier.
type tracker struct {
	mu                  sync.Mutex
	consecutiveFailures int
	journal             Journal
	notifier            Notifier
	columns             transform.Options
	now                 func() time.Time
}

// Package market fetches recent daily closing prices from an EODHD-style
// end-of-day REST API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rewired-gh/hunterboard/internal/logger"
	"github.com/rewired-gh/hunterboard/internal/models"
	"github.com/rewired-gh/hunterboard/internal/outcome"
	"github.com/shopspring/decimal"
)

// Client provides access to the market-data API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cfg        ClientConfig
	now        func() time.Time
}

// ClientConfig tunes request shape, retries and the connection pool.
type ClientConfig struct {
	// Suffix is appended to the ticker code, e.g. ".KO" for KOSPI listings.
	Suffix string
	// Window is the number of trailing closes returned.
	Window int
	// ClosePath and DatePath are JSONPath expressions selecting parallel arrays
	// of closes and dates in the response body.
	ClosePath string
	DatePath  string

	MaxRetries          int
	RetryDelayBase      time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultClientConfig matches the EODHD /eod endpoint.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Suffix:              ".KO",
		Window:              30,
		ClosePath:           "$[*].close",
		DatePath:            "$[*].date",
		MaxRetries:          3,
		RetryDelayBase:      time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewClient creates a new market-data client.
func NewClient(baseURL, apiKey string, timeout time.Duration, cfg ClientConfig) *Client {
	def := DefaultClientConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.ClosePath == "" {
		cfg.ClosePath = def.ClosePath
	}
	if cfg.DatePath == "" {
		cfg.DatePath = def.DatePath
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = def.RetryDelayBase
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		cfg: cfg,
		now: time.Now,
	}
}

// Closes returns the trailing Window daily closes for code, oldest first.
// A provider answer with no rows is Empty; transport and decode errors are Failed.
func (c *Client) Closes(ctx context.Context, code string) outcome.Result[models.Series] {
	now := c.now()
	series, err := c.fetchCloses(ctx, code, now)
	if err != nil {
		logger.Warn("Chart fetch for %s failed: %v", code, err)
		return outcome.Failed[models.Series](err, now)
	}
	if len(series) == 0 {
		logger.Debug("Chart fetch for %s returned no rows", code)
		return outcome.Empty[models.Series](now)
	}
	return outcome.OK(series, now)
}

func (c *Client) fetchCloses(ctx context.Context, code string, now time.Time) (models.Series, error) {
	if code == "" {
		return nil, fmt.Errorf("empty ticker code: %w", outcome.ErrConfig)
	}
	// calendar days, enough to cover weekends and holidays
	lookback := c.cfg.Window*2 + 10
	from := now.AddDate(0, 0, -lookback).Format("2006-01-02")
	to := now.Format("2006-01-02")

	u, err := url.Parse(c.baseURL + "/eod/" + url.PathEscape(code+c.cfg.Suffix))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("from", from)
	q.Set("to", to)
	q.Set("period", "d")
	q.Set("fmt", "json")
	if c.apiKey != "" {
		q.Set("api_token", c.apiKey)
	}
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch closes: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("provider returned %d: %w", resp.StatusCode, outcome.ErrAuth)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("ticker %s: %w", code, outcome.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode closes: %w", err)
	}

	series, err := c.extract(body)
	if err != nil {
		return nil, err
	}
	return trailing(series, c.cfg.Window), nil
}

// extract pulls the date and close arrays out of a decoded response body.
func (c *Client) extract(body any) (models.Series, error) {
	closes, err := selectList(c.cfg.ClosePath, body)
	if err != nil {
		return nil, err
	}
	dates, err := selectList(c.cfg.DatePath, body)
	if err != nil {
		return nil, err
	}
	if len(closes) != len(dates) {
		return nil, fmt.Errorf("got %d closes for %d dates", len(closes), len(dates))
	}

	series := make(models.Series, 0, len(closes))
	for i := range closes {
		d, err := parseDate(dates[i])
		if err != nil {
			logger.Debug("Skipping row %d: %v", i, err)
			continue
		}
		v, err := parseClose(closes[i])
		if err != nil {
			logger.Debug("Skipping row %d: %v", i, err)
			continue
		}
		series = append(series, models.PricePoint{Date: d, Close: v})
	}
	return series, nil
}

// selectList evaluates path and always returns a list, since jsonpath yields a
// bare value for single matches.
func selectList(path string, body any) ([]any, error) {
	v, err := jsonpath.Get(path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %q: %w", path, err)
	}
	if list, ok := v.([]any); ok {
		return list, nil
	}
	return []any{v}, nil
}

func parseDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return time.Parse("2006-01-02", strings.TrimSpace(t))
	case json.Number:
		sec, err := t.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", t, err)
		}
		return time.Unix(sec, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported date %v", v)
	}
}

// parseClose accepts JSON numbers and numeric strings; some providers send
// prices as "37,950".
func parseClose(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(t), ",", ""))
	case float64:
		return decimal.NewFromFloat(t), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported close %v", v)
	}
}

// trailing sorts by date and keeps the last n points.
func trailing(s models.Series, n int) models.Series {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.backoff(ctx, i)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("provider returned %d", resp.StatusCode)
			c.backoff(ctx, i)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w: %w", outcome.ErrUnavailable, lastErr)
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	select {
	case <-ctx.Done():
	case <-time.After(c.cfg.RetryDelayBase * time.Duration(attempt+1)):
	}
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/hunterboard/internal/dashboard"
	"github.com/rewired-gh/hunterboard/internal/models"
	"github.com/rewired-gh/hunterboard/internal/outcome"
	"github.com/rewired-gh/hunterboard/internal/trend"
)

type fakeDashboard struct {
	page      dashboard.Page
	refreshes int
}

func (f *fakeDashboard) Build(context.Context) dashboard.Page { return f.page }
func (f *fakeDashboard) Refresh()                             { f.refreshes++ }

type fakeHistory struct {
	events []models.LoadEvent
	err    error
}

func (f *fakeHistory) RecentLoadEvents(k int) ([]models.LoadEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[:min(k, len(f.events))], nil
}

func okPage() dashboard.Page {
	table := models.NewTable([][]string{
		{"탐색일", "종목명", "종목코드", "수익률", "현재가", "포착이유"},
		{"2025-12-09", "슈프리마", "236200", "12.3%", "37,950", "재출발"},
		{"2025-12-09", "<b>진흥기업</b>", "002780", "-4.5%", "-", ""},
		{"2025-12-08", "삼성전자", "005930", "0%", "71,200", ""},
	})
	return dashboard.Page{
		Status:    outcome.StatusOK,
		Kind:      "ok",
		Summary:   models.Summary{Total: 3, LatestCount: 2, LatestDate: "2025-12-09"},
		Table:     table,
		FetchedAt: time.Now().Add(-2 * time.Minute),
		Cards: []dashboard.Card{
			{
				Record:      models.DetectionRecord{DetectedOn: "2025-12-09", Name: "슈프리마", Code: "236200", ReturnText: "12.3%", ReturnRate: 12.3, Price: "37,950", Note: "재출발"},
				Profit:      true,
				HasTrend:    true,
				Trend:       trend.Trend{Days: 30, Change: 8.24, Volatility: 1.31},
				ChartSVG:    `<svg xmlns="http://www.w3.org/2000/svg" id="spark-236200"></svg>`,
				ChartStatus: "ok",
			},
			{
				Record:      models.DetectionRecord{DetectedOn: "2025-12-09", Name: "<b>진흥기업</b>", Code: "002780", ReturnText: "-4.5%", ReturnRate: -4.5, Price: "-"},
				ChartStatus: "not_found",
			},
			{
				Record:      models.DetectionRecord{DetectedOn: "2025-12-08", Name: "삼성전자", Code: "005930", ReturnText: "0%", Price: "71,200"},
				Profit:      true,
				ChartStatus: "unavailable",
			},
		},
	}
}

func newTestServer(t *testing.T, dash Dashboard, cfg Config, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(dash, cfg, opts...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	at := time.Date(2025, 12, 9, 15, 41, 0, 0, time.UTC)
	tests := []struct {
		name       string
		opts       []Option
		wantCode   int
		wantStatus string
		wantLoad   *models.LoadEvent
	}{
		{
			name:       "no history",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "nothing loaded yet",
			opts:       []Option{WithLoadHistory(&fakeHistory{})},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "last load reported",
			opts: []Option{WithLoadHistory(&fakeHistory{events: []models.LoadEvent{
				{ID: "b", Status: "failed", Cause: "unavailable", At: at},
				{ID: "a", Status: "ok", Rows: 3, At: at.Add(-time.Minute)},
			}})},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantLoad:   &models.LoadEvent{ID: "b", Status: "failed", Cause: "unavailable", At: at},
		},
		{
			name:       "history unreadable",
			opts:       []Option{WithLoadHistory(&fakeHistory{err: errors.New("database is locked")})},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeDashboard{}, Config{}, tt.opts...)
			rec := get(t, s, "/health")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body healthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body = %q: %v", rec.Body.String(), err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status field = %q, want %q", body.Status, tt.wantStatus)
			}
			switch {
			case tt.wantLoad == nil && body.LastLoad != nil:
				t.Errorf("last_load = %+v, want none", body.LastLoad)
			case tt.wantLoad != nil && body.LastLoad == nil:
				t.Errorf("last_load missing, want %+v", tt.wantLoad)
			case tt.wantLoad != nil:
				got := *body.LastLoad
				if got.ID != tt.wantLoad.ID || got.Status != tt.wantLoad.Status || got.Cause != tt.wantLoad.Cause || !got.At.Equal(tt.wantLoad.At) {
					t.Errorf("last_load = %+v, want %+v", got, *tt.wantLoad)
				}
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	dash := &fakeDashboard{}
	s := newTestServer(t, dash, Config{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/refresh", nil))

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("refresh response = %d %q, want 303 to /", rec.Code, rec.Header().Get("Location"))
	}
	if dash.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", dash.refreshes)
	}

	if rec := get(t, s, "/refresh"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /refresh = %d, want 405", rec.Code)
	}
}

func TestIndex_OK(t *testing.T) {
	s := newTestServer(t, &fakeDashboard{page: okPage()}, Config{Title: "Hunter", Intro: "Detected by **hunter**"})
	rec := get(t, s, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()

	for _, want := range []string{
		"<title>Hunter</title>",
		"<strong>hunter</strong>",
		`<b id="total">3</b>`,
		`<b id="latest">2</b>`,
		`<b id="last-update">2025-12-09</b>`,
		`<svg xmlns="http://www.w3.org/2000/svg" id="spark-236200"></svg>`,
		"₩37,950",
		"no price history for this ticker",
		"chart unavailable",
		"30d +8.2% · σ 1.3%",
		"close ₩12,900 on 2025-11-30",
		"&lt;b&gt;진흥기업&lt;/b&gt;",
		"fetched 2 minutes ago",
		"<details><summary>Raw sheet</summary>",
		`<div class="card profit">`,
		`<div class="card loss">`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "<b>진흥기업</b>") {
		t.Error("sheet text must be escaped")
	}
	if strings.Contains(body, `class="placeholder"`) {
		t.Error("ok page should not show a placeholder")
	}
}

func TestIndex_Placeholders(t *testing.T) {
	tests := []struct {
		kind string
		page dashboard.Page
	}{
		{"empty", dashboard.Page{Status: outcome.StatusEmpty, Kind: "empty", FetchedAt: time.Now()}},
		{"auth", dashboard.Page{Status: outcome.StatusFailed, Kind: "auth", Err: fmt.Errorf("x: %w", outcome.ErrAuth)}},
		{"not_found", dashboard.Page{Status: outcome.StatusFailed, Kind: "not_found", Err: outcome.ErrNotFound}},
		{"unavailable", dashboard.Page{Status: outcome.StatusFailed, Kind: "unavailable", Err: outcome.ErrUnavailable}},
		{"config", dashboard.Page{Status: outcome.StatusFailed, Kind: "config", Err: outcome.ErrConfig}},
		{"error", dashboard.Page{Status: outcome.StatusFailed, Kind: "error", Err: errors.New("boom")}},
	}

	seen := map[string]string{}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			s := newTestServer(t, &fakeDashboard{page: tt.page}, Config{})
			rec := get(t, s, "/")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			body := rec.Body.String()
			msg := placeholder(tt.kind)
			if !strings.Contains(body, msg) {
				t.Errorf("page missing placeholder %q", msg)
			}
			if strings.Contains(body, `id="total"`) {
				t.Error("counters should be hidden without data")
			}
			if other, dup := seen[msg]; dup {
				t.Errorf("kinds %s and %s share a placeholder", other, tt.kind)
			}
			seen[msg] = tt.kind
		})
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		text, currency, want string
	}{
		{"37,950", "KRW", "₩37,950"},
		{" 71200 ", "KRW", "₩71,200"},
		{"700원", "KRW", "₩700"},
		{"12.5", "USD", "$12.50"},
		{"-", "KRW", "-"},
		{"", "KRW", ""},
		{"확인중", "KRW", "확인중"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := formatPrice(tt.text, tt.currency); got != tt.want {
				t.Errorf("formatPrice(%q, %s) = %q, want %q", tt.text, tt.currency, got, tt.want)
			}
		})
	}
}

func TestRenderIntro_Sanitized(t *testing.T) {
	got, err := renderIntro("Hello **world** [x](javascript:alert(1))")
	if err != nil {
		t.Fatalf("renderIntro: %v", err)
	}
	html := string(got)
	if !strings.Contains(html, "<strong>world</strong>") {
		t.Errorf("markdown not rendered: %s", html)
	}
	if strings.Contains(html, "javascript:") {
		t.Errorf("unsafe link kept: %s", html)
	}

	if got, _ := renderIntro("   "); got != "" {
		t.Errorf("blank intro = %q, want empty", got)
	}
}

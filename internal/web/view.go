package web

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rewired-gh/hunterboard/internal/dashboard"
	"github.com/rewired-gh/hunterboard/internal/outcome"
	"github.com/rewired-gh/hunterboard/internal/transform"
	"github.com/rewired-gh/hunterboard/internal/trend"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
)

// placeholders tell the reader why there is nothing to show.
var placeholders = map[string]string{
	"empty":       "No detections yet. The sheet has no data rows.",
	"auth":        "Could not sign in to the spreadsheet service. Check the service account credentials.",
	"not_found":   "The detection sheet was not found or is not shared with the service account.",
	"unavailable": "The detection sheet is unreachable right now. Try refreshing in a minute.",
	"config":      "No spreadsheet is configured.",
}

func placeholder(kind string) string {
	if p, ok := placeholders[kind]; ok {
		return p
	}
	return "Failed to load detections."
}

type cardView struct {
	Name         string
	Code         string
	DetectedOn   string
	ReturnText   string
	Price        string
	Note         string
	Profit       bool
	Trend        string
	LastClose    string
	Chart        template.HTML
	ChartCaption string
}

type pageView struct {
	Title       string
	Intro       template.HTML
	Placeholder string
	Kind        string
	Total       int
	LatestCount int
	LatestDate  string
	Cards       []cardView
	Columns     []string
	Rows        [][]string
	FetchedAt   string
	FetchedAgo  string
}

func (s *Server) view(page dashboard.Page) pageView {
	v := pageView{
		Title:       s.cfg.Title,
		Intro:       s.intro,
		Kind:        page.Kind,
		Total:       page.Summary.Total,
		LatestCount: page.Summary.LatestCount,
		LatestDate:  page.Summary.LatestDate,
	}
	if !page.FetchedAt.IsZero() {
		v.FetchedAt = page.FetchedAt.Format(time.RFC3339)
		v.FetchedAgo = humanize.Time(page.FetchedAt)
	}
	if page.Status != outcome.StatusOK {
		v.Placeholder = placeholder(page.Kind)
		return v
	}

	for _, c := range page.Cards {
		cv := cardView{
			Name:       c.Record.Name,
			Code:       c.Record.Code,
			DetectedOn: c.Record.DetectedOn,
			ReturnText: c.Record.ReturnText,
			Price:      formatPrice(c.Record.Price, s.cfg.Currency),
			Note:       c.Record.Note,
			Profit:     c.Profit,
		}
		if c.HasTrend {
			cv.Trend = trendLabel(c.Trend)
		}
		if p, ok := c.Series.Last(); ok {
			cv.LastClose = fmt.Sprintf("close %s on %s", formatPrice(p.Close.String(), s.cfg.Currency), p.Date.Format("2006-01-02"))
		}
		if c.HasChart() {
			// SVG produced by the sparkline renderer from numeric data only.
			cv.Chart = template.HTML(c.ChartSVG)
		} else {
			cv.ChartCaption = chartCaption(c.ChartStatus)
		}
		v.Cards = append(v.Cards, cv)
	}

	v.Columns = page.Table.Columns
	for _, r := range page.Table.Rows {
		v.Rows = append(v.Rows, page.Table.Cells(r))
	}
	return v
}

func trendLabel(t trend.Trend) string {
	return fmt.Sprintf("%dd %+.1f%% · σ %.1f%%", t.Days, t.Change, t.Volatility)
}

func chartCaption(kind string) string {
	if kind == "not_found" {
		return "no price history for this ticker"
	}
	return "chart unavailable"
}

// formatPrice renders a numeric price cell in the display currency and leaves
// anything else (the "-" placeholder, free text) as it is.
func formatPrice(text, currency string) string {
	raw := strings.TrimSpace(text)
	if raw == "" || raw == transform.Placeholder {
		return text
	}
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "원"))
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return text
	}
	// money.New never returns a nil currency for a non-empty code.
	cur := *money.New(0, currency).Currency()
	return cur.Formatter().Format(d.Shift(int32(cur.Fraction)).IntPart())
}

// renderIntro converts the configured markdown to sanitized HTML.
func renderIntro(md string) (template.HTML, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render intro: %w", err)
	}
	return template.HTML(bluemonday.UGCPolicy().SanitizeBytes(buf.Bytes())), nil
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="ko"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:1100px;margin:2rem auto;padding:0 1rem;color:#222;background:#fafafa}
h1{font-size:1.5rem;margin-bottom:.25rem}
.intro{color:#444}
.toolbar{display:flex;gap:1rem;align-items:center;margin:1rem 0}
.fetched{font-size:.8rem;color:#888}
.counters{display:flex;gap:1rem;margin:1rem 0}
.counter{background:#fff;border:1px solid #e0e0e0;border-radius:6px;padding:.75rem 1rem;min-width:10rem}
.counter b{display:block;font-size:1.6rem}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(300px,1fr));gap:1rem}
.card{background:#fff;border:1px solid #e0e0e0;border-radius:6px;padding:1rem}
.card h2{font-size:1.05rem;margin:0}
.code{color:#888;font-size:.85rem}
.profit .ret{color:#ff4b4b}
.loss .ret{color:#1c83e1}
.note{font-size:.85rem;color:#555}
.trend{font-size:.75rem;color:#888}
.caption{font-size:.8rem;color:#999;font-style:italic;height:60px;display:flex;align-items:center}
.placeholder{background:#fff;border:1px dashed #ccc;border-radius:6px;padding:2rem;text-align:center;color:#777}
table{border-collapse:collapse;font-size:.85rem;margin-top:.5rem}
td,th{border:1px solid #e0e0e0;padding:.25rem .5rem}
</style></head><body>
<h1>{{.Title}}</h1>
{{- if .Intro}}
<div class="intro">{{.Intro}}</div>
{{- end}}
<div class="toolbar">
<form method="post" action="/refresh"><button type="submit">Refresh</button></form>
{{- if .FetchedAgo}}
<span class="fetched" title="{{.FetchedAt}}">fetched {{.FetchedAgo}}</span>
{{- end}}
</div>
{{- if .Placeholder}}
<div class="placeholder" data-kind="{{.Kind}}">{{.Placeholder}}</div>
{{- else}}
<div class="counters">
<div class="counter">Total detections<b id="total">{{.Total}}</b></div>
<div class="counter">Latest detections<b id="latest">{{.LatestCount}}</b></div>
<div class="counter">Last update<b id="last-update">{{.LatestDate}}</b></div>
</div>
<div class="grid">
{{- range .Cards}}
<div class="card {{if .Profit}}profit{{else}}loss{{end}}">
<h2>{{.Name}} <span class="code">{{.Code}}</span></h2>
<div><span class="price">{{.Price}}</span> <span class="ret">{{.ReturnText}}</span></div>
{{- if .Chart}}
<div class="chart">{{.Chart}}</div>
{{- if .Trend}}
<div class="trend">{{.Trend}}</div>
{{- end}}
{{- if .LastClose}}
<div class="trend">{{.LastClose}}</div>
{{- end}}
{{- else}}
<div class="caption">{{.ChartCaption}}</div>
{{- end}}
<div class="note">{{.DetectedOn}}{{if .Note}} · {{.Note}}{{end}}</div>
</div>
{{- end}}
</div>
<details><summary>Raw sheet</summary>
<table><thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>
</details>
{{- end}}
</body></html>`))

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/hunterboard/internal/models"
	"github.com/rewired-gh/hunterboard/internal/outcome"
	"github.com/rewired-gh/hunterboard/internal/storage"
	"github.com/shopspring/decimal"
)

var header = []string{"탐색일", "종목명", "종목코드", "수익률", "현재가", "포착이유"}

type fakeLoader struct {
	calls   int
	results []outcome.Result[models.Table]
}

func (f *fakeLoader) Load(context.Context) outcome.Result[models.Table] {
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return r
}

func okTable(rows ...[]string) outcome.Result[models.Table] {
	return outcome.OK(models.NewTable(append([][]string{header}, rows...)), time.Now())
}

type fakeCharts struct {
	calls map[string]int
	fail  map[string]error
}

func newFakeCharts() *fakeCharts {
	return &fakeCharts{calls: map[string]int{}, fail: map[string]error{}}
}

func (f *fakeCharts) Closes(_ context.Context, code string) outcome.Result[models.Series] {
	f.calls[code]++
	if err, ok := f.fail[code]; ok {
		return outcome.Failed[models.Series](err, time.Now())
	}
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	var s models.Series
	for i := 0; i < 30; i++ {
		s = append(s, models.PricePoint{
			Date:  start.AddDate(0, 0, i),
			Close: decimal.NewFromInt(int64(10000 + i*100)),
		})
	}
	return outcome.OK(s, time.Now())
}

type sentDigest struct {
	Date    string
	Records []models.DetectionRecord
}

type fakeNotifier struct {
	Errors     []string
	Recoveries []int
	Digests    []sentDigest
}

func (f *fakeNotifier) SendDigest(date string, records []models.DetectionRecord) error {
	f.Digests = append(f.Digests, sentDigest{Date: date, Records: records})
	return nil
}

func (f *fakeNotifier) SendError(kind string, _ error) error {
	f.Errors = append(f.Errors, kind)
	return nil
}

func (f *fakeNotifier) SendRecovery(n int) error {
	f.Recoveries = append(f.Recoveries, n)
	return nil
}

func newService(t *testing.T, loader TableLoader, charts ChartSource, config Config, opts ...Option) *Service {
	t.Helper()
	svc, err := New(loader, charts, config, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func threeRows() outcome.Result[models.Table] {
	return okTable(
		[]string{"2025-12-09", "슈프리마", "'236200", "12.3%", "37,950", "재출발(과거 매집봉 2개)"},
		[]string{"2025-12-09", "진흥기업", "2780", "-4.5%", "확인불가", "오늘 거래량 10배 폭발"},
		[]string{"2025-12-08", "삼성전자", "005930", "0%", "71,200", ""},
	)
}

func TestBuild_SummaryCounts(t *testing.T) {
	svc := newService(t, &fakeLoader{results: []outcome.Result[models.Table]{threeRows()}}, newFakeCharts(), DefaultConfig())
	page := svc.Build(context.Background())

	if page.Status != outcome.StatusOK {
		t.Fatalf("status = %v, err = %v", page.Status, page.Err)
	}
	want := models.Summary{Total: 3, LatestCount: 2, LatestDate: "2025-12-09"}
	if page.Summary != want {
		t.Errorf("summary = %+v, want %+v", page.Summary, want)
	}
	if len(page.Cards) != 3 {
		t.Fatalf("cards = %d, want 3", len(page.Cards))
	}

	c := page.Cards[1]
	if c.Record.Code != "002780" || c.Record.Price != "-" || c.Profit {
		t.Errorf("second card = %+v", c.Record)
	}
	if !page.Cards[2].Profit {
		t.Error("zero return should be shown as profit")
	}
	for i, c := range page.Cards {
		if !c.HasChart() || c.ChartStatus != "ok" || !strings.Contains(c.ChartSVG, "<svg") {
			t.Errorf("card %d has no chart (status %q)", i, c.ChartStatus)
		}
	}
	// Fake closes run 10000 to 12900 in steps of 100.
	if tr := page.Cards[0].Trend; !page.Cards[0].HasTrend || tr.Days != 30 || math.Abs(tr.Change-29) > 1e-9 {
		t.Errorf("trend = %+v, want 30 days and +29%%", tr)
	}
	if page.Table.Len() != 3 {
		t.Errorf("raw table rows = %d, want 3", page.Table.Len())
	}
}

func TestBuild_EmptySheet(t *testing.T) {
	loader := &fakeLoader{results: []outcome.Result[models.Table]{outcome.Empty[models.Table](time.Now())}}
	charts := newFakeCharts()
	page := newService(t, loader, charts, DefaultConfig()).Build(context.Background())

	if page.Status != outcome.StatusEmpty || page.Kind != "empty" {
		t.Errorf("status = %v/%q, want empty", page.Status, page.Kind)
	}
	if len(page.Cards) != 0 || page.Summary != (models.Summary{}) {
		t.Errorf("empty sheet should produce no cards, got %+v", page)
	}
	if len(charts.calls) != 0 {
		t.Error("no chart should be fetched without rows")
	}
}

func TestBuild_FailedLoadKeepsCause(t *testing.T) {
	loader := &fakeLoader{results: []outcome.Result[models.Table]{
		outcome.Failed[models.Table](fmt.Errorf("open: %w", outcome.ErrAuth), time.Now()),
	}}
	page := newService(t, loader, newFakeCharts(), DefaultConfig()).Build(context.Background())
	if page.Status != outcome.StatusFailed || page.Kind != "auth" || !errors.Is(page.Err, outcome.ErrAuth) {
		t.Errorf("page = %+v, want failed/auth", page)
	}
}

func TestBuild_CachesSheetAndCharts(t *testing.T) {
	loader := &fakeLoader{results: []outcome.Result[models.Table]{threeRows()}}
	charts := newFakeCharts()
	config := DefaultConfig()
	config.SheetTTL = 50 * time.Millisecond
	svc := newService(t, loader, charts, config)

	svc.Build(context.Background())
	svc.Build(context.Background())
	if loader.calls != 1 {
		t.Errorf("loader calls = %d, want 1 while cached", loader.calls)
	}
	if charts.calls["236200"] != 1 {
		t.Errorf("chart calls = %d, want 1 while cached", charts.calls["236200"])
	}

	time.Sleep(100 * time.Millisecond)
	svc.Build(context.Background())
	if loader.calls != 2 {
		t.Errorf("loader calls = %d, want 2 after sheet TTL", loader.calls)
	}
	if charts.calls["236200"] != 1 {
		t.Errorf("chart calls = %d, want still 1 within chart TTL", charts.calls["236200"])
	}

	svc.Refresh()
	svc.Build(context.Background())
	if loader.calls != 3 || charts.calls["236200"] != 2 {
		t.Errorf("after refresh loader=%d chart=%d, want 3 and 2", loader.calls, charts.calls["236200"])
	}
}

func TestBuild_FailuresAreNotCached(t *testing.T) {
	loader := &fakeLoader{results: []outcome.Result[models.Table]{
		outcome.Failed[models.Table](outcome.ErrUnavailable, time.Now()),
		threeRows(),
	}}
	svc := newService(t, loader, newFakeCharts(), DefaultConfig())

	if p := svc.Build(context.Background()); p.Status != outcome.StatusFailed {
		t.Fatalf("first build status = %v", p.Status)
	}
	if p := svc.Build(context.Background()); p.Status != outcome.StatusOK {
		t.Errorf("second build should retry the loader, status = %v", p.Status)
	}
}

func TestBuild_ChartFailureIsPerCard(t *testing.T) {
	charts := newFakeCharts()
	charts.fail["002780"] = fmt.Errorf("ticker: %w", outcome.ErrNotFound)
	svc := newService(t, &fakeLoader{results: []outcome.Result[models.Table]{threeRows()}}, charts, DefaultConfig())

	page := svc.Build(context.Background())
	if page.Cards[1].HasChart() || page.Cards[1].ChartStatus != "not_found" {
		t.Errorf("failing card = %+v", page.Cards[1])
	}
	if !page.Cards[0].HasChart() || !page.Cards[2].HasChart() {
		t.Error("other cards should still have charts")
	}
}

func TestBuild_NoCodeNoChart(t *testing.T) {
	loader := &fakeLoader{results: []outcome.Result[models.Table]{
		okTable([]string{"2025-12-09", "무명", "", "1%", "100", ""}),
	}}
	charts := newFakeCharts()
	page := newService(t, loader, charts, DefaultConfig()).Build(context.Background())
	if page.Cards[0].ChartStatus != "unavailable" || len(charts.calls) != 0 {
		t.Errorf("card without code = %+v, chart calls %v", page.Cards[0], charts.calls)
	}
}

func TestNotifications(t *testing.T) {
	store, err := storage.New(100, ":memory:")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer store.Close()
	notifier := &fakeNotifier{}

	loader := &fakeLoader{results: []outcome.Result[models.Table]{
		outcome.Failed[models.Table](fmt.Errorf("dial: %w", outcome.ErrUnavailable), time.Now()),
		outcome.Failed[models.Table](fmt.Errorf("dial: %w", outcome.ErrUnavailable), time.Now()),
		threeRows(),
		threeRows(),
	}}
	svc := newService(t, loader, newFakeCharts(), DefaultConfig(), WithJournal(store), WithNotifier(notifier))

	for i := 0; i < 4; i++ {
		svc.Refresh()
		svc.Build(context.Background())
	}

	if len(notifier.Errors) != 1 || notifier.Errors[0] != "unavailable" {
		t.Errorf("error notices = %v, want one 'unavailable'", notifier.Errors)
	}
	if len(notifier.Recoveries) != 1 || notifier.Recoveries[0] != 2 {
		t.Errorf("recoveries = %v, want [2]", notifier.Recoveries)
	}
	if len(notifier.Digests) != 1 || notifier.Digests[0].Date != "2025-12-09" || len(notifier.Digests[0].Records) != 2 {
		t.Errorf("digests = %+v, want one for 2025-12-09 with 2 records", notifier.Digests)
	}

	events, err := store.RecentLoadEvents(10)
	if err != nil {
		t.Fatalf("RecentLoadEvents: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("journaled %d loads, want 4", len(events))
	}
	latest, err := store.LatestDigest()
	if err != nil || latest.Count != 2 {
		t.Errorf("LatestDigest = %+v, %v", latest, err)
	}
}

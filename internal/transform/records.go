package transform

import (
	"strings"
	"time"

	"github.com/rewired-gh/hunterboard/internal/models"
)

var dateLayouts = []string{"2006-01-02", "2006.01.02", "2006/01/02", "20060102", "2006-01-02 15:04:05"}

// Records maps cleaned rows to detection records. Missing columns leave the
// corresponding field empty.
func Records(t models.Table, cols Columns) []models.DetectionRecord {
	records := make([]models.DetectionRecord, 0, t.Len())
	for _, r := range t.Rows {
		records = append(records, models.DetectionRecord{
			DetectedOn: r.Values[cols.DetectedOn],
			Name:       r.Values[cols.Name],
			Code:       r.Values[cols.Code],
			ReturnText: r.Values[cols.Return],
			ReturnRate: r.ReturnRate,
			Price:      r.Values[cols.Price],
			Note:       r.Values[cols.Note],
		})
	}
	return records
}

// DateKey normalizes a detection date to YYYY-MM-DD when it parses with a known
// layout, and to its trimmed text otherwise.
func DateKey(s string) string {
	k, _ := parseDateKey(s)
	return k
}

func parseDateKey(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	return s, false
}

// Summarize counts all records and those detected on the most recent date.
// Any parsed date outranks free text; text is compared with text only when no
// date cell parses.
func Summarize(records []models.DetectionRecord) models.Summary {
	var dates, texts latestKey
	for _, r := range records {
		k, ok := parseDateKey(r.DetectedOn)
		switch {
		case k == "":
		case ok:
			dates.add(k)
		default:
			texts.add(k)
		}
	}
	latest := dates
	if latest.key == "" {
		latest = texts
	}
	return models.Summary{Total: len(records), LatestDate: latest.key, LatestCount: latest.count}
}

type latestKey struct {
	key   string
	count int
}

func (l *latestKey) add(k string) {
	switch {
	case k > l.key:
		l.key = k
		l.count = 1
	case k == l.key:
		l.count++
	}
}

// Latest returns the records detected on the most recent date.
func Latest(records []models.DetectionRecord) []models.DetectionRecord {
	latest := Summarize(records).LatestDate
	if latest == "" {
		return nil
	}
	var out []models.DetectionRecord
	for _, r := range records {
		if DateKey(r.DetectedOn) == latest {
			out = append(out, r)
		}
	}
	return out
}

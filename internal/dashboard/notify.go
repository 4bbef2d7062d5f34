package dashboard

import (
	"github.com/google/uuid"
	"github.com/rewired-gh/hunterboard/internal/logger"
	"github.com/rewired-gh/hunterboard/internal/models"
	"github.com/rewired-gh/hunterboard/internal/outcome"
	"github.com/rewired-gh/hunterboard/internal/transform"
)

// Journal persists load outcomes and sent digests.
type Journal interface {
	AddLoadEvent(e *models.LoadEvent) error
	HasDigest(detectedOn string) (bool, error)
	AddDigest(d *models.Digest) error
}

// Notifier pushes detections and source health changes to a chat.
type Notifier interface {
	SendDigest(date string, records []models.DetectionRecord) error
	SendError(kind string, loadErr error) error
	SendRecovery(failureCount int) error
}

// Option configures a Service.
type Option func(*Service)

// WithJournal records every fresh load and remembers sent digests.
func WithJournal(j Journal) Option {
	return func(s *Service) {
		s.tracker.journal = j
	}
}

// WithNotifier sends digests and error/recovery notices. Digests are only
// deduplicated when a journal is also configured.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.tracker.notifier = n
	}
}

func (t *tracker) observe(res outcome.Result[models.Table]) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.journalLoad(res)

	if res.Status == outcome.StatusFailed {
		t.consecutiveFailures++
		if t.consecutiveFailures == 1 && t.notifier != nil {
			if err := t.notifier.SendError(res.Kind(), res.Err); err != nil {
				logger.Warn("Failed to send error notification: %v", err)
			}
		}
		return
	}

	if t.consecutiveFailures > 0 && t.notifier != nil {
		if err := t.notifier.SendRecovery(t.consecutiveFailures); err != nil {
			logger.Warn("Failed to send recovery notification: %v", err)
		}
	}
	t.consecutiveFailures = 0

	if res.Ok() {
		t.digest(res.Value)
	}
}

func (t *tracker) journalLoad(res outcome.Result[models.Table]) {
	if t.journal == nil {
		return
	}
	e := &models.LoadEvent{
		ID:     uuid.NewString(),
		Status: res.Status.String(),
		Rows:   res.Value.Len(),
		At:     res.FetchedAt,
	}
	if res.Err != nil {
		e.Cause = res.Kind() + ": " + res.Err.Error()
	}
	if err := t.journal.AddLoadEvent(e); err != nil {
		logger.Warn("Failed to record load event: %v", err)
	}
}

// digest notifies the most recent detection date once.
func (t *tracker) digest(table models.Table) {
	if t.notifier == nil || t.journal == nil {
		return
	}
	records := transform.Records(transform.Clean(table, t.columns), t.columns.Columns)
	latest := transform.Latest(records)
	if len(latest) == 0 {
		return
	}
	date := transform.DateKey(latest[0].DetectedOn)

	sent, err := t.journal.HasDigest(date)
	if err != nil {
		logger.Warn("Failed to check digest for %s: %v", date, err)
		return
	}
	if sent {
		return
	}

	if err := t.notifier.SendDigest(date, latest); err != nil {
		logger.Error("Failed to send digest for %s: %v", date, err)
		return
	}
	names := make([]string, len(latest))
	for i, r := range latest {
		names[i] = r.Name
	}
	d := &models.Digest{
		ID:         uuid.NewString(),
		DetectedOn: date,
		Count:      len(latest),
		Names:      names,
		SentAt:     t.now(),
	}
	if err := t.journal.AddDigest(d); err != nil {
		logger.Warn("Failed to record digest for %s: %v", date, err)
		return
	}
	logger.Info("Sent digest for %s (%d detections)", date, len(latest))
}

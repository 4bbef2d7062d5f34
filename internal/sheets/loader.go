// Package sheets loads the detection log from the first worksheet of a
// spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/hunterboard/internal/logger"
	"github.com/rewired-gh/hunterboard/internal/models"
	"github.com/rewired-gh/hunterboard/internal/outcome"
)

// ValueReader returns every row of the first worksheet as text, header first.
type ValueReader interface {
	ReadFirstSheet(ctx context.Context) ([][]string, error)
}

// Loader turns a ValueReader into a table fetch with an explicit outcome.
type Loader struct {
	reader ValueReader
	now    func() time.Time
}

// NewLoader creates a Loader. A nil reader yields ErrConfig failures.
func NewLoader(reader ValueReader) *Loader {
	return &Loader{reader: reader, now: time.Now}
}

// Load reads the sheet. Fewer than two rows (header plus one data row) is
// Empty; reader errors are Failed with the cause preserved.
func (l *Loader) Load(ctx context.Context) outcome.Result[models.Table] {
	now := l.now()
	if l.reader == nil {
		return outcome.Failed[models.Table](fmt.Errorf("spreadsheet reader: %w", outcome.ErrConfig), now)
	}

	start := time.Now()
	raw, err := l.reader.ReadFirstSheet(ctx)
	if err != nil {
		logger.Error("Failed to load detection sheet: %v", err)
		return outcome.Failed[models.Table](err, now)
	}

	table := models.NewTable(raw)
	if table.Len() == 0 {
		logger.Info("Detection sheet has %d row(s), nothing to show", len(raw))
		return outcome.Empty[models.Table](now)
	}
	logger.Info("Loaded %d detection rows in %v", table.Len(), time.Since(start))
	return outcome.OK(table, now)
}

// Unconfigured is a reader that always fails with err wrapped in ErrConfig,
// used when credentials could not be set up at startup.
func Unconfigured(err error) ValueReader {
	return unconfigured{err: err}
}

type unconfigured struct{ err error }

func (u unconfigured) ReadFirstSheet(context.Context) ([][]string, error) {
	if u.err == nil {
		return nil, outcome.ErrConfig
	}
	if errors.Is(u.err, outcome.ErrConfig) || errors.Is(u.err, outcome.ErrAuth) {
		return nil, u.err
	}
	return nil, fmt.Errorf("%w: %w", outcome.ErrConfig, u.err)
}

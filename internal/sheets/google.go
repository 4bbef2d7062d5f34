package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/rewired-gh/hunterboard/internal/logger"
	"github.com/rewired-gh/hunterboard/internal/outcome"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const spreadsheetMime = "application/vnd.google-apps.spreadsheet"

// GoogleReader reads a spreadsheet through the Sheets API, resolving it by
// name through Drive when no ID is configured.
type GoogleReader struct {
	sheets *gsheets.Service
	drive  *drive.Service

	name string

	mu            sync.Mutex
	spreadsheetID string
}

// NewGoogleReader authenticates with a service-account credentials JSON.
// Either spreadsheetID or name must be set.
func NewGoogleReader(ctx context.Context, credentialsJSON []byte, spreadsheetID, name string, opts ...option.ClientOption) (*GoogleReader, error) {
	if spreadsheetID == "" && name == "" {
		return nil, fmt.Errorf("spreadsheet id or name is required: %w", outcome.ErrConfig)
	}
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	} else if len(opts) == 0 {
		return nil, fmt.Errorf("service account credentials are required: %w", outcome.ErrConfig)
	}

	sheetsOpts := append([]option.ClientOption{option.WithScopes(gsheets.SpreadsheetsReadonlyScope, drive.DriveMetadataReadonlyScope)}, opts...)
	svc, err := gsheets.NewService(ctx, sheetsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w: %w", outcome.ErrAuth, err)
	}
	r := &GoogleReader{sheets: svc, name: name, spreadsheetID: spreadsheetID}

	if spreadsheetID == "" {
		driveSvc, err := drive.NewService(ctx, sheetsOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create drive client: %w: %w", outcome.ErrAuth, err)
		}
		r.drive = driveSvc
	}
	return r, nil
}

// ReadFirstSheet returns all rows of the first worksheet as formatted text.
func (r *GoogleReader) ReadFirstSheet(ctx context.Context) ([][]string, error) {
	id, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}

	meta, err := r.sheets.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, classify("failed to open spreadsheet", err)
	}
	if len(meta.Sheets) == 0 || meta.Sheets[0].Properties == nil {
		return nil, nil
	}
	title := meta.Sheets[0].Properties.Title

	vr, err := r.sheets.Spreadsheets.Values.Get(id, quoteRange(title)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("failed to read worksheet", err)
	}
	return toStrings(vr.Values), nil
}

// resolve returns the spreadsheet ID, looking it up by name once.
func (r *GoogleReader) resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spreadsheetID != "" {
		return r.spreadsheetID, nil
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(r.name), spreadsheetMime)
	list, err := r.drive.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", classify("failed to look up spreadsheet", err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q: %w", r.name, outcome.ErrNotFound)
	}
	r.spreadsheetID = list.Files[0].Id
	logger.Info("Resolved spreadsheet %q to %s", r.name, r.spreadsheetID)
	return r.spreadsheetID, nil
}

// classify wraps err with the outcome sentinel matching its cause.
func classify(msg string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return fmt.Errorf("%s: %w: %w", msg, outcome.ErrAuth, err)
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("%s: %w: %w", msg, outcome.ErrNotFound, err)
		case gerr.Code >= 500 || gerr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %w", msg, outcome.ErrUnavailable, err)
		}
		return fmt.Errorf("%s: %w", msg, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", msg, outcome.ErrUnavailable, err)
	}
	if strings.Contains(err.Error(), "oauth2") {
		return fmt.Errorf("%s: %w: %w", msg, outcome.ErrAuth, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// escapeQuery escapes a value for a Drive query string literal.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// quoteRange quotes a sheet title for A1 notation.
func quoteRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				continue
			}
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out
}

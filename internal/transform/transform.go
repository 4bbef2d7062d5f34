// Package transform cleans a loaded detection table into display-ready form.
// Every function here is pure and total: bad input falls back to defaults.
package transform

import (
	"math"
	"strings"

	"github.com/rewired-gh/hunterboard/internal/models"
	"github.com/shopspring/decimal"
)

// Placeholder replaces prices the detector could not resolve.
const Placeholder = "-"

// Columns names the sheet columns the transformer and record mapper read.
type Columns struct {
	DetectedOn string
	Name       string
	Code       string
	Return     string
	Price      string
	Note       string
}

// DefaultColumns matches the detector's sheet header.
func DefaultColumns() Columns {
	return Columns{
		DetectedOn: "탐색일",
		Name:       "종목명",
		Code:       "종목코드",
		Return:     "수익률",
		Price:      "현재가",
		Note:       "포착이유",
	}
}

// Options configures Clean.
type Options struct {
	Columns Columns
	// UnresolvedPrice is the sentinel the detector writes when it has no live price.
	UnresolvedPrice string
	// CodeWidth left-pads purely numeric codes with zeros. 0 disables padding.
	CodeWidth int
}

// DefaultOptions returns the options used for the detector's sheet.
func DefaultOptions() Options {
	return Options{
		Columns:         DefaultColumns(),
		UnresolvedPrice: "확인불가",
		CodeWidth:       6,
	}
}

// Clean applies percent normalization, price display normalization and ticker
// cleanup to a copy of t. Steps whose column is missing are skipped.
func Clean(t models.Table, opts Options) models.Table {
	if t.Len() == 0 {
		return t
	}
	out := t.Clone()
	cols := opts.Columns

	if out.Has(cols.Return) {
		for i := range out.Rows {
			out.Rows[i].ReturnRate = ParsePercent(out.Rows[i].Values[cols.Return])
		}
	}
	if out.Has(cols.Price) {
		for i := range out.Rows {
			out.Rows[i].Values[cols.Price] = NormalizePrice(out.Rows[i].Values[cols.Price], opts.UnresolvedPrice)
		}
	}
	if out.Has(cols.Code) {
		for i := range out.Rows {
			out.Rows[i].Values[cols.Code] = CleanCode(out.Rows[i].Values[cols.Code], opts.CodeWidth)
		}
	}
	return out
}

// ParsePercent reads "12.3%", "-4.5 %", "1,234.5" and similar. Anything that
// does not parse as a finite number yields 0.
func ParsePercent(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

// NormalizePrice swaps the unresolved sentinel for the dash placeholder and
// passes every other value through.
func NormalizePrice(s, unresolved string) string {
	if unresolved != "" && strings.TrimSpace(s) == unresolved {
		return Placeholder
	}
	return s
}

// CleanCode strips quoting artifacts from a ticker code. Numeric codes shorter
// than width are zero-padded, since spreadsheets drop leading zeros.
func CleanCode(s string, width int) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "'\"`‘’“”")
	s = strings.TrimSpace(s)
	if width > 0 && len(s) < width && isDigits(s) {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

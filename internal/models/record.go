package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DetectionRecord is one detected stock, read from a cleaned table row.
type DetectionRecord struct {
	DetectedOn string
	Name       string
	Code       string // bare alphanumeric ticker, used for chart lookups
	ReturnText string
	ReturnRate float64
	Price      string
	Note       string // volume-surge note
}

// Profit reports whether the record is displayed as a gain. Zero counts as profit.
func (r DetectionRecord) Profit() bool {
	return r.ReturnRate >= 0
}

// PricePoint is one daily close.
type PricePoint struct {
	Date  time.Time
	Close decimal.Decimal
}

// Series is a run of daily closes, oldest first.
type Series []PricePoint

// Floats returns the closes as float64 for charting.
func (s Series) Floats() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close.InexactFloat64()
	}
	return out
}

// Last returns the most recent point, or false for an empty series.
func (s Series) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// Summary holds the dashboard counters.
type Summary struct {
	Total       int
	LatestCount int
	LatestDate  string
}

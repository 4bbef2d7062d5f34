// Package trend summarizes a close series for a card: change over the window
// and the volatility of daily returns.
package trend

import (
	"math"

	"github.com/rewired-gh/hunterboard/internal/models"
)

// Welford accumulates a running mean and variance in one pass.
type Welford struct {
	Count int
	Mean  float64
	M2    float64
}

// Add folds one observation into the accumulator.
func (w *Welford) Add(x float64) {
	w.Count++
	delta := x - w.Mean
	w.Mean += delta / float64(w.Count)
	delta2 := x - w.Mean
	w.M2 += delta * delta2
}

// StdDev returns the sample standard deviation, or 0 with fewer than two
// observations.
func (w *Welford) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count-1))
}

// Trend describes a series in percent.
type Trend struct {
	Days       int     // closes in the window
	Change     float64 // last close vs first close
	Volatility float64 // sample stddev of day-over-day returns
}

// Of computes the trend of s. ok is false when s has fewer than two closes or
// starts at zero.
func Of(s models.Series) (Trend, bool) {
	closes := s.Floats()
	if len(closes) < 2 || closes[0] == 0 {
		return Trend{}, false
	}

	var w Welford
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		w.Add((closes[i] - closes[i-1]) / closes[i-1] * 100)
	}

	last := closes[len(closes)-1]
	return Trend{
		Days:       len(closes),
		Change:     (last - closes[0]) / closes[0] * 100,
		Volatility: w.StdDev(),
	}, true
}

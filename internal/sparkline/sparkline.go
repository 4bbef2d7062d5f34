// Package sparkline draws the small price charts shown on each card.
package sparkline

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrTooFewPoints is returned when there is nothing to draw a line through.
var ErrTooFewPoints = errors.New("sparkline needs at least two points")

// Color selects the line color. Korean convention: gains are red, losses blue.
type Color int

const (
	Profit Color = iota
	Loss
)

// ColorFor picks the color for a percent return. Zero counts as profit.
func ColorFor(returnRate float64) Color {
	if returnRate >= 0 {
		return Profit
	}
	return Loss
}

func (c Color) stroke() drawing.Color {
	if c == Loss {
		return drawing.ColorFromHex("1c83e1")
	}
	return drawing.ColorFromHex("ff4b4b")
}

func (c Color) fill() drawing.Color {
	return c.stroke().WithAlpha(40)
}

// Options sets the chart size in pixels.
type Options struct {
	Width  int
	Height int
}

// DefaultOptions is a compact card-sized chart.
func DefaultOptions() Options {
	return Options{Width: 260, Height: 60}
}

// padding is the fraction of the value span added above and below the line so
// the movement fills the chart instead of sitting on a zero baseline.
const padding = 0.1

// YRange returns [min - 0.1*span, max + 0.1*span]. A flat series is padded by
// 1% of its value (or 1 around zero) so the range never collapses.
func YRange(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		pad := math.Abs(lo) * 0.01
		if pad == 0 {
			pad = 1
		}
		return lo - pad, hi + pad
	}
	return lo - padding*span, hi + padding*span
}

// Render writes an SVG sparkline of values to w: no axes, no outer margin,
// y-range from YRange.
func Render(w io.Writer, values []float64, color Color, opts Options) error {
	if len(values) < 2 {
		return ErrTooFewPoints
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultOptions()
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	lo, hi := YRange(values)

	graph := chart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{IsSet: true},
		},
		Canvas: chart.Style{
			Padding: chart.Box{IsSet: true},
		},
		XAxis: chart.XAxis{
			Style: chart.Hidden(),
		},
		YAxis: chart.YAxis{
			Style: chart.Hidden(),
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: xs,
				YValues: values,
				Style: chart.Style{
					StrokeColor: color.stroke(),
					StrokeWidth: 2,
					FillColor:   color.fill(),
				},
			},
		},
	}
	if err := graph.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("failed to render sparkline: %w", err)
	}
	return nil
}

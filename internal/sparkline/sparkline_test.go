package sparkline

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestYRange(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		lo, hi float64
	}{
		{"ten unit span", []float64{10, 15, 20, 12}, 9, 21},
		{"unordered", []float64{20, 10}, 9, 21},
		{"flat", []float64{500, 500, 500}, 495, 505},
		{"flat zero", []float64{0, 0}, -1, 1},
		{"single", []float64{100}, 99, 101},
		{"empty", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := YRange(tt.values)
			if lo != tt.lo || hi != tt.hi {
				t.Errorf("YRange(%v) = [%v, %v], want [%v, %v]", tt.values, lo, hi, tt.lo, tt.hi)
			}
		})
	}
}

func TestYRange_DoesNotStartAtZero(t *testing.T) {
	lo, _ := YRange([]float64{37000, 37950, 38100})
	if lo <= 0 {
		t.Errorf("lower bound %v should hug the data, not zero", lo)
	}
}

func TestColorFor(t *testing.T) {
	if ColorFor(0) != Profit || ColorFor(3.2) != Profit {
		t.Error("zero and positive returns should be Profit")
	}
	if ColorFor(-0.01) != Loss {
		t.Error("negative returns should be Loss")
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, []float64{10, 12, 11, 15, 20}, Profit, DefaultOptions())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Errorf("expected SVG output, got %q", buf.String())
	}
}

func TestRender_TooFewPoints(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, []float64{10}, Loss, DefaultOptions()); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("Render with one point error = %v, want ErrTooFewPoints", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written on error")
	}
}

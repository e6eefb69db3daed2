package formulas

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name             string
		value, low, high float64
		want             float64
	}{
		{"at low", 0, 0, 10, 0},
		{"at high", 10, 0, 10, 100},
		{"midpoint", 5, 0, 10, 50},
		{"below band clamps", -3, 0, 10, 0},
		{"above band clamps", 42, 0, 10, 100},
		{"inverted band low value", 0.5, 2.5, 0.5, 100},
		{"inverted band high value", 2.5, 2.5, 0.5, 0},
		{"inverted band beyond clamps", 5, 2.5, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.value, tt.low, tt.high)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Normalize(%v, %v, %v) = %v, want %v", tt.value, tt.low, tt.high, got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("Normalize out of range: %v", got)
			}
		})
	}
}

func TestNormalizeDegenerateBand(t *testing.T) {
	for _, v := range []float64{-100, 0, 3.7, 1e9} {
		if got := Normalize(v, 5, 5); got != NeutralScore {
			t.Errorf("Normalize(%v, 5, 5) = %v, want %v", v, got, NeutralScore)
		}
	}
}

func TestCorrelationUndefined(t *testing.T) {
	flat := []float64{3, 3, 3, 3, 3}
	moving := []float64{1, 2, 3, 4, 5}

	if _, ok := Correlation(flat, moving); ok {
		t.Error("correlation against a flat series should be undefined")
	}
	if _, ok := Correlation(moving, moving[:3]); ok {
		t.Error("correlation of mismatched lengths should be undefined")
	}

	r, ok := Correlation(moving, []float64{2, 4, 6, 8, 10})
	if !ok {
		t.Fatal("correlation should be defined")
	}
	if math.Abs(r-1.0) > 1e-9 {
		t.Errorf("expected perfect correlation, got %v", r)
	}
}

func TestLinearSlope(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5}
	if got := LinearSlope(up); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("LinearSlope(up) = %v, want 1", got)
	}

	flat := []float64{2, 2, 2, 2}
	if got := LinearSlope(flat); math.Abs(got) > 1e-9 {
		t.Errorf("LinearSlope(flat) = %v, want 0", got)
	}

	if got := LinearSlope([]float64{7}); got != 0 {
		t.Errorf("LinearSlope(single) = %v, want 0", got)
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	if got := CoefficientOfVariation([]float64{0, 0, 0}); got != 0 {
		t.Errorf("CV of zero-mean series = %v, want 0", got)
	}

	cv := CoefficientOfVariation([]float64{10, 12, 8, 10})
	if cv <= 0 {
		t.Errorf("expected positive CV, got %v", cv)
	}
}

func TestShadowRatios(t *testing.T) {
	// Long lower shadow: open 10, close 10.1, low 9, high 10.15.
	lower, upper := ShadowRatios(
		[]float64{10}, []float64{10.15}, []float64{9}, []float64{10.1},
	)
	if lower[0] < 5 {
		t.Errorf("expected long lower shadow ratio, got %v", lower[0])
	}
	if upper[0] > 1 {
		t.Errorf("expected short upper shadow ratio, got %v", upper[0])
	}
}

func TestATR(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i], closes[i] = 10.5, 9.5, 10
	}

	// Constant true range of 1 smooths to an ATR of exactly 1.
	atr, ok := ATR(highs, lows, closes, 14)
	if !ok {
		t.Fatal("ATR should be defined for 30 bars")
	}
	if math.Abs(atr-1.0) > 1e-9 {
		t.Errorf("ATR = %v, want 1", atr)
	}

	if _, ok := ATR(highs[:10], lows[:10], closes[:10], 14); ok {
		t.Error("ATR of a series shorter than the period should be undefined")
	}
	if _, ok := ATR(highs[:20], lows, closes, 14); ok {
		t.Error("ATR of mismatched series lengths should be undefined")
	}
}

func TestRSIShortSeries(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); got != 50.0 {
		t.Errorf("RSI of short series = %v, want neutral 50", got)
	}
}

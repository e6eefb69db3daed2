// Package formulas collects the pure numeric helpers shared by the
// detection modules: score normalization, descriptive statistics backed by
// gonum, and technical indicators backed by go-talib. Everything here is
// deterministic and side-effect free.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// NeutralScore is the defined score for degenerate inputs (empty windows,
// zero-width bands, undefined correlation).
const NeutralScore = 50.0

// Normalize maps value linearly onto [0,100]: low maps to 0, high maps to
// 100, values outside the band are clamped. Passing low > high inverts the
// band so that lower raw values score higher. A zero-width band returns the
// neutral score instead of dividing by zero.
func Normalize(value, low, high float64) float64 {
	if low == high {
		return NeutralScore
	}
	r := (value - low) / (high - low)
	if r < 0 {
		r = 0
	} else if r > 1 {
		r = 1
	}
	return r * 100
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev returns the sample standard deviation, or 0 when fewer than two
// observations are available.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// CoefficientOfVariation returns stddev/|mean|. A near-zero mean yields the
// sentinel 0 rather than exploding.
func CoefficientOfVariation(data []float64) float64 {
	m := Mean(data)
	if math.Abs(m) < 1e-12 {
		return 0
	}
	return StdDev(data) / math.Abs(m)
}

// Correlation returns the Pearson correlation of x and y and whether it is
// defined. It is undefined for mismatched/short inputs or when either
// series has (near) zero variance.
func Correlation(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	if StdDev(x) < 1e-12 || StdDev(y) < 1e-12 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

// LinearSlope fits y against its index positions and returns the slope per
// step. Fewer than two points yield 0.
func LinearSlope(y []float64) float64 {
	if len(y) < 2 {
		return 0
	}
	xs := make([]float64, len(y))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, y, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

// Sum returns the sum of the slice.
func Sum(data []float64) float64 {
	total := 0.0
	for _, v := range data {
		total += v
	}
	return total
}

// Max returns the largest value in the slice, or 0 when it is empty.
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	max := data[0]
	for _, v := range data[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Min returns the smallest value in the slice, or 0 when it is empty.
func Min(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	min := data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

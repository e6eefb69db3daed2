package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// BollingerWidths returns the relative band width ((upper-lower)/middle) per
// bar. Bars inside the warm-up period, or with a non-positive middle band,
// carry NaN.
func BollingerWidths(closes []float64, period int, dev float64) []float64 {
	widths := make([]float64, len(closes))
	for i := range widths {
		widths[i] = math.NaN()
	}
	if len(closes) < period {
		return widths
	}
	upper, middle, lower := talib.BBands(closes, period, dev, dev, talib.SMA)
	for i := period - 1; i < len(closes); i++ {
		if middle[i] > 0 && !math.IsNaN(upper[i]) {
			widths[i] = (upper[i] - lower[i]) / middle[i]
		}
	}
	return widths
}

// SMA returns the simple moving average series; warm-up bars are NaN.
func SMA(values []float64, period int) []float64 {
	if len(values) < period {
		out := make([]float64, len(values))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return talib.Sma(values, period)
}

// LastSMA returns the latest SMA value and whether it is defined.
func LastSMA(values []float64, period int) (float64, bool) {
	s := SMA(values, period)
	if len(s) == 0 {
		return 0, false
	}
	v := s[len(s)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// RSI returns the latest 14-style RSI, defaulting to the neutral 50 when
// the series is too short.
func RSI(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50.0
	}
	series := talib.Rsi(closes, period)
	v := series[len(series)-1]
	if math.IsNaN(v) {
		return 50.0
	}
	return v
}

// MACDHistogram returns the MACD histogram series (12/26/9); warm-up bars
// are NaN as produced by talib.
func MACDHistogram(closes []float64) []float64 {
	if len(closes) < 35 {
		out := make([]float64, len(closes))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	_, _, hist := talib.Macd(closes, 12, 26, 9)
	return hist
}

// ATR returns the latest average true range and whether it is defined. It
// is undefined for series shorter than the period or with mismatched
// lengths.
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	if len(closes) <= period || len(highs) != len(closes) || len(lows) != len(closes) {
		return 0, false
	}
	series := talib.Atr(highs, lows, closes, period)
	v := series[len(series)-1]
	if math.IsNaN(v) || v <= 0 {
		return 0, false
	}
	return v, true
}

// ShadowRatios returns per-bar lower and upper shadow lengths relative to
// the candle body. A doji body is treated as a minimal body so the ratio
// stays finite.
func ShadowRatios(opens, highs, lows, closes []float64) (lower, upper []float64) {
	n := len(closes)
	lower = make([]float64, n)
	upper = make([]float64, n)
	for i := 0; i < n; i++ {
		body := math.Abs(closes[i] - opens[i])
		if body < 1e-9 {
			if closes[i] != 0 {
				body = math.Abs(closes[i]) * 1e-4
			} else {
				body = 1e-9
			}
		}
		top := math.Max(opens[i], closes[i])
		bottom := math.Min(opens[i], closes[i])
		lower[i] = (bottom - lows[i]) / body
		upper[i] = (highs[i] - top) / body
	}
	return lower, upper
}

// CleanNaN filters NaN entries out of a series.
func CleanNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

package detect

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundambush/internal/contracts"
	"fundambush/pkg/logger"
)

// consolidationBars builds a 60-bar tight base: closes oscillating around
// 10, lows rising slowly, and a ceiling at 10.45 tested every tenth day.
func consolidationBars() contracts.BarSeries {
	bars := make(contracts.BarSeries, 60)
	for i := range bars {
		close, open := 9.95, 10.05
		if i%2 == 1 {
			close, open = 10.05, 9.95
		}
		high := 10.2
		if i%10 == 5 {
			high = 10.45
		}
		low := 9.7 + 0.2*float64(i)/59
		bars[i] = contracts.Bar{
			Date: testBarDate(i), Open: open, High: high, Low: low, Close: close,
			Volume: 1e6, Amount: 1e7,
		}
	}
	return bars
}

func TestTechnicalPatternTightBase(t *testing.T) {
	m := NewTechnicalPatternModule(logger.Nop())

	res, err := m.Analyze(consolidationBars(), smallCapMeta(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, ModuleTechnicalPattern, res.Module)
	assert.False(t, math.IsNaN(res.Score))

	// A 1% close range around the mean is far inside the tight end.
	assert.Equal(t, 100.0, res.IndicatorScores["consolidation_tightness"])
	assert.Equal(t, 100.0, res.IndicatorScores["volatility_coefficient"])

	// Six ceiling touches, evenly spaced every ten bars.
	assert.Equal(t, 6.0, res.Indicators["ceiling_tests"])
	assert.Equal(t, 100.0, res.IndicatorScores["ceiling_tests"])
	assert.Equal(t, 0.0, res.Indicators["test_interval_dispersion"])
	assert.Equal(t, 100.0, res.IndicatorScores["test_interval_dispersion"])

	// Early bars carry lower shadows at least twice the body.
	assert.Equal(t, 15.0, res.Indicators["long_lower_shadow_days"])
	// Monotonically rising lows never pierce their own floor.
	assert.Equal(t, 0.0, res.Indicators["false_break_rejects"])

	// Alternating closes keep the short and medium averages glued together.
	assert.Equal(t, 100.0, res.IndicatorScores["sma_convergence"])

	// The ATR yardstick is recorded but never scored, and only the six
	// ceiling-test bars span 1.5x ATR with a near-doji body.
	assert.InDelta(t, 0.369, res.Indicators["atr"], 0.02)
	assert.NotContains(t, res.IndicatorScores, "atr")
	assert.Equal(t, 6.0, res.Indicators["intraday_shakeout_days"])
	assert.Equal(t, 100.0, res.IndicatorScores["intraday_shakeout_days"])
}

func TestTechnicalPatternTrendingStockScoresLow(t *testing.T) {
	m := NewTechnicalPatternModule(logger.Nop())

	bars := make(contracts.BarSeries, 60)
	price := 10.0
	for i := range bars {
		open := price
		price *= 1.02
		bars[i] = contracts.Bar{
			Date: testBarDate(i), Open: open, High: price, Low: open, Close: price,
			Volume: 1e6, Amount: 1e7,
		}
	}

	res, err := m.Analyze(bars, smallCapMeta(), nil, nil)
	require.NoError(t, err)

	// A runaway uptrend is the opposite of a quiet base.
	assert.Less(t, res.Score, 45.0)
	assert.Equal(t, 0.0, res.IndicatorScores["volatility_coefficient"])
	assert.Equal(t, 0.0, res.IndicatorScores["consolidation_tightness"])
	assert.Equal(t, 0.0, res.Indicators["long_lower_shadow_days"])
}

func TestTechnicalPatternShortHistory(t *testing.T) {
	m := NewTechnicalPatternModule(logger.Nop())
	bars := consolidationBars()[:10]

	_, err := m.Analyze(bars, smallCapMeta(), nil, nil)
	require.Error(t, err)

	var missing *contracts.MissingDataError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"price_history"}, missing.Fields)
}

package detect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundambush/internal/contracts"
	"fundambush/pkg/logger"
)

// structureBars builds n flat-price bars with a constant turnover rate and
// a shareholder count that shrinks linearly from first to last.
func structureBars(n int, turnover, holdersFirst, holdersLast float64) contracts.BarSeries {
	bars := make(contracts.BarSeries, n)
	for i := range bars {
		holders := holdersFirst + (holdersLast-holdersFirst)*float64(i)/float64(n-1)
		bars[i] = contracts.Bar{
			Date: testBarDate(i),
			Open: 10, High: 10.2, Low: 9.8, Close: 10,
			Volume:            1e6,
			Amount:            1e7,
			TurnoverRate:      contracts.Float(turnover),
			ShareholdersCount: contracts.Float(holders),
		}
	}
	return bars
}

func TestShareStructureConcentratingFloat(t *testing.T) {
	m := NewShareStructureModule(logger.Nop())
	bars := structureBars(20, 2.0, 50000, 44000) // 12% fewer holders
	for i := range bars {
		bars[i].LargeOrderBuy = contracts.Float(3e6)
		bars[i].LargeOrderSell = contracts.Float(1.5e6)
		bars[i].LockedChipsRatio = contracts.Float(0.65)
	}

	res, err := m.Analyze(bars, smallCapMeta(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, ModuleShareStructure, res.Module)
	assert.GreaterOrEqual(t, res.Score, 65.0)
	// Turnover sits inside the 1-3% sweet spot with zero variance.
	assert.Equal(t, 100.0, res.IndicatorScores["turnover_level"])
	assert.Equal(t, 100.0, res.IndicatorScores["turnover_stability"])
	// 12% reduction lands high on the -5%..15% band.
	assert.InDelta(t, 85.0, res.IndicatorScores["shareholders_reduction"], 0.5)
	// Measured locked ratio beats the turnover-derived estimate.
	assert.Equal(t, 0.65, res.Indicators["locked_chips_ratio"])
	// Net large-order buying plus shrinking holder base implies rising
	// concentration.
	assert.Equal(t, 70.0, res.IndicatorScores["gini_change"])
}

func TestShareStructureTurnoverFallback(t *testing.T) {
	m := NewShareStructureModule(logger.Nop())
	bars := make(contracts.BarSeries, 20)
	for i := range bars {
		bars[i] = contracts.Bar{
			Date: testBarDate(i), Open: 10, High: 10.1, Low: 9.9, Close: 10,
			Volume: 2e6, Amount: 2e7,
		}
	}

	t.Run("derived from float", func(t *testing.T) {
		meta := &contracts.StockMeta{Code: "000002", MarketCap: 30, FloatShares: 4e8}
		res, err := m.Analyze(bars, meta, nil, nil)
		require.NoError(t, err)
		// 2e6 / 4e8 * 100 = 0.5% daily turnover
		assert.InDelta(t, 0.5, res.Indicators["turnover_level"], 1e-9)
		// Locked-chips estimate: 1 - 180*0.5/100 = 0.1
		assert.InDelta(t, 0.1, res.Indicators["locked_chips_ratio"], 1e-9)
	})

	t.Run("no float either", func(t *testing.T) {
		meta := &contracts.StockMeta{Code: "000002", MarketCap: 30}
		_, err := m.Analyze(bars, meta, nil, nil)
		var missing *contracts.MissingDataError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, []string{string(contracts.ColTurnoverRate)}, missing.Fields)
	})
}

func TestShareStructureChurningFloat(t *testing.T) {
	m := NewShareStructureModule(logger.Nop())
	// High, erratic turnover and a growing holder base: distribution, not
	// accumulation.
	bars := structureBars(20, 0, 40000, 46000)
	for i := range bars {
		turnover := 6.0
		if i%2 == 0 {
			turnover = 14.0
		}
		bars[i].TurnoverRate = contracts.Float(turnover)
	}

	res, err := m.Analyze(bars, smallCapMeta(), nil, nil)
	require.NoError(t, err)

	assert.Less(t, res.Score, 40.0)
	assert.Equal(t, 0.0, res.IndicatorScores["turnover_level"], "10% average churn is past the ceiling")
	assert.Equal(t, 0.0, res.IndicatorScores["shareholders_reduction"], "a growing holder base scores at the floor")
	assert.NotContains(t, res.IndicatorScores, "gini_change")
}

func TestShareStructureBlockTrades(t *testing.T) {
	m := NewShareStructureModule(logger.Nop())
	bars := structureBars(20, 2.0, 50000, 48000)
	for i := range bars {
		amount, discount := 0.0, 0.0
		if i%4 == 0 { // 5 active days
			amount, discount = 5e7, 0.03
		}
		bars[i].BlockTradeAmount = contracts.Float(amount)
		bars[i].BlockTradeDiscount = contracts.Float(discount)
	}

	res, err := m.Analyze(bars, smallCapMeta(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.IndicatorScores["block_trade_days"])
	// 3% average discount sits near the shallow end of the 12%..2% band.
	assert.InDelta(t, 90.0, res.IndicatorScores["block_trade_discount"], 1.0)
}

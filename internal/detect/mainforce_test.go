package detect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundambush/internal/contracts"
	"fundambush/pkg/logger"
)

// largeOrderBars builds n flat-price bars with the given daily large-order
// buy and sell totals plus a closing-heavy fund-flow stream.
func largeOrderBars(n int, buy, sell float64) contracts.BarSeries {
	bars := make(contracts.BarSeries, n)
	for i := range bars {
		bars[i] = contracts.Bar{
			Date: testBarDate(i),
			Open: 10, High: 10.2, Low: 9.8, Close: 10,
			Volume:          1e6,
			Amount:          5e6,
			LargeOrderBuy:   contracts.Float(buy),
			LargeOrderSell:  contracts.Float(sell),
			FundFlow:        contracts.Float(1e6),
			ClosingFundFlow: contracts.Float(4e5),
		}
	}
	return bars
}

func TestMainForceInstitutionalBuild(t *testing.T) {
	m := NewMainForceModule(logger.Nop())
	bars := largeOrderBars(30, 2e6, 1e6)
	for i := range bars {
		bars[i].InstitutionalBuy = contracts.Float(8e5)
		bars[i].InstitutionalSell = contracts.Float(2e5)
	}

	res, err := m.Analyze(bars, smallCapMeta(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, ModuleMainForce, res.Module)
	assert.Equal(t, ForceInstitutional, res.DetailInfo["force_type"])
	assert.Equal(t, "middle", res.DetailInfo["stage"])
	assert.GreaterOrEqual(t, res.Score, 75.0)

	// 0.8 institutional buy share sits above the reference band.
	assert.Equal(t, 100.0, res.IndicatorScores["institutional_buy_ratio"])
	// 30 straight positive net-buying days max out the streak band.
	assert.Equal(t, 100.0, res.IndicatorScores["consecutive_accumulation_days"])
	// Closing-heavy flow matches the institutional expectation.
	assert.Equal(t, 80.0, res.IndicatorScores["time_preference_match"])
}

func TestMainForceRetailChurn(t *testing.T) {
	m := NewMainForceModule(logger.Nop())
	bars := make(contracts.BarSeries, 30)
	for i := range bars {
		bars[i] = contracts.Bar{
			Date: testBarDate(i),
			Open: 10, High: 10.3, Low: 9.7, Close: 10,
			Volume:         1e6,
			Amount:         5e6,
			LargeOrderBuy:  contracts.Float(1e6),
			LargeOrderSell: contracts.Float(1e6),
		}
	}

	res, err := m.Analyze(bars, smallCapMeta(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, ForceRetail, res.DetailInfo["force_type"])
	assert.Less(t, res.Score, 40.0)
	// Balanced buys and sells leave nothing accumulated, so flat net flow
	// earns no steadiness credit.
	assert.Equal(t, 0.0, res.IndicatorScores["large_order_cv"])
	assert.Equal(t, 0.0, res.IndicatorScores["consecutive_accumulation_days"])
}

func TestMainForceSeatKeywordEstimate(t *testing.T) {
	m := NewMainForceModule(logger.Nop())
	bars := largeOrderBars(30, 2e6, 1e6)
	for i := range bars {
		if i%2 == 0 {
			bars[i].TopBuySeats = []string{"机构专用", "华泰证券深圳益田路"}
		} else {
			bars[i].TopBuySeats = []string{"东方财富拉萨团结路"}
		}
	}

	res, err := m.Analyze(bars, smallCapMeta(), nil, nil)
	require.NoError(t, err)

	// Half the ledger days show an institutional seat: the estimate lands
	// mid-band rather than being dropped.
	raw, ok := res.Indicators["institutional_buy_ratio"]
	require.True(t, ok)
	assert.InDelta(t, 0.5, raw, 1e-9)
	assert.Equal(t, string(contracts.BasisEstimated),
		res.DetailInfo["机构参与"].(map[string]interface{})["basis"])
}

func TestMainForcePatternSimilarity(t *testing.T) {
	m := NewMainForceModule(logger.Nop())
	bars := largeOrderBars(30, 2e6, 1e6)

	// Current vector: net order ratio 3e7/1.5e8 = 0.2, flat return, even
	// volume. A matching library entry should surface its outcome.
	extras := &contracts.Extras{
		PatternLibrary: []contracts.PatternVector{
			{NetOrderRatio: 0.2, PriceReturn: 0, VolumeRatio: 1.0, Outcome: 90},
			{NetOrderRatio: -0.5, PriceReturn: 0.4, VolumeRatio: 3.0, Outcome: 10},
		},
		ForceTrackRecord: map[string]float64{ForceInstitutional: 0.7},
	}

	res, err := m.Analyze(bars, smallCapMeta(), nil, extras)
	require.NoError(t, err)

	assert.InDelta(t, 90.0, res.IndicatorScores["pattern_similarity"], 1e-6)
	assert.NotContains(t, res.IndicatorScores, "peer_similarity")
	assert.InDelta(t, 70.0, res.IndicatorScores["force_track_record"], 1e-6)
}

func TestMainForceMissingColumns(t *testing.T) {
	m := NewMainForceModule(logger.Nop())
	bars := flowBars(30, 1e6, 0.3, 0.6) // fund flow only, no large orders

	_, err := m.Analyze(bars, smallCapMeta(), nil, nil)
	require.Error(t, err)

	var missing *contracts.MissingDataError
	require.True(t, errors.As(err, &missing))
	assert.ElementsMatch(t, []string{
		string(contracts.ColLargeOrderBuy),
		string(contracts.ColLargeOrderSell),
	}, missing.Fields)
}

func TestAccumulationStreak(t *testing.T) {
	assert.Equal(t, 0, accumulationStreak(nil))
	assert.Equal(t, 3, accumulationStreak([]float64{-1, 2, 5, 1}))
	assert.Equal(t, 0, accumulationStreak([]float64{5, 5, -1}))
}

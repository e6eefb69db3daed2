package detect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundambush/internal/contracts"
	"fundambush/pkg/logger"
)

func bullContext() *contracts.MarketContext {
	return &contracts.MarketContext{
		Date:              testBarDate(30),
		Regime:            contracts.RegimeBull,
		IndexChangePct:    0.5,
		IndustryChangePct: 2.0,
		MarketFundFlow:    300,
		IndustryFundFlow:  35,
		SentimentIndex:    68,
		TotalMarketCap:    9e5,
		TurnoverRate:      1.8,
	}
}

func TestMarketEnvironmentRequiresContext(t *testing.T) {
	m := NewMarketEnvironmentModule(logger.Nop())

	_, err := m.Analyze(nil, smallCapMeta(), nil, nil)
	require.Error(t, err)

	var missing *contracts.MissingDataError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"market_context"}, missing.Fields)
}

func TestMarketEnvironmentBullishIndustry(t *testing.T) {
	m := NewMarketEnvironmentModule(logger.Nop())

	res, err := m.Analyze(nil, smallCapMeta(), bullContext(), nil)
	require.NoError(t, err)

	assert.Equal(t, ModuleMarketEnvironment, res.Module)
	assert.GreaterOrEqual(t, res.Score, 60.0)
	assert.Equal(t, 80.0, res.IndicatorScores["market_regime"])
	// Industry up 2% in a bull regime estimates as an accelerating rotation.
	assert.Equal(t, 85.0, res.IndicatorScores["rotation_position"])
	assert.Equal(t, string(contracts.RotationAccelerating), res.DetailInfo["rotation_position"])
	// 半导体 is on the policy-support list, boosted further by the regime.
	assert.Equal(t, 80.0, res.IndicatorScores["policy_favorability"])
}

func TestMarketEnvironmentBearDrag(t *testing.T) {
	m := NewMarketEnvironmentModule(logger.Nop())
	mkt := &contracts.MarketContext{
		Regime:            contracts.RegimeBear,
		IndexChangePct:    -1.0,
		IndustryChangePct: -2.5,
		MarketFundFlow:    -300,
		IndustryFundFlow:  -25,
		SentimentIndex:    22,
	}
	meta := &contracts.StockMeta{Code: "600000", Industry: "银行", MarketCap: 800, PERatio: 5, PBRatio: 0.6}

	res, err := m.Analyze(nil, meta, mkt, nil)
	require.NoError(t, err)

	assert.Less(t, res.Score, 45.0)
	assert.Equal(t, 30.0, res.IndicatorScores["market_regime"])
	assert.Equal(t, 20.0, res.IndicatorScores["rotation_position"])
	assert.Equal(t, 0.0, res.IndicatorScores["market_fund_flow"])
	// Deep-value bank still gets valuation safety credit.
	assert.Equal(t, 75.0, res.IndicatorScores["valuation_safety"])
}

func TestMarketEnvironmentStyleMatch(t *testing.T) {
	m := NewMarketEnvironmentModule(logger.Nop())
	meta := &contracts.StockMeta{Code: "300750", Industry: "新能源", MarketCap: 120, PERatio: 45, PBRatio: 6}

	t.Run("direct match", func(t *testing.T) {
		extras := &contracts.Extras{MarketStyle: contracts.StyleGrowth}
		res, err := m.Analyze(nil, meta, bullContext(), extras)
		require.NoError(t, err)
		assert.Equal(t, 85.0, res.IndicatorScores["style_match"])
		assert.Equal(t, "match", res.DetailInfo["style_match"])
	})

	t.Run("mismatch", func(t *testing.T) {
		extras := &contracts.Extras{MarketStyle: contracts.StyleValue}
		res, err := m.Analyze(nil, meta, bullContext(), extras)
		require.NoError(t, err)
		assert.Equal(t, 30.0, res.IndicatorScores["style_match"])
	})

	t.Run("no market style reads neutral", func(t *testing.T) {
		res, err := m.Analyze(nil, meta, bullContext(), nil)
		require.NoError(t, err)
		assert.Equal(t, 50.0, res.IndicatorScores["style_match"])
		assert.Equal(t, "unknown", res.DetailInfo["style_match"])
	})
}

func TestMarketEnvironmentExtrasOverrides(t *testing.T) {
	m := NewMarketEnvironmentModule(logger.Nop())
	diffusion, policy, valuation, share := 0.8, 90.0, 0.1, 0.15
	extras := &contracts.Extras{
		SectorDiffusion:     &diffusion,
		PolicyDirection:     &policy,
		ValuationPercentile: &valuation,
		IndustryFlowShare:   &share,
		RotationPosition:    contracts.RotationPeaking,
	}

	res, err := m.Analyze(nil, smallCapMeta(), bullContext(), extras)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.IndicatorScores["sector_diffusion"])
	assert.Equal(t, 90.0, res.IndicatorScores["policy_favorability"])
	assert.Equal(t, 100.0, res.IndicatorScores["valuation_safety"])
	assert.Equal(t, 100.0, res.IndicatorScores["industry_flow_share"])
	// A supplied rotation position wins over the estimate.
	assert.Equal(t, 40.0, res.IndicatorScores["rotation_position"])
}

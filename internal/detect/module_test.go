package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fundambush/pkg/logger"
)

func TestScorecardWeightedScore(t *testing.T) {
	card := newScorecard()
	assert.Equal(t, 0.0, card.weightedScore(nil), "an empty scorecard scores zero")

	card.addScore("a", 80)
	card.addScore("b", 40)
	assert.InDelta(t, 60.0, card.weightedScore(nil), 1e-9)

	// Configured weights apply only to their indicators; the rest keep
	// weight 1.
	assert.InDelta(t, (80*3+40)/4.0, card.weightedScore(map[string]float64{"a": 3}), 1e-9)
}

func TestScorecardClampsScores(t *testing.T) {
	card := newScorecard()
	card.add("hot", 12.5, 140)
	card.add("cold", -3, -20)
	assert.Equal(t, 100.0, card.scores["hot"])
	assert.Equal(t, 0.0, card.scores["cold"])
	assert.Equal(t, 12.5, card.indicators["hot"])
}

func TestOverridesApply(t *testing.T) {
	m := NewFundFlowModule(logger.Nop())
	w := 0.4
	off := false
	m.LoadConfig(Overrides{
		Weight:  &w,
		Enabled: &off,
		Params:  map[string]float64{"window": 10, "brand_new": 7},
	})

	assert.Equal(t, 0.4, m.Weight())
	assert.False(t, m.Enabled())
	assert.Equal(t, 10.0, m.param("window", 20))
	assert.Equal(t, 7.0, m.param("brand_new", 0))
	// Untouched params keep their defaults.
	assert.Equal(t, 0.45, m.param("active_buy_low", 0))
}

func TestTierLabel(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{90, "非常明显"},
		{75, "明显"},
		{60, "中等"},
		{45, "轻微"},
		{10, "不明显"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tierLabel(tc.score))
	}
}

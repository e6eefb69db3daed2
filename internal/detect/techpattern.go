package detect

import (
	"fmt"
	"math"

	"fundambush/internal/contracts"
	"fundambush/pkg/formulas"
	"fundambush/pkg/logger"
)

// ModuleTechnicalPattern is the registry name of the technical-pattern module.
const ModuleTechnicalPattern = "technical_pattern"

// minPatternBars is the shortest history the pattern families can be read
// from with any confidence.
const minPatternBars = 20

// TechnicalPatternModule scores the chart for the three ambush pattern
// families: bottom formation (volatility drying up over a rising floor),
// shakeout behavior (scare bars that close strong) and breakthrough
// preparation (repeated ceiling tests with converging averages).
type TechnicalPatternModule struct {
	base
}

// NewTechnicalPatternModule creates the module with its default configuration.
func NewTechnicalPatternModule(log *logger.Logger) *TechnicalPatternModule {
	params := map[string]float64{
		"window": 60,

		// bottom formation
		"volatility_cv_low":  0.15, // inverted band
		"volatility_cv_high": 0.03,
		"bb_contract_low":    1.2, // inverted: recent width / earlier width
		"bb_contract_high":   0.5,
		"range_low":          0.25, // inverted: close range / mean close
		"range_high":         0.08,

		// shakeout
		"shadow_body_ratio": 2.0,
		"shakeout_atr_mult": 1.5,
		"shakeout_range":    0.04,
		"shakeout_body":     0.01,
		"strong_close_pos":  0.7,

		// breakthrough preparation
		"ceiling_proximity": 0.98,
		"sma_gap_low":       0.05, // inverted: |SMA5-SMA20|/SMA20
		"sma_gap_high":      0.005,
	}
	weights := map[string]float64{
		"bb_width_contraction":    1.3,
		"consolidation_tightness": 1.2,
		"ceiling_tests":           1.2,
		"strong_close_share":      1.1,
	}
	return &TechnicalPatternModule{base: newBase(ModuleTechnicalPattern, 0.20, params, weights, log)}
}

// Analyze computes the three pattern families over the trailing window.
func (m *TechnicalPatternModule) Analyze(bars contracts.BarSeries, meta *contracts.StockMeta, mkt *contracts.MarketContext, extras *contracts.Extras) (*contracts.AnalysisResult, error) {
	window := bars.Sorted().Tail(int(m.param("window", 60)))
	if len(window) < minPatternBars {
		return nil, &contracts.MissingDataError{Module: m.name, Fields: []string{"price_history"}}
	}

	closes := window.Closes()
	highs := window.Highs()
	lows := window.Lows()
	opens := window.Opens()
	volumes := window.Volumes()

	card := newScorecard()

	m.analyzeBottomFormation(card, closes, highs, lows)
	m.analyzeShakeout(card, opens, highs, lows, closes)
	m.analyzeBreakthroughPrep(card, highs, closes, volumes)

	score := card.weightedScore(m.indicatorWeights)
	description := m.describe(score, card)
	detail := m.detailInfo(card)
	charts := m.charts(window, closes)

	m.log.WithFields(map[string]interface{}{
		"code":  meta.Code,
		"score": score,
	}).Debug("technical pattern analysis completed")

	return m.result(card, description, detail, charts), nil
}

// analyzeBottomFormation scores volatility drying up inside a narrowing
// range whose floor holds or rises.
func (m *TechnicalPatternModule) analyzeBottomFormation(card *scorecard, closes, highs, lows []float64) {
	mean := formulas.Mean(closes)
	if mean <= 0 {
		return
	}

	cv := formulas.CoefficientOfVariation(closes)
	card.add("volatility_coefficient", cv,
		formulas.Normalize(cv, m.param("volatility_cv_low", 0.15), m.param("volatility_cv_high", 0.03)))

	m.analyzeBandContraction(card, closes)

	// Support slope, normalized per bar so stocks of any price compare.
	relSlope := formulas.LinearSlope(lows) / mean
	card.add("support_rise_slope", relSlope, formulas.Normalize(relSlope, -0.001, 0.003))

	m.analyzeResistanceStability(card, highs)

	priceRange := (formulas.Max(closes) - formulas.Min(closes)) / mean
	card.add("consolidation_tightness", priceRange,
		formulas.Normalize(priceRange, m.param("range_low", 0.25), m.param("range_high", 0.08)))
}

// analyzeBandContraction compares recent Bollinger band width to the
// window's earlier width.
func (m *TechnicalPatternModule) analyzeBandContraction(card *scorecard, closes []float64) {
	widths := formulas.CleanNaN(formulas.BollingerWidths(closes, 20, 2.0))
	if len(widths) < 10 {
		return
	}
	recent := formulas.Mean(widths[len(widths)-5:])
	earlier := formulas.Mean(widths[:len(widths)-5])
	if earlier <= 0 {
		return
	}
	ratio := recent / earlier
	card.add("bb_width_contraction", ratio,
		formulas.Normalize(ratio, m.param("bb_contract_low", 1.2), m.param("bb_contract_high", 0.5)))
}

// analyzeResistanceStability measures how flat the ceiling is: the spread
// of the top-quartile highs.
func (m *TechnicalPatternModule) analyzeResistanceStability(card *scorecard, highs []float64) {
	top := topQuartile(highs)
	if len(top) < 2 {
		return
	}
	cv := formulas.CoefficientOfVariation(top)
	card.add("resistance_stability", cv, formulas.Normalize(cv, 0.05, 0.01))
}

// topQuartile returns the highest quarter of the values (at least two).
func topQuartile(values []float64) []float64 {
	n := len(values) / 4
	if n < 2 {
		n = 2
	}
	if n > len(values) {
		n = len(values)
	}
	sorted := append([]float64(nil), values...)
	// Insertion sort: the windows are small.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] > sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted[:n]
}

// analyzeShakeout counts the scare-bar signatures: long lower shadows,
// support breaks that reverse intraday, wide-range days with tiny bodies,
// and the share of days that close strong.
func (m *TechnicalPatternModule) analyzeShakeout(card *scorecard, opens, highs, lows, closes []float64) {
	lowerShadows, _ := formulas.ShadowRatios(opens, highs, lows, closes)

	shadowThreshold := m.param("shadow_body_ratio", 2.0)
	longShadowDays := 0
	for _, r := range lowerShadows {
		if r >= shadowThreshold {
			longShadowDays++
		}
	}
	card.add("long_lower_shadow_days", float64(longShadowDays),
		formulas.Normalize(float64(longShadowDays), 1, 6))

	m.analyzeFalseBreakRejects(card, lows, closes)

	// A scare bar is a wide-range day measured against the stock's own ATR,
	// falling back to a fixed fraction of price when the ATR is undefined.
	atr, atrOK := formulas.ATR(highs, lows, closes, 14)
	if atrOK {
		card.note("atr", atr)
	}
	atrMult := m.param("shakeout_atr_mult", 1.5)
	rangeThreshold := m.param("shakeout_range", 0.04)
	bodyThreshold := m.param("shakeout_body", 0.01)
	strongPos := m.param("strong_close_pos", 0.7)

	shakeoutDays, strongCloseDays := 0, 0
	for i := range closes {
		if closes[i] <= 0 {
			continue
		}
		span := highs[i] - lows[i]
		wideRange := span/closes[i] >= rangeThreshold
		if atrOK {
			wideRange = span >= atrMult*atr
		}
		body := math.Abs(closes[i]-opens[i]) / closes[i]
		if wideRange && body <= bodyThreshold {
			shakeoutDays++
		}
		if span > 0 && (closes[i]-lows[i])/span >= strongPos {
			strongCloseDays++
		}
	}
	card.add("intraday_shakeout_days", float64(shakeoutDays),
		formulas.Normalize(float64(shakeoutDays), 1, 5))
	card.add("strong_close_share", float64(strongCloseDays)/float64(len(closes)),
		formulas.Normalize(float64(strongCloseDays)/float64(len(closes)), 0.3, 0.7))
}

// analyzeFalseBreakRejects counts days that pierce the trailing support
// floor intraday yet close back above it.
func (m *TechnicalPatternModule) analyzeFalseBreakRejects(card *scorecard, lows, closes []float64) {
	const lookback = 10
	if len(lows) <= lookback {
		return
	}
	rejects := 0
	for i := lookback; i < len(lows); i++ {
		support := formulas.Min(lows[i-lookback : i])
		if lows[i] < support*0.99 && closes[i] > support {
			rejects++
		}
	}
	card.add("false_break_rejects", float64(rejects), formulas.Normalize(float64(rejects), 0, 3))
}

// analyzeBreakthroughPrep scores repeated, regular tests of the ceiling
// with healthy volume, converging short/medium averages and a flattening
// MACD histogram.
func (m *TechnicalPatternModule) analyzeBreakthroughPrep(card *scorecard, highs, closes, volumes []float64) {
	ceiling := formulas.Max(highs)
	if ceiling <= 0 {
		return
	}
	proximity := m.param("ceiling_proximity", 0.98)

	var testIdx []int
	for i, h := range highs {
		if h >= proximity*ceiling {
			testIdx = append(testIdx, i)
		}
	}
	card.add("ceiling_tests", float64(len(testIdx)), formulas.Normalize(float64(len(testIdx)), 1, 5))

	if len(testIdx) >= 3 {
		gaps := make([]float64, len(testIdx)-1)
		for i := 1; i < len(testIdx); i++ {
			gaps[i-1] = float64(testIdx[i] - testIdx[i-1])
		}
		// Regularly spaced tests read as deliberate probing.
		card.add("test_interval_dispersion", formulas.StdDev(gaps),
			formulas.Normalize(formulas.StdDev(gaps), 8, 1))
	}

	if avgVol := formulas.Mean(volumes); avgVol > 0 && len(testIdx) > 0 {
		var testVol float64
		for _, i := range testIdx {
			testVol += volumes[i]
		}
		ratio := testVol / float64(len(testIdx)) / avgVol
		card.add("test_volume_ratio", ratio, formulas.Normalize(ratio, 0.8, 1.5))
	}

	sma5, ok5 := formulas.LastSMA(closes, 5)
	sma20, ok20 := formulas.LastSMA(closes, 20)
	if ok5 && ok20 && sma20 > 0 {
		gap := math.Abs(sma5-sma20) / sma20
		card.add("sma_convergence", gap,
			formulas.Normalize(gap, m.param("sma_gap_low", 0.05), m.param("sma_gap_high", 0.005)))
	}

	hist := formulas.CleanNaN(formulas.MACDHistogram(closes))
	if len(hist) >= 10 && closes[len(closes)-1] > 0 {
		recent := hist[len(hist)-10:]
		spread := (formulas.Max(recent) - formulas.Min(recent)) / closes[len(closes)-1]
		card.add("macd_flatness", spread, formulas.Normalize(spread, 0.02, 0.002))
	}

	rsi := formulas.RSI(closes, 14)
	card.add("rsi_midzone", rsi, formulas.Normalize(math.Abs(rsi-50), 30, 5))
}

func (m *TechnicalPatternModule) describe(score float64, card *scorecard) string {
	desc := fmt.Sprintf("技术形态特征%s（%.1f分）", tierLabel(score), score)
	if card.scores["bb_width_contraction"] >= 70 {
		desc += "，布林带持续收窄"
	}
	if card.scores["long_lower_shadow_days"] >= 70 || card.scores["false_break_rejects"] >= 70 {
		desc += "，存在洗盘迹象"
	}
	if card.scores["ceiling_tests"] >= 70 {
		desc += "，反复试探压力位"
	}
	return desc
}

func (m *TechnicalPatternModule) detailInfo(card *scorecard) map[string]interface{} {
	var watchPoints []string
	if card.scores["consolidation_tightness"] >= 70 {
		watchPoints = append(watchPoints, "横盘区间收敛，关注方向选择")
	}
	if card.scores["ceiling_tests"] >= 70 {
		watchPoints = append(watchPoints, "多次触及压力位，留意放量突破")
	}
	if card.scores["support_rise_slope"] >= 70 {
		watchPoints = append(watchPoints, "支撑位缓慢抬高，回踩不破可加强确认")
	}

	return map[string]interface{}{
		"底部形态": map[string]interface{}{
			"volatility_coefficient":  card.indicators["volatility_coefficient"],
			"bb_width_contraction":    card.indicators["bb_width_contraction"],
			"consolidation_tightness": card.indicators["consolidation_tightness"],
			"support_rise_slope":      card.indicators["support_rise_slope"],
		},
		"洗盘特征": map[string]interface{}{
			"atr":                    card.indicators["atr"],
			"long_lower_shadow_days": card.indicators["long_lower_shadow_days"],
			"false_break_rejects":    card.indicators["false_break_rejects"],
			"intraday_shakeout_days": card.indicators["intraday_shakeout_days"],
			"strong_close_share":     card.indicators["strong_close_share"],
		},
		"突破酝酿": map[string]interface{}{
			"ceiling_tests":   card.indicators["ceiling_tests"],
			"sma_convergence": card.indicators["sma_convergence"],
			"macd_flatness":   card.indicators["macd_flatness"],
		},
		"watch_points": watchPoints,
	}
}

func (m *TechnicalPatternModule) charts(window contracts.BarSeries, closes []float64) map[string]*contracts.ChartSeries {
	charts := map[string]*contracts.ChartSeries{
		"close": {Dates: window.Dates(), Values: closes},
	}
	if widths := formulas.BollingerWidths(closes, 20, 2.0); len(formulas.CleanNaN(widths)) > 0 {
		charts["bb_width"] = &contracts.ChartSeries{Dates: window.Dates(), Values: widths}
	}
	return charts
}

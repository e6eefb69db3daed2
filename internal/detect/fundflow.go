package detect

import (
	"fmt"
	"math"

	"fundambush/internal/contracts"
	"fundambush/pkg/formulas"
	"fundambush/pkg/logger"
)

// ModuleFundFlow is the registry name of the fund-flow module.
const ModuleFundFlow = "fund_flow"

// FundFlowModule scores how persistently and quietly capital has been
// flowing into the stock: inflow persistence and strength, price/inflow
// decoupling, intraday rhythm, capital-style typing, acceleration and
// support-level buying.
type FundFlowModule struct {
	base
}

// NewFundFlowModule creates the module with its default configuration.
func NewFundFlowModule(log *logger.Logger) *FundFlowModule {
	params := map[string]float64{
		"window": 20,

		// inflow / float-cap reference bands per cap bucket
		"float_ratio_high_small": 0.05,
		"float_ratio_high_mid":   0.03,
		"float_ratio_high_large": 0.015,

		// intraday rhythm
		"closing_ratio_low":  0.10,
		"closing_ratio_high": 0.45,
		"inflow_cv_low":      2.0, // inverted band: lower CV scores higher
		"inflow_cv_high":     0.5,

		"active_buy_low":  0.45,
		"active_buy_high": 0.75,
	}
	weights := map[string]float64{
		"inflow_day_ratio":         1.5,
		"closing_inflow_ratio":     1.2,
		"capital_style_confidence": 1.2,
		"inflow_acceleration":      0.8,
		"recent5_concentration":    0.6,
	}
	return &FundFlowModule{base: newBase(ModuleFundFlow, 0.25, params, weights, log)}
}

// Analyze computes the fund-flow indicator family over the trailing window.
func (m *FundFlowModule) Analyze(bars contracts.BarSeries, meta *contracts.StockMeta, mkt *contracts.MarketContext, extras *contracts.Extras) (*contracts.AnalysisResult, error) {
	if err := bars.Require(m.name, contracts.ColFundFlow); err != nil {
		return nil, err
	}

	window := bars.Sorted().Tail(int(m.param("window", 20)))
	flows, _ := window.Values(contracts.ColFundFlow)
	closes := window.Closes()

	card := newScorecard()

	m.analyzePersistence(card, flows)
	m.analyzeStrength(card, flows, window, meta)
	m.analyzeCorrelation(card, closes, flows)
	closingRatio := m.analyzeRhythm(card, window, flows)
	m.analyzeActiveBuy(card, window)
	style := m.classifyStyle(card, flows, closingRatio)
	m.analyzeAcceleration(card, flows)
	m.analyzeDivergence(card, window, flows, meta)
	m.analyzeSupportBuying(card, window, flows)

	score := card.weightedScore(m.indicatorWeights)
	description := m.describe(score, card, style)
	detail := m.detailInfo(card, style)
	charts := m.charts(window, flows)

	m.log.WithFields(map[string]interface{}{
		"code":  meta.Code,
		"score": score,
		"style": style,
	}).Debug("fund flow analysis completed")

	return m.result(card, description, detail, charts), nil
}

// analyzePersistence counts positive-net-inflow days in the window.
func (m *FundFlowModule) analyzePersistence(card *scorecard, flows []float64) {
	inflowDays := 0
	for _, f := range flows {
		if f > 0 {
			inflowDays++
		}
	}
	ratio := 0.0
	if len(flows) > 0 {
		ratio = float64(inflowDays) / float64(len(flows))
	}
	card.add("inflow_days", float64(inflowDays), formulas.Normalize(float64(inflowDays), 5, 16))
	card.add("inflow_day_ratio", ratio, formulas.Normalize(ratio, 0.3, 0.9))
}

// analyzeStrength relates cumulative inflow to the free-float market cap,
// thresholded by cap bucket.
func (m *FundFlowModule) analyzeStrength(card *scorecard, flows []float64, window contracts.BarSeries, meta *contracts.StockMeta) {
	total := formulas.Sum(flows)
	floatCap := meta.MarketCap * 1e8 // 100M CNY -> CNY
	if floatCap <= 0 {
		card.add("inflow_to_float_ratio", 0, formulas.NeutralScore)
		return
	}
	ratio := total / floatCap

	var high float64
	switch meta.Bucket() {
	case contracts.SmallCap:
		high = m.param("float_ratio_high_small", 0.05)
	case contracts.MidCap:
		high = m.param("float_ratio_high_mid", 0.03)
	default:
		high = m.param("float_ratio_high_large", 0.015)
	}
	card.add("inflow_to_float_ratio", ratio, formulas.Normalize(ratio, 0, high))
}

// analyzeCorrelation scores the price/inflow correlation: weak coupling
// while money flows in reads as quiet accumulation.
func (m *FundFlowModule) analyzeCorrelation(card *scorecard, closes, flows []float64) {
	corr, ok := formulas.Correlation(closes, flows)
	if !ok {
		// Undefined correlation (flat price or flat flow) is neutral, never
		// an error.
		card.add("price_inflow_correlation", 0, formulas.NeutralScore)
		return
	}
	card.add("price_inflow_correlation", corr, formulas.Normalize(math.Abs(corr), 0.8, 0.1))
}

// analyzeRhythm scores the closing-auction share of daily inflow and the
// steadiness (CV) of the inflow stream. Returns the closing share for the
// style classifier.
func (m *FundFlowModule) analyzeRhythm(card *scorecard, window contracts.BarSeries, flows []float64) contracts.Measurement {
	closingRatio := contracts.Unavailable()
	if closingFlows, ok := window.Values(contracts.ColClosingFundFlow); ok {
		totalFlow := formulas.Sum(flows)
		if totalFlow > 0 {
			closingRatio = contracts.Measured(formulas.Sum(closingFlows) / totalFlow)
		}
	}
	if closingRatio.Known() {
		card.add("closing_inflow_ratio", closingRatio.Value,
			formulas.Normalize(closingRatio.Value, m.param("closing_ratio_low", 0.10), m.param("closing_ratio_high", 0.45)))
	}

	cv := formulas.CoefficientOfVariation(flows)
	cvScore := formulas.Normalize(cv, m.param("inflow_cv_low", 2.0), m.param("inflow_cv_high", 0.5))
	if formulas.Sum(flows) <= 0 {
		// A steady stream of nothing is not steady accumulation.
		cvScore = 0
	}
	card.add("inflow_cv", cv, cvScore)

	return closingRatio
}

// analyzeActiveBuy scores the dominant buy-side participation ratio.
func (m *FundFlowModule) analyzeActiveBuy(card *scorecard, window contracts.BarSeries) {
	ratios, ok := window.Values(contracts.ColActiveBuyRatio)
	if !ok {
		return
	}
	avg := formulas.Mean(ratios)
	card.add("active_buy_ratio", avg,
		formulas.Normalize(avg, m.param("active_buy_low", 0.45), m.param("active_buy_high", 0.75)))
}

// classifyStyle types the inflowing capital from volatility, closing share
// and persistence heuristics. Each style carries a fixed confidence score.
func (m *FundFlowModule) classifyStyle(card *scorecard, flows []float64, closingRatio contracts.Measurement) string {
	inflowDays := 0
	for _, f := range flows {
		if f > 0 {
			inflowDays++
		}
	}
	persistence := 0.0
	if len(flows) > 0 {
		persistence = float64(inflowDays) / float64(len(flows))
	}
	cv := formulas.CoefficientOfVariation(flows)
	closing := 0.0
	if closingRatio.Known() {
		closing = closingRatio.Value
	}

	style := "unknown"
	confidence := 50.0
	switch {
	case closing >= 0.35 && cv <= 1.2 && persistence >= 0.6:
		style, confidence = "institutional", 85
	case closing >= 0.30 && persistence >= 0.55:
		style, confidence = "northbound", 75
	case cv > 2.0 || (closingRatio.Known() && closing < 0.15):
		style, confidence = "retail", 30
	}

	card.add("capital_style_confidence", confidence, confidence)
	return style
}

// analyzeAcceleration compares second-half to first-half inflow and the
// recent-5-day concentration of the cumulative flow.
func (m *FundFlowModule) analyzeAcceleration(card *scorecard, flows []float64) {
	if len(flows) < 4 || formulas.Sum(flows) <= 0 {
		return
	}
	half := len(flows) / 2
	firstHalf := formulas.Sum(flows[:half])
	secondHalf := formulas.Sum(flows[half:])

	accel := 1.0
	if firstHalf > 0 {
		accel = secondHalf / firstHalf
	} else if secondHalf > 0 {
		accel = 2.0 // inflow switched on mid-window
	}
	card.add("inflow_acceleration", accel, formulas.Normalize(accel, 0.5, 1.5))

	total := formulas.Sum(flows)
	if total > 0 && len(flows) >= 5 {
		recent := formulas.Sum(flows[len(flows)-5:])
		concentration := formulas.Clamp(recent/total, 0, 1)
		card.add("recent5_concentration", concentration, formulas.Normalize(concentration, 0.1, 0.5))
	}
}

// analyzeDivergence flags inflow without a matching price move: the
// divergence is maximal when price is flat while money keeps coming in.
func (m *FundFlowModule) analyzeDivergence(card *scorecard, window contracts.BarSeries, flows []float64, meta *contracts.StockMeta) {
	if len(window) < 2 {
		return
	}
	total := formulas.Sum(flows)
	first, last := window[0].Close, window[len(window)-1].Close
	priceChange := 0.0
	if first > 0 {
		priceChange = (last - first) / first
	}

	intensity := 0.0
	if amountSum := formulas.Sum(window.Amounts()); amountSum > 0 {
		intensity = total / amountSum
	} else if meta.MarketCap > 0 {
		intensity = total / (meta.MarketCap * 1e8)
	}

	if math.Abs(priceChange) < 0.005 {
		if total > 0 {
			// Flat price, positive inflow: the strongest divergence signal.
			card.add("volume_price_divergence", 10, 100)
		} else {
			card.add("volume_price_divergence", 0, 0)
		}
		return
	}

	divergence := intensity / math.Abs(priceChange)
	score := formulas.Normalize(divergence, 0.2, 3.0)
	if total <= 0 {
		score = 0
	}
	card.add("volume_price_divergence", divergence, score)
}

// analyzeSupportBuying compares large-order buying on pullback days with
// normal days, and measures accumulation near the window's price ceiling.
func (m *FundFlowModule) analyzeSupportBuying(card *scorecard, window contracts.BarSeries, flows []float64) {
	largeBuys, ok := window.Values(contracts.ColLargeOrderBuy)
	if ok && len(window) >= 3 {
		var pullback, normal []float64
		for i := 1; i < len(window); i++ {
			if window[i].Close < window[i-1].Close {
				pullback = append(pullback, largeBuys[i])
			} else {
				normal = append(normal, largeBuys[i])
			}
		}
		if len(pullback) > 0 && formulas.Mean(normal) > 0 {
			ratio := formulas.Mean(pullback) / formulas.Mean(normal)
			card.add("support_buying_ratio", ratio, formulas.Normalize(ratio, 0.8, 1.8))
		}
	}

	// Pre-breakout accumulation: inflow share on days pressing the ceiling.
	ceiling := 0.0
	for _, b := range window {
		if b.Close > ceiling {
			ceiling = b.Close
		}
	}
	if ceiling <= 0 {
		return
	}
	nearDays, nearInflowDays := 0, 0
	for i, b := range window {
		if b.Close >= 0.95*ceiling {
			nearDays++
			if flows[i] > 0 {
				nearInflowDays++
			}
		}
	}
	if nearDays >= 2 {
		share := float64(nearInflowDays) / float64(nearDays)
		card.add("prebreakout_accumulation", share, formulas.Normalize(share, 0.3, 0.9))
	}
}

func (m *FundFlowModule) describe(score float64, card *scorecard, style string) string {
	desc := fmt.Sprintf("资金潜伏特征%s（%.1f分）", tierLabel(score), score)
	if card.scores["closing_inflow_ratio"] >= 75 {
		desc += "，尾盘资金介入特征明显"
	}
	if style == "institutional" {
		desc += "，资金风格偏机构"
	} else if style == "northbound" {
		desc += "，资金风格疑似北向"
	}
	if card.scores["inflow_acceleration"] >= 75 {
		desc += "，资金流入呈加速态势"
	}
	if card.scores["volume_price_divergence"] >= 75 {
		desc += "，量价背离显示吸筹迹象"
	}
	return desc
}

func (m *FundFlowModule) detailInfo(card *scorecard, style string) map[string]interface{} {
	var watchPoints []string
	if card.scores["inflow_day_ratio"] >= 70 {
		watchPoints = append(watchPoints, "资金连续净流入，关注是否延续")
	}
	if card.scores["closing_inflow_ratio"] >= 75 {
		watchPoints = append(watchPoints, "尾盘吸筹占比高，留意尾盘异动")
	}
	if card.scores["prebreakout_accumulation"] >= 70 {
		watchPoints = append(watchPoints, "临近压力位仍有资金进场，关注突破确认")
	}

	return map[string]interface{}{
		"资金持续性": map[string]interface{}{
			"inflow_days":      card.indicators["inflow_days"],
			"inflow_day_ratio": card.indicators["inflow_day_ratio"],
			"score":            card.scores["inflow_day_ratio"],
		},
		"资金强度": map[string]interface{}{
			"inflow_to_float_ratio": card.indicators["inflow_to_float_ratio"],
			"score":                 card.scores["inflow_to_float_ratio"],
		},
		"量价关系": map[string]interface{}{
			"price_inflow_correlation": card.indicators["price_inflow_correlation"],
			"volume_price_divergence":  card.indicators["volume_price_divergence"],
		},
		"capital_style": style,
		"watch_points":  watchPoints,
	}
}

func (m *FundFlowModule) charts(window contracts.BarSeries, flows []float64) map[string]*contracts.ChartSeries {
	cumulative := make([]float64, len(flows))
	running := 0.0
	for i, f := range flows {
		running += f
		cumulative[i] = running
	}
	dates := window.Dates()
	return map[string]*contracts.ChartSeries{
		"fund_flow":            {Dates: dates, Values: flows},
		"cumulative_fund_flow": {Dates: dates, Values: cumulative},
	}
}

package detect

import (
	"fmt"
	"math"
	"strings"

	"fundambush/internal/contracts"
	"fundambush/pkg/formulas"
	"fundambush/pkg/logger"
)

// ModuleMainForce is the registry name of the main-force module.
const ModuleMainForce = "main_force"

// Force types the module can attribute the observed accumulation to.
const (
	ForceRetail          = "retail"
	ForceInstitutional   = "institutional"
	ForceNorthbound      = "northbound"
	ForceIndustryCapital = "industry_capital"
	ForceUnknown         = "unknown"
)

// institutionalSeats are the buy-seat keywords that mark institutional
// participation on the public trade ledger.
var institutionalSeats = []string{"机构专用", "基金", "社保", "保险", "QFII", "券商自营", "资管"}

// MainForceModule types the capital behind the accumulation (who is
// buying) and scores how far its position building has progressed:
// institutional participation, northbound positioning, insider activity,
// large-order behavior, building rhythm and time-of-day preference.
type MainForceModule struct {
	base
}

// NewMainForceModule creates the module with its default configuration.
func NewMainForceModule(log *logger.Logger) *MainForceModule {
	params := map[string]float64{
		"window": 30,

		"inst_ratio_low":  0.2,
		"inst_ratio_high": 0.7,

		// northbound holding-ratio change band, in percentage points
		"north_change_low":  -0.5,
		"north_change_high": 2.0,

		"large_ratio_low":  0.9,
		"large_ratio_high": 1.8,
		"large_cv_low":     3.0, // inverted band
		"large_cv_high":    0.8,

		"pullback_ratio_low":  0.8,
		"pullback_ratio_high": 1.8,
	}
	weights := map[string]float64{
		"force_confidence":        1.5,
		"institutional_buy_ratio": 1.2,
		"building_stage":          1.2,
		"northbound_change":       1.0,
	}
	return &MainForceModule{base: newBase(ModuleMainForce, 0.25, params, weights, log)}
}

// Analyze computes the main-force indicator family over the trailing window.
func (m *MainForceModule) Analyze(bars contracts.BarSeries, meta *contracts.StockMeta, mkt *contracts.MarketContext, extras *contracts.Extras) (*contracts.AnalysisResult, error) {
	if err := bars.Require(m.name, contracts.ColLargeOrderBuy, contracts.ColLargeOrderSell); err != nil {
		return nil, err
	}

	window := bars.Sorted().Tail(int(m.param("window", 30)))
	buys, _ := window.Values(contracts.ColLargeOrderBuy)
	sells, _ := window.Values(contracts.ColLargeOrderSell)
	nets := netInflows(window, buys, sells)

	card := newScorecard()

	instRatio := m.analyzeInstitutional(card, window)
	northChange := m.analyzeNorthbound(card, window, meta, mkt)
	insiderNet := m.analyzeInsiders(card, window)
	forceType := m.classifyForce(card, buys, sells, nets, instRatio, northChange, insiderNet)
	stage := m.analyzeBuildingRhythm(card, nets)
	m.analyzePullbackBuying(card, window, buys)
	preference := m.analyzeTimePreference(card, window, forceType)
	m.analyzePatternMatches(card, window, nets, extras, forceType)

	score := card.weightedScore(m.indicatorWeights)
	description := m.describe(score, forceType, stage)
	detail := m.detailInfo(card, forceType, stage, preference, instRatio, northChange)
	charts := m.charts(window, nets)

	m.log.WithFields(map[string]interface{}{
		"code":  meta.Code,
		"score": score,
		"force": forceType,
		"stage": stage,
	}).Debug("main force analysis completed")

	return m.result(card, description, detail, charts), nil
}

func netInflows(window contracts.BarSeries, buys, sells []float64) []float64 {
	if nets, ok := window.Values(contracts.ColLargeOrderNetInflow); ok {
		return nets
	}
	nets := make([]float64, len(buys))
	for i := range buys {
		nets[i] = buys[i] - sells[i]
	}
	return nets
}

// analyzeInstitutional measures institutional buy participation, directly
// from the institutional columns or estimated from top-buy-seat keywords.
func (m *MainForceModule) analyzeInstitutional(card *scorecard, window contracts.BarSeries) contracts.Measurement {
	ratio := contracts.Unavailable()

	if instBuys, ok := window.Values(contracts.ColInstitutionalBuy); ok {
		if instSells, ok2 := window.Values(contracts.ColInstitutionalSell); ok2 {
			totalBuy, totalSell := formulas.Sum(instBuys), formulas.Sum(instSells)
			if totalBuy+totalSell > 0 {
				ratio = contracts.Measured(totalBuy / (totalBuy + totalSell))
			}
		}
	}

	if !ratio.Known() {
		// Estimate from the share of days with an institutional seat among
		// the top buyers.
		seatDays, totalDays := 0, 0
		for _, b := range window {
			if len(b.TopBuySeats) == 0 {
				continue
			}
			totalDays++
			if hasInstitutionalSeat(b.TopBuySeats) {
				seatDays++
			}
		}
		if totalDays > 0 {
			ratio = contracts.Estimated(float64(seatDays) / float64(totalDays))
		}
	}

	if ratio.Known() {
		card.add("institutional_buy_ratio", ratio.Value,
			formulas.Normalize(ratio.Value, m.param("inst_ratio_low", 0.2), m.param("inst_ratio_high", 0.7)))
	}
	return ratio
}

func hasInstitutionalSeat(seats []string) bool {
	for _, seat := range seats {
		for _, keyword := range institutionalSeats {
			if strings.Contains(seat, keyword) {
				return true
			}
		}
	}
	return false
}

// analyzeNorthbound measures the northbound holding-ratio change over the
// window, or extrapolates it from aggregate northbound flow scaled by the
// stock's share of total market cap.
func (m *MainForceModule) analyzeNorthbound(card *scorecard, window contracts.BarSeries, meta *contracts.StockMeta, mkt *contracts.MarketContext) contracts.Measurement {
	change := contracts.Unavailable()

	if holdings, ok := window.Values(contracts.ColNorthboundHolding); ok && len(holdings) >= 2 {
		change = contracts.Measured(holdings[len(holdings)-1] - holdings[0])
	} else if mkt != nil && mkt.TotalMarketCap > 0 && meta.MarketCap > 0 {
		// Aggregate flow scaled by the stock's cap share, converted into a
		// holding-ratio change in percentage points.
		stockShare := meta.MarketCap / mkt.TotalMarketCap
		estimatedInflow := mkt.NorthboundFlow * stockShare // 100M CNY
		change = contracts.Estimated(estimatedInflow / meta.MarketCap * 100)
	}

	if change.Known() {
		card.add("northbound_change", change.Value,
			formulas.Normalize(change.Value, m.param("north_change_low", -0.5), m.param("north_change_high", 2.0)))
	}
	return change
}

// analyzeInsiders scores insider trading activity and its net direction.
func (m *MainForceModule) analyzeInsiders(card *scorecard, window contracts.BarSeries) contracts.Measurement {
	buys, okBuy := window.Values(contracts.ColInsiderBuy)
	sells, okSell := window.Values(contracts.ColInsiderSell)
	if !okBuy || !okSell {
		return contracts.Unavailable()
	}

	activeDays := 0
	for i := range buys {
		if buys[i] > 0 || sells[i] > 0 {
			activeDays++
		}
	}
	card.add("insider_activity_days", float64(activeDays), formulas.Normalize(float64(activeDays), 0, 5))

	totalBuy, totalSell := formulas.Sum(buys), formulas.Sum(sells)
	if totalBuy+totalSell <= 0 {
		card.add("insider_net_direction", 0, formulas.NeutralScore)
		return contracts.Measured(0)
	}
	net := (totalBuy - totalSell) / (totalBuy + totalSell)
	card.add("insider_net_direction", net, formulas.Normalize(net, -1, 1))
	return contracts.Measured(net)
}

// classifyForce types the dominant force from the evidence gathered so far
// plus large-order volatility and the buy/sell ratio.
func (m *MainForceModule) classifyForce(card *scorecard, buys, sells, nets []float64, instRatio, northChange, insiderNet contracts.Measurement) string {
	totalBuy, totalSell := formulas.Sum(buys), formulas.Sum(sells)
	ratio := 1.0
	switch {
	case totalSell > 0:
		ratio = totalBuy / totalSell
	case totalBuy > 0:
		ratio = 3.0 // one-sided buying
	}
	card.add("large_order_ratio", ratio,
		formulas.Normalize(ratio, m.param("large_ratio_low", 0.9), m.param("large_ratio_high", 1.8)))

	cv := formulas.CoefficientOfVariation(nets)
	cvScore := formulas.Normalize(cv, m.param("large_cv_low", 3.0), m.param("large_cv_high", 0.8))
	if formulas.Sum(nets) <= 0 {
		// Zero dispersion around zero net buying is not steadiness.
		cvScore = 0
	}
	card.add("large_order_cv", cv, cvScore)

	forceType := ForceUnknown
	confidence := 50.0
	switch {
	case instRatio.Known() && instRatio.Value >= 0.5:
		forceType, confidence = ForceInstitutional, 85
	case northChange.Known() && northChange.Value > 0.5:
		forceType, confidence = ForceNorthbound, 80
	case ratio >= 1.3 && cv <= 1.5:
		forceType, confidence = ForceInstitutional, 70
	case insiderNet.Known() && insiderNet.Value > 0.3:
		forceType, confidence = ForceIndustryCapital, 65
	case ratio < 1.05:
		forceType, confidence = ForceRetail, 35
	}
	card.add("force_confidence", confidence, confidence)
	return forceType
}

// analyzeBuildingRhythm examines the cumulative net large-order buying:
// streak length and how far along the accumulation looks.
func (m *MainForceModule) analyzeBuildingRhythm(card *scorecard, nets []float64) string {
	streak := accumulationStreak(nets)
	card.add("consecutive_accumulation_days", float64(streak), formulas.Normalize(float64(streak), 1, 7))

	cumulative, peak := 0.0, 0.0
	for _, n := range nets {
		cumulative += n
		if cumulative > peak {
			peak = cumulative
		}
	}
	card.add("cumulative_net_buying", cumulative, formulas.Normalize(cumulative, 0, math.Max(peak, 1)))

	// Stage from the ratio of current to peak cumulative net buying: near
	// the peak with a live streak reads as mid-build, near the peak without
	// one as an early build, well off the peak as late (distribution has
	// started).
	stage := "early"
	stageScore := 30.0
	if peak > 0 {
		progress := cumulative / peak
		switch {
		case progress >= 0.85 && streak >= 3:
			stage, stageScore = "middle", 85
		case progress >= 0.85:
			stage, stageScore = "early", 65
		default:
			stage, stageScore = "late", 40
		}
	}
	card.add("building_stage", stageScore, stageScore)
	return stage
}

// accumulationStreak counts consecutive positive net-buying days ending at
// the most recent bar.
func accumulationStreak(nets []float64) int {
	streak := 0
	for i := len(nets) - 1; i >= 0; i-- {
		if nets[i] > 0 {
			streak++
		} else {
			break
		}
	}
	return streak
}

// analyzePullbackBuying compares average large-order buying on multi-day
// decline days against all other days.
func (m *MainForceModule) analyzePullbackBuying(card *scorecard, window contracts.BarSeries, buys []float64) {
	if len(window) < 4 {
		return
	}
	var declining, other []float64
	for i := 2; i < len(window); i++ {
		if window[i].Close < window[i-1].Close && window[i-1].Close < window[i-2].Close {
			declining = append(declining, buys[i])
		} else {
			other = append(other, buys[i])
		}
	}
	if len(declining) == 0 || formulas.Mean(other) <= 0 {
		return
	}
	ratio := formulas.Mean(declining) / formulas.Mean(other)
	card.add("pullback_buying_ratio", ratio,
		formulas.Normalize(ratio, m.param("pullback_ratio_low", 0.8), m.param("pullback_ratio_high", 1.8)))
}

// analyzeTimePreference infers the force's time-of-day preference from
// closing-order share and cross-checks it against the expectation for the
// classified force type.
func (m *MainForceModule) analyzeTimePreference(card *scorecard, window contracts.BarSeries, forceType string) string {
	closingFlows, okClosing := window.Values(contracts.ColClosingFundFlow)
	flows, okFlow := window.Values(contracts.ColFundFlow)
	if !okClosing || !okFlow {
		return ""
	}
	totalFlow := formulas.Sum(flows)
	if totalFlow <= 0 {
		return ""
	}

	closingShare := formulas.Sum(closingFlows) / totalFlow
	preference := "intraday"
	if closingShare >= 0.35 {
		preference = "closing"
	} else if closingShare <= 0.15 {
		preference = "opening"
	}

	expected := map[string]string{
		ForceInstitutional:   "closing",
		ForceNorthbound:      "closing",
		ForceIndustryCapital: "intraday",
		ForceRetail:          "opening",
	}
	score := formulas.NeutralScore
	if want, ok := expected[forceType]; ok {
		if want == preference {
			score = 80
		} else {
			score = 40
		}
	}
	card.add("time_preference_match", closingShare, score)
	return preference
}

// analyzePatternMatches runs the optional similarity matching against a
// historical pattern library, peer-stock vectors and a force track record,
// all supplied through the auxiliary channel.
func (m *MainForceModule) analyzePatternMatches(card *scorecard, window contracts.BarSeries, nets []float64, extras *contracts.Extras, forceType string) {
	if extras == nil {
		return
	}

	current := m.featureVector(window, nets)

	if len(extras.PatternLibrary) > 0 {
		sim, outcome := bestMatch(current, extras.PatternLibrary)
		card.add("pattern_similarity", sim, formulas.Clamp(sim, 0, 1)*outcome)
	}
	if len(extras.PeerVectors) > 0 {
		sim, _ := bestMatch(current, extras.PeerVectors)
		card.add("peer_similarity", sim, formulas.Normalize(sim, 0.3, 0.9))
	}
	if rate, ok := extras.ForceTrackRecord[forceType]; ok {
		card.add("force_track_record", rate, formulas.Clamp(rate, 0, 1)*100)
	}
}

// featureVector summarizes the window into the three features the
// similarity match compares.
func (m *MainForceModule) featureVector(window contracts.BarSeries, nets []float64) contracts.PatternVector {
	v := contracts.PatternVector{}

	if amountSum := formulas.Sum(window.Amounts()); amountSum > 0 {
		v.NetOrderRatio = formulas.Sum(nets) / amountSum
	}
	if len(window) >= 2 && window[0].Close > 0 {
		v.PriceReturn = (window[len(window)-1].Close - window[0].Close) / window[0].Close
	}
	volumes := window.Volumes()
	if avg := formulas.Mean(volumes); avg > 0 && len(volumes) >= 5 {
		v.VolumeRatio = formulas.Mean(volumes[len(volumes)-5:]) / avg
	}
	return v
}

// bestMatch returns the highest weighted-average similarity between the
// current vector and the library, plus the matched pattern's outcome. The
// 0.5/0.3/0.2 feature weights mirror the established library format.
func bestMatch(current contracts.PatternVector, library []contracts.PatternVector) (float64, float64) {
	bestSim, bestOutcome := 0.0, 0.0
	for _, p := range library {
		sim := 1 - (0.5*math.Abs(current.NetOrderRatio-p.NetOrderRatio) +
			0.3*math.Abs(current.PriceReturn-p.PriceReturn) +
			0.2*math.Abs(current.VolumeRatio-p.VolumeRatio))
		sim = formulas.Clamp(sim, 0, 1)
		if sim > bestSim {
			bestSim, bestOutcome = sim, p.Outcome
		}
	}
	return bestSim, bestOutcome
}

func (m *MainForceModule) describe(score float64, forceType, stage string) string {
	forceLabels := map[string]string{
		ForceRetail:          "游资/散户",
		ForceInstitutional:   "机构资金",
		ForceNorthbound:      "北向资金",
		ForceIndustryCapital: "产业资本",
		ForceUnknown:         "未知主力",
	}
	stageLabels := map[string]string{
		"early":  "建仓初期",
		"middle": "建仓中期",
		"late":   "建仓后期",
	}
	desc := fmt.Sprintf("主力潜伏迹象%s（%.1f分），疑似%s", tierLabel(score), score, forceLabels[forceType])
	if label, ok := stageLabels[stage]; ok {
		desc += "，处于" + label
	}
	return desc
}

func (m *MainForceModule) detailInfo(card *scorecard, forceType, stage, preference string, instRatio, northChange contracts.Measurement) map[string]interface{} {
	var watchPoints []string
	if card.scores["consecutive_accumulation_days"] >= 70 {
		watchPoints = append(watchPoints, "大单连续净买入，关注吸筹是否中断")
	}
	if card.scores["pullback_buying_ratio"] >= 70 {
		watchPoints = append(watchPoints, "回调日大单承接积极，留意支撑位表现")
	}
	if card.scores["northbound_change"] >= 70 {
		watchPoints = append(watchPoints, "北向持仓上升，跟踪陆股通持股变化")
	}

	return map[string]interface{}{
		"force_type": forceType,
		"stage":      stage,
		"机构参与": map[string]interface{}{
			"institutional_buy_ratio": card.indicators["institutional_buy_ratio"],
			"basis":                   string(instRatio.Basis),
		},
		"北向资金": map[string]interface{}{
			"northbound_change": card.indicators["northbound_change"],
			"basis":             string(northChange.Basis),
		},
		"建仓节奏": map[string]interface{}{
			"cumulative_net_buying":         card.indicators["cumulative_net_buying"],
			"consecutive_accumulation_days": card.indicators["consecutive_accumulation_days"],
			"stage":                         stage,
		},
		"time_preference": preference,
		"watch_points":    watchPoints,
	}
}

func (m *MainForceModule) charts(window contracts.BarSeries, nets []float64) map[string]*contracts.ChartSeries {
	cumulative := make([]float64, len(nets))
	running := 0.0
	for i, n := range nets {
		running += n
		cumulative[i] = running
	}
	return map[string]*contracts.ChartSeries{
		"large_order_net_inflow":  {Dates: window.Dates(), Values: nets},
		"cumulative_large_orders": {Dates: window.Dates(), Values: cumulative},
	}
}

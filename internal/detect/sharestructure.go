package detect

import (
	"fmt"
	"math"

	"fundambush/internal/contracts"
	"fundambush/pkg/formulas"
	"fundambush/pkg/logger"
)

// ModuleShareStructure is the registry name of the share-structure module.
const ModuleShareStructure = "share_structure"

// ShareStructureModule scores how concentrated and locked the float has
// become: turnover level and stability, shareholder-count change, holder
// concentration, locked chips and block-trade activity.
type ShareStructureModule struct {
	base
}

// NewShareStructureModule creates the module with its default configuration.
func NewShareStructureModule(log *logger.Logger) *ShareStructureModule {
	params := map[string]float64{
		"window": 20,

		// daily turnover, percent; the quiet-accumulation sweet spot
		"turnover_ideal_low":  1.0,
		"turnover_ideal_high": 3.0,
		"turnover_floor":      0.2,
		"turnover_ceiling":    8.0,

		"turnover_cv_low":  1.0, // inverted band
		"turnover_cv_high": 0.2,

		// shareholder-count reduction over the window, fraction
		"reduction_low":  -0.05,
		"reduction_high": 0.15,

		"locked_low":  0.3,
		"locked_high": 0.8,

		"large_ratio_low":  0.9,
		"large_ratio_high": 1.8,

		// block-trade discount, fraction; small discounts read as genuine
		// positioning rather than exit liquidity
		"discount_low":  0.12, // inverted band
		"discount_high": 0.02,
	}
	weights := map[string]float64{
		"locked_chips_ratio":         1.3,
		"shareholders_reduction":     1.2,
		"turnover_stability":         1.1,
		"institution_holding_change": 1.1,
	}
	return &ShareStructureModule{base: newBase(ModuleShareStructure, 0.15, params, weights, log)}
}

// Analyze computes the share-structure indicator family over the trailing window.
func (m *ShareStructureModule) Analyze(bars contracts.BarSeries, meta *contracts.StockMeta, mkt *contracts.MarketContext, extras *contracts.Extras) (*contracts.AnalysisResult, error) {
	window := bars.Sorted().Tail(int(m.param("window", 20)))

	turnovers, err := m.turnoverSeries(window, meta)
	if err != nil {
		return nil, err
	}

	card := newScorecard()

	avgTurnover := m.analyzeTurnover(card, turnovers)
	m.analyzeClosingTurnover(card, window)
	m.analyzeHolders(card, window)
	m.analyzeConcentration(card, window, avgTurnover)
	m.analyzeLargeOrders(card, window)
	m.analyzeBlockTrades(card, window)

	score := card.weightedScore(m.indicatorWeights)
	description := m.describe(score, card)
	detail := m.detailInfo(card)
	charts := map[string]*contracts.ChartSeries{
		"turnover_rate": {Dates: window.Dates(), Values: turnovers},
	}

	m.log.WithFields(map[string]interface{}{
		"code":  meta.Code,
		"score": score,
	}).Debug("share structure analysis completed")

	return m.result(card, description, detail, charts), nil
}

// turnoverSeries reads the turnover column, or derives it from volume and
// the float when the column is absent.
func (m *ShareStructureModule) turnoverSeries(window contracts.BarSeries, meta *contracts.StockMeta) ([]float64, error) {
	if turnovers, ok := window.Values(contracts.ColTurnoverRate); ok {
		return turnovers, nil
	}
	if meta.FloatShares <= 0 {
		return nil, &contracts.MissingDataError{Module: m.name, Fields: []string{string(contracts.ColTurnoverRate)}}
	}
	turnovers := make([]float64, len(window))
	for i, b := range window {
		turnovers[i] = b.Volume / meta.FloatShares * 100
	}
	return turnovers, nil
}

// analyzeTurnover scores the level, steadiness and trend of the turnover
// series. The ideal profile is moderate, stable and gently declining.
func (m *ShareStructureModule) analyzeTurnover(card *scorecard, turnovers []float64) float64 {
	avg := formulas.Mean(turnovers)

	low, high := m.param("turnover_ideal_low", 1.0), m.param("turnover_ideal_high", 3.0)
	var levelScore float64
	switch {
	case avg >= low && avg <= high:
		levelScore = 100
	case avg < low:
		levelScore = formulas.Normalize(avg, m.param("turnover_floor", 0.2), low)
	default:
		// Inverted above the band: churn reads as distribution.
		levelScore = formulas.Normalize(avg, m.param("turnover_ceiling", 8.0), high)
	}
	card.add("turnover_level", avg, levelScore)

	cv := formulas.CoefficientOfVariation(turnovers)
	card.add("turnover_stability", cv,
		formulas.Normalize(cv, m.param("turnover_cv_low", 1.0), m.param("turnover_cv_high", 0.2)))

	slope := formulas.LinearSlope(turnovers)
	card.add("turnover_trend", slope, formulas.Normalize(slope, 0.1, -0.1))

	return avg
}

// analyzeClosingTurnover estimates the closing-auction share of daily
// activity from the fund-flow split; without it a fixed conservative
// estimate keeps the indicator comparable across stocks.
func (m *ShareStructureModule) analyzeClosingTurnover(card *scorecard, window contracts.BarSeries) {
	share := contracts.Estimated(0.3)
	closingFlows, okClosing := window.Values(contracts.ColClosingFundFlow)
	flows, okFlows := window.Values(contracts.ColFundFlow)
	if okClosing && okFlows {
		var total, closing float64
		for i := range flows {
			total += math.Abs(flows[i])
			closing += math.Abs(closingFlows[i])
		}
		if total > 0 {
			share = contracts.Estimated(formulas.Clamp(closing/total, 0, 1))
		}
	}
	card.add("closing_turnover_share", share.Value, formulas.Normalize(share.Value, 0.15, 0.45))
}

// analyzeHolders scores the shareholder-count reduction over the window.
// Fewer holders with an unchanged float means larger average positions.
func (m *ShareStructureModule) analyzeHolders(card *scorecard, window contracts.BarSeries) {
	counts, ok := window.Values(contracts.ColShareholdersCount)
	if !ok || len(counts) < 2 || counts[0] <= 0 {
		return
	}
	reduction := (counts[0] - counts[len(counts)-1]) / counts[0]
	card.add("shareholders_reduction", reduction,
		formulas.Normalize(reduction, m.param("reduction_low", -0.05), m.param("reduction_high", 0.15)))

	// Average holding per shareholder moves inversely to the count.
	if last := counts[len(counts)-1]; last > 0 {
		increase := counts[0]/last - 1
		card.add("avg_holding_increase", increase, formulas.Normalize(increase, -0.05, 0.2))
	}
}

// analyzeConcentration scores holder concentration: institutional holding
// change, the Gini coefficient trend and the locked-chips ratio, each with
// an estimation fallback when the direct column is absent.
func (m *ShareStructureModule) analyzeConcentration(card *scorecard, window contracts.BarSeries, avgTurnover float64) {
	nets, hasNets := window.Values(contracts.ColLargeOrderNetInflow)
	netSum := 0.0
	if !hasNets {
		if buys, ok := window.Values(contracts.ColLargeOrderBuy); ok {
			if sells, ok2 := window.Values(contracts.ColLargeOrderSell); ok2 {
				hasNets = true
				netSum = formulas.Sum(buys) - formulas.Sum(sells)
			}
		}
	} else {
		netSum = formulas.Sum(nets)
	}

	instChange := contracts.Unavailable()
	if ratios, ok := window.Values(contracts.ColInstitutionHoldingRatio); ok && len(ratios) >= 2 {
		instChange = contracts.Measured(ratios[len(ratios)-1] - ratios[0])
		card.add("institution_holding_change", instChange.Value,
			formulas.Normalize(instChange.Value, -1, 3))
	} else if hasNets {
		// Infer direction only: sustained large-order net buying implies
		// institutions absorbing the float.
		score := formulas.NeutralScore
		if netSum > 0 {
			score = 65
		} else if netSum < 0 {
			score = 35
		}
		card.add("institution_holding_change", 0, score)
	}

	if ginis, ok := window.Values(contracts.ColGiniCoefficient); ok && len(ginis) >= 2 {
		change := ginis[len(ginis)-1] - ginis[0]
		card.add("gini_change", change, formulas.Normalize(change, -0.02, 0.05))
	} else if card.scores["shareholders_reduction"] >= 60 && netSum > 0 {
		// Shrinking holder base plus net large-order buying implies rising
		// concentration even without the coefficient itself.
		card.add("gini_change", 0, 70)
	}

	locked := contracts.Unavailable()
	if ratios, ok := window.Values(contracts.ColLockedChipsRatio); ok && len(ratios) > 0 {
		locked = contracts.Measured(ratios[len(ratios)-1])
	} else {
		locked = contracts.Estimated(math.Max(0, 1-180*avgTurnover/100))
	}
	card.add("locked_chips_ratio", locked.Value,
		formulas.Normalize(locked.Value, m.param("locked_low", 0.3), m.param("locked_high", 0.8)))
}

// analyzeLargeOrders scores large-order dominance inside the window: the
// buy/sell ratio, the share of total turnover done in large orders, and
// whether large-order buying is building across the window halves.
func (m *ShareStructureModule) analyzeLargeOrders(card *scorecard, window contracts.BarSeries) {
	buys, okBuy := window.Values(contracts.ColLargeOrderBuy)
	sells, okSell := window.Values(contracts.ColLargeOrderSell)
	if !okBuy || !okSell || len(buys) == 0 {
		return
	}

	totalBuy, totalSell := formulas.Sum(buys), formulas.Sum(sells)
	if totalSell > 0 {
		ratio := totalBuy / totalSell
		card.add("large_order_ratio", ratio,
			formulas.Normalize(ratio, m.param("large_ratio_low", 0.9), m.param("large_ratio_high", 1.8)))
	}

	if amountSum := formulas.Sum(window.Amounts()); amountSum > 0 {
		share := (totalBuy + totalSell) / amountSum
		card.add("large_order_volume_share", share, formulas.Normalize(share, 0.1, 0.4))
	}

	if len(buys) >= 4 {
		half := len(buys) / 2
		firstNet := formulas.Sum(buys[:half]) - formulas.Sum(sells[:half])
		secondNet := formulas.Sum(buys[half:]) - formulas.Sum(sells[half:])
		trend := 1.0
		if firstNet > 0 {
			trend = secondNet / firstNet
		} else if secondNet > 0 {
			trend = 2.0
		} else {
			trend = 0.0
		}
		card.add("large_order_trend", trend, formulas.Normalize(trend, 0.5, 1.5))
	}
}

// analyzeBlockTrades scores off-exchange positioning: block-trade activity
// and how steep the discounts run.
func (m *ShareStructureModule) analyzeBlockTrades(card *scorecard, window contracts.BarSeries) {
	amounts, ok := window.Values(contracts.ColBlockTradeAmount)
	if !ok {
		return
	}

	activeDays := 0
	for _, a := range amounts {
		if a > 0 {
			activeDays++
		}
	}
	card.add("block_trade_days", float64(activeDays), formulas.Normalize(float64(activeDays), 0, 4))

	if activeDays == 0 {
		return
	}
	if discounts, ok := window.Values(contracts.ColBlockTradeDiscount); ok {
		var sum float64
		var n int
		for i, a := range amounts {
			if a > 0 {
				sum += discounts[i]
				n++
			}
		}
		avg := sum / float64(n)
		card.add("block_trade_discount", avg,
			formulas.Normalize(avg, m.param("discount_low", 0.12), m.param("discount_high", 0.02)))
	}
}

func (m *ShareStructureModule) describe(score float64, card *scorecard) string {
	desc := fmt.Sprintf("筹码集中度特征%s（%.1f分）", tierLabel(score), score)
	if card.scores["shareholders_reduction"] >= 70 {
		desc += "，股东户数持续下降"
	}
	if card.scores["locked_chips_ratio"] >= 70 {
		desc += "，锁仓比例较高"
	}
	if card.scores["turnover_stability"] >= 70 && card.scores["turnover_level"] >= 70 {
		desc += "，换手温和稳定"
	}
	return desc
}

func (m *ShareStructureModule) detailInfo(card *scorecard) map[string]interface{} {
	var watchPoints []string
	if card.scores["shareholders_reduction"] >= 70 {
		watchPoints = append(watchPoints, "股东户数下降，跟踪下一期股东数据")
	}
	if card.scores["block_trade_days"] >= 70 {
		watchPoints = append(watchPoints, "大宗交易活跃，关注折价率变化")
	}
	if card.scores["turnover_trend"] >= 70 {
		watchPoints = append(watchPoints, "换手率趋势走低，筹码趋于沉淀")
	}

	return map[string]interface{}{
		"换手特征": map[string]interface{}{
			"turnover_level":     card.indicators["turnover_level"],
			"turnover_stability": card.indicators["turnover_stability"],
			"turnover_trend":     card.indicators["turnover_trend"],
		},
		"筹码集中": map[string]interface{}{
			"shareholders_reduction": card.indicators["shareholders_reduction"],
			"locked_chips_ratio":     card.indicators["locked_chips_ratio"],
			"gini_change":            card.indicators["gini_change"],
		},
		"watch_points": watchPoints,
	}
}

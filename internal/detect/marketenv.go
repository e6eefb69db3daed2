package detect

import (
	"fmt"
	"strings"

	"fundambush/internal/contracts"
	"fundambush/pkg/formulas"
	"fundambush/pkg/logger"
)

// ModuleMarketEnvironment is the registry name of the market-environment module.
const ModuleMarketEnvironment = "market_environment"

// policySupportedIndustries are the industries currently favored by policy;
// the keyword match is the estimation fallback when no favorability figure
// is supplied.
var policySupportedIndustries = []string{"新能源", "半导体", "人工智能", "医药", "军工", "数字经济"}

// MarketEnvironmentModule scores how hospitable the surrounding market is
// to an ambush playing out: regime, sentiment, aggregate and industry fund
// flow, style fit, sector rotation, policy backdrop and valuation safety.
type MarketEnvironmentModule struct {
	base
}

// NewMarketEnvironmentModule creates the module with its default configuration.
func NewMarketEnvironmentModule(log *logger.Logger) *MarketEnvironmentModule {
	params := map[string]float64{
		// aggregate flow bands, 100M CNY
		"market_flow_low":    -200,
		"market_flow_high":   500,
		"industry_flow_low":  -20,
		"industry_flow_high": 50,

		"sentiment_low":  30,
		"sentiment_high": 70,

		// industry-minus-index relative strength band, percentage points
		"relative_strength_low":  -2,
		"relative_strength_high": 3,

		"diffusion_low":  0.3,
		"diffusion_high": 0.8,

		"flow_share_low":  0.02,
		"flow_share_high": 0.15,
	}
	weights := map[string]float64{
		"market_regime":     1.3,
		"style_match":       1.2,
		"rotation_position": 1.2,
		"industry_flow":     1.1,
	}
	return &MarketEnvironmentModule{base: newBase(ModuleMarketEnvironment, 0.15, params, weights, log)}
}

// Analyze scores the market context; it needs no per-stock bar columns but
// cannot run without the context itself.
func (m *MarketEnvironmentModule) Analyze(bars contracts.BarSeries, meta *contracts.StockMeta, mkt *contracts.MarketContext, extras *contracts.Extras) (*contracts.AnalysisResult, error) {
	if mkt == nil {
		return nil, &contracts.MissingDataError{Module: m.name, Fields: []string{"market_context"}}
	}

	card := newScorecard()

	m.analyzeRegime(card, mkt)
	m.analyzeFlows(card, mkt, extras)
	styleMatch := m.analyzeStyleMatch(card, meta, extras)
	rotation := m.analyzeRotation(card, mkt, extras)
	m.analyzePolicy(card, meta, mkt, extras)
	m.analyzeValuation(card, meta, extras)

	score := card.weightedScore(m.indicatorWeights)
	description := m.describe(score, mkt.Regime, rotation)
	detail := m.detailInfo(card, mkt, styleMatch, rotation)

	m.log.WithFields(map[string]interface{}{
		"code":   meta.Code,
		"score":  score,
		"regime": string(mkt.Regime),
	}).Debug("market environment analysis completed")

	return m.result(card, description, detail, nil), nil
}

// analyzeRegime scores the regime itself plus the sentiment reading, where
// the expectation band shifts with the regime.
func (m *MarketEnvironmentModule) analyzeRegime(card *scorecard, mkt *contracts.MarketContext) {
	regimeScore := formulas.NeutralScore
	switch mkt.Regime {
	case contracts.RegimeBull:
		regimeScore = 80
	case contracts.RegimeShock:
		// Range-bound markets are where quiet accumulation is most visible.
		regimeScore = 65
	case contracts.RegimeBear:
		regimeScore = 30
	}
	card.add("market_regime", regimeScore, regimeScore)

	if mkt.SentimentIndex > 0 {
		card.add("market_sentiment", mkt.SentimentIndex,
			formulas.Normalize(mkt.SentimentIndex, m.param("sentiment_low", 30), m.param("sentiment_high", 70)))
	}

	relative := mkt.IndustryChangePct - mkt.IndexChangePct
	card.add("industry_relative_strength", relative,
		formulas.Normalize(relative, m.param("relative_strength_low", -2), m.param("relative_strength_high", 3)))
}

// analyzeFlows scores the aggregate market, industry and (when supplied)
// the stock's share of industry fund flow.
func (m *MarketEnvironmentModule) analyzeFlows(card *scorecard, mkt *contracts.MarketContext, extras *contracts.Extras) {
	card.add("market_fund_flow", mkt.MarketFundFlow,
		formulas.Normalize(mkt.MarketFundFlow, m.param("market_flow_low", -200), m.param("market_flow_high", 500)))
	card.add("industry_flow", mkt.IndustryFundFlow,
		formulas.Normalize(mkt.IndustryFundFlow, m.param("industry_flow_low", -20), m.param("industry_flow_high", 50)))

	if extras != nil && extras.IndustryFlowShare != nil {
		share := *extras.IndustryFlowShare
		card.add("industry_flow_share", share,
			formulas.Normalize(share, m.param("flow_share_low", 0.02), m.param("flow_share_high", 0.15)))
	}
}

// analyzeStyleMatch compares the market's favored style with the stock's
// own style, inferred from valuation ratios when not supplied directly.
func (m *MarketEnvironmentModule) analyzeStyleMatch(card *scorecard, meta *contracts.StockMeta, extras *contracts.Extras) string {
	var marketStyle, stockStyle contracts.MarketStyle
	if extras != nil {
		marketStyle, stockStyle = extras.MarketStyle, extras.StockStyle
	}
	if stockStyle == "" {
		stockStyle = inferStockStyle(meta)
	}
	if marketStyle == "" {
		card.add("style_match", 0, formulas.NeutralScore)
		return "unknown"
	}

	match := "mismatch"
	score := 30.0
	switch {
	case marketStyle == stockStyle:
		match, score = "match", 85
	case marketStyle == contracts.StyleBalanced || stockStyle == contracts.StyleBalanced:
		match, score = "partial", 60
	}
	card.add("style_match", score, score)
	return match
}

// inferStockStyle types the stock from its valuation ratios.
func inferStockStyle(meta *contracts.StockMeta) contracts.MarketStyle {
	switch {
	case meta.PERatio > 30 || meta.PBRatio > 4:
		return contracts.StyleGrowth
	case meta.PERatio > 0 && meta.PERatio < 15 && meta.PBRatio > 0 && meta.PBRatio < 1.5:
		return contracts.StyleValue
	default:
		return contracts.StyleBalanced
	}
}

// analyzeRotation locates the stock's sector in the rotation cycle, from a
// supplied position or estimated from industry momentum and the regime.
func (m *MarketEnvironmentModule) analyzeRotation(card *scorecard, mkt *contracts.MarketContext, extras *contracts.Extras) contracts.RotationPosition {
	position := contracts.RotationPosition("")
	if extras != nil {
		position = extras.RotationPosition
	}
	if position == "" {
		switch {
		case mkt.IndustryChangePct > 1 && mkt.Regime == contracts.RegimeBull:
			position = contracts.RotationAccelerating
		case mkt.IndustryChangePct > 0:
			position = contracts.RotationStarting
		case mkt.IndustryChangePct < -1:
			position = contracts.RotationDeclining
		default:
			position = contracts.RotationNeutral
		}
	}

	scores := map[contracts.RotationPosition]float64{
		contracts.RotationStarting:     75,
		contracts.RotationAccelerating: 85,
		contracts.RotationPeaking:      40,
		contracts.RotationDeclining:    20,
		contracts.RotationNeutral:      50,
	}
	score, ok := scores[position]
	if !ok {
		position, score = contracts.RotationNeutral, formulas.NeutralScore
	}
	card.add("rotation_position", score, score)

	diffusion := contracts.Unavailable()
	if extras != nil && extras.SectorDiffusion != nil {
		diffusion = contracts.Measured(*extras.SectorDiffusion)
	} else {
		diffusion = contracts.Estimated(formulas.Clamp(0.5+mkt.IndustryChangePct/10, 0, 1))
	}
	card.add("sector_diffusion", diffusion.Value,
		formulas.Normalize(diffusion.Value, m.param("diffusion_low", 0.3), m.param("diffusion_high", 0.8)))

	return position
}

// analyzePolicy scores the policy backdrop, from a supplied favorability
// figure or an industry keyword match.
func (m *MarketEnvironmentModule) analyzePolicy(card *scorecard, meta *contracts.StockMeta, mkt *contracts.MarketContext, extras *contracts.Extras) {
	if extras != nil && extras.PolicyDirection != nil {
		v := formulas.Clamp(*extras.PolicyDirection, 0, 100)
		card.add("policy_favorability", v, v)
		return
	}

	score := formulas.NeutralScore
	for _, keyword := range policySupportedIndustries {
		if strings.Contains(meta.Industry, keyword) {
			score = 70
			if mkt.Regime == contracts.RegimeBull {
				score = 80
			}
			break
		}
	}
	card.add("policy_favorability", score, score)
}

// analyzeValuation scores valuation safety: cheaper entries leave more room
// for the ambush to pay off.
func (m *MarketEnvironmentModule) analyzeValuation(card *scorecard, meta *contracts.StockMeta, extras *contracts.Extras) {
	if extras != nil && extras.ValuationPercentile != nil {
		pct := *extras.ValuationPercentile
		// Inverted band: a low historical percentile is the safe end.
		card.add("valuation_safety", pct, formulas.Normalize(pct, 0.9, 0.1))
		return
	}

	score := formulas.NeutralScore
	switch {
	case meta.PERatio <= 0:
		score = 35 // loss-making
	case meta.PERatio < 20 && meta.PBRatio < 2:
		score = 75
	case meta.PERatio > 60 || meta.PBRatio > 8:
		score = 20
	}
	card.add("valuation_safety", score, score)
}

func (m *MarketEnvironmentModule) describe(score float64, regime contracts.Regime, rotation contracts.RotationPosition) string {
	regimeLabels := map[contracts.Regime]string{
		contracts.RegimeBull:  "牛市",
		contracts.RegimeBear:  "熊市",
		contracts.RegimeShock: "震荡市",
	}
	rotationLabels := map[contracts.RotationPosition]string{
		contracts.RotationStarting:     "板块轮动启动",
		contracts.RotationAccelerating: "板块轮动加速",
		contracts.RotationPeaking:      "板块轮动见顶",
		contracts.RotationDeclining:    "板块轮动退潮",
		contracts.RotationNeutral:      "板块轮动平稳",
	}
	desc := fmt.Sprintf("市场环境配合度%s（%.1f分）", tierLabel(score), score)
	if label, ok := regimeLabels[regime]; ok {
		desc += "，当前为" + label
	}
	if label, ok := rotationLabels[rotation]; ok {
		desc += "，" + label
	}
	return desc
}

func (m *MarketEnvironmentModule) detailInfo(card *scorecard, mkt *contracts.MarketContext, styleMatch string, rotation contracts.RotationPosition) map[string]interface{} {
	var watchPoints []string
	if card.scores["industry_flow"] >= 70 {
		watchPoints = append(watchPoints, "行业资金净流入，关注板块联动")
	}
	if card.scores["rotation_position"] >= 75 {
		watchPoints = append(watchPoints, "板块轮动位置有利，留意轮动节奏变化")
	}
	if card.scores["valuation_safety"] <= 30 {
		watchPoints = append(watchPoints, "估值偏高，注意安全边际")
	}

	return map[string]interface{}{
		"市场状态": map[string]interface{}{
			"regime":    string(mkt.Regime),
			"sentiment": card.indicators["market_sentiment"],
		},
		"资金面": map[string]interface{}{
			"market_fund_flow":    card.indicators["market_fund_flow"],
			"industry_flow":       card.indicators["industry_flow"],
			"industry_flow_share": card.indicators["industry_flow_share"],
		},
		"style_match":       styleMatch,
		"rotation_position": string(rotation),
		"watch_points":      watchPoints,
	}
}

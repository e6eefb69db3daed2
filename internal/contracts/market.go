package contracts

import "time"

// Regime tags the prevailing market state.
type Regime string

const (
	RegimeBull  Regime = "bull"
	RegimeBear  Regime = "bear"
	RegimeShock Regime = "shock"
)

// MarketContext is a dated snapshot of macro and sector state, immutable
// per analysis run.
type MarketContext struct {
	Date   time.Time `json:"date"`
	Regime Regime    `json:"regime"`

	IndexChangePct    float64 `json:"index_change_pct"`
	IndustryChangePct float64 `json:"industry_change_pct"`

	// Flows in 100M CNY.
	MarketFundFlow   float64 `json:"market_fund_flow"`
	IndustryFundFlow float64 `json:"industry_fund_flow"`
	NorthboundFlow   float64 `json:"northbound_flow"`

	// TotalMarketCap is the aggregate market cap in 100M CNY, used to scale
	// the northbound flow onto a single stock. Zero when unknown.
	TotalMarketCap float64 `json:"total_market_cap,omitempty"`

	TurnoverRate float64 `json:"turnover_rate"`

	// SentimentIndex lies in [0,100]; 50 is neutral.
	SentimentIndex float64 `json:"sentiment_index"`

	// Optional valuation stats for the whole market.
	MarketPE float64 `json:"market_pe,omitempty"`
	MarketPB float64 `json:"market_pb,omitempty"`
}

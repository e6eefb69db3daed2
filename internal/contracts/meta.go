package contracts

import "time"

// CapBucket classifies a stock by free-float market cap, in units of 100M
// CNY: small below 50, mid 50 to 200, large at or above 200.
type CapBucket string

const (
	SmallCap CapBucket = "small_cap"
	MidCap   CapBucket = "mid_cap"
	LargeCap CapBucket = "large_cap"
)

// StockMeta is the immutable per-run metadata snapshot for the analyzed
// stock. It is supplied and owned by the caller.
type StockMeta struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Industry string `json:"industry"`

	// MarketCap is the free-float market cap, TotalCap the full market cap,
	// both in 100M CNY.
	MarketCap float64 `json:"market_cap"`
	TotalCap  float64 `json:"total_cap"`
	PERatio   float64 `json:"pe_ratio"`
	PBRatio   float64 `json:"pb_ratio"`

	FloatShares float64 `json:"float_shares"`
	TotalShares float64 `json:"total_shares"`

	ListingDate time.Time `json:"listing_date"`
}

// Bucket returns the market-cap bucket used by weight rules and flow
// thresholds.
func (m *StockMeta) Bucket() CapBucket {
	switch {
	case m.MarketCap < 50:
		return SmallCap
	case m.MarketCap < 200:
		return MidCap
	default:
		return LargeCap
	}
}

package contracts

import (
	"github.com/tidwall/gjson"
)

// MarketStyle tags which style of stock the market currently favors.
type MarketStyle string

const (
	StyleGrowth   MarketStyle = "growth"
	StyleValue    MarketStyle = "value"
	StyleBalanced MarketStyle = "balanced"
)

// RotationPosition locates the stock's sector inside the rotation cycle.
type RotationPosition string

const (
	RotationStarting     RotationPosition = "starting"
	RotationAccelerating RotationPosition = "accelerating"
	RotationPeaking      RotationPosition = "peaking"
	RotationDeclining    RotationPosition = "declining"
	RotationNeutral      RotationPosition = "neutral"
)

// PatternVector is one entry of a historical pattern library or a peer
// stock's feature vector: the three features the similarity match compares.
type PatternVector struct {
	NetOrderRatio float64 `json:"net_order_ratio"`
	PriceReturn   float64 `json:"price_return"`
	VolumeRatio   float64 `json:"volume_ratio"`
	// Outcome is the historical follow-through score of the pattern, 0-100.
	Outcome float64 `json:"outcome"`
}

// Extras is the free-form auxiliary channel: optional datasets several
// modules consume opportunistically when the caller supplies them. A nil
// Extras (or any nil member) simply routes the module onto its fallback
// estimation path.
type Extras struct {
	// Market environment
	MarketStyle         MarketStyle      `json:"market_style,omitempty"`
	StockStyle          MarketStyle      `json:"stock_style,omitempty"`
	SectorDiffusion     *float64         `json:"sector_diffusion,omitempty"` // share of industry constituents advancing, 0-1
	RotationPosition    RotationPosition `json:"rotation_position,omitempty"`
	PolicyDirection     *float64         `json:"policy_direction,omitempty"`     // favorability 0-100
	ValuationPercentile *float64         `json:"valuation_percentile,omitempty"` // 0-1, lower is cheaper
	IndustryFlowShare   *float64         `json:"industry_flow_share,omitempty"`  // stock's share of industry fund flow, 0-1

	// Main force
	PatternLibrary   []PatternVector    `json:"pattern_library,omitempty"`
	PeerVectors      []PatternVector    `json:"peer_vectors,omitempty"`
	ForceTrackRecord map[string]float64 `json:"force_track_record,omitempty"` // force type -> historical success rate 0-1
}

// ParseExtras reads the auxiliary-dataset JSON document the caller may
// attach to a run. Every key is optional; unknown keys are ignored. gjson
// keeps the loosely-typed document from forcing a rigid schema onto
// callers.
func ParseExtras(doc []byte) *Extras {
	if len(doc) == 0 || !gjson.ValidBytes(doc) {
		return nil
	}
	root := gjson.ParseBytes(doc)
	extras := &Extras{}

	if v := root.Get("market_style"); v.Exists() {
		extras.MarketStyle = MarketStyle(v.String())
	}
	if v := root.Get("stock_style"); v.Exists() {
		extras.StockStyle = MarketStyle(v.String())
	}
	if v := root.Get("sector_diffusion"); v.Exists() {
		f := v.Float()
		extras.SectorDiffusion = &f
	}
	if v := root.Get("rotation_position"); v.Exists() {
		extras.RotationPosition = RotationPosition(v.String())
	}
	if v := root.Get("policy_direction"); v.Exists() {
		f := v.Float()
		extras.PolicyDirection = &f
	}
	if v := root.Get("valuation_percentile"); v.Exists() {
		f := v.Float()
		extras.ValuationPercentile = &f
	}
	if v := root.Get("industry_flow_share"); v.Exists() {
		f := v.Float()
		extras.IndustryFlowShare = &f
	}
	if v := root.Get("pattern_library"); v.IsArray() {
		extras.PatternLibrary = parseVectors(v)
	}
	if v := root.Get("peer_vectors"); v.IsArray() {
		extras.PeerVectors = parseVectors(v)
	}
	if v := root.Get("force_track_record"); v.IsObject() {
		extras.ForceTrackRecord = make(map[string]float64)
		v.ForEach(func(key, value gjson.Result) bool {
			extras.ForceTrackRecord[key.String()] = value.Float()
			return true
		})
	}

	return extras
}

func parseVectors(arr gjson.Result) []PatternVector {
	var out []PatternVector
	arr.ForEach(func(_, item gjson.Result) bool {
		out = append(out, PatternVector{
			NetOrderRatio: item.Get("net_order_ratio").Float(),
			PriceReturn:   item.Get("price_return").Float(),
			VolumeRatio:   item.Get("volume_ratio").Float(),
			Outcome:       item.Get("outcome").Float(),
		})
		return true
	})
	return out
}

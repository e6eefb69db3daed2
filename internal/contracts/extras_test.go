package contracts

import "testing"

func TestParseExtras(t *testing.T) {
	doc := []byte(`{
		"market_style": "growth",
		"sector_diffusion": 0.62,
		"rotation_position": "accelerating",
		"valuation_percentile": 0.18,
		"pattern_library": [
			{"net_order_ratio": 0.12, "price_return": 0.03, "volume_ratio": 1.4, "outcome": 78},
			{"net_order_ratio": -0.05, "price_return": -0.02, "volume_ratio": 0.8, "outcome": 35}
		],
		"force_track_record": {"institutional": 0.71, "northbound": 0.64},
		"some_future_key": true
	}`)

	extras := ParseExtras(doc)
	if extras == nil {
		t.Fatal("expected extras to parse")
	}

	if extras.MarketStyle != StyleGrowth {
		t.Errorf("market_style = %v", extras.MarketStyle)
	}
	if extras.SectorDiffusion == nil || *extras.SectorDiffusion != 0.62 {
		t.Errorf("sector_diffusion = %v", extras.SectorDiffusion)
	}
	if extras.RotationPosition != RotationAccelerating {
		t.Errorf("rotation_position = %v", extras.RotationPosition)
	}
	if extras.PolicyDirection != nil {
		t.Error("policy_direction was not in the document")
	}
	if len(extras.PatternLibrary) != 2 {
		t.Fatalf("expected 2 pattern vectors, got %d", len(extras.PatternLibrary))
	}
	if extras.PatternLibrary[0].Outcome != 78 {
		t.Errorf("pattern outcome = %v", extras.PatternLibrary[0].Outcome)
	}
	if extras.ForceTrackRecord["institutional"] != 0.71 {
		t.Errorf("track record = %v", extras.ForceTrackRecord)
	}
}

func TestParseExtrasInvalid(t *testing.T) {
	if got := ParseExtras(nil); got != nil {
		t.Error("nil document should yield nil extras")
	}
	if got := ParseExtras([]byte("{not json")); got != nil {
		t.Error("invalid document should yield nil extras")
	}
}

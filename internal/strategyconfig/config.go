package strategyconfig

// Document is the full strategy document: global decision knobs, the
// conditional weight-rule table and per-module overrides. It is loaded
// once per run and hashed for the report audit trail.
type Document struct {
	Meta    Meta              `yaml:"meta" json:"meta"`
	Global  Global            `yaml:"global" json:"global"`
	Weights WeightRules       `yaml:"weight_rules" json:"weight_rules"`
	Modules map[string]Module `yaml:"modules" json:"modules"`
}

// Meta identifies the strategy variant.
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Global holds the decision knobs that sit above any single module.
type Global struct {
	// PredictionThreshold is the final-score cut for an ambush call.
	PredictionThreshold float64 `yaml:"prediction_threshold" json:"prediction_threshold"`

	// VerificationPeriods maps horizon -> trading days to verify the call.
	VerificationPeriods map[string]int `yaml:"verification_periods" json:"verification_periods"`

	// StopLossLevels maps horizon -> fractional drawdown limit.
	StopLossLevels map[string]float64 `yaml:"stop_loss_levels" json:"stop_loss_levels"`
}

// WeightRules maps a condition key to the module weights it imposes.
// Condition keys are a market regime (bull/bear/shock), a cap bucket
// (small_cap/mid_cap/large_cap) or an industry key (industry_<name>).
// Matching rules apply in that order, each later match overriding the
// weights named by an earlier one.
type WeightRules map[string]map[string]float64

// Module is one module's override block; nil members keep defaults.
type Module struct {
	Weight           *float64           `yaml:"weight,omitempty" json:"weight,omitempty"`
	Enabled          *bool              `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Params           map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
	IndicatorWeights map[string]float64 `yaml:"indicator_weights,omitempty" json:"indicator_weights,omitempty"`
}

// Horizon keys used in Global maps.
const (
	HorizonShort  = "short_term"
	HorizonMedium = "medium_term"
	HorizonLong   = "long_term"
)

// Default returns the built-in strategy document used when no file is
// configured.
func Default() *Document {
	return &Document{
		Meta: Meta{StrategyID: "ambush-default", Version: "1"},
		Global: Global{
			PredictionThreshold: 75,
			VerificationPeriods: map[string]int{
				HorizonShort:  5,
				HorizonMedium: 10,
				HorizonLong:   20,
			},
			StopLossLevels: map[string]float64{
				HorizonShort:  0.05,
				HorizonMedium: 0.08,
				HorizonLong:   0.12,
			},
		},
		Weights: WeightRules{},
		Modules: map[string]Module{},
	}
}

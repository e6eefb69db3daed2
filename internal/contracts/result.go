package contracts

// Basis records how a derived quantity was obtained, making layered
// fallback chains (measured field → estimation formula → nothing) visible
// in the type instead of implicit in control flow.
type Basis string

const (
	BasisMeasured    Basis = "measured"
	BasisEstimated   Basis = "estimated"
	BasisUnavailable Basis = "unavailable"
)

// Measurement is a derived quantity tagged with its basis.
type Measurement struct {
	Value float64 `json:"value"`
	Basis Basis   `json:"basis"`
}

// Measured wraps a directly observed value.
func Measured(v float64) Measurement { return Measurement{Value: v, Basis: BasisMeasured} }

// Estimated wraps a value produced by a documented fallback formula.
func Estimated(v float64) Measurement { return Measurement{Value: v, Basis: BasisEstimated} }

// Unavailable marks a quantity that could not be measured or estimated.
func Unavailable() Measurement { return Measurement{Basis: BasisUnavailable} }

// Known reports whether the quantity carries a usable value.
func (m Measurement) Known() bool { return m.Basis != BasisUnavailable }

// ChartSeries is an opaque named series for presentation: per-date numeric
// values the core itself never consumes.
type ChartSeries struct {
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// AnalysisResult is one module's output for one run. It is created once
// per module per run and is immutable after construction.
type AnalysisResult struct {
	Module string  `json:"module"`
	Weight float64 `json:"weight"`

	// Indicators maps indicator name to its raw value; IndicatorScores maps
	// the same names (or derived composite names) to scores in [0,100].
	Indicators      map[string]float64 `json:"indicators"`
	IndicatorScores map[string]float64 `json:"indicator_scores"`

	Score float64 `json:"score"`

	Description string                  `json:"description"`
	DetailInfo  map[string]interface{}  `json:"detail_info"`
	ChartsData  map[string]*ChartSeries `json:"charts_data,omitempty"`
}

// Horizon is a holding period used to pair verification windows with
// stop-loss levels.
type Horizon string

const (
	HorizonShort  Horizon = "short_term"
	HorizonMedium Horizon = "medium_term"
	HorizonLong   Horizon = "long_term"
)

// EntryStrategy is the recommended position-building approach, tiered by
// final score.
type EntryStrategy string

const (
	EntryAggressive  EntryStrategy = "aggressive"  // score >= 85
	EntryStaged      EntryStrategy = "staged"      // score >= threshold
	EntryExploratory EntryStrategy = "exploratory" // below threshold
)

// FinalAnalysisResult is the analyzer's composite output. It is constructed
// once at the end of Analyzer.Analyze and read-only thereafter.
type FinalAnalysisResult struct {
	Code string `json:"code"`
	Name string `json:"name"`

	FinalScore        float64 `json:"final_score"`
	IsPredictedAmbush bool    `json:"is_predicted_ambush"`
	Threshold         float64 `json:"threshold"`

	ModuleResults map[string]*AnalysisResult `json:"module_results"`

	// FailedModules maps module name to the error text that zeroed it.
	FailedModules map[string]string `json:"failed_modules,omitempty"`

	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`

	VerificationPeriods map[Horizon]int     `json:"verification_periods"`
	StopLossLevels      map[Horizon]float64 `json:"stop_loss_levels"`

	VerificationHorizon Horizon       `json:"verification_horizon"`
	StopLoss            float64       `json:"stop_loss"`
	EntryStrategy       EntryStrategy `json:"entry_strategy"`
}

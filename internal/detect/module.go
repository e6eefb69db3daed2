// Package detect implements the five ambush-detection modules and the
// contract they share. Each module turns the three read-only inputs (bar
// table, stock metadata, market context) into raw indicators, [0,100]
// indicator scores and a weighted module score. Modules hold no run state:
// every Analyze call builds a fresh scorecard and returns the result by
// value, so a single module instance is safe to run concurrently.
package detect

import (
	"sort"

	"fundambush/internal/contracts"
	"fundambush/pkg/logger"
)

// Module is the capability every detection module implements. Weight and
// Enabled are configuration mutated only between runs; Analyze itself never
// touches them beyond reading.
type Module interface {
	Name() string
	Weight() float64
	SetWeight(w float64)
	Enabled() bool
	SetEnabled(enabled bool)

	// LoadConfig merges partial overrides into the module configuration,
	// leaving unspecified keys at their defaults.
	LoadConfig(o Overrides)

	// Analyze validates required input columns (returning a
	// *contracts.MissingDataError naming the missing ones), computes the
	// module's indicator families and returns the immutable result.
	Analyze(bars contracts.BarSeries, meta *contracts.StockMeta, mkt *contracts.MarketContext, extras *contracts.Extras) (*contracts.AnalysisResult, error)
}

// Overrides carries partial per-module configuration: nil/absent members
// keep the module defaults.
type Overrides struct {
	Weight           *float64
	Enabled          *bool
	Params           map[string]float64
	IndicatorWeights map[string]float64
}

// base carries the configuration state shared by all five modules.
type base struct {
	name    string
	weight  float64
	enabled bool

	// params are named numeric knobs (windows, reference bands); missing
	// keys fall back to the module's built-in default.
	params map[string]float64

	// indicatorWeights weight individual indicator scores inside
	// weightedScore; indicators without an entry default to weight 1.
	indicatorWeights map[string]float64

	log *logger.Logger
}

func newBase(name string, weight float64, params, indicatorWeights map[string]float64, log *logger.Logger) base {
	if params == nil {
		params = map[string]float64{}
	}
	if indicatorWeights == nil {
		indicatorWeights = map[string]float64{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return base{
		name:             name,
		weight:           weight,
		enabled:          true,
		params:           params,
		indicatorWeights: indicatorWeights,
		log:              log.Named(name),
	}
}

func (b *base) Name() string            { return b.name }
func (b *base) Weight() float64         { return b.weight }
func (b *base) SetWeight(w float64)     { b.weight = w }
func (b *base) Enabled() bool           { return b.enabled }
func (b *base) SetEnabled(enabled bool) { b.enabled = enabled }

// LoadConfig merges weight/enabled/parameter overrides.
func (b *base) LoadConfig(o Overrides) {
	if o.Weight != nil {
		b.weight = *o.Weight
	}
	if o.Enabled != nil {
		b.enabled = *o.Enabled
	}
	for k, v := range o.Params {
		b.params[k] = v
	}
	for k, v := range o.IndicatorWeights {
		b.indicatorWeights[k] = v
	}
}

// param reads a named knob with a default.
func (b *base) param(key string, def float64) float64 {
	if v, ok := b.params[key]; ok {
		return v
	}
	return def
}

// scorecard is the run-scoped accumulator a module fills during one Analyze
// call. It lives on the stack of the call and is never shared.
type scorecard struct {
	indicators map[string]float64
	scores     map[string]float64
}

func newScorecard() *scorecard {
	return &scorecard{
		indicators: make(map[string]float64),
		scores:     make(map[string]float64),
	}
}

// add records a raw indicator value together with its [0,100] score.
func (c *scorecard) add(name string, raw, score float64) {
	c.indicators[name] = raw
	c.scores[name] = clampScore(score)
}

// addScore records a composite score with no single raw value behind it.
func (c *scorecard) addScore(name string, score float64) {
	c.scores[name] = clampScore(score)
}

// note records a raw measurement other indicators are judged against; it
// carries no score of its own and never enters the weighted total.
func (c *scorecard) note(name string, raw float64) {
	c.indicators[name] = raw
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// weightedScore folds the indicator scores into the module score. With
// per-indicator weights configured, it is sum(score_i*w_i)/sum(w_i) over
// the indicators present in this run, unweighted indicators defaulting to
// weight 1; otherwise the arithmetic mean. No scores at all yields 0.
func (c *scorecard) weightedScore(weights map[string]float64) float64 {
	if len(c.scores) == 0 {
		return 0
	}

	var total, weightSum float64
	for name, score := range c.scores {
		w := 1.0
		if len(weights) > 0 {
			if configured, ok := weights[name]; ok {
				w = configured
			}
		}
		total += score * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}

// sortedScoreNames returns indicator names ordered by descending score,
// for deterministic description and watch-point generation.
func (c *scorecard) sortedScoreNames() []string {
	names := make([]string, 0, len(c.scores))
	for name := range c.scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if c.scores[names[i]] == c.scores[names[j]] {
			return names[i] < names[j]
		}
		return c.scores[names[i]] > c.scores[names[j]]
	})
	return names
}

// tierLabel maps a module score onto the qualitative tier used by the
// generated descriptions.
func tierLabel(score float64) string {
	switch {
	case score >= 85:
		return "非常明显"
	case score >= 75:
		return "明显"
	case score >= 60:
		return "中等"
	case score >= 45:
		return "轻微"
	default:
		return "不明显"
	}
}

// result assembles the immutable AnalysisResult from the scorecard.
func (b *base) result(card *scorecard, description string, detail map[string]interface{}, charts map[string]*contracts.ChartSeries) *contracts.AnalysisResult {
	return &contracts.AnalysisResult{
		Module:          b.name,
		Weight:          b.weight,
		Indicators:      card.indicators,
		IndicatorScores: card.scores,
		Score:           card.weightedScore(b.indicatorWeights),
		Description:     description,
		DetailInfo:      detail,
		ChartsData:      charts,
	}
}

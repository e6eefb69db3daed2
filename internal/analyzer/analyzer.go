package analyzer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"fundambush/internal/contracts"
	"fundambush/internal/detect"
	"fundambush/internal/strategyconfig"
	"fundambush/pkg/logger"
)

// Analyzer orchestrates one scoring run: it fans the prepared inputs out
// to every enabled module, isolates per-module failures, renormalizes the
// surviving weights and folds the module scores into the final report.
type Analyzer struct {
	mu sync.RWMutex

	modules  []detect.Module
	adjuster *WeightAdjuster

	threshold           float64
	verificationPeriods map[contracts.Horizon]int
	stopLossLevels      map[contracts.Horizon]float64

	strategyHash string

	log *logger.Logger
}

// New creates an analyzer with the five standard modules and the built-in
// strategy document.
func New(log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}
	a := &Analyzer{
		modules: []detect.Module{
			detect.NewFundFlowModule(log),
			detect.NewMainForceModule(log),
			detect.NewTechnicalPatternModule(log),
			detect.NewShareStructureModule(log),
			detect.NewMarketEnvironmentModule(log),
		},
		log: log.Named("analyzer"),
	}
	a.applyDocument(strategyconfig.Default())
	return a
}

// Register adds a custom module to the run set.
func (a *Analyzer) Register(m detect.Module) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.modules = append(a.modules, m)
}

// ApplyStrategy applies a validated strategy document: global knobs,
// weight rules and per-module overrides.
func (a *Analyzer) ApplyStrategy(doc *strategyconfig.Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyDocument(doc)
}

func (a *Analyzer) applyDocument(doc *strategyconfig.Document) {
	a.threshold = doc.Global.PredictionThreshold

	a.verificationPeriods = make(map[contracts.Horizon]int, len(doc.Global.VerificationPeriods))
	for horizon, days := range doc.Global.VerificationPeriods {
		a.verificationPeriods[contracts.Horizon(horizon)] = days
	}
	a.stopLossLevels = make(map[contracts.Horizon]float64, len(doc.Global.StopLossLevels))
	for horizon, level := range doc.Global.StopLossLevels {
		a.stopLossLevels[contracts.Horizon(horizon)] = level
	}

	a.adjuster = NewWeightAdjuster(doc.Weights, a.log)

	for _, m := range a.modules {
		override, ok := doc.Modules[m.Name()]
		if !ok {
			continue
		}
		m.LoadConfig(detect.Overrides{
			Weight:           override.Weight,
			Enabled:          override.Enabled,
			Params:           override.Params,
			IndicatorWeights: override.IndicatorWeights,
		})
	}

	if hash, err := strategyconfig.Hash(doc); err == nil {
		a.strategyHash = hash
	}

	a.log.WithFields(map[string]interface{}{
		"threshold": a.threshold,
		"hash":      a.strategyHash,
	}).Info("strategy document applied")
}

// LoadConfig reads a JSON strategy document from disk. A malformed or
// invalid document is logged and the current configuration kept.
func (a *Analyzer) LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		a.log.WithError(err).WithField("path", path).Warn("strategy config unreadable, keeping current")
		return err
	}
	doc, err := strategyconfig.ParseJSON(data)
	if err != nil {
		a.log.WithError(err).WithField("path", path).Warn("strategy config invalid, keeping current")
		return err
	}
	a.ApplyStrategy(doc)
	return nil
}

// SaveConfig writes the current module configuration as a JSON strategy
// document.
func (a *Analyzer) SaveConfig(path string) error {
	a.mu.RLock()
	doc := a.snapshotDocument()
	a.mu.RUnlock()

	data, err := strategyconfig.MarshalJSON(doc)
	if err != nil {
		return fmt.Errorf("marshal strategy config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (a *Analyzer) snapshotDocument() *strategyconfig.Document {
	doc := strategyconfig.Default()
	doc.Global.PredictionThreshold = a.threshold
	for horizon, days := range a.verificationPeriods {
		doc.Global.VerificationPeriods[string(horizon)] = days
	}
	for horizon, level := range a.stopLossLevels {
		doc.Global.StopLossLevels[string(horizon)] = level
	}
	for _, m := range a.modules {
		w := m.Weight()
		enabled := m.Enabled()
		doc.Modules[m.Name()] = strategyconfig.Module{Weight: &w, Enabled: &enabled}
	}
	return doc
}

// StrategyHash returns the hash of the applied strategy document, for the
// report audit trail.
func (a *Analyzer) StrategyHash() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.strategyHash
}

// Threshold returns the active prediction threshold.
func (a *Analyzer) Threshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.threshold
}

// Analyze runs every enabled module over the prepared inputs and composes
// the final report. A module failure zeroes that module and excludes its
// weight; the run only fails outright when the inputs are unusable as a
// whole.
func (a *Analyzer) Analyze(ctx context.Context, bars contracts.BarSeries, meta *contracts.StockMeta, mkt *contracts.MarketContext, extras *contracts.Extras) (*contracts.FinalAnalysisResult, error) {
	if meta == nil || meta.Code == "" {
		return nil, fmt.Errorf("analyze: stock metadata is required")
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	baseWeights := make(map[string]float64, len(a.modules))
	for _, m := range a.modules {
		if m.Enabled() {
			baseWeights[m.Name()] = m.Weight()
		}
	}
	weights := a.adjuster.Adjust(baseWeights, meta, mkt)

	results := make(map[string]*contracts.AnalysisResult, len(a.modules))
	failed := make(map[string]string)

	for _, m := range a.modules {
		if !m.Enabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := m.Analyze(bars, meta, mkt, extras)
		if err != nil {
			failed[m.Name()] = err.Error()
			a.log.WithError(err).WithFields(map[string]interface{}{
				"code":   meta.Code,
				"module": m.Name(),
			}).Warn("module failed, excluded from composite")
			continue
		}
		res.Weight = weights[m.Name()]
		results[m.Name()] = res
	}

	final := a.compose(meta, results, failed)

	a.log.WithFields(map[string]interface{}{
		"code":       meta.Code,
		"score":      final.FinalScore,
		"prediction": final.IsPredictedAmbush,
		"failed":     len(failed),
	}).Info("analysis run completed")

	return final, nil
}

// compose renormalizes the surviving weights and assembles the final report.
func (a *Analyzer) compose(meta *contracts.StockMeta, results map[string]*contracts.AnalysisResult, failed map[string]string) *contracts.FinalAnalysisResult {
	var totalWeight, weightedSum float64
	for _, res := range results {
		totalWeight += res.Weight
		weightedSum += res.Weight * res.Score
	}

	finalScore := 0.0
	if totalWeight > 0 {
		finalScore = weightedSum / totalWeight
	}

	horizon := a.pickHorizon(results)

	final := &contracts.FinalAnalysisResult{
		Code:              meta.Code,
		Name:              meta.Name,
		FinalScore:        finalScore,
		IsPredictedAmbush: finalScore >= a.threshold,
		Threshold:         a.threshold,
		ModuleResults:     results,
		FailedModules:     failed,

		VerificationPeriods: a.verificationPeriods,
		StopLossLevels:      a.stopLossLevels,
		VerificationHorizon: horizon,
		StopLoss:            a.stopLossLevels[horizon],
		EntryStrategy:       a.entryStrategy(finalScore),
	}
	final.Summary = a.summarize(final)
	final.Recommendation = a.recommend(final)
	return final
}

// pickHorizon maps the typed main force onto a verification horizon:
// institutions build slowly, northbound positions turn over on medium
// swings, retail-driven moves resolve fast.
func (a *Analyzer) pickHorizon(results map[string]*contracts.AnalysisResult) contracts.Horizon {
	mf, ok := results[detect.ModuleMainForce]
	if !ok {
		return contracts.HorizonMedium
	}
	force, _ := mf.DetailInfo["force_type"].(string)
	switch force {
	case detect.ForceInstitutional, detect.ForceIndustryCapital:
		return contracts.HorizonLong
	case detect.ForceRetail:
		return contracts.HorizonShort
	default:
		return contracts.HorizonMedium
	}
}

func (a *Analyzer) entryStrategy(score float64) contracts.EntryStrategy {
	switch {
	case score >= 85:
		return contracts.EntryAggressive
	case score >= a.threshold:
		return contracts.EntryStaged
	default:
		return contracts.EntryExploratory
	}
}

func (a *Analyzer) summarize(final *contracts.FinalAnalysisResult) string {
	verdict := "暂无明显潜伏迹象"
	if final.IsPredictedAmbush {
		verdict = "存在基金潜伏迹象"
	}
	summary := fmt.Sprintf("%s(%s)综合得分%.1f分，%s。", final.Name, final.Code, final.FinalScore, verdict)

	ranked := rankModulesByScore(final.ModuleResults)
	var strong []string
	for _, name := range ranked {
		if res := final.ModuleResults[name]; res.Score >= 70 {
			strong = append(strong, res.Description)
		}
	}
	if len(strong) > 0 {
		summary += strings.Join(strong, "；") + "。"
	}
	if len(ranked) >= 2 {
		weakest := final.ModuleResults[ranked[len(ranked)-1]]
		summary += fmt.Sprintf("短板在%s（%.1f分）。", weakest.Module, weakest.Score)
	}
	if len(final.FailedModules) > 0 {
		names := make([]string, 0, len(final.FailedModules))
		for name := range final.FailedModules {
			names = append(names, name)
		}
		sort.Strings(names)
		summary += fmt.Sprintf("（%s模块因数据不足未参与评分）", strings.Join(names, "、"))
	}
	return summary
}

func (a *Analyzer) recommend(final *contracts.FinalAnalysisResult) string {
	horizonLabels := map[contracts.Horizon]string{
		contracts.HorizonShort:  "短线",
		contracts.HorizonMedium: "中线",
		contracts.HorizonLong:   "长线",
	}
	days := final.VerificationPeriods[final.VerificationHorizon]

	var text string
	switch final.EntryStrategy {
	case contracts.EntryAggressive:
		text = fmt.Sprintf("信号强烈，可积极建仓；建议按%s周期验证（约%d个交易日），止损位%.0f%%。",
			horizonLabels[final.VerificationHorizon], days, final.StopLoss*100)
	case contracts.EntryStaged:
		text = fmt.Sprintf("信号明确，建议分批建仓；按%s周期验证（约%d个交易日），止损位%.0f%%。",
			horizonLabels[final.VerificationHorizon], days, final.StopLoss*100)
	default:
		text = fmt.Sprintf("信号不足，仅适合小仓位试探或继续观察；如试探，止损位%.0f%%。", final.StopLoss*100)
	}

	if points := watchPoints(final.ModuleResults); len(points) > 0 {
		text += "关注要点：" + strings.Join(points, "；") + "。"
	}
	return text
}

// watchPoints collects the watch points of every module scoring at least
// 70, strongest module first.
func watchPoints(results map[string]*contracts.AnalysisResult) []string {
	var out []string
	for _, name := range rankModulesByScore(results) {
		res := results[name]
		if res.Score < 70 {
			continue
		}
		if points, ok := res.DetailInfo["watch_points"].([]string); ok {
			out = append(out, points...)
		}
	}
	return out
}

// rankModulesByScore orders module names by descending score, names
// breaking ties.
func rankModulesByScore(results map[string]*contracts.AnalysisResult) []string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if results[names[i]].Score == results[names[j]].Score {
			return names[i] < names[j]
		}
		return results[names[i]].Score > results[names[j]].Score
	})
	return names
}

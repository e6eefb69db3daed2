package analyzer

import (
	"fmt"

	"fundambush/internal/contracts"
	"fundambush/internal/strategyconfig"
	"fundambush/pkg/logger"
)

// WeightAdjuster resolves the module weights for one run from the
// conditional rule table. Conditions are matched in a fixed precedence
// order: market regime first, then cap bucket, then industry, each later
// match overriding the module weights it names.
type WeightAdjuster struct {
	rules strategyconfig.WeightRules
	log   *logger.Logger
}

// NewWeightAdjuster creates the adjuster over a rule table; a nil table
// leaves every base weight untouched.
func NewWeightAdjuster(rules strategyconfig.WeightRules, log *logger.Logger) *WeightAdjuster {
	if rules == nil {
		rules = strategyconfig.WeightRules{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WeightAdjuster{rules: rules, log: log.Named("weights")}
}

// Adjust returns the effective per-module weights for this stock and
// market state. The base map is never mutated.
func (a *WeightAdjuster) Adjust(base map[string]float64, meta *contracts.StockMeta, mkt *contracts.MarketContext) map[string]float64 {
	out := make(map[string]float64, len(base))
	for name, w := range base {
		out[name] = w
	}

	for _, key := range conditionKeys(meta, mkt) {
		rule, ok := a.rules[key]
		if !ok {
			continue
		}
		for module, w := range rule {
			if _, known := out[module]; !known {
				a.log.WithField("rule", key).WithField("module", module).
					Warn("weight rule names an unregistered module, skipping")
				continue
			}
			out[module] = w
		}
		a.log.WithField("rule", key).Debug("weight rule applied")
	}

	return out
}

// conditionKeys lists the rule keys this run can match, in precedence order.
func conditionKeys(meta *contracts.StockMeta, mkt *contracts.MarketContext) []string {
	var keys []string
	if mkt != nil && mkt.Regime != "" {
		keys = append(keys, string(mkt.Regime))
	}
	if meta != nil {
		keys = append(keys, string(meta.Bucket()))
		if meta.Industry != "" {
			keys = append(keys, fmt.Sprintf("industry_%s", meta.Industry))
		}
	}
	return keys
}

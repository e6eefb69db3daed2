package strategyconfig

import (
	"fmt"
	"strings"
)

// ValidationError aborts the load; a bad strategy document never reaches
// the analyzer.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var knownHorizons = map[string]bool{
	HorizonShort:  true,
	HorizonMedium: true,
	HorizonLong:   true,
}

// Validate checks every constraint the analyzer relies on.
func Validate(doc *Document) error {
	if doc.Global.PredictionThreshold <= 0 || doc.Global.PredictionThreshold > 100 {
		return ValidationError{"global.prediction_threshold", "must be in (0, 100]"}
	}

	for horizon, days := range doc.Global.VerificationPeriods {
		if !knownHorizons[horizon] {
			return ValidationError{"global.verification_periods", "unknown horizon " + horizon}
		}
		if days <= 0 {
			return ValidationError{"global.verification_periods." + horizon, "must be > 0"}
		}
	}
	for horizon, level := range doc.Global.StopLossLevels {
		if !knownHorizons[horizon] {
			return ValidationError{"global.stop_loss_levels", "unknown horizon " + horizon}
		}
		if level <= 0 || level >= 1 {
			return ValidationError{"global.stop_loss_levels." + horizon, "must be in (0, 1)"}
		}
	}

	for key, weights := range doc.Weights {
		if key == "" {
			return ValidationError{"weight_rules", "empty condition key"}
		}
		for module, w := range weights {
			if w < 0 {
				return ValidationError{
					fmt.Sprintf("weight_rules.%s.%s", key, module),
					"weight must be >= 0",
				}
			}
		}
	}

	for name, mod := range doc.Modules {
		if strings.TrimSpace(name) == "" {
			return ValidationError{"modules", "empty module name"}
		}
		if mod.Weight != nil && *mod.Weight < 0 {
			return ValidationError{"modules." + name + ".weight", "must be >= 0"}
		}
		for param, v := range mod.IndicatorWeights {
			if v < 0 {
				return ValidationError{
					fmt.Sprintf("modules.%s.indicator_weights.%s", name, param),
					"must be >= 0",
				}
			}
		}
	}

	return nil
}

package risk

import (
	"time"

	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
	"github.com/gojosatorou999/jalscan-sih/internal/features"
)

// Rule engine thresholds. These are part of the deterministic fallback
// contract, not tunable configuration.
const (
	flashFloodSlopeCmPerHour = 50.0
	cautionDelta1hCm         = 30.0

	// RuleConfidence is the fixed confidence of every rule engine verdict.
	RuleConfidence = 0.70
)

// RuleEngine is the deterministic threshold classifier. It is always
// available and is invoked whenever the trained classifier is unavailable,
// errors or times out.
type RuleEngine struct {
	horizonHours int
}

// NewRuleEngine creates a rule engine asserting verdicts for the given horizon.
func NewRuleEngine(horizonHours int) *RuleEngine {
	return &RuleEngine{horizonHours: horizonHours}
}

// Evaluate classifies a feature vector with the priority-ordered rules:
//  1. slope_1h above 50 cm/h is a flash flood regardless of absolute level
//  2. level at or above the danger threshold is a flood risk
//  3. level at or above the alert threshold, or a 1h delta above 30 cm, is caution
//  4. everything else is safe
func (re *RuleEngine) Evaluate(fv *features.Vector, profile *datastore.SiteProfile) *Verdict {
	label := Safe
	switch {
	case fv.Slope1h > flashFloodSlopeCmPerHour:
		label = FlashFloodRisk
	case fv.WaterLevelCm >= profile.DangerThresholdCm:
		label = FloodRisk
	case fv.WaterLevelCm >= profile.AlertThresholdCm || fv.Delta1h > cautionDelta1hCm:
		label = Caution
	}

	return &Verdict{
		SiteID:       profile.SiteID,
		Label:        label,
		Confidence:   RuleConfidence,
		HorizonHours: re.horizonHours,
		Factors:      re.factors(fv, profile),
		Source:       SourceRules,
		EvaluatedAt:  evaluatedAtOrNow(fv.EvaluatedAt),
	}
}

// factors reports the threshold-relative quantities the rules actually
// consulted, mirroring the mandatory factor set of the classifier.
func (re *RuleEngine) factors(fv *features.Vector, profile *datastore.SiteProfile) []Factor {
	direction := func(v, baseline float64) string {
		if v >= baseline {
			return "above_baseline"
		}
		return "below_baseline"
	}
	return []Factor{
		{Name: features.FeatWaterLevelCm, Value: fv.WaterLevelCm, Direction: direction(fv.WaterLevelCm, profile.AlertThresholdCm)},
		{Name: features.FeatPctOfDangerThreshold, Value: fv.PctOfDangerThreshold, Direction: direction(fv.PctOfDangerThreshold, 100)},
		{Name: features.FeatDelta1h, Value: fv.Delta1h, Direction: direction(fv.Delta1h, 0)},
		{Name: features.FeatSlope1h, Value: fv.Slope1h, Direction: direction(fv.Slope1h, 0)},
	}
}

// evaluatedAtOrNow guards against a zero evaluation time on synthetic vectors.
func evaluatedAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

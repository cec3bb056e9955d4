// Package risk classifies flood risk for a site from its feature vector.
// It contains the trained ensemble classifier, the deterministic rule engine
// and the fail-open policy that selects between them.
package risk

import (
	"encoding/json"
	"time"

	"github.com/gojosatorou999/jalscan-sih/internal/errors"
)

// Label is the closed set of risk classes.
type Label int

const (
	Safe Label = iota
	Caution
	FloodRisk
	FlashFloodRisk
)

// labelNames maps labels to their wire names.
var labelNames = [...]string{"SAFE", "CAUTION", "FLOOD_RISK", "FLASH_FLOOD_RISK"}

// String returns the wire name of the label.
func (l Label) String() string {
	if l < Safe || l > FlashFloodRisk {
		return "SAFE"
	}
	return labelNames[l]
}

// ParseLabel parses a wire name into a Label.
func ParseLabel(s string) (Label, error) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return Safe, errors.Newf("unknown risk label %q", s).
		Category(errors.CategoryValidation).
		Build()
}

// AtLeast reports whether the label is at or above the given severity.
func (l Label) AtLeast(other Label) bool {
	return l >= other
}

// MarshalJSON encodes the label as its wire name.
func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes the label from its wire name.
func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Factor is one ranked contributing factor on a verdict.
type Factor struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Direction string  `json:"direction"` // "above_baseline" or "below_baseline"
}

// Verdict is the classified risk for a site at one evaluation time, asserted
// for the configured forward-looking horizon.
type Verdict struct {
	SiteID       string    `json:"site_id"`
	Label        Label     `json:"label"`
	Confidence   float64   `json:"confidence"` // [0,1]
	HorizonHours int       `json:"horizon_hours"`
	Factors      []Factor  `json:"factors"`
	Source       string    `json:"source"` // "classifier" or "rules"
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// Sources a verdict can originate from.
const (
	SourceClassifier = "classifier"
	SourceRules      = "rules"
)

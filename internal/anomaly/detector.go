// Package anomaly fuses telemetry and visual signals into discrete anomaly
// events. Fusion is weight-additive: each triggered rule contributes its
// weight to a score capped at 1, and an event is emitted only when the
// fused score clears the emit threshold.
package anomaly

import (
	"io"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/features"
	"github.com/gojosatorou999/jalscan-sih/internal/logging"
	"github.com/gojosatorou999/jalscan-sih/internal/vision"
)

var (
	anomalyLogger   *slog.Logger
	anomalyLevelVar = new(slog.LevelVar)
)

func init() {
	anomalyLevelVar.Set(slog.LevelInfo)

	var err error
	anomalyLogger, _, err = logging.NewFileLogger("logs/anomaly.log", "anomaly", anomalyLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: anomalyLevelVar})
		anomalyLogger = slog.New(fbHandler).With("service", "anomaly")
	}
}

// Event types, named after the rule that dominated the fusion.
const (
	TypeRapidRise     = "rapid_rise"
	TypeRapidFall     = "rapid_fall"
	TypeColorChange   = "color_change"
	TypeFlowSpike     = "flow_spike"
	TypeCombinedAlert = "combined_alert"
)

// Severity levels of an emitted event.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Severity band boundaries on the fused score.
const (
	severityMediumFloor = 0.40
	severityHighFloor   = 0.70
)

// Signal is one triggered rule's contribution to an event.
type Signal struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Weight    float64 `json:"weight"`
}

// Event is an emitted anomaly. Events describe observed irregularity; they
// carry no risk label of their own.
type Event struct {
	EventID             string    `json:"event_id"`
	SiteID              string    `json:"site_id"`
	Type                string    `json:"type"`
	Score               float64   `json:"score"` // fused, capped at 1
	Severity            string    `json:"severity"`
	ContributingSignals []Signal  `json:"contributing_signals"`
	DetectedAt          time.Time `json:"detected_at"`
}

// Observation bundles one evaluation's inputs to the detector. Visual fields
// are optional; rules that need an absent input simply do not trigger.
type Observation struct {
	Features       *features.Vector
	Visual         *vision.Analysis // current visual state, may be nil
	PreviousVisual *vision.Analysis // prior visual state for change rules, may be nil
}

// Detector applies the fusion rules with configured weights and thresholds.
type Detector struct {
	weights    conf.AnomalyWeights
	thresholds conf.AnomalyThresholds
	emitFloor  float64
}

// NewDetector creates a detector from the anomaly settings.
func NewDetector(settings *conf.Settings) *Detector {
	return &Detector{
		weights:    settings.Anomaly.Weights,
		thresholds: settings.Anomaly.Thresholds,
		emitFloor:  settings.Anomaly.EmitThreshold,
	}
}

// Detect evaluates every fusion rule against the observation and emits an
// event when the fused score clears the emit threshold. A nil return means
// no anomaly. Detection is pure: the same observation always yields the
// same outcome (modulo the generated event ID and timestamp).
func (d *Detector) Detect(siteID string, obs *Observation) *Event {
	if obs == nil || obs.Features == nil {
		return nil
	}

	signals := d.evaluate(obs)
	if len(signals) == 0 {
		return nil
	}

	var score float64
	for _, s := range signals {
		score += s.Weight
	}
	score = math.Min(1, score)

	if score <= d.emitFloor {
		anomalyLogger.Debug("fused score below emit threshold",
			"site_id", siteID,
			"score", score,
			"signals", len(signals))
		return nil
	}

	event := &Event{
		EventID:             uuid.New().String(),
		SiteID:              siteID,
		Type:                eventType(signals),
		Score:               score,
		Severity:            severityFor(score),
		ContributingSignals: signals,
		DetectedAt:          time.Now().UTC(),
	}

	anomalyLogger.Info("anomaly detected",
		"site_id", siteID,
		"event_id", event.EventID,
		"type", event.Type,
		"score", event.Score,
		"severity", event.Severity)
	return event
}

// evaluate runs the individual rules and collects the triggered signals.
func (d *Detector) evaluate(obs *Observation) []Signal {
	fv := obs.Features
	var signals []Signal

	if fv.Delta1h > d.thresholds.RiseDelta1h || fv.Delta3h > d.thresholds.RiseDelta3h {
		value, threshold := fv.Delta1h, d.thresholds.RiseDelta1h
		if fv.Delta1h <= d.thresholds.RiseDelta1h {
			value, threshold = fv.Delta3h, d.thresholds.RiseDelta3h
		}
		signals = append(signals, Signal{
			Name:      TypeRapidRise,
			Value:     value,
			Threshold: threshold,
			Weight:    d.weights.RapidRise,
		})
	}

	if fv.Delta1h < -d.thresholds.FallDelta1h {
		signals = append(signals, Signal{
			Name:      TypeRapidFall,
			Value:     fv.Delta1h,
			Threshold: -d.thresholds.FallDelta1h,
			Weight:    d.weights.RapidFall,
		})
	}

	if change, ok := colorIndexChange(obs.PreviousVisual, obs.Visual); ok &&
		math.Abs(change) > d.thresholds.ColorIndex {
		signals = append(signals, Signal{
			Name:      TypeColorChange,
			Value:     change,
			Threshold: d.thresholds.ColorIndex,
			Weight:    d.weights.ColorChange,
		})
	}

	if jump, ok := turbulenceJump(obs.PreviousVisual, obs.Visual); ok &&
		jump > d.thresholds.TurbulenceJump {
		signals = append(signals, Signal{
			Name:      TypeFlowSpike,
			Value:     jump,
			Threshold: d.thresholds.TurbulenceJump,
			Weight:    d.weights.FlowSpike,
		})
	}

	if combinedAlert(obs.Visual) {
		signals = append(signals, Signal{
			Name:      TypeCombinedAlert,
			Value:     1,
			Threshold: 1,
			Weight:    d.weights.CombinedAlert,
		})
	}

	return signals
}

// eventType names the event after the combined alert when it triggered,
// otherwise after the heaviest triggered rule.
func eventType(signals []Signal) string {
	for _, s := range signals {
		if s.Name == TypeCombinedAlert {
			return TypeCombinedAlert
		}
	}
	sorted := make([]Signal, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight > sorted[j].Weight
	})
	return sorted[0].Name
}

// severityFor maps the fused score to a severity band.
func severityFor(score float64) string {
	switch {
	case score > severityHighFloor:
		return SeverityHigh
	case score >= severityMediumFloor:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// colorIndexChange returns the color index delta between two analyses.
func colorIndexChange(prev, curr *vision.Analysis) (float64, bool) {
	if prev == nil || curr == nil || prev.Color == nil || curr.Color == nil {
		return 0, false
	}
	return curr.Color.Index - prev.Color.Index, true
}

// turbulenceJump returns the turbulence score increase between two analyses.
func turbulenceJump(prev, curr *vision.Analysis) (float64, bool) {
	if prev == nil || curr == nil || prev.Flow == nil || curr.Flow == nil {
		return 0, false
	}
	return curr.Flow.TurbulenceScore - prev.Flow.TurbulenceScore, true
}

// combinedAlert triggers on turbulent flow together with muddy water in the
// same analysis.
func combinedAlert(curr *vision.Analysis) bool {
	if curr == nil || curr.Flow == nil || curr.Color == nil {
		return false
	}
	return curr.Flow.Class == vision.FlowTurbulent && curr.Color.Class == "muddy"
}

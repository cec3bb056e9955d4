package features

import (
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/logging"
	"github.com/gojosatorou999/jalscan-sih/internal/weather"
)

// Package-level logger for feature extraction
var (
	featureLogger   *slog.Logger
	featureLevelVar = new(slog.LevelVar)
)

func init() {
	featureLevelVar.Set(slog.LevelInfo)

	var err error
	featureLogger, _, err = logging.NewFileLogger("logs/features.log", "features", featureLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: featureLevelVar})
		featureLogger = slog.New(fbHandler).With("service", "features")
	}
}

// Extractor derives feature vectors from reading history. It is a pure
// function over its inputs: no I/O beyond the provided reading slice, and
// deterministic for identical inputs.
type Extractor struct {
	settings conf.FeatureSettings
}

// NewExtractor creates a feature extractor with the given settings.
func NewExtractor(settings *conf.Settings) *Extractor {
	return &Extractor{settings: settings.Features}
}

// Extract derives the 24-field feature vector for one site at evaluation
// time t. Readings must belong to a single site and be ordered by timestamp;
// out-of-order input is sorted defensively since the vector depends on it.
// Missing history never fails: affected deltas default to 0 ("no change"),
// and the vector records them as degraded.
func (e *Extractor) Extract(readings []datastore.Reading, t time.Time, profile *datastore.SiteProfile, floodHistoryCount int64, wx weather.Observation) (*Vector, error) {
	if profile == nil {
		return nil, errors.NewStd("site profile is required")
	}
	if profile.AlertThresholdCm >= profile.DangerThresholdCm {
		return nil, errors.Newf("invalid profile for site %s: alert %.1f >= danger %.1f",
			profile.SiteID, profile.AlertThresholdCm, profile.DangerThresholdCm).
			Component("features").
			Category(errors.CategoryValidation).
			SiteContext(profile.SiteID).
			Build()
	}

	t = t.UTC()

	history := make([]datastore.Reading, 0, len(readings))
	for i := range readings {
		if !readings[i].Timestamp.After(t) {
			history = append(history, readings[i])
		}
	}
	if len(history) == 0 {
		return nil, errors.Newf("no readings at or before %s for site %s", t.Format(time.RFC3339), profile.SiteID).
			Component("features").
			Category(errors.CategoryInsufficientData).
			SiteContext(profile.SiteID).
			Build()
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})

	v := &Vector{EvaluatedAt: t}

	level := history[len(history)-1].WaterLevelCm
	v.WaterLevelCm = level
	v.PctOfAlertThreshold = 100 * level / profile.AlertThresholdCm
	v.PctOfDangerThreshold = 100 * level / profile.DangerThresholdCm

	// Deltas compare the level at t with the nearest reading at or before
	// t-delta within tolerance; absent data means "no change", not null.
	for _, window := range e.settings.WindowsHours {
		delta, ok := e.deltaAt(history, t, level, time.Duration(window)*time.Hour)
		name := deltaName(window)
		if !ok {
			v.Degraded = append(v.Degraded, name)
		}
		switch window {
		case 1:
			v.Delta1h = delta
		case 3:
			v.Delta3h = delta
		case 6:
			v.Delta6h = delta
		case 12:
			v.Delta12h = delta
		case 24:
			v.Delta24h = delta
		}
	}

	v.Slope1h = v.Delta1h // delta over one hour is already cm per hour

	// acceleration = slope_1h(t) - slope_1h(t-1h), each slope degrading to 0
	// when its endpoints are missing.
	prevSlope, ok := e.slopeAt(history, t.Add(-time.Hour))
	if !ok {
		v.Degraded = append(v.Degraded, FeatAcceleration)
	}
	v.Acceleration = v.Slope1h - prevSlope

	windowStart := t.Add(-24 * time.Hour)
	var levels []float64
	for i := range history {
		if !history[i].Timestamp.Before(windowStart) {
			levels = append(levels, history[i].WaterLevelCm)
		}
	}
	if len(levels) > 0 {
		minLevel, maxLevel, sum := levels[0], levels[0], 0.0
		for _, l := range levels {
			if l < minLevel {
				minLevel = l
			}
			if l > maxLevel {
				maxLevel = l
			}
			sum += l
		}
		mean := sum / float64(len(levels))
		v.RollingMean24h = mean
		v.RollingMax24h = maxLevel
		v.RollingMin24h = minLevel
		v.RollingStd24h = populationStd(levels, mean)
	}
	v.SubmissionCount24h = float64(len(levels))

	v.HourOfDay = float64(t.Hour())
	v.DayOfWeek = float64(t.Weekday())
	v.Month = float64(t.Month())
	for _, m := range e.settings.MonsoonMonths {
		if time.Month(m) == t.Month() {
			v.IsMonsoon = 1
			break
		}
	}

	v.SiteFloodHistoryCount = float64(floodHistoryCount)
	v.RiverTypeEncoded = EncodeRiverType(profile.RiverType)

	v.RainfallForecastMm = wx.RainfallForecastMm
	v.HumidityPct = wx.HumidityPct
	v.TemperatureC = wx.TemperatureC

	if len(v.Degraded) > 0 {
		featureLogger.Debug("feature vector degraded",
			"site_id", profile.SiteID,
			"evaluated_at", t,
			"degraded", v.Degraded)
	}

	return v, nil
}

// deltaAt returns level(t) minus the level at the nearest reading at or
// before t-window within tolerance. The second return value is false when no
// such reading exists and the delta defaulted to 0.
func (e *Extractor) deltaAt(history []datastore.Reading, t time.Time, level float64, window time.Duration) (float64, bool) {
	past, ok := levelAtOrBefore(history, t.Add(-window), e.settings.DeltaTolerance)
	if !ok {
		return 0, false
	}
	return level - past, true
}

// slopeAt computes the 1h slope ending at t, degrading to 0 when either
// endpoint is missing.
func (e *Extractor) slopeAt(history []datastore.Reading, t time.Time) (float64, bool) {
	end, ok := levelAtOrBefore(history, t, e.settings.DeltaTolerance)
	if !ok {
		return 0, false
	}
	start, ok := levelAtOrBefore(history, t.Add(-time.Hour), e.settings.DeltaTolerance)
	if !ok {
		return 0, false
	}
	return end - start, true
}

// levelAtOrBefore returns the level of the newest reading at or before t
// that is no older than t-tolerance.
func levelAtOrBefore(history []datastore.Reading, t time.Time, tolerance time.Duration) (float64, bool) {
	// history is sorted ascending; binary search for the first reading after t
	idx := sort.Search(len(history), func(i int) bool {
		return history[i].Timestamp.After(t)
	})
	if idx == 0 {
		return 0, false
	}
	candidate := history[idx-1]
	if tolerance > 0 && candidate.Timestamp.Before(t.Add(-tolerance)) {
		return 0, false
	}
	return candidate.WaterLevelCm, true
}

// deltaName returns the canonical feature name for a delta window.
func deltaName(windowHours int) string {
	switch windowHours {
	case 1:
		return FeatDelta1h
	case 3:
		return FeatDelta3h
	case 6:
		return FeatDelta6h
	case 12:
		return FeatDelta12h
	default:
		return FeatDelta24h
	}
}

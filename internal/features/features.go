// Package features turns a site's reading history into the fixed-shape
// feature vector consumed by the risk classifier and the rule engine.
package features

import (
	"math"
	"time"
)

// Canonical feature names, shared with the classifier artifact and the
// ranked factors on a verdict.
const (
	FeatWaterLevelCm          = "water_level_cm"
	FeatPctOfAlertThreshold   = "pct_of_alert_threshold"
	FeatPctOfDangerThreshold  = "pct_of_danger_threshold"
	FeatDelta1h               = "delta_1h"
	FeatDelta3h               = "delta_3h"
	FeatDelta6h               = "delta_6h"
	FeatDelta12h              = "delta_12h"
	FeatDelta24h              = "delta_24h"
	FeatSlope1h               = "slope_1h"
	FeatAcceleration          = "acceleration"
	FeatRollingMean24h        = "rolling_mean_24h"
	FeatRollingMax24h         = "rolling_max_24h"
	FeatRollingMin24h         = "rolling_min_24h"
	FeatRollingStd24h         = "rolling_std_24h"
	FeatHourOfDay             = "hour_of_day"
	FeatDayOfWeek             = "day_of_week"
	FeatMonth                 = "month"
	FeatIsMonsoon             = "is_monsoon"
	FeatSubmissionCount24h    = "submission_count_24h"
	FeatSiteFloodHistoryCount = "site_flood_history_count"
	FeatRiverTypeEncoded      = "river_type_encoded"
	FeatRainfallForecastMm    = "rainfall_forecast_mm"
	FeatHumidityPct           = "humidity_pct"
	FeatTemperatureC          = "temperature_c"
)

// Names lists all feature names in vector order.
var Names = []string{
	FeatWaterLevelCm,
	FeatPctOfAlertThreshold,
	FeatPctOfDangerThreshold,
	FeatDelta1h,
	FeatDelta3h,
	FeatDelta6h,
	FeatDelta12h,
	FeatDelta24h,
	FeatSlope1h,
	FeatAcceleration,
	FeatRollingMean24h,
	FeatRollingMax24h,
	FeatRollingMin24h,
	FeatRollingStd24h,
	FeatHourOfDay,
	FeatDayOfWeek,
	FeatMonth,
	FeatIsMonsoon,
	FeatSubmissionCount24h,
	FeatSiteFloodHistoryCount,
	FeatRiverTypeEncoded,
	FeatRainfallForecastMm,
	FeatHumidityPct,
	FeatTemperatureC,
}

// Count is the fixed width of a feature vector.
const Count = 24

// Vector is the fixed-shape feature vector for one site at one evaluation
// time. It is derived state, recomputed per inference, never stored.
type Vector struct {
	WaterLevelCm          float64
	PctOfAlertThreshold   float64
	PctOfDangerThreshold  float64
	Delta1h               float64
	Delta3h               float64
	Delta6h               float64
	Delta12h              float64
	Delta24h              float64
	Slope1h               float64 // cm per hour
	Acceleration          float64 // change of slope_1h over the last hour
	RollingMean24h        float64
	RollingMax24h         float64
	RollingMin24h         float64
	RollingStd24h         float64 // population std, 0 with fewer than 2 samples
	HourOfDay             float64
	DayOfWeek             float64
	Month                 float64
	IsMonsoon             float64 // 1 when month is in the monsoon set
	SubmissionCount24h    float64
	SiteFloodHistoryCount float64
	RiverTypeEncoded      float64 // major=0, minor=1, tributary=2
	RainfallForecastMm    float64 // weather stub sentinel
	HumidityPct           float64 // weather stub sentinel
	TemperatureC          float64 // weather stub sentinel

	// Degraded lists the features that fell back to their documented
	// defaults because history was missing. Advisory only.
	Degraded []string

	// EvaluatedAt is the evaluation time the vector was derived for.
	EvaluatedAt time.Time
}

// Values returns the vector in canonical order.
func (v *Vector) Values() [Count]float64 {
	return [Count]float64{
		v.WaterLevelCm,
		v.PctOfAlertThreshold,
		v.PctOfDangerThreshold,
		v.Delta1h,
		v.Delta3h,
		v.Delta6h,
		v.Delta12h,
		v.Delta24h,
		v.Slope1h,
		v.Acceleration,
		v.RollingMean24h,
		v.RollingMax24h,
		v.RollingMin24h,
		v.RollingStd24h,
		v.HourOfDay,
		v.DayOfWeek,
		v.Month,
		v.IsMonsoon,
		v.SubmissionCount24h,
		v.SiteFloodHistoryCount,
		v.RiverTypeEncoded,
		v.RainfallForecastMm,
		v.HumidityPct,
		v.TemperatureC,
	}
}

// Get returns a feature by canonical name, with ok=false for unknown names.
func (v *Vector) Get(name string) (float64, bool) {
	for i, n := range Names {
		if n == name {
			values := v.Values()
			return values[i], true
		}
	}
	return 0, false
}

// IsDegraded reports whether the named feature fell back to its default.
func (v *Vector) IsDegraded(name string) bool {
	for _, d := range v.Degraded {
		if d == name {
			return true
		}
	}
	return false
}

// EncodeRiverType maps a river type to its numeric encoding.
// Unknown types encode as minor.
func EncodeRiverType(riverType string) float64 {
	switch riverType {
	case "major":
		return 0
	case "minor":
		return 1
	case "tributary":
		return 2
	default:
		return 1
	}
}

// populationStd computes the population standard deviation of levels.
// Returns 0 with fewer than 2 samples.
func populationStd(levels []float64, mean float64) float64 {
	if len(levels) < 2 {
		return 0
	}
	var sum float64
	for _, l := range levels {
		d := l - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(levels)))
}

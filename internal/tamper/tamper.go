// Package tamper scores submitted readings for signs of manipulation:
// location mismatch, implausible submission timing, duplicates and values
// out of pattern. Scores are advisory; readings are never rejected here.
package tamper

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/logging"
)

var (
	tamperLogger   *slog.Logger
	tamperLevelVar = new(slog.LevelVar)
)

func init() {
	tamperLevelVar.Set(slog.LevelInfo)

	var err error
	tamperLogger, _, err = logging.NewFileLogger("logs/tamper.log", "tamper", tamperLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: tamperLevelVar})
		tamperLogger = slog.New(fbHandler).With("service", "tamper")
	}
}

// Detection types.
const (
	TypeLocationMismatch = "location_mismatch"
	TypeTimeAnomaly      = "time_anomaly"
	TypeDuplicate        = "duplicate_submission"
	TypePatternAnomaly   = "pattern_anomaly"
	TypeQualityAnomaly   = "quality_anomaly"
)

// Severity levels.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Tamper statuses written back onto readings.
const (
	StatusClean      = "clean"
	StatusSuspicious = "suspicious"
)

// Rule thresholds.
const (
	distanceCriticalM = 1000.0
	distanceHighM     = 500.0
	distanceMediumM   = 200.0

	maxHourlySubmissions = 2
	nightHourFrom        = 22
	nightHourTo          = 5

	duplicateWindow  = 30 * time.Minute
	duplicateLevelCm = 0.1

	patternDeviationCm = 200.0
	patternSampleSize  = 3

	qualityMinRating   = 3
	qualityMinNotesLen = 10
)

// SuspiciousScore is the score above which a reading is marked suspicious.
const SuspiciousScore = 0.5

// Engine runs the tamper rules against stored submission history.
type Engine struct {
	store   datastore.Interface
	enabled bool
}

// NewEngine creates a tamper engine over the given store.
func NewEngine(settings *conf.Settings, store datastore.Interface) *Engine {
	return &Engine{store: store, enabled: settings.Tamper.Enabled}
}

// Analyze scores one stored reading against its site profile and the user's
// submission history. Triggered detections are persisted and the reading's
// tamper status is updated. The returned score is the maximum confidence of
// any triggered rule.
func (e *Engine) Analyze(reading *datastore.Reading, profile *datastore.SiteProfile) (float64, error) {
	if !e.enabled {
		return 0, nil
	}
	if reading == nil || profile == nil {
		return 0, errors.Newf("tamper analysis requires a reading and a site profile").
			Component("tamper").
			Category(errors.CategoryValidation).
			Build()
	}

	var records []datastore.TamperRecord
	records = appendRecord(records, e.checkLocation(reading, profile))
	records = appendRecord(records, e.checkTiming(reading))
	records = appendRecord(records, e.checkDuplicate(reading))
	records = appendRecord(records, e.checkPattern(reading))
	records = appendRecord(records, e.checkQuality(reading))

	score := 0.0
	for _, r := range records {
		if r.ConfidenceScore > score {
			score = r.ConfidenceScore
		}
	}

	status := StatusClean
	if score > SuspiciousScore {
		status = StatusSuspicious
	}

	if len(records) > 0 {
		if err := e.store.SaveTamperRecords(records); err != nil {
			return score, err
		}
	}
	if err := e.store.UpdateTamperStatus(reading.ID, score, status); err != nil {
		return score, err
	}

	if status == StatusSuspicious {
		tamperLogger.Warn("suspicious reading",
			"reading_id", reading.ID,
			"site_id", reading.SiteID,
			"user_id", reading.UserID,
			"score", score,
			"detections", len(records))
	}
	return score, nil
}

func appendRecord(records []datastore.TamperRecord, r *datastore.TamperRecord) []datastore.TamperRecord {
	if r == nil {
		return records
	}
	return append(records, *r)
}

// checkLocation flags readings submitted far from the site's coordinates.
// Distance escalates the severity; an unverified location lowers the bar.
func (e *Engine) checkLocation(reading *datastore.Reading, profile *datastore.SiteProfile) *datastore.TamperRecord {
	if reading.Latitude == 0 && reading.Longitude == 0 {
		return nil
	}
	distance := haversineM(reading.Latitude, reading.Longitude, profile.Latitude, profile.Longitude)

	var severity string
	var confidence float64
	switch {
	case distance > distanceCriticalM:
		severity, confidence = SeverityCritical, 0.9
	case distance > distanceHighM:
		severity, confidence = SeverityHigh, 0.7
	case distance > distanceMediumM && !reading.Verified:
		severity, confidence = SeverityMedium, 0.5
	default:
		return nil
	}

	return &datastore.TamperRecord{
		ReadingID:       reading.ID,
		DetectionType:   TypeLocationMismatch,
		Severity:        severity,
		Description:     fmt.Sprintf("submitted %.0fm from site %s", distance, reading.SiteID),
		ConfidenceScore: confidence,
	}
}

// checkTiming flags burst submissions and odd-hour activity.
func (e *Engine) checkTiming(reading *datastore.Reading) *datastore.TamperRecord {
	since := reading.Timestamp.Add(-time.Hour)
	recent, err := e.store.GetReadingsByUser(reading.UserID, reading.SiteID, since)
	if err != nil {
		tamperLogger.Error("failed to load user history", "user_id", reading.UserID, "error", err.Error())
		recent = nil
	}

	// The reading under analysis is already stored, so exclude it.
	others := 0
	for _, r := range recent {
		if r.ID != reading.ID {
			others++
		}
	}
	if others > maxHourlySubmissions {
		return &datastore.TamperRecord{
			ReadingID:       reading.ID,
			DetectionType:   TypeTimeAnomaly,
			Severity:        SeverityHigh,
			Description:     fmt.Sprintf("%d submissions within one hour", others+1),
			ConfidenceScore: 0.8,
		}
	}

	hour := reading.Timestamp.UTC().Hour()
	if hour >= nightHourFrom || hour <= nightHourTo {
		return &datastore.TamperRecord{
			ReadingID:       reading.ID,
			DetectionType:   TypeTimeAnomaly,
			Severity:        SeverityMedium,
			Description:     fmt.Sprintf("submitted at hour %02d", hour),
			ConfidenceScore: 0.4,
		}
	}
	return nil
}

// checkDuplicate flags a near-identical level from the same user within the
// duplicate window.
func (e *Engine) checkDuplicate(reading *datastore.Reading) *datastore.TamperRecord {
	since := reading.Timestamp.Add(-duplicateWindow)
	recent, err := e.store.GetReadingsByUser(reading.UserID, reading.SiteID, since)
	if err != nil {
		return nil
	}
	for _, r := range recent {
		if r.ID == reading.ID {
			continue
		}
		if math.Abs(r.WaterLevelCm-reading.WaterLevelCm) < duplicateLevelCm {
			return &datastore.TamperRecord{
				ReadingID:       reading.ID,
				DetectionType:   TypeDuplicate,
				Severity:        SeverityMedium,
				Description:     fmt.Sprintf("matches reading %d within %s", r.ID, duplicateWindow),
				ConfidenceScore: 0.6,
			}
		}
	}
	return nil
}

// checkPattern flags levels that deviate wildly from the site's last few
// readings regardless of who submitted them.
func (e *Engine) checkPattern(reading *datastore.Reading) *datastore.TamperRecord {
	history, err := e.store.GetReadings(reading.SiteID, reading.Timestamp.Add(-24*time.Hour), reading.Timestamp)
	if err != nil {
		return nil
	}

	var levels []float64
	for i := len(history) - 1; i >= 0 && len(levels) < patternSampleSize; i-- {
		if history[i].ID == reading.ID {
			continue
		}
		levels = append(levels, history[i].WaterLevelCm)
	}
	if len(levels) < patternSampleSize {
		return nil
	}

	var mean float64
	for _, l := range levels {
		mean += l
	}
	mean /= float64(len(levels))

	deviation := math.Abs(reading.WaterLevelCm - mean)
	if deviation <= patternDeviationCm {
		return nil
	}
	return &datastore.TamperRecord{
		ReadingID:       reading.ID,
		DetectionType:   TypePatternAnomaly,
		Severity:        SeverityHigh,
		Description:     fmt.Sprintf("level deviates %.0fcm from recent mean %.0fcm", deviation, mean),
		ConfidenceScore: 0.7,
	}
}

// checkQuality flags readings with poor supporting data: a low quality
// rating, minimal or missing notes, or an unverified location.
func (e *Engine) checkQuality(reading *datastore.Reading) *datastore.TamperRecord {
	var issues []string
	if reading.QualityRating < qualityMinRating {
		issues = append(issues, "low quality rating")
	}
	if len(strings.TrimSpace(reading.Notes)) < qualityMinNotesLen {
		issues = append(issues, "minimal or missing notes")
	}
	if !reading.Verified {
		issues = append(issues, "location not verified")
	}
	if len(issues) == 0 {
		return nil
	}
	return &datastore.TamperRecord{
		ReadingID:       reading.ID,
		DetectionType:   TypeQualityAnomaly,
		Severity:        SeverityMedium,
		Description:     "quality issues: " + strings.Join(issues, ", "),
		ConfidenceScore: 0.5,
	}
}

// haversineM returns the great-circle distance between two points in meters.
func haversineM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

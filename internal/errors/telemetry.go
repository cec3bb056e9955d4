// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	telemetryReporter   TelemetryReporter
	telemetryReporterMu sync.RWMutex

	// hasActiveReporting short-circuits expensive component detection when
	// no reporter is installed.
	hasActiveReporting atomic.Bool
)

// SetTelemetryReporter installs the reporter used by Build. Passing nil
// disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	telemetryReporterMu.Lock()
	defer telemetryReporterMu.Unlock()
	telemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// reportToTelemetry forwards an enhanced error to the installed reporter.
func reportToTelemetry(ee *EnhancedError) {
	telemetryReporterMu.RLock()
	reporter := telemetryReporter
	telemetryReporterMu.RUnlock()

	if reporter == nil || !reporter.IsEnabled() {
		return
	}
	reporter.ReportError(ee)
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error())
	component := ee.GetComponent()

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))

		for key, value := range ee.GetContext() {
			scope.SetContext(key, map[string]any{"value": value})
		}

		level := getErrorLevel(ee.Category)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%s: %s", component, ee.Category),
			Value: message,
		}}

		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// getErrorLevel maps error categories to Sentry severity levels
func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryModelInit, CategoryModelLoad, CategoryModelUnavailable, CategoryDatabase:
		return sentry.LevelError
	case CategoryInferenceTimeout, CategoryTimeout, CategoryMQTTConnection, CategoryMQTTPublish:
		return sentry.LevelWarning
	case CategoryInsufficientData, CategoryValidation, CategoryCancellation:
		return sentry.LevelInfo
	default:
		return sentry.LevelWarning
	}
}

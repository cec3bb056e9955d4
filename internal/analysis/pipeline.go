// Package analysis orchestrates one evaluation cycle: snapshot readings,
// extract features, classify risk, fuse anomalies, persist and publish.
package analysis

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/gojosatorou999/jalscan-sih/internal/anomaly"
	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/features"
	"github.com/gojosatorou999/jalscan-sih/internal/logging"
	"github.com/gojosatorou999/jalscan-sih/internal/observability"
	"github.com/gojosatorou999/jalscan-sih/internal/publish"
	"github.com/gojosatorou999/jalscan-sih/internal/risk"
	"github.com/gojosatorou999/jalscan-sih/internal/vision"
	"github.com/gojosatorou999/jalscan-sih/internal/weather"
)

var (
	analysisLogger   *slog.Logger
	analysisLevelVar = new(slog.LevelVar)
)

func init() {
	analysisLevelVar.Set(slog.LevelInfo)

	var err error
	analysisLogger, _, err = logging.NewFileLogger("logs/analysis.log", "analysis", analysisLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: analysisLevelVar})
		analysisLogger = slog.New(fbHandler).With("service", "analysis")
	}
}

// Cache layout. Flood history counts change rarely; visual analyses are
// kept only to feed the anomaly change rules on the next cycle.
const (
	floodHistoryTTL  = 10 * time.Minute
	visualTTL        = 2 * time.Hour
	cacheSweepPeriod = 15 * time.Minute

	maxConcurrentSites = 4
)

// Result is everything one evaluation produced for a site.
type Result struct {
	SiteID   string            `json:"site_id"`
	Features *features.Vector  `json:"features"`
	Verdict  *risk.Verdict     `json:"verdict"`
	Visual   *vision.Analysis  `json:"visual,omitempty"`
	Event    *anomaly.Event    `json:"event,omitempty"`
}

// FrameSource supplies camera frames for a site at evaluation time. A nil
// source or empty result means telemetry-only evaluation.
type FrameSource interface {
	Frames(ctx context.Context, siteID string) (frames []*vision.Frame, reference *vision.Frame, err error)
}

// Pipeline wires the engine's stages together. All stages but persistence
// are side-effect free; the pipeline owns the single write of each verdict
// and event.
type Pipeline struct {
	settings  *conf.Settings
	store     datastore.Interface
	extractor *features.Extractor
	predictor risk.Predictor
	analyzer  *vision.Analyzer
	detector  *anomaly.Detector
	wx        weather.Provider
	publisher *publish.Publisher     // nil when MQTT is disabled
	metrics   *observability.Metrics // nil when telemetry is disabled
	frames    FrameSource            // nil when no camera is attached
	memory    *cache.Cache
}

// NewPipeline assembles a pipeline from its stages. publisher, metrics and
// frames may be nil.
func NewPipeline(settings *conf.Settings, store datastore.Interface, predictor risk.Predictor,
	wx weather.Provider, publisher *publish.Publisher, metrics *observability.Metrics,
	frames FrameSource) *Pipeline {
	return &Pipeline{
		settings:  settings,
		store:     store,
		extractor: features.NewExtractor(settings),
		predictor: predictor,
		analyzer:  vision.NewAnalyzer(settings),
		detector:  anomaly.NewDetector(settings),
		wx:        wx,
		publisher: publisher,
		metrics:   metrics,
		frames:    frames,
		memory:    cache.New(floodHistoryTTL, cacheSweepPeriod),
	}
}

// EvaluateSite runs one full evaluation for a site at the given time.
// A verdict is always produced for a site with readings; visual and anomaly
// stages degrade to absent results rather than failing the evaluation.
func (p *Pipeline) EvaluateSite(ctx context.Context, siteID string, at time.Time) (*Result, error) {
	profile, err := p.store.GetSiteProfile(siteID)
	if err != nil {
		return nil, err
	}

	// 25h of history covers the largest lookback window plus tolerance.
	readings, err := p.store.GetReadings(siteID, at.Add(-25*time.Hour), at)
	if err != nil {
		return nil, err
	}

	floodHistory := p.floodHistoryCount(siteID, at)

	obs, err := p.wx.Fetch(profile.Latitude, profile.Longitude)
	if err != nil {
		analysisLogger.Warn("weather fetch failed, using neutral observation",
			"site_id", siteID, "error", err.Error())
		obs = weather.Observation{HumidityPct: 50, TemperatureC: 25}
	}

	fv, err := p.extractor.Extract(readings, at, &profile, floodHistory, obs)
	if err != nil {
		return nil, err
	}

	verdict, err := p.predictWithMetrics(ctx, fv, &profile)
	if err != nil {
		return nil, err
	}

	visual := p.analyzeFrames(ctx, siteID)

	event := p.detector.Detect(siteID, &anomaly.Observation{
		Features:       fv,
		Visual:         visual,
		PreviousVisual: p.previousVisual(siteID),
	})
	if visual != nil {
		p.memory.Set(visualKey(siteID), visual, visualTTL)
	}

	if err := p.persist(verdict, event); err != nil {
		return nil, err
	}
	p.publishResults(ctx, verdict, event)

	analysisLogger.Info("site evaluated",
		"site_id", siteID,
		"label", verdict.Label.String(),
		"confidence", verdict.Confidence,
		"source", verdict.Source,
		"anomaly", event != nil)

	return &Result{
		SiteID:   siteID,
		Features: fv,
		Verdict:  verdict,
		Visual:   visual,
		Event:    event,
	}, nil
}

// EvaluateAll evaluates every active site concurrently. Per-site failures
// are logged and skipped; the cycle itself only fails when no site list can
// be obtained.
func (p *Pipeline) EvaluateAll(ctx context.Context, at time.Time) ([]*Result, error) {
	sites, err := p.store.GetActiveSites()
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSites)

	for i, site := range sites {
		i, site := i, site
		g.Go(func() error {
			result, err := p.EvaluateSite(gctx, site.SiteID, at)
			if err != nil {
				analysisLogger.Error("site evaluation failed",
					"site_id", site.SiteID, "error", err.Error())
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	evaluated := results[:0]
	for _, r := range results {
		if r != nil {
			evaluated = append(evaluated, r)
		}
	}
	return evaluated, nil
}

// predictWithMetrics wraps the predictor with the risk metric counters.
func (p *Pipeline) predictWithMetrics(ctx context.Context, fv *features.Vector, profile *datastore.SiteProfile) (*risk.Verdict, error) {
	start := time.Now()
	verdict, err := p.predictor.Predict(ctx, fv, profile)
	if err != nil {
		if p.metrics != nil {
			p.metrics.Risk.InferenceTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.Risk.InferenceDuration.Observe(time.Since(start).Seconds())
		p.metrics.Risk.InferenceTotal.WithLabelValues("ok").Inc()
		p.metrics.Risk.VerdictTotal.WithLabelValues(verdict.Label.String(), verdict.Source).Inc()
		if verdict.Source == risk.SourceRules {
			p.metrics.Risk.FallbackTotal.WithLabelValues("recoverable").Inc()
		}
	}
	return verdict, nil
}

// analyzeFrames runs the visual analyzer when a frame source is attached.
func (p *Pipeline) analyzeFrames(ctx context.Context, siteID string) *vision.Analysis {
	if p.frames == nil {
		return nil
	}

	frames, reference, err := p.frames.Frames(ctx, siteID)
	if err != nil {
		analysisLogger.Warn("frame source failed", "site_id", siteID, "error", err.Error())
		return nil
	}
	if len(frames) == 0 {
		return nil
	}

	start := time.Now()
	visual := p.analyzer.Analyze(ctx, siteID, frames, reference)
	if p.metrics != nil {
		p.metrics.Vision.AnalysisTotal.Inc()
		p.metrics.Vision.AnalysisDuration.Observe(time.Since(start).Seconds())
		for _, signal := range visual.Unavailable {
			p.metrics.Vision.SignalMissing.WithLabelValues(signal).Inc()
		}
		if visual.Flow != nil {
			p.metrics.Vision.FlowClassTotal.WithLabelValues(visual.Flow.Class).Inc()
		}
	}
	return visual
}

// persist writes the verdict and any emitted event exactly once.
func (p *Pipeline) persist(verdict *risk.Verdict, event *anomaly.Event) error {
	factors, err := json.Marshal(verdict.Factors)
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	record := &datastore.Verdict{
		SiteID:       verdict.SiteID,
		EvaluatedAt:  verdict.EvaluatedAt,
		Label:        verdict.Label.String(),
		Confidence:   verdict.Confidence,
		HorizonHours: verdict.HorizonHours,
		Source:       verdict.Source,
		Factors:      string(factors),
	}
	if err := p.timedStoreOp("save_verdict", func() error {
		return p.store.SaveVerdict(record)
	}); err != nil {
		return err
	}

	if event == nil {
		return nil
	}
	signals, err := json.Marshal(event.ContributingSignals)
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := p.timedStoreOp("save_anomaly_event", func() error {
		return p.store.SaveAnomalyEvent(&datastore.AnomalyEventRecord{
			EventID:    event.EventID,
			SiteID:     event.SiteID,
			Type:       event.Type,
			Score:      event.Score,
			Severity:   event.Severity,
			DetectedAt: event.DetectedAt,
			Signals:    string(signals),
		})
	}); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.Anomaly.EventTotal.WithLabelValues(event.Type, event.Severity).Inc()
		p.metrics.Anomaly.FusedScore.Observe(event.Score)
	}
	return nil
}

// timedStoreOp runs one store write and records its datastore metrics.
func (p *Pipeline) timedStoreOp(name string, op func() error) error {
	start := time.Now()
	err := op()
	if p.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		p.metrics.Datastore.OperationTotal.WithLabelValues(name, outcome).Inc()
		p.metrics.Datastore.OperationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return err
}

// publishResults delivers the verdict and event downstream, best-effort.
func (p *Pipeline) publishResults(ctx context.Context, verdict *risk.Verdict, event *anomaly.Event) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishVerdict(ctx, verdict); err != nil {
		analysisLogger.Warn("verdict publish failed",
			"site_id", verdict.SiteID, "error", err.Error())
	}
	if event != nil {
		if err := p.publisher.PublishEvent(ctx, event); err != nil {
			analysisLogger.Warn("event publish failed",
				"event_id", event.EventID, "error", err.Error())
		}
	}
}

// floodHistoryCount returns the cached count of prior flood verdicts.
func (p *Pipeline) floodHistoryCount(siteID string, before time.Time) int64 {
	key := "floodhist:" + siteID
	if cached, found := p.memory.Get(key); found {
		return cached.(int64)
	}
	count, err := p.store.CountFloodVerdicts(siteID, before)
	if err != nil {
		analysisLogger.Warn("flood history lookup failed", "site_id", siteID, "error", err.Error())
		return 0
	}
	p.memory.Set(key, count, floodHistoryTTL)
	return count
}

// previousVisual returns the last cached visual analysis for change rules.
func (p *Pipeline) previousVisual(siteID string) *vision.Analysis {
	if cached, found := p.memory.Get(visualKey(siteID)); found {
		return cached.(*vision.Analysis)
	}
	return nil
}

func visualKey(siteID string) string { return "visual:" + siteID }

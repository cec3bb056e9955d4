package vision

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/logging"
)

var (
	visionLogger   *slog.Logger
	visionLevelVar = new(slog.LevelVar)
)

func init() {
	visionLevelVar.Set(slog.LevelInfo)

	var err error
	visionLogger, _, err = logging.NewFileLogger("logs/vision.log", "vision", visionLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: visionLevelVar})
		visionLogger = slog.New(fbHandler).With("service", "vision")
	}
}

// Analysis fields that may be reported unavailable.
const (
	SignalColor   = "color"
	SignalFlow    = "flow"
	SignalErosion = "erosion"
)

// Analysis is the visual state derived from a frame sequence. Any field may
// be nil when its signal could not be computed; the missing signals are
// listed in Unavailable. An Analysis is advisory context, never a verdict.
type Analysis struct {
	SiteID      string         `json:"site_id"`
	Color       *ColorResult   `json:"color,omitempty"`
	Flow        *FlowResult    `json:"flow,omitempty"`
	Erosion     *ErosionResult `json:"erosion,omitempty"`
	Unavailable []string       `json:"unavailable,omitempty"`
	AnalyzedAt  time.Time      `json:"analyzed_at"`
}

// Analyzer derives water color, flow and erosion signals from camera frames.
// It never fails an analysis outright; whatever cannot be computed is marked
// unavailable and the rest is returned.
type Analyzer struct {
	settings *conf.VisionSettings
}

// NewAnalyzer creates an analyzer with the given vision settings.
func NewAnalyzer(settings *conf.Settings) *Analyzer {
	return &Analyzer{settings: &settings.Vision}
}

// Analyze processes a chronologically ordered frame sequence for a site.
// Color classifies the newest frame. Flow uses consecutive frame pairs when
// two or more frames exist, otherwise the single-frame texture heuristic.
// Erosion compares the newest frame against the reference frame when one is
// provided. Disjoint frame pairs are analyzed concurrently.
func (a *Analyzer) Analyze(ctx context.Context, siteID string, frames []*Frame, reference *Frame) *Analysis {
	analysis := &Analysis{
		SiteID:     siteID,
		AnalyzedAt: time.Now().UTC(),
	}

	if len(frames) == 0 {
		analysis.Unavailable = []string{SignalColor, SignalFlow, SignalErosion}
		visionLogger.Warn("no frames to analyze", "site_id", siteID)
		return analysis
	}

	newest := frames[len(frames)-1]

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		analysis.Color = classifyColor(newest, a.settings)
		return nil
	})

	var pairFlows []*FlowResult
	if len(frames) >= 2 {
		pairFlows = make([]*FlowResult, len(frames)-1)
		for i := 0; i < len(frames)-1; i++ {
			i := i
			g.Go(func() error {
				pairFlows[i] = estimateFlow(frames[i], frames[i+1], a.settings)
				return nil
			})
		}
	} else {
		g.Go(func() error {
			analysis.Flow = estimateFlowSingle(newest, a.settings)
			return nil
		})
	}

	if reference != nil {
		g.Go(func() error {
			if result, ok := compareErosion(reference, newest, a.settings); ok {
				analysis.Erosion = result
			}
			return nil
		})
	}

	// Workers only write disjoint fields and never return errors.
	_ = g.Wait()

	if pairFlows != nil {
		analysis.Flow = mergeFlows(pairFlows, a.settings)
	}

	if analysis.Color == nil {
		analysis.Unavailable = append(analysis.Unavailable, SignalColor)
	}
	if analysis.Flow == nil {
		analysis.Unavailable = append(analysis.Unavailable, SignalFlow)
	}
	if analysis.Erosion == nil {
		analysis.Unavailable = append(analysis.Unavailable, SignalErosion)
	}

	visionLogger.Debug("frame analysis complete",
		"site_id", siteID,
		"frames", len(frames),
		"unavailable", analysis.Unavailable)
	return analysis
}

// mergeFlows averages per-pair flow estimates into one sequence-level
// result, reclassified from the averaged magnitude.
func mergeFlows(flows []*FlowResult, settings *conf.VisionSettings) *FlowResult {
	var meanMag, coherence, turbulence, confidence float64
	singleFrame := true
	n := 0
	for _, f := range flows {
		if f == nil {
			continue
		}
		meanMag += f.MeanMagnitude
		coherence += f.DirectionCoherence
		turbulence += f.TurbulenceScore
		confidence += f.Confidence
		singleFrame = singleFrame && f.SingleFrame
		n++
	}
	if n == 0 {
		return nil
	}

	count := float64(n)
	meanMag /= count

	thresholds := settings.Flow
	if singleFrame {
		thresholds = settings.TextureFlow
	}

	return &FlowResult{
		Class:              classifyMagnitude(meanMag, thresholds),
		MeanMagnitude:      meanMag,
		DirectionCoherence: coherence / count,
		TurbulenceScore:    turbulence / count,
		SingleFrame:        singleFrame,
		Confidence:         confidence / count,
	}
}

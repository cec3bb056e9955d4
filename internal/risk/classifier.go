package risk

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/features"
	"github.com/gojosatorou999/jalscan-sih/internal/logging"
)

// Package-level logger for classifier events
var (
	riskLogger   *slog.Logger
	riskLevelVar = new(slog.LevelVar)
)

func init() {
	riskLevelVar.Set(slog.LevelInfo)

	var err error
	riskLogger, _, err = logging.NewFileLogger("logs/risk.log", "risk", riskLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: riskLevelVar})
		riskLogger = slog.New(fbHandler).With("service", "risk")
	}
}

// mandatoryFactors are always present on a classifier verdict, regardless of
// their importance-weighted rank.
var mandatoryFactors = []string{
	features.FeatWaterLevelCm,
	features.FeatPctOfDangerThreshold,
	features.FeatDelta1h,
	features.FeatSlope1h,
}

// modelSnapshot is an immutable, versioned view of a loaded artifact.
// Snapshots are shared across concurrent inferences without locking;
// replacing one is an atomic pointer swap, never an in-place mutation.
type modelSnapshot struct {
	artifact *Artifact
	version  string
	loadedAt time.Time
}

// Classifier wraps the trained ensemble into a pure inference function with
// a hard timeout. Any internal failure surfaces as a classifiable error so
// the caller can fail open to the rule engine; silent failure is forbidden.
type Classifier struct {
	settings conf.RiskSettings
	current  atomic.Pointer[modelSnapshot]
}

// NewClassifier creates a classifier and loads its initial artifact from the
// configured path, or the embedded default when the path is empty.
func NewClassifier(settings *conf.Settings) (*Classifier, error) {
	c := &Classifier{settings: settings.Risk}
	if err := c.Reload(settings.Risk.ArtifactPath); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload loads a new artifact and swaps it in atomically relative to
// in-flight inferences.
func (c *Classifier) Reload(path string) error {
	start := time.Now()
	artifact, err := LoadArtifact(path)
	if err != nil {
		return err
	}

	snapshot := &modelSnapshot{
		artifact: artifact,
		version:  artifact.Version,
		loadedAt: time.Now(),
	}
	c.current.Store(snapshot)

	riskLogger.Info("model artifact loaded",
		"version", artifact.Version,
		"trees", len(artifact.Trees),
		"load_ms", time.Since(start).Milliseconds())
	return nil
}

// Version returns the version of the currently loaded artifact.
func (c *Classifier) Version() string {
	snapshot := c.current.Load()
	if snapshot == nil {
		return ""
	}
	return snapshot.version
}

// Predict classifies a feature vector into (label, confidence, ranked
// factors). Confidence is the model's probability for the predicted class.
// The inference runs under the configured timeout; on timeout or
// cancellation the returned error carries the matching category.
func (c *Classifier) Predict(ctx context.Context, fv *features.Vector) (*Verdict, error) {
	snapshot := c.current.Load()
	if snapshot == nil {
		return nil, errors.Newf("no model artifact loaded").
			Component("risk").
			Category(errors.CategoryModelUnavailable).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, c.settings.InferenceTimeout)
	defer cancel()

	// The caller's deadline may already have passed; do not start work.
	if err := ctx.Err(); err != nil {
		return nil, c.interruptError(err, snapshot)
	}

	type result struct {
		verdict *Verdict
		err     error
	}
	done := make(chan result, 1)

	go func() {
		verdict, err := c.infer(snapshot, fv)
		done <- result{verdict: verdict, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, errors.New(r.err).
				Component("risk").
				Category(errors.CategoryInference).
				ModelContext(c.settings.ArtifactPath, snapshot.version).
				Build()
		}
		return r.verdict, nil
	case <-ctx.Done():
		return nil, c.interruptError(ctx.Err(), snapshot)
	}
}

// interruptError classifies an interrupted inference as a timeout or a
// caller cancellation. Only timeouts are recoverable via the rule engine.
func (c *Classifier) interruptError(cause error, snapshot *modelSnapshot) error {
	category := errors.CategoryInferenceTimeout
	if errors.Is(cause, context.Canceled) {
		category = errors.CategoryCancellation
	}
	return errors.Newf("inference did not complete: %w", cause).
		Component("risk").
		Category(category).
		ModelContext(c.settings.ArtifactPath, snapshot.version).
		Timing("inference", c.settings.InferenceTimeout).
		Build()
}

// infer runs the ensemble and assembles the verdict.
func (c *Classifier) infer(snapshot *modelSnapshot, fv *features.Vector) (*Verdict, error) {
	scores := snapshot.artifact.score(fv)
	probs := softmax(scores)

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}

	return &Verdict{
		Label:        Label(best),
		Confidence:   probs[best],
		HorizonHours: c.settings.HorizonHours,
		Factors:      c.rankFactors(snapshot.artifact, fv),
		Source:       SourceClassifier,
		EvaluatedAt:  evaluatedAtOrNow(fv.EvaluatedAt),
	}, nil
}

// rankFactors ranks features by importance-weighted deviation from their
// training-time mean and keeps the top-k, always including the mandatory set.
func (c *Classifier) rankFactors(artifact *Artifact, fv *features.Vector) []Factor {
	type scored struct {
		factor Factor
		weight float64
	}

	scoredFactors := make([]scored, 0, len(features.Names))
	for _, name := range features.Names {
		value, _ := fv.Get(name)
		mean := artifact.FeatureMeans[name]
		importance := artifact.Importances[name]

		direction := "above_baseline"
		if value < mean {
			direction = "below_baseline"
		}

		scoredFactors = append(scoredFactors, scored{
			factor: Factor{Name: name, Value: value, Direction: direction},
			weight: importance * math.Abs(value-mean),
		})
	}

	sort.SliceStable(scoredFactors, func(i, j int) bool {
		return scoredFactors[i].weight > scoredFactors[j].weight
	})

	topK := c.settings.TopFactors
	if topK > len(scoredFactors) {
		topK = len(scoredFactors)
	}

	picked := make([]Factor, 0, topK)
	seen := make(map[string]bool, topK)
	for _, sf := range scoredFactors[:topK] {
		picked = append(picked, sf.factor)
		seen[sf.factor.Name] = true
	}

	// Mandatory factors join the list even when outranked.
	for _, name := range mandatoryFactors {
		if seen[name] {
			continue
		}
		for _, sf := range scoredFactors {
			if sf.factor.Name == name {
				picked = append(picked, sf.factor)
				break
			}
		}
	}

	return picked
}

// softmax converts additive class scores to probabilities.
func softmax(scores []float64) []float64 {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

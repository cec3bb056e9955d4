package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/features"
)

func classifierTestSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Risk.InferenceTimeout = 5 * time.Second
	s.Risk.TopFactors = 6
	s.Risk.HorizonHours = 6
	return s
}

func TestClassifier_PredictSurgingVector(t *testing.T) {
	classifier, err := NewClassifier(classifierTestSettings())
	require.NoError(t, err)

	fv := &features.Vector{
		WaterLevelCm:          330,
		PctOfAlertThreshold:   165,
		PctOfDangerThreshold:  110,
		Delta1h:               70,
		Slope1h:               60,
		RollingStd24h:         20,
		SiteFloodHistoryCount: 3,
		EvaluatedAt:           time.Now().UTC(),
	}

	verdict, err := classifier.Predict(context.Background(), fv)
	require.NoError(t, err)

	assert.Equal(t, FlashFloodRisk, verdict.Label)
	assert.Greater(t, verdict.Confidence, 0.0)
	assert.LessOrEqual(t, verdict.Confidence, 1.0)
	assert.Equal(t, SourceClassifier, verdict.Source)
	assert.Equal(t, 6, verdict.HorizonHours)
}

func TestClassifier_PredictCalmVector(t *testing.T) {
	classifier, err := NewClassifier(classifierTestSettings())
	require.NoError(t, err)

	fv := &features.Vector{
		WaterLevelCm:         80,
		PctOfAlertThreshold:  40,
		PctOfDangerThreshold: 27,
		Delta1h:              2,
		Slope1h:              1,
		RollingStd24h:        3,
		EvaluatedAt:          time.Now().UTC(),
	}

	verdict, err := classifier.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, Safe, verdict.Label)
}

func TestClassifier_FactorsAlwaysIncludeMandatorySet(t *testing.T) {
	classifier, err := NewClassifier(classifierTestSettings())
	require.NoError(t, err)

	// A vector dominated by seasonal features still reports the core set.
	fv := &features.Vector{
		Month:       7,
		IsMonsoon:   1,
		HourOfDay:   23,
		EvaluatedAt: time.Now().UTC(),
	}

	verdict, err := classifier.Predict(context.Background(), fv)
	require.NoError(t, err)

	names := make(map[string]bool, len(verdict.Factors))
	for _, f := range verdict.Factors {
		names[f.Name] = true
	}
	assert.True(t, names[features.FeatWaterLevelCm])
	assert.True(t, names[features.FeatPctOfDangerThreshold])
	assert.True(t, names[features.FeatDelta1h])
	assert.True(t, names[features.FeatSlope1h])
}

func TestClassifier_NoArtifactIsRecoverable(t *testing.T) {
	empty := &Classifier{settings: classifierTestSettings().Risk}

	_, err := empty.Predict(context.Background(), &features.Vector{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelUnavailable))
	assert.True(t, errors.IsRecoverable(err))
}

func TestClassifier_ExpiredDeadlineIsTimeout(t *testing.T) {
	classifier, err := NewClassifier(classifierTestSettings())
	require.NoError(t, err)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err = classifier.Predict(ctx, &features.Vector{EvaluatedAt: time.Now().UTC()})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInferenceTimeout))
	assert.True(t, errors.IsRecoverable(err))
}

func TestClassifier_CanceledContextIsNotRecoverable(t *testing.T) {
	classifier, err := NewClassifier(classifierTestSettings())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = classifier.Predict(ctx, &features.Vector{EvaluatedAt: time.Now().UTC()})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.False(t, errors.IsRecoverable(err))
}

func TestClassifier_ReloadSwapsVersion(t *testing.T) {
	classifier, err := NewClassifier(classifierTestSettings())
	require.NoError(t, err)
	assert.Equal(t, DefaultArtifactVersion, classifier.Version())

	require.NoError(t, classifier.Reload(""))
	assert.Equal(t, DefaultArtifactVersion, classifier.Version())
}

func TestFailOpenPredictor_FallsBackWhenClassifierUnavailable(t *testing.T) {
	profile := &datastore.SiteProfile{
		SiteID:            "site-001",
		AlertThresholdCm:  200,
		DangerThresholdCm: 300,
	}
	rules := NewRuleEngine(6)

	testCases := []struct {
		name       string
		classifier *Classifier
	}{
		{"nil_classifier", nil},
		{"classifier_without_artifact", &Classifier{settings: classifierTestSettings().Risk}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			predictor := NewFailOpenPredictor(tc.classifier, rules)

			fv := &features.Vector{WaterLevelCm: 310, EvaluatedAt: time.Now().UTC()}
			verdict, err := predictor.Predict(context.Background(), fv, profile)
			require.NoError(t, err)

			assert.Equal(t, SourceRules, verdict.Source)
			assert.Equal(t, FloodRisk, verdict.Label)
			assert.InDelta(t, RuleConfidence, verdict.Confidence, 1e-9)
		})
	}
}

func TestFailOpenPredictor_FallsBackOnTimeout(t *testing.T) {
	classifier, err := NewClassifier(classifierTestSettings())
	require.NoError(t, err)
	predictor := NewFailOpenPredictor(classifier, NewRuleEngine(6))

	profile := &datastore.SiteProfile{
		SiteID:            "site-001",
		AlertThresholdCm:  200,
		DangerThresholdCm: 300,
	}
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	fv := &features.Vector{WaterLevelCm: 310, EvaluatedAt: time.Now().UTC()}
	verdict, err := predictor.Predict(ctx, fv, profile)
	require.NoError(t, err)

	assert.Equal(t, SourceRules, verdict.Source)
	assert.Equal(t, FloodRisk, verdict.Label)
	assert.InDelta(t, RuleConfidence, verdict.Confidence, 1e-9)
}

func TestFailOpenPredictor_CanceledContextPropagates(t *testing.T) {
	classifier, err := NewClassifier(classifierTestSettings())
	require.NoError(t, err)
	predictor := NewFailOpenPredictor(classifier, NewRuleEngine(6))

	profile := &datastore.SiteProfile{
		SiteID:            "site-001",
		AlertThresholdCm:  200,
		DangerThresholdCm: 300,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = predictor.Predict(ctx, &features.Vector{WaterLevelCm: 310}, profile)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestFailOpenPredictor_UsesClassifierWhenHealthy(t *testing.T) {
	classifier, err := NewClassifier(classifierTestSettings())
	require.NoError(t, err)
	predictor := NewFailOpenPredictor(classifier, NewRuleEngine(6))

	profile := &datastore.SiteProfile{
		SiteID:            "site-001",
		AlertThresholdCm:  200,
		DangerThresholdCm: 300,
	}
	fv := &features.Vector{
		WaterLevelCm:         80,
		PctOfAlertThreshold:  40,
		PctOfDangerThreshold: 27,
		EvaluatedAt:          time.Now().UTC(),
	}

	verdict, err := predictor.Predict(context.Background(), fv, profile)
	require.NoError(t, err)
	assert.Equal(t, SourceClassifier, verdict.Source)
	assert.Equal(t, "site-001", verdict.SiteID)
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float64{0, 0, 0, 0})
	for _, p := range probs {
		assert.InDelta(t, 0.25, p, 1e-9)
	}

	probs = softmax([]float64{-5, 0, 5, 10})
	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[3], probs[2])
	assert.Greater(t, probs[2], probs[1])
}

package risk

import (
	"context"

	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/features"
)

// Predictor produces a risk verdict for a feature vector. Implementations
// must never leave a valid input without a verdict.
type Predictor interface {
	Predict(ctx context.Context, fv *features.Vector, profile *datastore.SiteProfile) (*Verdict, error)
}

// FailOpenPredictor tries the trained classifier first and falls back to the
// deterministic rule engine whenever the classifier is unavailable, errors or
// times out. Only input errors propagate to the caller; model-side failures
// are absorbed by the fallback so a verdict is always produced.
type FailOpenPredictor struct {
	classifier *Classifier
	rules      *RuleEngine
}

// NewFailOpenPredictor composes the classifier and rule engine into the
// engine's default prediction policy. A nil classifier is allowed and makes
// every prediction a rule verdict.
func NewFailOpenPredictor(classifier *Classifier, rules *RuleEngine) *FailOpenPredictor {
	return &FailOpenPredictor{classifier: classifier, rules: rules}
}

// Predict classifies the vector, falling back to the rule engine on any
// recoverable classifier failure. The fallback is logged with the failure
// category so degraded operation stays visible.
func (p *FailOpenPredictor) Predict(ctx context.Context, fv *features.Vector, profile *datastore.SiteProfile) (*Verdict, error) {
	if p.classifier == nil {
		return p.rules.Evaluate(fv, profile), nil
	}

	verdict, err := p.classifier.Predict(ctx, fv)
	if err == nil {
		verdict.SiteID = profile.SiteID
		return verdict, nil
	}

	if !errors.IsRecoverable(err) {
		return nil, err
	}

	riskLogger.Warn("classifier unavailable, falling back to rule engine",
		"site_id", profile.SiteID,
		"error", err.Error())
	return p.rules.Evaluate(fv, profile), nil
}

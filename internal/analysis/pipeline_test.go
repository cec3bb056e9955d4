package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/risk"
	"github.com/gojosatorou999/jalscan-sih/internal/weather"
)

// memoryStore is an in-memory datastore.Interface for pipeline tests.
type memoryStore struct {
	profiles map[string]datastore.SiteProfile
	readings []datastore.Reading
	verdicts []datastore.Verdict
	events   []datastore.AnomalyEventRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{profiles: make(map[string]datastore.SiteProfile)}
}

func (m *memoryStore) Open() error  { return nil }
func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) GetSiteProfile(siteID string) (datastore.SiteProfile, error) {
	profile, ok := m.profiles[siteID]
	if !ok {
		return datastore.SiteProfile{}, errors.Newf("no active profile for site %s", siteID).
			Category(errors.CategoryNotFound).
			Build()
	}
	return profile, nil
}

func (m *memoryStore) SaveSiteProfile(profile *datastore.SiteProfile) error {
	m.profiles[profile.SiteID] = *profile
	return nil
}

func (m *memoryStore) GetActiveSites() ([]datastore.SiteProfile, error) {
	var out []datastore.SiteProfile
	for _, p := range m.profiles {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) SaveReading(reading *datastore.Reading) error {
	m.readings = append(m.readings, *reading)
	return nil
}

func (m *memoryStore) GetReadings(siteID string, from, to time.Time) ([]datastore.Reading, error) {
	var out []datastore.Reading
	for _, r := range m.readings {
		if r.SiteID == siteID && !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) GetReadingsByUser(userID, siteID string, since time.Time) ([]datastore.Reading, error) {
	return nil, nil
}

func (m *memoryStore) UpdateTamperStatus(readingID uint, score float64, status string) error {
	return nil
}

func (m *memoryStore) SaveVerdict(verdict *datastore.Verdict) error {
	m.verdicts = append(m.verdicts, *verdict)
	return nil
}

func (m *memoryStore) CountFloodVerdicts(siteID string, before time.Time) (int64, error) {
	var count int64
	for _, v := range m.verdicts {
		if v.SiteID == siteID && v.EvaluatedAt.Before(before) &&
			(v.Label == "FLOOD_RISK" || v.Label == "FLASH_FLOOD_RISK") {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) SaveAnomalyEvent(event *datastore.AnomalyEventRecord) error {
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryStore) AcknowledgeAnomalyEvent(eventID string) error { return nil }
func (m *memoryStore) GetUnacknowledgedEvents(siteID string) ([]datastore.AnomalyEventRecord, error) {
	return nil, nil
}
func (m *memoryStore) SaveTamperRecords(records []datastore.TamperRecord) error { return nil }

func pipelineTestSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Main.Name = "jalscan-test"
	s.Risk.InferenceTimeout = time.Second
	s.Risk.TopFactors = 6
	s.Risk.HorizonHours = 6
	s.Features.WindowsHours = []int{1, 3, 6, 12, 24}
	s.Features.MonsoonMonths = []int{6, 7, 8, 9}
	s.Features.DeltaTolerance = 45 * time.Minute
	s.Vision.ROI = conf.ROISettings{BottomFraction: 0.5, CenterFraction: 0.5}
	s.Vision.ColorEnvelopes = conf.DefaultColorEnvelopes()
	s.Vision.Flow = conf.FlowThresholds{Still: 2, Low: 8, Moderate: 20, High: 40}
	s.Vision.TextureFlow = conf.FlowThresholds{Still: 0.5, Low: 1.5, Moderate: 3, High: 5}
	s.Vision.Erosion = conf.ErosionThresholds{StableSSIM: 0.95, MinorSSIM: 0.85}
	s.Anomaly.Weights = conf.AnomalyWeights{
		RapidRise: 0.4, RapidFall: 0.35, ColorChange: 0.3, FlowSpike: 0.3, CombinedAlert: 0.6,
	}
	s.Anomaly.Thresholds = conf.AnomalyThresholds{
		RiseDelta1h: 30, RiseDelta3h: 50, FallDelta1h: 30, ColorIndex: 0.3, TurbulenceJump: 40,
	}
	s.Anomaly.EmitThreshold = 0.3
	return s
}

func rulesOnlyPipeline(store datastore.Interface) *Pipeline {
	settings := pipelineTestSettings()
	predictor := risk.NewFailOpenPredictor(nil, risk.NewRuleEngine(settings.Risk.HorizonHours))
	return NewPipeline(settings, store, predictor, weather.NewStubProvider(), nil, nil, nil)
}

func seedSite(t *testing.T, store *memoryStore, siteID string, at time.Time, levels map[time.Duration]float64) {
	t.Helper()
	require.NoError(t, store.SaveSiteProfile(&datastore.SiteProfile{
		SiteID:            siteID,
		AlertThresholdCm:  200,
		DangerThresholdCm: 300,
		RiverType:         "major",
		Active:            true,
	}))
	for offset, level := range levels {
		require.NoError(t, store.SaveReading(&datastore.Reading{
			SiteID:       siteID,
			Timestamp:    at.Add(-offset),
			WaterLevelCm: level,
		}))
	}
}

func TestEvaluateSite_RapidRiseProducesFlashFloodAndAnomaly(t *testing.T) {
	store := newMemoryStore()
	at := time.Date(2026, time.July, 15, 14, 0, 0, 0, time.UTC)
	seedSite(t, store, "site-001", at, map[time.Duration]float64{
		time.Hour: 150,
		0:         250,
	})

	pipeline := rulesOnlyPipeline(store)
	result, err := pipeline.EvaluateSite(context.Background(), "site-001", at)
	require.NoError(t, err)

	// delta_1h = slope_1h = 100: the slope rule outranks the caution rule.
	assert.Equal(t, risk.FlashFloodRisk, result.Verdict.Label)
	assert.Equal(t, risk.SourceRules, result.Verdict.Source)
	assert.InDelta(t, risk.RuleConfidence, result.Verdict.Confidence, 1e-9)

	require.NotNil(t, result.Event)
	assert.Equal(t, "rapid_rise", result.Event.Type)

	require.Len(t, store.verdicts, 1)
	assert.Equal(t, "FLASH_FLOOD_RISK", store.verdicts[0].Label)
	assert.Equal(t, "site-001", store.verdicts[0].SiteID)
	assert.NotEmpty(t, store.verdicts[0].Factors)

	require.Len(t, store.events, 1)
	assert.Equal(t, result.Event.EventID, store.events[0].EventID)
}

func TestEvaluateSite_SteadySiteIsSafeWithoutAnomaly(t *testing.T) {
	store := newMemoryStore()
	at := time.Date(2026, time.July, 15, 14, 0, 0, 0, time.UTC)
	seedSite(t, store, "site-001", at, map[time.Duration]float64{
		2 * time.Hour: 98,
		time.Hour:     99,
		0:             100,
	})

	pipeline := rulesOnlyPipeline(store)
	result, err := pipeline.EvaluateSite(context.Background(), "site-001", at)
	require.NoError(t, err)

	assert.Equal(t, risk.Safe, result.Verdict.Label)
	assert.Nil(t, result.Event)
	assert.Len(t, store.verdicts, 1)
	assert.Empty(t, store.events)
}

func TestEvaluateSite_UnknownSite(t *testing.T) {
	pipeline := rulesOnlyPipeline(newMemoryStore())

	_, err := pipeline.EvaluateSite(context.Background(), "site-404", time.Now().UTC())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}

func TestEvaluateAll_SkipsFailingSites(t *testing.T) {
	store := newMemoryStore()
	at := time.Date(2026, time.July, 15, 14, 0, 0, 0, time.UTC)
	seedSite(t, store, "site-001", at, map[time.Duration]float64{0: 100})
	// site-002 has a profile but no readings: its evaluation fails and is
	// skipped without failing the cycle.
	require.NoError(t, store.SaveSiteProfile(&datastore.SiteProfile{
		SiteID:            "site-002",
		AlertThresholdCm:  200,
		DangerThresholdCm: 300,
		Active:            true,
	}))

	pipeline := rulesOnlyPipeline(store)
	results, err := pipeline.EvaluateAll(context.Background(), at)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "site-001", results[0].SiteID)
}

func TestEvaluateSite_VerdictAlwaysProduced(t *testing.T) {
	// Even with a classifier that cannot load, valid input yields a verdict.
	store := newMemoryStore()
	at := time.Date(2026, time.July, 15, 14, 0, 0, 0, time.UTC)
	seedSite(t, store, "site-001", at, map[time.Duration]float64{0: 250})

	settings := pipelineTestSettings()
	predictor := risk.NewFailOpenPredictor(nil, risk.NewRuleEngine(settings.Risk.HorizonHours))
	pipeline := NewPipeline(settings, store, predictor, weather.NewStubProvider(), nil, nil, nil)

	result, err := pipeline.EvaluateSite(context.Background(), "site-001", at)
	require.NoError(t, err)
	require.NotNil(t, result.Verdict)
	assert.Equal(t, risk.Caution, result.Verdict.Label)
}

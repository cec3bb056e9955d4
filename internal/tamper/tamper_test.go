package tamper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
)

// fakeStore is an in-memory datastore.Interface for tamper tests.
type fakeStore struct {
	readings []datastore.Reading
	records  []datastore.TamperRecord
	statuses map[uint]string
	scores   map[uint]float64
}

func newFakeStore(readings ...datastore.Reading) *fakeStore {
	return &fakeStore{
		readings: readings,
		statuses: make(map[uint]string),
		scores:   make(map[uint]float64),
	}
}

func (f *fakeStore) Open() error  { return nil }
func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) GetSiteProfile(siteID string) (datastore.SiteProfile, error) {
	return datastore.SiteProfile{}, nil
}
func (f *fakeStore) SaveSiteProfile(profile *datastore.SiteProfile) error { return nil }
func (f *fakeStore) GetActiveSites() ([]datastore.SiteProfile, error)     { return nil, nil }

func (f *fakeStore) SaveReading(reading *datastore.Reading) error {
	f.readings = append(f.readings, *reading)
	return nil
}

func (f *fakeStore) GetReadings(siteID string, from, to time.Time) ([]datastore.Reading, error) {
	var out []datastore.Reading
	for _, r := range f.readings {
		if r.SiteID == siteID && !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetReadingsByUser(userID, siteID string, since time.Time) ([]datastore.Reading, error) {
	var out []datastore.Reading
	for _, r := range f.readings {
		if r.UserID == userID && r.SiteID == siteID && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTamperStatus(readingID uint, score float64, status string) error {
	f.scores[readingID] = score
	f.statuses[readingID] = status
	return nil
}

func (f *fakeStore) SaveVerdict(verdict *datastore.Verdict) error { return nil }
func (f *fakeStore) CountFloodVerdicts(siteID string, before time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeStore) SaveAnomalyEvent(event *datastore.AnomalyEventRecord) error { return nil }
func (f *fakeStore) AcknowledgeAnomalyEvent(eventID string) error               { return nil }
func (f *fakeStore) GetUnacknowledgedEvents(siteID string) ([]datastore.AnomalyEventRecord, error) {
	return nil, nil
}

func (f *fakeStore) SaveTamperRecords(records []datastore.TamperRecord) error {
	f.records = append(f.records, records...)
	return nil
}

func tamperTestSettings(enabled bool) *conf.Settings {
	s := &conf.Settings{}
	s.Tamper.Enabled = enabled
	return s
}

func siteProfile() *datastore.SiteProfile {
	return &datastore.SiteProfile{
		SiteID:            "site-001",
		Latitude:          26.8467,
		Longitude:         80.9462,
		AlertThresholdCm:  200,
		DangerThresholdCm: 300,
	}
}

// daytime is a plain mid-day timestamp that trips no timing rules.
var daytime = time.Date(2026, time.July, 15, 11, 0, 0, 0, time.UTC)

func cleanReading(id uint, at time.Time, level float64) datastore.Reading {
	return datastore.Reading{
		ID:            id,
		SiteID:        "site-001",
		Timestamp:     at,
		WaterLevelCm:  level,
		UserID:        "user-42",
		Latitude:      26.8467,
		Longitude:     80.9462,
		Verified:      true,
		QualityRating: 4,
		Notes:         "steady flow at the gauge marker",
	}
}

func TestAnalyze_CleanReading(t *testing.T) {
	r := cleanReading(1, daytime, 150)
	store := newFakeStore(r)
	engine := NewEngine(tamperTestSettings(true), store)

	score, err := engine.Analyze(&r, siteProfile())
	require.NoError(t, err)

	assert.Zero(t, score)
	assert.Equal(t, StatusClean, store.statuses[1])
	assert.Empty(t, store.records)
}

func TestAnalyze_DisabledEngineDoesNothing(t *testing.T) {
	r := cleanReading(1, daytime, 150)
	store := newFakeStore(r)
	engine := NewEngine(tamperTestSettings(false), store)

	score, err := engine.Analyze(&r, siteProfile())
	require.NoError(t, err)
	assert.Zero(t, score)
	assert.Empty(t, store.statuses)
}

func TestAnalyze_LocationMismatch(t *testing.T) {
	testCases := []struct {
		name         string
		latOffset    float64
		verified     bool
		wantSeverity string
		wantScore    float64
		suspicious   bool
	}{
		// 0.01 degrees of latitude is roughly 1.1km.
		{"beyond_one_km_is_critical", 0.01, true, SeverityCritical, 0.9, true},
		{"beyond_500m_is_high", 0.006, true, SeverityHigh, 0.7, true},
		{"beyond_200m_unverified_is_medium", 0.003, false, SeverityMedium, 0.5, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := cleanReading(1, daytime, 150)
			r.Latitude += tc.latOffset
			r.Verified = tc.verified

			store := newFakeStore(r)
			engine := NewEngine(tamperTestSettings(true), store)

			score, err := engine.Analyze(&r, siteProfile())
			require.NoError(t, err)

			var location *datastore.TamperRecord
			for i := range store.records {
				if store.records[i].DetectionType == TypeLocationMismatch {
					location = &store.records[i]
				}
			}
			require.NotNil(t, location)
			assert.Equal(t, tc.wantSeverity, location.Severity)
			assert.InDelta(t, tc.wantScore, score, 1e-9)

			wantStatus := StatusClean
			if tc.suspicious {
				wantStatus = StatusSuspicious
			}
			assert.Equal(t, wantStatus, store.statuses[1])
		})
	}
}

func TestAnalyze_VerifiedNearbyReadingPassesLocationCheck(t *testing.T) {
	r := cleanReading(1, daytime, 150)
	r.Latitude += 0.003 // ~330m but verified
	store := newFakeStore(r)
	engine := NewEngine(tamperTestSettings(true), store)

	score, err := engine.Analyze(&r, siteProfile())
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestAnalyze_BurstSubmissions(t *testing.T) {
	r := cleanReading(4, daytime, 180)
	store := newFakeStore(
		cleanReading(1, daytime.Add(-50*time.Minute), 150),
		cleanReading(2, daytime.Add(-40*time.Minute), 160),
		cleanReading(3, daytime.Add(-35*time.Minute), 170),
		r,
	)
	engine := NewEngine(tamperTestSettings(true), store)

	score, err := engine.Analyze(&r, siteProfile())
	require.NoError(t, err)

	assert.InDelta(t, 0.8, score, 1e-9)
	assert.Equal(t, StatusSuspicious, store.statuses[4])

	var types []string
	for _, rec := range store.records {
		types = append(types, rec.DetectionType)
	}
	assert.Contains(t, types, TypeTimeAnomaly)
}

func TestAnalyze_NightSubmissionIsAdvisoryOnly(t *testing.T) {
	night := time.Date(2026, time.July, 15, 23, 30, 0, 0, time.UTC)
	r := cleanReading(1, night, 150)
	store := newFakeStore(r)
	engine := NewEngine(tamperTestSettings(true), store)

	score, err := engine.Analyze(&r, siteProfile())
	require.NoError(t, err)

	// 0.4 flags the reading but stays below the suspicious cutoff.
	assert.InDelta(t, 0.4, score, 1e-9)
	assert.Equal(t, StatusClean, store.statuses[1])
	require.Len(t, store.records, 1)
	assert.Equal(t, TypeTimeAnomaly, store.records[0].DetectionType)
}

func TestAnalyze_DuplicateSubmission(t *testing.T) {
	r := cleanReading(2, daytime, 150.05)
	store := newFakeStore(
		cleanReading(1, daytime.Add(-10*time.Minute), 150),
		r,
	)
	engine := NewEngine(tamperTestSettings(true), store)

	score, err := engine.Analyze(&r, siteProfile())
	require.NoError(t, err)

	assert.InDelta(t, 0.6, score, 1e-9)
	var types []string
	for _, rec := range store.records {
		types = append(types, rec.DetectionType)
	}
	assert.Contains(t, types, TypeDuplicate)
}

func TestAnalyze_PatternAnomaly(t *testing.T) {
	r := cleanReading(4, daytime, 500)
	r.UserID = "user-99" // different user avoids the burst rule
	store := newFakeStore(
		cleanReading(1, daytime.Add(-3*time.Hour), 140),
		cleanReading(2, daytime.Add(-2*time.Hour), 150),
		cleanReading(3, daytime.Add(-time.Hour), 160),
		r,
	)
	engine := NewEngine(tamperTestSettings(true), store)

	score, err := engine.Analyze(&r, siteProfile())
	require.NoError(t, err)

	assert.InDelta(t, 0.7, score, 1e-9)
	assert.Equal(t, StatusSuspicious, store.statuses[4])

	var types []string
	for _, rec := range store.records {
		types = append(types, rec.DetectionType)
	}
	assert.Contains(t, types, TypePatternAnomaly)
}

func TestAnalyze_QualityAnomaly(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(r *datastore.Reading)
		want   string
	}{
		{
			name:   "low_quality_rating",
			mutate: func(r *datastore.Reading) { r.QualityRating = 2 },
			want:   "low quality rating",
		},
		{
			name:   "minimal_notes",
			mutate: func(r *datastore.Reading) { r.Notes = "ok" },
			want:   "minimal or missing notes",
		},
		{
			name:   "unverified_location",
			mutate: func(r *datastore.Reading) { r.Verified = false },
			want:   "location not verified",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := cleanReading(1, daytime, 150)
			tc.mutate(&r)

			store := newFakeStore(r)
			engine := NewEngine(tamperTestSettings(true), store)

			score, err := engine.Analyze(&r, siteProfile())
			require.NoError(t, err)

			require.Len(t, store.records, 1)
			assert.Equal(t, TypeQualityAnomaly, store.records[0].DetectionType)
			assert.Equal(t, SeverityMedium, store.records[0].Severity)
			assert.Contains(t, store.records[0].Description, tc.want)

			// 0.5 flags the reading but stays below the suspicious cutoff.
			assert.InDelta(t, 0.5, score, 1e-9)
			assert.Equal(t, StatusClean, store.statuses[1])
		})
	}
}

func TestHaversine(t *testing.T) {
	// Lucknow to Kanpur is roughly 72-80km.
	d := haversineM(26.8467, 80.9462, 26.4499, 80.3319)
	assert.InDelta(t, 76000, d, 6000)

	assert.Zero(t, haversineM(26.8467, 80.9462, 26.8467, 80.9462))
}

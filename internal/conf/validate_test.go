package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return defaultSettings()
}

func TestValidateSettings_DefaultsAreValid(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettings(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"zero_inference_timeout", func(s *Settings) { s.Risk.InferenceTimeout = 0 }},
		{"negative_inference_timeout", func(s *Settings) { s.Risk.InferenceTimeout = -time.Second }},
		{"too_few_top_factors", func(s *Settings) { s.Risk.TopFactors = 3 }},
		{"roi_bottom_fraction_zero", func(s *Settings) { s.Vision.ROI.BottomFraction = 0 }},
		{"roi_center_fraction_above_one", func(s *Settings) { s.Vision.ROI.CenterFraction = 1.5 }},
		{"envelope_missing_class", func(s *Settings) { s.Vision.ColorEnvelopes[0].Class = "" }},
		{"envelope_weight_above_one", func(s *Settings) { s.Vision.ColorEnvelopes[0].ClassWeight = 1.2 }},
		{"envelope_hue_above_360", func(s *Settings) { s.Vision.ColorEnvelopes[0].HueMax = 400 }},
		{"envelope_inverted_saturation", func(s *Settings) {
			s.Vision.ColorEnvelopes[0].SatMin = 200
			s.Vision.ColorEnvelopes[0].SatMax = 100
		}},
		{"erosion_bounds_inverted", func(s *Settings) {
			s.Vision.Erosion.MinorSSIM = 0.97
			s.Vision.Erosion.StableSSIM = 0.95
		}},
		{"emit_threshold_at_one", func(s *Settings) { s.Anomaly.EmitThreshold = 1 }},
		{"invalid_monsoon_month", func(s *Settings) { s.Features.MonsoonMonths = []int{13} }},
		{"non_positive_window", func(s *Settings) { s.Features.WindowsHours = []int{1, 0} }},
		{"zero_realtime_interval", func(s *Settings) { s.Realtime.Interval = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := validSettings()
			tc.mutate(settings)
			assert.Error(t, ValidateSettings(settings))
		})
	}
}

func TestValidateSettings_HueWraparoundIsAllowed(t *testing.T) {
	settings := validSettings()
	settings.Vision.ColorEnvelopes[0].HueMin = 330
	settings.Vision.ColorEnvelopes[0].HueMax = 30
	assert.NoError(t, ValidateSettings(settings))
}

func TestDefaultColorEnvelopes_PriorityOrder(t *testing.T) {
	envelopes := DefaultColorEnvelopes()
	require.Len(t, envelopes, 6)

	order := make([]string, len(envelopes))
	for i, env := range envelopes {
		order[i] = env.Class
	}
	assert.Equal(t, []string{"polluted", "muddy", "green", "silt", "dark", "clear"}, order)
}

func TestApplyStructuredDefaults(t *testing.T) {
	s := &Settings{}
	applyStructuredDefaults(s)

	assert.Equal(t, []int{1, 3, 6, 12, 24}, s.Features.WindowsHours)
	assert.Equal(t, []int{6, 7, 8, 9}, s.Features.MonsoonMonths)
	assert.Equal(t, 45*time.Minute, s.Features.DeltaTolerance)
	assert.Equal(t, 5*time.Second, s.Risk.InferenceTimeout)
	assert.Equal(t, 6, s.Risk.HorizonHours)
	assert.InDelta(t, 0.3, s.Anomaly.EmitThreshold, 1e-9)
	assert.InDelta(t, 0.6, s.Anomaly.Weights.CombinedAlert, 1e-9)
	assert.NotEmpty(t, s.Vision.ColorEnvelopes)
}

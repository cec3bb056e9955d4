package vision

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMagnitude(t *testing.T) {
	thresholds := visionTestSettings().Flow

	testCases := []struct {
		name string
		mag  float64
		want string
	}{
		{"near_zero_is_still", 0.5, FlowStill},
		{"boundary_two_is_low", 2, FlowLow},
		{"five_is_low", 5, FlowLow},
		{"boundary_eight_is_low", 8, FlowLow},
		{"fifteen_is_moderate", 15, FlowModerate},
		{"twenty_five_is_high", 25, FlowHigh},
		{"boundary_forty_is_high", 40, FlowHigh},
		{"forty_five_is_turbulent", 45, FlowTurbulent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyMagnitude(tc.mag, thresholds))
		})
	}
}

// noisyFrame builds a frame of uniform gray with per-pixel noise of the
// given amplitude.
func noisyFrame(t *testing.T, w, h int, amplitude int, seed int64) *Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	pix := make([]uint8, w*h*3)
	for i := 0; i < len(pix); i += 3 {
		v := 128 + rng.Intn(2*amplitude+1) - amplitude
		pix[i], pix[i+1], pix[i+2] = uint8(v), uint8(v), uint8(v)
	}
	frame, err := NewFrame(w, h, pix, time.Now())
	require.NoError(t, err)
	return frame
}

func TestEstimateFlowSingle_FlatFrameIsStill(t *testing.T) {
	frame := uniformFrame(t, 128, 128, 100, 100, 100)

	result := estimateFlowSingle(frame, visionTestSettings())
	require.NotNil(t, result)

	assert.Equal(t, FlowStill, result.Class)
	assert.Zero(t, result.TurbulenceScore)
	assert.True(t, result.SingleFrame)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
}

func TestEstimateFlowSingle_RoughTextureScoresHigher(t *testing.T) {
	settings := visionTestSettings()

	calm := estimateFlowSingle(noisyFrame(t, 128, 128, 3, 1), settings)
	rough := estimateFlowSingle(noisyFrame(t, 128, 128, 60, 1), settings)

	assert.Greater(t, rough.TurbulenceScore, calm.TurbulenceScore)
	assert.Greater(t, rough.MeanMagnitude, calm.MeanMagnitude)
}

// shiftedFramePair builds two frames whose ROI content is the same noise
// pattern displaced horizontally by shift pixels. ROI columns whose match
// would fall outside the shared canvas are flat, so their blocks fail the
// contrast gate and only true-shift blocks contribute vectors.
func shiftedFramePair(t *testing.T, w, h, shift int, seed int64) (prev, curr *Frame) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	canvasW := w + shift
	canvas := make([]uint8, canvasW*h)
	for i := range canvas {
		canvas[i] = uint8(128 + rng.Intn(81) - 40)
	}

	// With CenterFraction 0.5 the ROI starts at w/4. Flatten whole blocks
	// past the shift so unmatched blocks carry no texture.
	flatUntil := w/4 + ((shift+flowBlockSize-1)/flowBlockSize)*flowBlockSize
	for y := 0; y < h; y++ {
		for x := 0; x < flatUntil; x++ {
			canvas[y*canvasW+x] = 128
		}
	}

	makeFrame := func(offset int) *Frame {
		pix := make([]uint8, w*h*3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := canvas[y*canvasW+x+offset]
				i := (y*w + x) * 3
				pix[i], pix[i+1], pix[i+2] = v, v, v
			}
		}
		frame, err := NewFrame(w, h, pix, time.Now())
		require.NoError(t, err)
		return frame
	}
	return makeFrame(0), makeFrame(shift)
}

func TestEstimateFlow_LargeShiftClassifiesHigh(t *testing.T) {
	prev, curr := shiftedFramePair(t, 256, 128, 25, 3)

	result := estimateFlow(prev, curr, visionTestSettings())
	require.NotNil(t, result)
	require.False(t, result.SingleFrame)

	assert.InDelta(t, 25.0, result.MeanMagnitude, 3.0)
	assert.Equal(t, FlowHigh, result.Class)
}

func TestEstimateFlow_IdenticalFramesAreStill(t *testing.T) {
	frame := noisyFrame(t, 128, 128, 40, 7)

	result := estimateFlow(frame, frame, visionTestSettings())
	require.NotNil(t, result)
	require.False(t, result.SingleFrame)

	assert.Equal(t, FlowStill, result.Class)
	assert.InDelta(t, 0.0, result.MeanMagnitude, 1e-9)
}

func TestEstimateFlow_MismatchedResolutionsFallBack(t *testing.T) {
	prev := uniformFrame(t, 64, 64, 100, 100, 100)
	curr := uniformFrame(t, 128, 128, 100, 100, 100)

	result := estimateFlow(prev, curr, visionTestSettings())
	require.NotNil(t, result)
	assert.True(t, result.SingleFrame)
}

func TestTurbulenceFormula_Monotonic(t *testing.T) {
	turbulence := func(std, mean float64) float64 {
		return math.Min(100, std*5+mean*2)
	}

	assert.GreaterOrEqual(t, turbulence(10, 5), turbulence(5, 5))
	assert.GreaterOrEqual(t, turbulence(5, 10), turbulence(5, 5))
	assert.InDelta(t, 100.0, turbulence(50, 50), 1e-9) // capped
}

func TestMergeFlows(t *testing.T) {
	settings := visionTestSettings()

	merged := mergeFlows([]*FlowResult{
		{Class: FlowModerate, MeanMagnitude: 20, TurbulenceScore: 40, Confidence: 0.85},
		{Class: FlowHigh, MeanMagnitude: 30, TurbulenceScore: 60, Confidence: 0.85},
	}, settings)
	require.NotNil(t, merged)

	assert.InDelta(t, 25.0, merged.MeanMagnitude, 1e-9)
	assert.Equal(t, FlowHigh, merged.Class) // 25 px/frame sits in the 20-40 bracket
	assert.InDelta(t, 50.0, merged.TurbulenceScore, 1e-9)
	assert.False(t, merged.SingleFrame)

	assert.Nil(t, mergeFlows(nil, settings))
	assert.Nil(t, mergeFlows([]*FlowResult{nil}, settings))
}

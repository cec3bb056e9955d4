package vision

import (
	"math"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
)

// ClassUnknown is reported when no configured envelope matches the ROI's
// mean color. Its class weight is zero.
const ClassUnknown = "unknown"

// ColorResult is the water color classification of one frame.
type ColorResult struct {
	Class      string  `json:"class"`
	Index      float64 `json:"index"` // severity index in [0,1]
	MeanHue    float64 `json:"mean_hue"`
	MeanSat    float64 `json:"mean_sat"`
	MeanVal    float64 `json:"mean_val"`
	Variance   float64 `json:"variance"` // value-channel variance across the ROI
	PixelCount int     `json:"pixel_count"`
}

// classifyColor computes the ROI's mean HSV, matches it against the
// configured envelopes in their listed priority order (first match wins) and
// derives the color severity index. The computation is a pure function of
// the frame: re-running it yields the identical result.
func classifyColor(frame *Frame, settings *conf.VisionSettings) *ColorResult {
	region := frame.regionOfInterest(settings.ROI)

	var sumH, sumS, sumV float64
	count := region.width() * region.height()
	values := make([]float64, 0, count)
	for y := region.y0; y < region.y1; y++ {
		for x := region.x0; x < region.x1; x++ {
			h, s, v := rgbToHSV(frame.rgbAt(x, y))
			sumH += h
			sumS += s
			sumV += v
			values = append(values, v)
		}
	}

	meanH := sumH / float64(count)
	meanS := sumS / float64(count)
	meanV := sumV / float64(count)

	var variance float64
	for _, v := range values {
		d := v - meanV
		variance += d * d
	}
	variance /= float64(count)

	class := ClassUnknown
	classWeight := 0.0
	for _, env := range settings.ColorEnvelopes {
		if matchesEnvelope(meanH, meanS, meanV, env) {
			class = env.Class
			classWeight = env.ClassWeight
			break
		}
	}

	return &ColorResult{
		Class:      class,
		Index:      colorIndex(meanS, meanV, variance, classWeight),
		MeanHue:    meanH,
		MeanSat:    meanS,
		MeanVal:    meanV,
		Variance:   variance,
		PixelCount: count,
	}
}

// matchesEnvelope reports whether a mean HSV falls inside an envelope.
// Envelopes with HueMin > HueMax wrap around the 360-degree boundary.
func matchesEnvelope(h, s, v float64, env conf.HSVEnvelope) bool {
	var hueOK bool
	if env.HueMin <= env.HueMax {
		hueOK = h >= env.HueMin && h <= env.HueMax
	} else {
		hueOK = h >= env.HueMin || h <= env.HueMax
	}
	return hueOK &&
		s >= env.SatMin && s <= env.SatMax &&
		v >= env.ValMin && v <= env.ValMax
}

// colorIndex blends saturation, darkness, value variance and the class
// weight into a severity index, clamped to [0,1]. Higher is worse water.
func colorIndex(meanS, meanV, variance, classWeight float64) float64 {
	idx := 0.2*(meanS/255) +
		0.2*(1-meanV/255) +
		0.3*math.Min(variance/100, 1) +
		0.3*classWeight
	return math.Min(1, math.Max(0, idx))
}

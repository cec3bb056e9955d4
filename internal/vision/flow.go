package vision

import (
	"math"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
)

// Flow class names, ordered from calmest to most agitated.
const (
	FlowStill     = "still"
	FlowLow       = "low"
	FlowModerate  = "moderate"
	FlowHigh      = "high"
	FlowTurbulent = "turbulent"
)

// Block matching parameters. Displacement is estimated coarse-to-fine over
// a downsampled pyramid: a wide search at the coarsest level, then a small
// refinement around the propagated vector at each finer level. The combined
// per-axis reach is 46 px, past the highest class boundary.
const (
	flowBlockSize     = 16
	flowPyramidLevels = 3
	flowScale         = 2  // downsample factor between levels
	flowSearchRadius  = 10 // coarsest level, around zero
	flowRefineRadius  = 2  // finer levels, around the propagated vector
	flowMinVariance   = 4  // featureless block rejection
)

// FlowResult is the water movement estimate for a frame or frame pair.
type FlowResult struct {
	Class              string  `json:"class"`
	MeanMagnitude      float64 `json:"mean_magnitude"` // px/frame at full scale
	DirectionCoherence float64 `json:"direction_coherence"`
	TurbulenceScore    float64 `json:"turbulence_score"` // [0,100]
	SingleFrame        bool    `json:"single_frame"`
	Confidence         float64 `json:"confidence"`
}

// estimateFlow measures displacement between two consecutive frames with
// pyramidal block matching on grayscale ROIs. Mean displacement magnitude
// drives the flow class; the spread of block vectors drives turbulence.
func estimateFlow(prev, curr *Frame, settings *conf.VisionSettings) *FlowResult {
	region := curr.regionOfInterest(settings.ROI)
	prevRegion := prev.regionOfInterest(settings.ROI)
	if region.width() != prevRegion.width() || region.height() != prevRegion.height() {
		// Mismatched resolutions; fall back to the texture heuristic.
		return estimateFlowSingle(curr, settings)
	}

	w, h := region.width(), region.height()
	prevPyr := buildPyramid(prev.grayscale(prevRegion), w, h)
	currPyr := buildPyramid(curr.grayscale(region), w, h)

	var magnitudes []float64
	var sumDX, sumDY, sumMag float64
	for by := 0; by+flowBlockSize <= h; by += flowBlockSize {
		for bx := 0; bx+flowBlockSize <= w; bx += flowBlockSize {
			if blockVariance(prevPyr[0].plane, w, bx, by) < flowMinVariance {
				continue
			}
			dx, dy, ok := matchPyramid(prevPyr, currPyr, bx, by)
			if !ok {
				continue
			}
			fdx := float64(dx)
			fdy := float64(dy)
			mag := math.Hypot(fdx, fdy)
			magnitudes = append(magnitudes, mag)
			sumDX += fdx
			sumDY += fdy
			sumMag += mag
		}
	}

	if len(magnitudes) == 0 {
		return estimateFlowSingle(curr, settings)
	}

	meanMag := sumMag / float64(len(magnitudes))

	var variance float64
	for _, m := range magnitudes {
		d := m - meanMag
		variance += d * d
	}
	variance /= float64(len(magnitudes))
	stdMag := math.Sqrt(variance)

	coherence := 0.0
	if meanMag > 0 {
		coherence = math.Hypot(sumDX, sumDY) / sumMag
	}

	return &FlowResult{
		Class:              classifyMagnitude(meanMag, settings.Flow),
		MeanMagnitude:      meanMag,
		DirectionCoherence: coherence,
		TurbulenceScore:    math.Min(100, stdMag*5+meanMag*2),
		SingleFrame:        false,
		Confidence:         0.85,
	}
}

// estimateFlowSingle approximates water agitation from a single frame's
// surface texture. Rough water shows high local contrast in every
// orientation; a texture score stands in for displacement magnitude.
func estimateFlowSingle(frame *Frame, settings *conf.VisionSettings) *FlowResult {
	region := frame.regionOfInterest(settings.ROI)
	plane := frame.grayscale(region)
	w, h := region.width(), region.height()

	score := textureScore(plane, w, h)

	return &FlowResult{
		Class:              classifyMagnitude(score, settings.TextureFlow),
		MeanMagnitude:      score,
		DirectionCoherence: 0,
		TurbulenceScore:    math.Min(100, score*12),
		SingleFrame:        true,
		Confidence:         0.5,
	}
}

// classifyMagnitude maps a magnitude (or texture score) onto the ordinal
// flow classes using the configured boundaries.
func classifyMagnitude(mag float64, t conf.FlowThresholds) string {
	switch {
	case mag < t.Still:
		return FlowStill
	case mag <= t.Low:
		return FlowLow
	case mag <= t.Moderate:
		return FlowModerate
	case mag <= t.High:
		return FlowHigh
	default:
		return FlowTurbulent
	}
}

// textureScore combines Laplacian variance, multi-orientation band energy
// and mean gradient magnitude into one agitation score.
func textureScore(plane []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}

	var lapSum, lapSqSum float64
	var gradSum float64
	var bandSum float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := plane[y*w+x]
			up := plane[(y-1)*w+x]
			down := plane[(y+1)*w+x]
			left := plane[y*w+x-1]
			right := plane[y*w+x+1]

			lap := up + down + left + right - 4*c
			lapSum += lap
			lapSqSum += lap * lap

			gx := right - left
			gy := down - up
			gradSum += math.Hypot(gx, gy)

			// Four-orientation local band energy.
			d1 := plane[(y-1)*w+x-1] - plane[(y+1)*w+x+1]
			d2 := plane[(y-1)*w+x+1] - plane[(y+1)*w+x-1]
			bandSum += (math.Abs(gx) + math.Abs(gy) + math.Abs(d1) + math.Abs(d2)) / 4
			n++
		}
	}

	count := float64(n)
	lapMean := lapSum / count
	lapVar := lapSqSum/count - lapMean*lapMean
	gradMag := gradSum / count
	bandEnergy := bandSum / count

	return lapVar/500 + bandEnergy/50 + gradMag/30
}

// level is one plane of a downsampling pyramid.
type level struct {
	plane []float64
	w, h  int
}

// buildPyramid stacks progressively downsampled planes, finest first.
func buildPyramid(plane []float64, w, h int) []level {
	levels := make([]level, flowPyramidLevels)
	levels[0] = level{plane: plane, w: w, h: h}
	for i := 1; i < flowPyramidLevels; i++ {
		p, pw, ph := downsample(levels[i-1].plane, levels[i-1].w, levels[i-1].h)
		levels[i] = level{plane: p, w: pw, h: ph}
	}
	return levels
}

// matchPyramid locates one block coarse-to-fine: each level scales up the
// vector found so far and refines it against the next finer plane.
func matchPyramid(prev, curr []level, bx, by int) (dx, dy int, ok bool) {
	for l := flowPyramidLevels - 1; l >= 0; l-- {
		dx *= flowScale
		dy *= flowScale

		scale := 1
		for i := 0; i < l; i++ {
			scale *= flowScale
		}
		size := flowBlockSize / scale
		lbx, lby := bx/scale, by/scale
		if lbx+size > prev[l].w || lby+size > prev[l].h {
			continue
		}

		radius := flowRefineRadius
		if l == flowPyramidLevels-1 {
			radius = flowSearchRadius
		}
		var found bool
		dx, dy, found = matchBlock(prev[l], curr[l], lbx, lby, size, dx, dy, radius)
		if !found {
			return 0, 0, false
		}
		ok = true
	}
	return dx, dy, ok
}

// matchBlock finds the displacement of one block between planes by minimum
// sum of absolute differences, searching within radius of the predicted
// vector (px, py).
func matchBlock(prev, curr level, bx, by, size, px, py, radius int) (dx, dy int, ok bool) {
	bestSAD := math.Inf(1)
	for cy := py - radius; cy <= py+radius; cy++ {
		for cx := px - radius; cx <= px+radius; cx++ {
			if bx+cx < 0 || by+cy < 0 ||
				bx+cx+size > curr.w || by+cy+size > curr.h {
				continue
			}
			var sad float64
			for y := 0; y < size; y++ {
				for x := 0; x < size; x++ {
					p := prev.plane[(by+y)*prev.w+bx+x]
					c := curr.plane[(by+cy+y)*curr.w+bx+cx+x]
					sad += math.Abs(p - c)
				}
			}
			if sad < bestSAD {
				bestSAD = sad
				dx, dy = cx, cy
			}
		}
	}
	return dx, dy, !math.IsInf(bestSAD, 1)
}

// blockVariance gates featureless blocks out of the matching; near-zero
// contrast produces meaningless vectors.
func blockVariance(plane []float64, w, bx, by int) float64 {
	var mean float64
	for y := by; y < by+flowBlockSize; y++ {
		for x := bx; x < bx+flowBlockSize; x++ {
			mean += plane[y*w+x]
		}
	}
	mean /= flowBlockSize * flowBlockSize

	var sqSum float64
	for y := by; y < by+flowBlockSize; y++ {
		for x := bx; x < bx+flowBlockSize; x++ {
			d := plane[y*w+x] - mean
			sqSum += d * d
		}
	}
	return sqSum / (flowBlockSize * flowBlockSize)
}

// downsample halves a plane with 2x2 box averaging.
func downsample(plane []float64, w, h int) ([]float64, int, int) {
	dw, dh := w/flowScale, h/flowScale
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	out := make([]float64, dw*dh)
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			sy, sx := y*flowScale, x*flowScale
			sum := plane[sy*w+sx]
			n := 1.0
			if sx+1 < w {
				sum += plane[sy*w+sx+1]
				n++
			}
			if sy+1 < h {
				sum += plane[(sy+1)*w+sx]
				n++
				if sx+1 < w {
					sum += plane[(sy+1)*w+sx+1]
					n++
				}
			}
			out[y*dw+x] = sum / n
		}
	}
	return out, dw, dh
}

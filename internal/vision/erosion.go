package vision

import (
	"math"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
)

// Erosion class names.
const (
	ErosionStable = "stable"
	ErosionMinor  = "minor"
	ErosionHeavy  = "heavy"
)

// alignRadius bounds the coarse shift search used to absorb small camera
// drift before comparing frames.
const alignRadius = 4

// ErosionResult compares the riverbank region of a frame against a stored
// reference frame of the same site.
type ErosionResult struct {
	Class            string  `json:"class"`
	SSIM             float64 `json:"ssim"`
	BoundaryDeltaPct float64 `json:"boundary_delta_pct"` // changed boundary area, percent
}

// compareErosion measures structural similarity between a reference frame
// and the current frame. Frames of different resolutions cannot be compared.
func compareErosion(reference, current *Frame, settings *conf.VisionSettings) (*ErosionResult, bool) {
	refRegion := reference.regionOfInterest(settings.ROI)
	curRegion := current.regionOfInterest(settings.ROI)
	if refRegion.width() != curRegion.width() || refRegion.height() != curRegion.height() {
		return nil, false
	}

	w, h := refRegion.width(), refRegion.height()
	refPlane := reference.grayscale(refRegion)
	curPlane := current.grayscale(curRegion)

	curPlane = alignPlane(refPlane, curPlane, w, h)

	similarity := ssim(refPlane, curPlane)
	class := ErosionHeavy
	switch {
	case similarity > settings.Erosion.StableSSIM:
		class = ErosionStable
	case similarity >= settings.Erosion.MinorSSIM:
		class = ErosionMinor
	}

	return &ErosionResult{
		Class:            class,
		SSIM:             similarity,
		BoundaryDeltaPct: boundaryDelta(refPlane, curPlane, w, h),
	}, true
}

// alignPlane shifts the current plane by the offset that best matches the
// reference, compensating for small camera drift. Uncovered pixels reuse the
// reference so they do not count as change.
func alignPlane(ref, cur []float64, w, h int) []float64 {
	bestDX, bestDY := 0, 0
	bestSAD := math.Inf(1)
	step := 8 // sparse sampling keeps the search cheap
	for dy := -alignRadius; dy <= alignRadius; dy++ {
		for dx := -alignRadius; dx <= alignRadius; dx++ {
			var sad float64
			n := 0
			for y := alignRadius; y < h-alignRadius; y += step {
				for x := alignRadius; x < w-alignRadius; x += step {
					sad += math.Abs(ref[y*w+x] - cur[(y+dy)*w+x+dx])
					n++
				}
			}
			if n > 0 && sad/float64(n) < bestSAD {
				bestSAD = sad / float64(n)
				bestDX, bestDY = dx, dy
			}
		}
	}
	if bestDX == 0 && bestDY == 0 {
		return cur
	}

	aligned := make([]float64, len(cur))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sy, sx := y+bestDY, x+bestDX
			if sy < 0 || sy >= h || sx < 0 || sx >= w {
				aligned[y*w+x] = ref[y*w+x]
				continue
			}
			aligned[y*w+x] = cur[sy*w+sx]
		}
	}
	return aligned
}

// ssim computes the global structural similarity index of two equally sized
// luma planes on the standard 0-255 dynamic range.
func ssim(a, b []float64) float64 {
	const (
		c1 = 6.5025  // (0.01*255)^2
		c2 = 58.5225 // (0.03*255)^2
	)

	n := float64(len(a))
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var varA, varB, cov float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		varA += da * da
		varB += db * db
		cov += da * db
	}
	varA /= n
	varB /= n
	cov /= n

	return ((2*meanA*meanB + c1) * (2*cov + c2)) /
		((meanA*meanA + meanB*meanB + c1) * (varA + varB + c2))
}

// boundaryDelta estimates the percentage of edge pixels that moved between
// the planes, a rough proxy for bank boundary change.
func boundaryDelta(ref, cur []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	const edgeThreshold = 30.0

	changed, edges := 0, 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			refEdge := edgeMagnitude(ref, w, x, y) > edgeThreshold
			curEdge := edgeMagnitude(cur, w, x, y) > edgeThreshold
			if refEdge || curEdge {
				edges++
				if refEdge != curEdge {
					changed++
				}
			}
		}
	}
	if edges == 0 {
		return 0
	}
	return float64(changed) / float64(edges) * 100
}

func edgeMagnitude(plane []float64, w, x, y int) float64 {
	gx := plane[y*w+x+1] - plane[y*w+x-1]
	gy := plane[(y+1)*w+x] - plane[(y-1)*w+x]
	return math.Hypot(gx, gy)
}

// Package vision derives qualitative water state from camera frames: color
// classification, flow estimation and erosion comparison. It is strictly
// best-effort; analysis degrades to partial results instead of failing.
package vision

import (
	"math"
	"time"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
)

// Frame is a decoded RGB image frame with its capture time. Pixels are
// packed row-major, three bytes per pixel.
type Frame struct {
	Width      int
	Height     int
	Pix        []uint8 // len == Width*Height*3
	CapturedAt time.Time
}

// NewFrame validates dimensions against the pixel buffer and wraps it.
func NewFrame(width, height int, pix []uint8, capturedAt time.Time) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Newf("invalid frame dimensions %dx%d", width, height).
			Component("vision").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(pix) != width*height*3 {
		return nil, errors.Newf("pixel buffer is %d bytes, expected %d", len(pix), width*height*3).
			Component("vision").
			Category(errors.CategoryValidation).
			Build()
	}
	return &Frame{Width: width, Height: height, Pix: pix, CapturedAt: capturedAt}, nil
}

// rgbAt returns the pixel at (x, y) without bounds checking.
func (f *Frame) rgbAt(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// grayAt returns the luma of the pixel at (x, y) on a 0-255 scale.
func (f *Frame) grayAt(x, y int) float64 {
	r, g, b := f.rgbAt(x, y)
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// roi is a rectangular sub-region of a frame, half-open on the max edges.
type roi struct {
	x0, y0, x1, y1 int
}

func (r roi) width() int  { return r.x1 - r.x0 }
func (r roi) height() int { return r.y1 - r.y0 }

// regionOfInterest computes the analyzed sub-region: the bottom fraction of
// the frame height, horizontally centered at the configured width fraction.
// Water sits in the lower part of a fixed riverbank camera's view.
func (f *Frame) regionOfInterest(settings conf.ROISettings) roi {
	roiHeight := int(float64(f.Height) * settings.BottomFraction)
	if roiHeight < 1 {
		roiHeight = 1
	}
	roiWidth := int(float64(f.Width) * settings.CenterFraction)
	if roiWidth < 1 {
		roiWidth = 1
	}
	x0 := (f.Width - roiWidth) / 2
	return roi{
		x0: x0,
		y0: f.Height - roiHeight,
		x1: x0 + roiWidth,
		y1: f.Height,
	}
}

// rgbToHSV converts one pixel to HSV with hue in degrees (0-360) and
// saturation/value on a 0-255 scale.
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	switch {
	case delta == 0:
		h = 0
	case maxC == rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case maxC == gf:
		h = 60 * ((bf-rf)/delta + 2)
	default:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}

	if maxC > 0 {
		s = delta / maxC * 255
	}
	v = maxC * 255
	return h, s, v
}

// grayscale extracts the ROI as a float64 luma plane.
func (f *Frame) grayscale(region roi) []float64 {
	w, h := region.width(), region.height()
	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			plane[y*w+x] = f.grayAt(region.x0+x, region.y0+y)
		}
	}
	return plane
}

// conf/validate.go settings validation
package conf

import (
	"fmt"
)

// ValidateSettings checks the loaded settings for values the engine cannot
// operate with. Invalid tunables are an error, not something to silently fix.
func ValidateSettings(s *Settings) error {
	if s.Risk.InferenceTimeout <= 0 {
		return fmt.Errorf("risk.inferencetimeout must be positive, got %v", s.Risk.InferenceTimeout)
	}
	if s.Risk.TopFactors < 4 {
		// A verdict always carries at least the four mandatory factors.
		return fmt.Errorf("risk.topfactors must be at least 4, got %d", s.Risk.TopFactors)
	}

	if f := s.Vision.ROI.BottomFraction; f <= 0 || f > 1 {
		return fmt.Errorf("vision.roi.bottomfraction must be in (0,1], got %v", f)
	}
	if f := s.Vision.ROI.CenterFraction; f <= 0 || f > 1 {
		return fmt.Errorf("vision.roi.centerfraction must be in (0,1], got %v", f)
	}

	for i := range s.Vision.ColorEnvelopes {
		env := &s.Vision.ColorEnvelopes[i]
		if env.Class == "" {
			return fmt.Errorf("vision.colorenvelopes[%d] is missing a class name", i)
		}
		if env.ClassWeight < 0 || env.ClassWeight > 1 {
			return fmt.Errorf("vision.colorenvelopes[%d] (%s) class weight %v outside [0,1]", i, env.Class, env.ClassWeight)
		}
		// HueMin > HueMax is legal: the envelope wraps the 360-degree boundary.
		if env.HueMin < 0 || env.HueMax > 360 {
			return fmt.Errorf("vision.colorenvelopes[%d] (%s) hue bounds outside [0,360]", i, env.Class)
		}
		if env.SatMin > env.SatMax || env.ValMin > env.ValMax {
			return fmt.Errorf("vision.colorenvelopes[%d] (%s) has inverted bounds", i, env.Class)
		}
	}

	if e := s.Vision.Erosion; !(e.MinorSSIM < e.StableSSIM) {
		return fmt.Errorf("vision.erosion.minorssim (%v) must be below stablessim (%v)", e.MinorSSIM, e.StableSSIM)
	}

	if s.Anomaly.EmitThreshold < 0 || s.Anomaly.EmitThreshold >= 1 {
		return fmt.Errorf("anomaly.emitthreshold must be in [0,1), got %v", s.Anomaly.EmitThreshold)
	}

	for _, m := range s.Features.MonsoonMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("features.monsoonmonths contains invalid month %d", m)
		}
	}
	for _, w := range s.Features.WindowsHours {
		if w <= 0 {
			return fmt.Errorf("features.windowshours contains non-positive window %d", w)
		}
	}

	if s.Realtime.Interval <= 0 {
		return fmt.Errorf("realtime.interval must be positive, got %d", s.Realtime.Interval)
	}

	return nil
}

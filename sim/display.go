package sim

import (
	"fmt"
	"math"
)

// TimeMagnifier scales distorted seconds into displayed seconds.
const TimeMagnifier = 1.0

// MarkerThreshold is the aggregate beyond which the global marker leaves
// the neutral symbol.
const MarkerThreshold = 0.5

// MagnifiedTime is the global clock reading: observed time plus distortion.
func MagnifiedTime(accumulated, distortion float64) float64 {
	return (accumulated + distortion) * TimeMagnifier
}

// MarkerFor picks the superposition marker shown next to the global clock.
func MarkerFor(distortion float64) Variant {
	switch {
	case distortion > MarkerThreshold:
		return VariantExpanding
	case distortion < -MarkerThreshold:
		return VariantContracting
	default:
		return VariantNeutral
	}
}

// FormatClock renders seconds as HH:MM:SS.mmm. Negative readings are
// prefixed with a minus sign.
func FormatClock(seconds float64) string {
	sign, h, m, s := splitClock(seconds)
	return fmt.Sprintf("%s%02d:%02d:%06.3f", sign, h, m, s)
}

// FormatLocalClock renders an entity's local time as HH:MM:SS.ss.
func FormatLocalClock(seconds float64) string {
	sign, h, m, s := splitClock(seconds)
	return fmt.Sprintf("%s%02d:%02d:%05.2f", sign, h, m, s)
}

func splitClock(seconds float64) (sign string, h, m int, s float64) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "", 0, 0, 0
	}
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	h = int(seconds / 3600)
	m = int(math.Mod(seconds, 3600) / 60)
	s = math.Mod(seconds, 60)
	return sign, h, m, s
}

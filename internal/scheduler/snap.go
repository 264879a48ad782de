package scheduler

import (
	"math"
	"time"
)

// SnapHours converts a pixel delta into hours rounded half up to the nearest
// half hour.
func SnapHours(pixelDelta, pixelsPerHour float64) float64 {
	if pixelsPerHour <= 0 {
		return 0
	}
	hours := pixelDelta / pixelsPerHour
	return math.Floor(hours*2+0.5) / 2
}

// SnapDuration is SnapHours expressed as a duration.
func SnapDuration(pixelDelta, pixelsPerHour float64) time.Duration {
	return time.Duration(SnapHours(pixelDelta, pixelsPerHour) * float64(time.Hour))
}

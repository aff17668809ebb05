// Package units converts distances, paces and durations between the metric
// values stored by the gateway and the imperial values shown on the dashboard.
package units

import (
	"fmt"
	"math"
)

// Conversion factors.
const (
	MilesPerMeter     = 0.000621371
	KilometersPerMile = 1.60934
	MetersPerKm       = 1000.0

	secondsPerMinute = 60
	secondsPerHour   = 3600
)

// MetersToMiles converts a distance in meters to statute miles.
func MetersToMiles(meters float64) float64 {
	return meters * MilesPerMeter
}

// SecPerKmToSecPerMile converts a pace in seconds per kilometer to seconds per mile.
func SecPerKmToSecPerMile(secPerKm float64) float64 {
	return secPerKm * KilometersPerMile
}

// Round rounds x to the given number of decimal places, halves toward +Inf.
// All dashboard figures go through this so that -32.5 becomes -32, not -33.
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow10(places)
	return math.Floor(x*p+0.5) / p
}

// RoundInt rounds x half-up to the nearest integer.
func RoundInt(x float64) int {
	return int(Round(x, 0))
}

// Clamp limits v to the inclusive range [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FormatPace renders a pace given in seconds (per km or per mile) as m:ss.
// Seconds that round up to 60 roll over into the next minute.
func FormatPace(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "--:--"
	}
	minutes := int(math.Floor(seconds / secondsPerMinute))
	secs := RoundInt(math.Mod(seconds, secondsPerMinute))
	if secs == secondsPerMinute {
		minutes++
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// FormatClock renders a duration in seconds as h:mm:ss, or m:ss under an hour.
func FormatClock(totalSeconds float64) string {
	if totalSeconds < 0 || math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) {
		return "--:--"
	}
	total := RoundInt(totalSeconds)
	h := total / secondsPerHour
	m := (total % secondsPerHour) / secondsPerMinute
	s := total % secondsPerMinute
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

package utils

import "math"

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// RoundInt rounds to the nearest integer.
func RoundInt(v float64) int64 {
	return int64(math.Round(v))
}

// Percent returns part/whole*100, or 0 when whole is not positive.
func Percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

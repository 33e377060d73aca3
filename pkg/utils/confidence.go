package utils

import "math"

// RoundConfidence rounds a confidence to 2 decimal places and bounds it to [-100, 100].
func RoundConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}

	c = math.Round(c*100) / 100

	return math.Max(-100, math.Min(100, c))
}

package vector

import "math"

// Similarity maps a squared L2 distance between unit vectors to a score in [0, 1].
// For unit vectors the squared distance is 2(1 - cos), so the score is the cosine
// similarity clamped at 0.
func Similarity(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return math.Max(0, 1-distance/2)
}

// RoundSimilarity rounds a score to 3 decimal digits for display.
func RoundSimilarity(s float64) float64 {
	return math.Round(s*1000) / 1000
}

// SquaredL2 returns the squared Euclidean distance between a and b, accumulated in float64.
// Callers must ensure equal lengths.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

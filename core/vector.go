package core

import "math"

// NormalizeVector scales v to unit length so that a dot product against
// another normalized vector is their cosine similarity.
// Returns a new vector. A zero vector stays zero.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sum)

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

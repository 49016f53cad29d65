package bulk

import "math"

// NormalizeVector scales v to unit length so cosine similarity reduces to a
// dot product at query time. The input is not modified. Zero vectors come
// back as zeros since they have no direction to preserve.
func NormalizeVector(v []float32) []float32 {
	out := make([]float32, len(v))
	if len(v) == 0 {
		return out
	}

	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return out
	}

	inv := 1 / math.Sqrt(sumSquares)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

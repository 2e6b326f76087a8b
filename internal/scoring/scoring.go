// Package scoring converts embedding similarity into awarded marks.
package scoring

import "math"

// Cosine returns the raw cosine similarity of two vectors. A zero or empty
// vector yields 0. Values can be negative for strongly dissimilar vectors.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity returns the cosine similarity clamped to [0, 1]. A negative
// cosine means the answer earns nothing, never negative marks.
func Similarity(a, b []float64) float64 {
	s := Cosine(a, b)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// MarkFor converts a similarity score into awarded marks. Grading is linear
// proportional: full similarity yields full marks, zero yields zero.
func MarkFor(similarity float64, maxMarks int) float64 {
	return Round2(similarity * float64(maxMarks))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

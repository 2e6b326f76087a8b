package scoring

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 2}, 0},
		{"empty", nil, []float64{1, 2}, 0},
		{"scaled", []float64{1, 1}, []float64{5, 5}, 1},
	}

	for _, tc := range testCases {
		got := Cosine(tc.a, tc.b)
		if math.Abs(got-tc.expected) > 1e-9 {
			t.Errorf("%s: Cosine() = %v, expected %v", tc.name, got, tc.expected)
		}
	}
}

func TestSimilarityClampsNegative(t *testing.T) {
	// Strongly dissimilar vectors have negative cosine; the answer earns
	// nothing, never negative marks.
	sim := Similarity([]float64{1, 0}, []float64{-1, 0})
	if sim != 0 {
		t.Errorf("Similarity() = %v, expected 0 for opposite vectors", sim)
	}

	if mark := MarkFor(sim, 10); mark != 0 {
		t.Errorf("MarkFor(%v, 10) = %v, expected 0", sim, mark)
	}
}

func TestMarkFor(t *testing.T) {
	testCases := []struct {
		similarity float64
		maxMarks   int
		expected   float64
	}{
		{1.0, 10, 10.0},
		{0.0, 10, 0.0},
		{0.5, 10, 5.0},
		{0.755, 10, 7.55},
		{0.333, 5, 1.67},
		{1.0, 3, 3.0},
	}

	for _, tc := range testCases {
		got := MarkFor(tc.similarity, tc.maxMarks)
		if got != tc.expected {
			t.Errorf("MarkFor(%v, %d) = %v, expected %v", tc.similarity, tc.maxMarks, got, tc.expected)
		}
	}
}

func TestRound2(t *testing.T) {
	testCases := []struct {
		in       float64
		expected float64
	}{
		{1.005, 1.0},
		{1.015, 1.01},
		{7.549999, 7.55},
		{0, 0},
		{12.344, 12.34},
	}

	for _, tc := range testCases {
		if got := Round2(tc.in); math.Abs(got-tc.expected) > 1e-9 {
			t.Errorf("Round2(%v) = %v, expected %v", tc.in, got, tc.expected)
		}
	}
}

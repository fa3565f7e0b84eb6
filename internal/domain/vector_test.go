package domain

import (
	"math"
	"testing"
)

func TestCosine_Identical(t *testing.T) {
	v := []float32{0.6, 0.8}
	if got := Cosine(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected 1.0, got %v", got)
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestCosine_Opposite(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{-1, 0}); math.Abs(got+1.0) > 1e-9 {
		t.Errorf("expected -1.0, got %v", got)
	}
}

func TestCosine_MismatchedDims(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("expected 0 for mismatched dims, got %v", got)
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	if got := Cosine([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("expected 0 for zero vector, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float32{3, 4})
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("expected [0.6 0.8], got %v", got)
	}
}

func TestCentroid(t *testing.T) {
	c := Centroid([][]float32{{1, 0}, {0, 1}})
	if c == nil {
		t.Fatal("expected centroid, got nil")
	}
	// Mean (0.5, 0.5) normalized to (1/sqrt2, 1/sqrt2).
	want := float32(1 / math.Sqrt2)
	if math.Abs(float64(c[0]-want)) > 1e-6 || math.Abs(float64(c[1]-want)) > 1e-6 {
		t.Errorf("expected [%v %v], got %v", want, want, c)
	}
}

func TestCentroid_Empty(t *testing.T) {
	if c := Centroid(nil); c != nil {
		t.Errorf("expected nil centroid for empty input, got %v", c)
	}
}

func TestCentroid_MismatchedDims(t *testing.T) {
	if c := Centroid([][]float32{{1, 0}, {1}}); c != nil {
		t.Errorf("expected nil centroid for mismatched dims, got %v", c)
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.3, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, tc := range cases {
		if got := Clamp01(tc.in); got != tc.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

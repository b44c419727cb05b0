package vector

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.5, 0.75},
		{1, 0.5},
		{2, 0},
		{4, 0},
		{1e9, 0},
		{math.Inf(1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.distance); got != tt.want {
			t.Errorf("Similarity(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestSimilarity_NonIncreasing(t *testing.T) {
	prev := Similarity(0)
	for d := 0.001; d < 5; d += 0.001 {
		s := Similarity(d)
		if s > prev {
			t.Fatalf("Similarity(%v) = %v exceeds previous %v", d, s, prev)
		}
		if s < 0 || s > 1 {
			t.Fatalf("Similarity(%v) = %v out of range", d, s)
		}
		prev = s
	}
}

func TestRoundSimilarity(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.99949, 0.999},
		{0.99951, 1},
		{0.12345, 0.123},
		{0, 0},
	}
	for _, tt := range tests {
		if got := RoundSimilarity(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("RoundSimilarity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSquaredL2(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	if got := SquaredL2(a, b); got != 2 {
		t.Errorf("SquaredL2 = %v, want 2", got)
	}
	if got := SquaredL2(a, a); got != 0 {
		t.Errorf("SquaredL2 of identical vectors = %v, want 0", got)
	}
}

func TestUnitVectorsRelateToCosine(t *testing.T) {
	a := unit(3, 4, 0)
	b := unit(4, 3, 0)
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	if got := Similarity(SquaredL2(a, b)); math.Abs(got-dot) > 1e-6 {
		t.Errorf("similarity %v, cosine %v", got, dot)
	}
}

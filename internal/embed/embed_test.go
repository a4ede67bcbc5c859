package embed

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"unnormalized identical direction", []float32{2, 0}, []float32{5, 0}, 1.0},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityAngled(t *testing.T) {
	// 45 degrees between unit vectors.
	a := []float32{1, 0}
	b := []float32{1, 1}
	got := CosineSimilarity(a, b)
	want := 1 / math.Sqrt2
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("Expected similarity %v, got %v", want, got)
	}
}

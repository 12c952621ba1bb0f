package vec

import (
	"math"
	"testing"
)

func TestLiteralRoundTrip(t *testing.T) {
	t.Parallel()

	literal, err := Literal([]float64{0.25, -1, 3.5})
	if err != nil {
		t.Fatalf("unexpected literal error: %v", err)
	}
	if literal != "[0.25,-1,3.5]" {
		t.Fatalf("unexpected literal: %q", literal)
	}

	values, err := Parse(literal)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(values) != 3 || values[0] != 0.25 || values[1] != -1 || values[2] != 3.5 {
		t.Fatalf("unexpected parsed values: %v", values)
	}
}

func TestLiteralRejectsNonFinite(t *testing.T) {
	t.Parallel()

	if _, err := Literal([]float64{1, math.NaN()}); err == nil {
		t.Fatalf("expected error for NaN element")
	}
	if _, err := Literal(nil); err == nil {
		t.Fatalf("expected error for empty vector")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, literal := range []string{"", "0.1,0.2", "[]", "[a,b]"} {
		if _, err := Parse(literal); err == nil {
			t.Fatalf("expected parse error for %q", literal)
		}
	}
}

func TestDotMismatchedLengths(t *testing.T) {
	t.Parallel()

	if got := Dot([]float64{1, 2}, []float64{1}); got != 0 {
		t.Fatalf("expected 0 for mismatched vectors, got %f", got)
	}
	if got := Dot(nil, nil); got != 0 {
		t.Fatalf("expected 0 for empty vectors, got %f", got)
	}
	if got := Dot([]float64{1, 2}, []float64{3, 4}); got != 11 {
		t.Fatalf("unexpected dot product: %f", got)
	}
}

func TestMeanNormalizesAfterCombine(t *testing.T) {
	t.Parallel()

	mean := Normalize(Mean([][]float64{{1, 0}, {0, 1}}))
	norm := math.Sqrt(mean[0]*mean[0] + mean[1]*mean[1])
	if math.Abs(norm-1) > 1e-9 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestMeanDimensionMismatch(t *testing.T) {
	t.Parallel()

	if got := Mean([][]float64{{1, 0}, {0, 1, 2}}); got != nil {
		t.Fatalf("expected nil for mismatched dimensions, got %v", got)
	}
}

// Package vec handles embedding vectors: pgvector literal encoding and the
// similarity math used by topic assignment, merge and feed ranking.
package vec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Literal renders a vector as a pgvector text literal, e.g. "[0.1,0.2]".
func Literal(values []float64) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("vector is empty")
	}

	var builder strings.Builder
	builder.Grow(len(values) * 8)
	builder.WriteByte('[')
	for i, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return "", fmt.Errorf("vector has non-finite value at index %d", i)
		}
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

// Parse decodes a pgvector text literal back into a float slice.
func Parse(literal string) ([]float64, error) {
	trimmed := strings.TrimSpace(literal)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal %q", truncateForError(trimmed))
	}

	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return nil, fmt.Errorf("vector literal is empty")
	}

	parts := strings.Split(inner, ",")
	values := make([]float64, 0, len(parts))
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		values = append(values, value)
	}
	return values, nil
}

// Dot returns the dot product of two vectors. Embedding vectors are expected
// to be pre-normalized, so this doubles as cosine similarity. Mismatched or
// empty vectors score 0 rather than failing.
func Dot(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// CosineSimilarity is an alias for Dot kept for call sites that compare
// centroids, where the unit-norm convention matters.
func CosineSimilarity(a, b []float64) float64 {
	return Dot(a, b)
}

// Normalize scales a vector to unit length in place and returns it.
// The zero vector is returned unchanged.
func Normalize(values []float64) []float64 {
	var sum float64
	for _, v := range values {
		sum += v * v
	}
	if sum == 0 {
		return values
	}
	norm := math.Sqrt(sum)
	for i := range values {
		values[i] /= norm
	}
	return values
}

// Mean combines vectors into their normalized element-wise mean.
// Returns nil when the input is empty or dimensions disagree.
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	summed := make([]float64, dim)
	for _, vector := range vectors {
		if len(vector) != dim {
			return nil
		}
		for i, value := range vector {
			summed[i] += value
		}
	}
	for i := range summed {
		summed[i] /= float64(len(vectors))
	}
	return summed
}

func truncateForError(value string) string {
	const limit = 32
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}

// Package embedding defines the embedding provider interface and the vector
// distance metrics used by memory search.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// Metric selects how distance between two vectors is measured.
type Metric string

const (
	// Cosine distance is 1 - cosine similarity, in [0, 2].
	Cosine Metric = "cosine"
	// L2 is Euclidean distance.
	L2 Metric = "l2"
)

// ParseMetric accepts "cosine" or "l2". Empty means Cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", Cosine:
		return Cosine, nil
	case L2:
		return L2, nil
	}
	return "", fmt.Errorf("unknown distance metric %q (use cosine or l2)", s)
}

// Distance returns the distance between a and b under m. Smaller is closer.
func (m Metric) Distance(a, b Vector) float64 {
	if m == L2 {
		return L2Distance(a, b)
	}
	return 1 - CosineSimilarity(a, b)
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// L2Distance computes Euclidean distance. Vectors of different length are
// infinitely far apart.
func L2Distance(a, b Vector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"sort"

	"manualrag/internal/embedding"
	"manualrag/internal/textproc"
)

// DefaultDimension is used when no dimension is configured.
const DefaultDimension = 384

// Embedder is an offline bag-of-words embedder. Tokens are hashed into a
// fixed number of buckets with a sign bit, weighted by sublinear term
// frequency and L2 normalized. It needs no corpus preparation, so query and
// document vectors from different runs are comparable.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder with the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one unit vector per text. Texts without any indexable token
// map to the zero vector.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float64 {
	vec := make([]float64, e.dimension)
	tf := make(map[string]int)
	for _, tok := range textproc.Tokens(text) {
		tf[tok]++
	}
	// Sorted so bucket sums are bit-for-bit reproducible.
	keys := make([]string, 0, len(tf))
	for tok := range tf {
		keys = append(keys, tok)
	}
	sort.Strings(keys)
	for _, tok := range keys {
		count := tf[tok]
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		vec[idx] += sign * (1 + math.Log(float64(count)))
	}
	return embedding.Normalize(vec)
}

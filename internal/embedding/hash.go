package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/pysugar/loanpilot/internal/textnorm"
)

// DefaultHashDimensions is the vector length of a Hash embedder.
const DefaultHashDimensions = 256

// Hash is an offline embedder: words and adjacent word pairs are hashed
// into a fixed number of signed buckets and the vector is L2-normalized.
// Texts sharing vocabulary land close together, which is enough to rank
// parameter descriptors without a model server.
type Hash struct {
	dims int
}

// NewHash creates a Hash embedder; dims <= 0 selects the default.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &Hash{dims: dims}
}

// Embed implements Embedder.
func (h *Hash) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, h.dims)
	words := textnorm.Words(text)
	for i, word := range words {
		h.add(vec, word, 1.0)
		if i > 0 {
			h.add(vec, words[i-1]+" "+word, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func (h *Hash) add(vec []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

package fusion

import (
	"math"
	"math/rand"

	"github.com/synheart-ai/synheart-core/internal/domain/model"
)

// concatDim is the width of the weighted modality feature concatenation
// fed into the projection (wear 8 + phone 6 + behavior 6).
const concatDim = 20

// defaultProjectionSeed fixes the projection matrix so embeddings are
// reproducible across runs and hosts.
const defaultProjectionSeed = 42

// projection holds a fixed random matrix mapping the concatenated feature
// vector to the embedding space. The mapping is intentionally
// non-invertible: the embedding is an opaque summary, not a codec.
type projection struct {
	rows [model.EmbeddingDim][concatDim]float64
}

// newProjection builds the matrix from a seeded generator. The same seed
// always yields the same matrix.
func newProjection(seed int64) *projection {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic matrix, not security material
	p := &projection{}
	scale := 1.0 / math.Sqrt(concatDim)
	for i := 0; i < model.EmbeddingDim; i++ {
		for j := 0; j < concatDim; j++ {
			p.rows[i][j] = rng.NormFloat64() * scale
		}
	}
	return p
}

// apply projects the concatenated vector into embedding space.
func (p *projection) apply(concat []float64) []float64 {
	out := make([]float64, model.EmbeddingDim)
	for i := 0; i < model.EmbeddingDim; i++ {
		var sum float64
		for j := 0; j < concatDim && j < len(concat); j++ {
			sum += p.rows[i][j] * concat[j]
		}
		out[i] = sum
	}
	return out
}

// l2Normalize scales v to unit length. A zero vector is returned as-is.
func l2Normalize(v []float64) [model.EmbeddingDim]float64 {
	var out [model.EmbeddingDim]float64
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	for i := 0; i < model.EmbeddingDim && i < len(v); i++ {
		if norm > 0 {
			out[i] = v[i] / norm
		} else {
			out[i] = v[i]
		}
	}
	return out
}

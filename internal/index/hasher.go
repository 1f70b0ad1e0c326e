package index

import (
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// DefaultFeatures is the dimensionality of the hashed feature space.
const DefaultFeatures = 1 << 20

// Vector is a sparse feature vector: parallel slot/weight slices sorted by
// slot, with the Euclidean norm precomputed when the vector is built.
type Vector struct {
	Slots   []uint32
	Weights []float64
	Norm    float64
}

// Hasher maps tokens into a fixed feature space with the hashing trick, so
// vectorization needs no vocabulary and documents can be indexed as they
// arrive.
type Hasher struct {
	features int
}

func NewHasher(features int) *Hasher {
	if features <= 0 {
		features = DefaultFeatures
	}
	return &Hasher{features: features}
}

// Features reports the dimensionality of the feature space.
func (h *Hasher) Features() int { return h.features }

// Vectorize accumulates term counts of tokens into hashed slots. Distinct
// tokens may collide on a slot; collisions simply add up.
func (h *Hasher) Vectorize(tokens []string) Vector {
	if len(tokens) == 0 {
		return Vector{}
	}

	counts := make(map[uint32]float64, len(tokens))
	for _, token := range tokens {
		slot := uint32(xxhash.Sum64String(token) % uint64(h.features))
		counts[slot]++
	}

	slots := make([]uint32, 0, len(counts))
	for slot := range counts {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	weights := make([]float64, len(slots))
	var sumSquares float64
	for i, slot := range slots {
		weight := counts[slot]
		weights[i] = weight
		sumSquares += weight * weight
	}

	return Vector{Slots: slots, Weights: weights, Norm: math.Sqrt(sumSquares)}
}

// CosineSimilarity calculates the cosine of two sparse vectors by walking
// their slot lists in lockstep. A zero vector on either side scores 0, and
// rounding can push the ratio a hair past one, so the result is clamped to
// [0, 1].
func CosineSimilarity(a, b Vector) float64 {
	if a.Norm == 0 || b.Norm == 0 {
		return 0
	}

	var dotProduct float64
	i, j := 0, 0
	for i < len(a.Slots) && j < len(b.Slots) {
		switch {
		case a.Slots[i] == b.Slots[j]:
			dotProduct += a.Weights[i] * b.Weights[j]
			i++
			j++
		case a.Slots[i] < b.Slots[j]:
			i++
		default:
			j++
		}
	}

	score := dotProduct / (a.Norm * b.Norm)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

package valueobject

import (
	"fmt"

	"mediaenrich/internal/domain/errors/domain"
)

// MultimodalEmbeddingDimension is the vector length produced by multimodalembedding@001
// and stored in instagram_posts.embedding.
const MultimodalEmbeddingDimension = 1408

// Embedding is a fixed-length embedding vector. A value of this type always has
// exactly the dimension it was validated against.
type Embedding struct {
	values []float32
}

// NewEmbedding validates the vector length against the expected dimension.
func NewEmbedding(values []float32, dimension int) (Embedding, error) {
	if dimension <= 0 {
		return Embedding{}, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}
	if len(values) != dimension {
		return Embedding{}, fmt.Errorf(
			"%w: expected %d dimensions, got %d",
			domain.ErrDimensionMismatch,
			dimension,
			len(values),
		)
	}

	copied := make([]float32, len(values))
	copy(copied, values)
	return Embedding{values: copied}, nil
}

// Values returns a copy of the vector.
func (e Embedding) Values() []float32 {
	out := make([]float32, len(e.values))
	copy(out, e.values)
	return out
}

// Dimension returns the vector length.
func (e Embedding) Dimension() int {
	return len(e.values)
}

// IsZero reports whether the embedding was never set.
func (e Embedding) IsZero() bool {
	return len(e.values) == 0
}

package outbound

import "context"

// MultimodalEmbeddingRequest is one call to the multimodal embedding model.
// Image is optional for text-only queries.
type MultimodalEmbeddingRequest struct {
	Text      string
	Image     []byte
	Dimension int
}

// MultimodalEmbedder calls the external multimodal embedding service. The returned
// vector is not validated; callers check its dimension.
type MultimodalEmbedder interface {
	Embed(ctx context.Context, req MultimodalEmbeddingRequest) ([]float32, error)
}

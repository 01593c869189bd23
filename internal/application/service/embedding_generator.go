package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/domain/errors/domain"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"
)

// EmbeddingGeneratorConfig holds the embedding request limits.
type EmbeddingGeneratorConfig struct {
	Dimension     int
	MaxTextBytes  int
	MaxImageBytes int64
	FetchTimeout  time.Duration
}

// EmbeddingGenerator produces validated multimodal embeddings.
type EmbeddingGenerator struct {
	embedder outbound.MultimodalEmbedder
	fetcher  outbound.MediaFetcher
	config   EmbeddingGeneratorConfig
}

// NewEmbeddingGenerator creates an EmbeddingGenerator.
func NewEmbeddingGenerator(
	embedder outbound.MultimodalEmbedder,
	fetcher outbound.MediaFetcher,
	config EmbeddingGeneratorConfig,
) *EmbeddingGenerator {
	if config.Dimension <= 0 {
		config.Dimension = valueobject.MultimodalEmbeddingDimension
	}
	if config.MaxTextBytes <= 0 {
		config.MaxTextBytes = 1024
	}
	if config.MaxImageBytes <= 0 {
		config.MaxImageBytes = 10 * 1024 * 1024
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 15 * time.Second
	}
	return &EmbeddingGenerator{embedder: embedder, fetcher: fetcher, config: config}
}

// TruncateToByteBudget cuts s to at most maxBytes bytes without leaving a
// partial UTF-8 sequence at the end.
func TruncateToByteBudget(s string, maxBytes int) string {
	if maxBytes < 0 {
		maxBytes = 0
	}
	if len(s) <= maxBytes {
		return s
	}
	return strings.ToValidUTF8(s[:maxBytes], "")
}

// FetchAndValidateMedia downloads media for embedding and checks its size and type.
func (g *EmbeddingGenerator) FetchAndValidateMedia(ctx context.Context, url string) (*outbound.MediaPayload, error) {
	if url == "" {
		return nil, domain.ErrMissingMediaURL
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.FetchTimeout)
	defer cancel()

	payload, err := g.fetcher.Fetch(ctx, url, g.config.MaxImageBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	if !strings.HasPrefix(payload.MIMEType, "image/") && !strings.HasPrefix(payload.MIMEType, "video/") {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMIMEType, payload.MIMEType)
	}

	slogger.Debug(ctx, "Media validated", slogger.Fields{
		"mime_type":  payload.MIMEType,
		"size_bytes": len(payload.Data),
	})
	return payload, nil
}

// Generate embeds text together with the media at mediaURL.
func (g *EmbeddingGenerator) Generate(ctx context.Context, text, mediaURL string) (valueobject.Embedding, error) {
	payload, err := g.FetchAndValidateMedia(ctx, mediaURL)
	if err != nil {
		return valueobject.Embedding{}, err
	}
	return g.embed(ctx, outbound.MultimodalEmbeddingRequest{
		Text:      g.truncate(ctx, text),
		Image:     payload.Data,
		Dimension: g.config.Dimension,
	})
}

// GenerateText embeds a text-only query in the same vector space as post embeddings.
func (g *EmbeddingGenerator) GenerateText(ctx context.Context, text string) (valueobject.Embedding, error) {
	if strings.TrimSpace(text) == "" {
		return valueobject.Embedding{}, fmt.Errorf("%w: query text cannot be empty", domain.ErrInvalidInput)
	}
	return g.embed(ctx, outbound.MultimodalEmbeddingRequest{
		Text:      g.truncate(ctx, text),
		Dimension: g.config.Dimension,
	})
}

func (g *EmbeddingGenerator) embed(ctx context.Context, req outbound.MultimodalEmbeddingRequest) (valueobject.Embedding, error) {
	values, err := g.embedder.Embed(ctx, req)
	if err != nil {
		return valueobject.Embedding{}, fmt.Errorf("generate embedding: %w", err)
	}
	embedding, err := valueobject.NewEmbedding(values, g.config.Dimension)
	if err != nil {
		return valueobject.Embedding{}, fmt.Errorf("generate embedding: %w", err)
	}
	return embedding, nil
}

func (g *EmbeddingGenerator) truncate(ctx context.Context, text string) string {
	truncated := TruncateToByteBudget(text, g.config.MaxTextBytes)
	if len(truncated) != len(text) {
		slogger.Info(ctx, "Text truncated for embedding", slogger.Fields{
			"original_bytes":  len(text),
			"truncated_bytes": len(truncated),
		})
	}
	return truncated
}

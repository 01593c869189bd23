package outbound

import (
	"context"

	"mediaenrich/internal/domain/entity"
	"mediaenrich/internal/domain/valueobject"
)

// TranscriptResult is written back for video posts before the embedding is generated.
type TranscriptResult struct {
	// Transcript is nil when the video has no audio or no chunk could be transcribed.
	Transcript *string
	HasAudio   bool
	Language   string
}

// ContentRepository reads content items and writes enrichment results back.
// Every call is scoped to a tenant.
type ContentRepository interface {
	// GetContent loads the item a job refers to. Only instagram_posts is supported.
	GetContent(
		ctx context.Context,
		clientID string,
		contentType valueobject.ContentType,
		contentID string,
	) (*entity.ContentItem, error)

	// StoreEmbedding writes the vector together with the model tag and embedded_at.
	StoreEmbedding(
		ctx context.Context,
		clientID string,
		contentID string,
		embedding valueobject.Embedding,
		modelTag string,
	) error

	// StoreTranscript writes transcript, has_audio and audio_language.
	StoreTranscript(ctx context.Context, clientID string, contentID string, result TranscriptResult) error
}

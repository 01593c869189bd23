package repository

import (
	"context"
	"testing"

	"mediaenrich/internal/domain/errors/domain"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentRepository_GetContent_UnsupportedType(t *testing.T) {
	repo := NewPostgreSQLContentRepository(nil)

	_, err := repo.GetContent(context.Background(), testClientID, valueobject.ContentType("tiktok_videos"), "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedContentType)
	assert.True(t, domain.IsPermanent(err))
}

func TestContentRepository_GetContent(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPostgreSQLContentRepository(pool)
	ctx := context.Background()

	insertPost(t, pool, testClientID, "img-1", "IMAGE", "https://cdn/img.jpg", "")
	insertPost(t, pool, testClientID, "car-1", "CAROUSEL_ALBUM", "", "")
	insertChild(t, pool, testClientID, "car-1", "child-2", "IMAGE", "https://cdn/second.jpg", "")
	insertChild(t, pool, testClientID, "car-1", "child-1", "VIDEO", "https://cdn/first.mp4", "https://cdn/first.jpg")

	t.Run("image post", func(t *testing.T) {
		item, err := repo.GetContent(ctx, testClientID, valueobject.ContentTypeInstagramPosts, "img-1")
		require.NoError(t, err)
		assert.Equal(t, valueobject.MediaTypeImage, item.MediaType())
		assert.Equal(t, "https://cdn/img.jpg", item.MediaURL())
		assert.Equal(t, "caption for img-1", item.Caption())
		assert.Empty(t, item.ThumbnailURL())
		assert.Empty(t, item.Children())
	})

	t.Run("carousel children in stable order", func(t *testing.T) {
		item, err := repo.GetContent(ctx, testClientID, valueobject.ContentTypeInstagramPosts, "car-1")
		require.NoError(t, err)
		children := item.Children()
		require.Len(t, children, 2)
		assert.Equal(t, "child-1", children[0].ID)

		url, ok := item.RepresentativeMediaURL()
		assert.True(t, ok)
		assert.Equal(t, "https://cdn/first.jpg", url)
	})

	t.Run("other tenant cannot read", func(t *testing.T) {
		_, err := repo.GetContent(ctx, "test-other-tenant", valueobject.ContentTypeInstagramPosts, "img-1")
		assert.ErrorIs(t, err, domain.ErrContentNotFound)
	})

	t.Run("missing content", func(t *testing.T) {
		_, err := repo.GetContent(ctx, testClientID, valueobject.ContentTypeInstagramPosts, "missing")
		assert.ErrorIs(t, err, domain.ErrContentNotFound)
	})
}

func TestContentRepository_StoreEmbeddingAndTranscript(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPostgreSQLContentRepository(pool)
	ctx := context.Background()

	insertPost(t, pool, testClientID, "vid-1", "VIDEO", "https://cdn/v.mp4", "https://cdn/v.jpg")

	values := make([]float32, valueobject.MultimodalEmbeddingDimension)
	values[0], values[1407] = 0.25, -0.5
	emb, err := valueobject.NewEmbedding(values, valueobject.MultimodalEmbeddingDimension)
	require.NoError(t, err)

	require.NoError(t, repo.StoreEmbedding(ctx, testClientID, "vid-1", emb, "embedding-001"))

	transcript := "hello world"
	require.NoError(t, repo.StoreTranscript(ctx, testClientID, "vid-1", outbound.TranscriptResult{
		Transcript: &transcript,
		HasAudio:   true,
		Language:   "en",
	}))

	var (
		stored        pgvector.Vector
		model         string
		gotTranscript *string
		hasAudio      bool
		language      string
	)
	err = pool.QueryRow(ctx, `
		SELECT embedding, embedding_model, transcript, has_audio, audio_language
		FROM instagram_posts WHERE id = 'vid-1'`,
	).Scan(&stored, &model, &gotTranscript, &hasAudio, &language)
	require.NoError(t, err)

	assert.Len(t, stored.Slice(), valueobject.MultimodalEmbeddingDimension)
	assert.InDelta(t, 0.25, stored.Slice()[0], 1e-6)
	assert.Equal(t, "embedding-001", model)
	require.NotNil(t, gotTranscript)
	assert.Equal(t, "hello world", *gotTranscript)
	assert.True(t, hasAudio)
	assert.Equal(t, "en", language)

	err = repo.StoreEmbedding(ctx, "test-other-tenant", "vid-1", emb, "embedding-001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentRepository_StoreEmbedding_RejectsEmptyVector(t *testing.T) {
	repo := NewPostgreSQLContentRepository(nil)
	err := repo.StoreEmbedding(context.Background(), testClientID, "x", valueobject.Embedding{}, "embedding-001")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

package repository

import (
	"context"
	"fmt"
	"strings"

	"mediaenrich/internal/domain/entity"
	"mediaenrich/internal/domain/errors/domain"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgreSQLContentRepository implements outbound.ContentRepository over the
// instagram_posts and instagram_post_children tables.
type PostgreSQLContentRepository struct {
	pool *pgxpool.Pool
	tx   *TransactionManager
}

// NewPostgreSQLContentRepository creates a new PostgreSQL content repository
func NewPostgreSQLContentRepository(pool *pgxpool.Pool) *PostgreSQLContentRepository {
	return &PostgreSQLContentRepository{
		pool: pool,
		tx:   NewTransactionManager(pool),
	}
}

// GetContent loads a post and, for carousels, its children in stable order.
// Both reads run in one read-only repeatable-read transaction.
func (r *PostgreSQLContentRepository) GetContent(
	ctx context.Context,
	clientID string,
	contentType valueobject.ContentType,
	contentID string,
) (*entity.ContentItem, error) {
	if !contentType.IsSupported() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedContentType, contentType)
	}
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(contentID) == "" {
		return nil, ErrInvalidArgument
	}

	var item *entity.ContentItem
	err := r.tx.WithSnapshot(ctx, func(txCtx context.Context) error {
		var err error
		item, err = r.loadPost(txCtx, clientID, contentType, contentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *PostgreSQLContentRepository) loadPost(
	ctx context.Context,
	clientID string,
	contentType valueobject.ContentType,
	contentID string,
) (*entity.ContentItem, error) {
	query := `
		SELECT id::text, caption, media_type, media_url, thumbnail_url
		FROM instagram_posts
		WHERE id = $1 AND client_id = $2`

	qi := GetQueryInterface(ctx, r.pool)

	var (
		id                              string
		caption, mediaURL, thumbnailURL *string
		mediaTypeRaw                    *string
	)
	err := qi.QueryRow(ctx, query, contentID, clientID).Scan(&id, &caption, &mediaTypeRaw, &mediaURL, &thumbnailURL)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrContentNotFound, contentType, contentID)
		}
		return nil, WrapError(err, "fetch content")
	}

	mediaType := valueobject.ParseMediaType(deref(mediaTypeRaw))

	var children []entity.ChildMedia
	if mediaType == valueobject.MediaTypeCarouselAlbum {
		children, err = r.loadChildren(ctx, clientID, id)
		if err != nil {
			return nil, err
		}
	}

	item, err := entity.NewContentItem(
		id,
		clientID,
		mediaType,
		deref(caption),
		deref(mediaURL),
		deref(thumbnailURL),
		children,
	)
	if err != nil {
		return nil, fmt.Errorf("restore content %s: %w", id, err)
	}
	return item, nil
}

func (r *PostgreSQLContentRepository) loadChildren(
	ctx context.Context,
	clientID string,
	postID string,
) ([]entity.ChildMedia, error) {
	query := `
		SELECT id::text, media_type, media_url, thumbnail_url
		FROM instagram_post_children
		WHERE post_id = $1 AND client_id = $2
		ORDER BY id`

	qi := GetQueryInterface(ctx, r.pool)
	rows, err := qi.Query(ctx, query, postID, clientID)
	if err != nil {
		return nil, WrapError(err, "fetch carousel children")
	}
	defer rows.Close()

	var children []entity.ChildMedia
	for rows.Next() {
		var (
			id                                string
			mediaType, mediaURL, thumbnailURL *string
		)
		if err := rows.Scan(&id, &mediaType, &mediaURL, &thumbnailURL); err != nil {
			return nil, WrapError(err, "scan carousel child")
		}
		children = append(children, entity.ChildMedia{
			ID:           id,
			MediaType:    valueobject.ParseMediaType(deref(mediaType)),
			MediaURL:     deref(mediaURL),
			ThumbnailURL: deref(thumbnailURL),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(err, "iterate carousel children")
	}

	return children, nil
}

// StoreEmbedding writes the vector, model tag and embedded_at timestamp.
func (r *PostgreSQLContentRepository) StoreEmbedding(
	ctx context.Context,
	clientID string,
	contentID string,
	embedding valueobject.Embedding,
	modelTag string,
) error {
	if embedding.IsZero() {
		return fmt.Errorf("store embedding: %w: empty vector", ErrInvalidArgument)
	}

	query := `
		UPDATE instagram_posts
		SET embedding = $1, embedding_model = $2, embedded_at = NOW()
		WHERE id = $3 AND client_id = $4`

	qi := GetQueryInterface(ctx, r.pool)
	result, err := qi.Exec(ctx, query, pgvector.NewVector(embedding.Values()), modelTag, contentID, clientID)
	if err != nil {
		return WrapError(err, "store embedding")
	}
	if result.RowsAffected() == 0 {
		return WrapError(ErrNotFound, "store embedding")
	}
	return nil
}

// StoreTranscript writes the transcript columns of a video post.
func (r *PostgreSQLContentRepository) StoreTranscript(
	ctx context.Context,
	clientID string,
	contentID string,
	result outbound.TranscriptResult,
) error {
	query := `
		UPDATE instagram_posts
		SET transcript = $1, has_audio = $2, audio_language = $3
		WHERE id = $4 AND client_id = $5`

	qi := GetQueryInterface(ctx, r.pool)
	tag, err := qi.Exec(ctx, query, result.Transcript, result.HasAudio, result.Language, contentID, clientID)
	if err != nil {
		return WrapError(err, "store transcript")
	}
	if tag.RowsAffected() == 0 {
		return WrapError(ErrNotFound, "store transcript")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

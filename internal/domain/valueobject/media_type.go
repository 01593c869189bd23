package valueobject

import (
	"fmt"
	"strings"
)

// MediaType is the media_type of an Instagram post or carousel child.
type MediaType string

// Media types as stored by the Instagram ingestion.
const (
	MediaTypeImage         MediaType = "IMAGE"
	MediaTypeVideo         MediaType = "VIDEO"
	MediaTypeCarouselAlbum MediaType = "CAROUSEL_ALBUM"
)

// ParseMediaType normalises a stored media type. Unknown values are returned as-is
// so that the dispatcher can reject them with the original text.
func ParseMediaType(raw string) MediaType {
	return MediaType(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsSupported reports whether the pipeline knows how to enrich this media type.
func (m MediaType) IsSupported() bool {
	switch m {
	case MediaTypeImage, MediaTypeVideo, MediaTypeCarouselAlbum:
		return true
	default:
		return false
	}
}

func (m MediaType) String() string {
	return string(m)
}

// ContentType names the table a job's content_id points into.
type ContentType string

// ContentTypeInstagramPosts is the only content type the pipeline enriches.
const ContentTypeInstagramPosts ContentType = "instagram_posts"

// NewContentType validates a content type read from a job row.
func NewContentType(raw string) (ContentType, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("content type cannot be empty")
	}
	return ContentType(raw), nil
}

// IsSupported reports whether content of this type can be fetched.
func (c ContentType) IsSupported() bool {
	return c == ContentTypeInstagramPosts
}

func (c ContentType) String() string {
	return string(c)
}

package entity

import (
	"strings"

	"mediaenrich/internal/domain/valueobject"
)

// ChildMedia is one element of a carousel album.
type ChildMedia struct {
	ID           string
	MediaType    valueobject.MediaType
	MediaURL     string
	ThumbnailURL string
}

// EmbeddableURL returns the URL to embed for this child. Video children contribute their
// thumbnail, falling back to the media URL when no thumbnail was stored.
func (c ChildMedia) EmbeddableURL() string {
	if c.MediaType == valueobject.MediaTypeVideo {
		if url := strings.TrimSpace(c.ThumbnailURL); url != "" {
			return url
		}
	}
	return strings.TrimSpace(c.MediaURL)
}

// ContentItem is the post being enriched. It is read-only apart from the result
// columns written back by the repository.
type ContentItem struct {
	id           string
	clientID     string
	mediaType    valueobject.MediaType
	caption      string
	mediaURL     string
	thumbnailURL string
	children     []ChildMedia
}

// NewContentItem creates a ContentItem. Children must already be in stable order.
func NewContentItem(
	id string,
	clientID string,
	mediaType valueobject.MediaType,
	caption string,
	mediaURL string,
	thumbnailURL string,
	children []ChildMedia,
) (*ContentItem, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewDomainError("content id cannot be empty", CodeInvalidContent)
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, NewDomainError("content client id cannot be empty", CodeInvalidContent)
	}

	copied := make([]ChildMedia, len(children))
	copy(copied, children)

	return &ContentItem{
		id:           id,
		clientID:     clientID,
		mediaType:    mediaType,
		caption:      caption,
		mediaURL:     mediaURL,
		thumbnailURL: thumbnailURL,
		children:     copied,
	}, nil
}

func (c *ContentItem) ID() string {
	return c.id
}

func (c *ContentItem) ClientID() string {
	return c.clientID
}

func (c *ContentItem) MediaType() valueobject.MediaType {
	return c.mediaType
}

func (c *ContentItem) Caption() string {
	return c.caption
}

func (c *ContentItem) MediaURL() string {
	return c.mediaURL
}

func (c *ContentItem) ThumbnailURL() string {
	return c.thumbnailURL
}

// Children returns the carousel children in stable order.
func (c *ContentItem) Children() []ChildMedia {
	out := make([]ChildMedia, len(c.children))
	copy(out, c.children)
	return out
}

// RepresentativeMediaURL picks the carousel's first child and returns the URL to embed.
// The boolean is false when there is no child or the child has no usable URL.
func (c *ContentItem) RepresentativeMediaURL() (string, bool) {
	if len(c.children) == 0 {
		return "", false
	}
	url := c.children[0].EmbeddableURL()
	return url, url != ""
}

// VideoEmbeddingURL returns the thumbnail used to embed a video. Video files are
// never embedded, so it is empty when no thumbnail was stored.
func (c *ContentItem) VideoEmbeddingURL() string {
	return strings.TrimSpace(c.thumbnailURL)
}

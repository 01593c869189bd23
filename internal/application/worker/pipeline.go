package worker

import (
	"context"
	"fmt"
	"strings"

	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/application/service"
	"mediaenrich/internal/domain/entity"
	"mediaenrich/internal/domain/errors/domain"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"
)

// AudioExtractor is the part of service.AudioExtractor the pipeline uses.
type AudioExtractor interface {
	Download(ctx context.Context, ws *service.Workspace, url string) (string, error)
	ExtractAudio(ctx context.Context, ws *service.Workspace, videoPath string) (valueobject.AudioTrack, error)
}

// Transcriber is the part of service.Transcriber the pipeline uses.
type Transcriber interface {
	TranscribeTrack(ctx context.Context, ws *service.Workspace, track valueobject.AudioTrack) *string
}

// EmbeddingGenerator is the part of service.EmbeddingGenerator the pipeline uses.
type EmbeddingGenerator interface {
	Generate(ctx context.Context, text, mediaURL string) (valueobject.Embedding, error)
}

// PipelineConfig holds the pipeline settings.
type PipelineConfig struct {
	TempDir  string
	ModelTag string
	Language string // stored as audio_language
}

// JobOutcome describes what a successful run wrote.
type JobOutcome struct {
	MediaType     valueobject.MediaType
	Embedded      bool
	HasTranscript bool
}

// Pipeline enriches the content item behind a job, dispatching on media type.
type Pipeline struct {
	content     outbound.ContentRepository
	extractor   AudioExtractor
	transcriber Transcriber
	embeddings  EmbeddingGenerator
	config      PipelineConfig
}

// NewPipeline creates a Pipeline.
func NewPipeline(
	content outbound.ContentRepository,
	extractor AudioExtractor,
	transcriber Transcriber,
	embeddings EmbeddingGenerator,
	config PipelineConfig,
) *Pipeline {
	if config.ModelTag == "" {
		config.ModelTag = "embedding-001"
	}
	if config.Language == "" {
		config.Language = "en"
	}
	return &Pipeline{
		content:     content,
		extractor:   extractor,
		transcriber: transcriber,
		embeddings:  embeddings,
		config:      config,
	}
}

// Run processes job end to end. Media files never outlive the call.
func (p *Pipeline) Run(ctx context.Context, job *entity.EnrichmentJob) (JobOutcome, error) {
	if !job.ContentType().IsSupported() {
		return JobOutcome{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedContentType, job.ContentType())
	}

	item, err := p.content.GetContent(ctx, job.ClientID(), job.ContentType(), job.ContentID())
	if err != nil {
		return JobOutcome{}, fmt.Errorf("fetch content: %w", err)
	}

	slogger.Info(ctx, "Dispatching content", slogger.Fields{
		"content_id": item.ID(),
		"media_type": item.MediaType().String(),
	})

	switch item.MediaType() {
	case valueobject.MediaTypeImage:
		return p.runImage(ctx, item)
	case valueobject.MediaTypeVideo:
		return p.runVideo(ctx, job, item)
	case valueobject.MediaTypeCarouselAlbum:
		return p.runCarousel(ctx, item)
	default:
		return JobOutcome{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedMediaType, item.MediaType())
	}
}

func (p *Pipeline) runImage(ctx context.Context, item *entity.ContentItem) (JobOutcome, error) {
	url := strings.TrimSpace(item.MediaURL())
	if url == "" {
		return JobOutcome{}, domain.ErrMissingMediaURL
	}
	if err := p.embedAndStore(ctx, item, item.Caption(), url); err != nil {
		return JobOutcome{}, err
	}
	return JobOutcome{MediaType: valueobject.MediaTypeImage, Embedded: true}, nil
}

func (p *Pipeline) runVideo(ctx context.Context, job *entity.EnrichmentJob, item *entity.ContentItem) (JobOutcome, error) {
	ws, err := service.NewWorkspace(p.config.TempDir, job.ID())
	if err != nil {
		return JobOutcome{}, err
	}
	defer func() {
		if cleanupErr := ws.Cleanup(); cleanupErr != nil {
			slogger.Warn(ctx, "Failed to clean up job workspace", slogger.Fields{
				"dir":   ws.Dir(),
				"error": cleanupErr.Error(),
			})
		}
	}()

	videoPath, err := p.extractor.Download(ctx, ws, strings.TrimSpace(item.MediaURL()))
	if err != nil {
		return JobOutcome{}, err
	}

	track, err := p.extractor.ExtractAudio(ctx, ws, videoPath)
	if err != nil {
		return JobOutcome{}, err
	}

	transcript := p.transcriber.TranscribeTrack(ctx, ws, track)
	err = p.content.StoreTranscript(ctx, item.ClientID(), item.ID(), outbound.TranscriptResult{
		Transcript: transcript,
		HasAudio:   track.Present(),
		Language:   p.config.Language,
	})
	if err != nil {
		return JobOutcome{}, fmt.Errorf("store transcript: %w", err)
	}

	text := item.Caption()
	if transcript != nil {
		text = strings.TrimSpace(text + " " + *transcript)
	}

	url := item.VideoEmbeddingURL()
	if url == "" {
		return JobOutcome{}, domain.ErrMissingMediaURL
	}
	if err := p.embedAndStore(ctx, item, text, url); err != nil {
		return JobOutcome{}, err
	}

	return JobOutcome{
		MediaType:     valueobject.MediaTypeVideo,
		Embedded:      true,
		HasTranscript: transcript != nil,
	}, nil
}

func (p *Pipeline) runCarousel(ctx context.Context, item *entity.ContentItem) (JobOutcome, error) {
	url, ok := item.RepresentativeMediaURL()
	if !ok {
		slogger.Warn(ctx, "Carousel has no usable child media, skipping embedding", slogger.Fields{
			"children": len(item.Children()),
		})
		return JobOutcome{MediaType: valueobject.MediaTypeCarouselAlbum}, nil
	}

	if err := p.embedAndStore(ctx, item, item.Caption(), url); err != nil {
		return JobOutcome{}, err
	}
	return JobOutcome{MediaType: valueobject.MediaTypeCarouselAlbum, Embedded: true}, nil
}

func (p *Pipeline) embedAndStore(ctx context.Context, item *entity.ContentItem, text, url string) error {
	embedding, err := p.embeddings.Generate(ctx, text, url)
	if err != nil {
		return err
	}
	if err := p.content.StoreEmbedding(ctx, item.ClientID(), item.ID(), embedding, p.config.ModelTag); err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

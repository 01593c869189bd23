package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"mediaenrich/internal/domain/entity"
	"mediaenrich/internal/domain/errors/domain"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"
)

type rescheduleCall struct {
	JobID    int64
	Message  string
	Attempts int
	Delay    time.Duration
}

type failCall struct {
	JobID    int64
	Message  string
	Attempts int
}

// fakeJobRepository is an in-memory queue.
type fakeJobRepository struct {
	mu          sync.Mutex
	pending     []*entity.EnrichmentJob
	claimErr    error
	markErr     error
	completeErr error
	completed   []int64
	failed      []failCall
	rescheduled []rescheduleCall
}

func (r *fakeJobRepository) add(job *entity.EnrichmentJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, job)
}

func (r *fakeJobRepository) ClaimNext(_ context.Context, clientID string, maxAttempts int) (*entity.EnrichmentJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	for i, job := range r.pending {
		if job.ClientID() == clientID && job.Attempts() < maxAttempts {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return entity.RestoreEnrichmentJob(
				job.ID(), job.ClientID(), job.ContentID(), job.ContentType(),
				valueobject.JobStatusProcessing, job.Attempts(), job.ErrorMessage(),
				job.CreatedAt(), nil, nil, job.UpdatedAt(),
			), nil
		}
	}
	return nil, nil //nolint:nilnil // no eligible job
}

func (r *fakeJobRepository) MarkCompleted(_ context.Context, jobID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	if r.markErr != nil {
		return r.markErr
	}
	r.completed = append(r.completed, jobID)
	return nil
}

func (r *fakeJobRepository) MarkFailed(_ context.Context, jobID int64, message string, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	r.failed = append(r.failed, failCall{JobID: jobID, Message: message, Attempts: attempts})
	return nil
}

func (r *fakeJobRepository) Reschedule(_ context.Context, jobID int64, message string, attempts int, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	r.rescheduled = append(r.rescheduled, rescheduleCall{JobID: jobID, Message: message, Attempts: attempts, Delay: delay})
	return nil
}

func (r *fakeJobRepository) completedIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.completed...)
}

type storedEmbedding struct {
	ContentID string
	Dimension int
	ModelTag  string
}

// fakeContentRepository serves items by id and records writes.
type fakeContentRepository struct {
	mu          sync.Mutex
	items       map[string]*entity.ContentItem
	embeddings  []storedEmbedding
	transcripts []outbound.TranscriptResult
}

func newFakeContentRepository(items ...*entity.ContentItem) *fakeContentRepository {
	r := &fakeContentRepository{items: make(map[string]*entity.ContentItem)}
	for _, item := range items {
		r.items[item.ID()] = item
	}
	return r
}

func (r *fakeContentRepository) GetContent(
	_ context.Context,
	clientID string,
	contentType valueobject.ContentType,
	contentID string,
) (*entity.ContentItem, error) {
	if !contentType.IsSupported() {
		return nil, domain.ErrUnsupportedContentType
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[contentID]
	if !ok || item.ClientID() != clientID {
		return nil, domain.ErrContentNotFound
	}
	return item, nil
}

func (r *fakeContentRepository) StoreEmbedding(
	_ context.Context,
	_ string,
	contentID string,
	embedding valueobject.Embedding,
	modelTag string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings = append(r.embeddings, storedEmbedding{ContentID: contentID, Dimension: embedding.Dimension(), ModelTag: modelTag})
	return nil
}

func (r *fakeContentRepository) StoreTranscript(_ context.Context, _ string, _ string, result outbound.TranscriptResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, result)
	return nil
}

// fakeFetcher serves JPEG payloads and writes downloaded videos to disk.
type fakeFetcher struct {
	mu          sync.Mutex
	fetched     []string
	downloadErr error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ int64) (*outbound.MediaPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	return &outbound.MediaPayload{Data: []byte("jpeg:" + url), MIMEType: "image/jpeg"}, nil
}

func (f *fakeFetcher) DownloadToFile(_ context.Context, _ string, destPath string, _ int64) (int64, error) {
	if f.downloadErr != nil {
		return 0, f.downloadErr
	}
	return 5, os.WriteFile(destPath, []byte("video"), 0o600)
}

func (f *fakeFetcher) fetchedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// fakeProcessor reports a fixed audio duration and writes chunk files whose
// contents name the chunk index.
type fakeProcessor struct {
	hasAudio   bool
	duration   time.Duration
	extractErr error
}

func (p *fakeProcessor) Probe(_ context.Context, path string) (*outbound.MediaProbe, error) {
	if strings.HasSuffix(path, ".mp4") {
		probe := &outbound.MediaProbe{VideoStreams: 1, Duration: p.duration}
		if p.hasAudio {
			probe.AudioStreams = 1
		}
		return probe, nil
	}
	return &outbound.MediaProbe{AudioStreams: 1, Duration: p.duration}, nil
}

func (p *fakeProcessor) ExtractAudio(_ context.Context, _ string, audioPath string) error {
	if p.extractErr != nil {
		return p.extractErr
	}
	return os.WriteFile(audioPath, []byte("full"), 0o600)
}

func (p *fakeProcessor) ExtractSegment(_ context.Context, _ string, segmentPath string, offset, _ time.Duration) error {
	index := int(offset / time.Minute)
	return os.WriteFile(segmentPath, []byte{byte('0' + index)}, 0o600)
}

// fakeRecognizer maps audio contents to transcripts; missing keys fail.
type fakeRecognizer struct {
	texts map[string]string
}

func (r *fakeRecognizer) Recognize(_ context.Context, audio []byte, _ string) (string, error) {
	text, ok := r.texts[string(audio)]
	if !ok {
		return "", errors.New("speech service unavailable")
	}
	return text, nil
}

// fakeEmbedder returns vectors of a fixed length and records request texts.
type fakeEmbedder struct {
	mu        sync.Mutex
	dimension int
	texts     []string
}

func (e *fakeEmbedder) Embed(_ context.Context, req outbound.MultimodalEmbeddingRequest) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.texts = append(e.texts, req.Text)
	return make([]float32, e.dimension), nil
}

// fakePublisher records events.
type fakePublisher struct {
	mu     sync.Mutex
	events []outbound.JobEvent
}

func (p *fakePublisher) PublishJobEvent(_ context.Context, event outbound.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) recorded() []outbound.JobEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]outbound.JobEvent(nil), p.events...)
}

// panickingRunner exercises panic recovery.
type panickingRunner struct{}

func (panickingRunner) Run(context.Context, *entity.EnrichmentJob) (JobOutcome, error) {
	panic("nil map")
}

package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"mediaenrich/internal/application/service"
	"mediaenrich/internal/domain/entity"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const testClientID = "c1"

type harness struct {
	jobs       *fakeJobRepository
	content    *fakeContentRepository
	fetcher    *fakeFetcher
	processor  *fakeProcessor
	recognizer *fakeRecognizer
	embedder   *fakeEmbedder
	publisher  *fakePublisher
	reader     *sdkmetric.ManualReader
	tempDir    string
	worker     *EnrichmentWorker
}

func newHarness(t *testing.T, items []*entity.ContentItem, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		jobs:       &fakeJobRepository{},
		content:    newFakeContentRepository(items...),
		fetcher:    &fakeFetcher{},
		processor:  &fakeProcessor{},
		recognizer: &fakeRecognizer{texts: map[string]string{}},
		embedder:   &fakeEmbedder{dimension: valueobject.MultimodalEmbeddingDimension},
		publisher:  &fakePublisher{},
		reader:     sdkmetric.NewManualReader(),
		tempDir:    t.TempDir(),
	}

	extractor := service.NewAudioExtractor(h.fetcher, h.processor, service.AudioExtractorConfig{ChunkConcurrency: 2})
	transcriber := service.NewTranscriber(h.recognizer, extractor, service.TranscriberConfig{
		Language:      "en",
		Threshold:     60 * time.Second,
		ChunkDuration: 60 * time.Second,
		Concurrency:   2,
	})
	generator := service.NewEmbeddingGenerator(h.embedder, h.fetcher, service.EmbeddingGeneratorConfig{
		Dimension: valueobject.MultimodalEmbeddingDimension,
	})
	pipeline := NewPipeline(h.content, extractor, transcriber, generator, PipelineConfig{
		TempDir:  h.tempDir,
		ModelTag: "embedding-001",
		Language: "en",
	})

	policy, err := valueobject.NewRetryPolicyFromMinutes(3, []int{5, 10, 20})
	require.NoError(t, err)
	config := Config{
		ClientID:          testClientID,
		PollInterval:      time.Hour,
		MaxErrorBackoff:   4 * time.Hour,
		JobTimeout:        time.Minute,
		ShutdownTimeout:   5 * time.Second,
		FailFastPermanent: true,
		RetryPolicy:       policy,
	}
	if mutate != nil {
		mutate(&config)
	}

	provider, err := NewMeterProvider("mediaenrich-test", "test", h.reader)
	require.NoError(t, err)
	metrics, err := NewMetrics(provider, testClientID)
	require.NoError(t, err)

	h.worker, err = NewEnrichmentWorker(h.jobs, pipeline, h.publisher, metrics, config)
	require.NoError(t, err)
	return h
}

func (h *harness) runOnce(t *testing.T) {
	t.Helper()
	processed, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
}

func (h *harness) assertTempDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "job workspace must be removed")
}

func newJob(id int64, contentID string, attempts int) *entity.EnrichmentJob {
	now := time.Now()
	return entity.RestoreEnrichmentJob(
		id, testClientID, contentID, valueobject.ContentTypeInstagramPosts,
		valueobject.JobStatusPending, attempts, nil, now, nil, nil, now,
	)
}

func mustItem(
	t *testing.T,
	id string,
	mediaType valueobject.MediaType,
	caption, mediaURL, thumbnailURL string,
	children ...entity.ChildMedia,
) *entity.ContentItem {
	t.Helper()
	item, err := entity.NewContentItem(id, testClientID, mediaType, caption, mediaURL, thumbnailURL, children)
	require.NoError(t, err)
	return item
}

func TestRunOnce_NoJob(t *testing.T) {
	h := newHarness(t, nil, nil)

	processed, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRunOnce_ClaimError(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.jobs.claimErr = errors.New("connection refused")

	processed, err := h.worker.RunOnce(context.Background())
	assert.False(t, processed)
	assert.ErrorContains(t, err, "claim next job: connection refused")
}

func TestRunOnce_ImageCompletes(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "p1", valueobject.MediaTypeImage, "Beach day", "https://cdn/p1.jpg", ""),
	}, nil)
	h.jobs.add(newJob(1, "p1", 0))

	h.runOnce(t)

	assert.Equal(t, []int64{1}, h.jobs.completedIDs())
	require.Len(t, h.content.embeddings, 1)
	assert.Equal(t, storedEmbedding{ContentID: "p1", Dimension: 1408, ModelTag: "embedding-001"}, h.content.embeddings[0])
	assert.Equal(t, []string{"https://cdn/p1.jpg"}, h.fetcher.fetchedURLs())
	assert.Equal(t, []string{"Beach day"}, h.embedder.texts)

	events := h.publisher.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, outbound.JobEventCompleted, events[0].Type)
	assert.True(t, events[0].Embedded)
	assert.NotEmpty(t, events[0].CorrelationID)

	health := h.worker.Health()
	assert.Equal(t, int64(1), health.JobsCompleted)
}

func TestRunOnce_VideoChunkedTranscriptWithFailedChunk(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "v1", valueobject.MediaTypeVideo, "Sunset", "https://cdn/v1.mp4", "https://cdn/v1.jpg"),
	}, nil)
	h.processor.hasAudio = true
	h.processor.duration = 130 * time.Second
	// Chunk files contain their index; chunk 1 has no transcript and fails.
	h.recognizer.texts = map[string]string{"0": "c1", "2": "c3"}
	h.jobs.add(newJob(2, "v1", 0))

	h.runOnce(t)

	assert.Equal(t, []int64{2}, h.jobs.completedIDs())
	require.Len(t, h.content.transcripts, 1)
	stored := h.content.transcripts[0]
	require.NotNil(t, stored.Transcript)
	assert.Equal(t, "c1 c3", *stored.Transcript)
	assert.True(t, stored.HasAudio)
	assert.Equal(t, "en", stored.Language)

	assert.Equal(t, []string{"Sunset c1 c3"}, h.embedder.texts)
	assert.Equal(t, []string{"https://cdn/v1.jpg"}, h.fetcher.fetchedURLs())
	require.Len(t, h.content.embeddings, 1)
	h.assertTempDirEmpty(t)

	events := h.publisher.recorded()
	require.Len(t, events, 1)
	assert.True(t, events[0].HasTranscript)
}

func TestRunOnce_ShortVideoSingleShot(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "v2", valueobject.MediaTypeVideo, "", "https://cdn/v2.mp4", "https://cdn/v2.jpg"),
	}, nil)
	h.processor.hasAudio = true
	h.processor.duration = 30 * time.Second
	h.recognizer.texts = map[string]string{"full": "hello"}
	h.jobs.add(newJob(3, "v2", 0))

	h.runOnce(t)

	assert.Equal(t, []string{"hello"}, h.embedder.texts)
	assert.Equal(t, []string{"https://cdn/v2.jpg"}, h.fetcher.fetchedURLs())
	assert.Equal(t, []int64{3}, h.jobs.completedIDs())
	h.assertTempDirEmpty(t)
}

func TestRunOnce_VideoWithoutThumbnailIsNeverEmbeddedFromVideo(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "v5", valueobject.MediaTypeVideo, "cap", "https://cdn/v5.mp4", ""),
	}, nil)
	h.processor.hasAudio = false
	h.jobs.add(newJob(18, "v5", 0))

	h.runOnce(t)

	assert.Empty(t, h.fetcher.fetchedURLs())
	assert.Empty(t, h.embedder.texts)
	assert.Empty(t, h.content.embeddings)
	require.Len(t, h.jobs.failed, 1)
	assert.Contains(t, h.jobs.failed[0].Message, "content has no media URL")
	h.assertTempDirEmpty(t)
}

func TestRunOnce_SilentVideo(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "v3", valueobject.MediaTypeVideo, "No sound", "https://cdn/v3.mp4", "https://cdn/v3.jpg"),
	}, nil)
	h.processor.hasAudio = false
	h.jobs.add(newJob(4, "v3", 0))

	h.runOnce(t)

	require.Len(t, h.content.transcripts, 1)
	assert.Nil(t, h.content.transcripts[0].Transcript)
	assert.False(t, h.content.transcripts[0].HasAudio)
	assert.Equal(t, []string{"No sound"}, h.embedder.texts)
	assert.Equal(t, []int64{4}, h.jobs.completedIDs())
}

func TestRunOnce_ExtractionFailureCleansWorkspaceAndRetries(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "v4", valueobject.MediaTypeVideo, "x", "https://cdn/v4.mp4", "https://cdn/v4.jpg"),
	}, nil)
	h.processor.hasAudio = true
	h.processor.extractErr = errors.New("ffmpeg failed: exit status 1")
	h.jobs.add(newJob(5, "v4", 0))

	h.runOnce(t)

	require.Len(t, h.jobs.rescheduled, 1)
	call := h.jobs.rescheduled[0]
	assert.Equal(t, 1, call.Attempts)
	assert.Equal(t, 5*time.Minute, call.Delay)
	assert.Contains(t, call.Message, "ffmpeg failed")
	assert.Empty(t, h.content.embeddings)
	h.assertTempDirEmpty(t)
}

func TestRunOnce_DimensionMismatchIsRetriedAndNeverStored(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "p2", valueobject.MediaTypeImage, "cap", "https://cdn/p2.jpg", ""),
	}, nil)
	h.embedder.dimension = 512
	h.jobs.add(newJob(6, "p2", 0))

	h.runOnce(t)

	assert.Empty(t, h.content.embeddings)
	require.Len(t, h.jobs.rescheduled, 1)
	assert.Contains(t, h.jobs.rescheduled[0].Message, "dimension mismatch")
	assert.Equal(t, 1, h.jobs.rescheduled[0].Attempts)

	events := h.publisher.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, outbound.JobEventRetryScheduled, events[0].Type)
	assert.Equal(t, 5*time.Minute, events[0].RetryDelay)
}

func TestRunOnce_LastAttemptFails(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "p3", valueobject.MediaTypeImage, "cap", "https://cdn/p3.jpg", ""),
	}, nil)
	h.embedder.dimension = 512
	h.jobs.add(newJob(7, "p3", 2))

	h.runOnce(t)

	assert.Empty(t, h.jobs.rescheduled)
	require.Len(t, h.jobs.failed, 1)
	assert.Equal(t, 3, h.jobs.failed[0].Attempts)
	assert.Contains(t, h.jobs.failed[0].Message, "dimension mismatch")
	assert.Equal(t, int64(1), h.worker.Health().JobsFailed)
}

func TestRunOnce_BackoffClampsToLastEntry(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "p4", valueobject.MediaTypeImage, "cap", "https://cdn/p4.jpg", ""),
	}, func(c *Config) {
		policy, err := valueobject.NewRetryPolicyFromMinutes(10, []int{5, 10, 20})
		require.NoError(t, err)
		c.RetryPolicy = policy
	})
	h.embedder.dimension = 1
	h.jobs.add(newJob(8, "p4", 5))

	h.runOnce(t)

	require.Len(t, h.jobs.rescheduled, 1)
	assert.Equal(t, 6, h.jobs.rescheduled[0].Attempts)
	assert.Equal(t, 20*time.Minute, h.jobs.rescheduled[0].Delay)
}

func TestRunOnce_PermanentErrors(t *testing.T) {
	items := []*entity.ContentItem{
		mustItem(t, "s1", valueobject.MediaType("STORY"), "cap", "https://cdn/s1.jpg", ""),
		mustItem(t, "p5", valueobject.MediaTypeImage, "cap", "", ""),
	}

	tests := []struct {
		name      string
		contentID string
		wantMsg   string
	}{
		{"unsupported media type", "s1", "unsupported media type"},
		{"missing media url", "p5", "content has no media URL"},
		{"missing content", "gone", "content not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name+" fails fast", func(t *testing.T) {
			h := newHarness(t, items, nil)
			h.jobs.add(newJob(9, tt.contentID, 0))

			h.runOnce(t)

			require.Len(t, h.jobs.failed, 1)
			assert.Equal(t, 1, h.jobs.failed[0].Attempts)
			assert.Contains(t, h.jobs.failed[0].Message, tt.wantMsg)
			assert.Empty(t, h.jobs.rescheduled)
		})

		t.Run(tt.name+" retried when fail fast is off", func(t *testing.T) {
			h := newHarness(t, items, func(c *Config) { c.FailFastPermanent = false })
			h.jobs.add(newJob(9, tt.contentID, 0))

			h.runOnce(t)

			assert.Empty(t, h.jobs.failed)
			require.Len(t, h.jobs.rescheduled, 1)
			assert.Contains(t, h.jobs.rescheduled[0].Message, tt.wantMsg)
		})
	}
}

func TestRunOnce_UnsupportedContentType(t *testing.T) {
	h := newHarness(t, nil, nil)
	now := time.Now()
	h.jobs.add(entity.RestoreEnrichmentJob(
		10, testClientID, "t1", valueobject.ContentType("tiktok_videos"),
		valueobject.JobStatusPending, 0, nil, now, nil, nil, now,
	))

	h.runOnce(t)

	require.Len(t, h.jobs.failed, 1)
	assert.Contains(t, h.jobs.failed[0].Message, "unsupported content type")
}

func TestRunOnce_Carousel(t *testing.T) {
	t.Run("first child video uses its thumbnail", func(t *testing.T) {
		h := newHarness(t, []*entity.ContentItem{
			mustItem(t, "c1", valueobject.MediaTypeCarouselAlbum, "Album", "", "",
				entity.ChildMedia{ID: "a", MediaType: valueobject.MediaTypeVideo, MediaURL: "https://cdn/a.mp4", ThumbnailURL: "https://cdn/a.jpg"},
				entity.ChildMedia{ID: "b", MediaType: valueobject.MediaTypeImage, MediaURL: "https://cdn/b.jpg"},
			),
		}, nil)
		h.jobs.add(newJob(11, "c1", 0))

		h.runOnce(t)

		assert.Equal(t, []string{"https://cdn/a.jpg"}, h.fetcher.fetchedURLs())
		assert.Len(t, h.content.embeddings, 1)
		assert.Equal(t, []int64{11}, h.jobs.completedIDs())
	})

	t.Run("no children completes without embedding", func(t *testing.T) {
		h := newHarness(t, []*entity.ContentItem{
			mustItem(t, "c2", valueobject.MediaTypeCarouselAlbum, "Empty album", "", ""),
		}, nil)
		h.jobs.add(newJob(12, "c2", 0))

		h.runOnce(t)

		assert.Empty(t, h.content.embeddings)
		assert.Equal(t, []int64{12}, h.jobs.completedIDs())
		events := h.publisher.recorded()
		require.Len(t, events, 1)
		assert.False(t, events[0].Embedded)
	})
}

func TestRunOnce_CompletionWriteFailureReschedules(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "p6", valueobject.MediaTypeImage, "cap", "https://cdn/p6.jpg", ""),
	}, nil)
	h.jobs.completeErr = errors.New("connection reset")
	h.jobs.add(newJob(13, "p6", 0))

	h.runOnce(t)

	assert.Empty(t, h.jobs.completedIDs())
	require.Len(t, h.jobs.rescheduled, 1)
	call := h.jobs.rescheduled[0]
	assert.Equal(t, int64(13), call.JobID)
	assert.Equal(t, 1, call.Attempts)
	assert.Equal(t, 5*time.Minute, call.Delay)
	assert.Contains(t, call.Message, "mark job 13 completed: connection reset")

	events := h.publisher.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, outbound.JobEventRetryScheduled, events[0].Type)
}

func TestRunOnce_CompletionWriteFailureOnLastAttemptFails(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "p6", valueobject.MediaTypeImage, "cap", "https://cdn/p6.jpg", ""),
	}, nil)
	h.jobs.completeErr = errors.New("connection reset")
	h.jobs.add(newJob(13, "p6", 2))

	h.runOnce(t)

	require.Len(t, h.jobs.failed, 1)
	assert.Equal(t, 3, h.jobs.failed[0].Attempts)
	assert.Empty(t, h.jobs.rescheduled)
}

func TestRunOnce_OutcomeWriteFailureIsLoopError(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "p6", valueobject.MediaTypeImage, "cap", "https://cdn/p6.jpg", ""),
	}, nil)
	h.jobs.markErr = errors.New("connection reset")
	h.jobs.add(newJob(13, "p6", 0))

	processed, err := h.worker.RunOnce(context.Background())
	assert.True(t, processed)
	assert.ErrorContains(t, err, "reschedule job 13: connection reset")
	assert.Empty(t, h.publisher.recorded())
}

func TestRunOnce_RecoversFromPanic(t *testing.T) {
	jobs := &fakeJobRepository{}
	jobs.add(newJob(14, "p7", 0))
	policy, err := valueobject.NewRetryPolicyFromMinutes(3, []int{5})
	require.NoError(t, err)

	w, err := NewEnrichmentWorker(jobs, panickingRunner{}, nil, nil, Config{
		ClientID:     testClientID,
		PollInterval: time.Second,
		RetryPolicy:  policy,
	})
	require.NoError(t, err)

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	require.Len(t, jobs.rescheduled, 1)
	assert.Contains(t, jobs.rescheduled[0].Message, "panic while processing job: nil map")
}

func TestWorker_WakeProcessesNewJob(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "p8", valueobject.MediaTypeImage, "cap", "https://cdn/p8.jpg", ""),
	}, nil)

	ctx := context.Background()
	require.NoError(t, h.worker.Start(ctx))
	assert.Error(t, h.worker.Start(ctx))
	assert.Eventually(t, func() bool { return h.worker.Health().IsRunning }, time.Second, 10*time.Millisecond)

	// The poll interval is an hour, so only a wake-up can get this job claimed.
	h.jobs.add(newJob(15, "p8", 0))
	h.worker.Wake()

	assert.Eventually(t, func() bool {
		return len(h.jobs.completedIDs()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, h.worker.Stop(ctx))
	assert.False(t, h.worker.Health().IsRunning)
	assert.Error(t, h.worker.Start(ctx))
}

func TestWorker_LoopErrorsAreTracked(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.jobs.claimErr = errors.New("database unavailable")

	ctx := context.Background()
	require.NoError(t, h.worker.Start(ctx))

	assert.Eventually(t, func() bool {
		return h.worker.Health().ConsecutiveErrors == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, h.worker.Health().LastError, "database unavailable")

	require.NoError(t, h.worker.Stop(ctx))
}

func TestLoopBackoff(t *testing.T) {
	b := newLoopBackoff(time.Second, 10*time.Second)

	got := make([]time.Duration, 0, 5)
	for range 5 {
		got = append(got, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second,
	}, got)

	b.Reset()
	assert.Equal(t, 2*time.Second, b.NextBackOff())
}

func TestNewEnrichmentWorker_Validation(t *testing.T) {
	policy, err := valueobject.NewRetryPolicyFromMinutes(3, []int{5})
	require.NoError(t, err)
	valid := Config{ClientID: "c1", PollInterval: time.Second, RetryPolicy: policy}
	jobs := &fakeJobRepository{}

	_, err = NewEnrichmentWorker(nil, panickingRunner{}, nil, nil, valid)
	assert.EqualError(t, err, "job repository cannot be nil")

	_, err = NewEnrichmentWorker(jobs, nil, nil, nil, valid)
	assert.EqualError(t, err, "job runner cannot be nil")

	noClient := valid
	noClient.ClientID = ""
	_, err = NewEnrichmentWorker(jobs, panickingRunner{}, nil, nil, noClient)
	assert.EqualError(t, err, "client ID cannot be empty")

	noPoll := valid
	noPoll.PollInterval = 0
	_, err = NewEnrichmentWorker(jobs, panickingRunner{}, nil, nil, noPoll)
	assert.EqualError(t, err, "poll interval must be positive")

	noPolicy := valid
	noPolicy.RetryPolicy = valueobject.RetryPolicy{}
	_, err = NewEnrichmentWorker(jobs, panickingRunner{}, nil, nil, noPolicy)
	assert.EqualError(t, err, "retry policy is required")
}

func TestMetrics_RecordedPerOutcome(t *testing.T) {
	h := newHarness(t, []*entity.ContentItem{
		mustItem(t, "p9", valueobject.MediaTypeImage, "cap", "https://cdn/p9.jpg", ""),
		mustItem(t, "p10", valueobject.MediaTypeImage, "cap", "", ""),
	}, nil)
	h.jobs.add(newJob(16, "p9", 0))
	h.jobs.add(newJob(17, "p10", 0))

	h.runOnce(t)
	h.runOnce(t)

	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	totals := SummarizeMetrics(rm)

	assert.Equal(t, int64(2), totals[JobsClaimedCounterName])
	assert.Equal(t, int64(2), totals[JobOutcomesCounterName])
	assert.Equal(t, int64(2), totals[JobDurationHistogramName])
	assert.Zero(t, totals[LoopErrorsCounterName])
}

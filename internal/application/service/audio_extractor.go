package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/domain/errors/domain"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"

	"golang.org/x/sync/errgroup"
)

// AudioExtractorConfig bounds video downloads and chunk fan-out.
type AudioExtractorConfig struct {
	MaxVideoBytes    int64 // 0 = unlimited
	DownloadTimeout  time.Duration
	ChunkConcurrency int
}

// AudioExtractor turns a remote video into speech-ready audio files.
type AudioExtractor struct {
	fetcher   outbound.MediaFetcher
	processor outbound.AudioProcessor
	config    AudioExtractorConfig
}

// NewAudioExtractor creates an AudioExtractor.
func NewAudioExtractor(
	fetcher outbound.MediaFetcher,
	processor outbound.AudioProcessor,
	config AudioExtractorConfig,
) *AudioExtractor {
	if config.DownloadTimeout <= 0 {
		config.DownloadTimeout = 30 * time.Second
	}
	if config.ChunkConcurrency < 1 {
		config.ChunkConcurrency = 1
	}
	return &AudioExtractor{fetcher: fetcher, processor: processor, config: config}
}

// Download streams the video at url into the workspace and returns its path.
func (a *AudioExtractor) Download(ctx context.Context, ws *Workspace, url string) (string, error) {
	if url == "" {
		return "", domain.ErrMissingMediaURL
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.DownloadTimeout)
	defer cancel()

	path := ws.NewFile("video", ".mp4")
	start := time.Now()
	size, err := a.fetcher.DownloadToFile(ctx, url, path, a.config.MaxVideoBytes)
	if err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}

	slogger.Info(ctx, "Video downloaded", slogger.Fields{
		"size_bytes":  size,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return path, nil
}

// ProbeHasAudio reports whether the file has an audio stream.
func (a *AudioExtractor) ProbeHasAudio(ctx context.Context, path string) (bool, error) {
	probe, err := a.processor.Probe(ctx, path)
	if err != nil {
		return false, fmt.Errorf("probe media: %w", err)
	}
	return probe.HasAudio(), nil
}

// ExtractAudio converts the video's audio to mono 16kHz PCM16 WAV. A video
// without audio yields valueobject.NoAudioTrack and no error.
func (a *AudioExtractor) ExtractAudio(ctx context.Context, ws *Workspace, videoPath string) (valueobject.AudioTrack, error) {
	hasAudio, err := a.ProbeHasAudio(ctx, videoPath)
	if err != nil {
		return valueobject.AudioTrack{}, err
	}
	if !hasAudio {
		slogger.Info(ctx, "Video has no audio track", nil)
		return valueobject.NoAudioTrack(), nil
	}

	audioPath := ws.NewFile("audio", ".wav")
	if err := a.processor.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return valueobject.AudioTrack{}, fmt.Errorf("extract audio: %w", err)
	}

	probe, err := a.processor.Probe(ctx, audioPath)
	if err != nil {
		return valueobject.AudioTrack{}, fmt.Errorf("probe extracted audio: %w", err)
	}

	slogger.Info(ctx, "Audio extracted", slogger.Fields{"audio_duration": probe.Duration.String()})
	return valueobject.HasAudio(audioPath, probe.Duration), nil
}

// SplitIntoChunks cuts the track into ceil(duration/chunk) segments, returned in
// order. On error every segment already written is removed.
func (a *AudioExtractor) SplitIntoChunks(
	ctx context.Context,
	ws *Workspace,
	track valueobject.AudioTrack,
	chunk time.Duration,
) ([]string, error) {
	if !track.Present() {
		return nil, errors.New("cannot split an absent audio track")
	}
	if chunk <= 0 {
		return nil, fmt.Errorf("%w: chunk duration must be positive", domain.ErrInvalidInput)
	}

	count := track.ChunkCount(chunk)
	paths := make([]string, count)
	for i := range paths {
		paths[i] = ws.NewFile(fmt.Sprintf("audio_chunk%d", i), ".wav")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.ChunkConcurrency)
	for i, path := range paths {
		offset := time.Duration(i) * chunk
		g.Go(func() error {
			if err := a.processor.ExtractSegment(gctx, track.Path, path, offset, chunk); err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, path := range paths {
			_ = ws.Remove(path)
		}
		return nil, fmt.Errorf("split audio into chunks: %w", err)
	}

	slogger.Info(ctx, "Audio split into chunks", slogger.Fields{
		"chunk_count":    count,
		"chunk_duration": chunk.String(),
	})
	return paths, nil
}

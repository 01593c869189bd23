package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"

	"github.com/panjf2000/ants/v2"
)

const transcriptPreviewLength = 100

// ChunkSplitter cuts an audio track into ordered segment files.
type ChunkSplitter interface {
	SplitIntoChunks(ctx context.Context, ws *Workspace, track valueobject.AudioTrack, chunk time.Duration) ([]string, error)
}

// TranscriberConfig controls when audio is chunked.
type TranscriberConfig struct {
	Language      string
	Threshold     time.Duration // tracks longer than this are chunked
	ChunkDuration time.Duration
	Concurrency   int
}

// Transcriber turns extracted audio into text.
type Transcriber struct {
	recognizer outbound.SpeechRecognizer
	splitter   ChunkSplitter
	config     TranscriberConfig
}

// NewTranscriber creates a Transcriber.
func NewTranscriber(recognizer outbound.SpeechRecognizer, splitter ChunkSplitter, config TranscriberConfig) *Transcriber {
	if config.Language == "" {
		config.Language = "en"
	}
	if config.Threshold <= 0 {
		config.Threshold = 60 * time.Second
	}
	if config.ChunkDuration <= 0 {
		config.ChunkDuration = 60 * time.Second
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Transcriber{recognizer: recognizer, splitter: splitter, config: config}
}

// Language returns the language transcripts are recognised in.
func (t *Transcriber) Language() string {
	return t.config.Language
}

// Transcribe recognises one audio file in a single call.
func (t *Transcriber) Transcribe(ctx context.Context, path, language string) (string, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	text, err := t.recognizer.Recognize(ctx, audio, speechLanguageCode(language))
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// TranscribeChunks recognises each chunk independently. Failed chunks are
// logged and skipped; the remaining texts are joined in chunk order.
func (t *Transcriber) TranscribeChunks(ctx context.Context, paths []string, language string) string {
	results := make([]string, len(paths))

	pool, err := ants.NewPool(t.config.Concurrency)
	if err != nil {
		slogger.Warn(ctx, "Falling back to sequential chunk transcription", slogger.Fields{"error": err.Error()})
		for i, path := range paths {
			results[i] = t.transcribeChunk(ctx, i, len(paths), path, language)
		}
		return joinTranscripts(results)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = t.transcribeChunk(ctx, i, len(paths), path, language)
		})
		if submitErr != nil {
			wg.Done()
			slogger.Warn(ctx, "Chunk transcription not scheduled", slogger.Fields{
				"chunk": i + 1,
				"error": submitErr.Error(),
			})
		}
	}
	wg.Wait()

	return joinTranscripts(results)
}

func (t *Transcriber) transcribeChunk(ctx context.Context, index, total int, path, language string) string {
	text, err := t.Transcribe(ctx, path, language)
	if err != nil {
		slogger.Warn(ctx, "Chunk transcription failed, skipping", slogger.Fields{
			"chunk": index + 1,
			"total": total,
			"error": err.Error(),
		})
		return ""
	}
	slogger.Debug(ctx, "Chunk transcribed", slogger.Fields{
		"chunk":  index + 1,
		"total":  total,
		"length": len(text),
	})
	return text
}

// TranscribeTrack produces the transcript for a track, chunking long audio.
// It returns nil for silent tracks and when transcription degrades to nothing.
func (t *Transcriber) TranscribeTrack(ctx context.Context, ws *Workspace, track valueobject.AudioTrack) *string {
	if !track.Present() {
		return nil
	}

	var text string
	if track.Duration <= t.config.Threshold {
		single, err := t.Transcribe(ctx, track.Path, t.config.Language)
		if err != nil {
			slogger.Warn(ctx, "Transcription failed, continuing without transcript", slogger.Fields{
				"error": err.Error(),
			})
			return nil
		}
		text = single
	} else {
		chunks, err := t.splitter.SplitIntoChunks(ctx, ws, track, t.config.ChunkDuration)
		if err != nil {
			slogger.Warn(ctx, "Audio chunking failed, continuing without transcript", slogger.Fields{
				"error": err.Error(),
			})
			return nil
		}
		text = t.TranscribeChunks(ctx, chunks, t.config.Language)
	}

	if text == "" {
		return nil
	}
	slogger.Info(ctx, "Transcript ready", slogger.Fields{
		"length":  len(text),
		"preview": preview(text, transcriptPreviewLength),
	})
	return &text
}

func joinTranscripts(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// speechLanguageCode maps a bare language such as "en" to a BCP-47 code the
// recognizer accepts.
func speechLanguageCode(language string) string {
	switch {
	case language == "":
		return "en-US"
	case language == "en":
		return "en-US"
	default:
		return language
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

package outbound

import (
	"context"
	"time"
)

// MediaProbe is the stream metadata of a local media file.
type MediaProbe struct {
	AudioStreams int
	VideoStreams int
	Duration     time.Duration
}

// HasAudio reports whether at least one audio stream exists.
func (p MediaProbe) HasAudio() bool {
	return p.AudioStreams > 0
}

// AudioProcessor wraps the media toolchain used to prepare speech-ready audio.
// All output files are mono, 16 kHz, 16-bit PCM WAV.
type AudioProcessor interface {
	Probe(ctx context.Context, path string) (*MediaProbe, error)
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	ExtractSegment(ctx context.Context, audioPath, segmentPath string, offset, length time.Duration) error
}

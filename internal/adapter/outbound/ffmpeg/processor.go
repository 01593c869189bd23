// Package ffmpeg drives the ffmpeg and ffprobe binaries.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/port/outbound"
)

// runFunc executes a binary and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Processor implements outbound.AudioProcessor.
type Processor struct {
	ffmpegPath  string
	ffprobePath string
	run         runFunc
}

var _ outbound.AudioProcessor = (*Processor)(nil)

// NewProcessor creates a processor for the given binaries. Empty paths resolve via PATH.
func NewProcessor(ffmpegPath, ffprobePath string) *Processor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Processor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, run: runCommand}
}

// CheckAvailable verifies both binaries can be found.
func (p *Processor) CheckAvailable() error {
	for _, bin := range []string{p.ffmpegPath, p.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe counts streams and reads the container duration.
func (p *Processor) Probe(ctx context.Context, path string) (*outbound.MediaProbe, error) {
	out, err := p.run(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "stream=codec_type:format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, err
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	probe := &outbound.MediaProbe{}
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "audio":
			probe.AudioStreams++
		case "video":
			probe.VideoStreams++
		}
	}
	if parsed.Format.Duration != "" && parsed.Format.Duration != "N/A" {
		seconds, err := strconv.ParseFloat(parsed.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", parsed.Format.Duration, err)
		}
		probe.Duration = time.Duration(seconds * float64(time.Second))
	}

	slogger.Debug(ctx, "Probed media", slogger.Fields{
		"audio_streams": probe.AudioStreams,
		"video_streams": probe.VideoStreams,
		"duration":      probe.Duration.String(),
	})
	return probe, nil
}

// ExtractAudio writes the first audio stream of videoPath as mono 16kHz PCM16 WAV.
func (p *Processor) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	args := []string{"-y", "-v", "error", "-i", videoPath, "-vn"}
	args = append(args, canonicalAudioArgs(audioPath)...)
	_, err := p.run(ctx, p.ffmpegPath, args...)
	return err
}

// ExtractSegment cuts [offset, offset+length) out of audioPath.
func (p *Processor) ExtractSegment(ctx context.Context, audioPath, segmentPath string, offset, length time.Duration) error {
	args := []string{
		"-y", "-v", "error",
		"-ss", formatSeconds(offset),
		"-t", formatSeconds(length),
		"-i", audioPath,
	}
	args = append(args, canonicalAudioArgs(segmentPath)...)
	_, err := p.run(ctx, p.ffmpegPath, args...)
	return err
}

func canonicalAudioArgs(out string) []string {
	return []string{"-ac", "1", "-ar", "16000", "-acodec", "pcm_s16le", "-f", "wav", out}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

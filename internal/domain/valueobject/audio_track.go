package valueobject

import "time"

// AudioTrackKind tags the outcome of audio extraction.
type AudioTrackKind int

const (
	// AudioTrackAbsent means the video has no audio stream. This is a normal outcome.
	AudioTrackAbsent AudioTrackKind = iota
	// AudioTrackPresent means canonical audio was extracted to Path.
	AudioTrackPresent
)

// AudioTrack is the result of extracting speech-ready audio from a video.
type AudioTrack struct {
	Kind     AudioTrackKind
	Path     string
	Duration time.Duration
}

// NoAudioTrack returns the result for a silent video.
func NoAudioTrack() AudioTrack {
	return AudioTrack{Kind: AudioTrackAbsent}
}

// HasAudio returns the result for an extracted mono/16kHz/PCM16 WAV file.
func HasAudio(path string, duration time.Duration) AudioTrack {
	return AudioTrack{Kind: AudioTrackPresent, Path: path, Duration: duration}
}

// Present reports whether the track carries audio.
func (a AudioTrack) Present() bool {
	return a.Kind == AudioTrackPresent
}

// ChunkCount returns ceil(duration / chunk). It returns 0 for a silent track
// or a non-positive chunk duration.
func (a AudioTrack) ChunkCount(chunk time.Duration) int {
	if !a.Present() || chunk <= 0 || a.Duration <= 0 {
		return 0
	}
	n := int(a.Duration / chunk)
	if a.Duration%chunk > 0 {
		n++
	}
	return n
}

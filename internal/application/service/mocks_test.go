package service

import (
	"context"
	"time"

	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/outbound"

	"github.com/stretchr/testify/mock"
)

type MockMediaFetcher struct {
	mock.Mock
}

func (m *MockMediaFetcher) Fetch(ctx context.Context, url string, maxBytes int64) (*outbound.MediaPayload, error) {
	args := m.Called(ctx, url, maxBytes)
	payload, _ := args.Get(0).(*outbound.MediaPayload)
	return payload, args.Error(1)
}

func (m *MockMediaFetcher) DownloadToFile(ctx context.Context, url, destPath string, maxBytes int64) (int64, error) {
	args := m.Called(ctx, url, destPath, maxBytes)
	return args.Get(0).(int64), args.Error(1)
}

type MockAudioProcessor struct {
	mock.Mock
}

func (m *MockAudioProcessor) Probe(ctx context.Context, path string) (*outbound.MediaProbe, error) {
	args := m.Called(ctx, path)
	probe, _ := args.Get(0).(*outbound.MediaProbe)
	return probe, args.Error(1)
}

func (m *MockAudioProcessor) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	return m.Called(ctx, videoPath, audioPath).Error(0)
}

func (m *MockAudioProcessor) ExtractSegment(
	ctx context.Context,
	audioPath, segmentPath string,
	offset, length time.Duration,
) error {
	return m.Called(ctx, audioPath, segmentPath, offset, length).Error(0)
}

type MockSpeechRecognizer struct {
	mock.Mock
}

func (m *MockSpeechRecognizer) Recognize(ctx context.Context, audio []byte, languageCode string) (string, error) {
	args := m.Called(ctx, audio, languageCode)
	return args.String(0), args.Error(1)
}

type MockMultimodalEmbedder struct {
	mock.Mock
}

func (m *MockMultimodalEmbedder) Embed(ctx context.Context, req outbound.MultimodalEmbeddingRequest) ([]float32, error) {
	args := m.Called(ctx, req)
	values, _ := args.Get(0).([]float32)
	return values, args.Error(1)
}

type MockChunkSplitter struct {
	mock.Mock
}

func (m *MockChunkSplitter) SplitIntoChunks(
	ctx context.Context,
	ws *Workspace,
	track valueobject.AudioTrack,
	chunk time.Duration,
) ([]string, error) {
	args := m.Called(ctx, ws, track, chunk)
	paths, _ := args.Get(0).([]string)
	return paths, args.Error(1)
}

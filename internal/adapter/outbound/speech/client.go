// Package speech is a Google Cloud Speech-to-Text v1 REST client.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"mediaenrich/internal/adapter/outbound/googleapi"
	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/port/outbound"

	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public v1 endpoint.
	DefaultBaseURL = "https://speech.googleapis.com/v1"

	encodingLinear16 = "LINEAR16"
	sampleRateHertz  = 16000
)

// Config configures the recognizer.
type Config struct {
	BaseURL     string
	APIKey      string
	TokenSource oauth2.TokenSource
	Timeout     time.Duration
	UseEnhanced bool
}

// Client implements outbound.SpeechRecognizer with synchronous recognition.
type Client struct {
	api         *googleapi.Client
	useEnhanced bool
}

var _ outbound.SpeechRecognizer = (*Client)(nil)

// NewClient creates a Speech-to-Text client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	api, err := googleapi.NewClient(googleapi.Config{
		Service:     outbound.ServiceSpeech,
		BaseURL:     config.BaseURL,
		APIKey:      config.APIKey,
		TokenSource: config.TokenSource,
		Timeout:     config.Timeout,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, useEnhanced: config.UseEnhanced}, nil
}

type recognitionConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
	UseEnhanced     bool   `json:"useEnhanced,omitempty"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Recognize sends mono 16kHz LINEAR16 audio and joins the top alternative of
// every result with single spaces. Silence yields an empty string.
func (c *Client) Recognize(ctx context.Context, audio []byte, languageCode string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("audio cannot be empty")
	}
	if languageCode == "" {
		languageCode = "en-US"
	}

	req := recognizeRequest{
		Config: recognitionConfig{
			Encoding:        encodingLinear16,
			SampleRateHertz: sampleRateHertz,
			LanguageCode:    languageCode,
			UseEnhanced:     c.useEnhanced,
		},
		Audio: recognitionAudio{Content: base64.StdEncoding.EncodeToString(audio)},
	}

	var resp recognizeResponse
	if err := c.api.PostJSON(ctx, "speech:recognize", req, &resp); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(resp.Results))
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(result.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}

	transcript := strings.Join(parts, " ")
	slogger.Debug(ctx, "Speech recognition finished", slogger.Fields{
		"audio_bytes":       len(audio),
		"results":           len(resp.Results),
		"transcript_length": len(transcript),
	})
	return transcript, nil
}

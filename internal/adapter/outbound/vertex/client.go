// Package vertex calls the Vertex AI multimodal embedding model.
package vertex

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mediaenrich/internal/adapter/outbound/googleapi"
	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/port/outbound"

	"golang.org/x/oauth2"
)

// unsupportedMediaMessage is reported when the model rejects a payload with HTTP 400.
const unsupportedMediaMessage = "the media format may be unsupported by the embedding model"

// Config configures the embedding client.
type Config struct {
	Project     string
	Location    string
	Model       string
	Endpoint    string // replaces https://{location}-aiplatform.googleapis.com/v1 when set
	APIKey      string
	TokenSource oauth2.TokenSource
	Timeout     time.Duration
}

// Client implements outbound.MultimodalEmbedder over the :predict REST method.
type Client struct {
	api       *googleapi.Client
	predictor string
	model     string
}

var _ outbound.MultimodalEmbedder = (*Client)(nil)

// NewClient creates a Vertex AI client.
func NewClient(config Config) (*Client, error) {
	if config.Project == "" {
		return nil, errors.New("vertex project cannot be empty")
	}
	if config.Location == "" {
		config.Location = "us-central1"
	}
	if config.Model == "" {
		config.Model = "multimodalembedding@001"
	}

	baseURL := config.Endpoint
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", config.Location)
	}

	api, err := googleapi.NewClient(googleapi.Config{
		Service:     outbound.ServiceVertex,
		BaseURL:     baseURL,
		APIKey:      config.APIKey,
		TokenSource: config.TokenSource,
		Timeout:     config.Timeout,
	}, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		api: api,
		predictor: fmt.Sprintf(
			"projects/%s/locations/%s/publishers/google/models/%s:predict",
			config.Project, config.Location, config.Model,
		),
		model: config.Model,
	}, nil
}

type imageInput struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type instance struct {
	Image *imageInput `json:"image,omitempty"`
	Text  string      `json:"text,omitempty"`
}

type parameters struct {
	Dimension int `json:"dimension,omitempty"`
}

type predictRequest struct {
	Instances  []instance `json:"instances"`
	Parameters parameters `json:"parameters"`
}

type prediction struct {
	ImageEmbedding []float32 `json:"imageEmbedding"`
	TextEmbedding  []float32 `json:"textEmbedding"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

// Embed returns the image embedding when the model produced one and the text
// embedding otherwise.
func (c *Client) Embed(ctx context.Context, req outbound.MultimodalEmbeddingRequest) ([]float32, error) {
	if len(req.Image) == 0 && req.Text == "" {
		return nil, errors.New("embedding request needs an image or text")
	}

	inst := instance{Text: req.Text}
	if len(req.Image) > 0 {
		inst.Image = &imageInput{BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.Image)}
	}
	body := predictRequest{
		Instances:  []instance{inst},
		Parameters: parameters{Dimension: req.Dimension},
	}

	start := time.Now()
	var resp predictResponse
	if err := c.api.PostJSON(ctx, c.predictor, body, &resp); err != nil {
		var svcErr *outbound.ServiceError
		if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusBadRequest {
			svcErr.Message = fmt.Sprintf("%s (%s)", unsupportedMediaMessage, svcErr.Message)
		}
		return nil, err
	}

	if len(resp.Predictions) == 0 {
		return nil, &outbound.ServiceError{
			Service:   outbound.ServiceVertex,
			Code:      "empty_response",
			Type:      "server",
			Message:   "no predictions returned",
			Retryable: true,
		}
	}

	p := resp.Predictions[0]
	values := p.ImageEmbedding
	source := "image"
	if len(values) == 0 {
		values = p.TextEmbedding
		source = "text"
	}
	if len(values) == 0 {
		return nil, &outbound.ServiceError{
			Service:   outbound.ServiceVertex,
			Code:      "empty_embedding",
			Type:      "server",
			Message:   "prediction contained no embedding",
			Retryable: true,
		}
	}

	slogger.Debug(ctx, "Multimodal embedding generated", slogger.Fields{
		"model":       c.model,
		"source":      source,
		"dimensions":  len(values),
		"with_image":  len(req.Image) > 0,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return values, nil
}

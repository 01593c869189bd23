// Package googleapi holds the HTTP plumbing shared by the Google REST clients:
// transport settings, authentication and error classification.
package googleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/port/outbound"
	"mediaenrich/internal/version"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// CloudPlatformScope is the OAuth scope used with Application Default Credentials.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// maxErrorBodyBytes bounds how much of an error response is read.
const maxErrorBodyBytes = 64 * 1024

// Config configures a Client.
type Config struct {
	Service     string // name reported in ServiceError
	BaseURL     string
	APIKey      string             // sent as X-Goog-Api-Key when set
	TokenSource oauth2.TokenSource // sent as a bearer token when set
	Timeout     time.Duration
	UserAgent   string
}

// Client performs authenticated JSON calls against a Google REST API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a client. A nil httpClient gets the default transport.
func NewClient(config Config, httpClient *http.Client) (*Client, error) {
	if config.Service == "" {
		return nil, errors.New("service name cannot be empty")
	}
	if config.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if config.APIKey == "" && config.TokenSource == nil {
		return nil, errors.New("either an API key or a token source is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = version.UserAgent()
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(config.Timeout)
	}

	return &Client{config: config, httpClient: httpClient}, nil
}

// NewHTTPClient returns a pooled client for API calls. Redirects are not followed.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
		MaxConnsPerHost:   50,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// PostJSON sends payload to endpoint and decodes the JSON response into out.
// Failures are returned as *outbound.ServiceError.
func (c *Client) PostJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &outbound.ServiceError{
			Service: c.config.Service,
			Code:    "serialization_error",
			Type:    "validation",
			Message: "failed to encode request",
			Cause:   err,
		}
	}

	req, err := c.createRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HandleNetworkError(c.config.Service, err)
	}
	defer resp.Body.Close()

	slogger.Debug(ctx, "Google API call finished", slogger.Fields{
		"service":     c.config.Service,
		"endpoint":    endpoint,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return HandleHTTPError(ctx, c.config.Service, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &outbound.ServiceError{
			Service:    c.config.Service,
			Code:       "invalid_response",
			Type:       "server",
			Message:    "failed to decode response",
			StatusCode: resp.StatusCode,
			RequestID:  req.Header.Get("X-Request-ID"),
			Retryable:  true,
			Cause:      err,
		}
	}
	return nil
}

func (c *Client) createRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	fullURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		fullURL = endpoint
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	if c.config.TokenSource != nil {
		token, err := c.config.TokenSource.Token()
		if err != nil {
			return nil, &outbound.ServiceError{
				Service: c.config.Service,
				Code:    "token_unavailable",
				Type:    "auth",
				Message: "failed to obtain access token",
				Cause:   err,
			}
		}
		token.SetAuthHeader(req)
	}
	if c.config.APIKey != "" {
		req.Header.Set("X-Goog-Api-Key", c.config.APIKey)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())

	return req, nil
}

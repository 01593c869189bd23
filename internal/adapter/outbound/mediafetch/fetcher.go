// Package mediafetch downloads post media over HTTP.
package mediafetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"mediaenrich/internal/adapter/outbound/googleapi"
	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/domain/errors/domain"
	"mediaenrich/internal/port/outbound"
	"mediaenrich/internal/version"

	"github.com/gabriel-vasile/mimetype"
)

// HTTPFetcher implements outbound.MediaFetcher against CDN URLs.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

var _ outbound.MediaFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher whose requests time out after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout, Transport: transport},
		userAgent: version.UserAgent(),
	}
}

// NewHTTPFetcherWithClient creates a fetcher around an existing client.
func NewHTTPFetcherWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client, userAgent: version.UserAgent()}
}

// Fetch downloads url into memory, rejecting bodies over maxBytes, and sniffs the MIME type.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, maxBytes int64) (*outbound.MediaPayload, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrMediaTooLarge, resp.ContentLength, maxBytes)
	}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, googleapi.HandleNetworkError(outbound.ServiceMediaHTTP, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: body exceeds limit of %d bytes", domain.ErrMediaTooLarge, maxBytes)
	}

	mime := mimetype.Detect(data)
	slogger.Debug(ctx, "Fetched media", slogger.Fields{
		"size_bytes": len(data),
		"mime_type":  mime.String(),
	})

	return &outbound.MediaPayload{Data: data, MIMEType: mime.String()}, nil
}

// DownloadToFile streams url into destPath and returns the number of bytes written.
// A partial file is removed on failure.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, url, destPath string, maxBytes int64) (int64, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return 0, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrMediaTooLarge, resp.ContentLength, maxBytes)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", destPath, err)
	}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	written, copyErr := io.Copy(out, reader)
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		err = googleapi.HandleNetworkError(outbound.ServiceMediaHTTP, copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close %s: %w", destPath, closeErr)
	case maxBytes > 0 && written > maxBytes:
		err = fmt.Errorf("%w: body exceeds limit of %d bytes", domain.ErrMediaTooLarge, maxBytes)
	}
	if err != nil {
		_ = os.Remove(destPath)
		return 0, err
	}
	return written, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) (*http.Response, error) {
	if url == "" {
		return nil, domain.ErrMissingMediaURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("invalid media URL: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, googleapi.HandleNetworkError(outbound.ServiceMediaHTTP, err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		// CDN links expire; a later attempt may see a refreshed URL.
		return nil, &outbound.ServiceError{
			Service:    outbound.ServiceMediaHTTP,
			Code:       "unexpected_status",
			Type:       "network",
			Message:    fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  true,
			Cause:      errors.New(string(bytes.TrimSpace(snippet))),
		}
	}
	return resp, nil
}

package mediafetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"mediaenrich/internal/domain/errors/domain"
	"mediaenrich/internal/port/outbound"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func serveBytes(t *testing.T, data []byte, withLength bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if withLength {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		} else {
			// Flushing before writing forces chunked encoding without a length.
			w.(http.Flusher).Flush()
		}
		_, _ = w.Write(data)
	}))
}

func TestFetch_DetectsMIMEType(t *testing.T) {
	server := serveBytes(t, pngHeader, true)
	defer server.Close()

	fetcher := NewHTTPFetcher(5 * time.Second)
	payload, err := fetcher.Fetch(context.Background(), server.URL, 1024)
	require.NoError(t, err)
	assert.Equal(t, "image/png", payload.MIMEType)
	assert.Equal(t, pngHeader, payload.Data)
}

func TestFetch_RejectsOversizedBodies(t *testing.T) {
	data := bytes.Repeat([]byte{'a'}, 2048)

	t.Run("declared length", func(t *testing.T) {
		server := serveBytes(t, data, true)
		defer server.Close()

		_, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), server.URL, 1024)
		assert.ErrorIs(t, err, domain.ErrMediaTooLarge)
		assert.True(t, domain.IsPermanent(err))
	})

	t.Run("streamed without length", func(t *testing.T) {
		server := serveBytes(t, data, false)
		defer server.Close()

		_, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), server.URL, 1024)
		assert.ErrorIs(t, err, domain.ErrMediaTooLarge)
	})
}

func TestFetch_NonOKStatusIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(5*time.Second).Fetch(context.Background(), server.URL, 1024)
	require.Error(t, err)

	var svcErr *outbound.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusForbidden, svcErr.StatusCode)
	assert.Contains(t, err.Error(), "unexpected status code: 403")
	assert.False(t, domain.IsPermanent(err))
}

func TestFetch_EmptyURL(t *testing.T) {
	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), "", 1024)
	assert.ErrorIs(t, err, domain.ErrMissingMediaURL)
}

func TestDownloadToFile(t *testing.T) {
	data := bytes.Repeat([]byte{'v'}, 4096)
	server := serveBytes(t, data, true)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "video.mp4")
	written, err := NewHTTPFetcher(5*time.Second).DownloadToFile(context.Background(), server.URL, dest, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), written)

	onDisk, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}

func TestDownloadToFile_RemovesPartialFileWhenTooLarge(t *testing.T) {
	server := serveBytes(t, bytes.Repeat([]byte{'v'}, 4096), false)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "video.mp4")
	_, err := NewHTTPFetcher(5*time.Second).DownloadToFile(context.Background(), server.URL, dest, 1024)
	assert.ErrorIs(t, err, domain.ErrMediaTooLarge)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

package outbound

import "context"

// MediaPayload is a fully downloaded, size-checked media body.
type MediaPayload struct {
	Data     []byte
	MIMEType string
}

// MediaFetcher downloads remote media over HTTP.
type MediaFetcher interface {
	// Fetch reads the body into memory. It aborts once maxBytes is exceeded
	// and never buffers more than maxBytes+1 bytes.
	Fetch(ctx context.Context, url string, maxBytes int64) (*MediaPayload, error)

	// DownloadToFile streams the body to destPath. maxBytes <= 0 means no ceiling.
	DownloadToFile(ctx context.Context, url string, destPath string, maxBytes int64) (int64, error)
}

// Package domain provides domain-specific error definitions and utilities.
package domain

import "errors"

// Content-related errors.
var (
	ErrContentNotFound        = errors.New("content not found")
	ErrUnsupportedContentType = errors.New("unsupported content type for multimodal embedding")
	ErrUnsupportedMediaType   = errors.New("unsupported media type")
	ErrMissingMediaURL        = errors.New("content has no media URL")
)

// Media-related errors.
var (
	ErrMediaTooLarge       = errors.New("media file too large")
	ErrUnsupportedMIMEType = errors.New("unsupported MIME type")
)

// Embedding-related errors.
var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Job-related errors.
var (
	ErrJobNotFound = errors.New("enrichment job not found")
)

// General domain errors.
var (
	ErrInvalidInput = errors.New("invalid input")
)

// permanentError marks an error whose cause will not go away by retrying.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so that IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// retryabler is implemented by service errors that know whether they are retryable.
type retryabler interface {
	IsRetryable() bool
}

// IsPermanent reports whether err is deterministic and will repeat on every attempt.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var pe *permanentError
	if errors.As(err, &pe) {
		return true
	}

	for _, sentinel := range []error{
		ErrContentNotFound,
		ErrUnsupportedContentType,
		ErrUnsupportedMediaType,
		ErrMissingMediaURL,
		ErrMediaTooLarge,
		ErrUnsupportedMIMEType,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	var r retryabler
	if errors.As(err, &r) {
		return !r.IsRetryable()
	}

	return false
}

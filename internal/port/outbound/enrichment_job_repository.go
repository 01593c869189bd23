package outbound

import (
	"context"
	"time"

	"mediaenrich/internal/domain/entity"
)

// EnrichmentJobRepository is the durable job queue backing the worker.
type EnrichmentJobRepository interface {
	// ClaimNext atomically moves the oldest eligible pending job of clientID to processing.
	// It returns nil, nil when no job is eligible. Concurrent callers never receive the same job.
	ClaimNext(ctx context.Context, clientID string, maxAttempts int) (*entity.EnrichmentJob, error)

	// MarkCompleted sets the job to completed and records completed_at.
	MarkCompleted(ctx context.Context, jobID int64) error

	// MarkFailed sets the job to failed, storing the message and the final attempts count.
	MarkFailed(ctx context.Context, jobID int64, message string, attempts int) error

	// Reschedule returns the job to pending with attempts updated and its eligibility
	// (created_at) moved delay into the future.
	Reschedule(ctx context.Context, jobID int64, message string, attempts int, delay time.Duration) error
}

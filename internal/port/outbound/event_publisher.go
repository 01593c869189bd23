package outbound

import (
	"context"
	"time"
)

// JobEventType names a lifecycle transition of an enrichment job.
type JobEventType string

const (
	JobEventCompleted      JobEventType = "completed"
	JobEventFailed         JobEventType = "failed"
	JobEventRetryScheduled JobEventType = "retry_scheduled"
)

// JobEvent is published after a job outcome has been persisted.
type JobEvent struct {
	Type          JobEventType  `json:"type"`
	JobID         int64         `json:"job_id"`
	ClientID      string        `json:"client_id"`
	ContentID     string        `json:"content_id"`
	Attempts      int           `json:"attempts"`
	Error         string        `json:"error,omitempty"`
	RetryDelay    time.Duration `json:"retry_delay,omitempty"`
	Embedded      bool          `json:"embedded"`
	HasTranscript bool          `json:"has_transcript"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// JobEventPublisher announces job outcomes. Publishing is best effort; the job
// table stays the source of truth.
type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, event JobEvent) error
	Close() error
}

package entity

import (
	"time"

	"mediaenrich/internal/domain/valueobject"
)

// EnrichmentJob is a durable unit of work asking for one content item to be enriched.
type EnrichmentJob struct {
	id           int64
	clientID     string
	contentID    string
	contentType  valueobject.ContentType
	status       valueobject.JobStatus
	attempts     int
	errorMessage *string
	createdAt    time.Time
	startedAt    *time.Time
	completedAt  *time.Time
	updatedAt    time.Time
}

// RestoreEnrichmentJob creates an EnrichmentJob entity from stored data.
func RestoreEnrichmentJob(
	id int64,
	clientID string,
	contentID string,
	contentType valueobject.ContentType,
	status valueobject.JobStatus,
	attempts int,
	errorMessage *string,
	createdAt time.Time,
	startedAt *time.Time,
	completedAt *time.Time,
	updatedAt time.Time,
) *EnrichmentJob {
	return &EnrichmentJob{
		id:           id,
		clientID:     clientID,
		contentID:    contentID,
		contentType:  contentType,
		status:       status,
		attempts:     attempts,
		errorMessage: errorMessage,
		createdAt:    createdAt,
		startedAt:    startedAt,
		completedAt:  completedAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the job ID
func (j *EnrichmentJob) ID() int64 {
	return j.id
}

// ClientID returns the owning tenant
func (j *EnrichmentJob) ClientID() string {
	return j.clientID
}

// ContentID returns the referenced content item ID
func (j *EnrichmentJob) ContentID() string {
	return j.contentID
}

// ContentType returns the table the content ID refers to
func (j *EnrichmentJob) ContentType() valueobject.ContentType {
	return j.contentType
}

// Status returns the current job status
func (j *EnrichmentJob) Status() valueobject.JobStatus {
	return j.status
}

// Attempts returns the number of failed attempts recorded so far
func (j *EnrichmentJob) Attempts() int {
	return j.attempts
}

// ErrorMessage returns the last recorded error, if any
func (j *EnrichmentJob) ErrorMessage() *string {
	return j.errorMessage
}

// CreatedAt returns the eligibility timestamp. Retries move it into the future.
func (j *EnrichmentJob) CreatedAt() time.Time {
	return j.createdAt
}

func (j *EnrichmentJob) StartedAt() *time.Time {
	return j.startedAt
}

func (j *EnrichmentJob) CompletedAt() *time.Time {
	return j.completedAt
}

func (j *EnrichmentJob) UpdatedAt() time.Time {
	return j.updatedAt
}

// IsTerminal returns true if the job is in a terminal state
func (j *EnrichmentJob) IsTerminal() bool {
	return j.status.IsTerminal()
}

// Start marks a claimed job as processing.
func (j *EnrichmentJob) Start(now time.Time) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusProcessing) {
		return NewDomainError("cannot start job in status "+j.status.String(), CodeInvalidStatusTransition)
	}
	j.status = valueobject.JobStatusProcessing
	j.startedAt = &now
	j.updatedAt = now
	return nil
}

// Complete marks the job as completed successfully.
func (j *EnrichmentJob) Complete(now time.Time) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusCompleted) {
		return NewDomainError("cannot complete job in status "+j.status.String(), CodeInvalidStatusTransition)
	}
	j.status = valueobject.JobStatusCompleted
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

// Fail marks the job as terminally failed.
func (j *EnrichmentJob) Fail(message string, attempts int, now time.Time) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusFailed) {
		return NewDomainError("cannot fail job in status "+j.status.String(), CodeInvalidStatusTransition)
	}
	j.status = valueobject.JobStatusFailed
	j.attempts = attempts
	j.errorMessage = &message
	j.updatedAt = now
	return nil
}

// ScheduleRetry returns the job to pending with its eligibility pushed back by delay.
func (j *EnrichmentJob) ScheduleRetry(message string, attempts int, delay time.Duration, now time.Time) error {
	if !j.status.CanTransitionTo(valueobject.JobStatusPending) {
		return NewDomainError("cannot reschedule job in status "+j.status.String(), CodeInvalidStatusTransition)
	}
	j.status = valueobject.JobStatusPending
	j.attempts = attempts
	j.errorMessage = &message
	j.createdAt = now.Add(delay)
	j.startedAt = nil
	j.updatedAt = now
	return nil
}

// ApplyRetryDecision records the outcome of a failed attempt according to decision.
func (j *EnrichmentJob) ApplyRetryDecision(decision valueobject.RetryDecision, message string, now time.Time) error {
	if decision.Terminal {
		return j.Fail(message, decision.Attempts, now)
	}
	return j.ScheduleRetry(message, decision.Attempts, decision.Delay, now)
}

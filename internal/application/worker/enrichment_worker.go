// Package worker runs the enrichment job loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mediaenrich/internal/application/common/logging"
	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/domain/entity"
	"mediaenrich/internal/domain/errors/domain"
	"mediaenrich/internal/domain/valueobject"
	"mediaenrich/internal/port/inbound"
	"mediaenrich/internal/port/outbound"

	"github.com/cenkalti/backoff/v4"
)

const persistTimeout = 10 * time.Second

// JobRunner processes one claimed job.
type JobRunner interface {
	Run(ctx context.Context, job *entity.EnrichmentJob) (JobOutcome, error)
}

// Config holds the loop settings.
type Config struct {
	ClientID          string
	PollInterval      time.Duration
	MaxErrorBackoff   time.Duration
	JobTimeout        time.Duration
	ShutdownTimeout   time.Duration
	FailFastPermanent bool
	RetryPolicy       valueobject.RetryPolicy
}

// EnrichmentWorker claims jobs for one client and runs them one at a time.
type EnrichmentWorker struct {
	jobs    outbound.EnrichmentJobRepository
	runner  JobRunner
	events  outbound.JobEventPublisher
	metrics *Metrics
	config  Config
	now     func() time.Time

	wakeCh   chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	health inbound.WorkerHealth
}

var _ inbound.EnrichmentWorkerService = (*EnrichmentWorker)(nil)

// NewEnrichmentWorker creates a worker. A nil publisher drops events and nil
// metrics records nothing.
func NewEnrichmentWorker(
	jobs outbound.EnrichmentJobRepository,
	runner JobRunner,
	events outbound.JobEventPublisher,
	metrics *Metrics,
	config Config,
) (*EnrichmentWorker, error) {
	if jobs == nil {
		return nil, errors.New("job repository cannot be nil")
	}
	if runner == nil {
		return nil, errors.New("job runner cannot be nil")
	}
	if config.ClientID == "" {
		return nil, errors.New("client ID cannot be empty")
	}
	if config.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	if config.RetryPolicy.MaxAttempts() < 1 {
		return nil, errors.New("retry policy is required")
	}
	if config.MaxErrorBackoff < 2*config.PollInterval {
		config.MaxErrorBackoff = 2 * config.PollInterval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 15 * time.Minute
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	return &EnrichmentWorker{
		jobs:    jobs,
		runner:  runner,
		events:  events,
		metrics: metrics,
		config:  config,
		now:     time.Now,
		wakeCh:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		health:  inbound.WorkerHealth{ClientID: config.ClientID},
	}, nil
}

// Start runs the loop in a goroutine until Stop is called or ctx is cancelled.
// An in-flight job is not interrupted by either.
func (w *EnrichmentWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.health.IsRunning {
		w.mu.Unlock()
		return errors.New("enrichment worker already running")
	}
	select {
	case <-w.stopCh:
		w.mu.Unlock()
		return errors.New("enrichment worker has been stopped")
	default:
	}
	w.health.IsRunning = true
	w.mu.Unlock()

	slogger.Info(ctx, "Starting enrichment worker", slogger.Fields{
		"client_id":           w.config.ClientID,
		"poll_interval":       w.config.PollInterval.String(),
		"max_retry_attempts":  w.config.RetryPolicy.MaxAttempts(),
		"fail_fast_permanent": w.config.FailFastPermanent,
	})

	go w.loop(ctx)
	return nil
}

// Stop asks the loop to exit and waits for the current job to finish, bounded
// by ctx and the configured shutdown timeout.
func (w *EnrichmentWorker) Stop(ctx context.Context) error {
	w.mu.RLock()
	running := w.health.IsRunning
	w.mu.RUnlock()

	w.stopOnce.Do(func() { close(w.stopCh) })
	if !running {
		return nil
	}

	timer := time.NewTimer(w.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-w.doneCh:
		slogger.Info(ctx, "Enrichment worker stopped", nil)
		return nil
	case <-timer.C:
		return fmt.Errorf("enrichment worker did not stop within %s", w.config.ShutdownTimeout)
	case <-ctx.Done():
		return fmt.Errorf("waiting for enrichment worker to stop: %w", ctx.Err())
	}
}

// Wake interrupts the current sleep so the next claim happens immediately.
func (w *EnrichmentWorker) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Health returns a snapshot of the loop state.
func (w *EnrichmentWorker) Health() inbound.WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.health
}

func (w *EnrichmentWorker) loop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.health.IsRunning = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	errBackoff := newLoopBackoff(w.config.PollInterval, w.config.MaxErrorBackoff)

	for {
		if w.stopping(ctx) {
			return
		}

		processed, err := w.RunOnce(ctx)

		var wait time.Duration
		switch {
		case err != nil:
			wait = errBackoff.NextBackOff()
			w.metrics.RecordLoopError(ctx)
			w.recordLoopError(err)
			slogger.Error(ctx, "Worker loop error, backing off", slogger.Fields{
				"error":   err.Error(),
				"backoff": wait.String(),
			})
		case processed:
			errBackoff.Reset()
			w.clearLoopErrors()
			continue
		default:
			errBackoff.Reset()
			w.clearLoopErrors()
			wait = w.config.PollInterval
		}

		if !w.sleep(ctx, wait) {
			return
		}
	}
}

func (w *EnrichmentWorker) stopping(ctx context.Context) bool {
	select {
	case <-w.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for d, a wake-up, or shutdown. It returns false on shutdown.
func (w *EnrichmentWorker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-w.wakeCh:
		return true
	case <-w.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// newLoopBackoff starts at twice the poll interval and doubles up to maxInterval.
func newLoopBackoff(pollInterval, maxInterval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * pollInterval
	b.MaxInterval = maxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// RunOnce claims at most one job and processes it. The error reports claim or
// persistence failures; a failing job is accounted for, not returned.
func (w *EnrichmentWorker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNext(ctx, w.config.ClientID, w.config.RetryPolicy.MaxAttempts())
	if err != nil {
		return false, fmt.Errorf("claim next job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	w.metrics.RecordClaim(ctx)
	return true, w.processJob(ctx, job)
}

func (w *EnrichmentWorker) processJob(ctx context.Context, job *entity.EnrichmentJob) error {
	// The job finishes even when shutdown cancels ctx.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.JobTimeout)
	defer cancel()
	jobCtx, correlationID := logging.NewCorrelationContext(jobCtx)
	jobCtx = logging.WithJobID(jobCtx, job.ID())

	start := w.now()
	slogger.Info(jobCtx, "Processing enrichment job", slogger.Fields{
		"content_id":   job.ContentID(),
		"content_type": job.ContentType().String(),
		"attempts":     job.Attempts(),
	})

	outcome, runErr := w.runJob(jobCtx, job)
	elapsed := w.now().Sub(start)

	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(jobCtx), persistTimeout)
	defer cancelPersist()

	event := outbound.JobEvent{
		JobID:         job.ID(),
		ClientID:      job.ClientID(),
		ContentID:     job.ContentID(),
		CorrelationID: correlationID,
	}

	if runErr == nil {
		if err := w.jobs.MarkCompleted(persistCtx, job.ID()); err != nil {
			// The row is still processing; hand it to the failure path so it
			// is rescheduled or failed instead of never being claimed again.
			runErr = fmt.Errorf("mark job %d completed: %w", job.ID(), err)
			slogger.Error(jobCtx, "Failed to record job completion", slogger.Fields{"error": err.Error()})
		}
	}

	if runErr == nil {
		if err := job.Complete(w.now()); err != nil {
			slogger.Warn(jobCtx, "Job entity rejected completion", slogger.Fields{"error": err.Error()})
		}

		w.mu.Lock()
		w.health.JobsCompleted++
		w.mu.Unlock()
		w.metrics.RecordOutcome(jobCtx, OutcomeCompleted, outcome.MediaType.String(), elapsed)

		slogger.Info(jobCtx, "Enrichment job completed", slogger.Fields{
			"embedded":       outcome.Embedded,
			"has_transcript": outcome.HasTranscript,
			"duration_ms":    elapsed.Milliseconds(),
		})

		event.Type = outbound.JobEventCompleted
		event.Attempts = job.Attempts()
		event.Embedded = outcome.Embedded
		event.HasTranscript = outcome.HasTranscript
		w.publish(persistCtx, event)
		return nil
	}

	decision := w.decide(job, runErr)
	message := runErr.Error()
	if err := job.ApplyRetryDecision(decision, message, w.now()); err != nil {
		slogger.Warn(jobCtx, "Job entity rejected retry decision", slogger.Fields{"error": err.Error()})
	}

	event.Attempts = decision.Attempts
	event.Error = message

	if decision.Terminal {
		if err := w.jobs.MarkFailed(persistCtx, job.ID(), message, decision.Attempts); err != nil {
			return fmt.Errorf("mark job %d failed: %w", job.ID(), err)
		}
		w.mu.Lock()
		w.health.JobsFailed++
		w.mu.Unlock()
		w.metrics.RecordOutcome(jobCtx, OutcomeFailed, outcome.MediaType.String(), elapsed)

		slogger.Error(jobCtx, "Enrichment job failed", slogger.Fields{
			"error":     message,
			"attempts":  decision.Attempts,
			"permanent": domain.IsPermanent(runErr),
		})
		event.Type = outbound.JobEventFailed
	} else {
		if err := w.jobs.Reschedule(persistCtx, job.ID(), message, decision.Attempts, decision.Delay); err != nil {
			return fmt.Errorf("reschedule job %d: %w", job.ID(), err)
		}
		w.mu.Lock()
		w.health.JobsRetried++
		w.mu.Unlock()
		w.metrics.RecordOutcome(jobCtx, OutcomeRetryScheduled, outcome.MediaType.String(), elapsed)

		slogger.Warn(jobCtx, "Enrichment job will be retried", slogger.Fields{
			"error":       message,
			"attempts":    decision.Attempts,
			"retry_delay": decision.Delay.String(),
		})
		event.Type = outbound.JobEventRetryScheduled
		event.RetryDelay = decision.Delay
	}

	w.publish(persistCtx, event)
	return nil
}

// runJob converts a panic inside the pipeline into an ordinary job error.
func (w *EnrichmentWorker) runJob(ctx context.Context, job *entity.EnrichmentJob) (outcome JobOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing job: %v", r)
		}
	}()
	return w.runner.Run(ctx, job)
}

func (w *EnrichmentWorker) decide(job *entity.EnrichmentJob, err error) valueobject.RetryDecision {
	if w.config.FailFastPermanent && domain.IsPermanent(err) {
		return w.config.RetryPolicy.DecidePermanent(job.Attempts())
	}
	return w.config.RetryPolicy.Decide(job.Attempts())
}

func (w *EnrichmentWorker) publish(ctx context.Context, event outbound.JobEvent) {
	if w.events == nil {
		return
	}
	event.OccurredAt = w.now().UTC()
	if err := w.events.PublishJobEvent(ctx, event); err != nil {
		slogger.Warn(ctx, "Failed to publish job event", slogger.Fields{
			"event_type": string(event.Type),
			"error":      err.Error(),
		})
	}
}

func (w *EnrichmentWorker) recordLoopError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.health.ConsecutiveErrors++
	w.health.LastError = err.Error()
}

func (w *EnrichmentWorker) clearLoopErrors() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.health.ConsecutiveErrors = 0
}

package valueobject

import (
	"errors"
	"time"
)

// RetryPolicy decides what happens to a job after a failed attempt.
type RetryPolicy struct {
	maxAttempts int
	schedule    []time.Duration
}

// RetryDecision is the outcome of RetryPolicy.Decide.
type RetryDecision struct {
	// Terminal is true when the job must become failed.
	Terminal bool
	// Attempts is the new attempts value to persist.
	Attempts int
	// Delay is how far the job's eligibility moves into the future. Zero when Terminal.
	Delay time.Duration
}

// NewRetryPolicy creates a policy from a maximum attempt count and a backoff schedule.
func NewRetryPolicy(maxAttempts int, schedule []time.Duration) (RetryPolicy, error) {
	if maxAttempts < 1 {
		return RetryPolicy{}, errors.New("max attempts must be at least 1")
	}
	if len(schedule) == 0 {
		return RetryPolicy{}, errors.New("backoff schedule cannot be empty")
	}
	for _, d := range schedule {
		if d < 0 {
			return RetryPolicy{}, errors.New("backoff durations cannot be negative")
		}
	}

	copied := make([]time.Duration, len(schedule))
	copy(copied, schedule)
	return RetryPolicy{maxAttempts: maxAttempts, schedule: copied}, nil
}

// NewRetryPolicyFromMinutes builds a policy from a minute schedule such as [5, 10, 20].
func NewRetryPolicyFromMinutes(maxAttempts int, minutes []int) (RetryPolicy, error) {
	schedule := make([]time.Duration, 0, len(minutes))
	for _, m := range minutes {
		schedule = append(schedule, time.Duration(m)*time.Minute)
	}
	return NewRetryPolicy(maxAttempts, schedule)
}

// MaxAttempts returns the attempt budget.
func (p RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// BackoffFor returns the delay before retry number n (1-based), clamped to the
// last schedule entry.
func (p RetryPolicy) BackoffFor(n int) time.Duration {
	if len(p.schedule) == 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}
	if n > len(p.schedule) {
		return p.schedule[len(p.schedule)-1]
	}
	return p.schedule[n-1]
}

// Decide returns what to do with a job that has failed with the given attempts count.
func (p RetryPolicy) Decide(attempts int) RetryDecision {
	next := attempts + 1
	if next >= p.maxAttempts {
		return RetryDecision{Terminal: true, Attempts: next}
	}
	return RetryDecision{Attempts: next, Delay: p.BackoffFor(next)}
}

// DecidePermanent returns the terminal decision used for errors that cannot succeed on retry.
func (p RetryPolicy) DecidePermanent(attempts int) RetryDecision {
	return RetryDecision{Terminal: true, Attempts: attempts + 1}
}

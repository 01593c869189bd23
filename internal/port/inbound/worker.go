package inbound

import "context"

// EnrichmentWorkerService runs the claim/process loop for one tenant.
type EnrichmentWorkerService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// RunOnce claims and processes at most one job. It reports whether a job was processed.
	RunOnce(ctx context.Context) (bool, error)
	// Wake interrupts an idle poll sleep so the next claim happens immediately.
	Wake()
	Health() WorkerHealth
}

// WorkerHealth is a point-in-time view of the worker loop.
type WorkerHealth struct {
	IsRunning         bool   `json:"is_running"`
	ClientID          string `json:"client_id"`
	JobsCompleted     int64  `json:"jobs_completed"`
	JobsFailed        int64  `json:"jobs_failed"`
	JobsRetried       int64  `json:"jobs_retried"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
	LastError         string `json:"last_error,omitempty"`
}

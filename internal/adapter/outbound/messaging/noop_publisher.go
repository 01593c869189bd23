package messaging

import (
	"context"

	"mediaenrich/internal/port/outbound"
)

// NoopJobEventPublisher drops events. It is used when NATS is disabled.
type NoopJobEventPublisher struct{}

var _ outbound.JobEventPublisher = NoopJobEventPublisher{}

func (NoopJobEventPublisher) PublishJobEvent(context.Context, outbound.JobEvent) error { return nil }

func (NoopJobEventPublisher) Close() error { return nil }

// Package messaging publishes enrichment job events to NATS JetStream.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/config"
	"mediaenrich/internal/port/outbound"

	"github.com/nats-io/nats.go"
)

const (
	natsConnectionTimeout = 5 * time.Second
	streamMaxAge          = 24 * time.Hour

	circuitMaxFailures  = 3
	circuitOpenDuration = 30 * time.Second
)

// PublisherMetrics tracks publishing outcomes.
type PublisherMetrics struct {
	PublishedCount    int64
	FailedCount       int64
	AverageLatency    time.Duration
	LastPublishedTime time.Time
	Reconnects        int
}

// NATSJobEventPublisher implements outbound.JobEventPublisher on JetStream.
type NATSJobEventPublisher struct {
	config config.NATSConfig
	conn   *nats.Conn
	js     nats.JetStreamContext

	mu           sync.RWMutex
	metrics      PublisherMetrics
	failureCount int
	openUntil    time.Time
	now          func() time.Time
}

var _ outbound.JobEventPublisher = (*NATSJobEventPublisher)(nil)

// NewNATSJobEventPublisher validates cfg. Call Connect before publishing.
func NewNATSJobEventPublisher(cfg config.NATSConfig) (*NATSJobEventPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") && !strings.HasPrefix(cfg.URL, "tls://") {
		return nil, errors.New("invalid NATS URL scheme")
	}
	if cfg.MaxReconnects < 0 {
		return nil, errors.New("max reconnects cannot be negative")
	}
	if cfg.ReconnectWait < 0 {
		return nil, errors.New("reconnect wait cannot be negative")
	}
	if cfg.Stream == "" {
		return nil, errors.New("stream name cannot be empty")
	}
	if cfg.SubjectPrefix == "" {
		return nil, errors.New("subject prefix cannot be empty")
	}

	return &NATSJobEventPublisher{config: cfg, now: time.Now}, nil
}

// SubjectFor returns the subject an event type is published on.
func SubjectFor(prefix string, eventType outbound.JobEventType) string {
	return fmt.Sprintf("%s.job.%s", prefix, eventType)
}

// Connect dials the server and opens a JetStream context.
func (p *NATSJobEventPublisher) Connect() error {
	opts := []nats.Option{
		nats.Name("mediaenrich-worker"),
		nats.MaxReconnects(p.config.MaxReconnects),
		nats.ReconnectWait(p.config.ReconnectWait),
		nats.Timeout(natsConnectionTimeout),
		nats.ReconnectHandler(func(c *nats.Conn) {
			p.mu.Lock()
			p.metrics.Reconnects++
			p.mu.Unlock()
			slogger.InfoNoCtx("Reconnected to NATS", slogger.Fields{"url": c.ConnectedUrl()})
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slogger.WarnNoCtx("Disconnected from NATS", slogger.Fields{"error": err.Error()})
			}
		}),
	}

	conn, err := nats.Connect(p.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.js = js
	p.mu.Unlock()
	return nil
}

// EnsureStream creates the event stream unless it already exists.
func (p *NATSJobEventPublisher) EnsureStream() error {
	p.mu.RLock()
	js := p.js
	p.mu.RUnlock()
	if js == nil {
		return errors.New("not connected to NATS server")
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      p.config.Stream,
		Subjects:  []string{p.config.SubjectPrefix + ".job.>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    streamMaxAge,
		Replicas:  1,
	})
	if err == nil {
		return nil
	}
	if _, infoErr := js.StreamInfo(p.config.Stream); infoErr == nil {
		return nil
	}
	return fmt.Errorf("failed to create stream %s: %w", p.config.Stream, err)
}

// Conn returns the underlying connection, or nil before Connect.
func (p *NATSJobEventPublisher) Conn() *nats.Conn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn
}

// PublishJobEvent publishes event with a message ID that deduplicates redelivery
// of the same outcome.
func (p *NATSJobEventPublisher) PublishJobEvent(ctx context.Context, event outbound.JobEvent) error {
	start := p.now()

	if p.isCircuitOpen() {
		p.recordFailure()
		return errors.New("circuit breaker open: too many recent failures")
	}

	p.mu.RLock()
	js := p.js
	p.mu.RUnlock()
	if js == nil {
		p.recordFailure()
		return errors.New("publish failed: not connected to NATS")
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	subject := SubjectFor(p.config.SubjectPrefix, event.Type)
	msgID := fmt.Sprintf("%d-%s-%d", event.JobID, event.Type, event.Attempts)
	if _, err := js.Publish(subject, data, nats.Context(ctx), nats.MsgId(msgID)); err != nil {
		p.recordFailure()
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	p.recordSuccess(p.now().Sub(start))
	return nil
}

// Metrics returns a snapshot of publishing metrics.
func (p *NATSJobEventPublisher) Metrics() PublisherMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

// Close drains and closes the connection.
func (p *NATSJobEventPublisher) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.js = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

func (p *NATSJobEventPublisher) recordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.PublishedCount++
	p.metrics.LastPublishedTime = p.now()
	// EMA with alpha = 0.1
	if p.metrics.AverageLatency == 0 {
		p.metrics.AverageLatency = latency
	} else {
		p.metrics.AverageLatency = time.Duration(0.9*float64(p.metrics.AverageLatency) + 0.1*float64(latency))
	}
	p.failureCount = 0
}

func (p *NATSJobEventPublisher) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.FailedCount++
	p.failureCount++
	if p.failureCount >= circuitMaxFailures && p.openUntil.Before(p.now()) {
		p.openUntil = p.now().Add(circuitOpenDuration)
	}
}

func (p *NATSJobEventPublisher) isCircuitOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.openUntil.IsZero() {
		return false
	}
	if p.now().After(p.openUntil) {
		p.openUntil = time.Time{}
		p.failureCount = 0
		return false
	}
	return true
}

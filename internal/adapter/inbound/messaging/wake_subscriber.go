// Package messaging listens for enqueue notifications that let the worker skip
// its idle poll.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"mediaenrich/internal/application/common/slogger"

	"github.com/nats-io/nats.go"
)

// Waker is woken when new jobs may be claimable.
type Waker interface {
	Wake()
}

// EnqueuedNotification is the optional payload on the wake subject.
// An empty or unparsable payload wakes every worker.
type EnqueuedNotification struct {
	ClientID string `json:"client_id"`
}

// WakeStats counts handled notifications.
type WakeStats struct {
	Received int64
	Woken    int64
	Ignored  int64
}

// WakeSubscriber subscribes to the core NATS wake subject.
type WakeSubscriber struct {
	conn     *nats.Conn
	subject  string
	clientID string
	waker    Waker

	mu    sync.Mutex
	sub   *nats.Subscription
	stats WakeStats
}

// NewWakeSubscriber creates a subscriber for clientID's worker.
func NewWakeSubscriber(conn *nats.Conn, subject, clientID string, waker Waker) (*WakeSubscriber, error) {
	if conn == nil {
		return nil, errors.New("NATS connection cannot be nil")
	}
	if subject == "" {
		return nil, errors.New("subject cannot be empty")
	}
	if waker == nil {
		return nil, errors.New("waker cannot be nil")
	}
	return &WakeSubscriber{conn: conn, subject: subject, clientID: clientID, waker: waker}, nil
}

// Start subscribes. Calling Start twice is an error.
func (s *WakeSubscriber) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return fmt.Errorf("already subscribed to %s", s.subject)
	}
	sub, err := s.conn.Subscribe(s.subject, s.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.subject, err)
	}
	s.sub = sub

	slogger.InfoNoCtx("Listening for enqueue notifications", slogger.Fields{
		"subject":   s.subject,
		"client_id": s.clientID,
	})
	return nil
}

// Stop unsubscribes. It is safe to call when not started.
func (s *WakeSubscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.sub = nil
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("unsubscribe from %s: %w", s.subject, err)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (s *WakeSubscriber) Stats() WakeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *WakeSubscriber) handleMessage(msg *nats.Msg) {
	s.mu.Lock()
	s.stats.Received++
	s.mu.Unlock()

	if !s.matches(msg.Data) {
		s.mu.Lock()
		s.stats.Ignored++
		s.mu.Unlock()
		return
	}

	s.waker.Wake()
	s.mu.Lock()
	s.stats.Woken++
	s.mu.Unlock()
}

func (s *WakeSubscriber) matches(data []byte) bool {
	if len(data) == 0 || s.clientID == "" {
		return true
	}
	var n EnqueuedNotification
	if err := json.Unmarshal(data, &n); err != nil {
		slogger.DebugNoCtx("Unparsable wake notification", slogger.Fields{"error": err.Error()})
		return true
	}
	return n.ClientID == "" || n.ClientID == s.clientID
}

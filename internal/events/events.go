// Package events carries typed supervision events between detectors and the
// process composing them. Detection components publish onto a Bus; the
// composing process subscribes and forwards to the notification router.
// Delivery is decoupled so a slow or faulty subscriber can never stall a
// watch loop or a supervisor tick.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/types"
)

// Kind identifies what happened.
type Kind string

const (
	// KindViolation is a policy violation detected by the change monitor or
	// the completion gate.
	KindViolation Kind = "violation"
	// KindDaemonRestarted is emitted after the supervisor respawns the daemon.
	KindDaemonRestarted Kind = "daemon_restarted"
	// KindRestartsExhausted is emitted when the supervisor gives up.
	KindRestartsExhausted Kind = "restarts_exhausted"
	// KindMemoryPressure is emitted when host memory crosses a threshold.
	KindMemoryPressure Kind = "memory_pressure"
	// KindWatchStopped is emitted when a change monitor stops with metrics.
	KindWatchStopped Kind = "watch_stopped"
)

// Event is a single supervision event. Events are immutable once published.
type Event struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  types.Severity  `json:"severity"`
	Message   string          `json:"message"`
	Violation *types.Violation `json:"violation,omitempty"`
	Data      map[string]any  `json:"data,omitempty"`
}

// NewViolationEvent wraps a recorded violation for publication.
func NewViolationEvent(v types.Violation, severity types.Severity, message string) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      KindViolation,
		Timestamp: time.Now(),
		Severity:  severity,
		Message:   message,
		Violation: &v,
	}
}

// New creates an event of the given kind.
func New(kind Kind, severity types.Severity, message string, data map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: time.Now(),
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

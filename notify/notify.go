package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Event Types
// =============================================================================

// EventType is the routing name of a lifecycle event.
type EventType string

// Event type constants.
const (
	EventNodeStarted    EventType = "iba.node.started"
	EventNodeCompleted  EventType = "iba.node.completed"
	EventNodeError      EventType = "iba.node.error"
	EventChunkFailed    EventType = "iba.chunk.failed"
	EventPDFFailed      EventType = "iba.pdf.failed"
	EventBlueprintReady EventType = "iba.blueprint.ready"
)

// Status is the outcome carried by an event.
type Status string

// Status constants.
const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusWarning   Status = "warning"
)

// Event describes one lifecycle event of a blueprint run.
type Event struct {
	ID        string         `json:"event_id"`
	Type      EventType      `json:"event_type"`
	ProjectID string         `json:"project_id"`
	RunID     string         `json:"run_id,omitempty"`
	Node      string         `json:"node,omitempty"`
	Status    Status         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// NewEvent creates an event with a fresh ID and a second-precision UTC
// timestamp, so it serializes as RFC3339.
func NewEvent(typ EventType, projectID string, status Status) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		ProjectID: projectID,
		Status:    status,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Metadata:  map[string]any{},
	}
}

// Summary returns a one-line description used by human-facing sinks.
func (e Event) Summary() string {
	if e.Node != "" {
		return fmt.Sprintf("%s %s", e.Node, e.Status)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Status)
}

// IsFailure reports whether the event signals a failure or warning.
func (e Event) IsFailure() bool {
	return e.Status == StatusFailed || e.Status == StatusWarning
}

// =============================================================================
// Notifier Interface
// =============================================================================

// Notifier sends lifecycle events to a sink.
type Notifier interface {
	// Notify sends one event. Callers treat errors as non-fatal.
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

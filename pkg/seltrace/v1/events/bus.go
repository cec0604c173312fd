package events

import "time"

// EventType represents the type of an exported event.
type EventType string

const (
	RecordDispatched    EventType = "RecordDispatched"
	ExceptionDispatched EventType = "ExceptionDispatched"
)

// Event wraps a dispatched record for export outside the process.
type Event struct {
	// Type categorizes the event.
	Type EventType `json:"type"`
	// Timestamp marks when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
	// SessionID identifies the driver session, if known.
	SessionID string `json:"session_id,omitempty"`
	// Record is the dispatched record. Its ReturnObject is never serialized.
	Record EventRecord `json:"record"`
	// Payload carries event-specific data, such as the exception message.
	// Typed text that was masked in the record must not be added here.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Bus defines the interface for publishing exported events.
type Bus interface {
	// Emit publishes an event. Implementations must not block the
	// command path for long.
	Emit(event Event)
}

// Package bus defines the event types that flow from the router core to the
// front ends (CLI, websocket gateway, telegram).
package bus

import (
	"time"

	"github.com/lessonmate/lessonmate/internal/schema"
)

// EventType identifies the kind of a TurnEvent.
type EventType string

const (
	// EventClassified is emitted once per turn, before the agent runs.
	EventClassified EventType = "classified"
	// EventProgress carries intermediate output (partial text, tool hints).
	EventProgress EventType = "progress"
	// EventAnswer is the final answer for the turn. Terminal.
	EventAnswer EventType = "answer"
	// EventError is emitted instead of EventAnswer when the pipeline fails
	// irrecoverably for the turn. Terminal.
	EventError EventType = "error"
)

// TurnEvent is one observable step of a user turn. Every turn produces an
// ordered sequence of at least two events: a classification event and exactly
// one terminal event (answer or error).
type TurnEvent struct {
	Type       EventType       `json:"type"`
	SessionID  string          `json:"session_id"`
	Category   schema.Category `json:"category,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Mission    string          `json:"mission,omitempty"`
	Text       string          `json:"text,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Emitter receives turn events. Implementations must not block the pipeline;
// slow consumers drop or buffer on their side.
type Emitter interface {
	Emit(ev TurnEvent)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ev TurnEvent)

func (f EmitterFunc) Emit(ev TurnEvent) { f(ev) }

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(TurnEvent) {}

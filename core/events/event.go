package events

import "poolquest/core/types"

// Event represents a structured state change emitted by the reward engines.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves into the
// generic attribute representation consumed by indexers and logs.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// ToPayload converts an event into its generic representation. Events without
// a payload rendering produce an attribute-less event of the same type.
func ToPayload(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if p, ok := evt.(Payload); ok {
		return p.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

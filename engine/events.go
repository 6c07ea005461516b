// Package engine drives the multi-round tool-use conversation loop with a
// language model and emits a typed event stream. The engine holds no storage
// of its own; callers persist history through the persist events it emits.
package engine

import "github.com/msgpilot/msgpilot/provider"

// EventType identifies what an Event carries.
type EventType string

const (
	// EventToolCall announces a tool invocation requested by the model.
	EventToolCall EventType = "tool_call"
	// EventToolResult carries the dispatcher's result for a tool call.
	EventToolResult EventType = "tool_result"
	// EventMessage carries final assistant text for the user.
	EventMessage EventType = "message"
	// EventError reports a terminal model-call failure.
	EventError EventType = "error"
	// EventPersist carries a message the caller must durably store before
	// consuming further events.
	EventPersist EventType = "persist"
	// EventContextTrim reports that context preparation dropped turns or
	// truncated tool output before the model call.
	EventContextTrim EventType = "context_trim"
)

// Event is one element of the engine's output stream.
type Event struct {
	Type EventType `json:"type"`

	// Content is the text payload for message, error, and tool_result events.
	Content string `json:"content,omitempty"`

	// Tool and Args describe the invocation for tool_call and tool_result
	// events. Calls and results pair up by tool name within a round.
	Tool string `json:"tool,omitempty"`
	Args string `json:"args,omitempty"`

	// Message is set on persist events.
	Message *provider.Message `json:"message,omitempty"`

	// Trim is set on context_trim events.
	Trim *TrimReport `json:"trim,omitempty"`
}

// messageEvent builds a final-text event.
func messageEvent(text string) Event {
	return Event{Type: EventMessage, Content: text}
}

// errorEvent builds a terminal failure event.
func errorEvent(err error) Event {
	return Event{Type: EventError, Content: err.Error()}
}

// persistEvent wraps a message the caller must store.
func persistEvent(msg provider.Message) Event {
	return Event{Type: EventPersist, Message: &msg}
}

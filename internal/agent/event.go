package agent

import "time"

// EventKind tags a decoded stream event.
type EventKind string

const (
	EventText       EventKind = "text"
	EventToolUse    EventKind = "tool_use"
	EventToolResult EventKind = "tool_result"
	EventResult     EventKind = "result"
	EventMalformed  EventKind = "malformed"

	// EventInit carries session metadata announced by the backend.
	EventInit EventKind = "init"
	// EventError is an error reported in-band by the backend.
	EventError EventKind = "error"
	// EventUnknown is a well-formed message with a type this engine does not know.
	EventUnknown EventKind = "unknown"
)

// Event is one decoded stdout line. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// Text is the content of EventText and the message of EventError.
	Text string
	// Delta marks an EventText chunk that continues the previous one.
	Delta bool

	// ToolName is the canonical tool name for EventToolUse (the backend name
	// when the tool is not in the translation table).
	ToolName  string
	ToolInput map[string]any
	ToolUseID string

	// Content is the EventToolResult payload.
	Content string

	// Status and Stats carry EventResult metadata.
	Status string
	Stats  map[string]any

	// SessionID and Model are announced by EventInit.
	SessionID string
	Model     string

	// Type is the wire type of an EventUnknown message.
	Type string

	// Raw is the undecoded line. Err is the decode failure of EventMalformed.
	Raw string
	Err error

	// Elapsed is the time since launch when the line was read.
	Elapsed time.Duration
}

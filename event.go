package agentbridge

import (
	"encoding/json"
	"time"
)

// EventKind identifies the kind of event published to the host.
type EventKind string

const (
	// EventStatus is a session lifecycle change. See [Status].
	EventStatus EventKind = "status"

	// EventSessionUpdate carries a session/update notification payload,
	// republished verbatim.
	EventSessionUpdate EventKind = "session_update"

	// EventPermissionRequested asks the host to choose one of the agent's
	// permission options. Answer with Host.ResolvePermission.
	EventPermissionRequested EventKind = "permission_requested"

	// EventTerminalOutput mirrors a terminal/output reply sent to the agent.
	EventTerminalOutput EventKind = "terminal_output"
)

// Status is the lifecycle state carried by an EventStatus event.
type Status string

const (
	// StatusStarting is emitted before the agent process is spawned.
	StatusStarting Status = "starting"

	// StatusReady is emitted once the handshake established a session id.
	StatusReady Status = "ready"

	// StatusError is emitted when spawning or the handshake fails.
	StatusError Status = "error"

	// StatusStopped is emitted when the agent's stdout reaches end-of-stream.
	// It is the only signal that the agent process has exited.
	StatusStopped Status = "stopped"
)

// Event is a notification from the engine to its host.
type Event struct {
	// Kind identifies the kind of event.
	Kind EventKind `json:"kind"`

	// Session is the registry name of the originating session.
	Session string `json:"session"`

	// SessionID is the agent-assigned session id, once known.
	SessionID string `json:"sessionId,omitempty"`

	// Status is set for EventStatus.
	Status Status `json:"status,omitempty"`

	// Message is a human-readable detail (errors, warnings).
	Message string `json:"message,omitempty"`

	// Update is the raw inner session/update payload (EventSessionUpdate).
	Update json.RawMessage `json:"update,omitempty"`

	// Permission is set for EventPermissionRequested.
	Permission *PermissionRequest `json:"permission,omitempty"`

	// Terminal is set for EventTerminalOutput.
	Terminal *TerminalOutput `json:"terminal,omitempty"`

	// Timestamp is when the event was produced.
	Timestamp time.Time `json:"timestamp"`
}

// PermissionRequest describes an agent's request for a human decision.
type PermissionRequest struct {
	// ID is the JSON-RPC id of the agent's request; pass it back verbatim
	// to resolve the request.
	ID RequestID `json:"id"`

	// ToolCall is the agent's description of the pending tool call.
	ToolCall json.RawMessage `json:"toolCall,omitempty"`

	// Options are the selectable outcomes offered by the agent.
	Options []PermissionOption `json:"options"`
}

// PermissionOption is one selectable outcome of a permission request.
type PermissionOption struct {
	OptionID string `json:"optionId"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
}

// TerminalOutput is a snapshot of a virtual terminal's captured output.
type TerminalOutput struct {
	TerminalID string      `json:"terminalId"`
	Output     string      `json:"output"`
	Truncated  bool        `json:"truncated"`
	ExitStatus *ExitStatus `json:"exitStatus,omitempty"`
}

// ExitStatus describes how a terminal's process ended.
// ExitCode is nil when the process was terminated by a signal; Signal is nil
// on normal exit and on platforms without signal semantics.
type ExitStatus struct {
	ExitCode *int    `json:"exitCode"`
	Signal   *string `json:"signal"`
}

// StopReason is the sanitized reason a prompt turn ended (e.g. "end_turn").
type StopReason string

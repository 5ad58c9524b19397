package agentbridge

import "errors"

// Sentinel errors for engine operations.
var (
	// ErrUnavailable indicates the agent could not be started
	// (binary not found, pipe setup failure).
	ErrUnavailable = errors.New("agentbridge: agent unavailable")

	// ErrTerminated indicates the session was torn down or the agent's
	// connection closed while an operation was waiting.
	ErrTerminated = errors.New("agentbridge: session terminated")

	// ErrNotFound indicates no session is registered under the given name.
	ErrNotFound = errors.New("agentbridge: session not found")

	// ErrNoPendingRequest indicates a permission decision was supplied for a
	// request id that is unknown or already resolved.
	ErrNoPendingRequest = errors.New("agentbridge: no pending request")

	// ErrAccessDenied indicates a path resolved outside the session worktree.
	ErrAccessDenied = errors.New("agentbridge: access denied")

	// ErrHandshakeIncomplete indicates the handshake never established a
	// session id, so the session cannot accept prompts.
	ErrHandshakeIncomplete = errors.New("agentbridge: handshake incomplete")
)

package agentbridge

import "context"

// Host is the inbound API of the engine.
//
// EnsureSessionStarted returns before the agent handshake completes; callers
// learn the outcome from StatusReady or StatusError events on their Sink.
//
// Host is an interface to enable wrapping with logging, metrics,
// or access-control middleware.
type Host interface {
	// EnsureSessionStarted spawns the agent for cfg.Name unless a live
	// session is already registered under that name.
	EnsureSessionStarted(ctx context.Context, cfg SessionConfig) error

	// Prompt sends text to the named session and blocks until the agent's
	// turn completes.
	Prompt(ctx context.Context, name, text string) (StopReason, error)

	// ResolvePermission answers a pending permission request exactly once.
	ResolvePermission(name string, id RequestID, optionID string) error

	// StopSession removes the named session and terminates its agent.
	StopSession(ctx context.Context, name string) error

	// StopAll removes and terminates every session. Failures are logged.
	StopAll(ctx context.Context)
}

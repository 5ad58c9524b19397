// Package agentbridge provides the shared vocabulary for driving external
// coding agents over the Agent Client Protocol (ACP).
//
// The engine itself lives in engine/acp. This package defines the types that
// cross the boundary between the engine and its host:
//
//   - [SessionConfig]: construction inputs for one agent session
//   - [Host]: the inbound host API (start, prompt, resolve permission, stop)
//   - [Event]: outbound notifications (status, session updates, permission
//     requests, terminal output)
//   - [Sink]: the capability the engine publishes events through
//   - [RequestID]: a JSON-RPC id, numeric or string, echoed verbatim in replies
//
// # Quick Start
//
//	sink := agentbridge.NewChanSink(256)
//	reg := acp.NewRegistry(sink)
//	err := reg.EnsureSessionStarted(ctx, agentbridge.SessionConfig{
//	    Name:     "main",
//	    Worktree: "/src/project",
//	    Command:  []string{"opencode", "acp"},
//	})
//	for ev := range sink.Events() {
//	    if ev.Kind == agentbridge.EventStatus && ev.Status == agentbridge.StatusReady {
//	        go reg.Prompt(ctx, "main", "Hello")
//	    }
//	}
//
// Readiness is asynchronous: EnsureSessionStarted returns before the
// handshake completes, and callers observe [StatusReady] or [StatusError].
package agentbridge

// Package acp drives coding agents that speak the Agent Client Protocol
// (ACP): JSON-RPC 2.0 over the agent's stdin/stdout, one message per line.
//
// A Registry owns named sessions. Each session is one persistent agent
// subprocess that stays alive across prompt turns. The engine plays the
// client side of ACP: it performs the initialize/session/new handshake,
// sends prompts, and services the agent's own requests for file access
// (fs/*), virtual terminals (terminal/*) and permission decisions
// (session/request_permission). Every path the agent touches is confined
// to the session's worktree.
//
// Everything the host needs to observe is published to an agentbridge.Sink
// as events: lifecycle status, streamed session updates, permission
// requests and terminal output snapshots.
//
//	sink := agentbridge.NewChanSink(256)
//	reg := acp.NewRegistry(sink, acp.WithLogger(logger))
//	err := reg.EnsureSessionStarted(ctx, agentbridge.SessionConfig{
//		Name:     "main",
//		Worktree: "/path/to/repo",
//		Command:  []string{"opencode", "acp"},
//	})
//	// wait for StatusReady on sink.Events(), then:
//	reason, err := reg.Prompt(ctx, "main", "fix the failing test")
//
// This implementation targets ACP protocol version 1.
package acp

//go:build !windows

package acp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dmora/agentbridge"
)

// errMissingSessionID reports a session/new result without a sessionId.
var errMissingSessionID = errors.New("acp: session/new: missing sessionId")

// handshake runs initialize -> session/new -> optional session/set_mode and
// reports the outcome as a Ready or Error status. It is meant to run in its
// own goroutine right after spawn; handshakeDone is closed when it returns.
func (s *Session) handshake(ctx context.Context, initialMode string) {
	defer close(s.handshakeDone)

	if s.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.HandshakeTimeout)
		defer cancel()
	}

	warning, err := s.runHandshake(ctx, initialMode)
	if err != nil {
		s.logger.Error("handshake failed", "err", err)
		s.publishStatus(agentbridge.StatusError, err.Error())
		return
	}
	s.logger.Info("session ready", "session_id", s.SessionID())
	s.publishStatus(agentbridge.StatusReady, warning)
}

// runHandshake performs the handshake calls. A failed set_mode does not
// abort; it is returned as a warning for the Ready event.
func (s *Session) runHandshake(ctx context.Context, initialMode string) (warning string, err error) {
	initParams := initializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo:      &implementation{Name: s.opts.ClientName, Version: s.opts.ClientVersion},
		ClientCapabilities: &clientCapabilities{
			FS:       &fileSystemCapability{ReadTextFile: true, WriteTextFile: true},
			Terminal: true,
		},
	}
	var initResult initializeResult
	if err := s.conn.Call(ctx, MethodInitialize, initParams, &initResult); err != nil {
		return "", fmt.Errorf("acp: initialize: %w", err)
	}
	if len(initResult.AuthMethods) > 0 {
		ids := make([]string, 0, len(initResult.AuthMethods))
		for _, m := range initResult.AuthMethods {
			ids = append(ids, m.ID)
		}
		s.logger.Warn("agent advertises auth methods; authentication is not supported, continuing", "methods", ids)
	}
	if initResult.AgentInfo != nil {
		s.logger.Debug("agent info", "name", initResult.AgentInfo.Name, "version", initResult.AgentInfo.Version)
	}

	params := newSessionParams{
		CWD:        s.root,
		MCPServers: []mcpServer{}, // empty slice, never nil
	}
	var result newSessionResult
	if err := s.conn.Call(ctx, MethodSessionNew, params, &result); err != nil {
		return "", fmt.Errorf("acp: session/new: %w", err)
	}
	if result.SessionID == "" {
		return "", errMissingSessionID
	}
	if err := validateSessionID(result.SessionID); err != nil {
		return "", fmt.Errorf("acp: invalid session ID from agent: %w", err)
	}
	s.setSessionID(result.SessionID)

	mode := strings.TrimSpace(initialMode)
	if mode == "" {
		return "", nil
	}
	if err := s.conn.Call(ctx, MethodSessionSetMode, setModeParams{SessionID: result.SessionID, ModeID: mode}, nil); err != nil {
		s.logger.Warn("set mode failed", "mode", mode, "err", err)
		return fmt.Sprintf("failed to set mode %q: %v", mode, err), nil
	}
	return "", nil
}

// maxSessionIDLen caps the session id accepted from session/new.
const maxSessionIDLen = 256

// validateSessionID rejects ids with control characters or over
// maxSessionIDLen bytes. Any other non-empty id is accepted verbatim.
func validateSessionID(id string) error {
	if len(id) > maxSessionIDLen {
		return fmt.Errorf("session ID is %d bytes, limit %d", len(id), maxSessionIDLen)
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return fmt.Errorf("session ID %q contains control characters", id)
	}
	return nil
}

//go:build !windows

package acp

import (
	"encoding/json"

	"github.com/dmora/agentbridge"
)

// route dispatches an agent-initiated request. It runs in its own goroutine
// per request (see Conn.handleMethodCall), so blocking handlers such as
// permission waits and terminal/wait_for_exit never stall the reader.
func (s *Session) route(id agentbridge.RequestID, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodReadTextFile:
		return s.readTextFile(params)
	case MethodWriteTextFile:
		return s.writeTextFile(params)
	case MethodTerminalCreate:
		return s.terms.create(params)
	case MethodTerminalOutput:
		return s.terms.output(params)
	case MethodTerminalWait:
		return s.terms.waitForExit(params)
	case MethodTerminalKill:
		return s.terms.kill(params)
	case MethodTerminalFree:
		return s.terms.release(params)
	case MethodRequestPerm:
		return s.requestPermission(id, params)
	default:
		s.logger.Warn("agent called unknown method", "method", method, "id", id.String())
		return nil, &RPCError{Code: rpcMethodNotFound, Message: "method not found: " + method}
	}
}

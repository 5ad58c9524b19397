//go:build !windows

package acp

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmora/agentbridge"
)

// permissionTable holds one single-use decision slot per pending
// session/request_permission, keyed by the agent's request id.
type permissionTable struct {
	mu      sync.Mutex
	pending map[agentbridge.RequestID]chan string
	closed  bool
}

func newPermissionTable() *permissionTable {
	return &permissionTable{pending: make(map[agentbridge.RequestID]chan string)}
}

// register creates the decision slot for id.
func (t *permissionTable) register(id agentbridge.RequestID) (<-chan string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, agentbridge.ErrTerminated
	}
	if _, dup := t.pending[id]; dup {
		return nil, fmt.Errorf("acp: duplicate permission request id %s", id)
	}
	ch := make(chan string, 1)
	t.pending[id] = ch
	return ch, nil
}

// resolve removes the entry for id and delivers optionID to its waiter.
// Unknown and already-resolved ids fail with ErrNoPendingRequest.
func (t *permissionTable) resolve(id agentbridge.RequestID, optionID string) error {
	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", agentbridge.ErrNoPendingRequest, id)
	}
	ch <- optionID // buffered, never blocks
	return nil
}

// drain closes the table and every pending slot, returning the ids whose
// waiters were released without a decision.
func (t *permissionTable) drain() []agentbridge.RequestID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	ids := make([]agentbridge.RequestID, 0, len(t.pending))
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
		ids = append(ids, id)
	}
	return ids
}

// len reports the number of undecided requests.
func (t *permissionTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// requestPermission services session/request_permission: it publishes the
// request and blocks until ResolvePermission decides it. If the session is
// torn down first the teardown path owns the reply.
func (s *Session) requestPermission(id agentbridge.RequestID, params json.RawMessage) (any, error) {
	var p requestPermissionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	ch, err := s.perms.register(id)
	if err != nil {
		return nil, err
	}

	s.publish(agentbridge.Event{
		Kind:      agentbridge.EventPermissionRequested,
		SessionID: s.SessionID(),
		Permission: &agentbridge.PermissionRequest{
			ID:       id,
			ToolCall: p.ToolCall,
			Options:  p.Options,
		},
	})

	optionID, ok := <-ch
	if !ok {
		return nil, errNoReply
	}
	s.logger.Debug("permission resolved", "id", id.String(), "option", optionID)
	return selectedPermission(optionID), nil
}

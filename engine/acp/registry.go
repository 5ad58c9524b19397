//go:build !windows

package acp

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dmora/agentbridge"
)

// Registry maps session names to running agent sessions. It is the
// engine's entry point and implements agentbridge.Host.
type Registry struct {
	sink agentbridge.Sink
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

var _ agentbridge.Host = (*Registry)(nil)

// NewRegistry creates an empty registry publishing events to sink.
func NewRegistry(sink agentbridge.Sink, opts ...Option) *Registry {
	return &Registry{
		sink:     sink,
		opts:     resolveOptions(opts...),
		sessions: make(map[string]*Session),
	}
}

// EnsureSessionStarted starts the agent for cfg.Name unless a live session
// already exists under that name. It returns once the agent is spawned; the
// handshake continues in the background and reports through Ready or Error
// status events. Spawn failures are returned (and published as Error).
func (r *Registry) EnsureSessionStarted(ctx context.Context, cfg agentbridge.SessionConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("acp: session name is required")
	}
	cfg.Command = slices.Clone(cfg.Command)
	cfg.Env = maps.Clone(cfg.Env)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[cfg.Name]; ok {
		if !s.Exited() {
			return nil
		}
		delete(r.sessions, cfg.Name)
	}

	r.publish(cfg.Name, agentbridge.StatusStarting, "")
	s, err := startSession(cfg, r.sink, r.opts)
	if err != nil {
		r.opts.Logger.Error("start session", "session", cfg.Name, "err", err)
		r.publish(cfg.Name, agentbridge.StatusError, err.Error())
		return err
	}
	r.sessions[cfg.Name] = s

	// Detached from ctx: the handshake outlives this call.
	go s.handshake(context.WithoutCancel(ctx), cfg.InitialMode)
	return nil
}

// Prompt sends text to the named session and blocks until the turn ends.
func (r *Registry) Prompt(ctx context.Context, name, text string) (agentbridge.StopReason, error) {
	s, err := r.get(name)
	if err != nil {
		return "", err
	}
	return s.Prompt(ctx, text)
}

// ResolvePermission answers the pending permission request id of the named
// session with optionID.
func (r *Registry) ResolvePermission(name string, id agentbridge.RequestID, optionID string) error {
	s, err := r.get(name)
	if err != nil {
		return err
	}
	return s.ResolvePermission(id, optionID)
}

// Cancel sends session/cancel for the named session's active turn.
func (r *Registry) Cancel(name string) error {
	s, err := r.get(name)
	if err != nil {
		return err
	}
	return s.Cancel()
}

// SessionID returns the agent-assigned id of the named session, or "" while
// the handshake is pending or after it failed.
func (r *Registry) SessionID(name string) (string, error) {
	s, err := r.get(name)
	if err != nil {
		return "", err
	}
	return s.SessionID(), nil
}

// Names returns the registered session names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.sessions))
}

// StopSession removes the named session and terminates its agent.
func (r *Registry) StopSession(ctx context.Context, name string) error {
	r.mu.Lock()
	s, ok := r.sessions[name]
	delete(r.sessions, name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", agentbridge.ErrNotFound, name)
	}
	return s.Stop(ctx)
}

// StopAll removes every session and terminates the agents concurrently.
// Failures are logged, not returned.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for name, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Stop(ctx); err != nil {
				r.opts.Logger.Error("stop session", "session", name, "err", err)
			}
		}()
	}
	wg.Wait()
}

func (r *Registry) get(name string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", agentbridge.ErrNotFound, name)
	}
	return s, nil
}

// publish emits a status event for a session that may not exist yet.
func (r *Registry) publish(name string, st agentbridge.Status, msg string) {
	ev := agentbridge.Event{
		Kind:    agentbridge.EventStatus,
		Session: name,
		Status:  st,
		Message: msg,
	}
	if err := r.sink.Publish(ev); err != nil {
		r.opts.Logger.Warn("publish event", "session", name, "kind", ev.Kind, "err", err)
	}
}

//go:build !windows

package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/engine/internal/errfmt"
	"github.com/dmora/agentbridge/engine/internal/procutil"
	"github.com/dmora/agentbridge/engine/internal/sandbox"
)

// Session owns one agent child process: its stdio pumps, the JSON-RPC
// connection, the permission table and the virtual terminal registry.
type Session struct {
	name   string
	root   string // canonical worktree, the sandbox boundary
	cmd    *exec.Cmd
	conn   *Conn
	sink   agentbridge.Sink
	logger *log.Logger
	opts   Options

	idMu      sync.RWMutex
	sessionID string

	handshakeDone chan struct{}
	perms         *permissionTable
	terms         *terminalRegistry

	stopping atomic.Bool
	stopOnce sync.Once
	stopErr  error
	done     chan struct{} // closed after the agent process is reaped
}

// startSession spawns the agent described by cfg and wires its pumps. The
// handshake is not started; see (*Session).handshake.
func startSession(cfg agentbridge.SessionConfig, sink agentbridge.Sink, opts Options) (*Session, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, fmt.Errorf("%w: no agent command configured", agentbridge.ErrUnavailable)
	}
	bin, err := exec.LookPath(cfg.Command[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", agentbridge.ErrUnavailable, cfg.Command[0], err)
	}
	root, err := sandbox.Canonicalize(cfg.Worktree)
	if err != nil {
		return nil, fmt.Errorf("acp: worktree: %w", err)
	}

	cmd := exec.Command(bin, cfg.Command[1:]...)
	cmd.Dir = root
	cmd.Env = agentbridge.MergeEnv(os.Environ(), cfg.Env)
	procutil.NewGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %w", agentbridge.ErrUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", agentbridge.ErrUnavailable, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", agentbridge.ErrUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", agentbridge.ErrUnavailable, cfg.Command[0], err)
	}

	s := &Session{
		name:          cfg.Name,
		root:          root,
		cmd:           cmd,
		sink:          sink,
		logger:        opts.Logger.With("session", cfg.Name),
		opts:          opts,
		handshakeDone: make(chan struct{}),
		perms:         newPermissionTable(),
		done:          make(chan struct{}),
	}
	s.terms = newTerminalRegistry(s)
	s.conn = newConn(stdout, stdin, connConfig{
		maxMessageSize: opts.MaxMessageSize,
		onRequest:      s.route,
		onNotify:       s.handleNotification,
		onParseError: func(line []byte, err error) {
			s.logger.Warn("dropping malformed frame", "err", err, "line", errfmt.Line(string(line)))
		},
	})

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		s.pumpStderr(stderr)
	}()
	go s.readLoop(stderrDone)

	s.logger.Debug("agent started", "pid", cmd.Process.Pid, "command", bin, "worktree", root)
	return s, nil
}

// readLoop runs the connection reader. On end-of-stream it unblocks
// pending permission waits, publishes Stopped and reaps the process.
func (s *Session) readLoop(stderrDone <-chan struct{}) {
	s.conn.ReadLoop()
	if err := s.conn.Err(); err != nil {
		s.logger.Warn("agent stdout read failed", "err", err)
	}
	s.conn.Close()
	s.perms.drain()

	// The handshake's calls were failed by ReadLoop; let it report first
	// so Stopped is the last status of the session.
	<-s.handshakeDone
	s.publishStatus(agentbridge.StatusStopped, "")

	<-stderrDone
	err := s.cmd.Wait()
	s.logger.Debug("agent exited", "err", err)
	close(s.done)
}

// pumpStderr forwards agent stderr lines to the diagnostics log.
func (s *Session) pumpStderr(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			s.logger.Debug(errfmt.Line(line), "stream", "stderr")
		}
		if err != nil {
			return
		}
	}
}

// SessionID returns the agent-assigned session id, or "" before the
// handshake succeeds.
func (s *Session) SessionID() string {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	return s.sessionID
}

func (s *Session) setSessionID(id string) {
	s.idMu.Lock()
	s.sessionID = id
	s.idMu.Unlock()
}

// Exited reports whether the agent process has been reaped.
func (s *Session) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Call sends a host-initiated request to the agent and waits for its reply.
func (s *Session) Call(ctx context.Context, method string, params, result any) error {
	return s.conn.Call(ctx, method, params, result)
}

// Prompt sends text as one session/prompt turn and blocks until the agent
// finishes it. It waits for an in-flight handshake first.
func (s *Session) Prompt(ctx context.Context, text string) (agentbridge.StopReason, error) {
	if s.stopping.Load() {
		return "", agentbridge.ErrTerminated
	}
	select {
	case <-s.handshakeDone:
	case <-s.done:
		return "", agentbridge.ErrTerminated
	case <-ctx.Done():
		return "", ctx.Err()
	}
	sid := s.SessionID()
	if sid == "" {
		return "", agentbridge.ErrHandshakeIncomplete
	}

	params := promptParams{
		SessionID: sid,
		Prompt:    []contentBlock{{Type: "text", Text: text}},
	}
	var result promptResult
	if err := s.conn.Call(ctx, MethodSessionPrompt, params, &result); err != nil {
		return "", fmt.Errorf("acp: prompt: %w", err)
	}
	return sanitizeStopReason(result.StopReason), nil
}

// maxStopReasonLen caps the stopReason handed to hosts.
const maxStopReasonLen = 64

// sanitizeStopReason rejects reasons containing control characters and caps
// the rest at maxStopReasonLen bytes.
func sanitizeStopReason(raw string) agentbridge.StopReason {
	if strings.IndexFunc(raw, unicode.IsControl) >= 0 {
		return ""
	}
	return agentbridge.StopReason(errfmt.Head(raw, maxStopReasonLen))
}

// Cancel asks the agent to abort its active turn.
func (s *Session) Cancel() error {
	sid := s.SessionID()
	if sid == "" {
		return agentbridge.ErrHandshakeIncomplete
	}
	if err := s.conn.Notify(MethodSessionCancel, cancelParams{SessionID: sid}); err != nil {
		return fmt.Errorf("acp: cancel: %w", err)
	}
	return nil
}

// ResolvePermission delivers optionID to the pending permission request id.
func (s *Session) ResolvePermission(id agentbridge.RequestID, optionID string) error {
	return s.perms.resolve(id, optionID)
}

// Stop tears the session down: pending permissions are answered
// "cancelled", terminals are killed, a shutdown notification is sent and
// stdin is closed. The agent then gets GracePeriod to exit before SIGTERM,
// and another before SIGKILL. Safe to call multiple times.
func (s *Session) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)

		for _, id := range s.perms.drain() {
			s.conn.sendResult(id, cancelledPermission())
		}
		s.terms.killAll()
		_ = s.conn.Notify(MethodShutdown, nil)
		s.conn.Close()

		s.stopErr = s.awaitExit(ctx)
	})
	<-s.done
	return s.stopErr
}

// awaitExit escalates stdin EOF -> SIGTERM -> SIGKILL until the process is
// reaped. A cancelled ctx skips straight to SIGKILL.
func (s *Session) awaitExit(ctx context.Context) error {
	grace := s.opts.GracePeriod
	proc := s.cmd.Process

	select {
	case <-s.done:
		return nil
	case <-time.After(grace):
	case <-ctx.Done():
		return s.forceKill()
	}

	s.logger.Debug("agent ignored stdin EOF, sending SIGTERM")
	if err := procutil.Signal(proc, syscall.SIGTERM); err != nil {
		return s.forceKill()
	}
	select {
	case <-s.done:
		return nil
	case <-time.After(grace):
	case <-ctx.Done():
	}
	return s.forceKill()
}

func (s *Session) forceKill() error {
	s.logger.Warn("killing agent process group")
	err := procutil.KillGroup(s.cmd.Process)
	<-s.done
	if err != nil {
		return fmt.Errorf("acp: kill agent: %w", err)
	}
	return nil
}

// handleNotification runs inline in ReadLoop. session/update is published
// with the session name attached; anything else is logged and ignored.
func (s *Session) handleNotification(method string, params json.RawMessage) {
	if method != MethodSessionUpdate {
		s.logger.Debug("ignoring agent notification", "method", method)
		return
	}
	var notif sessionNotification
	if err := json.Unmarshal(params, &notif); err != nil {
		s.logger.Warn("dropping malformed session/update", "err", err)
		return
	}
	sid := notif.SessionID
	if sid == "" {
		sid = s.SessionID()
	}
	s.publish(agentbridge.Event{
		Kind:      agentbridge.EventSessionUpdate,
		SessionID: sid,
		Update:    notif.Update,
	})
}

func (s *Session) publishStatus(st agentbridge.Status, msg string) {
	s.publish(agentbridge.Event{
		Kind:      agentbridge.EventStatus,
		Status:    st,
		SessionID: s.SessionID(),
		Message:   msg,
	})
}

// publish stamps the session name and hands ev to the sink. Sink failures
// are logged; they never stop the session.
func (s *Session) publish(ev agentbridge.Event) {
	ev.Session = s.name
	if err := s.sink.Publish(ev); err != nil {
		s.logger.Warn("publish event", "kind", ev.Kind, "err", err)
	}
}

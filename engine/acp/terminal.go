//go:build !windows

package acp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/engine/internal/errfmt"
	"github.com/dmora/agentbridge/engine/internal/procutil"
	"github.com/dmora/agentbridge/engine/internal/sandbox"
)

// noLimit marks a terminal whose output buffer is never trimmed.
const noLimit = -1

// terminal is one agent-controlled child process with captured output.
type terminal struct {
	id    string
	cmd   *exec.Cmd
	limit int // bytes; noLimit disables trimming

	mu        sync.Mutex
	buf       []byte
	truncated bool // sticky
	exit      *agentbridge.ExitStatus

	done    chan struct{} // closed once the process is reaped
	drained chan struct{} // closed once both output pipes hit EOF
}

// newTerminal returns an unstarted terminal for cmd.
func newTerminal(id string, cmd *exec.Cmd, limit int) *terminal {
	return &terminal{
		id:    id,
		cmd:   cmd,
		limit:   limit,
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
}

// write appends text to the buffer, trimming from the front to the limit.
func (t *terminal) write(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, text...)
	if t.limit == noLimit {
		return
	}
	var cut bool
	if t.buf, cut = errfmt.Tail(t.buf, t.limit); cut {
		t.truncated = true
	}
}

// outputDrainDelay bounds how long the reaper waits for buffered output
// after the process exits. Descendants that inherited the pipes can hold
// them open indefinitely.
const outputDrainDelay = 250 * time.Millisecond

// pump copies r into the buffer line by line, replacing invalid UTF-8, and
// closes r at EOF.
func (t *terminal) pump(r io.ReadCloser) {
	defer r.Close()
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			t.write(strings.ToValidUTF8(line, "\uFFFD"))
		}
		if err != nil {
			return
		}
	}
}

// start launches the process, both output pumps, and the reaper.
//
// The pipes are plain os.Pipe pairs so that cmd.Wait returns when the
// process exits, not when every holder of the write ends has gone.
func (t *terminal) start() error {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}
	t.cmd.Stdout, t.cmd.Stderr = stdoutW, stderrW
	err = t.cmd.Start()
	// The child has its own copies of the write ends.
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return err
	}

	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() { defer pumps.Done(); t.pump(stdoutR) }()
	go func() { defer pumps.Done(); t.pump(stderrR) }()
	go func() {
		pumps.Wait()
		close(t.drained)
	}()
	go func() {
		_ = t.cmd.Wait() // exit status is read from ProcessState
		select {
		case <-t.drained:
		case <-time.After(outputDrainDelay):
		}
		t.mu.Lock()
		t.exit = procutil.ExitStatus(t.cmd.ProcessState)
		t.mu.Unlock()
		close(t.done)
	}()
	return nil
}

// snapshot returns the current output and, if the process has exited, its
// exit status. It never blocks on the process.
func (t *terminal) snapshot() agentbridge.TerminalOutput {
	t.mu.Lock()
	defer t.mu.Unlock()
	return agentbridge.TerminalOutput{
		TerminalID: t.id,
		Output:     string(t.buf),
		Truncated:  t.truncated,
		ExitStatus: t.exit,
	}
}

// wait blocks until the process exits.
func (t *terminal) wait() *agentbridge.ExitStatus {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exit
}

func (t *terminal) exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// kill force-terminates the process group. Killing a terminal that exited
// and left no descendant holding its output open is a no-op.
func (t *terminal) kill() error {
	if t.exited() {
		select {
		case <-t.drained:
			return nil
		default:
		}
	}
	return procutil.KillGroup(t.cmd.Process)
}

// terminalRegistry maps generated terminal ids to live terminals for one
// session.
type terminalRegistry struct {
	s *Session

	mu     sync.Mutex
	terms  map[string]*terminal
	closed bool
}

func newTerminalRegistry(s *Session) *terminalRegistry {
	return &terminalRegistry{s: s, terms: make(map[string]*terminal)}
}

// outputLimit picks the byte limit for a new terminal.
func (r *terminalRegistry) outputLimit(requested *int) int {
	if requested != nil {
		return max(0, *requested)
	}
	if d := r.s.opts.DefaultOutputByteLimit; d > 0 {
		return d
	}
	return noLimit
}

// create services terminal/create.
func (r *terminalRegistry) create(params json.RawMessage) (any, error) {
	var p createTerminalParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	if p.Command == "" {
		return nil, invalidParams(errors.New("command is required"))
	}

	cwd := r.s.root
	if p.CWD != nil && *p.CWD != "" {
		resolved, err := sandbox.Resolve(r.s.root, *p.CWD)
		if err != nil {
			return nil, err
		}
		cwd = resolved
	}

	overlay := make(map[string]string, len(p.Env))
	for _, e := range p.Env {
		overlay[e.Name] = e.Value
	}
	cmd := exec.Command(p.Command, p.Args...)
	cmd.Dir = cwd
	cmd.Env = agentbridge.MergeEnv(os.Environ(), overlay)
	procutil.NewGroup(cmd)

	t := newTerminal(uuid.Must(uuid.NewV7()).String(), cmd, r.outputLimit(p.OutputByteLimit))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, agentbridge.ErrTerminated
	}
	if err := t.start(); err != nil {
		return nil, fmt.Errorf("terminal/create %s: %w", p.Command, err)
	}
	r.terms[t.id] = t

	r.s.logger.Debug("terminal created", "terminal", t.id, "command", p.Command, "cwd", cwd)
	return createTerminalResult{TerminalID: t.id}, nil
}

// lookup decodes terminal params and finds the addressed terminal.
func (r *terminalRegistry) lookup(params json.RawMessage) (*terminal, error) {
	var p terminalParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	r.mu.Lock()
	t, ok := r.terms[p.TerminalID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: terminal %q", agentbridge.ErrNotFound, p.TerminalID)
	}
	return t, nil
}

// output services terminal/output and mirrors the reply as an event.
func (r *terminalRegistry) output(params json.RawMessage) (any, error) {
	t, err := r.lookup(params)
	if err != nil {
		return nil, err
	}
	snap := t.snapshot()
	r.s.publish(agentbridge.Event{
		Kind:      agentbridge.EventTerminalOutput,
		SessionID: r.s.SessionID(),
		Terminal:  &snap,
	})
	return terminalOutputResult{
		Output:     snap.Output,
		Truncated:  snap.Truncated,
		ExitStatus: snap.ExitStatus,
	}, nil
}

// waitForExit services terminal/wait_for_exit.
func (r *terminalRegistry) waitForExit(params json.RawMessage) (any, error) {
	t, err := r.lookup(params)
	if err != nil {
		return nil, err
	}
	var res waitForExitResult
	if st := t.wait(); st != nil {
		res.ExitCode, res.Signal = st.ExitCode, st.Signal
	}
	return res, nil
}

// kill services terminal/kill. The terminal stays registered so its output
// and exit status remain readable.
func (r *terminalRegistry) kill(params json.RawMessage) (any, error) {
	t, err := r.lookup(params)
	if err != nil {
		return nil, err
	}
	if err := t.kill(); err != nil {
		return nil, fmt.Errorf("terminal/kill: %w", err)
	}
	return emptyResult{}, nil
}

// release services terminal/release.
func (r *terminalRegistry) release(params json.RawMessage) (any, error) {
	t, err := r.lookup(params)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	delete(r.terms, t.id)
	r.mu.Unlock()
	if err := t.kill(); err != nil {
		r.s.logger.Warn("kill released terminal", "terminal", t.id, "err", err)
	}
	return emptyResult{}, nil
}

// killAll closes the registry and kills every terminal still registered.
func (r *terminalRegistry) killAll() {
	r.mu.Lock()
	r.closed = true
	terms := r.terms
	r.terms = make(map[string]*terminal)
	r.mu.Unlock()

	for id, t := range terms {
		if err := t.kill(); err != nil {
			r.s.logger.Warn("kill terminal", "terminal", id, "err", err)
		}
	}
}

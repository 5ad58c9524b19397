//go:build !windows

// Package procutil holds the process signalling and exit-status helpers
// shared by the agent process and virtual terminals.
package procutil

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/dmora/agentbridge"
)

// NewGroup configures cmd to start in its own process group, so that
// KillGroup also reaches any children the command spawns.
func NewGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Signal sends sig to a process, returning nil if the process
// has already exited (os.ErrProcessDone).
func Signal(proc *os.Process, sig os.Signal) error {
	if proc == nil {
		return nil
	}
	err := proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// KillGroup sends SIGKILL to the process group led by proc, falling back to
// the process itself when the group is already gone. Exited processes are
// not an error.
func KillGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	// ESRCH: group already gone. EPERM: proc is not a group leader.
	_ = unix.Kill(-proc.Pid, unix.SIGKILL)
	return Signal(proc, os.Kill)
}

// ExitStatus converts a finished process state into the protocol's exit
// status. A signalled process reports its signal name (e.g. "SIGKILL") and
// no exit code.
func ExitStatus(state *os.ProcessState) *agentbridge.ExitStatus {
	if state == nil {
		return nil
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		name := unix.SignalName(ws.Signal())
		if name == "" {
			name = ws.Signal().String()
		}
		return &agentbridge.ExitStatus{Signal: &name}
	}
	code := state.ExitCode()
	return &agentbridge.ExitStatus{ExitCode: &code}
}

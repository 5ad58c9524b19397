package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dmora/agentbridge"
)

func render(ev agentbridge.Event) string {
	var buf bytes.Buffer
	newPrinter(&buf).Event(ev)
	return buf.String()
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func TestPrinter_Event(t *testing.T) {
	tests := []struct {
		name string
		ev   agentbridge.Event
		want []string
	}{
		{
			name: "ready with warning",
			ev:   agentbridge.Event{Kind: agentbridge.EventStatus, Status: agentbridge.StatusReady, SessionID: "abc", Message: "failed to set mode"},
			want: []string{"[status] ready session abc", "[warn] failed to set mode"},
		},
		{
			name: "error status",
			ev:   agentbridge.Event{Kind: agentbridge.EventStatus, Status: agentbridge.StatusError, Message: "acp: session/new: missing sessionId"},
			want: []string{"[error] acp: session/new: missing sessionId"},
		},
		{
			name: "starting",
			ev:   agentbridge.Event{Kind: agentbridge.EventStatus, Status: agentbridge.StatusStarting},
			want: []string{"[status] starting"},
		},
		{
			name: "message chunk",
			ev: agentbridge.Event{Kind: agentbridge.EventSessionUpdate,
				Update: json.RawMessage(`{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"hi"}}`)},
			want: []string{"[text] hi"},
		},
		{
			name: "unknown update kind",
			ev:   agentbridge.Event{Kind: agentbridge.EventSessionUpdate, Update: json.RawMessage(`{"sessionUpdate":"weather"}`)},
			want: []string{"[weather]"},
		},
		{
			name: "permission",
			ev: agentbridge.Event{Kind: agentbridge.EventPermissionRequested, Permission: &agentbridge.PermissionRequest{
				ID:       agentbridge.StringID("perm-1"),
				ToolCall: json.RawMessage(`{"toolCallId":"c1","title":"write_file","kind":"edit"}`),
				Options: []agentbridge.PermissionOption{
					{OptionID: "allow-once", Name: "Allow once", Kind: "allow_once"},
				},
			}},
			want: []string{"[permission] perm-1 write_file (edit)", "allow-once", "Allow once", "/allow perm-1 <option-id>"},
		},
		{
			name: "terminal exited",
			ev: agentbridge.Event{Kind: agentbridge.EventTerminalOutput, Terminal: &agentbridge.TerminalOutput{
				TerminalID: "t1", Output: "a\nb\n", Truncated: true,
				ExitStatus: &agentbridge.ExitStatus{ExitCode: intPtr(7)},
			}},
			want: []string{"[terminal] t1 exit=7 truncated", "    a\n    b\n"},
		},
		{
			name: "terminal signalled",
			ev: agentbridge.Event{Kind: agentbridge.EventTerminalOutput, Terminal: &agentbridge.TerminalOutput{
				TerminalID: "t2", ExitStatus: &agentbridge.ExitStatus{Signal: strPtr("SIGKILL")},
			}},
			want: []string{"[terminal] t2 signal=SIGKILL"},
		},
		{
			name: "terminal running",
			ev: agentbridge.Event{Kind: agentbridge.EventTerminalOutput, Terminal: &agentbridge.TerminalOutput{
				TerminalID: "t3", Output: "partial",
			}},
			want: []string{"[terminal] t3 running", "    partial"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(tt.ev)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output %q missing %q", got, w)
				}
			}
		})
	}
}

func TestPrinter_Result(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	p.Result("end_turn", nil)
	p.Result("", errors.New("agentbridge: session terminated"))

	want := "[result] end_turn\n[error] agentbridge: session terminated\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

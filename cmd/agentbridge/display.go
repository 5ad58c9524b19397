package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/engine/acp"
)

// printer renders engine events as tagged lines. Styles degrade to plain
// text when out is not a terminal.
type printer struct {
	out io.Writer

	tag     lipgloss.Style
	errTag  lipgloss.Style
	dim     lipgloss.Style
	hint    lipgloss.Style
	success lipgloss.Style
}

func newPrinter(out io.Writer) *printer {
	r := lipgloss.NewRenderer(out)
	return &printer{
		out:     out,
		tag:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		errTag:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		dim:     r.NewStyle().Faint(true),
		hint:    r.NewStyle().Italic(true).Foreground(lipgloss.Color("11")),
		success: r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// tags maps session/update kinds to short line tags.
var tags = map[string]string{
	"agent_message_chunk":       "text",
	"agent_thought_chunk":       "think",
	"user_message_chunk":        "user",
	"tool_call":                 "tool",
	"tool_call_update":          "tool",
	"plan":                      "plan",
	"current_mode_update":       "mode",
	"session_info_update":       "info",
	"available_commands_update": "commands",
}

func (p *printer) line(tag, text string) {
	_, _ = fmt.Fprintf(p.out, "%s %s\n", p.tag.Render(fmt.Sprintf("[%s]", tag)), text)
}

func (p *printer) errorLine(text string) {
	_, _ = fmt.Fprintf(p.out, "%s %s\n", p.errTag.Render("[error]"), text)
}

// Event prints one engine event.
func (p *printer) Event(ev agentbridge.Event) {
	switch ev.Kind {
	case agentbridge.EventStatus:
		p.status(ev)
	case agentbridge.EventSessionUpdate:
		kind, text := acp.DescribeUpdate(ev.Update)
		tag, ok := tags[kind]
		if !ok {
			tag = kind
		}
		p.line(tag, text)
	case agentbridge.EventPermissionRequested:
		if ev.Permission != nil {
			p.permission(ev.Permission)
		}
	case agentbridge.EventTerminalOutput:
		if ev.Terminal != nil {
			p.terminal(ev.Terminal)
		}
	default:
		p.line(string(ev.Kind), ev.Message)
	}
}

func (p *printer) status(ev agentbridge.Event) {
	switch ev.Status {
	case agentbridge.StatusError:
		p.errorLine(ev.Message)
	case agentbridge.StatusReady:
		text := p.success.Render("ready") + " " + p.dim.Render("session "+ev.SessionID)
		p.line("status", text)
		if ev.Message != "" {
			p.line("warn", ev.Message)
		}
	default:
		text := string(ev.Status)
		if ev.Message != "" {
			text += " " + ev.Message
		}
		p.line("status", text)
	}
}

func (p *printer) permission(req *agentbridge.PermissionRequest) {
	var call struct {
		Title string `json:"title"`
		Kind  string `json:"kind"`
	}
	_ = json.Unmarshal(req.ToolCall, &call)
	title := call.Title
	if title == "" {
		title = "(untitled tool call)"
	}
	if call.Kind != "" {
		title += " " + p.dim.Render("("+call.Kind+")")
	}
	id := formatID(req.ID)
	p.line("permission", fmt.Sprintf("%s %s", id, title))
	for _, opt := range req.Options {
		_, _ = fmt.Fprintf(p.out, "    %-16s %s %s\n", opt.OptionID, opt.Name, p.dim.Render(opt.Kind))
	}
	_, _ = fmt.Fprintln(p.out, "    "+p.hint.Render(fmt.Sprintf("answer with /allow %s <option-id>", id)))
}

func (p *printer) terminal(t *agentbridge.TerminalOutput) {
	var meta []string
	if st := t.ExitStatus; st != nil {
		switch {
		case st.ExitCode != nil:
			meta = append(meta, fmt.Sprintf("exit=%d", *st.ExitCode))
		case st.Signal != nil:
			meta = append(meta, "signal="+*st.Signal)
		}
	} else {
		meta = append(meta, "running")
	}
	if t.Truncated {
		meta = append(meta, "truncated")
	}
	p.line("terminal", t.TerminalID+" "+p.dim.Render(strings.Join(meta, " ")))
	for _, l := range strings.Split(strings.TrimRight(t.Output, "\n"), "\n") {
		if l != "" {
			_, _ = fmt.Fprintln(p.out, "    "+l)
		}
	}
}

// Result prints the outcome of a prompt turn.
func (p *printer) Result(reason agentbridge.StopReason, err error) {
	if err != nil {
		p.errorLine(err.Error())
		return
	}
	p.line("result", string(reason))
}

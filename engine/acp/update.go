// update.go summarizes ACP session/update payloads for display.
//
// The engine republishes session/update notifications verbatim; hosts that
// want a one-line rendering call DescribeUpdate on Event.Update. The inner
// payload carries a "sessionUpdate" discriminator:
//
//	{"sessionUpdate":"agent_message_chunk", "content":{...}}
//
// Adding a new update type = one map entry + one function.
package acp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmora/agentbridge/engine/internal/errfmt"
)

// UpdateUnknown is the kind reported for payloads without a discriminator.
const UpdateUnknown = "unknown"

// updateDescriber renders one update type as text.
type updateDescriber func(update json.RawMessage) (string, error)

// updateDescribers dispatches sessionUpdate discriminator values.
var updateDescribers = map[string]updateDescriber{
	"agent_message_chunk":       describeContentChunk,
	"agent_thought_chunk":       describeContentChunk,
	"user_message_chunk":        describeContentChunk,
	"tool_call":                 describeToolCall,
	"tool_call_update":          describeToolCallUpdate,
	"plan":                      describePlan,
	"current_mode_update":       describeModeUpdate,
	"session_info_update":       describeSessionInfo,
	"available_commands_update": describeAvailableCommands,
}

// DescribeUpdate returns the discriminator of a session/update payload and
// a short human-readable text for it. Unknown types yield their
// discriminator and an empty text; malformed payloads yield an error text.
func DescribeUpdate(update json.RawMessage) (kind, text string) {
	if len(update) == 0 {
		return UpdateUnknown, ""
	}
	var header sessionUpdateHeader
	if err := json.Unmarshal(update, &header); err != nil {
		return UpdateUnknown, errfmt.Truncate(fmt.Sprintf("malformed update: %v", err))
	}
	if header.SessionUpdate == "" {
		return UpdateUnknown, ""
	}
	describe, ok := updateDescribers[header.SessionUpdate]
	if !ok {
		return header.SessionUpdate, ""
	}
	text, err := describe(update)
	if err != nil {
		return header.SessionUpdate, errfmt.Truncate(fmt.Sprintf("malformed %s: %v", header.SessionUpdate, err))
	}
	return header.SessionUpdate, text
}

// --- Content chunks ---

func describeContentChunk(update json.RawMessage) (string, error) {
	var d struct {
		Content struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(update, &d); err != nil {
		return "", err
	}
	if d.Content.Type != "" && d.Content.Type != "text" {
		return "[" + d.Content.Type + "]", nil
	}
	return d.Content.Text, nil
}

// --- Tool events ---

// toolCallUpdate holds the fields of tool_call and tool_call_update used
// for display.
type toolCallUpdate struct {
	ToolCallID string          `json:"toolCallId"`
	Title      string          `json:"title"`
	Kind       string          `json:"kind"`
	Status     string          `json:"status"`
	Content    json.RawMessage `json:"content"`
	RawOutput  json.RawMessage `json:"rawOutput"`
}

func describeToolCall(update json.RawMessage) (string, error) {
	var d toolCallUpdate
	if err := json.Unmarshal(update, &d); err != nil {
		return "", err
	}
	if d.Kind != "" {
		return fmt.Sprintf("%s (%s)", d.Title, d.Kind), nil
	}
	return d.Title, nil
}

func describeToolCallUpdate(update json.RawMessage) (string, error) {
	var d toolCallUpdate
	if err := json.Unmarshal(update, &d); err != nil {
		return "", err
	}
	title := d.Title
	if title == "" {
		title = d.ToolCallID
	}
	switch d.Status {
	case "completed":
		if out := extractToolOutput(d); out != "" {
			return fmt.Sprintf("%s completed: %s", title, out), nil
		}
		return title + " completed", nil
	case "failed":
		return title + " failed", nil
	default: // in_progress, pending
		return fmt.Sprintf("%s (%s)", title, d.Status), nil
	}
}

// extractToolOutput gets the output from a completed tool call,
// preferring structured content text over rawOutput.
func extractToolOutput(d toolCallUpdate) string {
	if text := extractContentText(d.Content); text != "" {
		return text
	}
	if len(d.RawOutput) > 0 && string(d.RawOutput) != "null" {
		var s string
		if json.Unmarshal(d.RawOutput, &s) == nil {
			return s
		}
		return string(d.RawOutput)
	}
	return ""
}

// extractContentText parses the ACP content block array and returns the
// first text value, or "" if the array is absent/empty/unparseable.
func extractContentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var blocks []struct {
		Content struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil || len(blocks) == 0 {
		return ""
	}
	return blocks[0].Content.Text
}

// --- Plan ---

func describePlan(update json.RawMessage) (string, error) {
	var d struct {
		Entries []struct {
			Content string `json:"content"`
			Status  string `json:"status"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(update, &d); err != nil {
		return "", err
	}
	var b strings.Builder
	for i, e := range d.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		mark := " "
		switch e.Status {
		case "completed":
			mark = "x"
		case "in_progress":
			mark = ">"
		}
		fmt.Fprintf(&b, "[%s] %s", mark, e.Content)
	}
	return b.String(), nil
}

// --- Status/metadata events ---

func describeModeUpdate(update json.RawMessage) (string, error) {
	var d struct {
		CurrentModeID string `json:"currentModeId"`
	}
	if err := json.Unmarshal(update, &d); err != nil {
		return "", err
	}
	return "mode:" + d.CurrentModeID, nil
}

func describeSessionInfo(update json.RawMessage) (string, error) {
	var d struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(update, &d); err != nil {
		return "", err
	}
	return "session_info:" + d.Title, nil
}

func describeAvailableCommands(update json.RawMessage) (string, error) {
	var d struct {
		AvailableCommands []struct {
			Name string `json:"name"`
		} `json:"availableCommands"`
	}
	if err := json.Unmarshal(update, &d); err != nil {
		return "", err
	}
	names := make([]string, 0, len(d.AvailableCommands))
	for _, c := range d.AvailableCommands {
		names = append(names, "/"+c.Name)
	}
	return strings.Join(names, " "), nil
}

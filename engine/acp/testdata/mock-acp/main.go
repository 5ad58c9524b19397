//go:build ignore

// Command mock-acp simulates an ACP agent for integration tests.
// It speaks newline-delimited JSON-RPC 2.0 over stdin/stdout and handles
// initialize, session/new, session/set_mode, session/prompt,
// session/cancel and shutdown.
//
// Environment variables:
//
//	ACP_MOCK_LOG=<path>                append every received frame to path
//	ACP_MOCK_MODE=missing-session-id   session/new result has no sessionId
//	ACP_MOCK_MODE=init-error           return JSON-RPC error to initialize
//	ACP_MOCK_MODE=auth                 advertise authMethods in initialize
//	ACP_MOCK_MODE=set-mode-fail        return error for session/set_mode
//	ACP_MOCK_MODE=crash-after-init     exit after answering initialize
//	ACP_MOCK_MODE=permission           ask permission (string id) during prompt
//	ACP_MOCK_MODE=tools                drive fs and terminal methods during prompt
//	ACP_MOCK_MODE=stubborn             ignore shutdown, stdin EOF and SIGTERM
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var (
	enc  = json.NewEncoder(os.Stdout)
	mode = os.Getenv("ACP_MOCK_MODE")
	logf *os.File

	// A prompt that is waiting on agent-initiated requests.
	promptID  json.RawMessage
	sessionID string

	// Steps of the tools scenario, keyed by the id we sent.
	steps = map[string]func(msg *rpcMessage){}
	seq   int
)

func main() {
	if path := os.Getenv("ACP_MOCK_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mock-acp: open log: %v\n", err)
			os.Exit(2)
		}
		logf = f
	}
	if mode == "stubborn" {
		signal.Ignore(syscall.SIGTERM)
	}
	fmt.Fprintln(os.Stderr, "mock-acp: ready")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if logf != nil {
			_, _ = logf.Write(append(append([]byte(nil), line...), '\n'))
		}
		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Method == "" {
			handleResponse(&msg)
			continue
		}
		handleRequest(&msg)
	}
	if mode == "stubborn" {
		time.Sleep(time.Hour)
	}
}

func handleRequest(req *rpcMessage) {
	switch req.Method {
	case "initialize":
		handleInitialize(req)
	case "session/new":
		handleSessionNew(req)
	case "session/set_mode":
		if mode == "set-mode-fail" {
			respondError(req.ID, -32000, "mock set_mode error")
			return
		}
		respond(req.ID, nil)
	case "session/prompt":
		handleSessionPrompt(req)
	case "session/cancel":
		if promptID != nil {
			respond(promptID, map[string]any{"stopReason": "cancelled"})
			promptID = nil
		}
	case "shutdown":
		if mode != "stubborn" {
			os.Exit(0)
		}
	default:
		if req.ID != nil {
			respondError(req.ID, -32601, "method not found")
		}
	}
}

func handleInitialize(req *rpcMessage) {
	if mode == "init-error" {
		respondError(req.ID, -32600, "mock init error")
		return
	}
	var authMethods []map[string]string
	if mode == "auth" {
		authMethods = []map[string]string{{"id": "oauth", "name": "OAuth"}}
	}
	respond(req.ID, map[string]any{
		"protocolVersion": 1,
		"agentInfo":       map[string]string{"name": "mock-acp", "version": "0.1.0"},
		"authMethods":     authMethods,
	})
	if mode == "crash-after-init" {
		os.Exit(1)
	}
}

func handleSessionNew(req *rpcMessage) {
	if mode == "missing-session-id" {
		respond(req.ID, map[string]any{})
		return
	}
	sessionID = "abc"
	respond(req.ID, map[string]any{"sessionId": sessionID})
}

func handleSessionPrompt(req *rpcMessage) {
	var params struct {
		SessionID string `json:"sessionId"`
		Prompt    []struct {
			Text string `json:"text"`
		} `json:"prompt"`
	}
	_ = json.Unmarshal(req.Params, &params)

	text := ""
	if len(params.Prompt) > 0 {
		text = params.Prompt[0].Text
	}
	notifyUpdate(params.SessionID, map[string]any{
		"sessionUpdate": "agent_message_chunk",
		"content":       map[string]string{"type": "text", "text": "echo: " + text},
	})

	switch mode {
	case "permission":
		promptID = req.ID
		call(`"perm-1"`, "session/request_permission", map[string]any{
			"sessionId": params.SessionID,
			"toolCall":  map[string]any{"toolCallId": "call_1", "title": "write_file", "kind": "edit"},
			"options": []map[string]string{
				{"optionId": "allow-once", "name": "Allow once", "kind": "allow_once"},
				{"optionId": "reject-once", "name": "Reject", "kind": "reject_once"},
			},
		}, func(msg *rpcMessage) {
			notifyUpdate(params.SessionID, map[string]any{
				"sessionUpdate": "permission_outcome",
				"outcome":       json.RawMessage(msg.Result),
			})
			finishPrompt()
		})
	case "tools":
		promptID = req.ID
		runTools(params.SessionID)
	default:
		respond(req.ID, map[string]any{"stopReason": "end_turn"})
	}
}

// runTools exercises fs and terminal methods in sequence, reporting each
// reply as an agent_message_chunk, then ends the turn.
func runTools(sid string) {
	report := func(step string) func(*rpcMessage) {
		return func(msg *rpcMessage) {
			data, _ := json.Marshal(msg)
			notifyUpdate(sid, map[string]any{
				"sessionUpdate": "agent_message_chunk",
				"content":       map[string]string{"type": "text", "text": step + " " + string(data)},
			})
		}
	}
	var terminalID string
	callNext(sid, "fs/write_text_file", map[string]any{"path": "out/hello.txt", "content": "one\ntwo\nthree"}, func(msg *rpcMessage) {
		report("write")(msg)
		callNext(sid, "fs/read_text_file", map[string]any{"path": "out/hello.txt", "line": 2, "limit": 1}, func(msg *rpcMessage) {
			report("read")(msg)
			callNext(sid, "fs/read_text_file", map[string]any{"path": "../outside.txt"}, func(msg *rpcMessage) {
				report("escape")(msg)
				callNext(sid, "terminal/create", map[string]any{"command": "sh", "args": []string{"-c", "echo term-ok; exit 7"}}, func(msg *rpcMessage) {
					report("create")(msg)
					var res struct {
						TerminalID string `json:"terminalId"`
					}
					_ = json.Unmarshal(msg.Result, &res)
					terminalID = res.TerminalID
					callNext(sid, "terminal/wait_for_exit", map[string]any{"terminalId": terminalID}, func(msg *rpcMessage) {
						report("wait")(msg)
						callNext(sid, "terminal/output", map[string]any{"terminalId": terminalID}, func(msg *rpcMessage) {
							report("output")(msg)
							callNext(sid, "terminal/release", map[string]any{"terminalId": terminalID}, func(msg *rpcMessage) {
								report("release")(msg)
								callNext(sid, "bogus/method", map[string]any{}, func(msg *rpcMessage) {
									report("bogus")(msg)
									finishPrompt()
								})
							})
						})
					})
				})
			})
		})
	})
}

func finishPrompt() {
	if promptID != nil {
		respond(promptID, map[string]any{"stopReason": "end_turn"})
		promptID = nil
	}
}

// callNext sends an agent-initiated request with a fresh numeric id.
func callNext(sid, method string, params map[string]any, then func(*rpcMessage)) {
	seq++
	params["sessionId"] = sid
	call(fmt.Sprint(seq), method, params, then)
}

func call(id, method string, params any, then func(*rpcMessage)) {
	steps[id] = then
	p, _ := json.Marshal(params)
	_ = enc.Encode(rpcMessage{JSONRPC: "2.0", ID: json.RawMessage(id), Method: method, Params: p})
}

func handleResponse(msg *rpcMessage) {
	id := string(msg.ID)
	if then, ok := steps[id]; ok {
		delete(steps, id)
		then(msg)
	}
}

func respond(id json.RawMessage, result any) {
	data := json.RawMessage("null")
	if result != nil {
		var err error
		if data, err = json.Marshal(result); err != nil {
			fmt.Fprintf(os.Stderr, "mock-acp: marshal: %v\n", err)
			return
		}
	}
	_ = enc.Encode(rpcMessage{JSONRPC: "2.0", ID: id, Result: data})
}

func respondError(id json.RawMessage, code int, message string) {
	_ = enc.Encode(rpcMessage{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func notifyUpdate(sid string, update any) {
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	params, _ := json.Marshal(map[string]any{"sessionId": sid, "update": json.RawMessage(data)})
	_ = enc.Encode(rpcMessage{JSONRPC: "2.0", Method: "session/update", Params: params})
}

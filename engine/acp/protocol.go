package acp

import (
	"encoding/json"

	"github.com/dmora/agentbridge"
)

// JSON-RPC 2.0 method constants for the Agent Client Protocol.
const (
	MethodInitialize     = "initialize"
	MethodSessionNew     = "session/new"
	MethodSessionPrompt  = "session/prompt"
	MethodSessionUpdate  = "session/update"
	MethodSessionCancel  = "session/cancel"
	MethodSessionSetMode = "session/set_mode"
	MethodRequestPerm    = "session/request_permission"
	MethodShutdown       = "shutdown"

	MethodReadTextFile   = "fs/read_text_file"
	MethodWriteTextFile  = "fs/write_text_file"
	MethodTerminalCreate = "terminal/create"
	MethodTerminalOutput = "terminal/output"
	MethodTerminalWait   = "terminal/wait_for_exit"
	MethodTerminalKill   = "terminal/kill"
	MethodTerminalFree   = "terminal/release"
)

// ACP protocol and client identity constants.
const (
	protocolVersion = 1 // integer, not semver
	clientName      = "agentbridge"
	clientVersion   = "0.1.0"
)

// --- Initialize ---

// initializeParams is sent to the agent to begin the capability handshake.
type initializeParams struct {
	ProtocolVersion    int                 `json:"protocolVersion"`
	ClientCapabilities *clientCapabilities `json:"clientCapabilities,omitempty"`
	ClientInfo         *implementation     `json:"clientInfo,omitempty"`
}

// initializeResult is the agent's response to initialize.
type initializeResult struct {
	ProtocolVersion int             `json:"protocolVersion"`
	AgentInfo       *implementation `json:"agentInfo,omitempty"`
	AuthMethods     []authMethod    `json:"authMethods,omitempty"`
}

// implementation identifies a client or agent (used for both clientInfo and agentInfo).
type implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// clientCapabilities declares which client-side operations the client supports.
type clientCapabilities struct {
	FS       *fileSystemCapability `json:"fs,omitempty"`
	Terminal bool                  `json:"terminal,omitempty"`
}

// fileSystemCapability declares file system operations the client supports.
type fileSystemCapability struct {
	ReadTextFile  bool `json:"readTextFile,omitempty"`
	WriteTextFile bool `json:"writeTextFile,omitempty"`
}

// authMethod describes an authentication method offered by the agent.
type authMethod struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// --- Session ---

// newSessionParams creates a new agent session.
type newSessionParams struct {
	CWD        string      `json:"cwd"`
	MCPServers []mcpServer `json:"mcpServers"`
}

// newSessionResult is the response to session/new.
type newSessionResult struct {
	SessionID string `json:"sessionId"`
}

// mcpServer describes an MCP server to attach to the session. The engine
// always sends an empty list.
type mcpServer struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// setModeParams sets the session operating mode.
type setModeParams struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// cancelParams cancels the session's active turn.
type cancelParams struct {
	SessionID string `json:"sessionId"`
}

// --- Prompt ---

// contentBlock is a single content element in a prompt (text-only).
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// promptParams sends a user message to the session.
type promptParams struct {
	SessionID string         `json:"sessionId"`
	Prompt    []contentBlock `json:"prompt"`
}

// promptResult is the response when a prompt turn completes.
type promptResult struct {
	StopReason string `json:"stopReason,omitempty"`
}

// --- Updates (notifications from agent) ---

// sessionNotification is the outer envelope for session/update notifications.
type sessionNotification struct {
	SessionID string          `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
}

// sessionUpdateHeader extracts the discriminator from the inner update object.
type sessionUpdateHeader struct {
	SessionUpdate string `json:"sessionUpdate"`
}

// --- Permission ---

// requestPermissionParams is the ACP wire format for permission requests.
type requestPermissionParams struct {
	SessionID string                         `json:"sessionId"`
	ToolCall  json.RawMessage                `json:"toolCall"`
	Options   []agentbridge.PermissionOption `json:"options"`
}

// requestPermissionResult is the response to a permission request.
type requestPermissionResult struct {
	Outcome requestPermissionOutcome `json:"outcome"`
}

// requestPermissionOutcome is the selected outcome.
type requestPermissionOutcome struct {
	Outcome  string `json:"outcome"`
	OptionID string `json:"optionId,omitempty"`
}

// selectedPermission returns the outcome for a chosen option.
func selectedPermission(optionID string) requestPermissionResult {
	return requestPermissionResult{
		Outcome: requestPermissionOutcome{Outcome: "selected", OptionID: optionID},
	}
}

// cancelledPermission returns a cancelled permission outcome.
func cancelledPermission() requestPermissionResult {
	return requestPermissionResult{
		Outcome: requestPermissionOutcome{Outcome: "cancelled"},
	}
}

// --- File system ---

// readTextFileParams requests a text file, optionally sliced by line.
type readTextFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Line      *int   `json:"line,omitempty"`  // 1-based start line
	Limit     *int   `json:"limit,omitempty"` // max lines
}

// readTextFileResult carries the file content.
type readTextFileResult struct {
	Content string `json:"content"`
}

// writeTextFileParams overwrites a text file.
type writeTextFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

// --- Terminals ---

// envVariable is one environment entry for terminal/create.
type envVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// createTerminalParams spawns a virtual terminal.
type createTerminalParams struct {
	SessionID       string        `json:"sessionId"`
	Command         string        `json:"command"`
	Args            []string      `json:"args,omitempty"`
	Env             []envVariable `json:"env,omitempty"`
	CWD             *string       `json:"cwd,omitempty"`
	OutputByteLimit *int          `json:"outputByteLimit,omitempty"`
}

// createTerminalResult returns the generated terminal id.
type createTerminalResult struct {
	TerminalID string `json:"terminalId"`
}

// terminalParams addresses an existing terminal (output, wait, kill, release).
type terminalParams struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
}

// terminalOutputResult is the reply to terminal/output.
type terminalOutputResult struct {
	Output     string                  `json:"output"`
	Truncated  bool                    `json:"truncated"`
	ExitStatus *agentbridge.ExitStatus `json:"exitStatus,omitempty"`
}

// waitForExitResult is the reply to terminal/wait_for_exit.
type waitForExitResult struct {
	ExitCode *int    `json:"exitCode"`
	Signal   *string `json:"signal"`
}

// emptyResult is the reply for operations with no payload.
type emptyResult struct{}

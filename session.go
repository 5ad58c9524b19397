package agentbridge

// SessionConfig is the construction input for one agent session.
//
// SessionConfig is a value type. It carries identity and launch
// configuration but no runtime state.
type SessionConfig struct {
	// Name identifies the session in the registry. It is chosen by the caller
	// and stays stable for the conversation's lifetime.
	Name string `json:"name"`

	// Worktree is the absolute path of the session's sandbox root. Every
	// agent file access and terminal working directory must resolve inside it.
	Worktree string `json:"worktree"`

	// Command is the agent binary followed by its arguments.
	Command []string `json:"command"`

	// Env is overlaid onto the host environment for the agent process.
	Env map[string]string `json:"env,omitempty"`

	// InitialMode, when non-blank, is applied with session/set_mode after
	// the session is created.
	InitialMode string `json:"initialMode,omitempty"`
}

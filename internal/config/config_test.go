package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoad(t *testing.T) {
	full := Config{
		Session:  "review",
		Worktree: "/src/project",
		Agent: AgentConfig{
			Command: []string{"opencode", "acp"},
			Env:     map[string]string{"OPENCODE_LOG": "debug"},
			Mode:    "plan",
		},
		Log:              LogConfig{Level: "debug", Format: "json"},
		Terminal:         TerminalConfig{OutputByteLimit: 65536},
		HandshakeTimeout: Duration(30 * time.Second),
		GracePeriod:      Duration(2 * time.Second),
	}

	tests := []struct {
		name    string
		file    string
		content string
		want    Config
	}{
		{
			name:    "empty json keeps defaults",
			file:    "c.json",
			content: `{}`,
			want:    Default(),
		},
		{
			name: "jsonc with comments and trailing commas",
			file: "c.jsonc",
			content: `{
				// which conversation
				"session": "review",
				"worktree": "/src/project",
				"agent": {
					"command": ["opencode", "acp"],
					"env": {"OPENCODE_LOG": "debug"},
					"mode": "plan",
				},
				"log": {"level": "debug", "format": "json"},
				"terminal": {"output_byte_limit": 65536},
				"handshake_timeout": "30s",
				"grace_period": "2s",
			}`,
			want: full,
		},
		{
			name: "json may carry comments too",
			file: "c.json",
			content: `{
				/* partial */
				"session": "other"
			}`,
			want: func() Config { c := Default(); c.Session = "other"; return c }(),
		},
		{
			name: "toml",
			file: "c.toml",
			content: `
session = "review"
worktree = "/src/project"
handshake_timeout = "30s"
grace_period = "2s"

[agent]
command = ["opencode", "acp"]
mode = "plan"

[agent.env]
OPENCODE_LOG = "debug"

[log]
level = "debug"
format = "json"

[terminal]
output_byte_limit = 65536
`,
			want: full,
		},
		{
			name:    "empty toml keeps defaults",
			file:    "c.toml",
			content: "# nothing here\n",
			want:    Default(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), tt.file, tt.content)
			got, err := Load(p)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown key", "c.json", `{"bogus": true}`, "bogus"},
		{"wrong type", "c.json", `{"terminal": {"output_byte_limit": "big"}}`, "terminal.output_byte_limit"},
		{"negative limit", "c.toml", "[terminal]\noutput_byte_limit = -1\n", "terminal.output_byte_limit"},
		{"fractional limit", "c.json", `{"terminal": {"output_byte_limit": 1.5}}`, "terminal.output_byte_limit"},
		{"empty command", "c.json", `{"agent": {"command": []}}`, "agent.command"},
		{"bad level", "c.json", `{"log": {"level": "loud"}}`, "log.level"},
		{"bad duration", "c.json", `{"grace_period": "soon"}`, "grace_period"},
		{"env key with equals", "c.json", `{"agent": {"env": {"A=B": "x"}}}`, "agent.env"},
		{"syntax error", "c.jsonc", `{"session": }`, "parsing config"},
		{"toml syntax error", "c.toml", `session = `, "parsing config"},
		{"unsupported extension", "c.yaml", `session: x`, "unsupported config extension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := Load(p)
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FieldErrors(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.json", `{"log": {"format": "xml"}, "terminal": {"output_byte_limit": -5}}`)
	_, err := Load(p)

	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want a *FieldError", err)
	}
	for _, want := range []string{"log.format", "terminal.output_byte_limit"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not report %s", err, want)
		}
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestFindProject(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindProject(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("empty dir: error = %v, want os.ErrNotExist", err)
	}

	want := writeFile(t, dir, ".agentbridge.toml", "")
	got, err := FindProject(dir)
	if err != nil || got != want {
		t.Errorf("FindProject = %q, %v; want %q", got, err, want)
	}

	writeFile(t, dir, ".agentbridge.jsonc", "{}")
	if _, err := FindProject(dir); !errors.Is(err, ErrDuplicateConfigFiles) {
		t.Errorf("two files: error = %v, want ErrDuplicateConfigFiles", err)
	}
}

func TestPointerToPath(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"/":                  "",
		"/agent/command/0":   "agent.command.0",
		"/agent/env/a~1b":    "agent.env.a/b",
		"/agent/env/t~0ilde": "agent.env.t~ilde",
	}
	for in, want := range tests {
		if got := pointerToPath(in); got != want {
			t.Errorf("pointerToPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"1m30s"`)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if time.Duration(d) != 90*time.Second {
		t.Errorf("d = %v, want 1m30s", time.Duration(d))
	}
	b, _ := d.MarshalJSON()
	if string(b) != `"1m30s"` {
		t.Errorf("MarshalJSON = %s", b)
	}
	if err := d.UnmarshalJSON([]byte(`90`)); err == nil {
		t.Error("numeric duration accepted")
	}
}

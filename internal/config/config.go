// Package config loads the agentbridge command's configuration file.
//
// Three syntaxes are accepted, chosen by file extension: .json and .jsonc
// (both may contain comments and trailing commas), and .toml. Every
// document is normalized to JSON and validated against an embedded JSON
// Schema before it is decoded, so unknown keys and wrong types are reported
// with their location instead of being silently ignored.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tailscale/hujson"
)

// ErrDuplicateConfigFiles is returned when a directory holds more than one
// project config file.
var ErrDuplicateConfigFiles = errors.New("duplicate config files")

// ProjectBaseName is the project config file name without extension,
// looked up in the worktree.
const ProjectBaseName = ".agentbridge"

var extensions = []string{".json", ".jsonc", ".toml"}

//go:embed schema.json
var schemaJSON []byte

// Config is the command configuration.
type Config struct {
	Session          string         `json:"session"`
	Worktree         string         `json:"worktree"`
	Agent            AgentConfig    `json:"agent"`
	Log              LogConfig      `json:"log"`
	Terminal         TerminalConfig `json:"terminal"`
	HandshakeTimeout Duration       `json:"handshake_timeout"`
	GracePeriod      Duration       `json:"grace_period"`
}

// AgentConfig describes the agent process.
type AgentConfig struct {
	Command []string          `json:"command"`
	Env     map[string]string `json:"env"`
	Mode    string            `json:"mode"`
}

// LogConfig selects the diagnostics logger.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// TerminalConfig holds defaults for agent-created terminals.
type TerminalConfig struct {
	// OutputByteLimit applies when terminal/create omits outputByteLimit.
	// Zero means unlimited.
	OutputByteLimit int `json:"output_byte_limit"`
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

// UnmarshalJSON parses a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON writes the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Default returns the configuration used when no file sets a value.
func Default() Config {
	return Config{
		Session:     "main",
		Log:         LogConfig{Level: "info", Format: "text"},
		GracePeriod: Duration(5 * time.Second),
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadFile(&cfg, path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FindProject returns the project config file in dir, or os.ErrNotExist.
// More than one candidate is an error.
func FindProject(dir string) (string, error) {
	var found []string
	for _, ext := range extensions {
		p := filepath.Join(dir, ProjectBaseName+ext)
		_, err := os.Stat(p)
		switch {
		case err == nil:
			found = append(found, p)
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("checking %s: %w", p, err)
		}
	}
	switch len(found) {
	case 0:
		return "", os.ErrNotExist
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %s; remove all but one", ErrDuplicateConfigFiles, strings.Join(found, ", "))
	}
}

// loadFile decodes path into cfg. Keys absent from the file keep their
// current values.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	doc, err := normalize(path, data)
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(doc); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := json.Unmarshal(doc, cfg); err != nil {
		return fmt.Errorf("decoding config %s: %w", path, err)
	}
	return nil
}

// normalize converts a config document to standard JSON.
func normalize(path string, data []byte) ([]byte, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		return hujson.Standardize(data)
	case ".toml":
		var doc map[string]any
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, err
		}
		if doc == nil {
			doc = map[string]any{}
		}
		return json.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want %s)", ext, strings.Join(extensions, ", "))
	}
}

const schemaURL = "https://github.com/dmora/agentbridge/config.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

func validate(doc []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return schemaError(ve)
		}
		return err
	}
	return nil
}

// FieldError is a schema violation at one location of the document.
type FieldError struct {
	Path    string // dotted path, "" for the document root
	Message string
}

func (e *FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// schemaError reduces a validation error tree to its leaf causes.
func schemaError(ve *jsonschema.ValidationError) error {
	var errs []error
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			errs = append(errs, &FieldError{Path: pointerToPath(e.InstanceLocation), Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return errors.Join(errs...)
}

// pointerToPath turns a JSON pointer ("/agent/command/0") into a dotted
// path ("agent.command.0").
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}

//go:build !windows

package acp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dmora/agentbridge/engine/internal/sandbox"
)

var errNotUTF8 = errors.New("file is not valid UTF-8 text")

// readTextFile services fs/read_text_file inside the worktree.
func (s *Session) readTextFile(params json.RawMessage) (any, error) {
	var p readTextFileParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	path, err := sandbox.Resolve(s.root, p.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.Path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("read %s: %w", p.Path, errNotUTF8)
	}
	return readTextFileResult{Content: sliceLines(string(data), p.Line, p.Limit)}, nil
}

// writeTextFile services fs/write_text_file, creating missing parent
// directories. The file is overwritten in full.
func (s *Session) writeTextFile(params json.RawMessage) (any, error) {
	var p writeTextFileParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	path, err := sandbox.Resolve(s.root, p.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}
	if err := os.WriteFile(path, []byte(p.Content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", p.Path, err)
	}
	s.logger.Debug("wrote file", "path", path, "bytes", len(p.Content))
	return emptyResult{}, nil
}

// sliceLines returns the window of content starting at the 1-based line
// and spanning at most limit lines. Nil bounds mean "from the start" and
// "to the end"; a start past the last line yields "".
func sliceLines(content string, line, limit *int) string {
	if line == nil && limit == nil {
		return content
	}
	lines := strings.Split(content, "\n")
	start := 0
	if line != nil && *line > 1 {
		start = *line - 1
	}
	if start >= len(lines) {
		return ""
	}
	end := len(lines)
	if limit != nil && *limit >= 0 && *limit < end-start {
		end = start + *limit
	}
	return strings.Join(lines[start:end], "\n")
}

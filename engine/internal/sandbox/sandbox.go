// Package sandbox confines agent-supplied paths to a session worktree.
//
// Every check canonicalizes both the worktree root and the requested path
// from scratch; nothing is cached between calls, so a symlink swapped in
// after an earlier check is still caught.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmora/agentbridge"
)

// maxLinkHops bounds how many dangling symlinks Canonicalize follows by hand.
const maxLinkHops = 40

// Canonicalize resolves path to an absolute, symlink-free form while
// tolerating components that do not exist yet: it walks up to the nearest
// existing ancestor, resolves that, and re-appends the missing tail.
// A dangling symlink along the way is replaced by its target, so the result
// names the file a later open or create would actually reach.
// Relative paths are made absolute against the process working directory.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("sandbox: resolve %q: %w", path, err)
	}

	var missing []string
	cur := abs
	hops := 0
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{resolved}, missing...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("sandbox: resolve %q: %w", path, err)
		}
		if fi, lerr := os.Lstat(cur); lerr == nil && fi.Mode()&fs.ModeSymlink != 0 {
			if hops++; hops > maxLinkHops {
				return "", fmt.Errorf("sandbox: resolve %q: too many links", path)
			}
			target, err := readLink(cur)
			if err != nil {
				return "", fmt.Errorf("sandbox: resolve %q: %w", path, err)
			}
			cur = target
			continue
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("sandbox: resolve %q: no existing ancestor", path)
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent
	}
}

// readLink returns the absolute target of the symlink at link. A relative
// target is joined to the resolved directory holding the link.
func readLink(link string) (string, error) {
	target, err := os.Readlink(link)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target), nil
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(link))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, target), nil
}

// Resolve returns the canonical form of requested if it lies inside root.
// A relative requested path is interpreted against root. The error wraps
// agentbridge.ErrAccessDenied when the path escapes the worktree.
//
// Callers must operate on the returned path, not on requested.
func Resolve(root, requested string) (string, error) {
	if requested == "" {
		return "", fmt.Errorf("sandbox: empty path")
	}
	canonRoot, err := Canonicalize(root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(requested) {
		requested = filepath.Join(root, requested)
	}
	canon, err := Canonicalize(requested)
	if err != nil {
		return "", err
	}
	if !Within(canon, canonRoot) {
		return "", fmt.Errorf("%w: %s resolves to %s, outside worktree %s",
			agentbridge.ErrAccessDenied, requested, canon, canonRoot)
	}
	return canon, nil
}

// Within reports whether path equals root or is a descendant of it.
// Both arguments must already be canonical.
func Within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

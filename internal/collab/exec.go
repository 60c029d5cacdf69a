// Package collab wraps the external collaborators the engine drives:
// tmux panes, git checkpoints, and desktop notifications. Every call shells
// out with a bounded timeout and truncates oversized output, the same
// subprocess-wrapping idiom the teacher's tool executor uses.
package collab

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultCommandTimeout bounds any collaborator subprocess call.
	DefaultCommandTimeout = 30 * time.Second
	// MaxOutputSize truncates oversized command output before it's logged
	// or returned to a caller.
	MaxOutputSize = 64 * 1024
)

// runCommand executes name(args...) in dir with a timeout, returning
// combined stdout (stderr appended when non-empty) truncated to
// MaxOutputSize.
func runCommand(ctx context.Context, dir, name string, args []string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += "STDERR: " + stderr.String()
	}
	if len(output) > MaxOutputSize {
		output = output[:MaxOutputSize] + "\n... (truncated)"
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return output, fmt.Errorf("command timed out after %v: %s %s", timeout, name, strings.Join(args, " "))
		}
		return output, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return output, nil
}

// safePath resolves path against baseDir and rejects any result that
// escapes it via a relative traversal or a symlink chain.
func safePath(baseDir, path string) (string, error) {
	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(baseDir, path))
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		parent := filepath.Dir(abs)
		if resolvedParent, perr := filepath.EvalSymlinks(parent); perr == nil {
			resolved = filepath.Join(resolvedParent, filepath.Base(abs))
		} else {
			resolved = abs
		}
	}

	resolvedBase, err := filepath.EvalSymlinks(baseDir)
	if err != nil {
		resolvedBase = baseDir
	}

	rel, err := filepath.Rel(resolvedBase, resolved)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is outside %q", path, baseDir)
	}
	return abs, nil
}

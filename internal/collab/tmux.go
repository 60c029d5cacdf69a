package collab

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// PromptKind is what the tmux reconciler detected in a captured pane tail.
type PromptKind int

const (
	PromptNone PromptKind = iota
	PromptPermission
	PromptInput
)

var (
	permissionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)do you want to proceed\?`),
		regexp.MustCompile(`(?i)allow this (tool|command)\?`),
		regexp.MustCompile(`(?i)\by/n\b.*permission`),
	}
	inputPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)waiting for your (input|response)`),
		regexp.MustCompile(`(?i)please (choose|select) an option`),
		regexp.MustCompile(`(?i)\[1\]|\[2\]|\[3\]`),
	}
)

// DetectPrompt classifies the tail of a captured pane against known
// permission/input prompt patterns, checking permission patterns first.
func DetectPrompt(paneTail string) PromptKind {
	for _, re := range permissionPatterns {
		if re.MatchString(paneTail) {
			return PromptPermission
		}
	}
	for _, re := range inputPatterns {
		if re.MatchString(paneTail) {
			return PromptInput
		}
	}
	return PromptNone
}

// Tmux wraps the tmux CLI. It carries no state of its own; every method is
// a plain wrapper around one "tmux" invocation.
type Tmux struct{}

// SendKeys sends literal keys to a pane followed by Enter, as two separate
// tmux arguments — tmux send-keys treats "keys Enter" as one joined
// argument if they are not passed separately, which silently fails to
// submit.
func (Tmux) SendKeys(ctx context.Context, paneID, keys string) error {
	_, err := runCommand(ctx, "", "tmux", []string{"send-keys", "-t", paneID, keys, "Enter"}, DefaultCommandTimeout)
	return err
}

// SendKeysRaw sends keys without an appended Enter (e.g. a bare Escape or
// Ctrl sequence).
func (Tmux) SendKeysRaw(ctx context.Context, paneID, keys string) error {
	_, err := runCommand(ctx, "", "tmux", []string{"send-keys", "-t", paneID, keys}, DefaultCommandTimeout)
	return err
}

// SendBuffered loads multi-line content into a uniquely named tmux buffer
// and pastes it, then sends an explicit Enter — this avoids the shell
// escaping and race-condition pitfalls of a long send-keys argument.
func (Tmux) SendBuffered(ctx context.Context, paneID, content string) error {
	bufferName := fmt.Sprintf("rehoboam-%d-%s", os.Getpid(), strings.TrimPrefix(paneID, "%"))

	tmp, err := os.CreateTemp("", "rehoboam-buf-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	if _, err := runCommand(ctx, "", "tmux", []string{"load-buffer", "-b", bufferName, tmp.Name()}, DefaultCommandTimeout); err != nil {
		return err
	}
	if _, err := runCommand(ctx, "", "tmux", []string{"paste-buffer", "-b", bufferName, "-t", paneID}, DefaultCommandTimeout); err != nil {
		return err
	}
	_, err = runCommand(ctx, "", "tmux", []string{"send-keys", "-t", paneID, "Enter"}, DefaultCommandTimeout)
	return err
}

// SplitPane splits the current window and returns the new pane's id,
// captured straight from tmux's -P -F output format.
func (Tmux) SplitPane(ctx context.Context, horizontal bool, cwd string) (string, error) {
	direction := "-v"
	if horizontal {
		direction = "-h"
	}
	out, err := runCommand(ctx, "", "tmux", []string{"split-window", direction, "-c", cwd, "-P", "-F", "#{pane_id}"}, DefaultCommandTimeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// KillPane kills a pane outright.
func (Tmux) KillPane(ctx context.Context, paneID string) error {
	_, err := runCommand(ctx, "", "tmux", []string{"kill-pane", "-t", paneID}, DefaultCommandTimeout)
	return err
}

// SendInterrupt sends Ctrl-C to a pane.
func (Tmux) SendInterrupt(ctx context.Context, paneID string) error {
	_, err := runCommand(ctx, "", "tmux", []string{"send-keys", "-t", paneID, "C-c"}, DefaultCommandTimeout)
	return err
}

// CapturePaneTail returns the last n lines of a pane's visible output.
func (Tmux) CapturePaneTail(ctx context.Context, paneID string, lines int) (string, error) {
	return runCommand(ctx, "", "tmux", []string{"capture-pane", "-t", paneID, "-p", "-S", fmt.Sprintf("-%d", lines)}, DefaultCommandTimeout)
}

// IsPaneAlive reports whether tmux still knows about paneID. A pane absent
// from `tmux list-panes -a` is reported as not alive; any failure of the
// tmux call itself is reported as an error rather than "not alive", since
// it may be a transient tmux-server hiccup the caller should not act on.
func (Tmux) IsPaneAlive(ctx context.Context, paneID string) (bool, error) {
	out, err := runCommand(ctx, "", "tmux", []string{"list-panes", "-a", "-F", "#{pane_id}"}, DefaultCommandTimeout)
	if err != nil {
		return false, err
	}
	for _, p := range strings.Split(out, "\n") {
		if strings.TrimSpace(p) == paneID {
			return true, nil
		}
	}
	return false, nil
}

// RespawnClaude splits a new pane in projectDir and starts a Claude Code
// session there with the given prompt file, returning the new pane id.
func (t Tmux) RespawnClaude(ctx context.Context, projectDir, promptFile string) (string, error) {
	return t.RespawnClaudeWithLoopDir(ctx, projectDir, promptFile, "")
}

// RespawnClaudeWithLoopDir is RespawnClaude plus a REHOBOAM_LOOP_DIR
// environment variable so the spawned session's own hooks can find its
// persistent state directory.
func (Tmux) RespawnClaudeWithLoopDir(ctx context.Context, projectDir, promptFile, loopDir string) (string, error) {
	paneOut, err := runCommand(ctx, "", "tmux", []string{"split-window", "-v", "-c", projectDir, "-P", "-F", "#{pane_id}"}, DefaultCommandTimeout)
	if err != nil {
		return "", fmt.Errorf("splitting pane for respawn: %w", err)
	}
	paneID := strings.TrimSpace(paneOut)

	cmd := fmt.Sprintf("claude --prompt-file %s", shellQuote(promptFile))
	if loopDir != "" {
		cmd = fmt.Sprintf("REHOBOAM_LOOP_DIR=%s %s", shellQuote(loopDir), cmd)
	}
	if err := (Tmux{}).SendKeys(ctx, paneID, cmd); err != nil {
		return paneID, fmt.Errorf("starting claude in %s: %w", paneID, err)
	}
	return paneID, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// waitBeforeKill is the grace period RespawnClaude-adjacent callers give a
// pane after an interrupt before killing it outright.
const waitBeforeKill = 100 * time.Millisecond

// InterruptThenKill sends an interrupt, waits briefly, then kills the pane
// — the controller's standard teardown before respawning a fresh agent.
func (t Tmux) InterruptThenKill(ctx context.Context, paneID string) error {
	_ = t.SendInterrupt(ctx, paneID)
	select {
	case <-time.After(waitBeforeKill):
	case <-ctx.Done():
		return ctx.Err()
	}
	return t.KillPane(ctx, paneID)
}

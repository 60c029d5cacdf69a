package loopctl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/state"
)

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

type fakeTmux struct {
	interrupted   []string
	respawnPane   string
	respawnCalled bool
}

func (f *fakeTmux) InterruptThenKill(ctx context.Context, paneID string) error {
	f.interrupted = append(f.interrupted, paneID)
	return nil
}

func (f *fakeTmux) RespawnClaudeWithLoopDir(ctx context.Context, projectDir, promptFile, loopDir string) (string, error) {
	f.respawnCalled = true
	return f.respawnPane, nil
}

type fakeGit struct {
	hasChanges   bool
	checkpointed []string
}

func (f *fakeGit) HasChanges(ctx context.Context, dir string) (bool, error) { return f.hasChanges, nil }
func (f *fakeGit) Checkpoint(ctx context.Context, dir, message string) error {
	f.checkpointed = append(f.checkpointed, message)
	return nil
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Send(title, body, sound string) {
	f.sent = append(f.sent, title+": "+body)
}

func newLoopDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := InitLoopDir(dir, "anchor text", InitOptions{}); err != nil {
		t.Fatalf("InitLoopDir: %v", err)
	}
	return dir
}

func TestOnStopCompletesViaStopWord(t *testing.T) {
	loopDir := newLoopDir(t)
	s, _ := LoadState(loopDir)
	s.MaxIterations = 10
	s.StopWord = "DONE"
	if err := s.Save(loopDir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(loopDir, "progress.md"), []byte("task DONE"), 0644); err != nil {
		t.Fatalf("write progress.md: %v", err)
	}

	a := &state.Agent{PaneID: "%5", LoopDir: loopDir, LoopMode: state.LoopActive, WorkingDir: t.TempDir()}
	git := &fakeGit{hasChanges: true}
	notifier := &fakeNotifier{}
	tmux := &fakeTmux{}
	c := NewController(tmux, git, notifier)

	result, err := c.OnStop(context.Background(), a)
	if err != nil {
		t.Fatalf("OnStop: %v", err)
	}
	if !result.Completed || result.Reason != ReasonStopWord {
		t.Fatalf("expected completion via stop word, got %+v", result)
	}
	if a.LoopMode != state.LoopComplete {
		t.Fatalf("expected LoopComplete, got %v", a.LoopMode)
	}
	if len(git.checkpointed) != 1 {
		t.Fatalf("expected one final checkpoint, got %d", len(git.checkpointed))
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	if tmux.respawnCalled {
		t.Fatalf("respawn must not be called on completion")
	}
}

func TestOnStopCompletesViaPromiseTag(t *testing.T) {
	loopDir := newLoopDir(t)
	os.WriteFile(filepath.Join(loopDir, "progress.md"), []byte("work done.\n<promise>COMPLETE</promise>\n"), 0644)

	a := &state.Agent{PaneID: "%6", LoopDir: loopDir, LoopMode: state.LoopActive, WorkingDir: t.TempDir()}
	c := NewController(&fakeTmux{}, &fakeGit{}, &fakeNotifier{})

	result, err := c.OnStop(context.Background(), a)
	if err != nil {
		t.Fatalf("OnStop: %v", err)
	}
	if !result.Completed || result.Reason != ReasonPromiseTag {
		t.Fatalf("expected promise_tag completion, got %+v", result)
	}
}

func TestOnStopRespawnsWhenIncomplete(t *testing.T) {
	loopDir := newLoopDir(t)
	s, _ := LoadState(loopDir)
	s.MaxIterations = 10
	s.Save(loopDir)

	projectDir := t.TempDir()
	a := &state.Agent{PaneID: "%7", LoopDir: loopDir, LoopMode: state.LoopActive, WorkingDir: projectDir}
	tmux := &fakeTmux{respawnPane: "%8"}
	git := &fakeGit{hasChanges: false}
	c := NewController(tmux, git, &fakeNotifier{})

	result, err := c.OnStop(context.Background(), a)
	if err != nil {
		t.Fatalf("OnStop: %v", err)
	}
	if result.Completed {
		t.Fatalf("did not expect completion")
	}
	if a.PaneID != "%8" {
		t.Fatalf("expected pane id updated to %%8, got %s", a.PaneID)
	}
	if len(tmux.interrupted) != 1 || tmux.interrupted[0] != "%7" {
		t.Fatalf("expected old pane %%7 interrupted, got %v", tmux.interrupted)
	}
	if !tmux.respawnCalled {
		t.Fatalf("expected respawn to be called")
	}
	if _, err := os.Stat(filepath.Join(loopDir, "_iteration_prompt.md")); err != nil {
		t.Fatalf("expected iteration prompt written: %v", err)
	}
}

func TestOnStopMaxIterationsCompletes(t *testing.T) {
	loopDir := newLoopDir(t)
	s, _ := LoadState(loopDir)
	s.MaxIterations = 1
	s.Save(loopDir)

	a := &state.Agent{PaneID: "%9", LoopDir: loopDir, LoopMode: state.LoopActive, WorkingDir: t.TempDir()}
	c := NewController(&fakeTmux{}, &fakeGit{}, &fakeNotifier{})

	result, err := c.OnStop(context.Background(), a)
	if err != nil {
		t.Fatalf("OnStop: %v", err)
	}
	if !result.Completed || result.Reason != ReasonMaxIterations {
		t.Fatalf("expected max_iterations completion, got %+v", result)
	}
}

func TestCancelAndRestartLoopAreIdempotent(t *testing.T) {
	loopDir := newLoopDir(t)
	a := &state.Agent{PaneID: "%10", LoopDir: loopDir, LoopMode: state.LoopActive, LoopIteration: 4}

	if err := RestartLoop(loopDir, a); err != nil {
		t.Fatalf("RestartLoop: %v", err)
	}
	CancelLoop(a)
	CancelLoop(a)

	if a.LoopMode != state.LoopNone {
		t.Fatalf("expected LoopNone after cancel, got %v", a.LoopMode)
	}
	if a.LoopIteration != 0 {
		t.Fatalf("expected iteration reset to 0, got %d", a.LoopIteration)
	}
}

func TestTrackErrorPatternAddsGuardrailAtThreshold(t *testing.T) {
	loopDir := newLoopDir(t)
	s, _ := LoadState(loopDir)

	for i := 0; i < 2; i++ {
		if err := TrackErrorPattern(loopDir, s, "Connection refused: could not reach database"); err != nil {
			t.Fatalf("TrackErrorPattern: %v", err)
		}
	}
	before, _ := os.ReadFile(filepath.Join(loopDir, "guardrails.md"))
	if contains(string(before), "Auto-detected") {
		t.Fatalf("guardrail should not be added before threshold")
	}

	if err := TrackErrorPattern(loopDir, s, "Connection refused: could not reach database"); err != nil {
		t.Fatalf("TrackErrorPattern: %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(loopDir, "guardrails.md"))
	if !contains(string(after), "Auto-detected") {
		t.Fatalf("expected auto-guardrail appended at threshold, got %q", after)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func TestEvaluatePermissionDenyBeforeAllow(t *testing.T) {
	p := Policy{
		BashDeny:  []string{"rm -rf*"},
		BashAllow: []string{"git status*"},
	}
	now := fixedNow()

	if d := EvaluatePermission(p, nil, now, "Bash", "rm -rf /", "/proj", ""); d != Deny {
		t.Fatalf("expected Deny, got %v", d)
	}
	if d := EvaluatePermission(p, nil, now, "Bash", "git status --short", "/proj", ""); d != Approve {
		t.Fatalf("expected Approve, got %v", d)
	}
	if d := EvaluatePermission(p, nil, now, "Bash", "curl evil.example", "/proj", ""); d != Defer {
		t.Fatalf("expected Defer, got %v", d)
	}
}

func TestEvaluatePermissionAutoApproveReadOnly(t *testing.T) {
	p := DefaultPolicy()
	now := fixedNow()
	if d := EvaluatePermission(p, nil, now, "Read", "", "/proj", ""); d != Approve {
		t.Fatalf("expected Approve for Read, got %v", d)
	}
}

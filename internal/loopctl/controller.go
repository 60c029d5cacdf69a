package loopctl

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/state"
)

const maxLastReasons = 5

// TmuxAPI narrows collab.Tmux to what the controller needs, so tests can
// supply a fake rather than spawning a real tmux server.
type TmuxAPI interface {
	InterruptThenKill(ctx context.Context, paneID string) error
	RespawnClaudeWithLoopDir(ctx context.Context, projectDir, promptFile, loopDir string) (string, error)
}

// GitAPI narrows collab.Git to what the controller needs.
type GitAPI interface {
	HasChanges(ctx context.Context, dir string) (bool, error)
	Checkpoint(ctx context.Context, dir, message string) error
}

// NotifierAPI narrows collab.Notifier to what the controller needs.
type NotifierAPI interface {
	Send(title, body, sound string)
}

// Judge is an optional second opinion on whether progress.md satisfies
// anchor.md, consulted only when the textual completion markers are
// ambiguous at max_iterations.
type Judge interface {
	Evaluate(ctx context.Context, anchor, progress string) (JudgeVerdict, error)
}

type JudgeVerdict string

const (
	JudgeComplete  JudgeVerdict = "complete"
	JudgeContinue  JudgeVerdict = "continue"
	JudgeUncertain JudgeVerdict = "uncertain"
)

// Controller implements the Loop Controller component (C5).
type Controller struct {
	Tmux     TmuxAPI
	Git      GitAPI
	Notifier NotifierAPI
	Judge    Judge // optional
}

func NewController(tmux TmuxAPI, git GitAPI, notifier NotifierAPI) *Controller {
	return &Controller{Tmux: tmux, Git: git, Notifier: notifier}
}

// Result summarizes what OnStop did, for the engine to fold back into
// FleetState (new pane id on respawn, completion outcome otherwise).
type Result struct {
	Completed    bool
	Reason       CompletionReason
	NewPaneID    string
	Stalled      bool
}

const progressCompletePromise = "<promise>COMPLETE</promise>"
const planningCompleteMarker = "PLANNING COMPLETE"

// OnStop drives one iteration boundary for a loop-enabled agent whose
// FleetState entry just observed a Stop event. It mutates the agent's
// Loop* fields and, on respawn, sets PaneID to the new pane; FleetState's
// map is not re-keyed here, so the caller writes the returned Result's
// NewPaneID back through FleetState's own apply path if the identity of
// the pane changes.
func (c *Controller) OnStop(ctx context.Context, a *state.Agent) (Result, error) {
	loopDir := a.LoopDir
	s, err := LoadState(loopDir)
	if err != nil {
		return Result{}, fmt.Errorf("loopctl: loading state: %w", err)
	}

	log.Printf("[loopctl] %s: working -> stopping (iteration %d)", a.PaneID, s.Iteration)

	s.Iteration++
	a.LoopIteration = s.Iteration

	progress := readFileOrEmpty(filepath.Join(loopDir, "progress.md"))

	if reason, ok := checkCompletion(progress, s.StopWord); ok {
		return c.complete(ctx, loopDir, s, a, reason)
	}

	if s.MaxIterations > 0 && s.Iteration >= s.MaxIterations {
		if c.Judge != nil {
			verdict, err := c.Judge.Evaluate(ctx, readFileOrEmpty(filepath.Join(loopDir, "anchor.md")), progress)
			if err == nil && verdict == JudgeComplete {
				return c.complete(ctx, loopDir, s, a, ReasonMaxIterations)
			}
			// Uncertain or Continue: the loop still completes at
			// max_iterations; the verdict does not change the outcome.
		}
		return c.complete(ctx, loopDir, s, a, ReasonMaxIterations)
	}

	stalled := c.trackStall(s, progress)
	a.LoopMode = state.LoopActive
	if stalled {
		a.LoopMode = state.LoopStalled
	}

	if err := c.respawn(ctx, loopDir, s, a); err != nil {
		return Result{}, err
	}

	if err := s.Save(loopDir); err != nil {
		return Result{}, err
	}

	return Result{NewPaneID: a.PaneID, Stalled: stalled}, nil
}

func checkCompletion(progress, stopWord string) (CompletionReason, bool) {
	if strings.Contains(progress, progressCompletePromise) {
		return ReasonPromiseTag, true
	}
	if stopWord != "" && strings.Contains(progress, stopWord) {
		return ReasonStopWord, true
	}
	if strings.Contains(strings.ToUpper(progress), planningCompleteMarker) {
		return ReasonPlanningComplete, true
	}
	return "", false
}

func (c *Controller) complete(ctx context.Context, loopDir string, s *State, a *state.Agent, reason CompletionReason) (Result, error) {
	a.LoopMode = state.LoopComplete
	a.LoopLastReasons = appendReason(a.LoopLastReasons, string(reason))

	line := fmt.Sprintf("[%s] iteration %d complete: %s\n", now().UTC().Format(time.RFC3339), s.Iteration, reason)
	_ = appendLog(filepath.Join(loopDir, "activity.log"), line)

	if c.Git != nil {
		if changed, err := c.Git.HasChanges(ctx, a.WorkingDir); err == nil && changed {
			_ = c.Git.Checkpoint(ctx, a.WorkingDir, fmt.Sprintf("rehoboam: loop complete (%s)", reason))
		}
	}
	if c.Notifier != nil {
		c.Notifier.Send("Rehoboam loop complete", fmt.Sprintf("%s finished: %s", a.PaneID, reason), "default")
	}

	if err := s.Save(loopDir); err != nil {
		return Result{}, err
	}
	log.Printf("[loopctl] %s: complete (%s) after %d iterations", a.PaneID, reason, s.Iteration)
	return Result{Completed: true, Reason: reason}, nil
}

func (c *Controller) trackStall(s *State, progress string) bool {
	hash := normalizeProgressHash(progress)
	if hash == s.ProgressHash {
		s.StallCount++
	} else {
		s.StallCount = 0
		s.ProgressHash = hash
	}
	return s.StallCount >= 3
}

func normalizeProgressHash(progress string) string {
	fields := strings.Fields(progress)
	return strings.Join(fields, " ")
}

func (c *Controller) respawn(ctx context.Context, loopDir string, s *State, a *state.Agent) error {
	line := fmt.Sprintf("[%s] iteration %d continuing (reason: continuing)\n", now().UTC().Format(time.RFC3339), s.Iteration)
	_ = appendLog(filepath.Join(loopDir, "activity.log"), line)

	if c.Git != nil {
		if changed, err := c.Git.HasChanges(ctx, a.WorkingDir); err == nil && changed {
			if err := c.Git.Checkpoint(ctx, a.WorkingDir, fmt.Sprintf("rehoboam: iteration %d checkpoint", s.Iteration)); err != nil {
				log.Printf("[loopctl] %s: checkpoint failed: %v", a.PaneID, err)
			}
		}
	}

	if _, err := BuildIterationPrompt(loopDir, s, BuildPromptOptions{EnableCoordination: hasCoordination(loopDir)}); err != nil {
		return fmt.Errorf("loopctl: building prompt: %w", err)
	}
	promptFile := filepath.Join(loopDir, "_iteration_prompt.md")

	oldPane := a.PaneID
	if c.Tmux != nil {
		if err := c.Tmux.InterruptThenKill(ctx, oldPane); err != nil {
			log.Printf("[loopctl] %s: interrupt/kill failed: %v", oldPane, err)
		}
		newPane, err := c.Tmux.RespawnClaudeWithLoopDir(ctx, a.WorkingDir, promptFile, loopDir)
		if err != nil {
			return fmt.Errorf("loopctl: respawning: %w", err)
		}
		a.PaneID = newPane
	}

	s.IterationStartedAt = now().Unix()
	log.Printf("[loopctl] %s: respawning -> working (iteration %d)", a.PaneID, s.Iteration)
	return nil
}

func hasCoordination(loopDir string) bool {
	_, err := os.Stat(coordinationPath(loopDir))
	return err == nil
}

func appendLog(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}

func appendReason(reasons []string, reason string) []string {
	reasons = append(reasons, reason)
	if len(reasons) > maxLastReasons {
		reasons = reasons[len(reasons)-maxLastReasons:]
	}
	return reasons
}

// CancelLoop sets loop_mode to None while leaving the agent running.
func CancelLoop(a *state.Agent) {
	a.LoopMode = state.LoopNone
}

// RestartLoop resets the iteration counter and reason history and
// reactivates the loop. Idempotent.
func RestartLoop(loopDir string, a *state.Agent) error {
	s, err := LoadState(loopDir)
	if err != nil {
		return err
	}
	s.Iteration = 0
	s.StallCount = 0
	s.ProgressHash = ""
	a.LoopIteration = 0
	a.LoopMode = state.LoopActive
	a.LoopLastReasons = nil
	return s.Save(loopDir)
}

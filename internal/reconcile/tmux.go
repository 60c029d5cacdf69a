// Package reconcile implements the Reconcilers component (C4): periodic
// tasks that correct fleet-state drift against ground truth.
package reconcile

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/collab"
	"github.com/rehoboam-dev/rehoboam/internal/config"
	"github.com/rehoboam-dev/rehoboam/internal/event"
	"github.com/rehoboam-dev/rehoboam/internal/state"
)

const (
	// defaultIntervalSecs is how often the tmux reconciler is allowed to run.
	defaultIntervalSecs = 3
	// defaultUncertainThresholdSecs is how stale a Working agent must be
	// before the reconciler bothers inspecting its pane.
	defaultUncertainThresholdSecs = 5
	// captureLines is how much pane tail the reconciler reads for prompt
	// detection.
	captureLines = 30
)

// TmuxAPI is the slice of the tmux collaborator the reconciler needs,
// narrowed to an interface so it can be faked in tests without a real
// tmux server.
type TmuxAPI interface {
	IsPaneAlive(ctx context.Context, paneID string) (bool, error)
	CapturePaneTail(ctx context.Context, paneID string, lines int) (string, error)
}

// TmuxReconciler periodically inspects "uncertain" agents — Working but
// stale beyond a short threshold — against their tmux pane, correcting
// dead panes and detected prompts, and repairing orphaned tool/response
// fields so the tick-based timeout sweep can do its job.
type TmuxReconciler struct {
	Tmux                    TmuxAPI
	IntervalSecs            int64
	UncertainThresholdSecs  int64

	lastRun int64
}

// NewTmuxReconciler builds a reconciler with the documented defaults.
func NewTmuxReconciler() *TmuxReconciler {
	return &TmuxReconciler{
		Tmux:                   collab.Tmux{},
		IntervalSecs:           defaultIntervalSecs,
		UncertainThresholdSecs: defaultUncertainThresholdSecs,
	}
}

// ShouldRun reports whether IntervalSecs has elapsed since the last run.
func (r *TmuxReconciler) ShouldRun(now time.Time) bool {
	return now.Unix()-r.lastRun >= r.IntervalSecs
}

func isUncertain(a *state.Agent, nowUnix, thresholdSecs int64) bool {
	return a.Status.Kind == event.KindWorking && nowUnix-a.LastUpdate > thresholdSecs
}

// Run inspects every uncertain agent and folds any correction back through
// FleetState.ApplySynthetic, so priority rules and bookkeeping stay
// centralized in one place.
func (r *TmuxReconciler) Run(ctx context.Context, now time.Time, fleet *state.FleetState) {
	r.lastRun = now.Unix()
	nowUnix := now.Unix()

	for paneID, a := range fleet.Agents {
		if !isUncertain(a, nowUnix, r.UncertainThresholdSecs) {
			continue
		}

		if !strings.HasPrefix(paneID, "%") {
			r.repairOrphanedFields(ctx, now, fleet, a)
			continue
		}

		alive, err := r.Tmux.IsPaneAlive(ctx, paneID)
		if err != nil {
			log.Printf("[reconcile] tmux error checking pane %s: %v", paneID, err)
			continue
		}
		if !alive {
			r.synthesize(now, fleet, paneID, a.Project, "Reconciler:PaneDead", event.AttentionWaiting)
			continue
		}

		tail, err := r.Tmux.CapturePaneTail(ctx, paneID, captureLines)
		if err != nil {
			log.Printf("[reconcile] tmux error capturing pane %s: %v", paneID, err)
			continue
		}

		switch collab.DetectPrompt(tail) {
		case collab.PromptPermission:
			r.synthesize(now, fleet, paneID, a.Project, "Reconciler:Permission", event.AttentionPermission)
		case collab.PromptInput:
			r.synthesize(now, fleet, paneID, a.Project, "Reconciler:Input", event.AttentionInput)
		default:
			r.repairOrphanedFields(ctx, now, fleet, a)
		}
	}
}

func (r *TmuxReconciler) synthesize(now time.Time, fleet *state.FleetState, paneID, project, name string, attention event.Attention) {
	fleet.ApplySynthetic(now, &event.HookEvent{
		Event:         name,
		Status:        "attention",
		AttentionType: attention.String(),
		PaneID:        paneID,
		Project:       project,
		Timestamp:     now.Unix(),
	})
	if a, ok := fleet.Agents[paneID]; ok {
		a.InResponse = false
		a.CurrentTool = ""
		a.PendingToolStart = 0
		a.PendingToolUseID = ""
	}
}

// repairOrphanedFields clears a dangling current_tool/in_response past the
// orphan timeouts, so the tick-based waiting sweep can subsequently fire.
// This does not itself transition status — it only unblocks the sweep.
func (r *TmuxReconciler) repairOrphanedFields(_ context.Context, now time.Time, fleet *state.FleetState, a *state.Agent) {
	nowUnix := now.Unix()
	changed := false

	if a.CurrentTool != "" && nowUnix-a.PendingToolStart > config.OrphanedToolTimeoutSecs {
		a.CurrentTool = ""
		a.PendingToolStart = 0
		a.PendingToolUseID = ""
		changed = true
	}
	if a.InResponse && nowUnix-a.LastUpdate > config.OrphanedResponseTimeoutSecs {
		a.InResponse = false
		changed = true
	}
	if changed {
		log.Printf("[reconcile] repaired orphaned fields for %s", a.PaneID)
	}
	_ = fleet
}

// Package engine ties together ingress, status derivation, fleet-state
// apply, the periodic reconcilers, and the loop controller on one actor
// goroutine — mirroring the teacher's agentloop.Start(ctx) select-loop
// idiom, generalized from one agent's think-act-observe cycle to the
// whole fleet's event-apply-reconcile cycle.
package engine

import (
	"context"
	"log"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/event"
	"github.com/rehoboam-dev/rehoboam/internal/health"
	"github.com/rehoboam-dev/rehoboam/internal/ingress"
	"github.com/rehoboam-dev/rehoboam/internal/loopctl"
	"github.com/rehoboam-dev/rehoboam/internal/reconcile"
	"github.com/rehoboam-dev/rehoboam/internal/state"
	"github.com/rehoboam-dev/rehoboam/internal/statusline"
	"github.com/rehoboam-dev/rehoboam/internal/telemetry"
)

// tickInterval drives both Fleet.Tick and the reconcilers' ShouldRun gate,
// matching the ~1 Hz cadence the fleet-state tick is specified at.
const tickInterval = 1 * time.Second

// Engine is the single actor owning FleetState. Every mutation to fleet
// happens on Run's goroutine; nothing else may touch it directly.
type Engine struct {
	Ingress     *ingress.Ingress
	Fleet       *state.FleetState
	TmuxRecon   *reconcile.TmuxReconciler
	Health      *health.Checker
	Controller  *loopctl.Controller
	Telemetry   *telemetry.Telemetry
	Statusline  *statusline.Renderer

	// OnDirty, if set, is called after every mutating step with a
	// rendered footer line — the minimal in-scope status-line consumer,
	// or a hook for an out-of-scope TUI to pick up a dirty signal.
	OnDirty func(footer string)

	lastAgentCount int64
}

// New wires a ready-to-run Engine from its components. Callers that don't
// need telemetry or a status line may pass nil for either.
func New(ing *ingress.Ingress, fleet *state.FleetState, recon *reconcile.TmuxReconciler, hc *health.Checker, ctrl *loopctl.Controller, tel *telemetry.Telemetry, sl *statusline.Renderer) *Engine {
	return &Engine{
		Ingress:    ing,
		Fleet:      fleet,
		TmuxRecon:  recon,
		Health:     hc,
		Controller: ctrl,
		Telemetry:  tel,
		Statusline: sl,
	}
}

// Run blocks, driving the engine until ctx is cancelled. It is the single
// goroutine permitted to mutate Fleet.
func (e *Engine) Run(ctx context.Context) error {
	log.Printf("[engine] started")
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[engine] context cancelled, stopping")
			return ctx.Err()

		case evt, ok := <-e.Ingress.Events:
			if !ok {
				log.Printf("[engine] ingress channel closed, stopping")
				return nil
			}
			e.applyOne(ctx, time.Now(), evt)

		case now := <-ticker.C:
			e.tick(ctx, now)
		}
	}
}

func (e *Engine) applyOne(ctx context.Context, now time.Time, evt *event.HookEvent) {
	start := time.Now()
	e.Fleet.Apply(now, evt)
	if e.Telemetry != nil {
		e.Telemetry.EventsIngested.Add(ctx, 1)
		e.Telemetry.ApplyLatencyMs.Record(ctx, float64(time.Since(start).Milliseconds()))
	}

	if evt.Event == "Stop" && e.Controller != nil {
		if a, ok := e.Fleet.Agents[evt.PaneID]; ok && a.LoopMode == state.LoopActive && a.LoopDir != "" {
			if _, err := e.Controller.OnStop(ctx, a); err != nil {
				log.Printf("[engine] loopctl OnStop failed for %s: %v", a.PaneID, err)
			}
		}
	}

	e.signalDirty()
}

func (e *Engine) tick(ctx context.Context, now time.Time) {
	e.Fleet.Tick(now)

	if e.TmuxRecon != nil && e.TmuxRecon.ShouldRun(now) {
		e.TmuxRecon.Run(ctx, now, e.Fleet)
		if e.Telemetry != nil {
			e.Telemetry.ReconcilerRuns.Add(ctx, 1)
		}
	}

	if e.Health != nil && e.Health.ShouldRun(now) {
		if _, err := e.Health.Check(now); err != nil {
			log.Printf("[engine] health check failed: %v", err)
		}
		warning := e.Health.Warning()
		if warning != nil {
			e.Fleet.HealthWarning = warning
		} else {
			e.Fleet.HealthWarning = nil
		}
	}

	if e.Telemetry != nil {
		e.Telemetry.AgentsActive.Add(ctx, int64(len(e.Fleet.Agents))-e.lastAgentCount)
		e.lastAgentCount = int64(len(e.Fleet.Agents))
	}

	e.signalDirty()
}

func (e *Engine) signalDirty() {
	if e.OnDirty == nil || e.Statusline == nil {
		return
	}
	e.OnDirty(e.Statusline.Render(e.footerCounts()))
}

func (e *Engine) footerCounts() statusline.Counts {
	counts := e.Fleet.StatusCounts()
	c := statusline.Counts{Working: counts[0], Attention: counts[1], Compacting: counts[2]}
	for _, a := range e.Fleet.Agents {
		if a.Status.Kind != event.KindAttention {
			continue
		}
		switch a.Status.Attention {
		case event.AttentionPermission:
			c.Permission++
		case event.AttentionInput:
			c.Input++
		case event.AttentionNotification:
			c.Notification++
		case event.AttentionWaiting:
			c.Waiting++
		}
	}
	if e.Fleet.HealthWarning != nil {
		c.HealthWarning = *e.Fleet.HealthWarning
	}
	return c
}

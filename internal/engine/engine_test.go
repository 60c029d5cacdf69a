package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/event"
	"github.com/rehoboam-dev/rehoboam/internal/ingress"
	"github.com/rehoboam-dev/rehoboam/internal/state"
)

func TestRunAppliesIngressedEventsUntilCancel(t *testing.T) {
	ing := ingress.New()
	fleet := state.New()
	e := New(ing, fleet, nil, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	ing.Events <- &event.HookEvent{Event: "PreToolUse", Status: "working", PaneID: "%1", Project: "p", Timestamp: 1700000000, ToolName: "Bash"}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := fleet.Agents["%1"]; ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for event to be applied")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancel")
	}
}

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/event"
	"github.com/rehoboam-dev/rehoboam/internal/state"
)

type fakeTmux struct {
	alive map[string]bool
	tail  map[string]string
}

func (f fakeTmux) IsPaneAlive(_ context.Context, paneID string) (bool, error) {
	return f.alive[paneID], nil
}

func (f fakeTmux) CapturePaneTail(_ context.Context, paneID string, _ int) (string, error) {
	return f.tail[paneID], nil
}

func TestReconcilerDetectsPermissionPrompt(t *testing.T) {
	const t0 = int64(1_700_000_000)
	f := state.New()
	f.Apply(time.Unix(t0-10, 0), &event.HookEvent{
		Event: "PreToolUse", Status: "working", PaneID: "%3", Project: "p", Timestamp: t0 - 10,
	})

	r := &TmuxReconciler{
		Tmux: fakeTmux{
			alive: map[string]bool{"%3": true},
			tail:  map[string]string{"%3": "Do you want to proceed?"},
		},
		IntervalSecs:           3,
		UncertainThresholdSecs: 5,
	}

	r.Run(context.Background(), time.Unix(t0, 0), f)

	a := f.Agents["%3"]
	if a.Status.Kind != event.KindAttention || a.Status.Attention != event.AttentionPermission {
		t.Fatalf("status = %v, want Attention(Permission)", a.Status)
	}
	if a.LastEvent != "Reconciler:Permission" {
		t.Fatalf("last_event = %q, want Reconciler:Permission", a.LastEvent)
	}
	if a.InResponse {
		t.Fatalf("in_response should be cleared")
	}
	if len(f.Events()) == 0 {
		t.Fatalf("expected a synthetic event to be recorded")
	}
}

func TestReconcilerTransitionsDeadPaneToWaiting(t *testing.T) {
	const t0 = int64(1_700_000_000)
	f := state.New()
	f.Apply(time.Unix(t0-10, 0), &event.HookEvent{
		Event: "PreToolUse", Status: "working", PaneID: "%4", Project: "p", Timestamp: t0 - 10,
	})

	r := &TmuxReconciler{
		Tmux:                   fakeTmux{alive: map[string]bool{}},
		IntervalSecs:           3,
		UncertainThresholdSecs: 5,
	}
	r.Run(context.Background(), time.Unix(t0, 0), f)

	a := f.Agents["%4"]
	if a.Status.Kind != event.KindAttention || a.Status.Attention != event.AttentionWaiting {
		t.Fatalf("status = %v, want Attention(Waiting)", a.Status)
	}
}

func TestReconcilerShouldRunRespectsInterval(t *testing.T) {
	r := &TmuxReconciler{IntervalSecs: 10}
	now := time.Unix(1_700_000_000, 0)
	if !r.ShouldRun(now) {
		t.Fatalf("expected first ShouldRun to be true")
	}
	r.lastRun = now.Unix()
	if r.ShouldRun(now.Add(5 * time.Second)) {
		t.Fatalf("expected ShouldRun to be false before the interval elapses")
	}
	if !r.ShouldRun(now.Add(11 * time.Second)) {
		t.Fatalf("expected ShouldRun to be true after the interval elapses")
	}
}

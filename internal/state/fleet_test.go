package state

import (
	"strconv"
	"testing"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/config"
	"github.com/rehoboam-dev/rehoboam/internal/event"
)

const t0 = int64(1_700_000_000)

func at(seconds int64) time.Time { return time.Unix(seconds, 0) }

func TestApplyPermissionRequestThenApprove(t *testing.T) {
	f := New()

	f.Apply(at(t0), &event.HookEvent{
		Event: "PreToolUse", Status: "working", PaneID: "%1", Project: "p",
		Timestamp: t0, ToolName: "Bash", ToolUseID: "u1",
	})
	f.Apply(at(t0+1), &event.HookEvent{
		Event: "PermissionRequest", Status: "attention", AttentionType: "permission",
		PaneID: "%1", Project: "p", Timestamp: t0 + 1,
	})
	f.Apply(at(t0+3), &event.HookEvent{
		Event: "PostToolUse", Status: "working", PaneID: "%1", Project: "p",
		Timestamp: t0 + 3, ToolUseID: "u1",
	})

	a := f.Agents["%1"]
	if a.Status.Kind != event.KindWorking {
		t.Fatalf("final status = %v, want Working", a.Status)
	}
	if a.LastLatencyMs != 3000 {
		t.Fatalf("LastLatencyMs = %d, want 3000", a.LastLatencyMs)
	}
	if a.TotalToolCalls != 1 {
		t.Fatalf("TotalToolCalls = %d, want 1", a.TotalToolCalls)
	}
	counts := f.StatusCounts()
	if counts != [3]int{0, 1, 0} {
		t.Fatalf("StatusCounts = %v, want [0 1 0]", counts)
	}
}

func TestApplyTaskUpdateMaintainsBidirectionalEdges(t *testing.T) {
	f := New()

	f.Apply(at(t0), &event.HookEvent{
		Event: "TaskCreate", Status: "working", PaneID: "%3", Project: "p",
		Timestamp: t0, TaskID: "2", TaskSubject: "write tests",
	})
	f.Apply(at(t0+1), &event.HookEvent{
		Event: "TaskUpdate", Status: "working", PaneID: "%3", Project: "p",
		Timestamp: t0 + 1, TaskID: "2", Reason: "blocked",
		ToolInput: map[string]any{
			"taskId":       "2",
			"addBlockedBy": []any{"1"},
		},
	})

	a := f.Agents["%3"]
	task2 := a.Tasks["2"]
	if task2 == nil {
		t.Fatalf("task 2 missing")
	}
	if len(task2.BlockedBy) != 1 || task2.BlockedBy[0] != "1" {
		t.Fatalf("task 2 BlockedBy = %v, want [1]", task2.BlockedBy)
	}
	task1 := a.Tasks["1"]
	if task1 == nil {
		t.Fatalf("reverse edge should have created task 1")
	}
	if len(task1.Blocks) != 1 || task1.Blocks[0] != "2" {
		t.Fatalf("task 1 Blocks = %v, want [2]", task1.Blocks)
	}

	// Re-applying the same addBlockedBy must not duplicate either edge.
	f.Apply(at(t0+2), &event.HookEvent{
		Event: "TaskUpdate", Status: "working", PaneID: "%3", Project: "p",
		Timestamp: t0 + 2, TaskID: "2",
		ToolInput: map[string]any{
			"taskId":       "2",
			"addBlockedBy": []any{"1"},
		},
	})
	if len(a.Tasks["2"].BlockedBy) != 1 {
		t.Fatalf("BlockedBy duplicated: %v", a.Tasks["2"].BlockedBy)
	}
	if len(a.Tasks["1"].Blocks) != 1 {
		t.Fatalf("Blocks duplicated: %v", a.Tasks["1"].Blocks)
	}
}

func TestApplyAskUserQuestionRescueOnStop(t *testing.T) {
	f := New()

	f.Apply(at(t0), &event.HookEvent{
		Event: "PreToolUse", Status: "working", PaneID: "%2", Project: "p",
		Timestamp: t0, ToolName: "AskUserQuestion",
	})
	f.Apply(at(t0+1), &event.HookEvent{
		Event: "Stop", Status: "attention", AttentionType: "waiting",
		PaneID: "%2", Project: "p", Timestamp: t0 + 1,
	})

	a := f.Agents["%2"]
	if a.Status.Kind != event.KindAttention || a.Status.Attention != event.AttentionInput {
		t.Fatalf("status = %v, want Attention(Input)", a.Status)
	}
}

func TestApplyStaleEvictionThenIngestAtCapacity(t *testing.T) {
	f := New()
	for i := 0; i < config.MaxAgents; i++ {
		pane := paneName(i)
		ts := t0 - 1000 + int64(i)
		f.Apply(at(ts), &event.HookEvent{
			Event: "Stop", Status: "attention", AttentionType: "waiting",
			PaneID: pane, Project: "p", Timestamp: ts,
		})
	}
	if len(f.Agents) != config.MaxAgents {
		t.Fatalf("precondition: len(Agents) = %d, want %d", len(f.Agents), config.MaxAgents)
	}

	f.Apply(at(t0), &event.HookEvent{
		Event: "SessionStart", Status: "attention", AttentionType: "waiting",
		PaneID: "%new", Project: "p", Timestamp: t0,
	})

	if len(f.Agents) != config.MaxAgents {
		t.Fatalf("len(Agents) after eviction+ingest = %d, want %d", len(f.Agents), config.MaxAgents)
	}
	if _, ok := f.Agents["%new"]; !ok {
		t.Fatalf("new agent was not ingested")
	}
	if _, ok := f.Agents[paneName(0)]; ok {
		t.Fatalf("oldest agent %q was not evicted", paneName(0))
	}
	sum := 0
	for _, c := range f.StatusCounts() {
		sum += c
	}
	if sum != len(f.Agents) {
		t.Fatalf("status counts %v do not sum to len(Agents)=%d", f.StatusCounts(), len(f.Agents))
	}
}

func paneName(i int) string {
	return "%evict" + strconv.Itoa(i)
}

func TestSubagentLifecycleNeverChangesParentStatus(t *testing.T) {
	f := New()
	f.Apply(at(t0), &event.HookEvent{
		Event: "UserPromptSubmit", Status: "working", PaneID: "%3", Project: "p", Timestamp: t0,
	})
	before := f.Agents["%3"].Status

	f.Apply(at(t0+1), &event.HookEvent{
		Event: "SubagentStart", Status: "attention", AttentionType: "waiting",
		PaneID: "%3", Project: "p", Timestamp: t0 + 1, SubagentID: "sub1", Description: "review the diff",
	})
	if f.Agents["%3"].Status != before {
		t.Fatalf("SubagentStart changed parent status to %v", f.Agents["%3"].Status)
	}

	f.Apply(at(t0+2), &event.HookEvent{
		Event: "SubagentStop", Status: "working", PaneID: "%3", Project: "p",
		Timestamp: t0 + 2, SubagentID: "sub1", SubagentDurationMs: 500,
	})
	if f.Agents["%3"].Status != before {
		t.Fatalf("SubagentStop changed parent status to %v", f.Agents["%3"].Status)
	}
	if f.Agents["%3"].Subagents[0].Status != "completed" {
		t.Fatalf("subagent status = %q, want completed", f.Agents["%3"].Subagents[0].Status)
	}
	if f.Agents["%3"].Subagents[0].Role != event.RoleReviewer {
		t.Fatalf("subagent role = %v, want Reviewer", f.Agents["%3"].Subagents[0].Role)
	}
}

func TestTickWaitingTimeoutRequiresQuiescence(t *testing.T) {
	f := New()
	f.Apply(at(t0), &event.HookEvent{
		Event: "PostToolUse", Status: "working", PaneID: "%4", Project: "p", Timestamp: t0,
	})

	f.Tick(at(t0 + config.WaitingTimeoutSecs + 1))
	if f.Agents["%4"].Status.Kind != event.KindAttention || f.Agents["%4"].Status.Attention != event.AttentionWaiting {
		t.Fatalf("status = %v, want Attention(Waiting) after timeout", f.Agents["%4"].Status)
	}
}

func TestTickWaitingTimeoutSkippedWhileToolPending(t *testing.T) {
	f := New()
	f.Apply(at(t0), &event.HookEvent{
		Event: "PreToolUse", Status: "working", PaneID: "%5", Project: "p",
		Timestamp: t0, ToolName: "Bash", ToolUseID: "u1",
	})

	f.Tick(at(t0 + config.WaitingTimeoutSecs + 1))
	if f.Agents["%5"].Status.Kind != event.KindWorking {
		t.Fatalf("status = %v, want Working while a tool is pending", f.Agents["%5"].Status)
	}
}

func TestTickStaleEviction(t *testing.T) {
	f := New()
	f.Apply(at(t0), &event.HookEvent{
		Event: "SessionStart", Status: "attention", AttentionType: "waiting",
		PaneID: "%6", Project: "p", Timestamp: t0,
	})

	f.Tick(at(t0 + config.StaleTimeoutSecs + 1))
	if _, ok := f.Agents["%6"]; ok {
		t.Fatalf("agent was not evicted after exceeding the stale timeout")
	}
}

func TestToolUseIDMismatchDiscardsLatencyButClearsPending(t *testing.T) {
	f := New()
	f.Apply(at(t0), &event.HookEvent{
		Event: "PreToolUse", Status: "working", PaneID: "%7", Project: "p",
		Timestamp: t0, ToolName: "Bash", ToolUseID: "u1",
	})
	f.Apply(at(t0+5), &event.HookEvent{
		Event: "PostToolUse", Status: "working", PaneID: "%7", Project: "p",
		Timestamp: t0 + 5, ToolUseID: "mismatched",
	})

	a := f.Agents["%7"]
	if a.TotalToolCalls != 0 {
		t.Fatalf("TotalToolCalls = %d, want 0 on id mismatch", a.TotalToolCalls)
	}
	if a.CurrentTool != "" || a.PendingToolUseID != "" {
		t.Fatalf("pending fields not cleared on mismatch: current_tool=%q pending_id=%q", a.CurrentTool, a.PendingToolUseID)
	}
}

package state

import (
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/config"
	"github.com/rehoboam-dev/rehoboam/internal/event"
)

// CommitResolver is the narrow slice of the git collaborator FleetState
// needs: reading the current HEAD commit on SessionStart. Kept as a local
// interface so this package never imports the collaborator package.
type CommitResolver interface {
	HeadCommit(dir string) (string, error)
}

// RawEvent is one entry of the bounded recent-events ring.
type RawEvent struct {
	Event     *event.HookEvent
	AppliedAt int64
}

// LoopConfig is a pending loop configuration awaiting its agent's
// registration (set before the agent's first event arrives).
type LoopConfig struct {
	MaxIterations uint32
	StopWord      string
	Role          string
}

// FleetState is the C3 aggregate. It is owned exclusively by a single
// actor — the engine's event loop — and is deliberately not guarded by a
// mutex: serializing all mutation onto one goroutine is the stronger
// guarantee, and a lock here would only hide a violation of that design,
// not prevent one.
type FleetState struct {
	Agents       map[string]*Agent
	events       []RawEvent
	statusCounts [3]int

	SelectedColumn int
	SelectedCard   int
	SelectedAgents map[string]bool

	PendingLoopConfigs map[string]LoopConfig
	SpriteAgentIDs     map[string]bool
	ConnectedSprites   map[string]bool
	HealthWarning      *string

	Commits CommitResolver
}

// New creates an empty FleetState.
func New() *FleetState {
	return &FleetState{
		Agents:             make(map[string]*Agent),
		SelectedAgents:     make(map[string]bool),
		PendingLoopConfigs: make(map[string]LoopConfig),
		SpriteAgentIDs:     make(map[string]bool),
		ConnectedSprites:   make(map[string]bool),
	}
}

// StatusCounts returns the cached per-Kind agent counts, always kept
// coherent with len(Agents) across every mutation.
func (f *FleetState) StatusCounts() [3]int { return f.statusCounts }

// Events returns the recent-events ring, newest first.
func (f *FleetState) Events() []RawEvent { return f.events }

func (f *FleetState) incrementCount(k event.Kind) { f.statusCounts[k]++ }

func (f *FleetState) decrementCount(k event.Kind) {
	if f.statusCounts[k] > 0 {
		f.statusCounts[k]--
	}
}

func (f *FleetState) pushEvent(e *event.HookEvent, now int64) {
	f.events = appendFront(f.events, RawEvent{Event: e, AppliedAt: now}, config.MaxEvents)
}

func appendFront(ring []RawEvent, v RawEvent, cap int) []RawEvent {
	ring = append([]RawEvent{v}, ring...)
	if len(ring) > cap {
		ring = ring[:cap]
	}
	return ring
}

// evictOldestWaiting implements apply's step 1: evict the oldest
// Attention(Waiting) agent, or failing that the oldest agent overall, to
// make room for a new one. No-op if Agents is empty.
func (f *FleetState) evictOldestWaiting() {
	var waitingID string
	var waitingTime int64
	haveWaiting := false

	var oldestID string
	var oldestTime int64
	haveOldest := false

	for id, a := range f.Agents {
		if !haveOldest || a.LastUpdate < oldestTime {
			oldestTime = a.LastUpdate
			oldestID = id
			haveOldest = true
		}
		if a.Status.Kind == event.KindAttention && a.Status.Attention == event.AttentionWaiting {
			if !haveWaiting || a.LastUpdate < waitingTime {
				waitingTime = a.LastUpdate
				waitingID = id
				haveWaiting = true
			}
		}
	}

	evictID := waitingID
	if !haveWaiting {
		evictID = oldestID
	}
	if evictID == "" {
		return
	}
	a := f.Agents[evictID]
	f.decrementCount(a.Status.Kind)
	delete(f.Agents, evictID)
	delete(f.SpriteAgentIDs, evictID)
}

// shouldApplyStatus implements apply's priority rule (step 4).
func shouldApplyStatus(e *event.HookEvent, old, new event.Status) bool {
	if e.IsSubagentLifecycle() {
		return false
	}
	if old.Kind == event.KindAttention &&
		(old.Attention == event.AttentionPermission || old.Attention == event.AttentionInput) &&
		new.Kind == event.KindWorking {
		return e.Event == "PostToolUse" || e.Event == "UserPromptSubmit"
	}
	if old.Kind == event.KindAttention && new.Kind == event.KindAttention {
		return new.Attention.Priority() <= old.Attention.Priority()
	}
	return true
}

func (f *FleetState) setStatus(a *Agent, s event.Status) {
	if a.Status == s {
		return
	}
	f.decrementCount(a.Status.Kind)
	a.Status = s
	f.incrementCount(a.Status.Kind)
}

func extractFilePath(toolInput any) (string, bool) {
	m, ok := toolInput.(map[string]any)
	if !ok {
		return "", false
	}
	fp, ok := m["file_path"].(string)
	return fp, ok && fp != ""
}

// Apply is the C3 entry point: fold one hook event into fleet state under
// the priority and correlation rules documented on the component. now is
// passed explicitly rather than read from the wall clock so the core stays
// deterministic and testable.
func (f *FleetState) Apply(now time.Time, e *event.HookEvent) bool {
	changed := false
	nowUnix := now.Unix()

	if _, exists := f.Agents[e.PaneID]; !exists && len(f.Agents) >= config.MaxAgents {
		f.evictOldestWaiting()
	}

	a, existed := f.Agents[e.PaneID]
	if !existed {
		a = newAgent(e.PaneID, e.Timestamp)
		if a.StartTime == 0 {
			a.StartTime = nowUnix
		}
		f.Agents[e.PaneID] = a
		f.incrementCount(a.Status.Kind)
		if e.Source.Sandbox {
			a.IsSprite = true
			a.SpriteID = e.Source.SandboxID
			f.SpriteAgentIDs[e.PaneID] = true
		}
		if cfg, ok := f.PendingLoopConfigs[e.PaneID]; ok {
			a.LoopMax = cfg.MaxIterations
			a.LoopStopWord = cfg.StopWord
			a.LoopMode = LoopActive
			delete(f.PendingLoopConfigs, e.PaneID)
		}
		changed = true
	}

	a.Project = e.Project

	newStatus := event.DeriveStatus(e.Event, e.AttentionType)
	if shouldApplyStatus(e, a.Status, newStatus) && a.Status != newStatus {
		f.setStatus(a, newStatus)
		changed = true
	}

	// AskUserQuestion rescue — two trigger points, see component docs.
	if e.Event == "PreToolUse" && e.ToolName == "AskUserQuestion" {
		f.setStatus(a, event.NewAttention(event.AttentionInput))
		changed = true
	}
	if e.Event == "Stop" && a.CurrentTool == "AskUserQuestion" {
		f.setStatus(a, event.NewAttention(event.AttentionInput))
		changed = true
	}

	if a.LastEvent != e.Event {
		a.LastEvent = e.Event
		changed = true
	}
	a.LastUpdate = nowUnix

	mergeOptionalFields(a, e, &changed)

	switch e.Event {
	case "PreToolUse":
		a.LastToolFailed = false
		a.CurrentTool = e.ToolName
		a.PendingToolStart = e.Timestamp
		a.PendingToolUseID = e.ToolUseID
		a.ToolHistory = appendCapped(a.ToolHistory, e.ToolName, 10)
		a.Role = event.InferRoleFromHistory(a.ToolHistory)
		if e.ToolName == "Edit" || e.ToolName == "Write" {
			if fp, ok := extractFilePath(e.ToolInput); ok {
				a.ModifiedFiles[fp] = true
			}
		}
		if e.ToolName == "AskUserQuestion" {
			f.setStatus(a, event.NewAttention(event.AttentionInput))
		}
		changed = true

	case "PostToolUse":
		if a.PendingToolUseID == "" || e.ToolUseID == "" || a.PendingToolUseID == e.ToolUseID {
			latencyMs := (e.Timestamp - a.PendingToolStart) * 1000
			a.LastLatencyMs = latencyMs
			prevTotal := a.TotalToolCalls
			a.TotalToolCalls++
			if prevTotal == 0 {
				a.AvgLatencyMs = float64(latencyMs)
			} else {
				a.AvgLatencyMs = (a.AvgLatencyMs*float64(prevTotal) + float64(latencyMs)) / float64(a.TotalToolCalls)
			}
		}
		// Always clear pending fields, even on id mismatch — a permanently
		// stuck current_tool is worse than occasionally discarding a
		// latency sample we can no longer pair correctly.
		a.CurrentTool = ""
		a.PendingToolStart = 0
		a.PendingToolUseID = ""
		changed = true

	case "PostToolUseFailure":
		a.LastToolFailed = true
		a.FailedToolName = a.CurrentTool
		a.FailedToolError = e.Error
		a.FailedToolInterrupt = e.IsInterrupt
		a.CurrentTool = ""
		a.PendingToolStart = 0
		a.PendingToolUseID = ""
		changed = true
	}

	applyTaskUpdate(a, e, &changed)
	applySubagentLifecycle(a, e, &changed)

	switch e.Event {
	case "UserPromptSubmit":
		a.InResponse = true
		changed = true
	case "Stop", "SessionEnd":
		a.InResponse = false
		changed = true
	}

	if e.Event == "SessionStart" {
		a.StartTime = e.Timestamp
		a.ModifiedFiles = make(map[string]bool)
		if a.WorkingDir != "" && f.Commits != nil {
			if commit, err := f.Commits.HeadCommit(a.WorkingDir); err == nil {
				a.SessionStartCommit = commit
			}
		}
		changed = true
	}

	a.Activity = appendCapped(a.Activity, a.Status.ActivitySample(), config.MaxSparklinePoints)

	if e.Event == "SessionEnd" {
		f.decrementCount(a.Status.Kind)
		delete(f.Agents, e.PaneID)
		delete(f.SpriteAgentIDs, e.PaneID)
		changed = true
	}

	f.pushEvent(e, nowUnix)

	return changed
}

func mergeOptionalFields(a *Agent, e *event.HookEvent, changed *bool) {
	setIfNonEmpty(&a.SessionID, e.SessionID, changed)
	setIfNonEmpty(&a.AgentType, e.AgentType, changed)
	setIfNonEmpty(&a.PermissionMode, e.PermissionMode, changed)
	setIfNonEmpty(&a.Cwd, e.Cwd, changed)
	if a.Cwd != "" {
		a.WorkingDir = a.Cwd
	}
	setIfNonEmpty(&a.TranscriptPath, e.TranscriptPath, changed)
	setIfNonEmpty(&a.Model, e.Model, changed)
	setIfNonEmpty(&a.ClaudeCodeVersion, e.ClaudeCodeVersion, changed)
	setIfNonEmpty(&a.TeamName, e.TeamName, changed)
	setIfNonEmpty(&a.TeamAgentID, e.TeamAgentID, changed)
	setIfNonEmpty(&a.TeamAgentName, e.TeamAgentName, changed)
	setIfNonEmpty(&a.TeamAgentType, e.TeamAgentType, changed)
	setIfNonEmpty(&a.EffortLevel, e.EffortLevel, changed)
	if e.Event == "Notification" {
		a.LastNotificationType = e.NotificationType
		*changed = true
	}
	if e.ContextWindow != nil {
		if e.ContextWindow.UsedPercentage != nil {
			a.ContextUsagePercent = *e.ContextWindow.UsedPercentage
		}
		if e.ContextWindow.RemainingPercentage != nil {
			a.ContextRemainingPercent = *e.ContextWindow.RemainingPercentage
		}
		if e.ContextWindow.TotalTokens != nil {
			a.ContextTotalTokens = *e.ContextWindow.TotalTokens
		}
		*changed = true
	}
	if e.Event == "PreCompact" || e.Event == "PostCompact" {
		a.CompactionCount++
		*changed = true
	}
}

func setIfNonEmpty(dst *string, v string, changed *bool) {
	if v != "" && *dst != v {
		*dst = v
		*changed = true
	}
}

func applyTaskUpdate(a *Agent, e *event.HookEvent, changed *bool) {
	if e.TaskID == "" {
		return
	}
	switch e.Event {
	case "TaskCreate", "TaskUpdate":
		t, ok := a.Tasks[e.TaskID]
		if !ok {
			t = &TaskInfo{}
			a.Tasks[e.TaskID] = t
		}
		if e.TaskSubject != "" {
			t.Subject = e.TaskSubject
		}
		if e.Reason != "" {
			t.Status = e.Reason
		}

		blockedBy := extractTaskIDs(e.ToolInput, "addBlockedBy")
		blocks := extractTaskIDs(e.ToolInput, "addBlocks")
		for _, blocked := range blockedBy {
			if !containsString(t.BlockedBy, blocked) {
				t.BlockedBy = append(t.BlockedBy, blocked)
			}
		}
		for _, blocking := range blocks {
			if !containsString(t.Blocks, blocking) {
				t.Blocks = append(t.Blocks, blocking)
			}
		}
		// Reverse edges: every task this one is blocked by gets this task
		// added to its own Blocks, and vice versa, so the graph stays
		// consistent regardless of which side reported the dependency.
		for _, blocked := range blockedBy {
			blocker, ok := a.Tasks[blocked]
			if !ok {
				blocker = &TaskInfo{}
				a.Tasks[blocked] = blocker
			}
			if !containsString(blocker.Blocks, e.TaskID) {
				blocker.Blocks = append(blocker.Blocks, e.TaskID)
			}
		}
		for _, blocking := range blocks {
			blockedTask, ok := a.Tasks[blocking]
			if !ok {
				blockedTask = &TaskInfo{}
				a.Tasks[blocking] = blockedTask
			}
			if !containsString(blockedTask.BlockedBy, e.TaskID) {
				blockedTask.BlockedBy = append(blockedTask.BlockedBy, e.TaskID)
			}
		}

		if e.Event == "TaskUpdate" && e.Reason == "in_progress" {
			a.CurrentTaskID = e.TaskID
			a.CurrentTaskSubject = t.Subject
		}
		if e.Event == "TaskUpdate" && e.Reason == "completed" && a.CurrentTaskID == e.TaskID {
			a.CurrentTaskID = ""
			a.CurrentTaskSubject = ""
		}
		*changed = true
	}
}

// extractTaskIDs pulls a string-array field (e.g. addBlockedBy, addBlocks)
// out of a tool_input payload, which decodes as map[string]interface{} after
// a JSON round-trip.
func extractTaskIDs(toolInput any, key string) []string {
	m, ok := toolInput.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids
}

func containsString(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func applySubagentLifecycle(a *Agent, e *event.HookEvent, changed *bool) {
	switch e.Event {
	case "SubagentStart":
		role := event.InferRoleFromDescription(e.Description)
		a.Subagents = append(a.Subagents, Subagent{
			ID:           e.SubagentID,
			Description:  e.Description,
			Status:       "running",
			ParentPaneID: a.PaneID,
			Role:         role,
		})
		*changed = true
	case "SubagentStop":
		for i := range a.Subagents {
			if a.Subagents[i].ID == e.SubagentID {
				a.Subagents[i].Status = "completed"
				a.Subagents[i].DurationMs = e.SubagentDurationMs
				*changed = true
				break
			}
		}
	}
}

// Tick performs the periodic waiting-timeout sweep followed by the stale
// sweep. An agent queued for stale removal this tick is never also
// transitioned to Waiting in the same pass.
func (f *FleetState) Tick(now time.Time) {
	nowUnix := now.Unix()

	for _, a := range f.Agents {
		if a.Status.Kind == event.KindWorking &&
			a.CurrentTool == "" && !a.InResponse &&
			nowUnix-a.LastUpdate > config.WaitingTimeoutSecs &&
			nowUnix-a.LastUpdate <= config.StaleTimeoutSecs {
			f.setStatus(a, event.NewAttention(event.AttentionWaiting))
			a.LastEvent = "Tick:WaitingTimeout"
		}
	}

	for id, a := range f.Agents {
		if nowUnix-a.LastUpdate > config.StaleTimeoutSecs {
			f.decrementCount(a.Status.Kind)
			delete(f.Agents, id)
			delete(f.SpriteAgentIDs, id)
		}
	}
}

// ApplySynthetic lets a reconciler fold in a locally constructed event
// (one it did not receive over the wire) through the same Apply path, so
// the priority rules and bookkeeping stay in one place.
func (f *FleetState) ApplySynthetic(now time.Time, e *event.HookEvent) bool {
	return f.Apply(now, e)
}

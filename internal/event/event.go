// Package event defines the wire format for hook events and the pure
// status-derivation logic (C2) that maps a raw event into a canonical
// agent Status.
package event

import (
	"fmt"
	"strings"
)

// Source identifies where an event originated: a local tmux pane or a
// remote sandbox ("sprite") tagged by id.
type Source struct {
	Sandbox   bool
	SandboxID string
}

func LocalSource() Source { return Source{} }

func SandboxSource(id string) Source { return Source{Sandbox: true, SandboxID: id} }

// ContextWindow carries the optional context-usage fields Claude Code
// reports on some events.
type ContextWindow struct {
	UsedPercentage      *float64 `json:"used_percentage,omitempty"`
	RemainingPercentage *float64 `json:"remaining_percentage,omitempty"`
	TotalTokens         *uint64  `json:"total_tokens,omitempty"`
}

// HookEvent is the JSON wire shape accepted from the Unix socket and the
// WebSocket ingress. Every field but the five required ones is optional and
// simply absent (zero value) on the wire when not applicable — there is no
// "default" tag dance needed in Go the way the original needs
// #[serde(default)] everywhere, because every field below is already a
// pointer or a zero-valued primitive.
type HookEvent struct {
	Event     string `json:"event"`
	Status    string `json:"status"`
	PaneID    string `json:"pane_id"`
	Project   string `json:"project"`
	Timestamp int64  `json:"timestamp"`

	AttentionType string `json:"attention_type,omitempty"`

	SessionID          string `json:"session_id,omitempty"`
	ToolName           string `json:"tool_name,omitempty"`
	ToolInput          any    `json:"tool_input,omitempty"`
	ToolUseID          string `json:"tool_use_id,omitempty"`
	ToolResponse       any    `json:"tool_response,omitempty"`
	Reason             string `json:"reason,omitempty"`
	NotificationType   string `json:"notification_type,omitempty"`
	NotificationTitle  string `json:"notification_title,omitempty"`
	Error              string `json:"error,omitempty"`
	IsInterrupt        bool   `json:"is_interrupt,omitempty"`
	Prompt             string `json:"prompt,omitempty"`
	SubagentID         string `json:"subagent_id,omitempty"`
	Description        string `json:"description,omitempty"`
	SubagentDurationMs int64  `json:"subagent_duration_ms,omitempty"`

	ContextWindow *ContextWindow `json:"context_window,omitempty"`

	AgentType          string `json:"agent_type,omitempty"`
	PermissionMode     string `json:"permission_mode,omitempty"`
	Cwd                string `json:"cwd,omitempty"`
	TranscriptPath     string `json:"transcript_path,omitempty"`
	TeamName           string `json:"team_name,omitempty"`
	TeamAgentID        string `json:"team_agent_id,omitempty"`
	TeamAgentName      string `json:"team_agent_name,omitempty"`
	TeamAgentType      string `json:"team_agent_type,omitempty"`
	ClaudeCodeVersion  string `json:"claude_code_version,omitempty"`
	Model              string `json:"model,omitempty"`
	SessionSource      string `json:"session_source,omitempty"`
	StopHookActive     bool   `json:"stop_hook_active,omitempty"`
	AgentTranscriptPath string `json:"agent_transcript_path,omitempty"`
	Trigger            string `json:"trigger,omitempty"`
	EffortLevel        string `json:"effort_level,omitempty"`
	TeammateName       string `json:"teammate_name,omitempty"`
	TaskID             string `json:"task_id,omitempty"`
	TaskSubject        string `json:"task_subject,omitempty"`
	TaskDescription    string `json:"task_description,omitempty"`

	Source Source `json:"-"`
}

// validStatuses is the set of status strings an ingested event may carry.
var validStatuses = map[string]bool{
	"working":    true,
	"attention":  true,
	"compacting": true,
}

// Validate enforces the minimum wire contract: non-empty pane_id and
// project, and a recognized status.
func (e *HookEvent) Validate() error {
	if strings.TrimSpace(e.PaneID) == "" {
		return fmt.Errorf("event: pane_id is required")
	}
	if strings.TrimSpace(e.Project) == "" {
		return fmt.Errorf("event: project is required")
	}
	if !validStatuses[e.Status] {
		return fmt.Errorf("event: unrecognized status %q", e.Status)
	}
	return nil
}

// IsSubagentLifecycle reports whether the event is a subagent start/stop,
// which must never change its parent agent's status (apply's rule 4).
func (e *HookEvent) IsSubagentLifecycle() bool {
	return e.Event == "SubagentStart" || e.Event == "SubagentStop"
}

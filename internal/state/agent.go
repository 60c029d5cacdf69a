// Package state holds the Fleet State component (C3): the authoritative,
// single-actor-owned in-memory model of every tracked agent.
package state

import "github.com/rehoboam-dev/rehoboam/internal/event"

// LoopMode is the Rehoboam iteration-loop state attached to an agent.
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopActive
	LoopStalled
	LoopComplete
)

func (m LoopMode) String() string {
	switch m {
	case LoopActive:
		return "active"
	case LoopStalled:
		return "stalled"
	case LoopComplete:
		return "complete"
	default:
		return "none"
	}
}

// Subagent is a nested record of a child agent spawned by a Task-like tool.
// It is never promoted to a top-level Agent and never affects its parent's
// Status.
type Subagent struct {
	ID           string
	Description  string
	Status       string // "running" | "completed"
	DurationMs   int64
	ParentPaneID string
	Depth        int
	Role         event.Role
	SubagentType string
}

// TaskInfo tracks one entry of the Task API's bidirectional dependency
// graph as seen by a single agent.
type TaskInfo struct {
	Status    string
	Subject   string
	BlockedBy []string
	Blocks    []string
}

// Agent is the per-pane record tracked by FleetState.
type Agent struct {
	PaneID     string
	Project    string
	IsSprite   bool
	SpriteID   string
	WorkingDir string
	LoopDir    string

	Status     event.Status
	StartTime  int64
	LastUpdate int64

	LastEvent            string
	LastNotificationType string

	SessionID         string
	Model             string
	AgentType         string
	PermissionMode    string
	Cwd               string
	TranscriptPath    string
	ClaudeCodeVersion string
	EffortLevel       string
	CompactionCount   int

	ContextUsagePercent      float64
	ContextRemainingPercent  float64
	ContextTotalTokens       uint64

	TeamName      string
	TeamAgentID   string
	TeamAgentName string
	TeamAgentType string

	CurrentTool      string
	PendingToolStart int64
	PendingToolUseID string
	LastLatencyMs    int64
	AvgLatencyMs     float64
	TotalToolCalls   uint32
	InResponse       bool

	LastToolFailed       bool
	FailedToolName       string
	FailedToolError      string
	FailedToolInterrupt  bool

	Role        event.Role
	ToolHistory []string

	Activity []float64

	Subagents []Subagent

	Tasks             map[string]*TaskInfo
	CurrentTaskID     string
	CurrentTaskSubject string

	ModifiedFiles      map[string]bool
	SessionStartCommit string

	LoopMode        LoopMode
	LoopIteration   uint32
	LoopMax         uint32
	LoopStopWord    string
	LoopLastReasons []string
}

// IsTeamLead reports whether this agent is registered as its team's lead.
func (a *Agent) IsTeamLead() bool { return a.TeamAgentType == "lead" }

func newAgent(paneID string, now int64) *Agent {
	return &Agent{
		PaneID:     paneID,
		StartTime:  now,
		LastUpdate: now,
		Status:     event.NewAttention(event.AttentionWaiting),
		Tasks:      make(map[string]*TaskInfo),
		ModifiedFiles: make(map[string]bool),
	}
}

func appendCapped[T any](ring []T, v T, cap int) []T {
	ring = append(ring, v)
	if len(ring) > cap {
		ring = ring[len(ring)-cap:]
	}
	return ring
}

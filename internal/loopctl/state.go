// Package loopctl implements the Loop Controller component (C5): the
// Rehoboam iteration loop that respawns a fresh agent on every Stop event,
// checkpointing progress and carrying forward a persistent on-disk state
// directory across iterations.
package loopctl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Role is the loop participant's role, driving which prompt template gets
// built each iteration.
type Role string

const (
	RolePlanner Role = "planner"
	RoleWorker  Role = "worker"
	RoleAuto    Role = "auto"
)

// State is the persisted per-loop record at <loop_dir>/state.json.
type State struct {
	Iteration        uint32           `json:"iteration"`
	MaxIterations    uint32           `json:"max_iterations"`
	StopWord         string           `json:"stop_word"`
	StartedAt        int64            `json:"started_at"`
	PaneID           string           `json:"pane_id"`
	ProjectDir       string           `json:"project_dir"`
	IterationStartedAt int64          `json:"iteration_started_at"`
	ErrorCounts      map[string]int   `json:"error_counts"`
	LastCommit       string           `json:"last_commit"`
	Role             Role             `json:"role"`
	AssignedTask     string           `json:"assigned_task,omitempty"`

	// ProgressHash and StallCount back the stall-check monitor (§4.5):
	// a whitespace-normalized hash of progress.md and how many
	// consecutive iterations it has gone unchanged.
	ProgressHash string `json:"progress_hash,omitempty"`
	StallCount   int    `json:"stall_count"`
}

func statePath(loopDir string) string { return filepath.Join(loopDir, "state.json") }

// LoadState reads state.json, returning a fresh zero State if it doesn't
// exist yet (the first iteration of a brand-new loop).
func LoadState(loopDir string) (*State, error) {
	path := statePath(loopDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{ErrorCounts: make(map[string]int)}, nil
		}
		return nil, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if s.ErrorCounts == nil {
		s.ErrorCounts = make(map[string]int)
	}
	return &s, nil
}

// Save writes state.json as a whole-file replace (temp file + rename)
// guarded by an advisory flock, so a concurrent reader never observes a
// torn write.
func (s *State) Save(loopDir string) error {
	path := statePath(loopDir)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// CompletionReason names why a loop completed, recorded in activity.log
// and used by callers deciding whether a final checkpoint is warranted.
type CompletionReason string

const (
	ReasonPromiseTag        CompletionReason = "promise_tag"
	ReasonStopWord          CompletionReason = "stop_word"
	ReasonPlanningComplete  CompletionReason = "planning_complete"
	ReasonMaxIterations     CompletionReason = "max_iterations"
)

// now is overridable in tests; production code always goes through
// time.Now via this indirection so the controller itself stays free of a
// hidden global-clock dependency.
var now = func() time.Time { return time.Now() }

package collab

import (
	"context"
	"io"

	"github.com/rehoboam-dev/rehoboam/internal/config"
)

// SandboxSpec describes the VM a Sandbox should create for one agent.
type SandboxSpec struct {
	Name          string
	Project       string
	Region        string
	RAMMB         uint32
	CPUs          uint32
	NetworkPreset config.NetworkPreset
}

// CommandResult is the outcome of a command run inside a sandbox.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Checkpoint is a point-in-time snapshot of a sandbox's filesystem state,
// restorable by ID.
type Checkpoint struct {
	ID      string
	Comment string
}

// Sandbox is the boundary the fleet would use to drive a remote-VM backed
// agent instead of a local tmux pane: create the VM, push a repo into it,
// run Claude Code inside, and checkpoint/restore its filesystem state
// across loop iterations. No concrete implementation is wired; a remote
// sandbox vendor SDK would satisfy this interface behind a build tag or a
// separate binary, the same way collab.Tmux satisfies TmuxAPI today.
type Sandbox interface {
	// Create provisions a new VM per spec and returns its handle.
	Create(ctx context.Context, spec SandboxSpec) (handle string, err error)

	// CloneRepo clones a git repository into the sandbox's working directory.
	CloneRepo(ctx context.Context, handle, repoURL, ref string) error

	// Run executes a command inside the sandbox and waits for it to exit.
	Run(ctx context.Context, handle string, argv []string, stdin io.Reader) (CommandResult, error)

	// Spawn starts a long-running process (e.g. Claude Code itself) inside
	// the sandbox without waiting for it to exit.
	Spawn(ctx context.Context, handle string, argv []string) error

	// ApplyNetworkPolicy switches the sandbox's egress policy to one of the
	// three presets (config.NetworkFull / NetworkClaudeOnly / NetworkRestricted).
	ApplyNetworkPolicy(ctx context.Context, handle string, preset config.NetworkPreset) error

	// Checkpoint snapshots the sandbox's current filesystem state.
	Checkpoint(ctx context.Context, handle, comment string) (Checkpoint, error)

	// Restore rolls the sandbox's filesystem back to a prior checkpoint.
	Restore(ctx context.Context, handle, checkpointID string) error

	// Destroy tears down the sandbox and releases its resources.
	Destroy(ctx context.Context, handle string) error
}

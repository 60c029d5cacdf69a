package collab

import (
	"context"
	"strings"
)

// Git wraps the git CLI for the checkpoint/diff operations the loop
// controller and fleet state need.
type Git struct{}

// HasChanges reports whether dir has any uncommitted changes, tracked or not.
func (Git) HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := runCommand(ctx, dir, "git", []string{"status", "--porcelain"}, DefaultCommandTimeout)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Checkpoint stages everything and commits with message, skipping the
// commit (not an error) when there is nothing to commit.
func (Git) Checkpoint(ctx context.Context, dir, message string) error {
	has, err := (Git{}).HasChanges(ctx, dir)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	if _, err := runCommand(ctx, dir, "git", []string{"add", "-A"}, DefaultCommandTimeout); err != nil {
		return err
	}
	_, err = runCommand(ctx, dir, "git", []string{"commit", "-m", message}, DefaultCommandTimeout)
	return err
}

// Push pushes the current branch to its upstream.
func (Git) Push(ctx context.Context, dir string) error {
	_, err := runCommand(ctx, dir, "git", []string{"push"}, DefaultCommandTimeout)
	return err
}

// DiffFull returns the full working-tree diff against HEAD.
func (Git) DiffFull(ctx context.Context, dir string) (string, error) {
	return runCommand(ctx, dir, "git", []string{"diff", "HEAD"}, DefaultCommandTimeout)
}

// DiffSince returns the diff between commit and the working tree.
func (Git) DiffSince(ctx context.Context, dir, commit string) (string, error) {
	return runCommand(ctx, dir, "git", []string{"diff", commit}, DefaultCommandTimeout)
}

// HeadCommit returns the current HEAD hash, or an error if dir is not a
// git repository (a quiet, expected condition FleetState treats as
// "no checkpoint commit recorded", not a failure).
func (Git) HeadCommit(ctx context.Context, dir string) (string, error) {
	out, err := runCommand(ctx, dir, "git", []string{"rev-parse", "HEAD"}, DefaultCommandTimeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HeadCommitResolver adapts HeadCommit to state.CommitResolver's
// context-free signature; each call uses context.Background and is bounded
// by DefaultCommandTimeout.
type HeadCommitResolver struct{ Git Git }

func (r HeadCommitResolver) HeadCommit(dir string) (string, error) {
	return r.Git.HeadCommit(context.Background(), dir)
}

// WorktreeAdd creates a new worktree at path on branch.
func (Git) WorktreeAdd(ctx context.Context, dir, path, branch string) error {
	_, err := runCommand(ctx, dir, "git", []string{"worktree", "add", path, branch}, DefaultCommandTimeout)
	return err
}

// WorktreeList lists existing worktrees (porcelain format).
func (Git) WorktreeList(ctx context.Context, dir string) (string, error) {
	return runCommand(ctx, dir, "git", []string{"worktree", "list", "--porcelain"}, DefaultCommandTimeout)
}

// WorktreeRemove removes a worktree.
func (Git) WorktreeRemove(ctx context.Context, dir, path string) error {
	_, err := runCommand(ctx, dir, "git", []string{"worktree", "remove", path, "--force"}, DefaultCommandTimeout)
	return err
}

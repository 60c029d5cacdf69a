package loopctl

import (
	"os"
	"path/filepath"
)

// InitOptions controls which optional loop-dir files get created.
type InitOptions struct {
	EnableCoordination bool
	IsWorker           bool
}

// InitLoopDir creates the persistent state directory layout for a new
// loop: state.json, anchor.md, guardrails.md, progress.md, tasks.md, and
// the log files always; coordination.md and the workers/ roster only when
// coordination is enabled; assigned_task.md only for a Worker.
func InitLoopDir(loopDir, anchor string, opts InitOptions) error {
	if err := os.MkdirAll(loopDir, 0755); err != nil {
		return err
	}

	always := map[string]string{
		"anchor.md":           anchor,
		"guardrails.md":       "# Guardrails\n\n",
		"progress.md":         "# Progress\n\n",
		"tasks.md":            "## Pending\n\n## In Progress\n\n## Completed\n",
		"activity.log":        "",
		"session_history.log": "",
		"errors.log":          "",
	}
	for name, content := range always {
		path := filepath.Join(loopDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}

	if _, err := LoadState(loopDir); err != nil {
		return err
	}
	if st, err := LoadState(loopDir); err == nil {
		if err := st.Save(loopDir); err != nil {
			return err
		}
	}

	approvalsPath := filepath.Join(loopDir, "approvals.json")
	if _, err := os.Stat(approvalsPath); os.IsNotExist(err) {
		if err := os.WriteFile(approvalsPath, []byte("[]"), 0644); err != nil {
			return err
		}
	}

	if opts.EnableCoordination {
		coordPath := filepath.Join(loopDir, "coordination.md")
		if _, err := os.Stat(coordPath); os.IsNotExist(err) {
			if err := os.WriteFile(coordPath, []byte{}, 0644); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(filepath.Join(loopDir, "workers"), 0755); err != nil {
			return err
		}
	}

	if opts.IsWorker {
		taskPath := filepath.Join(loopDir, "assigned_task.md")
		if _, err := os.Stat(taskPath); os.IsNotExist(err) {
			if err := os.WriteFile(taskPath, []byte{}, 0644); err != nil {
				return err
			}
		}
	}

	return nil
}

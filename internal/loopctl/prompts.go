package loopctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BuildPromptOptions carries everything an iteration prompt template needs
// beyond what's already on disk in loop_dir.
type BuildPromptOptions struct {
	EnableCoordination bool
	CoordinationWindowMinutes int
}

func readFileOrEmpty(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// BuildIterationPrompt renders the role-specific template and writes it to
// <loop_dir>/_iteration_prompt.md, returning the rendered text.
func BuildIterationPrompt(loopDir string, s *State, opts BuildPromptOptions) (string, error) {
	anchor := readFileOrEmpty(filepath.Join(loopDir, "anchor.md"))
	guardrails := readFileOrEmpty(filepath.Join(loopDir, "guardrails.md"))
	progress := readFileOrEmpty(filepath.Join(loopDir, "progress.md"))

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Iteration %d\n\n", s.Iteration)
	fmt.Fprintf(&sb, "## Anchor\n\n%s\n\n", anchor)
	fmt.Fprintf(&sb, "## Guardrails\n\n%s\n\n", guardrails)
	fmt.Fprintf(&sb, "## Progress so far\n\n%s\n\n", progress)

	if opts.EnableCoordination {
		windowMinutes := opts.CoordinationWindowMinutes
		if windowMinutes <= 0 {
			windowMinutes = 60
		}
		broadcasts, _ := ReadBroadcasts(loopDir, windowMinutes)
		sb.WriteString("## Recent team broadcasts\n\n")
		if len(broadcasts) == 0 {
			sb.WriteString("(none)\n\n")
		} else {
			for _, b := range broadcasts {
				fmt.Fprintf(&sb, "- [%s] %s: %s\n", b.At.Format("15:04:05"), b.AgentID, b.Message)
			}
			sb.WriteString("\n")
		}

		workers, _ := ListWorkers(loopDir)
		sb.WriteString("## Active workers\n\n")
		if len(workers) == 0 {
			sb.WriteString("(none registered)\n\n")
		} else {
			for _, w := range workers {
				fmt.Fprintf(&sb, "- %s\n", w)
			}
			sb.WriteString("\n")
		}
	}

	switch s.Role {
	case RolePlanner:
		sb.WriteString(plannerBody(loopDir))
	case RoleWorker:
		sb.WriteString(workerBody(loopDir, s))
	default:
		sb.WriteString(autoBody())
	}

	sb.WriteString(completionInstructions(s.StopWord))

	text := sb.String()
	path := filepath.Join(loopDir, "_iteration_prompt.md")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", err
	}
	return text, nil
}

func plannerBody(loopDir string) string {
	pending, _ := ReadPendingTasks(loopDir)
	var sb strings.Builder
	sb.WriteString("## Role: Planner\n\n")
	sb.WriteString("Break the anchor goal into tasks in tasks.md, under ## Pending, one per line: `- [ ] [<id>] <description>`. Review worker progress and re-plan as needed.\n\n")
	fmt.Fprintf(&sb, "Currently %d task(s) pending.\n\n", len(pending))
	return sb.String()
}

func workerBody(loopDir string, s *State) string {
	var sb strings.Builder
	sb.WriteString("## Role: Worker\n\n")
	if s.AssignedTask != "" {
		fmt.Fprintf(&sb, "You are pre-assigned task `%s`. Work on it exclusively.\n\n", s.AssignedTask)
		return sb.String()
	}
	next, _ := ReadNextTask(loopDir)
	if next == nil {
		sb.WriteString("No pending task is available. Wait for the Planner or report idle status in progress.md.\n\n")
	} else {
		fmt.Fprintf(&sb, "Claim and work on the oldest pending task: `[%s] %s`.\n\n", next.ID, next.Description)
	}
	return sb.String()
}

func autoBody() string {
	return "## Role: Auto\n\nContinue working toward the anchor goal directly; use judgment about what remains.\n\n"
}

func completionInstructions(stopWord string) string {
	var sb strings.Builder
	sb.WriteString("## When done\n\n")
	sb.WriteString("Write `<promise>COMPLETE</promise>` into progress.md when the anchor goal is fully satisfied")
	if stopWord != "" {
		fmt.Fprintf(&sb, ", or the word `%s`", stopWord)
	}
	sb.WriteString(".\n")
	return sb.String()
}

package loopctl

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Task is one parsed entry of tasks.md.
type Task struct {
	ID          string
	Description string
	Worker      string
}

const (
	sectionPending    = "## Pending"
	sectionInProgress = "## In Progress"
	sectionCompleted  = "## Completed"
)

var (
	pendingLineRe = regexp.MustCompile(`^- \[ \] \[([^\]]+)\] (.*)$`)
	claimedLineRe = regexp.MustCompile(`^- \[~\] \[([^\]]+)\] (.*?) \(worker: ([^)]+)\)$`)
)

func tasksPath(loopDir string) string { return filepath.Join(loopDir, "tasks.md") }

type taskDoc struct {
	pending    []string // raw lines, newest first
	inProgress []string
	completed  []string
}

func readTaskDoc(loopDir string) (*taskDoc, error) {
	data, err := os.ReadFile(tasksPath(loopDir))
	if err != nil {
		if os.IsNotExist(err) {
			return &taskDoc{}, nil
		}
		return nil, err
	}

	doc := &taskDoc{}
	current := &doc.pending
	for _, line := range strings.Split(string(data), "\n") {
		switch strings.TrimSpace(line) {
		case sectionPending:
			current = &doc.pending
			continue
		case sectionInProgress:
			current = &doc.inProgress
			continue
		case sectionCompleted:
			current = &doc.completed
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		*current = append(*current, line)
	}
	return doc, nil
}

func (d *taskDoc) write(loopDir string) error {
	var sb strings.Builder
	sb.WriteString(sectionPending + "\n")
	for _, l := range d.pending {
		sb.WriteString(l + "\n")
	}
	sb.WriteString("\n" + sectionInProgress + "\n")
	for _, l := range d.inProgress {
		sb.WriteString(l + "\n")
	}
	sb.WriteString("\n" + sectionCompleted + "\n")
	for _, l := range d.completed {
		sb.WriteString(l + "\n")
	}
	return os.WriteFile(tasksPath(loopDir), []byte(sb.String()), 0644)
}

// AddTask inserts a new Pending entry at the top of the section (newest
// first).
func AddTask(loopDir, id, description string) error {
	doc, err := readTaskDoc(loopDir)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("- [ ] [%s] %s", id, description)
	doc.pending = append([]string{line}, doc.pending...)
	return doc.write(loopDir)
}

// ReadPendingTasks returns Pending entries newest first, matching the
// on-disk insertion order.
func ReadPendingTasks(loopDir string) ([]Task, error) {
	doc, err := readTaskDoc(loopDir)
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(doc.pending))
	for _, l := range doc.pending {
		if m := pendingLineRe.FindStringSubmatch(l); m != nil {
			tasks = append(tasks, Task{ID: m[1], Description: m[2]})
		}
	}
	return tasks, nil
}

// ReadNextTask returns the oldest Pending entry — the bottom of the
// newest-first list — or nil if the queue is empty.
func ReadNextTask(loopDir string) (*Task, error) {
	tasks, err := ReadPendingTasks(loopDir)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	t := tasks[len(tasks)-1]
	return &t, nil
}

// ClaimTask moves a Pending task into In Progress with a worker annotation.
func ClaimTask(loopDir, id, worker string) error {
	doc, err := readTaskDoc(loopDir)
	if err != nil {
		return err
	}
	found := false
	remaining := doc.pending[:0]
	for _, l := range doc.pending {
		m := pendingLineRe.FindStringSubmatch(l)
		if m != nil && m[1] == id {
			doc.inProgress = append([]string{
				fmt.Sprintf("- [~] [%s] %s (worker: %s)", id, m[2], worker),
			}, doc.inProgress...)
			found = true
			continue
		}
		remaining = append(remaining, l)
	}
	doc.pending = remaining
	if !found {
		return fmt.Errorf("loopctl: task %q not found in Pending", id)
	}
	return doc.write(loopDir)
}

// CompleteTask moves an In Progress (or still-Pending) task into Completed.
func CompleteTask(loopDir, id string) error {
	doc, err := readTaskDoc(loopDir)
	if err != nil {
		return err
	}
	found := false

	remainingInProgress := doc.inProgress[:0]
	for _, l := range doc.inProgress {
		if m := claimedLineRe.FindStringSubmatch(l); m != nil && m[1] == id {
			doc.completed = append([]string{fmt.Sprintf("- [x] [%s] %s", id, m[2])}, doc.completed...)
			found = true
			continue
		}
		remainingInProgress = append(remainingInProgress, l)
	}
	doc.inProgress = remainingInProgress

	if !found {
		remainingPending := doc.pending[:0]
		for _, l := range doc.pending {
			if m := pendingLineRe.FindStringSubmatch(l); m != nil && m[1] == id {
				doc.completed = append([]string{fmt.Sprintf("- [x] [%s] %s", id, m[2])}, doc.completed...)
				found = true
				continue
			}
			remainingPending = append(remainingPending, l)
		}
		doc.pending = remainingPending
	}

	if !found {
		return fmt.Errorf("loopctl: task %q not found", id)
	}
	return doc.write(loopDir)
}

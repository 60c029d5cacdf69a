package event

import "strings"

// Role classifies an agent (or subagent) by the work it appears to be doing.
type Role int

const (
	RoleGeneral Role = iota
	RolePlanner
	RoleWorker
	RoleReviewer
)

func (r Role) String() string {
	switch r {
	case RolePlanner:
		return "planner"
	case RoleWorker:
		return "worker"
	case RoleReviewer:
		return "reviewer"
	default:
		return "general"
	}
}

var mutationTools = map[string]bool{
	"Edit":         true,
	"Write":        true,
	"Bash":         true,
	"NotebookEdit": true,
	"TodoWrite":    true,
}

var readOnlyTools = map[string]bool{
	"Read":                 true,
	"Glob":                 true,
	"Grep":                 true,
	"WebFetch":             true,
	"WebSearch":            true,
	"ListMcpResourcesTool": true,
	"ReadMcpResourceTool":  true,
	"Task":                 true,
	"TodoRead":             true,
}

// InferRoleFromHistory re-derives Role from the last (up to 10) tool names
// used by an agent, in the precedence the C2 mapping specifies: Reviewer is
// checked first (a mutation followed by reads, not trailing the window),
// then Worker (any mutation present), then Planner (mostly reads with
// enough samples), else General.
func InferRoleFromHistory(toolHistory []string) Role {
	if isReviewerPattern(toolHistory) {
		return RoleReviewer
	}
	for _, t := range toolHistory {
		if mutationTools[t] {
			return RoleWorker
		}
	}
	if len(toolHistory) >= 3 {
		reads := 0
		for _, t := range toolHistory {
			if readOnlyTools[t] {
				reads++
			}
		}
		if float64(reads)/float64(len(toolHistory)) >= 0.8 {
			return RolePlanner
		}
	}
	return RoleGeneral
}

// isReviewerPattern looks for the last mutation tool in the window followed
// by at least two reads, with the mutation not itself the final entry.
func isReviewerPattern(toolHistory []string) bool {
	lastMutation := -1
	for i, t := range toolHistory {
		if mutationTools[t] {
			lastMutation = i
		}
	}
	if lastMutation < 0 || lastMutation == len(toolHistory)-1 {
		return false
	}
	trailingReads := 0
	for _, t := range toolHistory[lastMutation+1:] {
		if readOnlyTools[t] {
			trailingReads++
		}
	}
	return trailingReads >= 2
}

var workerKeywords = []string{
	"implement", "fix", "edit", "write", "create", "build", "update",
	"add", "modify", "change", "refactor", "delete", "remove",
}

var reviewerKeywords = []string{
	"review", "test", "verify", "check", "validate", "ensure", "confirm",
	"audit", "inspect",
}

var plannerKeywords = []string{
	"explore", "search", "find", "research", "investigate", "understand",
	"analyze", "discover", "locate", "identify", "scan", "examine",
}

// InferRoleFromDescription classifies a subagent by keyword match against
// its task description, checking Worker keywords first, then Reviewer, then
// Planner — the precedence the original implementation actually applies,
// which differs from a naive alphabetical reading of the category names.
func InferRoleFromDescription(description string) Role {
	d := strings.ToLower(description)
	if containsAny(d, workerKeywords) {
		return RoleWorker
	}
	if containsAny(d, reviewerKeywords) {
		return RoleReviewer
	}
	if containsAny(d, plannerKeywords) {
		return RolePlanner
	}
	return RoleGeneral
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

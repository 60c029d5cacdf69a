package loopctl

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Decision is the outcome of evaluating a permission request.
type Decision string

const (
	Approve Decision = "approve"
	Deny    Decision = "deny"
	Defer   Decision = "defer"
)

// StepUpRule defers a tool's approval when its target fails a condition —
// currently only "outside_project_dir" is implemented.
type StepUpRule struct {
	Tool      string `toml:"tool"`
	Condition string `toml:"condition"`
}

// AutoApprove lists tools that always skip user approval.
type AutoApprove struct {
	Always []string `toml:"always"`
}

// ApprovalMemory controls remembering prior approvals for a TTL.
type ApprovalMemory struct {
	Enabled bool  `toml:"enabled"`
	TTLSecs int64 `toml:"ttl_secs"`
}

// Policy is the decoded form of a loop-dir's optional policy.toml.
type Policy struct {
	AutoApprove    AutoApprove    `toml:"auto_approve"`
	BashAllow      []string       `toml:"bash_allow"`
	BashDeny       []string       `toml:"bash_deny"`
	StepUp         []StepUpRule   `toml:"step_up"`
	ApprovalMemory ApprovalMemory `toml:"approval_memory"`
}

// DefaultPolicy matches the conservative defaults when no policy.toml is
// present: read-only tools auto-approve, everything else defers.
func DefaultPolicy() Policy {
	return Policy{
		AutoApprove: AutoApprove{Always: []string{"Read", "Glob", "Grep", "NotebookRead"}},
	}
}

func policyPath(loopDir string) string { return filepath.Join(loopDir, "policy.toml") }

// LoadPolicy decodes policy.toml, falling back to DefaultPolicy when the
// file is absent.
func LoadPolicy(loopDir string) (Policy, error) {
	path := policyPath(loopDir)
	var p Policy
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return Policy{}, err
	}
	return p, nil
}

// approvalRecord is one remembered (tool, target) -> approved-at entry.
type approvalRecord struct {
	Tool      string
	Target    string
	ApprovedAt time.Time
}

// ApprovalStore is an in-memory TTL cache of prior approvals, keyed per
// loop. It is not persisted across process restarts; approvals.json on
// disk is the audit trail, not the cache.
type ApprovalStore struct {
	records []approvalRecord
}

func NewApprovalStore() *ApprovalStore { return &ApprovalStore{} }

func (s *ApprovalStore) Remember(tool, target string, at time.Time) {
	s.records = append(s.records, approvalRecord{Tool: tool, Target: target, ApprovedAt: at})
}

func (s *ApprovalStore) wasApproved(tool, target string, now time.Time, ttl time.Duration) bool {
	for _, r := range s.records {
		if r.Tool == tool && r.Target == target && now.Sub(r.ApprovedAt) < ttl {
			return true
		}
	}
	return false
}

func matchGlob(pattern, s string) bool {
	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		return strings.Contains(s, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(s, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(s, pattern[:len(pattern)-1])
	default:
		return pattern == s
	}
}

// EvaluatePermission decides Approve/Deny/Defer for one incoming permission
// request, per Policy. projectDir and targetPath are canonicalized paths;
// an empty targetPath skips step-up checks.
func EvaluatePermission(p Policy, store *ApprovalStore, now time.Time, tool, command, projectDir, targetPath string) Decision {
	for _, t := range p.AutoApprove.Always {
		if t == tool {
			return Approve
		}
	}

	if tool == "Bash" {
		for _, pat := range p.BashDeny {
			if matchGlob(pat, command) {
				return Deny
			}
		}
		for _, pat := range p.BashAllow {
			if matchGlob(pat, command) {
				return Approve
			}
		}
	}

	for _, rule := range p.StepUp {
		if rule.Tool != tool {
			continue
		}
		if rule.Condition == "outside_project_dir" && targetPath != "" {
			if !isWithin(projectDir, targetPath) {
				return Defer
			}
		}
	}

	if p.ApprovalMemory.Enabled && store != nil {
		ttl := time.Duration(p.ApprovalMemory.TTLSecs) * time.Second
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		if store.wasApproved(tool, targetPath, now, ttl) {
			return Approve
		}
	}

	return Defer
}

func isWithin(base, target string) bool {
	base = filepath.Clean(base)
	target = filepath.Clean(target)
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

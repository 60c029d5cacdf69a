// Package health implements the hook-log health checker (the second half
// of C4): a periodic probe of the shared hooks.log file that warns and
// auto-truncates before Claude Code's own hook delivery starts failing on
// an oversized file.
package health

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rehoboam-dev/rehoboam/internal/collab"
)

const (
	defaultIntervalSecs      = 60
	defaultWarnBytes         = 1 * 1024 * 1024
	defaultTruncateBytes     = 2 * 1024 * 1024
	defaultTruncateKeepLines = 1000
)

// Checker periodically stats a hook-log file and warns, then truncates, as
// it grows past configured thresholds.
type Checker struct {
	Enabled           bool
	IntervalSecs      int64
	WarnBytes         int64
	TruncateBytes     int64
	TruncateKeepLines int
	Path              string
	Notifier          collab.Notifier

	lastCheck int64
	notified  bool
	warning   *string
}

// New builds a Checker at the documented default path and thresholds.
func New() *Checker {
	return &Checker{
		Enabled:           true,
		IntervalSecs:      defaultIntervalSecs,
		WarnBytes:         defaultWarnBytes,
		TruncateBytes:     defaultTruncateBytes,
		TruncateKeepLines: defaultTruncateKeepLines,
		Path:              HooksLogPath(),
	}
}

// HooksLogPath resolves the shared hook-log path: $HOME/.claude/hooks.log,
// falling back to a relative path if $HOME cannot be resolved.
func HooksLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".claude", "hooks.log")
	}
	return filepath.Join(home, ".claude", "hooks.log")
}

// ShouldRun reports whether IntervalSecs has elapsed since the last check.
// A disabled checker never runs: ShouldRun then always reports false.
func (c *Checker) ShouldRun(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	return now.Unix()-c.lastCheck >= c.IntervalSecs
}

// Warning returns the current health-warning string, or nil when healthy.
func (c *Checker) Warning() *string { return c.warning }

// Check stats Path and warns/truncates/clears as appropriate. It returns
// true if the warning state changed this call.
func (c *Checker) Check(now time.Time) (changed bool, err error) {
	c.lastCheck = now.Unix()

	info, statErr := os.Stat(c.Path)
	if statErr != nil {
		changed = c.warning != nil
		c.warning = nil
		c.notified = false
		return changed, nil
	}

	size := info.Size()
	switch {
	case size > c.TruncateBytes:
		if err := c.truncate(); err != nil {
			return false, err
		}
		changed = c.warning != nil
		c.warning = nil
		c.notified = false
	case size > c.WarnBytes:
		msg := fmt.Sprintf("hooks.log is %dMB — hooks may fail soon (auto-truncates at %dMB)",
			size/(1024*1024), c.TruncateBytes/(1024*1024))
		changed = c.warning == nil || *c.warning != msg
		c.warning = &msg
		if !c.notified {
			c.Notifier.Send("Rehoboam", msg, "")
			c.notified = true
		}
	default:
		changed = c.warning != nil
		c.warning = nil
		c.notified = false
	}
	return changed, nil
}

func (c *Checker) truncate() error {
	return TruncateFile(c.Path, c.TruncateKeepLines)
}

// TruncateFile rewrites path to keep only its last keepLines lines.
func TruncateFile(path string, keepLines int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	lines := make([]string, 0, keepLines)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > keepLines {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			out.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

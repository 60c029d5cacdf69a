package health

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func writeNLines(t *testing.T, path string, n int, fill string) {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(fill)
		sb.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}
}

func TestCheckNoFileClearsWarning(t *testing.T) {
	c := &Checker{Enabled: true, WarnBytes: 1024, TruncateBytes: 2048, TruncateKeepLines: 10, Path: filepath.Join(t.TempDir(), "missing.log")}
	if _, err := c.Check(time.Now()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if c.Warning() != nil {
		t.Fatalf("expected no warning for a missing file")
	}
}

func TestCheckSmallFileNoWarning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hooks.log")
	writeNLines(t, path, 10, "x")

	c := &Checker{Enabled: true, WarnBytes: 1024 * 1024, TruncateBytes: 2 * 1024 * 1024, TruncateKeepLines: 10, Path: path}
	if _, err := c.Check(time.Now()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if c.Warning() != nil {
		t.Fatalf("expected no warning for a small file")
	}
}

func TestCheckLargeFileAutoTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hooks.log")
	writeNLines(t, path, 1000, strings.Repeat("x", 3000))

	c := &Checker{Enabled: true, WarnBytes: 1024 * 1024, TruncateBytes: 2 * 1024 * 1024, TruncateKeepLines: 10, Path: path}
	if _, err := c.Check(time.Now()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if c.Warning() != nil {
		t.Fatalf("expected warning to be cleared after truncation")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading truncated file: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("len(lines) = %d, want 10", len(lines))
	}
}

func TestTruncateFileKeepsLastNLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.log")
	writeNLines(t, path, 20, "")

	if err := TruncateFile(path, 5); err != nil {
		t.Fatalf("TruncateFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("len(lines) = %d, want 5", len(lines))
	}
	if lines[0] != "15" {
		t.Fatalf("first kept line = %q, want the 16th original line (index 15)", lines[0])
	}
}

func TestShouldRunRespectsInterval(t *testing.T) {
	c := &Checker{Enabled: true, IntervalSecs: 60}
	now := time.Unix(1_700_000_000, 0)
	if !c.ShouldRun(now) {
		t.Fatalf("expected first ShouldRun to be true")
	}
	c.lastCheck = now.Unix()
	if c.ShouldRun(now.Add(30 * time.Second)) {
		t.Fatalf("expected ShouldRun to be false before the interval elapses")
	}
}

func TestShouldRunDisabled(t *testing.T) {
	c := &Checker{Enabled: false, IntervalSecs: 60}
	if c.ShouldRun(time.Now()) {
		t.Fatalf("a disabled checker should never run")
	}
}

package statusline

import (
	"strings"
	"testing"
)

func TestRenderPlainIncludesCounts(t *testing.T) {
	r := &Renderer{styled: false}
	line := r.Render(Counts{Working: 3, Attention: 2, Compacting: 1, Permission: 1, Waiting: 1})
	for _, want := range []string{"3 working", "2 attention", "1 compacting", "1 permission", "1 waiting"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected line to contain %q, got %q", want, line)
		}
	}
}

func TestRenderIncludesHealthWarning(t *testing.T) {
	r := &Renderer{styled: false}
	line := r.Render(Counts{HealthWarning: "hooks.log is 1MB"})
	if !strings.Contains(line, "hooks.log is 1MB") {
		t.Errorf("expected health warning in line, got %q", line)
	}
}

func TestRenderNoAttentionDetailWhenZero(t *testing.T) {
	r := &Renderer{styled: false}
	line := r.Render(Counts{Working: 1})
	if strings.Contains(line, "(") {
		t.Errorf("expected no parenthetical detail with zero attention, got %q", line)
	}
}

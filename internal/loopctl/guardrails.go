package loopctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rehoboam-dev/rehoboam/internal/config"
)

var lowerCaser = cases.Lower(language.Und)

// normalizeErrorPattern folds an error message to a stable, Unicode-aware
// lowercase key built from its first ten alphanumeric words — operator
// error text is not guaranteed to be ASCII, so a byte-wise ToLower would
// miscompare patterns that differ only by script-specific casing.
func normalizeErrorPattern(errText string) string {
	lower := lowerCaser.String(errText)
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
		if len(words) >= 10 {
			break
		}
	}
	flush()
	if len(words) > 10 {
		words = words[:10]
	}
	return strings.Join(words, " ")
}

// TrackErrorPattern increments the normalized error's occurrence count in
// state and, at exactly config.AutoGuardrailThreshold occurrences, appends
// an auto-guardrail entry to guardrails.md.
func TrackErrorPattern(loopDir string, s *State, errText string) error {
	key := normalizeErrorPattern(errText)
	if key == "" {
		return nil
	}
	s.ErrorCounts[key]++
	if s.ErrorCounts[key] != config.AutoGuardrailThreshold {
		return nil
	}

	entry := fmt.Sprintf(
		"\n## Auto-detected guardrail\n\n- Sign: Auto-detected recurring error\n- Trigger: %s\n- Instruction: Avoid the action that produced this error; ask before repeating it.\n- Added: Iteration %d\n",
		truncate(errText, 200), s.Iteration,
	)
	f, err := os.OpenFile(filepath.Join(loopDir, "guardrails.md"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(entry)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

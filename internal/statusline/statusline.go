// Package statusline renders a single-line footer summary of fleet state
// for the CLI — not the Kanban card view, which stays out of scope.
package statusline

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Tokyo Night palette, matching the original's footer color choices.
var (
	colorWorking    = lipgloss.Color("#9ece6a")
	colorPermission = lipgloss.Color("#f7768e")
	colorInput      = lipgloss.Color("#e0af68")
	colorNotify     = lipgloss.Color("#7aa2f7")
	colorWaiting    = lipgloss.Color("#565f89")
	colorCompacting = lipgloss.Color("#bb9af7")
)

// Counts mirrors FleetState.StatusCounts()'s [working, attention, compacting]
// shape, plus an attention breakdown for the footer's detail segment.
type Counts struct {
	Working        int
	Attention      int
	Compacting     int
	Permission     int
	Input          int
	Notification   int
	Waiting        int
	HealthWarning  string
}

// Renderer builds footer lines, degrading to plain text when stdout isn't
// a real terminal (piped output, CI logs).
type Renderer struct {
	styled bool
}

// NewRenderer detects terminal capability via golang.org/x/term; a non-TTY
// destination gets plain, unstyled text.
func NewRenderer(out io.Writer) *Renderer {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &Renderer{styled: styled}
}

func (r *Renderer) style(fg lipgloss.Color) lipgloss.Style {
	if !r.styled {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(fg).Bold(true)
}

// Render produces one line: counts by column plus an optional health
// warning, e.g. "● 3 working  ▲ 2 attention (1 permission, 1 waiting)  ○ 0 compacting".
func (r *Renderer) Render(c Counts) string {
	var parts []string

	parts = append(parts, r.style(colorWorking).Render(fmt.Sprintf("● %d working", c.Working)))

	attn := fmt.Sprintf("▲ %d attention", c.Attention)
	if c.Attention > 0 {
		var detail []string
		if c.Permission > 0 {
			detail = append(detail, r.style(colorPermission).Render(fmt.Sprintf("%d permission", c.Permission)))
		}
		if c.Input > 0 {
			detail = append(detail, r.style(colorInput).Render(fmt.Sprintf("%d input", c.Input)))
		}
		if c.Notification > 0 {
			detail = append(detail, r.style(colorNotify).Render(fmt.Sprintf("%d notification", c.Notification)))
		}
		if c.Waiting > 0 {
			detail = append(detail, r.style(colorWaiting).Render(fmt.Sprintf("%d waiting", c.Waiting)))
		}
		if len(detail) > 0 {
			attn += " (" + strings.Join(detail, ", ") + ")"
		}
	}
	parts = append(parts, attn)
	parts = append(parts, r.style(colorCompacting).Render(fmt.Sprintf("○ %d compacting", c.Compacting)))

	line := strings.Join(parts, "  ")
	if c.HealthWarning != "" {
		line += "  " + r.style(colorPermission).Render("! "+c.HealthWarning)
	}
	return line
}

// ColorProfile reports the detected terminal color capability, useful for
// the CLI to decide whether to pass --no-color downstream.
func ColorProfile() termenv.Profile {
	return termenv.ColorProfile()
}

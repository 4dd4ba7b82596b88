// Package console renders the foreground status output.
package console

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

// Colors defines the color scheme used for console output
type Colors struct {
	Subtle    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Special   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
}

var defaultColors = Colors{
	Subtle:    lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"},
	Highlight: lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"},
	Special:   lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"},
	Error:     lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF4040"},
}

// Style is the set of styles used by Printer.
type Style struct {
	Header   lipgloss.Style
	Cell     lipgloss.Style
	Border   lipgloss.Style
	Switched lipgloss.Style
	Skipped  lipgloss.Style
	Failed   lipgloss.Style
	Subtle   lipgloss.Style
}

// DefaultStyle returns the default style configuration
func DefaultStyle() Style {
	base := lipgloss.NewStyle().
		PaddingLeft(1).
		PaddingRight(1)

	return Style{
		Header:   base.Bold(true).Foreground(defaultColors.Highlight),
		Cell:     base,
		Border:   lipgloss.NewStyle().Foreground(defaultColors.Subtle),
		Switched: lipgloss.NewStyle().Foreground(defaultColors.Special),
		Skipped:  lipgloss.NewStyle().Foreground(defaultColors.Subtle),
		Failed:   lipgloss.NewStyle().Foreground(defaultColors.Error),
		Subtle:   lipgloss.NewStyle().Foreground(defaultColors.Subtle),
	}
}

// Printer writes human-readable progress for foreground runs.
type Printer struct {
	out   io.Writer
	style Style
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, style: DefaultStyle()}
}

// Candidates prints the candidate window table.
func (p *Printer) Candidates(windows []domain.WindowHandle) {
	fmt.Fprintln(p.out, p.RenderCandidates(windows))
}

// RenderCandidates renders windows as a table.
func (p *Printer) RenderCandidates(windows []domain.WindowHandle) string {
	if len(windows) == 0 {
		return p.style.Subtle.Render("No active windows detected.")
	}

	rows := make([][]string, 0, len(windows))
	for i, w := range windows {
		pid := "-"
		if w.PID > 0 {
			pid = strconv.Itoa(w.PID)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), w.Title, w.App, pid})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.style.Border).
		Headers("#", "TITLE", "APP", "PID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.style.Header
			}
			return p.style.Cell
		})

	return t.String()
}

// Switch prints one line per activation attempt.
func (p *Printer) Switch(title string, outcome domain.Outcome) {
	var line string
	switch outcome {
	case domain.OutcomeActivated:
		line = p.style.Switched.Render("Switched to: " + title)
	case domain.OutcomeSkipped:
		line = p.style.Skipped.Render("Skipped: " + title)
	default:
		line = p.style.Failed.Render("Failed to switch to: " + title)
	}
	fmt.Fprintln(p.out, line)
}

// Status prints a dimmed informational line.
func (p *Printer) Status(format string, args ...any) {
	fmt.Fprintln(p.out, p.style.Subtle.Render(fmt.Sprintf(format, args...)))
}

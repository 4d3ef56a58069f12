package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")).Bold(true)
	locStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#3b82f6"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	markerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
)

// ContextLines is how many lines around a label are shown
const ContextLines = 2

// Render writes d with a source excerpt for each label. src may be nil, in
// which case only the header and label lines are written.
func Render(w io.Writer, src *Source, d *Diagnostic) error {
	var b strings.Builder

	head := errorStyle.Render(d.Severity.String())
	if d.Severity == Warning {
		head = warningStyle.Render(d.Severity.String())
	}
	if d.Code != "" {
		head += warningStyle.Render("[" + d.Code + "]")
	}
	fmt.Fprintf(&b, "%s: %s\n", head, d.Message)

	for _, l := range d.Labels {
		fmt.Fprintf(&b, "  %s %s", mutedStyle.Render("-->"), locStyle.Render(l.Pos.String()))
		if l.Message != "" {
			fmt.Fprintf(&b, " %s", l.Message)
		}
		b.WriteString("\n")
		if src != nil && l.Pos.IsValid() {
			b.WriteString(excerpt(src, l.Pos))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderAll renders every diagnostic in order
func RenderAll(w io.Writer, src *Source, ds []*Diagnostic) error {
	for _, d := range ds {
		if err := Render(w, src, d); err != nil {
			return err
		}
	}
	return nil
}

// excerpt shows the lines around pos with a "> " marker on the line itself
// and a caret under the column.
func excerpt(src *Source, pos Pos) string {
	first := pos.Line - ContextLines
	if first < 1 {
		first = 1
	}
	last := pos.Line + ContextLines
	if last > src.LineCount() {
		last = src.LineCount()
	}

	var b strings.Builder
	for n := first; n <= last; n++ {
		prefix := "  "
		if n == pos.Line {
			prefix = markerStyle.Render("> ")
		}
		fmt.Fprintf(&b, "%s%s %s\n", prefix, mutedStyle.Render(fmt.Sprintf("%4d |", n)), src.Line(n))
		if n == pos.Line {
			fmt.Fprintf(&b, "         %s%s\n", strings.Repeat(" ", pos.Col-1), markerStyle.Render("^"))
		}
	}
	return b.String()
}

// Package ui renders compile progress for `weave compile --tui`.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FileStatus is the state of one template in the progress list
type FileStatus int

const (
	FilePending FileStatus = iota
	FileCompiled
	FileWarned
	FileFailed
)

// File is one row of the progress list
type File struct {
	Name      string
	Status    FileStatus
	Component string
	Warnings  int
	Error     string
}

// FinishedMsg reports that the template at Index is done
type FinishedMsg struct {
	Index     int
	Component string
	Warnings  int
	Err       error
}

// KeyMap defines keyboard shortcuts
type KeyMap struct {
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "abort"),
	),
}

// Model is the compile progress view
type Model struct {
	width    int
	files    []File
	finished int
	spinner  spinner.Model
	progress progress.Model
	quitting bool
}

// New creates a model listing files as pending
func New(files []string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	rows := make([]File, len(files))
	for i, f := range files {
		rows[i] = File{Name: f}
	}
	return Model{
		files:    rows,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 10
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case FinishedMsg:
		if msg.Index < 0 || msg.Index >= len(m.files) {
			return m, nil
		}
		f := &m.files[msg.Index]
		if f.Status == FilePending {
			m.finished++
		}
		f.Component = msg.Component
		f.Warnings = msg.Warnings
		switch {
		case msg.Err != nil:
			f.Status = FileFailed
			f.Error = msg.Err.Error()
		case msg.Warnings > 0:
			f.Status = FileWarned
		default:
			f.Status = FileCompiled
		}
		if m.Done() {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

// Done reports whether every file has finished
func (m Model) Done() bool {
	return m.finished == len(m.files)
}

// Aborted reports whether the user quit before every file finished
func (m Model) Aborted() bool {
	return m.quitting && !m.Done()
}

// Failed counts files that did not compile
func (m Model) Failed() int {
	n := 0
	for _, f := range m.files {
		if f.Status == FileFailed {
			n++
		}
	}
	return n
}

// View renders the progress list
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("🧵 Compiling %d templates", len(m.files))))
	b.WriteString("\n")

	for _, f := range m.files {
		b.WriteString(m.renderFile(f))
		b.WriteString("\n")
	}

	percent := 1.0
	if len(m.files) > 0 {
		percent = float64(m.finished) / float64(len(m.files))
	}
	b.WriteString("\n" + m.progress.ViewAs(percent) + "\n")

	switch {
	case m.Done() && m.Failed() > 0:
		b.WriteString(errorStyle.Render(fmt.Sprintf("\n❌ %d of %d templates failed", m.Failed(), len(m.files))))
	case m.Done():
		b.WriteString(successStyle.Render(fmt.Sprintf("\n✨ %d templates compiled", len(m.files))))
	default:
		b.WriteString(helpStyle.Render("\n" + DefaultKeyMap.Quit.Help().Key + " " + DefaultKeyMap.Quit.Help().Desc))
	}
	return baseStyle.Render(b.String())
}

func (m Model) renderFile(f File) string {
	switch f.Status {
	case FileCompiled:
		return successStyle.Render("✓ ") + f.Name + mutedStyle.Render(" → "+f.Component)
	case FileWarned:
		return warningStyle.Render("⚠ ") + f.Name + mutedStyle.Render(" → "+f.Component) +
			warningStyle.Render(fmt.Sprintf(" (%d warnings)", f.Warnings))
	case FileFailed:
		return errorStyle.Render("✗ ") + f.Name + "\n    " + mutedStyle.Render(f.Error)
	default:
		return m.spinner.View() + " " + mutedStyle.Render(f.Name)
	}
}

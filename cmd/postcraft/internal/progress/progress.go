// Package progress shows what the content team is doing while a post is
// generated: a bubbletea view with a spinner per member when stdout is a
// terminal, plain log lines otherwise.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/postcraft/cmd/postcraft/internal/format"
	"github.com/germanamz/postcraft/cmd/postcraft/internal/styles"
)

type status int

const (
	pending status = iota
	running
	done
	failed
)

// StartMsg marks a member as running.
type StartMsg struct{ Agent string }

// EndMsg marks a member as finished.
type EndMsg struct {
	Agent    string
	Duration time.Duration
	Err      error
}

// ToolMsg records a tool call made by a member.
type ToolMsg struct {
	Agent   string
	Tool    string
	IsError bool
}

// SynthesisMsg marks the start (Done false) or end of the final write-up.
type SynthesisMsg struct {
	Done     bool
	Duration time.Duration
}

// DoneMsg ends the program.
type DoneMsg struct{ Err error }

type step struct {
	name     string
	status   status
	tools    []string
	duration time.Duration
}

// Model is the bubbletea model for one run.
type Model struct {
	title     string
	spinner   spinner.Model
	steps     []step
	synthesis status
	synthDur  time.Duration
	cancel    func()
	finished  bool
	err       error
}

// New creates a Model listing members as pending. cancel is called when the
// user interrupts with ctrl+c.
func New(title string, members []string, cancel func()) Model {
	steps := make([]step, len(members))
	for i, m := range members {
		steps[i] = step{name: m}
	}

	return Model{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.SpinnerStyle)),
		steps:   steps,
		cancel:  cancel,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case StartMsg:
		m.step(msg.Agent).status = running

	case EndMsg:
		s := m.step(msg.Agent)
		s.duration = msg.Duration
		s.status = done
		if msg.Err != nil {
			s.status = failed
		}

	case ToolMsg:
		s := m.step(msg.Agent)
		name := msg.Tool
		if msg.IsError {
			name += " (failed)"
		}
		s.tools = append(s.tools, name)

	case SynthesisMsg:
		if msg.Done {
			m.synthesis = done
			m.synthDur = msg.Duration
		} else {
			m.synthesis = running
		}

	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// step returns the named step, appending it when the coordinator picked a
// member that was not listed up front.
func (m *Model) step(name string) *step {
	for i := range m.steps {
		if m.steps[i].name == name {
			return &m.steps[i]
		}
	}
	m.steps = append(m.steps, step{name: name})
	return &m.steps[len(m.steps)-1]
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n")

	for _, s := range m.steps {
		b.WriteString(m.line(s.status, s.name, s.duration))
		for i, t := range s.tools {
			branch := styles.TreeTee
			if i == len(s.tools)-1 {
				branch = styles.TreeCorner
			}
			fmt.Fprintf(&b, "    %s\n", styles.DimStyle.Render(branch+t))
		}
	}

	if m.synthesis != pending {
		b.WriteString(m.line(m.synthesis, "Compiling the final post", m.synthDur))
	}

	if m.finished && m.err != nil {
		b.WriteString(styles.ErrorStyle.Render(format.Truncate("✗ "+m.err.Error(), 100)))
		b.WriteString("\n")
	}

	return styles.PanelStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (m Model) line(st status, name string, d time.Duration) string {
	switch st {
	case running:
		return fmt.Sprintf(" %s %s\n", m.spinner.View(), styles.AgentStyle.Render(name))
	case done:
		return fmt.Sprintf(" %s %s %s\n", styles.SuccessStyle.Render("✓"), name, styles.DimStyle.Render(format.FmtDuration(d)))
	case failed:
		return fmt.Sprintf(" %s %s\n", styles.ErrorStyle.Render("✗"), name)
	default:
		return fmt.Sprintf(" %s %s\n", styles.DimStyle.Render("·"), styles.DimStyle.Render(name))
	}
}

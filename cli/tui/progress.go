package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/canisnap/types"
)

const barWidth = 30

// ProgressMsg carries one artifact progress event into ProgressModel.
type ProgressMsg types.Progress

// progressDoneMsg ends a progress program.
type progressDoneMsg struct{}

// ProgressModel renders live per-artifact transfer progress.
type ProgressModel struct {
	title    string
	order    []types.Artifact
	state    map[types.Artifact]types.Progress
	spinner  spinner.Model
	finished bool
}

// NewProgressModel creates a progress model with the given heading.
func NewProgressModel(title string) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = titleStyle
	return ProgressModel{
		title:   title,
		state:   make(map[types.Artifact]types.Progress),
		spinner: s,
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		p := types.Progress(msg)
		if _, seen := m.state[p.Artifact]; !seen {
			m.order = append(m.order, p.Artifact)
		}
		m.state[p.Artifact] = p
		return m, nil

	case progressDoneMsg:
		m.finished = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	var b strings.Builder
	if m.finished {
		b.WriteString(titleStyle.Render(m.title))
	} else {
		b.WriteString(m.spinner.View() + " " + titleStyle.Render(m.title))
	}
	b.WriteString("\n")

	for _, a := range m.order {
		p := m.state[a]
		b.WriteString(fmt.Sprintf("  %-18s %s %4d/%-4d %s\n",
			a.Filename(),
			renderBar(p.Done, p.Total, barWidth),
			p.Done, p.Total,
			valueStyle.Render(humanize.IBytes(p.Bytes))))
	}
	return b.String()
}

// renderBar draws a fixed-width bar for done out of total.
func renderBar(done, total, width int) string {
	filled := width
	if total > 0 {
		filled = min(width, done*width/total)
	}
	return tinted(accent, strings.Repeat("█", filled)) +
		tinted(dim, strings.Repeat("░", width-filled))
}

// Progress drives a ProgressModel from transfer callbacks.
type Progress struct {
	program *tea.Program
	done    chan struct{}
}

// StartProgress runs a progress display on out until Stop is called.
// It reads no input and installs no signal handlers, so interrupts reach
// the caller's context.
func StartProgress(title string, out io.Writer) *Progress {
	p := &Progress{
		program: tea.NewProgram(NewProgressModel(title),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
	return p
}

// Update forwards a transfer progress event. Safe for concurrent use.
func (p *Progress) Update(ev types.Progress) {
	p.program.Send(ProgressMsg(ev))
}

// Stop renders the final state and waits for the display to exit.
func (p *Progress) Stop() {
	p.program.Send(progressDoneMsg{})
	<-p.done
}

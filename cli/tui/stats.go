package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/canisnap/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsTransfer:
		content = m.renderStatsTransfer()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := helpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsTransfer() string {
	data, ok := m.data.(*reader.MetricsView)
	if !ok {
		return "Invalid data type for stats_transfer"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Transfer Metrics (%s)", data.Operation)))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Canister:"), valueStyle.Render(data.CanisterID)))
	if data.SnapshotID != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Snapshot:"), valueStyle.Render(data.SnapshotID)))
	}
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Backend:"), valueStyle.Render(data.Backend)))
	b.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Retry:"), valueStyle.Render(data.RetryPolicy)))

	moved := data.BytesRead
	if data.Operation == "upload" {
		moved = data.BytesWritten
	}

	boxes := []string{
		counter("Artifacts", fmt.Sprintf("%d", data.ArtifactsTransferred), accent),
		counter("Windows", fmt.Sprintf("%d", data.WindowsCompleted), accent),
		counter("Moved", humanize.IBytes(uint64(max(moved, 0))), good),
		counter("Retries", fmt.Sprintf("%d", data.Retries), warn),
		counter("Failures", fmt.Sprintf("%d", data.RemoteCallFailure), bad),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	if len(data.FailuresByKind) > 0 {
		kinds := make([]string, 0, len(data.FailuresByKind))
		for k := range data.FailuresByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		b.WriteString("\n\n")
		b.WriteString(titleStyle.Render("Failures by Kind"))
		b.WriteString("\n\n")
		for _, k := range kinds {
			b.WriteString(fmt.Sprintf("%s %s\n",
				labelStyle.Render(k+":"),
				tinted(bad, fmt.Sprintf("%d", data.FailuresByKind[k]))))
		}
	}

	return b.String()
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}

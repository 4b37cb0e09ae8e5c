package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/canisnap/cli/reader"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewInspectSnapshot:
		content = m.renderInspectSnapshot()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := helpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectSnapshot() string {
	data, ok := m.data.(*reader.SnapshotView)
	if !ok {
		return "Invalid data type for inspect_snapshot"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Snapshot Details"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Snapshot ID", data.SnapshotID},
		{"Folder", data.Folder},
		{"Source", data.Source},
		{"Version", fmt.Sprintf("%d", data.CanisterVersion)},
		{"Globals", fmt.Sprintf("%d", data.Globals)},
		{"Chunk Store", fmt.Sprintf("%d entries", data.ChunkStoreEntries)},
		{"Total Size", humanize.IBytes(data.TotalBytes)},
	}
	if data.TakenAt != nil {
		rows = append(rows, []string{"Taken At", data.TakenAt.Format("2006-01-02 15:04:05")})
	}
	if data.CertifiedData != "" {
		rows = append(rows, []string{"Certified", data.CertifiedData})
	}
	if data.GlobalTimer != nil {
		timer := "inactive"
		if data.GlobalTimer.Active {
			timer = fmt.Sprintf("active at %d", data.GlobalTimer.At)
		}
		rows = append(rows, []string{"Global Timer", timer})
	}
	if data.LowMemoryHook != nil {
		rows = append(rows, []string{"Low Mem Hook", *data.LowMemoryHook})
	}

	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render(row[0]+":"),
			valueStyle.Render(row[1])))
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Artifacts"))
	b.WriteString("\n\n")
	for _, a := range data.Artifacts {
		state := "absent"
		detail := ""
		if a.Present {
			state = "present"
			detail = fmt.Sprintf("%s  %s", humanize.IBytes(a.Size), shortHash(a.Hash))
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			labelStyle.Width(20).Render(a.Filename),
			tinted(stateColor(state), fmt.Sprintf("%-8s", state)),
			valueStyle.Render(detail)))
	}

	return panelStyle.Render(b.String())
}

// shortHash keeps the first 12 hex digits of a digest.
func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}

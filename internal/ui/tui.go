package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openhytale/launcher-cli/internal/events"
)

// stageLabels maps pipeline stages to display strings.
var stageLabels = map[events.Stage]string{
	events.StageResolving:    "Resolving latest version",
	events.StageDownloading:  "Downloading patches",
	events.StageApplying:     "Applying patches",
	events.StagePatching:     "Rewriting client endpoints",
	events.StageProvisioning: "Provisioning Java runtime",
	events.StageLaunching:    "Launching Hytale",
	events.StageRunning:      "Hytale is running",
	events.StageStopped:      "Hytale exited",
	events.StageCancelled:    "Cancelled",
	events.StageErrored:      "Failed",
}

// terminalStages end the TUI once reached.
var terminalStages = map[events.Stage]bool{
	events.StageRunning:   true,
	events.StageStopped:   true,
	events.StageCancelled: true,
	events.StageErrored:   true,
}

type eventMsg events.Event

type streamClosedMsg struct{}

// LaunchModel is the Bubble Tea model behind `launch --tui`: a spinner, a
// progress bar fed by hub events, and a rolling message log.
type LaunchModel struct {
	ch       <-chan events.Event
	cancel   func()
	onQuit   func()
	spinner  spinner.Model
	bar      progress.Model
	stage    events.Stage
	percent  int
	bytes    int64
	total    int64
	messages []string
	width    int
	done     bool
}

// NewLaunchModel builds the model. onQuit runs when the user quits before
// the flow completes (used to cancel the install context).
func NewLaunchModel(hub *events.Hub, onQuit func()) *LaunchModel {
	ch, cancel := hub.Subscribe()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return &LaunchModel{
		ch:      ch,
		cancel:  cancel,
		onQuit:  onQuit,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient()),
		stage:   events.StageResolving,
	}
}

func (m *LaunchModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Init implements tea.Model.
func (m *LaunchModel) Init() tea.Cmd {
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

// Update implements tea.Model.
func (m *LaunchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done && m.onQuit != nil {
				m.onQuit()
			}
			m.cancel()
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 8
		if w > 60 {
			w = 60
		}
		if w > 0 {
			m.bar.Width = w
		}
		return m, nil

	case eventMsg:
		m.stage = msg.Stage
		m.percent = msg.Percent
		m.bytes = msg.BytesDownloaded
		m.total = msg.BytesTotal
		if msg.Message != "" {
			m.messages = append(m.messages, msg.Message)
			if len(m.messages) > 6 {
				m.messages = m.messages[len(m.messages)-6:]
			}
		}
		if terminalStages[msg.Stage] {
			m.done = true
			m.cancel()
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case streamClosedMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *LaunchModel) View() string {
	if m.width <= 0 {
		return ""
	}

	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	label := stageLabels[m.stage]
	if label == "" {
		label = string(m.stage)
	}

	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Hytale Launcher") + "\n\n")
	b.WriteString("  " + m.spinner.View() + " " + label + "\n\n")
	b.WriteString("  " + m.bar.ViewAs(float64(m.percent)/100) + "\n")

	if m.total > 0 {
		b.WriteString("  " + dimStyle.Render(fmt.Sprintf("%s / %s", FormatBytes(m.bytes), FormatBytes(m.total))) + "\n")
	}

	if len(m.messages) > 0 {
		b.WriteString("\n")
		for _, msg := range m.messages {
			b.WriteString("  " + dimStyle.Render(msg) + "\n")
		}
	}

	b.WriteString("\n  " + dimStyle.Render("q to cancel") + "\n")
	return b.String()
}

// FinalStage reports where the flow ended, for post-TUI reporting.
func (m *LaunchModel) FinalStage() events.Stage { return m.stage }

// RunLaunchTUI drives the model until the flow reaches a terminal stage or
// the user quits.
func RunLaunchTUI(hub *events.Hub, onQuit func()) (events.Stage, error) {
	model := NewLaunchModel(hub, onQuit)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return model.FinalStage(), err
	}
	ResetTerminalAfterTUI()
	return model.FinalStage(), nil
}

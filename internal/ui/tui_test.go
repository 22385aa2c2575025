package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openhytale/launcher-cli/internal/events"
)

func TestLaunchModelTracksEvents(t *testing.T) {
	hub := events.NewHub()
	m := NewLaunchModel(hub, nil)

	next, _ := m.Update(eventMsg(events.Event{
		Stage:   events.StageDownloading,
		Percent: 42,
	}))
	m = next.(*LaunchModel)

	if m.stage != events.StageDownloading || m.percent != 42 {
		t.Errorf("stage = %s, percent = %d", m.stage, m.percent)
	}
	if m.done {
		t.Error("downloading is not a terminal stage")
	}
}

func TestLaunchModelQuitsOnTerminalStage(t *testing.T) {
	hub := events.NewHub()
	m := NewLaunchModel(hub, nil)

	next, cmd := m.Update(eventMsg(events.Event{Stage: events.StageStopped, Percent: 100}))
	m = next.(*LaunchModel)

	if !m.done {
		t.Error("stopped stage should end the TUI")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if m.FinalStage() != events.StageStopped {
		t.Errorf("FinalStage() = %s", m.FinalStage())
	}
}

func TestLaunchModelQuitKeyInvokesCancel(t *testing.T) {
	hub := events.NewHub()
	cancelled := false
	m := NewLaunchModel(hub, func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled {
		t.Error("quit before completion should invoke onQuit")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
}

func TestLaunchModelKeepsRollingMessageWindow(t *testing.T) {
	hub := events.NewHub()
	m := NewLaunchModel(hub, nil)

	for i := 0; i < 10; i++ {
		next, _ := m.Update(eventMsg(events.Event{
			Stage:   events.StageApplying,
			Message: "step",
		}))
		m = next.(*LaunchModel)
	}
	if len(m.messages) != 6 {
		t.Errorf("messages = %d, want capped at 6", len(m.messages))
	}
}

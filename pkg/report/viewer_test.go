package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func testSections(calls *int) []Section {
	return []Section{
		{Title: "Overview", Load: func(context.Context) (string, error) {
			*calls++
			return "overview body", nil
		}},
		{Title: "Words", Load: func(context.Context) (string, error) {
			return "", errors.New("resource_guard: passcode required")
		}},
	}
}

func runCmd(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()

	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, inner := range batch {
			msgs = append(msgs, runCmd(t, inner)...)
		}
		return msgs
	}
	return []tea.Msg{msg}
}

func loadedMsgs(msgs []tea.Msg) []sectionLoadedMsg {
	var loaded []sectionLoadedMsg
	for _, msg := range msgs {
		if typed, ok := msg.(sectionLoadedMsg); ok {
			loaded = append(loaded, typed)
		}
	}
	return loaded
}

func TestViewerLoadsActiveSectionOnce(t *testing.T) {
	calls := 0
	m := newViewerModel(context.Background(), "Trip", testSections(&calls))

	loaded := loadedMsgs(runCmd(t, m.loadActive()))
	if len(loaded) != 1 || loaded[0].body != "overview body" {
		t.Fatalf("loaded = %+v", loaded)
	}
	m.Update(loaded[0])

	if cmd := m.loadActive(); cmd != nil {
		t.Fatal("expected no reload for a loaded section")
	}
	if calls != 1 {
		t.Fatalf("load calls = %d, want 1", calls)
	}
	if !strings.Contains(m.viewport.View(), "overview body") {
		t.Fatalf("viewport missing body: %q", m.viewport.View())
	}
}

func TestViewerTabShowsSectionError(t *testing.T) {
	calls := 0
	m := newViewerModel(context.Background(), "Trip", testSections(&calls))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.active != 1 {
		t.Fatalf("active = %d, want 1", m.active)
	}

	for _, msg := range loadedMsgs(runCmd(t, cmd)) {
		m.Update(msg)
	}
	if !strings.Contains(m.View(), "section failed to load") {
		t.Fatalf("expected error status in view:\n%s", m.View())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.active != 0 {
		t.Fatalf("active = %d, want 0 after shift+tab", m.active)
	}
}

func TestViewerMouseWheelScrolls(t *testing.T) {
	calls := 0
	m := newViewerModel(context.Background(), "Trip", testSections(&calls))
	m.viewport.Width = 40
	m.viewport.Height = 5
	m.viewport.SetContent(strings.Repeat("line\n", 40))

	if !m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown}) {
		t.Fatal("expected wheel-down to be handled")
	}
	if m.viewport.YOffset != 3 {
		t.Fatalf("YOffset = %d, want 3", m.viewport.YOffset)
	}

	if m.handleViewportMouse(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}) {
		t.Fatal("expected left click to be ignored")
	}
}

func TestViewerQuitKeys(t *testing.T) {
	calls := 0
	m := newViewerModel(context.Background(), "Trip", testSections(&calls))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

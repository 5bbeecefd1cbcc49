package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SectionFunc produces the rendered body of one viewer tab.
type SectionFunc func(ctx context.Context) (string, error)

// Section is one tab of the interactive viewer.
type Section struct {
	Title string
	Load  SectionFunc
}

type sectionLoadedMsg struct {
	index int
	body  string
	err   error
}

type sectionState struct {
	loaded  bool
	loading bool
	body    string
	err     error
}

type viewerModel struct {
	ctx      context.Context
	title    string
	sections []Section
	states   []sectionState
	active   int

	theme    theme
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int
}

// RunViewer opens a scrollable full-screen report with one tab per section.
// Sections load on first view.
func RunViewer(ctx context.Context, title string, sections []Section) error {
	if len(sections) == 0 {
		return fmt.Errorf("viewer needs at least one section")
	}

	program := tea.NewProgram(newViewerModel(ctx, title, sections), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := program.Run()
	return err
}

func newViewerModel(ctx context.Context, title string, sections []Section) *viewerModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	return &viewerModel{
		ctx:      ctx,
		title:    title,
		sections: sections,
		states:   make([]sectionState, len(sections)),
		theme:    defaultTheme(),
		spinner:  spin,
		viewport: viewport.New(80, 20),
		width:    100,
		height:   30,
	}
}

func (m *viewerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadActive())
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resize()
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		case "tab", "right", "l":
			return m, m.switchTo((m.active + 1) % len(m.sections))
		case "shift+tab", "left", "h":
			return m, m.switchTo((m.active + len(m.sections) - 1) % len(m.sections))
		}
		m.handleViewportKey(typed)
		return m, nil
	case tea.MouseMsg:
		m.handleViewportMouse(typed)
		return m, nil
	case sectionLoadedMsg:
		state := &m.states[typed.index]
		state.loading = false
		state.loaded = true
		state.body = typed.body
		state.err = typed.err
		if typed.index == m.active {
			m.refresh()
		}
		return m, nil
	case spinner.TickMsg:
		if !m.anyLoading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	}

	return m, nil
}

func (m *viewerModel) View() string {
	header := m.theme.header.Width(m.width - 2).Render(m.title)
	line := m.theme.divider.Render(strings.Repeat("─", max(8, m.width-2)))

	tabs := make([]string, 0, len(m.sections))
	for i, section := range m.sections {
		style := m.theme.tab
		if i == m.active {
			style = m.theme.tabActive
		}
		tabs = append(tabs, style.Render(section.Title))
	}

	state := m.states[m.active]
	status := m.theme.status.Render("Tab switch section · PgUp/PgDn scroll · q quit")
	switch {
	case state.loading:
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s computing %s...", m.spinner.View(), strings.ToLower(m.sections[m.active].Title)))
	case state.err != nil:
		status = m.theme.statusErr.Render("section failed to load")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
	)
}

func (m *viewerModel) switchTo(index int) tea.Cmd {
	m.active = index
	m.viewport.GotoTop()
	m.refresh()
	return tea.Batch(m.spinner.Tick, m.loadActive())
}

func (m *viewerModel) loadActive() tea.Cmd {
	state := &m.states[m.active]
	if state.loaded || state.loading {
		return nil
	}
	state.loading = true

	index := m.active
	load := m.sections[index].Load
	ctx := m.ctx
	return func() tea.Msg {
		body, err := load(ctx)
		return sectionLoadedMsg{index: index, body: body, err: err}
	}
}

func (m *viewerModel) anyLoading() bool {
	for _, state := range m.states {
		if state.loading {
			return true
		}
	}
	return false
}

func (m *viewerModel) resize() {
	m.viewport.Width = max(40, m.width-6)
	m.viewport.Height = max(6, m.height-8)
}

func (m *viewerModel) refresh() {
	state := m.states[m.active]
	switch {
	case state.err != nil:
		m.viewport.SetContent(m.theme.statusErr.Render(state.err.Error()))
	case state.loaded:
		m.viewport.SetContent(state.body)
	default:
		m.viewport.SetContent(m.theme.muted.Render("loading..."))
	}
}

func (m *viewerModel) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b":
		m.viewport.PageUp()
	case "pgdown", "ctrl+f", " ":
		m.viewport.PageDown()
	case "up", "k":
		m.viewport.ScrollUp(1)
	case "down", "j":
		m.viewport.ScrollDown(1)
	case "home", "g":
		m.viewport.GotoTop()
	case "end", "G":
		m.viewport.GotoBottom()
	default:
		return false
	}
	return true
}

func (m *viewerModel) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(3)
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(3)
	default:
		return false
	}
	return true
}

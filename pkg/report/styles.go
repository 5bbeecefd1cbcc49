package report

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for report sections.
type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	section    lipgloss.Style
	label      lipgloss.Style
	value      lipgloss.Style
	muted      lipgloss.Style
	tableHead  lipgloss.Style
	tableCell  lipgloss.Style
	tableEdge  lipgloss.Style
	tab        lipgloss.Style
	tabActive  lipgloss.Style
	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusErr  lipgloss.Style
	viewport   lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("24")),
		headerMeta: lipgloss.NewStyle().
			Foreground(lipgloss.Color("153")),
		divider: lipgloss.NewStyle().
			Foreground(lipgloss.Color("31")),
		section: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("44")).
			Padding(0, 1).
			MarginTop(1),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")),
		value: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		tableHead: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Padding(0, 1),
		tableCell: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		tableEdge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("31")),
		tab: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("214")).
			Padding(0, 1),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true),
		statusBusy: lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Bold(true),
		statusErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("31")).
			Padding(0, 1),
	}
}

package tui

import (
	"github.com/charmbracelet/lipgloss"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("45"))

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")).
			Bold(true).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))

	statusStyles = map[v1.Status]lipgloss.Style{
		v1.StatusTodo:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		v1.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
		v1.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		v1.StatusBlocked:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}

	priorityStyles = map[v1.Priority]lipgloss.Style{
		v1.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		v1.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		v1.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
	}
)

func renderStatus(s v1.Status) string {
	st, ok := statusStyles[s]
	if !ok {
		st = dimStyle
	}
	return st.Render(StatusSymbol(s) + " " + StatusLabel(s))
}

func renderPriority(p v1.Priority) string {
	st, ok := priorityStyles[p]
	if !ok {
		st = dimStyle
	}
	return st.Render(PriorityLabel(p))
}

// Package tui renders the task dashboard in the terminal.
//
// The Model only draws Controller state and turns keys into Controller
// actions; every action runs as a tea.Cmd so the event loop never blocks on
// the network. Live reloads arrive from outside via Program.Send(Refresh()).
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fyrsmithlabs/taskdeck/internal/dashboard"
	"github.com/fyrsmithlabs/taskdeck/internal/session"
	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
	titleWidth      = 40
)

type mode int

const (
	modeList mode = iota
	modePrompt
	modeConfirmDelete
)

// filters is the cycle order of the filter key; "" shows everything.
var filters = append([]v1.Status{""}, v1.Statuses...)

// Sessions is the part of the session store the dashboard needs.
type Sessions interface {
	Current() (session.Session, bool)
	Logout() error
}

// Model is the BubbleTea dashboard model.
type Model struct {
	ctrl     *dashboard.Controller
	sessions Sessions
	now      func() time.Time
	timeout  time.Duration

	mode    mode
	cursor  int
	info    string
	input   textinput.Model
	bar     progress.Model
	history []float64

	quitting  bool
	loggedOut bool
}

// Option configures a Model.
type Option func(*Model)

// WithClock replaces time.Now for due dates and stats.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithTimeout bounds each dashboard action. Zero, the default, leaves
// actions unbounded until the controller is closed.
func WithTimeout(d time.Duration) Option {
	return func(m *Model) { m.timeout = d }
}

// New creates a dashboard model.
func New(ctrl *dashboard.Controller, sessions Sessions, opts ...Option) Model {
	in := textinput.New()
	in.Placeholder = "Describe a task to break down"
	in.CharLimit = 500
	in.Width = 50

	m := Model{
		ctrl:     ctrl,
		sessions: sessions,
		now:      time.Now,
		input:    in,
		bar: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(40),
		),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Message types
type loadedMsg struct{ err error }
type actionMsg struct {
	info string
	err  error
}
type generatedMsg struct {
	created int
	err     error
}
type loggedOutMsg struct{ err error }
type refreshMsg struct{}

// NavigateMsg moves the program to another route. Navigating to the login
// route ends the dashboard.
type NavigateMsg struct{ Route session.Route }

// Refresh is the message to send after the task list was reloaded outside
// the model, e.g. by the live update watcher.
func Refresh() tea.Msg { return refreshMsg{} }

// Navigator returns a session.Navigator that forwards routes to send,
// usually a tea.Program's Send.
func Navigator(send func(tea.Msg)) session.Navigator {
	return session.NavigatorFunc(func(r session.Route) {
		send(NavigateMsg{Route: r})
	})
}

// LoggedOut reports whether the dashboard ended because the user signed out.
func (m Model) LoggedOut() bool { return m.loggedOut }

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	ctrl := m.ctrl
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := actionContext(timeout)
		defer cancel()
		return loadedMsg{err: ctrl.Load(ctx)}
	}
}

func (m Model) changeStatus(t v1.Task) tea.Cmd {
	ctrl := m.ctrl
	timeout := m.timeout
	next := t.Status.Next()
	return func() tea.Msg {
		ctx, cancel := actionContext(timeout)
		defer cancel()
		if err := ctrl.ChangeStatus(ctx, t.ID, next); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{info: fmt.Sprintf("%q is now %s", t.Title, StatusLabel(next))}
	}
}

func (m Model) remove(t v1.Task) tea.Cmd {
	ctrl := m.ctrl
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := actionContext(timeout)
		defer cancel()
		if err := ctrl.Delete(ctx, t.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{info: fmt.Sprintf("Deleted %q", t.Title)}
	}
}

func (m Model) generate(prompt string) tea.Cmd {
	ctrl := m.ctrl
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := actionContext(timeout)
		defer cancel()
		created, err := ctrl.Generate(ctx, prompt)
		return generatedMsg{created: len(created), err: err}
	}
}

func actionContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

func (m Model) logout() tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		return loggedOutMsg{err: sessions.Logout()}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case modePrompt:
			return m.updatePrompt(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)

	case tea.WindowSizeMsg:
		m.input.Width = max(20, msg.Width-20)
		return m, nil

	case loadedMsg:
		if errors.Is(msg.err, dashboard.ErrStale) {
			return m, nil
		}
		m.recordStats()
		return m, nil

	case refreshMsg:
		m.recordStats()
		return m, nil

	case actionMsg:
		m.info = msg.info
		m.clampCursor()
		m.recordStats()
		return m, nil

	case generatedMsg:
		if msg.err == nil {
			m.info = fmt.Sprintf("Created %d tasks", msg.created)
		}
		m.recordStats()
		return m, nil

	case loggedOutMsg, NavigateMsg:
		if nav, ok := msg.(NavigateMsg); ok && nav.Route != session.RouteLogin {
			return m, nil
		}
		m.loggedOut = true
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.ctrl.Visible()
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "r":
		m.info = ""
		return m, m.load()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(visible)-1 {
			m.cursor++
		}
	case "f", "tab":
		m.ctrl.SetFilter(nextFilter(m.ctrl.Filter()))
		m.cursor = 0
	case "s", "enter":
		if t, ok := m.selected(visible); ok {
			return m, m.changeStatus(t)
		}
	case "d", "delete":
		if _, ok := m.selected(visible); ok {
			m.mode = modeConfirmDelete
		}
	case "g":
		m.mode = modePrompt
		m.info = ""
		m.input.Reset()
		cmd := m.input.Focus()
		return m, cmd
	case "x", "esc":
		m.ctrl.ClearBanner()
		m.info = ""
	case "L":
		return m, m.logout()
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeList
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		prompt := m.input.Value()
		m.mode = modeList
		m.input.Blur()
		return m, m.generate(prompt)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = modeList
	if msg.String() != "y" {
		return m, nil
	}
	if t, ok := m.selected(m.ctrl.Visible()); ok {
		return m, m.remove(t)
	}
	return m, nil
}

func (m Model) selected(visible []v1.Task) (v1.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(visible) {
		return v1.Task{}, false
	}
	return visible[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.Visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) recordStats() {
	m.clampCursor()
	if !m.ctrl.Loaded() {
		return
	}
	m.history = appendToHistory(m.history, float64(m.ctrl.Stats(m.now()).Open()))
}

func nextFilter(cur v1.Status) v1.Status {
	for i, f := range filters {
		if f == cur {
			return filters[(i+1)%len(filters)]
		}
	}
	return ""
}

// appendToHistory adds a value to history, keeping the last historySize points
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[len(history)-historySize:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	user := "signed out"
	if s, ok := m.sessions.Current(); ok {
		user = s.Name
	}
	b.WriteString(headerStyle.Render(" taskdeck ") + " " + dimStyle.Render(user) + "\n")

	if banner := m.ctrl.Banner(); banner != "" {
		b.WriteString("\n" + bannerStyle.Render(banner) + "\n")
	} else if m.info != "" {
		b.WriteString("\n" + infoStyle.Render(m.info) + "\n")
	}

	b.WriteString(m.renderFilters())
	b.WriteString(m.renderTasks())
	b.WriteString(m.renderStats())

	switch m.mode {
	case modePrompt:
		b.WriteString(sectionStyle.Render("┃ Generate Tasks") + "\n")
		b.WriteString(m.input.View() + "\n")
	case modeConfirmDelete:
		if t, ok := m.selected(m.ctrl.Visible()); ok {
			b.WriteString("\n" + bannerStyle.Render(fmt.Sprintf("Delete %q? (y/n)", t.Title)) + "\n")
		}
	}

	b.WriteString(m.renderFooter())
	return containerStyle.Render(b.String())
}

func (m Model) renderFilters() string {
	cur := m.ctrl.Filter()
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		label := StatusLabel(f)
		if f == cur {
			parts = append(parts, selectedStyle.Render(" "+label+" "))
		} else {
			parts = append(parts, dimStyle.Render(" "+label+" "))
		}
	}
	return sectionStyle.Render("┃ Tasks") + "  " + strings.Join(parts, "") + "\n"
}

func (m Model) renderTasks() string {
	if m.ctrl.Loading() && !m.ctrl.Loaded() {
		return dimStyle.Render("  Loading tasks...") + "\n"
	}
	visible := m.ctrl.Visible()
	if len(visible) == 0 {
		return dimStyle.Render("  No tasks") + "\n"
	}

	now := m.now()
	var b strings.Builder
	for i, t := range visible {
		title := fmt.Sprintf("%-*s", titleWidth, Truncate(t.Title, titleWidth))
		if i == m.cursor {
			title = selectedStyle.Render(title)
		} else {
			title = valueStyle.Render(title)
		}
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
			title,
			renderStatus(t.Status),
			renderPriority(t.Priority),
			dimStyle.Render(FormatDue(t, now)),
		)
	}
	return b.String()
}

func (m Model) renderStats() string {
	if !m.ctrl.Loaded() {
		return ""
	}
	st := m.ctrl.Stats(m.now())

	var b strings.Builder
	b.WriteString(sectionStyle.Render("┃ Progress") + "\n")
	fmt.Fprintf(&b, "  %s %s  %s %s\n",
		labelStyle.Render("Done:"),
		valueStyle.Render(fmt.Sprintf("%d/%d", st.ByStatus[v1.StatusCompleted], st.Total)),
		labelStyle.Render("Overdue:"),
		valueStyle.Render(fmt.Sprintf("%d", st.Overdue)),
	)
	b.WriteString("  " + m.bar.ViewAs(st.Completion()) + " " + FormatPercentage(st.Completion()) + "\n")
	b.WriteString("  " + labelStyle.Render("Open tasks") + "\n")
	b.WriteString(createSparkline(m.history) + "\n")
	if m.ctrl.Generating() {
		b.WriteString(dimStyle.Render("  Generating tasks...") + "\n")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	keys := []struct{ key, desc string }{
		{"↑/↓", "move"},
		{"s", "status"},
		{"d", "delete"},
		{"f", "filter"},
		{"g", "generate"},
		{"r", "reload"},
		{"L", "logout"},
		{"q", "quit"},
	}
	if m.mode == modePrompt {
		keys = keys[:0]
		keys = append(keys,
			struct{ key, desc string }{"enter", "generate"},
			struct{ key, desc string }{"esc", "cancel"},
		)
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+k.desc)
	}
	return footerStyle.Render(strings.Join(parts, "  "))
}

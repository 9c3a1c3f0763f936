package tui

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskdeck/internal/apitest"
	"github.com/fyrsmithlabs/taskdeck/internal/client"
	"github.com/fyrsmithlabs/taskdeck/internal/dashboard"
	"github.com/fyrsmithlabs/taskdeck/internal/session"
	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeSessions struct {
	name    string
	logouts int
}

func (f *fakeSessions) Current() (session.Session, bool) {
	if f.name == "" {
		return session.Session{}, false
	}
	return session.Session{UserID: 1, Name: f.name}, true
}

func (f *fakeSessions) Logout() error {
	f.logouts++
	f.name = ""
	return nil
}

type fixture struct {
	srv      *apitest.Server
	user     v1.User
	ctrl     *dashboard.Controller
	sessions *fakeSessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	user, tok := srv.AddUser("Ada", "ada@example.com", "pw1234")
	api, err := client.New(srv.APIURL(), client.TokenFunc(func() (string, bool) { return tok, true }))
	require.NoError(t, err)
	ctrl := dashboard.New(api, dashboard.WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(ctrl.Close)
	return &fixture{srv: srv, user: user, ctrl: ctrl, sessions: &fakeSessions{name: "Ada"}}
}

func (f *fixture) model() Model {
	return New(f.ctrl, f.sessions, WithClock(func() time.Time { return fixedNow }))
}

// press sends a key and returns the updated model.
func press(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func loaded(t *testing.T, f *fixture) Model {
	t.Helper()
	m := f.model()
	return run(t, m, m.Init())
}

func TestNew(t *testing.T) {
	f := newFixture(t)
	m := f.model()
	assert.Equal(t, modeList, m.mode)
	assert.False(t, m.quitting)
	assert.False(t, m.LoggedOut())
	assert.NotNil(t, m.Init())
}

func TestModel_Init_LoadsTasks(t *testing.T) {
	f := newFixture(t)
	f.srv.AddTask(f.user.ID, v1.Task{Title: "Write report", DueDate: "2024-05-04T12:00:00.000Z"})
	f.srv.AddTask(f.user.ID, v1.Task{Title: "Ship it", Status: v1.StatusCompleted})

	m := loaded(t, f)

	require.Len(t, f.ctrl.Tasks(), 2)
	assert.Equal(t, []float64{1}, m.history)
	view := m.View()
	assert.Contains(t, view, "Write report")
	assert.Contains(t, view, "Ship it")
	assert.Contains(t, view, "due in 3d")
	assert.Contains(t, view, "1/2")
	assert.Contains(t, view, "50%")
	assert.Contains(t, view, "Ada")
}

func TestModel_View_EmptyAndBanner(t *testing.T) {
	f := newFixture(t)
	m := loaded(t, f)
	assert.Contains(t, m.View(), "No tasks")

	f.srv.FailNext(http.MethodGet, "/api/tasks", http.StatusInternalServerError, `{"error":"db down"}`)
	m, cmd := press(t, m, "r")
	m = run(t, m, cmd)
	assert.Contains(t, m.View(), dashboard.BannerLoadFailed)
	assert.NotContains(t, m.View(), "db down")

	m, _ = press(t, m, "x")
	assert.NotContains(t, m.View(), dashboard.BannerLoadFailed)
}

func TestModel_Update_QuitKey(t *testing.T) {
	f := newFixture(t)
	m, cmd := press(t, f.model(), "q")
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestModel_Update_CursorAndFilter(t *testing.T) {
	f := newFixture(t)
	f.srv.AddTask(f.user.ID, v1.Task{Title: "a"})
	f.srv.AddTask(f.user.ID, v1.Task{Title: "b", Status: v1.StatusBlocked})
	f.srv.AddTask(f.user.ID, v1.Task{Title: "c"})
	m := loaded(t, f)

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "j")
	m, _ = press(t, m, "j")
	assert.Equal(t, 2, m.cursor, "cursor stops at the last row")
	m, _ = press(t, m, "up")
	assert.Equal(t, 1, m.cursor)

	tests := []v1.Status{v1.StatusTodo, v1.StatusInProgress, v1.StatusCompleted, v1.StatusBlocked, ""}
	for _, want := range tests {
		m, _ = press(t, m, "f")
		assert.Equal(t, want, f.ctrl.Filter())
		assert.Equal(t, 0, m.cursor)
	}

	m, _ = press(t, m, "f")
	m, _ = press(t, m, "f")
	m, _ = press(t, m, "f")
	m, _ = press(t, m, "f")
	require.Equal(t, v1.StatusBlocked, f.ctrl.Filter())
	visible := f.ctrl.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "b", visible[0].Title)
}

func TestModel_Update_ChangeStatus(t *testing.T) {
	f := newFixture(t)
	task := f.srv.AddTask(f.user.ID, v1.Task{Title: "Write report"})
	m := loaded(t, f)

	m, cmd := press(t, m, "s")
	m = run(t, m, cmd)

	assert.Equal(t, v1.StatusInProgress, f.ctrl.Tasks()[0].Status)
	assert.Equal(t, v1.StatusInProgress, f.srv.Tasks()[0].Status)
	assert.Equal(t, task.ID, f.srv.Tasks()[0].ID)
	assert.Contains(t, m.View(), `"Write report" is now In Progress`)
}

func TestModel_Update_ChangeStatusFailure(t *testing.T) {
	f := newFixture(t)
	task := f.srv.AddTask(f.user.ID, v1.Task{Title: "Write report"})
	m := loaded(t, f)

	f.srv.FailNext(http.MethodPut, "/api/tasks/"+strconv.FormatInt(task.ID, 10), http.StatusInternalServerError, "")
	m, cmd := press(t, m, "s")
	m = run(t, m, cmd)

	assert.Equal(t, v1.StatusTodo, f.ctrl.Tasks()[0].Status)
	assert.Contains(t, m.View(), dashboard.BannerStatusFailed)
}

func TestModel_Update_DeleteConfirm(t *testing.T) {
	f := newFixture(t)
	f.srv.AddTask(f.user.ID, v1.Task{Title: "keep"})
	f.srv.AddTask(f.user.ID, v1.Task{Title: "drop"})
	m := loaded(t, f)
	m, _ = press(t, m, "j")

	m, cmd := press(t, m, "d")
	assert.Nil(t, cmd)
	assert.Equal(t, modeConfirmDelete, m.mode)
	assert.Contains(t, m.View(), `Delete "drop"? (y/n)`)

	m, cmd = press(t, m, "n")
	assert.Nil(t, cmd)
	assert.Equal(t, modeList, m.mode)
	assert.Len(t, f.srv.Tasks(), 2)

	m, _ = press(t, m, "d")
	m, cmd = press(t, m, "y")
	m = run(t, m, cmd)

	require.Len(t, f.srv.Tasks(), 1)
	assert.Equal(t, "keep", f.ctrl.Tasks()[0].Title)
	assert.Equal(t, 0, m.cursor, "cursor clamps to the remaining rows")
}

func TestModel_Update_DeleteOnEmptyList(t *testing.T) {
	f := newFixture(t)
	m := loaded(t, f)
	m, cmd := press(t, m, "d")
	assert.Nil(t, cmd)
	assert.Equal(t, modeList, m.mode)
}

func TestModel_Update_Generate(t *testing.T) {
	f := newFixture(t)
	m := loaded(t, f)

	m, _ = press(t, m, "g")
	require.Equal(t, modePrompt, m.mode)
	for _, r := range "the release" {
		m, _ = press(t, m, string(r))
	}
	assert.Equal(t, "the release", m.input.Value())
	assert.Contains(t, m.View(), "Generate Tasks")

	m, cmd := press(t, m, "enter")
	assert.Equal(t, modeList, m.mode)
	m = run(t, m, cmd)

	assert.Len(t, f.srv.Tasks(), 3)
	assert.Len(t, f.ctrl.Tasks(), 3)
	assert.Contains(t, m.View(), "Created 3 tasks")
}

func TestModel_Update_GenerateBlankPrompt(t *testing.T) {
	f := newFixture(t)
	m := loaded(t, f)
	before := f.srv.RequestCount()

	m, _ = press(t, m, "g")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)

	assert.Equal(t, before, f.srv.RequestCount())
	assert.Contains(t, m.View(), dashboard.BannerEmptyPrompt)
}

func TestModel_Update_PromptEscape(t *testing.T) {
	f := newFixture(t)
	m := loaded(t, f)
	m, _ = press(t, m, "g")
	m, _ = press(t, m, "q")
	assert.False(t, m.quitting, "q is text while prompting")
	m, cmd := press(t, m, "esc")
	assert.Nil(t, cmd)
	assert.Equal(t, modeList, m.mode)
}

func TestModel_Update_Logout(t *testing.T) {
	f := newFixture(t)
	m := loaded(t, f)

	m, cmd := press(t, m, "L")
	require.NotNil(t, cmd)
	updated, quit := m.Update(cmd())
	m = updated.(Model)

	assert.Equal(t, 1, f.sessions.logouts)
	assert.True(t, m.LoggedOut())
	assert.True(t, m.quitting)
	require.NotNil(t, quit)
	assert.IsType(t, tea.QuitMsg{}, quit())
}

func TestModel_Update_Navigate(t *testing.T) {
	f := newFixture(t)
	m := f.model()

	updated, cmd := m.Update(NavigateMsg{Route: session.RouteDashboard})
	assert.Nil(t, cmd)
	assert.False(t, updated.(Model).quitting)

	updated, cmd = m.Update(NavigateMsg{Route: session.RouteLogin})
	assert.True(t, updated.(Model).LoggedOut())
	assert.NotNil(t, cmd)
}

func TestNavigator(t *testing.T) {
	var got []tea.Msg
	nav := Navigator(func(msg tea.Msg) { got = append(got, msg) })
	nav.Navigate(session.RouteLogin)
	assert.Equal(t, []tea.Msg{NavigateMsg{Route: session.RouteLogin}}, got)
}

func TestModel_Update_Refresh(t *testing.T) {
	f := newFixture(t)
	m := loaded(t, f)

	f.srv.AddTask(f.user.ID, v1.Task{Title: "pushed"})
	require.NoError(t, f.ctrl.Load(t.Context()))
	updated, cmd := m.Update(Refresh())
	m = updated.(Model)

	assert.Nil(t, cmd)
	assert.Equal(t, []float64{0, 1}, m.history)
	assert.Contains(t, m.View(), "pushed")
}

func TestModel_Update_StaleLoadIgnored(t *testing.T) {
	f := newFixture(t)
	m := loaded(t, f)
	updated, _ := m.Update(loadedMsg{err: dashboard.ErrStale})
	assert.Len(t, updated.(Model).history, 1)
}

func TestModel_Update_WindowSize(t *testing.T) {
	f := newFixture(t)
	updated, _ := f.model().Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 100, updated.(Model).input.Width)
}

func TestAppendToHistory(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, float64(5), h[0])
	assert.Equal(t, float64(historySize+4), h[len(h)-1])
}

func TestCreateSparkline(t *testing.T) {
	assert.Contains(t, createSparkline(nil), "no data")

	chart := createSparkline([]float64{1, 3, 2})
	assert.NotEmpty(t, strings.TrimSpace(chart))
	assert.Contains(t, chart, "█", "pushed values are drawn")
}

func TestActionContext(t *testing.T) {
	tests := []struct {
		name        string
		timeout     time.Duration
		hasDeadline bool
	}{
		{"unbounded by default", 0, false},
		{"configured timeout", time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := actionContext(tt.timeout)
			defer cancel()
			_, ok := ctx.Deadline()
			assert.Equal(t, tt.hasDeadline, ok)
		})
	}
}

func TestNew_WithTimeout(t *testing.T) {
	f := newFixture(t)
	assert.Zero(t, f.model().timeout)

	m := New(f.ctrl, f.sessions, WithTimeout(5*time.Second))
	assert.Equal(t, 5*time.Second, m.timeout)
}

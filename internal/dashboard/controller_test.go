package dashboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/taskdeck/internal/apitest"
	"github.com/fyrsmithlabs/taskdeck/internal/client"
	"github.com/fyrsmithlabs/taskdeck/internal/logging"
	"github.com/fyrsmithlabs/taskdeck/internal/session"
	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// fakeAPI records calls. The nth ListTasks call waits on holds[n] when
// present and returns what it receives.
type fakeAPI struct {
	mu       sync.Mutex
	tasks    []v1.Task
	listErr  error
	writeErr error
	suggest  v1.AISuggestion
	created  []v1.TaskInput
	updates  []v1.TaskPatch
	deletes  []int64
	holds    []chan []v1.Task
	lists    int
}

func (f *fakeAPI) ListTasks(ctx context.Context) ([]v1.Task, error) {
	f.mu.Lock()
	tasks, err := append([]v1.Task(nil), f.tasks...), f.listErr
	var hold chan []v1.Task
	if f.lists < len(f.holds) {
		hold = f.holds[f.lists]
	}
	f.lists++
	f.mu.Unlock()
	if hold != nil {
		select {
		case tasks = <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return tasks, err
}

func (f *fakeAPI) CreateTask(_ context.Context, in v1.TaskInput) (v1.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return v1.Task{}, f.writeErr
	}
	f.created = append(f.created, in)
	t := v1.Task{ID: int64(100 + len(f.created)), Title: in.Title, Status: in.Status, DueDate: in.DueDate}
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, id int64, p v1.TaskPatch) (v1.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return v1.Task{}, f.writeErr
	}
	f.updates = append(f.updates, p)
	return v1.Task{ID: id, Status: *p.Status}, nil
}

func (f *fakeAPI) DeleteTask(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeAPI) RequestAISuggestion(context.Context, string) (v1.AISuggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return v1.AISuggestion{}, f.writeErr
	}
	return f.suggest, nil
}

func sampleTasks() []v1.Task {
	return []v1.Task{
		{ID: 1, Title: "a", Status: v1.StatusTodo},
		{ID: 2, Title: "b", Status: v1.StatusCompleted},
		{ID: 3, Title: "c", Status: v1.StatusTodo},
	}
}

func TestLoad(t *testing.T) {
	api := &fakeAPI{tasks: sampleTasks()}
	notified := 0
	c := New(api, WithNotify(func() { notified++ }))

	require.NoError(t, c.Load(context.Background()))
	assert.Len(t, c.Tasks(), 3)
	assert.True(t, c.Loaded())
	assert.False(t, c.Loading())
	assert.Empty(t, c.Banner())
	assert.Positive(t, notified)
}

func TestLoadFailureSetsBannerAndSuccessClearsIt(t *testing.T) {
	log := logging.NewTestLogger()
	api := &fakeAPI{listErr: errors.New("connection refused")}
	c := New(api, WithLogger(log.Logger))

	err := c.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, BannerLoadFailed, c.Banner())
	log.AssertLogged(t, zapcore.WarnLevel, "failed to load tasks")

	api.mu.Lock()
	api.listErr = nil
	api.tasks = sampleTasks()
	api.mu.Unlock()
	require.NoError(t, c.Load(context.Background()))
	assert.Empty(t, c.Banner())
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	older, newer := make(chan []v1.Task), make(chan []v1.Task)
	api := &fakeAPI{holds: []chan []v1.Task{older, newer}}
	c := New(api)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- c.Load(ctx) }()
	require.Eventually(t, c.Loading, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- c.Load(ctx) }()
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.lists == 2
	}, time.Second, time.Millisecond)

	// The newer load answers first, then the older one.
	newer <- []v1.Task{{ID: 2, Title: "new"}}
	require.NoError(t, <-second)
	older <- []v1.Task{{ID: 1, Title: "old"}}
	assert.ErrorIs(t, <-first, ErrStale)

	tasks := c.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "new", tasks[0].Title)
	assert.False(t, c.Loading())
}

func TestChangeStatus(t *testing.T) {
	api := &fakeAPI{tasks: sampleTasks()}
	c := New(api)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.NoError(t, c.ChangeStatus(ctx, 1, v1.StatusInProgress))
	assert.Equal(t, v1.StatusInProgress, c.Tasks()[0].Status)
	require.Len(t, api.updates, 1)
	assert.Equal(t, v1.StatusPatch(v1.StatusInProgress), api.updates[0])

	api.writeErr = &v1.RequestFailedError{Op: "update_task", Message: "nope"}
	err := c.ChangeStatus(ctx, 3, v1.StatusBlocked)
	assert.True(t, v1.IsRequestFailed(err))
	assert.Equal(t, v1.StatusTodo, c.Tasks()[2].Status, "unchanged on failure")
	assert.Equal(t, BannerStatusFailed, c.Banner())
}

func TestDelete(t *testing.T) {
	api := &fakeAPI{tasks: sampleTasks()}
	c := New(api)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.NoError(t, c.Delete(ctx, 2))
	assert.Len(t, c.Tasks(), 2)

	api.writeErr = errors.New("boom")
	assert.Error(t, c.Delete(ctx, 1))
	assert.Len(t, c.Tasks(), 2)
	assert.Equal(t, BannerDeleteFailed, c.Banner())
}

func TestFilter(t *testing.T) {
	c := New(&fakeAPI{tasks: sampleTasks()})
	require.NoError(t, c.Load(context.Background()))

	assert.Len(t, c.Visible(), 3)
	c.SetFilter(v1.StatusTodo)
	assert.Equal(t, v1.StatusTodo, c.Filter())
	assert.Len(t, c.Visible(), 2)
	c.SetFilter(v1.StatusBlocked)
	assert.Empty(t, c.Visible())
	c.SetFilter("")
	assert.Len(t, c.Visible(), 3)
}

func TestGenerate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{suggest: v1.AISuggestion{
		Title:        "Launch",
		Subtasks:     []string{"Plan", "Build", " "},
		Priority:     "High",
		TimeEstimate: "3 days",
	}}
	c := New(api, WithClock(func() time.Time { return now }))

	created, err := c.Generate(context.Background(), "  launch the thing ")
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, c.Tasks(), 2, "reloaded after creation")
	assert.False(t, c.Generating())

	require.Len(t, api.created, 2)
	for _, in := range api.created {
		assert.Equal(t, "Part of: Launch", in.Description)
		assert.Equal(t, v1.StatusTodo, in.Status)
		assert.Equal(t, v1.PriorityHigh, in.Priority)
		assert.Equal(t, "2024-05-04T12:00:00.000Z", in.DueDate)
	}
}

func TestGenerateBlankPrompt(t *testing.T) {
	api := &fakeAPI{}
	c := New(api)

	_, err := c.Generate(context.Background(), "   ")
	assert.True(t, v1.IsValidation(err))
	assert.Equal(t, BannerEmptyPrompt, c.Banner())
	assert.Empty(t, api.created)
}

func TestGenerateFailure(t *testing.T) {
	api := &fakeAPI{writeErr: errors.New("ai down")}
	c := New(api)

	_, err := c.Generate(context.Background(), "plan")
	assert.Error(t, err)
	assert.Equal(t, BannerGenerateFailed, c.Banner())
}

func TestSubtaskInputsDropsUnknownPriority(t *testing.T) {
	inputs := SubtaskInputs(v1.AISuggestion{Title: "T", Subtasks: []string{"x"}, Priority: "urgent"}, time.Unix(0, 0))
	require.Len(t, inputs, 1)
	assert.Empty(t, inputs[0].Priority)
	assert.Equal(t, "1970-01-02T00:00:00.000Z", inputs[0].DueDate, "default estimate is one day")
}

func TestCloseCancelsInFlightLoad(t *testing.T) {
	api := &fakeAPI{holds: []chan []v1.Task{make(chan []v1.Task)}}
	c := New(api)

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	require.Eventually(t, c.Loading, time.Second, time.Millisecond)

	c.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("load not cancelled")
	}
	assert.ErrorIs(t, c.Load(context.Background()), ErrClosed)
	assert.ErrorIs(t, c.Delete(context.Background(), 1), ErrClosed)
	assert.Empty(t, c.Banner())
}

func TestStats(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	tasks := []v1.Task{
		{Status: v1.StatusTodo, DueDate: "2024-05-01T00:00:00.000Z"},
		{Status: v1.StatusCompleted, DueDate: "2024-05-01T00:00:00.000Z"},
		{Status: v1.StatusInProgress, DueDate: "2024-06-01T00:00:00.000Z"},
		{Status: v1.StatusCompleted},
	}
	s := ComputeStats(tasks, now)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.ByStatus[v1.StatusCompleted])
	assert.Equal(t, 0, s.ByStatus[v1.StatusBlocked])
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 2, s.Open())
	assert.InDelta(t, 0.5, s.Completion(), 1e-9)
	assert.Zero(t, ComputeStats(nil, now).Completion())
}

func TestEndToEnd(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()

	storage, err := session.NewFileStorage(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	store := session.New(storage, nil)
	api, err := client.New(srv.APIURL(), store)
	require.NoError(t, err)
	store.SetAuthenticator(api)

	_, err = api.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	sess, err := store.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	// Persisted: a fresh store over the same file is signed in.
	again := session.New(storage, nil)
	require.NoError(t, again.Load())
	assert.True(t, again.IsAuthenticated())

	srv.AddTask(sess.UserID, v1.Task{Title: "first"})
	srv.AddTask(sess.UserID, v1.Task{Title: "second"})

	c := New(api)
	defer c.Close()
	require.NoError(t, c.Load(ctx))
	tasks := c.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "first", tasks[0].Title)
	assert.Equal(t, "second", tasks[1].Title)

	require.NoError(t, c.ChangeStatus(ctx, tasks[1].ID, v1.StatusCompleted))
	assert.Equal(t, v1.StatusCompleted, c.Tasks()[1].Status)
	assert.Equal(t, v1.StatusCompleted, srv.Tasks()[1].Status)

	require.NoError(t, store.Logout())
	before := srv.RequestCount()
	err = c.Load(ctx)
	assert.ErrorIs(t, err, v1.ErrNotAuthenticated)
	assert.Equal(t, before, srv.RequestCount())
}

func TestGenerateAgainstServer(t *testing.T) {
	srv := apitest.New(t)
	_, tok := srv.AddUser("Ada", "ada@example.com", "pw1234")
	api, err := client.New(srv.APIURL(), client.TokenFunc(func() (string, bool) { return tok, true }))
	require.NoError(t, err)

	c := New(api)
	created, err := c.Generate(context.Background(), "the release")
	require.NoError(t, err)
	assert.Len(t, created, 3)
	assert.Len(t, c.Tasks(), 3)
	for _, task := range c.Tasks() {
		assert.Equal(t, "Part of: the release", task.Description)
		assert.Equal(t, v1.PriorityMedium, task.Priority)
	}
}

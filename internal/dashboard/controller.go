// Package dashboard is the non-visual half of the task dashboard: the task
// list, its filter, the error banner, and the actions a user can take on
// them. The TUI and the CLI drive a Controller; neither talks to the API
// client directly.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/taskdeck/internal/logging"
	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// Banners shown to the user. Causes are logged, never shown.
const (
	BannerLoadFailed     = "Failed to load tasks"
	BannerStatusFailed   = "Failed to update task status"
	BannerDeleteFailed   = "Failed to delete task"
	BannerGenerateFailed = "Failed to generate tasks"
	BannerEmptyPrompt    = "Please enter a task description"
)

var (
	// ErrStale is returned by Load when a newer Load was issued before the
	// response arrived. The response is discarded.
	ErrStale = errors.New("dashboard: stale response discarded")

	// ErrClosed is returned by every action after Close.
	ErrClosed = errors.New("dashboard: closed")
)

// API is the slice of the client the dashboard uses.
type API interface {
	ListTasks(ctx context.Context) ([]v1.Task, error)
	CreateTask(ctx context.Context, in v1.TaskInput) (v1.Task, error)
	UpdateTask(ctx context.Context, id int64, patch v1.TaskPatch) (v1.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	RequestAISuggestion(ctx context.Context, description string) (v1.AISuggestion, error)
}

// Controller holds dashboard state. It is safe for concurrent use; the live
// reconciler and the user may trigger loads at the same time.
type Controller struct {
	api    API
	logger *logging.Logger
	now    func() time.Time
	notify func()

	base   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	tasks      []v1.Task
	filter     v1.Status
	banner     string
	loading    bool
	generating bool
	loaded     bool
	gen        uint64
	closed     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock replaces time.Now for due date computation.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithNotify registers fn to run after every state change, outside the lock.
func WithNotify(fn func()) Option {
	return func(c *Controller) { c.notify = fn }
}

// New creates a Controller over api.
func New(api API, opts ...Option) *Controller {
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		api:    api,
		logger: logging.Nop(),
		now:    time.Now,
		notify: func() {},
		base:   base,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("dashboard")
	return c
}

// scope returns a context cancelled when either ctx or the controller ends.
func (c *Controller) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Load replaces the task list with a fresh fetch. Only the most recently
// issued Load may apply its result; older ones return ErrStale.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.gen++
	gen := c.gen
	c.loading = true
	c.mu.Unlock()
	c.notify()

	ctx, cancel := c.scope(ctx)
	defer cancel()
	tasks, err := c.api.ListTasks(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug(ctx, "discarding stale task list", zap.Uint64("generation", gen))
		return ErrStale
	}
	c.loading = false
	if err != nil {
		c.banner = BannerLoadFailed
		c.mu.Unlock()
		c.logger.Warn(ctx, "failed to load tasks", zap.Error(err))
		c.notify()
		return err
	}
	c.tasks = tasks
	c.loaded = true
	c.banner = ""
	c.mu.Unlock()

	c.logger.Debug(ctx, "tasks loaded", zap.Int("count", len(tasks)))
	c.notify()
	return nil
}

// ChangeStatus sends a status-only update. The local task changes only once
// the server accepts it.
func (c *Controller) ChangeStatus(ctx context.Context, id int64, status v1.Status) error {
	if c.isClosed() {
		return ErrClosed
	}
	ctx, cancel := c.scope(ctx)
	defer cancel()

	if _, err := c.api.UpdateTask(ctx, id, v1.StatusPatch(status)); err != nil {
		c.fail(ctx, BannerStatusFailed, "failed to update task status", err, zap.Int64("task_id", id))
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			c.tasks[i].Status = status
			break
		}
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// Delete removes a task. The local list changes only once the server
// accepts it.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	if c.isClosed() {
		return ErrClosed
	}
	ctx, cancel := c.scope(ctx)
	defer cancel()

	if err := c.api.DeleteTask(ctx, id); err != nil {
		c.fail(ctx, BannerDeleteFailed, "failed to delete task", err, zap.Int64("task_id", id))
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	kept := c.tasks[:0:0]
	for _, t := range c.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	c.tasks = kept
	c.mu.Unlock()
	c.notify()
	return nil
}

// Generate asks the AI for a breakdown of prompt and creates one task per
// subtask, all due after the suggested estimate. The list is reloaded once
// every task is created.
func (c *Controller) Generate(ctx context.Context, prompt string) ([]v1.Task, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		c.setBanner(BannerEmptyPrompt)
		return nil, &v1.ValidationError{Field: "prompt", Message: "task description is required"}
	}

	ctx, cancel := c.scope(ctx)
	defer cancel()
	c.setGenerating(true)
	defer c.setGenerating(false)

	suggestion, err := c.api.RequestAISuggestion(ctx, prompt)
	if err != nil {
		c.fail(ctx, BannerGenerateFailed, "failed to get AI suggestion", err)
		return nil, err
	}

	inputs := SubtaskInputs(suggestion, c.now())
	created := make([]v1.Task, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range inputs {
		g.Go(func() error {
			t, err := c.api.CreateTask(gctx, in)
			if err != nil {
				return err
			}
			created[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.fail(ctx, BannerGenerateFailed, "failed to create generated tasks", err)
		return nil, err
	}

	c.logger.Info(ctx, "generated tasks",
		zap.Int("count", len(created)), zap.String("estimate", suggestion.TimeEstimate))
	if err := c.Load(ctx); err != nil && !errors.Is(err, ErrStale) {
		return created, err
	}
	return created, nil
}

// SubtaskInputs turns a suggestion into task inputs due at now plus the
// parsed estimate.
func SubtaskInputs(s v1.AISuggestion, now time.Time) []v1.TaskInput {
	due := v1.FormatInstant(now.Add(ParseEstimate(s.TimeEstimate)))
	priority := v1.Priority(strings.ToLower(strings.TrimSpace(s.Priority)))
	if !priority.Valid() {
		priority = ""
	}

	inputs := make([]v1.TaskInput, 0, len(s.Subtasks))
	for _, sub := range s.Subtasks {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}
		inputs = append(inputs, v1.TaskInput{
			Title:       sub,
			Description: "Part of: " + s.Title,
			Status:      v1.StatusTodo,
			Priority:    priority,
			DueDate:     due,
		})
	}
	return inputs
}

func (c *Controller) fail(ctx context.Context, banner, msg string, err error, fields ...zap.Field) {
	if errors.Is(err, context.Canceled) && c.isClosed() {
		return
	}
	c.logger.Warn(ctx, msg, append(fields, zap.Error(err))...)
	c.setBanner(banner)
}

func (c *Controller) setBanner(b string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.banner = b
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) setGenerating(v bool) {
	c.mu.Lock()
	c.generating = v
	c.mu.Unlock()
	c.notify()
}

// SetFilter shows only tasks with status. The empty status shows all.
func (c *Controller) SetFilter(status v1.Status) {
	c.mu.Lock()
	c.filter = status
	c.mu.Unlock()
	c.notify()
}

// Filter returns the current filter; empty means all.
func (c *Controller) Filter() v1.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Tasks returns a copy of the full list in server order.
func (c *Controller) Tasks() []v1.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]v1.Task(nil), c.tasks...)
}

// Visible returns the tasks that pass the filter.
func (c *Controller) Visible() []v1.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]v1.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if c.filter == "" || t.Status == c.filter {
			out = append(out, t)
		}
	}
	return out
}

// Banner returns the current error banner, or "".
func (c *Controller) Banner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

// ClearBanner dismisses the banner.
func (c *Controller) ClearBanner() {
	c.setBanner("")
}

// Loading reports whether a Load is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Loaded reports whether any Load has succeeded.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Generating reports whether Generate is in flight.
func (c *Controller) Generating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generating
}

// Close cancels in-flight requests. Later responses are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

package client

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// Operation names, used for spans, metrics and error Op fields.
const (
	OpListTasks    = "list_tasks"
	OpGetTask      = "get_task"
	OpCreateTask   = "create_task"
	OpUpdateTask   = "update_task"
	OpDeleteTask   = "delete_task"
	OpAISuggestion = "ai_suggestion"
	OpLogin        = "login"
	OpRegister     = "register"
)

// Messages used when a failed response carries no "error" field.
const (
	msgListFailed     = "Failed to fetch tasks"
	msgGetFailed      = "Failed to fetch task"
	msgCreateFailed   = "Failed to create task"
	msgUpdateFailed   = "Failed to update task"
	msgDeleteFailed   = "Failed to delete task"
	msgSuggestFailed  = "Failed to get AI suggestions"
	msgLoginFailed    = "Login failed"
	msgRegisterFailed = "Registration failed"
)

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}

// ListTasks returns every task visible to the session user, in server order.
func (c *Client) ListTasks(ctx context.Context) ([]v1.Task, error) {
	var out v1.TaskListResponse
	err := c.call(ctx, request{
		op:       OpListTasks,
		method:   http.MethodGet,
		path:     "/tasks",
		fallback: msgListFailed,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Tasks == nil {
		out.Tasks = []v1.Task{}
	}
	return out.Tasks, nil
}

// GetTask returns one task.
func (c *Client) GetTask(ctx context.Context, id int64) (v1.Task, error) {
	var out v1.TaskResponse
	err := c.call(ctx, request{
		op:       OpGetTask,
		method:   http.MethodGet,
		path:     taskPath(id),
		fallback: msgGetFailed,
	}, &out)
	return out.Task, err
}

// CreateTask creates a task. Title and due date are required; the due date
// is sent as a full UTC instant.
func (c *Client) CreateTask(ctx context.Context, in v1.TaskInput) (v1.Task, error) {
	if _, ok := c.tokens.Token(); !ok {
		return v1.Task{}, v1.ErrNotAuthenticated
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return v1.Task{}, &v1.ValidationError{Field: "title", Message: "title is required"}
	}
	due, err := v1.NormalizeDueDate(in.DueDate)
	if err != nil {
		return v1.Task{}, err
	}
	in.DueDate = due
	if in.Status != "" && !in.Status.Valid() {
		return v1.Task{}, &v1.ValidationError{Field: "status", Message: "unknown status " + strconv.Quote(string(in.Status))}
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return v1.Task{}, &v1.ValidationError{Field: "priority", Message: "unknown priority " + strconv.Quote(string(in.Priority))}
	}

	var out v1.TaskResponse
	err = c.call(ctx, request{
		op:       OpCreateTask,
		method:   http.MethodPost,
		path:     "/tasks",
		body:     in,
		fallback: msgCreateFailed,
	}, &out)
	return out.Task, err
}

// UpdateTask applies a partial update. Only non-nil patch fields are sent.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch v1.TaskPatch) (v1.Task, error) {
	if _, ok := c.tokens.Token(); !ok {
		return v1.Task{}, v1.ErrNotAuthenticated
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return v1.Task{}, &v1.ValidationError{Field: "title", Message: "title cannot be empty"}
	}
	if patch.DueDate != nil {
		due, err := v1.NormalizeDueDate(*patch.DueDate)
		if err != nil {
			return v1.Task{}, err
		}
		patch.DueDate = &due
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return v1.Task{}, &v1.ValidationError{Field: "status", Message: "unknown status " + strconv.Quote(string(*patch.Status))}
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return v1.Task{}, &v1.ValidationError{Field: "priority", Message: "unknown priority " + strconv.Quote(string(*patch.Priority))}
	}

	var out v1.TaskResponse
	err := c.call(ctx, request{
		op:       OpUpdateTask,
		method:   http.MethodPut,
		path:     taskPath(id),
		body:     patch,
		fallback: msgUpdateFailed,
	}, &out)
	return out.Task, err
}

// DeleteTask deletes a task. The response body is ignored.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.call(ctx, request{
		op:       OpDeleteTask,
		method:   http.MethodDelete,
		path:     taskPath(id),
		fallback: msgDeleteFailed,
	}, nil)
}

// RequestAISuggestion asks the backend to break a description into
// subtasks. The suggestions field is a JSON string holding the suggestion;
// a plain object is accepted too.
func (c *Client) RequestAISuggestion(ctx context.Context, description string) (v1.AISuggestion, error) {
	if _, ok := c.tokens.Token(); !ok {
		return v1.AISuggestion{}, v1.ErrNotAuthenticated
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return v1.AISuggestion{}, &v1.ValidationError{Field: "task_description", Message: "task description is required"}
	}

	var envelope v1.SuggestResponse
	err := c.call(ctx, request{
		op:       OpAISuggestion,
		method:   http.MethodPost,
		path:     "/ai/suggest",
		body:     v1.SuggestRequest{TaskDescription: description},
		fallback: msgSuggestFailed,
	}, &envelope)
	if err != nil {
		return v1.AISuggestion{}, err
	}

	s, encoded, err := envelope.Decode()
	if err != nil {
		c.logger.Warn(ctx, "undecodable suggestion payload", zap.Error(err))
		return v1.AISuggestion{}, v1.NewRequestFailedError(OpAISuggestion, msgSuggestFailed)
	}
	if !encoded {
		c.logger.Debug(ctx, "suggestion arrived as a JSON object")
	}
	return s, nil
}

// Package v1 defines the wire types and errors shared by the taskdeck client
// packages and the backend REST API.
package v1

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusCompleted, StatusBlocked}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Next returns the status following s in display order, wrapping around.
func (s Status) Next() Status {
	for i, st := range Statuses {
		if st == s {
			return Statuses[(i+1)%len(Statuses)]
		}
	}
	return StatusTodo
}

// ParseStatus parses a case-insensitive status name. "in-progress" and
// "in progress" are accepted for in_progress.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	st := Status(norm)
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

// Priority is the importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority parses a case-insensitive priority name.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", s)}
	}
	return p, nil
}

// User is an account as returned by the auth endpoints.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Task is a server-owned task record. Status and Priority are decoded as-is,
// so values unknown to this client are preserved.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	DueDate     string    `json:"due_date,omitempty"`
	AssignedTo  *int64    `json:"assigned_to,omitempty"`
	CreatedBy   int64     `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Due parses DueDate. The second result is false when the task has no due
// date or it is not an instant.
func (t Task) Due() (time.Time, bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	due, err := ParseDueDate(t.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return due, true
}

// TaskInput is the body of a create request. Empty optional fields are
// omitted so the server applies its defaults.
type TaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	AssignedTo  *int64   `json:"assigned_to,omitempty"`
}

// TaskPatch is the body of an update request. Nil fields are not sent.
type TaskPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	DueDate     *string   `json:"due_date,omitempty"`
	AssignedTo  *int64    `json:"assigned_to,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil && p.AssignedTo == nil
}

// StatusPatch returns a patch that only changes the status.
func StatusPatch(s Status) TaskPatch {
	return TaskPatch{Status: &s}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the success body of login and register.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// SuggestRequest is the body of POST /ai/suggest.
type SuggestRequest struct {
	TaskDescription string `json:"task_description"`
}

// TaskListResponse wraps GET /tasks.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// TaskResponse wraps single-task responses.
type TaskResponse struct {
	Task Task `json:"task"`
}

// ErrorResponse is the error body the backend sends with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PushMessage is a frame on the live update socket.
type PushMessage struct {
	Type string `json:"type"`
}

// PushTypeTaskUpdate signals that task data changed.
const PushTypeTaskUpdate = "task_update"

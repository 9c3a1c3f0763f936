package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// AddTask stores a task owned by userID and returns it with its id.
// Missing status and priority get the server defaults.
func (s *Server) AddTask(userID int64, t v1.Task) v1.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(userID, t)
}

func (s *Server) insertLocked(userID int64, t v1.Task) v1.Task {
	now := time.Now().UTC()
	t.ID = s.nextTaskID
	s.nextTaskID++
	t.CreatedBy = userID
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == "" {
		t.Status = v1.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = v1.PriorityMedium
	}
	s.tasks = append(s.tasks, t)
	return t
}

// Tasks returns a snapshot of every stored task.
func (s *Server) Tasks() []v1.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]v1.Task(nil), s.tasks...)
}

func visibleTo(t v1.Task, userID int64) bool {
	return t.CreatedBy == userID || (t.AssignedTo != nil && *t.AssignedTo == userID)
}

// audience lists the users who should hear about a change to t.
func audience(t v1.Task) []int64 {
	ids := []int64{t.CreatedBy}
	if t.AssignedTo != nil && *t.AssignedTo != t.CreatedBy {
		ids = append(ids, *t.AssignedTo)
	}
	return ids
}

func (s *Server) findLocked(id, userID int64) int {
	for i, t := range s.tasks {
		if t.ID == id && visibleTo(t, userID) {
			return i
		}
	}
	return -1
}

func taskID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil
}

// validInstant mirrors the real backend, which decodes due_date into a
// timestamp and rejects anything that is not a full RFC 3339 instant.
func validInstant(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}

func (s *Server) handleListTasks(c echo.Context) error {
	userID := currentUser(c)
	s.mu.Lock()
	out := make([]v1.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if visibleTo(t, userID) {
			out = append(out, t)
		}
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, v1.TaskListResponse{Tasks: out})
}

func (s *Server) handleGetTask(c echo.Context) error {
	id, ok := taskID(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Invalid task ID")
	}
	s.mu.Lock()
	i := s.findLocked(id, currentUser(c))
	var t v1.Task
	if i >= 0 {
		t = s.tasks[i]
	}
	s.mu.Unlock()
	if i < 0 {
		return jsonError(c, http.StatusNotFound, "Task not found")
	}
	return c.JSON(http.StatusOK, v1.TaskResponse{Task: t})
}

func (s *Server) handleCreateTask(c echo.Context) error {
	var in v1.TaskInput
	if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil || !validInstant(in.DueDate) {
		return jsonError(c, http.StatusBadRequest, "Invalid input data")
	}
	if strings.TrimSpace(in.Title) == "" {
		return jsonError(c, http.StatusBadRequest, "Title is required")
	}

	userID := currentUser(c)
	s.mu.Lock()
	t := s.insertLocked(userID, v1.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		AssignedTo:  in.AssignedTo,
	})
	s.mu.Unlock()

	s.notify(audience(t)...)
	return c.JSON(http.StatusCreated, v1.TaskResponse{Task: t})
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	id, ok := taskID(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Invalid task ID")
	}
	var p v1.TaskPatch
	if err := json.NewDecoder(c.Request().Body).Decode(&p); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid input data")
	}
	if p.DueDate != nil && !validInstant(*p.DueDate) {
		return jsonError(c, http.StatusBadRequest, "Invalid input data")
	}

	s.mu.Lock()
	i := s.findLocked(id, currentUser(c))
	if i < 0 {
		s.mu.Unlock()
		return jsonError(c, http.StatusNotFound, "Task not found")
	}
	t := &s.tasks[i]
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.AssignedTo != nil {
		assignee := *p.AssignedTo
		t.AssignedTo = &assignee
	}
	t.UpdatedAt = time.Now().UTC()
	updated := *t
	s.mu.Unlock()

	s.notify(audience(updated)...)
	return c.JSON(http.StatusOK, v1.TaskResponse{Task: updated})
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	id, ok := taskID(c)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Invalid task ID")
	}

	s.mu.Lock()
	i := s.findLocked(id, currentUser(c))
	if i < 0 {
		s.mu.Unlock()
		return jsonError(c, http.StatusNotFound, "Task not found")
	}
	removed := s.tasks[i]
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.mu.Unlock()

	s.notify(audience(removed)...)
	return c.JSON(http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

// DefaultSuggestion answers with a three-step plan, double encoded the way
// the service does it.
func DefaultSuggestion(description string) (int, any) {
	inner, _ := json.Marshal(v1.AISuggestion{
		Title: description,
		Subtasks: []string{
			fmt.Sprintf("Research %s", description),
			fmt.Sprintf("Implement %s", description),
			fmt.Sprintf("Review %s", description),
		},
		Priority:     "Medium",
		TimeEstimate: "2 days",
	})
	return http.StatusOK, map[string]string{"suggestions": string(inner)}
}

func (s *Server) handleSuggest(c echo.Context) error {
	var in v1.SuggestRequest
	if err := c.Bind(&in); err != nil || strings.TrimSpace(in.TaskDescription) == "" {
		return jsonError(c, http.StatusBadRequest, "Task description is required")
	}
	s.mu.Lock()
	fn := s.suggest
	s.mu.Unlock()

	status, body := fn(in.TaskDescription)
	return c.JSON(status, body)
}

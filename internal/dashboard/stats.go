package dashboard

import (
	"time"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// Stats summarizes the full task list, ignoring the filter.
type Stats struct {
	Total    int
	ByStatus map[v1.Status]int
	Overdue  int
}

// Open counts tasks that are not completed.
func (s Stats) Open() int {
	return s.Total - s.ByStatus[v1.StatusCompleted]
}

// Completion is the completed fraction in [0, 1]; 0 for an empty list.
func (s Stats) Completion() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ByStatus[v1.StatusCompleted]) / float64(s.Total)
}

// Stats computes counts at the given time.
func (c *Controller) Stats(now time.Time) Stats {
	return ComputeStats(c.Tasks(), now)
}

// ComputeStats counts tasks by status. A task is overdue when its due date
// has passed and it is not completed.
func ComputeStats(tasks []v1.Task, now time.Time) Stats {
	s := Stats{Total: len(tasks), ByStatus: make(map[v1.Status]int, len(v1.Statuses))}
	for _, st := range v1.Statuses {
		s.ByStatus[st] = 0
	}
	for _, t := range tasks {
		s.ByStatus[t.Status]++
		if t.Status == v1.StatusCompleted {
			continue
		}
		if due, ok := t.Due(); ok && due.Before(now) {
			s.Overdue++
		}
	}
	return s
}

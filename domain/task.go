package domain

import (
	"fmt"
	"time"
)

// Status is the Kanban column a task belongs to.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses lists every status in board display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ParseStatus converts raw into a Status, rejecting anything outside the domain.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", NewValidationError(fmt.Sprintf("invalid status %q", raw))
	}
	return s, nil
}

// Task is a unit of work inside a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	Assignee    *Profile   `json:"assignee,omitempty"`
	CreatedBy   string     `json:"created_by"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ProjectName string     `json:"project_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (t Task) Key() string      { return t.ID }
func (t Task) AuthorID() string { return t.CreatedBy }
func (t Task) Body() string     { return t.Title }
func (t Task) Token() string    { return "" }

// NewTask carries the fields accepted when creating a task.
type NewTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssigneeID  string     `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

// Validate checks the required fields of a new task.
func (n NewTask) Validate() error {
	if n.Title == "" {
		return NewValidationError("Title is required")
	}
	return nil
}

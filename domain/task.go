package domain

import (
	"slices"
	"strings"
	"time"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Statuses lists board columns in display order.
var Statuses = []string{StatusTodo, StatusInProgress, StatusDone}

// Task is a unit of work inside a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Assignees   []string   `json:"assignees"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusDone
}

// Normalize applies defaults and validates the closed value sets.
func (t *Task) Normalize() error {
	if t == nil {
		return ErrInvalidPayload
	}
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return Invalid("task title is required")
	}
	if t.ProjectID == "" {
		return Invalid("project_id is required")
	}
	status, err := NormalizeStatus(t.Status)
	if err != nil {
		return err
	}
	t.Status = status
	priority, err := NormalizePriority(t.Priority)
	if err != nil {
		return err
	}
	t.Priority = priority
	t.Assignees = CompactIDs(t.Assignees)
	return nil
}

// NormalizeStatus maps legacy labels and defaults empty input to todo.
func NormalizeStatus(status string) (string, error) {
	switch s := strings.ToLower(strings.TrimSpace(status)); s {
	case "":
		return StatusTodo, nil
	case "inprogress", "in-progress":
		return StatusInProgress, nil
	case StatusTodo, StatusInProgress, StatusDone:
		return s, nil
	default:
		return "", Invalidf("unknown status %q", status)
	}
}

func NormalizePriority(priority string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(priority)); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", Invalidf("unknown priority %q", priority)
	}
}

// CompactIDs trims, drops empties and de-duplicates while keeping order.
func CompactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// TaskPatch holds a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	ClearDue    bool
	Assignees   []string
}

// Apply merges the patch into t and re-validates it.
func (p TaskPatch) Apply(t *Task) error {
	if t == nil {
		return ErrInvalidPayload
	}
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
	if p.ClearDue {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.Assignees != nil {
		t.Assignees = p.Assignees
	}
	return t.Normalize()
}

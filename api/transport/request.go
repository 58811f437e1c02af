package transport

import (
	"strings"
	"time"

	"github.com/taskflow/backend/domain"
)

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r RegisterRequest) Registration() domain.Registration {
	return domain.Registration{
		Name:            r.Name,
		Email:           r.Email,
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProjectRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	TeamID      *string `json:"team_id"`
}

// TaskRequest creates a task. Assignee is the legacy single-assignee field.
type TaskRequest struct {
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"due_date"`
	Assignee    string   `json:"assignee"`
	Assignees   []string `json:"assignees"`
}

// TaskPatchRequest updates a task partially. An empty due_date clears it.
type TaskPatchRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Priority    *string   `json:"priority"`
	DueDate     *string   `json:"due_date"`
	Assignees   *[]string `json:"assignees"`
}

func (r TaskPatchRequest) Patch() (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
	}
	if r.DueDate != nil {
		if strings.TrimSpace(*r.DueDate) == "" {
			patch.ClearDue = true
		} else {
			due, err := ParseDueDate(*r.DueDate)
			if err != nil {
				return domain.TaskPatch{}, err
			}
			patch.DueDate = due
		}
	}
	if r.Assignees != nil {
		patch.Assignees = append([]string{}, (*r.Assignees)...)
	}
	return patch, nil
}

type MoveRequest struct {
	Status string `json:"status"`
}

// CommentRequest accepts the legacy text key as an alias of content. The
// author is always the authenticated user.
type CommentRequest struct {
	Content   string `json:"content"`
	Text      string `json:"text"`
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id"`
}

func (r CommentRequest) Body() string {
	if strings.TrimSpace(r.Content) != "" {
		return r.Content
	}
	return r.Text
}

func (r CommentRequest) Scope() domain.CommentScope {
	return domain.CommentScope{TaskID: strings.TrimSpace(r.TaskID), ProjectID: strings.TrimSpace(r.ProjectID)}
}

type TeamRequest struct {
	Name string `json:"name"`
}

type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RoleRequest sets a membership role. Roles is accepted for clients that
// send the platform's list form; its first entry wins.
type RoleRequest struct {
	Role  string   `json:"role"`
	Roles []string `json:"roles"`
}

func (r RoleRequest) Value() string {
	if r.Role != "" {
		return r.Role
	}
	if len(r.Roles) > 0 {
		return r.Roles[0]
	}
	return ""
}

// ParseDueDate accepts RFC 3339 timestamps and plain dates.
func ParseDueDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, domain.Invalid("due_date must be RFC 3339 or YYYY-MM-DD")
}

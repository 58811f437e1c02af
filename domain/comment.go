package domain

import (
	"strings"
	"time"
)

// Comment belongs to exactly one of a task or a project.
type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	TaskID    *string   `json:"task_id"`
	ProjectID *string   `json:"project_id"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Comment) Validate() error {
	if c == nil {
		return ErrInvalidPayload
	}
	c.Content = strings.TrimSpace(c.Content)
	if c.Content == "" {
		return Invalid("comment content is required")
	}
	c.TaskID = nonEmpty(c.TaskID)
	c.ProjectID = nonEmpty(c.ProjectID)
	switch {
	case c.TaskID == nil && c.ProjectID == nil:
		return Invalid("comment needs a task_id or a project_id")
	case c.TaskID != nil && c.ProjectID != nil:
		return Invalid("comment cannot target both a task and a project")
	}
	return nil
}

// Scope returns the thread the comment belongs to.
func (c *Comment) Scope() CommentScope {
	var s CommentScope
	if c.TaskID != nil {
		s.TaskID = *c.TaskID
	}
	if c.ProjectID != nil {
		s.ProjectID = *c.ProjectID
	}
	return s
}

// CommentScope selects a thread.
type CommentScope struct {
	TaskID    string
	ProjectID string
}

func (s CommentScope) Validate() error {
	if (s.TaskID == "") == (s.ProjectID == "") {
		return Invalid("exactly one of task_id or project_id is required")
	}
	return nil
}

// Matches reports whether c belongs to the thread.
func (s CommentScope) Matches(c *Comment) bool {
	if c == nil {
		return false
	}
	if s.TaskID != "" {
		return c.TaskID != nil && *c.TaskID == s.TaskID
	}
	return c.ProjectID != nil && *c.ProjectID == s.ProjectID
}

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

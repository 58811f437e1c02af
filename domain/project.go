package domain

import (
	"strings"
	"time"
)

// Project is either personal (no team) or owned by a team.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TeamID      *string   `json:"team_id"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Project) IsTeamProject() bool {
	return p != nil && p.TeamID != nil && *p.TeamID != ""
}

func (p *Project) Validate() error {
	if p == nil {
		return ErrInvalidPayload
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Invalid("project name is required")
	}
	if p.TeamID != nil && strings.TrimSpace(*p.TeamID) == "" {
		p.TeamID = nil
	}
	return nil
}

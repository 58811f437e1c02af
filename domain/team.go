package domain

import (
	"slices"
	"strings"
	"time"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Team groups users that share projects.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a user to a team with a set of roles.
type Membership struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	Roles     []string  `json:"roles"`
	JoinedAt  time.Time `json:"joined_at"`
}

func (m *Membership) IsAdmin() bool {
	return m != nil && slices.Contains(m.Roles, RoleAdmin)
}

// NormalizeRole validates a role name; empty means member.
func NormalizeRole(role string) (string, error) {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case "":
		return RoleMember, nil
	case RoleMember, RoleAdmin:
		return r, nil
	default:
		return "", Invalidf("unknown role %q", role)
	}
}

package domain

import "time"

// Notification is a best-effort message addressed to a single user.
type Notification struct {
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
}

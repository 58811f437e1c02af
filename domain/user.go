package domain

import (
	"strings"
	"time"
)

const (
	UserStatusActive  = "active"
	UserStatusBlocked = "blocked"
)

// User represents an authenticated account. The password hash never leaves the service.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Registration carries the sign-up form.
type Registration struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

func (r Registration) Validate() error {
	if NormalizeEmail(r.Email) == "" || !strings.Contains(r.Email, "@") {
		return Invalid("a valid email is required")
	}
	if r.Password == "" || r.ConfirmPassword == "" {
		return Invalid("please fill in both password fields")
	}
	if r.Password != r.ConfirmPassword {
		return Invalid("passwords do not match")
	}
	if len(r.Password) < 8 {
		return Invalid("password must be at least 8 characters")
	}
	return nil
}

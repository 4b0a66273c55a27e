package domain

import (
	"strings"
	"time"
)

// Role is the access level of an account
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DeletedUserName replaces the name snapshot on transfers whose party was removed
const DeletedUserName = "[Deleted User]"

// User represents a registered account
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"` // bcrypt hash, stripped from API responses
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Public returns a copy safe to hand to clients
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// NormalizeEmail trims surrounding whitespace; comparison stays case-sensitive
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

package user

import (
	"time"

	"github.com/google/uuid"
)

// Status is the account lifecycle state
type Status string

const (
	StatusActive            Status = "ACTIVE"
	StatusPendingActivation Status = "PENDING_ACTIVATION"
	StatusLocked            Status = "LOCKED"
	StatusDeleted           Status = "DELETED"
)

// Role is a named group of permissions
type Role struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// User represents an account in the user store
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Status              Status     `json:"status"`
	Enabled             bool       `json:"enabled"`
	Locale              string     `json:"locale,omitempty"`
	Roles               []Role     `json:"roles"`
	ActivationToken     string     `json:"-"`
	ActivationExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsActive reports whether the account may authenticate
func (u User) IsActive() bool {
	return u.Status == StatusActive
}

// RoleNames returns the role names in assignment order
func (u User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

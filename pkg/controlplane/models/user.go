package models

import (
	"fmt"
	"strings"
	"time"
)

// UserRole is the coarse role of an account. Admins bypass zone and
// permission checks; everyone else goes through them.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account of the credential identity provider. The username also
// names the user's home directory inside personal zones.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;not null;size:255" json:"username"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Enabled      bool       `json:"enabled"`
	Role         string     `gorm:"default:user;size:50" json:"role"`
	DisplayName  string     `gorm:"size:255" json:"display_name,omitempty"`
	Email        string     `gorm:"size:255" json:"email,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`

	Groups []Group `gorm:"many2many:user_groups;" json:"groups,omitempty"`
}

func (User) TableName() string { return "users" }

// GetGroupNames lists the preloaded group memberships.
func (u *User) GetGroupNames() []string {
	names := make([]string, len(u.Groups))
	for i, g := range u.Groups {
		names[i] = g.Name
	}
	return names
}

func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}

// Validate rejects usernames that cannot be a single path element of a
// personal zone, and the allow-list wildcard.
func (u *User) Validate() error {
	name := u.Username
	switch {
	case name == "":
		return fmt.Errorf("%w: username is required", ErrValidation)
	case name == "." || name == ".." || name == WildcardSubject,
		strings.ContainsAny(name, "/\\\x00"),
		strings.TrimSpace(name) != name:
		return fmt.Errorf("%w: invalid username %q", ErrValidation, name)
	}
	if u.Role != "" && !UserRole(u.Role).IsValid() {
		return fmt.Errorf("%w: invalid role %q", ErrValidation, u.Role)
	}
	return nil
}

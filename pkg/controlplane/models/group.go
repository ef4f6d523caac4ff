package models

import (
	"fmt"
	"strings"
	"time"
)

// Group is a named set of users. Zones list groups in their allow and deny
// lists, and permissions may be granted to a group instead of a user.
type Group struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Description string    `gorm:"size:1024" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	Users []User `gorm:"many2many:user_groups;" json:"users,omitempty"`
}

func (Group) TableName() string { return "groups" }

// Validate rejects empty names, names that collide with the every-user
// wildcard, and names containing list separators.
func (g *Group) Validate() error {
	g.Name = strings.TrimSpace(g.Name)
	switch {
	case g.Name == "":
		return fmt.Errorf("%w: group name is required", ErrValidation)
	case g.Name == WildcardSubject:
		return fmt.Errorf("%w: %q is reserved", ErrValidation, WildcardSubject)
	case strings.ContainsAny(g.Name, ",\x00"):
		return fmt.Errorf("%w: invalid group name %q", ErrValidation, g.Name)
	}
	return nil
}

// MemberNames returns the usernames of the preloaded members.
func (g *Group) MemberNames() []string {
	names := make([]string, 0, len(g.Users))
	for _, u := range g.Users {
		names = append(names, u.Username)
	}
	return names
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// PermissionKind is the operation class a grant covers. Kinds are
// cumulative: delete implies write, write implies read.
type PermissionKind string

const (
	KindRead   PermissionKind = "read"
	KindWrite  PermissionKind = "write"
	KindDelete PermissionKind = "delete"
)

// Level returns a numeric level for comparison (higher = more access).
func (k PermissionKind) Level() int {
	switch k {
	case KindRead:
		return 1
	case KindWrite:
		return 2
	case KindDelete:
		return 3
	default:
		return 0
	}
}

// IsValid checks if the kind is known.
func (k PermissionKind) IsValid() bool {
	return k.Level() > 0
}

// Covers reports whether a grant of kind k permits an operation of kind
// required.
func (k PermissionKind) Covers(required PermissionKind) bool {
	return k.IsValid() && k.Level() >= required.Level()
}

// ParsePermissionKind converts a string into a PermissionKind.
func ParsePermissionKind(s string) (PermissionKind, error) {
	k := PermissionKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("invalid permission kind %q", s)
	}
	return k, nil
}

// Permission is a fine-grained grant on a zone-relative path for exactly one
// subject: a user or a group. A grant on a directory applies to its subtree.
type Permission struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	ZoneID    string         `gorm:"not null;index;size:36" json:"zone_id"`
	Path      string         `gorm:"not null;size:4096" json:"path"`
	Kind      PermissionKind `gorm:"not null;size:20" json:"kind"`
	Username  string         `gorm:"size:255;index" json:"username,omitempty"`
	GroupName string         `gorm:"size:255;index" json:"group_name,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Permission.
func (Permission) TableName() string {
	return "permissions"
}

// Validate checks the grant's structural invariants. The path must already
// be normalized by the caller.
func (p *Permission) Validate() error {
	if p.ZoneID == "" {
		return fmt.Errorf("%w: permission zone is required", ErrValidation)
	}
	if !strings.HasPrefix(p.Path, "/") {
		return fmt.Errorf("%w: permission path %q must start with /", ErrValidation, p.Path)
	}
	if !p.Kind.IsValid() {
		return fmt.Errorf("%w: invalid permission kind %q", ErrValidation, p.Kind)
	}
	if (p.Username == "") == (p.GroupName == "") {
		return fmt.Errorf("%w: permission needs exactly one of username or group", ErrValidation)
	}
	return nil
}

// IsUserGrant reports whether the subject is a user.
func (p *Permission) IsUserGrant() bool {
	return p.Username != ""
}

// Subject returns "user:<name>" or "group:<name>" for logs and listings.
func (p *Permission) Subject() string {
	if p.IsUserGrant() {
		return "user:" + p.Username
	}
	return "group:" + p.GroupName
}

// ExpiredAt reports whether the grant has expired at now.
func (p *Permission) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

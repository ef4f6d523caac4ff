package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// LinkTargetType is the kind of object a share link points at.
type LinkTargetType string

const (
	TargetFile   LinkTargetType = "file"
	TargetFolder LinkTargetType = "folder"
)

// IsValid checks if the target type is known.
func (t LinkTargetType) IsValid() bool {
	return t == TargetFile || t == TargetFolder
}

// LinkState is the lifecycle state of a share link. Every state other than
// LinkActive is terminal.
type LinkState string

const (
	LinkActive       LinkState = "active"
	LinkExpired      LinkState = "expired"
	LinkLimitReached LinkState = "limit_reached"
	LinkDisabled     LinkState = "disabled"
)

// Capability is a single operation a share link may permit.
type Capability string

const (
	CapDownload Capability = "download"
	CapPreview  Capability = "preview"
	CapUpload   Capability = "upload"
	CapListing  Capability = "listing"
)

// ParseCapability converts a string into a Capability.
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(s); c {
	case CapDownload, CapPreview, CapUpload, CapListing:
		return c, nil
	}
	return "", fmt.Errorf("invalid capability %q", s)
}

// LinkCapabilities is the set of capability flags carried by a link.
type LinkCapabilities struct {
	AllowDownload bool `json:"allow_download"`
	AllowPreview  bool `json:"allow_preview"`
	AllowUpload   bool `json:"allow_upload"`
	AllowListing  bool `json:"allow_listing"`
}

// Has reports whether the set includes c.
func (c LinkCapabilities) Has(capability Capability) bool {
	switch capability {
	case CapDownload:
		return c.AllowDownload
	case CapPreview:
		return c.AllowPreview
	case CapUpload:
		return c.AllowUpload
	case CapListing:
		return c.AllowListing
	}
	return false
}

// Intersect returns the capabilities present in both sets.
func (c LinkCapabilities) Intersect(o LinkCapabilities) LinkCapabilities {
	return LinkCapabilities{
		AllowDownload: c.AllowDownload && o.AllowDownload,
		AllowPreview:  c.AllowPreview && o.AllowPreview,
		AllowUpload:   c.AllowUpload && o.AllowUpload,
		AllowListing:  c.AllowListing && o.AllowListing,
	}
}

// ShareLink is a tokenized grant to a single file or folder subtree. Only the
// SHA-256 of the token is stored; the plaintext is handed out once.
type ShareLink struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	Owner        string         `gorm:"not null;index;size:255" json:"owner"`
	ZoneID       string         `gorm:"not null;index;size:36" json:"zone_id"`
	TargetPath   string         `gorm:"not null;size:4096" json:"target_path"`
	TargetType   LinkTargetType `gorm:"not null;size:10" json:"target_type"`
	TargetName   string         `gorm:"size:255" json:"target_name"`
	TokenHash    string         `gorm:"uniqueIndex;not null;size:64" json:"-"`
	PasswordHash string         `gorm:"size:255" json:"-"`

	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxDownloads  int64      `gorm:"default:0" json:"max_downloads"`
	DownloadCount int64      `gorm:"default:0" json:"download_count"`
	MaxViews      int64      `gorm:"default:0" json:"max_views"`
	ViewCount     int64      `gorm:"default:0" json:"view_count"`

	LinkCapabilities `gorm:"embedded"`

	Enabled      bool           `json:"enabled"`
	Description  string         `gorm:"size:1024" json:"description,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName returns the table name for ShareLink.
func (ShareLink) TableName() string {
	return "share_links"
}

// Validate checks the link's structural invariants.
func (l *ShareLink) Validate() error {
	if l.Owner == "" || l.ZoneID == "" {
		return fmt.Errorf("%w: link owner and zone are required", ErrValidation)
	}
	if !l.TargetType.IsValid() {
		return fmt.Errorf("%w: invalid link target type %q", ErrValidation, l.TargetType)
	}
	if l.TokenHash == "" {
		return fmt.Errorf("%w: link token hash is required", ErrValidation)
	}
	if l.MaxDownloads < 0 || l.MaxViews < 0 {
		return fmt.Errorf("%w: link limits must not be negative", ErrValidation)
	}
	return nil
}

// HasPassword reports whether the link is password protected.
func (l *ShareLink) HasPassword() bool {
	return l.PasswordHash != ""
}

// ExpiredAt reports whether the link is past its expiry at now.
func (l *ShareLink) ExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// DownloadsExhausted reports whether the download limit is used up.
func (l *ShareLink) DownloadsExhausted() bool {
	return l.MaxDownloads > 0 && l.DownloadCount >= l.MaxDownloads
}

// ViewsExhausted reports whether the view limit is used up.
func (l *ShareLink) ViewsExhausted() bool {
	return l.MaxViews > 0 && l.ViewCount >= l.MaxViews
}

// StateAt computes the link state at now. Expiry is checked first since it
// is permanent; a disabled link reports disabled even when also exhausted.
func (l *ShareLink) StateAt(now time.Time) LinkState {
	switch {
	case l.ExpiredAt(now):
		return LinkExpired
	case !l.Enabled:
		return LinkDisabled
	case l.DownloadsExhausted() || l.ViewsExhausted():
		return LinkLimitReached
	default:
		return LinkActive
	}
}

// AccessibleAt reports whether the link is active at now.
func (l *ShareLink) AccessibleAt(now time.Time) bool {
	return l.StateAt(now) == LinkActive
}

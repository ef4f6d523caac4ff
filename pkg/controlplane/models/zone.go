package models

import (
	"database/sql/driver"
	"fmt"
	"path"
	"strings"
	"time"
)

// ZoneType classifies how a share zone is laid out for its users.
type ZoneType string

const (
	// ZoneTypePersonal gives each user an isolated home subtree named after
	// their username.
	ZoneTypePersonal ZoneType = "personal"
	// ZoneTypeGroup is a shared area for a set of users or groups.
	ZoneTypeGroup ZoneType = "group"
	// ZoneTypePublic is open to every authenticated user.
	ZoneTypePublic ZoneType = "public"
)

// IsValid checks if the zone type is known.
func (t ZoneType) IsValid() bool {
	switch t {
	case ZoneTypePersonal, ZoneTypeGroup, ZoneTypePublic:
		return true
	}
	return false
}

// ShareZone is a logical, access-controlled subdivision of a storage pool.
type ShareZone struct {
	ID          string   `gorm:"primaryKey;size:36" json:"id"`
	PoolID      string   `gorm:"not null;index;size:36" json:"pool_id"`
	Name        string   `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Description string   `gorm:"size:1024" json:"description,omitempty"`
	Path        string   `gorm:"not null;size:4096" json:"path"` // relative to the pool root
	ZoneType    ZoneType `gorm:"not null;size:20;default:group" json:"zone_type"`

	Enabled       bool `json:"enabled"`
	AutoProvision bool `json:"auto_provision"`

	// Access lists. Deny entries always win over allow entries; empty allow
	// lists leave the zone open to every authenticated user.
	AllowedUsers  StringList `gorm:"type:text" json:"allowed_users"`
	AllowedGroups StringList `gorm:"type:text" json:"allowed_groups"`
	DenyUsers     StringList `gorm:"type:text" json:"deny_users"`
	DenyGroups    StringList `gorm:"type:text" json:"deny_groups"`

	// MaxQuotaPerUser overrides the pool default user quota (0 = use default).
	MaxQuotaPerUser int64 `json:"max_quota_per_user"`

	ReadOnly   bool `json:"read_only"`
	AllowWrite bool `json:"allow_write"`
	Browsable  bool `json:"browsable"`

	AllowNetworkShares bool `json:"allow_network_shares"`
	AllowWebShares     bool `json:"allow_web_shares"`

	SMBOptions SMBOptions `gorm:"type:text" json:"smb_options"`
	NFSOptions NFSOptions `gorm:"type:text" json:"nfs_options"`
	WebOptions WebOptions `gorm:"type:text" json:"web_options"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for ShareZone.
func (ShareZone) TableName() string {
	return "share_zones"
}

// Validate checks the zone's structural invariants. Containment of Path in
// the pool root is checked by the registry through the path resolver.
func (z *ShareZone) Validate() error {
	if strings.TrimSpace(z.Name) == "" {
		return fmt.Errorf("%w: zone name is required", ErrValidation)
	}
	if z.PoolID == "" {
		return fmt.Errorf("%w: zone pool is required", ErrValidation)
	}
	if !z.ZoneType.IsValid() {
		return fmt.Errorf("%w: invalid zone type %q", ErrValidation, z.ZoneType)
	}
	if strings.ContainsRune(z.Path, 0) {
		return fmt.Errorf("%w: zone path contains NUL", ErrValidation)
	}
	if z.MaxQuotaPerUser < 0 {
		return fmt.Errorf("%w: zone quota must not be negative", ErrValidation)
	}
	if z.WebOptions.MaxLinkExpiry < 0 {
		return fmt.Errorf("%w: max link expiry must not be negative", ErrValidation)
	}
	return nil
}

// Normalize trims list entries and cleans the relative path. An empty path
// maps the zone onto the pool root.
func (z *ShareZone) Normalize() {
	p := strings.Trim(strings.TrimSpace(z.Path), "/")
	if p != "" {
		p = path.Clean(p)
	}
	z.Path = p
	if z.ZoneType == "" {
		z.ZoneType = ZoneTypeGroup
	}
	z.AllowedUsers = z.AllowedUsers.Normalized()
	z.AllowedGroups = z.AllowedGroups.Normalized()
	z.DenyUsers = z.DenyUsers.Normalized()
	z.DenyGroups = z.DenyGroups.Normalized()
}

// IsPersonal reports whether the zone isolates users into home subtrees.
func (z *ShareZone) IsPersonal() bool {
	return z.ZoneType == ZoneTypePersonal
}

// HasAllowList reports whether the zone restricts access to listed members.
func (z *ShareZone) HasAllowList() bool {
	return len(z.AllowedUsers) > 0 || len(z.AllowedGroups) > 0
}

// WebSharingEnabled reports whether share links may be issued for the zone.
func (z *ShareZone) WebSharingEnabled() bool {
	return z.AllowWebShares
}

// ============================================================================
// Sharing option blocks
// ============================================================================

// SMBOptions holds the declared SMB share settings. The server stores them
// for the SMB configuration renderer; they are inert unless Enabled is set.
type SMBOptions struct {
	Enabled       bool       `json:"enabled"`
	ShareName     string     `json:"share_name,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	Browsable     bool       `json:"browsable"`
	ReadOnly      bool       `json:"read_only"`
	GuestOK       bool       `json:"guest_ok"`
	ValidUsers    StringList `json:"valid_users,omitempty"`
	WriteList     StringList `json:"write_list,omitempty"`
	CreateMask    string     `json:"create_mask,omitempty"`
	DirectoryMask string     `json:"directory_mask,omitempty"`
}

// Value implements driver.Valuer.
func (o SMBOptions) Value() (driver.Value, error) { return jsonValue(o) }

// Scan implements sql.Scanner.
func (o *SMBOptions) Scan(src any) error { return scanJSON(src, o) }

// NFSOptions holds the declared NFS export settings.
type NFSOptions struct {
	Enabled    bool       `json:"enabled"`
	ExportPath string     `json:"export_path,omitempty"`
	Clients    StringList `json:"clients,omitempty"`
	Options    string     `json:"options,omitempty"`
	RootSquash bool       `json:"root_squash"`
	Async      bool       `json:"async"`
}

// Value implements driver.Valuer.
func (o NFSOptions) Value() (driver.Value, error) { return jsonValue(o) }

// Scan implements sql.Scanner.
func (o *NFSOptions) Scan(src any) error { return scanJSON(src, o) }

// WebOptions bounds what share links issued for the zone may do.
type WebOptions struct {
	Enabled       bool `json:"enabled"`
	PublicEnabled bool `json:"public_enabled"`
	// MaxLinkExpiry caps link lifetime in days (0 = unlimited).
	MaxLinkExpiry   int  `json:"max_link_expiry"`
	AllowDownload   bool `json:"allow_download"`
	AllowUpload     bool `json:"allow_upload"`
	AllowPreview    bool `json:"allow_preview"`
	AllowListing    bool `json:"allow_listing"`
	RequirePassword bool `json:"require_password"`
}

// Value implements driver.Valuer.
func (o WebOptions) Value() (driver.Value, error) { return jsonValue(o) }

// Scan implements sql.Scanner.
func (o *WebOptions) Scan(src any) error { return scanJSON(src, o) }

// MaxExpiry returns the link lifetime ceiling, or 0 when unbounded.
func (o WebOptions) MaxExpiry() time.Duration {
	if !o.Enabled || o.MaxLinkExpiry <= 0 {
		return 0
	}
	return time.Duration(o.MaxLinkExpiry) * 24 * time.Hour
}

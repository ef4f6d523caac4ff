package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// StoragePool is a physical storage root managed by the server.
//
// Capacity figures are written by the disk stats refresher and are advisory:
// they drive display and coarse capacity checks, never per-user quota.
type StoragePool struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Name        string `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Path        string `gorm:"not null;size:4096" json:"path"`
	Description string `gorm:"size:1024" json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`

	TotalSpace    int64 `json:"total_space"`
	UsedSpace     int64 `json:"used_space"`
	FreeSpace     int64 `json:"free_space"`
	ReservedSpace int64 `json:"reserved_space"`

	// MaxFileSize is the per-file ceiling in bytes (0 = unlimited).
	MaxFileSize int64 `json:"max_file_size"`
	// AllowedTypes and DeniedTypes are extension sets without the leading
	// dot. An empty allow list permits every extension not denied.
	AllowedTypes StringList `gorm:"type:text" json:"allowed_types"`
	DeniedTypes  StringList `gorm:"type:text" json:"denied_types"`

	// Default quotas in bytes (0 = unlimited).
	DefaultUserQuota  int64 `json:"default_user_quota"`
	DefaultGroupQuota int64 `json:"default_group_quota"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for StoragePool.
func (StoragePool) TableName() string {
	return "storage_pools"
}

// Validate checks the pool's structural invariants. Existence of Path is
// checked by the registry.
func (p *StoragePool) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: pool name is required", ErrValidation)
	}
	if !filepath.IsAbs(p.Path) {
		return fmt.Errorf("%w: pool path %q must be absolute", ErrValidation, p.Path)
	}
	if p.MaxFileSize < 0 || p.DefaultUserQuota < 0 || p.DefaultGroupQuota < 0 || p.ReservedSpace < 0 {
		return fmt.Errorf("%w: pool limits must not be negative", ErrValidation)
	}
	return nil
}

// Normalize canonicalizes the path and the extension lists.
func (p *StoragePool) Normalize() {
	p.Path = filepath.Clean(p.Path)
	p.AllowedTypes = normalizeExtensions(p.AllowedTypes)
	p.DeniedTypes = normalizeExtensions(p.DeniedTypes)
}

// AvailableSpace returns the free space minus the reserved space, floored
// at zero. Zero TotalSpace means capacity has not been measured yet.
func (p *StoragePool) AvailableSpace() int64 {
	avail := p.FreeSpace - p.ReservedSpace
	if avail < 0 {
		return 0
	}
	return avail
}

// CapacityKnown reports whether capacity figures have been refreshed.
func (p *StoragePool) CapacityKnown() bool {
	return p.TotalSpace > 0
}

// ExtensionAllowed reports whether a file name passes the pool's
// extension filters. Matching is case-insensitive; names without an
// extension are checked as "".
func (p *StoragePool) ExtensionAllowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if p.DeniedTypes.Contains(ext) {
		return false
	}
	if len(p.AllowedTypes) == 0 {
		return true
	}
	return p.AllowedTypes.Contains(ext)
}

func normalizeExtensions(l StringList) StringList {
	out := make(StringList, 0, len(l))
	for _, e := range l {
		out = append(out, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), ".")))
	}
	return out.Normalized()
}

// Package store provides the control plane persistence layer.
//
// This package implements the Store interface for storage pools, share
// zones, permissions, share links, users and groups.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL
package store

import (
	"context"
	"time"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// LinkCounter selects which share link counter an increment applies to.
type LinkCounter string

const (
	CounterViews     LinkCounter = "view_count"
	CounterDownloads LinkCounter = "download_count"
)

// PoolStore persists storage pools.
type PoolStore interface {
	// GetPool returns a pool by ID.
	// Returns models.ErrPoolNotFound if the pool doesn't exist.
	GetPool(ctx context.Context, id string) (*models.StoragePool, error)

	// GetPoolByName returns a pool by its unique name.
	GetPoolByName(ctx context.Context, name string) (*models.StoragePool, error)

	// ListPools returns all pools ordered by name.
	ListPools(ctx context.Context) ([]*models.StoragePool, error)

	// CreatePool creates a pool. The ID is generated if empty.
	// Returns models.ErrDuplicatePool if the name is taken.
	CreatePool(ctx context.Context, pool *models.StoragePool) (string, error)

	// UpdatePool updates the editable fields of a pool.
	UpdatePool(ctx context.Context, pool *models.StoragePool) error

	// SetPoolEnabled enables or disables a pool. Disabling a pool with
	// enabled zones fails with models.ErrPoolHasEnabledZones unless cascade
	// is set, in which case those zones are disabled in the same transaction.
	// Returns the number of zones disabled by the cascade.
	SetPoolEnabled(ctx context.Context, id string, enabled, cascade bool) (int64, error)

	// UpdatePoolCapacity stores refreshed capacity figures.
	UpdatePoolCapacity(ctx context.Context, id string, total, used, free int64) error

	// DeletePool deletes a pool.
	// Returns models.ErrPoolHasZones while zones reference it.
	DeletePool(ctx context.Context, id string) error
}

// ZoneStore persists share zones and their permissions.
type ZoneStore interface {
	GetZone(ctx context.Context, id string) (*models.ShareZone, error)
	GetZoneByName(ctx context.Context, name string) (*models.ShareZone, error)
	ListZones(ctx context.Context) ([]*models.ShareZone, error)
	ListZonesByPool(ctx context.Context, poolID string) ([]*models.ShareZone, error)

	// CreateZone creates a zone. The ID is generated if empty.
	// Returns models.ErrPoolNotFound if the pool doesn't exist and
	// models.ErrDuplicateZone if the name is taken.
	CreateZone(ctx context.Context, zone *models.ShareZone) (string, error)

	// UpdateZone replaces the editable fields of a zone.
	UpdateZone(ctx context.Context, zone *models.ShareZone) error

	// DeleteZone deletes a zone together with its permissions and soft
	// deletes the share links issued for it.
	DeleteZone(ctx context.Context, id string) error

	// ListPermissions returns every permission of every zone.
	ListPermissions(ctx context.Context) ([]*models.Permission, error)

	// ListZonePermissions returns the permissions of one zone.
	ListZonePermissions(ctx context.Context, zoneID string) ([]*models.Permission, error)

	// GetPermission returns a permission by ID.
	GetPermission(ctx context.Context, id string) (*models.Permission, error)

	// CreatePermission stores a grant. Returns models.ErrDuplicatePermission
	// when the same subject already holds a grant on the same path.
	CreatePermission(ctx context.Context, perm *models.Permission) (string, error)

	// DeletePermission removes a grant.
	DeletePermission(ctx context.Context, id string) error
}

// LinkStore persists share links.
type LinkStore interface {
	// CreateLink stores a new link. The ID is generated if empty.
	CreateLink(ctx context.Context, link *models.ShareLink) (string, error)

	// GetLink returns a link by ID. Soft-deleted links are not returned.
	GetLink(ctx context.Context, id string) (*models.ShareLink, error)

	// GetLinkByTokenHash returns the link whose token hash matches.
	GetLinkByTokenHash(ctx context.Context, tokenHash string) (*models.ShareLink, error)

	// ListLinks returns the links of owner, or all links when owner is empty.
	ListLinks(ctx context.Context, owner string) ([]*models.ShareLink, error)

	// IncrementLinkCounter adds one to counter in a single conditional
	// UPDATE that only matches while the link is accessible at now.
	// Returns false when the condition no longer held.
	IncrementLinkCounter(ctx context.Context, id string, counter LinkCounter, now time.Time) (bool, error)

	// TouchLink records an access that does not consume a counter.
	TouchLink(ctx context.Context, id string, now time.Time) error

	// SetLinkEnabled toggles a link. Re-enabling is refused by the manager,
	// not here.
	SetLinkEnabled(ctx context.Context, id string, enabled bool) error

	// DeleteLink soft deletes a link.
	DeleteLink(ctx context.Context, id string) error

	// ReapLinks soft deletes links that are expired or exhausted at now and
	// returns how many were removed.
	ReapLinks(ctx context.Context, now time.Time) (int64, error)
}

// UserStore persists user accounts and group memberships.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (string, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, username string) error
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error

	// ValidateCredentials verifies username/password credentials.
	// Returns models.ErrInvalidCredentials if the credentials are invalid
	// and models.ErrUserDisabled if the account is disabled.
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)

	GetGroup(ctx context.Context, name string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]*models.Group, error)
	CreateGroup(ctx context.Context, group *models.Group) (string, error)
	DeleteGroup(ctx context.Context, name string) error
	AddUserToGroup(ctx context.Context, username, groupName string) error
	RemoveUserFromGroup(ctx context.Context, username, groupName string) error
	GetGroupMembers(ctx context.Context, groupName string) ([]*models.User, error)
}

// Store provides the control plane persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from multiple
// goroutines.
type Store interface {
	PoolStore
	ZoneStore
	LinkStore
	UserStore

	// Healthcheck verifies the database connection.
	Healthcheck(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

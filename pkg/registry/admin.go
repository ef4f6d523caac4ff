package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/fileserv/internal/logger"
	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/access/resolver"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// zoneDirPerm is the mode used when creating zone roots.
const zoneDirPerm = 0o755

// ============================================================================
// Pools
// ============================================================================

// CreatePool validates and stores a new pool. The pool root must be an
// existing directory.
func (r *Registry) CreatePool(ctx context.Context, pool *models.StoragePool) (*models.StoragePool, error) {
	pool.Normalize()
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	if err := checkPoolRoot(pool.Path); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.store.CreatePool(ctx, pool)
	if err != nil {
		return nil, err
	}
	created, err := r.store.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}

	r.publish(func(next *Snapshot) { next.pools[created.ID] = created })
	logger.InfoCtx(ctx, "Pool created", logger.KeyPool, created.Name, logger.KeyPoolPath, created.Path)
	return created, nil
}

// UpdatePool replaces the editable fields of a pool. Moving the root of a
// pool that still has zones is refused with models.ErrPoolHasZones.
func (r *Registry) UpdatePool(ctx context.Context, pool *models.StoragePool) (*models.StoragePool, error) {
	pool.Normalize()
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	if err := checkPoolRoot(pool.Path); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.store.GetPool(ctx, pool.ID)
	if err != nil {
		return nil, err
	}
	if existing.Path != pool.Path && len(r.current.Load().ZonesInPool(pool.ID)) > 0 {
		return nil, fmt.Errorf("%w: cannot move root of pool %s", models.ErrPoolHasZones, existing.Name)
	}

	if err := r.store.UpdatePool(ctx, pool); err != nil {
		return nil, err
	}
	updated, err := r.store.GetPool(ctx, pool.ID)
	if err != nil {
		return nil, err
	}

	r.publish(func(next *Snapshot) { next.pools[updated.ID] = updated })
	logger.InfoCtx(ctx, "Pool updated", logger.KeyPool, updated.Name)
	return updated, nil
}

// SetPoolEnabled enables or disables a pool. Disabling a pool with enabled
// zones requires cascade, which disables those zones too. It returns the
// number of zones the cascade disabled.
func (r *Registry) SetPoolEnabled(ctx context.Context, id string, enabled, cascade bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	disabled, err := r.store.SetPoolEnabled(ctx, id, enabled, cascade)
	if err != nil {
		return 0, err
	}
	if err := r.reloadPool(ctx, id); err != nil {
		return 0, err
	}

	logger.InfoCtx(ctx, "Pool enabled state changed",
		logger.KeyPool, id,
		"enabled", enabled,
		"zones_disabled", disabled)
	return disabled, nil
}

// DeletePool removes a pool. Pools referenced by zones cannot be deleted.
func (r *Registry) DeletePool(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DeletePool(ctx, id); err != nil {
		return err
	}
	r.publish(func(next *Snapshot) { delete(next.pools, id) })
	logger.InfoCtx(ctx, "Pool deleted", logger.KeyPool, id)
	return nil
}

// UpdateCapacity records refreshed capacity figures for a pool.
func (r *Registry) UpdateCapacity(ctx context.Context, poolID string, total, used, free int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.current.Load().Pool(poolID)
	if !ok {
		return models.ErrPoolNotFound
	}
	if err := r.store.UpdatePoolCapacity(ctx, poolID, total, used, free); err != nil {
		return err
	}

	updated := *current
	updated.TotalSpace, updated.UsedSpace, updated.FreeSpace = total, used, free
	updated.UpdatedAt = time.Now()
	r.publish(func(next *Snapshot) { next.pools[poolID] = &updated })
	return nil
}

// ============================================================================
// Zones
// ============================================================================

// CreateZone validates and stores a zone, creating its root directory
// inside the pool. The zone path must resolve inside the pool root.
func (r *Registry) CreateZone(ctx context.Context, zone *models.ShareZone) (*models.ShareZone, error) {
	zone.Normalize()
	if err := zone.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.current.Load().Pool(zone.PoolID)
	if !ok {
		return nil, models.ErrPoolNotFound
	}
	if zone.Enabled && !pool.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrPoolDisabled, pool.Name)
	}
	if err := ensureZoneRoot(ctx, pool, zone); err != nil {
		return nil, err
	}

	id, err := r.store.CreateZone(ctx, zone)
	if err != nil {
		return nil, err
	}
	created, err := r.store.GetZone(ctx, id)
	if err != nil {
		return nil, err
	}

	r.publish(func(next *Snapshot) { next.putZone(created) })
	logger.InfoCtx(ctx, "Zone created",
		logger.KeyZone, created.Name,
		logger.KeyZoneType, string(created.ZoneType),
		logger.KeyPool, pool.Name)
	return created, nil
}

// UpdateZone replaces the editable fields of a zone. The owning pool
// cannot change.
func (r *Registry) UpdateZone(ctx context.Context, zone *models.ShareZone) (*models.ShareZone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.current.Load().Zone(zone.ID)
	if !ok {
		return nil, models.ErrZoneNotFound
	}
	zone.PoolID = existing.PoolID
	zone.Normalize()
	if err := zone.Validate(); err != nil {
		return nil, err
	}

	pool, ok := r.current.Load().Pool(zone.PoolID)
	if !ok {
		return nil, models.ErrPoolNotFound
	}
	if zone.Enabled && !pool.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrPoolDisabled, pool.Name)
	}
	if zone.Path != existing.Path {
		if err := ensureZoneRoot(ctx, pool, zone); err != nil {
			return nil, err
		}
	}

	if err := r.store.UpdateZone(ctx, zone); err != nil {
		return nil, err
	}
	updated, err := r.store.GetZone(ctx, zone.ID)
	if err != nil {
		return nil, err
	}

	r.publish(func(next *Snapshot) { next.putZone(updated) })
	logger.InfoCtx(ctx, "Zone updated", logger.KeyZone, updated.Name)
	return updated, nil
}

// DeleteZone removes a zone with its permissions. Files under the zone
// root are left in place.
func (r *Registry) DeleteZone(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DeleteZone(ctx, id); err != nil {
		return err
	}
	r.publish(func(next *Snapshot) { next.dropZone(id) })
	logger.InfoCtx(ctx, "Zone deleted", logger.KeyZone, id)
	return nil
}

// ensureZoneRoot checks containment of the zone path and creates the
// directory.
func ensureZoneRoot(ctx context.Context, pool *models.StoragePool, zone *models.ShareZone) error {
	if _, err := resolver.ResolveZoneRoot(pool.Path, zone.Path); err != nil {
		if accesserrors.IsPathEscape(err) {
			logger.SecurityEvent(ctx, "path_escape",
				logger.KeyPool, pool.Name,
				logger.KeyZone, zone.Name,
				logger.KeyPath, zone.Path)
			return fmt.Errorf("%w: %s", ErrZonePathEscape, zone.Path)
		}
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	root, err := resolver.Resolve(pool.Path, zone.Path, resolver.Root)
	if err != nil {
		if accesserrors.IsPathEscape(err) {
			return fmt.Errorf("%w: %s", ErrZonePathEscape, zone.Path)
		}
		return err
	}
	if err := resolver.MkdirAll(root, zoneDirPerm); err != nil {
		return fmt.Errorf("create zone root: %w", err)
	}
	return nil
}

// ============================================================================
// Permissions
// ============================================================================

// GrantPermission stores a fine-grained grant on a zone path.
func (r *Registry) GrantPermission(ctx context.Context, perm *models.Permission) (*models.Permission, error) {
	if err := perm.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPermission, err)
	}
	normalized, err := resolver.NormalizeVirtual(perm.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPermission, err)
	}
	perm.Path = normalized
	if perm.ExpiresAt != nil {
		utc := perm.ExpiresAt.UTC()
		perm.ExpiresAt = &utc
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.current.Load().Zone(perm.ZoneID); !ok {
		return nil, models.ErrZoneNotFound
	}

	id, err := r.store.CreatePermission(ctx, perm)
	if err != nil {
		return nil, err
	}
	created, err := r.store.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}

	r.publish(func(next *Snapshot) {
		perms := next.permissions[created.ZoneID]
		updated := make([]models.Permission, 0, len(perms)+1)
		updated = append(updated, perms...)
		next.permissions[created.ZoneID] = append(updated, *created)
	})
	logger.InfoCtx(ctx, "Permission granted",
		logger.KeyZone, created.ZoneID,
		logger.KeyPath, created.Path,
		logger.KeySubject, created.Subject(),
		logger.KeyKind, string(created.Kind))
	return created, nil
}

// RevokePermission deletes a grant.
func (r *Registry) RevokePermission(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	perm, err := r.store.GetPermission(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.DeletePermission(ctx, id); err != nil {
		return err
	}

	r.publish(func(next *Snapshot) {
		perms := next.permissions[perm.ZoneID]
		updated := make([]models.Permission, 0, len(perms))
		for _, p := range perms {
			if p.ID != id {
				updated = append(updated, p)
			}
		}
		next.permissions[perm.ZoneID] = updated
	})
	logger.InfoCtx(ctx, "Permission revoked", logger.KeyZone, perm.ZoneID, logger.KeySubject, perm.Subject())
	return nil
}

// IsValidationError reports whether err was caused by invalid input rather
// than missing records or store failures.
func IsValidationError(err error) bool {
	return errors.Is(err, models.ErrValidation) ||
		errors.Is(err, ErrPoolRootInvalid) ||
		errors.Is(err, ErrZonePathEscape) ||
		errors.Is(err, ErrInvalidPermission)
}

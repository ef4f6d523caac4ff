// Package registry holds the live configuration of storage pools, share
// zones and permissions.
//
// The Registry is the single writer for configuration: every change is
// validated, persisted through the control plane store and then published
// as a new immutable Snapshot. Readers call Snapshot() and never block on
// writers.
//
// Example usage:
//
//	reg, err := registry.New(ctx, store)
//	pool, err := reg.CreatePool(ctx, &models.StoragePool{Name: "data", Path: "/srv/data", Enabled: true})
//	zone, err := reg.CreateZone(ctx, &models.ShareZone{PoolID: pool.ID, Name: "users", Path: "users",
//	    ZoneType: models.ZoneTypePersonal, Enabled: true, AutoProvision: true})
//
//	snap := reg.Snapshot()
//	zone, pool, ok := snap.ZoneWithPool("users")
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/identity"
)

// Validation errors returned by the admin API. Store sentinels such as
// models.ErrPoolHasZones and models.ErrPoolHasEnabledZones pass through
// unchanged.
var (
	// ErrPoolRootInvalid indicates a pool path that does not exist or is
	// not a directory.
	ErrPoolRootInvalid = errors.New("pool root is not an existing directory")

	// ErrZonePathEscape indicates a zone path that resolves outside its
	// pool root.
	ErrZonePathEscape = errors.New("zone path escapes the pool root")

	// ErrInvalidPermission indicates a malformed grant.
	ErrInvalidPermission = errors.New("invalid permission")

	// ErrPoolDisabled indicates a zone created in a disabled pool with the
	// zone enabled.
	ErrPoolDisabled = errors.New("pool is disabled")
)

// Store is the persistence the registry needs.
type Store interface {
	store.PoolStore
	store.ZoneStore
}

// Registry serializes configuration writes and publishes snapshots.
type Registry struct {
	store Store

	mu      sync.Mutex // serializes writers
	current atomic.Pointer[Snapshot]
}

// New loads pools, zones and permissions from st and returns a registry
// serving that state.
func New(ctx context.Context, st Store) (*Registry, error) {
	if st == nil {
		return nil, fmt.Errorf("registry requires a store")
	}
	r := &Registry{store: st}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Snapshot returns the current configuration snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Reload replaces the snapshot with the store's current state.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pools, err := r.store.ListPools(ctx)
	if err != nil {
		return fmt.Errorf("load pools: %w", err)
	}
	zones, err := r.store.ListZones(ctx)
	if err != nil {
		return fmt.Errorf("load zones: %w", err)
	}
	perms, err := r.store.ListPermissions(ctx)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}

	var version uint64 = 1
	if prev := r.current.Load(); prev != nil {
		version = prev.Version + 1
	}
	r.current.Store(newSnapshot(version, pools, zones, perms))

	logger.Info("Registry loaded",
		"pools", len(pools),
		"zones", len(zones),
		"permissions", len(perms),
		"version", version)
	return nil
}

// publish applies mutate to a copy of the current snapshot and stores it.
// Callers must hold r.mu.
func (r *Registry) publish(mutate func(next *Snapshot)) {
	next := r.current.Load().clone()
	mutate(next)
	r.current.Store(next)
}

// reloadPool re-reads one pool and the zones under it, used after writes
// whose side effects span several rows. Callers must hold r.mu.
func (r *Registry) reloadPool(ctx context.Context, poolID string) error {
	pool, err := r.store.GetPool(ctx, poolID)
	if err != nil {
		return err
	}
	zones, err := r.store.ListZonesByPool(ctx, poolID)
	if err != nil {
		return err
	}
	r.publish(func(next *Snapshot) {
		next.pools[pool.ID] = pool
		for _, z := range zones {
			next.putZone(z)
		}
	})
	return nil
}

func checkPoolRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPoolRootInvalid, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrPoolRootInvalid, path)
	}
	return nil
}

// UserZones returns the zones actor can enter in the current snapshot.
func (r *Registry) UserZones(actor identity.Identity) []*models.ShareZone {
	return r.Snapshot().UserZones(actor)
}

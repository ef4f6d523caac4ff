package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/identity"
)

// newTestRegistry returns a registry over a temp-file SQLite store and a
// temp directory to use as pool root.
func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "controlplane.db")},
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	reg, err := New(context.Background(), st)
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}
	return reg, t.TempDir()
}

func mustCreatePool(t *testing.T, reg *Registry, root string) *models.StoragePool {
	t.Helper()
	pool, err := reg.CreatePool(context.Background(), &models.StoragePool{Name: "data", Path: root, Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	return pool
}

func mustCreateZone(t *testing.T, reg *Registry, poolID, name string, zoneType models.ZoneType) *models.ShareZone {
	t.Helper()
	zone, err := reg.CreateZone(context.Background(), &models.ShareZone{
		PoolID:    poolID,
		Name:      name,
		Path:      name,
		ZoneType:  zoneType,
		Enabled:   true,
		Browsable: true,
	})
	if err != nil {
		t.Fatalf("Failed to create zone %s: %v", name, err)
	}
	return zone
}

func TestNewRegistryEmpty(t *testing.T) {
	reg, _ := newTestRegistry(t)

	snap := reg.Snapshot()
	if snap == nil {
		t.Fatal("Snapshot returned nil")
	}
	if len(snap.Pools()) != 0 || len(snap.Zones()) != 0 {
		t.Errorf("Expected empty snapshot, got %d pools and %d zones", len(snap.Pools()), len(snap.Zones()))
	}
	if snap.Version != 1 {
		t.Errorf("Expected version 1, got %d", snap.Version)
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(context.Background(), nil); err == nil {
		t.Error("Expected error for nil store")
	}
}

func TestCreatePool(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()

	pool := mustCreatePool(t, reg, root)
	if pool.ID == "" {
		t.Fatal("Expected generated pool ID")
	}

	got, ok := reg.Snapshot().Pool(pool.ID)
	if !ok {
		t.Fatal("Pool not published in snapshot")
	}
	if got.Path != filepath.Clean(root) {
		t.Errorf("Expected path %s, got %s", root, got.Path)
	}

	t.Run("MissingRoot", func(t *testing.T) {
		_, err := reg.CreatePool(ctx, &models.StoragePool{Name: "missing", Path: filepath.Join(root, "nope")})
		if !errors.Is(err, ErrPoolRootInvalid) {
			t.Errorf("Expected ErrPoolRootInvalid, got %v", err)
		}
	})

	t.Run("RootIsFile", func(t *testing.T) {
		file := filepath.Join(root, "file")
		if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := reg.CreatePool(ctx, &models.StoragePool{Name: "file", Path: file})
		if !errors.Is(err, ErrPoolRootInvalid) {
			t.Errorf("Expected ErrPoolRootInvalid, got %v", err)
		}
	})

	t.Run("RelativeRoot", func(t *testing.T) {
		_, err := reg.CreatePool(ctx, &models.StoragePool{Name: "rel", Path: "srv/data"})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
		if !IsValidationError(err) {
			t.Error("IsValidationError should report validation failures")
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		_, err := reg.CreatePool(ctx, &models.StoragePool{Name: "data", Path: root})
		if !errors.Is(err, models.ErrDuplicatePool) {
			t.Errorf("Expected ErrDuplicatePool, got %v", err)
		}
	})
}

func TestUpdatePool(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)

	edit := *pool
	edit.Description = "primary"
	edit.DefaultUserQuota = 1 << 20
	updated, err := reg.UpdatePool(ctx, &edit)
	if err != nil {
		t.Fatalf("UpdatePool failed: %v", err)
	}
	if updated.DefaultUserQuota != 1<<20 {
		t.Errorf("Expected quota to be updated, got %d", updated.DefaultUserQuota)
	}

	mustCreateZone(t, reg, pool.ID, "team", models.ZoneTypeGroup)
	move := *updated
	move.Path = t.TempDir()
	if _, err := reg.UpdatePool(ctx, &move); !errors.Is(err, models.ErrPoolHasZones) {
		t.Errorf("Expected ErrPoolHasZones when moving a pool with zones, got %v", err)
	}
}

func TestCreateZone(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)

	zone := mustCreateZone(t, reg, pool.ID, "users", models.ZoneTypePersonal)

	info, err := os.Stat(filepath.Join(root, "users"))
	if err != nil || !info.IsDir() {
		t.Fatalf("Expected zone root directory to be created: %v", err)
	}

	snap := reg.Snapshot()
	if _, ok := snap.ZoneByName("users"); !ok {
		t.Error("Zone not found by name in snapshot")
	}
	z, p, ok := snap.ZoneWithPool(zone.ID)
	if !ok || z.ID != zone.ID || p.ID != pool.ID {
		t.Error("ZoneWithPool did not return the zone and its pool")
	}

	t.Run("PathEscape", func(t *testing.T) {
		_, err := reg.CreateZone(ctx, &models.ShareZone{PoolID: pool.ID, Name: "evil", Path: "../../etc", Enabled: true})
		if !errors.Is(err, ErrZonePathEscape) {
			t.Errorf("Expected ErrZonePathEscape, got %v", err)
		}
	})

	t.Run("SymlinkEscape", func(t *testing.T) {
		outside := t.TempDir()
		if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		_, err := reg.CreateZone(ctx, &models.ShareZone{PoolID: pool.ID, Name: "linked", Path: "link", Enabled: true})
		if !errors.Is(err, ErrZonePathEscape) {
			t.Errorf("Expected ErrZonePathEscape, got %v", err)
		}
	})

	t.Run("UnknownPool", func(t *testing.T) {
		_, err := reg.CreateZone(ctx, &models.ShareZone{PoolID: "missing", Name: "x", Path: "x"})
		if !errors.Is(err, models.ErrPoolNotFound) {
			t.Errorf("Expected ErrPoolNotFound, got %v", err)
		}
	})
}

func TestPoolDisableCascade(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)
	zone := mustCreateZone(t, reg, pool.ID, "team", models.ZoneTypeGroup)

	if _, err := reg.SetPoolEnabled(ctx, pool.ID, false, false); !errors.Is(err, models.ErrPoolHasEnabledZones) {
		t.Fatalf("Expected ErrPoolHasEnabledZones, got %v", err)
	}

	n, err := reg.SetPoolEnabled(ctx, pool.ID, false, true)
	if err != nil {
		t.Fatalf("Cascade disable failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 zone disabled, got %d", n)
	}

	snap := reg.Snapshot()
	p, _ := snap.Pool(pool.ID)
	z, _ := snap.Zone(zone.ID)
	if p.Enabled || z.Enabled {
		t.Error("Expected pool and zone to be disabled in the snapshot")
	}

	edit := *z
	edit.Enabled = true
	if _, err := reg.UpdateZone(ctx, &edit); !errors.Is(err, ErrPoolDisabled) {
		t.Errorf("Expected ErrPoolDisabled when enabling a zone in a disabled pool, got %v", err)
	}
}

func TestDeletePool(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)
	zone := mustCreateZone(t, reg, pool.ID, "team", models.ZoneTypeGroup)

	if err := reg.DeletePool(ctx, pool.ID); !errors.Is(err, models.ErrPoolHasZones) {
		t.Fatalf("Expected ErrPoolHasZones, got %v", err)
	}

	if err := reg.DeleteZone(ctx, zone.ID); err != nil {
		t.Fatalf("DeleteZone failed: %v", err)
	}
	if _, ok := reg.Snapshot().ZoneByName("team"); ok {
		t.Error("Deleted zone still in snapshot")
	}

	if err := reg.DeletePool(ctx, pool.ID); err != nil {
		t.Fatalf("DeletePool failed: %v", err)
	}
	if _, ok := reg.Snapshot().Pool(pool.ID); ok {
		t.Error("Deleted pool still in snapshot")
	}
}

func TestPermissions(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)
	zone := mustCreateZone(t, reg, pool.ID, "team", models.ZoneTypeGroup)

	perm, err := reg.GrantPermission(ctx, &models.Permission{
		ZoneID:    zone.ID,
		Path:      "/docs/./drafts/",
		GroupName: "eng",
		Kind:      models.KindWrite,
	})
	if err != nil {
		t.Fatalf("GrantPermission failed: %v", err)
	}
	if perm.Path != "/docs/drafts" {
		t.Errorf("Expected normalized path /docs/drafts, got %s", perm.Path)
	}

	perms := reg.Snapshot().Permissions(zone.ID)
	if len(perms) != 1 {
		t.Fatalf("Expected 1 permission in snapshot, got %d", len(perms))
	}

	_, err = reg.GrantPermission(ctx, &models.Permission{ZoneID: zone.ID, Path: "/../x", Username: "a", Kind: models.KindRead})
	if !errors.Is(err, ErrInvalidPermission) {
		t.Errorf("Expected ErrInvalidPermission for escaping path, got %v", err)
	}

	_, err = reg.GrantPermission(ctx, &models.Permission{ZoneID: zone.ID, Path: "/x", Kind: models.KindRead})
	if !errors.Is(err, ErrInvalidPermission) {
		t.Errorf("Expected ErrInvalidPermission without subject, got %v", err)
	}

	if err := reg.RevokePermission(ctx, perm.ID); err != nil {
		t.Fatalf("RevokePermission failed: %v", err)
	}
	if n := len(reg.Snapshot().Permissions(zone.ID)); n != 0 {
		t.Errorf("Expected no permissions after revoke, got %d", n)
	}
}

func TestUpdateCapacity(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)

	if err := reg.UpdateCapacity(ctx, pool.ID, 1000, 400, 600); err != nil {
		t.Fatalf("UpdateCapacity failed: %v", err)
	}
	p, _ := reg.Snapshot().Pool(pool.ID)
	if p.TotalSpace != 1000 || p.UsedSpace != 400 || p.FreeSpace != 600 {
		t.Errorf("Unexpected capacity: %+v", p)
	}

	if err := reg.UpdateCapacity(ctx, "missing", 1, 1, 0); !errors.Is(err, models.ErrPoolNotFound) {
		t.Errorf("Expected ErrPoolNotFound, got %v", err)
	}
}

func TestReloadPicksUpStoreChanges(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)

	// Write behind the registry's back.
	if _, err := reg.store.CreateZone(ctx, &models.ShareZone{PoolID: pool.ID, Name: "direct", Path: "direct", ZoneType: models.ZoneTypeGroup}); err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Snapshot().ZoneByName("direct"); ok {
		t.Fatal("Zone visible before reload")
	}

	before := reg.Snapshot().Version
	if err := reg.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, ok := reg.Snapshot().ZoneByName("direct"); !ok {
		t.Error("Zone not visible after reload")
	}
	if reg.Snapshot().Version <= before {
		t.Error("Reload did not advance the snapshot version")
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	reg, root := newTestRegistry(t)
	pool := mustCreatePool(t, reg, root)

	old := reg.Snapshot()
	mustCreateZone(t, reg, pool.ID, "team", models.ZoneTypeGroup)

	if len(old.Zones()) != 0 {
		t.Error("Old snapshot observed a later write")
	}
	if len(reg.Snapshot().Zones()) != 1 {
		t.Error("New snapshot missing the zone")
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := reg.Snapshot()
				for _, z := range snap.Zones() {
					if _, ok := snap.Pool(z.PoolID); !ok {
						t.Errorf("Zone %s references a pool missing from the same snapshot", z.Name)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 10; i++ {
		if err := reg.UpdateCapacity(ctx, pool.ID, int64(i+1)*100, 0, int64(i+1)*100); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestUserZones(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)

	mustCreateZone(t, reg, pool.ID, "public", models.ZoneTypePublic)
	_, err := reg.CreateZone(ctx, &models.ShareZone{
		PoolID: pool.ID, Name: "eng", Path: "eng", ZoneType: models.ZoneTypeGroup,
		Enabled: true, AllowedGroups: models.StringList{"eng"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = reg.CreateZone(ctx, &models.ShareZone{
		PoolID: pool.ID, Name: "blocked", Path: "blocked", ZoneType: models.ZoneTypeGroup,
		Enabled: true, Browsable: true, DenyUsers: models.StringList{"alice"},
	})
	if err != nil {
		t.Fatal(err)
	}

	names := func(zones []*models.ShareZone) []string {
		out := make([]string, 0, len(zones))
		for _, z := range zones {
			out = append(out, z.Name)
		}
		return out
	}

	alice := identity.Identity{Username: "alice", Groups: []string{"eng"}}
	bob := identity.Identity{Username: "bob"}
	admin := identity.Identity{Username: "root", IsAdmin: true}

	if got := names(reg.UserZones(alice)); len(got) != 2 || got[0] != "eng" || got[1] != "public" {
		t.Errorf("alice: unexpected zones %v", got)
	}
	if got := names(reg.UserZones(bob)); len(got) != 2 || got[0] != "blocked" || got[1] != "public" {
		t.Errorf("bob: unexpected zones %v", got)
	}
	if got := reg.UserZones(admin); len(got) != 3 {
		t.Errorf("admin: expected all 3 zones, got %d", len(got))
	}

	if _, err := reg.SetPoolEnabled(ctx, pool.ID, false, true); err != nil {
		t.Fatal(err)
	}
	if got := reg.UserZones(bob); len(got) != 0 {
		t.Errorf("Expected no zones in a disabled pool, got %v", names(got))
	}
}

func TestExpiringGrantStoredInUTC(t *testing.T) {
	reg, root := newTestRegistry(t)
	ctx := context.Background()
	pool := mustCreatePool(t, reg, root)
	zone := mustCreateZone(t, reg, pool.ID, "team", models.ZoneTypeGroup)

	loc := time.FixedZone("UTC+2", 2*3600)
	expires := time.Now().In(loc).Add(time.Hour)
	perm, err := reg.GrantPermission(ctx, &models.Permission{ZoneID: zone.ID, Path: "/", Username: "alice", Kind: models.KindRead, ExpiresAt: &expires})
	if err != nil {
		t.Fatal(err)
	}
	if perm.ExpiresAt == nil || !perm.ExpiresAt.Equal(expires) {
		t.Errorf("Expected expiry %v, got %v", expires, perm.ExpiresAt)
	}
}

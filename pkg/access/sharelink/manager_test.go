package sharelink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/identity"
	"github.com/marmos91/fileserv/pkg/registry"
)

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "fake:" + password, nil }
func (fakeHasher) Verify(password, hash string) bool    { return hash == "fake:"+password }

type clock struct{ now atomic.Pointer[time.Time] }

func newClock() *clock {
	c := &clock{}
	c.set(time.Now().UTC().Truncate(time.Second))
	return c
}

func (c *clock) set(t time.Time)         { c.now.Store(&t) }
func (c *clock) get() time.Time          { return *c.now.Load() }
func (c *clock) advance(d time.Duration) { c.set(c.get().Add(d)) }

type fixture struct {
	store   *store.GORMStore
	reg     *registry.Registry
	mgr     *Manager
	clock   *clock
	zone    *models.ShareZone
	zoneDir string
}

var (
	alice = identity.Identity{Username: "alice"}
	bob   = identity.Identity{Username: "bob"}
	admin = identity.Identity{Username: "root", IsAdmin: true}
)

func newFixture(t *testing.T, mutate func(z *models.ShareZone)) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "controlplane.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg, err := registry.New(ctx, st)
	require.NoError(t, err)

	root := t.TempDir()
	pool, err := reg.CreatePool(ctx, &models.StoragePool{Name: "data", Path: root, Enabled: true})
	require.NoError(t, err)

	z := &models.ShareZone{
		PoolID:         pool.ID,
		Name:           "team",
		Path:           "team",
		ZoneType:       models.ZoneTypeGroup,
		Enabled:        true,
		AllowWrite:     true,
		AllowWebShares: true,
	}
	if mutate != nil {
		mutate(z)
	}
	zone, err := reg.CreateZone(ctx, z)
	require.NoError(t, err)

	zoneDir := filepath.Join(root, "team")
	require.NoError(t, os.MkdirAll(filepath.Join(zoneDir, "docs", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(zoneDir, "docs", "report.pdf"), []byte("pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(zoneDir, "docs", "sub", "a.txt"), []byte("a"), 0o644))

	c := newClock()
	mgr := NewManager(st, reg, Config{Hasher: fakeHasher{}, Now: c.get})
	return &fixture{store: st, reg: reg, mgr: mgr, clock: c, zone: zone, zoneDir: zoneDir}
}

func (f *fixture) create(t *testing.T, req CreateRequest) (*models.ShareLink, string) {
	t.Helper()
	if req.ZoneID == "" {
		req.ZoneID = f.zone.ID
	}
	link, token, err := f.mgr.Create(context.Background(), alice, req)
	require.NoError(t, err)
	return link, token
}

func download(p string) CreateRequest {
	return CreateRequest{
		TargetPath:   p,
		TargetType:   models.TargetFile,
		Capabilities: models.LinkCapabilities{AllowDownload: true},
	}
}

func folder(p string, caps models.LinkCapabilities) CreateRequest {
	return CreateRequest{TargetPath: p, TargetType: models.TargetFolder, Capabilities: caps}
}

func requireCode(t *testing.T, err error, code accesserrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, accesserrors.CodeOf(err), "got %v", err)
}

// ============================================================================
// Creation
// ============================================================================

func TestCreateStoresOnlyTokenHash(t *testing.T) {
	f := newFixture(t, nil)

	link, token := f.create(t, download("/docs/report.pdf"))

	assert.Len(t, token, 43)
	assert.Equal(t, HashToken(token), link.TokenHash)
	assert.NotContains(t, link.TokenHash, token)
	assert.Equal(t, "report.pdf", link.TargetName)
	assert.Equal(t, "alice", link.Owner)
	assert.True(t, link.Enabled)

	stored, err := f.store.GetLink(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, link.TokenHash, stored.TokenHash)

	resolved, err := f.mgr.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, link.ID, resolved.ID)
}

func TestCreateTokensAreUnique(t *testing.T) {
	f := newFixture(t, nil)

	seen := make(map[string]bool)
	for range 20 {
		_, token := f.create(t, download("/docs/report.pdf"))
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestCreateRequiresOwnerAccess(t *testing.T) {
	t.Run("not on allow list", func(t *testing.T) {
		f := newFixture(t, func(z *models.ShareZone) { z.AllowedUsers = models.StringList{"bob"} })
		_, _, err := f.mgr.Create(context.Background(), alice, CreateRequest{
			ZoneID: f.zone.ID, TargetPath: "/docs/report.pdf", TargetType: models.TargetFile,
			Capabilities: models.LinkCapabilities{AllowDownload: true},
		})
		requireCode(t, err, accesserrors.ErrNotAllowed)
	})

	t.Run("upload needs write", func(t *testing.T) {
		f := newFixture(t, func(z *models.ShareZone) { z.AllowWrite = false })
		req := folder("/docs", models.LinkCapabilities{AllowUpload: true})
		req.ZoneID = f.zone.ID
		_, _, err := f.mgr.Create(context.Background(), alice, req)
		requireCode(t, err, accesserrors.ErrNoGrant)
	})

	t.Run("unknown zone is hidden from users", func(t *testing.T) {
		f := newFixture(t, nil)
		req := download("/docs/report.pdf")
		req.ZoneID = "missing"
		_, _, err := f.mgr.Create(context.Background(), alice, req)
		requireCode(t, err, accesserrors.ErrNotAllowed)

		_, _, err = f.mgr.Create(context.Background(), admin, req)
		requireCode(t, err, accesserrors.ErrZoneNotFound)
	})
}

func TestCreateRequiresWebSharing(t *testing.T) {
	f := newFixture(t, func(z *models.ShareZone) { z.AllowWebShares = false })

	req := download("/docs/report.pdf")
	req.ZoneID = f.zone.ID
	_, _, err := f.mgr.Create(context.Background(), alice, req)
	requireCode(t, err, accesserrors.ErrCapabilityDenied)
}

func TestCreateAppliesWebOptions(t *testing.T) {
	web := func(z *models.ShareZone) {
		z.WebOptions = models.WebOptions{
			Enabled:         true,
			PublicEnabled:   true,
			MaxLinkExpiry:   7,
			AllowDownload:   true,
			AllowListing:    true,
			RequirePassword: true,
		}
	}

	t.Run("expiry clamped", func(t *testing.T) {
		f := newFixture(t, web)
		far := f.clock.get().Add(30 * 24 * time.Hour)
		req := download("/docs/report.pdf")
		req.ExpiresAt = &far
		req.Password = "secret"

		link, _ := f.create(t, req)
		require.NotNil(t, link.ExpiresAt)
		assert.Equal(t, f.clock.get().Add(7*24*time.Hour), *link.ExpiresAt)
	})

	t.Run("no expiry gets the ceiling", func(t *testing.T) {
		f := newFixture(t, web)
		req := download("/docs/report.pdf")
		req.Password = "secret"

		link, _ := f.create(t, req)
		require.NotNil(t, link.ExpiresAt)
		assert.Equal(t, f.clock.get().Add(7*24*time.Hour), *link.ExpiresAt)
	})

	t.Run("password required", func(t *testing.T) {
		f := newFixture(t, web)
		req := download("/docs/report.pdf")
		req.ZoneID = f.zone.ID
		_, _, err := f.mgr.Create(context.Background(), alice, req)
		requireCode(t, err, accesserrors.ErrInvalidPassword)
	})

	t.Run("capability outside zone bound", func(t *testing.T) {
		f := newFixture(t, web)
		req := folder("/docs", models.LinkCapabilities{AllowDownload: true, AllowUpload: true})
		req.ZoneID = f.zone.ID
		req.Password = "secret"
		_, _, err := f.mgr.Create(context.Background(), alice, req)
		requireCode(t, err, accesserrors.ErrCapabilityDenied)
	})

	t.Run("public links off", func(t *testing.T) {
		f := newFixture(t, func(z *models.ShareZone) {
			web(z)
			z.WebOptions.PublicEnabled = false
		})
		req := download("/docs/report.pdf")
		req.ZoneID = f.zone.ID
		req.Password = "secret"
		_, _, err := f.mgr.Create(context.Background(), alice, req)
		requireCode(t, err, accesserrors.ErrCapabilityDenied)
	})
}

func TestCreateValidatesRequest(t *testing.T) {
	f := newFixture(t, nil)
	past := f.clock.get().Add(-time.Hour)

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"no capabilities", CreateRequest{TargetPath: "/docs/report.pdf", TargetType: models.TargetFile}},
		{"bad target type", CreateRequest{TargetPath: "/docs", TargetType: "blob", Capabilities: models.LinkCapabilities{AllowDownload: true}}},
		{"listing a file", CreateRequest{TargetPath: "/docs/report.pdf", TargetType: models.TargetFile, Capabilities: models.LinkCapabilities{AllowListing: true}}},
		{"negative limit", CreateRequest{TargetPath: "/docs/report.pdf", TargetType: models.TargetFile, MaxViews: -1, Capabilities: models.LinkCapabilities{AllowDownload: true}}},
		{"expiry in the past", CreateRequest{TargetPath: "/docs/report.pdf", TargetType: models.TargetFile, ExpiresAt: &past, Capabilities: models.LinkCapabilities{AllowDownload: true}}},
		{"missing target", download("/docs/missing.pdf")},
		{"type mismatch", download("/docs")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.ZoneID = f.zone.ID
			_, _, err := f.mgr.Create(context.Background(), alice, tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	t.Run("escaping target", func(t *testing.T) {
		req := download("/../../etc/passwd")
		req.ZoneID = f.zone.ID
		_, _, err := f.mgr.Create(context.Background(), alice, req)
		requireCode(t, err, accesserrors.ErrPathEscape)
	})
}

// ============================================================================
// Resolution and state
// ============================================================================

func TestResolveStates(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.mgr.Resolve(ctx, "nope")
		requireCode(t, err, accesserrors.ErrLinkNotFound)
		_, err = f.mgr.Resolve(ctx, "")
		requireCode(t, err, accesserrors.ErrLinkNotFound)
	})

	t.Run("expired is permanent", func(t *testing.T) {
		f := newFixture(t, nil)
		exp := f.clock.get().Add(time.Hour)
		req := download("/docs/report.pdf")
		req.ExpiresAt = &exp
		_, token := f.create(t, req)

		f.clock.advance(time.Hour)
		_, err := f.mgr.Resolve(ctx, token)
		requireCode(t, err, accesserrors.ErrLinkExpired)
		_, err = f.mgr.RecordView(ctx, token)
		requireCode(t, err, accesserrors.ErrLinkExpired)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, nil)
		link, token := f.create(t, download("/docs/report.pdf"))

		require.NoError(t, f.mgr.Disable(ctx, alice, link.ID))
		_, err := f.mgr.Resolve(ctx, token)
		requireCode(t, err, accesserrors.ErrLinkDisabled)
	})

	t.Run("default expiry", func(t *testing.T) {
		f := newFixture(t, nil)
		f.mgr.expiry = 24 * time.Hour
		link, _ := f.create(t, download("/docs/report.pdf"))
		require.NotNil(t, link.ExpiresAt)
		assert.Equal(t, f.clock.get().Add(24*time.Hour), *link.ExpiresAt)
	})
}

func TestVerifyPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	req := download("/docs/report.pdf")
	req.Password = "hunter2"
	link, token := f.create(t, req)
	assert.Equal(t, "fake:hunter2", link.PasswordHash)

	ok, err := f.mgr.VerifyPassword(ctx, token, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.mgr.VerifyPassword(ctx, token, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, open := f.create(t, download("/docs/report.pdf"))
	ok, err = f.mgr.VerifyPassword(ctx, open, "anything")
	require.NoError(t, err)
	assert.True(t, ok)
}

// ============================================================================
// Counters
// ============================================================================

func TestRecordViewCountsUpToLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	req := download("/docs/report.pdf")
	req.MaxViews = 2
	_, token := f.create(t, req)

	link, err := f.mgr.RecordView(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), link.ViewCount)
	require.NotNil(t, link.LastAccessed)

	link, err = f.mgr.RecordView(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), link.ViewCount)

	_, err = f.mgr.RecordView(ctx, token)
	requireCode(t, err, accesserrors.ErrLinkLimitReached)

	// Exhausted views block downloads too.
	_, err = f.mgr.RecordDownload(ctx, token)
	requireCode(t, err, accesserrors.ErrLinkLimitReached)
}

func TestConcurrentDownloadsNeverOverCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	req := download("/docs/report.pdf")
	req.MaxDownloads = 3
	link, token := f.create(t, req)

	const workers = 20
	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		exceeded atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.mgr.RecordDownload(ctx, token)
			switch {
			case err == nil:
				ok.Add(1)
			case accesserrors.HasCode(err, accesserrors.ErrLinkLimitReached):
				exceeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), ok.Load())
	assert.Equal(t, int32(workers-3), exceeded.Load())

	stored, err := f.store.GetLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.DownloadCount)
}

// ============================================================================
// Authorization
// ============================================================================

func TestAuthorizeFileLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, token := f.create(t, download("/docs/report.pdf"))

	target, err := f.mgr.Authorize(ctx, Access{Token: token, Capability: models.CapDownload})
	require.NoError(t, err)
	assert.Equal(t, "/docs/report.pdf", target.Path)
	assert.Equal(t, f.zone.ID, target.ZoneID)
	assert.Equal(t, "alice", target.Owner)

	_, err = f.mgr.Authorize(ctx, Access{Token: token, SubPath: "/other", Capability: models.CapDownload})
	requireCode(t, err, accesserrors.ErrCapabilityDenied)

	_, err = f.mgr.Authorize(ctx, Access{Token: token, Capability: models.CapPreview})
	requireCode(t, err, accesserrors.ErrCapabilityDenied)
}

func TestAuthorizeFolderLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, token := f.create(t, folder("/docs", models.LinkCapabilities{AllowDownload: true, AllowListing: true}))

	tests := []struct {
		sub  string
		want string
		code accesserrors.ErrorCode
	}{
		{"", "/docs", 0},
		{"/", "/docs", 0},
		{"/sub/a.txt", "/docs/sub/a.txt", 0},
		{"sub/../report.pdf", "/docs/report.pdf", 0},
		{"/../secret", "", accesserrors.ErrPathEscape},
		{"/a\x00b", "", accesserrors.ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.sub, "\x00", "NUL"), func(t *testing.T) {
			target, err := f.mgr.Authorize(ctx, Access{Token: token, SubPath: tt.sub, Capability: models.CapDownload})
			if tt.code != 0 {
				requireCode(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, target.Path)
		})
	}
}

func TestAuthorizeChecksPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	req := download("/docs/report.pdf")
	req.Password = "pw"
	_, token := f.create(t, req)

	_, err := f.mgr.Authorize(ctx, Access{Token: token, Capability: models.CapDownload})
	requireCode(t, err, accesserrors.ErrInvalidPassword)
	_, err = f.mgr.Authorize(ctx, Access{Token: token, Password: "bad", Capability: models.CapDownload})
	requireCode(t, err, accesserrors.ErrInvalidPassword)
	_, err = f.mgr.Authorize(ctx, Access{Token: token, Password: "pw", Capability: models.CapDownload})
	assert.NoError(t, err)
}

// ============================================================================
// Management
// ============================================================================

func TestOwnershipAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	link, token := f.create(t, download("/docs/report.pdf"))

	requireCode(t, f.mgr.Disable(ctx, bob, link.ID), accesserrors.ErrLinkNotFound)
	requireCode(t, f.mgr.Delete(ctx, bob, link.ID), accesserrors.ErrLinkNotFound)

	mine, err := f.mgr.List(ctx, alice, false)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := f.mgr.List(ctx, bob, true)
	require.NoError(t, err)
	assert.Empty(t, theirs)
	all, err := f.mgr.List(ctx, admin, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, f.mgr.Delete(ctx, admin, link.ID))
	_, err = f.mgr.Resolve(ctx, token)
	requireCode(t, err, accesserrors.ErrLinkNotFound)

	var count int64
	require.NoError(t, f.store.DB().Unscoped().Model(&models.ShareLink{}).Where("id = ?", link.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "soft deleted link is retained")
}

func TestReap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	exp := f.clock.get().Add(time.Minute)
	expiring := download("/docs/report.pdf")
	expiring.ExpiresAt = &exp
	f.create(t, expiring)
	_, keep := f.create(t, download("/docs/report.pdf"))

	n, err := f.mgr.Reap(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.advance(time.Hour)
	n, err = f.mgr.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.mgr.Resolve(ctx, keep)
	assert.NoError(t, err)
}

func TestRunReaperDisabledByDefault(t *testing.T) {
	f := newFixture(t, nil)
	done := make(chan struct{})
	go func() {
		f.mgr.RunReaper(context.Background(), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunReaper with zero interval should return immediately")
	}
}

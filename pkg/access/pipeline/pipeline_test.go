package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/access/quota"
	"github.com/marmos91/fileserv/pkg/access/resolver"
	"github.com/marmos91/fileserv/pkg/access/sharelink"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/identity"
	"github.com/marmos91/fileserv/pkg/registry"
)

var (
	alice = identity.Identity{Username: "alice"}
	bob   = identity.Identity{Username: "bob"}
	admin = identity.Identity{Username: "root", IsAdmin: true}
)

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "fake:" + password, nil }
func (fakeHasher) Verify(password, hash string) bool    { return hash == "fake:"+password }

type env struct {
	reg     *registry.Registry
	tracker *quota.Tracker
	links   *sharelink.Manager
	p       *Pipeline
	pool    *models.StoragePool
	root    string
}

func newEnv(t *testing.T, pool *models.StoragePool) *env {
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
	if pool == nil {
		pool = &models.StoragePool{}
	}
	pool.Name, pool.Path, pool.Enabled = "data", root, true
	created, err := reg.CreatePool(ctx, pool)
	require.NoError(t, err)

	tracker, err := quota.NewTracker(ctx, quota.RegistryLimits(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })

	links := sharelink.NewManager(st, reg, sharelink.Config{Hasher: fakeHasher{}})
	return &env{
		reg:     reg,
		tracker: tracker,
		links:   links,
		p:       New(reg, tracker, WithLinks(links)),
		pool:    created,
		root:    root,
	}
}

func (e *env) zone(t *testing.T, z models.ShareZone) *models.ShareZone {
	t.Helper()
	z.PoolID = e.pool.ID
	if z.Path == "" {
		z.Path = z.Name
	}
	z.Enabled = true
	zone, err := e.reg.CreateZone(context.Background(), &z)
	require.NoError(t, err)
	return zone
}

func (e *env) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func requireCode(t *testing.T, err error, code accesserrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, accesserrors.CodeOf(err), "got %v", err)
}

// ============================================================================
// End-to-end scenarios
// ============================================================================

func TestPersonalZoneIsolation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	users := e.zone(t, models.ShareZone{Name: "users", ZoneType: models.ZoneTypePersonal, AutoProvision: true})

	grant, err := e.p.AuthorizeAndReserve(ctx, Request{Actor: alice, ZoneID: users.ID, Path: "/alice/report.pdf", Kind: models.KindRead})
	require.NoError(t, err)
	assert.Equal(t, "/alice/report.pdf", grant.Resolved.Virtual)
	assert.Nil(t, grant.Reservation)

	info, err := os.Stat(filepath.Join(e.root, "users", "alice"))
	require.NoError(t, err, "home is auto-provisioned")
	assert.True(t, info.IsDir())

	_, err = e.p.AuthorizeAndReserve(ctx, Request{Actor: bob, ZoneID: users.ID, Path: "/alice/report.pdf", Kind: models.KindRead})
	requireCode(t, err, accesserrors.ErrNotAllowed)

	grant, err = e.p.AuthorizeAndReserve(ctx, Request{Actor: alice, ZoneID: "users", Path: "/alice/new.txt", Kind: models.KindWrite, SizeHint: 10})
	require.NoError(t, err, "own home is writable")
	require.NotNil(t, grant.Reservation)
	require.NoError(t, grant.Commit(10))
	assert.Equal(t, int64(10), e.tracker.Usage(quota.UserSubject("alice"), e.pool.ID).Used)
}

func TestReadOnlyPublicZone(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	public := e.zone(t, models.ShareZone{Name: "public", ZoneType: models.ZoneTypePublic, ReadOnly: true, AllowWrite: true})
	e.write(t, "public/readme.txt", "hi")

	for _, actor := range []identity.Identity{alice, bob} {
		grant, err := e.p.AuthorizeAndReserve(ctx, Request{Actor: actor, ZoneID: public.ID, Path: "/readme.txt", Kind: models.KindRead})
		require.NoError(t, err)
		f, err := resolver.Open(grant.Resolved)
		require.NoError(t, err)
		_ = f.Close()

		_, err = e.p.AuthorizeAndReserve(ctx, Request{Actor: actor, ZoneID: public.ID, Path: "/readme.txt", Kind: models.KindWrite, SizeHint: 1})
		requireCode(t, err, accesserrors.ErrReadOnlyZone)
		_, err = e.p.AuthorizeAndReserve(ctx, Request{Actor: actor, ZoneID: public.ID, Path: "/readme.txt", Kind: models.KindDelete})
		requireCode(t, err, accesserrors.ErrReadOnlyZone)
	}
	assert.Zero(t, e.tracker.Pending(), "denied writes leave no reservation")
}

func TestLinkSingleDownloadRace(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	team := e.zone(t, models.ShareZone{Name: "team", AllowWebShares: true})
	e.write(t, "team/report.pdf", "pdf")

	_, token, err := e.links.Create(ctx, alice, sharelink.CreateRequest{
		ZoneID:       team.ID,
		TargetPath:   "/report.pdf",
		TargetType:   models.TargetFile,
		Capabilities: models.LinkCapabilities{AllowDownload: true},
		MaxDownloads: 1,
	})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		ok      atomic.Int32
		limited atomic.Int32
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.p.AuthorizeLink(ctx, LinkRequest{Token: token, Capability: models.CapDownload})
			switch {
			case err == nil:
				ok.Add(1)
			case accesserrors.HasCode(err, accesserrors.ErrLinkLimitReached):
				limited.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), limited.Load())
}

func TestPathEscapeRegardlessOfActor(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	zones := []*models.ShareZone{
		e.zone(t, models.ShareZone{Name: "users", ZoneType: models.ZoneTypePersonal}),
		e.zone(t, models.ShareZone{Name: "public", ZoneType: models.ZoneTypePublic, AllowWrite: true}),
	}
	_, err := e.reg.GrantPermission(ctx, &models.Permission{ZoneID: zones[1].ID, Path: "/", Kind: models.KindDelete, Username: "alice"})
	require.NoError(t, err)

	for _, z := range zones {
		for _, actor := range []identity.Identity{alice, admin} {
			for _, kind := range []models.PermissionKind{models.KindRead, models.KindWrite} {
				_, err := e.p.AuthorizeAndReserve(ctx, Request{Actor: actor, ZoneID: z.ID, Path: "/../../etc/passwd", Kind: kind})
				requireCode(t, err, accesserrors.ErrPathEscape)
			}
		}
	}
}

// ============================================================================
// Stages
// ============================================================================

func TestSymlinkEscapeIsDenied(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	team := e.zone(t, models.ShareZone{Name: "team"})
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(e.root, "team", "evil")))

	_, err := e.p.AuthorizeAndReserve(ctx, Request{Actor: admin, ZoneID: team.ID, Path: "/evil/secret", Kind: models.KindRead})
	requireCode(t, err, accesserrors.ErrPathEscape)
}

func TestUnknownZoneIsHidden(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	e.zone(t, models.ShareZone{Name: "secret", AllowedUsers: models.StringList{"bob"}})

	_, missingErr := e.p.AuthorizeAndReserve(ctx, Request{Actor: alice, ZoneID: "missing", Path: "/", Kind: models.KindRead})
	_, deniedErr := e.p.AuthorizeAndReserve(ctx, Request{Actor: alice, ZoneID: "secret", Path: "/", Kind: models.KindRead})
	requireCode(t, missingErr, accesserrors.ErrNotAllowed)
	requireCode(t, deniedErr, accesserrors.ErrNotAllowed)
	assert.Equal(t, missingErr.Error(), deniedErr.Error())

	_, err := e.p.AuthorizeAndReserve(ctx, Request{Actor: admin, ZoneID: "missing", Path: "/", Kind: models.KindRead})
	requireCode(t, err, accesserrors.ErrZoneNotFound)
}

func TestDisabledPool(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	team := e.zone(t, models.ShareZone{Name: "team"})

	_, err := e.reg.SetPoolEnabled(ctx, e.pool.ID, false, true)
	require.NoError(t, err)

	_, err = e.p.AuthorizeAndReserve(ctx, Request{Actor: admin, ZoneID: team.ID, Path: "/", Kind: models.KindRead})
	requireCode(t, err, accesserrors.ErrZoneDisabled)
	_, err = e.p.AuthorizeAndReserve(ctx, Request{Actor: alice, ZoneID: team.ID, Path: "/", Kind: models.KindRead})
	requireCode(t, err, accesserrors.ErrNotAllowed)
}

func TestWriteRules(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &models.StoragePool{
		MaxFileSize:      100,
		DeniedTypes:      models.StringList{".exe"},
		DefaultUserQuota: 150,
	})
	team := e.zone(t, models.ShareZone{Name: "team", AllowWrite: true})

	req := func(p string, size int64) Request {
		return Request{Actor: alice, ZoneID: team.ID, Path: p, Kind: models.KindWrite, SizeHint: size}
	}

	_, err := e.p.AuthorizeAndReserve(ctx, req("/setup.EXE", 1))
	requireCode(t, err, accesserrors.ErrFileTypeDenied)

	_, err = e.p.AuthorizeAndReserve(ctx, req("/big.bin", 101))
	requireCode(t, err, accesserrors.ErrFileTooLarge)

	dir := req("/photos.exe", 0)
	dir.Directory = true
	_, err = e.p.AuthorizeAndReserve(ctx, dir)
	assert.NoError(t, err, "directories skip file rules")

	g1, err := e.p.AuthorizeAndReserve(ctx, req("/a.bin", 100))
	require.NoError(t, err)
	_, err = e.p.AuthorizeAndReserve(ctx, req("/b.bin", 60))
	requireCode(t, err, accesserrors.ErrQuotaExceeded)

	g1.Abort()
	g2, err := e.p.AuthorizeAndReserve(ctx, req("/b.bin", 60))
	require.NoError(t, err)
	require.NoError(t, g2.Commit(60))

	require.NoError(t, e.reg.UpdateCapacity(ctx, e.pool.ID, 1000, 990, 10))
	_, err = e.p.AuthorizeAndReserve(ctx, req("/c.bin", 20))
	requireCode(t, err, accesserrors.ErrInsufficientCapacity)
}

func TestRecordDeletionCreditsQuota(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &models.StoragePool{DefaultUserQuota: 100})
	team := e.zone(t, models.ShareZone{Name: "team", AllowWrite: true})

	g, err := e.p.AuthorizeAndReserve(ctx, Request{Actor: alice, ZoneID: team.ID, Path: "/a", Kind: models.KindWrite, SizeHint: 100})
	require.NoError(t, err)
	require.NoError(t, g.Commit(100))

	_, err = e.p.AuthorizeAndReserve(ctx, Request{Actor: alice, ZoneID: team.ID, Path: "/b", Kind: models.KindWrite, SizeHint: 1})
	requireCode(t, err, accesserrors.ErrQuotaExceeded)

	require.NoError(t, e.p.RecordDeletion(ctx, g.Subject, team.ID, 100))
	_, err = e.p.AuthorizeAndReserve(ctx, Request{Actor: alice, ZoneID: team.ID, Path: "/b", Kind: models.KindWrite, SizeHint: 1})
	assert.NoError(t, err)

	requireCode(t, e.p.RecordDeletion(ctx, g.Subject, "missing", 1), accesserrors.ErrZoneNotFound)
}

func TestReservationReleasedOnCancel(t *testing.T) {
	e := newEnv(t, &models.StoragePool{DefaultUserQuota: 100})
	team := e.zone(t, models.ShareZone{Name: "team", AllowWrite: true})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := e.p.AuthorizeAndReserve(ctx, Request{Actor: alice, ZoneID: team.ID, Path: "/a", Kind: models.KindWrite, SizeHint: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, e.tracker.Pending())

	cancel()
	assert.Eventually(t, func() bool { return e.tracker.Pending() == 0 }, timeout, tick)
}

// ============================================================================
// Share links
// ============================================================================

func TestAuthorizeLinkUpload(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &models.StoragePool{DefaultUserQuota: 50})
	drop := e.zone(t, models.ShareZone{Name: "drop", AllowWrite: true, AllowWebShares: true})
	require.NoError(t, os.MkdirAll(filepath.Join(e.root, "drop", "inbox"), 0o755))

	_, token, err := e.links.Create(ctx, alice, sharelink.CreateRequest{
		ZoneID:       drop.ID,
		TargetPath:   "/inbox",
		TargetType:   models.TargetFolder,
		Capabilities: models.LinkCapabilities{AllowUpload: true},
	})
	require.NoError(t, err)

	g, err := e.p.AuthorizeLink(ctx, LinkRequest{Token: token, SubPath: "/scan.pdf", Capability: models.CapUpload, SizeHint: 40})
	require.NoError(t, err)
	assert.Equal(t, "/inbox/scan.pdf", g.Resolved.Virtual)
	assert.Equal(t, quota.UserSubject("alice"), g.Subject, "owner is charged")
	require.NoError(t, g.Commit(40))

	_, err = e.p.AuthorizeLink(ctx, LinkRequest{Token: token, SubPath: "/more.pdf", Capability: models.CapUpload, SizeHint: 20})
	requireCode(t, err, accesserrors.ErrQuotaExceeded)

	_, err = e.p.AuthorizeLink(ctx, LinkRequest{Token: token, SubPath: "/scan.pdf", Capability: models.CapDownload})
	requireCode(t, err, accesserrors.ErrCapabilityDenied)
}

func TestAuthorizeLinkFollowsZone(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	team := e.zone(t, models.ShareZone{Name: "team", AllowWebShares: true})
	e.write(t, "team/report.pdf", "pdf")

	_, token, err := e.links.Create(ctx, alice, sharelink.CreateRequest{
		ZoneID:       team.ID,
		TargetPath:   "/report.pdf",
		TargetType:   models.TargetFile,
		Capabilities: models.LinkCapabilities{AllowDownload: true, AllowPreview: true},
	})
	require.NoError(t, err)

	_, err = e.p.AuthorizeLink(ctx, LinkRequest{Token: token, Capability: models.CapPreview})
	require.NoError(t, err)

	updated := *team
	updated.AllowWebShares = false
	_, err = e.reg.UpdateZone(ctx, &updated)
	require.NoError(t, err)

	_, err = e.p.AuthorizeLink(ctx, LinkRequest{Token: token, Capability: models.CapPreview})
	requireCode(t, err, accesserrors.ErrLinkDisabled)
}

func TestFolderLinkStaysInsideFolder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	team := e.zone(t, models.ShareZone{Name: "team", AllowWebShares: true})
	e.write(t, "team/public/hello.txt", "hi")
	e.write(t, "team/private/secret.txt", "secret")
	require.NoError(t, os.Symlink("../private", filepath.Join(e.root, "team", "public", "peek")))

	_, token, err := e.links.Create(ctx, alice, sharelink.CreateRequest{
		ZoneID:       team.ID,
		TargetPath:   "/public",
		TargetType:   models.TargetFolder,
		Capabilities: models.LinkCapabilities{AllowDownload: true},
	})
	require.NoError(t, err)

	g, err := e.p.AuthorizeLink(ctx, LinkRequest{Token: token, SubPath: "/hello.txt", Capability: models.CapDownload})
	require.NoError(t, err)
	f, err := resolver.Open(g.Resolved)
	require.NoError(t, err)
	_ = f.Close()

	_, err = e.p.AuthorizeLink(ctx, LinkRequest{Token: token, SubPath: "/peek/secret.txt", Capability: models.CapDownload})
	requireCode(t, err, accesserrors.ErrPathEscape)
}

func TestFailedLinkDownloadKeepsBudget(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	team := e.zone(t, models.ShareZone{Name: "team", AllowWebShares: true})
	e.write(t, "team/shared/docs/a.txt", "a")

	link, token, err := e.links.Create(ctx, alice, sharelink.CreateRequest{
		ZoneID:       team.ID,
		TargetPath:   "/shared",
		TargetType:   models.TargetFolder,
		Capabilities: models.LinkCapabilities{AllowDownload: true},
		MaxDownloads: 1,
	})
	require.NoError(t, err)

	_, err = e.p.AuthorizeLink(ctx, LinkRequest{Token: token, SubPath: "/missing.txt", Capability: models.CapDownload})
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = e.p.AuthorizeLink(ctx, LinkRequest{Token: token, SubPath: "/docs", Capability: models.CapDownload})
	assert.ErrorIs(t, err, ErrNotAFile)

	stored, err := e.links.Get(ctx, alice, link.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.DownloadCount)

	_, err = e.p.AuthorizeLink(ctx, LinkRequest{Token: token, SubPath: "/docs/a.txt", Capability: models.CapDownload})
	require.NoError(t, err)
}

func TestAuthorizeLinkWithoutManager(t *testing.T) {
	e := newEnv(t, nil)
	p := New(e.reg, e.tracker)
	_, err := p.AuthorizeLink(context.Background(), LinkRequest{Token: "x", Capability: models.CapDownload})
	assert.Error(t, err)
}

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// Package pipeline composes the access-control stages into the single
// entry point every file operation goes through:
//
//	zone lookup -> path resolution -> authorization -> write checks -> quota reservation
//
// A successful call returns a Grant holding the resolved path and, for
// writes, the quota reservation. The caller performs the I/O through the
// resolver guard and then commits or aborts the grant.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/internal/telemetry"
	"github.com/marmos91/fileserv/pkg/access/authz"
	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/access/quota"
	"github.com/marmos91/fileserv/pkg/access/resolver"
	"github.com/marmos91/fileserv/pkg/access/sharelink"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/identity"
	"github.com/marmos91/fileserv/pkg/metrics"
	"github.com/marmos91/fileserv/pkg/registry"
)

// SnapshotSource provides the current zone configuration.
type SnapshotSource interface {
	Snapshot() *registry.Snapshot
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLinks enables AuthorizeLink.
func WithLinks(m *sharelink.Manager) Option {
	return func(p *Pipeline) { p.links = m }
}

// WithMetrics attaches access metrics. Nil disables collection.
func WithMetrics(m metrics.AccessMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline authorizes file operations.
type Pipeline struct {
	zones   SnapshotSource
	quota   *quota.Tracker
	links   *sharelink.Manager
	metrics metrics.AccessMetrics
}

// New creates a Pipeline.
func New(zones SnapshotSource, tracker *quota.Tracker, opts ...Option) *Pipeline {
	p := &Pipeline{zones: zones, quota: tracker}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request is a named user's file operation.
type Request struct {
	Actor identity.Identity
	// ZoneID accepts a zone ID or name.
	ZoneID string
	Path   string
	Kind   models.PermissionKind
	// SizeHint is the declared size of a write (0 = unknown).
	SizeHint int64
	// Directory marks writes that create a directory; extension and size
	// checks do not apply to them.
	Directory bool
}

// Grant is an authorized operation.
type Grant struct {
	Zone        *models.ShareZone
	Pool        *models.StoragePool
	Resolved    *resolver.Resolved
	Decision    authz.Decision
	Subject     quota.Subject
	Reservation *quota.Reservation
	// Link is set for grants issued through a share link.
	Link *models.ShareLink
}

// Commit charges the bytes actually written. It is a no-op for grants
// without a reservation.
func (g *Grant) Commit(actual int64) error {
	if g.Reservation == nil {
		return nil
	}
	return g.Reservation.Commit(actual)
}

// Abort releases the reservation without charging anything.
func (g *Grant) Abort() {
	if g.Reservation != nil {
		g.Reservation.Release()
	}
}

// target is what the shared stages operate on.
type target struct {
	zone    *models.ShareZone
	pool    *models.StoragePool
	perms   []models.Permission
	subject quota.Subject
}

// ============================================================================
// Named users
// ============================================================================

// AuthorizeAndReserve runs the full pipeline for a named user. Denials are
// *AccessError values; ZoneNotFound is only shown to administrators.
func (p *Pipeline) AuthorizeAndReserve(ctx context.Context, req Request) (*Grant, error) {
	start := time.Now()
	ctx, span := telemetry.StartAccessSpan(ctx, telemetry.SpanAuthorizeAndReserve,
		req.Actor.Username, req.ZoneID, req.Path, telemetry.Kind(string(req.Kind)))
	defer span.End()

	grant, err := p.authorizeAndReserve(ctx, req)
	if p.metrics != nil {
		p.metrics.ObserveAuthorize(time.Since(start))
	}
	endSpan(ctx, span, err)
	return grant, accesserrors.Public(err, req.Actor.IsAdmin)
}

func (p *Pipeline) authorizeAndReserve(ctx context.Context, req Request) (*Grant, error) {
	if !req.Kind.IsValid() {
		return nil, accesserrors.New(accesserrors.ErrNoGrant, fmt.Sprintf("invalid permission kind %q", req.Kind), req.Path)
	}

	snap := p.zones.Snapshot()
	t, err := lookup(snap, req.ZoneID)
	if err != nil {
		return nil, err
	}
	t.subject = quota.UserSubject(req.Actor.Username)

	res, err := p.resolve(ctx, t, req.Path)
	if err != nil {
		p.recordDecision(t.zone, req.Kind, err)
		return nil, err
	}

	decision := authz.Authorize(req.Actor, t.zone, t.perms, res.Virtual, req.Kind)
	p.recordDecision(t.zone, req.Kind, decision.Err())
	if !decision.Allowed {
		logger.DebugCtx(ctx, "Access denied",
			logger.KeyZone, t.zone.Name,
			logger.KeyPath, res.Virtual,
			logger.KeyKind, string(req.Kind),
			logger.KeyReason, decision.Reason.String())
		return nil, decision.Err()
	}

	if err := provisionHome(ctx, t, req.Actor); err != nil {
		return nil, err
	}

	grant := &Grant{Zone: t.zone, Pool: t.pool, Resolved: res, Decision: decision, Subject: t.subject}
	if req.Kind == models.KindWrite {
		if grant.Reservation, err = p.reserveWrite(ctx, t, res, req.SizeHint, req.Directory); err != nil {
			return nil, err
		}
	}
	return grant, nil
}

// ============================================================================
// Share links
// ============================================================================

// LinkRequest is an anonymous operation through a share link.
type LinkRequest struct {
	Token      string
	Password   string
	SubPath    string
	Capability models.Capability
	SizeHint   int64
}

// AuthorizeLink runs the pipeline for a share link holder. The link owner
// is charged for uploads. A download consumes one unit of the link's
// download limit once every other check has passed.
func (p *Pipeline) AuthorizeLink(ctx context.Context, req LinkRequest) (*Grant, error) {
	if p.links == nil {
		return nil, fmt.Errorf("share links are not configured")
	}

	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanAuthorizeLink,
		trace.WithAttributes(telemetry.Capability(string(req.Capability))))
	defer span.End()

	grant, err := p.authorizeLink(ctx, req)
	if p.metrics != nil {
		p.metrics.ObserveAuthorize(time.Since(start))
	}
	endSpan(ctx, span, err)
	return grant, err
}

func (p *Pipeline) authorizeLink(ctx context.Context, req LinkRequest) (*Grant, error) {
	lt, err := p.links.Authorize(ctx, sharelink.Access{
		Token:      req.Token,
		Password:   req.Password,
		SubPath:    req.SubPath,
		Capability: req.Capability,
	})
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(ctx, telemetry.Link(lt.Link.ID))

	// A link dies with its zone or with the zone's web sharing.
	snap := p.zones.Snapshot()
	t, err := lookup(snap, lt.ZoneID)
	if err != nil {
		if accesserrors.HasCode(err, accesserrors.ErrZoneNotFound) {
			return nil, sharelink.StateError(models.LinkDisabled)
		}
		return nil, err
	}
	if !t.zone.WebSharingEnabled() {
		return nil, sharelink.StateError(models.LinkDisabled)
	}
	t.subject = quota.UserSubject(lt.Owner)

	res, err := p.resolveLinkTarget(ctx, t, lt)
	if err != nil {
		return nil, err
	}

	kind := models.KindRead
	if req.Capability == models.CapUpload {
		kind = models.KindWrite
		if t.zone.ReadOnly {
			return nil, accesserrors.New(accesserrors.ErrReadOnlyZone, "zone is read-only", res.Virtual)
		}
	}
	p.recordDecision(t.zone, kind, nil)

	grant := &Grant{
		Zone:     t.zone,
		Pool:     t.pool,
		Resolved: res,
		Decision: authz.Decision{Allowed: true, Path: res.Virtual},
		Subject:  t.subject,
		Link:     lt.Link,
	}

	if kind == models.KindWrite {
		if grant.Reservation, err = p.reserveWrite(ctx, t, res, req.SizeHint, false); err != nil {
			return nil, err
		}
	}

	if req.Capability == models.CapDownload {
		if err := downloadable(res); err != nil {
			return nil, err
		}
		link, err := p.links.IncrementLink(ctx, lt.Link, store.CounterDownloads)
		if err != nil {
			grant.Abort()
			return nil, err
		}
		grant.Link = link
	}
	return grant, nil
}

// ============================================================================
// Deletions
// ============================================================================

// RecordDeletion credits bytes removed from a zone back to subject.
func (p *Pipeline) RecordDeletion(ctx context.Context, subject quota.Subject, zoneRef string, bytes int64) error {
	zone, ok := p.zones.Snapshot().LookupZone(zoneRef)
	if !ok {
		return accesserrors.NewZoneNotFoundError(zoneRef)
	}
	if err := p.quota.ReleaseUsage(subject, zone.PoolID, zone.ID, bytes); err != nil {
		logger.WarnCtx(ctx, "Failed to persist quota release",
			logger.KeySubject, string(subject), logger.KeyZone, zone.Name, logger.KeyError, err)
		return err
	}
	return nil
}

// ============================================================================
// Stages
// ============================================================================

func lookup(snap *registry.Snapshot, zoneRef string) (*target, error) {
	zone, pool, ok := snap.ZoneWithPool(zoneRef)
	if !ok {
		return nil, accesserrors.NewZoneNotFoundError(zoneRef)
	}
	if !pool.Enabled {
		return nil, accesserrors.New(accesserrors.ErrZoneDisabled,
			fmt.Sprintf("pool of zone %q is disabled", zone.Name), "")
	}
	return &target{zone: zone, pool: pool, perms: snap.Permissions(zone.ID)}, nil
}

func (p *Pipeline) resolve(ctx context.Context, t *target, virtualPath string) (*resolver.Resolved, error) {
	res, err := resolver.Resolve(t.pool.Path, t.zone.Path, virtualPath)
	if err != nil {
		return nil, p.resolveFailed(ctx, t, virtualPath, err)
	}
	return res, nil
}

// resolveLinkTarget resolves the link root, then the requested sub-path
// through it, so a symlink inside a shared folder cannot lead elsewhere in
// the zone.
func (p *Pipeline) resolveLinkTarget(ctx context.Context, t *target, lt *sharelink.Target) (*resolver.Resolved, error) {
	root, err := p.resolve(ctx, t, lt.Root)
	if err != nil {
		return nil, err
	}
	res, err := root.Child(lt.Sub)
	if err != nil {
		return nil, p.resolveFailed(ctx, t, lt.Path, err)
	}
	return res, nil
}

// ErrNotAFile is returned when a download names a directory.
var ErrNotAFile = errors.New("path is a directory")

// downloadable requires an existing regular file, so failed downloads do
// not consume the link's download budget.
func downloadable(res *resolver.Resolved) error {
	fi, err := resolver.Stat(res)
	if err != nil {
		if accesserrors.IsAccessError(err) || errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("stat %s: %w", res.Virtual, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%s: %w", res.Virtual, ErrNotAFile)
	}
	return nil
}

func (p *Pipeline) resolveFailed(ctx context.Context, t *target, virtualPath string, err error) error {
	if accesserrors.IsPathEscape(err) {
		logger.SecurityEvent(ctx, "path_escape",
			logger.KeyZone, t.zone.Name,
			logger.KeyPath, virtualPath,
			logger.KeySubject, string(t.subject))
		if p.metrics != nil {
			p.metrics.RecordPathEscape(t.zone.Name)
		}
		return err
	}
	if accesserrors.IsAccessError(err) {
		return err
	}
	return fmt.Errorf("resolve %s in zone %s: %w", virtualPath, t.zone.Name, err)
}

// provisionHome creates the actor's home directory in an auto-provisioned
// personal zone.
func provisionHome(ctx context.Context, t *target, actor identity.Identity) error {
	if !t.zone.IsPersonal() || !t.zone.AutoProvision || actor.IsAdmin {
		return nil
	}
	home, err := resolver.Resolve(t.pool.Path, t.zone.Path, authz.HomePath(actor))
	if err != nil {
		return err
	}
	if err := resolver.MkdirAll(home, 0o750); err != nil {
		return fmt.Errorf("provision home for %s: %w", actor.Username, err)
	}
	return nil
}

// reserveWrite applies the pool's write rules and books the quota.
func (p *Pipeline) reserveWrite(ctx context.Context, t *target, res *resolver.Resolved, size int64, directory bool) (*quota.Reservation, error) {
	if size < 0 {
		return nil, accesserrors.NewInvalidPathError(res.Virtual, "negative size")
	}
	if !directory {
		name := path.Base(res.Virtual)
		if !t.pool.ExtensionAllowed(name) {
			return nil, accesserrors.New(accesserrors.ErrFileTypeDenied,
				fmt.Sprintf("file type of %q is not allowed in this pool", name), res.Virtual)
		}
		if t.pool.MaxFileSize > 0 && size > t.pool.MaxFileSize {
			return nil, accesserrors.New(accesserrors.ErrFileTooLarge,
				fmt.Sprintf("file size %d exceeds the limit of %d bytes", size, t.pool.MaxFileSize), res.Virtual)
		}
	}
	if t.pool.CapacityKnown() && size > t.pool.AvailableSpace() {
		return nil, accesserrors.New(accesserrors.ErrInsufficientCapacity,
			fmt.Sprintf("pool %q lacks space for %d bytes", t.pool.Name, size), res.Virtual)
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanQuotaReserve,
		trace.WithAttributes(telemetry.Bytes(size)))
	defer span.End()

	reservation, err := p.quota.Reserve(ctx, t.subject, t.pool.ID, t.zone.ID, size)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	return reservation, nil
}

func (p *Pipeline) recordDecision(zone *models.ShareZone, kind models.PermissionKind, err error) {
	if p.metrics == nil {
		return
	}
	reason := ""
	if err != nil {
		reason = accesserrors.CodeOf(err).String()
	}
	p.metrics.RecordDecision(zone.Name, string(kind), err == nil, reason)
}

func endSpan(ctx context.Context, span trace.Span, err error) {
	if err == nil {
		span.SetAttributes(telemetry.Decision(true))
		return
	}
	span.SetAttributes(telemetry.Decision(false), telemetry.Reason(accesserrors.CodeOf(err).String()))
	if !accesserrors.IsAccessError(err) {
		telemetry.RecordError(ctx, err)
	}
}

// Package sharelink issues and enforces tokenized share links.
//
// A link grants anonymous holders a capability subset (download, preview,
// upload, listing) on one file or folder subtree of a zone. Only the SHA-256
// of the token is stored; the plaintext token is returned once, at creation.
//
// Link state is never stored. Every access recomputes it from the record:
//
//	Active -> Expired | LimitReached | Disabled
//
// and every non-active state is terminal. Counter increments happen in one
// conditional UPDATE so concurrent holders can never push a counter past
// its limit.
package sharelink

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/pkg/access/authz"
	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/access/resolver"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/identity"
	"github.com/marmos91/fileserv/pkg/metrics"
	"github.com/marmos91/fileserv/pkg/registry"
)

// DefaultTokenBytes is the amount of randomness in a link token.
const DefaultTokenBytes = 32

// ErrInvalidRequest is returned for malformed link creation requests.
var ErrInvalidRequest = errors.New("invalid share link request")

// Metric action labels.
const (
	actionResolve   = "resolve"
	actionView      = "view"
	actionDownload  = "download"
	actionPassword  = "password"
	actionAuthorize = "authorize"
)

// Hasher hashes and verifies link passwords. models.BcryptHasher is the
// production implementation.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// SnapshotSource provides the current zone configuration.
// *registry.Registry implements it.
type SnapshotSource interface {
	Snapshot() *registry.Snapshot
}

// Config configures a Manager.
type Config struct {
	// TokenBytes is the token entropy in bytes. Defaults to 32.
	TokenBytes int

	// DefaultExpiry applies to links created without an expiry (0 = none).
	DefaultExpiry time.Duration

	// Hasher hashes link passwords. Defaults to bcrypt.
	Hasher Hasher

	// Metrics is optional.
	Metrics metrics.LinkMetrics

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Manager creates, resolves and meters share links.
type Manager struct {
	store      store.LinkStore
	zones      SnapshotSource
	hasher     Hasher
	metrics    metrics.LinkMetrics
	tokenBytes int
	expiry     time.Duration
	now        func() time.Time
}

// NewManager creates a Manager.
func NewManager(st store.LinkStore, zones SnapshotSource, cfg Config) *Manager {
	m := &Manager{
		store:      st,
		zones:      zones,
		hasher:     cfg.Hasher,
		metrics:    cfg.Metrics,
		tokenBytes: cfg.TokenBytes,
		expiry:     cfg.DefaultExpiry,
		now:        cfg.Now,
	}
	if m.hasher == nil {
		m.hasher = models.BcryptHasher{}
	}
	if m.tokenBytes <= 0 {
		m.tokenBytes = DefaultTokenBytes
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// HashToken returns the stored form of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (m *Manager) newToken() (string, error) {
	buf := make([]byte, m.tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate link token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (m *Manager) record(action string, err error) {
	if m.metrics == nil {
		return
	}
	switch {
	case err == nil:
		m.metrics.RecordAccess(action, metrics.ResultAllowed)
	case accesserrors.IsAccessError(err):
		m.metrics.RecordAccess(action, metrics.ResultDenied)
	default:
		m.metrics.RecordAccess(action, metrics.ResultError)
	}
}

// ============================================================================
// Creation
// ============================================================================

// CreateRequest describes a link to create.
type CreateRequest struct {
	ZoneID       string                  `json:"zone_id" validate:"required"`
	TargetPath   string                  `json:"target_path" validate:"required"`
	TargetType   models.LinkTargetType   `json:"target_type" validate:"required,oneof=file folder"`
	Capabilities models.LinkCapabilities `json:"capabilities"`
	ExpiresAt    *time.Time              `json:"expires_at,omitempty"`
	MaxDownloads int64                   `json:"max_downloads" validate:"gte=0"`
	MaxViews     int64                   `json:"max_views" validate:"gte=0"`
	Password     string                  `json:"password,omitempty"`
	Description  string                  `json:"description,omitempty" validate:"max=1024"`
}

// Create issues a link for owner and returns it with its plaintext token.
//
// The owner must be able to read the target, and to write it when upload
// is requested. When the zone's web options are enabled they bound the
// capabilities, the lifetime and whether a password is mandatory.
func (m *Manager) Create(ctx context.Context, owner identity.Identity, req CreateRequest) (*models.ShareLink, string, error) {
	if owner.IsZero() {
		return nil, "", fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}
	if !req.TargetType.IsValid() {
		return nil, "", fmt.Errorf("%w: invalid target type %q", ErrInvalidRequest, req.TargetType)
	}
	if req.MaxDownloads < 0 || req.MaxViews < 0 {
		return nil, "", fmt.Errorf("%w: limits must not be negative", ErrInvalidRequest)
	}
	caps := req.Capabilities
	if caps == (models.LinkCapabilities{}) {
		return nil, "", fmt.Errorf("%w: at least one capability is required", ErrInvalidRequest)
	}
	if req.TargetType == models.TargetFile && (caps.AllowUpload || caps.AllowListing) {
		return nil, "", fmt.Errorf("%w: upload and listing require a folder target", ErrInvalidRequest)
	}

	snap := m.zones.Snapshot()
	zone, pool, ok := snap.ZoneWithPool(req.ZoneID)
	if !ok {
		return nil, "", accesserrors.Public(accesserrors.NewZoneNotFoundError(req.ZoneID), owner.IsAdmin)
	}
	if !pool.Enabled {
		return nil, "", accesserrors.NewZoneDisabledError(zone.Name)
	}
	if !zone.WebSharingEnabled() {
		return nil, "", accesserrors.New(accesserrors.ErrCapabilityDenied, "web sharing is disabled for this zone", "")
	}

	target, err := resolver.NormalizeVirtual(req.TargetPath)
	if err != nil {
		return nil, "", err
	}

	perms := snap.Permissions(zone.ID)
	if d := authz.Authorize(owner, zone, perms, target, models.KindRead); !d.Allowed {
		return nil, "", d.Err()
	}
	if caps.AllowUpload {
		if d := authz.Authorize(owner, zone, perms, target, models.KindWrite); !d.Allowed {
			return nil, "", d.Err()
		}
	}

	now := m.now().UTC()
	expiresAt, err := m.boundLink(zone, &caps, req, now)
	if err != nil {
		return nil, "", err
	}

	if err := checkTarget(pool, zone, target, req.TargetType); err != nil {
		return nil, "", err
	}

	token, err := m.newToken()
	if err != nil {
		return nil, "", err
	}

	link := &models.ShareLink{
		Owner:            owner.Username,
		ZoneID:           zone.ID,
		TargetPath:       target,
		TargetType:       req.TargetType,
		TargetName:       path.Base(target),
		TokenHash:        HashToken(token),
		ExpiresAt:        expiresAt,
		MaxDownloads:     req.MaxDownloads,
		MaxViews:         req.MaxViews,
		LinkCapabilities: caps,
		Enabled:          true,
		Description:      req.Description,
	}
	if req.Password != "" {
		if link.PasswordHash, err = m.hasher.Hash(req.Password); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if err := link.Validate(); err != nil {
		return nil, "", err
	}

	if _, err := m.store.CreateLink(ctx, link); err != nil {
		return nil, "", fmt.Errorf("create share link: %w", err)
	}

	logger.InfoCtx(ctx, "Share link created",
		logger.KeyLink, link.ID,
		logger.KeyZone, zone.Name,
		logger.KeyPath, target,
		logger.KeyUsername, owner.Username)
	return link, token, nil
}

// boundLink applies the zone's web options to caps and computes the expiry.
func (m *Manager) boundLink(zone *models.ShareZone, caps *models.LinkCapabilities, req CreateRequest, now time.Time) (*time.Time, error) {
	web := zone.WebOptions

	if web.Enabled {
		if !web.PublicEnabled {
			return nil, accesserrors.New(accesserrors.ErrCapabilityDenied, "public links are disabled for this zone", "")
		}
		allowed := models.LinkCapabilities{
			AllowDownload: web.AllowDownload,
			AllowPreview:  web.AllowPreview,
			AllowUpload:   web.AllowUpload,
			AllowListing:  web.AllowListing,
		}
		if caps.Intersect(allowed) != *caps {
			return nil, accesserrors.New(accesserrors.ErrCapabilityDenied, "requested capability is not allowed in this zone", "")
		}
		if web.RequirePassword && req.Password == "" {
			return nil, accesserrors.NewLinkError(accesserrors.ErrInvalidPassword, "this zone requires a link password")
		}
	}

	var expiresAt *time.Time
	switch {
	case req.ExpiresAt != nil:
		t := req.ExpiresAt.UTC()
		if !t.After(now) {
			return nil, fmt.Errorf("%w: expiry is in the past", ErrInvalidRequest)
		}
		expiresAt = &t
	case m.expiry > 0:
		t := now.Add(m.expiry)
		expiresAt = &t
	}

	if limit := web.MaxExpiry(); limit > 0 {
		ceiling := now.Add(limit)
		if expiresAt == nil || expiresAt.After(ceiling) {
			expiresAt = &ceiling
		}
	}
	return expiresAt, nil
}

// checkTarget verifies the target exists inside the zone and has the
// declared type.
func checkTarget(pool *models.StoragePool, zone *models.ShareZone, target string, targetType models.LinkTargetType) error {
	res, err := resolver.Resolve(pool.Path, zone.Path, target)
	if err != nil {
		if accesserrors.IsPathEscape(err) {
			logger.SecurityEvent(context.Background(), "path_escape",
				logger.KeyZone, zone.Name, logger.KeyPath, target)
		}
		return err
	}
	info, err := resolver.Stat(res)
	if err != nil {
		return fmt.Errorf("%w: target %s: %v", ErrInvalidRequest, target, err)
	}
	if info.IsDir() != (targetType == models.TargetFolder) {
		return fmt.Errorf("%w: target %s is not a %s", ErrInvalidRequest, target, targetType)
	}
	return nil
}

// ============================================================================
// Resolution
// ============================================================================

// Resolve returns the accessible link for token.
func (m *Manager) Resolve(ctx context.Context, token string) (*models.ShareLink, error) {
	link, err := m.resolve(ctx, token)
	m.record(actionResolve, err)
	return link, err
}

func (m *Manager) resolve(ctx context.Context, token string) (*models.ShareLink, error) {
	if token == "" {
		return nil, accesserrors.NewLinkError(accesserrors.ErrLinkNotFound, "share link not found")
	}
	hash := HashToken(token)

	link, err := m.store.GetLinkByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, models.ErrLinkNotFound) {
			return nil, accesserrors.NewLinkError(accesserrors.ErrLinkNotFound, "share link not found")
		}
		return nil, fmt.Errorf("lookup share link: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(link.TokenHash), []byte(hash)) != 1 {
		return nil, accesserrors.NewLinkError(accesserrors.ErrLinkNotFound, "share link not found")
	}

	if err := StateError(link.StateAt(m.now())); err != nil {
		return nil, err
	}
	return link, nil
}

// StateError maps a non-active link state to its denial.
func StateError(state models.LinkState) error {
	switch state {
	case models.LinkActive:
		return nil
	case models.LinkExpired:
		return accesserrors.NewLinkError(accesserrors.ErrLinkExpired, "share link has expired")
	case models.LinkLimitReached:
		return accesserrors.NewLinkError(accesserrors.ErrLinkLimitReached, "share link usage limit reached")
	default:
		return accesserrors.NewLinkError(accesserrors.ErrLinkDisabled, "share link is disabled")
	}
}

// VerifyPassword reports whether candidate unlocks the link. Links without
// a password accept any candidate.
func (m *Manager) VerifyPassword(ctx context.Context, token, candidate string) (bool, error) {
	link, err := m.Resolve(ctx, token)
	if err != nil {
		return false, err
	}
	ok := m.checkPassword(ctx, link, candidate)
	if m.metrics != nil {
		result := metrics.ResultAllowed
		if !ok {
			result = metrics.ResultDenied
		}
		m.metrics.RecordAccess(actionPassword, result)
	}
	return ok, nil
}

func (m *Manager) checkPassword(ctx context.Context, link *models.ShareLink, candidate string) bool {
	if !link.HasPassword() {
		return true
	}
	if candidate != "" && m.hasher.Verify(candidate, link.PasswordHash) {
		return true
	}
	logger.SecurityEvent(ctx, "link_password_mismatch", logger.KeyLink, link.ID)
	return false
}

// ============================================================================
// Counters
// ============================================================================

// RecordView counts one view of the link behind token.
func (m *Manager) RecordView(ctx context.Context, token string) (*models.ShareLink, error) {
	return m.recordCounter(ctx, token, store.CounterViews, actionView)
}

// RecordDownload counts one download of the link behind token.
func (m *Manager) RecordDownload(ctx context.Context, token string) (*models.ShareLink, error) {
	return m.recordCounter(ctx, token, store.CounterDownloads, actionDownload)
}

func (m *Manager) recordCounter(ctx context.Context, token string, counter store.LinkCounter, action string) (*models.ShareLink, error) {
	link, err := m.resolve(ctx, token)
	if err == nil {
		link, err = m.increment(ctx, link, counter)
	}
	m.record(action, err)
	return link, err
}

// IncrementLink counts one use of an already resolved link. The pipeline
// calls it once every other check has passed.
func (m *Manager) IncrementLink(ctx context.Context, link *models.ShareLink, counter store.LinkCounter) (*models.ShareLink, error) {
	action := actionView
	if counter == store.CounterDownloads {
		action = actionDownload
	}
	link, err := m.increment(ctx, link, counter)
	m.record(action, err)
	return link, err
}

// increment applies the conditional counter update. When it matches no row
// the link left the accessible state since it was resolved; the fresh
// record tells which way.
func (m *Manager) increment(ctx context.Context, link *models.ShareLink, counter store.LinkCounter) (*models.ShareLink, error) {
	now := m.now()
	ok, err := m.store.IncrementLinkCounter(ctx, link.ID, counter, now)
	if err != nil {
		return nil, fmt.Errorf("increment share link counter: %w", err)
	}

	fresh, getErr := m.store.GetLink(ctx, link.ID)
	if !ok {
		if getErr != nil {
			if errors.Is(getErr, models.ErrLinkNotFound) {
				return nil, StateError(models.LinkDisabled)
			}
			return nil, fmt.Errorf("reload share link: %w", getErr)
		}
		if err := StateError(fresh.StateAt(now)); err != nil {
			return nil, err
		}
		return nil, StateError(models.LinkLimitReached)
	}
	if getErr != nil {
		return nil, fmt.Errorf("reload share link: %w", getErr)
	}
	return fresh, nil
}

// ============================================================================
// Authorization
// ============================================================================

// Access is an anonymous request through a link.
type Access struct {
	Token    string
	Password string
	// SubPath is relative to the link target; "/" or empty is the target.
	SubPath    string
	Capability models.Capability
}

// Target is where an authorized link request lands.
type Target struct {
	Link   *models.ShareLink
	ZoneID string
	// Path is zone-relative.
	Path string
	// Root is the link target path and Sub the normalized request path
	// below it. Path is Root joined with Sub; resolve Root first and Sub
	// through it so the subtree bound also holds physically.
	Root string
	Sub  string
	// Owner is charged for uploads.
	Owner string
}

// Authorize checks a link request and returns the zone-relative path it
// may touch. It does not consume a counter.
func (m *Manager) Authorize(ctx context.Context, req Access) (*Target, error) {
	target, err := m.authorize(ctx, req)
	m.record(actionAuthorize, err)
	return target, err
}

func (m *Manager) authorize(ctx context.Context, req Access) (*Target, error) {
	link, err := m.resolve(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if !m.checkPassword(ctx, link, req.Password) {
		return nil, accesserrors.NewLinkError(accesserrors.ErrInvalidPassword, "invalid share link password")
	}
	if !link.Has(req.Capability) {
		return nil, accesserrors.New(accesserrors.ErrCapabilityDenied,
			fmt.Sprintf("share link does not allow %s", req.Capability), "")
	}

	p, sub, err := confine(link, req.SubPath)
	if err != nil {
		return nil, err
	}
	return &Target{Link: link, ZoneID: link.ZoneID, Path: p, Root: link.TargetPath, Sub: sub, Owner: link.Owner}, nil
}

// confine maps subPath into the link target and returns the zone-relative
// path and the normalized sub-path. A file link only reaches the file
// itself; a folder link reaches its subtree.
func confine(link *models.ShareLink, subPath string) (string, string, error) {
	if subPath == "" {
		subPath = resolver.Root
	}
	rel, err := resolver.NormalizeVirtual(subPath)
	if err != nil {
		if accesserrors.IsPathEscape(err) {
			logger.SecurityEvent(context.Background(), "path_escape",
				logger.KeyLink, link.ID, logger.KeyPath, subPath)
		}
		return "", "", err
	}

	if rel == resolver.Root {
		return link.TargetPath, rel, nil
	}
	if link.TargetType == models.TargetFile {
		return "", "", accesserrors.New(accesserrors.ErrCapabilityDenied, "path is outside the shared file", rel)
	}

	full := rel
	if link.TargetPath != resolver.Root {
		full = link.TargetPath + rel
	}
	if !resolver.Within(full, link.TargetPath) {
		return "", "", accesserrors.New(accesserrors.ErrCapabilityDenied, "path is outside the shared folder", rel)
	}
	return full, rel, nil
}

// ============================================================================
// Management
// ============================================================================

// Get returns a link visible to actor.
func (m *Manager) Get(ctx context.Context, actor identity.Identity, id string) (*models.ShareLink, error) {
	link, err := m.store.GetLink(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrLinkNotFound) {
			return nil, accesserrors.NewLinkError(accesserrors.ErrLinkNotFound, "share link not found")
		}
		return nil, err
	}
	if !actor.IsAdmin && link.Owner != actor.Username {
		return nil, accesserrors.NewLinkError(accesserrors.ErrLinkNotFound, "share link not found")
	}
	return link, nil
}

// List returns the links owned by actor, or every link for an admin asking
// for all of them.
func (m *Manager) List(ctx context.Context, actor identity.Identity, all bool) ([]*models.ShareLink, error) {
	owner := actor.Username
	if all && actor.IsAdmin {
		owner = ""
	}
	return m.store.ListLinks(ctx, owner)
}

// Disable turns a link off permanently.
func (m *Manager) Disable(ctx context.Context, actor identity.Identity, id string) error {
	link, err := m.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := m.store.SetLinkEnabled(ctx, link.ID, false); err != nil {
		return fmt.Errorf("disable share link: %w", err)
	}
	logger.InfoCtx(ctx, "Share link disabled", logger.KeyLink, link.ID, logger.KeyUsername, actor.Username)
	return nil
}

// Delete soft deletes a link. The record stays for audit.
func (m *Manager) Delete(ctx context.Context, actor identity.Identity, id string) error {
	link, err := m.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := m.store.DeleteLink(ctx, link.ID); err != nil {
		return fmt.Errorf("delete share link: %w", err)
	}
	logger.InfoCtx(ctx, "Share link deleted", logger.KeyLink, link.ID, logger.KeyUsername, actor.Username)
	return nil
}

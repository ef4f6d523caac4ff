// Package authz decides whether an actor may perform an operation on a path
// inside a share zone.
//
// The decision is split into two pure functions evaluated in a fixed order:
// EvaluateZone applies the zone-level rules (enabled flag, deny and allow
// lists, personal-zone isolation) and EvaluateGrants selects the most
// specific fine-grained permission. Authorize composes them with the
// read-only and default rules. Nothing here touches the store or the
// filesystem; callers pass a consistent snapshot of zones and permissions.
package authz

import (
	"fmt"
	"time"

	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/access/resolver"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/identity"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool

	// Reason is the denial code; zero when Allowed.
	Reason accesserrors.ErrorCode

	// Message is a human-readable explanation for audit logs.
	Message string

	// Path is the normalized virtual path that was evaluated.
	Path string

	// Grant is the permission entry that decided the outcome, if any.
	Grant *models.Permission
}

// Err returns the denial as an *AccessError, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return accesserrors.New(d.Reason, d.Message, d.Path)
}

func allow(path string, grant *models.Permission) Decision {
	return Decision{Allowed: true, Path: path, Grant: grant}
}

func deny(code accesserrors.ErrorCode, path, format string, args ...any) Decision {
	return Decision{Reason: code, Message: fmt.Sprintf(format, args...), Path: path}
}

// ============================================================================
// Zone Rules
// ============================================================================

// EvaluateZone applies the zone-level rules. It returns nil when the actor
// may enter the zone at virtualPath, or an *AccessError otherwise.
// virtualPath must be normalized.
func EvaluateZone(actor identity.Identity, zone *models.ShareZone, virtualPath string) error {
	if actor.IsAdmin {
		return nil
	}

	if !zone.Enabled {
		return accesserrors.NewZoneDisabledError(zone.Name)
	}

	if zone.DenyUsers.Contains(actor.Username) || zone.DenyGroups.ContainsAny(actor.Groups) {
		return accesserrors.New(accesserrors.ErrExplicitDeny,
			fmt.Sprintf("%s is denied on zone %s", actor.Username, zone.Name), "")
	}

	if zone.HasAllowList() && !OnAllowList(actor, zone) {
		return accesserrors.New(accesserrors.ErrNotAllowed,
			fmt.Sprintf("%s is not on the allow list of zone %s", actor.Username, zone.Name), "")
	}

	if zone.IsPersonal() && virtualPath != resolver.Root && !InHome(actor, virtualPath) {
		return accesserrors.New(accesserrors.ErrNotAllowed,
			"personal zones only expose the caller's own home", virtualPath)
	}

	return nil
}

// Wildcard on an allow list admits every authenticated actor.
const Wildcard = models.WildcardSubject

// OnAllowList reports whether actor is named on the zone's allow lists,
// directly, through a group or through the wildcard.
func OnAllowList(actor identity.Identity, zone *models.ShareZone) bool {
	return zone.AllowedUsers.Contains(actor.Username) ||
		zone.AllowedUsers.Contains(Wildcard) ||
		zone.AllowedGroups.Contains(Wildcard) ||
		zone.AllowedGroups.ContainsAny(actor.Groups)
}

// HomePath returns the home directory of actor inside a personal zone.
func HomePath(actor identity.Identity) string {
	return resolver.Root + actor.Username
}

// InHome reports whether virtualPath lies in the actor's home subtree.
func InHome(actor identity.Identity, virtualPath string) bool {
	if actor.Username == "" {
		return false
	}
	return resolver.Within(virtualPath, HomePath(actor))
}

// ============================================================================
// Fine-grained Grants
// ============================================================================

// EvaluateGrants selects the permission that applies to actor at
// virtualPath. Among entries whose path equals virtualPath or is an
// ancestor of it on a segment boundary, the longest path wins; at equal
// length user entries beat group entries, and among the entries of the
// winning class the highest kind is taken. Expired entries are ignored.
// It returns nil when no entry applies.
func EvaluateGrants(actor identity.Identity, permissions []models.Permission, virtualPath string, now time.Time) *models.Permission {
	var (
		best      *models.Permission
		bestLen   = -1
		bestIsUsr bool
	)

	for i := range permissions {
		p := &permissions[i]
		if p.ExpiredAt(now) || !appliesTo(actor, p) {
			continue
		}

		grantPath, err := resolver.NormalizeVirtual(p.Path)
		if err != nil || !resolver.Within(virtualPath, grantPath) {
			continue
		}

		length := len(grantPath)
		isUser := p.IsUserGrant()

		switch {
		case length > bestLen:
		case length < bestLen:
			continue
		case bestIsUsr && !isUser:
			continue
		case isUser && !bestIsUsr:
		case p.Kind.Level() <= best.Kind.Level():
			continue
		}

		best, bestLen, bestIsUsr = p, length, isUser
	}

	return best
}

func appliesTo(actor identity.Identity, p *models.Permission) bool {
	if p.IsUserGrant() {
		return p.Username == actor.Username
	}
	return actor.InGroup(p.GroupName)
}

// ============================================================================
// Composition
// ============================================================================

// Authorize decides whether actor may perform an operation requiring kind
// at virtualPath in zone, using the wall clock for grant expiry.
func Authorize(actor identity.Identity, zone *models.ShareZone, permissions []models.Permission, virtualPath string, kind models.PermissionKind) Decision {
	return AuthorizeAt(time.Now(), actor, zone, permissions, virtualPath, kind)
}

// AuthorizeAt is Authorize evaluated at now.
//
// Rules, first decisive wins: administrators are allowed; then the zone
// rules; then the most specific grant if it covers kind; then the
// read-only flag for write and delete; then reads are allowed, and writes
// and deletes need the zone's write flag or the actor's own personal home.
func AuthorizeAt(now time.Time, actor identity.Identity, zone *models.ShareZone, permissions []models.Permission, virtualPath string, kind models.PermissionKind) Decision {
	virtual, err := resolver.NormalizeVirtual(virtualPath)
	if err != nil {
		code := accesserrors.CodeOf(err)
		if code == 0 {
			code = accesserrors.ErrInvalidPath
		}
		return deny(code, virtualPath, "%s", messageOf(err))
	}

	if !kind.IsValid() {
		return deny(accesserrors.ErrNoGrant, virtual, "unknown permission kind %q", kind)
	}

	if actor.IsAdmin {
		return allow(virtual, nil)
	}

	if err := EvaluateZone(actor, zone, virtual); err != nil {
		return deny(accesserrors.CodeOf(err), virtual, "%s", messageOf(err))
	}

	if grant := EvaluateGrants(actor, zonePermissions(zone, permissions), virtual, now); grant != nil && grant.Kind.Covers(kind) {
		return allow(virtual, grant)
	}

	if kind == models.KindRead {
		return allow(virtual, nil)
	}

	if zone.ReadOnly {
		return deny(accesserrors.ErrReadOnlyZone, virtual, "zone %s is read-only", zone.Name)
	}

	if zone.AllowWrite || (zone.IsPersonal() && InHome(actor, virtual)) {
		return allow(virtual, nil)
	}

	return deny(accesserrors.ErrNoGrant, virtual, "%s requires a grant in zone %s", kind, zone.Name)
}

// zonePermissions drops entries that belong to other zones, so callers may
// pass a snapshot-wide list.
func zonePermissions(zone *models.ShareZone, permissions []models.Permission) []models.Permission {
	if zone.ID == "" {
		return permissions
	}
	for i := range permissions {
		if permissions[i].ZoneID != zone.ID {
			filtered := make([]models.Permission, 0, len(permissions))
			for _, p := range permissions {
				if p.ZoneID == zone.ID {
					filtered = append(filtered, p)
				}
			}
			return filtered
		}
	}
	return permissions
}

func messageOf(err error) string {
	if ae, ok := err.(*accesserrors.AccessError); ok {
		return ae.Message
	}
	return err.Error()
}

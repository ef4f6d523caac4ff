// Package quota tracks per-subject storage usage against pool and zone
// quotas.
//
// Writes follow reserve-then-commit: Reserve books the declared size under
// the account lock and fails with QuotaExceeded when the booking would not
// fit; Commit replaces the booking with the real size once the write is
// done; Release drops it. A commit that ends above the limit flags the
// account over quota, which blocks further reservations until deletions
// bring usage back down.
//
// Accounts are keyed by (subject, pool). Only reservations on the same
// account contend for a lock.
package quota

import (
	"errors"
	"strings"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

var (
	// ErrReservationNotFound is returned by Commit for a reservation that
	// was already committed, released or cancelled.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrInvalidReservation is returned for negative sizes or empty keys.
	ErrInvalidReservation = errors.New("invalid reservation")
)

// Subject identifies who is charged for usage: "user:<name>" or
// "group:<name>".
type Subject string

// UserSubject returns the subject for a user.
func UserSubject(username string) Subject {
	return Subject("user:" + username)
}

// GroupSubject returns the subject for a group.
func GroupSubject(group string) Subject {
	return Subject("group:" + group)
}

// IsGroup reports whether the subject is a group.
func (s Subject) IsGroup() bool {
	return strings.HasPrefix(string(s), "group:")
}

// Name returns the user or group name without the kind prefix.
func (s Subject) Name() string {
	if _, name, ok := strings.Cut(string(s), ":"); ok {
		return name
	}
	return string(s)
}

// Limit is an effective quota.
type Limit struct {
	// Bytes is the quota in bytes; 0 means unlimited.
	Bytes int64

	// PerZone compares the limit against usage in the zone only rather
	// than the pool roll-up.
	PerZone bool
}

// Unlimited reports whether the limit imposes no bound.
func (l Limit) Unlimited() bool {
	return l.Bytes <= 0
}

// EffectiveLimit computes the quota that applies to subject writing into
// zone. Users get the zone's per-user override when set, measured against
// their usage in that zone, else the pool's default user quota measured
// against the pool roll-up. Groups get the pool's default group quota.
// zone may be nil.
func EffectiveLimit(subject Subject, pool *models.StoragePool, zone *models.ShareZone) Limit {
	if pool == nil {
		return Limit{}
	}
	if subject.IsGroup() {
		return Limit{Bytes: pool.DefaultGroupQuota}
	}
	if zone != nil && zone.MaxQuotaPerUser > 0 {
		return Limit{Bytes: zone.MaxQuotaPerUser, PerZone: true}
	}
	return Limit{Bytes: pool.DefaultUserQuota}
}

// LimitSource resolves the effective quota for an account.
type LimitSource interface {
	Limit(subject Subject, poolID, zoneID string) Limit
}

// LimitFunc adapts a function to LimitSource.
type LimitFunc func(subject Subject, poolID, zoneID string) Limit

// Limit implements LimitSource.
func (f LimitFunc) Limit(subject Subject, poolID, zoneID string) Limit {
	return f(subject, poolID, zoneID)
}

// Usage reports the state of one (subject, pool) account.
type Usage struct {
	Subject   Subject          `json:"subject"`
	PoolID    string           `json:"pool_id"`
	Used      int64            `json:"used"`
	Reserved  int64            `json:"reserved"`
	Limit     int64            `json:"limit"`
	OverQuota bool             `json:"over_quota"`
	Zones     map[string]int64 `json:"zones,omitempty"`
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for access-control spans.
const (
	AttrUsername   = "user.name"
	AttrAdmin      = "user.admin"
	AttrClientIP   = "client.ip"
	AttrPool       = "fileserv.pool"
	AttrZone       = "fileserv.zone"
	AttrPath       = "fileserv.path"
	AttrKind       = "fileserv.kind"
	AttrDecision   = "fileserv.decision"
	AttrReason     = "fileserv.reason"
	AttrBytes      = "fileserv.bytes"
	AttrLink       = "fileserv.link"
	AttrCapability = "fileserv.capability"
)

// Span names. Format: <component>.<operation>
const (
	SpanAuthorizeAndReserve = "pipeline.authorize_and_reserve"
	SpanAuthorizeLink       = "pipeline.authorize_link"
	SpanResolvePath         = "resolver.resolve"
	SpanQuotaReserve        = "quota.reserve"
	SpanQuotaCommit         = "quota.commit"
	SpanLinkCreate          = "link.create"
	SpanLinkResolve         = "link.resolve"
	SpanLinkRecord          = "link.record"
	SpanRegistryUpdate      = "registry.update"
	SpanDiskStatsRefresh    = "diskstats.refresh"
)

// Username returns an attribute for the acting user.
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// Admin returns an attribute flagging administrator actors.
func Admin(isAdmin bool) attribute.KeyValue {
	return attribute.Bool(AttrAdmin, isAdmin)
}

// Zone returns an attribute for a zone ID.
func Zone(id string) attribute.KeyValue {
	return attribute.String(AttrZone, id)
}

// Pool returns an attribute for a pool ID.
func Pool(id string) attribute.KeyValue {
	return attribute.String(AttrPool, id)
}

// Path returns an attribute for a zone-relative path.
func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

// Kind returns an attribute for the requested permission kind.
func Kind(k string) attribute.KeyValue {
	return attribute.String(AttrKind, k)
}

// Decision returns an attribute for an allow/deny outcome.
func Decision(allowed bool) attribute.KeyValue {
	if allowed {
		return attribute.String(AttrDecision, "allow")
	}
	return attribute.String(AttrDecision, "deny")
}

// Reason returns an attribute for a denial reason.
func Reason(code string) attribute.KeyValue {
	return attribute.String(AttrReason, code)
}

// Bytes returns an attribute for a byte count.
func Bytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

// Link returns an attribute for a share link ID. Never pass the token.
func Link(id string) attribute.KeyValue {
	return attribute.String(AttrLink, id)
}

// Capability returns an attribute for a share link capability.
func Capability(c string) attribute.KeyValue {
	return attribute.String(AttrCapability, c)
}

// StartAccessSpan starts a span for an access-control operation with the
// common actor/zone/path attributes.
func StartAccessSpan(ctx context.Context, name, username, zoneID, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, 3+len(attrs))
	if username != "" {
		all = append(all, Username(username))
	}
	all = append(all, Zone(zoneID), Path(path))
	all = append(all, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(all...))
}

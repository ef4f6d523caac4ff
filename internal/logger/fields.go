package logger

import "log/slog"

// Standard field keys for structured logging. Use these keys consistently
// so log aggregation can query across components.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Request & Actor
	// ========================================================================
	KeyRequestID = "request_id"
	KeyClientIP  = "client_ip"
	KeyUsername  = "username"
	KeyGroup     = "group"
	KeyRole      = "role"
	KeyAdmin     = "admin"

	// ========================================================================
	// Storage Resources
	// ========================================================================
	KeyPool     = "pool"      // Pool ID or name
	KeyPoolPath = "pool_path" // Physical pool root
	KeyZone     = "zone"      // Zone ID or name
	KeyZoneType = "zone_type" // personal, group, public
	KeyPath     = "path"      // Zone-relative virtual path
	KeyPhysical = "physical"  // Resolved physical path
	KeyKind     = "kind"      // Required permission kind

	// ========================================================================
	// Decisions & Accounting
	// ========================================================================
	KeyAllowed       = "allowed"
	KeyReason        = "reason"         // Denial reason code
	KeySecurityEvent = "security_event" // path_escape, link_password_mismatch
	KeyReservation   = "reservation"
	KeyBytes         = "bytes"
	KeyUsage         = "usage"
	KeyLimit         = "limit"
	KeySubject       = "subject"

	// ========================================================================
	// Share Links
	// ========================================================================
	KeyLink       = "link"       // Link ID, never the token
	KeyLinkState  = "link_state" // active, expired, limit_reached, disabled
	KeyCapability = "capability" // download, preview, upload, listing
	KeyCount      = "count"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"
	KeyStoreType  = "store_type"
	KeyStatus     = "status"
	KeyMethod     = "method"
)

// Err returns a slog.Attr for an error. A nil error yields an empty Attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Pool returns a slog.Attr for a pool identifier.
func Pool(id string) slog.Attr {
	return slog.String(KeyPool, id)
}

// Zone returns a slog.Attr for a zone identifier.
func Zone(id string) slog.Attr {
	return slog.String(KeyZone, id)
}

// Path returns a slog.Attr for a virtual path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Username returns a slog.Attr for a username.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Reason returns a slog.Attr for a denial reason.
func Reason(code string) slog.Attr {
	return slog.String(KeyReason, code)
}

// Bytes returns a slog.Attr for a byte count.
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Package errors defines the typed denial taxonomy of the access-control
// layer. It is a leaf package: the resolver, evaluator, quota tracker, link
// manager and pipeline all return *AccessError values built here, and the
// HTTP layer maps their codes to stable responses without inspecting
// messages.
package errors

import (
	goerrors "errors"
	"fmt"
)

// ErrorCode identifies why an operation was refused.
type ErrorCode int

const (
	// ErrPathEscape indicates a path that resolves outside its zone or pool
	// root, lexically or through a symlink. Always a security event.
	ErrPathEscape ErrorCode = iota + 1

	// ErrInvalidPath indicates a malformed virtual path (NUL bytes, empty
	// segments).
	ErrInvalidPath

	// ErrZoneNotFound indicates an unknown zone. Only administrators see
	// this code; everyone else gets ErrNotAllowed.
	ErrZoneNotFound

	// ErrZoneDisabled indicates the zone or its pool is disabled.
	ErrZoneDisabled

	// ErrExplicitDeny indicates the actor or one of its groups is on a
	// zone deny list.
	ErrExplicitDeny

	// ErrNotAllowed indicates the actor is not on the zone allow lists.
	ErrNotAllowed

	// ErrReadOnlyZone indicates a write or delete against a read-only zone.
	ErrReadOnlyZone

	// ErrNoGrant indicates a write or delete without a matching grant.
	ErrNoGrant

	// ErrQuotaExceeded indicates the reservation does not fit the effective
	// quota, or the account is flagged over quota.
	ErrQuotaExceeded

	// ErrInsufficientCapacity indicates the pool lacks free space.
	ErrInsufficientCapacity

	// ErrFileTooLarge indicates the size exceeds the pool's per-file ceiling.
	ErrFileTooLarge

	// ErrFileTypeDenied indicates the extension is not permitted by the pool.
	ErrFileTypeDenied

	// ErrCapabilityDenied indicates a share link lacks the capability or the
	// path lies outside the link target.
	ErrCapabilityDenied

	// ErrLinkExpired indicates a share link past its expiry.
	ErrLinkExpired

	// ErrLinkLimitReached indicates a share link whose view or download
	// limit is exhausted.
	ErrLinkLimitReached

	// ErrLinkDisabled indicates a share link that was disabled or deleted.
	ErrLinkDisabled

	// ErrLinkNotFound indicates an unknown share link token.
	ErrLinkNotFound

	// ErrInvalidPassword indicates a wrong or missing share link password.
	ErrInvalidPassword
)

var codeNames = map[ErrorCode]string{
	ErrPathEscape:           "PathEscape",
	ErrInvalidPath:          "InvalidPath",
	ErrZoneNotFound:         "ZoneNotFound",
	ErrZoneDisabled:         "ZoneDisabled",
	ErrExplicitDeny:         "ExplicitDeny",
	ErrNotAllowed:           "NotAllowed",
	ErrReadOnlyZone:         "ReadOnlyZone",
	ErrNoGrant:              "NoGrant",
	ErrQuotaExceeded:        "QuotaExceeded",
	ErrInsufficientCapacity: "InsufficientCapacity",
	ErrFileTooLarge:         "FileTooLarge",
	ErrFileTypeDenied:       "FileTypeDenied",
	ErrCapabilityDenied:     "CapabilityDenied",
	ErrLinkExpired:          "LinkExpired",
	ErrLinkLimitReached:     "LinkLimitReached",
	ErrLinkDisabled:         "LinkDisabled",
	ErrLinkNotFound:         "LinkNotFound",
	ErrInvalidPassword:      "InvalidPassword",
}

// String returns the stable name of the code, used in logs, metrics and
// API responses.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(c))
}

// AccessError is a refusal with a machine-distinguishable code.
type AccessError struct {
	Code    ErrorCode
	Message string
	Path    string
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path: %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *AccessError carrying the same code, so callers can write
// errors.Is(err, &AccessError{Code: ErrNoGrant}).
func (e *AccessError) Is(target error) bool {
	t, ok := target.(*AccessError)
	return ok && t.Code == e.Code
}

// New creates an AccessError.
func New(code ErrorCode, message, path string) *AccessError {
	return &AccessError{Code: code, Message: message, Path: path}
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewPathEscapeError creates a PathEscape error.
func NewPathEscapeError(path string) *AccessError {
	return New(ErrPathEscape, "path escapes its root", path)
}

// NewInvalidPathError creates an InvalidPath error.
func NewInvalidPathError(path, reason string) *AccessError {
	return New(ErrInvalidPath, reason, path)
}

// NewZoneNotFoundError creates a ZoneNotFound error.
func NewZoneNotFoundError(zone string) *AccessError {
	return New(ErrZoneNotFound, fmt.Sprintf("zone %q not found", zone), "")
}

// NewZoneDisabledError creates a ZoneDisabled error.
func NewZoneDisabledError(zone string) *AccessError {
	return New(ErrZoneDisabled, fmt.Sprintf("zone %q is disabled", zone), "")
}

// NewQuotaExceededError creates a QuotaExceeded error.
func NewQuotaExceededError(subject string, requested, limit int64) *AccessError {
	return New(ErrQuotaExceeded, fmt.Sprintf("%s: %d bytes requested, limit %d", subject, requested, limit), "")
}

// NewLinkError creates one of the link state errors.
func NewLinkError(code ErrorCode, message string) *AccessError {
	return New(code, message, "")
}

// ============================================================================
// Error Type Checking Helpers
// ============================================================================

// CodeOf returns the code of the first AccessError in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var ae *AccessError
	if goerrors.As(err, &ae) {
		return ae.Code
	}
	return 0
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsAccessError reports whether err carries any AccessError.
func IsAccessError(err error) bool {
	return CodeOf(err) != 0
}

// IsPathEscape reports whether err is a traversal attempt.
func IsPathEscape(err error) bool {
	return HasCode(err, ErrPathEscape)
}

// IsLinkDenial reports whether err is one of the terminal link states or a
// missing link.
func IsLinkDenial(err error) bool {
	switch CodeOf(err) {
	case ErrLinkExpired, ErrLinkLimitReached, ErrLinkDisabled, ErrLinkNotFound:
		return true
	}
	return false
}

// Public returns the error as it may be shown to the caller. For
// non-administrators an unknown zone is indistinguishable from a zone the
// caller may not enter: both become a bare NotAllowed with no zone name.
func Public(err error, isAdmin bool) error {
	var ae *AccessError
	if !goerrors.As(err, &ae) {
		return err
	}
	if isAdmin {
		return ae
	}
	switch ae.Code {
	case ErrZoneNotFound, ErrNotAllowed, ErrZoneDisabled:
		return New(ErrNotAllowed, "access denied", "")
	}
	return ae
}

// IsDenial reports whether err is an authorization denial from the access
// evaluator, as opposed to a path, quota or link failure.
func IsDenial(err error) bool {
	switch CodeOf(err) {
	case ErrZoneDisabled, ErrExplicitDeny, ErrNotAllowed, ErrReadOnlyZone, ErrNoGrant:
		return true
	}
	return false
}

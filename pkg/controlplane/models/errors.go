package models

import "errors"

// Common errors for control plane records.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrUserDisabled  = errors.New("user account is disabled")

	// Group errors
	ErrGroupNotFound  = errors.New("group not found")
	ErrDuplicateGroup = errors.New("group already exists")

	// Pool errors
	ErrPoolNotFound  = errors.New("storage pool not found")
	ErrDuplicatePool = errors.New("storage pool already exists")

	// Zone errors
	ErrZoneNotFound  = errors.New("share zone not found")
	ErrDuplicateZone = errors.New("share zone already exists")

	// Permission errors
	ErrPermissionNotFound  = errors.New("permission not found")
	ErrDuplicatePermission = errors.New("permission already exists")

	// Share link errors
	ErrLinkNotFound  = errors.New("share link not found")
	ErrDuplicateLink = errors.New("share link token already exists")

	// ErrValidation wraps field-level validation failures.
	ErrValidation = errors.New("validation failed")
)

// Referential errors
var (
	ErrPoolHasZones        = errors.New("storage pool is referenced by share zones")
	ErrPoolHasEnabledZones = errors.New("storage pool has enabled share zones")
)

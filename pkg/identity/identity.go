// Package identity defines who is acting on the access-control layer and
// how request credentials are turned into that actor.
//
// The core consumes Identity values only. Providers translate credentials
// (username/password, bearer tokens) into identities; how sessions are issued
// is up to the transport layer.
package identity

import (
	"context"
	"errors"
	"slices"
)

// ErrUnauthorized is returned when credentials do not map to an identity.
// Providers never reveal whether the user exists.
var ErrUnauthorized = errors.New("unauthorized")

// ErrUnsupportedCredType is returned when a provider cannot handle the
// credential type it was given.
var ErrUnsupportedCredType = errors.New("unsupported credential type")

// Identity is an authenticated actor.
type Identity struct {
	Username string   `json:"username"`
	IsAdmin  bool     `json:"is_admin"`
	Groups   []string `json:"groups,omitempty"`
}

// InGroup reports whether the identity belongs to group.
func (id Identity) InGroup(group string) bool {
	return slices.Contains(id.Groups, group)
}

// Subject returns the quota subject key for the identity.
func (id Identity) Subject() string {
	return "user:" + id.Username
}

// IsZero reports whether the identity is empty.
func (id Identity) IsZero() bool {
	return id.Username == ""
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Package auth issues and validates the JWT session tokens of the REST API.
package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marmos91/fileserv/pkg/identity"
)

// TokenType indicates whether a token is an access token or refresh token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived token used for API authorization.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived token used to obtain new access tokens.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT claims of a fileserv session. They carry the whole
// identity so requests are authorized without a store round trip.
type Claims struct {
	jwt.RegisteredClaims

	Username string `json:"username"`

	// Admin bypasses every zone and permission check.
	Admin bool `json:"admin"`

	Groups []string `json:"groups,omitempty"`

	TokenType TokenType `json:"token_type"`
}

// HasGroup returns true if the user belongs to the specified group.
func (c *Claims) HasGroup(groupName string) bool {
	return slices.Contains(c.Groups, groupName)
}

// Identity returns the actor the claims describe.
func (c *Claims) Identity() identity.Identity {
	return identity.Identity{
		Username: c.Username,
		IsAdmin:  c.Admin,
		Groups:   slices.Clone(c.Groups),
	}
}

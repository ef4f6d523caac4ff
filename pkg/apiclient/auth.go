package apiclient

import (
	"time"

	"github.com/marmos91/fileserv/internal/controlplane/api/handlers"
	"github.com/marmos91/fileserv/pkg/identity"
)

// TokenResponse is the response from the login and refresh endpoints.
type TokenResponse = handlers.LoginResponse

// ExpiresIn returns the access token lifetime of t.
func ExpiresIn(t *TokenResponse) time.Duration {
	return time.Duration(t.ExpiresIn) * time.Second
}

// Login authenticates with the server and returns tokens.
func (c *Client) Login(username, password string) (*TokenResponse, error) {
	return createResource[TokenResponse](c, "/api/v1/auth/login", handlers.LoginRequest{
		Username: username,
		Password: password,
	})
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshToken(refreshToken string) (*TokenResponse, error) {
	return createResource[TokenResponse](c, "/api/v1/auth/refresh", handlers.RefreshRequest{
		RefreshToken: refreshToken,
	})
}

// Me returns the identity of the authenticated user.
func (c *Client) Me() (*identity.Identity, error) {
	return getResource[identity.Identity](c, "/api/v1/auth/me")
}

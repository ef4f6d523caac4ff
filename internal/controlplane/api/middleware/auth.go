// Package middleware provides HTTP middleware for the fileserv API.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/marmos91/fileserv/internal/controlplane/api/handlers"
	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/pkg/identity"
)

// extractBearerToken extracts the token from a Bearer Authorization header.
// Returns the token string and true if successful, or empty string and false if not.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}

// BearerAuth authenticates the Bearer token through provider and stores
// the resulting identity in the request context. Missing or invalid tokens
// get 401 Unauthorized.
func BearerAuth(provider identity.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				handlers.Unauthorized(w, "Authorization header required")
				return
			}

			id, err := provider.Authenticate(r.Context(), &identity.BearerCredentials{Token: token})
			if err != nil {
				if !errors.Is(err, identity.ErrUnauthorized) {
					logger.WarnCtx(r.Context(), "token authentication failed", logger.KeyError, err)
				}
				handlers.Unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := identity.WithIdentity(r.Context(), id)
			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithUser(id.Username))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin is a middleware that blocks non-admin users.
// Must be used after BearerAuth.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identity.FromContext(r.Context())
			if !ok || id.IsZero() {
				handlers.Unauthorized(w, "Authentication required")
				return
			}

			if !id.IsAdmin {
				handlers.Forbidden(w, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/fileserv/internal/controlplane/api/auth"
	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/identity"
)

// AuthHandler handles authentication-related API endpoints.
type AuthHandler struct {
	provider   identity.Provider
	users      store.UserStore
	jwtService *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler. provider verifies passwords;
// users is consulted on refresh so disabled accounts lose access.
func NewAuthHandler(provider identity.Provider, users store.UserStore, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		provider:   provider,
		users:      users,
		jwtService: jwtService,
	}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response body for POST /api/v1/auth/login.
type LoginResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	TokenType    string            `json:"token_type"`
	ExpiresIn    int64             `json:"expires_in"`
	ExpiresAt    time.Time         `json:"expires_at"`
	User         identity.Identity `json:"user"`
}

// RefreshRequest is the request body for POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login handles POST /api/v1/auth/login.
// Authenticates user credentials and returns a JWT token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	id, err := h.provider.Authenticate(r.Context(), &identity.PasswordCredentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			Unauthorized(w, "Invalid username or password")
			return
		}
		logger.ErrorCtx(r.Context(), "login failed", logger.KeyUsername, req.Username, logger.KeyError, err)
		InternalServerError(w, "Authentication failed")
		return
	}

	h.writeTokens(w, id)
}

// Refresh handles POST /api/v1/auth/refresh.
// Returns a new token pair using a valid refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			Unauthorized(w, "Refresh token has expired")
			return
		}
		Unauthorized(w, "Invalid refresh token")
		return
	}

	// Group membership and role may have changed since the token was issued.
	user, err := h.users.GetUser(r.Context(), claims.Username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "Invalid refresh token")
			return
		}
		InternalServerError(w, "Failed to fetch user")
		return
	}
	if !user.Enabled {
		Forbidden(w, "User account is disabled")
		return
	}

	h.writeTokens(w, identity.FromUser(user))
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := actorFrom(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	WriteJSONOK(w, id)
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, id identity.Identity) {
	tokenPair, err := h.jwtService.GenerateTokenPair(id)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	WriteJSONOK(w, LoginResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		ExpiresAt:    tokenPair.ExpiresAt,
		User:         id,
	})
}

package identity

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// Credentials represents authentication credentials.
type Credentials interface {
	// Type returns the credential type identifier ("password", "bearer").
	Type() string
}

// PasswordCredentials represents username/password authentication.
type PasswordCredentials struct {
	Username string
	Password string
}

// Type returns "password".
func (c *PasswordCredentials) Type() string {
	return "password"
}

// BearerCredentials carries a session token issued by the API.
type BearerCredentials struct {
	Token string
}

// Type returns "bearer".
func (c *BearerCredentials) Type() string {
	return "bearer"
}

// Provider maps request credentials to an identity.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Authenticate validates creds. Returns ErrUnauthorized when they are
	// invalid and ErrUnsupportedCredType when the type is not handled.
	Authenticate(ctx context.Context, creds Credentials) (Identity, error)

	// SupportsCredentialType returns true if the provider handles credType.
	SupportsCredentialType(credType string) bool
}

// CredentialStore is the subset of the control plane store used to verify
// passwords.
type CredentialStore interface {
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error
}

// StoreProvider authenticates username/password pairs against the control
// plane user table.
type StoreProvider struct {
	store CredentialStore
}

// NewStoreProvider creates a StoreProvider.
func NewStoreProvider(store CredentialStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// Name returns "local".
func (p *StoreProvider) Name() string {
	return "local"
}

// Authenticate validates password credentials.
func (p *StoreProvider) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	c, ok := creds.(*PasswordCredentials)
	if !ok {
		return Identity{}, ErrUnsupportedCredType
	}

	user, err := p.store.ValidateCredentials(ctx, c.Username, c.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) || errors.Is(err, models.ErrUserDisabled) {
			logger.SecurityEvent(ctx, "login_failed", logger.KeyUsername, c.Username)
			return Identity{}, ErrUnauthorized
		}
		return Identity{}, err
	}

	if err := p.store.UpdateLastLogin(ctx, user.Username, time.Now()); err != nil {
		logger.WarnCtx(ctx, "failed to record last login", logger.KeyUsername, user.Username, logger.KeyError, err)
	}

	return FromUser(user), nil
}

// SupportsCredentialType returns true for "password".
func (p *StoreProvider) SupportsCredentialType(credType string) bool {
	return credType == "password"
}

// FromUser converts a stored user into an identity.
func FromUser(user *models.User) Identity {
	return Identity{
		Username: user.Username,
		IsAdmin:  user.IsAdmin(),
		Groups:   user.GetGroupNames(),
	}
}

// Chain tries providers in order until one accepts the credentials.
type Chain struct {
	providers []Provider
}

// NewChain creates a chain with the given providers.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Name returns "chain".
func (c *Chain) Name() string {
	return "chain"
}

// Authenticate tries each provider that supports the credential type.
func (c *Chain) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	var lastErr error
	for _, provider := range c.providers {
		if !provider.SupportsCredentialType(creds.Type()) {
			continue
		}
		id, err := provider.Authenticate(ctx, creds)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return Identity{}, lastErr
	}
	return Identity{}, ErrUnsupportedCredType
}

// SupportsCredentialType returns true if any provider supports the type.
func (c *Chain) SupportsCredentialType(credType string) bool {
	for _, provider := range c.providers {
		if provider.SupportsCredentialType(credType) {
			return true
		}
	}
	return false
}

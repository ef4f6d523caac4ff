package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

type fakeCredentialStore struct {
	users  map[string]*models.User
	logins []string
}

func (s *fakeCredentialStore) ValidateCredentials(_ context.Context, username, password string) (*models.User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, models.ErrInvalidCredentials
	}
	if !u.Enabled {
		return nil, models.ErrUserDisabled
	}
	if u.PasswordHash != password {
		return nil, models.ErrInvalidCredentials
	}
	return u, nil
}

func (s *fakeCredentialStore) UpdateLastLogin(_ context.Context, username string, _ time.Time) error {
	s.logins = append(s.logins, username)
	return nil
}

func newFakeStore() *fakeCredentialStore {
	return &fakeCredentialStore{users: map[string]*models.User{
		"alice": {Username: "alice", PasswordHash: "pw", Enabled: true, Role: "user", Groups: []models.Group{{Name: "eng"}}},
		"root":  {Username: "root", PasswordHash: "pw", Enabled: true, Role: "admin"},
		"gone":  {Username: "gone", PasswordHash: "pw", Enabled: false},
	}}
}

func TestStoreProvider(t *testing.T) {
	store := newFakeStore()
	p := NewStoreProvider(store)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		id, err := p.Authenticate(ctx, &PasswordCredentials{Username: "alice", Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, Identity{Username: "alice", Groups: []string{"eng"}}, id)
		assert.True(t, id.InGroup("eng"))
		assert.Contains(t, store.logins, "alice")
	})

	t.Run("admin", func(t *testing.T) {
		id, err := p.Authenticate(ctx, &PasswordCredentials{Username: "root", Password: "pw"})
		require.NoError(t, err)
		assert.True(t, id.IsAdmin)
	})

	for _, creds := range []*PasswordCredentials{
		{Username: "alice", Password: "bad"},
		{Username: "nobody", Password: "pw"},
		{Username: "gone", Password: "pw"},
	} {
		t.Run("unauthorized "+creds.Username, func(t *testing.T) {
			_, err := p.Authenticate(ctx, creds)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}

	t.Run("unsupported type", func(t *testing.T) {
		_, err := p.Authenticate(ctx, &BearerCredentials{Token: "x"})
		assert.ErrorIs(t, err, ErrUnsupportedCredType)
		assert.False(t, p.SupportsCredentialType("bearer"))
	})
}

type staticProvider struct {
	credType string
	id       Identity
	err      error
}

func (p staticProvider) Name() string { return "static" }
func (p staticProvider) Authenticate(context.Context, Credentials) (Identity, error) {
	return p.id, p.err
}
func (p staticProvider) SupportsCredentialType(t string) bool { return t == p.credType }

func TestChain(t *testing.T) {
	ctx := context.Background()
	failing := staticProvider{credType: "bearer", err: ErrUnauthorized}
	working := staticProvider{credType: "bearer", id: Identity{Username: "bob"}}

	chain := NewChain(failing, working)
	id, err := chain.Authenticate(ctx, &BearerCredentials{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Username)
	assert.True(t, chain.SupportsCredentialType("bearer"))

	_, err = NewChain(failing).Authenticate(ctx, &BearerCredentials{})
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = chain.Authenticate(ctx, &PasswordCredentials{})
	assert.ErrorIs(t, err, ErrUnsupportedCredType)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Username: "alice"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "user:alice", id.Subject())
	assert.False(t, id.IsZero())
}

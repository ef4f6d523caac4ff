// Package credentials stores the login contexts used by the fileserv CLI.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultConfigDir is the directory under $XDG_CONFIG_HOME holding the
	// credentials file. It is shared with the server configuration.
	DefaultConfigDir = "fileserv"
	// ConfigFileName is the name of the credentials file.
	ConfigFileName = "credentials.json"
	// FilePermissions for the credentials file (owner only).
	FilePermissions = 0600
	// DirPermissions for the credentials directory.
	DirPermissions = 0700

	// expirySkew treats tokens this close to expiry as already expired.
	expirySkew = 60 * time.Second
)

var (
	// ErrNoCurrentContext indicates no context is currently set.
	ErrNoCurrentContext = errors.New("no current context set")
	// ErrContextNotFound indicates the requested context doesn't exist.
	ErrContextNotFound = errors.New("context not found")
	// ErrNotLoggedIn indicates the current context holds no tokens.
	ErrNotLoggedIn = errors.New("not logged in - run 'fsctl login' first")
)

// Context is a login to one fileserv server.
type Context struct {
	ServerURL    string    `json:"server_url"`
	Username     string    `json:"username,omitempty"`
	IsAdmin      bool      `json:"is_admin,omitempty"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the access token has expired or is about to.
func (c *Context) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(expirySkew).After(c.ExpiresAt)
}

// HasRefreshToken reports whether a refresh token is available.
func (c *Context) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// LoggedIn reports whether the context holds tokens.
func (c *Context) LoggedIn() bool {
	return c.AccessToken != "" || c.RefreshToken != ""
}

// File is the on-disk layout of the credentials file.
type File struct {
	CurrentContext string              `json:"current_context"`
	Contexts       map[string]*Context `json:"contexts"`
}

// Store reads and writes the credentials file.
type Store struct {
	path string
	file *File
}

// NewStore opens the credentials file in the default location.
func NewStore() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Open opens the credentials file at path. A missing file yields an empty
// store; it is created on the first write.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cannot read credentials %s: %w", path, err)
		}
		s.file = &File{Contexts: make(map[string]*Context)}
	}
	return s, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/fileserv/credentials.json.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, DefaultConfigDir, ConfigFileName), nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	s.file = &File{}
	if err := json.Unmarshal(data, s.file); err != nil {
		return err
	}
	if s.file.Contexts == nil {
		s.file.Contexts = make(map[string]*Context)
	}
	return nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), DirPermissions); err != nil {
		return fmt.Errorf("cannot create credentials directory: %w", err)
	}
	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, FilePermissions)
}

// Path returns the location of the credentials file.
func (s *Store) Path() string {
	return s.path
}

// Current returns the current context.
func (s *Store) Current() (*Context, error) {
	if s.file.CurrentContext == "" {
		return nil, ErrNoCurrentContext
	}
	ctx, ok := s.file.Contexts[s.file.CurrentContext]
	if !ok {
		return nil, ErrContextNotFound
	}
	return ctx, nil
}

// CurrentName returns the name of the current context.
func (s *Store) CurrentName() string {
	return s.file.CurrentContext
}

// Get returns a context by name.
func (s *Store) Get(name string) (*Context, error) {
	ctx, ok := s.file.Contexts[name]
	if !ok {
		return nil, ErrContextNotFound
	}
	return ctx, nil
}

// Names returns every context name in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.file.Contexts))
	for name := range s.file.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set creates or replaces a context and makes it current.
func (s *Store) Set(name string, ctx *Context) error {
	s.file.Contexts[name] = ctx
	s.file.CurrentContext = name
	return s.save()
}

// Use switches the current context.
func (s *Store) Use(name string) error {
	if _, ok := s.file.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	s.file.CurrentContext = name
	return s.save()
}

// Delete removes a context. Deleting the current context leaves none
// current.
func (s *Store) Delete(name string) error {
	if _, ok := s.file.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	delete(s.file.Contexts, name)
	if s.file.CurrentContext == name {
		s.file.CurrentContext = ""
	}
	return s.save()
}

// UpdateTokens replaces the tokens of the current context.
func (s *Store) UpdateTokens(accessToken, refreshToken string, expiresAt time.Time) error {
	ctx, err := s.Current()
	if err != nil {
		return err
	}
	ctx.AccessToken = accessToken
	ctx.RefreshToken = refreshToken
	ctx.ExpiresAt = expiresAt
	return s.save()
}

// Logout drops the tokens of the current context but keeps its server.
func (s *Store) Logout() error {
	ctx, err := s.Current()
	if err != nil {
		return err
	}
	ctx.AccessToken = ""
	ctx.RefreshToken = ""
	ctx.ExpiresAt = time.Time{}
	return s.save()
}

// ContextName derives a context name from a server URL and user, for
// example "alice@files.example.com:8080".
func ContextName(serverURL, username string) string {
	host := serverURL
	if u, err := url.Parse(serverURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.TrimSuffix(host, "/")
	if username == "" {
		return host
	}
	return username + "@" + host
}

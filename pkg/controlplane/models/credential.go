package models

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used for account and link passwords unless a cost
// is configured.
const DefaultBcryptCost = 10

// Account passwords must be MinPasswordLength..MaxPasswordLength bytes.
// The upper bound is where bcrypt stops reading input.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordEmpty      = errors.New("password must not be empty")
	ErrPasswordTooLong    = errors.New("password must be at most 72 characters")
)

// ValidatePassword applies the account password length policy.
func ValidatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword hashes an account password at DefaultBcryptCost.
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultBcryptCost)
}

// HashPasswordWithCost hashes an account password at cost (4..31).
func HashPasswordWithCost(password string, cost int) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	return bcryptHash(password, cost)
}

// VerifyPassword reports whether password matches a bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash is unreadable or was produced at a cost
// below DefaultBcryptCost.
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost < DefaultBcryptCost
}

func bcryptHash(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// BcryptHasher hashes share link passwords. Any non-empty password up to
// MaxPasswordLength is accepted; the account minimum does not apply.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrPasswordEmpty
	case len(password) > MaxPasswordLength:
		return "", ErrPasswordTooLong
	}
	return bcryptHash(password, h.Cost)
}

func (h BcryptHasher) Verify(password, hash string) bool {
	return VerifyPassword(password, hash)
}

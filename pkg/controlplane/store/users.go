package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// ============================================
// USER OPERATIONS
// ============================================

func (s *GORMStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "username", username, models.ErrUserNotFound, "Groups")
}

func (s *GORMStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", id, models.ErrUserNotFound, "Groups")
}

func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	users := []*models.User{}
	if err := s.db.WithContext(ctx).Preload("Groups").Order("username").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (string, error) {
	if user.Role == "" {
		user.Role = string(models.RoleUser)
	}
	return createWithID(s.db, ctx, user, func(u *models.User, id string) { u.ID = id }, user.ID, models.ErrDuplicateUser)
}

func (s *GORMStore) UpdateUser(ctx context.Context, user *models.User) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Select("Username", "Enabled", "Role", "DisplayName", "Email").
		Updates(user)
	if result.Error != nil && isUniqueConstraintError(result.Error) {
		return models.ErrDuplicateUser
	}
	return requireAffected(result, models.ErrUserNotFound)
}

func (s *GORMStore) DeleteUser(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
			return convertNotFoundError(err, models.ErrUserNotFound)
		}

		// Drop the user's direct grants
		if err := tx.Where("username = ?", username).Delete(&models.Permission{}).Error; err != nil {
			return err
		}

		if err := tx.Model(&user).Association("Groups").Clear(); err != nil {
			return err
		}

		return tx.Delete(&user).Error
	})
}

func (s *GORMStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Update("password_hash", passwordHash)
	return requireAffected(result, models.ErrUserNotFound)
}

func (s *GORMStore) UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Update("last_login", timestamp.UTC())
	return requireAffected(result, models.ErrUserNotFound)
}

func (s *GORMStore) ValidateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Enabled {
		return nil, models.ErrUserDisabled
	}

	if !models.VerifyPassword(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}

	if models.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}
	return user, nil
}

// upgradeHash re-hashes a verified password at the current cost. Failures
// leave the old hash in place.
func (s *GORMStore) upgradeHash(ctx context.Context, user *models.User, password string) {
	hash, err := models.HashPassword(password)
	if err != nil {
		return
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("password_hash", hash).Error; err == nil {
		user.PasswordHash = hash
	}
}

// EnsureAdminUser creates the administrator account when no user with that
// name exists. Returns true if the account was created.
func (s *GORMStore) EnsureAdminUser(ctx context.Context, username, passwordHash string) (bool, error) {
	_, err := s.GetUser(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return false, err
	}

	admin := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         string(models.RoleAdmin),
		Enabled:      true,
		DisplayName:  "Administrator",
	}
	if _, err := s.CreateUser(ctx, admin); err != nil {
		return false, err
	}
	return true, nil
}

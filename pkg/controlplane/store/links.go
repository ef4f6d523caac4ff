package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// ============================================
// SHARE LINK OPERATIONS
// ============================================

// accessibleAt restricts q to links that are enabled, unexpired and below
// both of their limits. Soft-deleted rows are excluded by GORM.
func accessibleAt(q *gorm.DB, now time.Time) *gorm.DB {
	return q.
		Where("enabled = ?", true).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Where("(max_downloads = 0 OR download_count < max_downloads)").
		Where("(max_views = 0 OR view_count < max_views)")
}

func (s *GORMStore) CreateLink(ctx context.Context, link *models.ShareLink) (string, error) {
	return createWithID(s.db, ctx, link, func(l *models.ShareLink, id string) { l.ID = id }, link.ID, models.ErrDuplicateLink)
}

func (s *GORMStore) GetLink(ctx context.Context, id string) (*models.ShareLink, error) {
	return getByField[models.ShareLink](s.db, ctx, "id", id, models.ErrLinkNotFound)
}

func (s *GORMStore) GetLinkByTokenHash(ctx context.Context, tokenHash string) (*models.ShareLink, error) {
	return getByField[models.ShareLink](s.db, ctx, "token_hash", tokenHash, models.ErrLinkNotFound)
}

func (s *GORMStore) ListLinks(ctx context.Context, owner string) ([]*models.ShareLink, error) {
	if owner == "" {
		return listWhere[models.ShareLink](s.db, ctx, "created_at DESC", "")
	}
	return listWhere[models.ShareLink](s.db, ctx, "created_at DESC", "owner = ?", owner)
}

func (s *GORMStore) IncrementLinkCounter(ctx context.Context, id string, counter LinkCounter, now time.Time) (bool, error) {
	if counter != CounterViews && counter != CounterDownloads {
		return false, fmt.Errorf("unknown link counter %q", counter)
	}
	now = now.UTC()

	result := accessibleAt(s.db.WithContext(ctx).Model(&models.ShareLink{}).Where("id = ?", id), now).
		Updates(map[string]any{
			string(counter): gorm.Expr(string(counter) + " + 1"),
			"last_accessed": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GORMStore) TouchLink(ctx context.Context, id string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.ShareLink{}).
		Where("id = ?", id).
		Update("last_accessed", now.UTC())
	return requireAffected(result, models.ErrLinkNotFound)
}

func (s *GORMStore) SetLinkEnabled(ctx context.Context, id string, enabled bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.ShareLink{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	return requireAffected(result, models.ErrLinkNotFound)
}

func (s *GORMStore) DeleteLink(ctx context.Context, id string) error {
	return deleteByField[models.ShareLink](s.db, ctx, "id", id, models.ErrLinkNotFound)
}

func (s *GORMStore) ReapLinks(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("(expires_at IS NOT NULL AND expires_at <= ?) OR "+
			"(max_downloads > 0 AND download_count >= max_downloads) OR "+
			"(max_views > 0 AND view_count >= max_views)", now.UTC()).
		Delete(&models.ShareLink{})
	return result.RowsAffected, result.Error
}

package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// ============================================
// STORAGE POOL OPERATIONS
// ============================================

func (s *GORMStore) GetPool(ctx context.Context, id string) (*models.StoragePool, error) {
	return getByField[models.StoragePool](s.db, ctx, "id", id, models.ErrPoolNotFound)
}

func (s *GORMStore) GetPoolByName(ctx context.Context, name string) (*models.StoragePool, error) {
	return getByField[models.StoragePool](s.db, ctx, "name", name, models.ErrPoolNotFound)
}

func (s *GORMStore) ListPools(ctx context.Context) ([]*models.StoragePool, error) {
	return listWhere[models.StoragePool](s.db, ctx, "name", "")
}

func (s *GORMStore) CreatePool(ctx context.Context, pool *models.StoragePool) (string, error) {
	return createWithID(s.db, ctx, pool, func(p *models.StoragePool, id string) { p.ID = id }, pool.ID, models.ErrDuplicatePool)
}

func (s *GORMStore) UpdatePool(ctx context.Context, pool *models.StoragePool) error {
	result := s.db.WithContext(ctx).
		Model(&models.StoragePool{}).
		Where("id = ?", pool.ID).
		Select("Name", "Path", "Description", "ReservedSpace", "MaxFileSize",
			"AllowedTypes", "DeniedTypes", "DefaultUserQuota", "DefaultGroupQuota").
		Updates(pool)
	if result.Error != nil && isUniqueConstraintError(result.Error) {
		return models.ErrDuplicatePool
	}
	return requireAffected(result, models.ErrPoolNotFound)
}

func (s *GORMStore) SetPoolEnabled(ctx context.Context, id string, enabled, cascade bool) (int64, error) {
	var disabled int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getByField[models.StoragePool](tx, ctx, "id", id, models.ErrPoolNotFound); err != nil {
			return err
		}

		if !enabled {
			var count int64
			if err := tx.Model(&models.ShareZone{}).
				Where("pool_id = ? AND enabled = ?", id, true).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 && !cascade {
				return fmt.Errorf("%w: %d enabled", models.ErrPoolHasEnabledZones, count)
			}
			if count > 0 {
				result := tx.Model(&models.ShareZone{}).
					Where("pool_id = ? AND enabled = ?", id, true).
					Update("enabled", false)
				if result.Error != nil {
					return result.Error
				}
				disabled = result.RowsAffected
			}
		}

		return tx.Model(&models.StoragePool{}).Where("id = ?", id).Update("enabled", enabled).Error
	})
	if err != nil {
		return 0, err
	}
	return disabled, nil
}

func (s *GORMStore) UpdatePoolCapacity(ctx context.Context, id string, total, used, free int64) error {
	result := s.db.WithContext(ctx).
		Model(&models.StoragePool{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_space": total,
			"used_space":  used,
			"free_space":  free,
		})
	return requireAffected(result, models.ErrPoolNotFound)
}

func (s *GORMStore) DeletePool(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ShareZone{}).Where("pool_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %d zones", models.ErrPoolHasZones, count)
		}
		return deleteByField[models.StoragePool](tx, ctx, "id", id, models.ErrPoolNotFound)
	})
}

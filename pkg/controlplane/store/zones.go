package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// ============================================
// SHARE ZONE OPERATIONS
// ============================================

func (s *GORMStore) GetZone(ctx context.Context, id string) (*models.ShareZone, error) {
	return getByField[models.ShareZone](s.db, ctx, "id", id, models.ErrZoneNotFound)
}

func (s *GORMStore) GetZoneByName(ctx context.Context, name string) (*models.ShareZone, error) {
	return getByField[models.ShareZone](s.db, ctx, "name", name, models.ErrZoneNotFound)
}

func (s *GORMStore) ListZones(ctx context.Context) ([]*models.ShareZone, error) {
	return listWhere[models.ShareZone](s.db, ctx, "name", "")
}

func (s *GORMStore) ListZonesByPool(ctx context.Context, poolID string) ([]*models.ShareZone, error) {
	return listWhere[models.ShareZone](s.db, ctx, "name", "pool_id = ?", poolID)
}

func (s *GORMStore) CreateZone(ctx context.Context, zone *models.ShareZone) (string, error) {
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getByField[models.StoragePool](tx, ctx, "id", zone.PoolID, models.ErrPoolNotFound); err != nil {
			return err
		}
		var err error
		id, err = createWithID(tx, ctx, zone, func(z *models.ShareZone, id string) { z.ID = id }, zone.ID, models.ErrDuplicateZone)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *GORMStore) UpdateZone(ctx context.Context, zone *models.ShareZone) error {
	result := s.db.WithContext(ctx).
		Model(&models.ShareZone{}).
		Where("id = ?", zone.ID).
		Select("Name", "Description", "Path", "ZoneType", "Enabled", "AutoProvision",
			"AllowedUsers", "AllowedGroups", "DenyUsers", "DenyGroups", "MaxQuotaPerUser",
			"ReadOnly", "AllowWrite", "Browsable", "AllowNetworkShares", "AllowWebShares",
			"SMBOptions", "NFSOptions", "WebOptions").
		Updates(zone)
	if result.Error != nil && isUniqueConstraintError(result.Error) {
		return models.ErrDuplicateZone
	}
	return requireAffected(result, models.ErrZoneNotFound)
}

func (s *GORMStore) DeleteZone(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("zone_id = ?", id).Delete(&models.Permission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("zone_id = ?", id).Delete(&models.ShareLink{}).Error; err != nil {
			return err
		}
		return deleteByField[models.ShareZone](tx, ctx, "id", id, models.ErrZoneNotFound)
	})
}

// ============================================
// PERMISSION OPERATIONS
// ============================================

func (s *GORMStore) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	return listWhere[models.Permission](s.db, ctx, "zone_id, path", "")
}

func (s *GORMStore) ListZonePermissions(ctx context.Context, zoneID string) ([]*models.Permission, error) {
	return listWhere[models.Permission](s.db, ctx, "path", "zone_id = ?", zoneID)
}

func (s *GORMStore) GetPermission(ctx context.Context, id string) (*models.Permission, error) {
	return getByField[models.Permission](s.db, ctx, "id", id, models.ErrPermissionNotFound)
}

func (s *GORMStore) CreatePermission(ctx context.Context, perm *models.Permission) (string, error) {
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getByField[models.ShareZone](tx, ctx, "id", perm.ZoneID, models.ErrZoneNotFound); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Permission{}).
			Where("zone_id = ? AND path = ? AND username = ? AND group_name = ?",
				perm.ZoneID, perm.Path, perm.Username, perm.GroupName).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.ErrDuplicatePermission
		}

		var err error
		id, err = createWithID(tx, ctx, perm, func(p *models.Permission, id string) { p.ID = id }, perm.ID, models.ErrDuplicatePermission)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *GORMStore) DeletePermission(ctx context.Context, id string) error {
	return deleteByField[models.Permission](s.db, ctx, "id", id, models.ErrPermissionNotFound)
}

package store

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"gorm.io/gorm"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// ============================================
// GROUP OPERATIONS
// ============================================

func (s *GORMStore) GetGroup(ctx context.Context, name string) (*models.Group, error) {
	return getByField[models.Group](s.db, ctx, "name", name, models.ErrGroupNotFound, "Users")
}

func (s *GORMStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	groups := []*models.Group{}
	err := s.db.WithContext(ctx).Preload("Users").Order("name").Find(&groups).Error
	return groups, err
}

func (s *GORMStore) CreateGroup(ctx context.Context, group *models.Group) (string, error) {
	if err := group.Validate(); err != nil {
		return "", err
	}
	return createWithID(s.db, ctx, group, func(g *models.Group, id string) { g.ID = id }, group.ID, models.ErrDuplicateGroup)
}

// DeleteGroup removes the group, its memberships and its permissions, and
// strips its name from every zone allow and deny list.
func (s *GORMStore) DeleteGroup(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Where("name = ?", name).First(&group).Error; err != nil {
			return convertNotFoundError(err, models.ErrGroupNotFound)
		}
		if err := tx.Where("group_name = ?", name).Delete(&models.Permission{}).Error; err != nil {
			return err
		}
		if err := scrubZoneGroup(tx, name); err != nil {
			return err
		}
		if err := tx.Model(&group).Association("Users").Clear(); err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
}

// scrubZoneGroup rewrites the group lists of zones that mention name.
func scrubZoneGroup(tx *gorm.DB, name string) error {
	pattern := "%" + strconv.Quote(name) + "%"
	var zones []models.ShareZone
	if err := tx.Where("allowed_groups LIKE ? OR deny_groups LIKE ?", pattern, pattern).Find(&zones).Error; err != nil {
		return err
	}
	for i := range zones {
		z := &zones[i]
		allowed, denied := without(z.AllowedGroups, name), without(z.DenyGroups, name)
		if len(allowed) == len(z.AllowedGroups) && len(denied) == len(z.DenyGroups) {
			continue
		}
		if err := tx.Model(z).Updates(map[string]any{
			"allowed_groups": allowed,
			"deny_groups":    denied,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

func without(l models.StringList, name string) models.StringList {
	out := make(models.StringList, 0, len(l))
	for _, v := range l {
		if v != name {
			out = append(out, v)
		}
	}
	return out
}

// membership loads both sides of a user/group link inside tx.
func membership(tx *gorm.DB, username, groupName string) (*models.User, *models.Group, error) {
	var user models.User
	if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	var group models.Group
	if err := tx.Where("name = ?", groupName).First(&group).Error; err != nil {
		return &user, nil, convertNotFoundError(err, models.ErrGroupNotFound)
	}
	return &user, &group, nil
}

func (s *GORMStore) AddUserToGroup(ctx context.Context, username, groupName string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, group, err := membership(tx, username, groupName)
		if err != nil {
			return err
		}
		return tx.Model(user).Association("Groups").Append(group)
	})
}

// RemoveUserFromGroup is a no-op when the group does not exist.
func (s *GORMStore) RemoveUserFromGroup(ctx context.Context, username, groupName string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, group, err := membership(tx, username, groupName)
		switch {
		case errors.Is(err, models.ErrGroupNotFound):
			return nil
		case err != nil:
			return err
		}
		return tx.Model(user).Association("Groups").Delete(group)
	})
}

func (s *GORMStore) GetGroupMembers(ctx context.Context, groupName string) ([]*models.User, error) {
	group, err := s.GetGroup(ctx, groupName)
	if err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, len(group.Users))
	for i := range group.Users {
		users = append(users, &group.Users[i])
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

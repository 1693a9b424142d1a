package storage

import (
	"context"
	"strings"

	"github.com/alex-pricope/campus-election-system/logging"
	"gorm.io/gorm"
)

type GormUserStorage struct {
	DB *gorm.DB
}

func (s *GormUserStorage) Get(ctx context.Context, id string) (*User, error) {
	var user User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, ErrNotFound
		}
		logging.Log.Errorf("USER: failed to get user %s: %v", id, err)
		return nil, err
	}
	return &user, nil
}

func (s *GormUserStorage) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.DB.WithContext(ctx).First(&user, "username = ?", strings.ToLower(strings.TrimSpace(username))).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrNotFound
		}
		logging.Log.Errorf("USER: failed to get user %s: %v", username, err)
		return nil, err
	}
	return &user, nil
}

func (s *GormUserStorage) GetByRole(ctx context.Context, role Role) ([]*User, error) {
	var users []*User
	if err := s.DB.WithContext(ctx).Where("role = ?", role).Order("created_at DESC").Find(&users).Error; err != nil {
		logging.Log.Errorf("USER: failed to list users with role %s: %v", role, err)
		return nil, err
	}
	return users, nil
}

func (s *GormUserStorage) CountByRole(ctx context.Context, role Role) (int, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&User{}).Where("role = ?", role).Count(&n).Error; err != nil {
		logging.Log.Errorf("USER: count by role %s failed: %v", role, err)
		return 0, err
	}
	return int(n), nil
}

func (s *GormUserStorage) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&User{}).Count(&n).Error; err != nil {
		logging.Log.Errorf("USER: count failed: %v", err)
		return 0, err
	}
	return int(n), nil
}

func (s *GormUserStorage) Create(ctx context.Context, user *User) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		if _, ok := uniqueViolation(err); ok {
			logging.Log.Warnf("USER: username %s already exists", user.Username)
			return ErrDuplicateUsername
		}
		logging.Log.Errorf("USER: failed to create user: %v", err)
		return err
	}
	return nil
}

func (s *GormUserStorage) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Delete(&User{}, "id = ?", id)
	if res.Error != nil {
		logging.Log.Errorf("USER: failed to delete user with ID %s: %v", id, res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	logging.Log.Infof("USER: deleted user with ID %s", id)
	return nil
}

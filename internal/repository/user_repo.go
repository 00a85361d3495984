package repository

import (
	"context"
	"errors"
	"time"

	"carechat/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// MarkOnline creates the user on first join, otherwise sets online and
// last_seen on the existing row.
func (r *UserRepository) MarkOnline(ctx context.Context, userID, userName, userRole string, at time.Time) (*models.User, error) {
	u, err := r.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = &models.User{
			UserID:   userID,
			UserName: userName,
			UserRole: userRole,
			IsOnline: true,
			LastSeen: &at,
		}
		if err := r.Create(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	}
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Model(u).
		Updates(map[string]interface{}{"is_online": true, "last_seen": at}).Error
	if err != nil {
		return nil, err
	}
	u.IsOnline = true
	u.LastSeen = &at
	return u, nil
}

func (r *UserRepository) MarkOffline(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"is_online": false, "last_seen": at}).Error
}

// ResetOnline marks every user offline. Used at startup, when no connection
// can still be live.
func (r *UserRepository) ResetOnline(ctx context.Context, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("is_online = ?", true).
		Updates(map[string]interface{}{"is_online": false, "last_seen": at})
	return res.RowsAffected, res.Error
}

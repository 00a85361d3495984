package repository

import (
	"context"
	"time"

	"carechat/internal/models"

	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *models.UserSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// CloseByConnectionID ends the active session bound to the connection, if any.
func (r *SessionRepository) CloseByConnectionID(ctx context.Context, connectionID string, at time.Time) (*models.UserSession, error) {
	var s models.UserSession
	err := r.db.WithContext(ctx).Where("connection_id = ? AND is_active = ?", connectionID, true).First(&s).Error
	if err != nil {
		return nil, err
	}
	s.Close(at)
	err = r.db.WithContext(ctx).Model(&s).Updates(map[string]interface{}{
		"is_active":        false,
		"disconnected_at":  s.DisconnectedAt,
		"session_duration": s.SessionDuration,
	}).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]models.UserSession, error) {
	var list []models.UserSession
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("connected_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// CloseAllActive ends sessions left active by a previous process. Presence
// is not persisted, so none of them can still be live after a restart.
func (r *SessionRepository) CloseAllActive(ctx context.Context, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("is_active = ?", true).
		Updates(map[string]interface{}{"is_active": false, "disconnected_at": at})
	return res.RowsAffected, res.Error
}

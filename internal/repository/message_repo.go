package repository

import (
	"context"
	"time"

	"carechat/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListRecent returns the latest messages, newest first.
func (r *MessageRepository) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	var list []models.Message
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&list).Error
	return list, err
}

// ListUnreadForRecipient returns the recipient's queue oldest first, with the
// sender's current name and role copied onto each message.
func (r *MessageRepository) ListUnreadForRecipient(ctx context.Context, recipientID string) ([]models.Message, error) {
	var list []models.Message
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Preload("Sender").
		Order("created_at ASC").Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Denormalize()
	}
	return list, nil
}

// MarkRead flips one unread message to read. Already-read messages keep their
// first read_at.
func (r *MessageRepository) MarkRead(ctx context.Context, id string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *MessageRepository) MarkManyRead(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id IN ? AND is_read = ?", ids, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// MarkConversationRead marks every unread message exchanged between a and b,
// in either direction.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, a, b string, at time.Time) (int64, error) {
	db := r.db.WithContext(ctx)
	pair := db.Where("sender_id = ? AND recipient_id = ?", a, b).
		Or("sender_id = ? AND recipient_id = ?", b, a)
	res := db.Model(&models.Message{}).
		Where("is_read = ?", false).
		Where(pair).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *MessageRepository) MarkAllReadForRecipient(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// UnreadRecipientsOf returns the distinct recipients of the given messages
// that are still unread.
func (r *MessageRepository) UnreadRecipientsOf(ctx context.Context, ids []string) ([]string, error) {
	var out []string
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id IN ? AND is_read = ?", ids, false).
		Distinct().
		Pluck("recipient_id", &out).Error
	return out, err
}

// UnreadCountsBySender groups the recipient's unread messages by sender.
func (r *MessageRepository) UnreadCountsBySender(ctx context.Context, recipientID string) (map[string]int64, error) {
	var rows []struct {
		SenderID string
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(id) AS count").
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Count
	}
	return counts, nil
}

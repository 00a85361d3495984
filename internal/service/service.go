package service

import (
	"context"
	"fmt"
	"time"

	"carechat/internal/domain"
	"carechat/internal/metrics"
	"carechat/internal/models"

	"github.com/google/uuid"
)

// Emitter is the outbound side of the connection channel.
type Emitter interface {
	EmitTo(connID, event string, payload interface{}) bool
	Broadcast(event string, payload interface{})
	BroadcastExcept(connID, event string, payload interface{})
	Disconnect(connID string)
}

type MessageStore interface {
	Create(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListRecent(ctx context.Context, limit int) ([]models.Message, error)
	ListUnreadForRecipient(ctx context.Context, recipientID string) ([]models.Message, error)
	MarkRead(ctx context.Context, id string, at time.Time) (int64, error)
	MarkManyRead(ctx context.Context, ids []string, at time.Time) (int64, error)
	MarkConversationRead(ctx context.Context, a, b string, at time.Time) (int64, error)
	MarkAllReadForRecipient(ctx context.Context, recipientID string, at time.Time) (int64, error)
	UnreadRecipientsOf(ctx context.Context, ids []string) ([]string, error)
	UnreadCountsBySender(ctx context.Context, recipientID string) (map[string]int64, error)
}

type UserStore interface {
	MarkOnline(ctx context.Context, userID, userName, userRole string, at time.Time) (*models.User, error)
	MarkOffline(ctx context.Context, userID string, at time.Time) error
}

type SessionStore interface {
	Create(ctx context.Context, s *models.UserSession) error
	CloseByConnectionID(ctx context.Context, connectionID string, at time.Time) (*models.UserSession, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]models.UserSession, error)
}

// ConnMeta describes the transport side of a connection.
type ConnMeta struct {
	ID        string
	IPAddress string
	UserAgent string
}

func storeErr(op string, err error) error {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

// newMessageID returns a time-ordered UUIDv7.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

package service

import (
	"context"
	"errors"
	"time"

	"carechat/internal/domain"
	"carechat/internal/metrics"
	"carechat/internal/presence"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ReadStateService flips messages to read and republishes unread counts.
type ReadStateService struct {
	messages MessageStore
	registry *presence.Registry
	emitter  Emitter
	unread   *UnreadCounter
	log      zerolog.Logger
	now      func() time.Time
}

func NewReadStateService(messages MessageStore, registry *presence.Registry, emitter Emitter, unread *UnreadCounter, log zerolog.Logger) *ReadStateService {
	return &ReadStateService{
		messages: messages,
		registry: registry,
		emitter:  emitter,
		unread:   unread,
		log:      log.With().Str("component", "read_state").Logger(),
		now:      time.Now,
	}
}

// MarkMessageRead marks one message read and notifies both participants.
// Unknown ids return domain.ErrNotFound.
func (s *ReadStateService) MarkMessageRead(ctx context.Context, messageID string) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return storeErr("get message", err)
	}
	if !m.Read {
		n, err := s.messages.MarkRead(ctx, messageID, s.now())
		if err != nil {
			return storeErr("mark read", err)
		}
		metrics.MessagesMarkedRead.WithLabelValues("message").Add(float64(n))
	}
	for _, uid := range participants(m.SenderID, m.RecipientID) {
		if connID, ok := s.registry.ConnectionByUser(uid); ok {
			s.emitter.EmitTo(connID, domain.EventMessageRead, m.ID)
		}
	}
	s.unread.pushBestEffort(ctx, m.RecipientID)
	return nil
}

// MarkMessagesRead marks the given messages read and pushes fresh counts to
// every affected recipient that is online.
func (s *ReadStateService) MarkMessagesRead(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	recipients, err := s.messages.UnreadRecipientsOf(ctx, ids)
	if err != nil {
		return 0, storeErr("unread recipients", err)
	}
	n, err := s.messages.MarkManyRead(ctx, ids, s.now())
	if err != nil {
		return 0, storeErr("mark many read", err)
	}
	metrics.MessagesMarkedRead.WithLabelValues("batch").Add(float64(n))
	for _, uid := range recipients {
		s.unread.pushBestEffort(ctx, uid)
	}
	return n, nil
}

// MarkConversationRead marks every unread message between the two users read
// and pushes fresh counts to currentUserID only. A second call affects zero
// rows.
func (s *ReadStateService) MarkConversationRead(ctx context.Context, currentUserID, otherUserID string) (int64, error) {
	n, err := s.messages.MarkConversationRead(ctx, currentUserID, otherUserID, s.now())
	if err != nil {
		return 0, storeErr("mark conversation read", err)
	}
	metrics.MessagesMarkedRead.WithLabelValues("conversation").Add(float64(n))
	s.log.Debug().
		Str("user_id", currentUserID).
		Str("other_user_id", otherUserID).
		Int64("rows", n).
		Msg("conversation marked read")
	if err := s.unread.PushToUser(ctx, currentUserID); err != nil {
		return n, err
	}
	return n, nil
}

// ClearQueue marks every unread message addressed to userID read.
func (s *ReadStateService) ClearQueue(ctx context.Context, userID string) (int64, error) {
	n, err := s.messages.MarkAllReadForRecipient(ctx, userID, s.now())
	if err != nil {
		return 0, storeErr("clear queue", err)
	}
	metrics.MessagesMarkedRead.WithLabelValues("queue").Add(float64(n))
	s.unread.pushBestEffort(ctx, userID)
	return n, nil
}

func participants(a, b string) []string {
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}

package service

import (
	"context"
	"strings"
	"time"

	"carechat/internal/domain"
	"carechat/internal/metrics"
	"carechat/internal/models"
	"carechat/internal/presence"

	"github.com/rs/zerolog"
)

// SendInput is the sendMessage payload.
type SendInput struct {
	Text        string      `json:"text"`
	SenderID    string      `json:"senderId"`
	SenderName  string      `json:"senderName"`
	SenderRole  string      `json:"senderRole"`
	RecipientID string      `json:"recipientId"`
	Timestamp   *ClientTime `json:"timestamp,omitempty"`
}

// DeliveryService persists messages and routes them live when the recipient
// is online. An unread persisted message is the offline queue.
type DeliveryService struct {
	messages MessageStore
	registry *presence.Registry
	emitter  Emitter
	unread   *UnreadCounter
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

func NewDeliveryService(messages MessageStore, registry *presence.Registry, emitter Emitter, unread *UnreadCounter, log zerolog.Logger) *DeliveryService {
	return &DeliveryService{
		messages: messages,
		registry: registry,
		emitter:  emitter,
		unread:   unread,
		log:      log.With().Str("component", "delivery").Logger(),
		now:      time.Now,
		newID:    newMessageID,
	}
}

// Send persists the message, pushes it to the recipient's live connection if
// there is one, and acknowledges senderConnID with the new id. Nothing is
// delivered when persisting fails.
func (s *DeliveryService) Send(ctx context.Context, senderConnID string, in SendInput) (*models.Message, error) {
	if e, ok := s.registry.UserByConnection(senderConnID); ok && in.SenderID == "" {
		in.SenderID, in.SenderName, in.SenderRole = e.UserID, e.UserName, e.UserRole
	}
	if err := validateSend(in); err != nil {
		return nil, err
	}
	now := s.now()
	ts := now
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.Time
	}
	m := &models.Message{
		ID:          s.newID(),
		Text:        in.Text,
		SenderID:    in.SenderID,
		SenderName:  in.SenderName,
		SenderRole:  in.SenderRole,
		RecipientID: in.RecipientID,
		Timestamp:   ts,
		Read:        false,
		CreatedAt:   now,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, storeErr("create message", err)
	}

	delivery := "queued"
	if connID, ok := s.registry.ConnectionByUser(in.RecipientID); ok {
		if s.emitter.EmitTo(connID, domain.EventNewMessage, m) {
			delivery = "live"
		}
		if err := s.unread.PushToConnection(ctx, connID, in.RecipientID); err != nil {
			s.log.Error().Err(err).Str("user_id", in.RecipientID).Msg("push unread counts")
		}
	}
	metrics.MessagesSent.WithLabelValues(delivery).Inc()

	s.emitter.EmitTo(senderConnID, domain.EventMessageSent, m.ID)
	s.log.Info().
		Str("message_id", m.ID).
		Str("sender_id", m.SenderID).
		Str("recipient_id", m.RecipientID).
		Str("delivery", delivery).
		Msg("message sent")
	return m, nil
}

func validateSend(in SendInput) error {
	switch {
	case strings.TrimSpace(in.Text) == "":
		return validationErr("text is required")
	case in.SenderID == "":
		return validationErr("senderId is required")
	case in.SenderName == "":
		return validationErr("senderName is required")
	case !domain.ValidRole(in.SenderRole):
		return validationErr("invalid senderRole %q", in.SenderRole)
	case in.RecipientID == "":
		return validationErr("recipientId is required")
	}
	return nil
}

// Queue returns the unread messages addressed to userID, oldest first.
func (s *DeliveryService) Queue(ctx context.Context, userID string) ([]models.Message, error) {
	list, err := s.messages.ListUnreadForRecipient(ctx, userID)
	if err != nil {
		return nil, storeErr("list queue", err)
	}
	if list == nil {
		list = []models.Message{}
	}
	return list, nil
}

// DrainQueue pushes the user's queued messages to connID as one batch,
// followed by fresh unread counts.
func (s *DeliveryService) DrainQueue(ctx context.Context, connID, userID string) ([]models.Message, error) {
	list, err := s.Queue(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.emitter.EmitTo(connID, domain.EventQueuedMessages, list)
	if err := s.unread.PushToConnection(ctx, connID, userID); err != nil {
		return list, err
	}
	if len(list) > 0 {
		s.log.Info().Str("user_id", userID).Int("count", len(list)).Msg("queued messages delivered")
	}
	return list, nil
}

// Recent returns the latest messages across all conversations, newest first.
func (s *DeliveryService) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	list, err := s.messages.ListRecent(ctx, limit)
	if err != nil {
		return nil, storeErr("list recent", err)
	}
	return list, nil
}

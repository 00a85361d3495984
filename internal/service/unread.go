package service

import (
	"context"

	"carechat/internal/domain"
	"carechat/internal/presence"

	"github.com/rs/zerolog"
)

// UnreadCounter recomputes unread-counts-by-sender from the store. Counts are
// never maintained incrementally.
type UnreadCounter struct {
	messages MessageStore
	registry *presence.Registry
	emitter  Emitter
	log      zerolog.Logger
}

func NewUnreadCounter(messages MessageStore, registry *presence.Registry, emitter Emitter, log zerolog.Logger) *UnreadCounter {
	return &UnreadCounter{
		messages: messages,
		registry: registry,
		emitter:  emitter,
		log:      log.With().Str("component", "unread").Logger(),
	}
}

// CountsFor maps sender id to the number of unread messages from that sender
// to userID. Senders with nothing unread are absent.
func (u *UnreadCounter) CountsFor(ctx context.Context, userID string) (map[string]int64, error) {
	counts, err := u.messages.UnreadCountsBySender(ctx, userID)
	if err != nil {
		return nil, storeErr("unread counts", err)
	}
	return counts, nil
}

// PushToConnection emits fresh counts for userID to connID.
func (u *UnreadCounter) PushToConnection(ctx context.Context, connID, userID string) error {
	counts, err := u.CountsFor(ctx, userID)
	if err != nil {
		return err
	}
	u.emitter.EmitTo(connID, domain.EventUnreadCounts, counts)
	return nil
}

// PushToUser emits fresh counts to the user's live connection, if any.
func (u *UnreadCounter) PushToUser(ctx context.Context, userID string) error {
	connID, ok := u.registry.ConnectionByUser(userID)
	if !ok {
		return nil
	}
	return u.PushToConnection(ctx, connID, userID)
}

// pushBestEffort logs instead of failing; used after the primary mutation
// has already been committed.
func (u *UnreadCounter) pushBestEffort(ctx context.Context, userID string) {
	if err := u.PushToUser(ctx, userID); err != nil {
		u.log.Error().Err(err).Str("user_id", userID).Msg("push unread counts")
	}
}

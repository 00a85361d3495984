package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"carechat/internal/domain"
	"carechat/internal/metrics"
	"carechat/internal/models"
	"carechat/internal/presence"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// JoinInput is the join payload.
type JoinInput struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
}

// PresenceService runs the join and disconnect flows around the registry.
type PresenceService struct {
	users    UserStore
	sessions SessionStore
	registry *presence.Registry
	emitter  Emitter
	delivery *DeliveryService
	log      zerolog.Logger
	now      func() time.Time
}

func NewPresenceService(users UserStore, sessions SessionStore, registry *presence.Registry, emitter Emitter, delivery *DeliveryService, log zerolog.Logger) *PresenceService {
	return &PresenceService{
		users:    users,
		sessions: sessions,
		registry: registry,
		emitter:  emitter,
		delivery: delivery,
		log:      log.With().Str("component", "presence").Logger(),
		now:      time.Now,
	}
}

// Join binds the connection to the user, records the user and session, drains
// the user's queue to the connection and broadcasts the online list. A prior
// connection of the same user is told it was superseded and closed.
func (s *PresenceService) Join(ctx context.Context, conn ConnMeta, in JoinInput) error {
	if err := validateJoin(in); err != nil {
		return err
	}
	prev, rejoin := s.registry.UserByConnection(conn.ID)
	entry := presence.Entry{UserID: in.UserID, UserName: in.UserName, UserRole: in.UserRole}
	if old := s.registry.Register(conn.ID, entry); old != "" {
		metrics.SessionsSuperseded.Inc()
		s.emitter.EmitTo(old, domain.EventSessionSuperseded, map[string]string{"connectionId": conn.ID})
		s.emitter.Disconnect(old)
		s.log.Info().Str("user_id", in.UserID).Str("old_conn_id", old).Str("conn_id", conn.ID).Msg("connection superseded")
	}
	metrics.OnlineUsers.Set(float64(s.registry.Count()))

	now := s.now()
	if _, err := s.users.MarkOnline(ctx, in.UserID, in.UserName, in.UserRole, now); err != nil {
		return storeErr("mark online", err)
	}
	if rejoin && prev.UserID != in.UserID {
		if _, err := s.sessions.CloseByConnectionID(ctx, conn.ID, now); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return storeErr("close session", err)
		}
		if _, stillOnline := s.registry.ConnectionByUser(prev.UserID); !stillOnline {
			if err := s.users.MarkOffline(ctx, prev.UserID, now); err != nil {
				return storeErr("mark offline", err)
			}
		}
	}
	if !rejoin || prev.UserID != in.UserID {
		err := s.sessions.Create(ctx, &models.UserSession{
			ID:           uuid.NewString(),
			UserID:       in.UserID,
			ConnectionID: conn.ID,
			IPAddress:    conn.IPAddress,
			UserAgent:    conn.UserAgent,
			IsActive:     true,
			ConnectedAt:  now,
		})
		if err != nil {
			return storeErr("create session", err)
		}
	}

	if _, err := s.delivery.DrainQueue(ctx, conn.ID, in.UserID); err != nil {
		return err
	}
	s.emitter.Broadcast(domain.EventOnlineUsers, s.registry.List())
	s.log.Info().Str("user_id", in.UserID).Str("role", in.UserRole).Str("conn_id", conn.ID).Msg("user joined")
	return nil
}

func validateJoin(in JoinInput) error {
	switch {
	case in.UserID == "":
		return validationErr("userId is required")
	case in.UserName == "":
		return validationErr("userName is required")
	case !domain.ValidRole(in.UserRole):
		return validationErr("invalid userRole %q", in.UserRole)
	}
	return nil
}

// Leave cleans up after a closed connection. The user goes offline only if
// this was still their current connection.
func (s *PresenceService) Leave(ctx context.Context, connID string) error {
	e, found, active := s.registry.Remove(connID)
	metrics.OnlineUsers.Set(float64(s.registry.Count()))
	if found {
		s.emitter.Broadcast(domain.EventOnlineUsers, s.registry.List())
		s.log.Info().Str("user_id", e.UserID).Str("role", e.UserRole).Str("conn_id", connID).Msg("user disconnected")
	}

	now := s.now()
	var errs []error
	if _, err := s.sessions.CloseByConnectionID(ctx, connID, now); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		errs = append(errs, storeErr("close session", err))
	}
	// The user may have rejoined on another connection while the session
	// was being closed.
	if _, rejoined := s.registry.ConnectionByUser(e.UserID); active && !rejoined {
		if err := s.users.MarkOffline(ctx, e.UserID, now); err != nil {
			errs = append(errs, storeErr("mark offline", err))
		}
	}
	return errors.Join(errs...)
}

// Typing relays a typing indicator to everyone but the sender. An empty
// payload is replaced by the sender's registry entry.
func (s *PresenceService) Typing(connID string, data json.RawMessage) {
	var payload interface{} = data
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		e, ok := s.registry.UserByConnection(connID)
		if !ok {
			return
		}
		payload = e
	}
	s.emitter.BroadcastExcept(connID, domain.EventUserTyping, payload)
}

func (s *PresenceService) StopTyping(connID string) {
	s.emitter.BroadcastExcept(connID, domain.EventUserStopTyping, connID)
}

// CurrentUser returns the user bound to connID.
func (s *PresenceService) CurrentUser(connID string) (presence.Entry, bool) {
	return s.registry.UserByConnection(connID)
}

func (s *PresenceService) Online() []presence.Entry {
	return s.registry.List()
}

// Sessions lists the user's connection history, newest first.
func (s *PresenceService) Sessions(ctx context.Context, userID string, limit, offset int) ([]models.UserSession, error) {
	list, err := s.sessions.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	return list, nil
}

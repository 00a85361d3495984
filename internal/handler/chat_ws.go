package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"carechat/config"
	"carechat/internal/domain"
	"carechat/internal/metrics"
	"carechat/internal/service"
	"carechat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventDispatcher routes inbound connection events to the services. Handler
// failures never propagate into the connection loop: join and sendMessage
// failures are reported to the originating connection with an error event,
// everything else is logged and dropped.
type EventDispatcher struct {
	presence *service.PresenceService
	delivery *service.DeliveryService
	reads    *service.ReadStateService
	emitter  service.Emitter
	log      zerolog.Logger
}

func NewEventDispatcher(presence *service.PresenceService, delivery *service.DeliveryService, reads *service.ReadStateService, emitter service.Emitter, log zerolog.Logger) *EventDispatcher {
	return &EventDispatcher{
		presence: presence,
		delivery: delivery,
		reads:    reads,
		emitter:  emitter,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

func (d *EventDispatcher) Dispatch(ctx context.Context, conn service.ConnMeta, f ws.Frame) {
	defer func() {
		if r := recover(); r != nil {
			metrics.WSEvents.WithLabelValues(f.Event, "error").Inc()
			d.log.Error().Interface("panic", r).Str("event", f.Event).Str("conn_id", conn.ID).Msg("handler panic")
		}
	}()
	err := d.handle(ctx, conn, f)
	if err == nil {
		metrics.WSEvents.WithLabelValues(f.Event, "ok").Inc()
		return
	}
	metrics.WSEvents.WithLabelValues(f.Event, "error").Inc()
	switch f.Event {
	case domain.EventJoin, domain.EventSendMessage:
		d.log.Error().Err(err).Str("event", f.Event).Str("conn_id", conn.ID).Msg("event failed")
		d.emitter.EmitTo(conn.ID, domain.EventError, errorPayload(f.Event, err))
	default:
		if errors.Is(err, domain.ErrNotFound) {
			d.log.Debug().Err(err).Str("event", f.Event).Str("conn_id", conn.ID).Msg("event ignored")
			return
		}
		d.log.Warn().Err(err).Str("event", f.Event).Str("conn_id", conn.ID).Msg("event failed")
	}
}

func (d *EventDispatcher) handle(ctx context.Context, conn service.ConnMeta, f ws.Frame) error {
	switch f.Event {
	case domain.EventJoin:
		var in service.JoinInput
		if err := decode(f.Data, &in); err != nil {
			return err
		}
		return d.presence.Join(ctx, conn, in)
	case domain.EventSendMessage:
		var in service.SendInput
		if err := decode(f.Data, &in); err != nil {
			return err
		}
		_, err := d.delivery.Send(ctx, conn.ID, in)
		return err
	case domain.EventMarkAsRead:
		var id string
		if err := decode(f.Data, &id); err != nil {
			return err
		}
		return d.reads.MarkMessageRead(ctx, id)
	case domain.EventMarkConversationAsRead:
		var other string
		if err := decode(f.Data, &other); err != nil {
			return err
		}
		user, ok := d.presence.CurrentUser(conn.ID)
		if !ok {
			return fmt.Errorf("%w: connection has not joined", domain.ErrNotFound)
		}
		_, err := d.reads.MarkConversationRead(ctx, user.UserID, other)
		return err
	case domain.EventTyping:
		d.presence.Typing(conn.ID, f.Data)
		return nil
	case domain.EventStopTyping:
		d.presence.StopTyping(conn.ID)
		return nil
	default:
		return fmt.Errorf("%w: unknown event %q", domain.ErrNotFound, f.Event)
	}
}

// Disconnect runs the leave flow for a closed connection.
func (d *EventDispatcher) Disconnect(ctx context.Context, connID string) {
	if err := d.presence.Leave(ctx, connID); err != nil {
		d.log.Error().Err(err).Str("conn_id", connID).Msg("disconnect cleanup")
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing payload", domain.ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// errorPayload keeps error events to a fixed set of messages.
func errorPayload(event string, err error) gin.H {
	msg := "Failed to join chat"
	if event == domain.EventSendMessage {
		msg = "Failed to send message"
	}
	if errors.Is(err, domain.ErrValidation) {
		msg = "Invalid " + event + " payload"
	}
	return gin.H{"event": event, "message": msg}
}

// UpgradeChatWS upgrades to WebSocket and runs the connection until it closes.
// Admission (authentication) happens upstream.
func UpgradeChatWS(cfg *config.PresenceConfig, upgrader *websocket.Upgrader, hub *ws.Hub, d *EventDispatcher, log zerolog.Logger) gin.HandlerFunc {
	pump := ws.PumpConfig{WriteWait: cfg.WriteWait, PongWait: cfg.PongWait}
	log = log.With().Str("component", "ws").Logger()
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("upgrade failed")
			return
		}
		meta := service.ConnMeta{
			ID:        uuid.NewString(),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		client := ws.NewClient(meta.ID, cfg.SendBuffer)
		hub.Register(client)
		metrics.WSConnections.Inc()
		log.Debug().Str("conn_id", meta.ID).Msg("connected")

		// Store calls are not tied to the request lifetime.
		ctx := context.Background()
		hub.EmitTo(meta.ID, domain.EventConnected, gin.H{"connectionId": meta.ID})
		go ws.WritePump(client, conn, pump)
		ws.ReadPump(conn, pump,
			func(f ws.Frame) { d.Dispatch(ctx, meta, f) },
			func(err error) { log.Debug().Err(err).Str("conn_id", meta.ID).Msg("bad frame") },
		)

		client.Close()
		metrics.WSConnections.Dec()
		d.Disconnect(ctx, meta.ID)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"carechat/config"
	"carechat/internal/database"
	"carechat/internal/domain"
	"carechat/internal/presence"
	"carechat/internal/repository"
	"carechat/internal/service"
	"carechat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db         *gorm.DB
	hub        *ws.Hub
	presence   *service.PresenceService
	dispatcher *EventDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{Dialect: "sqlite", DSN: ":memory:", MaxIdleConns: 1, MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := zerolog.Nop()
	messages := repository.NewMessageRepository(db)
	registry := presence.NewRegistry()
	hub := ws.NewHub(log)
	unread := service.NewUnreadCounter(messages, registry, hub, log)
	delivery := service.NewDeliveryService(messages, registry, hub, unread, log)
	reads := service.NewReadStateService(messages, registry, hub, unread, log)
	presenceSvc := service.NewPresenceService(repository.NewUserRepository(db), repository.NewSessionRepository(db), registry, hub, delivery, log)
	return &fixture{
		db:         db,
		hub:        hub,
		presence:   presenceSvc,
		dispatcher: NewEventDispatcher(presenceSvc, delivery, reads, hub, log),
	}
}

func (f *fixture) client(id string) *ws.Client {
	c := ws.NewClient(id, 32)
	f.hub.Register(c)
	return c
}

func (f *fixture) dispatch(connID, event, data string) {
	frame := ws.Frame{Event: event}
	if data != "" {
		frame.Data = json.RawMessage(data)
	}
	f.dispatcher.Dispatch(context.Background(), service.ConnMeta{ID: connID}, frame)
}

// drain returns the events queued on c, in order.
func drain(t *testing.T, c *ws.Client) []ws.Frame {
	t.Helper()
	var out []ws.Frame
	for {
		select {
		case raw := <-c.Send:
			var f ws.Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func events(frames []ws.Frame) []string {
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Event
	}
	return names
}

func TestDispatch_JoinEmitsQueueCountsAndOnlineList(t *testing.T) {
	f := newFixture(t)
	c := f.client("c1")

	f.dispatch("c1", domain.EventJoin, `{"userId":"N","userName":"Nina","userRole":"nurse"}`)

	assert.Equal(t, []string{domain.EventQueuedMessages, domain.EventUnreadCounts, domain.EventOnlineUsers}, events(drain(t, c)))
}

func TestDispatch_JoinAndSendFailuresEmitError(t *testing.T) {
	f := newFixture(t)
	c := f.client("c1")

	tests := []struct {
		event   string
		data    string
		message string
	}{
		{event: domain.EventJoin, data: `{"userId":"N"}`, message: "Invalid join payload"},
		{event: domain.EventJoin, data: `not json`, message: "Invalid join payload"},
		{event: domain.EventSendMessage, data: `{"text":"","recipientId":"D"}`, message: "Invalid sendMessage payload"},
		{event: domain.EventSendMessage, message: "Invalid sendMessage payload"},
	}
	for _, tt := range tests {
		f.dispatch("c1", tt.event, tt.data)
		frames := drain(t, c)
		require.Len(t, frames, 1, tt.data)
		assert.Equal(t, domain.EventError, frames[0].Event)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
		assert.Equal(t, tt.event, payload["event"])
		assert.Equal(t, tt.message, payload["message"])
	}
}

func TestDispatch_SendFailureFromStoreIsGeneric(t *testing.T) {
	f := newFixture(t)
	c := f.client("c1")
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	f.dispatch("c1", domain.EventSendMessage, `{"text":"hi","senderId":"P","senderName":"Pat","senderRole":"patient","recipientId":"D"}`)
	frames := drain(t, c)
	require.Len(t, frames, 1)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(frames[0].Data, &payload))
	assert.Equal(t, "Failed to send message", payload["message"])
}

func TestDispatch_OtherFailuresAreSilent(t *testing.T) {
	f := newFixture(t)
	c := f.client("c1")

	f.dispatch("c1", domain.EventMarkAsRead, `"missing-id"`)
	f.dispatch("c1", domain.EventMarkAsRead, `{"bad":true}`)
	f.dispatch("c1", domain.EventMarkConversationAsRead, `"D"`)
	f.dispatch("c1", "doesNotExist", `{}`)

	assert.Empty(t, drain(t, c))
}

func TestDispatch_TypingGoesToOthers(t *testing.T) {
	f := newFixture(t)
	a := f.client("a")
	b := f.client("b")
	f.dispatch("a", domain.EventJoin, `{"userId":"D","userName":"Dr. House","userRole":"doctor"}`)
	drain(t, a)
	drain(t, b)

	f.dispatch("a", domain.EventTyping, `{"recipientId":"P"}`)
	f.dispatch("a", domain.EventStopTyping, "")

	assert.Empty(t, drain(t, a))
	assert.Equal(t, []string{domain.EventUserTyping, domain.EventUserStopTyping}, events(drain(t, b)))
}

func TestDispatch_DisconnectBroadcastsOnlineList(t *testing.T) {
	f := newFixture(t)
	a := f.client("a")
	b := f.client("b")
	f.dispatch("a", domain.EventJoin, `{"userId":"D","userName":"Dr. House","userRole":"doctor"}`)
	drain(t, a)
	drain(t, b)

	f.dispatcher.Disconnect(context.Background(), "a")

	frames := drain(t, b)
	require.Len(t, frames, 1)
	assert.Equal(t, domain.EventOnlineUsers, frames[0].Event)
	assert.JSONEq(t, `[]`, string(frames[0].Data))
}

func TestUserHandler_Sessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	f.client("a")
	f.dispatch("a", domain.EventJoin, `{"userId":"D","userName":"Dr. House","userRole":"doctor"}`)

	r := gin.New()
	r.GET("/users/:userId/sessions", NewUserHandler(f.presence).Sessions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/D/sessions?limit=500&offset=-3", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sessions []struct {
			UserID       string `json:"userId"`
			ConnectionID string `json:"connectionId"`
			IsActive     bool   `json:"isActive"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "a", body.Sessions[0].ConnectionID)
	assert.True(t, body.Sessions[0].IsActive)
}

func TestDispatch_SendAcceptsEpochMillisTimestamp(t *testing.T) {
	f := newFixture(t)
	c := f.client("c1")
	f.dispatch("c1", domain.EventJoin, `{"userId":"P","userName":"Pat","userRole":"patient"}`)
	drain(t, c)

	f.dispatch("c1", domain.EventSendMessage, `{"text":"hi","recipientId":"D","timestamp":1766601000000}`)

	assert.Equal(t, []string{domain.EventMessageSent}, events(drain(t, c)))
}

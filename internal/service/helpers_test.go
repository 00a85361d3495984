package service

import (
	"sync"
	"testing"
	"time"

	"carechat/config"
	"carechat/internal/database"
	"carechat/internal/models"
	"carechat/internal/presence"
	"carechat/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type emitted struct {
	ConnID  string // "*" for broadcast, "!<id>" for broadcast-except
	Event   string
	Payload interface{}
}

type fakeEmitter struct {
	mu           sync.Mutex
	events       []emitted
	disconnected []string
}

func (f *fakeEmitter) EmitTo(connID, event string, payload interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{ConnID: connID, Event: event, Payload: payload})
	return true
}

func (f *fakeEmitter) Broadcast(event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{ConnID: "*", Event: event, Payload: payload})
}

func (f *fakeEmitter) BroadcastExcept(connID, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{ConnID: "!" + connID, Event: event, Payload: payload})
}

func (f *fakeEmitter) Disconnect(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, connID)
}

// to returns the events of one kind sent to connID, oldest first.
func (f *fakeEmitter) to(connID, event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.events {
		if e.ConnID == connID && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeEmitter) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
	f.disconnected = nil
}

// fakeClock advances one millisecond per reading so ordering is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Millisecond)
	return c.cur
}

type harness struct {
	db       *gorm.DB
	registry *presence.Registry
	emitter  *fakeEmitter
	messages *repository.MessageRepository
	users    *repository.UserRepository
	sessions *repository.SessionRepository
	unread   *UnreadCounter
	delivery *DeliveryService
	reads    *ReadStateService
	presence *PresenceService
}

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{
		Dialect:      "sqlite",
		DSN:          ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := setupTestDB(t)
	log := zerolog.Nop()
	clock := &fakeClock{cur: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}

	h := &harness{
		db:       db,
		registry: presence.NewRegistry(),
		emitter:  &fakeEmitter{},
		messages: repository.NewMessageRepository(db),
		users:    repository.NewUserRepository(db),
		sessions: repository.NewSessionRepository(db),
	}
	h.unread = NewUnreadCounter(h.messages, h.registry, h.emitter, log)
	h.delivery = NewDeliveryService(h.messages, h.registry, h.emitter, h.unread, log)
	h.reads = NewReadStateService(h.messages, h.registry, h.emitter, h.unread, log)
	h.presence = NewPresenceService(h.users, h.sessions, h.registry, h.emitter, h.delivery, log)
	h.delivery.now = clock.Now
	h.reads.now = clock.Now
	h.presence.now = clock.Now
	return h
}

func (h *harness) closeDB(t *testing.T) {
	t.Helper()
	sqlDB, err := h.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

// sessionFor loads the session row recorded for a connection.
func (h *harness) sessionFor(connID string) (*models.UserSession, error) {
	var s models.UserSession
	if err := h.db.Where("connection_id = ?", connID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

package service

import (
	"context"
	"testing"
	"time"

	"carechat/internal/domain"
	"carechat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	joinDoctor  = JoinInput{UserID: "D", UserName: "Dr. House", UserRole: domain.RoleDoctor}
	joinPatient = JoinInput{UserID: "P", UserName: "Pat", UserRole: domain.RolePatient}
)

func hello(to string) SendInput {
	return SendInput{
		Text:        "hello",
		SenderID:    "P",
		SenderName:  "Pat",
		SenderRole:  domain.RolePatient,
		RecipientID: to,
	}
}

func TestDelivery_OfflineRecipientIsQueued(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.presence.Join(ctx, ConnMeta{ID: "cp"}, joinPatient))
	h.emitter.reset()

	m, err := h.delivery.Send(ctx, "cp", hello("D"))
	require.NoError(t, err)

	assert.Empty(t, h.emitter.to("cd", domain.EventNewMessage))
	sent := h.emitter.to("cp", domain.EventMessageSent)
	require.Len(t, sent, 1)
	assert.Equal(t, m.ID, sent[0].Payload)

	stored, err := h.messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, stored.Read)
	assert.Nil(t, stored.ReadAt)
	assert.Equal(t, "P", stored.SenderID)
	assert.Equal(t, "D", stored.RecipientID)

	counts, err := h.unread.CountsFor(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"P": 1}, counts)

	// D joins and receives the queue.
	require.NoError(t, h.presence.Join(ctx, ConnMeta{ID: "cd"}, joinDoctor))
	queued := h.emitter.to("cd", domain.EventQueuedMessages)
	require.Len(t, queued, 1)
	list := queued[0].Payload.([]models.Message)
	require.Len(t, list, 1)
	assert.Equal(t, m.ID, list[0].ID)
	assert.Equal(t, "hello", list[0].Text)
	assert.Equal(t, "Pat", list[0].SenderName)
	assert.Equal(t, domain.RolePatient, list[0].SenderRole)

	unread := h.emitter.to("cd", domain.EventUnreadCounts)
	require.Len(t, unread, 1)
	assert.Equal(t, map[string]int64{"P": 1}, unread[0].Payload)
}

func TestDelivery_OnlineRecipientGetsLiveMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.presence.Join(ctx, ConnMeta{ID: "cd"}, joinDoctor))
	require.NoError(t, h.presence.Join(ctx, ConnMeta{ID: "cp"}, joinPatient))
	h.emitter.reset()

	m, err := h.delivery.Send(ctx, "cp", hello("D"))
	require.NoError(t, err)

	live := h.emitter.to("cd", domain.EventNewMessage)
	require.Len(t, live, 1)
	assert.Equal(t, m.ID, live[0].Payload.(*models.Message).ID)

	unread := h.emitter.to("cd", domain.EventUnreadCounts)
	require.Len(t, unread, 1)
	assert.Equal(t, map[string]int64{"P": 1}, unread[0].Payload)

	sent := h.emitter.to("cp", domain.EventMessageSent)
	require.Len(t, sent, 1)
	assert.Equal(t, m.ID, sent[0].Payload)
	assert.Empty(t, h.emitter.to("cp", domain.EventNewMessage))

	n, err := h.reads.MarkConversationRead(ctx, "D", "P")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	counts, err := h.unread.CountsFor(ctx, "D")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestDelivery_DrainIsOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var ids []string
	for _, text := range []string{"one", "two", "three"} {
		in := hello("D")
		in.Text = text
		m, err := h.delivery.Send(ctx, "cp", in)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	list, err := h.delivery.DrainQueue(ctx, "cd", "D")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, m := range list {
		assert.Equal(t, ids[i], m.ID)
	}
	assert.Equal(t, "one", list[0].Text)
	assert.Equal(t, "three", list[2].Text)
}

func TestDelivery_EmptyQueueStillEmits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	list, err := h.delivery.DrainQueue(ctx, "cd", "D")
	require.NoError(t, err)
	assert.Empty(t, list)

	queued := h.emitter.to("cd", domain.EventQueuedMessages)
	require.Len(t, queued, 1)
	assert.NotNil(t, queued[0].Payload)
	require.Len(t, h.emitter.to("cd", domain.EventUnreadCounts), 1)
}

func TestDelivery_SendFillsSenderFromRegistry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.presence.Join(ctx, ConnMeta{ID: "cp"}, joinPatient))

	m, err := h.delivery.Send(ctx, "cp", SendInput{Text: "hi", RecipientID: "D"})
	require.NoError(t, err)
	assert.Equal(t, "P", m.SenderID)
	assert.Equal(t, "Pat", m.SenderName)
	assert.Equal(t, domain.RolePatient, m.SenderRole)
}

func TestDelivery_ClientTimestampIsKept(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ts := time.Date(2025, 12, 24, 18, 30, 0, 0, time.UTC)

	in := hello("D")
	in.Timestamp = &ClientTime{Time: ts}
	m, err := h.delivery.Send(ctx, "cp", in)
	require.NoError(t, err)

	stored, err := h.messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, ts.Equal(stored.Timestamp))
}

func TestDelivery_IDsAreUnique(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		m, err := h.delivery.Send(ctx, "cp", hello("D"))
		require.NoError(t, err)
		_, dup := seen[m.ID]
		require.False(t, dup, "duplicate id %s", m.ID)
		seen[m.ID] = struct{}{}
	}
}

func TestDelivery_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	tests := []struct {
		name string
		edit func(*SendInput)
	}{
		{name: "empty text", edit: func(in *SendInput) { in.Text = "  " }},
		{name: "missing sender", edit: func(in *SendInput) { in.SenderID = "" }},
		{name: "missing sender name", edit: func(in *SendInput) { in.SenderName = "" }},
		{name: "unknown role", edit: func(in *SendInput) { in.SenderRole = "surgeon" }},
		{name: "missing recipient", edit: func(in *SendInput) { in.RecipientID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := hello("D")
			tt.edit(&in)
			_, err := h.delivery.Send(ctx, "c-unknown", in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Empty(t, h.emitter.to("c-unknown", domain.EventMessageSent))

	recent, err := h.delivery.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestDelivery_PersistenceFailureDeliversNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.presence.Join(ctx, ConnMeta{ID: "cd"}, joinDoctor))
	h.emitter.reset()
	h.closeDB(t)

	_, err := h.delivery.Send(ctx, "cp", hello("D"))
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Empty(t, h.emitter.to("cd", domain.EventNewMessage))
	assert.Empty(t, h.emitter.to("cp", domain.EventMessageSent))
}

func TestDelivery_RecentIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for _, text := range []string{"a", "b", "c"} {
		in := hello("D")
		in.Text = text
		_, err := h.delivery.Send(ctx, "cp", in)
		require.NoError(t, err)
	}

	list, err := h.delivery.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].Text)
	assert.Equal(t, "b", list[1].Text)
}

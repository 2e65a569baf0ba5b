package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/bot-gateway-go/internal/chat"
	"github.com/openclaw/bot-gateway-go/internal/config"
	"github.com/openclaw/bot-gateway-go/internal/model"
	"github.com/openclaw/bot-gateway-go/internal/service"
	"github.com/openclaw/bot-gateway-go/internal/store"
)

const (
	botUserID = "@bot:example.org"
	roomID    = "!r1:example.org"
	sender    = "@alice:example.org"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) UserID() string {
	return botUserID
}

func (m *mockClient) JoinedMemberCount(ctx context.Context, roomID string) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *mockClient) DisplayName(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *mockClient) JoinRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *mockClient) SendText(ctx context.Context, roomID, body string) error {
	args := m.Called(ctx, roomID, body)
	return args.Error(0)
}

type dispatched struct {
	msg    *model.Message
	room   *model.RoomConfig
	isMain bool
}

type fixture struct {
	client  *mockClient
	store   *store.FileStore
	pairing *service.PairingService
	rooms   *service.Rooms
	calls   []dispatched
	err     error
}

func newFixture(t *testing.T, opts Options) (*Monitor, *fixture) {
	t.Helper()

	dir := t.TempDir()
	st, err := store.NewFileStore(dir)
	require.NoError(t, err)

	f := &fixture{
		client:  &mockClient{},
		store:   st,
		pairing: service.NewPairingService(st, dir, config.PairingCodeTTL),
		rooms:   service.NewRooms(st),
	}

	m, err := New(f.client, f.pairing, f.rooms, opts, func(_ context.Context, msg *model.Message, room *model.RoomConfig, isMain bool) error {
		f.calls = append(f.calls, dispatched{msg: msg, room: room, isMain: isMain})
		return f.err
	})
	require.NoError(t, err)
	return m, f
}

func (f *fixture) pair(t *testing.T, ownerID, mainRoomID string) {
	t.Helper()
	require.NoError(t, f.store.SaveOwner(&model.Owner{
		UserID:     ownerID,
		MainRoomID: mainRoomID,
		PairedAt:   time.Now().UTC(),
	}))
}

func textEvent(body string) chat.MessageEvent {
	return chat.MessageEvent{
		RoomID:  roomID,
		EventID: "$evt1",
		Sender:  sender,
		MsgType: chat.MsgTypeText,
		Body:    body,
	}
}

func TestPreChecks(t *testing.T) {
	t.Run("ignores the bot's own messages", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, roomID)

		evt := textEvent("bot do something")
		evt.Sender = botUserID
		m.HandleMessage(context.Background(), evt)

		assert.Empty(t, f.calls)
		f.client.AssertNotCalled(t, "JoinedMemberCount", mock.Anything, mock.Anything)
	})

	t.Run("ignores non-text messages", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, roomID)

		evt := textEvent("bot hello")
		evt.MsgType = "m.image"
		m.HandleMessage(context.Background(), evt)

		assert.Empty(t, f.calls)
	})

	t.Run("ignores whitespace-only bodies", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, roomID)

		m.HandleMessage(context.Background(), textEvent("   \n\t "))

		assert.Empty(t, f.calls)
	})

	t.Run("disabled room is never dispatched even with an exact mention", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, "!other:example.org")
		disabled := false
		require.NoError(t, f.store.SaveGroup(roomID, model.RoomConfig{Name: "Ops", Enabled: &disabled}))

		m.HandleMessage(context.Background(), textEvent("@bot:example.org run this"))

		assert.Empty(t, f.calls)
		f.client.AssertNotCalled(t, "JoinedMemberCount", mock.Anything, mock.Anything)
	})
}

func TestMentionRequirement(t *testing.T) {
	yes := true

	t.Run("DM is dispatched without a mention even with global requireMention", func(t *testing.T) {
		m, f := newFixture(t, Options{RequireMention: &yes})
		f.pair(t, sender, "!other:example.org")
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(2, nil)
		f.client.On("DisplayName", mock.Anything, sender).Return("Alice", nil)

		m.HandleMessage(context.Background(), textEvent("just a question"))

		require.Len(t, f.calls, 1)
		assert.Equal(t, "Alice", f.calls[0].msg.SenderName)
		assert.False(t, f.calls[0].isMain)
	})

	t.Run("group room without a mention is dropped", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, "!other:example.org")
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)

		m.HandleMessage(context.Background(), textEvent("nothing to see here"))

		assert.Empty(t, f.calls)
	})

	t.Run("group room with a mention is dispatched", func(t *testing.T) {
		m, f := newFixture(t, Options{DisplayName: "Claw Bot"})
		f.pair(t, sender, "!other:example.org")
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)
		f.client.On("DisplayName", mock.Anything, sender).Return("Alice", nil)

		m.HandleMessage(context.Background(), textEvent("claw bot, summarize this"))

		require.Len(t, f.calls, 1)
	})

	t.Run("global trigger pattern qualifies without a mention", func(t *testing.T) {
		m, f := newFixture(t, Options{TriggerPattern: `^!claw\b`})
		f.pair(t, sender, "!other:example.org")
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)
		f.client.On("DisplayName", mock.Anything, sender).Return("Alice", nil)

		m.HandleMessage(context.Background(), textEvent("!claw status"))

		require.Len(t, f.calls, 1)
	})

	t.Run("main room needs no mention when no override is set", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, roomID)
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)
		f.client.On("DisplayName", mock.Anything, sender).Return("Alice", nil)

		m.HandleMessage(context.Background(), textEvent("deploy the thing"))

		require.Len(t, f.calls, 1)
		assert.True(t, f.calls[0].isMain)
	})

	t.Run("per-room override beats the global default", func(t *testing.T) {
		no := false
		m, f := newFixture(t, Options{RequireMention: &yes})
		f.pair(t, sender, "!other:example.org")
		require.NoError(t, f.store.SaveGroup(roomID, model.RoomConfig{Name: "Ops", RequireMention: &no}))
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)
		f.client.On("DisplayName", mock.Anything, sender).Return("Alice", nil)

		m.HandleMessage(context.Background(), textEvent("no mention here"))

		require.Len(t, f.calls, 1)
		require.NotNil(t, f.calls[0].room)
		assert.Equal(t, "Ops", f.calls[0].room.Name)
	})

	t.Run("membership lookup failure fails closed toward requiring a mention", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, "!other:example.org")
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(0, errors.New("timeout"))

		m.HandleMessage(context.Background(), textEvent("no mention here"))

		assert.Empty(t, f.calls)
	})
}

func TestNormalization(t *testing.T) {
	t.Run("display name failure falls back to the raw sender id", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, roomID)
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)
		f.client.On("DisplayName", mock.Anything, sender).Return("", errors.New("profile unavailable"))

		m.HandleMessage(context.Background(), textEvent("hello"))

		require.Len(t, f.calls, 1)
		assert.Equal(t, sender, f.calls[0].msg.SenderName)
	})

	t.Run("extracts thread linkage and origin timestamp", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, roomID)
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)
		f.client.On("DisplayName", mock.Anything, sender).Return("Alice", nil)

		evt := textEvent("  reply in thread  ")
		evt.OriginServerTS = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC).UnixMilli()
		evt.RelatesTo = &chat.Relation{RelType: chat.RelThread, EventID: "$root"}
		m.HandleMessage(context.Background(), evt)

		require.Len(t, f.calls, 1)
		msg := f.calls[0].msg
		assert.Equal(t, "reply in thread", msg.Body)
		assert.Equal(t, "$root", msg.ThreadID)
		assert.Equal(t, "2026-08-26T12:00:00Z", msg.Timestamp)
	})

	t.Run("non-thread relations carry no thread id", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, roomID)
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)
		f.client.On("DisplayName", mock.Anything, sender).Return("Alice", nil)

		evt := textEvent("edited message")
		evt.RelatesTo = &chat.Relation{RelType: "m.replace", EventID: "$orig"}
		m.HandleMessage(context.Background(), evt)

		require.Len(t, f.calls, 1)
		assert.Empty(t, f.calls[0].msg.ThreadID)
	})
}

func TestFailureIsolation(t *testing.T) {
	t.Run("handler error does not affect subsequent events", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.pair(t, sender, roomID)
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)
		f.client.On("DisplayName", mock.Anything, sender).Return("Alice", nil)

		f.err = errors.New("agent crashed")
		m.HandleMessage(context.Background(), textEvent("first"))
		f.err = nil
		m.HandleMessage(context.Background(), textEvent("second"))

		assert.Len(t, f.calls, 2)
	})

	t.Run("handler panic is recovered", func(t *testing.T) {
		dir := t.TempDir()
		st, err := store.NewFileStore(dir)
		require.NoError(t, err)
		require.NoError(t, st.SaveOwner(&model.Owner{UserID: sender, MainRoomID: roomID}))

		client := &mockClient{}
		client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)
		client.On("DisplayName", mock.Anything, sender).Return("Alice", nil)

		pairing := service.NewPairingService(st, dir, config.PairingCodeTTL)
		m, err := New(client, pairing, service.NewRooms(st), Options{}, func(context.Context, *model.Message, *model.RoomConfig, bool) error {
			panic("boom")
		})
		require.NoError(t, err)

		assert.NotPanics(t, func() {
			m.HandleMessage(context.Background(), textEvent("hello"))
		})
	})
}

func TestUnpairedFlow(t *testing.T) {
	t.Run("qualifying message creates a pending request and replies with the code", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(2, nil)
		f.client.On("SendText", mock.Anything, roomID, mock.Anything).Return(nil)

		m.HandleMessage(context.Background(), textEvent("hi, set yourself up"))

		assert.Empty(t, f.calls)

		pending, err := f.pairing.GetPendingPairing()
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Equal(t, sender, pending.RequesterID)
		assert.Equal(t, roomID, pending.RoomID)

		assert.Len(t, pending.Code, 8)
		f.client.AssertCalled(t, "SendText", mock.Anything, roomID,
			mock.MatchedBy(func(body string) bool {
				return strings.Contains(body, pending.Code)
			}))
	})

	t.Run("non-qualifying group message does not create a request", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.client.On("JoinedMemberCount", mock.Anything, roomID).Return(5, nil)

		m.HandleMessage(context.Background(), textEvent("chatter with no mention"))

		pending, err := f.pairing.GetPendingPairing()
		require.NoError(t, err)
		assert.Nil(t, pending)
	})
}

func TestHandleInvite(t *testing.T) {
	t.Run("joins the inviting room", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.client.On("JoinRoom", mock.Anything, "!new:example.org").Return(nil)

		m.HandleInvite(context.Background(), chat.InviteEvent{RoomID: "!new:example.org", Sender: sender})

		f.client.AssertCalled(t, "JoinRoom", mock.Anything, "!new:example.org")
	})

	t.Run("join failure is contained", func(t *testing.T) {
		m, f := newFixture(t, Options{})
		f.client.On("JoinRoom", mock.Anything, "!new:example.org").Return(errors.New("forbidden"))

		assert.NotPanics(t, func() {
			m.HandleInvite(context.Background(), chat.InviteEvent{RoomID: "!new:example.org", Sender: sender})
		})
	})
}

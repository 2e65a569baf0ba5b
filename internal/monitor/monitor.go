// Package monitor decides, per inbound event, whether the bot should
// act on a message, and normalizes admitted messages before handing
// them to the downstream handler.
package monitor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/bot-gateway-go/internal/chat"
	"github.com/openclaw/bot-gateway-go/internal/config"
	"github.com/openclaw/bot-gateway-go/internal/model"
	"github.com/openclaw/bot-gateway-go/internal/service"
)

// ChatClient is the slice of the protocol client the monitor needs.
type ChatClient interface {
	UserID() string
	JoinedMemberCount(ctx context.Context, roomID string) (int, error)
	DisplayName(ctx context.Context, userID string) (string, error)
	JoinRoom(ctx context.Context, roomID string) error
	SendText(ctx context.Context, roomID, body string) error
}

// Handler consumes an admitted message together with the resolved room
// configuration (nil when the room is unregistered) and the main-room
// flag.
type Handler func(ctx context.Context, msg *model.Message, room *model.RoomConfig, isMain bool) error

type Options struct {
	// DisplayName is the bot's configured display name, used for
	// mention detection alongside the user id.
	DisplayName string
	// TriggerPattern is the optional global trigger regex; a match
	// qualifies a message even without a mention.
	TriggerPattern string
	// RequireMention is the global default; nil falls through to the
	// per-room rule (main room exempt, everything else required).
	RequireMention *bool
}

type Monitor struct {
	client         ChatClient
	pairing        *service.PairingService
	rooms          *service.Rooms
	handler        Handler
	mention        *regexp.Regexp
	trigger        *regexp.Regexp
	requireMention *bool
}

func New(client ChatClient, pairing *service.PairingService, rooms *service.Rooms, opts Options, handler Handler) (*Monitor, error) {
	mention, err := BuildMentionPattern(opts.DisplayName, client.UserID())
	if err != nil {
		return nil, fmt.Errorf("build mention pattern: %w", err)
	}

	var trigger *regexp.Regexp
	if opts.TriggerPattern != "" {
		trigger, err = regexp.Compile("(?i)" + opts.TriggerPattern)
		if err != nil {
			return nil, fmt.Errorf("compile trigger pattern: %w", err)
		}
	}

	return &Monitor{
		client:         client,
		pairing:        pairing,
		rooms:          rooms,
		handler:        handler,
		mention:        mention,
		trigger:        trigger,
		requireMention: opts.RequireMention,
	}, nil
}

// HandleMessage runs the admission pipeline for one inbound event. It
// never returns an error: rejected messages are dropped, and handler
// failures are contained so the next event is unaffected.
func (m *Monitor) HandleMessage(ctx context.Context, evt chat.MessageEvent) {
	if evt.Sender == m.client.UserID() {
		return
	}

	body := strings.TrimSpace(evt.Body)
	if evt.MsgType != chat.MsgTypeText || body == "" {
		return
	}

	room := m.rooms.Resolve(evt.RoomID)
	if !room.IsEnabled() {
		log.Debug().Str("roomId", evt.RoomID).Msg("room disabled, dropping message")
		return
	}

	paired := m.pairing.IsPaired()
	isMain := paired && m.pairing.IsMainRoom(evt.RoomID)
	isDM := m.isDirectMessage(ctx, evt.RoomID)

	if m.mentionRequired(room, isMain, isDM) && !m.qualifies(body) {
		log.Debug().
			Str("roomId", evt.RoomID).
			Str("sender", evt.Sender).
			Msg("no mention or trigger, dropping message")
		return
	}

	if !paired {
		m.startPairing(ctx, evt, room)
		return
	}

	msg := m.normalize(ctx, evt, body)

	log.Info().
		Str("roomId", msg.RoomID).
		Str("sender", msg.Sender).
		Bool("isMain", isMain).
		Bool("isDM", isDM).
		Msg("message admitted")

	m.dispatch(ctx, msg, room, isMain)
}

// HandleInvite accepts room invites. Join failures are logged and
// dropped; the next event is unaffected.
func (m *Monitor) HandleInvite(ctx context.Context, evt chat.InviteEvent) {
	log.Info().
		Str("roomId", evt.RoomID).
		Str("sender", evt.Sender).
		Msg("room invite received")

	if err := m.client.JoinRoom(ctx, evt.RoomID); err != nil {
		log.Error().Err(err).Str("roomId", evt.RoomID).Msg("failed to join room")
	}
}

// isDirectMessage treats a room as a DM when its joined-member count is
// at most two. A failed lookup counts as not-a-DM, so the message still
// has to carry a mention.
func (m *Monitor) isDirectMessage(ctx context.Context, roomID string) bool {
	lctx, cancel := context.WithTimeout(ctx, config.MembershipLookupTimeout)
	defer cancel()

	count, err := m.client.JoinedMemberCount(lctx, roomID)
	if err != nil {
		log.Debug().Err(err).Str("roomId", roomID).Msg("member count lookup failed")
		return false
	}
	return count <= config.DirectMessageMaxMembers
}

// mentionRequired applies the fallback chain: DMs never require a
// mention; otherwise the per-room override wins, then the global
// default, then the main room is exempt and every other room requires
// one.
func (m *Monitor) mentionRequired(room *model.RoomConfig, isMain, isDM bool) bool {
	if isDM {
		return false
	}
	if room != nil && room.RequireMention != nil {
		return *room.RequireMention
	}
	if m.requireMention != nil {
		return *m.requireMention
	}
	return !isMain
}

func (m *Monitor) qualifies(body string) bool {
	if m.mention.MatchString(body) {
		return true
	}
	return m.trigger != nil && m.trigger.MatchString(body)
}

// startPairing is the unpaired path: a qualifying message creates a
// pending pairing request and the bot replies with redemption
// instructions instead of dispatching.
func (m *Monitor) startPairing(ctx context.Context, evt chat.MessageEvent, room *model.RoomConfig) {
	roomName := ""
	if room != nil {
		roomName = room.Name
	}

	code, err := m.pairing.CreatePairingRequest(evt.Sender, evt.RoomID, roomName)
	if err != nil {
		log.Error().Err(err).Str("roomId", evt.RoomID).Msg("failed to create pairing request")
		return
	}

	reply := fmt.Sprintf(
		"Pairing code: %s\nRun the pair command with this code on the gateway host to become the owner. The code expires in %d minutes.",
		code, int(config.PairingCodeTTL.Minutes()),
	)
	if err := m.client.SendText(ctx, evt.RoomID, reply); err != nil {
		log.Error().Err(err).Str("roomId", evt.RoomID).Msg("failed to send pairing instructions")
	}
}

// normalize builds the message record handed downstream. Display-name
// resolution is best effort and falls back to the raw sender id.
func (m *Monitor) normalize(ctx context.Context, evt chat.MessageEvent, body string) *model.Message {
	senderName := evt.Sender
	lctx, cancel := context.WithTimeout(ctx, config.ProfileLookupTimeout)
	name, err := m.client.DisplayName(lctx, evt.Sender)
	cancel()
	if err != nil {
		log.Debug().Err(err).Str("sender", evt.Sender).Msg("display name lookup failed")
	} else if name != "" {
		senderName = name
	}

	ts := time.Now().UTC()
	if evt.OriginServerTS > 0 {
		ts = time.UnixMilli(evt.OriginServerTS).UTC()
	}

	threadID := ""
	if evt.RelatesTo != nil && evt.RelatesTo.RelType == chat.RelThread {
		threadID = evt.RelatesTo.EventID
	}

	return &model.Message{
		RoomID:     evt.RoomID,
		EventID:    evt.EventID,
		Sender:     evt.Sender,
		SenderName: senderName,
		Body:       body,
		Timestamp:  ts.Format(time.RFC3339),
		ThreadID:   threadID,
	}
}

// dispatch invokes the downstream handler behind a guard: a panic or
// returned error is logged and contained.
func (m *Monitor) dispatch(ctx context.Context, msg *model.Message, room *model.RoomConfig, isMain bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Any("panic", r).
				Str("eventId", msg.EventID).
				Msg("handler panicked")
		}
	}()

	if err := m.handler(ctx, msg, room, isMain); err != nil {
		log.Error().Err(err).Str("eventId", msg.EventID).Msg("handler failed")
	}
}

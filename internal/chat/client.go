// Package chat is the boundary to the chat-protocol homeserver. The
// gateway only ever needs a handful of client-server calls; everything
// else (encryption, device management, media) is out of scope and stays
// on the server side of this boundary.
package chat

import "context"

// MsgTypeText is the only message type the gateway admits.
const MsgTypeText = "m.text"

// RelThread marks a relation as a threaded reply.
const RelThread = "m.thread"

// Relation is the subset of an event's relation metadata the gateway
// reads: the relation type and the event it points at.
type Relation struct {
	RelType string `json:"rel_type"`
	EventID string `json:"event_id"`
}

// MessageEvent is one inbound room message as delivered by sync.
type MessageEvent struct {
	RoomID         string
	EventID        string
	Sender         string
	MsgType        string
	Body           string
	OriginServerTS int64 // milliseconds since epoch, 0 if absent
	RelatesTo      *Relation
}

// InviteEvent is an invite for the bot into a room.
type InviteEvent struct {
	RoomID string
	Sender string
}

// MessageHandler and InviteHandler are the per-category callbacks an
// event source delivers into. Delivery is serial; handler completion is
// not awaited between events.
type (
	MessageHandler func(ctx context.Context, evt MessageEvent)
	InviteHandler  func(ctx context.Context, evt InviteEvent)
)

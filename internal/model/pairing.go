package model

import (
	"time"
)

// Owner is the single user who has completed pairing and administers the
// bot. At most one Owner exists; once written it is never mutated, only
// deleted by a manual reset of the data directory.
type Owner struct {
	UserID     string    `json:"ownerId"`
	MainRoomID string    `json:"mainRoomId"`
	PairedAt   time.Time `json:"pairedAt"`
}

// PendingPairing is the at-most-one outstanding pairing request. A new
// request silently replaces any prior one. The record is destroyed on
// approval, or lazily at read once it has outlived the pairing code TTL.
type PendingPairing struct {
	Code        string    `json:"code"`
	RequesterID string    `json:"requesterId"`
	RoomID      string    `json:"roomId"`
	RoomName    string    `json:"roomName"`
	CreatedAt   time.Time `json:"createdAt"`
}

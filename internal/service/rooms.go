package service

import (
	"github.com/rs/zerolog/log"

	"github.com/openclaw/bot-gateway-go/internal/model"
	"github.com/openclaw/bot-gateway-go/internal/store"
)

// Rooms resolves per-room configuration from the registered-groups
// mapping. Resolution is a plain lookup; consumers apply fallback chains
// field by field.
type Rooms struct {
	store store.Store
}

func NewRooms(st store.Store) *Rooms {
	return &Rooms{store: st}
}

// Resolve returns the configuration for roomID, or nil when the room is
// not registered. Lookup failures degrade to nil so admission can keep
// going on defaults.
func (r *Rooms) Resolve(roomID string) *model.RoomConfig {
	groups, err := r.store.LoadGroups()
	if err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("load groups")
		return nil
	}
	cfg, ok := groups[roomID]
	if !ok {
		return nil
	}
	return &cfg
}

// Count reports how many rooms are registered.
func (r *Rooms) Count() int {
	groups, err := r.store.LoadGroups()
	if err != nil {
		return 0
	}
	return len(groups)
}

package model

import (
	"time"
)

// RoomConfig is the per-room entry in the registered-groups mapping,
// keyed by room id. Enabled and RequireMention are tri-state: nil means
// "not set here, fall back to the global default".
type RoomConfig struct {
	Name           string    `json:"name"`
	Folder         string    `json:"folder"`
	Trigger        string    `json:"trigger,omitempty"`
	Enabled        *bool     `json:"enabled,omitempty"`
	RequireMention *bool     `json:"require_mention,omitempty"`
	AddedAt        time.Time `json:"added_at"`
}

// IsEnabled applies the default-true rule for the Enabled override.
func (c *RoomConfig) IsEnabled() bool {
	if c == nil || c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

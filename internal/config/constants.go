package config

import "time"

// Pairing
const (
	PairingCodeTTL = 10 * time.Minute
)

// Admission
const (
	// Rooms at or below this joined-member count are treated as DMs.
	DirectMessageMaxMembers = 2
)

// Per-call timeouts for lookups made during admission
const (
	MembershipLookupTimeout = 5 * time.Second
	ProfileLookupTimeout    = 5 * time.Second
)

// Sync loop
const SyncRetryBackoff = 5 * time.Second

// HTTP status server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

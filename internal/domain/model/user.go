package model

import "time"

// DefaultName is assigned to a session until a join action binds a real one.
const DefaultName = "Anonymous"

type Role string

const (
	// [ZERO_VALUE_GUARD] An absent role resolves to RoleUser, never to "".
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleBanned Role = "banned"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// PresenceEntry is one row of the persisted presence registry, keyed by
// display name. Role here is a best-effort cache of the permissions registry
// and must be treated as secondary on any conflict.
type PresenceEntry struct {
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
	Role     Role      `json:"role,omitempty"`
}

// PermissionEntry is one row of the persisted permissions registry, the
// authoritative source of a user's role. Never evicted, unlike presence.
type PermissionEntry struct {
	Role      Role      `json:"role"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type (
	PresenceSet   map[string]PresenceEntry
	PermissionSet map[string]PermissionEntry
)

// PresencePatch is merged over an existing presence entry on touch. Zero-value
// fields keep whatever the entry already holds.
type PresencePatch struct {
	Status Status
	Role   Role
}

// UserView is one element of the broadcast online-user list.
type UserView struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

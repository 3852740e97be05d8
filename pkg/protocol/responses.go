package protocol

import (
	"github.com/cuemby/felt/pkg/table"
	"github.com/cuemby/felt/pkg/types"
)

// ResponseType names a server message
type ResponseType string

const (
	TypeCreated ResponseType = "created"
	TypeJoined  ResponseType = "joined"
	TypeList    ResponseType = "list"
	TypeError   ResponseType = "error"
	TypeState   ResponseType = "state"

	TypeParticipantJoined       ResponseType = "participant_joined"
	TypeParticipantLeft         ResponseType = "participant_left"
	TypeParticipantDisconnected ResponseType = "participant_disconnected"
	TypeParticipantReconnected  ResponseType = "participant_reconnected"
	TypeHostChanged             ResponseType = "host_changed"

	TypeItemMoved    ResponseType = "item_moved"
	TypeItemLocked   ResponseType = "item_locked"
	TypeItemUnlocked ResponseType = "item_unlocked"
	TypeItemFlipped  ResponseType = "item_flipped"

	TypeStackCreated  ResponseType = "stack_created"
	TypeStackMoved    ResponseType = "stack_moved"
	TypeStackLocked   ResponseType = "stack_locked"
	TypeStackUnlocked ResponseType = "stack_unlocked"
	TypeStackUpdated  ResponseType = "stack_updated"
	TypeStackDeleted  ResponseType = "stack_deleted"
	TypeStackMerged   ResponseType = "stack_merged"

	TypeZoneCreated ResponseType = "zone_created"
	TypeZoneUpdated ResponseType = "zone_updated"
	TypeZoneDeleted ResponseType = "zone_deleted"

	TypeHandUpdated   ResponseType = "hand_updated"
	TypeHandCount     ResponseType = "hand_count"
	TypeItemsReturned ResponseType = "items_returned"

	TypePointer           ResponseType = "pointer"
	TypeSettingsUpdated   ResponseType = "settings_updated"
	TypeVisibilityUpdated ResponseType = "visibility_updated"
	TypeNameUpdated       ResponseType = "name_updated"
)

// SessionMeta describes the session a participant is in
type SessionMeta struct {
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	Public     bool           `json:"public"`
	Settings   types.Settings `json:"settings"`
	HostID     string         `json:"hostId"`
	MaxPlayers int            `json:"maxPlayers"`
}

// Created answers a create request
type Created struct {
	SessionMeta
	ParticipantID string              `json:"participantId"`
	Token         string              `json:"token"`
	Roster        []types.RosterEntry `json:"roster"`
	State         types.Snapshot      `json:"state"`
}

// Joined answers a join request, including reconnects
type Joined struct {
	SessionMeta
	ParticipantID  string              `json:"participantId"`
	Token          string              `json:"token"`
	Reconnected    bool                `json:"reconnected"`
	Roster         []types.RosterEntry `json:"roster"`
	State          types.Snapshot      `json:"state"`
	ActivePointers []types.Pointer     `json:"activePointers"`
}

// SessionList answers a list request
type SessionList struct {
	Sessions []types.SessionInfo `json:"sessions"`
}

// State is a full snapshot pushed after a reset or a depth renormalization
type State struct {
	Reason string         `json:"reason"`
	State  types.Snapshot `json:"state"`
}

// ParticipantEvent announces a roster change
type ParticipantEvent struct {
	Participant types.RosterEntry `json:"participant"`
}

// ParticipantLeft announces a participant removed from the roster
type ParticipantLeft struct {
	ParticipantID string `json:"participantId"`
}

// HostChanged names the new host
type HostChanged struct {
	ParticipantID string `json:"participantId"`
}

// Change is the broadcast form of a table mutation
type Change struct {
	By string `json:"by,omitempty"`
	table.Delta
}

// LockChange announces a lease taken or released. Taking a lease raises the
// subject, so the change carries the new depths.
type LockChange struct {
	ID int `json:"id"`
	Change
}

// StackCreated announces a new stack
type StackCreated struct {
	StackID int `json:"stackId"`
	Change
}

// StackMerged announces a merge
type StackMerged struct {
	SourceID int `json:"sourceId"`
	TargetID int `json:"targetId"`
	Change
}

// ZoneCreated announces a new zone
type ZoneCreated struct {
	ZoneID int `json:"zoneId"`
	Change
}

// HandUpdated carries the full hand, sent to its owner only
type HandUpdated struct {
	Items []types.Item `json:"items"`
	Change
}

// HandCount tells everyone else how many cards a participant holds
type HandCount struct {
	PlayerID string `json:"playerId"`
	Count    int    `json:"count"`
	Removed  []int  `json:"removed,omitempty"` // Item ids that left the table
	Change
}

// ItemsReturned announces a hand emptied onto the table on leave
type ItemsReturned struct {
	PlayerID string `json:"playerId"`
	Change
}

// SettingsUpdated carries the complete settings after a partial update
type SettingsUpdated struct {
	Settings types.Settings `json:"settings"`
}

// VisibilityUpdated announces the public flag
type VisibilityUpdated struct {
	Public bool `json:"public"`
}

// NameUpdated announces a session rename
type NameUpdated struct {
	Name string `json:"name"`
}

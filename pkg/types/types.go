package types

import (
	"time"
)

// Item is a single manipulable table object (a card)
type Item struct {
	ID       int     `json:"id"`
	Front    int     `json:"front"` // Sprite index of the face
	Back     int     `json:"back"`  // Sprite index of the back
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation,omitempty"` // Degrees, set by zone layouts
	Z        int64   `json:"z"`                  // Depth from the session's monotonic counter
	FaceUp   bool    `json:"faceUp"`
	StackID  int     `json:"stackId,omitempty"`  // 0 when not in a stack
	HolderID string  `json:"holderId,omitempty"` // Participant holding it in their hand
	LockedBy string  `json:"lockedBy,omitempty"` // Lease holder, filled in views only
	Masked   bool    `json:"masked,omitempty"`   // Front hidden from this viewer
}

// StackKind distinguishes free stacks from stacks owned by a zone
type StackKind string

const (
	StackKindFree StackKind = "free"
	StackKindZone StackKind = "zone"
)

// Stack is an ordered pile of items sharing one anchor, bottom to top
type Stack struct {
	ID       int       `json:"id"`
	Items    []int     `json:"items"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Kind     StackKind `json:"kind"`
	ZoneID   int       `json:"zoneId,omitempty"`
	LockedBy string    `json:"lockedBy,omitempty"`
}

// Top returns the topmost item id, or 0 for an empty stack
func (s *Stack) Top() int {
	if len(s.Items) == 0 {
		return 0
	}
	return s.Items[len(s.Items)-1]
}

// Visibility controls who may see the faces of items in a zone
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityOwnerOnly Visibility = "owner-only"
	VisibilityHidden    Visibility = "hidden"
)

// Valid reports whether v is a known visibility mode
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityOwnerOnly, VisibilityHidden:
		return true
	}
	return false
}

// Layout selects how a zone arranges the cards of its stack
type Layout string

const (
	LayoutStack  Layout = "stack"
	LayoutRow    Layout = "row"
	LayoutColumn Layout = "column"
	LayoutGrid   Layout = "grid"
	LayoutFan    Layout = "fan"
	LayoutCircle Layout = "circle"
)

// Valid reports whether l is a known layout mode
func (l Layout) Valid() bool {
	switch l {
	case LayoutStack, LayoutRow, LayoutColumn, LayoutGrid, LayoutFan, LayoutCircle:
		return true
	}
	return false
}

// LayoutParams tunes a zone layout
type LayoutParams struct {
	Scale   float64 `json:"scale" yaml:"scale"`     // Card scale, 1 = natural size
	Spacing float64 `json:"spacing" yaml:"spacing"` // Gap multiplier between cards
	Jitter  float64 `json:"jitter" yaml:"jitter"`   // Max positional noise in pixels
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Center returns the midpoint of the rectangle
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Zone is a named rectangular region with its own layout and visibility
type Zone struct {
	ID         int          `json:"id"`
	Bounds     Rect         `json:"bounds"`
	Label      string       `json:"label"`
	FaceUp     bool         `json:"faceUp"` // Default orientation for cards placed here
	Locked     bool         `json:"locked"`
	Visibility Visibility   `json:"visibility"`
	OwnerID    string       `json:"ownerId,omitempty"`
	Layout     Layout       `json:"layout"`
	Params     LayoutParams `json:"params"`
	StackID    int          `json:"stackId,omitempty"`
}

// HidesFrom reports whether the zone masks item faces from viewer
func (z *Zone) HidesFrom(viewer string) bool {
	switch z.Visibility {
	case VisibilityHidden:
		return true
	case VisibilityOwnerOnly:
		return z.OwnerID == "" || z.OwnerID != viewer
	}
	return false
}

// Participant is a roster entry of a session
type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Connected bool      `json:"connected"`
	Host      bool      `json:"host"`
	JoinedAt  time.Time `json:"joinedAt"`
	Token     string    `json:"token,omitempty"` // Reconnect token, never sent to other participants
	ConnID    string    `json:"-"`
}

// Public returns the view of the participant shared with the whole session
func (p *Participant) Public() RosterEntry {
	return RosterEntry{
		ID:        p.ID,
		Name:      p.Name,
		Color:     p.Color,
		Connected: p.Connected,
		Host:      p.Host,
	}
}

// RosterEntry is the public view of a participant
type RosterEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Connected bool   `json:"connected"`
	Host      bool   `json:"host"`
}

// Settings holds presentation settings shared by every participant
type Settings struct {
	CardScale    float64 `json:"cardScale"`
	ShowPointers bool    `json:"showPointers"`
	SnapToGrid   bool    `json:"snapToGrid"`
	GridSize     float64 `json:"gridSize"`
	Background   string  `json:"background"`
}

// DefaultSettings returns the settings of a freshly created session
func DefaultSettings() Settings {
	return Settings{
		CardScale:    1,
		ShowPointers: true,
		GridSize:     20,
		Background:   "felt-green",
	}
}

// Pointer is the last reported cursor of a participant
type Pointer struct {
	ParticipantID string  `json:"participantId"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	State         string  `json:"state"`
}

// HandView is one participant's hand as seen by a viewer.
// Items is only populated for the viewer's own hand.
type HandView struct {
	PlayerID string `json:"playerId"`
	Count    int    `json:"count"`
	Items    []Item `json:"items,omitempty"`
}

// Snapshot is the full table state as seen by one participant
type Snapshot struct {
	Items       []Item     `json:"items"`
	Stacks      []Stack    `json:"stacks"`
	Zones       []Zone     `json:"zones"`
	Hands       []HandView `json:"hands"`
	Depth       int64      `json:"depth"`
	NextStackID int        `json:"nextStackId"`
	NextZoneID  int        `json:"nextZoneId"`
}

// TableState is the complete, unprojected table used for checkpoints and resets
type TableState struct {
	Items       []Item           `json:"items"`
	Stacks      []Stack          `json:"stacks"`
	Zones       []Zone           `json:"zones"`
	Hands       map[string][]int `json:"hands"`
	Depth       int64            `json:"depth"`
	NextStackID int              `json:"nextStackId"`
	NextZoneID  int              `json:"nextZoneId"`
}

// SessionInfo is the listing entry of a public session
type SessionInfo struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Players      int       `json:"players"`
	MaxPlayers   int       `json:"maxPlayers"`
	CreatedAt    time.Time `json:"createdAt"`
	HasOpenSeats bool      `json:"hasOpenSeats"`
}

// SessionRecord is the persisted form of a session
type SessionRecord struct {
	Code      string        `json:"code"`
	Name      string        `json:"name"`
	Public    bool          `json:"public"`
	CreatedAt time.Time     `json:"createdAt"`
	Settings  Settings      `json:"settings"`
	Roster    []Participant `json:"roster"`
	Table     TableState    `json:"table"`
	Initial   TableState    `json:"initial"`
	SavedAt   time.Time     `json:"savedAt"`
}

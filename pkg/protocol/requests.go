package protocol

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/cuemby/felt/pkg/types"
)

// Intent names a request type
type Intent string

const (
	IntentCreate = Intent("create")
	IntentJoin   = Intent("join")
	IntentLeave  = Intent("leave")
	IntentList   = Intent("list")

	IntentItemMove   = Intent("item_move")
	IntentItemLock   = Intent("item_lock")
	IntentItemUnlock = Intent("item_unlock")
	IntentItemFlip   = Intent("item_flip")

	IntentStackCreate     = Intent("stack_create")
	IntentStackMove       = Intent("stack_move")
	IntentStackLock       = Intent("stack_lock")
	IntentStackUnlock     = Intent("stack_unlock")
	IntentStackAddItem    = Intent("stack_add_item")
	IntentStackRemoveItem = Intent("stack_remove_item")
	IntentStackMerge      = Intent("stack_merge")
	IntentStackShuffle    = Intent("stack_shuffle")
	IntentStackFlip       = Intent("stack_flip")
	IntentStackSetFaces   = Intent("stack_set_faces")
	IntentStackReorder    = Intent("stack_reorder")

	IntentZoneCreate  = Intent("zone_create")
	IntentZoneUpdate  = Intent("zone_update")
	IntentZoneDelete  = Intent("zone_delete")
	IntentZoneAddItem = Intent("zone_add_item")

	IntentHandAdd      = Intent("hand_add")
	IntentHandRemove   = Intent("hand_remove")
	IntentHandReorder  = Intent("hand_reorder")
	IntentHandAddStack = Intent("hand_add_stack")

	IntentPointer = Intent("pointer")

	IntentSessionReset      = Intent("session_reset")
	IntentSessionSettings   = Intent("session_settings")
	IntentSessionVisibility = Intent("session_visibility")
	IntentSessionName       = Intent("session_name")
)

// Limits enforced at the boundary
const (
	MaxNameLength    = 32
	MaxSessionName   = 64
	MaxLabelLength   = 64
	MaxPointerState  = 16
	MaxStackCreation = 512
)

// Request is one decoded client intent. Validate normalizes the request in
// place and rejects malformed input.
type Request interface {
	Intent() Intent
	Validate() error
}

var requests = map[Intent]func() Request{
	IntentCreate: func() Request { return &Create{} },
	IntentJoin:   func() Request { return &Join{} },
	IntentLeave:  func() Request { return &Leave{} },
	IntentList:   func() Request { return &List{} },

	IntentItemMove:   func() Request { return &ItemMove{} },
	IntentItemLock:   func() Request { return &ItemLock{} },
	IntentItemUnlock: func() Request { return &ItemUnlock{} },
	IntentItemFlip:   func() Request { return &ItemFlip{} },

	IntentStackCreate:     func() Request { return &StackCreate{} },
	IntentStackMove:       func() Request { return &StackMove{} },
	IntentStackLock:       func() Request { return &StackLock{} },
	IntentStackUnlock:     func() Request { return &StackUnlock{} },
	IntentStackAddItem:    func() Request { return &StackAddItem{} },
	IntentStackRemoveItem: func() Request { return &StackRemoveItem{} },
	IntentStackMerge:      func() Request { return &StackMerge{} },
	IntentStackShuffle:    func() Request { return &StackShuffle{} },
	IntentStackFlip:       func() Request { return &StackFlip{} },
	IntentStackSetFaces:   func() Request { return &StackSetFaces{} },
	IntentStackReorder:    func() Request { return &StackReorder{} },

	IntentZoneCreate:  func() Request { return &ZoneCreate{} },
	IntentZoneUpdate:  func() Request { return &ZoneUpdate{} },
	IntentZoneDelete:  func() Request { return &ZoneDelete{} },
	IntentZoneAddItem: func() Request { return &ZoneAddItem{} },

	IntentHandAdd:      func() Request { return &HandAdd{} },
	IntentHandRemove:   func() Request { return &HandRemove{} },
	IntentHandReorder:  func() Request { return &HandReorder{} },
	IntentHandAddStack: func() Request { return &HandAddStack{} },

	IntentPointer: func() Request { return &PointerUpdate{} },

	IntentSessionReset:      func() Request { return &SessionReset{} },
	IntentSessionSettings:   func() Request { return &SessionSettings{} },
	IntentSessionVisibility: func() Request { return &SessionVisibility{} },
	IntentSessionName:       func() Request { return &SessionName{} },
}

// Intents returns every known request type
func Intents() []Intent {
	out := make([]Intent, 0, len(requests))
	for k := range requests {
		out = append(out, k)
	}
	return out
}

func finite(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("coordinates must be finite")
		}
	}
	return nil
}

// cleanName trims and truncates a display string to max runes
func cleanName(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}

// Session lifecycle. Every request type implements Request; Intent returns
// its fixed name and Validate is a no-op unless documented otherwise.

// Create starts a new session with the caller as host
type Create struct {
	DisplayName string `json:"displayName"`
	SessionName string `json:"sessionName,omitempty"`
	Public      bool   `json:"public,omitempty"`
	Token       string `json:"token,omitempty"`
}

func (*Create) Intent() Intent { return IntentCreate }

// Validate trims both names and requires a display name
func (r *Create) Validate() error {
	r.DisplayName = cleanName(r.DisplayName, MaxNameLength)
	r.SessionName = cleanName(r.SessionName, MaxSessionName)
	if r.DisplayName == "" {
		return invalid("display name is required")
	}
	return nil
}

// Join enters a session by code. A known Token resumes an existing seat
// and makes DisplayName optional.
type Join struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
	Token       string `json:"token,omitempty"`
}

func (*Join) Intent() Intent { return IntentJoin }

// Validate upper-cases the code
func (r *Join) Validate() error {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	r.DisplayName = cleanName(r.DisplayName, MaxNameLength)
	if r.Code == "" {
		return invalid("session code is required")
	}
	if r.DisplayName == "" && r.Token == "" {
		return invalid("display name is required")
	}
	return nil
}

// Leave gives up the caller's seat for good
type Leave struct{}

func (*Leave) Intent() Intent  { return IntentLeave }
func (*Leave) Validate() error { return nil }

// List asks for the public sessions
type List struct{}

func (*List) Intent() Intent  { return IntentList }
func (*List) Validate() error { return nil }

// Items

// ItemMove drops an item at a table position
type ItemMove struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (*ItemMove) Intent() Intent    { return IntentItemMove }
func (r *ItemMove) Validate() error { return finite(r.X, r.Y) }

// ItemLock takes or refreshes the caller's lease on an item
type ItemLock struct {
	ID int `json:"id"`
}

func (*ItemLock) Intent() Intent  { return IntentItemLock }
func (*ItemLock) Validate() error { return nil }

// ItemUnlock releases the caller's lease on an item
type ItemUnlock struct {
	ID int `json:"id"`
}

func (*ItemUnlock) Intent() Intent  { return IntentItemUnlock }
func (*ItemUnlock) Validate() error { return nil }

// ItemFlip turns an item over
type ItemFlip struct {
	ID int `json:"id"`
}

func (*ItemFlip) Intent() Intent  { return IntentItemFlip }
func (*ItemFlip) Validate() error { return nil }

// Stacks

// StackCreate groups loose items into a new stack at X, Y. The first
// id ends up at the bottom.
type StackCreate struct {
	ItemIDs []int   `json:"itemIds"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

func (*StackCreate) Intent() Intent { return IntentStackCreate }

// Validate caps the stack size and rejects non-finite coordinates
func (r *StackCreate) Validate() error {
	if len(r.ItemIDs) == 0 {
		return invalid("a stack needs at least one item")
	}
	if len(r.ItemIDs) > MaxStackCreation {
		return invalid("too many items: %d", len(r.ItemIDs))
	}
	return finite(r.X, r.Y)
}

// StackMove moves a stack anchor. Detach pulls a zone stack out of its
// zone.
type StackMove struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Detach bool    `json:"detach,omitempty"`
}

func (*StackMove) Intent() Intent    { return IntentStackMove }
func (r *StackMove) Validate() error { return finite(r.X, r.Y) }

// StackLock takes or refreshes the caller's lease on a stack
type StackLock struct {
	ID int `json:"id"`
}

func (*StackLock) Intent() Intent  { return IntentStackLock }
func (*StackLock) Validate() error { return nil }

// StackUnlock releases the caller's lease on a stack
type StackUnlock struct {
	ID int `json:"id"`
}

func (*StackUnlock) Intent() Intent  { return IntentStackUnlock }
func (*StackUnlock) Validate() error { return nil }

// StackAddItem puts an item on top of a stack
type StackAddItem struct {
	ID     int `json:"id"`
	ItemID int `json:"itemId"`
}

func (*StackAddItem) Intent() Intent  { return IntentStackAddItem }
func (*StackAddItem) Validate() error { return nil }

// StackRemoveItem takes an item out of whatever stack holds it
type StackRemoveItem struct {
	ItemID int `json:"itemId"`
}

func (*StackRemoveItem) Intent() Intent  { return IntentStackRemoveItem }
func (*StackRemoveItem) Validate() error { return nil }

// StackMerge moves every item of SourceID on top of TargetID
type StackMerge struct {
	SourceID int `json:"sourceId"`
	TargetID int `json:"targetId"`
}

func (*StackMerge) Intent() Intent { return IntentStackMerge }

func (r *StackMerge) Validate() error {
	if r.SourceID == r.TargetID {
		return invalid("cannot merge stack %d into itself", r.SourceID)
	}
	return nil
}

// StackShuffle randomizes a stack's order
type StackShuffle struct {
	ID int `json:"id"`
}

func (*StackShuffle) Intent() Intent  { return IntentStackShuffle }
func (*StackShuffle) Validate() error { return nil }

// StackFlip turns over the top item of a stack
type StackFlip struct {
	ID int `json:"id"`
}

func (*StackFlip) Intent() Intent  { return IntentStackFlip }
func (*StackFlip) Validate() error { return nil }

// StackSetFaces turns every item in a stack to the same face
type StackSetFaces struct {
	ID     int  `json:"id"`
	FaceUp bool `json:"faceUp"`
}

func (*StackSetFaces) Intent() Intent  { return IntentStackSetFaces }
func (*StackSetFaces) Validate() error { return nil }

// StackReorder moves the item at index From to index To, counted from
// the bottom
type StackReorder struct {
	ID   int `json:"id"`
	From int `json:"from"`
	To   int `json:"to"`
}

func (*StackReorder) Intent() Intent { return IntentStackReorder }

func (r *StackReorder) Validate() error {
	if r.From < 0 || r.To < 0 {
		return invalid("negative index")
	}
	return nil
}

// Zones

// ZoneCreate adds a zone. Empty Visibility and Layout select public and
// stack.
type ZoneCreate struct {
	Bounds     types.Rect          `json:"bounds"`
	Label      string              `json:"label"`
	FaceUp     bool                `json:"faceUp"`
	Visibility types.Visibility    `json:"visibility,omitempty"`
	OwnerID    string              `json:"ownerId,omitempty"`
	Layout     types.Layout        `json:"layout,omitempty"`
	Params     *types.LayoutParams `json:"layoutParams,omitempty"`
}

func (*ZoneCreate) Intent() Intent { return IntentZoneCreate }

// Validate trims the label and checks enums and geometry
func (r *ZoneCreate) Validate() error {
	r.Label = cleanName(r.Label, MaxLabelLength)
	if r.Visibility != "" && !r.Visibility.Valid() {
		return invalid("unknown visibility %q", r.Visibility)
	}
	if r.Layout != "" && !r.Layout.Valid() {
		return invalid("unknown layout %q", r.Layout)
	}
	if r.Params != nil {
		if err := finite(r.Params.Scale, r.Params.Spacing, r.Params.Jitter); err != nil {
			return err
		}
	}
	return finite(r.Bounds.X, r.Bounds.Y, r.Bounds.Width, r.Bounds.Height)
}

// ZoneUpdate carries only the fields being changed
type ZoneUpdate struct {
	ID         int                 `json:"id"`
	Bounds     *types.Rect         `json:"bounds,omitempty"`
	Label      *string             `json:"label,omitempty"`
	FaceUp     *bool               `json:"faceUp,omitempty"`
	Locked     *bool               `json:"locked,omitempty"`
	Visibility *types.Visibility   `json:"visibility,omitempty"`
	OwnerID    *string             `json:"ownerId,omitempty"`
	Layout     *types.Layout       `json:"layout,omitempty"`
	Params     *types.LayoutParams `json:"layoutParams,omitempty"`
}

func (*ZoneUpdate) Intent() Intent { return IntentZoneUpdate }

// Validate checks only the fields present
func (r *ZoneUpdate) Validate() error {
	if r.Label != nil {
		l := cleanName(*r.Label, MaxLabelLength)
		r.Label = &l
	}
	if r.Visibility != nil && !r.Visibility.Valid() {
		return invalid("unknown visibility %q", *r.Visibility)
	}
	if r.Layout != nil && !r.Layout.Valid() {
		return invalid("unknown layout %q", *r.Layout)
	}
	if r.Bounds != nil {
		if err := finite(r.Bounds.X, r.Bounds.Y, r.Bounds.Width, r.Bounds.Height); err != nil {
			return err
		}
	}
	if r.Params != nil {
		return finite(r.Params.Scale, r.Params.Spacing, r.Params.Jitter)
	}
	return nil
}

// ZoneDelete removes a zone and leaves its items loose where they lie
type ZoneDelete struct {
	ID int `json:"id"`
}

func (*ZoneDelete) Intent() Intent  { return IntentZoneDelete }
func (*ZoneDelete) Validate() error { return nil }

// ZoneAddItem places an item into a zone's stack
type ZoneAddItem struct {
	ID     int `json:"id"`
	ItemID int `json:"itemId"`
}

func (*ZoneAddItem) Intent() Intent  { return IntentZoneAddItem }
func (*ZoneAddItem) Validate() error { return nil }

// Hands

// HandAdd picks an item up into the caller's hand
type HandAdd struct {
	ItemID int `json:"itemId"`
}

func (*HandAdd) Intent() Intent  { return IntentHandAdd }
func (*HandAdd) Validate() error { return nil }

// HandRemove plays an item from the caller's hand onto the table
type HandRemove struct {
	ItemID int     `json:"itemId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	FaceUp bool    `json:"faceUp"`
}

func (*HandRemove) Intent() Intent    { return IntentHandRemove }
func (r *HandRemove) Validate() error { return finite(r.X, r.Y) }

// HandReorder moves a card within the caller's hand
type HandReorder struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (*HandReorder) Intent() Intent { return IntentHandReorder }

func (r *HandReorder) Validate() error {
	if r.From < 0 || r.To < 0 {
		return invalid("negative index")
	}
	return nil
}

// HandAddStack picks a whole stack up into the caller's hand
type HandAddStack struct {
	StackID int `json:"stackId"`
}

func (*HandAddStack) Intent() Intent  { return IntentHandAddStack }
func (*HandAddStack) Validate() error { return nil }

// Presence

// PointerUpdate reports the caller's cursor. It is relayed, never stored
// in the table.
type PointerUpdate struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	State string  `json:"state,omitempty"`
}

func (*PointerUpdate) Intent() Intent { return IntentPointer }

func (r *PointerUpdate) Validate() error {
	if len(r.State) > MaxPointerState {
		return invalid("pointer state too long")
	}
	return finite(r.X, r.Y)
}

// Session settings

// SessionReset restores the initial table. Host only.
type SessionReset struct{}

func (*SessionReset) Intent() Intent  { return IntentSessionReset }
func (*SessionReset) Validate() error { return nil }

// SessionSettings is a partial settings update
type SessionSettings struct {
	CardScale    *float64 `json:"cardScale,omitempty"`
	ShowPointers *bool    `json:"showPointers,omitempty"`
	SnapToGrid   *bool    `json:"snapToGrid,omitempty"`
	GridSize     *float64 `json:"gridSize,omitempty"`
	Background   *string  `json:"background,omitempty"`
}

func (*SessionSettings) Intent() Intent { return IntentSessionSettings }

// Validate bounds the numeric settings and trims the background
func (r *SessionSettings) Validate() error {
	if r.CardScale != nil && (*r.CardScale <= 0 || *r.CardScale > 4 || math.IsNaN(*r.CardScale)) {
		return invalid("card scale must be in (0, 4]")
	}
	if r.GridSize != nil && (*r.GridSize <= 0 || math.IsInf(*r.GridSize, 0) || math.IsNaN(*r.GridSize)) {
		return invalid("grid size must be positive")
	}
	if r.Background != nil {
		b := cleanName(*r.Background, MaxLabelLength)
		r.Background = &b
	}
	return nil
}

// Apply merges the update into s
func (r *SessionSettings) Apply(s types.Settings) types.Settings {
	if r.CardScale != nil {
		s.CardScale = *r.CardScale
	}
	if r.ShowPointers != nil {
		s.ShowPointers = *r.ShowPointers
	}
	if r.SnapToGrid != nil {
		s.SnapToGrid = *r.SnapToGrid
	}
	if r.GridSize != nil {
		s.GridSize = *r.GridSize
	}
	if r.Background != nil {
		s.Background = *r.Background
	}
	return s
}

// SessionVisibility lists or unlists the session. Host only.
type SessionVisibility struct {
	Public bool `json:"public"`
}

func (*SessionVisibility) Intent() Intent  { return IntentSessionVisibility }
func (*SessionVisibility) Validate() error { return nil }

// SessionName renames the session. Host only.
type SessionName struct {
	Name string `json:"name"`
}

func (*SessionName) Intent() Intent { return IntentSessionName }

// Validate trims the name and rejects an empty one
func (r *SessionName) Validate() error {
	r.Name = cleanName(r.Name, MaxSessionName)
	if r.Name == "" {
		return invalid("session name must not be empty")
	}
	return nil
}

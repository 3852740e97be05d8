package table

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/cuemby/felt/pkg/types"
)

var (
	// ErrNotFound is returned when a referenced item, stack or zone does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalid is returned for structurally invalid requests such as bad indices
	ErrInvalid = errors.New("invalid operation")

	// ErrNotHolder is returned when a participant touches an item outside their hand
	ErrNotHolder = errors.New("item not in hand")

	// ErrAlreadyHeld is returned when adding an item that is already in a hand
	ErrAlreadyHeld = errors.New("item already held")
)

// MaxDepth is the depth counter value past which Renormalize should run
const MaxDepth int64 = 1 << 40

// Delta lists everything one mutation changed, ready to broadcast.
// Items never includes items held in a hand.
type Delta struct {
	Items         []types.Item  `json:"items,omitempty"`
	Stacks        []types.Stack `json:"stacks,omitempty"`
	DeletedStacks []int         `json:"deletedStacks,omitempty"`
	Zones         []types.Zone  `json:"zones,omitempty"`
	DeletedZones  []int         `json:"deletedZones,omitempty"`
}

// Table is the authoritative state of one session: items, stacks, zones and
// hands. It enforces structural invariants but performs no lease checks.
// It is not safe for concurrent use.
type Table struct {
	items  map[int]*types.Item
	stacks map[int]*types.Stack
	zones  map[int]*types.Zone
	hands  map[string][]int

	depth       int64
	nextStackID int
	nextZoneID  int

	rng *rand.Rand
}

// New creates an empty table
func New() *Table {
	return &Table{
		items:       make(map[int]*types.Item),
		stacks:      make(map[int]*types.Stack),
		zones:       make(map[int]*types.Zone),
		hands:       make(map[string][]int),
		nextStackID: 1,
		nextZoneID:  1,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// FromState rebuilds a table from an exported state
func FromState(s types.TableState) *Table {
	t := New()
	for i := range s.Items {
		it := s.Items[i]
		it.LockedBy = ""
		it.Masked = false
		t.items[it.ID] = &it
	}
	for i := range s.Stacks {
		st := cloneStack(&s.Stacks[i])
		st.LockedBy = ""
		t.stacks[st.ID] = &st
	}
	for i := range s.Zones {
		z := s.Zones[i]
		t.zones[z.ID] = &z
	}
	for player, ids := range s.Hands {
		if len(ids) > 0 {
			t.hands[player] = append([]int(nil), ids...)
		}
	}
	t.depth = s.Depth
	t.nextStackID = max(s.NextStackID, 1)
	t.nextZoneID = max(s.NextZoneID, 1)
	return t
}

// Export returns a deep copy of the whole table
func (t *Table) Export() types.TableState {
	s := types.TableState{
		Items:       make([]types.Item, 0, len(t.items)),
		Stacks:      make([]types.Stack, 0, len(t.stacks)),
		Zones:       make([]types.Zone, 0, len(t.zones)),
		Hands:       make(map[string][]int, len(t.hands)),
		Depth:       t.depth,
		NextStackID: t.nextStackID,
		NextZoneID:  t.nextZoneID,
	}
	for _, id := range sortedKeys(t.items) {
		s.Items = append(s.Items, *t.items[id])
	}
	for _, id := range sortedKeys(t.stacks) {
		s.Stacks = append(s.Stacks, cloneStack(t.stacks[id]))
	}
	for _, id := range sortedKeys(t.zones) {
		s.Zones = append(s.Zones, *t.zones[id])
	}
	for player, ids := range t.hands {
		s.Hands[player] = append([]int(nil), ids...)
	}
	return s
}

// SetRand replaces the shuffle source, used by tests for determinism
func (t *Table) SetRand(r *rand.Rand) {
	t.rng = r
}

// Item returns a copy of the item
func (t *Table) Item(id int) (types.Item, bool) {
	it, ok := t.items[id]
	if !ok {
		return types.Item{}, false
	}
	return *it, true
}

// Stack returns a copy of the stack
func (t *Table) Stack(id int) (types.Stack, bool) {
	s, ok := t.stacks[id]
	if !ok {
		return types.Stack{}, false
	}
	return cloneStack(s), true
}

// Zone returns a copy of the zone
func (t *Table) Zone(id int) (types.Zone, bool) {
	z, ok := t.zones[id]
	if !ok {
		return types.Zone{}, false
	}
	return *z, true
}

// Depth returns the current value of the depth counter
func (t *Table) Depth() int64 {
	return t.depth
}

// Counts returns the number of items, stacks and zones
func (t *Table) Counts() (items, stacks, zones int) {
	return len(t.items), len(t.stacks), len(t.zones)
}

// tracker records what an operation touched so the delta can be built once
// the mutation is complete.
type tracker struct {
	items         map[int]struct{}
	stacks        map[int]struct{}
	zones         map[int]struct{}
	deletedStacks []int
	deletedZones  []int
}

func newTracker() *tracker {
	return &tracker{
		items:  make(map[int]struct{}),
		stacks: make(map[int]struct{}),
		zones:  make(map[int]struct{}),
	}
}

func (tr *tracker) item(id int)  { tr.items[id] = struct{}{} }
func (tr *tracker) stack(id int) { tr.stacks[id] = struct{}{} }
func (tr *tracker) zone(id int)  { tr.zones[id] = struct{}{} }

func (t *Table) finish(tr *tracker) Delta {
	var d Delta
	for _, id := range sortedKeys(tr.items) {
		if it, ok := t.items[id]; ok && it.HolderID == "" {
			d.Items = append(d.Items, *it)
		}
	}
	for _, id := range sortedKeys(tr.stacks) {
		if s, ok := t.stacks[id]; ok {
			d.Stacks = append(d.Stacks, cloneStack(s))
		}
	}
	for _, id := range sortedKeys(tr.zones) {
		if z, ok := t.zones[id]; ok {
			d.Zones = append(d.Zones, *z)
		}
	}
	d.DeletedStacks = tr.deletedStacks
	d.DeletedZones = tr.deletedZones
	return d
}

// bump assigns the next depth value to an item
func (t *Table) bump(it *types.Item, tr *tracker) {
	t.depth++
	it.Z = t.depth
	tr.item(it.ID)
}

// BumpDepth raises the given items above everything else, in order
func (t *Table) BumpDepth(ids ...int) (Delta, error) {
	for _, id := range ids {
		if _, ok := t.items[id]; !ok {
			return Delta{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
	}
	tr := newTracker()
	for _, id := range ids {
		t.bump(t.items[id], tr)
	}
	return t.finish(tr), nil
}

// NeedsRenormalize reports whether the depth counter has grown past MaxDepth
func (t *Table) NeedsRenormalize() bool {
	return t.depth > MaxDepth
}

// Renormalize rewrites every item depth to 1..N keeping relative order
func (t *Table) Renormalize() {
	all := make([]*types.Item, 0, len(t.items))
	for _, it := range t.items {
		all = append(all, it)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Z != all[j].Z {
			return all[i].Z < all[j].Z
		}
		return all[i].ID < all[j].ID
	})
	for i, it := range all {
		it.Z = int64(i + 1)
	}
	t.depth = int64(len(all))
}

// detach removes an item from its stack and from any hand
func (t *Table) detach(it *types.Item, tr *tracker) {
	if it.StackID != 0 {
		if s, ok := t.stacks[it.StackID]; ok {
			s.Items = removeID(s.Items, it.ID)
			if len(s.Items) == 0 {
				t.deleteStack(s, tr)
			} else {
				t.relayout(s, tr)
			}
		}
		it.StackID = 0
		tr.item(it.ID)
	}
	if it.HolderID != "" {
		t.hands[it.HolderID] = removeID(t.hands[it.HolderID], it.ID)
		if len(t.hands[it.HolderID]) == 0 {
			delete(t.hands, it.HolderID)
		}
		it.HolderID = ""
		tr.item(it.ID)
	}
}

func (t *Table) deleteStack(s *types.Stack, tr *tracker) {
	if s.ZoneID != 0 {
		if z, ok := t.zones[s.ZoneID]; ok && z.StackID == s.ID {
			z.StackID = 0
			tr.zone(z.ID)
		}
	}
	delete(t.stacks, s.ID)
	delete(tr.stacks, s.ID)
	tr.deletedStacks = append(tr.deletedStacks, s.ID)
}

// relayout recomputes the positions of every card in a stack. Zone stacks
// follow their zone's layout; free stacks fan out along the stacking offset.
func (t *Table) relayout(s *types.Stack, tr *tracker) {
	tr.stack(s.ID)
	if s.Kind == types.StackKindZone {
		if z, ok := t.zones[s.ZoneID]; ok {
			s.X, s.Y = z.Bounds.Center()
			for i, id := range s.Items {
				it := t.items[id]
				pl := Place(z.Layout, i, len(s.Items), z.Bounds, z.Params)
				it.X, it.Y, it.Rotation = pl.X, pl.Y, pl.Rotation
				tr.item(id)
			}
			return
		}
	}
	for i, id := range s.Items {
		it := t.items[id]
		it.X = s.X + float64(i)*StackOffsetX
		it.Y = s.Y + float64(i)*StackOffsetY
		it.Rotation = 0
		tr.item(id)
	}
}

func cloneStack(s *types.Stack) types.Stack {
	c := *s
	c.Items = append([]int(nil), s.Items...)
	return c
}

func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func moveIndex(ids []int, from, to int) ([]int, error) {
	if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
		return ids, fmt.Errorf("index %d -> %d out of range [0,%d): %w", from, to, len(ids), ErrInvalid)
	}
	id := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]int{id}, ids[to:]...)...)
	return ids, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

package table

import (
	"fmt"

	"github.com/cuemby/felt/pkg/types"
)

// ZoneSpec describes a zone to create. Zero values select defaults.
type ZoneSpec struct {
	Bounds     types.Rect
	Label      string
	FaceUp     bool
	Locked     bool
	Visibility types.Visibility
	OwnerID    string
	Layout     types.Layout
	Params     *types.LayoutParams
}

// ZonePatch carries the fields of a zone update; nil fields are left alone
type ZonePatch struct {
	Bounds     *types.Rect
	Label      *string
	FaceUp     *bool
	Locked     *bool
	Visibility *types.Visibility
	OwnerID    *string
	Layout     *types.Layout
	Params     *types.LayoutParams
}

// Geometric reports whether the patch changes where cards are laid out
func (p ZonePatch) Geometric() bool {
	return p.Bounds != nil || p.Layout != nil || p.Params != nil
}

// OnlyLock reports whether the patch touches nothing but the locked flag
func (p ZonePatch) OnlyLock() bool {
	return p.Locked != nil && p.Bounds == nil && p.Label == nil && p.FaceUp == nil &&
		p.Visibility == nil && p.OwnerID == nil && p.Layout == nil && p.Params == nil
}

func clampBounds(r types.Rect) types.Rect {
	if r.Width < MinZoneWidth {
		r.Width = MinZoneWidth
	}
	if r.Height < MinZoneHeight {
		r.Height = MinZoneHeight
	}
	return r
}

// CreateZone adds a new, empty zone
func (t *Table) CreateZone(spec ZoneSpec) (int, Delta, error) {
	if spec.Visibility == "" {
		spec.Visibility = types.VisibilityPublic
	}
	if spec.Layout == "" {
		spec.Layout = types.LayoutStack
	}
	if !spec.Visibility.Valid() {
		return 0, Delta{}, fmt.Errorf("visibility %q: %w", spec.Visibility, ErrInvalid)
	}
	if !spec.Layout.Valid() {
		return 0, Delta{}, fmt.Errorf("layout %q: %w", spec.Layout, ErrInvalid)
	}
	params := DefaultParams()
	if spec.Params != nil {
		params = normalizeParams(*spec.Params)
	}

	z := &types.Zone{
		ID:         t.nextZoneID,
		Bounds:     clampBounds(spec.Bounds),
		Label:      spec.Label,
		FaceUp:     spec.FaceUp,
		Locked:     spec.Locked,
		Visibility: spec.Visibility,
		OwnerID:    spec.OwnerID,
		Layout:     spec.Layout,
		Params:     params,
	}
	t.nextZoneID++
	t.zones[z.ID] = z

	tr := newTracker()
	tr.zone(z.ID)
	return z.ID, t.finish(tr), nil
}

// UpdateZone applies a partial update. Geometry and layout changes re-lay the
// zone's stack.
func (t *Table) UpdateZone(id int, p ZonePatch) (Delta, error) {
	z, ok := t.zones[id]
	if !ok {
		return Delta{}, fmt.Errorf("zone %d: %w", id, ErrNotFound)
	}
	if p.Visibility != nil && !p.Visibility.Valid() {
		return Delta{}, fmt.Errorf("visibility %q: %w", *p.Visibility, ErrInvalid)
	}
	if p.Layout != nil && !p.Layout.Valid() {
		return Delta{}, fmt.Errorf("layout %q: %w", *p.Layout, ErrInvalid)
	}

	tr := newTracker()
	tr.zone(id)
	if p.Bounds != nil {
		z.Bounds = clampBounds(*p.Bounds)
	}
	if p.Label != nil {
		z.Label = *p.Label
	}
	if p.FaceUp != nil {
		z.FaceUp = *p.FaceUp
	}
	if p.Locked != nil {
		z.Locked = *p.Locked
	}
	if p.Visibility != nil {
		z.Visibility = *p.Visibility
	}
	if p.OwnerID != nil {
		z.OwnerID = *p.OwnerID
	}
	if p.Layout != nil {
		z.Layout = *p.Layout
	}
	if p.Params != nil {
		z.Params = normalizeParams(*p.Params)
	}

	if s, ok := t.stacks[z.StackID]; ok && z.StackID != 0 {
		if p.Geometric() {
			t.relayout(s, tr)
		} else if p.Visibility != nil || p.OwnerID != nil {
			// Cards keep their place but their projection may change
			for _, itemID := range s.Items {
				tr.item(itemID)
			}
			tr.stack(s.ID)
		}
	}
	return t.finish(tr), nil
}

// DeleteZone removes a zone. Its stack is dissolved and the cards stay on the
// table, ungrouped, at the positions the zone last gave them.
func (t *Table) DeleteZone(id int) (Delta, error) {
	z, ok := t.zones[id]
	if !ok {
		return Delta{}, fmt.Errorf("zone %d: %w", id, ErrNotFound)
	}
	tr := newTracker()
	if s, ok := t.stacks[z.StackID]; ok && z.StackID != 0 {
		for _, itemID := range s.Items {
			it := t.items[itemID]
			it.StackID = 0
			it.Rotation = 0
			tr.item(itemID)
		}
		s.Items = nil
		t.deleteStack(s, tr)
	}
	delete(t.zones, id)
	delete(tr.zones, id)
	tr.deletedZones = append(tr.deletedZones, id)
	return t.finish(tr), nil
}

// AddToZone puts an item on top of the zone's stack, creating the stack on
// first use. The item takes the zone's default orientation.
func (t *Table) AddToZone(zoneID, itemID int) (Delta, error) {
	z, ok := t.zones[zoneID]
	if !ok {
		return Delta{}, fmt.Errorf("zone %d: %w", zoneID, ErrNotFound)
	}
	it, ok := t.items[itemID]
	if !ok {
		return Delta{}, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}

	tr := newTracker()
	t.detach(it, tr)

	s, ok := t.stacks[z.StackID]
	if !ok || z.StackID == 0 {
		cx, cy := z.Bounds.Center()
		s = &types.Stack{
			ID:     t.nextStackID,
			X:      cx,
			Y:      cy,
			Kind:   types.StackKindZone,
			ZoneID: z.ID,
		}
		t.nextStackID++
		t.stacks[s.ID] = s
		z.StackID = s.ID
		tr.zone(z.ID)
	}
	t.appendToStack(s, it, tr)
	return t.finish(tr), nil
}

// ZoneHidesItem reports whether the item's zone masks it from viewer
func (t *Table) ZoneHidesItem(it *types.Item, viewer string) bool {
	if it.StackID == 0 {
		return false
	}
	s, ok := t.stacks[it.StackID]
	if !ok || s.Kind != types.StackKindZone {
		return false
	}
	z, ok := t.zones[s.ZoneID]
	if !ok {
		return false
	}
	return z.HidesFrom(viewer)
}

package table

import (
	"github.com/cuemby/felt/pkg/types"
)

// Locks maps subjects to their lease holders, used to annotate views
type Locks struct {
	Items  map[int]string
	Stacks map[int]string
}

// project returns the item as viewer may see it
func (t *Table) project(it types.Item, viewer string) types.Item {
	if t.ZoneHidesItem(&it, viewer) {
		it.Masked = true
		it.FaceUp = false
		it.Front = -1
	}
	return it
}

// Snapshot returns the table as seen by viewer: table items with hidden zone
// cards masked, the viewer's own hand in full, and only counts for every
// other hand.
func (t *Table) Snapshot(viewer string, locks Locks) types.Snapshot {
	snap := types.Snapshot{
		Items:       make([]types.Item, 0, len(t.items)),
		Stacks:      make([]types.Stack, 0, len(t.stacks)),
		Zones:       make([]types.Zone, 0, len(t.zones)),
		Hands:       []types.HandView{},
		Depth:       t.depth,
		NextStackID: t.nextStackID,
		NextZoneID:  t.nextZoneID,
	}
	for _, id := range sortedKeys(t.items) {
		it := t.items[id]
		if it.HolderID != "" {
			continue
		}
		v := t.project(*it, viewer)
		v.LockedBy = locks.Items[id]
		snap.Items = append(snap.Items, v)
	}
	for _, id := range sortedKeys(t.stacks) {
		s := cloneStack(t.stacks[id])
		s.LockedBy = locks.Stacks[id]
		snap.Stacks = append(snap.Stacks, s)
	}
	for _, id := range sortedKeys(t.zones) {
		snap.Zones = append(snap.Zones, *t.zones[id])
	}

	ownSeen := false
	for _, player := range t.Holders() {
		hv := types.HandView{PlayerID: player, Count: len(t.hands[player])}
		if player == viewer {
			hv.Items = t.Hand(player)
			ownSeen = true
		}
		snap.Hands = append(snap.Hands, hv)
	}
	if !ownSeen && viewer != "" {
		snap.Hands = append(snap.Hands, types.HandView{PlayerID: viewer, Items: []types.Item{}})
	}
	return snap
}

// NeedsProjection reports whether any item in d looks different to different
// viewers, in which case the delta must be sent per recipient.
func (t *Table) NeedsProjection(d Delta) bool {
	for i := range d.Items {
		it := d.Items[i]
		if it.StackID == 0 {
			continue
		}
		s, ok := t.stacks[it.StackID]
		if !ok || s.Kind != types.StackKindZone {
			continue
		}
		if z, ok := t.zones[s.ZoneID]; ok && z.Visibility != types.VisibilityPublic {
			return true
		}
	}
	return false
}

// Project returns a copy of d with items masked for viewer
func (t *Table) Project(d Delta, viewer string) Delta {
	if len(d.Items) == 0 {
		return d
	}
	out := d
	out.Items = make([]types.Item, len(d.Items))
	for i, it := range d.Items {
		out.Items[i] = t.project(it, viewer)
	}
	return out
}

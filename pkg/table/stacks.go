package table

import (
	"fmt"

	"github.com/cuemby/felt/pkg/types"
)

// CreateStack gathers items into a new free stack anchored at x, y. Every item
// takes the orientation of the first (anchor) item.
func (t *Table) CreateStack(ids []int, x, y float64) (int, Delta, error) {
	if len(ids) == 0 {
		return 0, Delta{}, fmt.Errorf("empty stack: %w", ErrInvalid)
	}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if _, ok := t.items[id]; !ok {
			return 0, Delta{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		if seen[id] {
			return 0, Delta{}, fmt.Errorf("item %d listed twice: %w", id, ErrInvalid)
		}
		seen[id] = true
	}

	tr := newTracker()
	faceUp := t.items[ids[0]].FaceUp
	s := &types.Stack{
		ID:   t.nextStackID,
		X:    x,
		Y:    y,
		Kind: types.StackKindFree,
	}
	t.nextStackID++

	for _, id := range ids {
		it := t.items[id]
		t.detach(it, tr)
		it.StackID = s.ID
		it.FaceUp = faceUp
		s.Items = append(s.Items, id)
		t.bump(it, tr)
	}
	t.stacks[s.ID] = s
	t.relayout(s, tr)
	return s.ID, t.finish(tr), nil
}

// MoveStack moves a stack's anchor. With detach set, a zone stack is released
// from its zone and becomes a free stack.
func (t *Table) MoveStack(id int, x, y float64, detach bool) (Delta, error) {
	s, ok := t.stacks[id]
	if !ok {
		return Delta{}, fmt.Errorf("stack %d: %w", id, ErrNotFound)
	}
	tr := newTracker()
	if detach && s.Kind == types.StackKindZone {
		if z, ok := t.zones[s.ZoneID]; ok && z.StackID == s.ID {
			z.StackID = 0
			tr.zone(z.ID)
		}
		s.Kind = types.StackKindFree
		s.ZoneID = 0
	}
	s.X, s.Y = x, y
	t.relayout(s, tr)
	return t.finish(tr), nil
}

// AddToStack puts an item on top of a stack, taking it out of wherever it was
func (t *Table) AddToStack(stackID, itemID int) (Delta, error) {
	s, ok := t.stacks[stackID]
	if !ok {
		return Delta{}, fmt.Errorf("stack %d: %w", stackID, ErrNotFound)
	}
	it, ok := t.items[itemID]
	if !ok {
		return Delta{}, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	if it.StackID == stackID && len(s.Items) == 1 {
		return Delta{Stacks: []types.Stack{cloneStack(s)}}, nil
	}

	tr := newTracker()
	t.detach(it, tr)
	t.appendToStack(s, it, tr)
	return t.finish(tr), nil
}

func (t *Table) appendToStack(s *types.Stack, it *types.Item, tr *tracker) {
	if s.Kind == types.StackKindZone {
		if z, ok := t.zones[s.ZoneID]; ok {
			it.FaceUp = z.FaceUp
		}
	}
	it.StackID = s.ID
	s.Items = append(s.Items, it.ID)
	t.bump(it, tr)
	t.relayout(s, tr)
}

// RemoveFromStack pulls an item out of its stack, leaving it where it lies
func (t *Table) RemoveFromStack(itemID int) (Delta, error) {
	it, ok := t.items[itemID]
	if !ok {
		return Delta{}, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	if it.StackID == 0 {
		return Delta{}, fmt.Errorf("item %d is not in a stack: %w", itemID, ErrInvalid)
	}
	tr := newTracker()
	t.detach(it, tr)
	it.Rotation = 0
	t.bump(it, tr)
	return t.finish(tr), nil
}

// MergeStacks moves every card of source into target and deletes source.
// The merged order is source's cards followed by target's original cards.
func (t *Table) MergeStacks(sourceID, targetID int) (Delta, error) {
	if sourceID == targetID {
		return Delta{}, fmt.Errorf("stack %d merged into itself: %w", sourceID, ErrInvalid)
	}
	src, ok := t.stacks[sourceID]
	if !ok {
		return Delta{}, fmt.Errorf("stack %d: %w", sourceID, ErrNotFound)
	}
	dst, ok := t.stacks[targetID]
	if !ok {
		return Delta{}, fmt.Errorf("stack %d: %w", targetID, ErrNotFound)
	}

	tr := newTracker()
	merged := make([]int, 0, len(src.Items)+len(dst.Items))
	merged = append(merged, src.Items...)
	merged = append(merged, dst.Items...)
	for _, id := range src.Items {
		t.items[id].StackID = dst.ID
	}
	src.Items = nil
	t.deleteStack(src, tr)

	dst.Items = merged
	t.restack(dst, tr)
	return t.finish(tr), nil
}

// ShuffleStack randomly permutes a stack in place
func (t *Table) ShuffleStack(id int) (Delta, error) {
	s, ok := t.stacks[id]
	if !ok {
		return Delta{}, fmt.Errorf("stack %d: %w", id, ErrNotFound)
	}
	tr := newTracker()
	if len(s.Items) < 2 {
		tr.stack(id)
		return t.finish(tr), nil
	}
	// Fisher-Yates
	for i := len(s.Items) - 1; i > 0; i-- {
		j := t.rng.IntN(i + 1)
		s.Items[i], s.Items[j] = s.Items[j], s.Items[i]
	}
	t.restack(s, tr)
	return t.finish(tr), nil
}

// ReorderStack moves the card at index from to index to
func (t *Table) ReorderStack(id, from, to int) (Delta, error) {
	s, ok := t.stacks[id]
	if !ok {
		return Delta{}, fmt.Errorf("stack %d: %w", id, ErrNotFound)
	}
	items, err := moveIndex(s.Items, from, to)
	if err != nil {
		return Delta{}, err
	}
	s.Items = items
	tr := newTracker()
	t.restack(s, tr)
	return t.finish(tr), nil
}

// FlipStack toggles only the topmost card of a stack
func (t *Table) FlipStack(id int) (Delta, error) {
	s, ok := t.stacks[id]
	if !ok {
		return Delta{}, fmt.Errorf("stack %d: %w", id, ErrNotFound)
	}
	tr := newTracker()
	tr.stack(id)
	if top := s.Top(); top != 0 {
		it := t.items[top]
		it.FaceUp = !it.FaceUp
		tr.item(top)
	}
	return t.finish(tr), nil
}

// SetStackFaces sets the orientation of every card in a stack
func (t *Table) SetStackFaces(id int, faceUp bool) (Delta, error) {
	s, ok := t.stacks[id]
	if !ok {
		return Delta{}, fmt.Errorf("stack %d: %w", id, ErrNotFound)
	}
	tr := newTracker()
	tr.stack(id)
	for _, itemID := range s.Items {
		t.items[itemID].FaceUp = faceUp
		tr.item(itemID)
	}
	return t.finish(tr), nil
}

// restack re-assigns depths bottom to top and recomputes positions after the
// order of a stack changed.
func (t *Table) restack(s *types.Stack, tr *tracker) {
	for _, id := range s.Items {
		t.bump(t.items[id], tr)
	}
	t.relayout(s, tr)
}

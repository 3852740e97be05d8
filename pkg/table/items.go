package table

import (
	"fmt"
)

// MoveItem places a free item at x, y. An item that is part of a stack is
// pulled out of it first.
func (t *Table) MoveItem(id int, x, y float64) (Delta, error) {
	it, ok := t.items[id]
	if !ok {
		return Delta{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if it.HolderID != "" {
		return Delta{}, fmt.Errorf("item %d is held: %w", id, ErrInvalid)
	}
	tr := newTracker()
	if it.StackID != 0 {
		t.detach(it, tr)
	}
	it.X, it.Y = x, y
	it.Rotation = 0
	tr.item(id)
	return t.finish(tr), nil
}

// FlipItem toggles the orientation of a single item
func (t *Table) FlipItem(id int) (Delta, error) {
	it, ok := t.items[id]
	if !ok {
		return Delta{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	tr := newTracker()
	it.FaceUp = !it.FaceUp
	tr.item(id)
	return t.finish(tr), nil
}

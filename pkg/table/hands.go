package table

import (
	"fmt"
	"sort"

	"github.com/cuemby/felt/pkg/types"
)

// AddToHand moves an item into player's hand, face up
func (t *Table) AddToHand(player string, itemID int) (Delta, error) {
	it, ok := t.items[itemID]
	if !ok {
		return Delta{}, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	if it.HolderID != "" {
		return Delta{}, fmt.Errorf("item %d: %w", itemID, ErrAlreadyHeld)
	}
	tr := newTracker()
	t.detach(it, tr)
	t.hold(player, it)
	return t.finish(tr), nil
}

func (t *Table) hold(player string, it *types.Item) {
	it.HolderID = player
	it.FaceUp = true
	it.Rotation = 0
	t.hands[player] = append(t.hands[player], it.ID)
}

// AddStackToHand moves every card of a stack, bottom first, into player's
// hand and deletes the stack.
func (t *Table) AddStackToHand(player string, stackID int) ([]int, Delta, error) {
	s, ok := t.stacks[stackID]
	if !ok {
		return nil, Delta{}, fmt.Errorf("stack %d: %w", stackID, ErrNotFound)
	}
	tr := newTracker()
	moved := append([]int(nil), s.Items...)
	for _, id := range moved {
		it := t.items[id]
		it.StackID = 0
		t.hold(player, it)
	}
	s.Items = nil
	t.deleteStack(s, tr)
	return moved, t.finish(tr), nil
}

// RemoveFromHand puts an item from player's hand back on the table
func (t *Table) RemoveFromHand(player string, itemID int, x, y float64, faceUp bool) (Delta, error) {
	it, ok := t.items[itemID]
	if !ok {
		return Delta{}, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	if it.HolderID != player {
		return Delta{}, fmt.Errorf("item %d: %w", itemID, ErrNotHolder)
	}
	tr := newTracker()
	t.detach(it, tr)
	it.X, it.Y = x, y
	it.FaceUp = faceUp
	t.bump(it, tr)
	return t.finish(tr), nil
}

// ReorderHand moves a card within player's hand
func (t *Table) ReorderHand(player string, from, to int) error {
	ids, err := moveIndex(t.hands[player], from, to)
	if err != nil {
		return err
	}
	t.hands[player] = ids
	return nil
}

// ReturnHand empties player's hand onto the table at each card's last
// table position.
func (t *Table) ReturnHand(player string) Delta {
	tr := newTracker()
	for _, id := range append([]int(nil), t.hands[player]...) {
		it := t.items[id]
		it.HolderID = ""
		t.bump(it, tr)
	}
	delete(t.hands, player)
	return t.finish(tr)
}

// Hand returns copies of the items in player's hand, in hand order
func (t *Table) Hand(player string) []types.Item {
	ids := t.hands[player]
	out := make([]types.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, *t.items[id])
	}
	return out
}

// HandCount returns how many cards player holds
func (t *Table) HandCount(player string) int {
	return len(t.hands[player])
}

// Holders returns every participant with a non-empty hand, sorted
func (t *Table) Holders() []string {
	players := make([]string, 0, len(t.hands))
	for p, ids := range t.hands {
		if len(ids) > 0 {
			players = append(players, p)
		}
	}
	sort.Strings(players)
	return players
}

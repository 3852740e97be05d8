package table

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/cuemby/felt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTable returns a table with n loose, face-down items numbered 1..n
func newTestTable(n int) *Table {
	t := New()
	t.SetRand(rand.New(rand.NewPCG(1, 2)))
	for i := 1; i <= n; i++ {
		t.items[i] = &types.Item{ID: i, Front: i - 1, X: float64(i * 10), Y: float64(i * 10)}
	}
	return t
}

// checkInvariants verifies the structural invariants that must hold after
// any sequence of operations.
func checkInvariants(t *testing.T, tb *Table) {
	t.Helper()
	inStack := make(map[int]int)
	for id, s := range tb.stacks {
		require.NotEmpty(t, s.Items, "stack %d is empty but still present", id)
		for _, itemID := range s.Items {
			it, ok := tb.items[itemID]
			require.True(t, ok, "stack %d references missing item %d", id, itemID)
			assert.Equal(t, id, it.StackID, "item %d back-reference", itemID)
			_, dup := inStack[itemID]
			assert.False(t, dup, "item %d in two stacks", itemID)
			inStack[itemID] = id
		}
		if s.Kind == types.StackKindZone {
			z, ok := tb.zones[s.ZoneID]
			require.True(t, ok, "zone stack %d without zone", id)
			assert.Equal(t, id, z.StackID)
		}
	}
	inHand := make(map[int]string)
	for player, ids := range tb.hands {
		for _, itemID := range ids {
			it := tb.items[itemID]
			assert.Equal(t, player, it.HolderID)
			assert.Zero(t, it.StackID, "item %d is in a hand and a stack", itemID)
			inHand[itemID] = player
		}
	}
	for id, it := range tb.items {
		if it.StackID != 0 {
			_, ok := inStack[id]
			assert.True(t, ok, "item %d points at stack %d that does not list it", id, it.StackID)
		}
		if it.HolderID != "" {
			_, ok := inHand[id]
			assert.True(t, ok, "item %d claims holder %s", id, it.HolderID)
		}
		assert.False(t, it.StackID != 0 && it.HolderID != "", "item %d both stacked and held", id)
	}
}

func TestMoveItem(t *testing.T) {
	tb := newTestTable(2)

	d, err := tb.MoveItem(1, 300, 400)
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	assert.Equal(t, 300.0, d.Items[0].X)
	assert.Equal(t, 400.0, d.Items[0].Y)

	_, err = tb.MoveItem(99, 0, 0)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMoveItemOutOfStack(t *testing.T) {
	tb := newTestTable(3)
	stackID, _, err := tb.CreateStack([]int{1, 2, 3}, 0, 0)
	require.NoError(t, err)

	_, err = tb.MoveItem(3, 500, 500)
	require.NoError(t, err)

	s, _ := tb.Stack(stackID)
	assert.Equal(t, []int{1, 2}, s.Items)
	it, _ := tb.Item(3)
	assert.Zero(t, it.StackID)
	checkInvariants(t, tb)
}

func TestCreateStackInheritsAnchorFace(t *testing.T) {
	tb := newTestTable(3)
	tb.items[2].FaceUp = true

	id, d, err := tb.CreateStack([]int{2, 1, 3}, 50, 60)
	require.NoError(t, err)
	require.Len(t, d.Stacks, 1)

	s, ok := tb.Stack(id)
	require.True(t, ok)
	assert.Equal(t, []int{2, 1, 3}, s.Items)
	for _, itemID := range s.Items {
		it, _ := tb.Item(itemID)
		assert.True(t, it.FaceUp, "item %d should follow the anchor", itemID)
		assert.Equal(t, id, it.StackID)
	}

	bottom, _ := tb.Item(2)
	top, _ := tb.Item(3)
	assert.Equal(t, 50.0, bottom.X)
	assert.Equal(t, 60.0, bottom.Y)
	assert.Equal(t, 60.0+2*StackOffsetY, top.Y)
	assert.Greater(t, top.Z, bottom.Z)
	checkInvariants(t, tb)
}

func TestCreateStackValidation(t *testing.T) {
	tb := newTestTable(2)

	_, _, err := tb.CreateStack(nil, 0, 0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, _, err = tb.CreateStack([]int{1, 1}, 0, 0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, _, err = tb.CreateStack([]int{1, 7}, 0, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, tb.stacks, "failed create must not mutate")
}

func TestCreateStackStealsFromOldStack(t *testing.T) {
	tb := newTestTable(3)
	first, _, err := tb.CreateStack([]int{1, 2}, 0, 0)
	require.NoError(t, err)

	_, d, err := tb.CreateStack([]int{1, 2, 3}, 100, 100)
	require.NoError(t, err)

	_, ok := tb.Stack(first)
	assert.False(t, ok, "emptied stack must be deleted in the same operation")
	assert.Contains(t, d.DeletedStacks, first)
	checkInvariants(t, tb)
}

func TestRemoveLastItemDeletesStack(t *testing.T) {
	tb := newTestTable(2)
	id, _, err := tb.CreateStack([]int{1, 2}, 0, 0)
	require.NoError(t, err)

	_, err = tb.RemoveFromStack(2)
	require.NoError(t, err)
	_, ok := tb.Stack(id)
	assert.True(t, ok)

	d, err := tb.RemoveFromStack(1)
	require.NoError(t, err)
	_, ok = tb.Stack(id)
	assert.False(t, ok)
	assert.Equal(t, []int{id}, d.DeletedStacks)

	_, err = tb.RemoveFromStack(1)
	assert.ErrorIs(t, err, ErrInvalid)
	checkInvariants(t, tb)
}

func TestAddToStackMovesBetweenStacks(t *testing.T) {
	tb := newTestTable(3)
	a, _, _ := tb.CreateStack([]int{1}, 0, 0)
	b, _, _ := tb.CreateStack([]int{2, 3}, 100, 0)

	d, err := tb.AddToStack(b, 1)
	require.NoError(t, err)

	_, ok := tb.Stack(a)
	assert.False(t, ok)
	assert.Contains(t, d.DeletedStacks, a)
	s, _ := tb.Stack(b)
	assert.Equal(t, []int{2, 3, 1}, s.Items)

	// Re-adding the lone item of a stack to itself is a no-op
	c, _, _ := tb.CreateStack([]int{1}, 0, 0)
	_, err = tb.AddToStack(c, 1)
	require.NoError(t, err)
	s, ok = tb.Stack(c)
	require.True(t, ok)
	assert.Equal(t, []int{1}, s.Items)
	checkInvariants(t, tb)
}

func TestMergeStacks(t *testing.T) {
	tb := newTestTable(5)
	src, _, _ := tb.CreateStack([]int{1, 2}, 0, 0)
	dst, _, _ := tb.CreateStack([]int{3, 4, 5}, 200, 200)

	d, err := tb.MergeStacks(src, dst)
	require.NoError(t, err)

	_, ok := tb.Stack(src)
	assert.False(t, ok)
	assert.Equal(t, []int{src}, d.DeletedStacks)

	s, _ := tb.Stack(dst)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, s.Items)
	for _, id := range s.Items {
		it, _ := tb.Item(id)
		assert.Equal(t, dst, it.StackID)
	}
	checkInvariants(t, tb)
}

func TestMergeStacksRejectsSelfAndMissing(t *testing.T) {
	tb := newTestTable(2)
	id, _, _ := tb.CreateStack([]int{1, 2}, 0, 0)

	_, err := tb.MergeStacks(id, id)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = tb.MergeStacks(id, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tb.MergeStacks(42, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShufflePreservesMembership(t *testing.T) {
	tb := newTestTable(20)
	ids := make([]int, 20)
	for i := range ids {
		ids[i] = i + 1
	}
	id, _, err := tb.CreateStack(ids, 0, 0)
	require.NoError(t, err)

	_, err = tb.ShuffleStack(id)
	require.NoError(t, err)

	s, _ := tb.Stack(id)
	after := append([]int(nil), s.Items...)
	assert.NotEqual(t, ids, after, "a 20 card shuffle with a fixed seed should move something")
	sort.Ints(after)
	assert.Equal(t, ids, after)

	// Depth follows the new order
	for i := 1; i < len(s.Items); i++ {
		lo, _ := tb.Item(s.Items[i-1])
		hi, _ := tb.Item(s.Items[i])
		assert.Less(t, lo.Z, hi.Z)
	}
	checkInvariants(t, tb)
}

func TestShuffleSingleCardIsNoop(t *testing.T) {
	tb := newTestTable(1)
	id, _, _ := tb.CreateStack([]int{1}, 0, 0)
	depth := tb.Depth()

	_, err := tb.ShuffleStack(id)
	require.NoError(t, err)
	assert.Equal(t, depth, tb.Depth())
}

func TestReorderStack(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []int
		err      error
	}{
		{name: "bottom to top", from: 0, to: 3, want: []int{2, 3, 4, 1}},
		{name: "top to bottom", from: 3, to: 0, want: []int{4, 1, 2, 3}},
		{name: "same index", from: 1, to: 1, want: []int{1, 2, 3, 4}},
		{name: "from out of range", from: 4, to: 0, err: ErrInvalid},
		{name: "negative to", from: 0, to: -1, err: ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestTable(4)
			id, _, _ := tb.CreateStack([]int{1, 2, 3, 4}, 0, 0)

			_, err := tb.ReorderStack(id, tt.from, tt.to)
			s, _ := tb.Stack(id)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Equal(t, []int{1, 2, 3, 4}, s.Items)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Items)
		})
	}
}

func TestFlipStackIsShallow(t *testing.T) {
	tb := newTestTable(3)
	id, _, _ := tb.CreateStack([]int{1, 2, 3}, 0, 0)

	d, err := tb.FlipStack(id)
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	assert.Equal(t, 3, d.Items[0].ID)

	top, _ := tb.Item(3)
	bottom, _ := tb.Item(1)
	assert.True(t, top.FaceUp)
	assert.False(t, bottom.FaceUp)
}

func TestSetStackFacesIsDeep(t *testing.T) {
	tb := newTestTable(3)
	id, _, _ := tb.CreateStack([]int{1, 2, 3}, 0, 0)

	_, err := tb.SetStackFaces(id, true)
	require.NoError(t, err)
	for _, itemID := range []int{1, 2, 3} {
		it, _ := tb.Item(itemID)
		assert.True(t, it.FaceUp)
	}
}

func TestMoveStackDetachFromZone(t *testing.T) {
	tb := newTestTable(2)
	zoneID, _, err := tb.CreateZone(ZoneSpec{Bounds: types.Rect{X: 0, Y: 0, Width: 400, Height: 300}})
	require.NoError(t, err)
	_, err = tb.AddToZone(zoneID, 1)
	require.NoError(t, err)
	z, _ := tb.Zone(zoneID)
	stackID := z.StackID

	// Without detaching, the zone keeps the stack anchored at its center
	_, err = tb.MoveStack(stackID, 900, 900, false)
	require.NoError(t, err)
	s, _ := tb.Stack(stackID)
	assert.Equal(t, 200.0, s.X)

	d, err := tb.MoveStack(stackID, 900, 900, true)
	require.NoError(t, err)
	s, _ = tb.Stack(stackID)
	assert.Equal(t, types.StackKindFree, s.Kind)
	assert.Zero(t, s.ZoneID)
	assert.Equal(t, 900.0, s.X)
	require.Len(t, d.Zones, 1)
	assert.Zero(t, d.Zones[0].StackID)
	checkInvariants(t, tb)
}

func TestBumpDepthMonotonic(t *testing.T) {
	tb := newTestTable(3)

	_, err := tb.BumpDepth(1, 2)
	require.NoError(t, err)
	first := tb.Depth()
	_, err = tb.BumpDepth(1)
	require.NoError(t, err)
	assert.Equal(t, first+1, tb.Depth())

	it, _ := tb.Item(1)
	assert.Equal(t, tb.Depth(), it.Z)

	_, err = tb.BumpDepth(1, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, first+1, tb.Depth(), "failed bump must not advance the counter")
}

func TestRenormalize(t *testing.T) {
	tb := newTestTable(3)
	tb.items[1].Z = MaxDepth + 10
	tb.items[2].Z = 5
	tb.items[3].Z = MaxDepth + 3
	tb.depth = MaxDepth + 10
	require.True(t, tb.NeedsRenormalize())

	tb.Renormalize()

	assert.False(t, tb.NeedsRenormalize())
	assert.Equal(t, int64(3), tb.Depth())
	a, _ := tb.Item(1)
	b, _ := tb.Item(2)
	c, _ := tb.Item(3)
	assert.Equal(t, int64(3), a.Z)
	assert.Equal(t, int64(1), b.Z)
	assert.Equal(t, int64(2), c.Z)
}

func TestExportRoundTrip(t *testing.T) {
	tb := newTestTable(4)
	_, _, _ = tb.CreateStack([]int{1, 2}, 0, 0)
	zoneID, _, _ := tb.CreateZone(ZoneSpec{Bounds: types.Rect{Width: 300, Height: 300}})
	_, _ = tb.AddToZone(zoneID, 3)
	_, _ = tb.AddToHand("alice", 4)

	restored := FromState(tb.Export())

	assert.Equal(t, tb.Export(), restored.Export())
	checkInvariants(t, restored)
}

func TestOperationSequenceKeepsInvariants(t *testing.T) {
	tb := newTestTable(12)
	r := rand.New(rand.NewPCG(7, 7))

	zoneID, _, _ := tb.CreateZone(ZoneSpec{Bounds: types.Rect{Width: 500, Height: 300}, Layout: types.LayoutRow})
	players := []string{"alice", "bob"}

	for step := 0; step < 500; step++ {
		item := r.IntN(14) + 1 // occasionally unknown
		stack := r.IntN(6) + 1
		player := players[r.IntN(2)]
		switch r.IntN(10) {
		case 0:
			_, _, _ = tb.CreateStack([]int{item, r.IntN(12) + 1}, 10, 10)
		case 1:
			_, _ = tb.AddToStack(stack, item)
		case 2:
			_, _ = tb.RemoveFromStack(item)
		case 3:
			_, _ = tb.MergeStacks(stack, r.IntN(6)+1)
		case 4:
			_, _ = tb.ShuffleStack(stack)
		case 5:
			_, _ = tb.AddToZone(zoneID, item)
		case 6:
			_, _ = tb.AddToHand(player, item)
		case 7:
			_, _ = tb.RemoveFromHand(player, item, 1, 1, true)
		case 8:
			_, _, _ = tb.AddStackToHand(player, stack)
		case 9:
			_, _ = tb.MoveItem(item, 5, 5)
		}
		checkInvariants(t, tb)
	}
}

package table

import (
	"testing"

	"github.com/cuemby/felt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateZoneDefaultsAndClamp(t *testing.T) {
	tb := newTestTable(0)

	id, d, err := tb.CreateZone(ZoneSpec{Bounds: types.Rect{X: 5, Y: 5, Width: 10, Height: 10}, Label: "discard"})
	require.NoError(t, err)
	require.Len(t, d.Zones, 1)

	z, ok := tb.Zone(id)
	require.True(t, ok)
	assert.Equal(t, MinZoneWidth, z.Bounds.Width)
	assert.Equal(t, MinZoneHeight, z.Bounds.Height)
	assert.Equal(t, types.VisibilityPublic, z.Visibility)
	assert.Equal(t, types.LayoutStack, z.Layout)
	assert.Equal(t, 1.0, z.Params.Scale)

	_, _, err = tb.CreateZone(ZoneSpec{Layout: "spiral"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, _, err = tb.CreateZone(ZoneSpec{Visibility: "secret"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAddToZoneLazilyCreatesStack(t *testing.T) {
	tb := newTestTable(3)
	tb.items[2].FaceUp = true
	zoneID, _, _ := tb.CreateZone(ZoneSpec{Bounds: types.Rect{Width: 600, Height: 300}, FaceUp: false, Layout: types.LayoutRow})

	d, err := tb.AddToZone(zoneID, 1)
	require.NoError(t, err)
	z, _ := tb.Zone(zoneID)
	require.NotZero(t, z.StackID)
	require.Len(t, d.Zones, 1)

	_, err = tb.AddToZone(zoneID, 2)
	require.NoError(t, err)
	z2, _ := tb.Zone(zoneID)
	assert.Equal(t, z.StackID, z2.StackID, "second insert appends to the same stack")

	s, _ := tb.Stack(z.StackID)
	assert.Equal(t, []int{1, 2}, s.Items)
	assert.Equal(t, types.StackKindZone, s.Kind)

	it, _ := tb.Item(2)
	assert.False(t, it.FaceUp, "zone default orientation wins")

	a, _ := tb.Item(1)
	assert.Less(t, a.X, it.X, "row layout spreads cards left to right")
	checkInvariants(t, tb)
}

func TestDeleteZoneReturnsItemsToTable(t *testing.T) {
	tb := newTestTable(8)
	zoneID, _, _ := tb.CreateZone(ZoneSpec{Bounds: types.Rect{X: 100, Y: 100, Width: 400, Height: 400}})
	_, err := tb.AddToZone(zoneID, 7)
	require.NoError(t, err)
	before, _ := tb.Item(7)

	d, err := tb.DeleteZone(zoneID)
	require.NoError(t, err)

	assert.Equal(t, []int{zoneID}, d.DeletedZones)
	assert.Len(t, d.DeletedStacks, 1)
	require.Len(t, d.Items, 1)

	it, _ := tb.Item(7)
	assert.Zero(t, it.StackID)
	assert.Equal(t, before.X, it.X)
	assert.Equal(t, before.Y, it.Y)
	assert.Equal(t, 300.0, it.X, "card stays at the zone center")
	assert.Empty(t, tb.stacks)

	_, err = tb.DeleteZone(zoneID)
	assert.ErrorIs(t, err, ErrNotFound)
	checkInvariants(t, tb)
}

func TestUpdateZoneRelayoutsStack(t *testing.T) {
	tb := newTestTable(2)
	zoneID, _, _ := tb.CreateZone(ZoneSpec{Bounds: types.Rect{Width: 400, Height: 400}})
	_, _ = tb.AddToZone(zoneID, 1)
	_, _ = tb.AddToZone(zoneID, 2)

	bounds := types.Rect{X: 1000, Y: 1000, Width: 50, Height: 50}
	d, err := tb.UpdateZone(zoneID, ZonePatch{Bounds: &bounds})
	require.NoError(t, err)

	z, _ := tb.Zone(zoneID)
	assert.Equal(t, MinZoneWidth, z.Bounds.Width)
	assert.Len(t, d.Items, 2)

	it, _ := tb.Item(1)
	cx, cy := z.Bounds.Center()
	assert.Equal(t, cx, it.X)
	assert.Equal(t, cy, it.Y)

	label := "renamed"
	d, err = tb.UpdateZone(zoneID, ZonePatch{Label: &label})
	require.NoError(t, err)
	assert.Empty(t, d.Items, "label changes do not move cards")

	bad := types.Layout("spiral")
	_, err = tb.UpdateZone(zoneID, ZonePatch{Layout: &bad})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestZonePatchPredicates(t *testing.T) {
	locked := true
	label := "x"
	assert.True(t, ZonePatch{Locked: &locked}.OnlyLock())
	assert.False(t, ZonePatch{Locked: &locked, Label: &label}.OnlyLock())
	assert.False(t, ZonePatch{Label: &label}.Geometric())
	assert.True(t, ZonePatch{Params: &types.LayoutParams{}}.Geometric())
}

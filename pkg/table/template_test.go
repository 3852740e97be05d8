package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/felt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardTemplate(t *testing.T) {
	state, err := StandardTemplate().Build()
	require.NoError(t, err)

	assert.Len(t, state.Items, 52)
	require.Len(t, state.Stacks, 1)
	assert.Len(t, state.Stacks[0].Items, 52)
	assert.Equal(t, DefaultCenterX, state.Stacks[0].X)
	for _, it := range state.Items {
		assert.False(t, it.FaceUp)
		assert.Equal(t, 54, it.Back)
	}
}

const sampleTemplate = `
name: rummy
deck:
  kind: standard52
  jokers: 2
  back: 60
  x: 500
  y: 400
items:
  - {id: 100, front: 70, back: 60, x: 10, y: 20, faceUp: true}
  - {id: 101, front: 71, back: 60, x: 10, y: 20}
zones:
  - label: discard
    bounds: {x: 700, y: 300, width: 200, height: 200}
    faceUp: true
    layout: row
    items: [100]
  - label: secret
    bounds: {x: 0, y: 0, width: 300, height: 200}
    visibility: hidden
`

func TestParseTemplate(t *testing.T) {
	tpl, err := ParseTemplate([]byte(sampleTemplate))
	require.NoError(t, err)
	assert.Equal(t, "rummy", tpl.Name)

	state, err := tpl.Build()
	require.NoError(t, err)
	assert.Len(t, state.Items, 56)
	assert.Len(t, state.Zones, 2)
	assert.Len(t, state.Stacks, 2, "deck plus the discard zone stack")

	tb := FromState(state)
	z, ok := tb.Zone(1)
	require.True(t, ok)
	assert.Equal(t, types.LayoutRow, z.Layout)
	s, ok := tb.Stack(z.StackID)
	require.True(t, ok)
	assert.Equal(t, []int{100}, s.Items)
	checkInvariants(t, tb)
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "name: [unterminated"},
		{"unknown deck", "deck: {kind: tarot}"},
		{"id collides with deck", "deck: {kind: standard52}\nitems: [{id: 3}]"},
		{"duplicate item", "items: [{id: 1}, {id: 1}]"},
		{"non positive id", "items: [{id: 0}]"},
		{"unknown stack member", "items: [{id: 1}]\nstacks: [{items: [1, 2]}]"},
		{"placed twice", "items: [{id: 1}]\nstacks: [{items: [1]}]\nzones: [{label: a, items: [1]}]"},
		{"bad layout", "zones: [{label: a, layout: spiral}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTemplate), 0o600))

	tpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "rummy", tpl.Name)

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package table

import (
	"math"

	"github.com/cuemby/felt/pkg/types"
)

// Card geometry in table pixels. Item coordinates are card centers.
const (
	CardWidth  = 100.0
	CardHeight = 140.0

	// Offset between consecutive cards of a free stack
	StackOffsetX = 0.0
	StackOffsetY = -0.5

	MinZoneWidth  = 120.0
	MinZoneHeight = 160.0

	fanStepDegrees = 8.0
	fanMaxDegrees  = 70.0
)

// Placement is where a layout puts one card
type Placement struct {
	X        float64
	Y        float64
	Rotation float64
}

// LayoutFunc places card index of count inside bounds. Implementations are pure.
type LayoutFunc func(index, count int, bounds types.Rect, p types.LayoutParams) Placement

var layouts = map[types.Layout]LayoutFunc{
	types.LayoutStack:  stackLayout,
	types.LayoutRow:    rowLayout,
	types.LayoutColumn: columnLayout,
	types.LayoutGrid:   gridLayout,
	types.LayoutFan:    fanLayout,
	types.LayoutCircle: circleLayout,
}

// LayoutFor returns the layout function for mode, falling back to stack
func LayoutFor(mode types.Layout) LayoutFunc {
	if fn, ok := layouts[mode]; ok {
		return fn
	}
	return stackLayout
}

// Place runs the zone's layout for one card and applies jitter
func Place(mode types.Layout, index, count int, bounds types.Rect, p types.LayoutParams) Placement {
	p = normalizeParams(p)
	pl := LayoutFor(mode)(index, count, bounds, p)
	if p.Jitter > 0 {
		pl.X += p.Jitter * noise(index, 1)
		pl.Y += p.Jitter * noise(index, 2)
	}
	return pl
}

// DefaultParams returns the layout parameters of a new zone
func DefaultParams() types.LayoutParams {
	return types.LayoutParams{Scale: 1, Spacing: 1}
}

func normalizeParams(p types.LayoutParams) types.LayoutParams {
	if p.Scale <= 0 {
		p.Scale = 1
	}
	if p.Spacing <= 0 {
		p.Spacing = 1
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

func stackLayout(index, _ int, b types.Rect, p types.LayoutParams) Placement {
	cx, cy := b.Center()
	return Placement{
		X: cx + float64(index)*StackOffsetX*p.Scale,
		Y: cy + float64(index)*StackOffsetY*p.Scale,
	}
}

// lineStep spreads count cards of size along length, compressing when they
// would overflow the zone.
func lineStep(count int, size, length, spacing float64) float64 {
	if count < 2 {
		return 0
	}
	step := size * spacing
	if maxStep := (length - size) / float64(count-1); step*float64(count-1)+size > length && maxStep > 0 {
		step = maxStep
	}
	return step
}

func rowLayout(index, count int, b types.Rect, p types.LayoutParams) Placement {
	cx, cy := b.Center()
	w := CardWidth * p.Scale
	step := lineStep(count, w, b.Width, p.Spacing)
	x0 := cx - step*float64(count-1)/2
	return Placement{X: x0 + step*float64(index), Y: cy}
}

func columnLayout(index, count int, b types.Rect, p types.LayoutParams) Placement {
	cx, cy := b.Center()
	h := CardHeight * p.Scale
	step := lineStep(count, h, b.Height, p.Spacing)
	y0 := cy - step*float64(count-1)/2
	return Placement{X: cx, Y: y0 + step*float64(index)}
}

func gridLayout(index, count int, b types.Rect, p types.LayoutParams) Placement {
	cx, cy := b.Center()
	cellW := CardWidth * p.Scale * p.Spacing
	cellH := CardHeight * p.Scale * p.Spacing

	cols := int(math.Floor(b.Width / cellW))
	if cols < 1 {
		cols = 1
	}
	if cols > count {
		cols = count
	}
	if cols < 1 {
		cols = 1
	}
	rows := (count + cols - 1) / cols

	row, col := index/cols, index%cols
	x0 := cx - float64(cols)*cellW/2 + cellW/2
	y0 := cy - float64(rows)*cellH/2 + cellH/2
	return Placement{X: x0 + float64(col)*cellW, Y: y0 + float64(row)*cellH}
}

func fanLayout(index, count int, b types.Rect, p types.LayoutParams) Placement {
	cx, cy := b.Center()
	spread := math.Min(fanMaxDegrees, float64(count-1)*fanStepDegrees*p.Spacing)
	angle := 0.0
	if count > 1 {
		angle = -spread/2 + spread*float64(index)/float64(count-1)
	}
	radius := CardHeight * 2 * p.Scale
	rad := angle * math.Pi / 180
	// Pivot sits below the zone center so the fan opens upwards around it
	px, py := cx, cy+radius
	return Placement{
		X:        px + radius*math.Sin(rad),
		Y:        py - radius*math.Cos(rad),
		Rotation: angle,
	}
}

func circleLayout(index, count int, b types.Rect, p types.LayoutParams) Placement {
	cx, cy := b.Center()
	if count < 2 {
		return Placement{X: cx, Y: cy}
	}
	radius := math.Max(0, math.Min(b.Width, b.Height)/2-CardHeight*p.Scale/2)
	angle := 2*math.Pi*float64(index)/float64(count) - math.Pi/2
	return Placement{
		X:        cx + radius*math.Cos(angle),
		Y:        cy + radius*math.Sin(angle),
		Rotation: angle*180/math.Pi + 90,
	}
}

// noise maps (index, salt) to a stable value in [-1, 1]
func noise(index, salt int) float64 {
	h := uint32(index)*2654435761 ^ uint32(salt)*40503
	h ^= h >> 15
	h *= 2246822519
	h ^= h >> 13
	return float64(h%20001)/10000 - 1
}

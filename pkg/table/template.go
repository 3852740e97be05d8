package table

import (
	"fmt"
	"os"

	"github.com/cuemby/felt/pkg/types"
	"gopkg.in/yaml.v3"
)

// Default table center where the built-in deck is placed
const (
	DefaultCenterX = 960.0
	DefaultCenterY = 540.0
)

// Template describes the initial layout of a table
type Template struct {
	Name   string      `yaml:"name"`
	Deck   *DeckSpec   `yaml:"deck,omitempty"`
	Items  []ItemSpec  `yaml:"items,omitempty"`
	Stacks []StackSpec `yaml:"stacks,omitempty"`
	Zones  []ZoneDef   `yaml:"zones,omitempty"`
}

// DeckSpec generates a standard deck as a single stack
type DeckSpec struct {
	Kind   string  `yaml:"kind"` // "standard52"
	Jokers int     `yaml:"jokers"`
	Back   int     `yaml:"back"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	FaceUp bool    `yaml:"faceUp"`
}

// ItemSpec declares one item
type ItemSpec struct {
	ID     int     `yaml:"id"`
	Front  int     `yaml:"front"`
	Back   int     `yaml:"back"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	FaceUp bool    `yaml:"faceUp"`
}

// StackSpec declares a free stack of previously declared items
type StackSpec struct {
	Items []int   `yaml:"items"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
}

// ZoneDef declares a zone and the items initially placed in it
type ZoneDef struct {
	Bounds     types.Rect          `yaml:"bounds"`
	Label      string              `yaml:"label"`
	FaceUp     bool                `yaml:"faceUp"`
	Locked     bool                `yaml:"locked"`
	Visibility types.Visibility    `yaml:"visibility"`
	Layout     types.Layout        `yaml:"layout"`
	Params     *types.LayoutParams `yaml:"params,omitempty"`
	Items      []int               `yaml:"items,omitempty"`
}

// StandardTemplate is a face-down 52 card deck at the table center
func StandardTemplate() *Template {
	return &Template{
		Name: "standard",
		Deck: &DeckSpec{Kind: "standard52", Back: 54, X: DefaultCenterX, Y: DefaultCenterY},
	}
}

// LoadTemplate reads and validates a YAML template file
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes and validates a YAML template
func ParseTemplate(data []byte) (*Template, error) {
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if _, err := tpl.Build(); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (tpl *Template) items() ([]ItemSpec, error) {
	var specs []ItemSpec
	if d := tpl.Deck; d != nil {
		if d.Kind != "standard52" {
			return nil, fmt.Errorf("unknown deck kind %q", d.Kind)
		}
		n := 52 + d.Jokers
		for i := 0; i < n; i++ {
			specs = append(specs, ItemSpec{ID: i + 1, Front: i, Back: d.Back, X: d.X, Y: d.Y, FaceUp: d.FaceUp})
		}
	}
	offset := len(specs)
	for _, s := range tpl.Items {
		if s.ID <= offset {
			return nil, fmt.Errorf("item id %d collides with generated deck ids 1..%d", s.ID, offset)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// Build produces the table state described by the template
func (tpl *Template) Build() (types.TableState, error) {
	specs, err := tpl.items()
	if err != nil {
		return types.TableState{}, err
	}
	t := New()
	for _, s := range specs {
		if s.ID <= 0 {
			return types.TableState{}, fmt.Errorf("item id must be positive, got %d", s.ID)
		}
		if _, dup := t.items[s.ID]; dup {
			return types.TableState{}, fmt.Errorf("duplicate item id %d", s.ID)
		}
		t.items[s.ID] = &types.Item{ID: s.ID, Front: s.Front, Back: s.Back, X: s.X, Y: s.Y, FaceUp: s.FaceUp}
		t.depth++
		t.items[s.ID].Z = t.depth
	}

	placed := make(map[int]bool)
	claim := func(ids []int) error {
		for _, id := range ids {
			if _, ok := t.items[id]; !ok {
				return fmt.Errorf("unknown item %d", id)
			}
			if placed[id] {
				return fmt.Errorf("item %d placed twice", id)
			}
			placed[id] = true
		}
		return nil
	}

	if d := tpl.Deck; d != nil {
		ids := make([]int, 0, 52+d.Jokers)
		for i := 1; i <= 52+d.Jokers; i++ {
			ids = append(ids, i)
		}
		_ = claim(ids)
		if _, _, err := t.CreateStack(ids, d.X, d.Y); err != nil {
			return types.TableState{}, err
		}
	}
	for _, s := range tpl.Stacks {
		if err := claim(s.Items); err != nil {
			return types.TableState{}, err
		}
		if _, _, err := t.CreateStack(s.Items, s.X, s.Y); err != nil {
			return types.TableState{}, fmt.Errorf("stack: %w", err)
		}
	}
	for _, zd := range tpl.Zones {
		if err := claim(zd.Items); err != nil {
			return types.TableState{}, err
		}
		zoneID, _, err := t.CreateZone(ZoneSpec{
			Bounds:     zd.Bounds,
			Label:      zd.Label,
			FaceUp:     zd.FaceUp,
			Locked:     zd.Locked,
			Visibility: zd.Visibility,
			Layout:     zd.Layout,
			Params:     zd.Params,
		})
		if err != nil {
			return types.TableState{}, fmt.Errorf("zone %q: %w", zd.Label, err)
		}
		for _, id := range zd.Items {
			if _, err := t.AddToZone(zoneID, id); err != nil {
				return types.TableState{}, err
			}
		}
	}
	return t.Export(), nil
}

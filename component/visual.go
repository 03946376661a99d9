package component

import (
	"fmt"
)

type Drawer interface {
	Draw() error
}

// ImageDrawer is a Drawer whose picture can be swapped between trials.
type ImageDrawer interface {
	Drawer
	SetImage(path string) error
}

// Visual is a named drawable that is painted on every flip while auto-draw is on.
type Visual struct {
	Base
	Name     string
	drawer   Drawer
	list     *DrawList
	autoDraw bool
}

type DrawList struct {
	items []*Visual
}

func NewDrawList() *DrawList {
	return &DrawList{}
}

func (l *DrawList) NewVisual(name string, d Drawer) *Visual {
	return &Visual{Name: name, drawer: d, list: l}
}

func (v *Visual) AutoDraw() bool { return v.autoDraw }

func (v *Visual) SetAutoDraw(on bool) {
	if on == v.autoDraw {
		if on {
			v.SetStatus(Started)
		}
		return
	}
	v.autoDraw = on
	if on {
		v.list.items = append(v.list.items, v)
		v.SetStatus(Started)
		return
	}
	for i, it := range v.list.items {
		if it == v {
			v.list.items = append(v.list.items[:i], v.list.items[i+1:]...)
			break
		}
	}
	v.SetStatus(Finished)
}

func (v *Visual) SetImage(path string) error {
	d, ok := v.drawer.(ImageDrawer)
	if !ok {
		return fmt.Errorf("%s: not an image stimulus", v.Name)
	}
	return d.SetImage(path)
}

// Len reports how many visuals are currently auto-drawn.
func (l *DrawList) Len() int { return len(l.items) }

func (l *DrawList) Names() []string {
	names := make([]string, 0, len(l.items))
	for _, it := range l.items {
		names = append(names, it.Name)
	}
	return names
}

func (l *DrawList) Draw() error {
	for _, it := range l.items {
		if err := it.drawer.Draw(); err != nil {
			return fmt.Errorf("draw %s: %w", it.Name, err)
		}
	}
	return nil
}

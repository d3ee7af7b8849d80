package gloam

import (
	"image"
	"slices"
)

// Workspace supplies view stacking for an output. Workspaces form a grid; the
// current one is shown. Views on other workspaces have geometry offset by
// whole output sizes from the current one.
type Workspace interface {
	Current() image.Point
	SetCurrent(ws image.Point)
	GridSize() image.Point
	Add(v *View)
	Remove(v *View)
	// ViewsOn returns the views on ws from top to bottom, all layers
	// included.
	ViewsOn(ws image.Point) []*View
}

// WorkspaceSet is an in-memory Workspace. Views stack in insertion order
// within a layer; Raise moves a view to the top of its layer.
type WorkspaceSet struct {
	grid    image.Point
	current image.Point
	size    image.Point
	views   []*View // bottom to top
}

// NewWorkspaceSet creates a grid of cols x rows workspaces for an output of
// the given size.
func NewWorkspaceSet(cols, rows int, size image.Point) *WorkspaceSet {
	return &WorkspaceSet{
		grid: image.Pt(max(cols, 1), max(rows, 1)),
		size: size,
	}
}

// Current returns the shown workspace.
func (w *WorkspaceSet) Current() image.Point { return w.current }

// GridSize returns the number of columns and rows.
func (w *WorkspaceSet) GridSize() image.Point { return w.grid }

// SetCurrent switches workspaces. Toplevel views move by the distance
// between the old and new workspace so their geometry stays relative to the
// current one. Out-of-grid targets are ignored.
func (w *WorkspaceSet) SetCurrent(ws image.Point) {
	if !ws.In(image.Rectangle{Max: w.grid}) || ws == w.current {
		return
	}
	dx := (w.current.X - ws.X) * w.size.X
	dy := (w.current.Y - ws.Y) * w.size.Y
	for _, v := range w.views {
		if v.Role != RoleShell {
			v.geometry = v.geometry.Translate(dx, dy)
		}
	}
	w.current = ws
}

// Add places v on top of its layer. Adding a view twice is a no-op.
func (w *WorkspaceSet) Add(v *View) {
	if slices.Contains(w.views, v) {
		return
	}
	w.views = append(w.views, v)
	w.sort()
}

// Remove drops v from the set.
func (w *WorkspaceSet) Remove(v *View) {
	if i := slices.Index(w.views, v); i >= 0 {
		w.views = slices.Delete(w.views, i, i+1)
	}
}

// Raise moves v to the top of its layer.
func (w *WorkspaceSet) Raise(v *View) {
	w.Remove(v)
	w.Add(v)
}

// Views returns every view, bottom to top.
func (w *WorkspaceSet) Views() []*View {
	return slices.Clone(w.views)
}

// ViewsOn returns the views that intersect ws, top to bottom. Shell views are
// on every workspace.
func (w *WorkspaceSet) ViewsOn(ws image.Point) []*View {
	box := w.box(ws)
	var out []*View
	for i := len(w.views) - 1; i >= 0; i-- {
		v := w.views[i]
		if v.Role == RoleShell || v.BoundingBox().Overlaps(box) {
			out = append(out, v)
		}
	}
	return out
}

// box returns the area of ws in current-workspace coordinates.
func (w *WorkspaceSet) box(ws image.Point) Box {
	return Box{
		X:      (ws.X - w.current.X) * w.size.X,
		Y:      (ws.Y - w.current.Y) * w.size.Y,
		Width:  w.size.X,
		Height: w.size.Y,
	}
}

func (w *WorkspaceSet) sort() {
	slices.SortStableFunc(w.views, func(a, b *View) int {
		return a.Layer.rank() - b.Layer.rank()
	})
}

package gloam

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Role describes how a view takes part in workspace layout.
type Role uint8

const (
	RoleToplevel Role = iota // regular window, moves with its workspace
	RoleShell                // panel or background, fixed to the output
)

// Layer orders views vertically. The zero value is the regular window
// layer.
type Layer uint8

const (
	LayerWorkspace Layer = iota
	LayerBackground
	LayerBottom
	LayerTop
)

// rank returns the stacking position of the layer, bottom first.
func (l Layer) rank() int {
	switch l {
	case LayerBackground:
		return 0
	case LayerBottom:
		return 1
	case LayerWorkspace:
		return 2
	default:
		return 3
	}
}

// ClientID identifies the client that owns a view.
type ClientID uint64

// Surface supplies a view's pixels. Texture may return nil once the client
// has released its buffer.
type Surface interface {
	Texture() *ebiten.Image
}

// FrameNotifier is implemented by surfaces that want a callback after every
// frame in which they were visible.
type FrameNotifier interface {
	FrameDone(at time.Time)
}

// View is a client window as seen by the render core. Its geometry is in
// output coordinates relative to the current workspace.
type View struct {
	Title  string
	Role   Role
	Layer  Layer
	Client ClientID
	// MinimizeHint is where the view goes when minimized, usually a taskbar
	// entry. Empty when unknown.
	MinimizeHint Box

	// Damaged fires with the transformed damage whenever the view is damaged.
	Damaged Signal[Region]

	geometry  Box
	surface   Surface
	output    *Output
	mapped    bool
	minimized bool
	keep      int

	chain        TransformerChain
	snapshot     Framebuffer
	cachedDamage Region
}

// NewView creates an unmapped view covering geometry.
func NewView(surface Surface, geometry Box) *View {
	v := &View{surface: surface, geometry: geometry}
	v.chain.view = v
	return v
}

// Geometry returns the untransformed geometry.
func (v *View) Geometry() Box { return v.geometry }

// SetGeometry moves or resizes the view and damages both areas.
func (v *View) SetGeometry(b Box) {
	if b == v.geometry {
		return
	}
	v.DamageWhole()
	v.geometry = b
	v.DamageWhole()
}

// Output returns the output the view is on, or nil.
func (v *View) Output() *Output { return v.output }

// Surface returns the pixel source.
func (v *View) Surface() Surface { return v.surface }

// Mapped reports whether the client has mapped the view.
func (v *View) Mapped() bool { return v.mapped }

// Minimized reports whether the view is minimized.
func (v *View) Minimized() bool { return v.minimized }

// Visible reports whether the view should be drawn. Plugins keep unmapped or
// minimized views visible while they animate them.
func (v *View) Visible() bool {
	return (v.mapped && !v.minimized) || v.keep > 0
}

// Keep holds the view alive and visible after unmap.
func (v *View) Keep() { v.keep++ }

// Unkeep drops a hold taken with Keep. The last drop on an unmapped view
// destroys it.
func (v *View) Unkeep() {
	if !debugAssert(v.logger(), v.keep > 0, "Unkeep without Keep on %q", v.Title) {
		return
	}
	v.keep--
	if v.keep > 0 {
		return
	}
	v.DamageWhole()
	if !v.mapped && v.output != nil {
		v.output.destroyView(v)
	}
}

// KeepCount returns the number of holds.
func (v *View) KeepCount() int { return v.keep }

// Transformers returns the view's transformer chain.
func (v *View) Transformers() *TransformerChain { return &v.chain }

// AddTransformer adds t to the chain. See TransformerChain.Add.
func (v *View) AddTransformer(t Transformer, z int, name string) error {
	return v.chain.Add(t, z, name)
}

// RemTransformer removes the named transformer. See TransformerChain.Remove.
func (v *View) RemTransformer(name string) bool {
	return v.chain.Remove(name)
}

// HasTransformer reports whether any transformer is attached.
func (v *View) HasTransformer() bool { return v.chain.Len() > 0 }

// BoundingBox returns the geometry after every transformer.
func (v *View) BoundingBox() Box {
	return v.chain.boundingBox(v.geometry, v.geometry)
}

// TransformPoint maps a point through every transformer that supports it.
func (v *View) TransformPoint(p PointF) PointF {
	return v.chain.transformPoint(v.geometry, p)
}

// UntransformPoint maps an output point back into untransformed view space.
func (v *View) UntransformPoint(p PointF) PointF {
	return v.chain.untransformPoint(v.geometry, p)
}

// Damage damages the whole view.
func (v *View) Damage() { v.DamageWhole() }

// DamageWhole damages the view's untransformed geometry.
func (v *View) DamageWhole() { v.DamageBox(v.geometry) }

// DamageBox damages part of the view. b is in output coordinates.
func (v *View) DamageBox(b Box) { v.DamageRegion(NewRegion(b)) }

// DamageRegion records damage for the snapshot, maps it through the
// transformers and forwards it to the output.
func (v *View) DamageRegion(r Region) {
	if r.IsEmpty() {
		return
	}
	v.cachedDamage.Union(r)

	d := r.Clone()
	v.chain.transformDamage(v.geometry, &d)
	if v.output != nil {
		v.output.DamageRegion(d)
	}
	v.Damaged.Emit(d)
}

// TakeSnapshot copies the surface into the view's offscreen buffer so the
// view can still be drawn after the client unmaps it. Only the area damaged
// since the last snapshot is copied.
func (v *View) TakeSnapshot() error {
	if v.output == nil {
		return ErrNoOutput
	}
	if v.cachedDamage.IsEmpty() && v.snapshot.Valid() {
		return nil
	}
	var tex *ebiten.Image
	if v.surface != nil {
		tex = v.surface.Texture()
	}
	if tex == nil {
		return nil
	}

	r := v.output.renderer
	return r.Run(func() error {
		b := tex.Bounds()
		created, err := v.snapshot.Allocate(r, b.Dx(), b.Dy())
		if err != nil {
			return fmt.Errorf("snapshot %q: %w", v.Title, err)
		}
		v.snapshot.Geometry = v.geometry
		v.snapshot.Scale = float64(b.Dx()) / float64(max(v.geometry.Width, 1))

		damage := v.cachedDamage
		if created {
			damage = NewRegion(v.geometry)
		}
		damage.IntersectBox(v.geometry)
		target := v.snapshot.Bind()
		target.ClearRegion(damage, ColorTransparent)
		DrawTexture(target, tex, v.geometry, damage, ebiten.ColorScale{})
		v.cachedDamage.Clear()
		return nil
	})
}

// RenderTransformed draws the view through its transformer chain into
// target, limited to damage. It reports false when there was nothing to
// draw. Unmapped views are drawn from their snapshot.
func (v *View) RenderTransformed(target RenderTarget, damage Region) (bool, error) {
	if v.output == nil {
		return false, ErrNoOutput
	}
	var src *ebiten.Image
	if v.mapped && v.surface != nil {
		src = v.surface.Texture()
	}
	if src == nil && v.snapshot.Valid() {
		src = v.snapshot.Texture()
	}
	if src == nil {
		return false, nil
	}
	if err := v.chain.render(v.output.renderer, v.geometry, src, v.geometry, damage, target); err != nil {
		return false, err
	}
	return true, nil
}

func (v *View) frameDone(at time.Time) {
	if !v.mapped {
		return
	}
	if fn, ok := v.surface.(FrameNotifier); ok {
		fn.FrameDone(at)
	}
}

// release frees the chain buffers and the snapshot. Called inside a render
// scope when the view is destroyed.
func (v *View) release(r *Renderer) {
	v.chain.releaseAll(r)
	v.snapshot.Release()
	v.cachedDamage.Clear()
}

func (v *View) logger() *slog.Logger {
	if v.output != nil {
		return v.output.log
	}
	return nil
}

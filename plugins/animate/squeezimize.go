package animate

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/gloam"
)

const squeezeName = "animation-squeezimize"

// squeezimize draws the view as horizontal strips that narrow toward the
// minimize target, then slides them into it. Progress 0 is the untouched
// view and 1 is fully inside the target.
type squeezimize struct {
	output     *gloam.Output
	hint       gloam.Box
	d          *gloam.Duration
	lineHeight int
	pre        gloam.EffectHook
}

// BoundingBox is the whole output: strips may land anywhere on it.
func (s *squeezimize) BoundingBox(view, region gloam.Box) gloam.Box {
	return s.output.Box()
}

func (s *squeezimize) TransformDamage(view gloam.Box, damage *gloam.Region) {
	damage.UnionBox(s.output.Box())
}

func (s *squeezimize) Render(src *ebiten.Image, srcBox gloam.Box, damage gloam.Region, target gloam.RenderTarget) {
	out := s.output.Box()
	hint := s.hint
	progress := s.d.Progress()

	upward := srcBox.Y > hint.Y || (srcBox.Y < 0 && hint.Y < out.Height/2)
	var maxHeight int
	var travel float64
	if upward {
		maxHeight = hint.Y + hint.Height + srcBox.Y + srcBox.Height
		travel = float64(hint.Bottom() - srcBox.Bottom())
	} else {
		maxHeight = hint.Y + srcBox.Y
		travel = float64(hint.Y - srcBox.Y)
	}
	lineHeight := min(maxHeight, s.lineHeight)
	if lineHeight < 1 {
		return
	}
	dy := (clamp(progress, 0.5, 1) - 0.5) * 2 * travel
	slide := clamp(progress, 0, 0.5) * 2
	narrow := float64(srcBox.Width - hint.Width)

	b := src.Bounds()
	for i := 0; i < maxHeight; i += lineHeight {
		var direction float64
		if upward {
			direction = float64(maxHeight-i) / float64(maxHeight)
		} else {
			direction = float64(i) / float64(maxHeight)
		}
		s1 := 1 / (1 + math.Pow(2.718, -(direction*6-3))) * progress * 0.5

		x1 := float64(srcBox.X) + s1*narrow
		x1 += slide * direction * (float64(hint.X) - x1)
		x2 := float64(srcBox.Right()) - s1*narrow
		x2 += slide * direction * (float64(hint.Right()) - x2)
		y1 := float64(srcBox.Y) + dy
		y2 := float64(srcBox.Bottom()) + dy
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		d := damage.Clone()
		d.IntersectBox(gloam.Box{X: out.X, Y: i, Width: out.Width, Height: lineHeight})
		if d.IsEmpty() {
			continue
		}
		var g ebiten.GeoM
		g.Scale((x2-x1)/float64(b.Dx()), (y2-y1)/float64(b.Dy()))
		g.Translate(x1, y1)
		gloam.DrawTextureGeoM(target, src, g, d, ebiten.ColorScale{})
	}
}

// squeezeAnimation plays squeezimize for minimize and restore.
type squeezeAnimation struct {
	lineHeight int
	view       *gloam.View
	tr         *squeezimize
}

func (a *squeezeAnimation) init(v *gloam.View, d *gloam.Duration, hiding bool) error {
	o := v.Output()
	if o == nil {
		return gloam.ErrNoOutput
	}
	a.view = v
	v.RemTransformer(squeezeName)

	a.tr = &squeezimize{output: o, hint: v.MinimizeHint, d: d, lineHeight: a.lineHeight}
	if err := v.AddTransformer(a.tr, gloam.ZOrder2D, squeezeName); err != nil {
		return err
	}
	a.tr.pre = func() {
		v.Damage()
		o.DamageWhole()
	}
	o.AddEffect(&a.tr.pre, gloam.PhasePre)

	// Minimizing runs forward, restoring runs backward from the target.
	if !hiding {
		d.Reverse()
	}
	d.Start()
	return nil
}

func (a *squeezeAnimation) step() bool {
	return a.tr.d.Running()
}

func (a *squeezeAnimation) reverse() {
	a.tr.d.Reverse()
}

func (a *squeezeAnimation) fini() {
	a.tr.output.RemEffect(&a.tr.pre, gloam.PhasePre)
	a.view.RemTransformer(squeezeName)
}

package gloam

import (
	"github.com/chewxy/math32"
	"github.com/hajimehoshi/ebiten/v2"
)

// View2D is a 2D transformer: scale about the view center, then rotate, then
// translate. Alpha multiplies the view's opacity. The zero value is not
// usable; create one with NewView2D.
type View2D struct {
	view *View

	Angle          float32 // radians, clockwise on screen
	ScaleX, ScaleY float32
	TranslateX     float32
	TranslateY     float32
	Alpha          float32
}

// NewView2D returns an identity transform for v.
func NewView2D(v *View) *View2D {
	return &View2D{view: v, ScaleX: 1, ScaleY: 1, Alpha: 1}
}

// Identity reports whether the transform leaves the view unchanged.
func (t *View2D) Identity() bool {
	return t.Angle == 0 && t.ScaleX == 1 && t.ScaleY == 1 &&
		t.TranslateX == 0 && t.TranslateY == 0 && t.Alpha == 1
}

// TransformPoint maps a point in untransformed view space to output space.
func (t *View2D) TransformPoint(view Box, p PointF) PointF {
	c := view.Center()
	x := float32(p.X-c.X) * t.ScaleX
	y := float32(p.Y-c.Y) * t.ScaleY
	sin, cos := math32.Sincos(t.Angle)
	rx := x*cos - y*sin
	ry := x*sin + y*cos
	return PointF{
		X: float64(rx+t.TranslateX) + c.X,
		Y: float64(ry+t.TranslateY) + c.Y,
	}
}

// UntransformPoint is the inverse of TransformPoint. A zero scale maps every
// point to the view center.
func (t *View2D) UntransformPoint(view Box, p PointF) PointF {
	c := view.Center()
	x := float32(p.X-c.X) - t.TranslateX
	y := float32(p.Y-c.Y) - t.TranslateY
	sin, cos := math32.Sincos(-t.Angle)
	rx := x*cos - y*sin
	ry := x*sin + y*cos
	if t.ScaleX == 0 || t.ScaleY == 0 {
		return c
	}
	return PointF{
		X: float64(rx/t.ScaleX) + c.X,
		Y: float64(ry/t.ScaleY) + c.Y,
	}
}

// BoundingBox transforms the corners of region and returns their integer
// bounds.
func (t *View2D) BoundingBox(view, region Box) Box {
	x1, y1 := float64(region.X), float64(region.Y)
	x2, y2 := float64(region.Right()), float64(region.Bottom())
	return boundingBoxOf(
		t.TransformPoint(view, PointF{x1, y1}),
		t.TransformPoint(view, PointF{x2, y1}),
		t.TransformPoint(view, PointF{x1, y2}),
		t.TransformPoint(view, PointF{x2, y2}),
	)
}

// geoM maps source pixels of an image covering srcBox to output space.
func (t *View2D) geoM(view Box, src *ebiten.Image, srcBox Box) ebiten.GeoM {
	b := src.Bounds()
	c := view.Center()
	var g ebiten.GeoM
	g.Scale(float64(srcBox.Width)/float64(b.Dx()), float64(srcBox.Height)/float64(b.Dy()))
	g.Translate(float64(srcBox.X)-c.X, float64(srcBox.Y)-c.Y)
	g.Scale(float64(t.ScaleX), float64(t.ScaleY))
	g.Rotate(float64(t.Angle))
	g.Translate(c.X+float64(t.TranslateX), c.Y+float64(t.TranslateY))
	return g
}

// Render draws src with the transform applied about the view's center.
func (t *View2D) Render(src *ebiten.Image, srcBox Box, damage Region, target RenderTarget) {
	if t.Alpha <= 0 {
		return
	}
	var cs ebiten.ColorScale
	cs.ScaleAlpha(t.Alpha)
	DrawTextureGeoM(target, src, t.geoM(t.view.Geometry(), src, srcBox), damage, cs)
}

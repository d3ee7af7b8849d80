package blur

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/gloam"
)

// blendShaderSrc mixes the view (image 0) over the blurred background
// (image 1). The background only shows through where the view has some
// coverage; fully transparent pixels stay transparent.
const blendShaderSrc = `//kage:unit pixels

package main

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	wp := imageSrc0At(src)
	bp := imageSrc1At(src)
	c := clamp(4.0*wp.a, 0.0, 1.0) * bp
	return wp + (1.0-wp.a)*c
}
`

var blendShader *ebiten.Shader

func ensureBlendShader() (*ebiten.Shader, error) {
	if blendShader != nil {
		return blendShader, nil
	}
	s, err := ebiten.NewShader([]byte(blendShaderSrc))
	if err != nil {
		return nil, err
	}
	blendShader = s
	return s, nil
}

// transformer draws a view over a blurred copy of the pixels behind it. It
// sits at ZOrderBlur so that it always draws straight into the workspace.
type transformer struct {
	p *Plugin
}

func (t *transformer) BoundingBox(_, region gloam.Box) gloam.Box { return region }

func (t *transformer) TransformPoint(_ gloam.Box, p gloam.PointF) gloam.PointF   { return p }
func (t *transformer) UntransformPoint(_ gloam.Box, p gloam.PointF) gloam.PointF { return p }

func (t *transformer) Render(src *ebiten.Image, srcBox gloam.Box, damage gloam.Region, target gloam.RenderTarget) {
	clip := damage.Clone()
	clip.IntersectBox(srcBox)
	if clip.IsEmpty() {
		return
	}
	if err := t.render(src, srcBox, clip, target); err != nil {
		t.p.log.Warn("blur failed", "error", err)
		gloam.DrawTexture(target, src, srcBox, clip, ebiten.ColorScale{})
	}
}

func (t *transformer) render(src *ebiten.Image, srcBox gloam.Box, clip gloam.Region, target gloam.RenderTarget) error {
	r := t.p.o.Renderer()
	ext := clip.Extents()
	behind := target.Scissor(ext)
	if behind == nil || t.p.algorithm == nil {
		gloam.DrawTexture(target, src, srcBox, clip, ebiten.ColorScale{})
		return nil
	}
	shader, err := ensureBlendShader()
	if err != nil {
		return err
	}

	blurred, release, err := gloam.ApplyFilters(r, []gloam.Filter{t.p.algorithm}, behind)
	if err != nil {
		return err
	}
	defer release()

	// Lay the blurred pixels out in view texture space so both shader
	// inputs line up.
	sb := src.Bounds()
	bgImg, err := r.AcquireTexture(sb.Dx(), sb.Dy())
	if err != nil {
		return err
	}
	defer r.ReleaseTexture(bgImg)
	bg := bgImg.SubImage(image.Rect(0, 0, sb.Dx(), sb.Dy())).(*ebiten.Image)
	bg.Clear()

	sx := float64(sb.Dx()) / float64(srcBox.Width)
	sy := float64(sb.Dy()) / float64(srcBox.Height)
	bb := blurred.Bounds()
	var op ebiten.DrawImageOptions
	op.GeoM.Scale(float64(ext.Width)*sx/float64(bb.Dx()), float64(ext.Height)*sy/float64(bb.Dy()))
	op.GeoM.Translate(float64(ext.X-srcBox.X)*sx, float64(ext.Y-srcBox.Y)*sy)
	op.Filter = ebiten.FilterLinear
	bg.DrawImage(blurred, &op)

	var geo ebiten.GeoM
	geo.Scale(1/sx, 1/sy)
	geo.Translate(float64(srcBox.X), float64(srcBox.Y))
	geo.Concat(target.GeoM())

	var sop ebiten.DrawRectShaderOptions
	sop.GeoM = geo
	sop.Images[0] = src
	sop.Images[1] = bg
	for b := range clip.All() {
		if sub := target.Scissor(b); sub != nil {
			sub.DrawRectShader(sb.Dx(), sb.Dy(), shader, &sop)
		}
	}
	return nil
}

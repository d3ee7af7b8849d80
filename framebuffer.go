package gloam

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
)

// Framebuffer is an offscreen GPU image owned by exactly one holder: a
// transformer chain entry, a post hook, a workspace stream, or an output.
// It is allocated lazily and reallocated when the requested size changes.
// Never copy a Framebuffer by value; use Take to move ownership.
type Framebuffer struct {
	// Geometry is the logical area the buffer covers.
	Geometry Box
	// Scale is the number of buffer pixels per logical unit. Zero means 1.
	Scale float64

	image         *ebiten.Image
	width, height int
}

// Allocate ensures the buffer holds a w x h image. It reports true when a new
// image was created (first use or size change), in which case the previous
// contents are gone. It must be called inside a render scope.
func (fb *Framebuffer) Allocate(r *Renderer, w, h int) (bool, error) {
	if !debugAssert(r.log, r.Active(), "Framebuffer.Allocate outside a render scope") {
		return false, fmt.Errorf("%w: no render scope", ErrAllocation)
	}
	if fb.image != nil && fb.width == w && fb.height == h {
		return false, nil
	}
	img, err := r.allocate(w, h)
	if err != nil {
		return false, err
	}
	if fb.image != nil {
		fb.image.Deallocate()
	}
	fb.image = img
	fb.width, fb.height = w, h
	return true, nil
}

// Valid reports whether the buffer currently holds an image.
func (fb *Framebuffer) Valid() bool {
	return fb.image != nil
}

// Width returns the allocated width in pixels.
func (fb *Framebuffer) Width() int { return fb.width }

// Height returns the allocated height in pixels.
func (fb *Framebuffer) Height() int { return fb.height }

// Texture returns the underlying image for sampling, or nil when unallocated.
func (fb *Framebuffer) Texture() *ebiten.Image {
	return fb.image
}

// Bind returns a render target drawing into this buffer. Binding an
// unallocated buffer is a usage error and yields an invalid target.
func (fb *Framebuffer) Bind() RenderTarget {
	if !debugAssert(nil, fb.image != nil, "Bind on an unallocated framebuffer") {
		return RenderTarget{}
	}
	return RenderTarget{Image: fb.image, Geometry: fb.Geometry, Scale: fb.Scale}
}

// Scissor returns the part of the buffer under the logical box, or nil when
// the box misses the buffer.
func (fb *Framebuffer) Scissor(box Box) *ebiten.Image {
	return fb.Bind().Scissor(box)
}

// Clear fills the whole buffer with c.
func (fb *Framebuffer) Clear(c Color) {
	if !debugAssert(nil, fb.image != nil, "Clear on an unallocated framebuffer") {
		return
	}
	fillImage(fb.image, c)
}

// Release frees the GPU image. The buffer can be allocated again afterwards.
func (fb *Framebuffer) Release() {
	if fb.image != nil {
		fb.image.Deallocate()
	}
	fb.Reset()
}

// Reset forgets the image without freeing it. Used after ownership moved.
func (fb *Framebuffer) Reset() {
	fb.image = nil
	fb.width, fb.height = 0, 0
}

// Take moves the buffer out of fb and returns it; fb is left empty.
func (fb *Framebuffer) Take() Framebuffer {
	out := Framebuffer{
		Geometry: fb.Geometry,
		Scale:    fb.Scale,
		image:    fb.image,
		width:    fb.width,
		height:   fb.height,
	}
	fb.Reset()
	return out
}

// --- RenderTarget ---

// RenderTarget is a non-owning view of an image used as a draw destination.
// Geometry is the logical area the image covers and Scale converts logical
// units to pixels, so callers can work in output coordinates throughout.
type RenderTarget struct {
	Image    *ebiten.Image
	Geometry Box
	Scale    float64
}

// TargetForImage wraps an image covering geometry at scale 1.
func TargetForImage(img *ebiten.Image, geometry Box) RenderTarget {
	return RenderTarget{Image: img, Geometry: geometry, Scale: 1}
}

// Valid reports whether the target has an image.
func (t RenderTarget) Valid() bool {
	return t.Image != nil
}

func (t RenderTarget) scale() float64 {
	if t.Scale == 0 {
		return 1
	}
	return t.Scale
}

// FramebufferBox converts a logical box into image pixel coordinates.
func (t RenderTarget) FramebufferBox(b Box) Box {
	return b.Translate(-t.Geometry.X, -t.Geometry.Y).Scale(t.scale())
}

// GeoM returns the transform from logical coordinates to image pixels.
func (t RenderTarget) GeoM() ebiten.GeoM {
	var g ebiten.GeoM
	g.Translate(float64(-t.Geometry.X), float64(-t.Geometry.Y))
	s := t.scale()
	g.Scale(s, s)
	return g
}

// Scissor returns the sub-image under the logical box, clipped to the image,
// or nil when nothing remains. Draws into the result keep the parent's pixel
// coordinates.
func (t RenderTarget) Scissor(b Box) *ebiten.Image {
	if t.Image == nil {
		return nil
	}
	r := t.FramebufferBox(b).Rectangle().Intersect(t.Image.Bounds())
	if r.Empty() {
		return nil
	}
	return t.Image.SubImage(r).(*ebiten.Image)
}

// Translated returns the target with its logical geometry shifted.
func (t RenderTarget) Translated(dx, dy int) RenderTarget {
	t.Geometry = t.Geometry.Translate(dx, dy)
	return t
}

// Clear fills the logical box with c.
func (t RenderTarget) Clear(b Box, c Color) {
	if sub := t.Scissor(b); sub != nil {
		fillImage(sub, c)
	}
}

// ClearRegion fills every rectangle of the region with c.
func (t RenderTarget) ClearRegion(region Region, c Color) {
	for b := range region.All() {
		t.Clear(b, c)
	}
}

func fillImage(img *ebiten.Image, c Color) {
	if c.A == 0 {
		img.Clear()
		return
	}
	img.Fill(c.toRGBA())
}

// FillRect blends c over the logical box of the target.
func FillRect(t RenderTarget, b Box, c Color) {
	sub := t.Scissor(b)
	if sub == nil {
		return
	}
	r := sub.Bounds()
	var op ebiten.DrawImageOptions
	op.GeoM.Scale(float64(r.Dx()), float64(r.Dy()))
	op.GeoM.Translate(float64(r.Min.X), float64(r.Min.Y))
	op.ColorScale = c.ColorScale()
	sub.DrawImage(WhitePixel, &op)
}

// DrawTexture draws src stretched over the logical box, limited to the
// rectangles of damage.
func DrawTexture(target RenderTarget, src *ebiten.Image, box Box, damage Region, cs ebiten.ColorScale) {
	if src == nil {
		return
	}
	b := src.Bounds()
	var geo ebiten.GeoM
	geo.Scale(float64(box.Width)/float64(b.Dx()), float64(box.Height)/float64(b.Dy()))
	geo.Translate(float64(box.X), float64(box.Y))
	DrawTextureGeoM(target, src, geo, damage, cs)
}

// DrawTextureGeoM draws src with geo mapping source pixels to logical
// coordinates, limited to the rectangles of damage.
func DrawTextureGeoM(target RenderTarget, src *ebiten.Image, geo ebiten.GeoM, damage Region, cs ebiten.ColorScale) {
	if src == nil || !target.Valid() {
		return
	}
	geo.Concat(target.GeoM())
	for b := range damage.All() {
		sub := target.Scissor(b)
		if sub == nil {
			continue
		}
		var op ebiten.DrawImageOptions
		op.GeoM = geo
		op.ColorScale = cs
		op.Filter = ebiten.FilterLinear
		sub.DrawImage(src, &op)
	}
}

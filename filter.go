package gloam

import (
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Filter is a full-image effect run by transformers and post hooks.
type Filter interface {
	// Apply renders src into dst with the filter effect. Both images have
	// the same size.
	Apply(src, dst *ebiten.Image)
	// Padding returns how far, in pixels, the effect reads outside a pixel.
	// Damage must grow by this much for the result to stay correct.
	Padding() int
}

// --- Kage shader sources ---
// All shaders use //kage:unit pixels. Ebitengine uses premultiplied alpha;
// the color matrix un-premultiplies before processing.

const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	// 4x5 matrix, row-major, offsets in elements 4, 9, 14, 19.
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

// Dual Kawase downsample: center weighted 4, diagonals 1.
const kawaseDownShaderSrc = `//kage:unit pixels
package main

var Offset float

func sample(p vec2) vec4 {
	o := imageSrc0Origin()
	s := imageSrc0Size()
	return imageSrc0UnsafeAt(clamp(p, o+0.5, o+s-0.5))
}

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	h := vec2(Offset, Offset)
	sum := sample(src) * 4
	sum += sample(src - h)
	sum += sample(src + h)
	sum += sample(src + vec2(h.x, -h.y))
	sum += sample(src - vec2(h.x, -h.y))
	return sum / 8
}
`

// Dual Kawase upsample: edge taps weighted 1, diagonals 2.
const kawaseUpShaderSrc = `//kage:unit pixels
package main

var Offset float

func sample(p vec2) vec4 {
	o := imageSrc0Origin()
	s := imageSrc0Size()
	return imageSrc0UnsafeAt(clamp(p, o+0.5, o+s-0.5))
}

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	h := vec2(Offset, Offset)
	sum := sample(src + vec2(-h.x*2, 0))
	sum += sample(src + vec2(-h.x, h.y)) * 2
	sum += sample(src + vec2(0, h.y*2))
	sum += sample(src + vec2(h.x, h.y)) * 2
	sum += sample(src + vec2(h.x*2, 0))
	sum += sample(src + vec2(h.x, -h.y)) * 2
	sum += sample(src + vec2(0, -h.y*2))
	sum += sample(src + vec2(-h.x, -h.y)) * 2
	return sum / 12
}
`

// --- Lazy shader compilation (no sync.Once, shaders are built on the loop goroutine) ---

var (
	colorMatrixShader *ebiten.Shader
	kawaseDownShader  *ebiten.Shader
	kawaseUpShader    *ebiten.Shader
)

func compileShader(cached **ebiten.Shader, name, src string) *ebiten.Shader {
	if *cached == nil {
		s, err := ebiten.NewShader([]byte(src))
		if err != nil {
			panic("gloam: failed to compile " + name + " shader: " + err.Error())
		}
		*cached = s
	}
	return *cached
}

func ensureColorMatrixShader() *ebiten.Shader {
	return compileShader(&colorMatrixShader, "color matrix", colorMatrixShaderSrc)
}

func ensureKawaseShaders() (down, up *ebiten.Shader) {
	down = compileShader(&kawaseDownShader, "kawase down", kawaseDownShaderSrc)
	up = compileShader(&kawaseUpShader, "kawase up", kawaseUpShaderSrc)
	return down, up
}

// --- ColorMatrixFilter ---

// ColorMatrixFilter applies a 4x5 color matrix transformation using a Kage shader.
// The matrix is stored in row-major order: [R_r, R_g, R_b, R_a, R_offset, G_r, ...].
type ColorMatrixFilter struct {
	Matrix      [20]float64
	uniforms    map[string]any
	matrixF32   [20]float32 // persistent buffer to avoid per-frame slice escape
	matrixSlice []float32   // persistent slice header pointing into matrixF32
	shaderOp    ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a color matrix filter initialized to the identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{
		uniforms: make(map[string]any, 1),
	}
	f.matrixSlice = f.matrixF32[:]
	f.uniforms["Matrix"] = f.matrixSlice
	f.SetIdentity()
	return f
}

// SetIdentity resets the matrix so the filter passes colors through.
func (f *ColorMatrixFilter) SetIdentity() {
	f.Matrix = [20]float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// SetInvert sets the matrix to invert the color channels and keep alpha.
func (f *ColorMatrixFilter) SetInvert() {
	f.Matrix = [20]float64{
		-1, 0, 0, 0, 1,
		0, -1, 0, 0, 1,
		0, 0, -1, 0, 1,
		0, 0, 0, 1, 0,
	}
}

// SetBrightness sets the matrix to adjust brightness by the given offset [-1, 1].
func (f *ColorMatrixFilter) SetBrightness(b float64) {
	f.Matrix = [20]float64{
		1, 0, 0, 0, b,
		0, 1, 0, 0, b,
		0, 0, 1, 0, b,
		0, 0, 0, 1, 0,
	}
}

// SetContrast sets the matrix to adjust contrast. c=1 is normal, 0=gray, >1 is higher.
func (f *ColorMatrixFilter) SetContrast(c float64) {
	t := (1.0 - c) / 2.0
	f.Matrix = [20]float64{
		c, 0, 0, 0, t,
		0, c, 0, 0, t,
		0, 0, c, 0, t,
		0, 0, 0, 1, 0,
	}
}

// SetSaturation sets the matrix to adjust saturation. s=1 is normal, 0=grayscale.
func (f *ColorMatrixFilter) SetSaturation(s float64) {
	sr := (1 - s) * 0.299
	sg := (1 - s) * 0.587
	sb := (1 - s) * 0.114
	f.Matrix = [20]float64{
		sr + s, sg, sb, 0, 0,
		sr, sg + s, sb, 0, 0,
		sr, sg, sb + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Apply renders the color matrix transformation from src into dst.
func (f *ColorMatrixFilter) Apply(src, dst *ebiten.Image) {
	shader := ensureColorMatrixShader()
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	bounds := src.Bounds()
	f.shaderOp.GeoM.Reset()
	f.shaderOp.GeoM.Translate(float64(dst.Bounds().Min.X), float64(dst.Bounds().Min.Y))
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), shader, &f.shaderOp)
}

// Padding returns 0; color matrix transforms read one pixel only.
func (f *ColorMatrixFilter) Padding() int { return 0 }

// --- KawaseBlur ---

// KawaseBlur is a dual Kawase blur. The source is first scaled down by
// Degrade, then halved Iterations times with the down shader and brought
// back up with the up shader. Offset is the sample distance of each pass.
type KawaseBlur struct {
	Offset     float64
	Iterations int
	Degrade    int

	temps    []*ebiten.Image
	uniforms map[string]any
	shaderOp ebiten.DrawRectShaderOptions
	imgOp    ebiten.DrawImageOptions
}

// NewKawaseBlur creates a Kawase blur. Iterations and degrade below 1 are
// raised to 1.
func NewKawaseBlur(offset float64, iterations, degrade int) *KawaseBlur {
	return &KawaseBlur{
		Offset:     offset,
		Iterations: max(iterations, 1),
		Degrade:    max(degrade, 1),
		uniforms:   make(map[string]any, 1),
	}
}

// Padding returns 2^(iterations+1) * offset * degrade.
func (f *KawaseBlur) Padding() int {
	return int(math.Ceil(math.Pow(2, float64(f.Iterations+1)) * f.Offset * float64(max(f.Degrade, 1))))
}

// scratch returns temp image i sized w x h, reusing it when the size matches.
func (f *KawaseBlur) scratch(i, w, h int) *ebiten.Image {
	for len(f.temps) <= i {
		f.temps = append(f.temps, nil)
	}
	img := f.temps[i]
	if img != nil && img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		img.Clear()
		return img
	}
	if img != nil {
		img.Deallocate()
	}
	img = ebiten.NewImage(w, h)
	f.temps[i] = img
	return img
}

func (f *KawaseBlur) pass(shader *ebiten.Shader, src, dst *ebiten.Image) {
	sb := src.Bounds()
	db := dst.Bounds()
	f.uniforms["Offset"] = float32(f.Offset / 2)
	f.shaderOp.GeoM.Reset()
	f.shaderOp.GeoM.Scale(float64(db.Dx())/float64(sb.Dx()), float64(db.Dy())/float64(sb.Dy()))
	f.shaderOp.GeoM.Translate(float64(db.Min.X), float64(db.Min.Y))
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(sb.Dx(), sb.Dy(), shader, &f.shaderOp)
}

// scaleInto draws src stretched over dst with linear filtering.
func (f *KawaseBlur) scaleInto(src, dst *ebiten.Image) {
	sb := src.Bounds()
	db := dst.Bounds()
	op := &f.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Scale(float64(db.Dx())/float64(sb.Dx()), float64(db.Dy())/float64(sb.Dy()))
	op.GeoM.Translate(float64(db.Min.X), float64(db.Min.Y))
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(src, op)
}

// Apply blurs src into dst.
func (f *KawaseBlur) Apply(src, dst *ebiten.Image) {
	if f.uniforms == nil {
		f.uniforms = make(map[string]any, 1)
	}
	down, up := ensureKawaseShaders()
	iters := max(f.Iterations, 1)
	degrade := max(f.Degrade, 1)

	b := src.Bounds()
	w, h := max(b.Dx()/degrade, 1), max(b.Dy()/degrade, 1)
	current := src
	if degrade > 1 {
		base := f.scratch(0, w, h)
		f.scaleInto(src, base)
		current = base
	}

	// Level i+1 holds the result of down pass i.
	sizes := []image.Point{{w, h}}
	for i := 0; i < iters; i++ {
		w, h = max(w/2, 1), max(h/2, 1)
		sizes = append(sizes, image.Pt(w, h))
		next := f.scratch(i+1, w, h)
		f.pass(down, current, next)
		current = next
	}
	for i := iters - 1; i >= 1; i-- {
		next := f.scratch(iters+i, sizes[i].X, sizes[i].Y)
		f.pass(up, current, next)
		current = next
	}
	f.pass(up, current, dst)
}

// Dispose frees the scratch images.
func (f *KawaseBlur) Dispose() {
	for _, img := range f.temps {
		if img != nil {
			img.Deallocate()
		}
	}
	f.temps = nil
}

// --- BoxBlur ---

// BoxBlur approximates a box blur with iterative linear downscale and
// upscale passes. No shader is needed; bilinear filtering does the work.
type BoxBlur struct {
	Radius int
	temps  []*ebiten.Image
	imgOp  ebiten.DrawImageOptions
}

// NewBoxBlur creates a box blur with the given radius in pixels.
func NewBoxBlur(radius int) *BoxBlur {
	return &BoxBlur{Radius: max(radius, 0)}
}

// Apply renders the blur from src into dst.
func (f *BoxBlur) Apply(src, dst *ebiten.Image) {
	op := &f.imgOp
	if f.Radius <= 0 {
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.GeoM.Translate(float64(dst.Bounds().Min.X), float64(dst.Bounds().Min.Y))
		op.Filter = ebiten.FilterNearest
		dst.DrawImage(src, op)
		return
	}

	passes := max(int(math.Ceil(math.Log2(float64(f.Radius)))), 1)
	for len(f.temps) < passes {
		f.temps = append(f.temps, nil)
	}
	for i := passes; i < len(f.temps); i++ {
		if f.temps[i] != nil {
			f.temps[i].Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = f.temps[:passes]

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	current := src
	for i := 0; i < passes; i++ {
		w, h = max(w/2, 1), max(h/2, 1)
		if f.temps[i] == nil || f.temps[i].Bounds().Dx() != w || f.temps[i].Bounds().Dy() != h {
			if f.temps[i] != nil {
				f.temps[i].Deallocate()
			}
			f.temps[i] = ebiten.NewImage(w, h)
		} else {
			f.temps[i].Clear()
		}
		f.stretch(current, f.temps[i])
		current = f.temps[i]
	}
	for i := passes - 2; i >= 0; i-- {
		f.temps[i].Clear()
		f.stretch(current, f.temps[i])
		current = f.temps[i]
	}
	f.stretch(current, dst)
}

func (f *BoxBlur) stretch(src, dst *ebiten.Image) {
	sb := src.Bounds()
	db := dst.Bounds()
	op := &f.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Scale(float64(db.Dx())/float64(sb.Dx()), float64(db.Dy())/float64(sb.Dy()))
	op.GeoM.Translate(float64(db.Min.X), float64(db.Min.Y))
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(src, op)
}

// Padding returns the blur radius.
func (f *BoxBlur) Padding() int { return f.Radius }

// --- Filter chains ---

// FilterChainPadding returns the cumulative padding of filters.
func FilterChainPadding(filters []Filter) int {
	pad := 0
	for _, f := range filters {
		pad += f.Padding()
	}
	return pad
}

// ApplyFilters runs filters over src, ping-ponging between two textures from
// the renderer's pool. It returns the image holding the result (src itself
// when filters is empty) and a release function for the scratch textures,
// to be called once the result has been drawn. Must run inside a render
// scope.
func ApplyFilters(r *Renderer, filters []Filter, src *ebiten.Image) (*ebiten.Image, func(), error) {
	if len(filters) == 0 {
		return src, func() {}, nil
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var owned []*ebiten.Image
	release := func() {
		for _, img := range owned {
			r.ReleaseTexture(img)
		}
	}

	current := src
	var scratch *ebiten.Image
	for _, f := range filters {
		if scratch == nil || scratch == src {
			img, err := r.AcquireTexture(w, h)
			if err != nil {
				release()
				return nil, nil, err
			}
			owned = append(owned, img)
			scratch = img.SubImage(image.Rect(0, 0, w, h)).(*ebiten.Image)
		} else {
			scratch.Clear()
		}
		f.Apply(current, scratch)
		current, scratch = scratch, current
	}
	return current, release, nil
}

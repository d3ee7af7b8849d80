package gloam

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// DefaultMaxTextureSize bounds framebuffer dimensions when RendererOptions
// does not set one.
const DefaultMaxTextureSize = 8192

// AllocFunc creates a GPU image of exactly w x h pixels.
type AllocFunc func(w, h int) (*ebiten.Image, error)

// RendererOptions configures a Renderer.
type RendererOptions struct {
	// MaxTextureSize rejects larger allocations with ErrAllocation.
	MaxTextureSize int
	// Alloc overrides image creation. Nil uses unmanaged ebiten images.
	Alloc AllocFunc
	// Logger receives usage warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// Renderer is the rendering context of an output. GPU work (allocation,
// clears, draws into framebuffers) is only valid between Begin and End.
// Scopes nest; Run closes the scope on every exit path.
type Renderer struct {
	depth   int
	maxSize int
	alloc   AllocFunc
	pool    texturePool
	log     *slog.Logger
}

// NewRenderer creates a renderer with the given options.
func NewRenderer(opts RendererOptions) *Renderer {
	r := &Renderer{
		maxSize: opts.MaxTextureSize,
		alloc:   opts.Alloc,
		log:     opts.Logger,
	}
	if r.maxSize <= 0 {
		r.maxSize = DefaultMaxTextureSize
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.alloc == nil {
		r.alloc = newUnmanagedImage
	}
	return r
}

// Begin opens a rendering scope.
func (r *Renderer) Begin() {
	r.depth++
}

// End closes the innermost rendering scope.
func (r *Renderer) End() {
	if !debugAssert(r.log, r.depth > 0, "Renderer.End without Begin") {
		return
	}
	r.depth--
}

// Active reports whether a rendering scope is open.
func (r *Renderer) Active() bool {
	return r.depth > 0
}

// Run calls fn inside a rendering scope. The scope is closed even if fn
// panics.
func (r *Renderer) Run(fn func() error) error {
	r.Begin()
	defer r.End()
	return fn()
}

// allocate creates an image of exactly w x h pixels through the configured
// allocator. Size limits and allocator panics become ErrAllocation.
func (r *Renderer) allocate(w, h int) (img *ebiten.Image, err error) {
	if w <= 0 || h <= 0 || w > r.maxSize || h > r.maxSize {
		return nil, fmt.Errorf("%w: %dx%d exceeds limits (max %d)", ErrAllocation, w, h, r.maxSize)
	}
	defer func() {
		if p := recover(); p != nil {
			img, err = nil, fmt.Errorf("%w: %dx%d: %v", ErrAllocation, w, h, p)
		}
	}()
	img, err = r.alloc(w, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %dx%d: %w", ErrAllocation, w, h, err)
	}
	return img, nil
}

func newUnmanagedImage(w, h int) (*ebiten.Image, error) {
	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, w, h),
		&ebiten.NewImageOptions{Unmanaged: true},
	), nil
}

// AcquireTexture returns a cleared scratch image with at least (w, h) pixels
// from the renderer's pool. Use SubImage to address the requested size and
// hand the image back with ReleaseTexture once the frame no longer needs it.
func (r *Renderer) AcquireTexture(w, h int) (*ebiten.Image, error) {
	if !debugAssert(r.log, r.Active(), "AcquireTexture outside a render scope") {
		return nil, fmt.Errorf("%w: no render scope", ErrAllocation)
	}
	return r.pool.acquire(r, w, h)
}

// ReleaseTexture returns an image obtained from AcquireTexture to the pool.
func (r *Renderer) ReleaseTexture(img *ebiten.Image) {
	r.pool.release(img)
}

// --- Texture pool ---

// texturePool keeps reusable scratch images keyed by power-of-two
// dimensions. After warmup, acquire and release do not allocate.
type texturePool struct {
	buckets map[uint64][]*ebiten.Image
}

// poolKey packs power-of-two width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

func (p *texturePool) acquire(r *Renderer, w, h int) (*ebiten.Image, error) {
	pw := nextPowerOfTwo(w)
	ph := nextPowerOfTwo(h)
	key := poolKey(pw, ph)

	if stack := p.buckets[key]; len(stack) > 0 {
		img := stack[len(stack)-1]
		p.buckets[key] = stack[:len(stack)-1]
		img.Clear()
		return img, nil
	}
	return r.allocate(pw, ph)
}

// release puts img back. It is cleared on the next acquire, not here, so a
// release followed by an immediate acquire costs nothing.
func (p *texturePool) release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
}

// len returns the number of idle images held by the pool.
func (p *texturePool) len() int {
	n := 0
	for _, stack := range p.buckets {
		n += len(stack)
	}
	return n
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}

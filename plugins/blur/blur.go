// Package blur blurs whatever is behind translucent views.
//
// Blurring reads pixels outside the damaged area, so the plugin pads every
// frame's damage by the blur radius and, per workspace stream, saves the
// padding ring before compositing and restores it afterwards. Only the
// original damage ends up changed on screen.
package blur

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/gloam"
)

// Name is the plugin name used in configuration.
const Name = "blur"

// transformerName is the name of the blur transformer on each view.
const transformerName = "blur"

// Blur modes.
const (
	ModeNormal = "normal" // every mapped view above the bottom layer
	ModeToggle = "toggle" // only views passed to Toggle
)

// Option defaults.
const (
	DefaultMethod     = "kawase"
	DefaultOffset     = 5.0
	DefaultIterations = 2
	DefaultDegrade    = 1
	DefaultMode       = ModeNormal
)

func init() {
	gloam.RegisterPlugin(Name, func() gloam.Plugin { return New() })
}

type options struct {
	method     string
	offset     float64
	iterations int
	degrade    int
	mode       string
}

func readOptions(s *gloam.Section) options {
	return options{
		method:     s.String("method", DefaultMethod),
		offset:     s.Float("offset", DefaultOffset),
		iterations: s.Int("iterations", DefaultIterations),
		degrade:    s.Int("degrade", DefaultDegrade),
		mode:       s.String("mode", DefaultMode),
	}
}

// newAlgorithm returns the filter for method.
func newAlgorithm(o options) (gloam.Filter, error) {
	switch o.method {
	case "kawase":
		return gloam.NewKawaseBlur(o.offset, o.iterations, o.degrade), nil
	case "box":
		return gloam.NewBoxBlur(int(o.offset * float64(max(o.iterations, 1)*max(o.degrade, 1)))), nil
	}
	return nil, fmt.Errorf("unknown blur method %q", o.method)
}

// Plugin is the blur plugin for one output.
type Plugin struct {
	o    *gloam.Output
	log  *slog.Logger
	opts options
	mode string

	algorithm gloam.Filter
	blurred   map[*gloam.View]*transformer

	// saved holds the pixels of padded between StreamPre and StreamPost.
	saved  gloam.Framebuffer
	padded gloam.Region

	pre        gloam.EffectHook
	disconnect []func()
}

// New creates an unloaded plugin.
func New() *Plugin {
	return &Plugin{}
}

// Init installs the damage padding hooks and, in normal mode, blurs every
// mapped view.
func (p *Plugin) Init(o *gloam.Output, cfg *gloam.Section) error {
	p.o = o
	p.log = o.Logger().With("plugin", Name)
	p.blurred = make(map[*gloam.View]*transformer)
	p.configure(readOptions(cfg))

	p.pre = p.padFrameDamage
	o.AddEffect(&p.pre, gloam.PhasePre)
	p.disconnect = append(p.disconnect,
		o.StreamPre.Connect(p.streamPre).Disconnect,
		o.StreamPost.Connect(p.streamPost).Disconnect,
		o.ViewMapped.Connect(p.viewMapped).Disconnect,
		o.ViewUnmapped.Connect(p.remove).Disconnect,
		cfg.Changed.Connect(func(s *gloam.Section) { p.configure(readOptions(s)) }).Disconnect,
	)
	return nil
}

// Fini removes every blur transformer and hook.
func (p *Plugin) Fini() {
	for _, d := range p.disconnect {
		d()
	}
	p.disconnect = nil
	p.o.RemEffect(&p.pre, gloam.PhasePre)
	p.removeAll()
	p.disposeAlgorithm()
	p.saved.Release()
	p.padded.Clear()
}

// configure applies options. An unknown method falls back to kawase.
func (p *Plugin) configure(opts options) {
	p.opts = opts
	p.disposeAlgorithm()
	alg, err := newAlgorithm(opts)
	if err != nil {
		p.log.Error("using kawase blur", "error", err)
		opts.method = DefaultMethod
		alg, _ = newAlgorithm(opts)
	}
	p.algorithm = alg

	if opts.mode != p.mode {
		if p.mode == ModeNormal {
			p.removeAll()
		}
		if opts.mode == ModeNormal {
			for _, v := range p.views() {
				if blurrable(v) {
					p.add(v)
				}
			}
		}
		p.mode = opts.mode
	}
	p.damageAllWorkspaces()
}

func (p *Plugin) disposeAlgorithm() {
	if d, ok := p.algorithm.(interface{ Dispose() }); ok {
		d.Dispose()
	}
	p.algorithm = nil
}

// Padding returns how far the current blur reaches, in pixels.
func (p *Plugin) Padding() int {
	if p.algorithm == nil {
		return 0
	}
	return p.algorithm.Padding()
}

// Blurred reports whether v carries this plugin's transformer.
func (p *Plugin) Blurred(v *gloam.View) bool {
	return p.blurred[v] != nil
}

// Toggle adds or removes the blur on v.
func (p *Plugin) Toggle(v *gloam.View) {
	if p.Blurred(v) {
		p.remove(v)
		return
	}
	p.add(v)
}

func (p *Plugin) add(v *gloam.View) {
	if p.blurred[v] != nil {
		return
	}
	t := &transformer{p: p}
	if err := v.AddTransformer(t, gloam.ZOrderBlur, transformerName); err != nil {
		p.log.Warn("blur not added", "view", v.Title, "error", err)
		return
	}
	p.blurred[v] = t
	v.Damage()
}

func (p *Plugin) remove(v *gloam.View) {
	if p.blurred[v] == nil {
		return
	}
	delete(p.blurred, v)
	v.RemTransformer(transformerName)
	v.Damage()
}

func (p *Plugin) removeAll() {
	for v := range p.blurred {
		p.remove(v)
	}
}

// blurrable reports whether v has anything behind it worth blurring.
func blurrable(v *gloam.View) bool {
	return v.Mapped() && v.Layer != gloam.LayerBackground && v.Layer != gloam.LayerBottom
}

func (p *Plugin) viewMapped(v *gloam.View) {
	if p.mode == ModeNormal && blurrable(v) {
		p.add(v)
	}
}

// views returns every view on every workspace of the output.
func (p *Plugin) views() []*gloam.View {
	ws := p.o.Workspace()
	grid := ws.GridSize()
	seen := make(map[*gloam.View]bool)
	var out []*gloam.View
	for y := 0; y < grid.Y; y++ {
		for x := 0; x < grid.X; x++ {
			for _, v := range ws.ViewsOn(image.Pt(x, y)) {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
	}
	return out
}

func (p *Plugin) damageAllWorkspaces() {
	ws := p.o.Workspace()
	grid := ws.GridSize()
	for y := 0; y < grid.Y; y++ {
		for x := 0; x < grid.X; x++ {
			p.o.Damage(p.o.WorkspaceBox(image.Pt(x, y)))
		}
	}
}

// --- Damage padding ---

// padFrameDamage grows the scheduled damage by the blur radius: a changed
// pixel changes the blur of everything within reach.
func (p *Plugin) padFrameDamage() {
	padding := p.Padding()
	if padding <= 0 {
		return
	}
	d := p.o.PendingDamage()
	d.ExpandEdges(padding)
	p.o.DamageRegion(d)
}

// streamPre pads the stream damage and saves the pixels of the padding ring
// from the previous frame.
func (p *Plugin) streamPre(ev *gloam.StreamEvent) {
	padding := p.Padding()
	if padding <= 0 || ev.Damage.IsEmpty() {
		return
	}
	expanded := ev.Damage.Clone()
	expanded.ExpandEdges(padding)
	expanded.IntersectBox(p.o.Box())
	p.padded = gloam.XorRegions(expanded, *ev.Damage)

	b := ev.Target.Image.Bounds()
	if _, err := p.saved.Allocate(p.o.Renderer(), b.Dx(), b.Dy()); err != nil {
		p.log.Warn("padding not saved", "error", err)
		p.padded.Clear()
		return
	}
	p.saved.Geometry = ev.Target.Geometry
	p.saved.Scale = ev.Target.Scale
	copyRegion(p.saved.Bind(), ev.Target, p.padded)
	ev.Damage.Union(expanded)
}

// streamPost restores the padding ring over the blur artifacts left there.
func (p *Plugin) streamPost(ev *gloam.StreamEvent) {
	if p.padded.IsEmpty() || !p.saved.Valid() {
		return
	}
	copyRegion(ev.Target, p.saved.Bind(), p.padded)
	p.padded.Clear()
}

// copyRegion copies the pixels of region from src to dst. Both targets must
// share geometry and scale.
func copyRegion(dst, src gloam.RenderTarget, region gloam.Region) {
	var op ebiten.DrawImageOptions
	op.Blend = ebiten.BlendCopy
	for b := range region.All() {
		from, to := src.Scissor(b), dst.Scissor(b)
		if from == nil || to == nil {
			continue
		}
		op.GeoM.Reset()
		op.GeoM.Translate(float64(to.Bounds().Min.X), float64(to.Bounds().Min.Y))
		to.DrawImage(from, &op)
	}
}

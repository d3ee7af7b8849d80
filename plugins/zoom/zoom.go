// Package zoom magnifies the whole output around the cursor.
package zoom

import (
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/gloam"
)

// Name is the plugin name used in configuration.
const Name = "zoom"

// Zoom limits.
const (
	MinZoom = 1.0
	MaxZoom = 50.0
)

// Option defaults.
const (
	DefaultSpeed    = 0.005
	DefaultDuration = 300 * time.Millisecond
)

func init() {
	gloam.RegisterPlugin(Name, func() gloam.Plugin { return New() })
}

// Plugin is the zoom plugin for one output.
type Plugin struct {
	o     *gloam.Output
	log   *slog.Logger
	speed float64
	now   func() time.Time

	zoom, target float64
	d            *gloam.Duration
	tr           *gloam.Transition
	cursor       gloam.PointF

	hook    gloam.PostHook
	hookSet bool

	disconnect func()
}

// New creates an unloaded plugin.
func New() *Plugin {
	return &Plugin{now: time.Now, zoom: MinZoom, target: MinZoom}
}

// Init reads the options. Zooming starts with the first Axis call.
func (p *Plugin) Init(o *gloam.Output, cfg *gloam.Section) error {
	p.o = o
	p.log = o.Logger().With("plugin", Name)
	p.configure(cfg)
	p.hook = p.render
	p.disconnect = cfg.Changed.Connect(p.configure).Disconnect
	return nil
}

func (p *Plugin) configure(cfg *gloam.Section) {
	p.speed = cfg.Float("speed", DefaultSpeed)
	linear, _ := gloam.EasingByName("linear")
	desc := cfg.Animation("duration", gloam.AnimationDescription{
		Length:     DefaultDuration,
		Easing:     linear,
		EasingName: "linear",
	})
	p.d = gloam.NewDurationFrom(desc, gloam.WithClock(p.now))
	p.tr = gloam.NewTransition(p.d, p.zoom, p.target)
}

// Fini removes the post hook.
func (p *Plugin) Fini() {
	if p.disconnect != nil {
		p.disconnect()
		p.disconnect = nil
	}
	if p.hookSet {
		p.o.RemPost(&p.hook)
		p.hookSet = false
	}
}

// Zoom returns the magnification of the last frame.
func (p *Plugin) Zoom() float64 { return p.zoom }

// Target returns the magnification being animated towards.
func (p *Plugin) Target() float64 { return p.target }

// Active reports whether the post hook is installed.
func (p *Plugin) Active() bool { return p.hookSet }

// SetCursor sets the point, in output coordinates, that stays in place
// while zooming.
func (p *Plugin) SetCursor(x, y float64) {
	p.cursor = gloam.PointF{X: x, Y: y}
	if p.hookSet {
		p.o.DamageWhole()
	}
}

// Axis handles a vertical scroll of delta. Scrolling up zooms in.
func (p *Plugin) Axis(delta float64) {
	p.target += p.target * delta * p.speed * -1
	p.target = min(max(p.target, MinZoom), MaxZoom)

	if !p.hookSet && p.target != p.zoom {
		p.hookSet = true
		p.o.AddPost(&p.hook)
	}
	p.tr.Set(p.zoom, p.target)
	p.d.Start()
	p.o.DamageWhole()
}

// render draws the part of src around the cursor stretched over dst.
func (p *Plugin) render(src, dst gloam.RenderTarget) {
	p.zoom = p.tr.Value()
	scale := (p.zoom - 1) / p.zoom
	x1 := p.cursor.X * scale
	y1 := p.cursor.Y * scale

	db := dst.Image.Bounds()
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(-x1, -y1)
	op.GeoM.Scale(p.zoom, p.zoom)
	op.GeoM.Translate(float64(db.Min.X), float64(db.Min.Y))
	op.Filter = ebiten.FilterLinear
	dst.Image.DrawImage(src.Image, &op)

	switch {
	case p.d.Running():
		p.o.DamageWhole()
	case p.zoom-1 <= 0.01:
		p.o.RemPost(&p.hook)
		p.hookSet = false
	}
}

// Package showrepaint tints the damage of the last three frames so repaint
// areas can be seen on screen.
package showrepaint

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/phanxgames/gloam"
)

// Name is the plugin name used in configuration.
const Name = "showrepaint"

// labelSize is the font size of the rectangle counter.
const labelSize = 14

// labelBox is the area the counter is drawn in, damaged every frame.
var labelBox = gloam.Box{X: 4, Y: 4, Width: 160, Height: 20}

func init() {
	gloam.RegisterPlugin(Name, func() gloam.Plugin { return New() })
}

// Plugin is the showrepaint plugin for one output.
type Plugin struct {
	o      *gloam.Output
	log    *slog.Logger
	active bool
	face   *text.GoTextFace
	rand   func() float64

	damage, last, lastLast gloam.Region
	lastColor, llColor     gloam.Color

	pre, overlay gloam.EffectHook
	disconnect   func()
}

// New creates an unloaded plugin.
func New() *Plugin {
	return &Plugin{rand: rand.Float64}
}

// Init installs the hooks. The overlay draws nothing until Toggle, unless
// the active option is set.
func (p *Plugin) Init(o *gloam.Output, cfg *gloam.Section) error {
	p.o = o
	p.log = o.Logger().With("plugin", Name)
	src, err := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))
	if err != nil {
		return fmt.Errorf("showrepaint font: %w", err)
	}
	p.face = &text.GoTextFace{Source: src, Size: labelSize}

	p.pre = p.collectDamage
	p.overlay = p.render
	o.AddEffect(&p.pre, gloam.PhasePre)
	o.AddEffect(&p.overlay, gloam.PhaseOverlay)
	if cfg.Bool("active", false) {
		p.Toggle()
	}
	p.disconnect = cfg.Changed.Connect(func(s *gloam.Section) {
		if s.Bool("active", false) != p.active {
			p.Toggle()
		}
	}).Disconnect
	return nil
}

// Fini removes the hooks.
func (p *Plugin) Fini() {
	if p.disconnect != nil {
		p.disconnect()
		p.disconnect = nil
	}
	p.o.RemEffect(&p.pre, gloam.PhasePre)
	p.o.RemEffect(&p.overlay, gloam.PhaseOverlay)
	if p.active {
		p.o.DamageWhole()
	}
}

// Active reports whether the overlay is shown.
func (p *Plugin) Active() bool { return p.active }

// Toggle shows or hides the overlay.
func (p *Plugin) Toggle() {
	p.active = !p.active
	p.o.DamageWhole()
	p.log.Debug("toggled", "active", p.active)
}

// collectDamage remembers the damage scheduled for this frame. The label
// area joins the frame so the counter never smears.
func (p *Plugin) collectDamage() {
	p.damage = p.o.PendingDamage()
	if p.active {
		p.o.Damage(labelBox)
	}
}

// randomColor returns a translucent color with every channel in [0.25, 0.75].
func (p *Plugin) randomColor() gloam.Color {
	return gloam.Color{
		R: 0.25 + p.rand()*0.5,
		G: 0.25 + p.rand()*0.5,
		B: 0.25 + p.rand()*0.5,
		A: 0.25,
	}
}

// layers returns the regions painted this frame, oldest first.
func (p *Plugin) layers() (lastLast, last, current gloam.Region) {
	last = gloam.SubtractRegions(p.last, p.damage)
	lastLast = gloam.SubtractRegions(gloam.SubtractRegions(p.lastLast, p.last), p.damage)
	return lastLast, last, p.damage
}

func (p *Plugin) render() {
	color := p.randomColor()
	if target := p.o.TargetFramebuffer(); p.active && target.Valid() {
		ll, l, cur := p.layers()
		fill(target, ll, p.llColor)
		fill(target, l, p.lastColor)
		fill(target, cur, color)
		p.drawLabel(target, cur.Len())
	}

	p.llColor, p.lastColor = p.lastColor, color
	p.lastLast = p.last
	p.last = p.damage.Clone()
}

func fill(target gloam.RenderTarget, r gloam.Region, c gloam.Color) {
	if c.A == 0 {
		return
	}
	for b := range r.All() {
		gloam.FillRect(target, b, c)
	}
}

func (p *Plugin) drawLabel(target gloam.RenderTarget, rects int) {
	sub := target.Scissor(labelBox)
	if sub == nil {
		return
	}
	gloam.FillRect(target, labelBox, gloam.Color{A: 0.6})
	var op text.DrawOptions
	op.GeoM.Translate(float64(labelBox.X+4), float64(labelBox.Y+2))
	op.GeoM.Concat(target.GeoM())
	text.Draw(sub, fmt.Sprintf("%d rects", rects), p.face, &op)
}

// Package invert inverts the colors of the whole output.
package invert

import (
	"github.com/phanxgames/gloam"
)

// Name is the plugin name used in configuration.
const Name = "invert"

func init() {
	gloam.RegisterPlugin(Name, func() gloam.Plugin { return New() })
}

// Plugin is the invert plugin for one output.
type Plugin struct {
	o      *gloam.Output
	filter *gloam.ColorMatrixFilter
	hook   gloam.PostHook
	active bool
}

// New creates an unloaded plugin.
func New() *Plugin {
	return &Plugin{}
}

// Init prepares the inverting filter. The output starts inverted when the
// active option is set.
func (p *Plugin) Init(o *gloam.Output, cfg *gloam.Section) error {
	p.o = o
	p.filter = gloam.NewColorMatrixFilter()
	p.filter.SetInvert()
	p.hook = func(src, dst gloam.RenderTarget) {
		p.filter.Apply(src.Image, dst.Image)
	}
	if cfg.Bool("active", false) {
		p.Toggle()
	}
	return nil
}

// Fini removes the post hook.
func (p *Plugin) Fini() {
	if p.active {
		p.Toggle()
	}
}

// Active reports whether the output is inverted.
func (p *Plugin) Active() bool { return p.active }

// Toggle turns inversion on or off.
func (p *Plugin) Toggle() {
	if p.active {
		p.o.RemPost(&p.hook)
	} else {
		p.o.AddPost(&p.hook)
	}
	p.active = !p.active
}

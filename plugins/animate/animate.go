// Package animate plays open, close and minimize animations for views and
// fades the output in on request.
package animate

import (
	"log/slog"
	"time"

	"github.com/phanxgames/gloam"
)

// Name is the plugin name used in configuration.
const Name = "animate"

// Option defaults.
const (
	DefaultOpenAnimation     = "fade"
	DefaultCloseAnimation    = "fade"
	DefaultMinimizeAnimation = "squeezimize"
	DefaultDuration          = 300 * time.Millisecond
	DefaultStartupDuration   = 600 * time.Millisecond
	DefaultSqueezeDuration   = 150 * time.Millisecond
	DefaultLineHeight        = 50
)

func init() {
	gloam.RegisterPlugin(Name, func() gloam.Plugin { return New() })
}

type options struct {
	open, close, minimize string
	duration              gloam.AnimationDescription
	startup               gloam.AnimationDescription
	squeeze               gloam.AnimationDescription
	lineHeight            int
}

func readOptions(s *gloam.Section) options {
	def := func(d time.Duration) gloam.AnimationDescription {
		fn, _ := gloam.EasingByName(gloam.DefaultEasing)
		return gloam.AnimationDescription{Length: d, Easing: fn, EasingName: gloam.DefaultEasing}
	}
	return options{
		open:       s.String("open_animation", DefaultOpenAnimation),
		close:      s.String("close_animation", DefaultCloseAnimation),
		minimize:   s.String("minimize_animation", DefaultMinimizeAnimation),
		duration:   s.Animation("duration", def(DefaultDuration)),
		startup:    s.Animation("startup_duration", def(DefaultStartupDuration)),
		squeeze:    s.Animation("squeezimize_duration", def(DefaultSqueezeDuration)),
		lineHeight: s.Int("squeezimize_line_height", DefaultLineHeight),
	}
}

// Plugin is the animate plugin for one output.
type Plugin struct {
	o    *gloam.Output
	log  *slog.Logger
	opts options
	now  func() time.Time

	running map[*gloam.View]*hook
	fade    *systemFade

	disconnect []func()
}

// New creates an unloaded plugin.
func New() *Plugin {
	return &Plugin{now: time.Now}
}

// Init connects to the output's view signals.
func (p *Plugin) Init(o *gloam.Output, cfg *gloam.Section) error {
	p.o = o
	p.log = o.Logger().With("plugin", Name)
	p.opts = readOptions(cfg)
	p.running = make(map[*gloam.View]*hook)

	p.disconnect = append(p.disconnect,
		o.ViewMapped.Connect(p.viewMapped).Disconnect,
		o.ViewUnmapped.Connect(p.viewUnmapped).Disconnect,
		o.ViewMinimized.Connect(p.viewMinimized).Disconnect,
		o.FadeInRequest.Connect(func(*gloam.Output) { p.FadeIn() }).Disconnect,
		cfg.Changed.Connect(func(s *gloam.Section) { p.opts = readOptions(s) }).Disconnect,
	)
	return nil
}

// Fini stops every animation and releases the views it kept.
func (p *Plugin) Fini() {
	for _, d := range p.disconnect {
		d()
	}
	p.disconnect = nil
	for _, h := range p.running {
		h.finalize()
	}
	if p.fade != nil {
		p.fade.finish()
	}
}

// Running reports whether v has an animation in progress.
func (p *Plugin) Running(v *gloam.View) bool {
	return p.running[v] != nil
}

// FadeIn starts the system fade: the output fades in from black over the
// startup duration. A fade already in progress restarts.
func (p *Plugin) FadeIn() {
	if p.fade != nil {
		p.fade.finish()
	}
	p.fade = newSystemFade(p, p.opts.startup)
}

func (p *Plugin) duration(desc gloam.AnimationDescription) *gloam.Duration {
	return gloam.NewDurationFrom(desc, gloam.WithClock(p.now))
}

func (p *Plugin) viewMapped(v *gloam.View) {
	anim := newViewAnimation(p.opts.open)
	if anim == nil {
		return
	}
	p.start(v, anim, p.duration(p.opts.duration), false, false)
}

// viewUnmapped starts the close animation. Its Keep holds the view past
// UnmapView. A minimized view with nothing running closes without one.
func (p *Plugin) viewUnmapped(v *gloam.View) {
	h := p.running[v]
	if h != nil {
		h.finalize()
	}
	if v.Minimized() && h == nil {
		return
	}
	anim := newViewAnimation(p.opts.close)
	if anim == nil {
		return
	}
	v.Keep()
	// The client is gone after this signal; keep its last frame.
	if err := v.TakeSnapshot(); err != nil {
		p.log.Warn("snapshot failed", "view", v.Title, "error", err)
	}
	p.start(v, anim, p.duration(p.opts.duration), true, true)
}

func (p *Plugin) viewMinimized(ev gloam.MinimizeEvent) {
	if p.opts.minimize == "none" {
		return
	}
	v := ev.View
	if h := p.running[v]; h != nil {
		if sq, ok := h.anim.(*squeezeAnimation); ok {
			// Restoring a view that is still shrinking turns the animation
			// around instead of jumping.
			sq.reverse()
			if ev.Minimized && !h.keep {
				v.Keep()
				h.keep = true
			}
			return
		}
		h.finalize()
	}
	if ev.Minimized {
		v.Keep()
	}
	anim := &squeezeAnimation{lineHeight: p.opts.lineHeight}
	p.start(v, anim, p.duration(p.opts.squeeze), ev.Minimized, ev.Minimized)
}

// start runs anim on v. hiding selects the close direction; keep means the
// hook owns one Keep on v and drops it when done.
func (p *Plugin) start(v *gloam.View, anim viewAnimation, d *gloam.Duration, hiding, keep bool) {
	h := &hook{p: p, view: v, anim: anim, keep: keep}
	v.Damage()
	if err := anim.init(v, d, hiding); err != nil {
		p.log.Warn("animation not started", "view", v.Title, "error", err)
		if keep {
			v.Unkeep()
		}
		return
	}
	anim.step()
	v.Damage()

	h.effect = func() {
		v.Damage()
		more := anim.step()
		v.Damage()
		if !more {
			h.finalize()
		}
	}
	p.running[v] = h
	p.o.AddEffect(&h.effect, gloam.PhasePost)
}

// hook drives one view animation from a POST effect.
type hook struct {
	p      *Plugin
	view   *gloam.View
	anim   viewAnimation
	keep   bool
	effect gloam.EffectHook
	done   bool
}

func (h *hook) finalize() {
	if h.done {
		return
	}
	h.done = true
	h.p.o.RemEffect(&h.effect, gloam.PhasePost)
	h.anim.fini()
	if h.p.running[h.view] == h {
		delete(h.p.running, h.view)
	}
	if h.keep {
		h.view.Unkeep()
	}
}

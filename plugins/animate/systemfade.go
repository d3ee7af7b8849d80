package animate

import "github.com/phanxgames/gloam"

// systemFade covers the output with black that fades out. It repaints the
// whole output every frame while it runs.
type systemFade struct {
	p       *Plugin
	d       *gloam.Duration
	pre     gloam.EffectHook
	overlay gloam.EffectHook
	done    bool
}

func newSystemFade(p *Plugin, desc gloam.AnimationDescription) *systemFade {
	o := p.o
	f := &systemFade{p: p, d: p.duration(desc)}
	f.pre = func() { o.DamageWhole() }
	f.overlay = f.render
	o.AddEffect(&f.pre, gloam.PhasePre)
	o.AddEffect(&f.overlay, gloam.PhaseOverlay)
	o.AutoRedraw(true)
	f.d.Start()
	o.DamageWhole()
	return f
}

// alpha is the opacity of the black cover.
func (f *systemFade) alpha() float64 {
	return 1 - f.d.Progress()
}

func (f *systemFade) render() {
	o := f.p.o
	if target := o.TargetFramebuffer(); target.Valid() {
		gloam.FillRect(target, o.Box(), gloam.Color{A: f.alpha()})
	}
	if !f.d.Running() {
		f.finish()
	}
}

func (f *systemFade) finish() {
	if f.done {
		return
	}
	f.done = true
	o := f.p.o
	o.RemEffect(&f.pre, gloam.PhasePre)
	o.RemEffect(&f.overlay, gloam.PhaseOverlay)
	o.AutoRedraw(false)
	if f.p.fade == f {
		f.p.fade = nil
	}
	o.DamageWhole()
}

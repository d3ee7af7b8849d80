package animate

import "github.com/phanxgames/gloam"

// transformerName is the transformer used by fade, zoom and zap.
const transformerName = "animation-2d"

// viewAnimation is one effect played on a view. step applies the current
// progress and reports whether the animation is still running; fini removes
// what init attached.
type viewAnimation interface {
	init(v *gloam.View, d *gloam.Duration, hiding bool) error
	step() bool
	fini()
}

// newViewAnimation returns the named open/close animation, or nil for
// "none" and unknown names.
func newViewAnimation(name string) viewAnimation {
	switch name {
	case "fade":
		return &twoD{apply: applyFade}
	case "zoom":
		return &twoD{apply: applyZoom}
	case "zap":
		return &twoD{apply: applyZap}
	}
	return nil
}

// twoD animates a View2D transformer from a progress value: 0 is hidden and
// 1 is fully shown.
type twoD struct {
	view  *gloam.View
	d     *gloam.Duration
	tr    *gloam.View2D
	apply func(tr *gloam.View2D, progress float64)
}

func (a *twoD) init(v *gloam.View, d *gloam.Duration, hiding bool) error {
	a.view, a.d = v, d
	if hiding {
		d.Reverse()
	}
	d.Start()
	a.tr = gloam.NewView2D(v)
	return v.AddTransformer(a.tr, gloam.ZOrderHighLevel, transformerName)
}

func (a *twoD) step() bool {
	a.apply(a.tr, a.d.Progress())
	return a.d.Running()
}

func (a *twoD) fini() {
	a.view.RemTransformer(transformerName)
}

func applyFade(tr *gloam.View2D, p float64) {
	tr.Alpha = float32(p)
}

func applyZoom(tr *gloam.View2D, p float64) {
	s := float32(0.5 + 0.5*p)
	tr.ScaleX, tr.ScaleY = s, s
	tr.Alpha = float32(p)
}

// applyZap fades in over the first third, then stretches horizontally, then
// vertically.
func applyZap(tr *gloam.View2D, p float64) {
	pt1 := clamp(p, 0, 1.0/3) * 3
	pt2 := (clamp(p, 1.0/3, 2.0/3) - 1.0/3) * 3
	pt3 := (clamp(p, 2.0/3, 1) - 2.0/3) * 3
	tr.Alpha = float32(pt1)
	tr.ScaleX = float32(0.01 + pt2*0.99)
	tr.ScaleY = float32(0.01 + pt3*0.99)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

package animate

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/gloam"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type solidSurface struct{ img *ebiten.Image }

func (s solidSurface) Texture() *ebiten.Image { return s.img }

func setup(t *testing.T, conf string) (*gloam.Output, *Plugin, *fakeClock) {
	t.Helper()
	cfg, err := gloam.ParseConfig([]byte(conf))
	if err != nil {
		t.Fatal(err)
	}
	o := gloam.NewOutput(gloam.OutputOptions{Width: 200, Height: 200})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := New()
	p.now = clock.Now
	if err := p.Init(o, cfg.Section(Name)); err != nil {
		t.Fatal(err)
	}
	frames(o)
	return o, p, clock
}

func frames(o *gloam.Output) {
	for i := 0; i < 10 && o.Loop().Pending(); i++ {
		o.Loop().Dispatch()
	}
}

func newView(b gloam.Box) *gloam.View {
	return gloam.NewView(solidSurface{ebiten.NewImage(b.Width, b.Height)}, b)
}

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-5 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// --- Open and close ---

func TestFadeInOnMap(t *testing.T) {
	o, p, clock := setup(t, "[animate]\nduration = \"100ms linear\"\nclose_animation = \"none\"\n")
	v := newView(gloam.Box{X: 10, Y: 10, Width: 50, Height: 50})
	o.MapView(v)

	tr, ok := gloam.GetTransformer[*gloam.View2D](v, transformerName)
	if !ok {
		t.Fatal("no animation transformer after map")
	}
	assertNear(t, "alpha at start", float64(tr.Alpha), 0)

	clock.Advance(50 * time.Millisecond)
	frames(o)
	assertNear(t, "alpha halfway", float64(tr.Alpha), 0.5)

	clock.Advance(60 * time.Millisecond)
	frames(o)
	if p.Running(v) {
		t.Error("animation still running after its duration")
	}
	if v.HasTransformer() {
		t.Error("transformer left on the view")
	}
	if v.KeepCount() != 0 {
		t.Errorf("KeepCount = %d, want 0 with close_animation none", v.KeepCount())
	}
}

func TestCloseAnimationKeepsViewUntilDone(t *testing.T) {
	o, p, clock := setup(t, "[animate]\nduration = \"100ms linear\"\nopen_animation = \"none\"\n")
	ws := o.Workspace().(*gloam.WorkspaceSet)
	v := newView(gloam.Box{X: 10, Y: 10, Width: 50, Height: 50})
	o.MapView(v)
	frames(o)
	if v.KeepCount() != 0 {
		t.Fatalf("KeepCount after map = %d, want 0", v.KeepCount())
	}

	o.UnmapView(v)
	if !p.Running(v) {
		t.Fatal("no close animation")
	}
	if v.KeepCount() != 1 {
		t.Errorf("KeepCount while closing = %d, want 1", v.KeepCount())
	}
	if !slices.Contains(ws.Views(), v) {
		t.Fatal("view destroyed while its close animation runs")
	}
	if !v.Visible() {
		t.Error("closing view not visible")
	}

	clock.Advance(200 * time.Millisecond)
	frames(o)
	if p.Running(v) {
		t.Error("close animation still running")
	}
	if slices.Contains(ws.Views(), v) {
		t.Error("view not destroyed after its close animation")
	}
}

func TestCloseNoneDestroysImmediately(t *testing.T) {
	o, _, _ := setup(t, "[animate]\nopen_animation = \"none\"\nclose_animation = \"none\"\n")
	ws := o.Workspace().(*gloam.WorkspaceSet)
	v := newView(gloam.Box{Width: 20, Height: 20})
	o.MapView(v)
	o.UnmapView(v)
	if slices.Contains(ws.Views(), v) {
		t.Error("view kept alive with close_animation none")
	}
}

func TestUnmapDuringOpenFinalizesIt(t *testing.T) {
	o, p, clock := setup(t, "[animate]\nduration = \"100ms linear\"\nopen_animation = \"zoom\"\nclose_animation = \"zap\"\n")
	v := newView(gloam.Box{Width: 20, Height: 20})
	o.MapView(v)
	clock.Advance(30 * time.Millisecond)
	frames(o)

	o.UnmapView(v)
	if !p.Running(v) {
		t.Fatal("close animation did not start")
	}
	if got := v.Transformers().Len(); got != 1 {
		t.Errorf("transformers = %d, want 1", got)
	}
	if v.KeepCount() != 1 {
		t.Errorf("KeepCount = %d, want 1", v.KeepCount())
	}
}

// --- Curves ---

func TestAnimationCurves(t *testing.T) {
	tests := []struct {
		name               string
		apply              func(*gloam.View2D, float64)
		p                  float64
		alpha, scaleX, scl float64
	}{
		{"fade half", applyFade, 0.5, 0.5, 1, 1},
		{"zoom start", applyZoom, 0, 0, 0.5, 0.5},
		{"zoom end", applyZoom, 1, 1, 1, 1},
		{"zap start", applyZap, 0, 0, 0.01, 0.01},
		{"zap third", applyZap, 1.0 / 3, 1, 0.01, 0.01},
		{"zap half", applyZap, 0.5, 1, 0.505, 0.01},
		{"zap end", applyZap, 1, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := gloam.NewView2D(nil)
			tt.apply(tr, tt.p)
			assertNear(t, "Alpha", float64(tr.Alpha), tt.alpha)
			assertNear(t, "ScaleX", float64(tr.ScaleX), tt.scaleX)
			assertNear(t, "ScaleY", float64(tr.ScaleY), tt.scl)
		})
	}
}

// --- Minimize ---

func TestSqueezimize(t *testing.T) {
	o, p, clock := setup(t, "[animate]\nsqueezimize_duration = \"100ms linear\"\nopen_animation = \"none\"\nclose_animation = \"none\"\n")
	v := newView(gloam.Box{X: 50, Y: 20, Width: 100, Height: 100})
	v.MinimizeHint = gloam.Box{X: 0, Y: 190, Width: 20, Height: 10}
	o.MapView(v)
	frames(o)

	o.MinimizeView(v, true)
	if v.Transformers().Get(squeezeName) == nil {
		t.Fatal("no squeezimize transformer")
	}
	if !v.Visible() {
		t.Error("minimizing view hidden before the animation ends")
	}
	if got := v.BoundingBox(); got != o.Box() {
		t.Errorf("BoundingBox = %v, want the whole output", got)
	}

	clock.Advance(50 * time.Millisecond)
	frames(o)
	clock.Advance(60 * time.Millisecond)
	frames(o)
	if p.Running(v) {
		t.Error("squeezimize still running")
	}
	if v.HasTransformer() || v.KeepCount() != 0 {
		t.Errorf("after minimize: transformers = %d, keep = %d", v.Transformers().Len(), v.KeepCount())
	}
	if v.Visible() {
		t.Error("minimized view still visible")
	}
}

func TestSqueezimizeHidesViewWithCloseAnimation(t *testing.T) {
	o, p, clock := setup(t, "[animate]\nsqueezimize_duration = \"100ms linear\"\nduration = \"100ms linear\"\n")
	ws := o.Workspace().(*gloam.WorkspaceSet)
	v := newView(gloam.Box{X: 50, Y: 20, Width: 100, Height: 100})
	o.MapView(v)
	clock.Advance(200 * time.Millisecond)
	frames(o)

	o.MinimizeView(v, true)
	clock.Advance(200 * time.Millisecond)
	frames(o)
	if p.Running(v) {
		t.Fatal("squeezimize still running")
	}
	if v.Visible() {
		t.Error("minimized view still visible")
	}
	if v.KeepCount() != 0 {
		t.Errorf("KeepCount = %d, want 0", v.KeepCount())
	}

	// Closing a minimized view has nothing to animate.
	o.UnmapView(v)
	if p.Running(v) || slices.Contains(ws.Views(), v) {
		t.Error("minimized view not destroyed on unmap")
	}
}

func TestMinimizeNoneHidesView(t *testing.T) {
	o, _, _ := setup(t, "[animate]\nminimize_animation = \"none\"\nopen_animation = \"none\"\n")
	v := newView(gloam.Box{Width: 40, Height: 40})
	o.MapView(v)
	o.MinimizeView(v, true)
	if v.Visible() {
		t.Error("minimized view visible with minimize_animation none")
	}
}

func TestSqueezimizeRestoreReverses(t *testing.T) {
	o, p, clock := setup(t, "[animate]\nsqueezimize_duration = \"100ms linear\"\nopen_animation = \"none\"\nclose_animation = \"none\"\n")
	v := newView(gloam.Box{X: 50, Y: 20, Width: 100, Height: 100})
	o.MapView(v)
	o.MinimizeView(v, true)
	sq := p.running[v].anim.(*squeezeAnimation)

	clock.Advance(50 * time.Millisecond)
	frames(o)
	o.MinimizeView(v, false)
	if p.running[v] == nil || p.running[v].anim != sq {
		t.Fatal("restore did not reuse the running animation")
	}
	assertNear(t, "progress after reverse", sq.tr.d.Progress(), 0.5)

	clock.Advance(60 * time.Millisecond)
	frames(o)
	if p.Running(v) || v.KeepCount() != 0 || !v.Visible() {
		t.Errorf("after restore: running = %v, keep = %d, visible = %v", p.Running(v), v.KeepCount(), v.Visible())
	}
}

// --- System fade ---

func TestSystemFade(t *testing.T) {
	o, p, clock := setup(t, "[animate]\nstartup_duration = \"100ms linear\"\n")
	o.RequestFadeIn()
	if p.fade == nil || !o.AutoRedrawing() {
		t.Fatal("fade-in request did not start the system fade")
	}
	assertNear(t, "cover alpha", p.fade.alpha(), 1)

	clock.Advance(150 * time.Millisecond)
	frames(o)
	if p.fade != nil {
		t.Error("system fade still running")
	}
	if o.AutoRedrawing() {
		t.Error("auto redraw held after the fade finished")
	}
}

func TestFiniStopsEverything(t *testing.T) {
	o, p, _ := setup(t, "[animate]\n")
	v := newView(gloam.Box{Width: 40, Height: 40})
	o.MapView(v)
	p.FadeIn()

	p.Fini()
	if p.Running(v) || v.HasTransformer() {
		t.Error("open animation survived Fini")
	}
	if v.KeepCount() != 0 {
		t.Errorf("KeepCount = %d after Fini, want 0", v.KeepCount())
	}
	if o.AutoRedrawing() {
		t.Error("system fade survived Fini")
	}
	o.UnmapView(v)
	if p.Running(v) {
		t.Error("unloaded plugin reacted to unmap")
	}
}

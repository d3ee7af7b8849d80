package blur

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/gloam"
)

type solidSurface struct{ img *ebiten.Image }

func (s solidSurface) Texture() *ebiten.Image { return s.img }

func newView(b gloam.Box) *gloam.View {
	return gloam.NewView(solidSurface{ebiten.NewImage(b.Width, b.Height)}, b)
}

func setup(t *testing.T, conf string) (*gloam.Output, *Plugin, *gloam.Config) {
	t.Helper()
	cfg, err := gloam.ParseConfig([]byte(conf))
	if err != nil {
		t.Fatal(err)
	}
	o := gloam.NewOutput(gloam.OutputOptions{Width: 100, Height: 100})
	p := New()
	if err := p.Init(o, cfg.Section(Name)); err != nil {
		t.Fatal(err)
	}
	settle(o)
	return o, p, cfg
}

func settle(o *gloam.Output) {
	for i := 0; i < 10 && o.Loop().Pending(); i++ {
		o.Loop().Dispatch()
	}
}

// --- Algorithms ---

func TestAlgorithmPadding(t *testing.T) {
	tests := []struct {
		name string
		opts options
		want int
	}{
		{"kawase defaults", options{method: "kawase", offset: 5, iterations: 2, degrade: 1}, 40},
		{"kawase degraded", options{method: "kawase", offset: 5, iterations: 2, degrade: 2}, 80},
		{"box", options{method: "box", offset: 5, iterations: 2, degrade: 1}, 10},
		{"box zero iterations", options{method: "box", offset: 3, iterations: 0, degrade: 1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newAlgorithm(tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.Padding(); got != tt.want {
				t.Errorf("Padding = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUnknownMethodFallsBackToKawase(t *testing.T) {
	if _, err := newAlgorithm(options{method: "bokeh"}); err == nil {
		t.Error("expected an error for an unknown method")
	}
	_, p, _ := setup(t, "[blur]\nmethod = \"bokeh\"\n")
	if _, ok := p.algorithm.(*gloam.KawaseBlur); !ok {
		t.Errorf("algorithm = %T, want *gloam.KawaseBlur", p.algorithm)
	}
}

// --- Modes ---

func TestNormalModeBlursMappedViews(t *testing.T) {
	cfg, _ := gloam.ParseConfig(nil)
	o := gloam.NewOutput(gloam.OutputOptions{Width: 100, Height: 100})
	before := newView(gloam.Box{Width: 20, Height: 20})
	o.MapView(before)

	p := New()
	if err := p.Init(o, cfg.Section(Name)); err != nil {
		t.Fatal(err)
	}
	after := newView(gloam.Box{X: 30, Width: 20, Height: 20})
	o.MapView(after)
	wallpaper := newView(gloam.Box{Width: 100, Height: 100})
	wallpaper.Layer = gloam.LayerBackground
	o.MapView(wallpaper)

	for _, tt := range []struct {
		name string
		v    *gloam.View
		want bool
	}{
		{"mapped before init", before, true},
		{"mapped after init", after, true},
		{"background layer", wallpaper, false},
	} {
		if got := p.Blurred(tt.v); got != tt.want {
			t.Errorf("%s: Blurred = %v, want %v", tt.name, got, tt.want)
		}
	}
	if tr := before.Transformers().Get(transformerName); tr == nil {
		t.Error("no blur transformer on the view")
	}

	p.Fini()
	if before.HasTransformer() || after.HasTransformer() {
		t.Error("Fini left blur transformers behind")
	}
}

func TestToggleMode(t *testing.T) {
	o, p, _ := setup(t, "[blur]\nmode = \"toggle\"\n")
	v := newView(gloam.Box{Width: 20, Height: 20})
	o.MapView(v)
	if p.Blurred(v) {
		t.Fatal("toggle mode blurred a view on map")
	}
	p.Toggle(v)
	if !p.Blurred(v) {
		t.Error("Toggle did not add the blur")
	}
	p.Toggle(v)
	if p.Blurred(v) || v.HasTransformer() {
		t.Error("second Toggle did not remove the blur")
	}
}

func TestUnmapDropsBlur(t *testing.T) {
	o, p, _ := setup(t, "[blur]\n")
	v := newView(gloam.Box{Width: 20, Height: 20})
	o.MapView(v)
	if !p.Blurred(v) {
		t.Fatal("view not blurred on map")
	}
	o.UnmapView(v)
	if p.Blurred(v) {
		t.Error("unmapped view still tracked")
	}
	if len(p.blurred) != 0 {
		t.Errorf("blurred views = %d, want 0", len(p.blurred))
	}
	if v.HasTransformer() {
		t.Error("blur transformer left on the unmapped view")
	}

	// A mode switch afterwards must not touch the destroyed view.
	p.configure(readOptions(mustSection(t, "[blur]\nmode = \"toggle\"\n")))
	if p.Blurred(v) {
		t.Error("mode switch revived the unmapped view")
	}
}

func TestConfigChangeSwitchesModeAndMethod(t *testing.T) {
	o, p, cfg := setup(t, "[blur]\n")
	v := newView(gloam.Box{Width: 20, Height: 20})
	o.MapView(v)

	cfg.Section(Name).Changed.Emit(mustSection(t, "[blur]\nmode = \"toggle\"\nmethod = \"box\"\noffset = 2\n"))
	if p.Blurred(v) {
		t.Error("leaving normal mode kept the blur")
	}
	if got := p.Padding(); got != 4 {
		t.Errorf("Padding = %d, want 4", got)
	}
}

func mustSection(t *testing.T, conf string) *gloam.Section {
	t.Helper()
	cfg, err := gloam.ParseConfig([]byte(conf))
	if err != nil {
		t.Fatal(err)
	}
	return cfg.Section(Name)
}

// --- Damage padding ---

func TestFrameDamagePadded(t *testing.T) {
	o, _, _ := setup(t, "[blur]\nmethod = \"box\"\noffset = 5\niterations = 2\n")
	o.Damage(gloam.Box{X: 40, Y: 40, Width: 10, Height: 10})
	settle(o)

	want := gloam.Box{X: 30, Y: 30, Width: 30, Height: 30}
	if got := o.LastDamage().Extents(); got != want {
		t.Errorf("frame damage = %v, want %v", got, want)
	}
}

func TestStreamPaddingSavedAndRestored(t *testing.T) {
	o, p, _ := setup(t, "[blur]\nmethod = \"box\"\noffset = 5\niterations = 2\n")
	target := gloam.TargetForImage(ebiten.NewImage(100, 100), o.Box())
	damage := gloam.NewRegion(gloam.Box{X: 40, Y: 40, Width: 10, Height: 10})
	ev := &gloam.StreamEvent{Damage: &damage, Target: target}

	err := o.Renderer().Run(func() error {
		p.streamPre(ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := gloam.Box{X: 30, Y: 30, Width: 30, Height: 30}
	if got := damage.Extents(); got != want {
		t.Errorf("stream damage = %v, want %v", got, want)
	}
	if got, want := p.padded.Area(), 30*30-10*10; got != want {
		t.Errorf("padded area = %d, want %d", got, want)
	}
	if p.padded.ContainsPoint(45, 45) {
		t.Error("padding ring overlaps the original damage")
	}
	if !p.saved.Valid() {
		t.Fatal("padding pixels not saved")
	}

	p.streamPost(ev)
	if !p.padded.IsEmpty() {
		t.Error("padding ring not cleared after restore")
	}
}

func TestStreamPaddingClippedToOutput(t *testing.T) {
	o, p, _ := setup(t, "[blur]\nmethod = \"box\"\noffset = 5\niterations = 2\n")
	target := gloam.TargetForImage(ebiten.NewImage(100, 100), o.Box())
	damage := gloam.NewRegion(gloam.Box{Width: 10, Height: 10})
	ev := &gloam.StreamEvent{Damage: &damage, Target: target}

	_ = o.Renderer().Run(func() error {
		p.streamPre(ev)
		return nil
	})
	want := gloam.Box{Width: 20, Height: 20}
	if got := damage.Extents(); got != want {
		t.Errorf("stream damage = %v, want %v", got, want)
	}
}

func TestTransformerIsIdentityForGeometry(t *testing.T) {
	tr := &transformer{}
	view := gloam.Box{X: 5, Y: 5, Width: 20, Height: 20}
	if got := tr.BoundingBox(view, view); got != view {
		t.Errorf("BoundingBox = %v, want %v", got, view)
	}
	pt := gloam.PointF{X: 7, Y: 9}
	if got := tr.UntransformPoint(view, tr.TransformPoint(view, pt)); got != pt {
		t.Errorf("point round trip = %v, want %v", got, pt)
	}
}

func TestBlurredViewRenders(t *testing.T) {
	o, p, _ := setup(t, "[blur]\n")
	v := newView(gloam.Box{X: 10, Y: 10, Width: 30, Height: 30})
	o.MapView(v)
	settle(o)
	if !p.Blurred(v) {
		t.Fatal("view not blurred")
	}
	if got := o.Stats().DroppedFrames; got != 0 {
		t.Errorf("DroppedFrames = %d, want 0", got)
	}
}

package zoom

import (
	"math"
	"testing"
	"time"

	"github.com/phanxgames/gloam"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T, conf string) (*gloam.Output, *Plugin, *fakeClock) {
	t.Helper()
	cfg, err := gloam.ParseConfig([]byte(conf))
	if err != nil {
		t.Fatal(err)
	}
	o := gloam.NewOutput(gloam.OutputOptions{Width: 100, Height: 100})
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := New()
	p.now = clock.Now
	if err := p.Init(o, cfg.Section(Name)); err != nil {
		t.Fatal(err)
	}
	settle(o)
	return o, p, clock
}

func settle(o *gloam.Output) {
	for i := 0; i < 10 && o.Loop().Pending(); i++ {
		o.Loop().Dispatch()
	}
}

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-5 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestAxisTarget(t *testing.T) {
	tests := []struct {
		name   string
		deltas []float64
		want   float64
	}{
		{"scroll up zooms in", []float64{-100}, 1.5},
		{"compounds", []float64{-100, -100}, 2.25},
		{"never below one", []float64{50}, MinZoom},
		{"capped", []float64{-1e6}, MaxZoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p, _ := setup(t, "")
			for _, d := range tt.deltas {
				p.Axis(d)
			}
			assertNear(t, "Target", p.Target(), tt.want)
		})
	}
}

func TestSpeedOption(t *testing.T) {
	_, p, _ := setup(t, "[zoom]\nspeed = 0.01\n")
	p.Axis(-100)
	assertNear(t, "Target", p.Target(), 2)
}

func TestZoomAnimatesAndRemovesHook(t *testing.T) {
	o, p, clock := setup(t, "")
	if p.Active() {
		t.Fatal("hook installed before any scroll")
	}

	p.Axis(-100)
	if !p.Active() || o.PostHooks() != 1 {
		t.Fatalf("Active = %v, PostHooks = %d after zooming in", p.Active(), o.PostHooks())
	}
	settle(o)
	assertNear(t, "zoom at start", p.Zoom(), 1)

	clock.Advance(150 * time.Millisecond)
	settle(o)
	assertNear(t, "zoom halfway", p.Zoom(), 1.25)

	clock.Advance(200 * time.Millisecond)
	settle(o)
	assertNear(t, "zoom at end", p.Zoom(), 1.5)
	if !p.Active() {
		t.Error("hook removed while zoomed in")
	}

	p.Axis(1000)
	assertNear(t, "Target", p.Target(), 1)
	clock.Advance(400 * time.Millisecond)
	settle(o)
	assertNear(t, "zoom after zooming out", p.Zoom(), 1)
	if p.Active() || o.PostHooks() != 0 {
		t.Errorf("Active = %v, PostHooks = %d after zooming out", p.Active(), o.PostHooks())
	}
}

func TestAxisAtMinimumDoesNotInstallHook(t *testing.T) {
	o, p, _ := setup(t, "")
	p.Axis(10)
	if p.Active() || o.PostHooks() != 0 {
		t.Error("zooming out at 1x installed the hook")
	}
}

func TestFiniRemovesHook(t *testing.T) {
	o, p, _ := setup(t, "")
	p.Axis(-100)
	p.Fini()
	settle(o)
	if o.PostHooks() != 0 {
		t.Errorf("PostHooks = %d after Fini, want 0", o.PostHooks())
	}
}

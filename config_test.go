package gloam

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

const testConfig = `
[core]
plugins = ["animate", "blur"]
debug = true
max_texture_size = 4096

[animate]
open_animation = "zoom"
duration = 250
startup_duration = "1s linear"
bad_duration = "fast"

[blur]
offset = 2.5
iterations = 3
degrade = 2.0
mixed = ["a", 1]
`

func mustParse(t *testing.T, data string) *Config {
	t.Helper()
	c, err := ParseConfig([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestConfigCore(t *testing.T) {
	core := mustParse(t, testConfig).Core()
	if !slices.Equal(core.Plugins, []string{"animate", "blur"}) {
		t.Errorf("Plugins = %v, want [animate blur]", core.Plugins)
	}
	if !core.Debug {
		t.Error("Debug = false, want true")
	}
	if core.MaxTextureSize != 4096 {
		t.Errorf("MaxTextureSize = %d, want 4096", core.MaxTextureSize)
	}
	if core.ScreenshotDir != "screenshots" {
		t.Errorf("ScreenshotDir = %q, want default", core.ScreenshotDir)
	}
}

func TestSectionGetters(t *testing.T) {
	c := mustParse(t, testConfig)
	a := c.Section("animate")
	b := c.Section("blur")

	if got := a.String("open_animation", "fade"); got != "zoom" {
		t.Errorf("String = %q, want zoom", got)
	}
	if got := a.String("close_animation", "fade"); got != "fade" {
		t.Errorf("String default = %q, want fade", got)
	}
	if got := a.String("duration", "x"); got != "x" {
		t.Errorf("String on an int = %q, want default", got)
	}
	if got := b.Int("iterations", 0); got != 3 {
		t.Errorf("Int = %d, want 3", got)
	}
	if got := b.Int("degrade", 0); got != 2 {
		t.Errorf("Int from whole float = %d, want 2", got)
	}
	if got := b.Int("offset", 7); got != 7 {
		t.Errorf("Int from fractional float = %d, want default", got)
	}
	assertNear(t, "Float", b.Float("offset", 0), 2.5)
	assertNear(t, "Float from int", b.Float("iterations", 0), 3)
	if got := b.Strings("mixed", []string{"d"}); !slices.Equal(got, []string{"d"}) {
		t.Errorf("Strings with a non-string = %v, want default", got)
	}
	if !b.Has("offset") || b.Has("radius") {
		t.Error("Has reports the wrong keys")
	}
}

func TestSectionAnimation(t *testing.T) {
	a := mustParse(t, testConfig).Section("animate")
	def := AnimationDescription{Length: time.Second, EasingName: "circle"}

	if got := a.Animation("duration", def); got.Length != 250*time.Millisecond || got.EasingName != "circle" {
		t.Errorf("Animation(int) = %v %q, want 250ms circle", got.Length, got.EasingName)
	}
	if got := a.Animation("startup_duration", def); got.Length != time.Second || got.EasingName != "linear" {
		t.Errorf("Animation(string) = %v %q, want 1s linear", got.Length, got.EasingName)
	}
	if got := a.Animation("bad_duration", def); got.Length != def.Length {
		t.Errorf("Animation(bad) = %v, want default", got.Length)
	}
	if got := a.Animation("missing", def); got.Length != def.Length {
		t.Errorf("Animation(missing) = %v, want default", got.Length)
	}
}

func TestParseConfigError(t *testing.T) {
	if _, err := ParseConfig([]byte("[core\nplugins = ")); err == nil {
		t.Error("ParseConfig accepted invalid TOML")
	}
}

func TestMissingSectionIsEmpty(t *testing.T) {
	c := mustParse(t, "")
	s := c.Section("zoom")
	if got := s.Float("speed", 0.005); got != 0.005 {
		t.Errorf("Float = %v, want default", got)
	}
	if c.Section("zoom") != s {
		t.Error("Section returned a different table on the second call")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Sections()) != 0 {
		t.Errorf("Sections = %v, want none", c.Sections())
	}
}

func TestReloadFiresChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gloam.toml")
	write := func(s string) {
		if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("[zoom]\nspeed = 0.01\n[invert]\npreserve_hue = false\n")
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	var fired []string
	for _, name := range []string{"zoom", "invert", "blur"} {
		c.Section(name).Changed.Connect(func(s *Section) { fired = append(fired, s.Name) })
	}

	write("[zoom]\nspeed = 0.02\n[invert]\npreserve_hue = false\n")
	if err := c.Reload(); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(fired, []string{"zoom"}) {
		t.Errorf("Changed fired for %v, want [zoom]", fired)
	}
	assertNear(t, "speed", c.Section("zoom").Float("speed", 0), 0.02)

	fired = nil
	write("[zoom]\nspeed = 0.02\n")
	if err := c.Reload(); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(fired, []string{"invert"}) {
		t.Errorf("Changed fired for %v, want [invert]", fired)
	}
}

func TestReloadKeepsValuesOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gloam.toml")
	if err := os.WriteFile(path, []byte("[zoom]\nspeed = 0.01\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[zoom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("Reload error = %v, want one naming the file", err)
	}
	assertNear(t, "speed", c.Section("zoom").Float("speed", 0), 0.01)
}

func TestWatchPostsReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gloam.toml")
	if err := os.WriteFile(path, []byte("[zoom]\nspeed = 0.01\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	loop := NewEventLoop()
	ctx := t.Context()
	if err := c.Watch(ctx, loop); err != nil {
		t.Fatal(err)
	}
	speed := func() float64 { return c.Section("zoom").Float("speed", 0) }

	if err := os.WriteFile(path, []byte("[zoom]\nspeed = 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(5 * time.Second)
	// A write may show up as a truncate followed by the data.
	for speed() != 0.5 {
		select {
		case <-loop.Wake():
			loop.Dispatch()
		case <-deadline:
			t.Fatal("no reload within 5s")
		}
	}
}

func TestWatchDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gloam.toml")
	if err := os.WriteFile(path, []byte("[zoom]\nspeed = 0.01\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	loop := NewEventLoop()
	if err := c.Watch(t.Context(), loop); err != nil {
		t.Fatal(err)
	}
	changes := 0
	c.Section("zoom").Changed.Connect(func(*Section) { changes++ })
	speed := func() float64 { return c.Section("zoom").Float("speed", 0) }

	for _, v := range []string{"0.1", "0.2", "0.3"} {
		if err := os.WriteFile(path, []byte("[zoom]\nspeed = "+v+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	deadline := time.After(5 * time.Second)
	for speed() != 0.3 {
		select {
		case <-loop.Wake():
			loop.Dispatch()
		case <-deadline:
			t.Fatal("no reload within 5s")
		}
	}
	// Nothing else may arrive after the burst settled.
	quiet := time.After(3 * watchDebounce)
	for done := false; !done; {
		select {
		case <-loop.Wake():
			loop.Dispatch()
		case <-quiet:
			done = true
		}
	}
	if changes != 1 {
		t.Errorf("Changed fired %d times, want 1", changes)
	}
}

func TestWatchWithoutFile(t *testing.T) {
	c := mustParse(t, "")
	if err := c.Watch(t.Context(), NewEventLoop()); err == nil {
		t.Error("Watch on a parsed config should fail")
	}
}

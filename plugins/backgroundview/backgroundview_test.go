//go:build unix

package backgroundview

import (
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/gloam"
)

type fakeAcceptor struct {
	next  gloam.ClientID
	conns []*os.File
	err   error
}

func (a *fakeAcceptor) AcceptClient(conn *os.File) (gloam.ClientID, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.next++
	a.conns = append(a.conns, conn)
	return a.next, nil
}

func (a *fakeAcceptor) close() {
	for _, c := range a.conns {
		c.Close()
	}
}

// closingSurface records close requests.
type closingSurface struct {
	img    *ebiten.Image
	closed bool
}

func (s *closingSurface) Texture() *ebiten.Image { return s.img }
func (s *closingSurface) Close()                 { s.closed = true }

func setup(t *testing.T, conf string) (*gloam.Output, *Plugin, *fakeAcceptor) {
	t.Helper()
	cfg, err := gloam.ParseConfig([]byte(conf))
	if err != nil {
		t.Fatal(err)
	}
	o := gloam.NewOutput(gloam.OutputOptions{Width: 320, Height: 240})
	acc := &fakeAcceptor{}
	p := New(acc)
	if err := p.Init(o, cfg.Section(Name)); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		p.Fini()
		acc.close()
	})
	return o, p, acc
}

// waitFor dispatches the loop until cond holds.
func waitFor(t *testing.T, o *gloam.Output, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-o.Loop().Wake():
			o.Loop().Dispatch()
		case <-deadline:
			t.Fatal("timed out")
		}
	}
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		file    string
		want    []string
		wantErr bool
	}{
		{"default", DefaultCommand, "", []string{"mpv", "--no-keepaspect-window", "--loop=inf"}, false},
		{"file with spaces", "mpv --loop=inf", "/videos/my clip.mp4", []string{"mpv", "--loop=inf", "/videos/my clip.mp4"}, false},
		{"quoted", `sh -c "sleep 1"`, "", []string{"sh", "-c", "sleep 1"}, false},
		{"empty", "", "", nil, true},
		{"unterminated quote", `mpv "oops`, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildCommand(tt.command, tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("args = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInitNeedsAcceptor(t *testing.T) {
	o := gloam.NewOutput(gloam.OutputOptions{Width: 10, Height: 10})
	cfg, _ := gloam.ParseConfig(nil)
	err := New(nil).Init(o, cfg.Section(Name))
	if !errors.Is(err, ErrNoAcceptor) {
		t.Errorf("err = %v, want ErrNoAcceptor", err)
	}
}

func TestLaunchAndAdoptView(t *testing.T) {
	o, p, acc := setup(t, "[backgroundview]\ncommand = \"sleep 30\"\n")
	if p.PID() == 0 {
		t.Fatal("client not launched")
	}
	if len(acc.conns) != 1 {
		t.Fatalf("accepted %d connections, want 1", len(acc.conns))
	}

	other := gloam.NewView(&closingSurface{img: ebiten.NewImage(10, 10)}, gloam.Box{Width: 10, Height: 10})
	other.Client = 99
	o.MapView(other)
	if p.View() != nil || other.Layer != gloam.LayerWorkspace {
		t.Error("adopted a view of another client")
	}

	v := gloam.NewView(&closingSurface{img: ebiten.NewImage(10, 10)}, gloam.Box{X: 5, Y: 5, Width: 10, Height: 10})
	v.Client = acc.next
	o.MapView(v)
	if p.View() != v {
		t.Fatal("client view not adopted")
	}
	if v.Geometry() != o.Box() {
		t.Errorf("Geometry = %v, want %v", v.Geometry(), o.Box())
	}
	if v.Layer != gloam.LayerBackground || v.Role != gloam.RoleShell {
		t.Errorf("Layer = %v, Role = %v, want background shell view", v.Layer, v.Role)
	}
}

func TestConfigChangeRelaunches(t *testing.T) {
	o, p, acc := setup(t, "[backgroundview]\ncommand = \"sleep 30\"\n")
	first := p.PID()
	surf := &closingSurface{img: ebiten.NewImage(10, 10)}
	v := gloam.NewView(surf, gloam.Box{Width: 10, Height: 10})
	v.Client = acc.next
	o.MapView(v)

	next, _ := gloam.ParseConfig([]byte("[backgroundview]\ncommand = \"sleep 31\"\n"))
	p.optionsChanged(next.Section(Name))

	if !surf.closed {
		t.Error("old view not closed")
	}
	if p.PID() == 0 || p.PID() == first {
		t.Errorf("PID = %d after relaunch, first was %d", p.PID(), first)
	}
	if p.View() != nil {
		t.Error("old view still adopted")
	}
	waitFor(t, o, func() bool { return !p.stopping[first] })
}

func TestExitedClientEmptiesSlot(t *testing.T) {
	o, p, _ := setup(t, "[backgroundview]\ncommand = \"true\"\n")
	if p.PID() == 0 {
		t.Fatal("client not launched")
	}
	waitFor(t, o, func() bool { return p.PID() == 0 })
}

func TestAcceptFailureInterruptsClient(t *testing.T) {
	cfg, _ := gloam.ParseConfig([]byte("[backgroundview]\ncommand = \"sleep 30\"\n"))
	o := gloam.NewOutput(gloam.OutputOptions{Width: 10, Height: 10})
	p := New(&fakeAcceptor{err: errors.New("display gone")})
	if err := p.Init(o, cfg.Section(Name)); err != nil {
		t.Fatal(err)
	}
	defer p.Fini()
	if p.PID() != 0 {
		t.Error("slot filled although the client was rejected")
	}
	if len(p.stopping) != 1 {
		t.Errorf("stopping = %v, want the rejected client", p.stopping)
	}
	waitFor(t, o, func() bool { return len(p.stopping) == 0 })
}

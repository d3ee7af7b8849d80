//go:build unix

package backgroundview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"

	"github.com/mattn/go-shellwords"
	"golang.org/x/sys/unix"

	"github.com/phanxgames/gloam"
)

// Name is the plugin name used in configuration.
const Name = "backgroundview"

// DefaultCommand is the client launched when the command option is unset.
const DefaultCommand = "mpv --no-keepaspect-window --loop=inf"

// ErrNoAcceptor is returned by Init when no ClientAcceptor is configured.
var ErrNoAcceptor = errors.New("backgroundview: no client acceptor")

// ClientAcceptor registers the compositor end of a client socket and
// returns the id its views will carry.
type ClientAcceptor interface {
	AcceptClient(conn *os.File) (gloam.ClientID, error)
}

// Closer is implemented by surfaces whose client can be asked to close a
// view.
type Closer interface {
	Close()
}

// DefaultAcceptor is used by plugins created without an acceptor.
var DefaultAcceptor ClientAcceptor

func init() {
	gloam.RegisterPlugin(Name, func() gloam.Plugin { return New(nil) })
}

// process is the client running on one output.
type process struct {
	pid    int
	client gloam.ClientID
	view   *gloam.View
}

// Plugin is the background-view plugin for one output.
type Plugin struct {
	o        *gloam.Output
	log      *slog.Logger
	acceptor ClientAcceptor

	command, file string
	proc          process
	// stopping holds interrupted clients not reaped yet.
	stopping map[int]bool

	cancel     context.CancelFunc
	disconnect []func()
}

// New creates an unloaded plugin. A nil acceptor means DefaultAcceptor.
func New(acceptor ClientAcceptor) *Plugin {
	return &Plugin{acceptor: acceptor, stopping: make(map[int]bool)}
}

// Init starts reaping children and launches the client.
func (p *Plugin) Init(o *gloam.Output, cfg *gloam.Section) error {
	if p.acceptor == nil {
		p.acceptor = DefaultAcceptor
	}
	if p.acceptor == nil {
		return ErrNoAcceptor
	}
	p.o = o
	p.log = o.Logger().With("plugin", Name)
	p.readOptions(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.watchChildren(ctx)

	p.disconnect = append(p.disconnect,
		o.ViewMapped.Connect(p.viewMapped).Disconnect,
		cfg.Changed.Connect(p.optionsChanged).Disconnect,
	)
	if err := p.launch(); err != nil {
		p.log.Error("launch failed", "command", p.command, "error", err)
	}
	return nil
}

// Fini closes the background view and stops the client.
func (p *Plugin) Fini() {
	for _, d := range p.disconnect {
		d()
	}
	p.disconnect = nil
	p.stop()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// PID returns the pid of the running client, or 0.
func (p *Plugin) PID() int { return p.proc.pid }

// View returns the background view, or nil before the client maps one.
func (p *Plugin) View() *gloam.View { return p.proc.view }

func (p *Plugin) readOptions(cfg *gloam.Section) {
	p.command = cfg.String("command", DefaultCommand)
	p.file = cfg.String("file", "")
}

func (p *Plugin) optionsChanged(cfg *gloam.Section) {
	p.readOptions(cfg)
	p.stop()
	if err := p.launch(); err != nil {
		p.log.Error("relaunch failed", "command", p.command, "error", err)
	}
}

// buildCommand splits command into arguments and appends file, if any, as
// one argument.
func buildCommand(command, file string) ([]string, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parse command %q: empty", command)
	}
	if file != "" {
		args = append(args, file)
	}
	return args, nil
}

// launch starts the client with one end of a socket pair as fd 3.
func (p *Plugin) launch() error {
	args, err := buildCommand(p.command, p.file)
	if err != nil {
		return err
	}
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("socketpair: %w", err)
	}
	local := os.NewFile(uintptr(fds[0]), "wayland-server")
	remote := os.NewFile(uintptr(fds[1]), "wayland-client")

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), "WAYLAND_SOCKET=3")
	cmd.ExtraFiles = []*os.File{remote}
	p.log.Info("launching", "args", args)
	err = cmd.Start()
	remote.Close()
	if err != nil {
		local.Close()
		return fmt.Errorf("start %s: %w", args[0], err)
	}
	pid := cmd.Process.Pid
	// Children are reaped with Wait4; the exec.Cmd is not waited on.
	cmd.Process.Release()

	client, err := p.acceptor.AcceptClient(local)
	if err != nil {
		local.Close()
		p.interrupt(pid)
		return fmt.Errorf("accept client: %w", err)
	}
	p.proc = process{pid: pid, client: client}
	return nil
}

// stop closes the view and interrupts the client. The slot is empty
// afterwards; the process is reaped when it exits.
func (p *Plugin) stop() {
	if v := p.proc.view; v != nil {
		if c, ok := v.Surface().(Closer); ok {
			c.Close()
		} else if p.o != nil {
			p.o.UnmapView(v)
		}
	}
	if p.proc.pid != 0 {
		p.interrupt(p.proc.pid)
	}
	p.proc = process{}
}

func (p *Plugin) interrupt(pid int) {
	if err := unix.Kill(pid, unix.SIGINT); err != nil && !errors.Is(err, unix.ESRCH) {
		p.log.Warn("interrupt failed", "pid", pid, "error", err)
	}
	p.stopping[pid] = true
}

func (p *Plugin) viewMapped(v *gloam.View) {
	if p.proc.client == 0 || v.Client != p.proc.client {
		return
	}
	// The client runs with --no-keepaspect-window, so the view can simply be
	// stretched; fullscreen would inhibit the screensaver.
	v.Role = gloam.RoleShell
	v.SetGeometry(p.o.Box())
	p.o.MoveToLayer(v, gloam.LayerBackground)
	p.proc.view = v
}

// --- Reaping ---

// watchChildren posts a reap onto the event loop for every SIGCHLD until
// ctx is done.
func (p *Plugin) watchChildren(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGCHLD)
	loop := p.o.Loop()
	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				loop.Post(p.reap)
			}
		}
	}()
}

// reap collects exited clients. An exited running client leaves the slot
// empty so a config change can launch it again.
func (p *Plugin) reap() {
	if p.proc.pid != 0 && p.exited(p.proc.pid) {
		p.log.Info("client exited", "pid", p.proc.pid)
		p.proc = process{}
	}
	for pid := range p.stopping {
		if p.exited(pid) {
			delete(p.stopping, pid)
		}
	}
}

func (p *Plugin) exited(pid int) bool {
	var status unix.WaitStatus
	got, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
	if errors.Is(err, unix.ECHILD) {
		return true
	}
	if err != nil {
		p.log.Warn("wait failed", "pid", pid, "error", err)
		return false
	}
	return got == pid
}

package gloam

import (
	"context"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunConfig configures Run and NewHost.
type RunConfig struct {
	Title         string
	Width, Height int
	// Name is the output name used in logs and screenshot file names.
	Name string
	// Config supplies [core] and the plugin tables. Nil means defaults.
	Config *Config
	// Plugins is the registry plugins are loaded from. Nil uses DefaultPlugins.
	Plugins   *PluginRegistry
	Workspace Workspace
	Logger    *slog.Logger
	// Update runs every tick before the event loop dispatches. Input
	// handling and client simulation go here.
	Update func(o *Output) error
}

// Host runs one Output inside an Ebitengine game loop. It implements
// ebiten.Game.
type Host struct {
	output  *Output
	update  func(o *Output) error
	plugins []LoadedPlugin
	cancel  context.CancelFunc
}

// NewHost creates the output, applies the [core] options and loads the
// configured plugins. When the configuration has a backing file it is
// watched for changes until Close.
func NewHost(cfg RunConfig) (*Host, error) {
	conf := cfg.Config
	if conf == nil {
		conf = newConfig(nil)
	}
	core := conf.Core()
	SetDebugMode(core.Debug)

	o := NewOutput(OutputOptions{
		Name:          cfg.Name,
		Width:         cfg.Width,
		Height:        cfg.Height,
		Workspace:     cfg.Workspace,
		Logger:        cfg.Logger,
		ScreenshotDir: core.ScreenshotDir,
		Renderer:      RendererOptions{MaxTextureSize: core.MaxTextureSize},
	})
	conf.SetLogger(o.Logger())

	h := &Host{output: o, update: cfg.Update}
	if conf.Path() != "" {
		ctx, cancel := context.WithCancel(context.Background())
		if err := conf.Watch(ctx, o.Loop()); err != nil {
			cancel()
			return nil, err
		}
		h.cancel = cancel
	}

	reg := cfg.Plugins
	if reg == nil {
		reg = DefaultPlugins
	}
	h.plugins = reg.Load(o, conf, core.Plugins...)
	return h, nil
}

// Output returns the hosted output.
func (h *Host) Output() *Output { return h.output }

// Plugins returns the plugins that loaded successfully.
func (h *Host) Plugins() []LoadedPlugin { return h.plugins }

// Update implements ebiten.Game.
func (h *Host) Update() error {
	if h.update != nil {
		if err := h.update(h.output); err != nil {
			return err
		}
	}
	h.output.Loop().Dispatch()
	return nil
}

// Draw implements ebiten.Game.
func (h *Host) Draw(screen *ebiten.Image) {
	h.output.Present(screen)
}

// Layout implements ebiten.Game. The screen always matches the output size.
func (h *Host) Layout(_, _ int) (int, int) {
	return h.output.width, h.output.height
}

// Close unloads plugins and stops watching the configuration.
func (h *Host) Close() {
	UnloadPlugins(h.plugins)
	h.plugins = nil
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// Run opens a window and runs the output until the window closes or Update
// returns an error.
func Run(cfg RunConfig) error {
	h, err := NewHost(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	return ebiten.RunGame(h)
}

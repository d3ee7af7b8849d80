package gloam

import (
	"fmt"
	"maps"
	"slices"
)

// Plugin is an effect attached to one output. Init receives the plugin's
// configuration table; Fini must undo every hook and transformer the plugin
// installed.
type Plugin interface {
	Init(o *Output, cfg *Section) error
	Fini()
}

// PluginFactory creates a fresh plugin instance.
type PluginFactory func() Plugin

// PluginRegistry maps plugin names to factories.
type PluginRegistry struct {
	factories map[string]PluginFactory
}

// LoadedPlugin is a running plugin instance.
type LoadedPlugin struct {
	Name   string
	Plugin Plugin
}

// DefaultPlugins is the registry the bundled plugins register with.
var DefaultPlugins = &PluginRegistry{}

// RegisterPlugin adds a factory to DefaultPlugins.
func RegisterPlugin(name string, f PluginFactory) {
	DefaultPlugins.Register(name, f)
}

// Register adds a factory. Registering a name twice is a programming error
// and panics.
func (r *PluginRegistry) Register(name string, f PluginFactory) {
	if r.factories == nil {
		r.factories = make(map[string]PluginFactory)
	}
	if _, dup := r.factories[name]; dup {
		panic("gloam: plugin " + name + " registered twice")
	}
	r.factories[name] = f
}

// Names returns the registered plugin names, sorted.
func (r *PluginRegistry) Names() []string {
	return slices.Sorted(maps.Keys(r.factories))
}

// New creates an instance of the named plugin.
func (r *PluginRegistry) New(name string) (Plugin, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	return f(), nil
}

// Load creates and initializes the named plugins on o, in order. A plugin
// that is unknown or fails to initialize is logged and skipped.
func (r *PluginRegistry) Load(o *Output, cfg *Config, names ...string) []LoadedPlugin {
	var loaded []LoadedPlugin
	for _, name := range names {
		p, err := r.New(name)
		if err != nil {
			o.log.Error("plugin load failed", "plugin", name, "error", err)
			continue
		}
		if err := p.Init(o, cfg.Section(name)); err != nil {
			o.log.Error("plugin init failed", "plugin", name, "error", err)
			continue
		}
		o.log.Info("plugin loaded", "plugin", name)
		loaded = append(loaded, LoadedPlugin{Name: name, Plugin: p})
	}
	return loaded
}

// UnloadPlugins calls Fini on plugins in reverse load order.
func UnloadPlugins(plugins []LoadedPlugin) {
	for i := len(plugins) - 1; i >= 0; i-- {
		plugins[i].Plugin.Fini()
	}
}

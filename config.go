package gloam

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// CoreSection is the table holding options of the core itself.
const CoreSection = "core"

// watchDebounce is how long Watch waits after the last file event before
// reloading. Editors and os.WriteFile often produce several events per save.
var watchDebounce = 100 * time.Millisecond

// DefaultConfigPath returns ~/.config/gloam/gloam.toml.
func DefaultConfigPath() (string, error) {
	return homedir.Expand("~/.config/gloam/gloam.toml")
}

// Config is a parsed TOML configuration: one table per plugin plus [core].
// Sections are only read and updated on the event loop goroutine.
type Config struct {
	path     string
	sections map[string]*Section
	log      *slog.Logger
}

// Section is one table of the configuration. Getters return def when the
// key is missing or has the wrong type.
type Section struct {
	Name   string
	values map[string]any

	// Changed fires after a reload altered any value of the section.
	Changed Signal[*Section]
}

// CoreOptions are the values of the [core] table.
type CoreOptions struct {
	Plugins        []string
	Debug          bool
	MaxTextureSize int
	ScreenshotDir  string
}

// LoadConfig reads and parses the file at path. A missing file yields an
// empty configuration so every option takes its default.
func LoadConfig(path string) (*Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	tables, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	c := newConfig(tables)
	c.path = path
	return c, nil
}

// ParseConfig parses TOML data that has no backing file.
func ParseConfig(data []byte) (*Config, error) {
	tables, err := parseTables(data)
	if err != nil {
		return nil, err
	}
	return newConfig(tables), nil
}

func newConfig(tables map[string]map[string]any) *Config {
	c := &Config{sections: make(map[string]*Section, len(tables)), log: slog.Default()}
	for name, values := range tables {
		c.sections[name] = &Section{Name: name, values: values}
	}
	return c
}

func readConfigFile(path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	tables, err := parseTables(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return tables, nil
}

// parseTables decodes data and keeps only top-level tables. Top-level keys
// outside a table are ignored.
func parseTables(data []byte) (map[string]map[string]any, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	tables := make(map[string]map[string]any, len(raw))
	for name, v := range raw {
		if t, ok := v.(map[string]any); ok {
			tables[name] = t
		}
	}
	return tables, nil
}

// SetLogger sets the logger used for reload errors.
func (c *Config) SetLogger(log *slog.Logger) {
	if log != nil {
		c.log = log
	}
}

// Path returns the file the configuration was loaded from, or "".
func (c *Config) Path() string { return c.path }

// Section returns the named table. Missing tables are created empty so
// plugins can connect to Changed before the user adds them.
func (c *Config) Section(name string) *Section {
	s, ok := c.sections[name]
	if !ok {
		s = &Section{Name: name, values: map[string]any{}}
		c.sections[name] = s
	}
	return s
}

// Sections returns the names of all tables, sorted.
func (c *Config) Sections() []string {
	return slices.Sorted(maps.Keys(c.sections))
}

// Core returns the [core] options with defaults applied.
func (c *Config) Core() CoreOptions {
	s := c.Section(CoreSection)
	return CoreOptions{
		Plugins:        s.Strings("plugins", nil),
		Debug:          s.Bool("debug", false),
		MaxTextureSize: s.Int("max_texture_size", DefaultMaxTextureSize),
		ScreenshotDir:  s.String("screenshot_dir", "screenshots"),
	}
}

// Reload re-reads the backing file and applies it. Must run on the event
// loop goroutine.
func (c *Config) Reload() error {
	if c.path == "" {
		return nil
	}
	tables, err := readConfigFile(c.path)
	if err != nil {
		return err
	}
	c.apply(tables)
	return nil
}

// apply replaces section values and fires Changed on every section that
// differs. Sections absent from tables become empty.
func (c *Config) apply(tables map[string]map[string]any) {
	var changed []*Section
	for name, values := range tables {
		s := c.Section(name)
		if !reflect.DeepEqual(s.values, values) {
			s.values = values
			changed = append(changed, s)
		}
	}
	for name, s := range c.sections {
		if _, ok := tables[name]; !ok && len(s.values) > 0 {
			s.values = map[string]any{}
			changed = append(changed, s)
		}
	}
	slices.SortFunc(changed, func(a, b *Section) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	for _, s := range changed {
		s.Changed.Emit(s)
	}
}

// Watch reloads the configuration whenever its file is written or
// recreated, until ctx is done. Bursts of events within watchDebounce of
// each other cause one reload. Parsing happens on the watcher goroutine;
// the new values are applied through loop.Post.
func (c *Config) Watch(ctx context.Context, loop *EventLoop) error {
	if c.path == "" {
		return fmt.Errorf("watch config: no backing file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	// Editors often replace the file, so watch its directory.
	dir := filepath.Dir(c.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch config %s: %w", dir, err)
	}
	log := c.log
	path := filepath.Clean(c.path)

	go func() {
		defer w.Close()
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				tables, err := readConfigFile(path)
				if err != nil {
					log.Warn("config reload failed", "path", path, "error", err)
					continue
				}
				loop.Post(func() { c.apply(tables) })
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher", "error", err)
			}
		}
	}()
	return nil
}

// --- Section getters ---

// Has reports whether key is set.
func (s *Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// String returns a string option.
func (s *Section) String(key, def string) string {
	if v, ok := s.values[key].(string); ok {
		return v
	}
	return def
}

// Int returns an integer option. Floats with no fraction are accepted.
func (s *Section) Int(key string, def int) int {
	switch v := s.values[key].(type) {
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return def
}

// Float returns a floating-point option. Integers are accepted.
func (s *Section) Float(key string, def float64) float64 {
	switch v := s.values[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return def
}

// Bool returns a boolean option.
func (s *Section) Bool(key string, def bool) bool {
	if v, ok := s.values[key].(bool); ok {
		return v
	}
	return def
}

// Strings returns a string array option. Non-string elements make the
// whole value invalid.
func (s *Section) Strings(key string, def []string) []string {
	arr, ok := s.values[key].([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		str, ok := e.(string)
		if !ok {
			return def
		}
		out = append(out, str)
	}
	return out
}

// Animation returns an animation option. The value is either a number of
// milliseconds or a string such as "300ms circle".
func (s *Section) Animation(key string, def AnimationDescription) AnimationDescription {
	switch v := s.values[key].(type) {
	case int64:
		if v >= 0 {
			d := def
			d.Length = time.Duration(v) * time.Millisecond
			return d
		}
	case string:
		if d, err := ParseAnimation(v); err == nil {
			return d
		}
	}
	return def
}

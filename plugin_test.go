package gloam

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

type fakePlugin struct {
	name    string
	log     *[]string
	initErr error
	opt     string
}

func (p *fakePlugin) Init(o *Output, cfg *Section) error {
	p.opt = cfg.String("mode", "default")
	*p.log = append(*p.log, "init "+p.name)
	return p.initErr
}

func (p *fakePlugin) Fini() { *p.log = append(*p.log, "fini "+p.name) }

func TestPluginRegistryDuplicatePanics(t *testing.T) {
	var r PluginRegistry
	r.Register("zoom", func() Plugin { return &fakePlugin{} })
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Register("zoom", func() Plugin { return &fakePlugin{} })
}

func TestPluginRegistryUnknown(t *testing.T) {
	var r PluginRegistry
	if _, err := r.New("wobbly"); !errors.Is(err, ErrUnknownPlugin) {
		t.Errorf("err = %v, want ErrUnknownPlugin", err)
	}
}

func TestPluginLoadSkipsFailures(t *testing.T) {
	var buf bytes.Buffer
	o := newTestOutput(OutputOptions{Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	cfg := mustParse(t, "[good]\nmode = \"fast\"\n")

	var log []string
	var good *fakePlugin
	var r PluginRegistry
	r.Register("good", func() Plugin {
		good = &fakePlugin{name: "good", log: &log}
		return good
	})
	r.Register("bad", func() Plugin {
		return &fakePlugin{name: "bad", log: &log, initErr: errors.New("no gpu")}
	})
	r.Register("other", func() Plugin { return &fakePlugin{name: "other", log: &log} })

	loaded := r.Load(o, cfg, "bad", "missing", "good", "other")
	if len(loaded) != 2 || loaded[0].Name != "good" || loaded[1].Name != "other" {
		t.Fatalf("loaded = %v, want [good other]", loaded)
	}
	if good.opt != "fast" {
		t.Errorf("good saw mode %q, want fast", good.opt)
	}
	for _, want := range []string{"no gpu", "missing", "unknown plugin"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log missing %q: %s", want, buf.String())
		}
	}

	log = nil
	UnloadPlugins(loaded)
	if want := []string{"fini other", "fini good"}; !slices.Equal(log, want) {
		t.Errorf("fini order = %v, want %v", log, want)
	}
	if got := r.Names(); !slices.Equal(got, []string{"bad", "good", "other"}) {
		t.Errorf("Names = %v", got)
	}
}

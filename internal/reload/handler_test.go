package reload

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danielfernandez00/mi-webhook/internal/config"
	"github.com/danielfernandez00/mi-webhook/internal/core"
)

// recordingModule records the configuration it receives on Reload.
type recordingModule struct {
	id core.ModuleID

	mu      sync.Mutex
	reloads []string
	err     error
}

func (m *recordingModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: m.id, New: func() core.Module { return &recordingModule{id: m.id} }}
}

func (m *recordingModule) Reload(ctx *core.AppContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	node, ok := ctx.ModuleConfig(m.id)
	if !ok {
		m.reloads = append(m.reloads, "")
		return nil
	}
	var cfg struct {
		Value string `yaml:"value"`
	}
	if err := node.Decode(&cfg); err != nil {
		return err
	}
	m.reloads = append(m.reloads, cfg.Value)
	return nil
}

func (m *recordingModule) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reloads...)
}

func init() {
	core.RegisterModule(&recordingModule{id: "gateway.recorder"})
	core.RegisterModule(&recordingModule{id: "provider.recorder"})
	core.RegisterModule(&recordingModule{id: "fulfillment.recorder"})
}

const validConfig = `version: "1"
modules:
  gateway.recorder:
    value: gw
  provider.recorder:
    value: prov
  fulfillment.recorder:
    value: ful
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webhook.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	return path
}

func newHandler(t *testing.T, path string, mods ...*recordingModule) *Handler {
	t.Helper()
	base := core.NewAppContext(testLogger(), t.TempDir())
	app := core.NewApp(base)
	for _, m := range mods {
		app.AppendModule(m.id, m)
	}
	return NewHandler(app, base, path, "gateway", "provider", "fulfillment")
}

func TestHandler_HandleReload_FileNotFound(t *testing.T) {
	h := newHandler(t, "/nonexistent/webhook.yaml")
	if err := h.HandleReload(context.Background()); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestHandler_HandleReload_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no modules", content: "version: \"1\"\nmodules: {}\n"},
		{name: "unknown module", content: "version: \"1\"\nmodules:\n  fake.mod: {}\n"},
		{name: "missing namespace", content: "version: \"1\"\nmodules:\n  gateway.recorder: {}\n  provider.recorder: {}\n"},
		{name: "bad version", content: "version: \"2\"\nmodules:\n  gateway.recorder: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingModule{id: "gateway.recorder"}
			h := newHandler(t, writeConfig(t, tt.content), rec)

			if err := h.HandleReload(context.Background()); err == nil {
				t.Fatal("expected validation error")
			}
			if got := rec.seen(); len(got) != 0 {
				t.Errorf("module reloaded with invalid config: %v", got)
			}
		})
	}
}

func TestHandler_HandleReload_PassesModuleConfig(t *testing.T) {
	gw := &recordingModule{id: "gateway.recorder"}
	ful := &recordingModule{id: "fulfillment.recorder"}
	h := newHandler(t, writeConfig(t, validConfig), gw, ful)

	if err := h.HandleReload(context.Background()); err != nil {
		t.Fatalf("HandleReload: %v", err)
	}

	if got := gw.seen(); len(got) != 1 || got[0] != "gw" {
		t.Errorf("gateway reloads = %v, want [gw]", got)
	}
	if got := ful.seen(); len(got) != 1 || got[0] != "ful" {
		t.Errorf("fulfillment reloads = %v, want [ful]", got)
	}
}

func TestHandler_ReloadConfig_ReadsFileEachTime(t *testing.T) {
	path := writeConfig(t, validConfig)
	ful := &recordingModule{id: "fulfillment.recorder"}
	h := newHandler(t, path, ful)

	if err := h.ReloadConfig(); err != nil {
		t.Fatalf("first ReloadConfig: %v", err)
	}

	updated := `version: "1"
modules:
  gateway.recorder: {}
  provider.recorder: {}
  fulfillment.recorder:
    value: changed
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewriting file: %v", err)
	}
	if err := h.ReloadConfig(); err != nil {
		t.Fatalf("second ReloadConfig: %v", err)
	}

	got := ful.seen()
	if len(got) != 2 || got[0] != "ful" || got[1] != "changed" {
		t.Errorf("reloads = %v, want [ful changed]", got)
	}
}

func TestHandler_HandleReload_ModuleError(t *testing.T) {
	boom := errors.New("boom")
	gw := &recordingModule{id: "gateway.recorder", err: boom}
	ful := &recordingModule{id: "fulfillment.recorder"}
	h := newHandler(t, writeConfig(t, validConfig), gw, ful)

	err := h.HandleReload(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapping %v", err, boom)
	}
	// Other modules still receive the new config.
	if got := ful.seen(); len(got) != 1 {
		t.Errorf("fulfillment reloads = %v, want one", got)
	}
}

func TestHandler_HandleReloadFromConfig_CancelledContext(t *testing.T) {
	h := newHandler(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.HandleReloadFromConfig(ctx, &config.Config{Version: "1"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestHandler_ConcurrentReloads(t *testing.T) {
	ful := &recordingModule{id: "fulfillment.recorder"}
	h := newHandler(t, writeConfig(t, validConfig), ful)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.ReloadConfig()
		}()
	}
	wg.Wait()

	if got := ful.seen(); len(got) != 8 {
		t.Errorf("reloads = %d, want 8", len(got))
	}
}

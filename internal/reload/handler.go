package reload

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/danielfernandez00/mi-webhook/internal/config"
	"github.com/danielfernandez00/mi-webhook/internal/core"
)

// Handler reloads application configuration and notifies modules.
// Reloads are serialized; SIGHUP, the file watcher and the admin API may
// trigger them concurrently.
type Handler struct {
	mu         sync.Mutex
	app        *core.App
	base       *core.AppContext
	configPath string
	namespaces []string
	logger     *slog.Logger
}

// NewHandler creates a reload handler. base supplies the logger, data dir
// and the service registry the running modules share. A reloaded config
// must still contain modules in every namespace of required.
func NewHandler(app *core.App, base *core.AppContext, configPath string, required ...string) *Handler {
	return &Handler{
		app:        app,
		base:       base,
		configPath: configPath,
		namespaces: required,
		logger:     base.Logger,
	}
}

// ReloadConfig reloads from the handler's config path.
func (h *Handler) ReloadConfig() error {
	return h.HandleReload(context.Background())
}

// HandleReload loads a fresh config from disk, validates it, and calls Reload
// on all modules that implement core.Reloader.
func (h *Handler) HandleReload(ctx context.Context) error {
	cfg, err := config.Load(h.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if err := config.RequireNamespaces(cfg, h.namespaces...); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return h.HandleReloadFromConfig(ctx, cfg)
}

// HandleReloadFromConfig reloads modules from a pre-loaded, already-validated
// config. The caller is responsible for calling config.Validate before this
// method; it will not re-validate.
func (h *Handler) HandleReloadFromConfig(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.warnModuleSetChange(cfg)

	appCtx := h.base.WithModuleConfigs(cfg.Modules)
	if err := h.app.ReloadModules(appCtx); err != nil {
		return fmt.Errorf("reloading modules: %w", err)
	}

	h.logger.Info("configuration reloaded successfully")
	return nil
}

// warnModuleSetChange logs modules added or removed by cfg. Such changes
// only take effect after a restart.
func (h *Handler) warnModuleSetChange(cfg *config.Config) {
	wanted := config.Resolve(cfg)
	for _, id := range wanted {
		if _, ok := h.app.Module(core.ModuleID(id)); !ok {
			h.logger.Warn("module added to config, restart required", "module", id)
		}
	}
	for _, id := range h.app.ModuleIDs() {
		if _, registered := core.GetModule(string(id)); !registered {
			continue
		}
		if !slices.Contains(wanted, string(id)) {
			h.logger.Warn("module removed from config, restart required", "module", string(id))
		}
	}
}

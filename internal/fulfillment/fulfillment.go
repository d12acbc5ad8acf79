// Package fulfillment implements the Dialogflow fulfillment webhook: it
// normalizes the inbound request, keeps a short per-user history, builds
// the prompt for the matched intent and returns the completion as
// fulfillmentText.
package fulfillment

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/core"
	"github.com/danielfernandez00/mi-webhook/internal/provider"
	"github.com/danielfernandez00/mi-webhook/internal/security"
	"gopkg.in/yaml.v3"
)

// ModuleID identifies the fulfillment module.
const ModuleID core.ModuleID = "fulfillment.dialogflow"

// HandlerService is the service key of the webhook handler.
const HandlerService = "fulfillment.handler"

// ProviderService is the service key the completion provider registers under.
const ProviderService = "provider.default"

var errNotStarted = errors.New("fulfillment: module not started")

func init() {
	core.RegisterModule(&Module{})
}

// Module wires the webhook Handler into the application lifecycle.
type Module struct {
	config  Config
	store   conversation.Store
	handler *Handler
	ctx     *core.AppContext
	logger  *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. A store registered by a memory
// module is used as is; otherwise an in-memory store is created.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.ctx = ctx
	m.logger = ctx.Logger
	m.config.defaults()

	if err := m.config.loadKnowledge(); err != nil {
		return err
	}

	if store, ok := core.LookupService[conversation.Store](ctx, conversation.StoreService); ok {
		m.store = store
	} else {
		opts := []conversation.Option{conversation.WithMaxTurns(m.config.MaxTurns)}
		if m.config.MaxUsers > 0 {
			opts = append(opts, conversation.WithMaxUsers(m.config.MaxUsers))
		}
		m.store = conversation.NewInMemoryStore(opts...)
		ctx.RegisterService(conversation.StoreService, m.store)
	}

	ctx.RegisterService(HandlerService, m)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. It resolves the provider and the metrics
// recorder, which are registered by modules provisioned earlier.
func (m *Module) Start() error {
	p, ok := core.LookupService[provider.Provider](m.ctx, ProviderService)
	if !ok {
		return fmt.Errorf("fulfillment: no provider registered as %q", ProviderService)
	}
	rec, ok := core.LookupService[Recorder](m.ctx, MetricsService)
	if !ok {
		rec = nopRecorder{}
	}

	h, err := NewHandler(m.config, Deps{
		Store:    m.store,
		Provider: p,
		Recorder: rec,
		Logger:   m.logger,
	})
	if err != nil {
		return err
	}
	m.handler = h
	m.logger.Info("fulfillment: ready",
		"path", m.config.Path,
		"model", p.ModelName(),
		"intents", len(m.config.Intents),
	)
	return nil
}

// Reload implements core.Reloader. Prompts, intents, follow-ups and reply
// texts are swapped; the store and its bounds are kept.
func (m *Module) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig(ModuleID)
	if !ok {
		return fmt.Errorf("fulfillment: %s missing from reloaded config", ModuleID)
	}
	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return fmt.Errorf("fulfillment: decoding reloaded config: %w", err)
	}
	cfg.defaults()
	if err := cfg.loadKnowledge(); err != nil {
		return err
	}
	if m.handler == nil {
		return errNotStarted
	}
	if cfg.Path != m.config.Path {
		m.logger.Warn("fulfillment: path change needs a restart", "path", m.config.Path)
		cfg.Path = m.config.Path
	}
	if err := m.handler.update(cfg); err != nil {
		return err
	}
	m.config = cfg
	m.logger.Info("fulfillment: configuration reloaded", "intents", len(cfg.Intents))
	return nil
}

// ServeHTTP implements http.Handler by delegating to the started Handler.
func (m *Module) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.handler == nil {
		http.Error(w, errNotStarted.Error(), http.StatusServiceUnavailable)
		return
	}
	m.handler.ServeHTTP(w, r)
}

// Path returns the configured webhook route.
func (m *Module) Path() string { return m.config.Path }

// Store returns the conversation store in use.
func (m *Module) Store() conversation.Store { return m.store }

// Lanes returns the per-user lock, or nil before Start.
func (m *Module) Lanes() *conversation.LaneLock {
	if m.handler == nil {
		return nil
	}
	return m.handler.Lanes()
}

// Limiter returns the per-user rate limiter, or nil before Start.
func (m *Module) Limiter() *security.RateLimiter {
	if m.handler == nil {
		return nil
	}
	return m.handler.Limiter()
}

// IdleTTL returns how long idle conversations are kept.
func (m *Module) IdleTTL() time.Duration { return m.config.IdleTTL }

// CleanupSchedule returns the cron expression for idle eviction.
func (m *Module) CleanupSchedule() string { return m.config.CleanupSchedule }

// Compile-time interface assertions.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Reloader     = (*Module)(nil)
	_ http.Handler      = (*Module)(nil)
)

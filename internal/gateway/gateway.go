package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/core"
	"github.com/danielfernandez00/mi-webhook/internal/provider"
	"github.com/danielfernandez00/mi-webhook/internal/security"
	"github.com/shirou/gopsutil/v4/process"
	"gopkg.in/yaml.v3"
)

// Service keys.
const (
	MetricsService  = "gateway.metrics"
	HandlerService  = "fulfillment.handler"
	ProviderService = "provider.default"
	ReloaderService = "app.reloader"

	// AuthLimiterService exposes the admin auth limiter for idle sweeping.
	AuthLimiterService = "gateway.auth_limiter"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config      Config
	appCtx      *core.AppContext
	logger      *slog.Logger
	server      *http.Server
	addr        net.Addr
	metrics     *Metrics
	authLimiter *security.RateLimiter
	startedAt   time.Time
	proc        *process.Process

	// Resolved lazily at Start() via service registry.
	webhook  WebhookHandler
	store    conversation.Store
	provider provider.Provider
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The metrics recorder is registered
// here so the fulfillment module can resolve it when it starts.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	g.authLimiter = security.NewRateLimiter(g.config.AuthRateLimit)
	g.proc = selfProcess()

	if redactor, ok := core.LookupService[*security.Redactor](ctx, security.RedactorService); ok {
		redactor.AddLiteral(g.config.Auth.BearerToken)
		redactor.AddLiteral(g.config.Auth.BasicPass)
		redactor.AddLiteral(g.config.Webhook.Secret)
	}

	ctx.RegisterService(MetricsService, g.metrics)
	ctx.RegisterService(AuthLimiterService, g.authLimiter)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if g.config.Auth.BasicUser != "" && g.config.Auth.BasicPass == "" {
		return errors.New("gateway: auth.basic_pass is required with auth.basic_user")
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	if err := g.resolve(); err != nil {
		return err
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.buildRouter(),
		ReadTimeout:       g.config.ReadTimeout,
		ReadHeaderTimeout: g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolve binds the optional services other modules registered.
// Missing services degrade gracefully.
func (g *Gateway) resolve() error {
	if h, ok := core.LookupService[WebhookHandler](g.appCtx, HandlerService); ok {
		g.webhook = h
	} else {
		g.logger.Warn("gateway: no fulfillment handler registered, webhook not mounted")
	}
	if store, ok := core.LookupService[conversation.Store](g.appCtx, conversation.StoreService); ok {
		g.store = store
		if err := g.metrics.TrackConversations(store); err != nil {
			return fmt.Errorf("gateway: registering conversation gauge: %w", err)
		}
	}
	if p, ok := core.LookupService[provider.Provider](g.appCtx, ProviderService); ok {
		g.provider = p
	}
	if !g.config.Auth.IsConfigured() {
		g.logger.Info("gateway: admin API disabled, no auth configured")
	}
	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Addr returns the bound listener address, or nil before Start.
func (g *Gateway) Addr() net.Addr { return g.addr }

// Compile-time interface assertions.
var (
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

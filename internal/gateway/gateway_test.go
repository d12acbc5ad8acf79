package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/core"
	"github.com/danielfernandez00/mi-webhook/internal/security"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	info := g.ModuleInfo()

	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if info.New == nil {
		t.Fatal("New func is nil")
	}

	mod := info.New()
	if _, ok := mod.(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}

	node := mustYAMLNode(t, "{}")
	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:5000" {
		t.Errorf("Bind = %q, want default", g.config.Bind)
	}
	if g.config.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", g.config.ReadTimeout)
	}
	if g.config.WriteTimeout != 45*time.Second {
		t.Errorf("WriteTimeout = %v, want 45s", g.config.WriteTimeout)
	}
	if g.config.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", g.config.ShutdownTimeout)
	}
	if g.config.Webhook.Header != "" {
		t.Errorf("Webhook.Header = %q, want empty without secret", g.config.Webhook.Header)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	node := mustYAMLNode(t, `
bind: "0.0.0.0:9090"
read_timeout: 5s
write_timeout: 60s
shutdown_timeout: 10s
auth:
  bearer_token: "my-token"
webhook:
  secret: "df-secret"
`)

	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "0.0.0.0:9090" {
		t.Errorf("Bind = %q, want custom", g.config.Bind)
	}
	if g.config.Auth.BearerToken != "my-token" {
		t.Errorf("BearerToken = %q", g.config.Auth.BearerToken)
	}
	if g.config.Webhook.Header != "X-Webhook-Secret" || g.config.Webhook.Secret != "df-secret" {
		t.Errorf("Webhook = %+v", g.config.Webhook)
	}
}

func TestGateway_ProvisionRegistersMetrics(t *testing.T) {
	t.Parallel()

	g := &Gateway{config: Config{Auth: AuthConfig{BearerToken: "tok-123456"}}}
	appCtx := core.NewAppContext(discardLogger(), "")
	redactor := security.NewRedactor()
	appCtx.RegisterService(security.RedactorService, redactor)

	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if _, ok := core.LookupService[*Metrics](appCtx, MetricsService); !ok {
		t.Error("gateway.metrics not registered")
	}
	if got := redactor.Redact("token tok-123456"); strings.Contains(got, "tok-123456") {
		t.Errorf("bearer token not redacted: %q", got)
	}
}

func TestGateway_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Bind: "127.0.0.1:5000"}, false},
		{"bad bind", Config{Bind: "not an address"}, true},
		{"basic user without pass", Config{Bind: "127.0.0.1:5000", Auth: AuthConfig{BasicUser: "admin"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := &Gateway{config: tt.cfg}
			if err := g.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGateway_WebhookRoute(t *testing.T) {
	t.Parallel()

	hook := &stubWebhook{}
	_, router := newTestGateway(t, Config{}, func(ctx *core.AppContext) {
		ctx.RegisterService(HandlerService, hook)
	})

	rr := do(t, router, http.MethodPost, "/webhook", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /webhook status = %d", rr.Code)
	}
	if got := decodeJSON[map[string]string](t, rr)["fulfillmentText"]; got != "hola" {
		t.Errorf("fulfillmentText = %q", got)
	}

	rr = do(t, router, http.MethodGet, "/webhook", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /webhook status = %d, want 405", rr.Code)
	}
	if hook.Calls() != 1 {
		t.Errorf("webhook calls = %d, want 1", hook.Calls())
	}
}

func TestGateway_WebhookSecretEnforced(t *testing.T) {
	t.Parallel()

	hook := &stubWebhook{}
	cfg := Config{Webhook: WebhookConfig{Secret: "df-secret"}}
	_, router := newTestGateway(t, cfg, func(ctx *core.AppContext) {
		ctx.RegisterService(HandlerService, hook)
	})

	rr := do(t, router, http.MethodPost, "/webhook", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("without secret: status = %d, want 401", rr.Code)
	}

	rr = do(t, router, http.MethodPost, "/webhook", func(r *http.Request) {
		r.Header.Set("X-Webhook-Secret", "df-secret")
	})
	if rr.Code != http.StatusOK {
		t.Errorf("with secret: status = %d, want 200", rr.Code)
	}
	if hook.Calls() != 1 {
		t.Errorf("webhook calls = %d, want 1", hook.Calls())
	}
}

func TestGateway_AdminNotMountedWithoutAuth(t *testing.T) {
	t.Parallel()

	_, router := newTestGateway(t, Config{}, nil)

	for _, path := range []string{"/status", "/api/conversations", "/api/modules"} {
		if rr := do(t, router, http.MethodGet, path, nil); rr.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rr.Code)
		}
	}
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.config.Bind = "127.0.0.1:0"
	g.config.defaults()

	appCtx := core.NewAppContext(discardLogger(), "")
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	appCtx.RegisterService(HandlerService, &stubWebhook{})

	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	url := fmt.Sprintf("http://%s/health", g.Addr())
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGateway_StopWithoutStart(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Stop(context.Background()); err != nil {
		t.Errorf("Stop without Start: %v", err)
	}
}

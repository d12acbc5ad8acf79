package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/danielfernandez00/mi-webhook/internal/core"
	"gopkg.in/yaml.v3"
)

func mustYAMLNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("empty YAML document")
	}
	return doc.Content[0]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubWebhook answers every request with a fixed fulfillment text.
type stubWebhook struct {
	mu    sync.Mutex
	calls int
}

func (s *stubWebhook) Path() string { return "/webhook" }

func (s *stubWebhook) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"fulfillmentText": "hola"})
}

func (s *stubWebhook) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubRunner struct {
	err  error
	runs []string
}

func (r *stubRunner) RunNow(name string) error {
	r.runs = append(r.runs, name)
	return r.err
}

type stubReloader struct {
	err   error
	calls int
}

func (r *stubReloader) ReloadConfig() error {
	r.calls++
	return r.err
}

// newTestGateway provisions a gateway over a fresh AppContext, lets setup
// register services, resolves them and returns the router.
func newTestGateway(t *testing.T, cfg Config, setup func(ctx *core.AppContext)) (*Gateway, http.Handler) {
	t.Helper()

	g := &Gateway{config: cfg}
	appCtx := core.NewAppContext(discardLogger(), t.TempDir())
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if setup != nil {
		setup(appCtx)
	}
	if err := g.resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return g, g.buildRouter()
}

func do(t *testing.T, h http.Handler, method, path string, prepare func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if prepare != nil {
		prepare(req)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding body %q: %v", rr.Body.String(), err)
	}
	return v
}

package fulfillment

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/provider"
)

const testKnowledge = "Eres el asistente de la tienda. Horario: 9 a 18."

func testConfig() Config {
	cfg := Config{Knowledge: testKnowledge}
	cfg.defaults()
	return cfg
}

func newTestHandler(t *testing.T, p provider.Provider, mutate func(*Config)) (*Handler, *conversation.InMemoryStore) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	store := conversation.NewInMemoryStore(conversation.WithMaxTurns(cfg.MaxTurns))
	h, err := NewHandler(cfg, Deps{
		Store:    store,
		Provider: p,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h, store
}

type reqOpt func(map[string]any)

func withIntent(name string) reqOpt {
	return func(m map[string]any) {
		m["queryResult"].(map[string]any)["intent"] = map[string]any{"displayName": name}
	}
}

func withSession(s string) reqOpt {
	return func(m map[string]any) { m["session"] = s }
}

func withContexts(names ...string) reqOpt {
	return func(m map[string]any) {
		ctxs := make([]map[string]any, 0, len(names))
		for _, n := range names {
			ctxs = append(ctxs, map[string]any{"name": n, "lifespanCount": 2})
		}
		m["queryResult"].(map[string]any)["outputContexts"] = ctxs
	}
}

func withUserID(id any) reqOpt {
	return func(m map[string]any) {
		m["originalDetectIntentRequest"] = map[string]any{
			"source":  "telegram",
			"payload": map[string]any{"userId": id},
		}
	}
}

func requestBody(t *testing.T, text string, opts ...reqOpt) string {
	t.Helper()
	m := map[string]any{
		"responseId":  "resp-1",
		"queryResult": map[string]any{"queryText": text, "languageCode": "es"},
	}
	for _, o := range opts {
		o(m)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

func post(t *testing.T, h http.Handler, body string) (int, WebhookResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp WebhookResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response (status %d): %v", rec.Code, err)
	}
	return rec.Code, resp
}

// serve is safe to call from goroutines other than the test's.
func serve(h http.Handler, body string) int {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func mustGet(t *testing.T, s conversation.Store, userID string) []conversation.Turn {
	t.Helper()
	turns, err := s.Get(userID)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", userID, err)
	}
	return turns
}

// recordingRecorder captures metric observations.
type recordingRecorder struct {
	mu        sync.Mutex
	outcomes  []string
	providers int
}

func (r *recordingRecorder) ObserveRequest(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingRecorder) ObserveProvider(time.Duration, provider.TokenUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers++
}

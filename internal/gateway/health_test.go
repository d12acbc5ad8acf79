package gateway

import (
	"net/http"
	"testing"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/core"
)

// failingStore reports errors from every read.
type failingStore struct {
	conversation.Store
}

func (failingStore) Len() (int, error) { return 0, errBoom }

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setup     func(*core.AppContext)
		wantCode  int
		wantState string
		wantUsers int
	}{
		{
			name: "ok",
			setup: func(ctx *core.AppContext) {
				store := conversation.NewInMemoryStore()
				_ = store.Append("u1", conversation.UserTurn("hola"))
				ctx.RegisterService(HandlerService, &stubWebhook{})
				ctx.RegisterService(conversation.StoreService, store)
			},
			wantCode:  http.StatusOK,
			wantState: "ok",
			wantUsers: 1,
		},
		{
			name:      "no webhook",
			setup:     nil,
			wantCode:  http.StatusServiceUnavailable,
			wantState: "degraded",
		},
		{
			name: "store failure",
			setup: func(ctx *core.AppContext) {
				ctx.RegisterService(HandlerService, &stubWebhook{})
				ctx.RegisterService(conversation.StoreService, failingStore{})
			},
			wantCode:  http.StatusServiceUnavailable,
			wantState: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, router := newTestGateway(t, Config{}, tt.setup)
			rr := do(t, router, http.MethodGet, "/health", nil)

			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			resp := decodeJSON[HealthResponse](t, rr)
			if resp.Status != tt.wantState {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantState)
			}
			if resp.Users != tt.wantUsers {
				t.Errorf("Users = %d, want %d", resp.Users, tt.wantUsers)
			}
		})
	}
}

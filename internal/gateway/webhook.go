package gateway

import (
	"encoding/json"
	"net/http"
)

// WebhookHandler is the fulfillment endpoint mounted by the gateway.
type WebhookHandler interface {
	http.Handler
	Path() string
}

// webhookSecret rejects requests whose cfg.Header does not carry cfg.Secret.
// Rejections keep the fulfillment envelope so the agent platform can still
// parse the body. With no secret configured it is a pass-through.
func webhookSecret(cfg WebhookConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.Secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !constantTimeEqual(r.Header.Get(cfg.Header), cfg.Secret) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"fulfillmentText": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

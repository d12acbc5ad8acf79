package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Users  int    `json:"users"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 503 when the webhook is not mounted or the store cannot be read.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.webhook == nil {
			resp.Status = "degraded"
		}
		if g.store != nil {
			n, err := g.store.Len()
			if err != nil {
				g.logger.Warn("gateway: health store check failed", "error", err)
				resp.Status = "degraded"
			}
			resp.Users = n
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth.
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", g.metrics.Handler())

	// Fulfillment, behind the optional shared-secret header.
	if g.webhook != nil {
		r.With(webhookSecret(g.config.Webhook)).Post(g.webhook.Path(), g.webhook.ServeHTTP)
	}

	// Admin endpoints require auth and are not mounted without it.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger, g.authLimiter))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/modules", g.handleGetAllModules())
				r.Post("/config/reload", g.handleReloadConfig())
				if g.store != nil {
					r.Get("/conversations", g.handleListConversations())
					r.Post("/conversations/prune", g.handlePrune())
					r.Get("/conversations/{userID}", g.handleGetConversation())
					r.Delete("/conversations/{userID}", g.handleDeleteConversation())
				}
			})
		})
	}

	return r
}

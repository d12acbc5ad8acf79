// Package gateway provides the HTTP server: the fulfillment webhook, health
// and metrics endpoints, and an authenticated admin API over stored
// conversations. It follows the module system pattern.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/core"
	"github.com/danielfernandez00/mi-webhook/internal/cron"
	"github.com/go-chi/chi/v5"
)

// JobRunner triggers a scheduled job out of band.
type JobRunner interface {
	RunNow(name string) error
}

// ConfigReloader re-reads the configuration file and reloads modules.
type ConfigReloader interface {
	ReloadConfig() error
}

// conversationJSON is a serializable conversation snapshot.
type conversationJSON struct {
	UserID string              `json:"user_id"`
	Turns  []conversation.Turn `json:"turns"`
}

// handleListConversations returns every stored user with its history length.
func (g *Gateway) handleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		users, err := g.store.Users()
		if err != nil {
			g.logger.Error("gateway: listing conversations failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list conversations"})
			return
		}
		if users == nil {
			users = []conversation.UserInfo{}
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// handleGetConversation returns the stored turns for one user.
func (g *Gateway) handleGetConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		turns, err := g.store.Get(userID)
		if err != nil {
			g.logger.Error("gateway: reading conversation failed", "user_id", userID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read conversation"})
			return
		}
		if len(turns) == 0 {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, conversationJSON{UserID: userID, Turns: turns})
	}
}

// handleDeleteConversation forgets one user's history.
func (g *Gateway) handleDeleteConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		turns, err := g.store.Get(userID)
		if err != nil {
			g.logger.Error("gateway: reading conversation failed", "user_id", userID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read conversation"})
			return
		}
		if len(turns) == 0 {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		if err := g.store.Purge(userID); err != nil {
			g.logger.Error("gateway: deleting conversation failed", "user_id", userID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete conversation"})
			return
		}
		g.logger.Info("gateway: conversation deleted", "user_id", userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePrune runs the idle-conversation cleanup job immediately.
func (g *Gateway) handlePrune() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		runner, ok := core.LookupService[JobRunner](g.appCtx, cron.SchedulerService)
		if !ok {
			http.Error(w, "scheduler not available", http.StatusServiceUnavailable)
			return
		}
		switch err := runner.RunNow(cron.ConversationCleanupJobName); {
		case errors.Is(err, cron.ErrJobRunning):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "pruned"})
		}
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleGetAllModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleReloadConfig triggers a hot-reload of the configuration.
func (g *Gateway) handleReloadConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		reloader, ok := core.LookupService[ConfigReloader](g.appCtx, ReloaderService)
		if !ok {
			http.Error(w, "reload not available", http.StatusServiceUnavailable)
			return
		}
		if err := reloader.ReloadConfig(); err != nil {
			g.logger.Error("gateway: config reload failed", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

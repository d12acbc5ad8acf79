package gateway

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/danielfernandez00/mi-webhook/internal/security"
)

// authMiddleware returns a chi-compatible middleware that validates Bearer token
// or Basic auth credentials using constant-time comparison.
// If a RateLimiter is provided, failed attempts are counted per client
// address; a client over its allowance gets 429 until the window passes.
func authMiddleware(cfg AuthConfig, logger *slog.Logger, rateLimiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r)
			if rateLimiter.Exceeded(addr) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				_ = rateLimiter.Allow(addr)
				logAuthFailure(logger, r, "missing authorization header")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			// Try Bearer token first.
			if cfg.BearerToken != "" {
				if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
					if constantTimeEqual(after, cfg.BearerToken) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			// Try Basic auth.
			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					next.ServeHTTP(w, r)
					return
				}
			}

			_ = rateLimiter.Allow(addr)
			logAuthFailure(logger, r, "invalid credentials")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, detail string) {
	if logger == nil {
		return
	}
	logger.Warn("gateway: admin auth failed",
		"detail", detail,
		"remote_addr", r.RemoteAddr,
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// clientAddr strips the port from RemoteAddr.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Package security holds the webhook's secret-handling and abuse controls:
// a log redactor and a per-key request limiter.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactorService is the service key under which the process-wide
// Redactor is published in core.AppContext.
const RedactorService = "security.redactor"

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches map keys that likely contain secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|key|credential|authorization)`)

// Redactor replaces secret values in strings and maps with a redaction placeholder.
// It supports regex patterns for known API key shapes and literal values
// registered at runtime (the configured provider key, the admin token).
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: DefaultPatterns(),
	}
}

// AddPattern adds a compiled regex pattern to the redactor.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral adds a literal secret value that should be redacted on sight.
// Empty strings and duplicates are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lit := range r.literals {
		if lit == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s
// with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	// Literals first: a registered key may also match a pattern, and
	// replacing the whole literal keeps no partial suffix behind.
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// RedactMap walks a map and replaces values whose keys look like secret
// names. Used when a module config is echoed by the admin API.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if secretKeyPattern.MatchString(k) {
			if s, ok := v.(string); ok && s != "" {
				m[k] = RedactPlaceholder
				continue
			}
		}
		switch val := v.(type) {
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					r.RedactMap(sub)
				}
			}
		case string:
			if redacted := r.Redact(val); redacted != val {
				m[k] = redacted
			}
		}
	}
}

// DefaultPatterns returns compiled regex patterns for the key formats the
// webhook is likely to handle.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// OpenRouter: sk-or-v1-<hex>
		regexp.MustCompile(`sk-or-v1-[a-fA-F0-9]{32,}`),
		// OpenAI: sk-..., sk-proj-...
		regexp.MustCompile(`sk-(proj-)?[a-zA-Z0-9_\-]{20,}`),
		// Authorization header values.
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{16,}`),
	}
}

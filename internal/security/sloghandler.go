package security

import (
	"context"
	"log/slog"
	"unicode/utf8"
)

// RedactingHandler wraps a slog.Handler and redacts secrets from the
// message and every string-valued attribute before passing the record on.
// When MaxValueLen is set, long string values (user utterances, provider
// error bodies) are clipped after redaction.
type RedactingHandler struct {
	inner       slog.Handler
	redactor    *Redactor
	maxValueLen int
}

var _ slog.Handler = (*RedactingHandler)(nil)

// HandlerOption configures a RedactingHandler.
type HandlerOption func(*RedactingHandler)

// WithMaxValueLen clips string attribute values to n runes. Zero disables
// clipping.
func WithMaxValueLen(n int) HandlerOption {
	return func(h *RedactingHandler) { h.maxValueLen = n }
}

// NewRedactingHandler creates a handler that wraps inner, applying
// redactor to every string attribute value.
func NewRedactingHandler(inner slog.Handler, redactor *Redactor, opts ...HandlerOption) *RedactingHandler {
	h := &RedactingHandler{
		inner:    inner,
		redactor: redactor,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled delegates to the inner handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle redacts the record and delegates to the inner handler.
func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	redacted := slog.NewRecord(record.Time, record.Level, h.redactor.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, redacted)
}

// WithAttrs redacts attrs once and folds them into the inner handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return h.derive(h.inner.WithAttrs(redacted))
}

// WithGroup returns a new handler with the given group name.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return h.derive(h.inner.WithGroup(name))
}

func (h *RedactingHandler) derive(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{
		inner:       inner,
		redactor:    h.redactor,
		maxValueLen: h.maxValueLen,
	}
}

// redactAttr recursively redacts string values in an attribute.
func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	// Resolve first so LogValuer and error values reach their final form.
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.clip(h.redactor.Redact(a.Value.String())))
	case slog.KindGroup:
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = h.redactAttr(ga)
		}
		a.Value = slog.GroupValue(redacted...)
	case slog.KindAny:
		if a.Value.Any() == nil {
			return a
		}
		// Remaining KindAny values (errors mostly) are logged by their
		// string form, so redact that.
		resolved := a.Value.String()
		redacted := h.redactor.Redact(resolved)
		if redacted != resolved {
			a.Value = slog.StringValue(h.clip(redacted))
		}
	}
	return a
}

func (h *RedactingHandler) clip(s string) string {
	if h.maxValueLen <= 0 || utf8.RuneCountInString(s) <= h.maxValueLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:h.maxValueLen]) + "…"
}

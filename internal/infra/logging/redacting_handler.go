package logging

import (
	"context"
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of a sensitive attribute.
const RedactedValue = "[REDACTED]"

//nolint:gochecknoglobals
var defaultRedactKeys = []string{"password", "pin", "token", "authorization"}

// RedactingHandler masks attributes whose key names a secret before the
// record reaches the wrapped handler. Keys match case-insensitively, also
// inside groups.
type RedactingHandler struct {
	h    slog.Handler
	keys map[string]struct{}
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps h. The default keys are always included.
func NewRedactingHandler(h slog.Handler, extraKeys ...string) *RedactingHandler {
	keys := make(map[string]struct{}, len(defaultRedactKeys)+len(extraKeys))

	for _, key := range append(defaultRedactKeys, extraKeys...) {
		keys[strings.ToLower(key)] = struct{}{}
	}

	return &RedactingHandler{h: h, keys: keys}
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))

		return true
	})

	//nolint:wrapcheck
	return h.h.Handle(ctx, out)
}

func (h *RedactingHandler) redact(a slog.Attr) slog.Attr {
	if _, ok := h.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, RedactedValue)
	}

	if a.Value.Kind() != slog.KindGroup {
		return a
	}

	group := a.Value.Group()
	attrs := make([]any, 0, len(group))

	for _, ga := range group {
		attrs = append(attrs, h.redact(ga))
	}

	return slog.Group(a.Key, attrs...)
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}

	return &RedactingHandler{h: h.h.WithAttrs(redacted), keys: h.keys}
}

// WithGroup implements slog.Handler.WithGroup.
func (h *RedactingHandler) WithGroup(name string) Handler {
	return &RedactingHandler{h: h.h.WithGroup(name), keys: h.keys}
}

// Enabled implements slog.Handler.Enabled.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}
